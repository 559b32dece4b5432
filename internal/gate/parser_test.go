package gate

import (
	"testing"

	"github.com/stretchr/testify/require"
)

const validConfig = `
pin: nightly-2025-02-01
jobs:
  - name: check
    on: [push, pull_request]
    branches: [main]
    steps:
      - run: echo check
  - name: test
    on: [push, pull_request]
    needs: [check]
    matrix:
      dimensions:
        - name: platform
          values: [linux, macos]
        - name: toolchain
          values: [stable, nightly]
      include:
        - platform: windows
          toolchain: stable
    steps:
      - run: echo test
  - name: bench
    on: [push]
    needs: [test]
    steps:
      - run: echo bench
`

func TestParseValidConfig(t *testing.T) {
	cfg, err := Parse([]byte(validConfig))
	require.NoError(t, err)

	require.Equal(t, "nightly-2025-02-01", cfg.Pin)
	require.Len(t, cfg.Jobs, 3)

	test := cfg.Job("test")
	require.NotNil(t, test)
	require.Equal(t, []string{"check"}, test.Needs)
	require.Len(t, test.Matrix.Expand(), 5)

	require.Nil(t, cfg.Job("missing"))
}

func TestParseRejectsDuplicateNames(t *testing.T) {
	_, err := Parse([]byte(`
jobs:
  - name: a
    on: [push]
    steps: [{run: echo}]
  - name: a
    on: [push]
    steps: [{run: echo}]
`))
	require.ErrorContains(t, err, "duplicate job name")
}

func TestParseRejectsUnknownDependency(t *testing.T) {
	_, err := Parse([]byte(`
jobs:
  - name: a
    on: [push]
    needs: [ghost]
    steps: [{run: echo}]
`))
	require.ErrorContains(t, err, "unknown job")
}

func TestParseRejectsCycle(t *testing.T) {
	_, err := Parse([]byte(`
jobs:
  - name: a
    on: [push]
    needs: [b]
    steps: [{run: echo}]
  - name: b
    on: [push]
    needs: [a]
    steps: [{run: echo}]
`))
	require.ErrorContains(t, err, "cycle")
}

func TestParseRejectsUnknownEvent(t *testing.T) {
	_, err := Parse([]byte(`
jobs:
  - name: a
    on: [deploy]
    steps: [{run: echo}]
`))
	require.ErrorContains(t, err, "unknown trigger event")
}

func TestParseRejectsBadBranchPattern(t *testing.T) {
	_, err := Parse([]byte(`
jobs:
  - name: a
    on: [push]
    branches: ["[invalid"]
    steps: [{run: echo}]
`))
	require.ErrorContains(t, err, "bad branch pattern")
}

func TestParseRejectsIncludeWithUnknownDimension(t *testing.T) {
	_, err := Parse([]byte(`
jobs:
  - name: a
    on: [push]
    matrix:
      dimensions:
        - name: platform
          values: [linux]
      include:
        - arch: arm64
    steps: [{run: echo}]
`))
	require.ErrorContains(t, err, "unknown dimension")
}

func TestTopoSortRespectsDependencies(t *testing.T) {
	cfg, err := Parse([]byte(validConfig))
	require.NoError(t, err)

	order, err := cfg.TopoSort([]string{"bench", "test", "check"})
	require.NoError(t, err)

	pos := make(map[string]int, len(order))
	for i, n := range order {
		pos[n] = i
	}
	require.Less(t, pos["check"], pos["test"])
	require.Less(t, pos["test"], pos["bench"])
}
