package gate

import (
	"fmt"
	"os"

	"github.com/gobwas/glob"
	"gopkg.in/yaml.v3"
)

// Parse decodes YAML gate configuration and validates it.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("decode gate config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Load reads and parses a gate configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read gate config: %w", err)
	}
	return Parse(data)
}

// Validate checks structural invariants: unique job names, known and
// acyclic dependencies, non-empty triggers and command sequences, well
// formed matrices and branch patterns. Branch patterns are compiled once
// here and reused by Matches on every event.
func (c *Config) Validate() error {
	if len(c.Jobs) == 0 {
		return fmt.Errorf("gate config declares no jobs")
	}

	names := make(map[string]bool, len(c.Jobs))
	for _, j := range c.Jobs {
		if j.Name == "" {
			return fmt.Errorf("job without a name")
		}
		if names[j.Name] {
			return fmt.Errorf("duplicate job name %q", j.Name)
		}
		names[j.Name] = true
	}

	all := make([]string, 0, len(c.Jobs))
	for _, j := range c.Jobs {
		all = append(all, j.Name)

		if len(j.On) == 0 {
			return fmt.Errorf("job %q has no trigger events", j.Name)
		}
		for _, on := range j.On {
			if on != EventPush && on != EventProposedChange {
				return fmt.Errorf("job %q: unknown trigger event %q", j.Name, on)
			}
		}
		globs := make([]glob.Glob, 0, len(j.Branches))
		for _, p := range j.Branches {
			g, err := glob.Compile(p)
			if err != nil {
				return fmt.Errorf("job %q: bad branch pattern %q: %w", j.Name, p, err)
			}
			globs = append(globs, g)
		}
		j.branchGlobs = globs
		if len(j.Steps) == 0 {
			return fmt.Errorf("job %q has no steps", j.Name)
		}
		for _, dep := range j.Needs {
			if !names[dep] {
				return fmt.Errorf("job %q needs unknown job %q", j.Name, dep)
			}
		}
		if err := j.Matrix.validate(j.Name); err != nil {
			return err
		}
	}

	if _, err := c.TopoSort(all); err != nil {
		return err
	}
	return nil
}

func (m *Matrix) validate(job string) error {
	if m == nil {
		return nil
	}
	if len(m.Dimensions) == 0 {
		return fmt.Errorf("job %q: matrix needs at least one dimension", job)
	}
	dims := make(map[string]bool, len(m.Dimensions))
	for _, d := range m.Dimensions {
		if d.Name == "" {
			return fmt.Errorf("job %q: matrix dimension without a name", job)
		}
		if dims[d.Name] {
			return fmt.Errorf("job %q: duplicate matrix dimension %q", job, d.Name)
		}
		if len(d.Values) == 0 {
			return fmt.Errorf("job %q: matrix dimension %q has no values", job, d.Name)
		}
		dims[d.Name] = true
	}
	for _, inc := range m.Include {
		for name := range inc {
			if !dims[name] {
				return fmt.Errorf("job %q: matrix include references unknown dimension %q", job, name)
			}
		}
	}
	return nil
}
