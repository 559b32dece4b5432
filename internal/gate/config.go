// Package gate defines the gate configuration and the domain model the
// orchestrator evaluates: jobs, triggers, matrices and run statuses.
package gate

import "github.com/gobwas/glob"

// Config is the gate configuration, a versioned human-readable artifact in
// the gated repository. It is read as an immutable snapshot per evaluation
// and only ever mutated through the drift updater's proposed changes.
type Config struct {
	// Pin is the date-stamped toolchain identifier the drift updater keeps
	// current, e.g. "nightly-2025-02-01".
	Pin  string `yaml:"pin"`
	Jobs []*Job `yaml:"jobs"`
}

// Job is a named unit of verification. A job with a matrix expands into one
// run per dimension tuple.
type Job struct {
	Name     string      `yaml:"name"`
	On       []EventType `yaml:"on"`       // event types the trigger matches
	Branches []string    `yaml:"branches"` // glob patterns, push events only; empty matches all
	Actors   []string    `yaml:"actors"`   // optional identity guard; empty matches all
	Needs    []string    `yaml:"needs"`    // jobs that must succeed first
	Matrix   *Matrix     `yaml:"matrix"`
	Steps    []Step      `yaml:"steps"`

	branchGlobs []glob.Glob // compiled from Branches by Validate
}

// Step is a single command in a job's command sequence.
type Step struct {
	Name string `yaml:"name"`
	Run  string `yaml:"run"`
}

// Matrix is a cross-product of named environment dimensions, optionally
// widened by explicit include tuples outside the base grid.
type Matrix struct {
	Dimensions []Dimension `yaml:"dimensions"`
	Include    []Tuple     `yaml:"include"`
}

// Dimension is one named axis of a matrix with its enumerated values.
type Dimension struct {
	Name   string   `yaml:"name"`
	Values []string `yaml:"values"`
}

// Job lookup by name. Returns nil when the name is unknown.
func (c *Config) Job(name string) *Job {
	for _, j := range c.Jobs {
		if j.Name == name {
			return j
		}
	}
	return nil
}
