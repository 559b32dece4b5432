// Package forge abstracts the hosting platform's proposed-change API.
package forge

import "context"

// MergeStrategySquash is the only strategy this system issues.
const MergeStrategySquash = "squash"

// ProposedChange is a reviewable unit of edits with authorship identity.
type ProposedChange struct {
	Number     int      `json:"number"`
	Title      string   `json:"title"`
	Body       string   `json:"body"`
	Labels     []string `json:"labels"`
	HeadBranch string   `json:"head_branch"`
	BaseBranch string   `json:"base_branch"`
	Author     string   `json:"author"`
	URL        string   `json:"url,omitempty"`
}

// CreateOpts are the parameters for opening a proposed change. Paths are
// repo-relative files whose working-tree edits the change carries.
type CreateOpts struct {
	Title      string
	Body       string
	Labels     []string
	Paths      []string
	HeadBranch string
	BaseBranch string
}

// MergeOpts are the parameters for merging a proposed change.
type MergeOpts struct {
	Strategy string
	Auto     bool // request platform auto-merge instead of immediate merge
}

// Forge is implemented per hosting platform.
type Forge interface {
	// OpenChange publishes the head branch and opens a proposed change.
	OpenChange(ctx context.Context, opts CreateOpts) (*ProposedChange, error)
	// MergeChange merges an open proposed change by number.
	MergeChange(ctx context.Context, number int, opts MergeOpts) error
}
