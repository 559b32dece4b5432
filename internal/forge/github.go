package forge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// GitHub talks to GitHub through the gh CLI, which carries its own
// authentication token. Branch and commit plumbing goes through git
// directly.
type GitHub struct {
	repoRoot string
}

func NewGitHub(repoRoot string) *GitHub {
	return &GitHub{repoRoot: repoRoot}
}

// ghPR mirrors the fields we care about from gh's JSON output.
type ghPR struct {
	Number int    `json:"number"`
	URL    string `json:"url"`
	Author struct {
		Login string `json:"login"`
	} `json:"author"`
}

func (g *GitHub) git(ctx context.Context, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", append([]string{"-C", g.repoRoot}, args...)...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("git %s: %w: %s", args[0], err, strings.TrimSpace(stderr.String()))
	}
	return strings.TrimSpace(stdout.String()), nil
}

// OpenChange commits the working-tree edits at opts.Paths to a fresh head
// branch, pushes it and opens the proposed change. The original branch is
// checked out again before returning, so the edit never lands on the
// integration branch directly.
func (g *GitHub) OpenChange(ctx context.Context, opts CreateOpts) (*ProposedChange, error) {
	ctx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()

	base, err := g.git(ctx, "rev-parse", "--abbrev-ref", "HEAD")
	if err != nil {
		return nil, fmt.Errorf("resolve current branch: %w", err)
	}

	if _, err := g.git(ctx, "checkout", "-B", opts.HeadBranch); err != nil {
		return nil, fmt.Errorf("create branch %s: %w", opts.HeadBranch, err)
	}
	// Whatever happens from here, leave the checkout on the branch we
	// started from. Committed edits stay on the head branch only.
	defer func() {
		_, _ = g.git(context.WithoutCancel(ctx), "checkout", base)
	}()

	if _, err := g.git(ctx, append([]string{"add", "--"}, opts.Paths...)...); err != nil {
		return nil, fmt.Errorf("stage changes: %w", err)
	}
	if _, err := g.git(ctx, "commit", "-m", opts.Title); err != nil {
		return nil, fmt.Errorf("commit changes: %w", err)
	}
	if _, err := g.git(ctx, "push", "-u", "origin", opts.HeadBranch); err != nil {
		return nil, fmt.Errorf("push branch %s: %w", opts.HeadBranch, err)
	}

	args := []string{
		"pr", "create",
		"--title", opts.Title,
		"--body", opts.Body,
		"--base", opts.BaseBranch,
		"--head", opts.HeadBranch,
	}
	for _, l := range opts.Labels {
		args = append(args, "--label", l)
	}
	create := exec.CommandContext(ctx, "gh", args...)
	create.Dir = g.repoRoot
	var createErr bytes.Buffer
	create.Stderr = &createErr
	if err := create.Run(); err != nil {
		return nil, fmt.Errorf("create proposed change: %w: %s", err, createErr.String())
	}

	view := exec.CommandContext(ctx, "gh", "pr", "view", opts.HeadBranch, "--json", "number,url,author")
	view.Dir = g.repoRoot
	out, err := view.Output()
	if err != nil {
		return nil, fmt.Errorf("view proposed change: %w", err)
	}
	var pr ghPR
	if err := json.Unmarshal(out, &pr); err != nil {
		return nil, fmt.Errorf("decode gh output: %w", err)
	}

	return &ProposedChange{
		Number:     pr.Number,
		Title:      opts.Title,
		Body:       opts.Body,
		Labels:     opts.Labels,
		HeadBranch: opts.HeadBranch,
		BaseBranch: opts.BaseBranch,
		Author:     pr.Author.Login,
		URL:        pr.URL,
	}, nil
}

func (g *GitHub) MergeChange(ctx context.Context, number int, opts MergeOpts) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	args := []string{"pr", "merge", strconv.Itoa(number)}
	switch opts.Strategy {
	case MergeStrategySquash, "":
		args = append(args, "--squash")
	default:
		return fmt.Errorf("unsupported merge strategy %q", opts.Strategy)
	}
	if opts.Auto {
		args = append(args, "--auto")
	}

	merge := exec.CommandContext(ctx, "gh", args...)
	merge.Dir = g.repoRoot
	var stderr bytes.Buffer
	merge.Stderr = &stderr
	if err := merge.Run(); err != nil {
		return fmt.Errorf("merge proposed change #%d: %w: %s", number, err, stderr.String())
	}
	return nil
}
