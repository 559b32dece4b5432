package gate

import "github.com/gobwas/glob"

// Matches reports whether the job's trigger predicate matches the event.
// A job whose trigger does not match is omitted from the evaluation
// entirely; it neither passes nor fails.
func (j *Job) Matches(ev Event) bool {
	if !j.matchesType(ev.Type) {
		return false
	}
	if ev.Type == EventPush && len(j.Branches) > 0 && !j.branchMatches(ev.Branch) {
		return false
	}
	if len(j.Actors) > 0 {
		found := false
		for _, a := range j.Actors {
			if a == ev.Actor {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func (j *Job) matchesType(t EventType) bool {
	for _, on := range j.On {
		if on == t {
			return true
		}
	}
	return false
}

func (j *Job) branchMatches(branch string) bool {
	globs := j.branchGlobs
	if globs == nil {
		// Job built without Validate. Compile ad hoc; Validate rejects
		// bad patterns up front, so invalid ones simply never match.
		globs = compileBranchGlobs(j.Branches)
	}
	for _, g := range globs {
		if g.Match(branch) {
			return true
		}
	}
	return false
}

func compileBranchGlobs(patterns []string) []glob.Glob {
	globs := make([]glob.Glob, 0, len(patterns))
	for _, p := range patterns {
		g, err := glob.Compile(p)
		if err != nil {
			continue
		}
		globs = append(globs, g)
	}
	return globs
}
