package gate

import "fmt"

// TopoSort returns the given job names ordered so every job appears after
// all of its dependencies. Only jobs present in the input set are
// considered; a dependency outside the set does not constrain the order.
// Validate has already rejected cycles, but the sort still detects them so
// it is safe on unvalidated input.
func (c *Config) TopoSort(names []string) ([]string, error) {
	inSet := make(map[string]bool, len(names))
	for _, n := range names {
		inSet[n] = true
	}

	const (
		white = 0 // unvisited
		grey  = 1 // on stack
		black = 2 // done
	)
	color := make(map[string]int, len(names))
	order := make([]string, 0, len(names))

	var visit func(name string) error
	visit = func(name string) error {
		switch color[name] {
		case black:
			return nil
		case grey:
			return fmt.Errorf("dependency cycle through job %q", name)
		}
		color[name] = grey
		if j := c.Job(name); j != nil {
			for _, dep := range j.Needs {
				if !inSet[dep] {
					continue
				}
				if err := visit(dep); err != nil {
					return err
				}
			}
		}
		color[name] = black
		order = append(order, name)
		return nil
	}

	for _, n := range names {
		if err := visit(n); err != nil {
			return nil, err
		}
	}
	return order, nil
}
