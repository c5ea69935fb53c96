package content

import (
	"fmt"
	"sort"
)

// Plan is a collection of items ordered by due date.
type Plan []Item

// Clone builds a new plan from fresh item values. A nil plan stays nil.
func (p Plan) Clone() Plan {
	if p == nil {
		return nil
	}
	cloned := make(Plan, len(p))
	for i, item := range p {
		cloned[i] = item.Clone()
	}
	return cloned
}

// SortByDueDate orders the plan ascending by due date, keeping generation
// order for items due on the same instant.
func (p Plan) SortByDueDate() {
	sort.SliceStable(p, func(i, j int) bool {
		return p[i].DueDate.Before(p[j].DueDate)
	})
}

func (p Plan) IDs() []string {
	ids := make([]string, len(p))
	for i, item := range p {
		ids[i] = item.ID
	}
	return ids
}

// Validate requires a non-empty plan of valid items with unique ids.
func (p Plan) Validate() error {
	if len(p) == 0 {
		return fmt.Errorf("%w: plan is empty", ErrValidation)
	}
	seen := make(map[string]struct{}, len(p))
	for _, item := range p {
		if err := item.Validate(); err != nil {
			return err
		}
		if _, dup := seen[item.ID]; dup {
			return fmt.Errorf("%w: duplicate item id %s", ErrValidation, item.ID)
		}
		seen[item.ID] = struct{}{}
	}
	return nil
}

// Concat returns a new plan holding a followed by b.
func Concat(a, b Plan) Plan {
	merged := make(Plan, 0, len(a)+len(b))
	merged = append(merged, a.Clone()...)
	merged = append(merged, b.Clone()...)
	return merged
}

// SameIDs reports whether a and b hold the same ids in the same order.
func SameIDs(a, b Plan) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].ID != b[i].ID {
			return false
		}
	}
	return true
}
