package lab

import "sort"

// WorklistFilter narrows the worklist by derived order status and/or by the
// status of any contained test. Zero values match everything.
type WorklistFilter struct {
	Status     OrderStatus
	TestStatus TestStatus
}

// BuildWorklist projects a snapshot of orders into the operator queue:
// priority descending, then createdAt ascending within the same priority.
// The tie-break is strict FIFO; a stable sort keeps equal keys in input
// order so later edits never reshuffle the queue. The input is not mutated.
func BuildWorklist(orders []*LabOrder, f WorklistFilter) []*LabOrder {
	out := make([]*LabOrder, 0, len(orders))
	for _, o := range orders {
		if f.Status != "" && o.Status() != f.Status {
			continue
		}
		if f.TestStatus != "" && !hasTestWithStatus(o, f.TestStatus) {
			continue
		}
		out = append(out, o)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Priority.Rank() != out[j].Priority.Rank() {
			return out[i].Priority.Rank() > out[j].Priority.Rank()
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

func hasTestWithStatus(o *LabOrder, s TestStatus) bool {
	for i := range o.Tests {
		if o.Tests[i].Status == s {
			return true
		}
	}
	return false
}
