package lab

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Priority of a lab order. EMERGENCY outranks URGENT outranks ROUTINE on the
// worklist.
type Priority string

const (
	PriorityRoutine   Priority = "ROUTINE"
	PriorityUrgent    Priority = "URGENT"
	PriorityEmergency Priority = "EMERGENCY"
)

// Valid reports whether p is one of the three known priorities.
func (p Priority) Valid() bool {
	switch p {
	case PriorityRoutine, PriorityUrgent, PriorityEmergency:
		return true
	}
	return false
}

// Rank returns the sort weight of the priority, higher is more urgent.
func (p Priority) Rank() int {
	switch p {
	case PriorityEmergency:
		return 2
	case PriorityUrgent:
		return 1
	default:
		return 0
	}
}

// TestStatus is the lifecycle state of a single TestUnit.
type TestStatus string

const (
	TestPending         TestStatus = "PENDING"
	TestSampleCollected TestStatus = "SAMPLE_COLLECTED"
	TestInProgress      TestStatus = "IN_PROGRESS"
	TestCompleted       TestStatus = "COMPLETED"
	TestApproved        TestStatus = "APPROVED"
	TestCancelled       TestStatus = "CANCELLED"
)

// Terminal reports whether no further transition is permitted.
func (s TestStatus) Terminal() bool {
	return s == TestApproved || s == TestCancelled
}

// OrderStatus is the derived order-level state, computed from test statuses
// and never stored as independent truth.
type OrderStatus string

const (
	OrderPending         OrderStatus = "PENDING"
	OrderSampleCollected OrderStatus = "SAMPLE_COLLECTED"
	OrderInProgress      OrderStatus = "IN_PROGRESS"
	OrderCompleted       OrderStatus = "COMPLETED"
	OrderCancelled       OrderStatus = "CANCELLED"
)

// Terminal reports whether the order accepts no further commands.
func (s OrderStatus) Terminal() bool {
	return s == OrderCompleted || s == OrderCancelled
}

// Parameter is a single measurable value within a test, e.g. glucose.
// Classification is always recomputed from (Value, ReferenceRange);
// it is never set by hand.
type Parameter struct {
	Name           string         `json:"name"`
	Unit           string         `json:"unit,omitempty"`
	ReferenceRange string         `json:"reference_range,omitempty"`
	Value          *string        `json:"value,omitempty"`
	NotPerformed   bool           `json:"not_performed,omitempty"`
	Classification Classification `json:"classification"`
}

// ParameterValue is a submitted measurement for one parameter. NotPerformed
// marks a parameter explicitly skipped by the lab; it satisfies the
// completeness check without a value.
type ParameterValue struct {
	Name         string `json:"name"`
	Value        string `json:"value"`
	NotPerformed bool   `json:"not_performed"`
}

// TestUnit is one ordered test within a LabOrder. It owns its own state
// machine: transitions are monotonic forward, except CANCELLED which is
// reachable from any state before COMPLETED.
type TestUnit struct {
	ID                uuid.UUID   `json:"id"`
	TestType          string      `json:"test_type"`
	DisplayName       string      `json:"display_name"`
	Parameters        []Parameter `json:"parameters"`
	Status            TestStatus  `json:"status"`
	SampleCollectedBy string      `json:"sample_collected_by,omitempty"`
	SampleCollectedAt *time.Time  `json:"sample_collected_at,omitempty"`
	RecordedBy        string      `json:"recorded_by,omitempty"`
	RecordedAt        *time.Time  `json:"recorded_at,omitempty"`
	ApprovedBy        string      `json:"approved_by,omitempty"`
	ApprovedAt        *time.Time  `json:"approved_at,omitempty"`
	CancelReason      string      `json:"cancel_reason,omitempty"`
}

// CollectSample transitions PENDING -> SAMPLE_COLLECTED.
func (t *TestUnit) CollectSample(collectorRef string, at time.Time) error {
	if t.Status != TestPending {
		return fmt.Errorf("collect sample from %s: %w", t.Status, ErrInvalidTransition)
	}
	t.Status = TestSampleCollected
	t.SampleCollectedBy = collectorRef
	t.SampleCollectedAt = &at
	return nil
}

// Start transitions SAMPLE_COLLECTED -> IN_PROGRESS.
func (t *TestUnit) Start() error {
	if t.Status != TestSampleCollected {
		return fmt.Errorf("start test from %s: %w", t.Status, ErrInvalidTransition)
	}
	t.Status = TestInProgress
	return nil
}

// RecordResult stores measured values for every parameter, classifies each
// against its reference range and transitions IN_PROGRESS -> COMPLETED.
// Every parameter must receive a value or an explicit not-performed marker.
// The returned flag is true when any parameter classified CRITICAL; the
// caller must surface it, the engine does not alert on its own.
func (t *TestUnit) RecordResult(recorderRef string, values []ParameterValue, at time.Time) (critical bool, err error) {
	if t.Status != TestInProgress {
		return false, fmt.Errorf("record result from %s: %w", t.Status, ErrInvalidTransition)
	}

	submitted := make(map[string]ParameterValue, len(values))
	for _, v := range values {
		if _, ok := submitted[v.Name]; ok {
			return false, fmt.Errorf("duplicate value for parameter %q: %w", v.Name, ErrIncompleteResult)
		}
		submitted[v.Name] = v
	}
	for _, v := range values {
		if !t.hasParameter(v.Name) {
			return false, fmt.Errorf("unknown parameter %q: %w", v.Name, ErrIncompleteResult)
		}
	}

	for i := range t.Parameters {
		p := &t.Parameters[i]
		v, ok := submitted[p.Name]
		if !ok || (!v.NotPerformed && v.Value == "") {
			return false, fmt.Errorf("parameter %q has no value: %w", p.Name, ErrIncompleteResult)
		}
		if v.NotPerformed {
			p.Value = nil
			p.NotPerformed = true
			p.Classification = ClassUnclassified
			continue
		}
		val := v.Value
		p.Value = &val
		p.NotPerformed = false
		p.Classification = Classify(val, ParseRange(p.ReferenceRange))
		if p.Classification == ClassCritical {
			critical = true
		}
	}

	t.Status = TestCompleted
	t.RecordedBy = recorderRef
	t.RecordedAt = &at
	return critical, nil
}

// Approve transitions COMPLETED -> APPROVED. Real laboratory practice
// requires a second pair of eyes: the approver must differ from the actor
// who recorded the result.
func (t *TestUnit) Approve(approverRef string, at time.Time) error {
	if t.Status != TestCompleted {
		return fmt.Errorf("approve from %s: %w", t.Status, ErrResultNotReady)
	}
	if approverRef != "" && approverRef == t.RecordedBy {
		return ErrSelfApproval
	}
	t.Status = TestApproved
	t.ApprovedBy = approverRef
	t.ApprovedAt = &at
	return nil
}

// Cancel transitions any of PENDING/SAMPLE_COLLECTED/IN_PROGRESS to
// CANCELLED. A completed or approved test keeps its result.
func (t *TestUnit) Cancel(reason string) error {
	switch t.Status {
	case TestPending, TestSampleCollected, TestInProgress:
		t.Status = TestCancelled
		t.CancelReason = reason
		return nil
	}
	return fmt.Errorf("cancel test from %s: %w", t.Status, ErrInvalidTransition)
}

func (t *TestUnit) hasParameter(name string) bool {
	for i := range t.Parameters {
		if t.Parameters[i].Name == name {
			return true
		}
	}
	return false
}

// LabOrder is the aggregate root: a batch of tests ordered together for one
// patient visit. Orders are never deleted, only terminal-stamped, so the
// audit trail stays intact. Version backs the optimistic concurrency check
// on every save.
type LabOrder struct {
	ID               uuid.UUID  `json:"id"`
	PatientRef       string     `json:"patient_ref"`
	OrderingStaffRef string     `json:"ordering_staff_ref"`
	Priority         Priority   `json:"priority"`
	ClinicalNotes    string     `json:"clinical_notes,omitempty"`
	Tests            []TestUnit `json:"tests"`
	CancelReason     string     `json:"cancel_reason,omitempty"`
	Version          int        `json:"version"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// Status derives the order-level state from its test statuses.
func (o *LabOrder) Status() OrderStatus {
	return DeriveOrderStatus(o.Tests)
}

// Test returns the test with the given id, or nil.
func (o *LabOrder) Test(id uuid.UUID) *TestUnit {
	for i := range o.Tests {
		if o.Tests[i].ID == id {
			return &o.Tests[i]
		}
	}
	return nil
}

// Cancel cancels every test still in a cancellable state. It refuses when
// the derived status is already terminal. Tests that reached COMPLETED or
// APPROVED keep their results; the rest move to CANCELLED together, so a
// partially cancelled order can never be observed.
func (o *LabOrder) Cancel(reason string) error {
	if o.Status().Terminal() {
		return fmt.Errorf("order is %s: %w", o.Status(), ErrOrderAlreadyTerminal)
	}
	for i := range o.Tests {
		switch o.Tests[i].Status {
		case TestPending, TestSampleCollected, TestInProgress:
			o.Tests[i].Status = TestCancelled
			o.Tests[i].CancelReason = reason
		}
	}
	o.CancelReason = reason
	return nil
}

// DeriveOrderStatus computes order-level status from test statuses:
//
//	all CANCELLED                              -> CANCELLED
//	all non-cancelled APPROVED or COMPLETED    -> COMPLETED
//	any IN_PROGRESS                            -> IN_PROGRESS
//	any SAMPLE_COLLECTED                       -> SAMPLE_COLLECTED
//	otherwise                                  -> PENDING
//
// Rules are evaluated top to bottom; this is the single source of truth for
// order status, used by the service, the projector and the persisted
// projection column alike.
func DeriveOrderStatus(tests []TestUnit) OrderStatus {
	if len(tests) == 0 {
		return OrderPending
	}

	allCancelled := true
	allSettled := true // non-cancelled tests all APPROVED or COMPLETED
	anyInProgress := false
	anySampleCollected := false
	for i := range tests {
		s := tests[i].Status
		if s != TestCancelled {
			allCancelled = false
			if s != TestApproved && s != TestCompleted {
				allSettled = false
			}
		}
		if s == TestInProgress {
			anyInProgress = true
		}
		if s == TestSampleCollected {
			anySampleCollected = true
		}
	}

	switch {
	case allCancelled:
		return OrderCancelled
	case allSettled:
		return OrderCompleted
	case anyInProgress:
		return OrderInProgress
	case anySampleCollected:
		return OrderSampleCollected
	default:
		return OrderPending
	}
}
