package lab

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Service is the single mutation boundary for lab order aggregates. Every
// command is an atomic read-modify-write: load the aggregate, validate the
// transition, mutate, save with the repository's version check. Concurrent
// writers racing on the same aggregate lose with ErrConflict and must
// re-fetch; the service never retries on its own.
type Service struct {
	orders  OrderRepository
	catalog Catalog
}

func NewService(orders OrderRepository, catalog Catalog) *Service {
	return &Service{orders: orders, catalog: catalog}
}

// CreateOrderInput carries the fields of the create-order command.
type CreateOrderInput struct {
	PatientRef       string   `json:"patient_ref"`
	OrderingStaffRef string   `json:"ordering_staff_ref"`
	Priority         Priority `json:"priority"`
	ClinicalNotes    string   `json:"clinical_notes"`
	TestTypes        []string `json:"test_types"`
}

// CreateOrder validates the test list against the catalog and persists a new
// order with every test PENDING and its parameters initialized empty from the
// catalog templates. Priority defaults to ROUTINE.
func (s *Service) CreateOrder(ctx context.Context, in CreateOrderInput) (*LabOrder, error) {
	if in.PatientRef == "" {
		return nil, fmt.Errorf("patient_ref is required")
	}
	if in.OrderingStaffRef == "" {
		return nil, fmt.Errorf("ordering_staff_ref is required")
	}
	if len(in.TestTypes) == 0 {
		return nil, ErrEmptyTestList
	}
	if in.Priority == "" {
		in.Priority = PriorityRoutine
	}
	if !in.Priority.Valid() {
		return nil, fmt.Errorf("invalid priority: %s", in.Priority)
	}

	now := time.Now()
	o := &LabOrder{
		ID:               uuid.New(),
		PatientRef:       in.PatientRef,
		OrderingStaffRef: in.OrderingStaffRef,
		Priority:         in.Priority,
		ClinicalNotes:    in.ClinicalNotes,
		Version:          1,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	for _, tt := range in.TestTypes {
		def, err := s.catalog.Definition(tt)
		if err != nil {
			return nil, err
		}
		t := TestUnit{
			ID:          uuid.New(),
			TestType:    def.Type,
			DisplayName: def.DisplayName,
			Status:      TestPending,
		}
		for _, p := range def.Parameters {
			t.Parameters = append(t.Parameters, Parameter{
				Name:           p.Name,
				Unit:           p.Unit,
				ReferenceRange: p.ReferenceRange,
				Classification: ClassUnclassified,
			})
		}
		o.Tests = append(o.Tests, t)
	}

	if err := s.orders.Create(ctx, o); err != nil {
		return nil, err
	}
	return o, nil
}

// GetOrder loads an order by id.
func (s *Service) GetOrder(ctx context.Context, orderID uuid.UUID) (*LabOrder, error) {
	return s.orders.GetByID(ctx, orderID)
}

// ListOrdersByPatient returns a patient's orders, newest first.
func (s *Service) ListOrdersByPatient(ctx context.Context, patientRef string, limit, offset int) ([]*LabOrder, int, error) {
	return s.orders.ListByPatient(ctx, patientRef, limit, offset)
}

// CollectSample marks a test's sample as collected.
func (s *Service) CollectSample(ctx context.Context, orderID, testID uuid.UUID, collectorRef string) (*LabOrder, error) {
	return s.mutateTest(ctx, orderID, testID, func(t *TestUnit) error {
		return t.CollectSample(collectorRef, time.Now())
	})
}

// StartTest moves a test into processing.
func (s *Service) StartTest(ctx context.Context, orderID, testID uuid.UUID) (*LabOrder, error) {
	return s.mutateTest(ctx, orderID, testID, func(t *TestUnit) error {
		return t.Start()
	})
}

// RecordResultOutput is the response payload of a record-result command.
// Critical is an explicit flag the presentation layer escalates on; the
// engine only reports the fact.
type RecordResultOutput struct {
	Order    *LabOrder `json:"order"`
	Test     *TestUnit `json:"test"`
	Critical bool      `json:"critical"`
}

// RecordResult stores measured values for a test, classifies every parameter
// and completes the test. recorderRef is remembered for the
// separation-of-duties check at approval time.
func (s *Service) RecordResult(ctx context.Context, orderID, testID uuid.UUID, recorderRef string, values []ParameterValue) (*RecordResultOutput, error) {
	var critical bool
	o, err := s.mutateTest(ctx, orderID, testID, func(t *TestUnit) error {
		var err error
		critical, err = t.RecordResult(recorderRef, values, time.Now())
		return err
	})
	if err != nil {
		return nil, err
	}
	return &RecordResultOutput{Order: o, Test: o.Test(testID), Critical: critical}, nil
}

// ApproveResult releases a completed result. The approver must differ from
// the recorder.
func (s *Service) ApproveResult(ctx context.Context, orderID, testID uuid.UUID, approverRef string) (*LabOrder, error) {
	if approverRef == "" {
		return nil, fmt.Errorf("approver_ref is required")
	}
	return s.mutateTest(ctx, orderID, testID, func(t *TestUnit) error {
		return t.Approve(approverRef, time.Now())
	})
}

// CancelTest cancels a single test; order status is re-derived from the rest.
func (s *Service) CancelTest(ctx context.Context, orderID, testID uuid.UUID, reason string) (*LabOrder, error) {
	return s.mutateTest(ctx, orderID, testID, func(t *TestUnit) error {
		return t.Cancel(reason)
	})
}

// CancelOrder cancels every non-terminal test in one atomic write. Completed
// and approved tests keep their results.
func (s *Service) CancelOrder(ctx context.Context, orderID uuid.UUID, reason string) (*LabOrder, error) {
	o, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if err := o.Cancel(reason); err != nil {
		return nil, err
	}
	o.UpdatedAt = time.Now()
	if err := s.orders.Save(ctx, o); err != nil {
		return nil, err
	}
	return o, nil
}

// Worklist returns the operator queue: open orders filtered and sorted by
// the projector. The snapshot may trail in-flight writes; reads never block
// writers. Only non-terminal orders feed the queue, so filtering on
// COMPLETED or CANCELLED yields an empty result; completed work is read
// through ListOrdersByPatient.
func (s *Service) Worklist(ctx context.Context, f WorklistFilter) ([]*LabOrder, error) {
	orders, err := s.orders.ListOpen(ctx)
	if err != nil {
		return nil, err
	}
	return BuildWorklist(orders, f), nil
}

func (s *Service) mutateTest(ctx context.Context, orderID, testID uuid.UUID, mutate func(*TestUnit) error) (*LabOrder, error) {
	o, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	t := o.Test(testID)
	if t == nil {
		return nil, fmt.Errorf("test %s in order %s: %w", testID, orderID, ErrNotFound)
	}
	if err := mutate(t); err != nil {
		return nil, err
	}
	o.UpdatedAt = time.Now()
	if err := s.orders.Save(ctx, o); err != nil {
		return nil, err
	}
	return o, nil
}
