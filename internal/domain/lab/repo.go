package lab

import (
	"context"

	"github.com/google/uuid"
)

// OrderRepository persists LabOrder aggregates. Save must compare the
// aggregate's Version against the stored row and fail with ErrConflict on
// mismatch, incrementing the version on success; this is the concurrency
// guard every workflow command relies on.
type OrderRepository interface {
	Create(ctx context.Context, o *LabOrder) error
	GetByID(ctx context.Context, id uuid.UUID) (*LabOrder, error)
	Save(ctx context.Context, o *LabOrder) error
	// ListOpen returns every order whose derived status is not terminal,
	// oldest first. The worklist projector orders and filters the result.
	ListOpen(ctx context.Context) ([]*LabOrder, error)
	// ListByPatient returns a patient's orders, newest first.
	ListByPatient(ctx context.Context, patientRef string, limit, offset int) ([]*LabOrder, int, error)
}
