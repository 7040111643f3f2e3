package lab

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// orderRepoPG stores each aggregate in a single lab_order row with the tests
// slice as JSONB, so a save is one atomic compare-and-swap UPDATE. The status
// column is a projection of DeriveOrderStatus kept for indexing; it is
// rewritten on every save and recomputed from the tests on load, never read
// back as truth.
type orderRepoPG struct{ pool *pgxpool.Pool }

func NewOrderRepoPG(pool *pgxpool.Pool) OrderRepository {
	return &orderRepoPG{pool: pool}
}

const orderCols = `id, patient_ref, ordering_staff_ref, priority, clinical_notes,
	tests, cancel_reason, version, created_at, updated_at`

func scanOrder(row pgx.Row) (*LabOrder, error) {
	var o LabOrder
	var tests []byte
	err := row.Scan(&o.ID, &o.PatientRef, &o.OrderingStaffRef, &o.Priority, &o.ClinicalNotes,
		&tests, &o.CancelReason, &o.Version, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(tests, &o.Tests); err != nil {
		return nil, fmt.Errorf("decode tests for order %s: %w", o.ID, err)
	}
	return &o, nil
}

func (r *orderRepoPG) Create(ctx context.Context, o *LabOrder) error {
	tests, err := json.Marshal(o.Tests)
	if err != nil {
		return fmt.Errorf("encode tests: %w", err)
	}
	_, err = r.pool.Exec(ctx, `
		INSERT INTO lab_order (id, patient_ref, ordering_staff_ref, priority, clinical_notes,
			status, tests, cancel_reason, version, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		o.ID, o.PatientRef, o.OrderingStaffRef, o.Priority, o.ClinicalNotes,
		o.Status(), tests, o.CancelReason, o.Version, o.CreatedAt, o.UpdatedAt)
	return err
}

func (r *orderRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*LabOrder, error) {
	o, err := scanOrder(r.pool.QueryRow(ctx, `SELECT `+orderCols+` FROM lab_order WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("lab order %s: %w", id, ErrNotFound)
	}
	return o, err
}

func (r *orderRepoPG) Save(ctx context.Context, o *LabOrder) error {
	tests, err := json.Marshal(o.Tests)
	if err != nil {
		return fmt.Errorf("encode tests: %w", err)
	}
	tag, err := r.pool.Exec(ctx, `
		UPDATE lab_order
		SET priority=$3, clinical_notes=$4, status=$5, tests=$6, cancel_reason=$7,
			version=version+1, updated_at=$8
		WHERE id = $1 AND version = $2`,
		o.ID, o.Version, o.Priority, o.ClinicalNotes, o.Status(), tests, o.CancelReason, o.UpdatedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM lab_order WHERE id = $1)`, o.ID).Scan(&exists); err != nil {
			return err
		}
		if exists {
			return fmt.Errorf("lab order %s at version %d: %w", o.ID, o.Version, ErrConflict)
		}
		return fmt.Errorf("lab order %s: %w", o.ID, ErrNotFound)
	}
	o.Version++
	return nil
}

func (r *orderRepoPG) ListOpen(ctx context.Context) ([]*LabOrder, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+orderCols+` FROM lab_order
		WHERE status NOT IN ('COMPLETED', 'CANCELLED') ORDER BY created_at ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var orders []*LabOrder
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

func (r *orderRepoPG) ListByPatient(ctx context.Context, patientRef string, limit, offset int) ([]*LabOrder, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM lab_order WHERE patient_ref = $1`, patientRef).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.pool.Query(ctx, `SELECT `+orderCols+` FROM lab_order
		WHERE patient_ref = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`, patientRef, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var orders []*LabOrder
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, 0, err
		}
		orders = append(orders, o)
	}
	return orders, total, rows.Err()
}
