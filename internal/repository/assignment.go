package repository

import (
	"context"
	"fmt"

	"marketplace/categorizer/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// AssignmentRepository keeps the latest category assigned to each product
// per marketplace.
type AssignmentRepository interface {
	SaveAssignments(ctx context.Context, response *domain.CategorizationResponse) error
	GetAssignments(ctx context.Context, sku string) ([]domain.Assignment, error)
}

type assignmentRepository struct {
	db *pgxpool.Pool
}

func NewAssignmentRepository(db *pgxpool.Pool) AssignmentRepository {
	return &assignmentRepository{
		db: db,
	}
}

const createAssignmentsTable = `
CREATE TABLE IF NOT EXISTS category_assignments (
	sku           TEXT NOT NULL,
	marketplace   TEXT NOT NULL,
	category_id   TEXT NOT NULL,
	category_name TEXT NOT NULL,
	category_path TEXT NOT NULL,
	confidence    DOUBLE PRECISION,
	note          TEXT,
	updated_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (sku, marketplace)
)`

// Migrate creates the assignments table when it does not exist yet.
func Migrate(ctx context.Context, db *pgxpool.Pool) error {
	if _, err := db.Exec(ctx, createAssignmentsTable); err != nil {
		return fmt.Errorf("failed to create category_assignments: %w", err)
	}
	return nil
}

func (r *assignmentRepository) SaveAssignments(ctx context.Context, response *domain.CategorizationResponse) error {
	query := `
	INSERT INTO category_assignments (sku, marketplace, category_id, category_name, category_path, confidence, note, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, now())
	ON CONFLICT (sku, marketplace)
	DO UPDATE SET category_id = $3, category_name = $4, category_path = $5, confidence = $6, note = $7, updated_at = now()`

	batch := &pgx.Batch{}
	for _, a := range response.Categories {
		batch.Queue(query, response.SKU, a.Marketplace, a.CategoryID, a.CategoryName, a.CategoryPath, a.Confidence, a.Note)
	}

	if err := r.db.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("failed to save assignments for %s: %w", response.SKU, err)
	}

	return nil
}

func (r *assignmentRepository) GetAssignments(ctx context.Context, sku string) ([]domain.Assignment, error) {
	rows, err := r.db.Query(ctx, `
	SELECT marketplace, category_id, category_name, category_path, confidence, note
	FROM category_assignments
	WHERE sku = $1
	ORDER BY marketplace`, sku)
	if err != nil {
		return nil, fmt.Errorf("failed to query assignments for %s: %w", sku, err)
	}

	assignments, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Assignment, error) {
		var a domain.Assignment
		err := row.Scan(&a.Marketplace, &a.CategoryID, &a.CategoryName, &a.CategoryPath, &a.Confidence, &a.Note)
		return a, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read assignments for %s: %w", sku, err)
	}

	return assignments, nil
}
