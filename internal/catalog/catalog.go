package catalog

import (
	"context"
	"fmt"

	"server/internal/domain"
	"server/internal/infra"
	"server/internal/sqlinline"
)

// Catalog is the workflow/generation record store. The API reads from it;
// only the persistence worker writes to it.
type Catalog interface {
	UpsertWorkflow(ctx context.Context, wf domain.Workflow) error
	// SaveGeneration inserts a generation record and bumps the parent's
	// counter. It reports false when the id already existed, which is how
	// redelivered queue messages are absorbed.
	SaveGeneration(ctx context.Context, gen domain.Generation) (bool, error)
	ListWorkflows(ctx context.Context, userID string) ([]domain.Workflow, error)
	Workflow(ctx context.Context, id, userID string) (domain.Workflow, error)
	WorkflowGenerations(ctx context.Context, workflowID string) ([]domain.Generation, error)
	LatestGeneration(ctx context.Context, workflowID string) (*domain.Generation, error)
	CloseWorkflow(ctx context.Context, id, userID string) (domain.Workflow, error)
}

// PG implements Catalog on PostgreSQL through the shared SQL runner.
type PG struct {
	runner infra.SQLExecutor
}

func NewPG(runner infra.SQLExecutor) *PG {
	return &PG{runner: runner}
}

var _ Catalog = (*PG)(nil)

func (c *PG) UpsertWorkflow(ctx context.Context, wf domain.Workflow) error {
	_, err := c.runner.Exec(ctx, sqlinline.QUpsertWorkflow,
		wf.ID, wf.UserID, wf.Name, wf.SketchBlobPath, wf.Status, wf.GenerationsCount, wf.CreatedAt, wf.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert workflow %s: %w", wf.ID, err)
	}
	return nil
}

func (c *PG) SaveGeneration(ctx context.Context, gen domain.Generation) (bool, error) {
	var inserted int
	err := c.runner.QueryRow(ctx, sqlinline.QSaveGeneration,
		gen.ID, gen.WorkflowID, gen.ImageBlobPath, gen.MaterialID, gen.Status).Scan(&inserted)
	if err != nil {
		return false, fmt.Errorf("save generation %s: %w", gen.ID, err)
	}
	return inserted > 0, nil
}

func (c *PG) ListWorkflows(ctx context.Context, userID string) ([]domain.Workflow, error) {
	rows, err := c.runner.Query(ctx, sqlinline.QSelectUserWorkflows, userID)
	if err != nil {
		return nil, fmt.Errorf("list workflows: %w", err)
	}
	defer rows.Close()

	var workflows []domain.Workflow
	for rows.Next() {
		var wf domain.Workflow
		if err := rows.Scan(&wf.ID, &wf.UserID, &wf.Name, &wf.SketchBlobPath, &wf.Status, &wf.GenerationsCount, &wf.CreatedAt, &wf.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan workflow: %w", err)
		}
		workflows = append(workflows, wf)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate workflows: %w", err)
	}
	return workflows, nil
}

func (c *PG) Workflow(ctx context.Context, id, userID string) (domain.Workflow, error) {
	var wf domain.Workflow
	err := c.runner.QueryRow(ctx, sqlinline.QSelectWorkflow, id, userID).
		Scan(&wf.ID, &wf.UserID, &wf.Name, &wf.SketchBlobPath, &wf.Status, &wf.GenerationsCount, &wf.CreatedAt, &wf.UpdatedAt)
	if err != nil {
		if infra.IsNoRows(err) {
			return domain.Workflow{}, domain.ErrNotFound
		}
		return domain.Workflow{}, fmt.Errorf("select workflow %s: %w", id, err)
	}
	return wf, nil
}

func (c *PG) WorkflowGenerations(ctx context.Context, workflowID string) ([]domain.Generation, error) {
	rows, err := c.runner.Query(ctx, sqlinline.QSelectWorkflowGenerations, workflowID)
	if err != nil {
		return nil, fmt.Errorf("list generations: %w", err)
	}
	defer rows.Close()

	var generations []domain.Generation
	for rows.Next() {
		var gen domain.Generation
		if err := rows.Scan(&gen.ID, &gen.WorkflowID, &gen.ImageBlobPath, &gen.MaterialID, &gen.Status, &gen.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan generation: %w", err)
		}
		generations = append(generations, gen)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate generations: %w", err)
	}
	return generations, nil
}

func (c *PG) LatestGeneration(ctx context.Context, workflowID string) (*domain.Generation, error) {
	var gen domain.Generation
	err := c.runner.QueryRow(ctx, sqlinline.QSelectLatestGeneration, workflowID).
		Scan(&gen.ID, &gen.WorkflowID, &gen.ImageBlobPath, &gen.MaterialID, &gen.Status, &gen.CreatedAt)
	if err != nil {
		if infra.IsNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("latest generation for %s: %w", workflowID, err)
	}
	return &gen, nil
}

func (c *PG) CloseWorkflow(ctx context.Context, id, userID string) (domain.Workflow, error) {
	var wf domain.Workflow
	err := c.runner.QueryRow(ctx, sqlinline.QCloseWorkflow, id, userID, domain.WorkflowStatusClosed).
		Scan(&wf.ID, &wf.UserID, &wf.Name, &wf.SketchBlobPath, &wf.Status, &wf.GenerationsCount, &wf.CreatedAt, &wf.UpdatedAt)
	if err != nil {
		if infra.IsNoRows(err) {
			return domain.Workflow{}, domain.ErrNotFound
		}
		return domain.Workflow{}, fmt.Errorf("close workflow %s: %w", id, err)
	}
	return wf, nil
}
