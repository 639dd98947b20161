package repository

import (
	"context"
	"fmt"

	"crm_backend/internal/pipeline/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const taskColumns = `id, opportunity_id, lead_id, title, description, priority, due_date, status, owner_id, created_at, updated_at`

func scanTask(row pgx.Row) (Task, error) {
	var t Task
	var priority, status string
	err := row.Scan(
		&t.ID, &t.OpportunityID, &t.LeadID, &t.Title, &t.Description, &priority,
		&t.DueDate, &status, &t.OwnerID, &t.CreatedAt, &t.UpdatedAt,
	)
	t.Priority = domain.Priority(priority)
	t.Status = domain.TaskStatus(status)
	return t, err
}

const insertTaskSQL = `
	INSERT INTO crm_tasks (opportunity_id, lead_id, title, description, priority, due_date, owner_id)
	VALUES ($1, $2, $3, $4, $5, $6, $7)
	RETURNING ` + taskColumns

func insertTaskArgs(p CreateTaskParams) []any {
	priority := p.Priority
	if priority == "" {
		priority = domain.PriorityMedium
	}
	return []any{p.OpportunityID, p.LeadID, p.Title, p.Description, string(priority), p.DueDate, p.OwnerID}
}

func insertTask(ctx context.Context, q querier, params CreateTaskParams) (Task, error) {
	task, err := scanTask(q.QueryRow(ctx, insertTaskSQL, insertTaskArgs(params)...))
	if err != nil {
		return Task{}, fmt.Errorf("create task: %w", err)
	}
	return task, nil
}

func insertTasks(ctx context.Context, q querier, params []CreateTaskParams) ([]Task, error) {
	tasks := make([]Task, 0, len(params))
	for _, p := range params {
		task, err := insertTask(ctx, q, p)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}
	return tasks, nil
}

func (r *Repository) CreateTask(ctx context.Context, params CreateTaskParams) (Task, error) {
	return insertTask(ctx, r.pool, params)
}

// CreateTasks inserts all tasks in one transaction, preserving input order.
func (r *Repository) CreateTasks(ctx context.Context, params []CreateTaskParams) ([]Task, error) {
	if len(params) == 0 {
		return []Task{}, nil
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	tasks, err := insertTasks(ctx, tx, params)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("create tasks: %w", err)
	}
	return tasks, nil
}

func (r *Repository) GetTask(ctx context.Context, id uuid.UUID) (Task, error) {
	task, err := scanTask(r.pool.QueryRow(ctx, `SELECT `+taskColumns+` FROM crm_tasks WHERE id = $1`, id))
	if err != nil {
		return Task{}, notFoundOr(err, "task", "get task")
	}
	return task, nil
}

func (r *Repository) ListTasksByOpportunity(ctx context.Context, opportunityID uuid.UUID) ([]Task, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+taskColumns+`
		FROM crm_tasks
		WHERE opportunity_id = $1
		ORDER BY due_date ASC, created_at ASC
	`, opportunityID)
	if err != nil {
		return nil, fmt.Errorf("list tasks by opportunity: %w", err)
	}
	return collect(rows, scanTask)
}

func (r *Repository) ListTasksByLead(ctx context.Context, leadID uuid.UUID) ([]Task, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+taskColumns+`
		FROM crm_tasks
		WHERE lead_id = $1
		ORDER BY due_date ASC, created_at ASC
	`, leadID)
	if err != nil {
		return nil, fmt.Errorf("list tasks by lead: %w", err)
	}
	return collect(rows, scanTask)
}

func (r *Repository) UpdateTaskStatus(ctx context.Context, id uuid.UUID, status domain.TaskStatus) (Task, error) {
	task, err := scanTask(r.pool.QueryRow(ctx, `
		UPDATE crm_tasks SET status = $2, updated_at = now()
		WHERE id = $1
		RETURNING `+taskColumns, id, string(status)))
	if err != nil {
		return Task{}, notFoundOr(err, "task", "update task status")
	}
	return task, nil
}
