package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/genielink/backend/internal/models"
)

const taskColumns = `id, requester_id, worker_id, title, description, location, duration, price, status,
	rating, rating_comment, rated_at, created_at, started_at, completed_at`

type TaskRepo struct {
	pool *pgxpool.Pool
}

func NewTaskRepo(pool *pgxpool.Pool) *TaskRepo {
	return &TaskRepo{pool: pool}
}

func scanTask(row pgx.Row) (*models.Task, error) {
	var t models.Task
	err := row.Scan(&t.ID, &t.RequesterID, &t.WorkerID, &t.Title, &t.Description, &t.Location, &t.Duration,
		&t.Price, &t.Status, &t.Rating, &t.RatingComment, &t.RatedAt, &t.CreatedAt, &t.StartedAt, &t.CompletedAt)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *TaskRepo) Create(ctx context.Context, t *models.Task) error {
	return r.pool.QueryRow(ctx, `
		INSERT INTO tasks (id, requester_id, title, description, location, duration, price, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at
	`, t.ID, t.RequesterID, t.Title, t.Description, t.Location, t.Duration, t.Price, t.Status).Scan(&t.CreatedAt)
}

func (r *TaskRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Task, error) {
	return scanTask(r.pool.QueryRow(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = $1`, id))
}

// GetByIDForUpdate locks the task row for the remainder of the transaction.
// Every lifecycle operation reads the task through this before conditioning
// any logic on its state.
func (r *TaskRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.Task, error) {
	return scanTask(tx.QueryRow(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = $1 FOR UPDATE`, id))
}

// UpdateTx writes the mutable task fields inside the caller's transaction.
func (r *TaskRepo) UpdateTx(ctx context.Context, tx pgx.Tx, t *models.Task) error {
	_, err := tx.Exec(ctx, `
		UPDATE tasks SET worker_id = $2, title = $3, description = $4, location = $5, duration = $6,
			price = $7, status = $8, rating = $9, rating_comment = $10, rated_at = $11,
			started_at = $12, completed_at = $13
		WHERE id = $1
	`, t.ID, t.WorkerID, t.Title, t.Description, t.Location, t.Duration, t.Price, t.Status,
		t.Rating, t.RatingComment, t.RatedAt, t.StartedAt, t.CompletedAt)
	return err
}

func (r *TaskRepo) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, "DELETE FROM tasks WHERE id = $1", id)
	return err
}

// ListAvailable returns unassigned POSTED tasks, newest first.
func (r *TaskRepo) ListAvailable(ctx context.Context, limit, offset int) ([]*models.Task, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+taskColumns+` FROM tasks
		WHERE status = $1 AND worker_id IS NULL
		ORDER BY created_at DESC LIMIT $2 OFFSET $3
	`, models.TaskStatusPosted, limit, offset)
	if err != nil {
		return nil, err
	}
	return collectTasks(rows)
}

func (r *TaskRepo) ListByRequester(ctx context.Context, requesterID uuid.UUID) ([]*models.Task, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+taskColumns+` FROM tasks WHERE requester_id = $1 ORDER BY created_at DESC
	`, requesterID)
	if err != nil {
		return nil, err
	}
	return collectTasks(rows)
}

func (r *TaskRepo) ListByWorker(ctx context.Context, workerID uuid.UUID) ([]*models.Task, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+taskColumns+` FROM tasks WHERE worker_id = $1 ORDER BY created_at DESC
	`, workerID)
	if err != nil {
		return nil, err
	}
	return collectTasks(rows)
}

func collectTasks(rows pgx.Rows) ([]*models.Task, error) {
	defer rows.Close()
	var list []*models.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, t)
	}
	return list, rows.Err()
}
