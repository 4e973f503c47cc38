package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/genielink/backend/internal/followup"
	"github.com/genielink/backend/internal/models"
)

// LifecycleTaskRepo is the task repository interface used by the lifecycle
// service. GetByIDForUpdate must hold the row lock until the transaction ends.
type LifecycleTaskRepo interface {
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.Task, error)
	UpdateTx(ctx context.Context, tx pgx.Tx, t *models.Task) error
}

// RewardStore increments a user's reward points after a rating.
type RewardStore interface {
	AddRewardPoints(ctx context.Context, tx pgx.Tx, userID uuid.UUID, points int) (int, error)
}

// Notifier records user-facing messages. Create runs in its own scope;
// failures are logged and dropped, never surfaced to the caller.
type Notifier interface {
	Create(ctx context.Context, userID uuid.UUID, title, message string) error
}

// EnqueueClaimFollowupFunc queues the post-claim followup job. Wired in main
// as a closure over river.Client.Insert; nil disables followups.
type EnqueueClaimFollowupFunc func(ctx context.Context, args followup.ClaimFollowupArgs) error

// ratingPoints maps a 1-5 star rating to the reward points granted to the
// requester. Awarded at most once per task.
var ratingPoints = map[int]int{5: 50, 4: 30, 3: 10, 2: 0, 1: 0}

// LifecycleService executes the atomic task lifecycle operations. Each
// operation is one transactional scope: task row locked first, then wallet
// rows, validation against locked state, mutation, commit. Notifications run
// after commit in a separate best-effort scope.
type LifecycleService struct {
	db              TxBeginner
	tasks           LifecycleTaskRepo
	wallets         *WalletService
	users           RewardStore
	notifier        Notifier
	enqueueFollowup EnqueueClaimFollowupFunc
	log             *slog.Logger
}

func NewLifecycleService(
	db TxBeginner,
	tasks LifecycleTaskRepo,
	wallets *WalletService,
	users RewardStore,
	notifier Notifier,
	enqueueFollowup EnqueueClaimFollowupFunc,
	log *slog.Logger,
) *LifecycleService {
	if log == nil {
		log = slog.Default()
	}
	return &LifecycleService{
		db:              db,
		tasks:           tasks,
		wallets:         wallets,
		users:           users,
		notifier:        notifier,
		enqueueFollowup: enqueueFollowup,
		log:             log,
	}
}

// Claim assigns a POSTED task to a worker and funds escrow from the
// requester's balance, all in one scope. Exactly one of two concurrent
// claims can win the row lock and find the task still POSTED.
func (s *LifecycleService) Claim(ctx context.Context, taskID, workerID uuid.UUID) (*models.Task, error) {
	var task *models.Task
	var price decimal.Decimal
	err := withTx(ctx, s.db, func(tx pgx.Tx) error {
		t, err := s.lockTask(ctx, tx, taskID)
		if err != nil {
			return err
		}
		if t.WorkerID != nil {
			return fmt.Errorf("%w: task %s", ErrAlreadyAssigned, taskID)
		}
		if t.RequesterID == workerID {
			return fmt.Errorf("%w: cannot claim your own task", ErrAccessDenied)
		}
		if err := transition(t, models.TaskStatusAccepted); err != nil {
			return err
		}
		if t.Price == nil || t.Price.Sign() <= 0 {
			return fmt.Errorf("%w: task has no claimable price", ErrInvalidTransition)
		}
		price = *t.Price
		if _, err := s.wallets.HoldInEscrow(ctx, tx, t.RequesterID, price); err != nil {
			return err
		}
		t.WorkerID = &workerID
		if err := s.tasks.UpdateTx(ctx, tx, t); err != nil {
			return err
		}
		task = t
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.notify(ctx, task.RequesterID, "Escrow funded",
		fmt.Sprintf("%s has been moved to escrow for your task %q.", price, task.Title))

	if s.enqueueFollowup != nil {
		args := followup.ClaimFollowupArgs{TaskID: task.ID, RequesterID: task.RequesterID, WorkerID: workerID}
		if err := s.enqueueFollowup(ctx, args); err != nil {
			s.log.Warn("claim followup enqueue failed", "task_id", task.ID, "error", err)
		}
	}
	return task, nil
}

// Start marks an ACCEPTED task as IN_PROGRESS. Only the assigned worker may
// start it; started_at is set exactly once, here.
func (s *LifecycleService) Start(ctx context.Context, taskID, workerID uuid.UUID) (*models.Task, error) {
	var task *models.Task
	err := withTx(ctx, s.db, func(tx pgx.Tx) error {
		t, err := s.lockTask(ctx, tx, taskID)
		if err != nil {
			return err
		}
		if err := transition(t, models.TaskStatusInProgress); err != nil {
			return err
		}
		if t.WorkerID == nil || *t.WorkerID != workerID {
			return fmt.Errorf("%w: task %s is not assigned to you", ErrAccessDenied, taskID)
		}
		now := time.Now().UTC()
		t.StartedAt = &now
		if err := s.tasks.UpdateTx(ctx, tx, t); err != nil {
			return err
		}
		task = t
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.notify(ctx, task.RequesterID, "Your task has started",
		fmt.Sprintf("The worker has started on your task %q.", task.Title))
	return task, nil
}

// Complete marks an IN_PROGRESS task COMPLETED and settles the escrowed price
// to the worker in the same scope. The price is re-checked under the lock
// even though claim already validated it.
func (s *LifecycleService) Complete(ctx context.Context, taskID, workerID uuid.UUID) (*models.Task, error) {
	var task *models.Task
	var price decimal.Decimal
	err := withTx(ctx, s.db, func(tx pgx.Tx) error {
		t, err := s.lockTask(ctx, tx, taskID)
		if err != nil {
			return err
		}
		if err := transition(t, models.TaskStatusCompleted); err != nil {
			return err
		}
		if t.WorkerID == nil || *t.WorkerID != workerID {
			return fmt.Errorf("%w: task %s is not assigned to you", ErrAccessDenied, taskID)
		}
		if t.Price == nil || t.Price.Sign() <= 0 {
			return fmt.Errorf("%w: task has no payable price", ErrInvalidTransition)
		}
		price = *t.Price
		now := time.Now().UTC()
		t.CompletedAt = &now
		if err := s.tasks.UpdateTx(ctx, tx, t); err != nil {
			return err
		}
		if _, err := s.wallets.SettleEscrowToPayee(ctx, tx, t.RequesterID, workerID, price); err != nil {
			return err
		}
		task = t
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.notify(ctx, task.RequesterID, "Task completed and payment released",
		fmt.Sprintf("Your task %q is complete. %s has been released from escrow to the worker.", task.Title, price))
	s.notify(ctx, workerID, "Payment received",
		fmt.Sprintf("You have received %s for completing %q.", price, task.Title))
	return task, nil
}

// Unclaim undoes an accepted assignment: only the task owner may do it, only
// while the task is still ACCEPTED, and the escrowed price flows back to the
// owner's spendable balance in the same scope.
func (s *LifecycleService) Unclaim(ctx context.Context, taskID, requesterID uuid.UUID) (*models.Task, error) {
	var task *models.Task
	err := withTx(ctx, s.db, func(tx pgx.Tx) error {
		t, err := s.lockTask(ctx, tx, taskID)
		if err != nil {
			return err
		}
		if t.RequesterID != requesterID {
			return fmt.Errorf("%w: task %s is not yours", ErrAccessDenied, taskID)
		}
		if t.Status != models.TaskStatusAccepted {
			return fmt.Errorf("%w: cannot unclaim task in %s status", ErrInvalidTransition, t.Status)
		}
		if t.Price == nil {
			return fmt.Errorf("%w: accepted task has no price", ErrInvalidTransition)
		}
		if _, err := s.wallets.ReleaseFromEscrow(ctx, tx, t.RequesterID, *t.Price); err != nil {
			return err
		}
		t.WorkerID = nil
		t.Status = models.TaskStatusPosted
		if err := s.tasks.UpdateTx(ctx, tx, t); err != nil {
			return err
		}
		task = t
		return nil
	})
	if err != nil {
		return nil, err
	}
	return task, nil
}

// RatingResult reports the outcome of rating a completed task.
type RatingResult struct {
	Task          *models.Task `json:"task"`
	PointsAwarded int          `json:"points_awarded"`
	TotalPoints   int          `json:"total_points"`
}

// Rate lets the assigned worker rate the requester once the task is
// COMPLETED. The requester earns reward points from a fixed tier table,
// exactly once per task; a second attempt fails out of hand.
func (s *LifecycleService) Rate(ctx context.Context, taskID, raterID uuid.UUID, rating int, comment string) (*RatingResult, error) {
	if rating < 1 || rating > 5 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidRating, rating)
	}
	result := &RatingResult{PointsAwarded: ratingPoints[rating]}
	err := withTx(ctx, s.db, func(tx pgx.Tx) error {
		t, err := s.lockTask(ctx, tx, taskID)
		if err != nil {
			return err
		}
		if t.WorkerID == nil || *t.WorkerID != raterID {
			return fmt.Errorf("%w: task %s is not assigned to you", ErrAccessDenied, taskID)
		}
		if t.Status != models.TaskStatusCompleted {
			return fmt.Errorf("%w: task must be COMPLETED before rating", ErrInvalidTransition)
		}
		if t.Rating != nil {
			return fmt.Errorf("%w: task already rated", ErrInvalidTransition)
		}
		now := time.Now().UTC()
		t.Rating = &rating
		t.RatedAt = &now
		if comment != "" {
			t.RatingComment = &comment
		}
		if err := s.tasks.UpdateTx(ctx, tx, t); err != nil {
			return err
		}
		total, err := s.users.AddRewardPoints(ctx, tx, t.RequesterID, result.PointsAwarded)
		if err != nil {
			return err
		}
		result.Task = t
		result.TotalPoints = total
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.notify(ctx, result.Task.RequesterID, "You received a rating",
		fmt.Sprintf("You earned %d reward points from a %d-star rating on %q.", result.PointsAwarded, rating, result.Task.Title))
	return result, nil
}

// transition advances t to target after consulting the state machine table.
// Repeating the current status is rejected here: lifecycle operations are
// one-shot, not idempotent.
func transition(t *models.Task, target string) error {
	if t.Status == target || !models.ValidTransition(t.Status, target) {
		return invalidTransitionErr(t.Status)
	}
	t.Status = target
	return nil
}

func (s *LifecycleService) lockTask(ctx context.Context, tx pgx.Tx, taskID uuid.UUID) (*models.Task, error) {
	t, err := s.tasks.GetByIDForUpdate(ctx, tx, taskID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: task %s", ErrNotFound, taskID)
	}
	return t, err
}

// notify records a notification in its own scope. A failure here must never
// undo a lifecycle change that already committed, so it is only logged.
func (s *LifecycleService) notify(ctx context.Context, userID uuid.UUID, title, message string) {
	if err := s.notifier.Create(ctx, userID, title, message); err != nil {
		s.log.Warn("notification failed", "user_id", userID, "title", title, "error", err)
	}
}
