package followup

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/riverqueue/river"
	"github.com/shopspring/decimal"

	"github.com/genielink/backend/internal/models"
)

// lowBalanceThreshold is the spendable balance below which the requester gets
// a top-up nudge after funding an escrow hold.
var lowBalanceThreshold = decimal.NewFromInt(100)

// ClaimFollowupArgs describes the background work queued after a successful
// claim: an introductory chat message from the worker plus a low-balance
// check on the requester. Queued outside the claim transaction; losing one
// never affects the claim itself.
type ClaimFollowupArgs struct {
	TaskID      uuid.UUID `json:"task_id"`
	RequesterID uuid.UUID `json:"requester_id"`
	WorkerID    uuid.UUID `json:"worker_id"`
}

func (ClaimFollowupArgs) Kind() string { return "claim_followup" }

// TaskLookup loads the task to confirm the claim still stands.
type TaskLookup interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Task, error)
}

// WalletLookup reads the requester's wallet for the low-balance check.
type WalletLookup interface {
	GetByUser(ctx context.Context, userID uuid.UUID) (*models.Wallet, error)
}

// MessageStore appends chat messages.
type MessageStore interface {
	Create(ctx context.Context, m *models.Message) error
}

// Notifier records user-facing notifications.
type Notifier interface {
	Create(ctx context.Context, userID uuid.UUID, title, message string) error
}

type ClaimFollowupWorker struct {
	river.WorkerDefaults[ClaimFollowupArgs]
	tasks    TaskLookup
	wallets  WalletLookup
	messages MessageStore
	notifier Notifier
	log      *slog.Logger
}

func NewClaimFollowupWorker(tasks TaskLookup, wallets WalletLookup, messages MessageStore, notifier Notifier, log *slog.Logger) *ClaimFollowupWorker {
	if log == nil {
		log = slog.Default()
	}
	return &ClaimFollowupWorker{tasks: tasks, wallets: wallets, messages: messages, notifier: notifier, log: log}
}

func (w *ClaimFollowupWorker) Work(ctx context.Context, job *river.Job[ClaimFollowupArgs]) error {
	args := job.Args

	task, err := w.tasks.GetByID(ctx, args.TaskID)
	if err != nil {
		return fmt.Errorf("load task %s: %w", args.TaskID, err)
	}
	// The claim may have been undone before this ran; nothing to do then.
	if task.WorkerID == nil || *task.WorkerID != args.WorkerID {
		return nil
	}

	msg := &models.Message{
		ID:       uuid.New(),
		TaskID:   args.TaskID,
		SenderID: args.WorkerID,
		Content:  fmt.Sprintf("Hi! I've picked up your task %q and will be in touch shortly.", task.Title),
	}
	if err := w.messages.Create(ctx, msg); err != nil {
		return fmt.Errorf("intro message for task %s: %w", args.TaskID, err)
	}

	wallet, err := w.wallets.GetByUser(ctx, args.RequesterID)
	if err != nil {
		w.log.Warn("claim followup: wallet lookup failed", "user_id", args.RequesterID, "error", err)
		return nil
	}
	if wallet.Balance.LessThan(lowBalanceThreshold) {
		if err := w.notifier.Create(ctx, args.RequesterID, "Low balance",
			fmt.Sprintf("Your spendable balance is down to %s. Top up to keep posting tasks.", wallet.Balance)); err != nil {
			w.log.Warn("claim followup: low balance notification failed", "user_id", args.RequesterID, "error", err)
		}
	}
	return nil
}
