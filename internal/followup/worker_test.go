package followup

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/riverqueue/river"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/genielink/backend/internal/models"
)

// ---------------------------------------------------------------------------
// Mocks
// ---------------------------------------------------------------------------

type stubTasks struct {
	task *models.Task
}

func (s *stubTasks) GetByID(_ context.Context, _ uuid.UUID) (*models.Task, error) {
	if s.task == nil {
		return nil, pgx.ErrNoRows
	}
	return s.task, nil
}

type stubWallets struct {
	wallet *models.Wallet
}

func (s *stubWallets) GetByUser(_ context.Context, _ uuid.UUID) (*models.Wallet, error) {
	if s.wallet == nil {
		return nil, pgx.ErrNoRows
	}
	return s.wallet, nil
}

type recordingMessages struct {
	created []*models.Message
}

func (r *recordingMessages) Create(_ context.Context, m *models.Message) error {
	r.created = append(r.created, m)
	return nil
}

type recordingNotifier struct {
	titles []string
}

func (r *recordingNotifier) Create(_ context.Context, _ uuid.UUID, title, _ string) error {
	r.titles = append(r.titles, title)
	return nil
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

type fixture struct {
	tasks    *stubTasks
	wallets  *stubWallets
	messages *recordingMessages
	notifier *recordingNotifier
	worker   *ClaimFollowupWorker
}

func newFixture(task *models.Task, wallet *models.Wallet) *fixture {
	f := &fixture{
		tasks:    &stubTasks{task: task},
		wallets:  &stubWallets{wallet: wallet},
		messages: &recordingMessages{},
		notifier: &recordingNotifier{},
	}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	f.worker = NewClaimFollowupWorker(f.tasks, f.wallets, f.messages, f.notifier, log)
	return f
}

func claimedTask(requester, worker uuid.UUID) *models.Task {
	return &models.Task{
		ID:          uuid.New(),
		RequesterID: requester,
		WorkerID:    &worker,
		Title:       "Mount a TV bracket",
		Status:      models.TaskStatusAccepted,
	}
}

func job(args ClaimFollowupArgs) *river.Job[ClaimFollowupArgs] {
	return &river.Job[ClaimFollowupArgs]{Args: args}
}

// ---------------------------------------------------------------------------
// Tests
// ---------------------------------------------------------------------------

func TestWork_SendsIntroMessage(t *testing.T) {
	requester := uuid.New()
	worker := uuid.New()
	task := claimedTask(requester, worker)
	wallet := &models.Wallet{UserID: requester, Balance: decimal.NewFromInt(900)}

	f := newFixture(task, wallet)
	err := f.worker.Work(context.Background(), job(ClaimFollowupArgs{
		TaskID: task.ID, RequesterID: requester, WorkerID: worker,
	}))
	require.NoError(t, err)

	require.Len(t, f.messages.created, 1)
	msg := f.messages.created[0]
	assert.Equal(t, task.ID, msg.TaskID)
	assert.Equal(t, worker, msg.SenderID)
	assert.Contains(t, msg.Content, task.Title)

	// Balance is comfortably above the threshold, no nudge.
	assert.Empty(t, f.notifier.titles)
}

func TestWork_LowBalanceNudge(t *testing.T) {
	requester := uuid.New()
	worker := uuid.New()
	task := claimedTask(requester, worker)
	wallet := &models.Wallet{UserID: requester, Balance: decimal.NewFromInt(40)}

	f := newFixture(task, wallet)
	err := f.worker.Work(context.Background(), job(ClaimFollowupArgs{
		TaskID: task.ID, RequesterID: requester, WorkerID: worker,
	}))
	require.NoError(t, err)

	require.Len(t, f.notifier.titles, 1)
	assert.Equal(t, "Low balance", f.notifier.titles[0])
}

func TestWork_SkipsStaleClaim(t *testing.T) {
	requester := uuid.New()
	originalWorker := uuid.New()
	task := claimedTask(requester, uuid.New()) // reassigned to someone else

	f := newFixture(task, &models.Wallet{UserID: requester, Balance: decimal.NewFromInt(10)})
	err := f.worker.Work(context.Background(), job(ClaimFollowupArgs{
		TaskID: task.ID, RequesterID: requester, WorkerID: originalWorker,
	}))
	require.NoError(t, err)

	assert.Empty(t, f.messages.created, "stale claim should produce no message")
	assert.Empty(t, f.notifier.titles)
}

func TestWork_SkipsUnclaimedTask(t *testing.T) {
	requester := uuid.New()
	worker := uuid.New()
	task := claimedTask(requester, worker)
	task.WorkerID = nil
	task.Status = models.TaskStatusPosted

	f := newFixture(task, &models.Wallet{UserID: requester, Balance: decimal.NewFromInt(10)})
	err := f.worker.Work(context.Background(), job(ClaimFollowupArgs{
		TaskID: task.ID, RequesterID: requester, WorkerID: worker,
	}))
	require.NoError(t, err)
	assert.Empty(t, f.messages.created)
}

func TestWork_MissingTaskIsRetryable(t *testing.T) {
	f := newFixture(nil, nil)
	err := f.worker.Work(context.Background(), job(ClaimFollowupArgs{
		TaskID: uuid.New(), RequesterID: uuid.New(), WorkerID: uuid.New(),
	}))
	require.Error(t, err)
}

func TestWork_WalletLookupFailureIsNotFatal(t *testing.T) {
	requester := uuid.New()
	worker := uuid.New()
	task := claimedTask(requester, worker)

	f := newFixture(task, nil) // wallet lookup fails
	err := f.worker.Work(context.Background(), job(ClaimFollowupArgs{
		TaskID: task.ID, RequesterID: requester, WorkerID: worker,
	}))
	require.NoError(t, err)
	require.Len(t, f.messages.created, 1)
}
