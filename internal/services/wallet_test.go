package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"github.com/genielink/backend/internal/models"
)

// ---------------------------------------------------------------------------
// In-memory mocks. These let us test the real service logic without a
// database; the mutation methods enforce the same non-negativity guards as
// the conditional UPDATEs they stand in for.
// ---------------------------------------------------------------------------

// --- noopTx satisfies pgx.Tx for test use; only Commit/Rollback are called. ---

type noopTx struct{}

func (noopTx) Begin(context.Context) (pgx.Tx, error) { return noopTx{}, nil }
func (noopTx) Commit(context.Context) error          { return nil }
func (noopTx) Rollback(context.Context) error        { return nil }
func (noopTx) Exec(context.Context, string, ...any) (pgconn.CommandTag, error) {
	return pgconn.NewCommandTag(""), nil
}
func (noopTx) Query(context.Context, string, ...any) (pgx.Rows, error) { return nil, nil }
func (noopTx) QueryRow(context.Context, string, ...any) pgx.Row        { return nil }
func (noopTx) CopyFrom(context.Context, pgx.Identifier, []string, pgx.CopyFromSource) (int64, error) {
	return 0, nil
}
func (noopTx) SendBatch(context.Context, *pgx.Batch) pgx.BatchResults { return nil }
func (noopTx) LargeObjects() pgx.LargeObjects                         { return pgx.LargeObjects{} }
func (noopTx) Prepare(context.Context, string, string) (*pgconn.StatementDescription, error) {
	return nil, nil
}
func (noopTx) Conn() *pgx.Conn { return nil }

// --- TxBeginner mock ---

type mockPool struct{}

func (mockPool) Begin(context.Context) (pgx.Tx, error) { return noopTx{}, nil }

// --- WalletStore mock ---

type mockWalletStore struct {
	mu      sync.Mutex
	wallets map[uuid.UUID]*models.Wallet
	lockLog []uuid.UUID
}

func newMockWalletStore(ws ...*models.Wallet) *mockWalletStore {
	m := &mockWalletStore{wallets: make(map[uuid.UUID]*models.Wallet)}
	for _, w := range ws {
		cp := *w
		m.wallets[w.UserID] = &cp
	}
	return m
}

func (m *mockWalletStore) GetByUser(_ context.Context, userID uuid.UUID) (*models.Wallet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.wallets[userID]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *w
	return &cp, nil
}

func (m *mockWalletStore) GetForUpdate(_ context.Context, _ pgx.Tx, userID uuid.UUID) (*models.Wallet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lockLog = append(m.lockLog, userID)
	w, ok := m.wallets[userID]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *w
	return &cp, nil
}

func (m *mockWalletStore) LockOrCreate(_ context.Context, _ pgx.Tx, userID uuid.UUID) (*models.Wallet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lockLog = append(m.lockLog, userID)
	w, ok := m.wallets[userID]
	if !ok {
		w = &models.Wallet{UserID: userID, Balance: decimal.Zero, EscrowBalance: decimal.Zero}
		m.wallets[userID] = w
	}
	cp := *w
	return &cp, nil
}

func (m *mockWalletStore) AddToBalance(_ context.Context, _ pgx.Tx, userID uuid.UUID, amount decimal.Decimal) (decimal.Decimal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.wallets[userID]
	if !ok {
		return decimal.Zero, pgx.ErrNoRows
	}
	w.Balance = w.Balance.Add(amount)
	return w.Balance, nil
}

func (m *mockWalletStore) DeductBalance(_ context.Context, _ pgx.Tx, userID uuid.UUID, amount decimal.Decimal) (decimal.Decimal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.wallets[userID]
	if !ok || w.Balance.LessThan(amount) {
		return decimal.Zero, pgx.ErrNoRows
	}
	w.Balance = w.Balance.Sub(amount)
	return w.Balance, nil
}

func (m *mockWalletStore) MoveToEscrow(_ context.Context, _ pgx.Tx, userID uuid.UUID, amount decimal.Decimal) (decimal.Decimal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.wallets[userID]
	if !ok || w.Balance.LessThan(amount) {
		return decimal.Zero, pgx.ErrNoRows
	}
	w.Balance = w.Balance.Sub(amount)
	w.EscrowBalance = w.EscrowBalance.Add(amount)
	return w.Balance, nil
}

func (m *mockWalletStore) MoveFromEscrow(_ context.Context, _ pgx.Tx, userID uuid.UUID, amount decimal.Decimal) (decimal.Decimal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.wallets[userID]
	if !ok || w.EscrowBalance.LessThan(amount) {
		return decimal.Zero, pgx.ErrNoRows
	}
	w.EscrowBalance = w.EscrowBalance.Sub(amount)
	w.Balance = w.Balance.Add(amount)
	return w.Balance, nil
}

func (m *mockWalletStore) DeductEscrow(_ context.Context, _ pgx.Tx, userID uuid.UUID, amount decimal.Decimal) (decimal.Decimal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.wallets[userID]
	if !ok || w.EscrowBalance.LessThan(amount) {
		return decimal.Zero, pgx.ErrNoRows
	}
	w.EscrowBalance = w.EscrowBalance.Sub(amount)
	return w.EscrowBalance, nil
}

func (m *mockWalletStore) balance(id uuid.UUID) decimal.Decimal {
	m.mu.Lock()
	defer m.mu.Unlock()
	if w, ok := m.wallets[id]; ok {
		return w.Balance
	}
	return decimal.Zero
}

func (m *mockWalletStore) escrow(id uuid.UUID) decimal.Decimal {
	m.mu.Lock()
	defer m.mu.Unlock()
	if w, ok := m.wallets[id]; ok {
		return w.EscrowBalance
	}
	return decimal.Zero
}

func (m *mockWalletStore) locks() []uuid.UUID {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]uuid.UUID, len(m.lockLog))
	copy(out, m.lockLog)
	return out
}

// ---------------------------------------------------------------------------
// Test helpers
// ---------------------------------------------------------------------------

func dec(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

func wallet(userID uuid.UUID, balance, escrow int64) *models.Wallet {
	return &models.Wallet{UserID: userID, Balance: dec(balance), EscrowBalance: dec(escrow)}
}

func eq(t *testing.T, name string, got, want decimal.Decimal) {
	t.Helper()
	if !got.Equal(want) {
		t.Errorf("%s: got %s, want %s", name, got, want)
	}
}

// ---------------------------------------------------------------------------
// Deposit / Withdraw
// ---------------------------------------------------------------------------

func TestDeposit_CreatesWalletOnFirstUse(t *testing.T) {
	user := uuid.New()
	store := newMockWalletStore()
	svc := NewWalletService(mockPool{}, store)

	got, err := svc.DepositFunds(context.Background(), user, dec(250))
	if err != nil {
		t.Fatalf("DepositFunds: %v", err)
	}
	eq(t, "returned balance", got, dec(250))
	eq(t, "stored balance", store.balance(user), dec(250))
	eq(t, "escrow untouched", store.escrow(user), dec(0))
}

func TestDeposit_RejectsNonPositiveAmount(t *testing.T) {
	user := uuid.New()
	store := newMockWalletStore(wallet(user, 100, 0))
	svc := NewWalletService(mockPool{}, store)

	for _, amount := range []decimal.Decimal{dec(0), dec(-50)} {
		if _, err := svc.DepositFunds(context.Background(), user, amount); !errors.Is(err, ErrInvalidAmount) {
			t.Errorf("deposit %s: expected ErrInvalidAmount, got %v", amount, err)
		}
	}
	// The amount check runs before any row lock is taken.
	if n := len(store.locks()); n != 0 {
		t.Errorf("expected no wallet locks for rejected amounts, got %d", n)
	}
	eq(t, "balance unchanged", store.balance(user), dec(100))
}

func TestWithdraw_Success(t *testing.T) {
	user := uuid.New()
	store := newMockWalletStore(wallet(user, 300, 0))
	svc := NewWalletService(mockPool{}, store)

	got, err := svc.WithdrawFunds(context.Background(), user, dec(120))
	if err != nil {
		t.Fatalf("WithdrawFunds: %v", err)
	}
	eq(t, "returned balance", got, dec(180))
	eq(t, "stored balance", store.balance(user), dec(180))
}

func TestWithdraw_InsufficientFunds(t *testing.T) {
	user := uuid.New()
	store := newMockWalletStore(wallet(user, 50, 0))
	svc := NewWalletService(mockPool{}, store)

	_, err := svc.WithdrawFunds(context.Background(), user, dec(80))
	if !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}
	eq(t, "balance unchanged", store.balance(user), dec(50))
}

func TestWithdraw_MissingWallet(t *testing.T) {
	store := newMockWalletStore()
	svc := NewWalletService(mockPool{}, store)

	_, err := svc.WithdrawFunds(context.Background(), uuid.New(), dec(10))
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

// ---------------------------------------------------------------------------
// Escrow primitives
// ---------------------------------------------------------------------------

func TestHoldInEscrow_MovesFunds(t *testing.T) {
	user := uuid.New()
	store := newMockWalletStore(wallet(user, 1500, 0))
	svc := NewWalletService(mockPool{}, store)

	got, err := svc.TransferToEscrow(context.Background(), user, dec(1000))
	if err != nil {
		t.Fatalf("TransferToEscrow: %v", err)
	}
	eq(t, "returned balance", got, dec(500))
	eq(t, "spendable", store.balance(user), dec(500))
	eq(t, "escrow", store.escrow(user), dec(1000))
}

func TestHoldInEscrow_InsufficientFunds(t *testing.T) {
	user := uuid.New()
	store := newMockWalletStore(wallet(user, 500, 0))
	svc := NewWalletService(mockPool{}, store)

	_, err := svc.TransferToEscrow(context.Background(), user, dec(1000))
	if !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}
	eq(t, "spendable unchanged", store.balance(user), dec(500))
	eq(t, "escrow unchanged", store.escrow(user), dec(0))
}

func TestReleaseFromEscrow(t *testing.T) {
	user := uuid.New()
	store := newMockWalletStore(wallet(user, 200, 800))
	svc := NewWalletService(mockPool{}, store)

	got, err := svc.ReleaseEscrowFunds(context.Background(), user, dec(800))
	if err != nil {
		t.Fatalf("ReleaseEscrowFunds: %v", err)
	}
	eq(t, "returned balance", got, dec(1000))
	eq(t, "escrow drained", store.escrow(user), dec(0))

	// The held amount is gone now; a second release must fail.
	if _, err := svc.ReleaseEscrowFunds(context.Background(), user, dec(1)); !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds on empty escrow, got %v", err)
	}
}

// ---------------------------------------------------------------------------
// SettleEscrowToPayee
// ---------------------------------------------------------------------------

func TestSettle_CreatesPayeeWallet(t *testing.T) {
	payer := uuid.New()
	payee := uuid.New()
	store := newMockWalletStore(wallet(payer, 0, 1000))
	svc := NewWalletService(mockPool{}, store)

	got, err := svc.SettleEscrowToPayee(context.Background(), noopTx{}, payer, payee, dec(1000))
	if err != nil {
		t.Fatalf("SettleEscrowToPayee: %v", err)
	}
	eq(t, "payee balance", got, dec(1000))
	eq(t, "payer escrow", store.escrow(payer), dec(0))
	eq(t, "payee stored balance", store.balance(payee), dec(1000))
}

func TestSettle_LocksWalletsInUUIDOrder(t *testing.T) {
	payer := uuid.New()
	payee := uuid.New()
	store := newMockWalletStore(wallet(payer, 0, 100), wallet(payee, 0, 0))
	svc := NewWalletService(mockPool{}, store)

	if _, err := svc.SettleEscrowToPayee(context.Background(), noopTx{}, payer, payee, dec(100)); err != nil {
		t.Fatalf("SettleEscrowToPayee: %v", err)
	}

	locks := store.locks()
	if len(locks) != 2 {
		t.Fatalf("expected 2 row locks, got %d", len(locks))
	}
	if locks[0].String() > locks[1].String() {
		t.Errorf("locks taken out of order: %s before %s", locks[0], locks[1])
	}
}

func TestSettle_SamePayerAndPayee(t *testing.T) {
	user := uuid.New()
	store := newMockWalletStore(wallet(user, 100, 300))
	svc := NewWalletService(mockPool{}, store)

	got, err := svc.SettleEscrowToPayee(context.Background(), noopTx{}, user, user, dec(200))
	if err != nil {
		t.Fatalf("SettleEscrowToPayee: %v", err)
	}
	eq(t, "returned balance", got, dec(300))
	eq(t, "balance", store.balance(user), dec(300))
	eq(t, "escrow", store.escrow(user), dec(100))

	// A single row means a single lock.
	if n := len(store.locks()); n != 1 {
		t.Errorf("expected 1 row lock, got %d", n)
	}
}

func TestSettle_InsufficientEscrow(t *testing.T) {
	payer := uuid.New()
	payee := uuid.New()
	store := newMockWalletStore(wallet(payer, 500, 300), wallet(payee, 0, 0))
	svc := NewWalletService(mockPool{}, store)

	_, err := svc.SettleEscrowToPayee(context.Background(), noopTx{}, payer, payee, dec(400))
	if !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}
	eq(t, "payer escrow unchanged", store.escrow(payer), dec(300))
	eq(t, "payee balance unchanged", store.balance(payee), dec(0))
}

// ---------------------------------------------------------------------------
// Get
// ---------------------------------------------------------------------------

func TestGet_LazyCreate(t *testing.T) {
	user := uuid.New()
	store := newMockWalletStore()
	svc := NewWalletService(mockPool{}, store)

	w, err := svc.Get(context.Background(), user)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	eq(t, "new wallet balance", w.Balance, dec(0))
	eq(t, "new wallet escrow", w.EscrowBalance, dec(0))

	// Second call reads the existing row without locking.
	before := len(store.locks())
	if _, err := svc.Get(context.Background(), user); err != nil {
		t.Fatalf("Get (existing): %v", err)
	}
	if after := len(store.locks()); after != before {
		t.Errorf("existing wallet read should not lock, locks went %d -> %d", before, after)
	}
}
