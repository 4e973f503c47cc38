package services

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/genielink/backend/internal/models"
)

// WalletStore is the minimal wallet repository interface for fund movements.
// The conditional mutations return pgx.ErrNoRows when the guarded balance
// would go negative.
type WalletStore interface {
	GetByUser(ctx context.Context, userID uuid.UUID) (*models.Wallet, error)
	GetForUpdate(ctx context.Context, tx pgx.Tx, userID uuid.UUID) (*models.Wallet, error)
	LockOrCreate(ctx context.Context, tx pgx.Tx, userID uuid.UUID) (*models.Wallet, error)
	AddToBalance(ctx context.Context, tx pgx.Tx, userID uuid.UUID, amount decimal.Decimal) (decimal.Decimal, error)
	DeductBalance(ctx context.Context, tx pgx.Tx, userID uuid.UUID, amount decimal.Decimal) (decimal.Decimal, error)
	MoveToEscrow(ctx context.Context, tx pgx.Tx, userID uuid.UUID, amount decimal.Decimal) (decimal.Decimal, error)
	MoveFromEscrow(ctx context.Context, tx pgx.Tx, userID uuid.UUID, amount decimal.Decimal) (decimal.Decimal, error)
	DeductEscrow(ctx context.Context, tx pgx.Tx, userID uuid.UUID, amount decimal.Decimal) (decimal.Decimal, error)
}

// WalletService implements the primitive fund movements. The tx-scoped
// methods assume the caller owns the transaction; they lock the wallet
// row(s) themselves before reading any balance they condition on.
type WalletService struct {
	db      TxBeginner
	wallets WalletStore
}

func NewWalletService(db TxBeginner, wallets WalletStore) *WalletService {
	return &WalletService{db: db, wallets: wallets}
}

func checkAmount(amount decimal.Decimal) error {
	if amount.Sign() <= 0 {
		return fmt.Errorf("%w: got %s", ErrInvalidAmount, amount)
	}
	return nil
}

// Deposit credits the spendable balance, creating the wallet on first use.
func (s *WalletService) Deposit(ctx context.Context, tx pgx.Tx, userID uuid.UUID, amount decimal.Decimal) (decimal.Decimal, error) {
	if err := checkAmount(amount); err != nil {
		return decimal.Zero, err
	}
	if _, err := s.wallets.LockOrCreate(ctx, tx, userID); err != nil {
		return decimal.Zero, err
	}
	return s.wallets.AddToBalance(ctx, tx, userID, amount)
}

// Withdraw debits the spendable balance.
func (s *WalletService) Withdraw(ctx context.Context, tx pgx.Tx, userID uuid.UUID, amount decimal.Decimal) (decimal.Decimal, error) {
	if err := checkAmount(amount); err != nil {
		return decimal.Zero, err
	}
	w, err := s.lockWallet(ctx, tx, userID)
	if err != nil {
		return decimal.Zero, err
	}
	if w.Balance.LessThan(amount) {
		return decimal.Zero, fmt.Errorf("%w: available %s, required %s", ErrInsufficientFunds, w.Balance, amount)
	}
	return s.wallets.DeductBalance(ctx, tx, userID, amount)
}

// HoldInEscrow moves amount from the spendable balance into escrow.
func (s *WalletService) HoldInEscrow(ctx context.Context, tx pgx.Tx, userID uuid.UUID, amount decimal.Decimal) (decimal.Decimal, error) {
	if err := checkAmount(amount); err != nil {
		return decimal.Zero, err
	}
	w, err := s.lockWallet(ctx, tx, userID)
	if err != nil {
		return decimal.Zero, err
	}
	if w.Balance.LessThan(amount) {
		return decimal.Zero, fmt.Errorf("%w: available %s, required %s", ErrInsufficientFunds, w.Balance, amount)
	}
	return s.wallets.MoveToEscrow(ctx, tx, userID, amount)
}

// ReleaseFromEscrow moves amount from escrow back into the spendable balance.
func (s *WalletService) ReleaseFromEscrow(ctx context.Context, tx pgx.Tx, userID uuid.UUID, amount decimal.Decimal) (decimal.Decimal, error) {
	if err := checkAmount(amount); err != nil {
		return decimal.Zero, err
	}
	w, err := s.lockWallet(ctx, tx, userID)
	if err != nil {
		return decimal.Zero, err
	}
	if w.EscrowBalance.LessThan(amount) {
		return decimal.Zero, fmt.Errorf("%w: escrow available %s, required %s", ErrInsufficientFunds, w.EscrowBalance, amount)
	}
	return s.wallets.MoveFromEscrow(ctx, tx, userID, amount)
}

// SettleEscrowToPayee moves amount from the payer's escrow to the payee's
// spendable balance. Both wallet rows are locked in ascending UUID order so
// concurrent settlements touching the same pair cannot deadlock. A payee who
// has never had a wallet gets one with zero balances before the credit.
// Returns the payee's new balance.
func (s *WalletService) SettleEscrowToPayee(ctx context.Context, tx pgx.Tx, payerID, payeeID uuid.UUID, amount decimal.Decimal) (decimal.Decimal, error) {
	if err := checkAmount(amount); err != nil {
		return decimal.Zero, err
	}

	// Settling to the payer's own wallet is an escrow release: one row, one lock.
	if payerID == payeeID {
		w, err := s.lockWallet(ctx, tx, payerID)
		if err != nil {
			return decimal.Zero, err
		}
		if w.EscrowBalance.LessThan(amount) {
			return decimal.Zero, fmt.Errorf("%w: escrow available %s, required %s", ErrInsufficientFunds, w.EscrowBalance, amount)
		}
		return s.wallets.MoveFromEscrow(ctx, tx, payerID, amount)
	}

	ids := []uuid.UUID{payerID, payeeID}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })

	var payer *models.Wallet
	for _, id := range ids {
		if id == payeeID {
			if _, err := s.wallets.LockOrCreate(ctx, tx, id); err != nil {
				return decimal.Zero, err
			}
			continue
		}
		w, err := s.lockWallet(ctx, tx, id)
		if err != nil {
			return decimal.Zero, err
		}
		payer = w
	}

	if payer.EscrowBalance.LessThan(amount) {
		return decimal.Zero, fmt.Errorf("%w: escrow available %s, required %s", ErrInsufficientFunds, payer.EscrowBalance, amount)
	}
	if _, err := s.wallets.DeductEscrow(ctx, tx, payerID, amount); err != nil {
		return decimal.Zero, err
	}
	return s.wallets.AddToBalance(ctx, tx, payeeID, amount)
}

func (s *WalletService) lockWallet(ctx context.Context, tx pgx.Tx, userID uuid.UUID) (*models.Wallet, error) {
	w, err := s.wallets.GetForUpdate(ctx, tx, userID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: wallet for user %s", ErrNotFound, userID)
	}
	return w, err
}

// --- single-call wrappers for the wallet HTTP surface ---

// Get returns the user's wallet, creating it lazily on first access.
func (s *WalletService) Get(ctx context.Context, userID uuid.UUID) (*models.Wallet, error) {
	w, err := s.wallets.GetByUser(ctx, userID)
	if err == nil {
		return w, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}
	err = withTx(ctx, s.db, func(tx pgx.Tx) error {
		w, err = s.wallets.LockOrCreate(ctx, tx, userID)
		return err
	})
	return w, err
}

// DepositFunds runs Deposit in its own transaction.
func (s *WalletService) DepositFunds(ctx context.Context, userID uuid.UUID, amount decimal.Decimal) (decimal.Decimal, error) {
	return s.inTx(ctx, func(tx pgx.Tx) (decimal.Decimal, error) {
		return s.Deposit(ctx, tx, userID, amount)
	})
}

// WithdrawFunds runs Withdraw in its own transaction.
func (s *WalletService) WithdrawFunds(ctx context.Context, userID uuid.UUID, amount decimal.Decimal) (decimal.Decimal, error) {
	return s.inTx(ctx, func(tx pgx.Tx) (decimal.Decimal, error) {
		return s.Withdraw(ctx, tx, userID, amount)
	})
}

// TransferToEscrow runs HoldInEscrow in its own transaction.
func (s *WalletService) TransferToEscrow(ctx context.Context, userID uuid.UUID, amount decimal.Decimal) (decimal.Decimal, error) {
	return s.inTx(ctx, func(tx pgx.Tx) (decimal.Decimal, error) {
		return s.HoldInEscrow(ctx, tx, userID, amount)
	})
}

// ReleaseEscrowFunds runs ReleaseFromEscrow in its own transaction.
func (s *WalletService) ReleaseEscrowFunds(ctx context.Context, userID uuid.UUID, amount decimal.Decimal) (decimal.Decimal, error) {
	return s.inTx(ctx, func(tx pgx.Tx) (decimal.Decimal, error) {
		return s.ReleaseFromEscrow(ctx, tx, userID, amount)
	})
}

func (s *WalletService) inTx(ctx context.Context, fn func(tx pgx.Tx) (decimal.Decimal, error)) (decimal.Decimal, error) {
	var out decimal.Decimal
	err := withTx(ctx, s.db, func(tx pgx.Tx) error {
		var err error
		out, err = fn(tx)
		return err
	})
	if err != nil {
		return decimal.Zero, err
	}
	return out, nil
}
