package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/genielink/backend/internal/models"
)

// WalletRepo persists the per-user balance/escrow pair. Every mutation is a
// single conditional UPDATE so the non-negativity of both columns is enforced
// by the row itself: an UPDATE whose guard fails matches no row and the caller
// sees pgx.ErrNoRows instead of a clamped balance.
type WalletRepo struct {
	pool *pgxpool.Pool
}

func NewWalletRepo(pool *pgxpool.Pool) *WalletRepo {
	return &WalletRepo{pool: pool}
}

func (r *WalletRepo) GetByUser(ctx context.Context, userID uuid.UUID) (*models.Wallet, error) {
	var w models.Wallet
	err := r.pool.QueryRow(ctx, `
		SELECT user_id, balance, escrow_balance FROM wallets WHERE user_id = $1
	`, userID).Scan(&w.UserID, &w.Balance, &w.EscrowBalance)
	if err != nil {
		return nil, err
	}
	return &w, nil
}

// GetForUpdate locks the wallet row for the remainder of the transaction.
func (r *WalletRepo) GetForUpdate(ctx context.Context, tx pgx.Tx, userID uuid.UUID) (*models.Wallet, error) {
	var w models.Wallet
	err := tx.QueryRow(ctx, `
		SELECT user_id, balance, escrow_balance FROM wallets WHERE user_id = $1 FOR UPDATE
	`, userID).Scan(&w.UserID, &w.Balance, &w.EscrowBalance)
	if err != nil {
		return nil, err
	}
	return &w, nil
}

// LockOrCreate returns the locked wallet row, creating it with zero balances
// first if the user has never touched their wallet. The insert tolerates a
// concurrent creation; the row is always locked before being returned.
func (r *WalletRepo) LockOrCreate(ctx context.Context, tx pgx.Tx, userID uuid.UUID) (*models.Wallet, error) {
	w, err := r.GetForUpdate(ctx, tx, userID)
	if err == nil {
		return w, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}
	if _, err := tx.Exec(ctx, `
		INSERT INTO wallets (user_id) VALUES ($1) ON CONFLICT (user_id) DO NOTHING
	`, userID); err != nil {
		return nil, err
	}
	return r.GetForUpdate(ctx, tx, userID)
}

// AddToBalance credits the spendable balance and returns the new value.
func (r *WalletRepo) AddToBalance(ctx context.Context, tx pgx.Tx, userID uuid.UUID, amount decimal.Decimal) (decimal.Decimal, error) {
	var balance decimal.Decimal
	err := tx.QueryRow(ctx, `
		UPDATE wallets SET balance = balance + $1 WHERE user_id = $2
		RETURNING balance
	`, amount, userID).Scan(&balance)
	return balance, err
}

// DeductBalance debits the spendable balance if it covers amount.
// Returns pgx.ErrNoRows when it does not.
func (r *WalletRepo) DeductBalance(ctx context.Context, tx pgx.Tx, userID uuid.UUID, amount decimal.Decimal) (decimal.Decimal, error) {
	var balance decimal.Decimal
	err := tx.QueryRow(ctx, `
		UPDATE wallets SET balance = balance - $1 WHERE user_id = $2 AND balance >= $1
		RETURNING balance
	`, amount, userID).Scan(&balance)
	return balance, err
}

// MoveToEscrow shifts amount from balance into escrow in one statement.
func (r *WalletRepo) MoveToEscrow(ctx context.Context, tx pgx.Tx, userID uuid.UUID, amount decimal.Decimal) (decimal.Decimal, error) {
	var balance decimal.Decimal
	err := tx.QueryRow(ctx, `
		UPDATE wallets SET balance = balance - $1, escrow_balance = escrow_balance + $1
		WHERE user_id = $2 AND balance >= $1
		RETURNING balance
	`, amount, userID).Scan(&balance)
	return balance, err
}

// MoveFromEscrow shifts amount from escrow back into balance.
func (r *WalletRepo) MoveFromEscrow(ctx context.Context, tx pgx.Tx, userID uuid.UUID, amount decimal.Decimal) (decimal.Decimal, error) {
	var balance decimal.Decimal
	err := tx.QueryRow(ctx, `
		UPDATE wallets SET escrow_balance = escrow_balance - $1, balance = balance + $1
		WHERE user_id = $2 AND escrow_balance >= $1
		RETURNING balance
	`, amount, userID).Scan(&balance)
	return balance, err
}

// DeductEscrow debits the escrow balance if it covers amount.
func (r *WalletRepo) DeductEscrow(ctx context.Context, tx pgx.Tx, userID uuid.UUID, amount decimal.Decimal) (decimal.Decimal, error) {
	var escrow decimal.Decimal
	err := tx.QueryRow(ctx, `
		UPDATE wallets SET escrow_balance = escrow_balance - $1
		WHERE user_id = $2 AND escrow_balance >= $1
		RETURNING escrow_balance
	`, amount, userID).Scan(&escrow)
	return escrow, err
}
