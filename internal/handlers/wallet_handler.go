package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/genielink/backend/internal/middleware"
	"github.com/genielink/backend/internal/models"
)

// WalletOps is the wallet service surface the handler exposes over HTTP.
type WalletOps interface {
	Get(ctx context.Context, userID uuid.UUID) (*models.Wallet, error)
	DepositFunds(ctx context.Context, userID uuid.UUID, amount decimal.Decimal) (decimal.Decimal, error)
	WithdrawFunds(ctx context.Context, userID uuid.UUID, amount decimal.Decimal) (decimal.Decimal, error)
	TransferToEscrow(ctx context.Context, userID uuid.UUID, amount decimal.Decimal) (decimal.Decimal, error)
	ReleaseEscrowFunds(ctx context.Context, userID uuid.UUID, amount decimal.Decimal) (decimal.Decimal, error)
}

type WalletHandler struct {
	Wallets WalletOps
	Logger  *slog.Logger
}

type amountRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

type balanceResponse struct {
	NewBalance decimal.Decimal `json:"new_balance"`
}

// GetWallet handles GET /api/v1/wallet.
func (h *WalletHandler) GetWallet(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromCtx(r.Context())
	if !ok {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	wallet, err := h.Wallets.Get(r.Context(), userID)
	if err != nil {
		h.Logger.Error("get wallet", "user_id", userID, "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, wallet)
}

// Deposit handles POST /api/v1/wallet/deposit.
func (h *WalletHandler) Deposit(w http.ResponseWriter, r *http.Request) {
	h.moneyOp(w, r, h.Wallets.DepositFunds)
}

// Withdraw handles POST /api/v1/wallet/withdraw.
func (h *WalletHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	h.moneyOp(w, r, h.Wallets.WithdrawFunds)
}

// TransferToEscrow handles POST /api/v1/wallet/transfer-to-escrow.
func (h *WalletHandler) TransferToEscrow(w http.ResponseWriter, r *http.Request) {
	h.moneyOp(w, r, h.Wallets.TransferToEscrow)
}

// ReleaseFromEscrow handles POST /api/v1/wallet/release-from-escrow.
func (h *WalletHandler) ReleaseFromEscrow(w http.ResponseWriter, r *http.Request) {
	h.moneyOp(w, r, h.Wallets.ReleaseEscrowFunds)
}

func (h *WalletHandler) moneyOp(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, userID uuid.UUID, amount decimal.Decimal) (decimal.Decimal, error)) {
	userID, ok := middleware.UserIDFromCtx(r.Context())
	if !ok {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	var req amountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid JSON"}`, http.StatusBadRequest)
		return
	}
	newBalance, err := op(r.Context(), userID, req.Amount)
	if err != nil {
		status := statusForError(err)
		if status == http.StatusInternalServerError {
			h.Logger.Error("wallet operation failed", "path", r.URL.Path, "user_id", userID, "error", err)
			http.Error(w, `{"error":"internal error"}`, status)
			return
		}
		writeJSON(w, status, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, balanceResponse{NewBalance: newBalance})
}
