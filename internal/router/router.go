package router

import (
	"net/http"

	"github.com/genielink/backend/internal/auth"
	"github.com/genielink/backend/internal/handlers"
	"github.com/genielink/backend/internal/middleware"
	"github.com/genielink/backend/internal/models"
)

// New returns an http.Handler serving the API under /api/v1.
func New(
	authHandler *auth.Handler,
	taskHandler *handlers.TaskHandler,
	walletHandler *handlers.WalletHandler,
	notifHandler *handlers.NotificationHandler,
	validator middleware.TokenValidator,
) http.Handler {
	mux := http.NewServeMux()

	authed := middleware.RequireAuth(validator)
	asRequester := middleware.RequireRole(models.RoleRequester)
	asWorker := middleware.RequireRole(models.RoleWorker)

	mux.HandleFunc("POST /api/v1/auth/register", authHandler.Register)
	mux.HandleFunc("POST /api/v1/auth/login", authHandler.Login)
	mux.Handle("GET /api/v1/me", authed(http.HandlerFunc(authHandler.Me)))

	mux.Handle("POST /api/v1/tasks", authed(asRequester(http.HandlerFunc(taskHandler.CreateTask))))
	mux.Handle("GET /api/v1/tasks/available", authed(http.HandlerFunc(taskHandler.ListAvailable)))
	mux.Handle("GET /api/v1/tasks/mine", authed(asRequester(http.HandlerFunc(taskHandler.ListMine))))
	mux.Handle("GET /api/v1/tasks/assigned", authed(asWorker(http.HandlerFunc(taskHandler.ListAssigned))))
	mux.Handle("GET /api/v1/tasks/{id}", authed(http.HandlerFunc(taskHandler.GetTask)))
	mux.Handle("DELETE /api/v1/tasks/{id}", authed(asRequester(http.HandlerFunc(taskHandler.DeleteTask))))
	mux.Handle("GET /api/v1/tasks/{id}/messages", authed(http.HandlerFunc(taskHandler.ListMessages)))

	mux.Handle("PATCH /api/v1/tasks/{id}/accept", authed(asWorker(http.HandlerFunc(taskHandler.Claim))))
	mux.Handle("POST /api/v1/tasks/{id}/start", authed(asWorker(http.HandlerFunc(taskHandler.Start))))
	mux.Handle("POST /api/v1/tasks/{id}/complete", authed(asWorker(http.HandlerFunc(taskHandler.Complete))))
	mux.Handle("POST /api/v1/tasks/{id}/cancel-assignment", authed(asRequester(http.HandlerFunc(taskHandler.Unclaim))))
	mux.Handle("POST /api/v1/tasks/{id}/rate", authed(asWorker(http.HandlerFunc(taskHandler.Rate))))

	mux.Handle("GET /api/v1/wallet", authed(http.HandlerFunc(walletHandler.GetWallet)))
	mux.Handle("POST /api/v1/wallet/deposit", authed(http.HandlerFunc(walletHandler.Deposit)))
	mux.Handle("POST /api/v1/wallet/withdraw", authed(http.HandlerFunc(walletHandler.Withdraw)))
	mux.Handle("POST /api/v1/wallet/transfer-to-escrow", authed(http.HandlerFunc(walletHandler.TransferToEscrow)))
	mux.Handle("POST /api/v1/wallet/release-from-escrow", authed(http.HandlerFunc(walletHandler.ReleaseFromEscrow)))

	mux.Handle("GET /api/v1/notifications", authed(http.HandlerFunc(notifHandler.List)))
	mux.Handle("GET /api/v1/notifications/unread-count", authed(http.HandlerFunc(notifHandler.UnreadCount)))
	mux.Handle("PATCH /api/v1/notifications/read-all", authed(http.HandlerFunc(notifHandler.MarkAllRead)))
	mux.Handle("PATCH /api/v1/notifications/{id}/read", authed(http.HandlerFunc(notifHandler.MarkRead)))

	return mux
}
