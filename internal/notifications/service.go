package notifications

import (
	"context"

	"github.com/google/uuid"

	"github.com/genielink/backend/internal/models"
)

const defaultListLimit = 50

// Service is the notification sink. Create is append-only and makes no
// idempotency promise; a retried best-effort caller may produce duplicates
// and that is acceptable.
type Service interface {
	Create(ctx context.Context, userID uuid.UUID, title, message string) error
	List(ctx context.Context, userID uuid.UUID, includeRead bool) ([]*models.Notification, error)
	MarkRead(ctx context.Context, notificationID, userID uuid.UUID) (*models.Notification, error)
	MarkAllRead(ctx context.Context, userID uuid.UUID) (int, error)
	UnreadCount(ctx context.Context, userID uuid.UUID) (int, error)
}

type service struct {
	repo *Repository
}

func NewService(repo *Repository) Service {
	return &service{repo: repo}
}

var _ Service = (*service)(nil)

func (s *service) Create(ctx context.Context, userID uuid.UUID, title, message string) error {
	n := &models.Notification{ID: uuid.New(), UserID: userID, Title: title, Message: message}
	return s.repo.Create(ctx, n)
}

func (s *service) List(ctx context.Context, userID uuid.UUID, includeRead bool) ([]*models.Notification, error) {
	return s.repo.ListByUser(ctx, userID, includeRead, defaultListLimit)
}

func (s *service) MarkRead(ctx context.Context, notificationID, userID uuid.UUID) (*models.Notification, error) {
	return s.repo.MarkRead(ctx, notificationID, userID)
}

func (s *service) MarkAllRead(ctx context.Context, userID uuid.UUID) (int, error) {
	return s.repo.MarkAllRead(ctx, userID)
}

func (s *service) UnreadCount(ctx context.Context, userID uuid.UUID) (int, error) {
	return s.repo.UnreadCount(ctx, userID)
}
