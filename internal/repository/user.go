package repository

import (
	"context"
	"errors"

	"taskboard/internal/domain"
)

var (
	// ErrNotFound is returned when no row matches the lookup.
	ErrNotFound = errors.New("not found")
	// ErrDuplicate is returned when a unique constraint rejects a write.
	ErrDuplicate = errors.New("already exists")
)

// UserRepository defines persistence operations for User entities.
type UserRepository interface {
	Init(ctx context.Context) error
	Create(ctx context.Context, user *domain.User) error
	Update(ctx context.Context, user *domain.User) error
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetByID(ctx context.Context, id string) (*domain.User, error)
	List(ctx context.Context) ([]domain.User, error)
	Delete(ctx context.Context, id string) error
	AttachTask(ctx context.Context, userID, taskID string) error
}

// NoticeRepository manages notifications and their per-user read markers.
type NoticeRepository interface {
	Init(ctx context.Context) error
	Create(ctx context.Context, notice *domain.Notice) error
	ListUnread(ctx context.Context, userID string) ([]domain.Notice, error)
	MarkRead(ctx context.Context, noticeID, userID string) error
	MarkAllRead(ctx context.Context, userID string) error
}
