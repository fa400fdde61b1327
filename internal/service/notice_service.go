package service

import (
	"context"
	"strings"

	"taskboard/internal/domain"
	"taskboard/internal/repository"
)

// ReadAll is the isReadType value that marks every unread notice.
const ReadAll = "all"

// NoticeService exposes a user's notification inbox.
type NoticeService interface {
	Unread(ctx context.Context, userID string) ([]domain.Notice, error)
	MarkRead(ctx context.Context, userID, readType, noticeID string) error
}

type noticeService struct {
	notices repository.NoticeRepository
}

func NewNoticeService(notices repository.NoticeRepository) NoticeService {
	return &noticeService{notices: notices}
}

func (s *noticeService) Unread(ctx context.Context, userID string) ([]domain.Notice, error) {
	notices, err := s.notices.ListUnread(ctx, userID)
	if err != nil {
		return nil, err
	}
	if notices == nil {
		notices = []domain.Notice{}
	}
	return notices, nil
}

func (s *noticeService) MarkRead(ctx context.Context, userID, readType, noticeID string) error {
	if readType == ReadAll {
		return s.notices.MarkAllRead(ctx, userID)
	}
	// no id matches nothing
	if strings.TrimSpace(noticeID) == "" {
		return nil
	}
	return s.notices.MarkRead(ctx, noticeID, userID)
}
