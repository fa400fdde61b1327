package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"taskboard/internal/domain"
	"taskboard/internal/repository"
)

const createNoticesTables = `
CREATE TABLE IF NOT EXISTS notices (
	id TEXT PRIMARY KEY,
	text TEXT NOT NULL DEFAULT '',
	notice_type TEXT NOT NULL DEFAULT 'alert',
	task_id TEXT NOT NULL DEFAULT '',
	task_title TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL
);
CREATE TABLE IF NOT EXISTS notice_team (
	notice_id TEXT NOT NULL,
	user_id TEXT NOT NULL,
	PRIMARY KEY (notice_id, user_id),
	FOREIGN KEY(notice_id) REFERENCES notices(id) ON DELETE CASCADE
);
CREATE TABLE IF NOT EXISTS notice_reads (
	notice_id TEXT NOT NULL,
	user_id TEXT NOT NULL,
	PRIMARY KEY (notice_id, user_id),
	FOREIGN KEY(notice_id) REFERENCES notices(id) ON DELETE CASCADE
);
CREATE INDEX IF NOT EXISTS idx_notice_team_user_id ON notice_team(user_id);
`

type NoticeRepository struct {
	db *sql.DB
}

func NewNoticeRepository(db *sql.DB) repository.NoticeRepository {
	return &NoticeRepository{db: db}
}

func (r *NoticeRepository) Init(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, createNoticesTables); err != nil {
		return fmt.Errorf("create notices tables: %w", err)
	}
	return nil
}

func (r *NoticeRepository) Create(ctx context.Context, notice *domain.Notice) error {
	if notice.ID == "" {
		notice.ID = uuid.NewString()
	}
	if notice.NoticeType == "" {
		notice.NoticeType = domain.NoticeTypeAlert
	}
	notice.CreatedAt = time.Now().UTC()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
INSERT INTO notices (id, text, notice_type, task_id, task_title, created_at)
VALUES (?, ?, ?, ?, ?, ?)`,
		notice.ID,
		notice.Text,
		string(notice.NoticeType),
		notice.TaskID,
		notice.TaskTitle,
		notice.CreatedAt,
	); err != nil {
		return fmt.Errorf("insert notice: %w", err)
	}

	for _, userID := range notice.Team {
		if _, err := tx.ExecContext(ctx, `
INSERT OR IGNORE INTO notice_team (notice_id, user_id)
VALUES (?, ?)`,
			notice.ID,
			userID,
		); err != nil {
			return fmt.Errorf("insert notice member: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// ListUnread returns notices addressed to userID that userID has not read, newest first.
func (r *NoticeRepository) ListUnread(ctx context.Context, userID string) ([]domain.Notice, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT n.id, n.text, n.notice_type, n.task_id, n.task_title, n.created_at
FROM notices n
JOIN notice_team t ON t.notice_id = n.id AND t.user_id = ?
WHERE NOT EXISTS (
	SELECT 1 FROM notice_reads rd WHERE rd.notice_id = n.id AND rd.user_id = ?
)
ORDER BY n.created_at DESC, n.id ASC`, userID, userID)
	if err != nil {
		return nil, fmt.Errorf("query notices: %w", err)
	}

	var notices []domain.Notice
	for rows.Next() {
		var (
			notice     domain.Notice
			noticeType string
		)
		if err := rows.Scan(&notice.ID, &notice.Text, &noticeType, &notice.TaskID, &notice.TaskTitle, &notice.CreatedAt); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan notice: %w", err)
		}
		notice.NoticeType = domain.NoticeType(noticeType)
		notices = append(notices, notice)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	// the single connection must be released before the member queries run
	for i := range notices {
		team, err := r.listUserIDs(ctx, `SELECT user_id FROM notice_team WHERE notice_id=? ORDER BY rowid ASC`, notices[i].ID)
		if err != nil {
			return nil, err
		}
		readBy, err := r.listUserIDs(ctx, `SELECT user_id FROM notice_reads WHERE notice_id=? ORDER BY rowid ASC`, notices[i].ID)
		if err != nil {
			return nil, err
		}
		notices[i].Team = team
		notices[i].ReadBy = readBy
	}

	return notices, nil
}

// MarkRead records userID as a reader of noticeID. Unknown notices are ignored.
func (r *NoticeRepository) MarkRead(ctx context.Context, noticeID, userID string) error {
	_, err := r.db.ExecContext(ctx, `
INSERT OR IGNORE INTO notice_reads (notice_id, user_id)
SELECT id, ? FROM notices WHERE id = ?`,
		userID,
		noticeID,
	)
	if err != nil {
		return fmt.Errorf("mark notice read: %w", err)
	}
	return nil
}

func (r *NoticeRepository) MarkAllRead(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx, `
INSERT OR IGNORE INTO notice_reads (notice_id, user_id)
SELECT notice_id, user_id FROM notice_team WHERE user_id = ?`,
		userID,
	)
	if err != nil {
		return fmt.Errorf("mark all notices read: %w", err)
	}
	return nil
}

func (r *NoticeRepository) listUserIDs(ctx context.Context, query, noticeID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, query, noticeID)
	if err != nil {
		return nil, fmt.Errorf("query notice members: %w", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan notice member: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
