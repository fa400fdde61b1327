package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"taskboard/internal/domain"
	"taskboard/internal/repository"
)

const createUsersTable = `
CREATE TABLE IF NOT EXISTS users (
	id TEXT PRIMARY KEY,
	username TEXT NOT NULL DEFAULT '',
	email TEXT NOT NULL UNIQUE,
	password_hash TEXT NOT NULL,
	is_admin INTEGER NOT NULL DEFAULT 0,
	role TEXT NOT NULL DEFAULT '',
	title TEXT NOT NULL DEFAULT '',
	is_active INTEGER NOT NULL DEFAULT 1,
	is_email_verified INTEGER NOT NULL DEFAULT 0,
	avatar TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);
CREATE TABLE IF NOT EXISTS user_tasks (
	user_id TEXT NOT NULL,
	task_id TEXT NOT NULL,
	PRIMARY KEY (user_id, task_id),
	FOREIGN KEY(user_id) REFERENCES users(id) ON DELETE CASCADE
);
`

const selectUserColumns = `
SELECT id, username, email, password_hash, is_admin, role, title, is_active, is_email_verified, avatar, created_at, updated_at
FROM users`

type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) repository.UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) Init(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, createUsersTable); err != nil {
		return fmt.Errorf("create users table: %w", err)
	}
	return nil
}

func (r *UserRepository) Create(ctx context.Context, user *domain.User) error {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now

	_, err := r.db.ExecContext(ctx, `
INSERT INTO users (id, username, email, password_hash, is_admin, role, title, is_active, is_email_verified, avatar, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		user.ID,
		user.Username,
		user.Email,
		user.PasswordHash,
		boolToInt(user.IsAdmin),
		user.Role,
		user.Title,
		boolToInt(user.IsActive),
		boolToInt(user.IsEmailVerified),
		user.Avatar,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("user %s: %w", user.Email, repository.ErrDuplicate)
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// Update overwrites every column of the row; concurrent writers race and the last one wins.
func (r *UserRepository) Update(ctx context.Context, user *domain.User) error {
	user.UpdatedAt = time.Now().UTC()
	res, err := r.db.ExecContext(ctx, `
UPDATE users
SET username=?, email=?, password_hash=?, is_admin=?, role=?, title=?, is_active=?, is_email_verified=?, avatar=?, updated_at=?
WHERE id=?`,
		user.Username,
		user.Email,
		user.PasswordHash,
		boolToInt(user.IsAdmin),
		user.Role,
		user.Title,
		boolToInt(user.IsActive),
		boolToInt(user.IsEmailVerified),
		user.Avatar,
		user.UpdatedAt,
		user.ID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("user %s: %w", user.Email, repository.ErrDuplicate)
		}
		return fmt.Errorf("update user: %w", err)
	}
	aff, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("user update rows affected: %w", err)
	}
	if aff == 0 {
		return fmt.Errorf("user %s: %w", user.ID, repository.ErrNotFound)
	}
	return nil
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	row := r.db.QueryRowContext(ctx, selectUserColumns+`
WHERE email = ?`,
		email,
	)
	user, err := scanUser(row)
	if err != nil {
		return nil, err
	}
	return r.withTasks(ctx, user)
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	row := r.db.QueryRowContext(ctx, selectUserColumns+`
WHERE id = ?`,
		id,
	)
	user, err := scanUser(row)
	if err != nil {
		return nil, err
	}
	return r.withTasks(ctx, user)
}

func (r *UserRepository) List(ctx context.Context) ([]domain.User, error) {
	rows, err := r.db.QueryContext(ctx, selectUserColumns+`
ORDER BY created_at ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}
	defer rows.Close()

	var users []domain.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *user)
	}
	return users, rows.Err()
}

// Delete removes the user and its task references. Deleting an unknown id is not an error.
func (r *UserRepository) Delete(ctx context.Context, id string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM user_tasks WHERE user_id=?`, id); err != nil {
		return fmt.Errorf("delete user tasks: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM users WHERE id=?`, id); err != nil {
		return fmt.Errorf("delete user: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit user delete: %w", err)
	}
	return nil
}

func (r *UserRepository) AttachTask(ctx context.Context, userID, taskID string) error {
	_, err := r.db.ExecContext(ctx, `
INSERT OR IGNORE INTO user_tasks (user_id, task_id)
VALUES (?, ?)`,
		userID,
		taskID,
	)
	if err != nil {
		return fmt.Errorf("attach task: %w", err)
	}
	return nil
}

func (r *UserRepository) withTasks(ctx context.Context, user *domain.User) (*domain.User, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT task_id
FROM user_tasks
WHERE user_id=?
ORDER BY rowid ASC`, user.ID)
	if err != nil {
		return nil, fmt.Errorf("query user tasks: %w", err)
	}
	defer rows.Close()

	tasks := []string{}
	for rows.Next() {
		var taskID string
		if err := rows.Scan(&taskID); err != nil {
			return nil, fmt.Errorf("scan user task: %w", err)
		}
		tasks = append(tasks, taskID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	user.Tasks = tasks
	return user, nil
}

func scanUser(row interface {
	Scan(dest ...any) error
}) (*domain.User, error) {
	var (
		user            domain.User
		isAdmin         int
		isActive        int
		isEmailVerified int
	)
	if err := row.Scan(
		&user.ID,
		&user.Username,
		&user.Email,
		&user.PasswordHash,
		&isAdmin,
		&user.Role,
		&user.Title,
		&isActive,
		&isEmailVerified,
		&user.Avatar,
		&user.CreatedAt,
		&user.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("user: %w", repository.ErrNotFound)
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}
	user.IsAdmin = isAdmin != 0
	user.IsActive = isActive != 0
	user.IsEmailVerified = isEmailVerified != 0
	return &user, nil
}
