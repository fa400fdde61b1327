package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/google/uuid"

	"taskboard/internal/domain"
	"taskboard/internal/repository"
	"taskboard/internal/storage"
)

type memUsers struct {
	mu         sync.Mutex
	byID       map[string]domain.User
	failGet    error
	failUpdate error
}

func newMemUsers() *memUsers {
	return &memUsers{byID: map[string]domain.User{}}
}

func (m *memUsers) Init(context.Context) error { return nil }

func (m *memUsers) Create(_ context.Context, user *domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.byID {
		if u.Email == user.Email {
			return fmt.Errorf("user %s: %w", user.Email, repository.ErrDuplicate)
		}
	}
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	m.byID[user.ID] = *user
	return nil
}

func (m *memUsers) Update(_ context.Context, user *domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failUpdate != nil {
		return m.failUpdate
	}
	if _, ok := m.byID[user.ID]; !ok {
		return repository.ErrNotFound
	}
	m.byID[user.ID] = *user
	return nil
}

func (m *memUsers) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failGet != nil {
		return nil, m.failGet
	}
	for _, u := range m.byID {
		if u.Email == email {
			clone := u
			return &clone, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *memUsers) GetByID(_ context.Context, id string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failGet != nil {
		return nil, m.failGet
	}
	u, ok := m.byID[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &u, nil
}

func (m *memUsers) List(context.Context) ([]domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	users := make([]domain.User, 0, len(m.byID))
	for _, u := range m.byID {
		users = append(users, u)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].Email < users[j].Email })
	return users, nil
}

func (m *memUsers) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.byID, id)
	return nil
}

func (m *memUsers) AttachTask(_ context.Context, userID, taskID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[userID]
	if !ok {
		return repository.ErrNotFound
	}
	u.Tasks = append(u.Tasks, taskID)
	m.byID[userID] = u
	return nil
}

// stored returns the raw record, password hash included.
func (m *memUsers) stored(id string) domain.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.byID[id]
}

type memStorage struct {
	files   map[string]string
	deleted []string
	failDel bool
}

func (s *memStorage) Save(_ context.Context, obj storage.Object) (string, error) {
	body, err := io.ReadAll(obj.Body)
	if err != nil {
		return "", err
	}
	if s.files == nil {
		s.files = map[string]string{}
	}
	ref := "mem/" + storage.UniqueName(obj.Field, obj.Filename)
	s.files[ref] = string(body)
	return ref, nil
}

func (s *memStorage) Delete(_ context.Context, ref string) error {
	if s.failDel {
		return errors.New("storage down")
	}
	s.deleted = append(s.deleted, ref)
	delete(s.files, ref)
	return nil
}

type countingHasher struct {
	inner domain.PasswordHasher
	calls int
}

func (h *countingHasher) Hash(plaintext string) (string, error) {
	h.calls++
	return h.inner.Hash(plaintext)
}

func (h *countingHasher) Check(plaintext, hash string) bool {
	return h.inner.Check(plaintext, hash)
}

type memNotices struct {
	markCalls  int
	listed     string
	marked     [2]string
	markedAll  string
	listResult []domain.Notice
	markAllErr error
}

func (m *memNotices) Init(context.Context) error                   { return nil }
func (m *memNotices) Create(context.Context, *domain.Notice) error { return nil }

func (m *memNotices) ListUnread(_ context.Context, userID string) ([]domain.Notice, error) {
	m.listed = userID
	return m.listResult, nil
}

func (m *memNotices) MarkRead(_ context.Context, noticeID, userID string) error {
	m.markCalls++
	m.marked = [2]string{noticeID, userID}
	return nil
}

func (m *memNotices) MarkAllRead(_ context.Context, userID string) error {
	m.markedAll = userID
	return m.markAllErr
}
