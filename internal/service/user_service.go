package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/sirupsen/logrus"

	"taskboard/internal/domain"
	"taskboard/internal/repository"
	"taskboard/internal/storage"
)

const (
	MinPasswordLength = 8

	msgInvalidEmail  = "Invalid email format"
	msgShortPassword = "Password must be at least 8 characters long"
)

var emailPattern = regexp.MustCompile(`\S+@\S+\.\S+`)

// TokenIssuer mints session tokens for a user id.
type TokenIssuer interface {
	IssueAccessToken(userID string) (string, error)
	IssueRefreshToken(userID string) (string, error)
}

// AuthResult is returned by Register and Login.
type AuthResult struct {
	User         *domain.User
	Token        string
	RefreshToken string
}

type RegisterInput struct {
	Username string
	Email    string
	Password string
	IsAdmin  bool
	Role     string
	Title    string
}

// Caller identifies the authenticated user issuing a request.
type Caller struct {
	ID      string
	IsAdmin bool
}

// UpdateProfileInput carries a partial update. Nil fields are left unchanged.
type UpdateProfileInput struct {
	TargetID string
	Username *string
	Title    *string
	Role     *string
	Avatar   *storage.Object
}

// UserService describes user lifecycle operations.
type UserService interface {
	Register(ctx context.Context, in RegisterInput) (*AuthResult, error)
	Login(ctx context.Context, email, password string) (*AuthResult, error)
	GetByID(ctx context.Context, id string) (*domain.User, error)
	UpdateProfile(ctx context.Context, caller Caller, in UpdateProfileInput) (*domain.User, error)
	ChangePassword(ctx context.Context, userID, currentPassword, newPassword string) error
	SetActive(ctx context.Context, id string, active bool) (*domain.User, error)
	Delete(ctx context.Context, id string) error
	Team(ctx context.Context) ([]domain.User, error)
}

type UserServiceConfig struct {
	Users   repository.UserRepository
	Hasher  domain.PasswordHasher
	Tokens  TokenIssuer
	Avatars storage.Service
	Logger  *logrus.Logger
}

type userService struct {
	users   repository.UserRepository
	hasher  domain.PasswordHasher
	tokens  TokenIssuer
	avatars storage.Service
	logger  *logrus.Logger
}

func NewUserService(cfg UserServiceConfig) UserService {
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	return &userService{
		users:   cfg.Users,
		hasher:  cfg.Hasher,
		tokens:  cfg.Tokens,
		avatars: cfg.Avatars,
		logger:  cfg.Logger,
	}
}

func (s *userService) Register(ctx context.Context, in RegisterInput) (*AuthResult, error) {
	if err := validateCredentials(in.Email, in.Password); err != nil {
		return nil, err
	}

	if _, err := s.users.GetByEmail(ctx, in.Email); err == nil {
		return nil, ErrUserAlreadyExists
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("lookup user by email: %w", err)
	}

	user := &domain.User{
		Username: in.Username,
		Email:    in.Email,
		IsAdmin:  in.IsAdmin,
		Role:     in.Role,
		Title:    in.Title,
		IsActive: true,
		Tasks:    []string{},
	}
	if err := user.SetPassword(s.hasher, in.Password); err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrUserAlreadyExists
		}
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{"user_id": user.ID, "admin": user.IsAdmin}).Info("user registered")
	return s.issue(user)
}

func (s *userService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	if email == "" || password == "" {
		return nil, ErrInvalidCredentials
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("lookup user by email: %w", err)
	}

	if !user.IsActive {
		return nil, ErrAccountDeactivated
	}

	if !user.CheckPassword(s.hasher, password) {
		return nil, ErrInvalidCredentials
	}

	return s.issue(user)
}

func (s *userService) GetByID(ctx context.Context, id string) (*domain.User, error) {
	user, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	return user.Sanitized(), nil
}

func (s *userService) UpdateProfile(ctx context.Context, caller Caller, in UpdateProfileInput) (*domain.User, error) {
	targetID := caller.ID
	if caller.IsAdmin && in.TargetID != "" {
		targetID = in.TargetID
	}

	user, err := s.find(ctx, targetID)
	if err != nil {
		return nil, err
	}

	previousAvatar := user.Avatar
	if in.Avatar != nil {
		if s.avatars == nil {
			return nil, fmt.Errorf("avatar storage not configured")
		}
		ref, err := s.avatars.Save(ctx, *in.Avatar)
		if err != nil {
			return nil, fmt.Errorf("store avatar: %w", err)
		}
		user.Avatar = ref
	}
	if in.Username != nil {
		user.Username = *in.Username
	}
	if in.Title != nil {
		user.Title = *in.Title
	}
	if in.Role != nil {
		user.Role = *in.Role
	}

	if err := s.users.Update(ctx, user); err != nil {
		if in.Avatar != nil {
			s.removeAvatar(ctx, user.ID, user.Avatar)
		}
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	if previousAvatar != "" && previousAvatar != user.Avatar {
		s.removeAvatar(ctx, user.ID, previousAvatar)
	}

	return user.Sanitized(), nil
}

func (s *userService) ChangePassword(ctx context.Context, userID, currentPassword, newPassword string) error {
	user, err := s.find(ctx, userID)
	if err != nil {
		return err
	}

	if !user.CheckPassword(s.hasher, currentPassword) {
		return ErrCurrentPasswordMismatch
	}
	if err := validation.Validate(newPassword, passwordRules()...); err != nil {
		return newError(KindValidation, err.Error(), nil)
	}

	if err := user.SetPassword(s.hasher, newPassword); err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := s.users.Update(ctx, user); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrUserNotFound
		}
		return err
	}

	s.logger.WithField("user_id", user.ID).Info("password changed")
	return nil
}

func (s *userService) SetActive(ctx context.Context, id string, active bool) (*domain.User, error) {
	user, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}

	user.IsActive = active
	if err := s.users.Update(ctx, user); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{"user_id": user.ID, "active": active}).Info("user activation changed")
	return user.Sanitized(), nil
}

// Delete hard-deletes the user. An unknown id is treated as already deleted.
func (s *userService) Delete(ctx context.Context, id string) error {
	user, err := s.users.GetByID(ctx, id)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("lookup user: %w", err)
	}

	if err := s.users.Delete(ctx, id); err != nil {
		return err
	}

	if user != nil && user.Avatar != "" {
		s.removeAvatar(ctx, user.ID, user.Avatar)
	}
	return nil
}

func (s *userService) Team(ctx context.Context) ([]domain.User, error) {
	users, err := s.users.List(ctx)
	if err != nil {
		return nil, err
	}
	team := make([]domain.User, len(users))
	for i := range users {
		team[i] = *users[i].Sanitized()
	}
	return team, nil
}

func (s *userService) find(ctx context.Context, id string) (*domain.User, error) {
	if strings.TrimSpace(id) == "" {
		return nil, ErrUserNotFound
	}
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	return user, nil
}

func (s *userService) issue(user *domain.User) (*AuthResult, error) {
	token, err := s.tokens.IssueAccessToken(user.ID)
	if err != nil {
		return nil, fmt.Errorf("issue access token: %w", err)
	}
	refresh, err := s.tokens.IssueRefreshToken(user.ID)
	if err != nil {
		return nil, fmt.Errorf("issue refresh token: %w", err)
	}
	return &AuthResult{
		User:         user.Sanitized(),
		Token:        token,
		RefreshToken: refresh,
	}, nil
}

func (s *userService) removeAvatar(ctx context.Context, userID, ref string) {
	if s.avatars == nil {
		return
	}
	if err := s.avatars.Delete(ctx, ref); err != nil {
		s.logger.WithFields(logrus.Fields{"user_id": userID, "avatar": ref}).Warnf("remove avatar: %v", err)
	}
}

func passwordRules() []validation.Rule {
	return []validation.Rule{
		validation.Required.Error(msgShortPassword),
		validation.Length(MinPasswordLength, 0).Error(msgShortPassword),
	}
}

// validateCredentials reports every violation at once, joined with ", ".
func validateCredentials(email, password string) error {
	var problems []string
	if err := validation.Validate(email,
		validation.Required.Error(msgInvalidEmail),
		validation.Match(emailPattern).Error(msgInvalidEmail),
	); err != nil {
		problems = append(problems, err.Error())
	}
	if err := validation.Validate(password, passwordRules()...); err != nil {
		problems = append(problems, err.Error())
	}
	if len(problems) > 0 {
		return newError(KindValidation, strings.Join(problems, ", "), nil)
	}
	return nil
}
