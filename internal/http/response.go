package http

import (
	"time"

	"taskboard/internal/domain"
	"taskboard/internal/service"
)

// UserResponse is the public shape of a user. It has no password field.
type UserResponse struct {
	ID              string   `json:"_id"`
	Username        string   `json:"username"`
	Email           string   `json:"email"`
	IsAdmin         bool     `json:"isAdmin"`
	Role            string   `json:"role"`
	Title           string   `json:"title"`
	IsActive        bool     `json:"isActive"`
	IsEmailVerified bool     `json:"isEmailVerified"`
	Avatar          string   `json:"avatar,omitempty"`
	Tasks           []string `json:"tasks"`
	CreatedAt       string   `json:"createdAt"`
	UpdatedAt       string   `json:"updatedAt"`
}

type AuthResponse struct {
	User         UserResponse `json:"user"`
	Token        string       `json:"token"`
	RefreshToken string       `json:"refreshToken"`
}

type TeamMemberResponse struct {
	ID       string `json:"_id"`
	Username string `json:"username"`
	Title    string `json:"title"`
	Role     string `json:"role"`
	Email    string `json:"email"`
	IsActive bool   `json:"isActive"`
}

type NoticeTaskResponse struct {
	ID    string `json:"_id"`
	Title string `json:"title"`
}

type NoticeResponse struct {
	ID        string              `json:"_id"`
	Text      string              `json:"text"`
	NotiType  string              `json:"notiType"`
	Task      *NoticeTaskResponse `json:"task,omitempty"`
	Team      []string            `json:"team"`
	IsRead    []string            `json:"isRead"`
	CreatedAt string              `json:"createdAt"`
}

func userToResponse(user domain.User) UserResponse {
	tasks := user.Tasks
	if tasks == nil {
		tasks = []string{}
	}
	return UserResponse{
		ID:              user.ID,
		Username:        user.Username,
		Email:           user.Email,
		IsAdmin:         user.IsAdmin,
		Role:            user.Role,
		Title:           user.Title,
		IsActive:        user.IsActive,
		IsEmailVerified: user.IsEmailVerified,
		Avatar:          user.Avatar,
		Tasks:           tasks,
		CreatedAt:       formatTime(user.CreatedAt),
		UpdatedAt:       formatTime(user.UpdatedAt),
	}
}

func authToResponse(res *service.AuthResult) AuthResponse {
	return AuthResponse{
		User:         userToResponse(*res.User),
		Token:        res.Token,
		RefreshToken: res.RefreshToken,
	}
}

func teamMemberToResponse(user domain.User) TeamMemberResponse {
	return TeamMemberResponse{
		ID:       user.ID,
		Username: user.Username,
		Title:    user.Title,
		Role:     user.Role,
		Email:    user.Email,
		IsActive: user.IsActive,
	}
}

func noticeToResponse(notice domain.Notice) NoticeResponse {
	resp := NoticeResponse{
		ID:        notice.ID,
		Text:      notice.Text,
		NotiType:  string(notice.NoticeType),
		Team:      notice.Team,
		IsRead:    notice.ReadBy,
		CreatedAt: formatTime(notice.CreatedAt),
	}
	if resp.Team == nil {
		resp.Team = []string{}
	}
	if resp.IsRead == nil {
		resp.IsRead = []string{}
	}
	if notice.TaskID != "" {
		resp.Task = &NoticeTaskResponse{ID: notice.TaskID, Title: notice.TaskTitle}
	}
	return resp
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
