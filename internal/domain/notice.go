package domain

import "time"

type NoticeType string

const (
	NoticeTypeAlert   NoticeType = "alert"
	NoticeTypeMessage NoticeType = "message"
)

// Notice is a notification addressed to a team of users, usually about a task.
type Notice struct {
	ID         string
	Text       string
	NoticeType NoticeType
	TaskID     string
	TaskTitle  string
	Team       []string
	ReadBy     []string
	CreatedAt  time.Time
}
