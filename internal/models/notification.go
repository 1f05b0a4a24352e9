package models

import "time"

// NotificationType names the moderation events reviewers are alerted about.
type NotificationType string

const (
	NotificationNewQuestion   NotificationType = "new_question"
	NotificationPendingAnswer NotificationType = "pending_answer"
)

// NotificationEvent is the payload handed to a notification transport.
type NotificationEvent struct {
	Type       NotificationType `json:"type"`
	Recipients []UserInfo       `json:"recipients"`
	Question   Question         `json:"question"`
	Answer     *Answer          `json:"answer,omitempty"`
	Author     UserInfo         `json:"author"`
	OccurredAt time.Time        `json:"occurred_at"`
}

// UserInfoFromUser trims a user record down to what is safe to share.
func UserInfoFromUser(u *User) UserInfo {
	return UserInfo{ID: u.ID, Username: u.Username, DisplayName: u.DisplayName, Role: u.Role}
}
