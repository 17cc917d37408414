package models

import "time"

// Identity is the authenticated user as reported by the identity provider.
// Empty Email or DisplayName means the provider has no value for it.
type Identity struct {
	Id          string `json:"id" yaml:"id"`
	Email       string `json:"email,omitempty" yaml:"email,omitempty"`
	DisplayName string `json:"display_name,omitempty" yaml:"display_name,omitempty"`
}

type Task struct {
	Id        string
	Text      string
	Completed bool
	CreatedAt time.Time
	OwnerId   string
}

type Profile struct {
	Id        string
	Name      string
	Email     string
	CreatedAt time.Time
}

// Notice is a single non-blocking user-visible notification.
type Notice struct {
	Title       string
	Description string
	Destructive bool
}

// EventMessage describes one task mutation. Update events carry only the
// new completed flag.
type EventMessage struct {
	Email     string    `json:"email"`
	Username  string    `json:"username"`
	Type      string    `json:"type"`
	UserId    string    `json:"user_id"`
	TaskId    string    `json:"task_id"`
	TaskText  string    `json:"task_text,omitempty"`
	Completed bool      `json:"completed"`
	CreatedAt time.Time `json:"created_at"`
}
