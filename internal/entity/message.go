package entity

import "time"

type Message struct {
	ID          string
	SenderID    string
	RecipientID string
	Subject     string
	Body        string
	ThreadID    string
	ReplyTo     *string
	Read        bool
	CreatedAt   time.Time
}
