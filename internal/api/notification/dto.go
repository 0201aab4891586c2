package notification

import "time"

const (
	TypeNewMessage = "new_message"
	PingMessage    = "ping"
	PongMessage    = "pong"
)

type SendNotificationRequest struct {
	RecipientID string  `json:"recipient_id" validate:"required"`
	Subject     string  `json:"subject" validate:"required,max=200"`
	Message     string  `json:"message" validate:"required,max=5000"`
	ThreadID    string  `json:"thread_id,omitempty"`
	ReplyTo     *string `json:"reply_to,omitempty"`
}

type SendNotificationResponse struct {
	Message   string `json:"message"`
	MessageID string `json:"message_id"`
	ThreadID  string `json:"thread_id"`
	Delivered int    `json:"delivered"`
}

// NewMessageNotification is pushed to every live socket of the recipient.
type NewMessageNotification struct {
	Type       string    `json:"type"`
	MessageID  string    `json:"message_id"`
	ThreadID   string    `json:"thread_id"`
	SenderID   string    `json:"sender_id"`
	SenderName string    `json:"sender_name"`
	Subject    string    `json:"subject"`
	Message    string    `json:"message"`
	CreatedAt  time.Time `json:"created_at"`
}
