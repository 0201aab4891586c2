package notificationRepository

const (
	queryCreateMessage = `
		INSERT INTO messages (
			id,
			sender_id,
			recipient_id,
			subject,
			body,
			thread_id,
			reply_to,
			read,
			created_at
		) VALUES (
			:id,
			:sender_id,
			:recipient_id,
			:subject,
			:body,
			:thread_id,
			:reply_to,
			:read,
			:created_at
		)
	`

	queryGetUserName = `
		SELECT
			full_name
		FROM users
		WHERE id = :id
	`
)
