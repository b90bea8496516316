package Models

type NotificationRequest struct {
	Tokens []string          `json:"tokens"` // Multiple device tokens
	Title  string            `json:"title"`  // Notification title
	Body   string            `json:"body"`   // Notification body
	Data   map[string]string `json:"data"`   // Link and type for the client
}
