package gateway

import "context"

// Messenger is a chat transport (Telegram, Discord).
type Messenger interface {
	// Start begins the message listening loop and blocks until Stop.
	Start() error
	// Send pushes a message to a specific chat.
	Send(chatID string, text string) error
	// Stop gracefully shuts down the gateway.
	Stop() error
}

// Responder handles one inbound message and returns the reply.
type Responder interface {
	HandleMessage(ctx context.Context, userID, channel, conversationID, message string) (string, error)
}
