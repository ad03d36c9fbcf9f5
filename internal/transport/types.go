// Package transport defines the outbound messaging surface used for
// announcements. The Telegram implementation lives in transport/telegram.
package transport

import "context"

type ChatTarget struct {
	ChatID   int64
	ThreadID int // forum topic, 0 if none
}

type MessageRef struct {
	ChatID    int64
	ThreadID  int
	MessageID int
}

type SendOptions struct {
	ParseMode      string
	DisablePreview bool
}

// Sender delivers a text message. Long texts may be split into several
// messages; the reference of the first one is returned.
type Sender interface {
	SendText(ctx context.Context, to ChatTarget, text string, opt *SendOptions) (MessageRef, error)
}
