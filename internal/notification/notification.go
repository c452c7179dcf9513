// Package notification delivers monitor messages to the configured
// chat channel.
package notification

import "context"

// Telegram Bot API hard limits.
const (
	// MessageMaxLength is the maximum length of a single text message.
	MessageMaxLength = 4096

	// CaptionMaxLength is the maximum length of a photo caption.
	CaptionMaxLength = 1024
)

// Notifier sends notification messages. Implementations are safe for
// concurrent use.
type Notifier interface {
	// SendText delivers an HTML-formatted text message.
	SendText(ctx context.Context, message string) error

	// SendPhoto delivers a photo by URL with an HTML-formatted caption.
	SendPhoto(ctx context.Context, photoURL, caption string) error
}
