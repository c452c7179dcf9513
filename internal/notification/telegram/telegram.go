// Package telegram implements the notification.Notifier interface on
// the Telegram Bot API.
package telegram

import (
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/time/rate"

	"github.com/darkkaiser/mydealz-monitor/internal/notification"
	apperrors "github.com/darkkaiser/mydealz-monitor/internal/pkg/errors"
)

const component = "notification.telegram"

const (
	// defaultRetryDelay is the wait between send retries when the API
	// did not specify one.
	defaultRetryDelay = 2 * time.Second

	// sendsPerSecond throttles outgoing API calls. Telegram allows
	// roughly one message per second per chat; staying below that also
	// paces sequential photo uploads of a single comment.
	sendsPerSecond = rate.Limit(1.4)
)

// client abstracts the Telegram bot API for testing.
type client interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Notifier delivers messages to a single Telegram chat.
type Notifier struct {
	client client
	chatID int64

	retryDelay  time.Duration
	rateLimiter *rate.Limiter
}

var _ notification.Notifier = (*Notifier)(nil)

// New creates a notifier for the given bot token and chat. The token is
// verified against the API before the notifier is returned.
func New(botToken string, chatID int64) (*Notifier, error) {
	bot, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.Unavailable, "the Telegram bot could not be initialized")
	}

	return newWithClient(bot, chatID), nil
}

func newWithClient(c client, chatID int64) *Notifier {
	return &Notifier{
		client:      c,
		chatID:      chatID,
		retryDelay:  defaultRetryDelay,
		rateLimiter: rate.NewLimiter(sendsPerSecond, 1),
	}
}
