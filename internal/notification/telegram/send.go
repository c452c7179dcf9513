package telegram

import (
	"context"
	"time"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/darkkaiser/mydealz-monitor/internal/notification"
	apperrors "github.com/darkkaiser/mydealz-monitor/internal/pkg/errors"
	applog "github.com/darkkaiser/mydealz-monitor/pkg/log"
)

// SendText delivers a single HTML text message, truncated to the API
// message limit.
func (n *Notifier) SendText(ctx context.Context, message string) error {
	message = truncate(message, notification.MessageMaxLength)

	return n.sendWithRetry(ctx, func(parseMode string) tgbotapi.Chattable {
		config := tgbotapi.NewMessage(n.chatID, message)
		config.ParseMode = parseMode
		return config
	}, true)
}

// SendPhoto delivers a photo by URL with its caption, truncated to the
// API caption limit.
func (n *Notifier) SendPhoto(ctx context.Context, photoURL, caption string) error {
	caption = truncate(caption, notification.CaptionMaxLength)

	return n.sendWithRetry(ctx, func(parseMode string) tgbotapi.Chattable {
		config := tgbotapi.NewPhoto(n.chatID, tgbotapi.FileURL(photoURL))
		config.Caption = caption
		config.ParseMode = parseMode
		return config
	}, true)
}

// sendWithRetry sends one API payload with rate limiting and a bounded
// retry loop. A 400 response in HTML mode falls back to plain text with
// the content unchanged, so broken markup never loses a notification.
func (n *Notifier) sendWithRetry(ctx context.Context, makeConfig func(parseMode string) tgbotapi.Chattable, useHTML bool) error {
	parseMode := ""
	if useHTML {
		parseMode = tgbotapi.ModeHTML
	}

	if err := n.rateLimiter.Wait(ctx); err != nil {
		return apperrors.Wrap(err, apperrors.Timeout, "waiting for the send rate limiter was interrupted")
	}

	const maxRetries = 3
	var lastErr error

	for attempt := 1; attempt <= maxRetries; attempt++ {
		select {
		case <-ctx.Done():
			return apperrors.Wrap(ctx.Err(), apperrors.Timeout, "the send was cancelled")
		default:
		}

		_, err := n.client.Send(makeConfig(parseMode))
		if err == nil {
			applog.WithComponentAndFields(component, applog.Fields{
				"chat_id": n.chatID,
				"attempt": attempt,
				"mode":    formatParseMode(parseMode),
			}).Debug("message delivered")

			return nil
		}

		lastErr = err
		errCode, retryAfter := parseTelegramError(err)

		applog.WithComponentAndFields(component, applog.Fields{
			"chat_id": n.chatID,
			"attempt": attempt,
			"code":    errCode,
			"error":   err,
		}).Warn("message delivery failed")

		// 400 in HTML mode almost always means the markup did not
		// parse. Resend the same content as plain text.
		if useHTML && errCode == 400 {
			return n.sendWithRetry(ctx, makeConfig, false)
		}

		if !shouldRetry(errCode) {
			return apperrors.Wrap(err, apperrors.ExecutionFailed, "the Telegram API rejected the message")
		}

		if attempt >= maxRetries {
			break
		}

		select {
		case <-ctx.Done():
			return apperrors.Wrap(ctx.Err(), apperrors.Timeout, "the send was cancelled while waiting to retry")
		case <-time.After(n.delayForRetry(retryAfter)):
		}
	}

	return apperrors.Wrapf(lastErr, apperrors.Unavailable, "the message could not be delivered after %d attempts", maxRetries)
}

// shouldRetry reports whether a failed send is worth repeating. Client
// errors are final, except for the rate limit; everything else,
// including plain network errors without a code, is transient.
func shouldRetry(statusCode int) bool {
	if statusCode >= 400 && statusCode < 500 {
		return statusCode == 429
	}
	return true
}

// delayForRetry prefers the wait the API asked for over the default.
func (n *Notifier) delayForRetry(retryAfter int) time.Duration {
	if retryAfter > 0 {
		return time.Duration(retryAfter) * time.Second
	}
	return n.retryDelay
}

// parseTelegramError extracts the HTTP status code and Retry-After
// seconds from a bot API error, or zeros for other error kinds.
func parseTelegramError(err error) (code int, retryAfter int) {
	if apiErr, ok := err.(tgbotapi.Error); ok {
		return apiErr.Code, apiErr.ResponseParameters.RetryAfter
	}
	if apiErr, ok := err.(*tgbotapi.Error); ok {
		return apiErr.Code, apiErr.ResponseParameters.RetryAfter
	}
	return 0, 0
}

func formatParseMode(mode string) string {
	if mode == tgbotapi.ModeHTML {
		return "HTML"
	}
	return "PlainText"
}

// truncate shortens s to at most limit bytes without splitting a UTF-8
// sequence.
func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}

	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	if cut == 0 {
		cut = limit
	}
	return s[:cut]
}
