package config

import (
	"os"
	"path/filepath"
	"testing"

	apperrors "github.com/darkkaiser/mydealz-monitor/internal/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testBotToken = "123456789:AAHf0123456789abcdefghijklmnopqrs"

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "mydealz-monitor.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadWithFileAppliesDefaults(t *testing.T) {
	path := writeConfigFile(t, `{
		"mydealz": {
			"thread_url": "https://www.mydealz.de/deals/test-deal-123456"
		},
		"telegram": {
			"bot_token": "`+testBotToken+`",
			"chat_id": 123456
		}
	}`)

	cfg, err := LoadWithFile(path)
	require.NoError(t, err)

	assert.Equal(t, 60, cfg.MyDealz.PollIntervalSec)
	assert.Equal(t, 50, cfg.MyDealz.PageSize)
	assert.Equal(t, 5000, cfg.MyDealz.SeenLimit)
	assert.Equal(t, "state.json", cfg.State.FilePath)
	assert.Equal(t, 30, cfg.HTTP.TimeoutSec)
	assert.Equal(t, 3, cfg.HTTP.MaxRetries)
	assert.Equal(t, "2s", cfg.HTTP.RetryDelay)
	assert.False(t, cfg.Debug)
}

func TestLoadWithFileOverridesDefaults(t *testing.T) {
	path := writeConfigFile(t, `{
		"debug": true,
		"mydealz": {
			"thread_url": "https://www.mydealz.de/deals/test-deal-123456",
			"thread_id": "123456",
			"poll_interval_sec": 120,
			"page_size": 25,
			"seen_limit": 1000
		},
		"telegram": {
			"bot_token": "`+testBotToken+`",
			"chat_id": -100200300
		},
		"state": {
			"file_path": "/var/lib/mydealz/state.json"
		}
	}`)

	cfg, err := LoadWithFile(path)
	require.NoError(t, err)

	assert.True(t, cfg.Debug)
	assert.Equal(t, "123456", cfg.MyDealz.ThreadID)
	assert.Equal(t, 120, cfg.MyDealz.PollIntervalSec)
	assert.Equal(t, 25, cfg.MyDealz.PageSize)
	assert.Equal(t, 1000, cfg.MyDealz.SeenLimit)
	assert.Equal(t, int64(-100200300), cfg.Telegram.ChatID)
	assert.Equal(t, "/var/lib/mydealz/state.json", cfg.State.FilePath)
}

func TestLoadWithFileEnvironmentWins(t *testing.T) {
	path := writeConfigFile(t, `{
		"mydealz": {
			"thread_url": "https://www.mydealz.de/deals/test-deal-123456",
			"poll_interval_sec": 120
		},
		"telegram": {
			"bot_token": "`+testBotToken+`",
			"chat_id": 123456
		}
	}`)

	t.Setenv("MYDEALZ_MYDEALZ__POLL_INTERVAL_SEC", "15")

	cfg, err := LoadWithFile(path)
	require.NoError(t, err)

	assert.Equal(t, 15, cfg.MyDealz.PollIntervalSec)
}

func TestLoadWithFileMissingFileUsesEnvironment(t *testing.T) {
	t.Setenv("MYDEALZ_MYDEALZ__THREAD_URL", "https://www.mydealz.de/deals/test-deal-123456")
	t.Setenv("MYDEALZ_TELEGRAM__BOT_TOKEN", testBotToken)
	t.Setenv("MYDEALZ_TELEGRAM__CHAT_ID", "123456")

	cfg, err := LoadWithFile(filepath.Join(t.TempDir(), "does-not-exist.json"))
	require.NoError(t, err)

	assert.Equal(t, "https://www.mydealz.de/deals/test-deal-123456", cfg.MyDealz.ThreadURL)
}

func TestLoadWithFileValidation(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{
			name: "missing thread URL",
			content: `{
				"telegram": {"bot_token": "` + testBotToken + `", "chat_id": 1}
			}`,
		},
		{
			name: "invalid bot token format",
			content: `{
				"mydealz": {"thread_url": "https://www.mydealz.de/deals/x-1"},
				"telegram": {"bot_token": "not-a-token", "chat_id": 1}
			}`,
		},
		{
			name: "missing chat id",
			content: `{
				"mydealz": {"thread_url": "https://www.mydealz.de/deals/x-1"},
				"telegram": {"bot_token": "` + testBotToken + `"}
			}`,
		},
		{
			name: "non-numeric thread id override",
			content: `{
				"mydealz": {"thread_url": "https://www.mydealz.de/deals/x-1", "thread_id": "abc"},
				"telegram": {"bot_token": "` + testBotToken + `", "chat_id": 1}
			}`,
		},
		{
			name: "invalid retry delay",
			content: `{
				"mydealz": {"thread_url": "https://www.mydealz.de/deals/x-1"},
				"telegram": {"bot_token": "` + testBotToken + `", "chat_id": 1},
				"http": {"retry_delay": "sometime"}
			}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfigFile(t, tt.content)

			_, err := LoadWithFile(path)

			require.Error(t, err)
			assert.True(t, apperrors.Is(err, apperrors.InvalidInput))
		})
	}
}

func TestLoadWithFileRejectsUnknownFields(t *testing.T) {
	path := writeConfigFile(t, `{
		"mydealz": {"thread_url": "https://www.mydealz.de/deals/x-1"},
		"telegram": {"bot_token": "`+testBotToken+`", "chat_id": 1},
		"no_such_section": {"value": true}
	}`)

	_, err := LoadWithFile(path)

	assert.Error(t, err)
}

func TestDurationAccessors(t *testing.T) {
	cfg := AppConfig{}
	cfg.MyDealz.PollIntervalSec = 90
	cfg.HTTP.TimeoutSec = 10

	assert.Equal(t, "1m30s", cfg.MyDealz.PollInterval().String())
	assert.Equal(t, "10s", cfg.HTTP.Timeout().String())
}
