// Package notify delivers trigger-cycle summaries to external channels.
package notify

import (
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/wakeguard/wakeguard/internal/config"
	"github.com/wakeguard/wakeguard/internal/logging"
	"github.com/wakeguard/wakeguard/internal/trigger"
)

// Notifier receives trigger-cycle outcomes. Implementations must not block
// the cycle on delivery failures.
type Notifier interface {
	TriggerCompleted(accountEmail string, result *trigger.Result)
}

// Noop discards all notifications.
type Noop struct{}

// TriggerCompleted implements Notifier.
func (Noop) TriggerCompleted(string, *trigger.Result) {}

// Telegram sends a summary message per completed trigger cycle.
type Telegram struct {
	bot    *tgbotapi.BotAPI
	chatID int64
	logger *logging.Logger
}

// NewTelegram creates a Telegram notifier, or a Noop when disabled.
func NewTelegram(cfg config.TelegramConfig, logger *logging.Logger) (Notifier, error) {
	if !cfg.Enabled {
		return Noop{}, nil
	}

	bot, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		return nil, fmt.Errorf("telegram bot init: %w", err)
	}

	return &Telegram{bot: bot, chatID: cfg.ChatID, logger: logger}, nil
}

// TriggerCompleted sends the per-model outcome summary. Send failures are
// logged and swallowed.
func (t *Telegram) TriggerCompleted(accountEmail string, result *trigger.Result) {
	if result == nil || len(result.Results) == 0 {
		return
	}

	var b strings.Builder
	if result.Success {
		fmt.Fprintf(&b, "✅ Wakeup trigger succeeded for %s\n", accountEmail)
	} else {
		fmt.Fprintf(&b, "⚠️ Wakeup trigger had failures for %s\n", accountEmail)
	}
	for _, r := range result.Results {
		if r.Success {
			fmt.Fprintf(&b, "  • %s ok (%dms)\n", r.ModelID, r.DurationMs)
		} else {
			fmt.Fprintf(&b, "  • %s failed: %s\n", r.ModelID, r.Error)
		}
	}

	msg := tgbotapi.NewMessage(t.chatID, b.String())
	if _, err := t.bot.Send(msg); err != nil && t.logger != nil {
		t.logger.Warn("telegram notification failed", "error", err.Error())
	}
}
