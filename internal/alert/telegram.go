// Package alert posts pipeline failures to an ops channel. The
// pipeline stays fail-open on source and delivery errors; this is the
// observability hook that keeps those swallowed errors visible.
package alert

import (
	"context"
	"fmt"
	"log/slog"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Notifier sends operational alerts to a Telegram channel. A nil
// Notifier is valid and drops everything, so wiring stays optional.
type Notifier struct {
	bot       *tgbotapi.BotAPI
	channelID int64
	log       *slog.Logger
}

func NewNotifier(token string, channelID int64, log *slog.Logger) (*Notifier, error) {
	if token == "" || channelID == 0 {
		return nil, nil
	}

	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create alert bot: %w", err)
	}

	return &Notifier{bot: bot, channelID: channelID, log: log}, nil
}

// SourceFailed implements the fetcher failure hook.
func (n *Notifier) SourceFailed(_ context.Context, userID, sourceLabel string, err error) {
	if n == nil {
		return
	}

	n.send(fmt.Sprintf("source fetch failed\nuser: %s\nsource: %s\nerror: %v", userID, sourceLabel, err))
}

// DigestFailed reports a digest that ended up in FAILED state.
func (n *Notifier) DigestFailed(_ context.Context, userID, digestID, reason string) {
	if n == nil {
		return
	}

	n.send(fmt.Sprintf("digest failed\nuser: %s\ndigest: %s\nreason: %s", userID, digestID, reason))
}

func (n *Notifier) send(text string) {
	msg := tgbotapi.NewMessage(n.channelID, text)

	if _, err := n.bot.Send(msg); err != nil {
		n.log.Warn("sending ops alert failed", "error", err)
	}
}
