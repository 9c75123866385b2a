package notify

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api"

	"github.com/calebh/marketscout/internal/ai"
	"github.com/calebh/marketscout/internal/domain"
)

// TelegramNotifier pushes listing notifications to a Telegram chat.
type TelegramNotifier struct {
	bot    *tgbotapi.BotAPI
	chatID int64
}

// NewTelegramNotifier creates a TelegramNotifier.
// Parameters:
//   - token: bot API token.
//   - chatID: destination chat.
// Returns:
//   - *TelegramNotifier: notifier instance.
//   - error: non-nil if the bot cannot authenticate.
func NewTelegramNotifier(token string, chatID int64) (*TelegramNotifier, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram auth failed: %w", err)
	}
	return &TelegramNotifier{bot: bot, chatID: chatID}, nil
}

// Name identifies the channel in logs.
func (n *TelegramNotifier) Name() string { return "telegram" }

// Notify delivers one listing.
func (n *TelegramNotifier) Notify(ctx context.Context, listing *domain.Listing, eval *ai.Evaluation) error {
	msg := tgbotapi.NewMessage(n.chatID, FormatText(listing, eval))
	if _, err := n.bot.Send(msg); err != nil {
		return fmt.Errorf("telegram send failed: %w", err)
	}
	return nil
}
