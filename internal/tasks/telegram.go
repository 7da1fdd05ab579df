package tasks

import (
	"context"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// TelegramChecker verifies channel membership through the Bot API.
// The bot must be an admin of every channel it checks.
type TelegramChecker struct {
	bot *tgbotapi.BotAPI
}

// NewTelegramChecker creates a checker from a bot token
func NewTelegramChecker(token string) (*TelegramChecker, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize telegram bot: %w", err)
	}
	return &TelegramChecker{bot: bot}, nil
}

// IsMember reports whether the user belongs to the channel. Channel is
// the public username, with or without the leading @.
func (c *TelegramChecker) IsMember(ctx context.Context, channel string, userID int64) (bool, error) {
	if !strings.HasPrefix(channel, "@") {
		channel = "@" + channel
	}

	member, err := c.bot.GetChatMember(tgbotapi.GetChatMemberConfig{
		ChatConfigWithUser: tgbotapi.ChatConfigWithUser{
			SuperGroupUsername: channel,
			UserID:             userID,
		},
	})
	if err != nil {
		return false, fmt.Errorf("failed to query chat member: %w", err)
	}

	switch member.Status {
	case "creator", "administrator", "member":
		return true, nil
	default:
		return false, nil
	}
}
