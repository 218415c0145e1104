// Package messaging delivers rendered alert and report text to Telegram
// chats, translating the SDK's error shapes into the sentinel errors the
// rest of the system branches on.
package messaging

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/liqsentinel/liqsentinel/internal/model"
)

const sendTimeout = 5 * time.Second

// blockedSubstrings are the Telegram API error descriptions observed when a
// user has blocked the bot, deactivated their account, or never started a
// conversation with it, or the chat no longer exists. There is no distinct
// error code shared by these cases, so this falls back to matching the
// description text.
var blockedSubstrings = []string{
	"bot was blocked by the user",
	"user is deactivated",
	"chat not found",
	"bot can't initiate conversation",
}

// Client sends messages through a single Telegram bot.
type Client struct {
	bot *tgbotapi.BotAPI
}

// NewClient authenticates against the Telegram Bot API using token. The
// underlying HTTP client carries sendTimeout so a stalled Telegram API call
// cannot block the caller past the documented per-send bound.
func NewClient(token string) (*Client, error) {
	bot, err := tgbotapi.NewBotAPIWithClient(token, tgbotapi.APIEndpoint, &http.Client{Timeout: sendTimeout})
	if err != nil {
		return nil, fmt.Errorf("telegram: authenticate: %w", err)
	}
	return &Client{bot: bot}, nil
}

// Send delivers text to chatID as MarkdownV2. Transient failures are
// returned as-is and are not retried; a blocked/unreachable recipient is
// reported as model.ErrRecipientBlocked so the caller can stop messaging
// that chat. The send is bounded by sendTimeout regardless of ctx, and also
// returns promptly if ctx is cancelled first, so it can never block an
// ingest goroutine indefinitely.
func (c *Client) Send(ctx context.Context, chatID int64, text string) error {
	ctx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()

	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdownV2

	type sendResult struct {
		err error
	}
	resCh := make(chan sendResult, 1)
	go func() {
		_, err := c.bot.Send(msg)
		resCh <- sendResult{err: err}
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("telegram: send to %d: %w", chatID, ctx.Err())
	case res := <-resCh:
		if res.err == nil {
			return nil
		}
		if isBlocked(res.err) {
			return fmt.Errorf("%w: chat %d: %v", model.ErrRecipientBlocked, chatID, res.err)
		}
		return fmt.Errorf("telegram: send to %d: %w", chatID, res.err)
	}
}

func isBlocked(err error) bool {
	msg := strings.ToLower(err.Error())
	for _, s := range blockedSubstrings {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}
