// Package telegram sends brief notifications through the Telegram Bot API.
package telegram

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Notifier delivers a message to one recipient. Implementations never
// return delivery failures to the pipeline; they log them.
type Notifier interface {
	Notify(ctx context.Context, recipientID, message string)
}

// Sender is the part of *tgbotapi.BotAPI the notifier uses.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// BotFactory creates a Sender for a token.
type BotFactory func(token, apiEndpoint string, client *http.Client) (Sender, error)

func defaultBotFactory(token, apiEndpoint string, client *http.Client) (Sender, error) {
	bot, err := tgbotapi.NewBotAPIWithClient(token, apiEndpoint, client)
	if err != nil {
		return nil, err
	}
	return bot, nil
}

// Option configures a Client.
type Option func(*Client)

// WithBotFactory replaces the bot constructor (for testing).
func WithBotFactory(f BotFactory) Option {
	return func(c *Client) { c.factory = f }
}

// WithEndpoint sets the API endpoint format string.
func WithEndpoint(endpoint string) Option {
	return func(c *Client) {
		if endpoint != "" {
			c.endpoint = endpoint
		}
	}
}

// Client is a Notifier backed by a bot created on first successful use.
// A failed creation is retried on the next Notify.
type Client struct {
	token    string
	endpoint string
	http     *http.Client
	factory  BotFactory

	mu  sync.Mutex
	bot Sender
}

// New returns a Notifier for token. An empty token yields a notifier that
// drops every message.
func New(token string, opts ...Option) Notifier {
	if token == "" {
		return Noop{}
	}
	c := &Client{
		token:    token,
		endpoint: tgbotapi.APIEndpoint,
		http:     &http.Client{Timeout: 10 * time.Second},
		factory:  defaultBotFactory,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) sender() (Sender, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.bot != nil {
		return c.bot, nil
	}
	bot, err := c.factory(c.token, c.endpoint, c.http)
	if err != nil {
		return nil, eris.Wrap(err, "telegram: create bot")
	}
	c.bot = bot
	return bot, nil
}

// Notify sends message as HTML with link previews disabled.
func (c *Client) Notify(ctx context.Context, recipientID, message string) {
	log := zap.L().With(zap.String("recipient", recipientID))
	if err := ctx.Err(); err != nil {
		log.Warn("telegram: context done, notification dropped", zap.Error(err))
		return
	}

	chatID, err := strconv.ParseInt(recipientID, 10, 64)
	if err != nil {
		log.Warn("telegram: invalid chat id", zap.Error(err))
		return
	}

	bot, err := c.sender()
	if err != nil {
		log.Warn("telegram: notification failed", zap.Error(err))
		return
	}

	msg := tgbotapi.NewMessage(chatID, message)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = true
	if _, err := bot.Send(msg); err != nil {
		log.Warn("telegram: notification failed", zap.Error(eris.Wrap(err, "telegram: send")))
		return
	}
	log.Info("telegram: notification sent")
}

// Noop drops every notification.
type Noop struct{}

// Notify does nothing.
func (Noop) Notify(context.Context, string, string) {}
