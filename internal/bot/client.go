package bot

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

const (
	DefaultAPIEndpoint = "https://api.telegram.org"
	requestTimeout     = 10 * time.Second
	// long polling сервис не использует, но библиотека требует значение
	pollTimeout = time.Minute
)

// Client — обёртка над go-telegram/bot с нужным диспетчеру набором методов.
type Client struct {
	bot   *tgbot.Bot
	token string
}

func NewClient(endpoint, token string, httpClient *http.Client) (*Client, error) {
	if endpoint == "" {
		endpoint = DefaultAPIEndpoint
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: requestTimeout}
	}

	b, err := tgbot.New(token,
		tgbot.WithServerURL(strings.TrimRight(endpoint, "/")),
		tgbot.WithHTTPClient(pollTimeout, httpClient),
		// getMe на старте не нужен: webhook и так проверит токен
		tgbot.WithSkipGetMe(),
	)
	if err != nil {
		return nil, fmt.Errorf("init telegram bot: %w", err)
	}
	return &Client{bot: b, token: token}, nil
}

func (c *Client) SendMessage(ctx context.Context, params *tgbot.SendMessageParams) error {
	if _, err := c.bot.SendMessage(ctx, params); err != nil {
		return c.wrap("sendMessage", err)
	}
	return nil
}

func (c *Client) SetWebhook(ctx context.Context, url, secretToken string) error {
	_, err := c.bot.SetWebhook(ctx, &tgbot.SetWebhookParams{
		URL:            url,
		AllowedUpdates: []string{"message"},
		SecretToken:    secretToken,
	})
	if err != nil {
		return c.wrap("setWebhook", err)
	}
	return nil
}

func (c *Client) DeleteWebhook(ctx context.Context) error {
	if _, err := c.bot.DeleteWebhook(ctx, &tgbot.DeleteWebhookParams{}); err != nil {
		return c.wrap("deleteWebhook", err)
	}
	return nil
}

func (c *Client) GetWebhookInfo(ctx context.Context) (*models.WebhookInfo, error) {
	info, err := c.bot.GetWebhookInfo(ctx)
	if err != nil {
		return nil, c.wrap("getWebhookInfo", err)
	}
	return info, nil
}

// wrap убирает токен из текста ошибки: он входит в URL запроса.
func (c *Client) wrap(method string, err error) error {
	return &redactedError{
		msg: "bot api " + method + ": " + strings.ReplaceAll(err.Error(), c.token, "<token>"),
		err: err,
	}
}

type redactedError struct {
	msg string
	err error
}

func (e *redactedError) Error() string { return e.msg }
func (e *redactedError) Unwrap() error { return e.err }
