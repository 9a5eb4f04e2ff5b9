package bot

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"

	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/Leganyst/room-booking/internal/logger"
	"github.com/Leganyst/room-booking/internal/model"
)

const (
	WebhookPath         = "/webhook"
	SecretTokenHeader   = "X-Telegram-Bot-Api-Secret-Token"
	defaultQueueSize    = 100
	welcomeText         = "Добро пожаловать! Нажмите на кнопку ниже, чтобы забронировать комнату."
	welcomeButtonText   = "📅 Забронировать комнату"
	startCommand        = "/start"
	maxWebhookBodyBytes = 1 << 20
)

var ErrDispatcherStopped = errors.New("dispatcher is stopped")

// Identity — что диспетчеру нужно от сервиса пользователей.
type Identity interface {
	ResolveOrCreate(ctx context.Context, id int64, username string) (*model.User, bool, error)
	WelcomeSent(ctx context.Context, userID int64) (bool, error)
	MarkWelcomeSent(ctx context.Context, userID int64) error
}

// API — методы Bot API, которыми пользуется диспетчер.
type API interface {
	SendMessage(ctx context.Context, params *tgbot.SendMessageParams) error
	SetWebhook(ctx context.Context, url, secretToken string) error
	DeleteWebhook(ctx context.Context) error
	GetWebhookInfo(ctx context.Context) (*models.WebhookInfo, error)
}

type DispatcherConfig struct {
	WebAppURL     string
	WebhookSecret string
	QueueSize     int
}

// Dispatcher принимает обновления через webhook и обрабатывает их в отдельной горутине.
// Регистрируется один раз: Start ставит webhook и запускает воркер, Stop снимает
// webhook и дожидается обработки очереди.
type Dispatcher struct {
	api      API
	identity Identity
	cfg      DispatcherConfig
	log      *logger.Logger

	mu      sync.Mutex
	queue   chan models.Update
	started bool
	stopped bool
	done    chan struct{}
	cancel  context.CancelFunc
}

func NewDispatcher(api API, identity Identity, cfg DispatcherConfig, log *logger.Logger) *Dispatcher {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = defaultQueueSize
	}
	cfg.WebAppURL = strings.TrimRight(cfg.WebAppURL, "/")
	return &Dispatcher{
		api:      api,
		identity: identity,
		cfg:      cfg,
		log:      log,
		queue:    make(chan models.Update, cfg.QueueSize),
		done:     make(chan struct{}),
	}
}

// WebhookURL — адрес, который регистрируется в Telegram.
func (d *Dispatcher) WebhookURL() string {
	return d.cfg.WebAppURL + WebhookPath
}

func (d *Dispatcher) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.started {
		return errors.New("dispatcher already started")
	}

	target := d.WebhookURL()
	info, err := d.api.GetWebhookInfo(ctx)
	if err != nil {
		return fmt.Errorf("get webhook info: %w", err)
	}
	if info.URL != target || d.cfg.WebhookSecret != "" {
		if err := d.api.SetWebhook(ctx, target, d.cfg.WebhookSecret); err != nil {
			return fmt.Errorf("set webhook: %w", err)
		}
		d.log.Info("telegram webhook registered", "url", target)
	}

	workerCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	d.cancel = cancel
	d.started = true
	go d.run(workerCtx)
	return nil
}

// Stop снимает webhook и ждёт, пока воркер разберёт очередь (или истечёт ctx).
func (d *Dispatcher) Stop(ctx context.Context) error {
	d.mu.Lock()
	if !d.started || d.stopped {
		d.mu.Unlock()
		return nil
	}
	d.stopped = true
	close(d.queue)
	d.mu.Unlock()

	var errs []error
	if err := d.api.DeleteWebhook(ctx); err != nil {
		errs = append(errs, fmt.Errorf("delete webhook: %w", err))
	}

	select {
	case <-d.done:
	case <-ctx.Done():
		d.cancel()
		errs = append(errs, fmt.Errorf("drain updates: %w", ctx.Err()))
	}
	d.cancel()
	return errors.Join(errs...)
}

// Enqueue ставит обновление в очередь. Переполненная очередь — обновление теряется.
func (d *Dispatcher) Enqueue(upd models.Update) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return ErrDispatcherStopped
	}

	select {
	case d.queue <- upd:
		return nil
	default:
		return fmt.Errorf("update queue is full (%d)", cap(d.queue))
	}
}

// ServeHTTP — обработчик POST /webhook.
func (d *Dispatcher) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	if d.cfg.WebhookSecret != "" {
		got := r.Header.Get(SecretTokenHeader)
		if subtle.ConstantTimeCompare([]byte(got), []byte(d.cfg.WebhookSecret)) != 1 {
			d.log.Warn("webhook rejected: bad secret token", "remote_addr", r.RemoteAddr)
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
	}

	var upd models.Update
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxWebhookBodyBytes)).Decode(&upd); err != nil {
		d.log.Warn("webhook: bad update payload", "error", err)
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	// Telegram повторяет доставку при не-2xx, поэтому ошибки очереди только логируем.
	if err := d.Enqueue(upd); err != nil {
		d.log.Warn("webhook: update dropped", "update_id", upd.ID, "error", err)
	}
	w.WriteHeader(http.StatusOK)
}

func (d *Dispatcher) run(ctx context.Context) {
	defer close(d.done)
	for upd := range d.queue {
		if ctx.Err() != nil {
			return
		}
		if err := d.handle(ctx, upd); err != nil {
			d.log.Error("handle update failed", "update_id", upd.ID, "error", err)
		}
	}
}

func (d *Dispatcher) handle(ctx context.Context, upd models.Update) error {
	msg := upd.Message
	if msg == nil || msg.From == nil || msg.From.IsBot {
		return nil
	}
	if !isCommand(msg.Text, startCommand) {
		return nil
	}

	user, _, err := d.identity.ResolveOrCreate(ctx, msg.From.ID, msg.From.Username)
	if err != nil {
		return fmt.Errorf("resolve user: %w", err)
	}

	sent, err := d.identity.WelcomeSent(ctx, user.ID)
	if err != nil {
		return err
	}
	if sent {
		return nil
	}

	if err := d.api.SendMessage(ctx, welcomeMessage(msg.Chat.ID, d.cfg.WebAppURL)); err != nil {
		return fmt.Errorf("send welcome: %w", err)
	}
	if err := d.identity.MarkWelcomeSent(ctx, user.ID); err != nil {
		return err
	}

	d.log.Info("welcome message sent", "user_id", user.ID)
	return nil
}

func welcomeMessage(chatID int64, webAppURL string) *tgbot.SendMessageParams {
	return &tgbot.SendMessageParams{
		ChatID: chatID,
		Text:   welcomeText,
		ReplyMarkup: &models.InlineKeyboardMarkup{
			InlineKeyboard: [][]models.InlineKeyboardButton{{
				{Text: welcomeButtonText, WebApp: &models.WebAppInfo{URL: webAppURL}},
			}},
		},
	}
}

// isCommand понимает и "/start", и "/start@botname payload".
func isCommand(text, command string) bool {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return false
	}
	name, _, _ := strings.Cut(fields[0], "@")
	return name == command
}
