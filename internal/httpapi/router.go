package httpapi

import (
	"net/http"
	"time"

	"github.com/julienschmidt/httprouter"

	"github.com/Leganyst/room-booking/internal/apperror"
	"github.com/Leganyst/room-booking/internal/logger"
	"github.com/Leganyst/room-booking/internal/middleware"
)

// RouterConfig — всё, из чего собирается HTTP-обработчик сервиса.
type RouterConfig struct {
	Bookings *BookingHandler
	Auth     *Authenticator
	Health   *HealthHandler
	// Webhook — обработчик обновлений бота, nil отключает /webhook.
	Webhook http.Handler
	// StaticDir — каталог собранного Mini App, пустой отключает раздачу.
	StaticDir string

	RequestTimeout time.Duration
	MaxBodyBytes   int64
	Log            *logger.Logger
}

// NewRouter собирает mux: health без лишних middleware, API с полным набором.
func NewRouter(cfg RouterConfig) http.Handler {
	log := cfg.Log

	healthRouter := httprouter.New()
	cfg.Health.RegisterRoutes(healthRouter)
	var health http.Handler = healthRouter
	health = middleware.Recovery(log)(health)

	apiRouter := httprouter.New()
	cfg.Bookings.RegisterRoutes(apiRouter, cfg.Auth)
	apiRouter.NotFound = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, log, "router", apperror.NotFound("Not Found"))
	})

	var api http.Handler = apiRouter
	api = middleware.RequestTimeout(cfg.RequestTimeout)(api)
	api = middleware.ContentTypeValidation(log)(api)
	api = middleware.MaxRequestSize(cfg.MaxBodyBytes)(api)
	api = middleware.RequestLogging(log)(api)
	api = middleware.Recovery(log)(api)

	mux := http.NewServeMux()
	mux.Handle("/health", health)
	mux.Handle("/ready", health)
	mux.Handle("/api/", api)

	if cfg.Webhook != nil {
		var webhook http.Handler = cfg.Webhook
		webhook = middleware.MaxRequestSize(cfg.MaxBodyBytes)(webhook)
		webhook = middleware.RequestLogging(log)(webhook)
		webhook = middleware.Recovery(log)(webhook)
		mux.Handle("/webhook", webhook)
	}

	if cfg.StaticDir != "" {
		mux.Handle("/", http.FileServer(http.Dir(cfg.StaticDir)))
	}

	return mux
}
