package server

import (
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/karavan-app/karavan/internal/clock"
	"github.com/karavan-app/karavan/internal/goal"
	"github.com/karavan-app/karavan/internal/handler"
	"github.com/karavan-app/karavan/internal/middleware"
	"github.com/karavan-app/karavan/internal/notify"
	"github.com/karavan-app/karavan/internal/store"
	ws "github.com/karavan-app/karavan/internal/websocket"
)

// Config carries everything the server needs from the environment.
type Config struct {
	BotToken        string
	VAPIDPublicKey  string
	VAPIDPrivateKey string
}

type Server struct {
	db          *sql.DB
	cfg         Config
	hub         *ws.Hub
	goalH       *handler.GoalHandler
	caravanH    *handler.CaravanHandler
	walletH     *handler.WalletHandler
	pushH       *handler.PushHandler
	scheduler   *notify.Scheduler
	rateLimiter *middleware.RateLimiter
	logger      *slog.Logger
}

func New(db *sql.DB, cfg Config, clk clock.Clock, logger *slog.Logger) *Server {
	hub := ws.NewHub(logger.With("component", "websocket"))

	goalStore := store.NewGoalStore(db)
	historyStore := store.NewHistoryStore(db)
	walletStore := store.NewWalletStore(db)
	streakStore := store.NewStreakStore(db)
	caravanStore := store.NewCaravanStore(db)
	pushStore := store.NewPushStore(db)
	notificationStore := store.NewNotificationStore(db)

	pushSvc := notify.NewService(cfg.VAPIDPublicKey, cfg.VAPIDPrivateKey)
	scheduler := notify.NewScheduler(pushSvc, notificationStore, pushStore, clk, logger)

	engine := goal.NewEngine(goalStore, historyStore, walletStore, streakStore, scheduler, clk, logger.With("component", "engine"))

	var pushH *handler.PushHandler
	if cfg.VAPIDPublicKey != "" && cfg.VAPIDPrivateKey != "" {
		pushH = handler.NewPushHandler(pushStore, pushSvc, logger.With("component", "push"))
	}

	return &Server{
		db:          db,
		cfg:         cfg,
		hub:         hub,
		goalH:       handler.NewGoalHandler(goalStore, historyStore, caravanStore, engine, hub, clk, logger.With("component", "goal")),
		caravanH:    handler.NewCaravanHandler(caravanStore, goalStore, hub, clk, logger.With("component", "caravan")),
		walletH:     handler.NewWalletHandler(walletStore, streakStore, logger.With("component", "wallet")),
		pushH:       pushH,
		scheduler:   scheduler,
		rateLimiter: middleware.NewRateLimiter(),
		logger:      logger,
	}
}

// Scheduler returns the notification delivery loop for lifecycle management.
func (s *Server) Scheduler() *notify.Scheduler {
	return s.scheduler
}

// RateLimiter returns the rate limiter for cleanup tasks.
func (s *Server) RateLimiter() *middleware.RateLimiter {
	return s.rateLimiter
}

func (s *Server) Router() http.Handler {
	outerMux := http.NewServeMux()

	outerMux.HandleFunc("GET /health", s.healthHandler)

	// Everything else requires a verified Telegram identity.
	protectedMux := http.NewServeMux()
	s.registerProtectedRoutes(protectedMux)

	authMiddleware := middleware.TelegramAuth(s.cfg.BotToken)
	outerMux.Handle("/", authMiddleware(protectedMux))

	return middleware.RequestLogger(s.logger.With("component", "http"))(outerMux)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) rateLimitedHandler(h http.HandlerFunc) http.HandlerFunc {
	keyFunc := func(r *http.Request) string {
		return middleware.RealIP(r)
	}
	rl := middleware.RateLimit(s.rateLimiter, keyFunc, 10, time.Minute)
	return func(w http.ResponseWriter, r *http.Request) {
		rl(http.HandlerFunc(h)).ServeHTTP(w, r)
	}
}

func (s *Server) registerProtectedRoutes(mux *http.ServeMux) {
	// Goal API routes
	mux.HandleFunc("POST /api/goals", s.rateLimitedHandler(s.goalH.Create))
	mux.HandleFunc("GET /api/goals", s.goalH.List)
	mux.HandleFunc("GET /api/goals/{id}", s.goalH.Get)
	mux.HandleFunc("PUT /api/goals/{id}", s.goalH.Update)
	mux.HandleFunc("DELETE /api/goals/{id}", s.goalH.Delete)
	mux.HandleFunc("POST /api/goals/{id}/evaluate", s.goalH.Evaluate)

	// Checkpoint state machine
	mux.HandleFunc("POST /api/goals/{id}/checkpoints/{index}/confirm", s.goalH.ConfirmCheckpoint)
	mux.HandleFunc("POST /api/goals/{id}/checkpoints/{index}/skip", s.goalH.SkipCheckpoint)
	mux.HandleFunc("POST /api/goals/{id}/finish", s.goalH.ConfirmFinal)
	mux.HandleFunc("POST /api/goals/{id}/decline-finish", s.goalH.DeclineFinal)

	// Daily task lifecycle
	mux.HandleFunc("POST /api/goals/{id}/task", s.goalH.IssueDailyTask)
	mux.HandleFunc("POST /api/goals/{id}/task/complete", s.goalH.CompleteDailyTask)
	mux.HandleFunc("POST /api/goals/{id}/task/skip", s.goalH.SkipDailyTask)
	mux.HandleFunc("GET /api/goals/{id}/history", s.goalH.History)

	// Caravan API routes
	mux.HandleFunc("POST /api/caravans", s.rateLimitedHandler(s.caravanH.Create))
	mux.HandleFunc("GET /api/caravans", s.caravanH.List)
	mux.HandleFunc("GET /api/caravans/{id}", s.caravanH.Get)
	mux.HandleFunc("POST /api/caravans/{id}/join", s.caravanH.Join)

	// Wallet
	mux.HandleFunc("GET /api/wallet", s.walletH.Get)

	// Push notification API routes
	if s.pushH != nil {
		mux.HandleFunc("POST /api/push/subscribe", s.pushH.Subscribe)
		mux.HandleFunc("POST /api/push/unsubscribe", s.pushH.Unsubscribe)
		mux.HandleFunc("GET /api/push/vapid-key", s.pushH.GetVAPIDKey)
	}

	// WebSocket
	mux.HandleFunc("GET /ws", ws.HandleWebSocket(s.hub))
}
