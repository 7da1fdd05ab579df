// Package api provides the HTTP API server implementation.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/prime-rewards/internal/ads"
	"github.com/prime-rewards/internal/geo"
	"github.com/prime-rewards/internal/logging"
	"github.com/prime-rewards/internal/models"
	"github.com/prime-rewards/internal/tasks"
)

// Service interfaces for dependency injection and testing

// UserStore defines the user persistence operations the API needs
type UserStore interface {
	GetByID(ctx context.Context, telegramID int64) (*models.User, error)
	Create(ctx context.Context, user *models.User) error
	Update(ctx context.Context, user *models.User) error
	TopEarners(ctx context.Context, limit int) ([]*models.User, error)
}

// TransactionStore lists a user's ledger history
type TransactionStore interface {
	ListByUser(ctx context.Context, userID int64, limit, offset int) ([]*models.Transaction, error)
}

// LedgerService defines the balance operations exposed over HTTP
type LedgerService interface {
	DebitWithdrawal(ctx context.Context, userID int64, amount float64, method, accountNumber string) (*models.Transaction, error)
	RegisterReferral(ctx context.Context, referrerID int64, invited *models.User) error
	ReferralSummary(ctx context.Context, referrerID int64) (*models.ReferralData, error)
}

// AdService defines the ad watch operations exposed over HTTP
type AdService interface {
	RequestWatch(ctx context.Context, userID int64, provider string) (*ads.WatchResult, error)
	Slots(ctx context.Context, userID int64) ([]ads.SlotView, error)
}

// TaskService defines the task operations exposed over HTTP
type TaskService interface {
	List(ctx context.Context, userID int64) ([]tasks.TaskView, error)
	Complete(ctx context.Context, userID int64, taskID string) (*tasks.CompleteResult, error)
}

// DeviceGate registers accounts against device fingerprints
type DeviceGate interface {
	RegisterAccount(ctx context.Context, deviceID string, user *models.User) error
}

// NetworkGuard decides whether a client network location may use the app
type NetworkGuard interface {
	Evaluate(ctx context.Context, ip string) error
}

// CountryLookup resolves an IP to a location
type CountryLookup interface {
	Lookup(ctx context.Context, ip string) (geo.Location, error)
}

// ConfigSource provides the remote configuration documents served to clients
type ConfigSource interface {
	App(ctx context.Context) (*models.AppConfig, error)
	Wallet(ctx context.Context) (*models.WalletConfig, error)
}

// EarningsArchive aggregates recent earnings for the leaderboard
type EarningsArchive interface {
	EarningsSince(ctx context.Context, since time.Time, limit int) (map[int64]float64, error)
}

// ResetClock reports the time remaining until the next daily reset
type ResetClock interface {
	NextResetIn(now time.Time) time.Duration
}

// PostbackSink receives server-to-server completion postbacks
type PostbackSink interface {
	Deliver(err error) bool
}

// Server represents the HTTP API server.
type Server struct {
	router     *mux.Router
	httpServer *http.Server
	config     *ServerConfig
	logger     *logging.Logger

	users    UserStore
	txs      TransactionStore
	ledger   LedgerService
	ads      AdService
	tasks    TaskService
	gate     DeviceGate
	guard    NetworkGuard
	lookup   CountryLookup
	configs  ConfigSource
	archive  EarningsArchive // optional
	clock    ResetClock
	postback PostbackSink
}

// ServerConfig holds server configuration.
type ServerConfig struct {
	Host              string
	Port              string
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	BotToken          string
	InitDataTTL       time.Duration
	AllowMockUser     bool
	RequestsPerMinute int
	Burst             int
}

// Deps bundles the services the server depends on.
type Deps struct {
	Users    UserStore
	Txs      TransactionStore
	Ledger   LedgerService
	Ads      AdService
	Tasks    TaskService
	Gate     DeviceGate
	Guard    NetworkGuard
	Lookup   CountryLookup
	Configs  ConfigSource
	Archive  EarningsArchive
	Clock    ResetClock
	Postback PostbackSink
}

// NewServer creates a new API server instance.
func NewServer(config *ServerConfig, deps *Deps, logger *logging.Logger) *Server {
	s := &Server{
		router:   mux.NewRouter(),
		config:   config,
		logger:   logger.WithField("component", "api"),
		users:    deps.Users,
		txs:      deps.Txs,
		ledger:   deps.Ledger,
		ads:      deps.Ads,
		tasks:    deps.Tasks,
		gate:     deps.Gate,
		guard:    deps.Guard,
		lookup:   deps.Lookup,
		configs:  deps.Configs,
		archive:  deps.Archive,
		clock:    deps.Clock,
		postback: deps.Postback,
	}

	s.setupRouter()

	return s
}

// setupRouter configures the router with middleware and routes
func (s *Server) setupRouter() {
	s.router.Use(LoggingMiddleware(s.logger))
	s.router.Use(RecoveryMiddleware(s.logger))
	s.router.Use(CORSMiddleware)

	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%s", s.config.Host, s.config.Port),
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
	}
}

// setupRoutes configures all API routes.
func (s *Server) setupRoutes() {
	// Health check endpoint, outside auth
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")

	api := s.router.PathPrefix("/api").Subrouter()
	api.Use(AuthMiddleware(s.config.BotToken, s.config.InitDataTTL, s.config.AllowMockUser))
	api.Use(RateLimitMiddleware(NewRateLimiter(s.config.RequestsPerMinute, s.config.Burst)))

	api.HandleFunc("/auth", s.handleAuth).Methods("POST")

	api.HandleFunc("/me", s.handleGetMe).Methods("GET")
	api.HandleFunc("/me/transactions", s.handleGetTransactions).Methods("GET")

	api.HandleFunc("/ads", s.handleGetAds).Methods("GET")
	api.HandleFunc("/ads/{provider}/watch", s.handleWatchAd).Methods("POST")
	api.HandleFunc("/ads/{provider}/postback", s.handlePostback).Methods("POST")

	api.HandleFunc("/tasks", s.handleGetTasks).Methods("GET")
	api.HandleFunc("/tasks/{id}/complete", s.handleCompleteTask).Methods("POST")

	api.HandleFunc("/referrals", s.handleGetReferrals).Methods("GET")

	api.HandleFunc("/wallet", s.handleGetWallet).Methods("GET")
	api.HandleFunc("/wallet/withdraw", s.handleWithdraw).Methods("POST")

	api.HandleFunc("/leaderboard", s.handleLeaderboard).Methods("GET")

	api.HandleFunc("/netscan", s.handleNetscan).Methods("GET")
}

// handleHealth handles health check requests.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "prime-rewards",
	})
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.logger.WithField("addr", s.httpServer.Addr).Info("starting API server")
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down API server")
	return s.httpServer.Shutdown(ctx)
}

// Handler exposes the configured router
func (s *Server) Handler() http.Handler {
	return s.router
}
