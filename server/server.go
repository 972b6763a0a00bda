package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/room4-2/SalesCaller/config"
	"github.com/room4-2/SalesCaller/conversation"
	"github.com/room4-2/SalesCaller/messages"
	"github.com/room4-2/SalesCaller/metrics"
	"github.com/room4-2/SalesCaller/monitor"
	"github.com/room4-2/SalesCaller/session"
)

// CallPlacer originates an outbound call playing twiml
type CallPlacer interface {
	PlaceCall(ctx context.Context, to, twiml string) (string, error)
}

// Deps are the collaborators built by the composition root
type Deps struct {
	Sessions  *session.Manager
	Caller    CallPlacer
	Booker    *conversation.Booker
	Documents *messages.Documents
	Monitor   *monitor.Hub
	Metrics   *metrics.Metrics
	Logger    *zap.Logger
}

// Server answers Twilio voice callbacks and the operator endpoints
type Server struct {
	httpServer *http.Server
	config     *config.Config
	sessions   *session.Manager
	caller     CallPlacer
	booker     *conversation.Booker
	docs       *messages.Documents
	hub        *monitor.Hub
	metrics    *metrics.Metrics
	logger     *zap.Logger
	validate   *validator.Validate
	limiter    *rate.Limiter
}

func NewServer(cfg *config.Config, deps Deps) *Server {
	s := &Server{
		config:   cfg,
		sessions: deps.Sessions,
		caller:   deps.Caller,
		booker:   deps.Booker,
		docs:     deps.Documents,
		hub:      deps.Monitor,
		metrics:  deps.Metrics,
		logger:   deps.Logger,
		validate: validator.New(),
		limiter:  rate.NewLimiter(rate.Limit(cfg.CallRateLimit), cfg.CallRateBurst),
	}

	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           s.routes(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		// Date callbacks wait on Google Calendar and Twilio before answering.
		WriteTimeout: 30 * time.Second,
	}

	return s
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(s.requestLogger)
	r.Use(s.recoverer)

	r.Get("/", s.handleHome)
	r.With(s.rateLimit).Get("/call", s.handleCall)
	r.Post(messages.PathProcess, s.handleProcess)
	r.Post(messages.PathProcessDate, s.handleProcessDate)
	r.Get("/voice", s.handleVoice)
	r.Get("/health", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	r.Method(http.MethodGet, "/monitor", s.hub)

	return r
}

// Handler exposes the router, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start begins listening for connections
func (s *Server) Start() error {
	s.logger.Info("server starting",
		zap.String("addr", s.httpServer.Addr),
		zap.String("process", s.config.CallbackURL(messages.PathProcess)),
		zap.String("process_date", s.config.CallbackURL(messages.PathProcessDate)),
	)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully stops the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down server")
	s.hub.Close()
	return s.httpServer.Shutdown(ctx)
}
