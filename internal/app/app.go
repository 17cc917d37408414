package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/Novip1906/taskmaster/internal/config"
	"github.com/Novip1906/taskmaster/internal/docstore"
	"github.com/Novip1906/taskmaster/internal/docstore/firestore"
	"github.com/Novip1906/taskmaster/internal/docstore/memory"
	"github.com/Novip1906/taskmaster/internal/docstore/postgres"
	"github.com/Novip1906/taskmaster/internal/elasticsearch"
	"github.com/Novip1906/taskmaster/internal/interceptors"
	"github.com/Novip1906/taskmaster/internal/kafka"
	"github.com/Novip1906/taskmaster/internal/rpc"
	"github.com/Novip1906/taskmaster/internal/service"
	"github.com/Novip1906/taskmaster/internal/storage"
	"github.com/Novip1906/taskmaster/internal/tokens"
	"github.com/Novip1906/taskmaster/pkg/logging"
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis_rate/v10"
	"google.golang.org/grpc"
)

const shutdownTimeout = 5 * time.Second

// Deps are the backing services of a Server. Limiter, Search, Events and
// Consumer are optional.
type Deps struct {
	Store    docstore.Store
	Accounts service.AccountsStorage
	Sessions service.SessionsStorage
	Limiter  interceptors.Limiter
	Search   service.SearchIndex
	Events   service.EventSender
	// Consumer feeds the search index from the events topic while Run is
	// serving.
	Consumer *kafka.Consumer

	// Closers run in order on Close.
	Closers []io.Closer
}

type Server struct {
	cfg              *config.Config
	gs               *grpc.Server
	health           *http.Server
	log              *slog.Logger
	authService      *service.AuthService
	consumer         *kafka.Consumer
	closers          []io.Closer
}

// NewServer connects to the backing services selected by cfg.
func NewServer(ctx context.Context, cfg *config.Config, log *slog.Logger) (*Server, error) {
	deps, err := connect(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	return New(cfg, log, deps), nil
}

func New(cfg *config.Config, log *slog.Logger, deps Deps) *Server {
	tokenManager := tokens.NewManager(cfg.JWT.Secret, cfg.JWT.SessionTTL)
	authService := service.NewAuthService(cfg, log, deps.Accounts, deps.Sessions, tokenManager)
	documentsService := service.NewDocumentsService(cfg, log, deps.Store, deps.Search, deps.Events)

	unary := []grpc.UnaryServerInterceptor{interceptors.LoggingInterceptor(log)}
	stream := []grpc.StreamServerInterceptor{interceptors.LoggingStreamInterceptor(log)}
	if deps.Limiter != nil {
		rl := interceptors.NewRateLimiter(deps.Limiter, &cfg.RateLimiter, log)
		unary = append(unary, rl.Unary())
		stream = append(stream, rl.Stream())
	}
	unary = append(unary, interceptors.AuthUnaryInterceptor(authService, log))
	stream = append(stream, interceptors.AuthStreamInterceptor(authService, log))

	gs := grpc.NewServer(grpc.ChainUnaryInterceptor(unary...), grpc.ChainStreamInterceptor(stream...))
	rpc.RegisterAuthServer(gs, authService)
	rpc.RegisterDocumentsServer(gs, documentsService)

	return &Server{
		cfg:              cfg,
		gs:               gs,
		health:           &http.Server{Addr: cfg.HealthAddress, Handler: healthRouter()},
		log:              log,
		authService:      authService,
		consumer:         deps.Consumer,
		closers:          deps.Closers,
	}
}

func healthRouter() http.Handler {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	return r
}

// Run serves gRPC and the health endpoint until ctx is done, then stops
// gracefully.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Address)
	if err != nil {
		return err
	}

	go func() {
		if err := s.health.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("health server error", logging.Err(err))
		}
	}()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	if s.consumer != nil {
		s.consumer.Start(ctx)
		defer func() {
			cancel()
			if err := s.consumer.Stop(); err != nil {
				s.log.Warn("events consumer stop", logging.Err(err))
			}
		}()
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.Serve(ln)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.health.Shutdown(shutdownCtx); err != nil {
		s.log.Warn("health server shutdown", logging.Err(err))
	}
	s.gs.GracefulStop()
	return <-errCh
}

// Serve serves gRPC on ln until Stop.
func (s *Server) Serve(ln net.Listener) error {
	return s.gs.Serve(ln)
}

func (s *Server) Stop() {
	s.gs.Stop()
}

func (s *Server) Close() {
	for _, c := range s.closers {
		if err := c.Close(); err != nil {
			s.log.Warn("close error", logging.Err(err))
		}
	}
}

// connect opens the storage, session, limiter, event and search backends.
// The memory driver keeps everything in process and disables rate limiting.
func connect(ctx context.Context, cfg *config.Config, log *slog.Logger) (Deps, error) {
	var deps Deps

	fail := func(err error) (Deps, error) {
		for _, c := range deps.Closers {
			c.Close()
		}
		return Deps{}, err
	}

	switch cfg.DocStore.Driver {
	case config.DriverMemory:
		mem := storage.NewMemoryStorage()
		deps.Store = memory.New()
		deps.Accounts = mem
		deps.Sessions = mem
		log.Warn("running with in-memory storage")
		return connectOptional(cfg, log, deps)
	case config.DriverPostgres:
		store, err := postgres.New(cfg.DB.DSN(), log)
		if err != nil {
			return fail(fmt.Errorf("docstore: %w", err))
		}
		deps.Store = store
		deps.Closers = append(deps.Closers, store)
	case config.DriverFirestore:
		fs := cfg.DocStore.Firestore
		store, err := firestore.New(ctx, fs.ProjectID, fs.CredentialsFile, log)
		if err != nil {
			return fail(fmt.Errorf("docstore: %w", err))
		}
		deps.Store = store
		deps.Closers = append(deps.Closers, store)
	default:
		return fail(fmt.Errorf("docstore: unknown driver %q", cfg.DocStore.Driver))
	}

	accounts, err := storage.NewPostgresStorage(cfg.DB.DSN(), log)
	if err != nil {
		return fail(fmt.Errorf("accounts: %w", err))
	}
	deps.Accounts = accounts
	deps.Closers = append(deps.Closers, accounts)

	rdb, err := storage.NewRedisClient(ctx, cfg.Redis.Address, cfg.Redis.Password, cfg.Redis.DB, log)
	if err != nil {
		return fail(err)
	}
	deps.Sessions = storage.NewRedisStorage(rdb)
	deps.Limiter = redis_rate.NewLimiter(rdb)
	deps.Closers = append(deps.Closers, rdb)

	return connectOptional(cfg, log, deps)
}

func connectOptional(cfg *config.Config, log *slog.Logger, deps Deps) (Deps, error) {
	if len(cfg.Kafka.Brokers) > 0 {
		events := kafka.NewEventsProducer(&cfg.Kafka)
		deps.Events = events
		deps.Closers = append(deps.Closers, events)
		log.Info("publishing task events", slog.String("topic", cfg.Kafka.EventsTopic))
	}

	if len(cfg.Elasticsearch.Addresses) > 0 {
		search, err := elasticsearch.NewClient(cfg.Elasticsearch.Addresses, cfg.Elasticsearch.Index, log)
		if err != nil {
			for _, c := range deps.Closers {
				c.Close()
			}
			return Deps{}, fmt.Errorf("elasticsearch: %w", err)
		}
		deps.Search = search
		log.Info("search enabled", slog.String("index", cfg.Elasticsearch.Index))

		if deps.Events != nil {
			deps.Consumer = kafka.NewConsumer(&cfg.Kafka, service.NewSearchIndexer(search, log), log)
		}
	}

	return deps, nil
}
