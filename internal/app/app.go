package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/hitoshi/labtrack/internal/auth"
	"github.com/hitoshi/labtrack/internal/config"
	"github.com/hitoshi/labtrack/internal/console"
	"github.com/hitoshi/labtrack/internal/database"
	"github.com/hitoshi/labtrack/internal/gateway"
	"github.com/hitoshi/labtrack/internal/handler"
	"github.com/hitoshi/labtrack/internal/laboratory"
	"github.com/hitoshi/labtrack/internal/logger"
	"github.com/hitoshi/labtrack/internal/metrics"
	"github.com/hitoshi/labtrack/internal/middleware"
	"github.com/hitoshi/labtrack/internal/repository"
	"github.com/hitoshi/labtrack/internal/security"
	"github.com/hitoshi/labtrack/internal/session"
	"github.com/hitoshi/labtrack/internal/user"
	"github.com/hitoshi/labtrack/internal/worker/cleanup"
)

const shutdownTimeout = 30 * time.Second

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w, slog.LevelInfo)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// 3. 設定されたログレベルで作り直す
	logger.SetupDefault(w, cfg.LogLevel)

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。ログはwに出力する。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(ctx, port)
	}

	// client はAPIサーバーの設定を必要としない
	if cmd == CommandClient {
		clientCfg, err := config.LoadClient()
		if err != nil {
			return fmt.Errorf("initialization failed: %w", err)
		}
		logger.SetupDefault(w, clientCfg.LogLevel)
		return runClient(ctx, clientCfg, os.Stdin, os.Stdout)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.String("base_url", cfg.BaseURL),
	)

	switch cmd {
	case CommandWorker:
		return runWorker(ctx, cfg)
	case CommandMigrate:
		return runMigrate(cfg, args[1:])
	default:
		return runServe(ctx, cfg)
	}
}

// apiServer はserveモードで組み立てた依存関係。
type apiServer struct {
	handler     http.Handler
	rateLimiter *middleware.RateLimiter
}

// newAPIServer はリポジトリ、サービス、ミドルウェアを組み立ててルーターを構築する。
// dbへの接続はリクエスト時まで行われない。
func newAPIServer(cfg *config.Config, db *sql.DB, reg *prometheus.Registry) *apiServer {
	// 1. メトリクス
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collector := metrics.NewCollector(reg)

	// 2. リポジトリの初期化
	userRepo := repository.NewPostgresUserRepo(db)
	sessionRepo := repository.NewPostgresSessionRepo(db)
	labRepo := repository.NewPostgresLaboratoryRepo(db)
	membershipRepo := repository.NewPostgresMembershipRepo(db)

	// 3. ドメインサービスの初期化
	authService := auth.NewService(
		userRepo, sessionRepo, security.NewTextSanitizer(0), collector,
		auth.ServiceConfig{
			SessionMaxAge:         cfg.SessionMaxAge,
			SessionRememberMaxAge: cfg.SessionRememberMaxAge,
		},
	)
	labService := laboratory.NewService(
		labRepo, membershipRepo,
		laboratory.NewCalculator(cfg.GridEmissionFactor),
		collector,
		logger.Component(slog.Default(), "laboratory"),
	)
	userService := user.NewService(
		userRepo, sessionRepo, membershipRepo,
		logger.Component(slog.Default(), "user"),
	)

	// 4. ルーターの構築
	rateLimiter := middleware.NewRateLimiter(
		middleware.NewRateLimiterConfig(cfg.RateLimitAuth, cfg.RateLimitGeneral),
	)

	deps := &handler.RouterDeps{
		Logger:            logger.Component(slog.Default(), "http"),
		SessionFinder:     sessionRepo,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       rateLimiter,
		HTTPRecorder:      collector,

		DB:             db,
		MetricsHandler: metrics.Handler(reg),

		AuthService: authService,
		AuthConfig: handler.AuthHandlerConfig{
			CookieDomain: cfg.CookieDomain,
			CookieSecure: cfg.CookieSecure,
		},

		UserService:       userService,
		LaboratoryService: labService,
	}

	return &apiServer{
		handler:     handler.NewRouter(deps),
		rateLimiter: rateLimiter,
	}
}

// runServe はAPIサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// ctxがキャンセルされる（SIGINT/SIGTERM）とグレースフルシャットダウンを行う。
func runServe(ctx context.Context, cfg *config.Config) error {
	db, err := database.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	slog.Info("database connection established")

	api := newAPIServer(cfg, db, prometheus.NewRegistry())
	defer api.rateLimiter.Stop()

	server := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           api.handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	return serve(ctx, server)
}

// serve はserverを起動し、ctxの終了でシャットダウンする。
// 起動に失敗した場合はそのエラーを返す。
func serve(ctx context.Context, server *http.Server) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("API server starting", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server listen error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down API server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
		slog.Info("API server stopped gracefully")
		return nil
	})

	return g.Wait()
}

// runWorker はワーカーモードで起動する。
// DB接続を開き、期限切れセッションの削除を起動直後とSESSION_CLEANUP_INTERVALごとに行う。
// ctxがキャンセルされると終了する。
func runWorker(ctx context.Context, cfg *config.Config) error {
	db, err := database.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	slog.Info("database connection established (worker)")

	sessionRepo := repository.NewPostgresSessionRepo(db)
	cleanupJob := cleanup.NewCleanupJob(sessionRepo, nil, logger.Component(slog.Default(), "cleanup"))

	slog.Info("worker starting",
		slog.Duration("cleanup_interval", cfg.SessionCleanupInterval),
	)

	cleanupJob.Start(ctx, cfg.SessionCleanupInterval)

	slog.Info("worker stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// 引数なしまたはupで未適用のマイグレーションをすべて適用し、
// down [N]で直近N件を取り消し、versionで適用済みバージョンを出力する。
func runMigrate(cfg *config.Config, args []string) error {
	margs, err := ParseMigrateArgs(args)
	if err != nil {
		return err
	}

	log := slog.With(
		slog.String("action", string(margs.Action)),
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	switch margs.Action {
	case MigrateDown:
		log.Info("rolling back database migrations", slog.Int("steps", margs.Steps))
		if err := database.RollbackMigrations(cfg.DatabaseURL, margs.Steps); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
		log.Info("database migrations rolled back successfully")
	case MigrateVersion:
		version, dirty, err := database.MigrationVersion(cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("failed to read migration version: %w", err)
		}
		log.Info("database migration version",
			slog.Uint64("version", uint64(version)),
			slog.Bool("dirty", dirty),
		)
	default:
		log.Info("running database migrations")
		if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
		log.Info("database migrations completed successfully")
	}
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(ctx context.Context, port string) error {
	baseURL := "http://localhost:" + port
	client := gateway.NewClient(baseURL, &http.Client{Timeout: 5 * time.Second}, nil, slog.Default())

	if !client.Health(ctx) {
		return fmt.Errorf("health check failed: %s/health is not healthy", baseURL)
	}
	return nil
}

// runClient は対話型コンソールを起動する。
// 401応答でセッションが消えるよう、ゲートウェイの通知先にHolderのUnauthorizedシグナルを渡す。
func runClient(ctx context.Context, cfg *config.ClientConfig, in io.Reader, out io.Writer) error {
	httpClient, err := gateway.NewHTTPClient(cfg.APITimeout)
	if err != nil {
		return err
	}

	base := slog.Default()
	holder := session.NewHolder(logger.Component(base, "session"))
	client := gateway.NewClient(cfg.APIBaseURL, httpClient, holder.Unauthorized(), logger.Component(base, "gateway"))

	ui := console.NewApp(client, holder, out, logger.Component(base, "console"))
	defer ui.Close()

	err = console.NewREPL(ui, in, out).Run(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "***"
	}
	// url.Userinfoは"*"をエスケープするため、認証情報部分は文字列で組み立てる。
	hadUser := u.User != nil
	u.User = nil
	u.RawQuery = ""
	u.Fragment = ""
	masked := u.String()
	if hadUser {
		masked = strings.Replace(masked, "://", "://***@", 1)
	}
	return masked
}
