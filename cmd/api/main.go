package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bytrustu/sns/internal/config"
	"github.com/bytrustu/sns/internal/db"
	"github.com/bytrustu/sns/internal/logging"
	"github.com/bytrustu/sns/internal/server"
	"github.com/bytrustu/sns/internal/storage"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"gopkg.in/alecthomas/kingpin.v2"
)

var mainDepsProvider = defaultDeps
var mainRunner = realMain

func main() {
	mainRunner(mainDepsProvider())
}

type flags struct {
	migrate bool
}

type mainDeps struct {
	args            []string
	loadConfig      func() config.Config
	newLogger       func(level string) *logrus.Logger
	connectPostgres func(config.Config) (*pgxpool.Pool, error)
	connectRedis    func(config.Config) *redis.Client
	migrate         func(context.Context, db.Querier) error
	provision       func(dir string) error
	notify          func(chan<- os.Signal, ...os.Signal)
	run             func(context.Context, config.Config, *pgxpool.Pool, *redis.Client, *logrus.Logger, <-chan os.Signal, ListenFunc) error
}

func defaultDeps() mainDeps {
	return mainDeps{
		args:            os.Args[1:],
		loadConfig:      config.Load,
		newLogger:       logging.New,
		connectPostgres: db.ConnectPostgres,
		connectRedis:    db.ConnectRedis,
		migrate:         db.Migrate,
		provision:       storage.Provision,
		notify:          signal.Notify,
		run:             Run,
	}
}

func parseFlags(args []string) (flags, error) {
	var f flags
	app := kingpin.New("sns-api", "Social feed HTTP API.")
	app.Flag("migrate", "Apply the database schema before serving.").BoolVar(&f.migrate)
	_, err := app.Parse(args)
	return f, err
}

func realMain(deps mainDeps) {
	cfg := deps.loadConfig()
	log := deps.newLogger(cfg.LogLevel)

	opts, err := parseFlags(deps.args)
	if err != nil {
		log.WithError(err).Error("invalid flags")
		return
	}

	if err := deps.provision(cfg.UploadDir); err != nil {
		log.WithError(err).WithField("dir", cfg.UploadDir).Error("upload dir unavailable")
		return
	}

	pg, err := deps.connectPostgres(cfg)
	if err != nil {
		log.WithError(err).Error("postgres connection failed")
	}

	if opts.migrate && pg != nil {
		if err := deps.migrate(context.Background(), pg); err != nil {
			log.WithError(err).Error("migration failed")
			return
		}
		log.Info("schema applied")
	}

	rdb := deps.connectRedis(cfg)

	signals := make(chan os.Signal, 1)
	deps.notify(signals, syscall.SIGINT, syscall.SIGTERM)

	if err := deps.run(context.Background(), cfg, pg, rdb, log, signals, nil); err != nil {
		log.WithError(err).Error("server exited with error")
	}
}

type ListenFunc func(app *fiber.App, addr string) error

var defaultListen ListenFunc = func(app *fiber.App, addr string) error {
	return app.Listen(addr)
}

var shutdownFn = func(app *fiber.App, ctx context.Context) error {
	return app.ShutdownWithContext(ctx)
}

// Run starts the HTTP server and waits for termination signals.
func Run(ctx context.Context, cfg config.Config, pg *pgxpool.Pool, rdb *redis.Client, log *logrus.Logger, signals <-chan os.Signal, listen ListenFunc) error {
	var pool db.TxQuerier
	if pg != nil {
		pool = pg
	}
	srv := server.NewServer(cfg, pool, rdb, log)
	defer srv.Close()

	if listen == nil {
		listen = defaultListen
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- listen(srv.App, cfg.ServerPort)
	}()

	select {
	case <-signals:
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := shutdownFn(srv.App, shutdownCtx); err != nil {
		return err
	}
	srv.Close()
	if pg != nil {
		pg.Close()
	}
	if rdb != nil {
		_ = rdb.Close()
	}
	return nil
}
