package server

import (
	"github.com/bytrustu/sns/internal/apperr"
	"github.com/bytrustu/sns/internal/auth"
	"github.com/bytrustu/sns/internal/config"
	"github.com/bytrustu/sns/internal/db"
	"github.com/bytrustu/sns/internal/logging"
	"github.com/bytrustu/sns/internal/post"
	"github.com/bytrustu/sns/internal/social"
	"github.com/bytrustu/sns/internal/storage"
	"github.com/bytrustu/sns/internal/stream"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// maxImagesPerRequest bounds the request body of a multi-file upload.
const maxImagesPerRequest = 10

type Server struct {
	App    *fiber.App
	Cfg    config.Config
	DB     db.TxQuerier
	Redis  *redis.Client
	Stream *stream.Hub
	Log    *logrus.Logger
}

func NewServer(cfg config.Config, pool db.TxQuerier, redisClient *redis.Client, log *logrus.Logger) *Server {
	if log == nil {
		log = logging.Discard()
	}
	app := fiber.New(fiber.Config{
		ErrorHandler: apperr.Handler,
		BodyLimit:    bodyLimit(cfg),
	})
	app.Use(recover.New())
	app.Use(logger.New(logger.Config{Output: log.Writer()}))

	s := &Server{
		App:    app,
		Cfg:    cfg,
		DB:     pool,
		Redis:  redisClient,
		Stream: stream.NewHub(redisClient, log),
		Log:    log,
	}

	registerRoutes(s)
	return s
}

// Close releases the stream subscription. The caller owns the pool and redis client.
func (s *Server) Close() {
	s.Stream.Close()
}

func bodyLimit(cfg config.Config) int {
	if cfg.MaxUploadBytes <= 0 {
		return fiber.DefaultBodyLimit
	}
	return int(cfg.MaxUploadBytes) * maxImagesPerRequest
}

func registerRoutes(s *Server) {
	s.App.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	jwtMiddleware := auth.JWTMiddleware(s.Cfg.JWTSecret)

	posts := post.NewService(s.DB, s.Stream, s.Log)

	auth.RegisterRoutes(s.App.Group("/user"), auth.NewService(s.Cfg.JWTSecret, s.DB), jwtMiddleware)
	storage.RegisterRoutes(s.App, storage.NewService(s.Cfg.UploadDir, s.Cfg.MaxUploadBytes, s.Log), jwtMiddleware)
	post.RegisterRoutes(s.App, posts, jwtMiddleware, post.HandlerOptions{StrictDelete: s.Cfg.StrictDelete})
	social.RegisterRoutes(s.App, social.NewService(s.DB, posts, s.Log), jwtMiddleware)
	stream.RegisterRoutes(s.App.Group("/stream"), s.Stream)
}
