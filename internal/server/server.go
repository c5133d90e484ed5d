package server

import (
	"log"
	"strings"

	"backend-fleettrack/internal/auth"
	"backend-fleettrack/internal/config"
	"backend-fleettrack/internal/events"
	"backend-fleettrack/internal/ingest"
	"backend-fleettrack/internal/live"
	"backend-fleettrack/internal/metrics"
	"backend-fleettrack/internal/stream"
	"backend-fleettrack/internal/streets"
	"backend-fleettrack/internal/vehicle"

	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
)

type Server struct {
	App      *fiber.App
	Cfg      config.Config
	DB       *pgxpool.Pool
	Redis    *redis.Client
	NATS     *nats.Conn
	Stream   *stream.Hub
	Live     *live.Service
	Coverage *streets.Broker
	Metrics  *metrics.Collector

	consumer *ingest.Consumer
}

func NewServer(cfg config.Config, db *pgxpool.Pool, redisClient *redis.Client, natsConn *nats.Conn) *Server {
	app := fiber.New()
	app.Use(recover.New())
	app.Use(logger.New())

	collector := metrics.NewCollector()
	hub := stream.NewHub(redisClient, collector)
	liveSvc := live.NewService(db, hub, cfg.IdleSpeedKmh)
	liveSvc.SetTripGauge(collector)
	broker := streets.NewBroker(streets.NewCatalog(db, cfg.SegmentPrecision), cfg.SegmentPrecision, collector)
	liveSvc.AddObserver(broker)

	s := &Server{
		App:      app,
		Cfg:      cfg,
		DB:       db,
		Redis:    redisClient,
		NATS:     natsConn,
		Stream:   hub,
		Live:     liveSvc,
		Coverage: broker,
		Metrics:  collector,
	}

	if natsConn != nil {
		collector.NATSSetConnected(natsConn.IsConnected())
		s.consumer = ingest.NewConsumer(natsConn, liveSvc, collector)
		if err := s.consumer.Start(); err != nil {
			log.Printf("server: starting nats consumer: %v", err)
		}
	}

	registerRoutes(s)
	return s
}

// Stop ends background consumption; HTTP shutdown is the caller's concern.
func (s *Server) Stop() {
	if s.consumer != nil {
		s.consumer.Stop()
	}
}

func registerRoutes(s *Server) {
	s.App.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
	s.App.Get("/metrics", adaptor.HTTPHandler(s.Metrics.Handler()))

	jwtMiddleware := auth.JWTMiddleware(s.Cfg.JWTSecret)

	auth.RegisterRoutes(s.App.Group("/auth"), auth.NewService(s.Cfg.JWTSecret, s.DB))

	liveGroup := s.App.Group("/live")
	liveGroup.Use(func(c *fiber.Ctx) error {
		if strings.HasSuffix(c.Path(), "/poll") {
			s.Metrics.PollRequestInc()
		}
		return c.Next()
	})
	live.RegisterRoutes(liveGroup, s.Live, jwtMiddleware)

	vehicle.RegisterRoutes(s.App.Group("/vehicles"), vehicle.NewService(s.DB), jwtMiddleware)
	events.RegisterRoutes(s.App.Group("/events"), events.NewService(s.DB), jwtMiddleware)
	streets.RegisterRoutes(s.App.Group("/coverage"), s.Coverage)
	stream.RegisterRoutes(s.App.Group("/stream"), s.Stream)
}
