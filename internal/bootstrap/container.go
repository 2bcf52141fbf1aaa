package bootstrap

import (
	"context"
	"log"
	"os"
	"time"

	"ai-consult-copilot/internal/config"
	"ai-consult-copilot/internal/controller"
	"ai-consult-copilot/internal/handler"
	"ai-consult-copilot/internal/pkg/logger"
	"ai-consult-copilot/internal/repository/memory"
	"ai-consult-copilot/internal/repository/staging"
	"ai-consult-copilot/internal/service"
	"ai-consult-copilot/internal/websocket"
	"ai-consult-copilot/pkg/capture"
	"ai-consult-copilot/pkg/clinicapi"
	pktNats "ai-consult-copilot/pkg/nats"
	"ai-consult-copilot/pkg/safety"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/fatih/color"
	"github.com/redis/go-redis/v9"
)

type Container struct {
	// Controllers
	ConsultationController controller.IConsultationController
	DiagnosticsController  controller.IDiagnosticsController
	LiveHandler            *handler.LiveHandler

	// Background Services (Exposed for main.go to run)
	SegmentConsumer      service.ISegmentConsumerService
	ReferenceSyncService *service.ReferenceSyncService
	WebSocketHub         *websocket.Hub

	ConsultationService service.IConsultationService
	Logger              logger.ILogger

	closers []func()
}

func NewContainer(cfg *config.Config) *Container {
	// 1. Core Facades
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.App.IsProduction())

	// 2. Segment Bus
	watermillLogger := watermill.NewStdLogger(false, false)
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{OutputChannelBuffer: 64},
		watermillLogger,
	)

	// 3. Infrastructure
	// NATS
	var eventPublisher service.EventPublisher
	natsPub, err := pktNats.NewPublisher(cfg.App.NatsURL)
	if err != nil {
		log.Printf("[WARN] Failed to connect to NATS Publisher: %v", err)
	} else {
		eventPublisher = natsPub
	}
	natsSub, err := pktNats.NewSubscriber(cfg.App.NatsURL)
	if err != nil {
		log.Printf("[WARN] Failed to connect to NATS Subscriber: %v", err)
	}

	// Redis
	opt, err := redis.ParseURL(cfg.App.RedisURL)
	if err != nil {
		log.Printf("[WARN] Failed to parse Redis URL: %v. Using direct Addr", err)
		opt = &redis.Options{
			Addr: cfg.App.RedisURL,
		}
	}
	var rdb *redis.Client
	var stagingCache service.StagingCache
	client := redis.NewClient(opt)
	pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	if _, err := client.Ping(pingCtx).Result(); err != nil {
		log.Printf("[WARN] Failed to connect to Redis: %v (staging cache and cross-instance push disabled)", err)
		_ = client.Close()
	} else {
		rdb = client
		stagingCache = staging.NewRedisStagingRepository(rdb, staging.DefaultTTL)
	}
	cancel()

	// WebSocket Hub
	wsLogger := logger.NewIsolatedLogger(cfg.App.WsLogFilePath)
	wsHub := websocket.NewHub(rdb, wsLogger)

	if cfg.App.JWTSecret == "" {
		color.Red("JWT_SECRET is empty: authentication is DISABLED and every request runs as anonymous")
		sysLogger.Warn("Bootstrap", "JWT_SECRET is empty, authentication disabled", map[string]interface{}{
			"environment": cfg.App.Environment,
		})
	}

	// Clinic API
	clinic := clinicapi.New(clinicapi.Options{
		BaseURL:      cfg.ClinicAPI.BaseURL,
		Token:        cfg.ClinicAPI.Token,
		ClientID:     cfg.ClinicAPI.ClientID,
		ClientSecret: cfg.ClinicAPI.ClientSecret,
		TokenURL:     cfg.ClinicAPI.TokenURL,
		Timeout:      cfg.ClinicAPI.Timeout,
		MaxChars:     cfg.Consultation.SafetyMaxChars,
	})

	// Capture
	format := capture.Format{SampleRate: cfg.Capture.SampleRate, Channels: cfg.Capture.Channels, BitDepth: 16}
	source := capture.NewFFmpegSource(cfg.Capture.FFmpegBinary, cfg.Capture.InputFormat, cfg.Capture.Device, format)
	if err := source.CheckFFmpeg(); err != nil {
		log.Printf("[WARN] %v: consultations cannot start until it is installed", err)
	}
	clock := capture.NewSegmentClock(cfg.Capture.SegmentDuration, format)
	newRecorder := func() *capture.Recorder {
		r := capture.NewRecorder(source, clock, capture.WAVEncoder{}, sysLogger)
		r.ProbeTimeout = cfg.Capture.ProbeTimeout
		return r
	}

	// 4. Services
	registry := memory.NewConsultationRepository()
	segmentPublisher := service.NewSegmentPublisherService(service.SegmentTopic, pubSub)

	consultationService := service.NewConsultationService(
		registry,
		clinic,
		stagingCache,
		eventPublisher,
		wsHub,
		segmentPublisher,
		newRecorder,
		service.ConsultationOptions{
			Safety: safety.Config{
				Interval: cfg.Consultation.SafetyInterval,
				MinChars: cfg.Consultation.SafetyMinChars,
				Timeout:  cfg.Consultation.SafetyTimeout,
			},
			SpeakerLabels: cfg.Consultation.SpeakerLabels,
			DrainTimeout:  cfg.Consultation.DrainTimeout,
		},
		sysLogger,
	)

	segmentConsumer := service.NewSegmentConsumerService(
		pubSub,
		service.SegmentTopic,
		clinic,
		consultationService,
		cfg.Consultation.UploadConcurrency,
		sysLogger,
	)

	var referenceSync *service.ReferenceSyncService
	if natsSub != nil {
		hostname, _ := os.Hostname()
		referenceSync = service.NewReferenceSyncService(natsSub, consultationService, "reference-sync-"+hostname, sysLogger)
	}

	c := &Container{
		ConsultationController: controller.NewConsultationController(consultationService, cfg.App.JWTSecret),
		DiagnosticsController:  controller.NewDiagnosticsController(sysLogger, registry, cfg.App.JWTSecret),
		LiveHandler:            handler.NewLiveHandler(consultationService, wsHub, cfg.App.JWTSecret, wsLogger),

		SegmentConsumer:      segmentConsumer,
		ReferenceSyncService: referenceSync,
		WebSocketHub:         wsHub,

		ConsultationService: consultationService,
		Logger:              sysLogger,
	}

	c.closers = append(c.closers, func() { _ = pubSub.Close() })
	if natsSub != nil {
		c.closers = append(c.closers, natsSub.Close)
	}
	if natsPub != nil {
		c.closers = append(c.closers, natsPub.Close)
	}
	if rdb != nil {
		c.closers = append(c.closers, func() { _ = rdb.Close() })
	}
	c.closers = append(c.closers, func() {
		_ = wsLogger.Sync()
		_ = sysLogger.Sync()
	})
	return c
}

// Start runs the background workers until ctx is done.
func (c *Container) Start(ctx context.Context) error {
	go c.WebSocketHub.Run(ctx)

	if err := c.SegmentConsumer.Consume(ctx); err != nil {
		return err
	}
	if c.ReferenceSyncService != nil {
		if err := c.ReferenceSyncService.Start(ctx); err != nil {
			log.Printf("[WARN] Reference sync disabled: %v", err)
		}
	}
	return nil
}

// Shutdown ends live consultations, saving their staged notes, then waits
// for uploads still in flight and releases connections.
func (c *Container) Shutdown(ctx context.Context) {
	c.ConsultationService.StopAll(ctx)
	c.SegmentConsumer.Wait()
	for _, closeFn := range c.closers {
		closeFn()
	}
}
