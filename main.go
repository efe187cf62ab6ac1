// File: turnero/main.go
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"turnero/config"
	"turnero/cron"
	"turnero/database"
	"turnero/database/repository"
	"turnero/handlers"
	"turnero/middleware"
	"turnero/models"
	"turnero/routes"
	"turnero/services/agent"
	"turnero/services/appointment"
	"turnero/services/availability"
	"turnero/services/bot"
	"turnero/services/confirmation"
	"turnero/services/inbound"
	"turnero/services/messaging"
	"turnero/services/notification"
	"turnero/services/session"
	"turnero/utils"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/hibiken/asynq"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// sessionRetention is the Redis TTL of booking sessions; it outlives every
// tenant timeout so expiry is decided by the store.
const sessionRetention = 2 * bot.StaleAfter

func main() {
	config.LoadConfig()
	logger := utils.GetLogger()
	defer logger.Sync() //nolint:errcheck

	if config.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	rootCtx, stop := context.WithCancel(context.Background())
	defer stop()

	// repositories.
	var (
		repos       *repository.Set
		mongoClient *mongo.Client
	)
	if config.InMemory() {
		logger.Warn("main: running with in-memory repositories; data is lost on exit")
		repos = repository.NewMemorySet()
	} else {
		database.InitDB()
		mongoClient = database.MongoClient
		repos = repository.NewMongoSet()
		ctx, cancel := context.WithTimeout(rootCtx, 30*time.Second)
		if err := repos.EnsureIndexes(ctx); err != nil {
			logger.Fatal("main: failed to create indexes", zap.Error(err))
		}
		cancel()
	}

	// sessions.
	var (
		bookingSessions session.Store[*models.ConversationSession]
		redisClients    []*redis.Client
	)
	if config.AppConfig.SessionBackend == "redis" {
		client := utils.GetSessionClient()
		redisClients = append(redisClients, client)
		bookingSessions = session.NewRedisStore[*models.ConversationSession](client, "booking", sessionRetention)
	} else {
		bookingSessions = session.NewMemoryStore[*models.ConversationSession]()
	}
	confirmationSessions := session.NewMemoryStore[*models.ConfirmationSession]()

	// services.
	availabilityEngine := availability.NewEngine(repos)
	appointmentService := appointment.NewService(repos, availabilityEngine, logger.Named("appointment"))
	agentService := agent.NewService(repos, logger.Named("agent"))
	botEngine := bot.NewEngine(repos, bookingSessions, appointmentService, availabilityEngine, logger.Named("bot"))
	confirmationEngine := confirmation.NewEngine(repos, confirmationSessions, appointmentService, logger.Named("confirmation"))
	router := inbound.NewRouter(confirmationEngine, botEngine, logger.Named("inbound"))

	messenger, closeMessenger, err := messaging.New(messaging.Options{
		Backend:          config.AppConfig.Messenger,
		AMQPURL:          config.AppConfig.AMQPURL,
		AMQPExchange:     config.AppConfig.AMQPExchange,
		TwilioAccountSID: config.AppConfig.TwilioAccountSID,
		TwilioAuthToken:  config.AppConfig.TwilioAuthToken,
		TwilioFrom:       config.AppConfig.TwilioFromNumber,
	}, logger.Named("messaging"))
	if err != nil {
		logger.Fatal("main: failed to initialize messenger", zap.Error(err))
	}

	// background jobs.
	agenda := notification.NewAgendaSender(repos, messenger, logger.Named("agenda"))
	entries := []cron.Entry{
		{Name: "confirmation-sweep", Spec: "@every 5m", Run: confirmationEngine.Sweep},
		{Name: "booking-sweep", Spec: "@every 1h", Run: botEngine.Sweep},
		{Name: "agent-agenda", Spec: "@every 1m", Run: agenda.SendDue},
	}
	var (
		queueClient *asynq.Client
		queueServer *asynq.Server
	)
	if config.AppConfig.NotificationsEnabled {
		redisClients = append(redisClients, utils.GetQueueClient())
		queueClient = asynq.NewClient(cron.QueueRedisOpt())
		dispatcher := notification.NewDispatcher(repos, queueClient, messenger, logger.Named("notification"))
		queueServer = cron.StartNotificationWorker(dispatcher, logger.Named("worker"))
		entries = append(entries, cron.Entry{Name: "notification-dispatch", Spec: "@every 1m", Run: dispatcher.DispatchDue})
	} else {
		logger.Info("main: notifications disabled")
	}
	scheduler, err := cron.NewScheduler(logger.Named("cron"), entries...)
	if err != nil {
		logger.Fatal("main: failed to schedule jobs", zap.Error(err))
	}
	scheduler.Start()

	utils.StartHealthMonitor(rootCtx, redisClients, mongoClient)

	// handlers.
	handlerBundle := handlers.NewHandlerBundle(
		handlers.NewAgentHandler(agentService, availabilityEngine, repos.Settings),
		handlers.NewAppointmentHandler(appointmentService, repos.Settings),
		handlers.NewSettingsHandler(repos.Settings),
		handlers.NewInboundHandler(router),
		handlers.HealthHandler,
	)

	// Create the Gin router.
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(utils.ErrorHandler())
	engine.Use(middleware.RequestLogger(logger.Named("http")))
	engine.Use(middleware.RateLimitMiddleware(config.AppConfig.MaxRequestsPerMin))
	routes.RegisterRoutes(engine, handlerBundle)

	// Start the HTTP server.
	port := config.AppConfig.AppPort
	if port == "" {
		port = "8080"
	}
	srv := &http.Server{
		Addr:    "0.0.0.0:" + port,
		Handler: engine,
	}

	logger.Sugar().Infof("Starting server on %s...", srv.Addr)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Sugar().Fatalf("main: server failed to start: %v", err)
		}
	}()

	// Wait for an OS signal to gracefully shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Sugar().Info("main: server is shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("main: server forced to shutdown", zap.Error(err))
	}

	<-scheduler.Stop().Done()
	stop()
	if queueServer != nil {
		queueServer.Shutdown()
	}
	if queueClient != nil {
		if err := queueClient.Close(); err != nil {
			logger.Warn("main: failed to close queue client", zap.Error(err))
		}
	}
	if err := closeMessenger(); err != nil {
		logger.Warn("main: failed to close messenger", zap.Error(err))
	}
	if mongoClient != nil {
		if err := mongoClient.Disconnect(ctx); err != nil {
			logger.Warn("main: failed to disconnect MongoDB", zap.Error(err))
		}
	}

	logger.Sugar().Info("main: server stopped gracefully")
}
