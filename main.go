package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	clerk "github.com/clerk/clerk-sdk-go/v2"
	gorilllaHandlers "github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"timinkAPI/handlers"
	"timinkAPI/internal/clock"
	"timinkAPI/internal/config"
	"timinkAPI/internal/eventbus"
	"timinkAPI/internal/migrations"
	"timinkAPI/internal/notification"
	"timinkAPI/internal/realtime"
	"timinkAPI/internal/repository"
	"timinkAPI/internal/storage"
	"timinkAPI/internal/workers"
	"timinkAPI/middleware"
	"timinkAPI/services"

	_ "net/http/pprof"
)

func newPool(ctx context.Context, dbURL string) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(dbURL)
	if err != nil {
		return nil, err
	}

	poolConfig.MaxConns = 25
	poolConfig.MinConns = 5
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute
	poolConfig.HealthCheckPeriod = time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

func newVerifier(cfg *config.Config) middleware.TokenVerifier {
	if cfg.AuthMode == config.AuthModeLocal {
		log.Println("Auth: using local HS256 tokens")
		return middleware.LocalVerifier{Secret: []byte(cfg.LocalJWTSecret)}
	}
	clerk.SetKey(cfg.ClerkSecretKey)
	log.Println("Clerk initialized successfully")
	return middleware.ClerkVerifier{}
}

func newPushProvider(ctx context.Context, cfg *config.Config) services.PushProvider {
	fcmService, err := notification.NewFCMService(ctx, cfg.FCMServiceAccountJSON, cfg.FCMCredentialsFile)
	if err != nil {
		log.Printf("Warning: Could not initialize FCM, pushes will only be logged: %v", err)
		return services.LogPushProvider{}
	}
	log.Println("FCM Push Provider initialized successfully")
	return fcmService
}

// newObjectStore returns nil when S3 is not configured. Callers must not
// wrap that nil pointer in an interface.
func newObjectStore(ctx context.Context, cfg *config.Config) *storage.S3Storage {
	if cfg.S3.Bucket == "" {
		log.Println("S3_BUCKET not set, image uploads disabled")
		return nil
	}
	store, err := storage.NewS3Storage(ctx, storage.S3Config{
		Bucket:        cfg.S3.Bucket,
		Region:        cfg.S3.Region,
		Endpoint:      cfg.S3.Endpoint,
		PublicBaseURL: cfg.S3.PublicBaseURL,
		AccessKey:     cfg.S3.AccessKey,
		SecretKey:     cfg.S3.SecretKey,
	})
	if err != nil {
		log.Printf("Warning: Could not initialize S3, image uploads disabled: %v", err)
		return nil
	}
	log.Printf("S3 storage initialized (bucket %s)", cfg.S3.Bucket)
	return store
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load config: ", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal("Invalid config: ", err)
	}

	rootCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	initCtx, cancel := context.WithTimeout(rootCtx, 30*time.Second)
	if err := migrations.Up(initCtx, cfg.DatabaseURL); err != nil {
		log.Fatal("Failed to run migrations: ", err)
	}
	dbPool, err := newPool(initCtx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal("Failed to connect to database: ", err)
	}
	log.Println("Successfully connected to the database")
	defer func() {
		log.Println("Closing database connection pool...")
		dbPool.Close()
	}()

	verifier := newVerifier(cfg)
	pushProvider := newPushProvider(initCtx, cfg)
	s3Store := newObjectStore(initCtx, cfg)
	cancel()

	if err := middleware.SetTrustedProxies(cfg.TrustedProxies); err != nil {
		log.Fatal("Invalid TRUSTED_PROXIES: ", err)
	}
	middleware.InitPrometheus(prometheus.DefaultRegisterer)
	services.RegisterMetrics(prometheus.DefaultRegisterer)

	clk := clock.System{}
	bus := eventbus.New()
	defer bus.Close()

	userRepo := repository.NewUserRepository(dbPool)
	capsuleRepo := repository.NewCapsuleRepository(dbPool)
	diaryRepo := repository.NewDiaryRepository(dbPool)
	friendshipRepo := repository.NewFriendshipRepository(dbPool)
	notificationRepo := repository.NewNotificationRepository(dbPool)

	dispatcher := services.NewNotificationDispatcher(notificationRepo, pushProvider, clk)
	dispatcher.Start()
	defer dispatcher.Stop()

	notificationService := services.NewNotificationService(notificationRepo, userRepo, dispatcher, bus, clk)
	userService := services.NewUserService(userRepo)
	friendshipService := services.NewFriendshipService(friendshipRepo, userRepo, notificationService, bus, clk)
	diaryService := services.NewDiaryService(diaryRepo, notificationService, bus, clk)
	activityService := services.NewActivityService(capsuleRepo, diaryRepo, friendshipRepo, bus, clk)
	defer activityService.Close()

	var capsuleService *services.CapsuleService
	var uploadHandler *handlers.UploadHandler
	if s3Store != nil {
		capsuleService = services.NewCapsuleService(capsuleRepo, s3Store, notificationService, bus, clk)
		uploadHandler = handlers.NewUploadHandler(s3Store)
	} else {
		capsuleService = services.NewCapsuleService(capsuleRepo, nil, notificationService, bus, clk)
		uploadHandler = handlers.NewUploadHandler(nil)
	}

	hub := realtime.NewHub()
	go realtime.NewPGListener(dbPool, hub, diaryRepo).Run(rootCtx)

	workers.NewCapsuleReadyNotifier(capsuleRepo, notificationService, clk).Start(rootCtx, cfg.CapsuleReadyInterval)
	go middleware.CleanupVisitors(rootCtx)

	webhookHandler, err := handlers.NewWebhookHandler(userService, cfg.ClerkWebhookSecret)
	if err != nil {
		log.Fatal("Failed to set up webhook handler: ", err)
	}
	healthHandler := handlers.NewHealthHandler(dbPool.Ping)
	userHandler := handlers.NewUserHandler(userService, friendshipService)
	friendHandler := handlers.NewFriendHandler(friendshipService)
	capsuleHandler := handlers.NewCapsuleHandler(capsuleService)
	diaryHandler := handlers.NewDiaryHandler(diaryService, hub)
	activityHandler := handlers.NewActivityHandler(activityService)
	notificationHandler := handlers.NewNotificationHandler(notificationService)

	r := mux.NewRouter()

	standardRouter := r.PathPrefix("/").Subrouter()
	standardRouter.Use(middleware.RateLimitMiddleware)
	standardRouter.Use(middleware.MonitorMiddleware)

	standardRouter.Handle("/metrics", middleware.BasicAuthMiddleware(cfg.MetricsUser, cfg.MetricsPass)(promhttp.Handler()))
	standardRouter.PathPrefix("/debug/pprof/").Handler(middleware.PprofSecurityMiddleware(cfg.PprofSecret)(http.DefaultServeMux))

	standardRouter.HandleFunc("/health", healthHandler.Health).Methods("GET")
	standardRouter.HandleFunc("/webhooks/clerk", webhookHandler.HandleClerkWebhook).Methods("POST")

	// -------------------------------------------------------------------------
	// PROTECTED ROUTES (REQUIRE AUTH HEADER)
	// -------------------------------------------------------------------------
	protected := standardRouter.PathPrefix("/api/v1").Subrouter()
	protected.Use(middleware.AuthMiddleware(verifier, userService.ResolveUserID))
	protected.Use(middleware.TimezoneMiddleware(cfg.Location()))

	protected.HandleFunc("/user", userHandler.GetProfile).Methods("GET")
	protected.HandleFunc("/user", userHandler.UpdateProfile).Methods("PUT")
	protected.HandleFunc("/user/search", userHandler.Search).Methods("GET")
	protected.HandleFunc("/user/friend-code", userHandler.FriendCode).Methods("GET")

	protected.HandleFunc("/friends", friendHandler.ListFriends).Methods("GET")
	protected.HandleFunc("/friends/requests", friendHandler.ListRequests).Methods("GET")
	protected.HandleFunc("/friends/requests", friendHandler.SendRequest).Methods("POST")
	protected.HandleFunc("/friends/requests/{id}/accept", friendHandler.AcceptRequest).Methods("PUT")
	protected.HandleFunc("/friends/requests/{id}/reject", friendHandler.RejectRequest).Methods("PUT")
	protected.HandleFunc("/friends/{userId}", friendHandler.RemoveFriend).Methods("DELETE")

	protected.HandleFunc("/capsules", capsuleHandler.CreateCapsule).Methods("POST")
	protected.HandleFunc("/capsules", capsuleHandler.ListCapsules).Methods("GET")
	protected.HandleFunc("/capsules/pending", capsuleHandler.ListPending).Methods("GET")
	protected.HandleFunc("/capsules/unlockable", capsuleHandler.ListUnlockable).Methods("GET")
	protected.HandleFunc("/capsules/{id}", capsuleHandler.GetCapsule).Methods("GET")
	protected.HandleFunc("/capsules/{id}", capsuleHandler.DeleteCapsule).Methods("DELETE")
	protected.HandleFunc("/capsules/{id}/countdown", capsuleHandler.Countdown).Methods("GET")
	protected.HandleFunc("/capsules/{id}/unlock", capsuleHandler.Unlock).Methods("POST")
	protected.HandleFunc("/capsules/{id}/contents", capsuleHandler.RecordContent).Methods("POST")
	protected.HandleFunc("/capsules/{id}/contents", capsuleHandler.ListContents).Methods("GET")
	protected.HandleFunc("/capsules/{id}/pin", capsuleHandler.SetPinned).Methods("PUT")

	protected.HandleFunc("/diaries", diaryHandler.CreateDiary).Methods("POST")
	protected.HandleFunc("/diaries", diaryHandler.ListDiaries).Methods("GET")
	protected.HandleFunc("/diaries/{id}", diaryHandler.GetDiary).Methods("GET")
	protected.HandleFunc("/diaries/{id}/entries", diaryHandler.ListEntries).Methods("GET")
	protected.HandleFunc("/diaries/{id}/entries", diaryHandler.CreateEntry).Methods("POST")
	protected.HandleFunc("/diaries/{id}/gate", diaryHandler.Gate).Methods("GET")
	protected.HandleFunc("/diaries/{id}/pin", diaryHandler.SetPinned).Methods("PUT")
	protected.HandleFunc("/diaries/{id}/ws", diaryHandler.Stream)

	protected.HandleFunc("/activity", activityHandler.GetFeed).Methods("GET")

	protected.HandleFunc("/notifications", notificationHandler.GetNotifications).Methods("GET")
	protected.HandleFunc("/notifications/unread-count", notificationHandler.GetUnreadCount).Methods("GET")
	protected.HandleFunc("/notifications/read-all", notificationHandler.MarkAllAsRead).Methods("PUT")
	protected.HandleFunc("/notifications/preferences", notificationHandler.GetPreferences).Methods("GET")
	protected.HandleFunc("/notifications/preferences", notificationHandler.UpdatePreferences).Methods("PUT")
	protected.HandleFunc("/notifications/register-device", notificationHandler.RegisterDevice).Methods("POST")
	protected.HandleFunc("/notifications/{id}/read", notificationHandler.MarkAsRead).Methods("PUT")
	protected.HandleFunc("/notifications/{id}", notificationHandler.DeleteNotification).Methods("DELETE")

	protected.HandleFunc("/uploads/images", uploadHandler.UploadImage).Methods("POST")
	protected.HandleFunc("/uploads/images", uploadHandler.DeleteImage).Methods("DELETE")

	// CORS configuration
	corsHandler := gorilllaHandlers.CORS(
		gorilllaHandlers.AllowedOrigins([]string{"*"}),
		gorilllaHandlers.AllowedMethods([]string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}),
		gorilllaHandlers.AllowedHeaders([]string{"Content-Type", "Authorization", "X-Timezone", "X-Pprof-Secret"}),
		gorilllaHandlers.ExposedHeaders([]string{"Content-Length"}),
	)

	port := ":" + cfg.Port

	// WriteTimeout stays 0: diary websockets are long-lived and uploads are
	// bounded by their own handler timeouts.
	server := http.Server{
		Addr:              port,
		Handler:           corsHandler(r),
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		log.Printf("Starting server on port %s", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Error starting server:", err)
		}
	}()

	<-rootCtx.Done()
	log.Println("Shutdown signal received")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}

	log.Println("Server shutdown complete")
}
