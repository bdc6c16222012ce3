package main

import (
	"context"
	"log"
	"os"

	_ "github.com/Dat3K/viet-anh-supply-be/api/swagger" // swagger docs
	"github.com/Dat3K/viet-anh-supply-be/internal/cache"
	"github.com/Dat3K/viet-anh-supply-be/internal/database"
	"github.com/Dat3K/viet-anh-supply-be/internal/handler"
	"github.com/Dat3K/viet-anh-supply-be/internal/middleware"
	"github.com/Dat3K/viet-anh-supply-be/internal/realtime"
	"github.com/Dat3K/viet-anh-supply-be/internal/repository"
	"github.com/Dat3K/viet-anh-supply-be/internal/service"
	"github.com/Dat3K/viet-anh-supply-be/internal/websocket"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// @title           School Supply Request API
// @version         1.0
// @description     Supply request management with configurable approval workflows.
// @host            localhost:8080
// @BasePath        /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	if err := godotenv.Load("configs/.env"); err != nil {
		log.Println("No configs/.env file found or error loading it")
	}

	dbHost := os.Getenv("DB_HOST")
	dbPort := os.Getenv("DB_PORT")
	dbUser := os.Getenv("DB_USER")
	dbPassword := os.Getenv("DB_PASSWORD")
	dbName := os.Getenv("DB_NAME")
	dbSslMode := os.Getenv("DB_SSLMODE")

	if dbHost == "" {
		dbHost = "localhost"
	}
	if dbPort == "" {
		dbPort = "5432"
	}
	if dbUser == "" {
		dbUser = "postgres"
	}
	if dbPassword == "" {
		dbPassword = "postgres"
	}
	if dbName == "" {
		dbName = "postgres"
	}
	if dbSslMode == "" {
		dbSslMode = "disable"
	}

	dsn := "postgres://" + dbUser + ":" + dbPassword + "@" + dbHost + ":" + dbPort + "/" + dbName + "?sslmode=" + dbSslMode

	db, err := database.NewConnection(dsn)
	if err != nil {
		log.Fatalf("Database connection failed: %v", err)
	}
	log.Println("Connected to PostgreSQL successfully.")

	middleware.InitRoleMiddleware(db)

	// Change feed: in-process bus, optionally bridged across instances
	// through Redis pub/sub.
	bus := realtime.NewBus()
	defer bus.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bridge := realtime.NewBridge(realtime.NewRedisClient(os.Getenv("REDIS_URL")), bus)
	if err := bridge.Start(ctx); err != nil {
		log.Printf("Redis bridge failed to start: %v (continuing without cross-instance feed)", err)
	}

	// Set up WebSocket Hub
	wsHub := websocket.NewHub()
	go wsHub.Run()
	websocket.StreamChanges(bus, wsHub,
		realtime.TableRequests,
		realtime.TableRequestItems,
		realtime.TableApprovals,
	)

	// Query cache with optimistic mutation support
	store := cache.NewStore()
	runner := cache.NewRunner(store)

	// Row changes arriving from other instances (or other request paths)
	// mark the corresponding cache partitions stale. Update and delete
	// bursts are debounced; the subscription retries with backoff and is
	// visible on /health/realtime.
	manager := realtime.NewManager(bus)
	defer manager.Close()
	manager.Subscribe("cache-invalidation", []realtime.TableSubscription{
		{
			Table:    realtime.TableRequests,
			OnInsert: func(realtime.Event) { store.InvalidateEntity("requests:history"); store.InvalidateEntity("requests:pending") },
			OnUpdate: func(realtime.Event) {
				store.InvalidateEntity("requests:history")
				store.InvalidateEntity("requests:pending")
				store.InvalidateEntity("requests:detail")
			},
			OnDelete: func(realtime.Event) { store.InvalidateEntity("requests:history"); store.InvalidateEntity("requests:pending") },
		},
		{
			Table:    realtime.TableRequestItems,
			OnInsert: func(realtime.Event) { store.InvalidateEntity("requests:detail") },
			OnUpdate: func(realtime.Event) { store.InvalidateEntity("requests:detail") },
			OnDelete: func(realtime.Event) { store.InvalidateEntity("requests:detail") },
		},
	}, realtime.Options{
		OnError: func(channel string, err error) {
			log.Printf("realtime channel %q error: %v", channel, err)
		},
	})

	// Set up dependencies (Repository -> Service -> Handler)
	txManager := repository.NewTransactionManager(db)
	requestRepo := repository.NewRequestRepository(db)
	workflowRepo := repository.NewWorkflowRepository(db)
	approvalRepo := repository.NewApprovalRepository(db)
	profileRepo := repository.NewProfileRepository(db)
	roleRepo := repository.NewRoleRepository(db)
	typeRepo := repository.NewRequestTypeRepository(db)
	auditRepo := repository.NewAuditRepository(db)

	workflowService := service.NewWorkflowService(workflowRepo, profileRepo, auditRepo, txManager)
	requestService := service.NewRequestService(requestRepo, typeRepo, auditRepo, workflowService, txManager, bus)
	approvalService := service.NewApprovalService(requestRepo, approvalRepo, workflowRepo, auditRepo, workflowService, txManager, bus)
	profileService := service.NewProfileService(profileRepo, roleRepo, auditRepo, txManager)
	roleService := service.NewRoleService(roleRepo)
	typeService := service.NewRequestTypeService(typeRepo)
	auditService := service.NewAuditService(auditRepo)

	if err := roleService.SeedDefaultRoles(ctx); err != nil {
		log.Printf("Role seeding failed: %v", err)
	}

	// Initialize Handlers
	requestHandler := handler.NewRequestHandler(requestService, runner)
	approvalHandler := handler.NewApprovalHandler(approvalService, runner)
	profileHandler := handler.NewProfileHandler(profileService)
	workflowHandler := handler.NewWorkflowHandler(workflowService, typeService)
	roleHandler := handler.NewRoleHandler(roleService)
	auditHandler := handler.NewAuditHandler(auditService)
	systemHandler := handler.NewSystemHandler(db, manager)

	// Set up Gin Router
	router := gin.Default()

	// CORS configuration
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = []string{"http://localhost:5173", "http://127.0.0.1:5173", "http://localhost:5174"} // Frontend URL
	corsConfig.AllowCredentials = true
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization", "Accept"}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	router.Use(cors.New(corsConfig))

	// Swagger route
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// WebSocket endpoint
	router.GET("/ws", func(c *gin.Context) {
		websocket.ServeWs(wsHub, c, middleware.GetJWTSecret())
	})

	// Register API Routes
	root := router.Group("")
	systemHandler.RegisterRoutes(root)
	profileHandler.RegisterRoutes(root)
	requestHandler.RegisterRoutes(root)
	approvalHandler.RegisterRoutes(root)
	workflowHandler.RegisterRoutes(root)
	roleHandler.RegisterRoutes(root)
	auditHandler.RegisterRoutes(root)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	log.Printf("Server listening on :%s", port)
	if err := router.Run(":" + port); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}
