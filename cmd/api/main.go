package main

import (
	"log"
	"os"

	_ "taxengine/api/swagger" // swagger docs
	"taxengine/internal/database"
	"taxengine/internal/handler"
	"taxengine/internal/middleware"
	"taxengine/internal/registry"
	"taxengine/internal/repository"
	"taxengine/internal/service"
	"taxengine/internal/websocket"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// @title           Tax Rulepack Engine API
// @version         1.0
// @description     Multi-jurisdiction tax calculation and rulepack lifecycle engine.
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

	// Set up WebSocket Hub for rulepack lifecycle events
	wsHub := websocket.NewHub()
	go wsHub.Run()

	// Builtin fallback registry, constructed once and shared read-only
	builtin := registry.Builtin()

	// Set up dependencies (Repository -> Service -> Handler)
	txManager := repository.NewTransactionManager(db)
	rulepackRepo := repository.NewRulepackRepository(db)
	regressionAuditRepo := repository.NewRegressionAuditRepository(db)
	auditRepo := repository.NewAuditRepository(db)

	rulepackService := service.NewRulepackService(rulepackRepo, builtin)
	quoteService := service.NewQuoteService(rulepackService)
	installService := service.NewInstallService(txManager, rulepackRepo, regressionAuditRepo, auditRepo, wsHub)
	regressionService := service.NewRegressionService(txManager, rulepackService, rulepackRepo, regressionAuditRepo, auditRepo)
	auditService := service.NewAuditService(auditRepo)

	// Initialize Handlers
	rulepackHandler := handler.NewRulepackHandler(rulepackService, installService, regressionService)
	quoteHandler := handler.NewQuoteHandler(quoteService)
	auditHandler := handler.NewAuditHandler(auditService)

	// Set up Gin Router
	router := gin.Default()

	// CORS configuration
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = []string{"http://localhost:5173", "http://127.0.0.1:5173"}
	corsConfig.AllowCredentials = true
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization", "Accept"}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	router.Use(cors.New(corsConfig))

	// Swagger route
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "OK"})
	})

	// WebSocket endpoint for lifecycle events
	router.GET("/ws", func(c *gin.Context) {
		websocket.ServeWs(wsHub, c, middleware.GetJWTSecret())
	})

	// Register API Routes
	rulepackHandler.RegisterRoutes(router.Group(""))
	quoteHandler.RegisterRoutes(router.Group(""))
	auditHandler.RegisterRoutes(router.Group(""))

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	log.Printf("Server listening on :%s", port)
	if err := router.Run(":" + port); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}
