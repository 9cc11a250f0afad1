package http

import (
	"github.com/gin-gonic/gin"

	"brieflycloud/internal/bootstrap"
	"brieflycloud/internal/transport/http/handler"
	"brieflycloud/internal/transport/http/middleware"
)

func NewRouter(app *bootstrap.App) *gin.Engine {
	gin.SetMode(app.Config.App.GinMode)
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())

	healthHandler := handler.NewHealthHandler(app)
	authHandler := handler.NewAuthHandler(app.AuthService)
	chatHandler := handler.NewChatHandler(app.ChatService)
	ingestHandler := handler.NewIngestHandler(app.IngestService)
	connectionHandler := handler.NewConnectionHandler(app.ConnectionService, app.Config.App.FrontendURL)
	billingHandler := handler.NewBillingHandler(app.BillingService)
	usageHandler := handler.NewUsageHandler(app.UsageService)
	adminHandler := handler.NewAdminHandler(app.AdminService)

	router.GET("/healthz", healthHandler.Check)

	authJWT := middleware.AuthJWT(app.Config.Auth.JWTSecret)
	v1 := router.Group("/api/v1")

	authGroup := v1.Group("/auth")
	authGroup.POST("/register", authHandler.Register)
	authGroup.POST("/login", authHandler.Login)
	authGroup.GET("/me", authJWT, authHandler.Me)
	authGroup.PUT("/me", authJWT, authHandler.UpdateProfile)

	// The OAuth callback carries a state nonce instead of a JWT; the
	// Stripe webhook carries a signature instead.
	v1.GET("/storage/:provider/callback", connectionHandler.Callback)
	v1.POST("/billing/webhook", billingHandler.Webhook)
	v1.GET("/billing/tiers", billingHandler.Tiers)

	storageGroup := v1.Group("/storage")
	storageGroup.Use(authJWT)
	storageGroup.GET("/status", connectionHandler.Status)
	storageGroup.GET("/:provider/authorize", connectionHandler.Authorize)
	storageGroup.GET("/:provider/files", connectionHandler.ListRemoteFiles)
	storageGroup.DELETE("/:provider", connectionHandler.Disconnect)

	ingestGroup := v1.Group("/ingest")
	ingestGroup.Use(authJWT)
	ingestGroup.POST("/upload", ingestHandler.Upload)
	ingestGroup.POST("/sync", ingestHandler.StartSync)
	ingestGroup.GET("/jobs", ingestHandler.ListJobs)
	ingestGroup.GET("/jobs/:id", ingestHandler.GetJob)

	filesGroup := v1.Group("/files")
	filesGroup.Use(authJWT)
	filesGroup.GET("", ingestHandler.ListFiles)
	filesGroup.DELETE("/:id", ingestHandler.DeleteFile)

	chatGroup := v1.Group("/chat")
	chatGroup.Use(authJWT)
	chatGroup.POST("/conversations", chatHandler.CreateConversation)
	chatGroup.GET("/conversations", chatHandler.ListConversations)
	chatGroup.DELETE("/conversations/:id", chatHandler.DeleteConversation)
	chatGroup.GET("/conversations/:id/messages", chatHandler.GetMessages)
	chatGroup.POST("/messages", chatHandler.SendMessage)
	chatGroup.POST("/stream", chatHandler.StreamMessage)

	billingGroup := v1.Group("/billing")
	billingGroup.Use(authJWT)
	billingGroup.POST("/checkout", billingHandler.Checkout)

	usageGroup := v1.Group("/usage")
	usageGroup.Use(authJWT)
	usageGroup.GET("", usageHandler.Summary)
	usageGroup.GET("/logs", usageHandler.Logs)

	adminGroup := v1.Group("/admin")
	adminGroup.Use(authJWT)
	adminGroup.GET("/stats", adminHandler.Stats)
	adminGroup.GET("/backups", adminHandler.ListBackups)
	adminGroup.POST("/backups", adminHandler.CreateBackup)
	adminGroup.PUT("/backups/:id", adminHandler.UpdateBackup)
	adminGroup.DELETE("/backups/:id", adminHandler.DeleteBackup)
	adminGroup.POST("/backups/:id/run", adminHandler.RunBackup)

	return router
}
