package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"wedhabesha-chat/config"
	"wedhabesha-chat/internal/crypto"
	"wedhabesha-chat/internal/events"
	"wedhabesha-chat/internal/handler"
	"wedhabesha-chat/internal/middleware"
	"wedhabesha-chat/internal/proxy"
	appredis "wedhabesha-chat/internal/redis"
	"wedhabesha-chat/internal/repository"
	"wedhabesha-chat/internal/services"
	"wedhabesha-chat/internal/storage"
	"wedhabesha-chat/internal/ws"
	"wedhabesha-chat/pkg/database"
	"wedhabesha-chat/pkg/logger"

	"github.com/gin-gonic/gin"
)

func main() {
	cfg := config.LoadConfig()

	l := logger.New(cfg.AppMode)
	logger.SetGlobalLogger(l)

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		log.Fatalf("Failed to apply migrations: %v", err)
	}

	redisClient := appredis.NewClient(appredis.Config{
		Host:     cfg.RedisHost,
		Port:     cfg.RedisPort,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	keys, err := crypto.NewKeyStore(cfg.MessageMasterKey)
	if err != nil {
		log.Fatalf("Failed to initialize key store: %v", err)
	}
	engine := crypto.NewEngine(keys)

	threadRepo := repository.NewThreadRepository(db)
	messageRepo := repository.NewMessageRepository(db)
	auditRepo := repository.NewAuditRepository(db, cfg.AuditLogCap)
	notificationRepo := repository.NewNotificationRepository(db)

	access := proxy.NewAccessControl(threadRepo, messageRepo, auditRepo, l)

	bus := events.NewRoomBus(redisClient, l)
	presence := appredis.NewPresenceStore(redisClient, 0)
	queue := appredis.NewDeliveryQueue(redisClient, 0)

	notificationService := services.NewNotificationService(notificationRepo, presence, queue, bus, l)
	validator := services.NewMimeFileValidator()
	messageService := services.NewMessageService(db, messageRepo, threadRepo, access, engine, notificationService, bus, validator, l)
	threadService := services.NewThreadService(threadRepo, messageRepo, access, l)

	var attachmentService *services.AttachmentService
	if cfg.S3Bucket != "" {
		store, err := storage.NewAttachmentStore(context.Background(), storage.S3Config{
			Region:     cfg.S3Region,
			Bucket:     cfg.S3Bucket,
			AccessKey:  cfg.S3AccessKey,
			SecretKey:  cfg.S3SecretKey,
			Endpoint:   cfg.S3Endpoint,
			PresignTTL: 15 * time.Minute,
		})
		if err != nil {
			log.Fatalf("Failed to initialize attachment store: %v", err)
		}
		attachmentService = services.NewAttachmentService(store, validator, access, storage.NewObjectKey)
	}

	router := buildRouter(cfg, l,
		handler.NewMessageHandler(messageService),
		handler.NewThreadHandler(threadService),
		handler.NewNotificationHandler(notificationService),
		handler.NewSecurityHandler(access),
		attachmentService,
		ws.NewHandler(bus, presence, access, notificationService, l),
	)

	l.Infof("Starting server on port %s", cfg.AppPort)
	if err := router.Run(fmt.Sprintf(":%s", cfg.AppPort)); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

func buildRouter(cfg *config.Config, l *logger.Logger, messages *handler.MessageHandler, threads *handler.ThreadHandler, notifications *handler.NotificationHandler, security *handler.SecurityHandler, attachments *services.AttachmentService, socket *ws.Handler) *gin.Engine {
	if cfg.AppMode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestIDMiddleware())
	r.Use(middleware.LoggingMiddleware(l))

	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})

	api := r.Group("/api/v1")
	api.Use(middleware.AuthMiddleware(cfg.JWTSecret))

	api.POST("/threads", threads.Create)
	api.GET("/threads", threads.List)
	api.GET("/threads/stats", threads.Stats)
	api.GET("/threads/:threadId", threads.Get)
	api.POST("/threads/:threadId/archive", threads.Archive)
	api.POST("/threads/:threadId/reactivate", threads.Reactivate)

	api.POST("/messages", messages.Send)
	api.GET("/threads/:threadId/messages", messages.List)
	api.GET("/threads/:threadId/messages/search", messages.Search)
	api.GET("/threads/:threadId/messages/stats", messages.Stats)
	api.POST("/threads/:threadId/rotate-key", messages.RotateKey)
	api.POST("/messages/:messageId/read", messages.MarkRead)
	api.DELETE("/messages/:messageId", messages.Delete)

	api.GET("/notifications", notifications.List)
	api.GET("/notifications/unread", notifications.UnreadCount)
	api.POST("/notifications/:notificationId/read", notifications.MarkRead)
	api.GET("/notifications/preferences", notifications.GetPreferences)
	api.PUT("/notifications/preferences", notifications.UpdatePreferences)

	api.GET("/security/access-logs", security.AccessLogs)
	api.GET("/security/stats", security.Stats)
	api.GET("/security/suspicious", security.Suspicious)

	if attachments != nil {
		uploads := handler.NewUploadHandler(attachments)
		api.POST("/attachments/prepare", uploads.Prepare)
		api.GET("/threads/:threadId/attachments/download", uploads.Download)
	}

	api.GET("/ws", socket.Serve)

	return r
}
