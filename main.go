package main

import (
	"github.com/gin-gonic/gin"

	"github.com/vietTNT/DoveRx-backend/internal/auth"
	"github.com/vietTNT/DoveRx-backend/internal/broadcast"
	"github.com/vietTNT/DoveRx-backend/internal/bus"
	"github.com/vietTNT/DoveRx-backend/internal/config"
	"github.com/vietTNT/DoveRx-backend/internal/db"
	"github.com/vietTNT/DoveRx-backend/internal/handlers"
	"github.com/vietTNT/DoveRx-backend/internal/logging"
	"github.com/vietTNT/DoveRx-backend/internal/middleware"
	"github.com/vietTNT/DoveRx-backend/internal/observability"
	"github.com/vietTNT/DoveRx-backend/internal/presence"
	"github.com/vietTNT/DoveRx-backend/internal/repositories"
	"github.com/vietTNT/DoveRx-backend/internal/ws"
)

func main() {
	cfg := config.Load()
	log := logging.New(cfg.LogLevel)

	database, err := db.Connect(cfg.DBDSN, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to db")
	}
	defer database.Close()

	var eventBus bus.Bus
	if cfg.AMQPURL != "" {
		amqpBus, err := bus.NewAMQP(cfg.AMQPURL, cfg.AMQPExchange, log)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to amqp")
		}
		defer amqpBus.Close()
		eventBus = amqpBus
		log.Info().Str("exchange", cfg.AMQPExchange).Msg("using amqp event bus")
	} else {
		eventBus = bus.NewMemory(log)
		log.Info().Msg("using in-process event bus")
	}

	userRepo := repositories.NewUserRepo(database)
	conversationRepo := repositories.NewConversationRepo(database)
	messageRepo := repositories.NewMessageRepo(database)
	postRepo := repositories.NewPostRepo(database)
	commentRepo := repositories.NewCommentRepo(database)
	reactionRepo := repositories.NewReactionRepo(database)
	shareRepo := repositories.NewShareRepo(database)
	notificationRepo := repositories.NewNotificationRepo(database)
	presenceRepo := repositories.NewPresenceRepo(database)

	authenticator := auth.NewAuthenticator(cfg.JWTSecret, userRepo)
	tracker := presence.NewTracker(presenceRepo, log)
	broadcaster := broadcast.New(eventBus, userRepo, reactionRepo, shareRepo, notificationRepo, log)

	pool := ws.NewPool(cfg.WorkerLimit)
	dispatcher := ws.NewDispatcher(conversationRepo, messageRepo, postRepo, commentRepo, reactionRepo, broadcaster, pool, log)
	wsHandler := ws.NewHandler(authenticator, eventBus, tracker, dispatcher, cfg.KeepaliveInterval, cfg.SendBuffer, log)

	chatHandler := handlers.NewChatHandler(conversationRepo, messageRepo, userRepo, broadcaster)
	postHandler := handlers.NewPostHandler(postRepo, commentRepo, reactionRepo, shareRepo, userRepo, broadcaster)
	commentHandler := handlers.NewCommentHandler(postRepo, commentRepo, reactionRepo, userRepo, broadcaster)
	notificationHandler := handlers.NewNotificationHandler(notificationRepo, userRepo)
	presenceHandler := handlers.NewPresenceHandler(tracker, presenceRepo)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(observability.HTTPMetricsMiddleware())

	authMiddleware := middleware.AuthMiddleware(authenticator)

	router.GET("/conversations", authMiddleware, chatHandler.ListConversations)
	router.POST("/conversations/start", authMiddleware, chatHandler.StartConversation)
	router.GET("/conversations/:conversation_id/messages", authMiddleware, chatHandler.ListMessages)
	router.POST("/conversations/:conversation_id/read", authMiddleware, chatHandler.MarkRead)

	router.GET("/posts", authMiddleware, postHandler.ListPosts)
	router.POST("/posts", authMiddleware, postHandler.CreatePost)
	router.GET("/posts/:post_id", authMiddleware, postHandler.GetPost)
	router.PUT("/posts/:post_id", authMiddleware, postHandler.UpdatePost)
	router.DELETE("/posts/:post_id", authMiddleware, postHandler.DeletePost)
	router.POST("/posts/:post_id/react", authMiddleware, postHandler.ReactToPost)
	router.DELETE("/posts/:post_id/react", authMiddleware, postHandler.UnreactToPost)
	router.POST("/posts/:post_id/share", authMiddleware, postHandler.SharePost)

	router.GET("/posts/:post_id/comments", authMiddleware, commentHandler.ListComments)
	router.POST("/posts/:post_id/comments", authMiddleware, commentHandler.CreateComment)
	router.PUT("/comments/:comment_id", authMiddleware, commentHandler.UpdateComment)
	router.DELETE("/comments/:comment_id", authMiddleware, commentHandler.DeleteComment)
	router.POST("/comments/:comment_id/react", authMiddleware, commentHandler.ReactToComment)
	router.DELETE("/comments/:comment_id/react", authMiddleware, commentHandler.UnreactToComment)

	router.GET("/notifications", authMiddleware, notificationHandler.ListNotifications)
	router.POST("/notifications/:notification_id/read", authMiddleware, notificationHandler.MarkNotificationRead)
	router.POST("/notifications/read-all", authMiddleware, notificationHandler.MarkAllNotificationsRead)

	router.GET("/users/:user_id/status", authMiddleware, presenceHandler.GetStatus)

	router.GET("/ws/chat", wsHandler.HandleChat)
	router.GET("/ws/feed", wsHandler.HandleFeed)

	router.GET("/metrics", observability.MetricsHandler())

	log.Info().Str("port", cfg.Port).Msg("starting server")
	if err := router.Run(":" + cfg.Port); err != nil {
		log.Fatal().Err(err).Msg("server error")
	}
}
