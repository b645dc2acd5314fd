package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"admin-console/internal/backend"
	"admin-console/internal/channel"
	"admin-console/internal/chatsync"
	"admin-console/internal/directory"
	"admin-console/internal/handlers"
	"admin-console/internal/middleware"
	"admin-console/internal/models"
	"admin-console/internal/observability"
	"admin-console/internal/rabbitmq"
	"admin-console/internal/sessions"
	"admin-console/internal/telemetry"
	"admin-console/internal/ws"
)

// syncRelay breaks the construction cycle between the channel and the sync
// client: the channel needs its handler at dial time, the client needs the
// channel as its duplex.
type syncRelay struct {
	client *chatsync.Client
}

func (r *syncRelay) HandleMessageReceived(rec models.MessageRecord) {
	if r.client != nil {
		r.client.HandleMessageReceived(rec)
	}
}

func (r *syncRelay) HandleMessageDeleted(groupID, messageID string) {
	if r.client != nil {
		r.client.HandleMessageDeleted(groupID, messageID)
	}
}

func (r *syncRelay) HandleConnected(reconnected bool) {
	if r.client != nil {
		r.client.HandleConnected(reconnected)
	}
}

func (r *syncRelay) HandleDisconnected(err error) {
	if r.client != nil {
		r.client.HandleDisconnected(err)
	}
}

func main() {
	_ = godotenv.Load()

	ctx := context.Background()

	if endpoint := getEnv("OTLP_ENDPOINT", ""); endpoint != "" {
		shutdown, err := telemetry.SetupTracing(ctx, endpoint, "admin-console")
		if err != nil {
			log.Printf("tracing disabled: %v", err)
		} else {
			defer func() {
				if err := shutdown(context.Background()); err != nil {
					log.Printf("tracing shutdown: %v", err)
				}
			}()
		}
	}

	database, err := sessions.Connect()
	if err != nil {
		log.Fatalf("failed to connect to db: %v", err)
	}
	store := sessions.NewSQLStore(database)

	auditPublisher := rabbitmq.NewPublisher(getEnv("RABBITMQ_URL", ""), getEnv("AUDIT_EXCHANGE", "console.audit"))
	defer auditPublisher.Close()
	audit := telemetry.NewAuditEmitter(auditPublisher, "audit.console", "admin-console", getEnv("ENVIRONMENT", "development"))
	log.Printf("audit publisher mode: %s", rabbitmq.PublisherMode(auditPublisher))

	if amqpURL := getEnv("RABBITMQ_URL", ""); amqpURL != "" {
		wsPublisher, err := observability.NewAMQPPublisher(amqpURL, getEnv("WS_EVENTS_EXCHANGE", "console.ws_events"))
		if err != nil {
			log.Printf("ws event publisher disabled: %v", err)
		} else {
			observability.SetPublisher(wsPublisher)
			defer wsPublisher.Close()
		}
	}

	timeout := 15 * time.Second
	if raw := getEnv("BACKEND_TIMEOUT", ""); raw != "" {
		if parsed, err := time.ParseDuration(raw); err == nil {
			timeout = parsed
		}
	}
	backendClient := backend.New(getEnv("BACKEND_URL", "http://localhost:8080"), timeout)

	identity := models.Identity{
		AdminID:  getEnv("ADMIN_ID", ""),
		Nickname: getEnv("ADMIN_NICKNAME", "SnoRelax Team"),
	}
	if email := getEnv("BACKEND_EMAIL", ""); email != "" {
		result, err := backendClient.Login(ctx, email, getEnv("BACKEND_PASSWORD", ""))
		if err != nil {
			log.Fatalf("backend login failed: %v", err)
		}
		identity = models.Identity{AdminID: result.AdminID, Nickname: result.Nickname}
	} else if token := getEnv("BACKEND_TOKEN", ""); token != "" {
		backendClient.SetToken(token)
	}

	relay := &syncRelay{}
	duplex := channel.New(getEnv("BACKEND_WS_URL", "ws://localhost:8080/ws"), relay)
	defer duplex.Close()
	sync := chatsync.New(duplex, backendClient, identity)
	relay.client = sync

	hub := ws.NewHub()
	sync.Subscribe(func(event chatsync.Event) {
		hub.Broadcast(ws.FromSyncEvent(event))
	})

	pollInterval := 60 * time.Second
	if raw := getEnv("GROUP_POLL_INTERVAL", ""); raw != "" {
		if parsed, err := time.ParseDuration(raw); err == nil {
			pollInterval = parsed
		}
	}
	dir := directory.New(backendClient, pollInterval)
	dirCtx, dirCancel := context.WithCancel(ctx)
	defer dirCancel()
	go dir.Run(dirCtx)

	authHandler := handlers.NewAuthHandler(backendClient, store, audit)
	communityHandler := handlers.NewCommunityHandler(dir, sync, backendClient, audit)
	adminHandler := handlers.NewAdminHandler(backendClient, audit)
	consoleWS := ws.NewConsoleWebSocketHandler(hub, store)

	router := gin.Default()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{getEnv("CONSOLE_ORIGIN", "http://localhost:3000")},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"},
		AllowCredentials: true,
	}))
	router.Use(otelgin.Middleware("admin-console"))
	router.Use(observability.HTTPMetricsMiddleware())

	router.POST("/login", authHandler.Login)
	router.POST("/logout", authHandler.Logout)

	authMiddleware := middleware.AuthMiddleware(store)

	router.GET("/community/groups", authMiddleware, communityHandler.ListGroups)
	router.POST("/community/groups", authMiddleware, communityHandler.CreateGroup)
	router.PUT("/community/groups/:group_id", authMiddleware, communityHandler.UpdateGroup)
	router.DELETE("/community/groups/:group_id", authMiddleware, communityHandler.DeleteGroup)
	router.POST("/community/groups/:group_id/select", authMiddleware, communityHandler.SelectGroup)
	router.POST("/community/groups/:group_id/members", authMiddleware, communityHandler.AddMember)
	router.DELETE("/community/groups/:group_id/members/:user_id", authMiddleware, communityHandler.RemoveMember)

	router.GET("/community/active", authMiddleware, communityHandler.ActiveSnapshot)
	router.DELETE("/community/active", authMiddleware, communityHandler.DeselectGroup)
	router.POST("/community/active/messages", authMiddleware, communityHandler.PostMessage)
	router.DELETE("/community/active/messages", authMiddleware, communityHandler.ClearMessages)
	router.POST("/community/active/messages/:temp_id/retry", authMiddleware, communityHandler.RetryMessage)
	router.PUT("/community/messages/:message_id", authMiddleware, communityHandler.EditMessage)
	router.DELETE("/community/messages/:message_id", authMiddleware, communityHandler.DeleteMessage)

	router.GET("/users", authMiddleware, adminHandler.ListUsers)
	router.POST("/users", authMiddleware, adminHandler.CreateUser)
	router.GET("/users/:user_id", authMiddleware, adminHandler.GetUser)
	router.PUT("/users/:user_id", authMiddleware, adminHandler.UpdateUser)
	router.DELETE("/users/:user_id", authMiddleware, adminHandler.DeleteUser)

	router.GET("/content", authMiddleware, adminHandler.ListContent)
	router.POST("/content", authMiddleware, adminHandler.CreateContent)
	router.PUT("/content/:content_id", authMiddleware, adminHandler.UpdateContent)
	router.DELETE("/content/:content_id", authMiddleware, adminHandler.DeleteContent)

	router.GET("/stats", authMiddleware, adminHandler.Stats)
	router.GET("/stats/chats", authMiddleware, adminHandler.ChatStats)

	router.GET("/ws/console", consoleWS.Handle)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	handlers.RegisterDebugRoutes(router, audit, getEnv("DEBUG_ROUTES", "") == "true")

	port := getEnv("PORT", "8090")
	if err := router.Run(":" + port); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}
