package routes

import (
	"time"

	"relay-service/internal/api/handlers"
	"relay-service/internal/api/middleware"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// Dependencies wires the HTTP surface. Media, Notifications and RateLimit
// are optional.
type Dependencies struct {
	AllowedOrigins []string
	Auth           *middleware.AuthMiddleware
	RateLimit      *middleware.RateLimitMiddleware
	WebSocket      *handlers.WSHandler
	Presence       *handlers.PresenceHandler
	Health         *handlers.HealthHandler
	Notifications  *handlers.NotificationHandler
	Media          *handlers.MediaHandler
}

type Router struct {
	engine *gin.Engine
	deps   Dependencies
}

func NewRouter(deps Dependencies) *Router {
	engine := gin.New()

	engine.Use(gin.Recovery())
	engine.Use(middleware.CORS(deps.AllowedOrigins))
	engine.Use(middleware.LogApi())

	return &Router{engine: engine, deps: deps}
}

func (r *Router) SetupRoutes() {
	r.engine.GET("/healthz", r.deps.Health.Live)
	r.engine.GET("/readyz", r.deps.Health.Ready)
	r.engine.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	api := r.engine.Group("/api/v1")

	ws := []gin.HandlerFunc{r.deps.Auth.OptionalAuth()}
	if r.deps.RateLimit != nil {
		ws = append(ws, r.deps.RateLimit.RateLimit("websocket", 20, time.Minute))
	}
	ws = append(ws, r.deps.WebSocket.HandleWebSocket)
	api.GET("/ws", ws...)

	presence := api.Group("/presence")
	{
		presence.GET("", r.deps.Presence.GetPresence)
		presence.GET("/:userId", r.deps.Presence.GetUserPresence)
	}

	if r.deps.Notifications != nil {
		api.GET("/notifications", r.deps.Auth.RequireAuth(), r.deps.Notifications.ListUnread)
	}

	if r.deps.Media != nil {
		media := api.Group("/media")
		media.Use(r.deps.Auth.RequireAuth())
		if r.deps.RateLimit != nil {
			media.Use(r.deps.RateLimit.RateLimit("media", 30, time.Minute))
		}
		media.POST("", r.deps.Media.Upload)
	}
}

func (r *Router) GetEngine() *gin.Engine {
	return r.engine
}
