package http

import (
	"context"
	"net/http"

	"github.com/dkeye/roomchat/internal/adapters/signal"
	"github.com/dkeye/roomchat/internal/auth"
	"github.com/dkeye/roomchat/internal/config"
	"github.com/dkeye/roomchat/internal/core"
	"github.com/dkeye/roomchat/internal/domain"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"github.com/rs/zerolog/log"
)

const sessionName = "RoomchatSessions"

type Store interface {
	UpsertUser(ctx context.Context, email, name, photoURL string) (domain.User, error)
	GetUser(ctx context.Context, id domain.UserID) (domain.User, error)
	ListRooms(ctx context.Context) ([]domain.Room, error)
	ListUserRooms(ctx context.Context, user domain.UserID) ([]domain.Room, error)
	CreateRoom(ctx context.Context, name string, creator domain.UserID) (domain.Room, error)
	JoinRoom(ctx context.Context, room domain.RoomID, user domain.UserID) error
	RoomUsers(ctx context.Context, room domain.RoomID) ([]domain.User, error)
	ListMessages(ctx context.Context, room domain.RoomID) ([]domain.Message, error)
	Ping(ctx context.Context) error
}

type Chat interface {
	PostMessage(ctx context.Context, room domain.RoomID, author domain.UserID, content string) (domain.Message, error)
}

// Presence answers live questions from the coordinator loop.
type Presence interface {
	Online(ctx context.Context, room domain.RoomID) ([]domain.Identity, error)
	Stats(ctx context.Context) ([]core.RoomInfo, error)
}

type Deps struct {
	Store    Store
	Chat     Chat
	Presence Presence
	JWT      *auth.JWTManager
	Profiles auth.ProfileFetcher
	Signal   *signal.SignalWSController
	Gatherer prometheus.Gatherer
}

func SetupRouter(ctx context.Context, cfg *config.Config, d Deps) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	store := cookie.NewStore([]byte(cfg.Secret))
	store.Options(sessions.Options{
		Path:     "/",
		MaxAge:   int(cfg.JWTTTL.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	r.Use(sessions.Sessions(sessionName, store))

	log.Info().Str("module", "adapters.http").Str("mode", cfg.Mode).Msg("router setup")

	authAPI := &AuthAPI{Store: d.Store, JWT: d.JWT, Profiles: d.Profiles}
	roomsAPI := &RoomsAPI{Store: d.Store, Chat: d.Chat, Presence: d.Presence}
	protect := Protect(d.JWT, d.Store)

	r.GET("/healthz", func(c *gin.Context) {
		if err := d.Store.Ping(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if d.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{})))
	}

	api := r.Group("/api")

	authGroup := api.Group("/auth")
	authGroup.POST("/google", authAPI.Google)
	authGroup.POST("/logout", authAPI.Logout)
	authGroup.GET("/me", protect, authAPI.Me)

	rooms := api.Group("/rooms", protect)
	rooms.GET("", roomsAPI.List)
	rooms.POST("", roomsAPI.Create)
	rooms.GET("/mine", roomsAPI.Mine)
	rooms.POST("/:id/join", roomsAPI.Join)
	rooms.GET("/:id/users", roomsAPI.Users)
	rooms.GET("/:id/online", roomsAPI.Online)
	rooms.GET("/:id/messages", roomsAPI.Messages)
	rooms.POST("/:id/messages", roomsAPI.PostMessage)

	api.GET("/presence", protect, roomsAPI.Stats)

	if d.Signal != nil {
		api.GET("/ws", protect, func(c *gin.Context) {
			d.Signal.HandleSignal(ctx, c, currentUser(c))
		})
	}

	return r
}

// WithCORS allows credentialed cross-origin requests from origins.
func WithCORS(h http.Handler, origins []string) http.Handler {
	return cors.New(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
	}).Handler(h)
}
