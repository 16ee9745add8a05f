package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/dkeye/Parley/internal/adapters/rtc"
	"github.com/dkeye/Parley/internal/adapters/signal"
	"github.com/dkeye/Parley/internal/app/orch"
	"github.com/dkeye/Parley/internal/config"
	"github.com/dkeye/Parley/internal/domain"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
)

const (
	HeaderUserID   = "X-User-ID"
	sessionUserKey = "user_id"
	ctxUserKey     = "user_id"
)

// GroupWriter is implemented by stores that can create groups.
type GroupWriter interface {
	PutGroup(ctx context.Context, g domain.Group) error
}

type Server struct {
	orch   *orch.Orchestrator
	signal *signal.SignalWSController
	groups GroupWriter
	tokens *TokenVerifier
	ice    webrtc.Configuration
}

// identity resolves the trusted user id. With a token verifier configured
// only a valid bearer token is accepted; otherwise the upstream header,
// then the cookie session.
func (s *Server) identity(c *gin.Context) (domain.UserID, bool) {
	if s.tokens != nil {
		tok, ok := bearer(c.GetHeader("Authorization"))
		if !ok {
			return "", false
		}
		return s.verify(c, tok)
	}
	raw := c.GetHeader(HeaderUserID)
	if raw == "" {
		if v, ok := sessions.Default(c).Get(sessionUserKey).(string); ok {
			raw = v
		}
	}
	uid, err := domain.NewUserID(raw)
	if err != nil {
		return "", false
	}
	return uid, true
}

func (s *Server) verify(c *gin.Context, tok string) (domain.UserID, bool) {
	uid, err := s.tokens.Verify(tok)
	if err != nil {
		log.Warn().Err(err).Str("module", "adapters.http").Str("ip", c.ClientIP()).Msg("rejected bearer token")
		return "", false
	}
	return uid, true
}

func (s *Server) RequireIdentity() gin.HandlerFunc {
	return func(c *gin.Context) {
		uid, ok := s.identity(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.Set(ctxUserKey, uid)
		c.Next()
	}
}

func currentUser(c *gin.Context) domain.UserID {
	uid, _ := c.Get(ctxUserKey)
	return uid.(domain.UserID)
}

func SetupRouter(ctx context.Context, cfg *config.Config, o *orch.Orchestrator, groups GroupWriter) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	store := cookie.NewStore([]byte(cfg.Secret))
	store.Options(sessions.Options{Path: "/", MaxAge: 3600 * 24 * 7, HttpOnly: true, SameSite: http.SameSiteLaxMode})
	r.Use(sessions.Sessions("ParleySessions", store))

	s := &Server{
		orch: o,
		signal: signal.NewSignalWSController(o, signal.NewRateLimiter(cfg.RateLimit.Burst, cfg.RateLimit.Interval), signal.Options{
			ReadLimit:  cfg.ReadLimit,
			PingPeriod: cfg.PingPeriod,
			PongWait:   cfg.PongWait(),
			WriteWait:  cfg.WriteWait,
			SendBuffer: cfg.SendBuffer,
		}),
		groups: groups,
		tokens: NewTokenVerifier(cfg.JWTSecret),
		ice:    rtc.Configuration(cfg.ICEServers, cfg.ICETransportPolicy),
	}

	r.GET("/healthz", s.health)

	api := r.Group("/api")
	api.GET("/ws", func(c *gin.Context) { s.handleWS(ctx, c) })
	api.POST("/session", s.login)
	api.DELETE("/session", s.logout)
	api.GET("/rtc/config", s.rtcConfig)

	authed := api.Group("", s.RequireIdentity())
	authed.GET("/presence", s.presence)
	authed.GET("/calls/current", s.currentCall)
	authed.PUT("/groups/:id", s.putGroup)
	authed.GET("/groups/:id", s.getGroup)
	authed.POST("/messages", s.sendMessage)
	authed.POST("/messages/:id/reactions", s.addReaction)
	authed.PATCH("/messages/:id", s.editMessage)
	authed.DELETE("/messages/:id", s.deleteMessage)

	log.Info().Str("module", "adapters.http").Msg("router setup")
	return r
}

// handleWS accepts the token as a query parameter as well, since browsers
// cannot set headers on a websocket upgrade. The userId parameter is only
// honored when bearer auth is off.
func (s *Server) handleWS(ctx context.Context, c *gin.Context) {
	var (
		uid domain.UserID
		ok  bool
	)
	switch {
	case s.tokens != nil && c.Query("token") != "":
		uid, ok = s.verify(c, c.Query("token"))
	case s.tokens != nil:
		uid, ok = s.identity(c)
	default:
		if uid, ok = s.identity(c); !ok {
			var err error
			if uid, err = domain.NewUserID(c.Query("userId")); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "userId is required"})
				return
			}
			ok = true
		}
	}
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	log.Info().Str("module", "adapters.http").Str("user", string(uid)).Msg("ws signal endpoint hit")
	s.signal.HandleSignal(ctx, c, uid)
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":   "ok",
		"sessions": s.orch.Registry.SessionCount(),
		"calls":    s.orch.Signaling.ActiveCalls(),
	})
}

type loginRequest struct {
	UserID string `json:"userId"`
}

// login binds a user id to the cookie session for clients without an
// upstream authenticator.
func (s *Server) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
		return
	}
	uid, err := domain.NewUserID(req.UserID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	sess := sessions.Default(c)
	sess.Set(sessionUserKey, string(uid))
	if err := sess.Save(); err != nil {
		log.Error().Err(err).Str("module", "adapters.http").Msg("save session")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"userId": uid})
}

func (s *Server) logout(c *gin.Context) {
	sess := sessions.Default(c)
	sess.Clear()
	sess.Options(sessions.Options{Path: "/", MaxAge: -1})
	_ = sess.Save()
	c.Status(http.StatusNoContent)
}

func (s *Server) rtcConfig(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"iceServers":         s.ice.ICEServers,
		"iceTransportPolicy": s.ice.ICETransportPolicy.String(),
	})
}

func (s *Server) presence(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"online": s.orch.Registry.OnlineUserIDs()})
}

func (s *Server) currentCall(c *gin.Context) {
	info, ok := s.orch.Signaling.ActiveCall(currentUser(c))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no active call"})
		return
	}
	c.JSON(http.StatusOK, info)
}

// writeError maps domain errors onto status codes.
func writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrPermissionDenied):
		status = http.StatusForbidden
	case errors.Is(err, domain.ErrMessageNotFound), errors.Is(err, domain.ErrGroupNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrMessageDeleted):
		status = http.StatusConflict
	}
	if status == http.StatusInternalServerError {
		log.Error().Err(err).Str("module", "adapters.http").Str("path", c.FullPath()).Msg("request failed")
		c.JSON(status, gin.H{"error": "internal error"})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
