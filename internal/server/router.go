package server

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/agora-portal/backend/internal/auth"
	"github.com/agora-portal/backend/internal/meeting"
	"github.com/agora-portal/backend/internal/users"
	"github.com/agora-portal/backend/internal/voting"
)

const (
	userIDContextKey = "agora_user_id"
	claimsContextKey = "agora_session_claims"

	roleAdmin = "admin"
)

var (
	errMissingSessionValidator = errors.New("session validator dependency required")
	errMissingVotingService    = errors.New("voting service dependency required")
	errMissingMeetingService   = errors.New("meeting service dependency required")
	errMissingUsersService     = errors.New("users service dependency required")
)

// Dependencies wires the services the HTTP surface exposes.
type Dependencies struct {
	Sessions *auth.SessionValidator
	Voting   *voting.Service
	Meetings *meeting.Service
	Users    *users.Service
	Logger   *zap.Logger
}

// NewHTTPHandler builds the gin router for the voting API.
func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	if deps.Sessions == nil {
		return nil, errMissingSessionValidator
	}
	if deps.Voting == nil {
		return nil, errMissingVotingService
	}
	if deps.Meetings == nil {
		return nil, errMissingMeetingService
	}
	if deps.Users == nil {
		return nil, errMissingUsersService
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowHeaders: []string{"Authorization", "Content-Type"},
		MaxAge:       12 * time.Hour,
	}))

	handler := &httpHandler{
		sessions: deps.Sessions,
		voting:   deps.Voting,
		meetings: deps.Meetings,
		users:    deps.Users,
		logger:   logger,
	}

	router.GET("/healthz", handler.handleHealth)

	protected := router.Group("/")
	protected.Use(handler.authorizeRequest)
	protected.GET("/votes/current", handler.handleCurrentVote)
	protected.GET("/sub-items/:id/votes", handler.handleListVotes)
	protected.POST("/votes/:id/posts", handler.handleCast)
	protected.GET("/votes/:id/ballot", handler.handleBallot)
	protected.POST("/attendance", handler.handleAttend)
	protected.DELETE("/attendance", handler.handleUnattend)
	protected.POST("/votecode", handler.handleRegenerateVotecode)

	admin := protected.Group("/admin")
	admin.Use(handler.requireAdmin)
	admin.POST("/votes", handler.handleCreateVote)
	admin.PATCH("/votes/:id", handler.handleUpdateVote)
	admin.DELETE("/votes/:id", handler.handleDestroyVote)
	admin.POST("/votes/:id/open", handler.handleOpenVote)
	admin.POST("/votes/:id/close", handler.handleCloseVote)
	admin.POST("/votes/:id/position", handler.handleReorderVote)
	admin.GET("/votes/:id/audits", handler.handleVoteAudits)
	admin.POST("/sub-items/:id/current", handler.handleSetSubItemCurrent)
	admin.POST("/sub-items/:id/close", handler.handleSetSubItemClosed)
	admin.DELETE("/attendance", handler.handleUnattendAll)

	return router, nil
}

type httpHandler struct {
	sessions *auth.SessionValidator
	voting   *voting.Service
	meetings *meeting.Service
	users    *users.Service
	logger   *zap.Logger
}

func (h *httpHandler) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *httpHandler) authorizeRequest(c *gin.Context) {
	header := c.GetHeader("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	claims, err := h.sessions.ValidateToken(strings.TrimPrefix(header, "Bearer "))
	if err != nil {
		h.logger.Warn("session token rejected", zap.Error(err))
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	userID, err := claims.UserID()
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	c.Set(userIDContextKey, userID)
	c.Set(claimsContextKey, claims)
	c.Next()
}

func (h *httpHandler) requireAdmin(c *gin.Context) {
	value, ok := c.Get(claimsContextKey)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	claims, ok := value.(auth.SessionClaims)
	if !ok || !claims.HasRole(roleAdmin) {
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
		return
	}
	c.Next()
}

func (h *httpHandler) currentUserID(c *gin.Context) (uint, bool) {
	value, ok := c.Get(userIDContextKey)
	if !ok {
		return 0, false
	}
	userID, ok := value.(uint)
	return userID, ok
}

// respondServiceError maps the voting error taxonomy onto HTTP statuses.
func (h *httpHandler) respondServiceError(c *gin.Context, err error) {
	if fieldErrors, ok := voting.AsValidationErrors(err); ok {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"errors": fieldErrors})
		return
	}
	switch {
	case errors.Is(err, voting.ErrNotFound),
		errors.Is(err, users.ErrUserNotFound),
		errors.Is(err, meeting.ErrSubItemNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
	case errors.Is(err, voting.ErrConflict),
		errors.Is(err, meeting.ErrSubItemClosed):
		c.JSON(http.StatusConflict, gin.H{"error": "conflict", "detail": err.Error()})
	case errors.Is(err, voting.ErrInvalidState):
		c.JSON(http.StatusConflict, gin.H{"error": "invalid_state", "detail": err.Error()})
	default:
		h.logger.Error("request failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal"})
	}
}
