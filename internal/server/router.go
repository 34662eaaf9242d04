package server

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/MarcoPoloResearchLab/lumen/backend/internal/auth"
	"github.com/MarcoPoloResearchLab/lumen/backend/internal/notes"
	"github.com/MarcoPoloResearchLab/lumen/backend/internal/purchases"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	userIDContextKey        = "lumen_user_id"
	sessionClaimsContextKey = "lumen_session_claims"
)

var (
	errMissingSessionValidator = errors.New("session validator dependency required")
	errMissingUserResolver     = errors.New("user resolver dependency required")
	errMissingNotesService     = errors.New("notes service dependency required")
	errMissingPurchasesService = errors.New("purchases service dependency required")
)

// SessionValidator authenticates an incoming request.
type SessionValidator interface {
	ValidateRequest(r *http.Request) (auth.SessionClaims, error)
}

// UserResolver maps session claims to a canonical user id.
type UserResolver interface {
	ResolveUserID(ctx context.Context, claims auth.SessionClaims) (string, error)
}

// Dependencies lists everything the HTTP surface needs.
type Dependencies struct {
	SessionValidator SessionValidator
	Users            UserResolver
	NotesService     *notes.Service
	PurchasesService *purchases.Service
	Logger           *zap.Logger
	AllowedOrigins   []string
}

// NewHTTPHandler wires the gin router.
func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	if deps.SessionValidator == nil {
		return nil, errMissingSessionValidator
	}
	if deps.Users == nil {
		return nil, errMissingUserResolver
	}
	if deps.NotesService == nil {
		return nil, errMissingNotesService
	}
	if deps.PurchasesService == nil {
		return nil, errMissingPurchasesService
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(corsMiddleware(deps.AllowedOrigins))

	handler := &httpHandler{
		sessions:     deps.SessionValidator,
		users:        deps.Users,
		notesService: deps.NotesService,
		purchases:    deps.PurchasesService,
		logger:       logger,
	}

	router.GET("/healthz", handler.handleHealth)
	router.GET("/notes", handler.handleListSharedNotes)
	router.GET("/notes/:noteId", handler.handleGetSharedNote)
	router.POST("/notes/:noteId/download", handler.handleIncrementDownload)

	protected := router.Group("/")
	protected.Use(handler.authorizeRequest)
	protected.POST("/courses/:courseId/checkout/complete", handler.handleCompletePurchase)
	protected.GET("/courses/:courseId/access", handler.handleCourseAccess)
	protected.GET("/purchases", handler.handleListPurchases)

	protected.POST("/student-notes", handler.handleCreateStudentNote)
	protected.GET("/student-notes", handler.handleListStudentNotes)
	protected.GET("/student-notes/:noteId", handler.handleGetStudentNote)
	protected.PATCH("/student-notes/:noteId/draft", handler.handleSaveDraft)
	protected.PATCH("/student-notes/:noteId/bookmark", handler.handleToggleBookmark)
	protected.POST("/student-notes/:noteId/publish", handler.handlePublishStudentNote)
	protected.DELETE("/student-notes/:noteId", handler.handleDeleteStudentNote)

	protected.POST("/notes", handler.handleCreateSharedNote)
	protected.DELETE("/notes/:noteId", handler.handleDeleteSharedNote)

	return router, nil
}

func corsMiddleware(allowedOrigins []string) gin.HandlerFunc {
	config := cors.Config{
		AllowMethods: []string{
			http.MethodGet,
			http.MethodPost,
			http.MethodPatch,
			http.MethodDelete,
			http.MethodOptions,
		},
		AllowHeaders:     []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	explicit := make([]string, 0, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		if origin = strings.TrimSpace(origin); origin != "" && origin != "*" {
			explicit = append(explicit, origin)
		}
	}
	if len(explicit) == 0 {
		// Credentials cannot be combined with a literal "*" origin, so echo the caller's.
		config.AllowOriginFunc = func(string) bool { return true }
	} else {
		config.AllowOrigins = explicit
	}
	return cors.New(config)
}

type httpHandler struct {
	sessions     SessionValidator
	users        UserResolver
	notesService *notes.Service
	purchases    *purchases.Service
	logger       *zap.Logger
}

func (h *httpHandler) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *httpHandler) authorizeRequest(c *gin.Context) {
	claims, err := h.sessions.ValidateRequest(c.Request)
	if err != nil {
		level := zapcore.WarnLevel
		if errors.Is(err, auth.ErrExpiredSessionToken) || errors.Is(err, auth.ErrMissingSessionToken) {
			level = zapcore.InfoLevel
		}
		h.logger.Log(level, "session validation failed", zap.Error(err))
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	userID, err := h.users.ResolveUserID(c.Request.Context(), claims)
	if err != nil {
		h.logger.Warn("user resolution failed", zap.Error(err))
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	c.Set(userIDContextKey, userID)
	c.Set(sessionClaimsContextKey, claims)
	c.Next()
}

// isSessionIdentity reports whether candidate names the authenticated user,
// either by canonical id or by the raw user_id or subject claim.
func isSessionIdentity(c *gin.Context, canonicalUserID, candidate string) bool {
	if candidate == canonicalUserID {
		return true
	}
	value, exists := c.Get(sessionClaimsContextKey)
	if !exists {
		return false
	}
	claims, ok := value.(auth.SessionClaims)
	if !ok {
		return false
	}
	for _, claimed := range []string{claims.UserID, claims.Subject} {
		if claimed = strings.TrimSpace(claimed); claimed != "" && claimed == candidate {
			return true
		}
	}
	return false
}

// requester returns the authenticated user id, writing 401 when absent.
func (h *httpHandler) requester(c *gin.Context) (string, bool) {
	userID := strings.TrimSpace(c.GetString(userIDContextKey))
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return "", false
	}
	return userID, true
}

type serviceErrorCoder interface {
	Code() string
}

// respondServiceError maps an unexpected service failure to a 500 carrying
// its stable code.
func (h *httpHandler) respondServiceError(c *gin.Context, message string, err error) {
	h.logger.Error(message, zap.Error(err))
	var coder serviceErrorCoder
	if errors.As(err, &coder) {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "internal_failure",
			"code":  coder.Code(),
		})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_failure"})
}
