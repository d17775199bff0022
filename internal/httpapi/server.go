package httpapi

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/stupiduntilnot/helpdesk/internal/chat"
	"github.com/stupiduntilnot/helpdesk/internal/identity"
	"github.com/stupiduntilnot/helpdesk/internal/llm"
	"github.com/stupiduntilnot/helpdesk/internal/store"
)

// TurnRunner executes one conversational turn.
type TurnRunner interface {
	Run(ctx context.Context, req chat.TurnRequest) error
}

// turnRequest is the inbound body for POST /api/turn.
type turnRequest struct {
	IDToken        string `json:"idToken"`
	ConversationID string `json:"conversationId"`
}

// NewRouter builds the HTTP surface: the turn endpoint and a liveness probe.
// Cross-origin access is unrestricted.
func NewRouter(runner TurnRunner, log zerolog.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(cors.Default())

	r.HandleMethodNotAllowed = true
	r.NoMethod(func(c *gin.Context) {
		c.JSON(http.StatusMethodNotAllowed, gin.H{"error": "Method not allowed"})
	})

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "OK"})
	})

	r.POST("/api/turn", handleTurn(runner, log.With().Str("component", "httpapi").Logger()))

	return r
}

// handleTurn validates the body, runs the pipeline, and maps failures to
// transport statuses. Error detail is logged server-side; callers get a
// generic message.
func handleTurn(runner TurnRunner, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req turnRequest
		if err := c.ShouldBindJSON(&req); err != nil || req.IDToken == "" || req.ConversationID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Missing idToken or conversationId"})
			return
		}

		err := runner.Run(c.Request.Context(), chat.TurnRequest{
			IDToken:        req.IDToken,
			ConversationID: req.ConversationID,
		})
		if err != nil {
			status, msg := mapError(err)
			log.Error().Err(err).
				Str("conversation_id", req.ConversationID).
				Int("status", status).
				Msg("turn failed")
			c.JSON(status, gin.H{"error": msg})
			return
		}

		c.JSON(http.StatusOK, gin.H{"ok": true})
	}
}

// mapError translates a pipeline failure into a status and a generic
// client-facing message.
func mapError(err error) (int, string) {
	var authErr *identity.AuthError
	if errors.As(err, &authErr) {
		return http.StatusUnauthorized, "Unauthorized"
	}
	var timeoutErr *llm.TimeoutError
	if errors.As(err, &timeoutErr) {
		return http.StatusGatewayTimeout, "Provider timeout"
	}
	var provErr *llm.ProviderError
	if errors.As(err, &provErr) {
		return http.StatusBadGateway, "Provider error"
	}
	var storeErr *store.StoreError
	if errors.As(err, &storeErr) {
		return http.StatusBadGateway, "Storage error"
	}
	return http.StatusInternalServerError, "Internal server error"
}
