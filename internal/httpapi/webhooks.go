package httpapi

import (
	"crypto/subtle"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/MarkoPoloResearchLab/reviu/internal/ingest"
	"github.com/MarkoPoloResearchLab/reviu/internal/slackapp"
)

const (
	maxWebhookBodyBytes = 1 << 20

	logEventFigmaWebhookFailed = "figma_webhook_failed"
	logEventSlackEventFailed   = "slack_event_failed"
	logEventSlackSignature     = "slack_signature_rejected"
)

// WebhookHandlers accepts inbound deliveries from Figma and the Slack Events API.
type WebhookHandlers struct {
	ingest             *ingest.Service
	figmaPasscode      string
	slackSigningSecret string
	logger             *zap.Logger
}

// NewWebhookHandlers constructs WebhookHandlers. Empty secrets disable the corresponding check.
func NewWebhookHandlers(ingestService *ingest.Service, figmaPasscode string, slackSigningSecret string, logger *zap.Logger) *WebhookHandlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WebhookHandlers{
		ingest:             ingestService,
		figmaPasscode:      strings.TrimSpace(figmaPasscode),
		slackSigningSecret: strings.TrimSpace(slackSigningSecret),
		logger:             logger,
	}
}

type figmaWebhookResponse struct {
	Success   bool   `json:"success"`
	CommentID string `json:"comment_id"`
	DesignID  string `json:"design_id"`
}

// FigmaWebhook materializes a FILE_COMMENT event. Soft outcomes answer 200 so Figma does not retry them.
func (handlers *WebhookHandlers) FigmaWebhook(context *gin.Context) {
	var payload ingest.FigmaWebhookPayload
	if bindErr := context.ShouldBindJSON(&payload); bindErr != nil {
		context.JSON(http.StatusBadRequest, gin.H{jsonKeyError: errorValueInvalidJSON})
		return
	}
	if handlers.figmaPasscode != "" && subtle.ConstantTimeCompare([]byte(payload.Passcode), []byte(handlers.figmaPasscode)) != 1 {
		context.JSON(http.StatusUnauthorized, gin.H{jsonKeyError: errorValueInvalidPasscode})
		return
	}

	result, err := handlers.ingest.IngestFigmaEvent(context.Request.Context(), payload)
	if err != nil {
		if errors.Is(err, ingest.ErrMissingFigmaComment) || isCommentValidationError(err) {
			context.JSON(http.StatusBadRequest, gin.H{jsonKeyError: err.Error()})
			return
		}
		handlers.logger.Error(logEventFigmaWebhookFailed, zap.Error(err), zap.String("file_key", payload.FileKey))
		context.JSON(http.StatusInternalServerError, gin.H{jsonKeyError: err.Error()})
		return
	}

	switch result.Outcome {
	case ingest.FigmaOutcomeIgnoredEvent:
		context.JSON(http.StatusOK, gin.H{jsonKeyMessage: messageValueEventNotHandled})
	case ingest.FigmaOutcomeNotTracked:
		context.JSON(http.StatusOK, gin.H{jsonKeyMessage: messageValueFileNotTracked})
	case ingest.FigmaOutcomeFiltered:
		context.JSON(http.StatusOK, gin.H{jsonKeyMessage: messageValueFiltered})
	default:
		context.JSON(http.StatusOK, figmaWebhookResponse{Success: true, CommentID: result.Comment.ID, DesignID: result.Design.ID})
	}
}

// SlackEvents answers the url_verification handshake and routes message events.
func (handlers *WebhookHandlers) SlackEvents(context *gin.Context) {
	body, readErr := io.ReadAll(io.LimitReader(context.Request.Body, maxWebhookBodyBytes))
	if readErr != nil {
		context.JSON(http.StatusBadRequest, gin.H{jsonKeyError: errorValueInvalidJSON})
		return
	}
	if handlers.slackSigningSecret != "" {
		if err := slackapp.VerifySignature(context.Request.Header, body, handlers.slackSigningSecret); err != nil {
			handlers.logger.Warn(logEventSlackSignature, zap.Error(err))
			context.JSON(http.StatusUnauthorized, gin.H{jsonKeyError: errorValueInvalidSignature})
			return
		}
	}

	event, err := slackapp.ParseInboundEvent(body)
	if err != nil {
		context.JSON(http.StatusBadRequest, gin.H{jsonKeyError: errorValueInvalidJSON})
		return
	}
	switch event.Kind {
	case slackapp.InboundKindChallenge:
		context.JSON(http.StatusOK, gin.H{"challenge": event.Challenge})
		return
	case slackapp.InboundKindMessage:
		if _, err := handlers.ingest.IngestSlackMessage(context.Request.Context(), event.Message); err != nil {
			handlers.logger.Error(logEventSlackEventFailed, zap.Error(err), zap.String("team_id", event.Message.TeamID))
			context.JSON(http.StatusInternalServerError, gin.H{jsonKeyError: err.Error()})
			return
		}
	}
	context.JSON(http.StatusOK, gin.H{"ok": true})
}
