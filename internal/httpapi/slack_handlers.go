package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/MarkoPoloResearchLab/reviu/internal/oauthstate"
	"github.com/MarkoPoloResearchLab/reviu/internal/slackapp"
)

const (
	slackProviderName    = "Slack"
	logEventSlackRequest = "slack_request_failed"
)

// SlackHandlers serves channel selection and the Slack OAuth flow.
type SlackHandlers struct {
	slack  *slackapp.Service
	states *oauthstate.Store
	appURL string
	logger *zap.Logger
}

func NewSlackHandlers(slackService *slackapp.Service, states *oauthstate.Store, appURL string, logger *zap.Logger) *SlackHandlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SlackHandlers{slack: slackService, states: states, appURL: normalizeAppURL(appURL), logger: logger}
}

type setChannelsRequest struct {
	Channels []string `json:"channels"`
}

// ListChannels returns the channels the workspace bot can read and the current listening list.
func (handlers *SlackHandlers) ListChannels(context *gin.Context) {
	profile, ok := requireProfile(context)
	if !ok {
		return
	}
	listing, err := handlers.slack.Channels(context.Request.Context(), profile.ID)
	if err != nil {
		if errors.Is(err, slackapp.ErrNotConnected) {
			context.JSON(http.StatusBadRequest, gin.H{jsonKeyError: errorValueSlackNotConnected})
			return
		}
		handlers.logger.Warn(logEventSlackRequest, zap.Error(err))
		context.JSON(http.StatusBadRequest, gin.H{jsonKeyError: err.Error()})
		return
	}
	context.JSON(http.StatusOK, listing)
}

// SetChannels replaces the listening channels of the profile.
func (handlers *SlackHandlers) SetChannels(context *gin.Context) {
	profile, ok := requireProfile(context)
	if !ok {
		return
	}
	var payload setChannelsRequest
	if bindErr := context.ShouldBindJSON(&payload); bindErr != nil {
		context.JSON(http.StatusBadRequest, gin.H{jsonKeyError: errorValueInvalidJSON})
		return
	}
	if strings.TrimSpace(profile.SlackAccessToken) == "" {
		context.JSON(http.StatusBadRequest, gin.H{jsonKeyError: errorValueSlackNotConnected})
		return
	}
	channels, err := handlers.slack.SetListeningChannels(context.Request.Context(), profile.ID, payload.Channels)
	if err != nil {
		handlers.logger.Warn(logEventSlackRequest, zap.Error(err))
		context.JSON(http.StatusInternalServerError, gin.H{jsonKeyError: errorValueSaveFailed})
		return
	}
	context.JSON(http.StatusOK, gin.H{jsonKeySuccess: true, "listening_channels": channels.Channels})
}

// Authorize issues a state nonce and returns the Slack install url.
func (handlers *SlackHandlers) Authorize(context *gin.Context) {
	profile, ok := requireProfile(context)
	if !ok {
		return
	}
	state := handlers.states.Issue(profile.ID)
	authorizeURL, err := handlers.slack.AuthorizeURL(state)
	if err != nil {
		handlers.states.Consume(state)
		context.JSON(http.StatusServiceUnavailable, gin.H{jsonKeyError: errorValueOAuthNotConfigured})
		return
	}
	context.JSON(http.StatusOK, authorizeResponse{URL: authorizeURL, State: state})
}

// OAuthCallback completes the workspace install started by Authorize.
func (handlers *SlackHandlers) OAuthCallback(context *gin.Context) {
	code := strings.TrimSpace(context.Query("code"))
	state := strings.TrimSpace(context.Query("state"))
	if code == "" || state == "" {
		context.JSON(http.StatusBadRequest, gin.H{jsonKeyError: errorValueMissingCodeOrState})
		return
	}
	userID, found := handlers.states.Consume(state)
	if !found {
		context.JSON(http.StatusBadRequest, gin.H{jsonKeyError: errorValueInvalidState})
		return
	}
	if _, err := handlers.slack.CompleteOAuth(context.Request.Context(), userID, code); err != nil {
		if errors.Is(err, slackapp.ErrOAuthNotConfigured) {
			context.JSON(http.StatusServiceUnavailable, gin.H{jsonKeyError: errorValueOAuthNotConfigured})
			return
		}
		handlers.logger.Warn(logEventSlackRequest, zap.Error(err))
		context.JSON(http.StatusBadRequest, gin.H{jsonKeyError: "Failed to authenticate with Slack"})
		return
	}
	renderOAuthConnected(context, handlers.logger, oauthConnectedPage{Provider: slackProviderName, RedirectURL: handlers.appURL})
}
