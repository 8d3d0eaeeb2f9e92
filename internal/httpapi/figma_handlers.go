package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/MarkoPoloResearchLab/reviu/internal/figma"
	"github.com/MarkoPoloResearchLab/reviu/internal/oauthstate"
)

const (
	figmaProviderName    = "Figma"
	figmaSettingsPath    = "/settings"
	logEventFigmaRequest = "figma_request_failed"
)

// FigmaHandlers serves tracked files, design import and the Figma OAuth flow.
type FigmaHandlers struct {
	figma  *figma.Service
	states *oauthstate.Store
	appURL string
	logger *zap.Logger
}

func NewFigmaHandlers(figmaService *figma.Service, states *oauthstate.Store, appURL string, logger *zap.Logger) *FigmaHandlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FigmaHandlers{figma: figmaService, states: states, appURL: normalizeAppURL(appURL), logger: logger}
}

type trackedFileListResponse struct {
	Files []trackedFileResponse `json:"files"`
}

type trackFileResponse struct {
	Success bool                `json:"success"`
	File    trackedFileResponse `json:"file"`
}

type importDesignResponse struct {
	Success bool           `json:"success"`
	Design  designResponse `json:"design"`
}

type authorizeResponse struct {
	URL   string `json:"url"`
	State string `json:"state"`
}

// ListFiles returns the tracked files of the profile.
func (handlers *FigmaHandlers) ListFiles(context *gin.Context) {
	profile, ok := requireProfile(context)
	if !ok {
		return
	}
	files, err := handlers.figma.List(context.Request.Context(), profile.ID)
	if err != nil {
		handlers.logger.Warn(logEventFigmaRequest, zap.Error(err))
		context.JSON(http.StatusInternalServerError, gin.H{jsonKeyError: errorValueQueryFailed})
		return
	}
	responses := make([]trackedFileResponse, 0, len(files))
	for _, file := range files {
		responses = append(responses, newTrackedFileResponse(file))
	}
	context.JSON(http.StatusOK, trackedFileListResponse{Files: responses})
}

// FileInfo resolves a Figma link to its file key and name through the profile's connection.
func (handlers *FigmaHandlers) FileInfo(context *gin.Context) {
	profile, ok := requireProfile(context)
	if !ok {
		return
	}
	rawURL := strings.TrimSpace(context.Query("url"))
	if rawURL == "" {
		context.JSON(http.StatusBadRequest, gin.H{jsonKeyError: errorValueMissingFileURL})
		return
	}
	info, err := handlers.figma.FileInfo(context.Request.Context(), profile.ID, rawURL)
	if err != nil {
		handlers.writeFigmaError(context, err)
		return
	}
	context.JSON(http.StatusOK, info)
}

// TrackFile registers a file for webhook ingestion.
func (handlers *FigmaHandlers) TrackFile(context *gin.Context) {
	profile, ok := requireProfile(context)
	if !ok {
		return
	}
	var payload figma.TrackInput
	if bindErr := context.ShouldBindJSON(&payload); bindErr != nil {
		context.JSON(http.StatusBadRequest, gin.H{jsonKeyError: errorValueInvalidJSON})
		return
	}
	trackedFile, err := handlers.figma.Track(context.Request.Context(), profile.ID, payload)
	if err != nil {
		handlers.writeFigmaError(context, err)
		return
	}
	context.JSON(http.StatusOK, trackFileResponse{Success: true, File: newTrackedFileResponse(trackedFile)})
}

// UntrackFile stops ingestion for a tracked file.
func (handlers *FigmaHandlers) UntrackFile(context *gin.Context) {
	profile, ok := requireProfile(context)
	if !ok {
		return
	}
	if err := handlers.figma.Untrack(context.Request.Context(), profile.ID, context.Param("id")); err != nil {
		handlers.writeFigmaError(context, err)
		return
	}
	context.JSON(http.StatusOK, gin.H{jsonKeySuccess: true})
}

// ImportDesign creates a design from a Figma link using the profile's personal token.
func (handlers *FigmaHandlers) ImportDesign(context *gin.Context) {
	profile, ok := requireProfile(context)
	if !ok {
		return
	}
	var payload figma.ImportInput
	if bindErr := context.ShouldBindJSON(&payload); bindErr != nil {
		context.JSON(http.StatusBadRequest, gin.H{jsonKeyError: errorValueInvalidJSON})
		return
	}
	design, err := handlers.figma.Import(context.Request.Context(), *profile, payload)
	if err != nil {
		handlers.writeFigmaError(context, err)
		return
	}
	context.JSON(http.StatusOK, importDesignResponse{Success: true, Design: newDesignResponse(design)})
}

// Authorize issues a state nonce and returns the Figma consent url.
func (handlers *FigmaHandlers) Authorize(context *gin.Context) {
	profile, ok := requireProfile(context)
	if !ok {
		return
	}
	if !handlers.figma.OAuthEnabled() {
		context.JSON(http.StatusServiceUnavailable, gin.H{jsonKeyError: errorValueOAuthNotConfigured})
		return
	}
	state := handlers.states.Issue(profile.ID)
	authorizeURL, err := handlers.figma.AuthorizeURL(state)
	if err != nil {
		handlers.writeFigmaError(context, err)
		return
	}
	context.JSON(http.StatusOK, authorizeResponse{URL: authorizeURL, State: state})
}

// OAuthCallback completes the Figma connection started by Authorize.
func (handlers *FigmaHandlers) OAuthCallback(context *gin.Context) {
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
	if _, err := handlers.figma.CompleteOAuth(context.Request.Context(), userID, code); err != nil {
		if errors.Is(err, figma.ErrOAuthNotConfigured) {
			context.JSON(http.StatusServiceUnavailable, gin.H{jsonKeyError: errorValueOAuthNotConfigured})
			return
		}
		handlers.logger.Warn(logEventFigmaRequest, zap.Error(err))
		context.JSON(http.StatusBadRequest, gin.H{jsonKeyError: "Failed to authenticate with Figma"})
		return
	}
	renderOAuthConnected(context, handlers.logger, oauthConnectedPage{Provider: figmaProviderName, RedirectURL: handlers.appURL + figmaSettingsPath})
}

func (handlers *FigmaHandlers) writeFigmaError(context *gin.Context, err error) {
	var apiError *figma.APIError
	switch {
	case errors.Is(err, figma.ErrMissingRequiredFields):
		context.JSON(http.StatusBadRequest, gin.H{jsonKeyError: errorValueMissingRequiredFields})
	case errors.Is(err, figma.ErrInvalidFileURL):
		context.JSON(http.StatusBadRequest, gin.H{jsonKeyError: errorValueInvalidFigmaURL})
	case errors.Is(err, figma.ErrNotConnected):
		context.JSON(http.StatusBadRequest, gin.H{jsonKeyError: errorValueFigmaNotConnected})
	case errors.Is(err, figma.ErrTokenNotConfigured):
		context.JSON(http.StatusBadRequest, gin.H{jsonKeyError: errorValueFigmaTokenMissing})
	case errors.Is(err, figma.ErrProjectNotFound):
		context.JSON(http.StatusNotFound, gin.H{jsonKeyError: errorValueUnknownProject})
	case errors.Is(err, figma.ErrTrackedFileNotFound):
		context.JSON(http.StatusNotFound, gin.H{jsonKeyError: errorValueTrackedFileNotFound})
	case errors.Is(err, figma.ErrOAuthNotConfigured):
		context.JSON(http.StatusServiceUnavailable, gin.H{jsonKeyError: errorValueOAuthNotConfigured})
	case errors.Is(err, figma.ErrFetchFailed) && errors.As(err, &apiError):
		context.JSON(apiError.StatusCode, gin.H{jsonKeyError: errorValueFigmaFetchFailed})
	case errors.Is(err, figma.ErrFetchFailed):
		context.JSON(http.StatusBadGateway, gin.H{jsonKeyError: errorValueFigmaFetchFailed})
	default:
		handlers.logger.Warn(logEventFigmaRequest, zap.Error(err))
		context.JSON(http.StatusInternalServerError, gin.H{jsonKeyError: err.Error()})
	}
}
