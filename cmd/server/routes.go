package main

import (
	"errors"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/MarkoPoloResearchLab/reviu/internal/figma"
	"github.com/MarkoPoloResearchLab/reviu/internal/httpapi"
	"github.com/MarkoPoloResearchLab/reviu/internal/ingest"
	"github.com/MarkoPoloResearchLab/reviu/internal/notifications"
	"github.com/MarkoPoloResearchLab/reviu/internal/oauthstate"
	"github.com/MarkoPoloResearchLab/reviu/internal/slackapp"
	"github.com/MarkoPoloResearchLab/reviu/internal/summary"
)

const (
	routeHealth              = "/healthz"
	apiRoutePrefix           = "/api"
	figmaCallbackPath        = "/oauth/figma/callback"
	slackCallbackPath        = "/oauth/slack/callback"
	logEventFigmaOAuthOff    = "figma_oauth_disabled"
	logEventSummaryFallback  = "summary_ai_disabled"
	logEventSlackRoutingMode = "slack_routing"
)

// serviceGraph holds the handlers and the background work the server must drain on shutdown.
type serviceGraph struct {
	dispatcher *notifications.Dispatcher
	auth       *httpapi.AuthManager
	comments   *httpapi.CommentHandlers
	summaries  *httpapi.SummaryHandlers
	webhooks   *httpapi.WebhookHandlers
	figma      *httpapi.FigmaHandlers
	slack      *httpapi.SlackHandlers
}

func newServiceGraph(config ServerConfig, database *gorm.DB, logger *zap.Logger) (serviceGraph, error) {
	routing, routingErr := ingest.ParseSlackRouting(config.SlackRouting)
	if routingErr != nil {
		return serviceGraph{}, routingErr
	}
	logger.Info(logEventSlackRoutingMode, zap.String("routing", string(routing)))

	dispatcher := notifications.NewDispatcher(database, notifications.NewSlackWebhookNotifier(nil), logger, config.NotificationTimeout)
	ingestService := ingest.NewService(database, ingest.NewGormDirectory(database), dispatcher, routing, logger)

	completer := summary.NewCompleter(summary.OpenAIConfig{
		APIKey:  config.OpenAIAPIKey,
		BaseURL: config.OpenAIBaseURL,
		Model:   config.OpenAIModel,
	})
	if completer == nil {
		logger.Info(logEventSummaryFallback)
	}
	engine := summary.NewEngine(database, completer, logger)

	figmaOAuth, figmaOAuthErr := figma.NewOAuth(figma.OAuthConfig{
		ClientID:     config.FigmaClientID,
		ClientSecret: config.FigmaClientSecret,
		RedirectURL:  config.PublicBaseURL + figmaCallbackPath,
	})
	if figmaOAuthErr != nil {
		if !errors.Is(figmaOAuthErr, figma.ErrOAuthNotConfigured) {
			return serviceGraph{}, figmaOAuthErr
		}
		logger.Info(logEventFigmaOAuthOff)
	}
	figmaService := figma.NewService(database, figma.NewClient(figma.DefaultAPIBaseURL, nil), figmaOAuth, logger)
	slackService := slackapp.NewService(database, slackapp.Config{
		ClientID:     config.SlackClientID,
		ClientSecret: config.SlackClientSecret,
		RedirectURL:  config.PublicBaseURL + slackCallbackPath,
	}, logger)
	states := oauthstate.NewStore(oauthstate.DefaultTTL)

	return serviceGraph{
		dispatcher: dispatcher,
		auth:       httpapi.NewAuthManager(database, logger),
		comments:   httpapi.NewCommentHandlers(database, ingestService, logger),
		summaries:  httpapi.NewSummaryHandlers(database, engine, logger),
		webhooks:   httpapi.NewWebhookHandlers(ingestService, config.FigmaWebhookPasscode, config.SlackSigningSecret, logger),
		figma:      httpapi.NewFigmaHandlers(figmaService, states, config.AppURL, logger),
		slack:      httpapi.NewSlackHandlers(slackService, states, config.AppURL, logger),
	}, nil
}

func newRouter(services serviceGraph, logger *zap.Logger) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(httpapi.RequestLogger(logger))
	router.Use(httpapi.CORS())

	registerPublicRoutes(router, services)
	registerAuthenticatedRoutes(router.Group(apiRoutePrefix), services)
	return router
}

func registerPublicRoutes(router *gin.Engine, services serviceGraph) {
	router.GET(routeHealth, httpapi.Healthz)

	router.POST("/api/share/:token/comments", services.comments.CreateSharedComment)
	router.GET("/api/share/:token/comments", services.comments.ListSharedComments)

	router.POST("/api/webhooks/figma", services.webhooks.FigmaWebhook)
	router.POST("/api/webhooks/slack", services.webhooks.SlackEvents)

	router.GET(figmaCallbackPath, services.figma.OAuthCallback)
	router.GET(slackCallbackPath, services.slack.OAuthCallback)
}

func registerAuthenticatedRoutes(apiGroup *gin.RouterGroup, services serviceGraph) {
	apiGroup.Use(services.auth.RequireAuthenticatedJSON())

	apiGroup.POST("/designs/:id/comments", services.comments.CreateDesignComment)
	apiGroup.GET("/designs/:id/comments", services.comments.ListDesignComments)
	apiGroup.GET("/designs/:id/board-items", services.summaries.ListDesignBoardItems)
	apiGroup.PUT("/comments/:id", services.comments.UpdateCommentStatus)
	apiGroup.POST("/comments/:id/view", services.comments.MarkCommentViewed)
	apiGroup.GET("/inbox", services.comments.Inbox)

	apiGroup.POST("/summaries", services.summaries.GenerateSummary)
	apiGroup.POST("/summaries/board-items", services.summaries.PromoteInsight)
	apiGroup.GET("/projects/:projectId/designs/:designId/summary", services.summaries.GetSummary)

	apiGroup.GET("/figma/files", services.figma.ListFiles)
	apiGroup.POST("/figma/files", services.figma.TrackFile)
	apiGroup.DELETE("/figma/files/:id", services.figma.UntrackFile)
	apiGroup.GET("/figma/file-info", services.figma.FileInfo)
	apiGroup.POST("/figma/import", services.figma.ImportDesign)
	apiGroup.GET("/integrations/figma/authorize", services.figma.Authorize)

	apiGroup.GET("/slack/channels", services.slack.ListChannels)
	apiGroup.POST("/slack/channels", services.slack.SetChannels)
	apiGroup.GET("/integrations/slack/authorize", services.slack.Authorize)
}
