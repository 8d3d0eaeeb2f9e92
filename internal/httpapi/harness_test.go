package httpapi_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/MarkoPoloResearchLab/reviu/internal/figma"
	"github.com/MarkoPoloResearchLab/reviu/internal/httpapi"
	"github.com/MarkoPoloResearchLab/reviu/internal/ingest"
	"github.com/MarkoPoloResearchLab/reviu/internal/model"
	"github.com/MarkoPoloResearchLab/reviu/internal/notifications"
	"github.com/MarkoPoloResearchLab/reviu/internal/oauthstate"
	"github.com/MarkoPoloResearchLab/reviu/internal/slackapp"
	"github.com/MarkoPoloResearchLab/reviu/internal/summary"
	"github.com/MarkoPoloResearchLab/reviu/internal/testutil"
)

const (
	authorizationHeaderName = "Authorization"
	bearerTokenPrefix       = "Bearer "

	testOwnerID          = "owner-1"
	testOwnerToken       = "owner-access-token"
	testStrangerID       = "stranger-1"
	testStrangerToken    = "stranger-access-token"
	testProjectID        = "project-1"
	testDesignID         = "design-1"
	testShareToken       = "share-token-1"
	testFigmaPasscode    = "figma-passcode"
	testFigmaFileKey     = "FileKey123"
	testFigmaAccessToken = "figma-oauth-access"
	testAppURL           = "https://app.reviu.test"
)

type apiHarness struct {
	router     *gin.Engine
	database   *gorm.DB
	dispatcher *notifications.Dispatcher
	states     *oauthstate.Store
	webhook    *recordedWebhook
}

// recordedWebhook captures the bodies posted to the owner's Slack incoming webhook.
type recordedWebhook struct {
	mutex  sync.Mutex
	server *httptest.Server
	bodies []string
}

func (webhook *recordedWebhook) received() []string {
	webhook.mutex.Lock()
	defer webhook.mutex.Unlock()
	return append([]string(nil), webhook.bodies...)
}

func newRecordedWebhook(testingT *testing.T) *recordedWebhook {
	testingT.Helper()
	webhook := &recordedWebhook{}
	webhook.server = httptest.NewServer(http.HandlerFunc(func(responseWriter http.ResponseWriter, request *http.Request) {
		body, _ := io.ReadAll(request.Body)
		webhook.mutex.Lock()
		webhook.bodies = append(webhook.bodies, string(body))
		webhook.mutex.Unlock()
		responseWriter.WriteHeader(http.StatusOK)
	}))
	testingT.Cleanup(webhook.server.Close)
	return webhook
}

func newFigmaAPI(testingT *testing.T) *httptest.Server {
	testingT.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/oauth/token", func(responseWriter http.ResponseWriter, request *http.Request) {
		require.NoError(testingT, request.ParseForm())
		if request.PostForm.Get("code") != "figma-code" {
			responseWriter.WriteHeader(http.StatusBadRequest)
			_, _ = responseWriter.Write([]byte(`{"error":"invalid_grant"}`))
			return
		}
		responseWriter.Header().Set("Content-Type", "application/json")
		_, _ = responseWriter.Write([]byte(`{"access_token":"` + testFigmaAccessToken + `","refresh_token":"figma-refresh","expires_in":3600,"token_type":"bearer"}`))
	})
	mux.HandleFunc("/v1/me", func(responseWriter http.ResponseWriter, request *http.Request) {
		_, _ = responseWriter.Write([]byte(`{"id":"figma-7","email":"designer@example.com"}`))
	})
	mux.HandleFunc("/v1/files/"+testFigmaFileKey, func(responseWriter http.ResponseWriter, request *http.Request) {
		_, _ = responseWriter.Write([]byte(`{"name":"Checkout Flow","thumbnailUrl":"https://cdn.figma.test/thumb.png"}`))
	})
	mux.HandleFunc("/v1/files/Missing404", func(responseWriter http.ResponseWriter, request *http.Request) {
		responseWriter.WriteHeader(http.StatusNotFound)
		_, _ = responseWriter.Write([]byte(`{"status":404,"err":"Not found"}`))
	})
	server := httptest.NewServer(mux)
	testingT.Cleanup(server.Close)
	return server
}

func buildAPIHarness(testingT *testing.T) apiHarness {
	testingT.Helper()

	gin.SetMode(gin.TestMode)
	logger := zap.NewNop()
	database := testutil.NewSQLiteTestDatabase(testingT).OpenMigrated(testingT)

	webhook := newRecordedWebhook(testingT)
	dispatcher := notifications.NewDispatcher(database, notifications.NewSlackWebhookNotifier(webhook.server.Client()), logger, 0)
	ingestService := ingest.NewService(database, ingest.NewGormDirectory(database), dispatcher, ingest.SlackRoutingComment, logger)

	figmaServer := newFigmaAPI(testingT)
	figmaOAuth, oauthErr := figma.NewOAuth(figma.OAuthConfig{
		ClientID:     "figma-client",
		ClientSecret: "figma-secret",
		RedirectURL:  "https://api.reviu.test/oauth/figma/callback",
		TokenURL:     figmaServer.URL + "/v1/oauth/token",
		HTTPClient:   figmaServer.Client(),
	})
	require.NoError(testingT, oauthErr)
	figmaService := figma.NewService(database, figma.NewClient(figmaServer.URL, figmaServer.Client()), figmaOAuth, logger)
	slackService := slackapp.NewService(database, slackapp.Config{}, logger)
	states := oauthstate.NewStore(0)

	authManager := httpapi.NewAuthManager(database, logger)
	commentHandlers := httpapi.NewCommentHandlers(database, ingestService, logger)
	summaryHandlers := httpapi.NewSummaryHandlers(database, summary.NewEngine(database, nil, logger), logger)
	webhookHandlers := httpapi.NewWebhookHandlers(ingestService, testFigmaPasscode, "", logger)
	figmaHandlers := httpapi.NewFigmaHandlers(figmaService, states, testAppURL, logger)
	slackHandlers := httpapi.NewSlackHandlers(slackService, states, testAppURL, logger)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(httpapi.CORS())
	router.Use(httpapi.RequestLogger(logger))

	router.GET("/healthz", httpapi.Healthz)
	router.POST("/api/share/:token/comments", commentHandlers.CreateSharedComment)
	router.GET("/api/share/:token/comments", commentHandlers.ListSharedComments)
	router.POST("/api/webhooks/figma", webhookHandlers.FigmaWebhook)
	router.POST("/api/webhooks/slack", webhookHandlers.SlackEvents)
	router.GET("/oauth/figma/callback", figmaHandlers.OAuthCallback)
	router.GET("/oauth/slack/callback", slackHandlers.OAuthCallback)

	authorized := router.Group("/api")
	authorized.Use(authManager.RequireAuthenticatedJSON())
	authorized.POST("/designs/:id/comments", commentHandlers.CreateDesignComment)
	authorized.GET("/designs/:id/comments", commentHandlers.ListDesignComments)
	authorized.GET("/designs/:id/board-items", summaryHandlers.ListDesignBoardItems)
	authorized.PUT("/comments/:id", commentHandlers.UpdateCommentStatus)
	authorized.POST("/comments/:id/view", commentHandlers.MarkCommentViewed)
	authorized.GET("/inbox", commentHandlers.Inbox)
	authorized.POST("/summaries", summaryHandlers.GenerateSummary)
	authorized.POST("/summaries/board-items", summaryHandlers.PromoteInsight)
	authorized.GET("/projects/:projectId/designs/:designId/summary", summaryHandlers.GetSummary)
	authorized.GET("/figma/files", figmaHandlers.ListFiles)
	authorized.POST("/figma/files", figmaHandlers.TrackFile)
	authorized.DELETE("/figma/files/:id", figmaHandlers.UntrackFile)
	authorized.GET("/figma/file-info", figmaHandlers.FileInfo)
	authorized.POST("/figma/import", figmaHandlers.ImportDesign)
	authorized.GET("/integrations/figma/authorize", figmaHandlers.Authorize)
	authorized.GET("/integrations/slack/authorize", slackHandlers.Authorize)
	authorized.GET("/slack/channels", slackHandlers.ListChannels)
	authorized.POST("/slack/channels", slackHandlers.SetChannels)

	seedOwnerFixtures(testingT, database, webhook.server.URL)

	return apiHarness{
		router:     router,
		database:   database,
		dispatcher: dispatcher,
		states:     states,
		webhook:    webhook,
	}
}

func seedOwnerFixtures(testingT *testing.T, database *gorm.DB, webhookURL string) {
	testingT.Helper()
	shareToken := testShareToken
	require.NoError(testingT, database.Create(&model.Profile{
		ID:              testOwnerID,
		Email:           "owner@example.com",
		FullName:        "Olivia Owner",
		AccessToken:     testOwnerToken,
		SlackWebhookURL: webhookURL,
		SlackChannel:    "#design",
	}).Error)
	require.NoError(testingT, database.Create(&model.Profile{
		ID:          testStrangerID,
		Email:       "stranger@example.com",
		AccessToken: testStrangerToken,
	}).Error)
	require.NoError(testingT, database.Create(&model.Project{ID: testProjectID, UserID: testOwnerID, Name: "Checkout"}).Error)
	require.NoError(testingT, database.Create(&model.Design{
		ID:             testDesignID,
		ProjectID:      testProjectID,
		Name:           "Landing",
		SourceType:     model.DesignSourceManual,
		ShareableToken: &shareToken,
	}).Error)
}

func ownerHeaders() map[string]string {
	return map[string]string{authorizationHeaderName: bearerTokenPrefix + testOwnerToken}
}

func strangerHeaders() map[string]string {
	return map[string]string{authorizationHeaderName: bearerTokenPrefix + testStrangerToken}
}

func performJSONRequest(testingT *testing.T, router *gin.Engine, method string, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	testingT.Helper()
	var requestBody io.Reader
	if body != nil {
		encoded, encodeErr := json.Marshal(body)
		require.NoError(testingT, encodeErr)
		requestBody = bytes.NewReader(encoded)
	}
	request := httptest.NewRequest(method, path, requestBody)
	for name, value := range headers {
		request.Header.Set(name, value)
	}
	if body != nil {
		request.Header.Set("Content-Type", "application/json")
	}
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, request)
	return recorder
}

func decodeJSONResponse(testingT *testing.T, recorder *httptest.ResponseRecorder) map[string]any {
	testingT.Helper()
	var decoded map[string]any
	require.NoError(testingT, json.Unmarshal(recorder.Body.Bytes(), &decoded))
	return decoded
}

func insertComment(testingT *testing.T, database *gorm.DB, input model.CommentInput, createdAt time.Time) model.Comment {
	testingT.Helper()
	comment, err := model.NewComment(input)
	require.NoError(testingT, err)
	comment.CreatedAt = createdAt
	require.NoError(testingT, database.Create(&comment).Error)
	return comment
}
