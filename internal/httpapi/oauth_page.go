package httpapi

import (
	"bytes"
	"html/template"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	oauthConnectedTemplateName = "oauth_connected"
	contentTypeHTML            = "text/html; charset=utf-8"
	defaultAppURL              = "http://localhost:5173"

	logEventRenderOAuthPage = "render_oauth_page"
)

var oauthConnectedTemplate = template.Must(template.New(oauthConnectedTemplateName).Parse(oauthConnectedTemplateHTML))

type oauthConnectedPage struct {
	Provider    string
	RedirectURL string
}

// renderOAuthConnected writes the page shown in the popup after a provider connection succeeds.
func renderOAuthConnected(context *gin.Context, logger *zap.Logger, page oauthConnectedPage) {
	var rendered bytes.Buffer
	if err := oauthConnectedTemplate.Execute(&rendered, page); err != nil {
		logger.Error(logEventRenderOAuthPage, zap.Error(err))
		context.JSON(http.StatusInternalServerError, gin.H{jsonKeyError: errorValueInternal})
		return
	}
	context.Data(http.StatusOK, contentTypeHTML, rendered.Bytes())
}

func normalizeAppURL(appURL string) string {
	trimmed := strings.TrimRight(strings.TrimSpace(appURL), "/")
	if trimmed == "" {
		return defaultAppURL
	}
	return trimmed
}
