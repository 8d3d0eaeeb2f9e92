package httpapi

import _ "embed"

//go:embed templates/oauth_connected.tmpl
var oauthConnectedTemplateHTML string
