package httpapi_test

import (
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/MarkoPoloResearchLab/reviu/internal/model"
)

func TestAuthenticatedRoutesRequireBearerToken(t *testing.T) {
	apiHarness := buildAPIHarness(t)
	testCases := []struct {
		name           string
		headers        map[string]string
		expectedStatus int
		expectedError  string
	}{
		{name: "missing header", headers: nil, expectedStatus: http.StatusUnauthorized, expectedError: "Missing authorization"},
		{name: "unknown token", headers: map[string]string{authorizationHeaderName: bearerTokenPrefix + "nope"}, expectedStatus: http.StatusUnauthorized, expectedError: "Unauthorized"},
		{name: "owner token", headers: ownerHeaders(), expectedStatus: http.StatusOK},
	}

	for _, testCase := range testCases {
		testCase := testCase
		t.Run(testCase.name, func(testingT *testing.T) {
			recorder := performJSONRequest(testingT, apiHarness.router, http.MethodGet, "/api/inbox", nil, testCase.headers)
			require.Equal(testingT, testCase.expectedStatus, recorder.Code)
			if testCase.expectedError != "" {
				require.Equal(testingT, testCase.expectedError, decodeJSONResponse(testingT, recorder)["error"])
			}
		})
	}
}

func TestCreateDesignCommentPersistsAndNotifies(t *testing.T) {
	apiHarness := buildAPIHarness(t)

	recorder := performJSONRequest(t, apiHarness.router, http.MethodPost, "/api/designs/"+testDesignID+"/comments", map[string]any{
		"content":    "  The hero image is too dark  ",
		"rating":     2,
		"x_position": 12.5,
		"y_position": 40,
		"page_url":   "/pricing",
	}, ownerHeaders())
	require.Equal(t, http.StatusCreated, recorder.Code)

	body := decodeJSONResponse(t, recorder)
	require.Equal(t, "The hero image is too dark", body["content"])
	require.Equal(t, "open", body["status"])
	require.Equal(t, "web", body["origin"])
	require.Equal(t, "client", body["source_tag"])
	require.Equal(t, "Olivia Owner", body["author_name"])
	require.Equal(t, testOwnerID, body["user_id"])

	apiHarness.dispatcher.Wait()
	delivered := apiHarness.webhook.received()
	require.Len(t, delivered, 1)
	require.Contains(t, delivered[0], "The hero image is too dark")
	require.Contains(t, delivered[0], "#design")
}

func TestCreateDesignCommentValidation(t *testing.T) {
	apiHarness := buildAPIHarness(t)
	testCases := []struct {
		name           string
		path           string
		body           map[string]any
		headers        map[string]string
		expectedStatus int
	}{
		{name: "rating out of range", path: "/api/designs/" + testDesignID + "/comments", body: map[string]any{"content": "ok", "rating": 6}, headers: ownerHeaders(), expectedStatus: http.StatusBadRequest},
		{name: "unpaired position", path: "/api/designs/" + testDesignID + "/comments", body: map[string]any{"content": "ok", "x_position": 3}, headers: ownerHeaders(), expectedStatus: http.StatusBadRequest},
		{name: "blank content", path: "/api/designs/" + testDesignID + "/comments", body: map[string]any{"content": "   "}, headers: ownerHeaders(), expectedStatus: http.StatusBadRequest},
		{name: "foreign design", path: "/api/designs/" + testDesignID + "/comments", body: map[string]any{"content": "ok"}, headers: strangerHeaders(), expectedStatus: http.StatusNotFound},
		{name: "unknown design", path: "/api/designs/missing/comments", body: map[string]any{"content": "ok"}, headers: ownerHeaders(), expectedStatus: http.StatusNotFound},
	}

	for _, testCase := range testCases {
		testCase := testCase
		t.Run(testCase.name, func(testingT *testing.T) {
			recorder := performJSONRequest(testingT, apiHarness.router, http.MethodPost, testCase.path, testCase.body, testCase.headers)
			require.Equal(testingT, testCase.expectedStatus, recorder.Code)
		})
	}

	var count int64
	require.NoError(t, apiHarness.database.Model(&model.Comment{}).Count(&count).Error)
	require.Zero(t, count)
}

func TestSharedCommentUpsertsStakeholderByEmail(t *testing.T) {
	apiHarness := buildAPIHarness(t)
	path := "/api/share/" + testShareToken + "/comments"

	first := performJSONRequest(t, apiHarness.router, http.MethodPost, path, map[string]any{
		"content":     "Love the new layout",
		"stakeholder": map[string]any{"name": "Grace", "surname": "Hopper", "email": "GRACE@example.com"},
	}, nil)
	require.Equal(t, http.StatusCreated, first.Code)
	firstBody := decodeJSONResponse(t, first)
	require.Equal(t, "Grace Hopper", firstBody["author_name"])
	require.Equal(t, "grace@example.com", firstBody["author_email"])

	second := performJSONRequest(t, apiHarness.router, http.MethodPost, path, map[string]any{
		"content":     "One more note",
		"stakeholder": map[string]any{"name": "Grace", "surname": "Murray", "email": "grace@example.com"},
	}, nil)
	require.Equal(t, http.StatusCreated, second.Code)
	require.Equal(t, firstBody["stakeholder_id"], decodeJSONResponse(t, second)["stakeholder_id"])

	var stakeholders []model.Stakeholder
	require.NoError(t, apiHarness.database.Find(&stakeholders).Error)
	require.Len(t, stakeholders, 1)
	require.Equal(t, "Murray", stakeholders[0].Surname)

	anonymous := performJSONRequest(t, apiHarness.router, http.MethodPost, path, map[string]any{"content": "Drive-by"}, nil)
	require.Equal(t, http.StatusCreated, anonymous.Code)
	require.Equal(t, "Anonymous", decodeJSONResponse(t, anonymous)["author_name"])

	invalid := performJSONRequest(t, apiHarness.router, http.MethodPost, path, map[string]any{
		"content":     "Bad email",
		"stakeholder": map[string]any{"name": "Grace", "email": "not-an-email"},
	}, nil)
	require.Equal(t, http.StatusBadRequest, invalid.Code)

	unknown := performJSONRequest(t, apiHarness.router, http.MethodPost, "/api/share/nope/comments", map[string]any{"content": "x"}, nil)
	require.Equal(t, http.StatusNotFound, unknown.Code)
}

func TestSharedCommentSourceTagFollowsContactIdentifier(t *testing.T) {
	testCases := []struct {
		name           string
		email          string
		expectedOrigin string
		expectedTag    string
	}{
		{name: "figma address", email: "ana@figma.com", expectedOrigin: "figma", expectedTag: "designer"},
		{name: "slack address", email: "x@slack.com", expectedOrigin: "slack", expectedTag: "Slack User"},
		{name: "client address", email: "dana@example.com", expectedOrigin: "web", expectedTag: "client"},
	}

	for _, testCase := range testCases {
		testCase := testCase
		t.Run(testCase.name, func(testingT *testing.T) {
			apiHarness := buildAPIHarness(testingT)
			recorder := performJSONRequest(testingT, apiHarness.router, http.MethodPost, "/api/share/"+testShareToken+"/comments", map[string]any{
				"content":     "Spacing on the cart looks off",
				"stakeholder": map[string]any{"name": "Ana", "email": testCase.email},
			}, nil)
			require.Equal(testingT, http.StatusCreated, recorder.Code)

			body := decodeJSONResponse(testingT, recorder)
			require.Equal(testingT, testCase.expectedOrigin, body["origin"])
			require.Equal(testingT, testCase.expectedTag, body["source_tag"])

			apiHarness.dispatcher.Wait()
			require.Len(testingT, apiHarness.webhook.received(), 1)
		})
	}
}

func TestListSharedCommentsFiltersByPage(t *testing.T) {
	apiHarness := buildAPIHarness(t)
	base := time.Date(2026, time.March, 1, 9, 0, 0, 0, time.UTC)
	insertComment(t, apiHarness.database, model.CommentInput{DesignID: testDesignID, Content: "pricing note", PageURL: "/pricing"}, base)
	insertComment(t, apiHarness.database, model.CommentInput{DesignID: testDesignID, Content: "general note"}, base.Add(time.Minute))
	insertComment(t, apiHarness.database, model.CommentInput{DesignID: testDesignID, Content: "about note", PageURL: "/about"}, base.Add(2*time.Minute))

	recorder := performJSONRequest(t, apiHarness.router, http.MethodGet, "/api/share/"+testShareToken+"/comments?page_url=/pricing", nil, nil)
	require.Equal(t, http.StatusOK, recorder.Code)
	require.Equal(t, []string{"pricing note", "general note"}, commentContents(t, decodeJSONResponse(t, recorder)))

	unfiltered := performJSONRequest(t, apiHarness.router, http.MethodGet, "/api/share/"+testShareToken+"/comments", nil, nil)
	require.Equal(t, []string{"pricing note", "general note", "about note"}, commentContents(t, decodeJSONResponse(t, unfiltered)))
}

func TestListDesignCommentsNewestFirstWithSourceTags(t *testing.T) {
	apiHarness := buildAPIHarness(t)
	base := time.Date(2026, time.March, 1, 9, 0, 0, 0, time.UTC)
	insertComment(t, apiHarness.database, model.CommentInput{DesignID: testDesignID, Content: "from slack", AuthorEmail: "slack-U1@slack.com"}, base)
	insertComment(t, apiHarness.database, model.CommentInput{DesignID: testDesignID, Content: "from figma", AuthorEmail: "figma:42"}, base.Add(time.Minute))

	recorder := performJSONRequest(t, apiHarness.router, http.MethodGet, "/api/designs/"+testDesignID+"/comments", nil, ownerHeaders())
	require.Equal(t, http.StatusOK, recorder.Code)
	body := decodeJSONResponse(t, recorder)
	require.Equal(t, []string{"from figma", "from slack"}, commentContents(t, body))

	comments := body["comments"].([]any)
	require.Equal(t, "designer", comments[0].(map[string]any)["source_tag"])
	require.Equal(t, "Slack User", comments[1].(map[string]any)["source_tag"])

	foreign := performJSONRequest(t, apiHarness.router, http.MethodGet, "/api/designs/"+testDesignID+"/comments", nil, strangerHeaders())
	require.Equal(t, http.StatusNotFound, foreign.Code)
}

func TestUpdateCommentStatus(t *testing.T) {
	apiHarness := buildAPIHarness(t)
	comment := insertComment(t, apiHarness.database, model.CommentInput{DesignID: testDesignID, Content: "fix the footer"}, time.Now().UTC())
	path := "/api/comments/" + comment.ID

	resolved := performJSONRequest(t, apiHarness.router, http.MethodPut, path, map[string]any{"status": "resolved"}, ownerHeaders())
	require.Equal(t, http.StatusOK, resolved.Code)
	require.Equal(t, "resolved", decodeJSONResponse(t, resolved)["status"])

	invalid := performJSONRequest(t, apiHarness.router, http.MethodPut, path, map[string]any{"status": "pending"}, ownerHeaders())
	require.Equal(t, http.StatusBadRequest, invalid.Code)

	foreign := performJSONRequest(t, apiHarness.router, http.MethodPut, path, map[string]any{"status": "archived"}, strangerHeaders())
	require.Equal(t, http.StatusNotFound, foreign.Code)

	var stored model.Comment
	require.NoError(t, apiHarness.database.First(&stored, "id = ?", comment.ID).Error)
	require.Equal(t, model.CommentStatusResolved, stored.Status)
}

func TestMarkViewedAndInboxUnseenCount(t *testing.T) {
	apiHarness := buildAPIHarness(t)
	base := time.Date(2026, time.March, 1, 9, 0, 0, 0, time.UTC)
	first := insertComment(t, apiHarness.database, model.CommentInput{DesignID: testDesignID, Content: "first"}, base)
	insertComment(t, apiHarness.database, model.CommentInput{DesignID: testDesignID, Content: "second"}, base.Add(time.Minute))

	inbox := performJSONRequest(t, apiHarness.router, http.MethodGet, "/api/inbox", nil, ownerHeaders())
	require.Equal(t, http.StatusOK, inbox.Code)
	inboxBody := decodeJSONResponse(t, inbox)
	require.EqualValues(t, 2, inboxBody["unseen_count"])
	require.Equal(t, []string{"second", "first"}, commentContents(t, inboxBody))

	viewed := performJSONRequest(t, apiHarness.router, http.MethodPost, "/api/comments/"+first.ID+"/view", nil, ownerHeaders())
	require.Equal(t, http.StatusOK, viewed.Code)
	require.NotNil(t, decodeJSONResponse(t, viewed)["viewed_at"])
	var afterFirstView model.Comment
	require.NoError(t, apiHarness.database.First(&afterFirstView, "id = ?", first.ID).Error)
	require.NotNil(t, afterFirstView.ViewedAt)

	again := performJSONRequest(t, apiHarness.router, http.MethodPost, "/api/comments/"+first.ID+"/view", nil, ownerHeaders())
	require.Equal(t, http.StatusOK, again.Code)
	var afterSecondView model.Comment
	require.NoError(t, apiHarness.database.First(&afterSecondView, "id = ?", first.ID).Error)
	require.True(t, afterFirstView.ViewedAt.Equal(*afterSecondView.ViewedAt))

	inbox = performJSONRequest(t, apiHarness.router, http.MethodGet, "/api/inbox", nil, ownerHeaders())
	require.EqualValues(t, 1, decodeJSONResponse(t, inbox)["unseen_count"])

	strangerInbox := performJSONRequest(t, apiHarness.router, http.MethodGet, "/api/inbox", nil, strangerHeaders())
	strangerBody := decodeJSONResponse(t, strangerInbox)
	require.EqualValues(t, 0, strangerBody["unseen_count"])
	require.Empty(t, strangerBody["comments"])
}

func TestCORSPreflight(t *testing.T) {
	apiHarness := buildAPIHarness(t)
	recorder := performJSONRequest(t, apiHarness.router, http.MethodOptions, "/api/comments/any", nil, map[string]string{
		"Origin":                         "https://client.example.com",
		"Access-Control-Request-Method":  http.MethodPut,
		"Access-Control-Request-Headers": "authorization,content-type",
	})
	require.Less(t, recorder.Code, http.StatusBadRequest)
	require.Equal(t, "*", recorder.Header().Get("Access-Control-Allow-Origin"))
	allowedMethods := strings.ToUpper(recorder.Header().Get("Access-Control-Allow-Methods"))
	require.Contains(t, allowedMethods, http.MethodPut)
	require.NotContains(t, allowedMethods, http.MethodPatch)
}

func TestCommentStatusRouteIsPut(t *testing.T) {
	apiHarness := buildAPIHarness(t)
	comment := insertComment(t, apiHarness.database, model.CommentInput{DesignID: testDesignID, Content: "Fix the header"}, time.Now().UTC())

	patched := performJSONRequest(t, apiHarness.router, http.MethodPatch, "/api/comments/"+comment.ID, map[string]any{"status": "resolved"}, ownerHeaders())
	require.Equal(t, http.StatusNotFound, patched.Code)

	var stored model.Comment
	require.NoError(t, apiHarness.database.First(&stored, "id = ?", comment.ID).Error)
	require.Equal(t, model.CommentStatusOpen, stored.Status)
}

func commentContents(testingT *testing.T, body map[string]any) []string {
	testingT.Helper()
	rawComments, ok := body["comments"].([]any)
	require.True(testingT, ok)
	contents := make([]string, 0, len(rawComments))
	for _, rawComment := range rawComments {
		contents = append(contents, rawComment.(map[string]any)["content"].(string))
	}
	return contents
}
