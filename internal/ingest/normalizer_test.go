package ingest

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/MarkoPoloResearchLab/reviu/internal/model"
)

const testNormalizerDesignID = "design-1"

func TestNormalizeFigmaCommentMapsPayload(t *testing.T) {
	xPosition := 120.5
	comment, err := NormalizeFigmaComment(testNormalizerDesignID, FigmaCommentEvent{
		Message:    "Tighten the spacing",
		Resolved:   true,
		User:       &FigmaUser{ID: "98765", Handle: "dana"},
		ClientMeta: &FigmaClientMeta{X: &xPosition},
	})
	require.NoError(t, err)
	require.Equal(t, "dana", comment.AuthorName)
	require.Equal(t, "figma:98765", comment.AuthorEmail)
	require.Equal(t, model.CommentStatusResolved, comment.Status)
	require.Equal(t, model.OriginFigma, comment.Origin)
	require.Equal(t, 120.5, *comment.XPosition)
	require.Equal(t, 0.0, *comment.YPosition)
	require.Equal(t, "designer", comment.SourceTag())
}

func TestNormalizeFigmaCommentDefaults(t *testing.T) {
	comment, err := NormalizeFigmaComment(testNormalizerDesignID, FigmaCommentEvent{Message: "Looks good"})
	require.NoError(t, err)
	require.Equal(t, "Anonymous", comment.AuthorName)
	require.Equal(t, "figma:unknown", comment.AuthorEmail)
	require.Equal(t, model.CommentStatusOpen, comment.Status)
	require.Equal(t, 0.0, *comment.XPosition)
	require.Equal(t, 0.0, *comment.YPosition)
}

func TestNormalizeSlackMessage(t *testing.T) {
	comment, err := NormalizeSlackMessage(testNormalizerDesignID, SlackMessage{User: "U123", Text: "Logo is blurry"})
	require.NoError(t, err)
	require.Equal(t, "U123", comment.AuthorName)
	require.Equal(t, "slack-U123@slack.com", comment.AuthorEmail)
	require.Equal(t, model.CommentStatusOpen, comment.Status)
	require.Nil(t, comment.XPosition)
	require.Nil(t, comment.YPosition)
	require.Equal(t, "Slack User", comment.SourceTag())

	anonymous, err := NormalizeSlackMessage(testNormalizerDesignID, SlackMessage{Text: "hi"})
	require.NoError(t, err)
	require.Equal(t, "Slack User", anonymous.AuthorName)
}

func TestNormalizeWebSubmissionAlwaysOpen(t *testing.T) {
	rating := 4
	comment, err := NormalizeWebSubmission(WebSubmission{
		DesignID:    testNormalizerDesignID,
		AuthorName:  "Client",
		AuthorEmail: "client@example.com",
		Content:     "Nice hero",
		Rating:      &rating,
	})
	require.NoError(t, err)
	require.Equal(t, model.CommentStatusOpen, comment.Status)
	require.Equal(t, model.OriginWeb, comment.Origin)
	require.Equal(t, "client", comment.SourceTag())

	fromDesigner, err := NormalizeWebSubmission(WebSubmission{
		DesignID:    testNormalizerDesignID,
		AuthorEmail: "ana@figma.com",
		Content:     "Tighter spacing please",
	})
	require.NoError(t, err)
	require.Equal(t, model.OriginFigma, fromDesigner.Origin)
	require.Equal(t, "designer", fromDesigner.SourceTag())
}

func TestSlackMessagePlainUserGate(t *testing.T) {
	require.True(t, SlackMessage{User: "U1", Text: "hello"}.IsPlainUserMessage())
	require.False(t, SlackMessage{BotID: "B1", Text: "hello"}.IsPlainUserMessage())
	require.False(t, SlackMessage{SubType: "message_changed", Text: "hello"}.IsPlainUserMessage())
	require.False(t, SlackMessage{SubType: "channel_join"}.IsPlainUserMessage())
}
