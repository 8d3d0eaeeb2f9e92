package notifications

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/slack-go/slack"
)

const (
	// DefaultSlackChannel is used when the project owner has not chosen a channel.
	DefaultSlackChannel = "#design-feedback"

	slackWebhookUsername  = "Reviu"
	slackWebhookIconEmoji = ":art:"
	slackRatingStar       = "⭐"
	slackTruncationMarker = "…"

	// Slack rejects blocks whose text exceeds these character counts.
	slackHeaderTextLimit  = 150
	slackFieldTextLimit   = 2000
	slackSectionTextLimit = 3000

	defaultSlackWebhookTimeout = 10 * time.Second
)

var ErrMissingWebhookURL = errors.New("missing_webhook_url")

// SlackTarget is the owner's incoming webhook destination.
type SlackTarget struct {
	WebhookURL string
	Channel    string
}

// CommentMessage carries the fields rendered into a new-comment notification.
type CommentMessage struct {
	DesignName  string
	ProjectName string
	AuthorName  string
	Content     string
	Rating      *int
}

// SlackWebhookNotifier posts new-comment messages to Slack incoming webhooks.
type SlackWebhookNotifier struct {
	httpClient *http.Client
}

// NewSlackWebhookNotifier constructs a notifier. A nil client gets a client with a bounded timeout.
func NewSlackWebhookNotifier(httpClient *http.Client) *SlackWebhookNotifier {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultSlackWebhookTimeout}
	}
	return &SlackWebhookNotifier{httpClient: httpClient}
}

// NotifyComment makes a single delivery attempt. Non-2xx responses are returned as errors.
func (notifier *SlackWebhookNotifier) NotifyComment(ctx context.Context, target SlackTarget, message CommentMessage) error {
	webhookURL := strings.TrimSpace(target.WebhookURL)
	if webhookURL == "" {
		return ErrMissingWebhookURL
	}
	payload := BuildCommentWebhookMessage(target.Channel, message)
	if err := slack.PostWebhookCustomHTTPContext(ctx, webhookURL, notifier.httpClient, payload); err != nil {
		return fmt.Errorf("post slack webhook: %w", err)
	}
	return nil
}

// BuildCommentWebhookMessage renders the header, project/author fields and feedback body blocks.
func BuildCommentWebhookMessage(channel string, message CommentMessage) *slack.WebhookMessage {
	resolvedChannel := strings.TrimSpace(channel)
	if resolvedChannel == "" {
		resolvedChannel = DefaultSlackChannel
	}

	headerText := fmt.Sprintf("New Feedback on %s%s", message.DesignName, ratingSuffix(message.Rating))
	header := slack.NewHeaderBlock(slack.NewTextBlockObject(slack.PlainTextType, truncateBlockText(headerText, slackHeaderTextLimit), true, false))
	fields := slack.NewSectionBlock(nil, []*slack.TextBlockObject{
		slack.NewTextBlockObject(slack.MarkdownType, truncateBlockText("*Project:*\n"+message.ProjectName, slackFieldTextLimit), false, false),
		slack.NewTextBlockObject(slack.MarkdownType, truncateBlockText("*From:*\n"+message.AuthorName, slackFieldTextLimit), false, false),
	}, nil)
	body := slack.NewSectionBlock(slack.NewTextBlockObject(slack.MarkdownType, truncateBlockText("*Feedback:*\n"+message.Content, slackSectionTextLimit), false, false), nil, nil)

	return &slack.WebhookMessage{
		Channel:   resolvedChannel,
		Username:  slackWebhookUsername,
		IconEmoji: slackWebhookIconEmoji,
		Blocks: &slack.Blocks{
			BlockSet: []slack.Block{header, fields, body, slack.NewDividerBlock()},
		},
	}
}

func ratingSuffix(rating *int) string {
	if rating == nil || *rating <= 0 {
		return ""
	}
	return fmt.Sprintf(" (%s)", strings.Repeat(slackRatingStar, *rating))
}

func truncateBlockText(text string, limit int) string {
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit-len([]rune(slackTruncationMarker))]) + slackTruncationMarker
}
