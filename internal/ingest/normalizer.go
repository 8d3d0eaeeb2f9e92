package ingest

import (
	"fmt"
	"strings"

	"github.com/MarkoPoloResearchLab/reviu/internal/model"
)

const (
	figmaAnonymousAuthorName = "Anonymous"
	slackDefaultAuthorName   = "Slack User"
	unknownExternalUserID    = "unknown"

	figmaContactPattern = "figma:%s"
	slackContactPattern = "slack-%s@slack.com"
)

// WebSubmission is a comment typed by an authenticated user or a share-link visitor.
type WebSubmission struct {
	DesignID      string
	UserID        string
	StakeholderID string
	AuthorName    string
	AuthorEmail   string
	Content       string
	Rating        *int
	XPosition     *float64
	YPosition     *float64
	PageURL       string
}

// FigmaWebhookPayload is the body Figma posts for file events.
type FigmaWebhookPayload struct {
	EventType string             `json:"event_type"`
	FileKey   string             `json:"file_key"`
	FileName  string             `json:"file_name"`
	Passcode  string             `json:"passcode"`
	WebhookID string             `json:"webhook_id"`
	Comment   *FigmaCommentEvent `json:"comment"`
}

// FigmaCommentEvent is the comment object carried by a FILE_COMMENT event.
type FigmaCommentEvent struct {
	Message    string           `json:"message"`
	Resolved   bool             `json:"resolved"`
	User       *FigmaUser       `json:"user"`
	ClientMeta *FigmaClientMeta `json:"client_meta"`
}

// FigmaUser identifies the commenter.
type FigmaUser struct {
	ID     string `json:"id"`
	Handle string `json:"handle"`
}

// FigmaClientMeta carries the canvas position of a pinned comment.
type FigmaClientMeta struct {
	X *float64 `json:"x"`
	Y *float64 `json:"y"`
}

// SlackMessage is the subset of a Slack message event used for routing.
type SlackMessage struct {
	TeamID  string
	Channel string
	User    string
	Text    string
	BotID   string
	SubType string
}

// IsPlainUserMessage reports whether the message was typed by a human and is not an edit, join or other subtype.
func (message SlackMessage) IsPlainUserMessage() bool {
	return strings.TrimSpace(message.BotID) == "" && strings.TrimSpace(message.SubType) == ""
}

// NormalizeWebSubmission maps a web submission to a comment. Web comments always start open.
// The origin is classified from the author's contact identifier like any other comment.
func NormalizeWebSubmission(submission WebSubmission) (model.Comment, error) {
	return model.NewComment(model.CommentInput{
		DesignID:      submission.DesignID,
		UserID:        submission.UserID,
		StakeholderID: submission.StakeholderID,
		AuthorName:    submission.AuthorName,
		AuthorEmail:   submission.AuthorEmail,
		Content:       submission.Content,
		Status:        model.CommentStatusOpen,
		Rating:        submission.Rating,
		XPosition:     submission.XPosition,
		YPosition:     submission.YPosition,
		PageURL:       submission.PageURL,
	})
}

// NormalizeFigmaComment maps a Figma comment event onto the design bound to its tracked file.
func NormalizeFigmaComment(designID string, event FigmaCommentEvent) (model.Comment, error) {
	authorName := figmaAnonymousAuthorName
	commenterID := unknownExternalUserID
	if event.User != nil {
		if handle := strings.TrimSpace(event.User.Handle); handle != "" {
			authorName = handle
		}
		if userID := strings.TrimSpace(event.User.ID); userID != "" {
			commenterID = userID
		}
	}

	status := model.CommentStatusOpen
	if event.Resolved {
		status = model.CommentStatusResolved
	}

	xPosition, yPosition := 0.0, 0.0
	if event.ClientMeta != nil {
		if event.ClientMeta.X != nil {
			xPosition = *event.ClientMeta.X
		}
		if event.ClientMeta.Y != nil {
			yPosition = *event.ClientMeta.Y
		}
	}

	return model.NewComment(model.CommentInput{
		DesignID:    designID,
		AuthorName:  authorName,
		AuthorEmail: fmt.Sprintf(figmaContactPattern, commenterID),
		Origin:      model.OriginFigma,
		Content:     event.Message,
		Status:      status,
		XPosition:   &xPosition,
		YPosition:   &yPosition,
	})
}

// NormalizeSlackMessage maps a Slack message onto the inbox design. The raw user id is kept as the author name.
func NormalizeSlackMessage(designID string, message SlackMessage) (model.Comment, error) {
	authorName := strings.TrimSpace(message.User)
	slackUserID := authorName
	if authorName == "" {
		authorName = slackDefaultAuthorName
		slackUserID = unknownExternalUserID
	}

	return model.NewComment(model.CommentInput{
		DesignID:    designID,
		AuthorName:  authorName,
		AuthorEmail: fmt.Sprintf(slackContactPattern, slackUserID),
		Origin:      model.OriginSlack,
		Content:     message.Text,
		Status:      model.CommentStatusOpen,
	})
}
