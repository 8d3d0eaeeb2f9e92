package model

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Origin identifies where a comment entered the system.
type Origin string

const (
	OriginWeb   Origin = "web"
	OriginFigma Origin = "figma"
	OriginSlack Origin = "slack"

	CommentStatusOpen     = "open"
	CommentStatusResolved = "resolved"
	CommentStatusArchived = "archived"

	SourceTagSlack    = "Slack User"
	SourceTagDesigner = "designer"
	SourceTagClient   = "client"

	CommentRatingMin = 1
	CommentRatingMax = 5

	commentAuthorNameMaxLength  = 200
	commentAuthorEmailMaxLength = 320
	commentContentMaxLength     = 8000
	commentPageURLMaxLength     = 2000
)

var (
	ErrInvalidCommentDesignID = errors.New("invalid_comment_design_id")
	ErrEmptyCommentContent    = errors.New("empty_comment_content")
	ErrInvalidRating          = errors.New("invalid_rating")
	ErrUnpairedPosition       = errors.New("unpaired_position")
	ErrInvalidCommentStatus   = errors.New("invalid_comment_status")
	ErrInvalidCommentOrigin   = errors.New("invalid_comment_origin")
)

// ClassifyOrigin maps a contact identifier to its origin by substring match.
func ClassifyOrigin(contactIdentifier string) Origin {
	normalized := strings.ToLower(contactIdentifier)
	switch {
	case strings.Contains(normalized, "slack.com"):
		return OriginSlack
	case strings.Contains(normalized, "figma"):
		return OriginFigma
	default:
		return OriginWeb
	}
}

// SourceTag is the role label shown next to a comment.
func (origin Origin) SourceTag() string {
	switch origin {
	case OriginSlack:
		return SourceTagSlack
	case OriginFigma:
		return SourceTagDesigner
	default:
		return SourceTagClient
	}
}

func (origin Origin) valid() bool {
	switch origin {
	case OriginWeb, OriginFigma, OriginSlack:
		return true
	default:
		return false
	}
}

// Comment is a single piece of feedback attached to one design.
type Comment struct {
	ID            string  `gorm:"primaryKey;size:36"`
	DesignID      string  `gorm:"not null;size:36;index"`
	UserID        *string `gorm:"size:36"`
	StakeholderID *string `gorm:"size:36;index"`
	AuthorName    string  `gorm:"not null;size:200"`
	AuthorEmail   string  `gorm:"not null;size:320"`
	Origin        Origin  `gorm:"not null;size:16"`
	Content       string  `gorm:"not null;size:8000"`
	Status        string  `gorm:"not null;size:16;index"`
	Rating        *int
	XPosition     *float64
	YPosition     *float64
	PageURL       *string `gorm:"size:2000"`
	ViewedAt      *time.Time
	CreatedAt     time.Time `gorm:"autoCreateTime;index"`
	UpdatedAt     time.Time `gorm:"autoUpdateTime"`
}

// CommentInput holds the raw values used to construct a Comment.
type CommentInput struct {
	DesignID      string
	UserID        string
	StakeholderID string
	AuthorName    string
	AuthorEmail   string
	Origin        Origin
	Content       string
	Status        string
	Rating        *int
	XPosition     *float64
	YPosition     *float64
	PageURL       string
}

// NewComment constructs a Comment with validated, normalized fields.
func NewComment(input CommentInput) (Comment, error) {
	designID := strings.TrimSpace(input.DesignID)
	if designID == "" {
		return Comment{}, ErrInvalidCommentDesignID
	}

	content := strings.TrimSpace(input.Content)
	if content == "" {
		return Comment{}, ErrEmptyCommentContent
	}

	if err := ValidateRating(input.Rating); err != nil {
		return Comment{}, err
	}

	if (input.XPosition == nil) != (input.YPosition == nil) {
		return Comment{}, ErrUnpairedPosition
	}

	status := strings.TrimSpace(input.Status)
	if status == "" {
		status = CommentStatusOpen
	}
	if err := ValidateCommentStatus(status); err != nil {
		return Comment{}, err
	}

	origin := input.Origin
	if origin == "" {
		origin = ClassifyOrigin(input.AuthorEmail)
	}
	if !origin.valid() {
		return Comment{}, fmt.Errorf("%w: %s", ErrInvalidCommentOrigin, origin)
	}

	return Comment{
		ID:            uuid.NewString(),
		DesignID:      designID,
		UserID:        StringPointer(input.UserID),
		StakeholderID: StringPointer(input.StakeholderID),
		AuthorName:    truncateRunes(strings.TrimSpace(input.AuthorName), commentAuthorNameMaxLength),
		AuthorEmail:   truncateRunes(strings.TrimSpace(input.AuthorEmail), commentAuthorEmailMaxLength),
		Origin:        origin,
		Content:       truncateRunes(content, commentContentMaxLength),
		Status:        status,
		Rating:        copyInt(input.Rating),
		XPosition:     copyFloat(input.XPosition),
		YPosition:     copyFloat(input.YPosition),
		PageURL:       StringPointer(truncateRunes(input.PageURL, commentPageURLMaxLength)),
	}, nil
}

// ValidateRating accepts an absent rating or an integer in [1,5].
func ValidateRating(rating *int) error {
	if rating == nil {
		return nil
	}
	if *rating < CommentRatingMin || *rating > CommentRatingMax {
		return fmt.Errorf("%w: %d", ErrInvalidRating, *rating)
	}
	return nil
}

// ValidateCommentStatus accepts the workflow statuses of a comment.
func ValidateCommentStatus(status string) error {
	switch status {
	case CommentStatusOpen, CommentStatusResolved, CommentStatusArchived:
		return nil
	default:
		return fmt.Errorf("%w: %s", ErrInvalidCommentStatus, status)
	}
}

// SourceTag is the role label derived from the comment's origin.
func (comment Comment) SourceTag() string {
	origin := comment.Origin
	if !origin.valid() {
		origin = ClassifyOrigin(comment.AuthorEmail)
	}
	return origin.SourceTag()
}

// MarkViewed sets the viewed timestamp once. It reports whether the comment changed.
func (comment *Comment) MarkViewed(at time.Time) bool {
	if comment.ViewedAt != nil {
		return false
	}
	viewedAt := at.UTC()
	comment.ViewedAt = &viewedAt
	return true
}

func truncateRunes(value string, limit int) string {
	runes := []rune(value)
	if len(runes) <= limit {
		return value
	}
	return string(runes[:limit])
}

func copyInt(value *int) *int {
	if value == nil {
		return nil
	}
	copied := *value
	return &copied
}

func copyFloat(value *float64) *float64 {
	if value == nil {
		return nil
	}
	copied := *value
	return &copied
}
