package ingest

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

// SlackRouting selects what a matched Slack message becomes.
type SlackRouting string

const (
	// SlackRoutingComment appends a comment to the project's Slack Inbox design.
	SlackRoutingComment SlackRouting = "comment"
	// SlackRoutingBoard creates a board item.
	SlackRoutingBoard SlackRouting = "board"

	slackBoardTitleMaxRunes = 50
	slackBoardTitleEllipsis = "..."
)

var ErrUnknownSlackRouting = errors.New("unknown_slack_routing")

// ParseSlackRouting resolves a configured routing value, defaulting to comments.
func ParseSlackRouting(raw string) (SlackRouting, error) {
	switch SlackRouting(strings.ToLower(strings.TrimSpace(raw))) {
	case "", SlackRoutingComment:
		return SlackRoutingComment, nil
	case SlackRoutingBoard:
		return SlackRoutingBoard, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnknownSlackRouting, raw)
	}
}

func slackBoardItemTitle(text string) string {
	trimmed := strings.TrimSpace(text)
	if utf8.RuneCountInString(trimmed) <= slackBoardTitleMaxRunes {
		return trimmed
	}
	return string([]rune(trimmed)[:slackBoardTitleMaxRunes]) + slackBoardTitleEllipsis
}
