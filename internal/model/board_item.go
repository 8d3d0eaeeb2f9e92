package model

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	BoardItemStatusOpen       = "open"
	BoardItemStatusInProgress = "in_progress"
	BoardItemStatusDone       = "done"

	BoardPriorityHigh   = "high"
	BoardPriorityMedium = "medium"
	BoardPriorityLow    = "low"

	boardItemTitleMaxLength       = 300
	boardItemDescriptionMaxLength = 4000
)

var (
	ErrInvalidBoardItemOwner    = errors.New("invalid_board_item_owner")
	ErrInvalidBoardItemTitle    = errors.New("invalid_board_item_title")
	ErrInvalidBoardItemPriority = errors.New("invalid_board_item_priority")
	ErrInvalidBoardItemStatus   = errors.New("invalid_board_item_status")
)

// BoardItem is a task on a user's board.
type BoardItem struct {
	ID              string    `gorm:"primaryKey;size:36"`
	UserID          string    `gorm:"not null;size:36;index"`
	ProjectID       *string   `gorm:"size:36;index"`
	DesignID        *string   `gorm:"size:36;index"`
	Title           string    `gorm:"not null;size:300"`
	Description     string    `gorm:"size:4000"`
	Status          string    `gorm:"not null;size:16"`
	Priority        string    `gorm:"not null;size:16"`
	StakeholderRole *string   `gorm:"size:64"`
	CreatedAt       time.Time `gorm:"autoCreateTime"`
	UpdatedAt       time.Time `gorm:"autoUpdateTime"`
}

// BoardItemInput holds the raw values used to construct a BoardItem.
type BoardItemInput struct {
	UserID          string
	ProjectID       string
	DesignID        string
	Title           string
	Description     string
	Status          string
	Priority        string
	StakeholderRole string
}

// NewBoardItem constructs a BoardItem with validated, normalized fields.
func NewBoardItem(input BoardItemInput) (BoardItem, error) {
	userID := strings.TrimSpace(input.UserID)
	if userID == "" {
		return BoardItem{}, ErrInvalidBoardItemOwner
	}

	title := strings.TrimSpace(input.Title)
	if title == "" {
		return BoardItem{}, ErrInvalidBoardItemTitle
	}

	status := strings.TrimSpace(input.Status)
	if status == "" {
		status = BoardItemStatusOpen
	}
	switch status {
	case BoardItemStatusOpen, BoardItemStatusInProgress, BoardItemStatusDone:
	default:
		return BoardItem{}, fmt.Errorf("%w: %s", ErrInvalidBoardItemStatus, status)
	}

	priority := strings.TrimSpace(input.Priority)
	if priority == "" {
		priority = BoardPriorityMedium
	}
	switch priority {
	case BoardPriorityHigh, BoardPriorityMedium, BoardPriorityLow:
	default:
		return BoardItem{}, fmt.Errorf("%w: %s", ErrInvalidBoardItemPriority, priority)
	}

	return BoardItem{
		ID:              uuid.NewString(),
		UserID:          userID,
		ProjectID:       StringPointer(input.ProjectID),
		DesignID:        StringPointer(input.DesignID),
		Title:           truncateRunes(title, boardItemTitleMaxLength),
		Description:     truncateRunes(strings.TrimSpace(input.Description), boardItemDescriptionMaxLength),
		Status:          status,
		Priority:        priority,
		StakeholderRole: StringPointer(input.StakeholderRole),
	}, nil
}

// BoardPriorityFor maps a summary priority onto the three board priorities.
func BoardPriorityFor(summaryPriority string) string {
	switch strings.ToLower(strings.TrimSpace(summaryPriority)) {
	case "urgent", "critical", "high":
		return BoardPriorityHigh
	case "low":
		return BoardPriorityLow
	default:
		return BoardPriorityMedium
	}
}
