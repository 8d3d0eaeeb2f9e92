package model

import (
	"strings"
	"time"
)

const (
	DesignSourceManual = "manual"
	DesignSourceFigma  = "figma"
	DesignSourceSlack  = "slack"
	DesignSourceURL    = "url"

	// SlackInboxDesignName names the per-project design that collects routed Slack messages.
	SlackInboxDesignName = "Slack Inbox"
)

// Profile is the account record of a registered user, including integration settings.
type Profile struct {
	ID                     string `gorm:"primaryKey;size:36"`
	Email                  string `gorm:"not null;size:320;uniqueIndex"`
	FullName               string `gorm:"size:200"`
	AccessToken            string `gorm:"not null;size:128;uniqueIndex"`
	FigmaToken             string `gorm:"size:256"`
	SlackWebhookURL        string `gorm:"size:1000"`
	SlackChannel           string `gorm:"size:200"`
	SlackAccessToken       string `gorm:"size:512"`
	SlackTeamID            string `gorm:"size:64;index"`
	SlackTeamName          string `gorm:"size:200"`
	SlackConnectedAt       *time.Time
	SlackListeningChannels ListeningChannels `gorm:"type:text"`
	CreatedAt              time.Time         `gorm:"autoCreateTime"`
	UpdatedAt              time.Time         `gorm:"autoUpdateTime"`
}

// Project groups designs under one owning profile.
type Project struct {
	ID          string    `gorm:"primaryKey;size:36"`
	UserID      string    `gorm:"not null;size:36;index"`
	Name        string    `gorm:"not null;size:200"`
	Description string    `gorm:"size:2000"`
	CreatedAt   time.Time `gorm:"autoCreateTime"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime"`
}

// DesignFolder is an ordered grouping of designs with its own share token.
type DesignFolder struct {
	ID             string  `gorm:"primaryKey;size:36"`
	ProjectID      string  `gorm:"not null;size:36;index"`
	Name           string  `gorm:"not null;size:200"`
	Description    string  `gorm:"size:2000"`
	ShareableToken *string `gorm:"size:64;uniqueIndex"`
	Position       int
	Designs        []Design  `gorm:"foreignKey:FolderID;constraint:OnDelete:CASCADE"`
	CreatedAt      time.Time `gorm:"autoCreateTime"`
	UpdatedAt      time.Time `gorm:"autoUpdateTime"`
}

// Design is a single reviewable artifact.
// BindingKey is set only on designs that an integration writes into and is unique across them.
type Design struct {
	ID             string    `gorm:"primaryKey;size:36"`
	ProjectID      string    `gorm:"not null;size:36;index:idx_designs_project_name"`
	FolderID       *string   `gorm:"size:36;index"`
	Name           string    `gorm:"not null;size:300;index:idx_designs_project_name"`
	SourceType     string    `gorm:"not null;size:32"`
	SourceURL      *string   `gorm:"size:2000"`
	ImageURL       *string   `gorm:"size:2000"`
	ShareableToken *string   `gorm:"size:64;uniqueIndex"`
	BindingKey     *string   `gorm:"size:400;uniqueIndex"`
	CreatedAt      time.Time `gorm:"autoCreateTime"`
	UpdatedAt      time.Time `gorm:"autoUpdateTime"`
}

// HasPreview reports whether the design has anything renderable.
func (design Design) HasPreview() bool {
	return strings.TrimSpace(stringValue(design.ImageURL)) != "" || strings.TrimSpace(stringValue(design.SourceURL)) != ""
}

func stringValue(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}

// StringPointer returns a pointer to the trimmed value, or nil when it is empty.
func StringPointer(value string) *string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
