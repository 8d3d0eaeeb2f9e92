package model

import (
	"time"

	"gorm.io/datatypes"
)

const DefaultFigmaSyncFrequency = "realtime"

// FigmaConnection stores the OAuth credentials of one user's Figma account.
type FigmaConnection struct {
	ID             string `gorm:"primaryKey;size:36"`
	UserID         string `gorm:"not null;size:36;uniqueIndex"`
	AccessToken    string `gorm:"not null;size:512"`
	RefreshToken   string `gorm:"size:512"`
	ExpiresAt      time.Time
	FigmaUserID    string    `gorm:"size:64"`
	FigmaUserEmail string    `gorm:"size:320"`
	CreatedAt      time.Time `gorm:"autoCreateTime"`
	UpdatedAt      time.Time `gorm:"autoUpdateTime"`
}

// FigmaTrackedFile links a Figma file to a project for automatic comment ingestion.
type FigmaTrackedFile struct {
	ID           string `gorm:"primaryKey;size:36"`
	UserID       string `gorm:"not null;size:36;index"`
	ProjectID    string `gorm:"not null;size:36;index"`
	FileKey      string `gorm:"not null;size:128;index"`
	FileName     string `gorm:"not null;size:300"`
	FileURL      string `gorm:"not null;size:2000"`
	LastSyncedAt *time.Time
	SyncEnabled  bool
	WebhookID    *string              `gorm:"size:128"`
	Preferences  *FigmaSyncPreference `gorm:"foreignKey:TrackedFileID;constraint:OnDelete:CASCADE"`
	CreatedAt    time.Time            `gorm:"autoCreateTime"`
	UpdatedAt    time.Time            `gorm:"autoUpdateTime"`
}

// FigmaSyncPreference holds the per-file filter applied to inbound Figma comments.
type FigmaSyncPreference struct {
	ID                   string         `gorm:"primaryKey;size:36"`
	UserID               string         `gorm:"not null;size:36;index"`
	TrackedFileID        string         `gorm:"not null;size:36;uniqueIndex"`
	SyncAllComments      bool           `gorm:"not null"`
	SyncOnlyMentions     bool           `gorm:"not null"`
	SyncUnresolvedOnly   bool           `gorm:"not null"`
	NotificationChannels datatypes.JSON `gorm:"type:text"`
	SyncFrequency        string         `gorm:"size:32"`
	CreatedAt            time.Time      `gorm:"autoCreateTime"`
	UpdatedAt            time.Time      `gorm:"autoUpdateTime"`
}
