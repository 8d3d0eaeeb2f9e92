package ingest

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/MarkoPoloResearchLab/reviu/internal/model"
)

var (
	ErrFileNotTracked       = errors.New("file_not_tracked")
	ErrNoOwnedProject       = errors.New("no_owned_project")
	ErrMissingTeamID        = errors.New("missing_team_id")
	ErrMissingFileKey       = errors.New("missing_file_key")
	ErrInvalidDesignBinding = errors.New("invalid_design_binding")
)

// Directory resolves the per-user integration configuration consulted while ingesting one event.
type Directory interface {
	// TrackedFile returns the sync-enabled tracked file for a Figma file key, with its preferences.
	TrackedFile(ctx context.Context, fileKey string) (model.FigmaTrackedFile, error)
	// ProfilesInTeam returns the profiles connected to a Slack workspace.
	ProfilesInTeam(ctx context.Context, teamID string) ([]model.Profile, error)
	// FirstOwnedProject returns the earliest project owned by a profile.
	FirstOwnedProject(ctx context.Context, userID string) (model.Project, error)
}

// GormDirectory reads integration configuration from the relational store.
type GormDirectory struct {
	database *gorm.DB
}

// NewGormDirectory constructs a Directory backed by gorm.
func NewGormDirectory(database *gorm.DB) *GormDirectory {
	return &GormDirectory{database: database}
}

func (directory *GormDirectory) TrackedFile(ctx context.Context, fileKey string) (model.FigmaTrackedFile, error) {
	trimmedKey := strings.TrimSpace(fileKey)
	if trimmedKey == "" {
		return model.FigmaTrackedFile{}, ErrMissingFileKey
	}
	var trackedFile model.FigmaTrackedFile
	err := directory.database.WithContext(ctx).
		Preload("Preferences").
		Where("file_key = ? AND sync_enabled = ?", trimmedKey, true).
		Order("created_at ASC").
		First(&trackedFile).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.FigmaTrackedFile{}, ErrFileNotTracked
	}
	if err != nil {
		return model.FigmaTrackedFile{}, err
	}
	return trackedFile, nil
}

func (directory *GormDirectory) ProfilesInTeam(ctx context.Context, teamID string) ([]model.Profile, error) {
	trimmedTeamID := strings.TrimSpace(teamID)
	if trimmedTeamID == "" {
		return nil, ErrMissingTeamID
	}
	var profiles []model.Profile
	if err := directory.database.WithContext(ctx).
		Where("slack_team_id = ?", trimmedTeamID).
		Order("created_at ASC").
		Find(&profiles).Error; err != nil {
		return nil, err
	}
	return profiles, nil
}

func (directory *GormDirectory) FirstOwnedProject(ctx context.Context, userID string) (model.Project, error) {
	var project model.Project
	err := directory.database.WithContext(ctx).
		Where("user_id = ?", strings.TrimSpace(userID)).
		Order("created_at ASC").
		First(&project).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.Project{}, ErrNoOwnedProject
	}
	if err != nil {
		return model.Project{}, err
	}
	return project, nil
}
