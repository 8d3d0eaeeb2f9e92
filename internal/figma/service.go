package figma

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/MarkoPoloResearchLab/reviu/internal/model"
	"github.com/MarkoPoloResearchLab/reviu/internal/storage"
)

const (
	defaultImportedDesignName = "Figma Design"

	logEventFigmaFileTracked   = "figma_file_tracked"
	logEventFigmaFileUntracked = "figma_file_untracked"
	logEventFigmaDesignImport  = "figma_design_imported"
	logEventFigmaNodeImage     = "figma_node_image_failed"
	logEventFigmaConnected     = "figma_connected"
)

var (
	ErrMissingRequiredFields = errors.New("missing_required_fields")
	ErrProjectNotFound       = errors.New("project_not_found")
	ErrTrackedFileNotFound   = errors.New("tracked_file_not_found")
	ErrNotConnected          = errors.New("figma_not_connected")
	ErrTokenNotConfigured    = errors.New("figma_token_not_configured")
	ErrFetchFailed           = errors.New("figma_fetch_failed")
	ErrMissingUserID         = errors.New("missing_user_id")
)

// PreferenceInput is the optional sync filter supplied when a file is tracked.
type PreferenceInput struct {
	SyncAllComments      bool     `json:"sync_all_comments"`
	SyncOnlyMentions     bool     `json:"sync_only_mentions"`
	SyncUnresolvedOnly   bool     `json:"sync_unresolved_only"`
	NotificationChannels []string `json:"notification_channels"`
	SyncFrequency        string   `json:"sync_frequency"`
}

// TrackInput registers a Figma file against a project.
type TrackInput struct {
	FileKey     string           `json:"file_key"`
	FileName    string           `json:"file_name"`
	FileURL     string           `json:"file_url"`
	ProjectID   string           `json:"project_id"`
	Preferences *PreferenceInput `json:"preferences"`
}

// Validate requires every identifying field.
func (input TrackInput) Validate() error {
	return validation.ValidateStruct(&input,
		validation.Field(&input.FileKey, validation.Required),
		validation.Field(&input.FileName, validation.Required),
		validation.Field(&input.FileURL, validation.Required),
		validation.Field(&input.ProjectID, validation.Required),
	)
}

// ImportInput creates a design from a Figma link.
type ImportInput struct {
	FigmaURL   string `json:"figmaUrl"`
	ProjectID  string `json:"projectId"`
	DesignName string `json:"designName"`
}

// FileInfo describes a Figma file resolved from a link.
type FileInfo struct {
	FileKey  string `json:"file_key"`
	FileName string `json:"file_name"`
	FileURL  string `json:"file_url"`
}

// Service manages tracked files, design imports and OAuth connections for Figma.
type Service struct {
	database *gorm.DB
	client   *Client
	oauth    *OAuth
	logger   *zap.Logger
	now      func() time.Time
}

// NewService constructs a Service. A nil oauth disables the connection flow.
func NewService(database *gorm.DB, client *Client, oauth *OAuth, logger *zap.Logger) *Service {
	if client == nil {
		client = NewClient("", nil)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		database: database,
		client:   client,
		oauth:    oauth,
		logger:   logger,
		now:      time.Now,
	}
}

// OAuthEnabled reports whether the connection flow is configured.
func (service *Service) OAuthEnabled() bool {
	return service.oauth != nil
}

// AuthorizeURL returns the Figma consent url for the given state nonce.
func (service *Service) AuthorizeURL(state string) (string, error) {
	if service.oauth == nil {
		return "", ErrOAuthNotConfigured
	}
	return service.oauth.AuthorizeURL(state), nil
}

// CompleteOAuth exchanges the code and stores the connection of the user, replacing any earlier one.
func (service *Service) CompleteOAuth(ctx context.Context, userID string, code string) (model.FigmaConnection, error) {
	if service.oauth == nil {
		return model.FigmaConnection{}, ErrOAuthNotConfigured
	}
	trimmedUserID := strings.TrimSpace(userID)
	if trimmedUserID == "" {
		return model.FigmaConnection{}, ErrMissingUserID
	}
	token, err := service.oauth.Exchange(ctx, code)
	if err != nil {
		return model.FigmaConnection{}, fmt.Errorf("exchange figma code: %w", err)
	}
	user, err := service.client.Me(ctx, TokenSourceCredential{Source: oauth2.StaticTokenSource(token)})
	if err != nil {
		return model.FigmaConnection{}, fmt.Errorf("load figma user: %w", err)
	}

	connection := model.FigmaConnection{
		ID:             storage.NewID(),
		UserID:         trimmedUserID,
		AccessToken:    token.AccessToken,
		RefreshToken:   token.RefreshToken,
		ExpiresAt:      token.Expiry,
		FigmaUserID:    user.ID,
		FigmaUserEmail: user.Email,
	}
	upsertErr := service.database.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"access_token", "refresh_token", "expires_at", "figma_user_id", "figma_user_email", "updated_at"}),
	}).Create(&connection).Error
	if upsertErr != nil {
		return model.FigmaConnection{}, fmt.Errorf("save figma connection: %w", upsertErr)
	}
	service.logger.Info(logEventFigmaConnected, zap.String("user_id", trimmedUserID), zap.String("figma_user_id", user.ID))
	return connection, nil
}

// FileInfo resolves the name of the file behind a link using the user's OAuth connection.
func (service *Service) FileInfo(ctx context.Context, userID string, rawURL string) (FileInfo, error) {
	reference, err := ParseFileURL(rawURL)
	if err != nil {
		return FileInfo{}, err
	}
	var connection model.FigmaConnection
	lookupErr := service.database.WithContext(ctx).Where("user_id = ?", userID).Take(&connection).Error
	if errors.Is(lookupErr, gorm.ErrRecordNotFound) {
		return FileInfo{}, ErrNotConnected
	}
	if lookupErr != nil {
		return FileInfo{}, fmt.Errorf("load figma connection: %w", lookupErr)
	}
	metadata, err := service.client.File(ctx, service.connectionCredential(ctx, connection), reference.FileKey)
	if err != nil {
		return FileInfo{}, fmt.Errorf("%w: %w", ErrFetchFailed, err)
	}
	return FileInfo{FileKey: reference.FileKey, FileName: metadata.Name, FileURL: strings.TrimSpace(rawURL)}, nil
}

func (service *Service) connectionCredential(ctx context.Context, connection model.FigmaConnection) Credential {
	token := &oauth2.Token{
		AccessToken:  connection.AccessToken,
		RefreshToken: connection.RefreshToken,
		Expiry:       connection.ExpiresAt,
		TokenType:    "Bearer",
	}
	if service.oauth == nil {
		return TokenSourceCredential{Source: oauth2.StaticTokenSource(token)}
	}
	return service.oauth.Credential(ctx, token)
}

// List returns the user's tracked files with their preferences, newest first.
func (service *Service) List(ctx context.Context, userID string) ([]model.FigmaTrackedFile, error) {
	var files []model.FigmaTrackedFile
	err := service.database.WithContext(ctx).
		Preload("Preferences").
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&files).Error
	if err != nil {
		return nil, fmt.Errorf("list tracked files: %w", err)
	}
	return files, nil
}

// Track registers a file for webhook ingestion and stores its preferences when supplied.
func (service *Service) Track(ctx context.Context, userID string, input TrackInput) (model.FigmaTrackedFile, error) {
	input.FileKey = strings.TrimSpace(input.FileKey)
	input.FileName = strings.TrimSpace(input.FileName)
	input.FileURL = strings.TrimSpace(input.FileURL)
	input.ProjectID = strings.TrimSpace(input.ProjectID)
	if err := input.Validate(); err != nil {
		return model.FigmaTrackedFile{}, fmt.Errorf("%w: %v", ErrMissingRequiredFields, err)
	}

	trackedFile := model.FigmaTrackedFile{
		ID:          storage.NewID(),
		UserID:      userID,
		ProjectID:   input.ProjectID,
		FileKey:     input.FileKey,
		FileName:    input.FileName,
		FileURL:     input.FileURL,
		SyncEnabled: true,
	}
	err := service.database.WithContext(ctx).Transaction(func(transaction *gorm.DB) error {
		if err := requireOwnedProject(transaction, userID, input.ProjectID); err != nil {
			return err
		}
		if err := transaction.Create(&trackedFile).Error; err != nil {
			return fmt.Errorf("create tracked file: %w", err)
		}
		if input.Preferences == nil {
			return nil
		}
		preference, err := buildPreference(userID, trackedFile.ID, *input.Preferences)
		if err != nil {
			return err
		}
		upsertErr := transaction.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "tracked_file_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"sync_all_comments", "sync_only_mentions", "sync_unresolved_only", "notification_channels", "sync_frequency", "updated_at"}),
		}).Create(&preference).Error
		if upsertErr != nil {
			return fmt.Errorf("save sync preferences: %w", upsertErr)
		}
		trackedFile.Preferences = &preference
		return nil
	})
	if err != nil {
		return model.FigmaTrackedFile{}, err
	}
	service.logger.Info(logEventFigmaFileTracked, zap.String("tracked_file_id", trackedFile.ID), zap.String("file_key", trackedFile.FileKey))
	return trackedFile, nil
}

func buildPreference(userID string, trackedFileID string, input PreferenceInput) (model.FigmaSyncPreference, error) {
	channels := input.NotificationChannels
	if channels == nil {
		channels = []string{}
	}
	encodedChannels, err := json.Marshal(channels)
	if err != nil {
		return model.FigmaSyncPreference{}, fmt.Errorf("encode notification channels: %w", err)
	}
	frequency := strings.TrimSpace(input.SyncFrequency)
	if frequency == "" {
		frequency = model.DefaultFigmaSyncFrequency
	}
	return model.FigmaSyncPreference{
		ID:                   storage.NewID(),
		UserID:               userID,
		TrackedFileID:        trackedFileID,
		SyncAllComments:      input.SyncAllComments,
		SyncOnlyMentions:     input.SyncOnlyMentions,
		SyncUnresolvedOnly:   input.SyncUnresolvedOnly,
		NotificationChannels: datatypes.JSON(encodedChannels),
		SyncFrequency:        frequency,
	}, nil
}

// Untrack removes a tracked file owned by the user together with its preferences.
func (service *Service) Untrack(ctx context.Context, userID string, trackedFileID string) error {
	return service.database.WithContext(ctx).Transaction(func(transaction *gorm.DB) error {
		var trackedFile model.FigmaTrackedFile
		lookupErr := transaction.Where("id = ? AND user_id = ?", trackedFileID, userID).Take(&trackedFile).Error
		if errors.Is(lookupErr, gorm.ErrRecordNotFound) {
			return ErrTrackedFileNotFound
		}
		if lookupErr != nil {
			return fmt.Errorf("load tracked file: %w", lookupErr)
		}
		if err := transaction.Where("tracked_file_id = ?", trackedFile.ID).Delete(&model.FigmaSyncPreference{}).Error; err != nil {
			return fmt.Errorf("delete sync preferences: %w", err)
		}
		if err := transaction.Delete(&trackedFile).Error; err != nil {
			return fmt.Errorf("delete tracked file: %w", err)
		}
		service.logger.Info(logEventFigmaFileUntracked, zap.String("tracked_file_id", trackedFile.ID))
		return nil
	})
}

// Import creates a figma design from a link using the profile's personal token.
// A node-id in the link renders that node as the design preview.
func (service *Service) Import(ctx context.Context, profile model.Profile, input ImportInput) (model.Design, error) {
	personalToken := strings.TrimSpace(profile.FigmaToken)
	if personalToken == "" {
		return model.Design{}, ErrTokenNotConfigured
	}
	reference, err := ParseFileURL(input.FigmaURL)
	if err != nil {
		return model.Design{}, err
	}
	projectID := strings.TrimSpace(input.ProjectID)
	if err := requireOwnedProject(service.database.WithContext(ctx), profile.ID, projectID); err != nil {
		return model.Design{}, err
	}

	credential := PersonalToken(personalToken)
	metadata, err := service.client.File(ctx, credential, reference.FileKey)
	if err != nil {
		return model.Design{}, fmt.Errorf("%w: %w", ErrFetchFailed, err)
	}

	var imageURL string
	if reference.NodeID != "" {
		imageURL, err = service.client.NodeImage(ctx, credential, reference.FileKey, reference.NodeID)
		if err != nil {
			service.logger.Warn(logEventFigmaNodeImage, zap.Error(err), zap.String("file_key", reference.FileKey))
			imageURL = ""
		}
	}

	name := strings.TrimSpace(input.DesignName)
	if name == "" {
		name = strings.TrimSpace(metadata.Name)
	}
	if name == "" {
		name = defaultImportedDesignName
	}
	design := model.Design{
		ID:         storage.NewID(),
		ProjectID:  projectID,
		Name:       name,
		SourceType: model.DesignSourceFigma,
		SourceURL:  model.StringPointer(input.FigmaURL),
		ImageURL:   model.StringPointer(imageURL),
	}
	if err := service.database.WithContext(ctx).Create(&design).Error; err != nil {
		return model.Design{}, fmt.Errorf("create design: %w", err)
	}
	service.logger.Info(logEventFigmaDesignImport, zap.String("design_id", design.ID), zap.String("file_key", reference.FileKey))
	return design, nil
}

func requireOwnedProject(database *gorm.DB, userID string, projectID string) error {
	var count int64
	err := database.Model(&model.Project{}).Where("id = ? AND user_id = ?", projectID, userID).Count(&count).Error
	if err != nil {
		return fmt.Errorf("load project: %w", err)
	}
	if count == 0 {
		return ErrProjectNotFound
	}
	return nil
}
