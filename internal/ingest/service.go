package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/MarkoPoloResearchLab/reviu/internal/model"
	"github.com/MarkoPoloResearchLab/reviu/internal/storage"
)

const (
	figmaEventTypeFileComment = "FILE_COMMENT"
	designBindingKeySeparator = "|"

	logEventCommentSaved          = "comment_saved"
	logEventFigmaCommentFiltered  = "figma_comment_filtered"
	logEventFigmaLastSyncedFailed = "figma_last_synced_update_failed"
	logEventSlackProfileSkipped   = "slack_profile_skipped"
	logEventSlackMessageRouted    = "slack_message_routed"
)

// FigmaOutcome names what happened to a Figma webhook delivery.
type FigmaOutcome string

const (
	FigmaOutcomeIgnoredEvent FigmaOutcome = "ignored_event"
	FigmaOutcomeNotTracked   FigmaOutcome = "not_tracked"
	FigmaOutcomeFiltered     FigmaOutcome = "filtered"
	FigmaOutcomeCreated      FigmaOutcome = "created"
)

var ErrMissingFigmaComment = errors.New("missing_figma_comment")

// CommentDispatcher hands a persisted comment to the notification path without waiting for the result.
type CommentDispatcher interface {
	Dispatch(ctx context.Context, comment model.Comment)
}

type noopCommentDispatcher struct{}

func (noopCommentDispatcher) Dispatch(context.Context, model.Comment) {}

func resolveCommentDispatcher(dispatcher CommentDispatcher) CommentDispatcher {
	if dispatcher == nil {
		return noopCommentDispatcher{}
	}
	return dispatcher
}

// FigmaResult reports the outcome of one Figma webhook delivery.
type FigmaResult struct {
	Outcome FigmaOutcome
	Comment model.Comment
	Design  model.Design
}

// SlackResult reports what one Slack message produced across matching profiles.
type SlackResult struct {
	Comments   []model.Comment
	BoardItems []model.BoardItem
}

// Service materializes inbound feedback from every origin into comments or board items.
type Service struct {
	database   *gorm.DB
	directory  Directory
	dispatcher CommentDispatcher
	routing    SlackRouting
	logger     *zap.Logger
	now        func() time.Time
}

// NewService constructs an ingestion Service.
func NewService(database *gorm.DB, directory Directory, dispatcher CommentDispatcher, routing SlackRouting, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if directory == nil {
		directory = NewGormDirectory(database)
	}
	if routing == "" {
		routing = SlackRoutingComment
	}
	return &Service{
		database:   database,
		directory:  directory,
		dispatcher: resolveCommentDispatcher(dispatcher),
		routing:    routing,
		logger:     logger,
		now:        time.Now,
	}
}

// Routing returns the configured Slack routing shape.
func (service *Service) Routing() SlackRouting {
	return service.routing
}

// SubmitWebComment persists a web comment and hands it to the notifier. The notification outcome never affects the result.
func (service *Service) SubmitWebComment(ctx context.Context, submission WebSubmission) (model.Comment, error) {
	comment, err := NormalizeWebSubmission(submission)
	if err != nil {
		return model.Comment{}, err
	}
	if err := service.database.WithContext(ctx).Create(&comment).Error; err != nil {
		return model.Comment{}, fmt.Errorf("save comment: %w", err)
	}
	service.logger.Info(logEventCommentSaved, zap.String("comment_id", comment.ID), zap.String("design_id", comment.DesignID), zap.String("origin", string(comment.Origin)))
	service.dispatcher.Dispatch(ctx, comment)
	return comment, nil
}

// IngestFigmaEvent applies the sync preference filter to a Figma webhook and appends at most one comment.
func (service *Service) IngestFigmaEvent(ctx context.Context, payload FigmaWebhookPayload) (FigmaResult, error) {
	if strings.TrimSpace(payload.EventType) != figmaEventTypeFileComment {
		return FigmaResult{Outcome: FigmaOutcomeIgnoredEvent}, nil
	}
	if payload.Comment == nil {
		return FigmaResult{}, ErrMissingFigmaComment
	}
	if strings.TrimSpace(payload.Comment.Message) == "" {
		return FigmaResult{}, model.ErrEmptyCommentContent
	}

	trackedFile, err := service.directory.TrackedFile(ctx, payload.FileKey)
	if errors.Is(err, ErrFileNotTracked) || errors.Is(err, ErrMissingFileKey) {
		return FigmaResult{Outcome: FigmaOutcomeNotTracked}, nil
	}
	if err != nil {
		return FigmaResult{}, fmt.Errorf("load tracked file: %w", err)
	}

	if !ShouldMaterialize(trackedFile.Preferences, payload.Comment.Resolved) {
		service.logger.Info(logEventFigmaCommentFiltered, zap.String("tracked_file_id", trackedFile.ID))
		return FigmaResult{Outcome: FigmaOutcomeFiltered}, nil
	}

	design, err := service.EnsureDesign(ctx, DesignBinding{
		ProjectID:  trackedFile.ProjectID,
		Name:       trackedFile.FileName,
		SourceType: model.DesignSourceFigma,
		SourceURL:  trackedFile.FileURL,
	})
	if err != nil {
		return FigmaResult{}, err
	}

	comment, err := NormalizeFigmaComment(design.ID, *payload.Comment)
	if err != nil {
		return FigmaResult{}, err
	}
	if err := service.database.WithContext(ctx).Create(&comment).Error; err != nil {
		return FigmaResult{}, fmt.Errorf("save comment: %w", err)
	}
	service.logger.Info(logEventCommentSaved, zap.String("comment_id", comment.ID), zap.String("design_id", design.ID), zap.String("origin", string(comment.Origin)))

	syncedAt := service.now().UTC()
	if err := service.database.WithContext(ctx).
		Model(&model.FigmaTrackedFile{}).
		Where("id = ?", trackedFile.ID).
		Update("last_synced_at", syncedAt).Error; err != nil {
		service.logger.Warn(logEventFigmaLastSyncedFailed, zap.Error(err), zap.String("tracked_file_id", trackedFile.ID))
	}

	return FigmaResult{Outcome: FigmaOutcomeCreated, Comment: comment, Design: design}, nil
}

// IngestSlackMessage routes a Slack message to every profile listening on its channel.
// Profiles without a project are skipped. Messages without text produce nothing.
func (service *Service) IngestSlackMessage(ctx context.Context, message SlackMessage) (SlackResult, error) {
	var result SlackResult
	if !message.IsPlainUserMessage() || strings.TrimSpace(message.Text) == "" {
		return result, nil
	}
	if strings.TrimSpace(message.TeamID) == "" || strings.TrimSpace(message.Channel) == "" {
		return result, nil
	}

	profiles, err := service.directory.ProfilesInTeam(ctx, message.TeamID)
	if err != nil {
		return result, fmt.Errorf("load slack profiles: %w", err)
	}

	for _, profile := range profiles {
		if !profile.SlackListeningChannels.Contains(message.Channel) {
			continue
		}
		project, projectErr := service.directory.FirstOwnedProject(ctx, profile.ID)
		if errors.Is(projectErr, ErrNoOwnedProject) {
			service.logger.Info(logEventSlackProfileSkipped, zap.String("profile_id", profile.ID))
			continue
		}
		if projectErr != nil {
			return result, fmt.Errorf("load owned project: %w", projectErr)
		}

		switch service.routing {
		case SlackRoutingBoard:
			item, itemErr := service.createSlackBoardItem(ctx, profile, project, message)
			if itemErr != nil {
				return result, itemErr
			}
			result.BoardItems = append(result.BoardItems, item)
		default:
			comment, commentErr := service.createSlackComment(ctx, project, message)
			if commentErr != nil {
				return result, commentErr
			}
			result.Comments = append(result.Comments, comment)
		}
		service.logger.Info(logEventSlackMessageRouted, zap.String("profile_id", profile.ID), zap.String("project_id", project.ID), zap.String("routing", string(service.routing)))
	}
	return result, nil
}

func (service *Service) createSlackComment(ctx context.Context, project model.Project, message SlackMessage) (model.Comment, error) {
	design, err := service.EnsureDesign(ctx, DesignBinding{
		ProjectID:  project.ID,
		Name:       model.SlackInboxDesignName,
		SourceType: model.DesignSourceSlack,
	})
	if err != nil {
		return model.Comment{}, err
	}
	comment, err := NormalizeSlackMessage(design.ID, message)
	if err != nil {
		return model.Comment{}, err
	}
	if err := service.database.WithContext(ctx).Create(&comment).Error; err != nil {
		return model.Comment{}, fmt.Errorf("save comment: %w", err)
	}
	return comment, nil
}

func (service *Service) createSlackBoardItem(ctx context.Context, profile model.Profile, project model.Project, message SlackMessage) (model.BoardItem, error) {
	item, err := model.NewBoardItem(model.BoardItemInput{
		UserID:          profile.ID,
		ProjectID:       project.ID,
		Title:           slackBoardItemTitle(message.Text),
		Description:     message.Text,
		Priority:        model.BoardPriorityMedium,
		StakeholderRole: model.SourceTagSlack,
	})
	if err != nil {
		return model.BoardItem{}, err
	}
	if err := service.database.WithContext(ctx).Create(&item).Error; err != nil {
		return model.BoardItem{}, fmt.Errorf("save board item: %w", err)
	}
	return item, nil
}

// DesignBinding identifies the design an external source writes into.
type DesignBinding struct {
	ProjectID  string
	Name       string
	SourceType string
	SourceURL  string
}

func (binding DesignBinding) key(projectID string, name string) string {
	return strings.Join([]string{strings.TrimSpace(binding.SourceType), projectID, name}, designBindingKeySeparator)
}

// EnsureDesign returns the design named by the binding, creating it on first use.
// Concurrent callers converge on one row through the unique binding key.
func (service *Service) EnsureDesign(ctx context.Context, binding DesignBinding) (model.Design, error) {
	projectID := strings.TrimSpace(binding.ProjectID)
	name := strings.TrimSpace(binding.Name)
	if projectID == "" || name == "" {
		return model.Design{}, ErrInvalidDesignBinding
	}
	bindingKey := binding.key(projectID, name)
	database := service.database.WithContext(ctx)

	candidate := model.Design{
		ID:         storage.NewID(),
		ProjectID:  projectID,
		Name:       name,
		SourceType: binding.SourceType,
		SourceURL:  model.StringPointer(binding.SourceURL),
		BindingKey: &bindingKey,
	}
	if err := database.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "binding_key"}},
		DoNothing: true,
	}).Create(&candidate).Error; err != nil {
		return model.Design{}, fmt.Errorf("resolve design: %w", err)
	}

	var design model.Design
	if err := database.Where("binding_key = ?", bindingKey).First(&design).Error; err != nil {
		return model.Design{}, fmt.Errorf("resolve design: %w", err)
	}
	return design, nil
}
