package httpapi

import (
	"encoding/json"
	"time"

	"github.com/MarkoPoloResearchLab/reviu/internal/model"
)

const (
	jsonKeyError   = "error"
	jsonKeySuccess = "success"
	jsonKeyMessage = "message"

	errorValueInvalidJSON           = "Invalid JSON body"
	errorValueUnknownDesign         = "Design not found"
	errorValueUnknownComment        = "Comment not found"
	errorValueUnknownProject        = "Project not found"
	errorValueInvalidShareToken     = "Invalid share link"
	errorValueQueryFailed           = "Query failed"
	errorValueSaveFailed            = "Save failed"
	errorValueNoFeedback            = "No feedback to summarize"
	errorValueSummaryNotFound       = "Summary not found"
	errorValueMissingSummarySlot    = "designId and projectId are required"
	errorValueDuplicateBoardItem    = "A board item with this title already exists for this design"
	errorValueInternal              = "Internal server error"
	errorValueInvalidSignature      = "Invalid signature"
	errorValueInvalidPasscode       = "Invalid passcode"
	errorValueMissingRequiredFields = "Missing required fields"
	errorValueMissingFileURL        = "Missing file URL"
	errorValueInvalidFigmaURL       = "Invalid Figma URL"
	errorValueFigmaNotConnected     = "Figma not connected"
	errorValueFigmaTokenMissing     = "Figma token not configured. Please add it in Settings."
	errorValueFigmaFetchFailed      = "Failed to fetch from Figma API. Check your token."
	errorValueTrackedFileNotFound   = "Tracked file not found"
	errorValueSlackNotConnected     = "Slack not connected"
	errorValueOAuthNotConfigured    = "OAuth not configured"
	errorValueMissingCodeOrState    = "Missing code or state parameter"
	errorValueInvalidState          = "Invalid or expired state"

	messageValueEventNotHandled = "Event type not handled"
	messageValueFileNotTracked  = "File not tracked"
	messageValueFiltered        = "Comment filtered by preferences"
)

type commentResponse struct {
	ID            string     `json:"id"`
	DesignID      string     `json:"design_id"`
	UserID        *string    `json:"user_id"`
	StakeholderID *string    `json:"stakeholder_id"`
	AuthorName    string     `json:"author_name"`
	AuthorEmail   string     `json:"author_email"`
	Origin        string     `json:"origin"`
	SourceTag     string     `json:"source_tag"`
	Content       string     `json:"content"`
	Status        string     `json:"status"`
	Rating        *int       `json:"rating"`
	XPosition     *float64   `json:"x_position"`
	YPosition     *float64   `json:"y_position"`
	PageURL       *string    `json:"page_url"`
	ViewedAt      *time.Time `json:"viewed_at"`
	CreatedAt     time.Time  `json:"created_at"`
}

func newCommentResponse(comment model.Comment) commentResponse {
	return commentResponse{
		ID:            comment.ID,
		DesignID:      comment.DesignID,
		UserID:        comment.UserID,
		StakeholderID: comment.StakeholderID,
		AuthorName:    comment.AuthorName,
		AuthorEmail:   comment.AuthorEmail,
		Origin:        string(comment.Origin),
		SourceTag:     comment.SourceTag(),
		Content:       comment.Content,
		Status:        comment.Status,
		Rating:        comment.Rating,
		XPosition:     comment.XPosition,
		YPosition:     comment.YPosition,
		PageURL:       comment.PageURL,
		ViewedAt:      comment.ViewedAt,
		CreatedAt:     comment.CreatedAt,
	}
}

func newCommentResponses(comments []model.Comment) []commentResponse {
	responses := make([]commentResponse, 0, len(comments))
	for _, comment := range comments {
		responses = append(responses, newCommentResponse(comment))
	}
	return responses
}

type designResponse struct {
	ID             string    `json:"id"`
	ProjectID      string    `json:"project_id"`
	FolderID       *string   `json:"folder_id"`
	Name           string    `json:"name"`
	SourceType     string    `json:"source_type"`
	SourceURL      *string   `json:"source_url"`
	ImageURL       *string   `json:"image_url"`
	ShareableToken *string   `json:"shareable_token"`
	CreatedAt      time.Time `json:"created_at"`
}

func newDesignResponse(design model.Design) designResponse {
	return designResponse{
		ID:             design.ID,
		ProjectID:      design.ProjectID,
		FolderID:       design.FolderID,
		Name:           design.Name,
		SourceType:     design.SourceType,
		SourceURL:      design.SourceURL,
		ImageURL:       design.ImageURL,
		ShareableToken: design.ShareableToken,
		CreatedAt:      design.CreatedAt,
	}
}

type boardItemResponse struct {
	ID              string    `json:"id"`
	UserID          string    `json:"user_id"`
	ProjectID       *string   `json:"project_id"`
	DesignID        *string   `json:"design_id"`
	Title           string    `json:"title"`
	Description     string    `json:"description"`
	Status          string    `json:"status"`
	Priority        string    `json:"priority"`
	StakeholderRole *string   `json:"stakeholder_role"`
	CreatedAt       time.Time `json:"created_at"`
}

func newBoardItemResponse(item model.BoardItem) boardItemResponse {
	return boardItemResponse{
		ID:              item.ID,
		UserID:          item.UserID,
		ProjectID:       item.ProjectID,
		DesignID:        item.DesignID,
		Title:           item.Title,
		Description:     item.Description,
		Status:          item.Status,
		Priority:        item.Priority,
		StakeholderRole: item.StakeholderRole,
		CreatedAt:       item.CreatedAt,
	}
}

type summaryResponse struct {
	ID          string                `json:"id"`
	ProjectID   string                `json:"project_id"`
	DesignID    string                `json:"design_id"`
	SummaryData model.SummaryEnvelope `json:"summary_data"`
	CreatedAt   time.Time             `json:"created_at"`
	UpdatedAt   time.Time             `json:"updated_at"`
}

func newSummaryResponse(summary model.FeedbackSummary) summaryResponse {
	return summaryResponse{
		ID:          summary.ID,
		ProjectID:   summary.ProjectID,
		DesignID:    summary.DesignID,
		SummaryData: summary.SummaryData.Data(),
		CreatedAt:   summary.CreatedAt,
		UpdatedAt:   summary.UpdatedAt,
	}
}

type syncPreferenceResponse struct {
	SyncAllComments      bool     `json:"sync_all_comments"`
	SyncOnlyMentions     bool     `json:"sync_only_mentions"`
	SyncUnresolvedOnly   bool     `json:"sync_unresolved_only"`
	NotificationChannels []string `json:"notification_channels"`
	SyncFrequency        string   `json:"sync_frequency"`
}

type trackedFileResponse struct {
	ID           string                  `json:"id"`
	ProjectID    string                  `json:"project_id"`
	FileKey      string                  `json:"file_key"`
	FileName     string                  `json:"file_name"`
	FileURL      string                  `json:"file_url"`
	LastSyncedAt *time.Time              `json:"last_synced_at"`
	SyncEnabled  bool                    `json:"sync_enabled"`
	Preferences  *syncPreferenceResponse `json:"preferences"`
	CreatedAt    time.Time               `json:"created_at"`
}

func newTrackedFileResponse(file model.FigmaTrackedFile) trackedFileResponse {
	response := trackedFileResponse{
		ID:           file.ID,
		ProjectID:    file.ProjectID,
		FileKey:      file.FileKey,
		FileName:     file.FileName,
		FileURL:      file.FileURL,
		LastSyncedAt: file.LastSyncedAt,
		SyncEnabled:  file.SyncEnabled,
		CreatedAt:    file.CreatedAt,
	}
	if file.Preferences != nil {
		channels := make([]string, 0)
		_ = json.Unmarshal(file.Preferences.NotificationChannels, &channels)
		response.Preferences = &syncPreferenceResponse{
			SyncAllComments:      file.Preferences.SyncAllComments,
			SyncOnlyMentions:     file.Preferences.SyncOnlyMentions,
			SyncUnresolvedOnly:   file.Preferences.SyncUnresolvedOnly,
			NotificationChannels: channels,
			SyncFrequency:        file.Preferences.SyncFrequency,
		}
	}
	return response
}
