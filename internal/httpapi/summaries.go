package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/MarkoPoloResearchLab/reviu/internal/model"
	"github.com/MarkoPoloResearchLab/reviu/internal/summary"
)

const (
	defaultStakeholderRole = "Other"

	logEventGenerateSummary = "generate_summary"
	logEventLoadSummary     = "load_summary"
	logEventPromoteInsight  = "promote_insight"
)

// SummaryHandlers exposes the summary engine and insight promotion to the board.
type SummaryHandlers struct {
	database *gorm.DB
	engine   *summary.Engine
	logger   *zap.Logger
}

func NewSummaryHandlers(database *gorm.DB, engine *summary.Engine, logger *zap.Logger) *SummaryHandlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SummaryHandlers{database: database, engine: engine, logger: logger}
}

type generateSummaryRequest struct {
	DesignID  string `json:"designId"`
	ProjectID string `json:"projectId"`
}

type generateSummaryResponse struct {
	Success bool            `json:"success"`
	Summary summaryResponse `json:"summary"`
}

type promoteInsightRequest struct {
	DesignID    string `json:"designId"`
	ProjectID   string `json:"projectId"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Priority    string `json:"priority"`
	Tag         string `json:"tag"`
}

type boardItemListResponse struct {
	BoardItems []boardItemResponse `json:"board_items"`
}

// GenerateSummary summarizes every comment of an owned design and stores the result.
func (handlers *SummaryHandlers) GenerateSummary(context *gin.Context) {
	profile, ok := requireProfile(context)
	if !ok {
		return
	}
	var payload generateSummaryRequest
	if bindErr := context.ShouldBindJSON(&payload); bindErr != nil {
		context.JSON(http.StatusBadRequest, gin.H{jsonKeyError: errorValueInvalidJSON})
		return
	}
	if !handlers.authorizeSlot(context, profile.ID, payload.ProjectID, payload.DesignID) {
		return
	}

	generated, err := handlers.engine.Generate(context.Request.Context(), summary.Request{ProjectID: payload.ProjectID, DesignID: payload.DesignID})
	switch {
	case errors.Is(err, summary.ErrNothingToSummarize):
		context.JSON(http.StatusBadRequest, gin.H{jsonKeyError: errorValueNoFeedback})
		return
	case errors.Is(err, summary.ErrInvalidSlot):
		context.JSON(http.StatusBadRequest, gin.H{jsonKeyError: errorValueMissingSummarySlot})
		return
	case err != nil:
		handlers.logger.Error(logEventGenerateSummary, zap.Error(err))
		context.JSON(http.StatusInternalServerError, gin.H{jsonKeyError: err.Error()})
		return
	}
	context.JSON(http.StatusOK, generateSummaryResponse{Success: true, Summary: newSummaryResponse(generated)})
}

// GetSummary returns the stored summary of an owned design.
func (handlers *SummaryHandlers) GetSummary(context *gin.Context) {
	profile, ok := requireProfile(context)
	if !ok {
		return
	}
	projectID := context.Param("projectId")
	designID := context.Param("designId")
	if !handlers.authorizeSlot(context, profile.ID, projectID, designID) {
		return
	}
	stored, err := handlers.engine.Load(context.Request.Context(), summary.Request{ProjectID: projectID, DesignID: designID})
	switch {
	case errors.Is(err, summary.ErrSummaryNotFound):
		context.JSON(http.StatusNotFound, gin.H{jsonKeyError: errorValueSummaryNotFound})
		return
	case err != nil:
		handlers.logger.Warn(logEventLoadSummary, zap.Error(err))
		context.JSON(http.StatusInternalServerError, gin.H{jsonKeyError: errorValueQueryFailed})
		return
	}
	context.JSON(http.StatusOK, gin.H{"summary": newSummaryResponse(stored)})
}

// PromoteInsight turns a summary pattern or next step into an open board item for the design.
func (handlers *SummaryHandlers) PromoteInsight(context *gin.Context) {
	profile, ok := requireProfile(context)
	if !ok {
		return
	}
	var payload promoteInsightRequest
	if bindErr := context.ShouldBindJSON(&payload); bindErr != nil {
		context.JSON(http.StatusBadRequest, gin.H{jsonKeyError: errorValueInvalidJSON})
		return
	}
	if !handlers.authorizeSlot(context, profile.ID, payload.ProjectID, payload.DesignID) {
		return
	}

	role := strings.TrimSpace(payload.Tag)
	if role == "" {
		role = defaultStakeholderRole
	}
	item, err := model.NewBoardItem(model.BoardItemInput{
		UserID:          profile.ID,
		ProjectID:       payload.ProjectID,
		DesignID:        payload.DesignID,
		Title:           payload.Title,
		Description:     payload.Description,
		Status:          model.BoardItemStatusOpen,
		Priority:        model.BoardPriorityFor(payload.Priority),
		StakeholderRole: role,
	})
	if err != nil {
		context.JSON(http.StatusBadRequest, gin.H{jsonKeyError: err.Error()})
		return
	}

	var duplicates int64
	if err := handlers.database.WithContext(context.Request.Context()).
		Model(&model.BoardItem{}).
		Where("design_id = ? AND title = ?", strings.TrimSpace(payload.DesignID), item.Title).
		Count(&duplicates).Error; err != nil {
		handlers.logger.Warn(logEventPromoteInsight, zap.Error(err))
		context.JSON(http.StatusInternalServerError, gin.H{jsonKeyError: errorValueQueryFailed})
		return
	}
	if duplicates > 0 {
		context.JSON(http.StatusConflict, gin.H{jsonKeyError: errorValueDuplicateBoardItem})
		return
	}
	if err := handlers.database.WithContext(context.Request.Context()).Create(&item).Error; err != nil {
		handlers.logger.Warn(logEventPromoteInsight, zap.Error(err))
		context.JSON(http.StatusInternalServerError, gin.H{jsonKeyError: errorValueSaveFailed})
		return
	}
	context.JSON(http.StatusCreated, newBoardItemResponse(item))
}

// ListDesignBoardItems returns the board items already created for an owned design.
func (handlers *SummaryHandlers) ListDesignBoardItems(context *gin.Context) {
	profile, ok := requireProfile(context)
	if !ok {
		return
	}
	design, err := ownedDesign(handlers.database.WithContext(context.Request.Context()), profile.ID, context.Param("id"))
	if err != nil {
		writeOwnershipError(context, handlers.logger, err, errorValueUnknownDesign)
		return
	}
	var items []model.BoardItem
	if err := handlers.database.WithContext(context.Request.Context()).
		Where("design_id = ?", design.ID).
		Order("created_at ASC").
		Find(&items).Error; err != nil {
		handlers.logger.Warn(logEventPromoteInsight, zap.Error(err))
		context.JSON(http.StatusInternalServerError, gin.H{jsonKeyError: errorValueQueryFailed})
		return
	}
	responses := make([]boardItemResponse, 0, len(items))
	for _, item := range items {
		responses = append(responses, newBoardItemResponse(item))
	}
	context.JSON(http.StatusOK, boardItemListResponse{BoardItems: responses})
}

// authorizeSlot requires both ids and a design that lives in the named project owned by the user.
func (handlers *SummaryHandlers) authorizeSlot(context *gin.Context, userID string, projectID string, designID string) bool {
	if strings.TrimSpace(projectID) == "" || strings.TrimSpace(designID) == "" {
		context.JSON(http.StatusBadRequest, gin.H{jsonKeyError: errorValueMissingSummarySlot})
		return false
	}
	design, err := ownedDesign(handlers.database.WithContext(context.Request.Context()), userID, designID)
	if err != nil {
		writeOwnershipError(context, handlers.logger, err, errorValueUnknownDesign)
		return false
	}
	if design.ProjectID != strings.TrimSpace(projectID) {
		context.JSON(http.StatusNotFound, gin.H{jsonKeyError: errorValueUnknownDesign})
		return false
	}
	return true
}
