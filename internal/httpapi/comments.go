package httpapi

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/MarkoPoloResearchLab/reviu/internal/ingest"
	"github.com/MarkoPoloResearchLab/reviu/internal/model"
)

const (
	anonymousAuthorName = "Anonymous"
	inboxPageSize       = 200

	logEventSubmitComment    = "submit_comment"
	logEventUpsertReviewer   = "upsert_stakeholder"
	logEventUpdateComment    = "update_comment"
	logEventListComments     = "list_comments"
	logEventResolveOwnership = "resolve_ownership"
)

var errNotOwned = errors.New("not_owned")

// CommentHandlers serves comment submission, listing and review state.
type CommentHandlers struct {
	database *gorm.DB
	ingest   *ingest.Service
	logger   *zap.Logger
	now      func() time.Time
}

func NewCommentHandlers(database *gorm.DB, ingestService *ingest.Service, logger *zap.Logger) *CommentHandlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CommentHandlers{database: database, ingest: ingestService, logger: logger, now: time.Now}
}

type createCommentRequest struct {
	Content     string              `json:"content"`
	Rating      *int                `json:"rating"`
	XPosition   *float64            `json:"x_position"`
	YPosition   *float64            `json:"y_position"`
	PageURL     string              `json:"page_url"`
	AuthorName  string              `json:"author_name"`
	AuthorEmail string              `json:"author_email"`
	Stakeholder *stakeholderRequest `json:"stakeholder"`
}

type stakeholderRequest struct {
	Name    string `json:"name"`
	Surname string `json:"surname"`
	Email   string `json:"email"`
}

type updateCommentRequest struct {
	Status string `json:"status"`
}

type commentListResponse struct {
	Comments []commentResponse `json:"comments"`
}

type inboxResponse struct {
	Comments    []commentResponse `json:"comments"`
	UnseenCount int64             `json:"unseen_count"`
}

// CreateDesignComment records a comment typed by the authenticated owner of the design.
func (handlers *CommentHandlers) CreateDesignComment(context *gin.Context) {
	profile, ok := requireProfile(context)
	if !ok {
		return
	}
	design, err := ownedDesign(handlers.database.WithContext(context.Request.Context()), profile.ID, context.Param("id"))
	if err != nil {
		handlers.writeOwnershipError(context, err, errorValueUnknownDesign)
		return
	}

	var payload createCommentRequest
	if bindErr := context.ShouldBindJSON(&payload); bindErr != nil {
		context.JSON(http.StatusBadRequest, gin.H{jsonKeyError: errorValueInvalidJSON})
		return
	}

	authorName := strings.TrimSpace(profile.FullName)
	if authorName == "" {
		authorName = profile.Email
	}
	handlers.submit(context, ingest.WebSubmission{
		DesignID:    design.ID,
		UserID:      profile.ID,
		AuthorName:  authorName,
		AuthorEmail: profile.Email,
		Content:     payload.Content,
		Rating:      payload.Rating,
		XPosition:   payload.XPosition,
		YPosition:   payload.YPosition,
		PageURL:     payload.PageURL,
	})
}

// CreateSharedComment records a comment submitted through a design share link.
// Identified reviewers are upserted as stakeholders by email.
func (handlers *CommentHandlers) CreateSharedComment(context *gin.Context) {
	design, found := handlers.sharedDesign(context)
	if !found {
		return
	}

	var payload createCommentRequest
	if bindErr := context.ShouldBindJSON(&payload); bindErr != nil {
		context.JSON(http.StatusBadRequest, gin.H{jsonKeyError: errorValueInvalidJSON})
		return
	}

	submission := ingest.WebSubmission{
		DesignID:    design.ID,
		AuthorName:  strings.TrimSpace(payload.AuthorName),
		AuthorEmail: strings.TrimSpace(payload.AuthorEmail),
		Content:     payload.Content,
		Rating:      payload.Rating,
		XPosition:   payload.XPosition,
		YPosition:   payload.YPosition,
		PageURL:     payload.PageURL,
	}
	if submission.AuthorName == "" {
		submission.AuthorName = anonymousAuthorName
	}

	if payload.Stakeholder != nil {
		stakeholder, err := handlers.upsertStakeholder(context, *payload.Stakeholder)
		if err != nil {
			if errors.Is(err, model.ErrInvalidStakeholderEmail) || errors.Is(err, model.ErrInvalidStakeholderName) {
				context.JSON(http.StatusBadRequest, gin.H{jsonKeyError: err.Error()})
				return
			}
			handlers.logger.Warn(logEventUpsertReviewer, zap.Error(err))
			context.JSON(http.StatusInternalServerError, gin.H{jsonKeyError: errorValueSaveFailed})
			return
		}
		submission.StakeholderID = stakeholder.ID
		submission.AuthorName = stakeholder.DisplayName()
		submission.AuthorEmail = stakeholder.Email
	}
	handlers.submit(context, submission)
}

func (handlers *CommentHandlers) submit(context *gin.Context, submission ingest.WebSubmission) {
	comment, err := handlers.ingest.SubmitWebComment(context.Request.Context(), submission)
	if err != nil {
		if isCommentValidationError(err) {
			context.JSON(http.StatusBadRequest, gin.H{jsonKeyError: err.Error()})
			return
		}
		handlers.logger.Warn(logEventSubmitComment, zap.Error(err))
		context.JSON(http.StatusInternalServerError, gin.H{jsonKeyError: errorValueSaveFailed})
		return
	}
	context.JSON(http.StatusCreated, newCommentResponse(comment))
}

func (handlers *CommentHandlers) upsertStakeholder(context *gin.Context, request stakeholderRequest) (model.Stakeholder, error) {
	candidate, err := model.NewStakeholder(model.StakeholderInput{
		Name:    request.Name,
		Surname: request.Surname,
		Email:   request.Email,
	})
	if err != nil {
		return model.Stakeholder{}, err
	}
	var stakeholder model.Stakeholder
	err = handlers.database.WithContext(context.Request.Context()).
		Where(model.Stakeholder{Email: candidate.Email}).
		Assign(model.Stakeholder{Name: candidate.Name, Surname: candidate.Surname}).
		Attrs(model.Stakeholder{ID: candidate.ID}).
		FirstOrCreate(&stakeholder).Error
	return stakeholder, err
}

// ListSharedComments returns the comments of a shared design, oldest first.
// A page_url query narrows the list to that page plus page-less comments.
func (handlers *CommentHandlers) ListSharedComments(context *gin.Context) {
	design, found := handlers.sharedDesign(context)
	if !found {
		return
	}
	query := handlers.database.WithContext(context.Request.Context()).Where("design_id = ?", design.ID)
	if pageURL := strings.TrimSpace(context.Query("page_url")); pageURL != "" {
		query = query.Where("(page_url = ? OR page_url IS NULL)", pageURL)
	}
	var comments []model.Comment
	if err := query.Order("created_at ASC").Find(&comments).Error; err != nil {
		handlers.logger.Warn(logEventListComments, zap.Error(err))
		context.JSON(http.StatusInternalServerError, gin.H{jsonKeyError: errorValueQueryFailed})
		return
	}
	context.JSON(http.StatusOK, commentListResponse{Comments: newCommentResponses(comments)})
}

// ListDesignComments returns the comments of an owned design, newest first.
func (handlers *CommentHandlers) ListDesignComments(context *gin.Context) {
	profile, ok := requireProfile(context)
	if !ok {
		return
	}
	design, err := ownedDesign(handlers.database.WithContext(context.Request.Context()), profile.ID, context.Param("id"))
	if err != nil {
		handlers.writeOwnershipError(context, err, errorValueUnknownDesign)
		return
	}
	var comments []model.Comment
	if err := handlers.database.WithContext(context.Request.Context()).
		Where("design_id = ?", design.ID).
		Order("created_at DESC").
		Find(&comments).Error; err != nil {
		handlers.logger.Warn(logEventListComments, zap.Error(err))
		context.JSON(http.StatusInternalServerError, gin.H{jsonKeyError: errorValueQueryFailed})
		return
	}
	context.JSON(http.StatusOK, commentListResponse{Comments: newCommentResponses(comments)})
}

// UpdateCommentStatus moves a comment between open, resolved and archived.
func (handlers *CommentHandlers) UpdateCommentStatus(context *gin.Context) {
	profile, ok := requireProfile(context)
	if !ok {
		return
	}
	var payload updateCommentRequest
	if bindErr := context.ShouldBindJSON(&payload); bindErr != nil {
		context.JSON(http.StatusBadRequest, gin.H{jsonKeyError: errorValueInvalidJSON})
		return
	}
	status := strings.TrimSpace(payload.Status)
	if err := model.ValidateCommentStatus(status); err != nil {
		context.JSON(http.StatusBadRequest, gin.H{jsonKeyError: err.Error()})
		return
	}

	comment, err := handlers.ownedComment(context, profile.ID)
	if err != nil {
		handlers.writeOwnershipError(context, err, errorValueUnknownComment)
		return
	}
	if err := handlers.database.WithContext(context.Request.Context()).Model(&comment).Update("status", status).Error; err != nil {
		handlers.logger.Warn(logEventUpdateComment, zap.Error(err))
		context.JSON(http.StatusInternalServerError, gin.H{jsonKeyError: errorValueSaveFailed})
		return
	}
	comment.Status = status
	context.JSON(http.StatusOK, newCommentResponse(comment))
}

// MarkCommentViewed stamps viewed_at the first time the owner opens a comment.
func (handlers *CommentHandlers) MarkCommentViewed(context *gin.Context) {
	profile, ok := requireProfile(context)
	if !ok {
		return
	}
	comment, err := handlers.ownedComment(context, profile.ID)
	if err != nil {
		handlers.writeOwnershipError(context, err, errorValueUnknownComment)
		return
	}
	if comment.MarkViewed(handlers.now().UTC()) {
		if err := handlers.database.WithContext(context.Request.Context()).
			Model(&model.Comment{}).
			Where("id = ? AND viewed_at IS NULL", comment.ID).
			Update("viewed_at", comment.ViewedAt).Error; err != nil {
			handlers.logger.Warn(logEventUpdateComment, zap.Error(err))
			context.JSON(http.StatusInternalServerError, gin.H{jsonKeyError: errorValueSaveFailed})
			return
		}
	}
	context.JSON(http.StatusOK, newCommentResponse(comment))
}

// Inbox lists recent comments across every project of the profile with the unseen count.
func (handlers *CommentHandlers) Inbox(context *gin.Context) {
	profile, ok := requireProfile(context)
	if !ok {
		return
	}
	ownedComments := func() *gorm.DB {
		return handlers.database.WithContext(context.Request.Context()).
			Model(&model.Comment{}).
			Joins("JOIN designs ON designs.id = comments.design_id").
			Joins("JOIN projects ON projects.id = designs.project_id").
			Where("projects.user_id = ?", profile.ID)
	}

	var comments []model.Comment
	if err := ownedComments().Order("comments.created_at DESC").Limit(inboxPageSize).Find(&comments).Error; err != nil {
		handlers.logger.Warn(logEventListComments, zap.Error(err))
		context.JSON(http.StatusInternalServerError, gin.H{jsonKeyError: errorValueQueryFailed})
		return
	}
	var unseenCount int64
	if err := ownedComments().Where("comments.viewed_at IS NULL").Count(&unseenCount).Error; err != nil {
		handlers.logger.Warn(logEventListComments, zap.Error(err))
		context.JSON(http.StatusInternalServerError, gin.H{jsonKeyError: errorValueQueryFailed})
		return
	}
	context.JSON(http.StatusOK, inboxResponse{Comments: newCommentResponses(comments), UnseenCount: unseenCount})
}

func (handlers *CommentHandlers) sharedDesign(context *gin.Context) (model.Design, bool) {
	token := strings.TrimSpace(context.Param("token"))
	if token == "" {
		context.JSON(http.StatusNotFound, gin.H{jsonKeyError: errorValueInvalidShareToken})
		return model.Design{}, false
	}
	var design model.Design
	err := handlers.database.WithContext(context.Request.Context()).Where("shareable_token = ?", token).Take(&design).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		context.JSON(http.StatusNotFound, gin.H{jsonKeyError: errorValueInvalidShareToken})
		return model.Design{}, false
	}
	if err != nil {
		handlers.logger.Warn(logEventResolveOwnership, zap.Error(err))
		context.JSON(http.StatusInternalServerError, gin.H{jsonKeyError: errorValueQueryFailed})
		return model.Design{}, false
	}
	return design, true
}

func (handlers *CommentHandlers) ownedComment(context *gin.Context, userID string) (model.Comment, error) {
	var comment model.Comment
	err := handlers.database.WithContext(context.Request.Context()).
		Joins("JOIN designs ON designs.id = comments.design_id").
		Joins("JOIN projects ON projects.id = designs.project_id").
		Where("comments.id = ? AND projects.user_id = ?", strings.TrimSpace(context.Param("id")), userID).
		Take(&comment).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.Comment{}, errNotOwned
	}
	return comment, err
}

func (handlers *CommentHandlers) writeOwnershipError(context *gin.Context, err error, notFoundMessage string) {
	writeOwnershipError(context, handlers.logger, err, notFoundMessage)
}

func writeOwnershipError(context *gin.Context, logger *zap.Logger, err error, notFoundMessage string) {
	if errors.Is(err, errNotOwned) {
		context.JSON(http.StatusNotFound, gin.H{jsonKeyError: notFoundMessage})
		return
	}
	logger.Warn(logEventResolveOwnership, zap.Error(err))
	context.JSON(http.StatusInternalServerError, gin.H{jsonKeyError: errorValueQueryFailed})
}

// ownedDesign loads a design whose project belongs to the user.
func ownedDesign(database *gorm.DB, userID string, designID string) (model.Design, error) {
	var design model.Design
	err := database.
		Joins("JOIN projects ON projects.id = designs.project_id").
		Where("designs.id = ? AND projects.user_id = ?", strings.TrimSpace(designID), userID).
		Take(&design).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.Design{}, errNotOwned
	}
	return design, err
}

func ownedProject(database *gorm.DB, userID string, projectID string) (model.Project, error) {
	var project model.Project
	err := database.Where("id = ? AND user_id = ?", strings.TrimSpace(projectID), userID).Take(&project).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.Project{}, errNotOwned
	}
	return project, err
}

func isCommentValidationError(err error) bool {
	return errors.Is(err, model.ErrInvalidCommentDesignID) ||
		errors.Is(err, model.ErrEmptyCommentContent) ||
		errors.Is(err, model.ErrInvalidRating) ||
		errors.Is(err, model.ErrUnpairedPosition) ||
		errors.Is(err, model.ErrInvalidCommentStatus) ||
		errors.Is(err, model.ErrInvalidCommentOrigin)
}
