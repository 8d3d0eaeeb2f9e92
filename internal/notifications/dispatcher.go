package notifications

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/MarkoPoloResearchLab/reviu/internal/model"
)

// Result names the outcome of one notification attempt.
type Result string

const (
	ResultSent          Result = "sent"
	ResultNotConfigured Result = "not_configured"
	ResultFailed        Result = "failed"

	defaultDispatchTimeout = 10 * time.Second

	logEventNotificationSent          = "notification_sent"
	logEventNotificationNotConfigured = "notification_not_configured"
	logEventNotificationFailed        = "notification_dispatch_failed"
)

// CommentNotifier delivers a rendered comment message to a chat destination.
type CommentNotifier interface {
	NotifyComment(ctx context.Context, target SlackTarget, message CommentMessage) error
}

// Dispatcher resolves the notification destination of a comment and delivers it off the write path.
type Dispatcher struct {
	database  *gorm.DB
	notifier  CommentNotifier
	logger    *zap.Logger
	timeout   time.Duration
	waitGroup sync.WaitGroup
}

// NewDispatcher constructs a Dispatcher. A non-positive timeout selects the default.
func NewDispatcher(database *gorm.DB, notifier CommentNotifier, logger *zap.Logger, timeout time.Duration) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = defaultDispatchTimeout
	}
	return &Dispatcher{
		database: database,
		notifier: notifier,
		logger:   logger,
		timeout:  timeout,
	}
}

// Dispatch starts a detached notification task and returns immediately.
// The task outlives the request context and owns its errors.
func (dispatcher *Dispatcher) Dispatch(ctx context.Context, comment model.Comment) {
	detachedContext := context.WithoutCancel(ctx)
	dispatcher.waitGroup.Add(1)
	go func() {
		defer dispatcher.waitGroup.Done()
		taskContext, cancel := context.WithTimeout(detachedContext, dispatcher.timeout)
		defer cancel()
		result, err := dispatcher.Notify(taskContext, comment)
		switch {
		case err != nil:
			dispatcher.logger.Warn(logEventNotificationFailed, zap.Error(err), zap.String("comment_id", comment.ID))
		case result == ResultNotConfigured:
			dispatcher.logger.Debug(logEventNotificationNotConfigured, zap.String("comment_id", comment.ID))
		case result == ResultSent:
			dispatcher.logger.Info(logEventNotificationSent, zap.String("comment_id", comment.ID))
		}
	}()
}

// Wait blocks until every dispatched task has finished.
func (dispatcher *Dispatcher) Wait() {
	dispatcher.waitGroup.Wait()
}

// Notify walks comment, design, project and owner profile, then makes one delivery attempt.
// Only the web submission path calls it, so the comment's display origin is not consulted.
// Any missing link yields ResultNotConfigured without an error.
func (dispatcher *Dispatcher) Notify(ctx context.Context, comment model.Comment) (Result, error) {
	if dispatcher.notifier == nil || dispatcher.database == nil {
		return ResultNotConfigured, nil
	}

	database := dispatcher.database.WithContext(ctx)

	var design model.Design
	if err := database.First(&design, "id = ?", comment.DesignID).Error; err != nil {
		return lookupResult(err, "design")
	}
	var project model.Project
	if err := database.First(&project, "id = ?", design.ProjectID).Error; err != nil {
		return lookupResult(err, "project")
	}
	var owner model.Profile
	if err := database.First(&owner, "id = ?", project.UserID).Error; err != nil {
		return lookupResult(err, "owner profile")
	}
	if strings.TrimSpace(owner.SlackWebhookURL) == "" {
		return ResultNotConfigured, nil
	}

	notifyErr := dispatcher.notifier.NotifyComment(ctx, SlackTarget{
		WebhookURL: owner.SlackWebhookURL,
		Channel:    owner.SlackChannel,
	}, CommentMessage{
		DesignName:  design.Name,
		ProjectName: project.Name,
		AuthorName:  comment.AuthorName,
		Content:     comment.Content,
		Rating:      comment.Rating,
	})
	if notifyErr != nil {
		return ResultFailed, notifyErr
	}
	return ResultSent, nil
}

func lookupResult(err error, link string) (Result, error) {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ResultNotConfigured, nil
	}
	return ResultFailed, fmt.Errorf("load %s: %w", link, err)
}
