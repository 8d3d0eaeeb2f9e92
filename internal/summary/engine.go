package summary

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/MarkoPoloResearchLab/reviu/internal/model"
	"github.com/MarkoPoloResearchLab/reviu/internal/storage"
)

// State is a step of one summary invocation.
type State string

const (
	StateIdle        State = "idle"
	StateFetching    State = "fetching"
	StateSummarizing State = "summarizing"
	StateFallback    State = "fallback"
	StatePersisting  State = "persisting"
	StateDone        State = "done"
	StateFailed      State = "failed"

	logEventSummaryState      = "summary_state"
	logEventSummaryAIFallback = "summary_ai_fallback"
	logEventSummaryGenerated  = "summary_generated"

	sharedGenerationTimeout = 2 * time.Minute
)

var (
	ErrNothingToSummarize = errors.New("nothing_to_summarize")
	ErrSummaryNotFound    = errors.New("summary_not_found")
	ErrInvalidSlot        = errors.New("invalid_summary_slot")
	errAINotConfigured    = errors.New("ai_not_configured")
)

// Request names the (project, design) slot to summarize.
type Request struct {
	ProjectID string
	DesignID  string
}

func (request Request) normalized() (Request, error) {
	normalized := Request{
		ProjectID: strings.TrimSpace(request.ProjectID),
		DesignID:  strings.TrimSpace(request.DesignID),
	}
	if normalized.ProjectID == "" || normalized.DesignID == "" {
		return Request{}, ErrInvalidSlot
	}
	return normalized, nil
}

func (request Request) key() string {
	return request.ProjectID + "/" + request.DesignID
}

// Engine produces and stores feedback summaries.
type Engine struct {
	database  *gorm.DB
	completer Completer
	logger    *zap.Logger
	now       func() time.Time
	group     singleflight.Group
}

// NewEngine constructs an Engine. A nil completer always takes the fallback path.
func NewEngine(database *gorm.DB, completer Completer, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		database:  database,
		completer: completer,
		logger:    logger,
		now:       time.Now,
	}
}

type invocation struct {
	request Request
	state   State
	logger  *zap.Logger
}

func (run *invocation) advance(next State) {
	run.logger.Debug(logEventSummaryState,
		zap.String("project_id", run.request.ProjectID),
		zap.String("design_id", run.request.DesignID),
		zap.String("from", string(run.state)),
		zap.String("to", string(next)),
	)
	run.state = next
}

// Generate summarizes every comment of the design and replaces the stored summary for the slot.
// Concurrent calls for one slot share a single computation. The shared work is not tied to any
// one caller, so a caller that gives up only abandons its own wait.
func (engine *Engine) Generate(ctx context.Context, request Request) (model.FeedbackSummary, error) {
	normalized, err := request.normalized()
	if err != nil {
		return model.FeedbackSummary{}, err
	}
	sharedContext := context.WithoutCancel(ctx)
	resultChannel := engine.group.DoChan(normalized.key(), func() (interface{}, error) {
		generationContext, cancel := context.WithTimeout(sharedContext, sharedGenerationTimeout)
		defer cancel()
		return engine.generate(generationContext, normalized)
	})
	select {
	case <-ctx.Done():
		return model.FeedbackSummary{}, ctx.Err()
	case result := <-resultChannel:
		if result.Err != nil {
			return model.FeedbackSummary{}, result.Err
		}
		return result.Val.(model.FeedbackSummary), nil
	}
}

func (engine *Engine) generate(ctx context.Context, request Request) (model.FeedbackSummary, error) {
	run := &invocation{request: request, state: StateIdle, logger: engine.logger}

	run.advance(StateFetching)
	var comments []model.Comment
	if err := engine.database.WithContext(ctx).
		Where("design_id = ?", request.DesignID).
		Order("created_at DESC").
		Find(&comments).Error; err != nil {
		run.advance(StateFailed)
		return model.FeedbackSummary{}, fmt.Errorf("load comments: %w", err)
	}
	if len(comments) == 0 {
		run.advance(StateFailed)
		return model.FeedbackSummary{}, ErrNothingToSummarize
	}

	run.advance(StateSummarizing)
	transcript := BuildTranscript(comments)
	source := model.SummarySourceAI
	data, aiErr := engine.summarizeWithAI(ctx, transcript)
	if aiErr != nil {
		run.advance(StateFallback)
		stats := computeStats(comments)
		engine.logger.Warn(logEventSummaryAIFallback,
			zap.Error(aiErr),
			zap.String("design_id", request.DesignID),
			zap.Float64("average_rating", stats.AverageRating),
		)
		data = buildFallback(comments, transcript, stats)
		source = model.SummarySourceFallback
	}

	run.advance(StatePersisting)
	stored, err := engine.upsert(ctx, request, model.SummaryEnvelope{
		SummaryData:   data,
		FeedbackCount: len(comments),
		GeneratedAt:   engine.now().UTC(),
		Source:        source,
	})
	if err != nil {
		run.advance(StateFailed)
		return model.FeedbackSummary{}, err
	}
	run.advance(StateDone)
	engine.logger.Info(logEventSummaryGenerated, zap.String("design_id", request.DesignID), zap.String("source", source), zap.Int("feedback_count", len(comments)))
	return stored, nil
}

func (engine *Engine) summarizeWithAI(ctx context.Context, transcript string) (model.SummaryData, error) {
	if engine.completer == nil {
		return model.SummaryData{}, errAINotConfigured
	}
	content, err := engine.completer.Complete(ctx, systemPrompt, BuildUserPrompt(transcript))
	if err != nil {
		return model.SummaryData{}, err
	}
	return ParseCompletion(content)
}

// upsert replaces the slot's summary_data wholesale.
func (engine *Engine) upsert(ctx context.Context, request Request, envelope model.SummaryEnvelope) (model.FeedbackSummary, error) {
	database := engine.database.WithContext(ctx)
	row := model.FeedbackSummary{
		ID:          storage.NewID(),
		ProjectID:   request.ProjectID,
		DesignID:    request.DesignID,
		SummaryData: datatypes.NewJSONType(envelope),
	}
	if err := database.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "project_id"}, {Name: "design_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"summary_data", "updated_at"}),
	}).Create(&row).Error; err != nil {
		return model.FeedbackSummary{}, fmt.Errorf("save summary: %w", err)
	}
	return engine.Load(ctx, request)
}

// Load returns the stored summary for a slot.
func (engine *Engine) Load(ctx context.Context, request Request) (model.FeedbackSummary, error) {
	normalized, err := request.normalized()
	if err != nil {
		return model.FeedbackSummary{}, err
	}
	var stored model.FeedbackSummary
	err = engine.database.WithContext(ctx).
		Where("project_id = ? AND design_id = ?", normalized.ProjectID, normalized.DesignID).
		First(&stored).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.FeedbackSummary{}, ErrSummaryNotFound
	}
	if err != nil {
		return model.FeedbackSummary{}, fmt.Errorf("load summary: %w", err)
	}
	return stored, nil
}
