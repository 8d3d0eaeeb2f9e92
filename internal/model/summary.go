package model

import (
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"gorm.io/datatypes"
)

const (
	SummarySourceAI       = "ai"
	SummarySourceFallback = "fallback"
)

// Pattern priorities, next-step priorities and next-step tags accepted in a summary.
var (
	PatternPriorities = []string{"critical", "high", "medium", "low"}
	StepPriorities    = []string{"urgent", "high", "medium", "low"}
	StepTags          = []string{"Usability", "Development", "Copy", "Design", "Performance", "Other"}
)

// IdentifiedPattern is a recurring theme across the comments of a design.
type IdentifiedPattern struct {
	Title       string   `json:"title"`
	Priority    string   `json:"priority"`
	Description string   `json:"description"`
	Examples    []string `json:"examples"`
	Mentions    int      `json:"mentions"`
}

// ActionableNextStep is a follow-up task suggested by a summary.
type ActionableNextStep struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Tag         string `json:"tag"`
	Priority    string `json:"priority"`
}

// SummaryData is the structured digest produced by either summarization path.
type SummaryData struct {
	IdentifiedPatterns  []IdentifiedPattern  `json:"identifiedPatterns"`
	CriticalIssues      []string             `json:"criticalIssues"`
	ActionableNextSteps []ActionableNextStep `json:"actionableNextSteps"`
}

// SummaryEnvelope is the stored summary_data blob.
type SummaryEnvelope struct {
	SummaryData
	FeedbackCount int       `json:"feedbackCount"`
	GeneratedAt   time.Time `json:"generated_at"`
	Source        string    `json:"source"`
}

// Validate checks a pattern against the summary schema.
func (pattern IdentifiedPattern) Validate() error {
	return validation.ValidateStruct(&pattern,
		validation.Field(&pattern.Title, validation.Required),
		validation.Field(&pattern.Priority, validation.Required, validation.In(toInterfaces(PatternPriorities)...)),
		validation.Field(&pattern.Mentions, validation.Min(0)),
	)
}

// Validate checks a next step against the summary schema.
func (step ActionableNextStep) Validate() error {
	return validation.ValidateStruct(&step,
		validation.Field(&step.Title, validation.Required),
		validation.Field(&step.Tag, validation.Required, validation.In(toInterfaces(StepTags)...)),
		validation.Field(&step.Priority, validation.Required, validation.In(toInterfaces(StepPriorities)...)),
	)
}

// Validate requires every section to be present and every entry to be well formed.
func (data SummaryData) Validate() error {
	return validation.ValidateStruct(&data,
		validation.Field(&data.IdentifiedPatterns, validation.Required),
		validation.Field(&data.CriticalIssues, validation.Required, validation.Each(validation.Required)),
		validation.Field(&data.ActionableNextSteps, validation.Required),
	)
}

func toInterfaces(values []string) []interface{} {
	converted := make([]interface{}, len(values))
	for index, value := range values {
		converted[index] = value
	}
	return converted
}

// FeedbackSummary caches the digest of one design, keyed by (project, design).
type FeedbackSummary struct {
	ID          string                              `gorm:"primaryKey;size:36"`
	ProjectID   string                              `gorm:"not null;size:36;uniqueIndex:idx_feedback_summaries_slot"`
	DesignID    string                              `gorm:"not null;size:36;uniqueIndex:idx_feedback_summaries_slot"`
	SummaryData datatypes.JSONType[SummaryEnvelope] `gorm:"not null"`
	CreatedAt   time.Time                           `gorm:"autoCreateTime"`
	UpdatedAt   time.Time                           `gorm:"autoUpdateTime"`
}
