package summary_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/MarkoPoloResearchLab/reviu/internal/model"
	"github.com/MarkoPoloResearchLab/reviu/internal/storage"
	"github.com/MarkoPoloResearchLab/reviu/internal/summary"
	"github.com/MarkoPoloResearchLab/reviu/internal/testutil"
)

const aiCompletion = `{
  "identifiedPatterns": [{"title": "Button Sizing", "priority": "critical", "description": "Buttons are too small", "examples": ["Button too small"], "mentions": 2}],
  "criticalIssues": ["Primary actions are hard to hit", "Text overflows"],
  "actionableNextSteps": [{"title": "Enlarge buttons", "description": "Increase tap targets", "tag": "Usability", "priority": "urgent"}]
}`

type scriptedCompleter struct {
	mutex     sync.Mutex
	responses []string
	errs      []error
	prompts   []string
}

func (completer *scriptedCompleter) Complete(_ context.Context, _ string, userPrompt string) (string, error) {
	completer.mutex.Lock()
	defer completer.mutex.Unlock()
	index := len(completer.prompts)
	completer.prompts = append(completer.prompts, userPrompt)
	var err error
	if index < len(completer.errs) {
		err = completer.errs[index]
	}
	response := ""
	if index < len(completer.responses) {
		response = completer.responses[index]
	}
	return response, err
}

type summaryFixture struct {
	database *gorm.DB
	request  summary.Request
}

func newSummaryFixture(testingT *testing.T) summaryFixture {
	testingT.Helper()
	database := testutil.NewSQLiteTestDatabase(testingT).OpenMigrated(testingT)
	profile := model.Profile{ID: storage.NewID(), Email: "owner@example.com", AccessToken: storage.NewShareToken()}
	require.NoError(testingT, database.Create(&profile).Error)
	project := model.Project{ID: storage.NewID(), UserID: profile.ID, Name: "Storefront"}
	require.NoError(testingT, database.Create(&project).Error)
	design := model.Design{ID: storage.NewID(), ProjectID: project.ID, Name: "Checkout", SourceType: model.DesignSourceManual}
	require.NoError(testingT, database.Create(&design).Error)
	return summaryFixture{database: database, request: summary.Request{ProjectID: project.ID, DesignID: design.ID}}
}

func (fixture summaryFixture) addComment(testingT *testing.T, author string, content string, rating int) {
	testingT.Helper()
	comment, err := model.NewComment(model.CommentInput{
		DesignID:   fixture.request.DesignID,
		AuthorName: author,
		Content:    content,
		Rating:     &rating,
	})
	require.NoError(testingT, err)
	require.NoError(testingT, fixture.database.Create(&comment).Error)
}

func (fixture summaryFixture) summaryCount(testingT *testing.T) int64 {
	testingT.Helper()
	var count int64
	require.NoError(testingT, fixture.database.Model(&model.FeedbackSummary{}).Count(&count).Error)
	return count
}

func TestGenerateWithoutCommentsFails(t *testing.T) {
	fixture := newSummaryFixture(t)
	engine := summary.NewEngine(fixture.database, nil, zap.NewNop())

	_, err := engine.Generate(context.Background(), fixture.request)
	require.ErrorIs(t, err, summary.ErrNothingToSummarize)
	require.Zero(t, fixture.summaryCount(t))

	_, err = engine.Load(context.Background(), fixture.request)
	require.ErrorIs(t, err, summary.ErrSummaryNotFound)
}

func TestGenerateRejectsIncompleteSlot(t *testing.T) {
	engine := summary.NewEngine(nil, nil, zap.NewNop())
	_, err := engine.Generate(context.Background(), summary.Request{DesignID: "design"})
	require.ErrorIs(t, err, summary.ErrInvalidSlot)
}

func TestGenerateAdoptsValidAIOutput(t *testing.T) {
	fixture := newSummaryFixture(t)
	fixture.addComment(t, "Bo", "Button too small", 1)
	completer := &scriptedCompleter{responses: []string{"```json\n" + aiCompletion + "\n```"}}
	engine := summary.NewEngine(fixture.database, completer, zap.NewNop())

	stored, err := engine.Generate(context.Background(), fixture.request)
	require.NoError(t, err)

	envelope := stored.SummaryData.Data()
	require.Equal(t, model.SummarySourceAI, envelope.Source)
	require.Equal(t, "Button Sizing", envelope.IdentifiedPatterns[0].Title)
	require.Equal(t, 1, envelope.FeedbackCount)
	require.False(t, envelope.GeneratedAt.IsZero())
	require.Len(t, completer.prompts, 1)
	require.Contains(t, completer.prompts[0], "[1] Bo: Button too small (Rating: 1/5)")
}

func TestGenerateFallsBackWhenAIFails(t *testing.T) {
	testCases := []struct {
		name      string
		completer summary.Completer
	}{
		{name: "not configured", completer: nil},
		{name: "transport error", completer: &scriptedCompleter{errs: []error{errors.New("connection refused")}}},
		{name: "prose answer", completer: &scriptedCompleter{responses: []string{"Sorry, no JSON today"}}},
		{name: "schema violation", completer: &scriptedCompleter{responses: []string{`{"identifiedPatterns": [], "criticalIssues": ["x"], "actionableNextSteps": []}`}}},
	}

	for _, testCase := range testCases {
		testCase := testCase
		t.Run(testCase.name, func(testingT *testing.T) {
			fixture := newSummaryFixture(testingT)
			fixture.addComment(testingT, "Ann", "Loved the color scheme", 5)
			fixture.addComment(testingT, "Bo", "Button text overflows", 1)
			fixture.addComment(testingT, "Cy", "Button too small", 1)
			engine := summary.NewEngine(fixture.database, testCase.completer, zap.NewNop())

			stored, err := engine.Generate(context.Background(), fixture.request)
			require.NoError(testingT, err)

			envelope := stored.SummaryData.Data()
			require.Equal(testingT, model.SummarySourceFallback, envelope.Source)
			require.NotEmpty(testingT, envelope.IdentifiedPatterns)
			require.Len(testingT, envelope.CriticalIssues, 2)
			require.Len(testingT, envelope.ActionableNextSteps, 3)
			require.Equal(testingT, 3, envelope.FeedbackCount)
			require.Equal(testingT, "Address 2 negative feedback item(s) requiring immediate attention", envelope.CriticalIssues[0])
		})
	}
}

func TestGenerateReplacesPriorSummary(t *testing.T) {
	fixture := newSummaryFixture(t)
	fixture.addComment(t, "Bo", "Button too small", 1)
	completer := &scriptedCompleter{
		responses: []string{aiCompletion},
		errs:      []error{nil, errors.New("rate limited")},
	}
	engine := summary.NewEngine(fixture.database, completer, zap.NewNop())

	first, err := engine.Generate(context.Background(), fixture.request)
	require.NoError(t, err)
	require.Equal(t, model.SummarySourceAI, first.SummaryData.Data().Source)

	fixture.addComment(t, "Dee", "Spacing between sections is uneven", 3)
	second, err := engine.Generate(context.Background(), fixture.request)
	require.NoError(t, err)

	require.Equal(t, int64(1), fixture.summaryCount(t))
	require.Equal(t, first.ID, second.ID)

	loaded, err := engine.Load(context.Background(), fixture.request)
	require.NoError(t, err)
	envelope := loaded.SummaryData.Data()
	require.Equal(t, model.SummarySourceFallback, envelope.Source)
	require.Equal(t, 2, envelope.FeedbackCount)
	for _, pattern := range envelope.IdentifiedPatterns {
		require.NotEqual(t, "Button Sizing", pattern.Title)
	}
}

func TestGenerateOrdersTranscriptNewestFirst(t *testing.T) {
	fixture := newSummaryFixture(t)
	now := time.Now().UTC()
	for _, entry := range []struct {
		author    string
		content   string
		rating    int
		createdAt time.Time
	}{
		{author: "New", content: "second comment", rating: 4, createdAt: now},
		{author: "Old", content: "first comment", rating: 3, createdAt: now.Add(-24 * time.Hour)},
	} {
		rating := entry.rating
		comment, err := model.NewComment(model.CommentInput{DesignID: fixture.request.DesignID, AuthorName: entry.author, Content: entry.content, Rating: &rating})
		require.NoError(t, err)
		comment.CreatedAt = entry.createdAt
		require.NoError(t, fixture.database.Create(&comment).Error)
	}

	completer := &scriptedCompleter{errs: []error{errors.New("offline")}}
	engine := summary.NewEngine(fixture.database, completer, zap.NewNop())
	_, err := engine.Generate(context.Background(), fixture.request)
	require.NoError(t, err)

	require.Contains(t, completer.prompts[0], "[1] New: second comment (Rating: 4/5)\n\n[2] Old: first comment (Rating: 3/5)")
}

type gatedCompleter struct {
	started chan struct{}
	release chan struct{}
	once    sync.Once
}

func (completer *gatedCompleter) Complete(ctx context.Context, _ string, _ string) (string, error) {
	completer.once.Do(func() { close(completer.started) })
	select {
	case <-completer.release:
		return aiCompletion, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func TestGenerateSharedWorkSurvivesCancelledCaller(t *testing.T) {
	fixture := newSummaryFixture(t)
	fixture.addComment(t, "Bo", "Button too small", 1)
	completer := &gatedCompleter{started: make(chan struct{}), release: make(chan struct{})}
	engine := summary.NewEngine(fixture.database, completer, zap.NewNop())

	firstContext, cancelFirst := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := engine.Generate(firstContext, fixture.request)
		firstErr <- err
	}()
	<-completer.started

	type outcome struct {
		stored model.FeedbackSummary
		err    error
	}
	second := make(chan outcome, 1)
	go func() {
		stored, err := engine.Generate(context.Background(), fixture.request)
		second <- outcome{stored: stored, err: err}
	}()
	time.Sleep(50 * time.Millisecond)

	cancelFirst()
	require.ErrorIs(t, <-firstErr, context.Canceled)

	close(completer.release)
	joined := <-second
	require.NoError(t, joined.err)
	require.Equal(t, model.SummarySourceAI, joined.stored.SummaryData.Data().Source)
	require.Equal(t, int64(1), fixture.summaryCount(t))
}
