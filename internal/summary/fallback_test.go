package summary

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/MarkoPoloResearchLab/reviu/internal/model"
)

func ratedComment(author string, content string, rating int) model.Comment {
	return model.Comment{AuthorName: author, Content: content, Rating: &rating}
}

func TestBuildTranscriptNumbersEntries(t *testing.T) {
	transcript := BuildTranscript([]model.Comment{
		ratedComment("Ann", "Loved it", 5),
		{AuthorName: "Bo", Content: "No rating here"},
	})
	require.Equal(t, "[1] Ann: Loved it (Rating: 5/5)\n\n[2] Bo: No rating here", transcript)
}

func TestFallbackReportsButtonComplaints(t *testing.T) {
	comments := []model.Comment{
		ratedComment("Ann", "Loved the color scheme", 5),
		ratedComment("Bo", "Button text overflows", 1),
		ratedComment("Cy", "Button too small", 1),
	}

	data := BuildFallback(comments, BuildTranscript(comments))

	require.Equal(t, "Address 2 negative feedback item(s) requiring immediate attention", data.CriticalIssues[0])
	require.Equal(t, "Analyze 3 total feedback items for patterns", data.CriticalIssues[1])
	require.Equal(t, "Analyze 2 concern(s) and 1 positive comment(s)", data.ActionableNextSteps[0].Description)
	require.Equal(t, "urgent", data.ActionableNextSteps[0].Priority)
	require.Equal(t, "high", data.ActionableNextSteps[1].Priority)
	require.Equal(t, "medium", data.ActionableNextSteps[2].Priority)

	var buttonPattern *model.IdentifiedPattern
	for index := range data.IdentifiedPatterns {
		if data.IdentifiedPatterns[index].Title == "Button Issues" {
			buttonPattern = &data.IdentifiedPatterns[index]
		}
	}
	require.NotNil(t, buttonPattern)
	require.GreaterOrEqual(t, buttonPattern.Mentions, 2)
	require.Equal(t, []string{"Button text overflows", "Button too small"}, buttonPattern.Examples)
	require.Equal(t, "Multiple stakeholders mentioned issues related to button", buttonPattern.Description)
}

func TestFallbackShapeMatchesSchema(t *testing.T) {
	comments := []model.Comment{
		{AuthorName: "Ann", Content: "Navigation labels feel inconsistent"},
		{AuthorName: "Bo", Content: "Navigation works but spacing inconsistent"},
	}

	data := BuildFallback(comments, BuildTranscript(comments))

	require.NotEmpty(t, data.IdentifiedPatterns)
	require.Len(t, data.CriticalIssues, 2)
	require.Len(t, data.ActionableNextSteps, 3)
	require.Equal(t, "Review all feedback for potential improvements", data.CriticalIssues[0])
	require.Equal(t, "high", data.ActionableNextSteps[0].Priority)
	require.Equal(t, "medium", data.ActionableNextSteps[1].Priority)
	require.Equal(t, "low", data.ActionableNextSteps[2].Priority)
	require.NoError(t, data.Validate())

	require.Equal(t, data, BuildFallback(comments, BuildTranscript(comments)))
}

func TestFallbackPatternPrioritiesByRank(t *testing.T) {
	comments := []model.Comment{
		{AuthorName: "A", Content: "gallery gallery gallery header header footer"},
	}
	data := BuildFallback(comments, BuildTranscript(comments))

	require.Len(t, data.IdentifiedPatterns, 3)
	require.Equal(t, "Gallery Issues", data.IdentifiedPatterns[0].Title)
	require.Equal(t, "critical", data.IdentifiedPatterns[0].Priority)
	require.Equal(t, 3, data.IdentifiedPatterns[0].Mentions)
	require.Equal(t, "Header Issues", data.IdentifiedPatterns[1].Title)
	require.Equal(t, "high", data.IdentifiedPatterns[1].Priority)
	require.Equal(t, "Footer Issues", data.IdentifiedPatterns[2].Title)
	require.Equal(t, "medium", data.IdentifiedPatterns[2].Priority)
}

func TestRankTokensKeepsFirstAppearanceOnTies(t *testing.T) {
	ranked := rankTokens("zebras apples zebras apples mangos short", 5)
	require.Equal(t, []rankedToken{{Token: "zebras", Count: 2}, {Token: "apples", Count: 2}, {Token: "mangos", Count: 1}}, ranked)
}

func TestFallbackExamplesAreTruncated(t *testing.T) {
	longContent := "Carousel " + strings.Repeat("x", 150)
	comments := []model.Comment{{AuthorName: "A", Content: longContent}}

	data := BuildFallback(comments, BuildTranscript(comments))
	require.NotEmpty(t, data.IdentifiedPatterns)
	for _, pattern := range data.IdentifiedPatterns {
		for _, example := range pattern.Examples {
			require.LessOrEqual(t, len([]rune(example)), 100)
		}
	}
}

func TestComputeStatsIgnoresUnratedComments(t *testing.T) {
	stats := computeStats([]model.Comment{
		{Content: "unrated"},
		ratedComment("A", "good", 4),
		ratedComment("B", "bad", 2),
	})
	require.Equal(t, 1, stats.Positive)
	require.Equal(t, 1, stats.Negative)
	require.Equal(t, 3.0, stats.AverageRating)

	require.Equal(t, 3.0, computeStats([]model.Comment{{Content: "unrated"}}).AverageRating)
}

func TestFallbackNamesGeneralPatternWithoutRankedTerms(t *testing.T) {
	comments := []model.Comment{{AuthorName: "Bo", Content: "ok"}}
	transcript := BuildTranscript(comments)
	require.Equal(t, "[1] Bo: ok", transcript)

	data := BuildFallback(comments, transcript)

	require.Len(t, data.IdentifiedPatterns, 1)
	pattern := data.IdentifiedPatterns[0]
	require.Equal(t, "General Feedback", pattern.Title)
	require.Equal(t, "medium", pattern.Priority)
	require.Equal(t, 1, pattern.Mentions)
	require.Equal(t, []string{"ok"}, pattern.Examples)
	require.NoError(t, data.Validate())
}
