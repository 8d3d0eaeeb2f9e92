package summary

import (
	"fmt"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/MarkoPoloResearchLab/reviu/internal/model"
)

const (
	fallbackMinimumTokenLength = 6
	fallbackTopTokenCount      = 5
	fallbackPatternCount       = 3
	fallbackExampleCount       = 3
	fallbackExampleMaxRunes    = 100
	fallbackNeutralRating      = 3.0
	fallbackGeneralTitle       = "General Feedback"

	positiveRatingThreshold = 4
	negativeRatingThreshold = 2
)

var fallbackPatternPriorities = []string{"critical", "high", "medium"}

type feedbackStats struct {
	AverageRating float64
	Positive      int
	Negative      int
	Total         int
}

type rankedToken struct {
	Token string
	Count int
}

func computeStats(comments []model.Comment) feedbackStats {
	stats := feedbackStats{AverageRating: fallbackNeutralRating, Total: len(comments)}
	ratingSum, ratedCount := 0, 0
	for _, comment := range comments {
		if comment.Rating == nil {
			continue
		}
		rating := *comment.Rating
		ratingSum += rating
		ratedCount++
		if rating >= positiveRatingThreshold {
			stats.Positive++
		}
		if rating <= negativeRatingThreshold {
			stats.Negative++
		}
	}
	if ratedCount > 0 {
		stats.AverageRating = float64(ratingSum) / float64(ratedCount)
	}
	return stats
}

// rankTokens counts lowercase whitespace tokens longer than five characters.
// Ties keep first-appearance order.
func rankTokens(transcript string, limit int) []rankedToken {
	counts := make(map[string]int)
	var order []string
	for _, token := range strings.Fields(strings.ToLower(transcript)) {
		if utf8.RuneCountInString(token) < fallbackMinimumTokenLength {
			continue
		}
		if _, seen := counts[token]; !seen {
			order = append(order, token)
		}
		counts[token]++
	}

	ranked := make([]rankedToken, 0, len(order))
	for _, token := range order {
		ranked = append(ranked, rankedToken{Token: token, Count: counts[token]})
	}
	sort.SliceStable(ranked, func(left, right int) bool {
		return ranked[left].Count > ranked[right].Count
	})
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked
}

// BuildFallback derives a summary from rating partitions and word frequency alone.
func BuildFallback(comments []model.Comment, transcript string) model.SummaryData {
	stats := computeStats(comments)
	return buildFallback(comments, transcript, stats)
}

func buildFallback(comments []model.Comment, transcript string, stats feedbackStats) model.SummaryData {
	topTokens := rankTokens(transcript, fallbackTopTokenCount)

	patterns := make([]model.IdentifiedPattern, 0, fallbackPatternCount)
	for rank, token := range topTokens {
		if rank >= fallbackPatternCount {
			break
		}
		patterns = append(patterns, model.IdentifiedPattern{
			Title:       capitalize(token.Token) + " Issues",
			Priority:    fallbackPatternPriorities[rank],
			Description: fmt.Sprintf("Multiple stakeholders mentioned issues related to %s", token.Token),
			Examples:    examplesContaining(comments, token.Token),
			Mentions:    token.Count,
		})
	}

	if len(patterns) == 0 {
		patterns = append(patterns, generalPattern(comments, stats))
	}

	firstIssue := "Review all feedback for potential improvements"
	if stats.Negative > 0 {
		firstIssue = fmt.Sprintf("Address %d negative feedback item(s) requiring immediate attention", stats.Negative)
	}

	reviewPriority := "high"
	if stats.Negative > stats.Positive {
		reviewPriority = "urgent"
	}
	concernsPriority := "medium"
	if stats.Negative > 0 {
		concernsPriority = "high"
	}
	positivePriority := "low"
	if stats.Positive > 0 {
		positivePriority = "medium"
	}

	return model.SummaryData{
		IdentifiedPatterns: patterns,
		CriticalIssues: []string{
			firstIssue,
			fmt.Sprintf("Analyze %d total feedback items for patterns", stats.Total),
		},
		ActionableNextSteps: []model.ActionableNextStep{
			{
				Title:       "Review High Priority Feedback",
				Description: fmt.Sprintf("Analyze %d concern(s) and %d positive comment(s)", stats.Negative, stats.Positive),
				Tag:         "Usability",
				Priority:    reviewPriority,
			},
			{
				Title:       "Address User Concerns",
				Description: "Focus on resolving the issues identified in low-rated feedback",
				Tag:         "Development",
				Priority:    concernsPriority,
			},
			{
				Title:       "Build on Positive Feedback",
				Description: "Identify and enhance aspects users appreciate",
				Tag:         "Design",
				Priority:    positivePriority,
			},
		},
	}
}

// generalPattern is used when no term qualifies for ranking.
func generalPattern(comments []model.Comment, stats feedbackStats) model.IdentifiedPattern {
	return model.IdentifiedPattern{
		Title:       fallbackGeneralTitle,
		Priority:    "medium",
		Description: fmt.Sprintf("No recurring terms stood out across %d feedback item(s)", stats.Total),
		Examples:    examplesContaining(comments, ""),
		Mentions:    stats.Total,
	}
}

func examplesContaining(comments []model.Comment, token string) []string {
	examples := make([]string, 0, fallbackExampleCount)
	for _, comment := range comments {
		if len(examples) == fallbackExampleCount {
			break
		}
		if !strings.Contains(strings.ToLower(comment.Content), token) {
			continue
		}
		content := comment.Content
		if utf8.RuneCountInString(content) > fallbackExampleMaxRunes {
			content = string([]rune(content)[:fallbackExampleMaxRunes])
		}
		examples = append(examples, content)
	}
	return examples
}

func capitalize(token string) string {
	first, size := utf8.DecodeRuneInString(token)
	if first == utf8.RuneError {
		return token
	}
	return string(unicode.ToUpper(first)) + token[size:]
}
