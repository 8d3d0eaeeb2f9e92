package summary

import (
	"fmt"
	"strings"

	"github.com/MarkoPoloResearchLab/reviu/internal/model"
)

const (
	systemPrompt = "You are an expert UX analyst. Always respond with valid JSON only, no markdown formatting."

	userPromptTemplate = `You are an expert UX analyst. Analyze the following design feedback and identify patterns, critical issues, and actionable next steps.

Feedback:
%s

Return ONLY a valid JSON object (no markdown, no explanation) with this exact structure:
{
  "identifiedPatterns": [
    {
      "title": "Pattern name (e.g., 'Button Colors & Visibility')",
      "priority": "critical",
      "description": "Brief description of the pattern",
      "examples": ["Example quote 1", "Example quote 2", "Example quote 3"],
      "mentions": 5
    }
  ],
  "criticalIssues": [
    "Issue description 1",
    "Issue description 2",
    "Issue description 3"
  ],
  "actionableNextSteps": [
    {
      "title": "Action title",
      "description": "Detailed description of what needs to be done",
      "tag": "Usability",
      "priority": "urgent"
    }
  ]
}

Rules:
- Identify 3-5 repeating patterns across feedback
- priority for patterns: "critical", "high", "medium", or "low"
- Provide 3-5 example quotes per pattern (exact quotes from feedback when possible)
- Extract 2-4 critical issues (high-level problems)
- Create 3-5 actionable next steps
- tag for next steps: "Usability", "Development", "Copy", "Design", "Performance", or "Other"
- priority for next steps: "urgent", "high", "medium", or "low"
- Be specific and actionable`

	transcriptEntrySeparator = "\n\n"
)

// BuildTranscript numbers the comments in the order given as "[i] author: content (Rating: n/5)".
func BuildTranscript(comments []model.Comment) string {
	entries := make([]string, 0, len(comments))
	for index, comment := range comments {
		entry := fmt.Sprintf("[%d] %s: %s", index+1, comment.AuthorName, comment.Content)
		if comment.Rating != nil && *comment.Rating > 0 {
			entry += fmt.Sprintf(" (Rating: %d/5)", *comment.Rating)
		}
		entries = append(entries, entry)
	}
	return strings.Join(entries, transcriptEntrySeparator)
}

// BuildUserPrompt embeds the transcript into the analysis instructions and output schema.
func BuildUserPrompt(transcript string) string {
	return fmt.Sprintf(userPromptTemplate, transcript)
}
