package domain

import "strings"

var (
	highPriorityKeywords   = []string{"urgent", "critical", "important", "fix"}
	mediumPriorityKeywords = []string{"soon", "next", "enhance"}

	bugFixKeywords      = []string{"fix", "bug", "broken", "error"}
	refactorKeywords    = []string{"refactor", "clean up", "cleanup", "restructure"}
	enhancementKeywords = []string{"improve", "enhance", "optimize", "update"}
)

// ClassifyPriority derives a priority from free text. Matching is a
// case-insensitive substring search, so "fixes" and "prefix" both count as "fix".
func ClassifyPriority(text string) Priority {
	lower := strings.ToLower(text)
	switch {
	case containsAny(lower, highPriorityKeywords):
		return PriorityHigh
	case containsAny(lower, mediumPriorityKeywords):
		return PriorityMedium
	default:
		return PriorityLow
	}
}

// ClassifyType derives a task type from free text.
func ClassifyType(text string) TaskType {
	lower := strings.ToLower(text)
	switch {
	case containsAny(lower, bugFixKeywords):
		return TaskTypeBugFix
	case containsAny(lower, refactorKeywords):
		return TaskTypeRefactor
	case containsAny(lower, enhancementKeywords):
		return TaskTypeEnhancement
	default:
		return TaskTypeFeature
	}
}

func containsAny(s string, keywords []string) bool {
	for _, keyword := range keywords {
		if strings.Contains(s, keyword) {
			return true
		}
	}
	return false
}
