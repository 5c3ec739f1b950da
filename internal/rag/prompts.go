package rag

import (
	"fmt"
	"strings"

	"tax-rag/internal/models"
)

// BuildPlanPrompt asks for {"query", "num_results"} with num_results in [minResults, maxResults]
func BuildPlanPrompt(question string, minResults, maxResults int) string {
	return fmt.Sprintf(models.PlanPromptTemplate, minResults, maxResults, question)
}

// BuildAnswerPrompt asks for an Indonesian answer grounded only on context
func BuildAnswerPrompt(question, context string) string {
	return fmt.Sprintf(models.AnswerPromptTemplate, context, question)
}

// JoinPassages concatenates passages with the context delimiter and no trailing delimiter
func JoinPassages(passages []string) string {
	return strings.Join(passages, models.ContextDelimiter)
}

// NormalizePassage removes every newline, without a replacement character
func NormalizePassage(passage string) string {
	return strings.ReplaceAll(passage, "\n", "")
}
