package rag

import (
	"context"
	"strings"

	"tax-rag/internal/llmservice"
	"tax-rag/internal/models"
)

// AnswerSynthesizer answers a question from retrieved passages.
// Staying within the passages is asked of the model, not verified.
type AnswerSynthesizer struct {
	llm llmservice.ChatModel
}

func NewAnswerSynthesizer(llm llmservice.ChatModel) *AnswerSynthesizer {
	return &AnswerSynthesizer{llm: llm}
}

func (s *AnswerSynthesizer) Synthesize(ctx context.Context, question string, passages []string) (string, error) {
	prompt := BuildAnswerPrompt(question, JoinPassages(passages))

	answer, err := s.llm.Complete(ctx, models.TaxLegalExpertRole, prompt, false)
	if err != nil {
		return "", models.NewSynthesisError("llm call failed", err)
	}
	if strings.TrimSpace(answer) == "" {
		return "", models.NewSynthesisError("llm returned an empty answer", nil)
	}
	return answer, nil
}
