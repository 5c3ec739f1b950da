// Package chat keeps multi-turn conversations in memory.
package chat

import (
	"context"
	"strings"
	"sync"

	"tax-rag/internal/llmservice"
	"tax-rag/internal/models"
)

// Conversation is one interactive chat
type Conversation interface {
	Send(ctx context.Context, text string) (string, error)
	History() []models.Message
}

// Session is a free conversation with the model. The whole history is sent
// on every turn.
type Session struct {
	llm llmservice.ChatModel

	mu       sync.Mutex
	messages []models.Message
}

func NewSession(llm llmservice.ChatModel) *Session {
	return &Session{
		llm:      llm,
		messages: []models.Message{{Role: models.RoleSystem, Content: models.AssistantRole}},
	}
}

// Send appends text as a user turn and returns the reply. A failed call
// leaves the history as it was.
func (s *Session) Send(ctx context.Context, text string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.messages = append(s.messages, models.Message{Role: models.RoleUser, Content: text})
	reply, err := s.llm.Chat(ctx, s.messages)
	if err != nil {
		s.messages = s.messages[:len(s.messages)-1]
		return "", err
	}
	s.messages = append(s.messages, models.Message{Role: models.RoleAssistant, Content: reply})
	return reply, nil
}

func (s *Session) History() []models.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Message(nil), s.messages...)
}

type Answerer interface {
	Answer(ctx context.Context, question string) (string, error)
}

// RAGSession answers every turn through the statute pipeline. Turns are
// independent; the history is only kept for display.
type RAGSession struct {
	answerer Answerer

	mu       sync.Mutex
	messages []models.Message
}

func NewRAGSession(answerer Answerer) *RAGSession {
	return &RAGSession{answerer: answerer}
}

func (s *RAGSession) Send(ctx context.Context, text string) (string, error) {
	answer, err := s.answerer.Answer(ctx, strings.TrimSpace(text))
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	s.messages = append(s.messages,
		models.Message{Role: models.RoleUser, Content: text},
		models.Message{Role: models.RoleAssistant, Content: answer},
	)
	s.mu.Unlock()
	return answer, nil
}

func (s *RAGSession) History() []models.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Message(nil), s.messages...)
}
