package rag

import (
	"context"
	"strings"

	"github.com/rs/zerolog/log"

	"tax-rag/internal/models"
	"tax-rag/internal/telemetry"
)

type Planner interface {
	PlanQuery(ctx context.Context, question string) (*models.QueryPlan, error)
}

type Retriever interface {
	Retrieve(ctx context.Context, query string, limit int) ([]string, error)
}

type Synthesizer interface {
	Synthesize(ctx context.Context, question string, passages []string) (string, error)
}

// RAG runs plan, retrieve and synthesize in order. The first failing stage
// aborts the answer; there is no retry and no partial answer.
type RAG struct {
	planner     Planner
	retriever   Retriever
	synthesizer Synthesizer
}

func NewRAG(planner Planner, retriever Retriever, synthesizer Synthesizer) *RAG {
	return &RAG{planner: planner, retriever: retriever, synthesizer: synthesizer}
}

// Answer returns only the synthesized answer text
func (r *RAG) Answer(ctx context.Context, question string) (string, error) {
	resp, err := r.Query(ctx, question)
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}

// Query returns the answer together with the plan and passages that produced it
func (r *RAG) Query(ctx context.Context, question string) (*models.PromptResponse, error) {
	ctx, span := telemetry.StartSpan(ctx, "rag.query")
	defer span.End()

	if strings.TrimSpace(question) == "" {
		err := &models.OrchestrationError{Stage: models.StageStart, Err: models.NewPlanError("question is empty", nil)}
		span.SetError(err)
		return nil, err
	}

	plan, err := r.plan(ctx, question)
	if err != nil {
		span.SetError(err)
		return nil, err
	}
	log.Info().Str("query", plan.Query).Int("num_results", plan.NumResults).Msg("Start processing semantic search")

	passages, err := r.retrieve(ctx, plan)
	if err != nil {
		span.SetError(err)
		return nil, err
	}
	log.Info().Int("passages", len(passages)).Msg("Retrieved passages")

	answer, err := r.synthesize(ctx, question, passages)
	if err != nil {
		span.SetError(err)
		return nil, err
	}
	log.Info().Int("answer_len", len(answer)).Msg("Answer synthesized")

	return &models.PromptResponse{
		Query:    question,
		Plan:     plan,
		Passages: passages,
		Context:  JoinPassages(passages),
		Content:  answer,
	}, nil
}

func (r *RAG) plan(ctx context.Context, question string) (*models.QueryPlan, error) {
	ctx, span := telemetry.StartSpan(ctx, "rag.plan")
	defer span.End()

	plan, err := r.planner.PlanQuery(ctx, question)
	if err != nil {
		log.Error().Err(err).Msg("Planning failed")
		return nil, &models.OrchestrationError{Stage: models.StagePlan, Err: err}
	}
	span.SetTag("query", plan.Query)
	return plan, nil
}

func (r *RAG) retrieve(ctx context.Context, plan *models.QueryPlan) ([]string, error) {
	ctx, span := telemetry.StartSpan(ctx, "rag.retrieve")
	defer span.End()

	passages, err := r.retriever.Retrieve(ctx, plan.Query, plan.NumResults)
	if err != nil {
		log.Error().Err(err).Str("query", plan.Query).Msg("Retrieval failed")
		return nil, &models.OrchestrationError{Stage: models.StageRetrieve, Err: err}
	}
	return passages, nil
}

func (r *RAG) synthesize(ctx context.Context, question string, passages []string) (string, error) {
	ctx, span := telemetry.StartSpan(ctx, "rag.synthesize")
	defer span.End()

	answer, err := r.synthesizer.Synthesize(ctx, question, passages)
	if err != nil {
		log.Error().Err(err).Msg("Synthesis failed")
		return "", &models.OrchestrationError{Stage: models.StageSynthesize, Err: err}
	}
	if strings.TrimSpace(answer) == "" {
		return "", &models.OrchestrationError{
			Stage: models.StageSynthesize,
			Err:   models.NewSynthesisError("empty answer", nil),
		}
	}
	return answer, nil
}
