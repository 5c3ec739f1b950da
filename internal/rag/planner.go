package rag

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/rs/zerolog/log"

	"tax-rag/internal/llmservice"
	"tax-rag/internal/models"
)

// QueryPlanner turns a user question into a validated QueryPlan
type QueryPlanner struct {
	llm        llmservice.ChatModel
	minResults int
	maxResults int
}

func NewQueryPlanner(llm llmservice.ChatModel, minResults, maxResults int) *QueryPlanner {
	if minResults <= 0 {
		minResults = models.DefaultMinResults
	}
	if maxResults < minResults {
		maxResults = max(models.DefaultMaxResults, minResults)
	}
	return &QueryPlanner{llm: llm, minResults: minResults, maxResults: maxResults}
}

func (p *QueryPlanner) PlanQuery(ctx context.Context, question string) (*models.QueryPlan, error) {
	if strings.TrimSpace(question) == "" {
		return nil, models.NewPlanError("question is empty", nil)
	}

	prompt := BuildPlanPrompt(question, p.minResults, p.maxResults)
	raw, err := p.llm.Complete(ctx, models.VectorSpecialistRole, prompt, true)
	if err != nil {
		return nil, models.NewPlanError("llm call failed", err)
	}
	log.Debug().Str("response", raw).Msg("Planner response")

	return ParsePlan(raw, p.minResults, p.maxResults)
}

// ParsePlan validates a planner response. Nothing is defaulted or clamped:
// any deviation from {"query": non-empty string, "num_results": integer in
// [minResults, maxResults]} is a plan error.
func ParsePlan(raw string, minResults, maxResults int) (*models.QueryPlan, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &fields); err != nil || fields == nil {
		return nil, models.NewPlanError(fmt.Sprintf("response is not a JSON object: %q", raw), err)
	}

	rawQuery, ok := fields["query"]
	if !ok {
		return nil, models.NewPlanError(`missing field "query"`, nil)
	}
	var query string
	if err := json.Unmarshal(rawQuery, &query); err != nil {
		return nil, models.NewPlanError(`field "query" must be a string`, err)
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, models.NewPlanError(`field "query" is empty`, nil)
	}

	rawNum, ok := fields["num_results"]
	if !ok {
		return nil, models.NewPlanError(`missing field "num_results"`, nil)
	}
	var value any
	if err := json.Unmarshal(rawNum, &value); err != nil {
		return nil, models.NewPlanError(`field "num_results" is invalid`, err)
	}
	num, ok := value.(float64)
	if !ok || num != math.Trunc(num) {
		return nil, models.NewPlanError(fmt.Sprintf(`field "num_results" must be an integer, got %s`, rawNum), nil)
	}
	if num < float64(minResults) || num > float64(maxResults) {
		return nil, models.NewPlanError(fmt.Sprintf(`field "num_results" is %s, want %d to %d`, rawNum, minResults, maxResults), nil)
	}

	return &models.QueryPlan{Query: query, NumResults: int(num)}, nil
}
