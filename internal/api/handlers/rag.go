package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"tax-rag/internal/api"
	"tax-rag/internal/ingest"
	"tax-rag/internal/telemetry"
)

type Answerer interface {
	Answer(ctx context.Context, question string) (string, error)
}

type Populator interface {
	Populate(ctx context.Context, paths []string) (*ingest.PopulateResult, error)
}

type RAGHandler struct {
	answerer  Answerer
	populator Populator
}

func NewRAGHandler(answerer Answerer, populator Populator) *RAGHandler {
	return &RAGHandler{answerer: answerer, populator: populator}
}

// Ask handles GET /?search=<question> and replies with the answer as plain text
func (h *RAGHandler) Ask(w http.ResponseWriter, r *http.Request) {
	question := r.URL.Query().Get("search")
	if strings.TrimSpace(question) == "" {
		api.Error(w, http.StatusBadRequest, "search parameter is required")
		return
	}

	answer, err := h.answerer.Answer(r.Context(), question)
	if err != nil {
		log.Error().Err(err).Str("search", question).Msg("Failed to answer")
		telemetry.CaptureError(r.Context(), err)
		api.HandleError(w, err)
		return
	}

	api.Text(w, http.StatusOK, answer)
}

// Populate handles GET /populate. The run is detached from the request so a
// client disconnect does not stop it halfway through a file.
func (h *RAGHandler) Populate(w http.ResponseWriter, r *http.Request) {
	result, err := h.populator.Populate(context.WithoutCancel(r.Context()), nil)
	if err != nil {
		log.Error().Err(err).Msg("Populate failed")
		telemetry.CaptureError(r.Context(), err)
		api.HandleError(w, err)
		return
	}

	log.Info().Int("files", len(result.Files)).Int("records", result.Total()).Msg("Populate succeeded")
	api.Text(w, http.StatusOK, "Success")
}
