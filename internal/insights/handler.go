package insights

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/2beens/vitalsync/internal/auth"
	"github.com/2beens/vitalsync/internal/telemetry/tracing"
	"github.com/2beens/vitalsync/pkg"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
)

const noInsightsYetMessage = "No insights yet. Sync your Google Fit data to get started!"

type insightsRepo interface {
	GetLatest(ctx context.Context, userID string) (Insight, error)
	MarkRead(ctx context.Context, userID string, insightID int) error
}

type dailyGenerator interface {
	GenerateDaily(ctx context.Context, userID string) (string, error)
}

type Handler struct {
	repo      insightsRepo
	generator dailyGenerator
}

func NewHandler(repo insightsRepo, generator dailyGenerator) *Handler {
	return &Handler{
		repo:      repo,
		generator: generator,
	}
}

func (handler *Handler) SetupRoutes(router *mux.Router) {
	insightsRouter := router.PathPrefix("/insights").Subrouter()
	insightsRouter.HandleFunc("/latest", handler.HandleGetLatest).Methods("GET", "OPTIONS").Name("insights-latest")
	insightsRouter.HandleFunc("/generate", handler.HandleGenerate).Methods("POST", "OPTIONS").Name("insights-generate")
	insightsRouter.HandleFunc("/{id}/read", handler.HandleMarkRead).Methods("PATCH", "OPTIONS").Name("insights-mark-read")
}

func (handler *Handler) HandleGetLatest(w http.ResponseWriter, r *http.Request) {
	var err error
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.insights.getLatest")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	userID, ok := auth.UserIDFromContext(ctx)
	if !ok {
		http.Error(w, "no can do", http.StatusUnauthorized)
		return
	}

	insight, err := handler.repo.GetLatest(ctx, userID)
	if errors.Is(err, ErrInsightNotFound) {
		// nothing generated yet, serve onboarding copy instead of a 404
		err = nil
		pkg.SendJsonResponse(w, http.StatusOK, map[string]string{
			"content": noInsightsYetMessage,
		})
		return
	}
	if err != nil {
		log.Errorf("get latest insight for [%s]: %s", userID, err)
		http.Error(w, "failed to get insight", http.StatusInternalServerError)
		return
	}

	pkg.SendJsonResponse(w, http.StatusOK, insight)
}

func (handler *Handler) HandleGenerate(w http.ResponseWriter, r *http.Request) {
	var err error
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.insights.generate")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	userID, ok := auth.UserIDFromContext(ctx)
	if !ok {
		http.Error(w, "no can do", http.StatusUnauthorized)
		return
	}

	content, err := handler.generator.GenerateDaily(ctx, userID)
	if err != nil {
		log.Errorf("generate insight for [%s]: %s", userID, err)
		http.Error(w, "failed to generate insight", http.StatusInternalServerError)
		return
	}

	pkg.SendJsonResponse(w, http.StatusOK, map[string]string{
		"content": content,
	})
}

func (handler *Handler) HandleMarkRead(w http.ResponseWriter, r *http.Request) {
	var err error
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.insights.markRead")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	userID, ok := auth.UserIDFromContext(ctx)
	if !ok {
		http.Error(w, "no can do", http.StatusUnauthorized)
		return
	}

	vars := mux.Vars(r)
	insightID, err := strconv.Atoi(vars["id"])
	if err != nil {
		http.Error(w, "error, invalid insight id", http.StatusBadRequest)
		return
	}

	if err = handler.repo.MarkRead(ctx, userID, insightID); err != nil {
		if errors.Is(err, ErrInsightNotFound) {
			http.Error(w, "insight not found", http.StatusNotFound)
			return
		}
		log.Errorf("mark insight %d read for [%s]: %s", insightID, userID, err)
		http.Error(w, "failed to mark insight read", http.StatusInternalServerError)
		return
	}

	pkg.SendJsonResponse(w, http.StatusOK, map[string]bool{
		"success": true,
	})
}
