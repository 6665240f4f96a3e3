package fitmetrics

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/2beens/vitalsync/internal/auth"
	"github.com/2beens/vitalsync/internal/googlefit"
	"github.com/2beens/vitalsync/internal/telemetry/tracing"
	"github.com/2beens/vitalsync/pkg"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
)

const (
	defaultSyncDays = 30
	defaultListDays = 30

	// uploaded .FIT files are small, a few MB covers long activities
	maxImportBytes = 16 << 20
)

type syncRunner interface {
	Sync(ctx context.Context, userID string, start, end time.Time) (int, error)
}

type metricsRepo interface {
	Upsert(ctx context.Context, metric DailyMetric) (DailyMetric, error)
	List(ctx context.Context, userID string, days int) ([]DailyMetric, error)
	GetByDate(ctx context.Context, userID string, date time.Time) (DailyMetric, error)
}

type Handler struct {
	syncer syncRunner
	repo   metricsRepo
	now    func() time.Time
}

func NewHandler(syncer syncRunner, repo metricsRepo) *Handler {
	return &Handler{
		syncer: syncer,
		repo:   repo,
		now:    time.Now,
	}
}

func (handler *Handler) SetupRoutes(router *mux.Router) {
	router.HandleFunc("/fit/sync", handler.HandleSync).Methods("POST", "OPTIONS").Name("fit-sync")

	metricsRouter := router.PathPrefix("/metrics").Subrouter()
	metricsRouter.HandleFunc("", handler.HandleList).Methods("GET", "OPTIONS").Name("metrics-list")
	metricsRouter.HandleFunc("", handler.HandleUpsert).Methods("POST", "OPTIONS").Name("metrics-upsert")
	metricsRouter.HandleFunc("/summary", handler.HandleSummary).Methods("GET", "OPTIONS").Name("metrics-summary")
	metricsRouter.HandleFunc("/import", handler.HandleImport).Methods("POST", "OPTIONS").Name("metrics-import")
}

type syncRequest struct {
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`
}

type syncResponse struct {
	Success bool   `json:"success"`
	Synced  int    `json:"synced"`
	Message string `json:"message"`
}

func (handler *Handler) HandleSync(w http.ResponseWriter, r *http.Request) {
	var err error
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.fitmetrics.sync")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	userID, ok := auth.UserIDFromContext(ctx)
	if !ok {
		http.Error(w, "no can do", http.StatusUnauthorized)
		return
	}

	var req syncRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			log.Tracef("fit sync, unmarshal json params: %s", err)
			http.Error(w, "sync failed", http.StatusBadRequest)
			return
		}
	}

	end := handler.now().UTC().Truncate(24 * time.Hour)
	start := end.AddDate(0, 0, -defaultSyncDays)
	if req.EndDate != "" {
		if end, err = time.Parse(DateLayout, req.EndDate); err != nil {
			http.Error(w, "error, invalid endDate", http.StatusBadRequest)
			return
		}
	}
	if req.StartDate != "" {
		if start, err = time.Parse(DateLayout, req.StartDate); err != nil {
			http.Error(w, "error, invalid startDate", http.StatusBadRequest)
			return
		}
	}
	if start.After(end) {
		http.Error(w, "error, startDate after endDate", http.StatusBadRequest)
		return
	}

	// the range is inclusive, the upstream buckets are [start, end)
	synced, err := handler.syncer.Sync(ctx, userID, start, end.AddDate(0, 0, 1))
	if err != nil {
		log.Errorf("fit sync for [%s]: %s", userID, err)
		status, message, errorType := mapSyncError(err)
		pkg.SendJsonErrorResponse(w, status, message, errorType)
		return
	}

	pkg.SendJsonResponse(w, http.StatusOK, syncResponse{
		Success: true,
		Synced:  synced,
		Message: fmt.Sprintf("Successfully synced %d days of fitness data", synced),
	})
}

// mapSyncError maps pipeline failures to an HTTP status and a stable
// errorType tag the client selects user-facing copy by.
func mapSyncError(err error) (status int, message, errorType string) {
	switch {
	case errors.Is(err, googlefit.ErrNoToken):
		return http.StatusBadRequest,
			"Please connect Google Fit before syncing.",
			"MissingOAuthConsent"
	case errors.Is(err, googlefit.ErrNoRefreshToken):
		return http.StatusBadRequest,
			"Google Fit access expired. Reconnect to refresh permissions.",
			"MissingRefreshToken"
	case errors.Is(err, googlefit.ErrRefreshFailed), errors.Is(err, googlefit.ErrAuthExpired):
		return http.StatusUnauthorized,
			"Google Fit access expired. Reconnect to refresh permissions.",
			"StaleRefreshToken"
	case errors.Is(err, googlefit.ErrForbidden):
		return http.StatusForbidden,
			"Google Fit denied the request. Reconnect and try again.",
			"GoogleApiForbidden"
	default:
		return http.StatusInternalServerError,
			"Failed to sync Google Fit data",
			"UpstreamError"
	}
}

func (handler *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	var err error
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.fitmetrics.list")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	userID, ok := auth.UserIDFromContext(ctx)
	if !ok {
		http.Error(w, "no can do", http.StatusUnauthorized)
		return
	}

	days := defaultListDays
	if daysParam := r.URL.Query().Get("days"); daysParam != "" {
		if _, err := fmt.Sscanf(daysParam, "%d", &days); err != nil || days < 1 {
			http.Error(w, "error, invalid days", http.StatusBadRequest)
			return
		}
	}

	metrics, err := handler.repo.List(ctx, userID, days)
	if err != nil {
		log.Errorf("list metrics for [%s]: %s", userID, err)
		http.Error(w, "failed to get metrics", http.StatusInternalServerError)
		return
	}
	if metrics == nil {
		metrics = []DailyMetric{}
	}

	pkg.SendJsonResponse(w, http.StatusOK, metrics)
}

type upsertMetricRequest struct {
	Date              string `json:"date"`
	Steps             int    `json:"steps"`
	Calories          int    `json:"calories"`
	RestingHeartRate  *int   `json:"rhr"`
	HRV               *int   `json:"hrv"`
	TotalSleepMinutes *int   `json:"totalSleepMinutes"`
	DeepSleepMinutes  *int   `json:"deepSleepMinutes"`
	SleepScore        *int   `json:"sleepScore"`
	RecoveryScore     *int   `json:"recoveryScore"`
	WorkoutIntensity  *int   `json:"workoutIntensity"`
	ActivityMinutes   *int   `json:"activityMinutes"`
	Protein           *int   `json:"protein"`
	Carbs             *int   `json:"carbs"`
	Fats              *int   `json:"fats"`
}

// HandleUpsert stores one manually entered daily record for the
// authenticated user, same last-write-wins semantics as the sync.
func (handler *Handler) HandleUpsert(w http.ResponseWriter, r *http.Request) {
	var err error
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.fitmetrics.upsert")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	userID, ok := auth.UserIDFromContext(ctx)
	if !ok {
		http.Error(w, "no can do", http.StatusUnauthorized)
		return
	}

	var req upsertMetricRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Tracef("upsert metric, unmarshal json params: %s", err)
		http.Error(w, "save metric failed", http.StatusBadRequest)
		return
	}

	date, err := time.Parse(DateLayout, req.Date)
	if err != nil {
		http.Error(w, "error, invalid date", http.StatusBadRequest)
		return
	}

	metric, err := handler.repo.Upsert(ctx, DailyMetric{
		UserID:            userID,
		Date:              date,
		Steps:             req.Steps,
		Calories:          req.Calories,
		RestingHeartRate:  req.RestingHeartRate,
		HRV:               req.HRV,
		TotalSleepMinutes: req.TotalSleepMinutes,
		DeepSleepMinutes:  req.DeepSleepMinutes,
		SleepScore:        req.SleepScore,
		RecoveryScore:     req.RecoveryScore,
		WorkoutIntensity:  req.WorkoutIntensity,
		ActivityMinutes:   req.ActivityMinutes,
		Protein:           req.Protein,
		Carbs:             req.Carbs,
		Fats:              req.Fats,
	})
	if err != nil {
		log.Errorf("upsert metric for [%s]: %s", userID, err)
		http.Error(w, "save metric failed", http.StatusInternalServerError)
		return
	}

	pkg.SendJsonResponse(w, http.StatusOK, metric)
}

func (handler *Handler) HandleSummary(w http.ResponseWriter, r *http.Request) {
	var err error
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.fitmetrics.summary")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	userID, ok := auth.UserIDFromContext(ctx)
	if !ok {
		http.Error(w, "no can do", http.StatusUnauthorized)
		return
	}

	metrics, err := handler.repo.List(ctx, userID, defaultListDays)
	if err != nil {
		log.Errorf("metrics summary for [%s]: %s", userID, err)
		http.Error(w, "failed to get summary", http.StatusInternalServerError)
		return
	}

	summary := CalculateSummary(metrics)
	if summary == nil {
		// nothing synced yet, all defaults
		summary = &Summary{ReadinessScore: readinessScore(DailyMetric{})}
	}

	pkg.SendJsonResponse(w, http.StatusOK, summary)
}

// HandleImport accepts an uploaded .FIT activity file and folds it into
// the day's record.
func (handler *Handler) HandleImport(w http.ResponseWriter, r *http.Request) {
	var err error
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.fitmetrics.import")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	userID, ok := auth.UserIDFromContext(ctx)
	if !ok {
		http.Error(w, "no can do", http.StatusUnauthorized)
		return
	}

	if err := r.ParseMultipartForm(maxImportBytes); err != nil {
		http.Error(w, "error, invalid multipart form", http.StatusBadRequest)
		return
	}
	file, _, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "error, missing file", http.StatusBadRequest)
		return
	}
	defer file.Close()

	workout, err := ParseFitActivity(file)
	if err != nil {
		log.Tracef("import fit file for [%s]: %s", userID, err)
		http.Error(w, "error, invalid fit file", http.StatusBadRequest)
		return
	}

	existing, err := handler.repo.GetByDate(ctx, userID, workout.Date)
	if errors.Is(err, ErrMetricNotFound) {
		existing = DailyMetric{UserID: userID, Date: workout.Date}
	} else if err != nil {
		log.Errorf("import fit file for [%s], get metric: %s", userID, err)
		http.Error(w, "import failed", http.StatusInternalServerError)
		return
	}

	metric, err := handler.repo.Upsert(ctx, MergeWorkout(existing, workout))
	if err != nil {
		log.Errorf("import fit file for [%s], save metric: %s", userID, err)
		http.Error(w, "import failed", http.StatusInternalServerError)
		return
	}

	log.Debugf("imported %s workout for [%s] on %s", workout.Sport, userID, workout.Date.Format(DateLayout))
	pkg.SendJsonResponse(w, http.StatusOK, metric)
}
