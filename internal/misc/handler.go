package misc

import (
	"context"
	"net/http"
	"time"

	"github.com/2beens/vitalsync/internal/telemetry/tracing"
	"github.com/2beens/vitalsync/pkg"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
)

type dbPinger interface {
	Ping(ctx context.Context) error
}

// Handler serves the unauthenticated service surface: liveness root,
// health with a database check, and version info.
type Handler struct {
	db          dbPinger
	versionInfo string
	startedAt   time.Time
}

func NewHandler(db dbPinger, versionInfo string, startedAt time.Time) *Handler {
	return &Handler{
		db:          db,
		versionInfo: versionInfo,
		startedAt:   startedAt,
	}
}

func (handler *Handler) SetupRoutes(mainRouter *mux.Router) {
	mainRouter.HandleFunc("/", handler.HandleRoot).Methods("GET", "POST", "OPTIONS").Name("root")
	mainRouter.HandleFunc("/health", handler.HandleHealth).Methods("GET").Name("health")
	mainRouter.HandleFunc("/version", handler.HandleGetVersionInfo).Methods("GET").Name("version")
}

func (handler *Handler) HandleRoot(w http.ResponseWriter, _ *http.Request) {
	pkg.WriteTextResponseOK(w, "all good here, thanks for asking ;)")
}

type healthResponse struct {
	Status   string `json:"status"`
	Database string `json:"database"`
	Uptime   string `json:"uptime"`
}

func (handler *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "miscHandler.health")
	defer span.End()

	resp := healthResponse{
		Status:   "ok",
		Database: "ok",
		Uptime:   time.Since(handler.startedAt).Truncate(time.Second).String(),
	}

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := handler.db.Ping(pingCtx); err != nil {
		log.Errorf("health check, db ping: %s", err)
		span.RecordError(err)
		resp.Status = "degraded"
		resp.Database = "down"
		pkg.SendJsonResponse(w, http.StatusServiceUnavailable, resp)
		return
	}

	pkg.SendJsonResponse(w, http.StatusOK, resp)
}

func (handler *Handler) HandleGetVersionInfo(w http.ResponseWriter, r *http.Request) {
	_, span := tracing.GlobalTracer.Start(r.Context(), "miscHandler.version")
	defer span.End()

	pkg.WriteTextResponseOK(w, handler.versionInfo)
}
