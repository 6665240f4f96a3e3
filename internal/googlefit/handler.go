package googlefit

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/2beens/vitalsync/internal/auth"
	"github.com/2beens/vitalsync/internal/telemetry/tracing"
	"github.com/2beens/vitalsync/pkg"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
)

type handlerTokensRepo interface {
	Get(ctx context.Context, userID string) (TokenRecord, error)
	Save(ctx context.Context, rec TokenRecord) error
	Delete(ctx context.Context, userID string) error
}

type syncStatusProvider interface {
	LastSyncedAt(ctx context.Context, userID string) (*time.Time, error)
}

type Handler struct {
	oauthConfig        *oauth2.Config
	tokensRepo         handlerTokensRepo
	syncStatus         syncStatusProvider
	randStateGenerator func() string

	mutex sync.Mutex
	// oauth state param -> user who started the connect flow
	pendingStates map[string]string
}

func NewHandler(
	oauthConfig *oauth2.Config,
	tokensRepo handlerTokensRepo,
	syncStatus syncStatusProvider,
	randStateGenerator func() string,
) *Handler {
	return &Handler{
		oauthConfig:        oauthConfig,
		tokensRepo:         tokensRepo,
		syncStatus:         syncStatus,
		randStateGenerator: randStateGenerator,
		pendingStates:      make(map[string]string),
	}
}

func (h *Handler) SetupRoutes(router *mux.Router) {
	fitRouter := router.PathPrefix("/fit").Subrouter()
	fitRouter.HandleFunc("/connect", h.Connect).Methods("GET", "OPTIONS").Name("fit-connect")
	fitRouter.HandleFunc("/auth/callback", h.AuthCallback).Methods("GET", "OPTIONS").Name("fit-auth-callback")
	fitRouter.HandleFunc("/status", h.Status).Methods("GET", "OPTIONS").Name("fit-status")
	fitRouter.HandleFunc("/disconnect", h.Disconnect).Methods("DELETE", "OPTIONS").Name("fit-disconnect")
}

func GenerateStateString() string {
	b := make([]byte, 16)
	rand.Read(b)
	return base64.URLEncoding.EncodeToString(b)
}

type connectResponse struct {
	AuthURL string `json:"authUrl"`
}

// Connect starts the consent flow and returns the google auth URL for the
// client to open. Offline access with forced consent, so a refresh token
// is always issued.
func (h *Handler) Connect(w http.ResponseWriter, r *http.Request) {
	_, span := tracing.GlobalTracer.Start(r.Context(), "googlefit.handler.connect")
	defer span.End()

	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		http.Error(w, "no can do", http.StatusUnauthorized)
		return
	}

	state := h.randStateGenerator()
	h.mutex.Lock()
	h.pendingStates[state] = userID
	h.mutex.Unlock()

	authURL := h.oauthConfig.AuthCodeURL(
		state,
		oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("prompt", "consent"),
	)
	pkg.SendJsonResponse(w, http.StatusOK, connectResponse{AuthURL: authURL})
}

func (h *Handler) AuthCallback(w http.ResponseWriter, r *http.Request) {
	var err error
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "googlefit.handler.authCallback")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	state := r.URL.Query().Get("state")
	h.mutex.Lock()
	userID, ok := h.pendingStates[state]
	delete(h.pendingStates, state)
	h.mutex.Unlock()
	if !ok {
		http.Error(w, "state mismatch", http.StatusForbidden)
		return
	}

	code := r.URL.Query().Get("code")
	if code == "" {
		http.Error(w, "error, code empty", http.StatusBadRequest)
		return
	}

	token, err := h.oauthConfig.Exchange(ctx, code)
	if err != nil {
		log.Errorf("google fit auth callback, code exchange: %s", err)
		http.Error(w, "failed to get token", http.StatusForbidden)
		return
	}

	scope, _ := token.Extra("scope").(string)
	if err = h.tokensRepo.Save(ctx, TokenRecord{
		UserID:       userID,
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		Scope:        scope,
		ExpiresAt:    token.Expiry,
	}); err != nil {
		log.Errorf("google fit auth callback, save token: %s", err)
		http.Error(w, "failed to save token", http.StatusInternalServerError)
		return
	}

	log.Debugf("google fit connected for user: %s", userID)

	// back to the main page
	http.Redirect(w, r, "/", http.StatusFound)
}

type statusResponse struct {
	Connected     bool       `json:"connected"`
	ExpiresAt     *time.Time `json:"expiresAt,omitempty"`
	HasSyncedData bool       `json:"hasSyncedData"`
	LastSyncedAt  *time.Time `json:"lastSyncedAt,omitempty"`
}

func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	var err error
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "googlefit.handler.status")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	userID, ok := auth.UserIDFromContext(ctx)
	if !ok {
		http.Error(w, "no can do", http.StatusUnauthorized)
		return
	}

	var resp statusResponse
	rec, err := h.tokensRepo.Get(ctx, userID)
	switch {
	case errors.Is(err, ErrNoToken):
		err = nil
	case err != nil:
		log.Errorf("google fit status, get token: %s", err)
		http.Error(w, "failed to get status", http.StatusInternalServerError)
		return
	default:
		resp.Connected = true
		resp.ExpiresAt = &rec.ExpiresAt
	}

	lastSyncedAt, err := h.syncStatus.LastSyncedAt(ctx, userID)
	if err != nil {
		log.Errorf("google fit status, last synced at: %s", err)
		http.Error(w, "failed to get status", http.StatusInternalServerError)
		return
	}
	resp.HasSyncedData = lastSyncedAt != nil
	resp.LastSyncedAt = lastSyncedAt

	pkg.SendJsonResponse(w, http.StatusOK, resp)
}

func (h *Handler) Disconnect(w http.ResponseWriter, r *http.Request) {
	var err error
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "googlefit.handler.disconnect")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	userID, ok := auth.UserIDFromContext(ctx)
	if !ok {
		http.Error(w, "no can do", http.StatusUnauthorized)
		return
	}

	if err = h.tokensRepo.Delete(ctx, userID); err != nil {
		log.Errorf("google fit disconnect for [%s]: %s", userID, err)
		http.Error(w, "failed to disconnect", http.StatusInternalServerError)
		return
	}

	log.Debugf("google fit disconnected for user: %s", userID)
	pkg.SendJsonResponse(w, http.StatusOK, statusResponse{Connected: false})
}
