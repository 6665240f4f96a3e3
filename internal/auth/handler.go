package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/2beens/vitalsync/internal/telemetry/tracing"
	"github.com/2beens/vitalsync/pkg"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
)

type usersRepo interface {
	Upsert(ctx context.Context, id, email string) error
}

type Handler struct {
	authService *Service
	usersRepo   usersRepo
	admin       *Admin
	baseURL     string
}

func NewHandler(
	authService *Service,
	usersRepo usersRepo,
	admin *Admin,
	baseURL string,
) *Handler {
	return &Handler{
		authService: authService,
		usersRepo:   usersRepo,
		admin:       admin,
		baseURL:     baseURL,
	}
}

// SetupRoutes mounts the login endpoints on a /a subrouter. The rate limit
// middleware is provided by the caller to keep this package free of the
// middleware package, which depends on this one for login checks.
func (handler *Handler) SetupRoutes(
	mainRouter *mux.Router,
	rateLimit mux.MiddlewareFunc,
) {
	loginSubrouter := mainRouter.PathPrefix("/a").Subrouter()
	loginSubrouter.
		HandleFunc("/login/request", handler.HandleLoginRequest).
		Methods("POST", "OPTIONS").Name("login-request")
	loginSubrouter.
		HandleFunc("/login/verify", handler.HandleLoginVerify).
		Methods("GET", "OPTIONS").Name("login-verify")
	loginSubrouter.
		HandleFunc("/login", handler.HandleAdminLogin).
		Methods("POST", "OPTIONS").Name("login")
	loginSubrouter.
		HandleFunc("/logout", handler.HandleLogout).
		Methods("GET", "OPTIONS").Name("logout")

	// rate limit the login endpoints to prevent abuse
	loginSubrouter.Use(rateLimit)
}

type loginRequestResponse struct {
	Message   string `json:"message"`
	LoginLink string `json:"loginLink"`
	Email     string `json:"email"`
}

// handleLoginRequest generates a short-lived magic login link. The link is
// returned in the response for now, instead of being sent via email.
func (handler *Handler) HandleLoginRequest(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.auth.loginRequest")
	defer span.End()

	var req struct {
		Email string `json:"email"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Tracef("login request, unmarshal json params: %s", err)
		http.Error(w, "login request failed", http.StatusBadRequest)
		return
	}

	if !strings.Contains(req.Email, "@") {
		http.Error(w, "error, invalid email", http.StatusBadRequest)
		return
	}

	token, err := handler.authService.NewLoginToken(ctx, req.Email)
	if err != nil {
		log.Errorf("login request failed, generate login token: %s", err)
		http.Error(w, "generate token error", http.StatusInternalServerError)
		return
	}

	loginLink := fmt.Sprintf("%s/a/login/verify?token=%s", handler.baseURL, token)
	log.Debugf("login link for %s: %s", req.Email, loginLink)

	pkg.SendJsonResponse(w, http.StatusOK, loginRequestResponse{
		Message:   "Login link generated",
		LoginLink: loginLink,
		Email:     req.Email,
	})
}

func (handler *Handler) HandleLoginVerify(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.auth.loginVerify")
	defer span.End()

	token := r.URL.Query().Get("token")
	if token == "" {
		http.Error(w, "error, token empty", http.StatusBadRequest)
		return
	}

	email, err := handler.authService.VerifyLoginToken(ctx, token)
	if errors.Is(err, ErrLoginTokenNotFound) {
		http.Error(w, "error, invalid or expired login link", http.StatusUnauthorized)
		return
	}
	if err != nil {
		log.Errorf("login verify failed: %s", err)
		http.Error(w, "login verify failed", http.StatusInternalServerError)
		return
	}

	// the email doubles as the user ID
	if err := handler.usersRepo.Upsert(ctx, email, email); err != nil {
		log.Errorf("login verify, upsert user [%s]: %s", email, err)
		http.Error(w, "login verify failed", http.StatusInternalServerError)
		return
	}

	sessionToken, err := handler.authService.NewSession(ctx, email)
	if err != nil {
		log.Errorf("login verify failed, generate session token: %s", err)
		http.Error(w, "generate token error", http.StatusInternalServerError)
		return
	}

	log.Tracef("new login success for: %s", email)
	pkg.WriteJSONResponseOK(w, fmt.Sprintf(`{"token": "%s", "userId": "%s"}`, sessionToken, email))
}

func (handler *Handler) HandleAdminLogin(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.auth.adminLogin")
	defer span.End()

	var loginReq struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&loginReq); err != nil {
		log.Errorf("login, unmarshal json params: %s", err)
		http.Error(w, "login failed", http.StatusBadRequest)
		return
	}

	if loginReq.Username == "" {
		http.Error(w, "error, username empty", http.StatusBadRequest)
		return
	}
	if loginReq.Password == "" {
		http.Error(w, "error, password empty", http.StatusBadRequest)
		return
	}

	if !pkg.CheckPasswordHash(loginReq.Password, handler.admin.PasswordHash) {
		log.Tracef("[password] failed login attempt for user: %s", loginReq.Username)
		http.Error(w, "error, wrong credentials", http.StatusBadRequest)
		return
	}

	if loginReq.Username != handler.admin.Username {
		log.Tracef("[username] failed login attempt for user: %s", loginReq.Username)
		http.Error(w, "error, wrong credentials", http.StatusBadRequest)
		return
	}

	if err := handler.usersRepo.Upsert(ctx, handler.admin.Username, handler.admin.Username); err != nil {
		log.Errorf("login, upsert admin user: %s", err)
		http.Error(w, "login failed", http.StatusInternalServerError)
		return
	}

	token, err := handler.authService.NewSession(ctx, handler.admin.Username)
	if err != nil {
		log.Errorf("login failed, generate token error: %s", err)
		http.Error(w, "generate token error", http.StatusInternalServerError)
		return
	}

	log.Trace("new admin login success")
	pkg.WriteJSONResponseOK(w, fmt.Sprintf(`{"token": "%s"}`, token))
}

func (handler *Handler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.auth.logout")
	defer span.End()

	authToken := r.Header.Get(AuthTokenHeader)
	if authToken == "" {
		http.Error(w, "no can do", http.StatusUnauthorized)
		return
	}

	loggedOut, err := handler.authService.Logout(ctx, authToken)
	if err != nil {
		log.Tracef("[failed logout] => %s: %s", r.URL.Path, err)
		http.Error(w, "no can do", http.StatusUnauthorized)
		return
	}
	if !loggedOut {
		http.Error(w, "no can do", http.StatusUnauthorized)
		return
	}

	pkg.WriteTextResponseOK(w, "logged-out")
}
