package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"mixnotes/internal/app/comments"
	"mixnotes/internal/app/projects"
	"mixnotes/internal/app/tracks"
	"mixnotes/internal/app/users"
	"mixnotes/internal/apperr"
	"mixnotes/internal/auth"
	"mixnotes/internal/logging"
	"mixnotes/internal/models"
)

// UserService captures the account operations needed by the HTTP handlers.
type UserService interface {
	Register(ctx context.Context, reg users.Registration) (*models.User, error)
	Login(ctx context.Context, email, password string) (string, *models.User, error)
	Me(ctx context.Context, userID int64) (*models.User, error)
	UpdateDetails(ctx context.Context, userID int64, details users.Details) (*models.User, error)
	UpdatePassword(ctx context.Context, userID int64, current, next string) (string, *models.User, error)
}

// ProjectService describes project and membership workflows.
type ProjectService interface {
	Create(ctx context.Context, actorID int64, draft projects.Draft) (*models.Project, error)
	Get(ctx context.Context, actorID, projectID int64) (*models.Project, error)
	ListForUser(ctx context.Context, actorID int64) ([]models.Project, error)
	Update(ctx context.Context, actorID, projectID int64, patch projects.Patch) (*models.Project, error)
	Delete(ctx context.Context, actorID, projectID int64) error
	AddCollaborator(ctx context.Context, actorID, projectID int64, in projects.CollaboratorInput) (*models.Project, error)
	UpdateCollaborator(ctx context.Context, actorID, projectID int64, in projects.CollaboratorInput) (*models.Project, error)
	RemoveCollaborator(ctx context.Context, actorID, projectID, userID int64) (*models.Project, error)
}

// TrackService coordinates track uploads and version history.
type TrackService interface {
	Create(ctx context.Context, actorID, projectID int64, draft tracks.Draft) (*models.Track, error)
	Get(ctx context.Context, actorID, trackID int64) (*models.Track, error)
	ListByProject(ctx context.Context, actorID, projectID int64) ([]models.Track, error)
	CreateVersion(ctx context.Context, actorID, trackID int64, draft tracks.Draft) (*models.Track, error)
	Versions(ctx context.Context, actorID, trackID int64) ([]models.Track, error)
	Latest(ctx context.Context, actorID, trackID int64) (*models.Track, error)
	Update(ctx context.Context, actorID, trackID int64, patch tracks.Patch) (*models.Track, error)
	Delete(ctx context.Context, actorID, trackID int64) error
}

// CommentService coordinates comment threads, reactions and status changes.
type CommentService interface {
	List(ctx context.Context, actorID, trackID int64) ([]models.Thread, error)
	Create(ctx context.Context, actorID, trackID int64, draft comments.Draft) (*models.Comment, error)
	Reply(ctx context.Context, actorID, parentID int64, draft comments.Draft) (*models.Comment, error)
	Update(ctx context.Context, actorID, commentID int64, patch comments.Patch) (*models.Comment, error)
	Delete(ctx context.Context, actorID, commentID int64) (int64, error)
	ToggleReaction(ctx context.Context, actorID, commentID int64, reactionType string) (*models.Comment, error)
	ChangeStatus(ctx context.Context, actorID, commentID int64, status string) (*models.Comment, error)
}

// Authenticator verifies and revokes bearer tokens.
type Authenticator interface {
	Authenticate(ctx context.Context, raw string) (auth.Claims, error)
	Revoke(ctx context.Context, claims auth.Claims) error
}

// Server wires HTTP handlers to the underlying services.
type Server struct {
	users    UserService
	projects ProjectService
	tracks   TrackService
	comments CommentService
	auth     Authenticator
}

// New configures a Server with the given services.
func New(users UserService, projects ProjectService, tracks TrackService, comments CommentService, authenticator Authenticator) *Server {
	return &Server{
		users:    users,
		projects: projects,
		tracks:   tracks,
		comments: comments,
		auth:     authenticator,
	}
}

// Routes exposes the HTTP handlers.
func (s *Server) Routes() http.Handler {
	router := mux.NewRouter()
	router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "route not found", Code: string(apperr.KindNotFound)})
	})
	router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "method not allowed", Code: "METHOD_NOT_ALLOWED"})
	})

	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	}).Methods(http.MethodGet)

	api := router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/auth/register", s.handleRegister).Methods(http.MethodPost)
	api.HandleFunc("/auth/login", s.handleLogin).Methods(http.MethodPost)

	private := api.NewRoute().Subrouter()
	private.Use(s.requireUser)
	private.HandleFunc("/auth/logout", s.handleLogout).Methods(http.MethodPost)
	private.HandleFunc("/auth/me", s.handleMe).Methods(http.MethodGet)
	private.HandleFunc("/auth/update-details", s.handleUpdateDetails).Methods(http.MethodPut)
	private.HandleFunc("/auth/update-password", s.handleUpdatePassword).Methods(http.MethodPut)
	s.registerProjects(private)
	s.registerTracks(private)
	s.registerComments(private)

	return router
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// writeError maps an application error onto its HTTP status and stable code.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	kind := apperr.KindOf(err)
	status := kind.HTTPStatus()
	if status >= http.StatusInternalServerError {
		logging.WithContext(r.Context()).Error().Err(err).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Msg("request failed")
	}
	writeJSON(w, status, errorResponse{Error: apperr.PublicMessage(err), Code: string(kind)})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		_ = json.NewEncoder(w).Encode(payload)
	}
}

// decodeJSON reads a JSON body into dst. An empty body leaves dst untouched.
func decodeJSON(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		return apperr.Validation("invalid JSON payload")
	}
	return nil
}

// pathID parses a numeric mux path variable.
func pathID(r *http.Request, name string) (int64, error) {
	raw := mux.Vars(r)[name]
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, apperr.Validation("invalid %s", name)
	}
	return id, nil
}

func parseBearerToken(header string) string {
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 {
		return ""
	}
	if !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
