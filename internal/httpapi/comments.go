package httpapi

import (
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"mixnotes/internal/app/comments"
	"mixnotes/internal/apperr"
	"mixnotes/internal/models"
)

type commentRequest struct {
	Text           string                 `json:"text"`
	Timestamp      *float64               `json:"timestamp"`
	Duration       float64                `json:"duration"`
	Category       string                 `json:"category"`
	FrequencyRange *models.FrequencyRange `json:"frequency_range"`
	Attachments    []models.Attachment    `json:"attachments"`
}

func (req commentRequest) draft() comments.Draft {
	return comments.Draft{
		Text:           req.Text,
		Timestamp:      req.Timestamp,
		Duration:       req.Duration,
		Category:       req.Category,
		FrequencyRange: req.FrequencyRange,
		Attachments:    req.Attachments,
	}
}

type commentPatchRequest struct {
	Text   *string `json:"text"`
	Status *string `json:"status"`
}

type reactionRequest struct {
	Type string `json:"type"`
}

type statusRequest struct {
	Status string `json:"status"`
}

func (s *Server) registerComments(router *mux.Router) {
	router.HandleFunc("/tracks/{trackId}/comments", s.handleListComments).Methods(http.MethodGet)
	router.HandleFunc("/tracks/{trackId}/comments", s.handleCreateComment).Methods(http.MethodPost)
	router.HandleFunc("/comments/{id}/replies", s.handleReply).Methods(http.MethodPost)
	router.HandleFunc("/comments/{id}", s.handleUpdateComment).Methods(http.MethodPut)
	router.HandleFunc("/comments/{id}", s.handleDeleteComment).Methods(http.MethodDelete)
	router.HandleFunc("/comments/{id}/reactions", s.handleToggleReaction).Methods(http.MethodPost)
	router.HandleFunc("/comments/{id}/status", s.handleChangeStatus).Methods(http.MethodPut)
}

func (s *Server) handleListComments(w http.ResponseWriter, r *http.Request) {
	trackID, err := pathID(r, "trackId")
	if err != nil {
		writeError(w, r, err)
		return
	}
	threads, err := s.comments.List(r.Context(), userID(r), trackID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Comments []models.Thread `json:"comments"`
		Count    int             `json:"count"`
	}{Comments: threads, Count: len(threads)})
}

func (s *Server) handleCreateComment(w http.ResponseWriter, r *http.Request) {
	trackID, err := pathID(r, "trackId")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req commentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.Timestamp == nil {
		writeError(w, r, apperr.Validation("timestamp is required"))
		return
	}
	created, err := s.comments.Create(r.Context(), userID(r), trackID, req.draft())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleReply(w http.ResponseWriter, r *http.Request) {
	parentID, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req commentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	created, err := s.comments.Reply(r.Context(), userID(r), parentID, req.draft())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleUpdateComment(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req commentPatchRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	updated, err := s.comments.Update(r.Context(), userID(r), id, comments.Patch{Text: req.Text, Status: req.Status})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeleteComment(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if _, err := s.comments.Delete(r.Context(), userID(r), id); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, struct{}{})
}

func (s *Server) handleToggleReaction(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req reactionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if strings.TrimSpace(req.Type) == "" {
		writeError(w, r, apperr.Validation("reaction type is required"))
		return
	}
	updated, err := s.comments.ToggleReaction(r.Context(), userID(r), id, req.Type)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleChangeStatus(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req statusRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if strings.TrimSpace(req.Status) == "" {
		writeError(w, r, apperr.Validation("status is required"))
		return
	}
	updated, err := s.comments.ChangeStatus(r.Context(), userID(r), id, req.Status)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}
