package httpapi

import (
	"net/http"

	"github.com/gorilla/mux"

	"mixnotes/internal/app/projects"
	"mixnotes/internal/models"
)

type projectRequest struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Status      string   `json:"status"`
	Tags        []string `json:"tags"`
	IsPrivate   *bool    `json:"is_private"`
}

type projectPatchRequest struct {
	Title       *string  `json:"title"`
	Description *string  `json:"description"`
	Status      *string  `json:"status"`
	Tags        []string `json:"tags"`
	IsPrivate   *bool    `json:"is_private"`
	OwnerID     *int64   `json:"owner_id"`
}

type collaboratorRequest struct {
	UserID      int64    `json:"user_id"`
	Role        string   `json:"role"`
	Permissions []string `json:"permissions"`
}

// projectView adds the derived member list, owner first.
type projectView struct {
	*models.Project
	Members []models.Collaborator `json:"members"`
}

func viewOf(p *models.Project) projectView {
	return projectView{Project: p, Members: p.Members()}
}

func (s *Server) registerProjects(router *mux.Router) {
	router.HandleFunc("/projects", s.handleListProjects).Methods(http.MethodGet)
	router.HandleFunc("/projects", s.handleCreateProject).Methods(http.MethodPost)
	router.HandleFunc("/projects/{id}", s.handleGetProject).Methods(http.MethodGet)
	router.HandleFunc("/projects/{id}", s.handleUpdateProject).Methods(http.MethodPut)
	router.HandleFunc("/projects/{id}", s.handleDeleteProject).Methods(http.MethodDelete)
	router.HandleFunc("/projects/{id}/collaborators", s.handleAddCollaborator).Methods(http.MethodPost)
	router.HandleFunc("/projects/{id}/collaborators/{userId}", s.handleUpdateCollaborator).Methods(http.MethodPut)
	router.HandleFunc("/projects/{id}/collaborators/{userId}", s.handleRemoveCollaborator).Methods(http.MethodDelete)
}

func (s *Server) handleListProjects(w http.ResponseWriter, r *http.Request) {
	list, err := s.projects.ListForUser(r.Context(), userID(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	views := make([]projectView, 0, len(list))
	for i := range list {
		views = append(views, viewOf(&list[i]))
	}
	writeJSON(w, http.StatusOK, struct {
		Projects []projectView `json:"projects"`
	}{Projects: views})
}

func (s *Server) handleCreateProject(w http.ResponseWriter, r *http.Request) {
	var req projectRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	created, err := s.projects.Create(r.Context(), userID(r), projects.Draft{
		Title:       req.Title,
		Description: req.Description,
		Status:      req.Status,
		Tags:        req.Tags,
		IsPrivate:   req.IsPrivate,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, viewOf(created))
}

func (s *Server) handleGetProject(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	project, err := s.projects.Get(r.Context(), userID(r), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, viewOf(project))
}

func (s *Server) handleUpdateProject(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req projectPatchRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	updated, err := s.projects.Update(r.Context(), userID(r), id, projects.Patch{
		Title:       req.Title,
		Description: req.Description,
		Status:      req.Status,
		Tags:        req.Tags,
		IsPrivate:   req.IsPrivate,
		OwnerID:     req.OwnerID,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, viewOf(updated))
}

func (s *Server) handleDeleteProject(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.projects.Delete(r.Context(), userID(r), id); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, struct{}{})
}

func (s *Server) handleAddCollaborator(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req collaboratorRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	project, err := s.projects.AddCollaborator(r.Context(), userID(r), id, projects.CollaboratorInput{
		UserID:      req.UserID,
		Role:        req.Role,
		Permissions: req.Permissions,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, viewOf(project))
}

func (s *Server) handleUpdateCollaborator(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	target, err := pathID(r, "userId")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req collaboratorRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	project, err := s.projects.UpdateCollaborator(r.Context(), userID(r), id, projects.CollaboratorInput{
		UserID:      target,
		Role:        req.Role,
		Permissions: req.Permissions,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, viewOf(project))
}

func (s *Server) handleRemoveCollaborator(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	target, err := pathID(r, "userId")
	if err != nil {
		writeError(w, r, err)
		return
	}
	project, err := s.projects.RemoveCollaborator(r.Context(), userID(r), id, target)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, viewOf(project))
}
