package httpapi

import (
	"net/http"

	"github.com/gorilla/mux"

	"mixnotes/internal/app/tracks"
	"mixnotes/internal/models"
)

type trackRequest struct {
	Title        string               `json:"title"`
	VersionName  string               `json:"version_name"`
	AudioFile    models.AudioFile     `json:"audio_file"`
	WaveformData string               `json:"waveform_data"`
	Metadata     models.TrackMetadata `json:"metadata"`
}

type trackPatchRequest struct {
	Title        *string               `json:"title"`
	VersionName  *string               `json:"version_name"`
	WaveformData *string               `json:"waveform_data"`
	Metadata     *models.TrackMetadata `json:"metadata"`
}

func (req trackRequest) draft() tracks.Draft {
	return tracks.Draft{
		Title:        req.Title,
		VersionName:  req.VersionName,
		AudioFile:    req.AudioFile,
		WaveformData: req.WaveformData,
		Metadata:     req.Metadata,
	}
}

func (s *Server) registerTracks(router *mux.Router) {
	router.HandleFunc("/projects/{id}/tracks", s.handleListTracks).Methods(http.MethodGet)
	router.HandleFunc("/projects/{id}/tracks", s.handleCreateTrack).Methods(http.MethodPost)
	router.HandleFunc("/tracks/{id}", s.handleGetTrack).Methods(http.MethodGet)
	router.HandleFunc("/tracks/{id}", s.handleUpdateTrack).Methods(http.MethodPut)
	router.HandleFunc("/tracks/{id}", s.handleDeleteTrack).Methods(http.MethodDelete)
	router.HandleFunc("/tracks/{id}/versions", s.handleListVersions).Methods(http.MethodGet)
	router.HandleFunc("/tracks/{id}/versions", s.handleCreateVersion).Methods(http.MethodPost)
	router.HandleFunc("/tracks/{id}/latest", s.handleLatestVersion).Methods(http.MethodGet)
}

func (s *Server) handleListTracks(w http.ResponseWriter, r *http.Request) {
	projectID, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	list, err := s.tracks.ListByProject(r.Context(), userID(r), projectID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Tracks []models.Track `json:"tracks"`
	}{Tracks: list})
}

func (s *Server) handleCreateTrack(w http.ResponseWriter, r *http.Request) {
	projectID, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req trackRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	created, err := s.tracks.Create(r.Context(), userID(r), projectID, req.draft())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleGetTrack(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	track, err := s.tracks.Get(r.Context(), userID(r), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, track)
}

func (s *Server) handleUpdateTrack(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req trackPatchRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	updated, err := s.tracks.Update(r.Context(), userID(r), id, tracks.Patch{
		Title:        req.Title,
		VersionName:  req.VersionName,
		WaveformData: req.WaveformData,
		Metadata:     req.Metadata,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// handleDeleteTrack removes one version; its successor is relinked to the predecessor.
func (s *Server) handleDeleteTrack(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.tracks.Delete(r.Context(), userID(r), id); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, struct{}{})
}

func (s *Server) handleCreateVersion(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req trackRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	created, err := s.tracks.CreateVersion(r.Context(), userID(r), id, req.draft())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleListVersions(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	versions, err := s.tracks.Versions(r.Context(), userID(r), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Versions []models.Track `json:"versions"`
	}{Versions: versions})
}

func (s *Server) handleLatestVersion(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	latest, err := s.tracks.Latest(r.Context(), userID(r), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, latest)
}
