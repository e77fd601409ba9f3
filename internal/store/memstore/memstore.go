// Package memstore is an in-memory implementation of the persistence layer.
// It mirrors the Postgres store's semantics and is used for local runs and tests.
package memstore

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"mixnotes/internal/models"
	"mixnotes/internal/store"
)

type projectKey struct {
	projectID int64
	userID    int64
}

// Store keeps every record in maps guarded by one lock.
type Store struct {
	mu sync.RWMutex

	users         map[int64]*models.User
	usersByEmail  map[string]int64
	projects      map[int64]*models.Project
	collaborators map[projectKey]models.Collaborator
	tracks        map[int64]*models.Track
	comments      map[int64]*models.Comment

	nextID int64
	now    func() time.Time
	seq    int64
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		users:         make(map[int64]*models.User),
		usersByEmail:  make(map[string]int64),
		projects:      make(map[int64]*models.Project),
		collaborators: make(map[projectKey]models.Collaborator),
		tracks:        make(map[int64]*models.Track),
		comments:      make(map[int64]*models.Comment),
		nextID:        1,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the time source; useful for deterministic ordering in tests.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

func (s *Store) id() int64 {
	id := s.nextID
	s.nextID++
	return id
}

// stamp returns a strictly increasing time so creation order is total even with a frozen clock.
func (s *Store) stamp() time.Time {
	s.seq++
	return s.now().Add(time.Duration(s.seq) * time.Nanosecond)
}

// Ping always succeeds.
func (s *Store) Ping(context.Context) error { return nil }

// CreateUser registers a user; emails are unique case-insensitively.
func (s *Store) CreateUser(_ context.Context, user *models.User) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	email := strings.ToLower(strings.TrimSpace(user.Email))
	if _, ok := s.usersByEmail[email]; ok {
		return nil, store.ErrUserExists
	}

	created := cloneUser(user)
	created.ID = s.id()
	created.Email = email
	created.CreatedAt = s.stamp()
	created.UpdatedAt = created.CreatedAt

	s.users[created.ID] = created
	s.usersByEmail[email] = created.ID
	return cloneUser(created), nil
}

// GetUser loads a user by id.
func (s *Store) GetUser(_ context.Context, id int64) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, store.ErrUserNotFound
	}
	return cloneUser(u), nil
}

// GetUserByEmail loads a user by email.
func (s *Store) GetUserByEmail(_ context.Context, email string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.usersByEmail[strings.ToLower(strings.TrimSpace(email))]
	if !ok {
		return nil, store.ErrUserNotFound
	}
	return cloneUser(s.users[id]), nil
}

// UpdateUser saves name, email, role and password hash.
func (s *Store) UpdateUser(_ context.Context, user *models.User) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.users[user.ID]
	if !ok {
		return nil, store.ErrUserNotFound
	}
	email := strings.ToLower(strings.TrimSpace(user.Email))
	if owner, taken := s.usersByEmail[email]; taken && owner != user.ID {
		return nil, store.ErrUserExists
	}

	delete(s.usersByEmail, existing.Email)
	existing.Name = user.Name
	existing.Email = email
	existing.Role = user.Role
	existing.PasswordHash = append([]byte(nil), user.PasswordHash...)
	existing.UpdatedAt = s.stamp()
	s.usersByEmail[email] = existing.ID
	return cloneUser(existing), nil
}

// CreateProject stores a project without collaborators.
func (s *Store) CreateProject(_ context.Context, project *models.Project) (*models.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	created := cloneProject(project)
	created.ID = s.id()
	created.Collaborators = nil
	created.CreatedAt = s.stamp()
	created.UpdatedAt = created.CreatedAt
	if created.Tags == nil {
		created.Tags = []string{}
	}

	s.projects[created.ID] = created
	return s.projectView(created), nil
}

// GetProject loads a project with its collaborators.
func (s *Store) GetProject(_ context.Context, id int64) (*models.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.projects[id]
	if !ok {
		return nil, store.ErrProjectNotFound
	}
	return s.projectView(p), nil
}

// ListProjectsForUser returns projects owned by or shared with userID, most recently updated first.
func (s *Store) ListProjectsForUser(_ context.Context, userID int64) ([]models.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []models.Project{}
	for _, p := range s.projects {
		_, member := s.collaborators[projectKey{p.ID, userID}]
		if p.OwnerID == userID || member {
			out = append(out, *s.projectView(p))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].UpdatedAt.After(out[j].UpdatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

// UpdateProject writes the mutable project fields.
func (s *Store) UpdateProject(_ context.Context, project *models.Project) (*models.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.projects[project.ID]
	if !ok {
		return nil, store.ErrProjectNotFound
	}
	existing.Title = project.Title
	existing.Description = project.Description
	existing.Status = project.Status
	existing.Tags = append([]string{}, project.Tags...)
	existing.IsPrivate = project.IsPrivate
	existing.UpdatedAt = s.stamp()
	return s.projectView(existing), nil
}

// DeleteProject removes a project with its collaborators, tracks and comments.
func (s *Store) DeleteProject(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.projects[id]; !ok {
		return store.ErrProjectNotFound
	}
	delete(s.projects, id)
	for key := range s.collaborators {
		if key.projectID == id {
			delete(s.collaborators, key)
		}
	}
	for trackID, t := range s.tracks {
		if t.ProjectID != id {
			continue
		}
		for commentID, c := range s.comments {
			if c.TrackID == trackID {
				delete(s.comments, commentID)
			}
		}
		delete(s.tracks, trackID)
	}
	// Links into deleted versions are cleared like ON DELETE SET NULL.
	for _, t := range s.tracks {
		if t.PreviousVersionID != nil {
			if _, ok := s.tracks[*t.PreviousVersionID]; !ok {
				t.PreviousVersionID = nil
			}
		}
	}
	return nil
}

// AddCollaborator adds a collaborator; the (project, user) pair is unique.
func (s *Store) AddCollaborator(_ context.Context, projectID int64, c models.Collaborator) (models.Collaborator, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.projects[projectID]
	if !ok {
		return models.Collaborator{}, store.ErrProjectNotFound
	}
	key := projectKey{projectID, c.UserID}
	if _, exists := s.collaborators[key]; exists {
		return models.Collaborator{}, store.ErrDuplicateCollaborator
	}
	added := cloneCollaborator(c)
	added.AddedAt = s.stamp()
	s.collaborators[key] = added
	p.UpdatedAt = added.AddedAt
	return cloneCollaborator(added), nil
}

// UpdateCollaborator replaces role and permissions.
func (s *Store) UpdateCollaborator(_ context.Context, projectID int64, c models.Collaborator) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := projectKey{projectID, c.UserID}
	existing, ok := s.collaborators[key]
	if !ok {
		return store.ErrCollaboratorNotFound
	}
	existing.Role = c.Role
	existing.Permissions = append([]models.Permission(nil), c.Permissions...)
	s.collaborators[key] = existing
	s.projects[projectID].UpdatedAt = s.stamp()
	return nil
}

// RemoveCollaborator deletes a collaborator.
func (s *Store) RemoveCollaborator(_ context.Context, projectID, userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := projectKey{projectID, userID}
	if _, ok := s.collaborators[key]; !ok {
		return store.ErrCollaboratorNotFound
	}
	delete(s.collaborators, key)
	s.projects[projectID].UpdatedAt = s.stamp()
	return nil
}

// projectView copies p and attaches its collaborators ordered by AddedAt. Callers hold the lock.
func (s *Store) projectView(p *models.Project) *models.Project {
	view := cloneProject(p)
	view.Collaborators = []models.Collaborator{}
	for key, c := range s.collaborators {
		if key.projectID == p.ID {
			view.Collaborators = append(view.Collaborators, cloneCollaborator(c))
		}
	}
	sort.Slice(view.Collaborators, func(i, j int) bool {
		a, b := view.Collaborators[i], view.Collaborators[j]
		if !a.AddedAt.Equal(b.AddedAt) {
			return a.AddedAt.Before(b.AddedAt)
		}
		return a.UserID < b.UserID
	})
	return view
}

// CreateTrack stores a version; a predecessor may have only one successor.
func (s *Store) CreateTrack(_ context.Context, track *models.Track) (*models.Track, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.projects[track.ProjectID]; !ok {
		return nil, store.ErrProjectNotFound
	}
	if track.PreviousVersionID != nil {
		for _, t := range s.tracks {
			if t.PreviousVersionID != nil && *t.PreviousVersionID == *track.PreviousVersionID {
				return nil, store.ErrVersionExists
			}
		}
	}

	created := cloneTrack(track)
	created.ID = s.id()
	created.UploadedAt = s.stamp()
	s.tracks[created.ID] = created
	return cloneTrack(created), nil
}

// GetTrack loads a track by id.
func (s *Store) GetTrack(_ context.Context, id int64) (*models.Track, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.tracks[id]
	if !ok {
		return nil, store.ErrTrackNotFound
	}
	return cloneTrack(t), nil
}

// ListTracks returns a project's tracks in upload order.
func (s *Store) ListTracks(_ context.Context, projectID int64) ([]models.Track, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []models.Track{}
	for _, t := range s.tracks {
		if t.ProjectID == projectID {
			out = append(out, *cloneTrack(t))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].UploadedAt.Equal(out[j].UploadedAt) {
			return out[i].UploadedAt.Before(out[j].UploadedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// ListSuccessors returns the tracks naming trackID as their previous version.
func (s *Store) ListSuccessors(_ context.Context, trackID int64) ([]models.Track, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []models.Track{}
	for _, t := range s.tracks {
		if t.PreviousVersionID != nil && *t.PreviousVersionID == trackID {
			out = append(out, *cloneTrack(t))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// UpdateTrack rewrites the descriptive fields of a track.
func (s *Store) UpdateTrack(_ context.Context, track *models.Track) (*models.Track, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.tracks[track.ID]
	if !ok {
		return nil, store.ErrTrackNotFound
	}
	src := cloneTrack(track)
	existing.Title = src.Title
	existing.VersionName = src.VersionName
	existing.WaveformData = src.WaveformData
	existing.Metadata = src.Metadata
	return cloneTrack(existing), nil
}

// DeleteTrack removes a version and its comments, relinking any successor to the predecessor.
func (s *Store) DeleteTrack(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tracks[id]
	if !ok {
		return store.ErrTrackNotFound
	}
	for _, other := range s.tracks {
		if other.PreviousVersionID != nil && *other.PreviousVersionID == id {
			if t.PreviousVersionID == nil {
				other.PreviousVersionID = nil
			} else {
				prev := *t.PreviousVersionID
				other.PreviousVersionID = &prev
			}
		}
	}
	for commentID, c := range s.comments {
		if c.TrackID == id {
			delete(s.comments, commentID)
		}
	}
	delete(s.tracks, id)
	return nil
}

// PutTrack stores t verbatim, bypassing the single-successor check.
// It exists to load legacy histories, including broken ones.
func (s *Store) PutTrack(t models.Track) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tracks[t.ID] = cloneTrack(&t)
	if t.ID >= s.nextID {
		s.nextID = t.ID + 1
	}
}

// CreateComment stores a comment or reply.
func (s *Store) CreateComment(_ context.Context, comment *models.Comment) (*models.Comment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tracks[comment.TrackID]; !ok {
		return nil, store.ErrTrackNotFound
	}
	if comment.ParentID != nil {
		if _, ok := s.comments[*comment.ParentID]; !ok {
			return nil, store.ErrCommentNotFound
		}
	}

	created := cloneComment(comment)
	created.ID = s.id()
	created.CreatedAt = s.stamp()
	created.UpdatedAt = created.CreatedAt
	created.Reactions = []models.Reaction{}
	s.comments[created.ID] = created
	return cloneComment(created), nil
}

// GetComment loads a comment by id.
func (s *Store) GetComment(_ context.Context, id int64) (*models.Comment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.comments[id]
	if !ok {
		return nil, store.ErrCommentNotFound
	}
	return cloneComment(c), nil
}

// ListTopLevelComments returns a track's top-level comments ordered by timestamp.
func (s *Store) ListTopLevelComments(_ context.Context, trackID int64) ([]models.Comment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []models.Comment{}
	for _, c := range s.comments {
		if c.TrackID == trackID && c.ParentID == nil {
			out = append(out, *cloneComment(c))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Timestamp != b.Timestamp {
			return a.Timestamp < b.Timestamp
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})
	return out, nil
}

// ListReplies returns replies to any of parentIDs in creation order.
func (s *Store) ListReplies(_ context.Context, parentIDs []int64) ([]models.Comment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	wanted := make(map[int64]bool, len(parentIDs))
	for _, id := range parentIDs {
		wanted[id] = true
	}
	out := []models.Comment{}
	for _, c := range s.comments {
		if c.ParentID != nil && wanted[*c.ParentID] {
			out = append(out, *cloneComment(c))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// UpdateComment writes text and status.
func (s *Store) UpdateComment(_ context.Context, comment *models.Comment) (*models.Comment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.comments[comment.ID]
	if !ok {
		return nil, store.ErrCommentNotFound
	}
	existing.Text = comment.Text
	existing.Status = comment.Status
	existing.UpdatedAt = s.stamp()
	return cloneComment(existing), nil
}

// DeleteComment removes a comment and its replies, returning how many were removed.
func (s *Store) DeleteComment(_ context.Context, id int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.comments[id]; !ok {
		return 0, store.ErrCommentNotFound
	}
	var removed int64
	for cid, c := range s.comments {
		if c.ParentID != nil && *c.ParentID == id {
			delete(s.comments, cid)
			removed++
		}
	}
	delete(s.comments, id)
	return removed + 1, nil
}

// ToggleReaction flips the (user, type) reaction on a comment.
func (s *Store) ToggleReaction(_ context.Context, commentID, userID int64, typ models.ReactionType, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.comments[commentID]
	if !ok {
		return false, store.ErrCommentNotFound
	}
	return c.ToggleReaction(userID, typ, at), nil
}

func cloneUser(u *models.User) *models.User {
	cp := *u
	cp.PasswordHash = append([]byte(nil), u.PasswordHash...)
	return &cp
}

func cloneProject(p *models.Project) *models.Project {
	cp := *p
	cp.Tags = append([]string{}, p.Tags...)
	cp.Collaborators = make([]models.Collaborator, len(p.Collaborators))
	for i, c := range p.Collaborators {
		cp.Collaborators[i] = cloneCollaborator(c)
	}
	return &cp
}

func cloneCollaborator(c models.Collaborator) models.Collaborator {
	c.Permissions = append([]models.Permission(nil), c.Permissions...)
	return c
}

func cloneTrack(t *models.Track) *models.Track {
	cp := *t
	if t.PreviousVersionID != nil {
		id := *t.PreviousVersionID
		cp.PreviousVersionID = &id
	}
	if t.AudioFile.SampleRate != nil {
		v := *t.AudioFile.SampleRate
		cp.AudioFile.SampleRate = &v
	}
	if t.AudioFile.BitDepth != nil {
		v := *t.AudioFile.BitDepth
		cp.AudioFile.BitDepth = &v
	}
	if t.Metadata.BPM != nil {
		v := *t.Metadata.BPM
		cp.Metadata.BPM = &v
	}
	cp.Metadata.Instruments = append([]string(nil), t.Metadata.Instruments...)
	if t.Metadata.CustomFields != nil {
		cp.Metadata.CustomFields = make(map[string]string, len(t.Metadata.CustomFields))
		for k, v := range t.Metadata.CustomFields {
			cp.Metadata.CustomFields[k] = v
		}
	}
	return &cp
}

func cloneComment(c *models.Comment) *models.Comment {
	cp := *c
	if c.ParentID != nil {
		id := *c.ParentID
		cp.ParentID = &id
	}
	if c.FrequencyRange != nil {
		r := *c.FrequencyRange
		cp.FrequencyRange = &r
	}
	cp.Attachments = make([]models.Attachment, len(c.Attachments))
	for i, a := range c.Attachments {
		cp.Attachments[i] = a
		if a.Metadata != nil {
			cp.Attachments[i].Metadata = make(map[string]any, len(a.Metadata))
			for k, v := range a.Metadata {
				cp.Attachments[i].Metadata[k] = v
			}
		}
	}
	cp.Reactions = append([]models.Reaction{}, c.Reactions...)
	return &cp
}
