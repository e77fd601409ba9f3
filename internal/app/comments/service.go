package comments

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"mixnotes/internal/access"
	"mixnotes/internal/apperr"
	"mixnotes/internal/logging"
	"mixnotes/internal/models"
)

// Store describes the persistence operations required by the comment service.
type Store interface {
	GetTrack(ctx context.Context, id int64) (*models.Track, error)
	GetProject(ctx context.Context, id int64) (*models.Project, error)
	GetComment(ctx context.Context, id int64) (*models.Comment, error)
	ListTopLevelComments(ctx context.Context, trackID int64) ([]models.Comment, error)
	ListReplies(ctx context.Context, parentIDs []int64) ([]models.Comment, error)
	CreateComment(ctx context.Context, comment *models.Comment) (*models.Comment, error)
	UpdateComment(ctx context.Context, comment *models.Comment) (*models.Comment, error)
	DeleteComment(ctx context.Context, id int64) (int64, error)
	ToggleReaction(ctx context.Context, commentID, userID int64, typ models.ReactionType, at time.Time) (bool, error)
}

// Draft is the client-supplied content of a new comment or reply.
// Timestamp is required for top-level comments and ignored for replies.
type Draft struct {
	Text           string
	Timestamp      *float64
	Duration       float64
	Category       string
	FrequencyRange *models.FrequencyRange
	Attachments    []models.Attachment
}

// Patch carries the fields an author may edit. Nil fields are left alone.
type Patch struct {
	Text   *string
	Status *string
}

// Service exposes comment threads, reactions and the status workflow.
type Service interface {
	ListTopLevel(ctx context.Context, trackID int64) ([]models.Comment, error)
	AttachReplies(ctx context.Context, comments []models.Comment) ([]models.Thread, error)
	List(ctx context.Context, actorID, trackID int64) ([]models.Thread, error)
	Create(ctx context.Context, actorID, trackID int64, draft Draft) (*models.Comment, error)
	Reply(ctx context.Context, actorID, parentID int64, draft Draft) (*models.Comment, error)
	Update(ctx context.Context, actorID, commentID int64, patch Patch) (*models.Comment, error)
	Delete(ctx context.Context, actorID, commentID int64) (int64, error)
	ToggleReaction(ctx context.Context, actorID, commentID int64, reactionType string) (*models.Comment, error)
	ChangeStatus(ctx context.Context, actorID, commentID int64, status string) (*models.Comment, error)
}

type service struct {
	store Store
	now   func() time.Time
}

// Option customizes the service.
type Option func(*service)

// WithClock overrides the time source used for reactions.
func WithClock(now func() time.Time) Option {
	return func(s *service) { s.now = now }
}

// New wires a Service backed by the provided Store.
func New(store Store, opts ...Option) Service {
	s := &service{store: store, now: func() time.Time { return time.Now().UTC() }}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *service) ListTopLevel(ctx context.Context, trackID int64) ([]models.Comment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.store.ListTopLevelComments(ctx, trackID)
}

func (s *service) AttachReplies(ctx context.Context, comments []models.Comment) ([]models.Thread, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	threads := make([]models.Thread, len(comments))
	if len(comments) == 0 {
		return threads, nil
	}

	ids := make([]int64, len(comments))
	index := make(map[int64]int, len(comments))
	for i, c := range comments {
		ids[i] = c.ID
		index[c.ID] = i
		threads[i] = models.Thread{Comment: c, Replies: []models.Comment{}}
	}

	replies, err := s.store.ListReplies(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("list replies: %w", err)
	}
	for _, r := range replies {
		if r.ParentID == nil {
			continue
		}
		if i, ok := index[*r.ParentID]; ok {
			threads[i].Replies = append(threads[i].Replies, r)
		}
	}
	return threads, nil
}

func (s *service) List(ctx context.Context, actorID, trackID int64) ([]models.Thread, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	_, project, err := s.trackAndProject(ctx, trackID)
	if err != nil {
		return nil, err
	}
	if err := s.require(ctx, actorID, project, models.PermissionView); err != nil {
		return nil, err
	}

	top, err := s.ListTopLevel(ctx, trackID)
	if err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}
	return s.AttachReplies(ctx, top)
}

func (s *service) Create(ctx context.Context, actorID, trackID int64, draft Draft) (*models.Comment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	comment, err := buildComment(draft)
	if err != nil {
		return nil, err
	}
	switch {
	case draft.Timestamp == nil:
		return nil, apperr.Validation("timestamp is required")
	case *draft.Timestamp < 0:
		return nil, apperr.Validation("timestamp must be zero or greater")
	}
	comment.Timestamp = *draft.Timestamp

	track, project, err := s.trackAndProject(ctx, trackID)
	if err != nil {
		return nil, err
	}
	if err := s.require(ctx, actorID, project, models.PermissionComment); err != nil {
		return nil, err
	}

	comment.TrackID = track.ID
	comment.AuthorID = actorID
	created, err := s.store.CreateComment(ctx, comment)
	if err != nil {
		return nil, fmt.Errorf("create comment: %w", err)
	}
	logMentions(ctx, created)
	return created, nil
}

func (s *service) Reply(ctx context.Context, actorID, parentID int64, draft Draft) (*models.Comment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	reply, err := buildComment(draft)
	if err != nil {
		return nil, err
	}

	parent, err := s.store.GetComment(ctx, parentID)
	if err != nil {
		return nil, err
	}
	if parent.IsReply() {
		return nil, apperr.Validation("cannot reply to a reply")
	}

	_, project, err := s.trackAndProject(ctx, parent.TrackID)
	if err != nil {
		return nil, err
	}
	if err := s.require(ctx, actorID, project, models.PermissionComment); err != nil {
		return nil, err
	}

	reply.TrackID = parent.TrackID
	reply.AuthorID = actorID
	reply.ParentID = &parent.ID
	reply.Timestamp = parent.Timestamp

	created, err := s.store.CreateComment(ctx, reply)
	if err != nil {
		return nil, fmt.Errorf("create reply: %w", err)
	}
	logMentions(ctx, created)
	return created, nil
}

func (s *service) Update(ctx context.Context, actorID, commentID int64, patch Patch) (*models.Comment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	comment, err := s.store.GetComment(ctx, commentID)
	if err != nil {
		return nil, err
	}
	if comment.AuthorID != actorID {
		logging.WithContext(ctx).Debug().Int64("comment_id", commentID).Msg("comment update denied: not the author")
		return nil, apperr.Forbidden("only the author can edit this comment")
	}

	if patch.Text == nil && patch.Status == nil {
		return nil, apperr.Validation("nothing to update: provide text or status")
	}
	textChanged := false
	if patch.Text != nil {
		text, err := normalizeText(*patch.Text)
		if err != nil {
			return nil, err
		}
		textChanged = text != comment.Text
		comment.Text = text
	}
	if patch.Status != nil {
		status, err := models.ParseCommentStatus(*patch.Status)
		if err != nil {
			return nil, apperr.Validation("%v", err)
		}
		comment.Status = status
	}

	updated, err := s.store.UpdateComment(ctx, comment)
	if err != nil {
		return nil, fmt.Errorf("update comment: %w", err)
	}
	if textChanged {
		logMentions(ctx, updated)
	}
	return updated, nil
}

func (s *service) Delete(ctx context.Context, actorID, commentID int64) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	comment, err := s.store.GetComment(ctx, commentID)
	if err != nil {
		return 0, err
	}

	if comment.AuthorID != actorID {
		_, project, err := s.trackAndProject(ctx, comment.TrackID)
		if err != nil {
			return 0, err
		}
		if !access.IsOwner(actorID, project) {
			logging.WithContext(ctx).Debug().Int64("comment_id", commentID).Msg("comment delete denied")
			return 0, apperr.Forbidden("only the author or the project owner can delete this comment")
		}
	}

	removed, err := s.store.DeleteComment(ctx, commentID)
	if err != nil {
		return 0, fmt.Errorf("delete comment: %w", err)
	}
	return removed, nil
}

func (s *service) ToggleReaction(ctx context.Context, actorID, commentID int64, reactionType string) (*models.Comment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	typ, err := models.ParseReactionType(reactionType)
	if err != nil {
		return nil, apperr.Validation("%v", err)
	}

	comment, err := s.store.GetComment(ctx, commentID)
	if err != nil {
		return nil, err
	}
	_, project, err := s.trackAndProject(ctx, comment.TrackID)
	if err != nil {
		return nil, err
	}
	if err := s.require(ctx, actorID, project, models.PermissionView); err != nil {
		return nil, err
	}

	if _, err := s.store.ToggleReaction(ctx, commentID, actorID, typ, s.now()); err != nil {
		return nil, fmt.Errorf("toggle reaction: %w", err)
	}
	return s.store.GetComment(ctx, commentID)
}

func (s *service) ChangeStatus(ctx context.Context, actorID, commentID int64, status string) (*models.Comment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	next, err := models.ParseCommentStatus(status)
	if err != nil {
		return nil, apperr.Validation("%v", err)
	}

	comment, err := s.store.GetComment(ctx, commentID)
	if err != nil {
		return nil, err
	}
	track, project, err := s.trackAndProject(ctx, comment.TrackID)
	if err != nil {
		return nil, err
	}
	if actorID != comment.AuthorID && actorID != track.UploaderID && !access.IsOwner(actorID, project) {
		logging.WithContext(ctx).Debug().Int64("comment_id", commentID).Msg("status change denied")
		return nil, apperr.Forbidden("only the author, the track uploader or the project owner can change the status")
	}

	comment.Status = next
	updated, err := s.store.UpdateComment(ctx, comment)
	if err != nil {
		return nil, fmt.Errorf("change status: %w", err)
	}
	return updated, nil
}

func (s *service) trackAndProject(ctx context.Context, trackID int64) (*models.Track, *models.Project, error) {
	track, err := s.store.GetTrack(ctx, trackID)
	if err != nil {
		return nil, nil, err
	}
	project, err := s.store.GetProject(ctx, track.ProjectID)
	if err != nil {
		return nil, nil, err
	}
	return track, project, nil
}

func (s *service) require(ctx context.Context, actorID int64, project *models.Project, perm models.Permission) error {
	if err := access.Require(actorID, project, perm); err != nil {
		logging.WithContext(ctx).Debug().
			Int64("project_id", project.ID).
			Str("permission", string(perm)).
			Msg("access denied")
		return err
	}
	return nil
}

// buildComment validates everything but the timestamp, which Create and Reply set themselves.
func buildComment(draft Draft) (*models.Comment, error) {
	text, err := normalizeText(draft.Text)
	if err != nil {
		return nil, err
	}
	if draft.Duration < 0 {
		return nil, apperr.Validation("duration must be zero or greater")
	}
	category, err := models.ParseCommentCategory(draft.Category)
	if err != nil {
		return nil, apperr.Validation("%v", err)
	}
	if draft.FrequencyRange != nil {
		if err := draft.FrequencyRange.Validate(); err != nil {
			return nil, apperr.Validation("%v", err)
		}
	}
	attachments := make([]models.Attachment, 0, len(draft.Attachments))
	for _, a := range draft.Attachments {
		a.Type = models.AttachmentType(strings.ToLower(strings.TrimSpace(string(a.Type))))
		a.URL = strings.TrimSpace(a.URL)
		if err := a.Validate(); err != nil {
			return nil, apperr.Validation("%v", err)
		}
		attachments = append(attachments, a)
	}

	var rng *models.FrequencyRange
	if draft.FrequencyRange != nil {
		r := *draft.FrequencyRange
		rng = &r
	}

	return &models.Comment{
		Duration:       draft.Duration,
		Text:           text,
		Category:       category,
		Status:         models.StatusOpen,
		FrequencyRange: rng,
		Attachments:    attachments,
		Reactions:      []models.Reaction{},
	}, nil
}

func normalizeText(raw string) (string, error) {
	text := strings.TrimSpace(raw)
	if text == "" {
		return "", apperr.Validation("comment text is required")
	}
	if utf8.RuneCountInString(text) > models.MaxCommentLength {
		return "", apperr.Validation("comment text must be at most %d characters", models.MaxCommentLength)
	}
	return text, nil
}
