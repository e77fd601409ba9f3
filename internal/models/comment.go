package models

import (
	"fmt"
	"strings"
	"time"
)

// CommentCategory classifies the nature of feedback.
type CommentCategory string

const (
	CategoryGeneral   CommentCategory = "general"
	CategoryTechnical CommentCategory = "technical"
	CategoryCreative  CommentCategory = "creative"
	CategoryQuestion  CommentCategory = "question"
)

// ParseCommentCategory normalizes a category; empty input yields general.
func ParseCommentCategory(raw string) (CommentCategory, error) {
	switch c := CommentCategory(strings.ToLower(strings.TrimSpace(raw))); c {
	case "":
		return CategoryGeneral, nil
	case CategoryGeneral, CategoryTechnical, CategoryCreative, CategoryQuestion:
		return c, nil
	default:
		return "", fmt.Errorf("unknown comment category %q", raw)
	}
}

// CommentStatus is the workflow state of a comment.
type CommentStatus string

const (
	StatusOpen      CommentStatus = "open"
	StatusAddressed CommentStatus = "addressed"
	StatusRejected  CommentStatus = "rejected"
	StatusCompleted CommentStatus = "completed"
)

var statusAliases = map[string]CommentStatus{
	"in_progress": StatusAddressed,
	"resolved":    StatusCompleted,
	"wont_fix":    StatusRejected,
}

// ParseCommentStatus accepts the canonical labels and their older aliases.
// Any state may move to any other, so there is no transition table.
func ParseCommentStatus(raw string) (CommentStatus, error) {
	label := strings.ToLower(strings.TrimSpace(raw))
	if label == "" {
		return "", fmt.Errorf("status is required")
	}
	switch s := CommentStatus(label); s {
	case StatusOpen, StatusAddressed, StatusRejected, StatusCompleted:
		return s, nil
	}
	if s, ok := statusAliases[label]; ok {
		return s, nil
	}
	return "", fmt.Errorf("unknown status %q", raw)
}

// ReactionType is one of the fixed reaction kinds.
type ReactionType string

const (
	ReactionLike     ReactionType = "like"
	ReactionDislike  ReactionType = "dislike"
	ReactionAgree    ReactionType = "agree"
	ReactionDisagree ReactionType = "disagree"
)

// ParseReactionType validates a reaction label.
func ParseReactionType(raw string) (ReactionType, error) {
	label := strings.ToLower(strings.TrimSpace(raw))
	if label == "" {
		return "", fmt.Errorf("reaction type is required")
	}
	switch t := ReactionType(label); t {
	case ReactionLike, ReactionDislike, ReactionAgree, ReactionDisagree:
		return t, nil
	default:
		return "", fmt.Errorf("unknown reaction type %q", raw)
	}
}

// AttachmentType is the media kind of an attachment.
type AttachmentType string

const (
	AttachmentImage AttachmentType = "image"
	AttachmentAudio AttachmentType = "audio"
	AttachmentVideo AttachmentType = "video"
	AttachmentLink  AttachmentType = "link"
)

// Attachment references external media linked from a comment.
type Attachment struct {
	Type      AttachmentType `json:"type"`
	URL       string         `json:"url"`
	Thumbnail string         `json:"thumbnail,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// Validate checks the attachment kind and URL.
func (a Attachment) Validate() error {
	switch a.Type {
	case AttachmentImage, AttachmentAudio, AttachmentVideo, AttachmentLink:
	default:
		return fmt.Errorf("unknown attachment type %q", a.Type)
	}
	if strings.TrimSpace(a.URL) == "" {
		return fmt.Errorf("attachment url is required")
	}
	return nil
}

// Audible frequency bounds for comment ranges, in Hz.
const (
	MinFrequency = 20
	MaxFrequency = 20000
)

// FrequencyRange scopes a comment to part of the spectrum.
type FrequencyRange struct {
	Low  float64 `json:"low"`
	High float64 `json:"high"`
}

// Validate requires MinFrequency <= Low < High <= MaxFrequency.
func (f FrequencyRange) Validate() error {
	if f.Low < MinFrequency || f.High > MaxFrequency {
		return fmt.Errorf("frequency range must be within %d-%d Hz", MinFrequency, MaxFrequency)
	}
	if f.Low >= f.High {
		return fmt.Errorf("frequency range low must be below high")
	}
	return nil
}

// Reaction records one user's reaction of one type.
type Reaction struct {
	UserID    int64        `json:"user_id"`
	Type      ReactionType `json:"type"`
	CreatedAt time.Time    `json:"created_at"`
}

// MaxCommentLength bounds comment text after trimming.
const MaxCommentLength = 1000

// Comment is timestamped feedback on a track. ParentID is nil for top-level comments.
type Comment struct {
	ID             int64           `json:"id"`
	TrackID        int64           `json:"track_id"`
	AuthorID       int64           `json:"author_id"`
	ParentID       *int64          `json:"parent_id,omitempty"`
	Timestamp      float64         `json:"timestamp"`
	Duration       float64         `json:"duration"`
	Text           string          `json:"text"`
	Category       CommentCategory `json:"category"`
	Status         CommentStatus   `json:"status"`
	FrequencyRange *FrequencyRange `json:"frequency_range,omitempty"`
	Attachments    []Attachment    `json:"attachments"`
	Reactions      []Reaction      `json:"reactions"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// IsReply reports whether the comment hangs off another comment.
func (c *Comment) IsReply() bool {
	return c.ParentID != nil
}

// ToggleReaction removes the (userID, typ) reaction if present, otherwise appends it.
// It reports whether a reaction was added. Applying it twice restores the original list.
func (c *Comment) ToggleReaction(userID int64, typ ReactionType, now time.Time) bool {
	for i, r := range c.Reactions {
		if r.UserID == userID && r.Type == typ {
			c.Reactions = append(c.Reactions[:i:i], c.Reactions[i+1:]...)
			return false
		}
	}
	c.Reactions = append(c.Reactions, Reaction{UserID: userID, Type: typ, CreatedAt: now})
	return true
}

// Thread is a top-level comment with its replies in creation order.
type Thread struct {
	Comment
	Replies []Comment `json:"replies"`
}
