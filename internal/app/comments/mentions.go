package comments

import (
	"context"
	"regexp"

	"mixnotes/internal/logging"
	"mixnotes/internal/models"
)

var mentionPattern = regexp.MustCompile(`@(\w+)`)

// Mentions returns the distinct @handles in text, in order of first appearance.
func Mentions(text string) []string {
	matches := mentionPattern.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(matches))
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		if !seen[m[1]] {
			seen[m[1]] = true
			out = append(out, m[1])
		}
	}
	return out
}

// logMentions records mentions for later notification work. It never fails the write.
func logMentions(ctx context.Context, c *models.Comment) {
	handles := Mentions(c.Text)
	if len(handles) == 0 {
		return
	}
	logging.WithContext(ctx).Info().
		Int64("comment_id", c.ID).
		Int64("track_id", c.TrackID).
		Strs("mentions", handles).
		Msg("comment mentions users")
}
