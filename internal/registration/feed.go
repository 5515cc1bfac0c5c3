package registration

import (
	"context"
	"strconv"
	"strings"
	"time"
)

// Feed is the answer to a changed-since poll.
type Feed struct {
	LastUpdated   time.Time
	SerialNumbers []string
}

// LastUpdatedTag formats LastUpdated the way devices echo it back in
// passesUpdatedSince. Nanosecond precision keeps the strict comparison exact.
func (f Feed) LastUpdatedTag() string {
	return f.LastUpdated.UTC().Format(time.RFC3339Nano)
}

// Updates resolves the changed-since feed. ok is false when nothing changed,
// which callers answer with no content rather than an error.
func (s *Service) Updates(ctx context.Context, device, passType string, since *time.Time) (Feed, bool, error) {
	regs, err := s.FeedSince(ctx, device, passType, since)
	if err != nil {
		return Feed{}, false, err
	}
	if len(regs) == 0 {
		return Feed{}, false, nil
	}

	feed := Feed{SerialNumbers: make([]string, 0, len(regs))}
	for _, reg := range regs {
		feed.SerialNumbers = append(feed.SerialNumbers, reg.SerialNumber)
		if reg.UpdatedAt.After(feed.LastUpdated) {
			feed.LastUpdated = reg.UpdatedAt
		}
	}
	return feed, true, nil
}

// ParseSince parses a passesUpdatedSince value. An empty value means no
// filter. Both RFC 3339 timestamps and unix seconds are accepted.
func ParseSince(raw string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}

	if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
		return &t, nil
	}

	if secs, err := strconv.ParseInt(raw, 10, 64); err == nil && secs >= 0 {
		t := time.Unix(secs, 0).UTC()
		return &t, nil
	}

	return nil, ErrInvalidSince
}
