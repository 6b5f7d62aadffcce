package pii

import (
	"log/slog"
	"strings"

	"github.com/flopinger/leads-sample-sub000/internal/domain"
)

// relationshipEmailKeys are removed from relationship data unconditionally.
var relationshipEmailKeys = []string{"email", "email_1", "email_2", "email_3"}

// Options configures a Sanitizer.
type Options struct {
	// SourceRenames maps an internal relationship source to its public label.
	SourceRenames map[string]string
	// InternalMarker drops relationship values that contain it (case-insensitive).
	InternalMarker  string
	ExcludedDomains []string
	ExcludedEmails  []string
}

// Sanitizer cleans workshop and event records before they leave the service.
// It never mutates its input and applying it twice equals applying it once.
type Sanitizer struct {
	renames         map[string]string
	marker          string
	excludedDomains map[string]struct{}
	excludedEmails  map[string]struct{}
	logger          *slog.Logger
}

// NewSanitizer creates a new Sanitizer.
func NewSanitizer(opts Options, logger *slog.Logger) *Sanitizer {
	s := &Sanitizer{
		renames:         make(map[string]string, len(opts.SourceRenames)),
		marker:          strings.ToLower(strings.TrimSpace(opts.InternalMarker)),
		excludedDomains: make(map[string]struct{}, len(opts.ExcludedDomains)),
		excludedEmails:  make(map[string]struct{}, len(opts.ExcludedEmails)),
		logger:          logger,
	}
	for from, to := range opts.SourceRenames {
		s.renames[from] = to
	}
	for _, d := range opts.ExcludedDomains {
		if d = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(d), "@")); d != "" {
			s.excludedDomains[d] = struct{}{}
		}
	}
	for _, e := range opts.ExcludedEmails {
		if e = strings.ToLower(strings.TrimSpace(e)); e != "" {
			s.excludedEmails[e] = struct{}{}
		}
	}
	return s
}

// Workshop returns a sanitized deep copy of w.
func (s *Sanitizer) Workshop(w domain.Workshop) domain.Workshop {
	c := w.Clone()
	for i := range c.Relationships {
		rel := &c.Relationships[i]
		if to, ok := s.renames[rel.Source]; ok {
			rel.Source = to
		}
		rel.Data = s.cleanData(rel.Data, true)
	}
	if c.Email != nil {
		c.Email = s.filterEmails(c.Email)
	}
	return c
}

// Workshops sanitizes every record of ws into a new slice.
func (s *Sanitizer) Workshops(ws []domain.Workshop) []domain.Workshop {
	out := make([]domain.Workshop, len(ws))
	for i, w := range ws {
		out[i] = s.Workshop(w)
	}
	return out
}

// Event returns a sanitized deep copy of e. Event details get the same
// marker treatment as relationship data; email keys are kept.
func (s *Sanitizer) Event(e domain.Event) domain.Event {
	c := e.Clone()
	c.Details = s.cleanData(c.Details, false)
	return c
}

// Events sanitizes every record of es into a new slice.
func (s *Sanitizer) Events(es []domain.Event) []domain.Event {
	out := make([]domain.Event, len(es))
	for i, e := range es {
		out[i] = s.Event(e)
	}
	return out
}

// cleanData edits an already cloned map in place.
func (s *Sanitizer) cleanData(data map[string]any, dropEmails bool) map[string]any {
	if data == nil {
		return nil
	}
	if dropEmails {
		for _, k := range relationshipEmailKeys {
			delete(data, k)
		}
	}
	for k, v := range data {
		cleaned, keep := s.cleanValue(v)
		if !keep {
			s.logger.Debug("dropped internal value from record", "key", k)
			delete(data, k)
			continue
		}
		data[k] = cleaned
	}
	return data
}

func (s *Sanitizer) cleanValue(v any) (any, bool) {
	switch t := v.(type) {
	case string:
		return t, !s.hasMarker(t)
	case map[string]any:
		return s.cleanData(t, false), true
	case []any:
		kept := make([]any, 0, len(t))
		for _, e := range t {
			if c, ok := s.cleanValue(e); ok {
				kept = append(kept, c)
			}
		}
		return kept, true
	case []string:
		kept := make([]string, 0, len(t))
		for _, e := range t {
			if !s.hasMarker(e) {
				kept = append(kept, e)
			}
		}
		return kept, true
	default:
		return v, true
	}
}

func (s *Sanitizer) hasMarker(v string) bool {
	return s.marker != "" && strings.Contains(strings.ToLower(v), s.marker)
}

func (s *Sanitizer) filterEmails(emails []string) []string {
	kept := make([]string, 0, len(emails))
	for _, e := range emails {
		if s.excluded(e) {
			continue
		}
		kept = append(kept, e)
	}
	return kept
}

func (s *Sanitizer) excluded(email string) bool {
	e := strings.ToLower(strings.TrimSpace(email))
	if _, ok := s.excludedEmails[e]; ok {
		return true
	}
	at := strings.LastIndex(e, "@")
	if at < 0 {
		return false
	}
	// Subdomains of an excluded domain are excluded too.
	for host := e[at+1:]; host != ""; {
		if _, ok := s.excludedDomains[host]; ok {
			return true
		}
		dot := strings.IndexByte(host, '.')
		if dot < 0 {
			break
		}
		host = host[dot+1:]
	}
	return false
}
