package domain

import "time"

// Workshop is a directory entry. It is reference data owned elsewhere.
type Workshop struct {
	ID            string         `json:"id"`
	Name          string         `json:"name"`
	Street        string         `json:"street,omitempty"`
	ZipCode       string         `json:"zip_code,omitempty"`
	City          string         `json:"city,omitempty"`
	Concepts      []string       `json:"concepts,omitempty"`
	Email         []string       `json:"email,omitempty"`
	Phone         string         `json:"phone,omitempty"`
	Website       string         `json:"website,omitempty"`
	Latitude      *float64       `json:"latitude,omitempty"`
	Longitude     *float64       `json:"longitude,omitempty"`
	Relationships []Relationship `json:"relationships,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

// Relationship is a per-source-system blob attached to a workshop,
// e.g. NORTHDATA or GOOGLE_BUSINESS.
type Relationship struct {
	Source string         `json:"source"`
	Data   map[string]any `json:"data,omitempty"`
}

// WorkshopFilter narrows a workshop listing.
type WorkshopFilter struct {
	Search  string `json:"search,omitempty"`
	City    string `json:"city,omitempty"`
	ZipCode string `json:"zipCode,omitempty"`
	Concept string `json:"concept,omitempty"`
}

// Clone returns a deep copy of w.
func (w Workshop) Clone() Workshop {
	c := w
	c.Concepts = cloneStrings(w.Concepts)
	c.Email = cloneStrings(w.Email)
	if w.Latitude != nil {
		lat := *w.Latitude
		c.Latitude = &lat
	}
	if w.Longitude != nil {
		lng := *w.Longitude
		c.Longitude = &lng
	}
	if w.Relationships != nil {
		c.Relationships = make([]Relationship, len(w.Relationships))
		for i, rel := range w.Relationships {
			c.Relationships[i] = Relationship{Source: rel.Source, Data: CloneMap(rel.Data)}
		}
	}
	return c
}

// CloneMap deep-copies a decoded JSON object.
func CloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return CloneMap(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = cloneValue(e)
		}
		return out
	case []string:
		return cloneStrings(t)
	case []map[string]any:
		out := make([]map[string]any, len(t))
		for i, e := range t {
			out[i] = CloneMap(e)
		}
		return out
	default:
		return v
	}
}

func cloneStrings(s []string) []string {
	if s == nil {
		return nil
	}
	out := make([]string, len(s))
	copy(out, s)
	return out
}
