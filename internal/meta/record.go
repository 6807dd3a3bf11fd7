package meta

import "strings"

// Soft limits for generated metadata. These mirror what the model is asked
// to produce; they are display hints only and are never enforced by
// truncation after user edits.
const (
	TitleLimit       = 80
	DescriptionLimit = 200
	KeywordTarget    = 50
)

// Record holds the stock metadata for a single image: an SEO title, a short
// description and a relevance-ranked keyword list.
type Record struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Keywords    []string `json:"keywords"`
}

// Clone returns a deep copy of the record.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	out := &Record{
		Title:       r.Title,
		Description: r.Description,
	}
	if r.Keywords != nil {
		out.Keywords = make([]string, len(r.Keywords))
		copy(out.Keywords, r.Keywords)
	}
	return out
}

// AddKeyword appends a keyword to the end of the list. The keyword is trimmed
// of surrounding whitespace first; empty and already-present keywords
// (case-sensitive exact match) are rejected silently. Returns true if the
// list changed.
func (r *Record) AddKeyword(keyword string) bool {
	keyword = strings.TrimSpace(keyword)
	if keyword == "" {
		return false
	}
	for _, k := range r.Keywords {
		if k == keyword {
			return false
		}
	}
	r.Keywords = append(r.Keywords, keyword)
	return true
}

// RemoveKeyword removes the first exact match from the keyword list.
// Returns true if the list changed.
func (r *Record) RemoveKeyword(keyword string) bool {
	for i, k := range r.Keywords {
		if k == keyword {
			r.Keywords = append(r.Keywords[:i], r.Keywords[i+1:]...)
			return true
		}
	}
	return false
}

// HasKeyword reports whether keyword is present (exact match).
func (r *Record) HasKeyword(keyword string) bool {
	for _, k := range r.Keywords {
		if k == keyword {
			return true
		}
	}
	return false
}
