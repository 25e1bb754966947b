package types

import "strings"

// TagTerm is a single key[:value] term of a tag filter. Exclude terms are
// written with a leading "!" and veto a resource even when an include
// term matches.
type TagTerm struct {
	Key     string `json:"key"`
	Value   string `json:"value,omitempty"`
	Exclude bool   `json:"exclude,omitempty"`
}

// TagFilter selects which discovered resources are in scope. An empty
// filter matches everything. Include terms are OR'd together, exclude
// terms always win.
type TagFilter struct {
	Terms []TagTerm `json:"terms,omitempty"`
}

// ParseTagFilter parses a comma-separated key[:value] filter string.
// Whitespace around terms is ignored, empty terms are dropped.
func ParseTagFilter(s string) TagFilter {
	var filter TagFilter
	for _, raw := range strings.Split(s, ",") {
		term := strings.TrimSpace(raw)
		if term == "" {
			continue
		}
		exclude := false
		if strings.HasPrefix(term, "!") {
			exclude = true
			term = term[1:]
		}
		key, value, _ := strings.Cut(term, ":")
		if key == "" {
			continue
		}
		filter.Terms = append(filter.Terms, TagTerm{Key: key, Value: value, Exclude: exclude})
	}
	return filter
}

// IsEmpty reports whether the filter matches all resources.
func (f TagFilter) IsEmpty() bool {
	return len(f.Terms) == 0
}

// String renders the filter back to its comma-separated form.
func (f TagFilter) String() string {
	parts := make([]string, 0, len(f.Terms))
	for _, t := range f.Terms {
		s := t.Key
		if t.Value != "" {
			s += ":" + t.Value
		}
		if t.Exclude {
			s = "!" + s
		}
		parts = append(parts, s)
	}
	return strings.Join(parts, ",")
}

// Matches reports whether a resource with the given tags is in scope.
func (f TagFilter) Matches(tags map[string]string) bool {
	if f.IsEmpty() {
		return true
	}

	hasInclude := false
	included := false
	for _, term := range f.Terms {
		if term.Exclude {
			if term.matchesTags(tags) {
				return false
			}
			continue
		}
		hasInclude = true
		if term.matchesTags(tags) {
			included = true
		}
	}

	// A filter with only exclude terms includes everything not vetoed.
	if !hasInclude {
		return true
	}
	return included
}

func (t TagTerm) matchesTags(tags map[string]string) bool {
	value, ok := tags[t.Key]
	if !ok {
		return false
	}
	return t.Value == "" || value == t.Value
}
