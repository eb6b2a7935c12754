package filter

import (
	"sort"
	"strings"
)

// Reserved characters of the legacy branch encoding; they never appear inside a tag.
const (
	tagSeparator     = ","
	sectionSeparator = "%"
)

// TagSet is a sorted, de-duplicated set of normalized tags.
type TagSet []string

// NewTagSet normalizes tags (trim, lowercase), drops empty ones and sorts the rest.
func NewTagSet(tags ...string) TagSet {
	if len(tags) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(tags))
	out := make(TagSet, 0, len(tags))
	for _, t := range tags {
		t = NormalizeTag(t)
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	if len(out) == 0 {
		return nil
	}
	sort.Strings(out)
	return out
}

// NormalizeTag returns the canonical spelling of a tag.
// Separator characters are stripped so a tag can always round-trip through the legacy encoding.
func NormalizeTag(tag string) string {
	tag = strings.ReplaceAll(tag, tagSeparator, "")
	tag = strings.ReplaceAll(tag, sectionSeparator, "")
	return strings.ToLower(strings.TrimSpace(tag))
}

// Contains reports whether tag is in the set.
func (s TagSet) Contains(tag string) bool {
	i := sort.SearchStrings(s, tag)
	return i < len(s) && s[i] == tag
}

// IsEmpty reports whether the set has no tags.
func (s TagSet) IsEmpty() bool { return len(s) == 0 }

// Equal reports whether both sets hold the same tags.
func (s TagSet) Equal(o TagSet) bool {
	if len(s) != len(o) {
		return false
	}
	for i := range s {
		if s[i] != o[i] {
			return false
		}
	}
	return true
}

// Union returns the tags present in either set.
func (s TagSet) Union(o TagSet) TagSet {
	if len(o) == 0 {
		return s.clone()
	}
	if len(s) == 0 {
		return o.clone()
	}
	out := make(TagSet, 0, len(s)+len(o))
	i, j := 0, 0
	for i < len(s) && j < len(o) {
		switch {
		case s[i] == o[j]:
			out = append(out, s[i])
			i++
			j++
		case s[i] < o[j]:
			out = append(out, s[i])
			i++
		default:
			out = append(out, o[j])
			j++
		}
	}
	out = append(out, s[i:]...)
	out = append(out, o[j:]...)
	return out
}

// Intersect returns the tags present in both sets.
func (s TagSet) Intersect(o TagSet) TagSet {
	var out TagSet
	i, j := 0, 0
	for i < len(s) && j < len(o) {
		switch {
		case s[i] == o[j]:
			out = append(out, s[i])
			i++
			j++
		case s[i] < o[j]:
			i++
		default:
			j++
		}
	}
	return out
}

// Minus returns the tags of s that are not in o.
func (s TagSet) Minus(o TagSet) TagSet {
	var out TagSet
	for _, t := range s {
		if !o.Contains(t) {
			out = append(out, t)
		}
	}
	return out
}

// String joins the set with the tag separator.
func (s TagSet) String() string { return strings.Join(s, tagSeparator) }

func (s TagSet) clone() TagSet {
	if len(s) == 0 {
		return nil
	}
	out := make(TagSet, len(s))
	copy(out, s)
	return out
}
