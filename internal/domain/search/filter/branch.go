package filter

import (
	"errors"
	"fmt"
	"strings"
)

// ErrMalformedBranch signals a legacy branch string without all three sections.
var ErrMalformedBranch = errors.New("malformed tag branch")

// Lookup reports whether a record carries a tag.
type Lookup func(tag string) bool

// LookupSet builds a Lookup over a plain tag list.
func LookupSet(tags []string) Lookup {
	set := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		set[NormalizeTag(t)] = struct{}{}
	}
	return func(tag string) bool {
		_, ok := set[tag]
		return ok
	}
}

// Branch is one AND-combination of tag conditions.
type Branch struct {
	All  TagSet
	Any  TagSet
	None TagSet
}

// NewBranch normalizes the three tag lists into a Branch.
func NewBranch(all, anyOf, none []string) Branch {
	return Branch{All: NewTagSet(all...), Any: NewTagSet(anyOf...), None: NewTagSet(none...)}
}

// ParseBranch decodes the legacy "all%any%none" form, each section a comma-separated tag list.
// Sections past the third are ignored.
func ParseBranch(raw string) (Branch, error) {
	sections := strings.Split(raw, sectionSeparator)
	if len(sections) < 3 {
		return Branch{}, fmt.Errorf("%w: %q has %d sections", ErrMalformedBranch, raw, len(sections))
	}
	return NewBranch(
		strings.Split(sections[0], tagSeparator),
		strings.Split(sections[1], tagSeparator),
		strings.Split(sections[2], tagSeparator),
	), nil
}

// IsEmpty reports whether the branch has no conditions at all.
func (b Branch) IsEmpty() bool {
	return b.All.IsEmpty() && b.Any.IsEmpty() && b.None.IsEmpty()
}

// Match reports whether a record satisfies every condition of the branch.
func (b Branch) Match(has Lookup) bool {
	for _, t := range b.All {
		if !has(t) {
			return false
		}
	}
	for _, t := range b.None {
		if has(t) {
			return false
		}
	}
	if len(b.Any) == 0 {
		return true
	}
	for _, t := range b.Any {
		if has(t) {
			return true
		}
	}
	return false
}

// Equal reports whether both branches hold the same conditions.
func (b Branch) Equal(o Branch) bool {
	return b.All.Equal(o.All) && b.Any.Equal(o.Any) && b.None.Equal(o.None)
}

// String returns the canonical legacy encoding, e.g. "a,b%c%d,e".
func (b Branch) String() string {
	return b.All.String() + sectionSeparator + b.Any.String() + sectionSeparator + b.None.String()
}
