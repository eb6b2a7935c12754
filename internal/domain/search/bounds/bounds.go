package bounds

import (
	"fmt"
	"strconv"
)

// Unbounded marks an open side of a Bound.
const Unbounded int64 = -1

// Bound is an inclusive [Min, Max] range where -1 leaves a side open.
type Bound struct {
	Min int64
	Max int64
}

// Open returns a Bound with both sides unbounded.
func Open() Bound { return Bound{Min: Unbounded, Max: Unbounded} }

// Between returns an inclusive range.
func Between(lo, hi int64) Bound { return Bound{Min: lo, Max: hi} }

// Validate rejects negative values other than -1 and inverted ranges.
func (b Bound) Validate() error {
	if b.Min < Unbounded || b.Max < Unbounded {
		return fmt.Errorf("bound [%d,%d]: negative values other than -1 are not allowed", b.Min, b.Max)
	}
	if b.Min != Unbounded && b.Max != Unbounded && b.Min > b.Max {
		return fmt.Errorf("bound [%d,%d]: min is greater than max", b.Min, b.Max)
	}
	return nil
}

// IsOpen reports whether the bound restricts nothing.
func (b Bound) IsOpen() bool { return b.Min == Unbounded && b.Max == Unbounded }

// HasMin reports whether the lower side is set.
func (b Bound) HasMin() bool { return b.Min != Unbounded }

// HasMax reports whether the upper side is set.
func (b Bound) HasMax() bool { return b.Max != Unbounded }

// Contains checks each side independently.
func (b Bound) Contains(v float64) bool {
	if b.HasMin() && v < float64(b.Min) {
		return false
	}
	if b.HasMax() && v > float64(b.Max) {
		return false
	}
	return true
}

// String renders the bound as "min,max".
func (b Bound) String() string {
	return strconv.FormatInt(b.Min, 10) + "," + strconv.FormatInt(b.Max, 10)
}

// Field names a numeric record attribute that can be range-filtered.
type Field string

// Range-filterable fields.
const (
	Width    Field = "width"
	Height   Field = "height"
	Size     Field = "size"
	Time     Field = "time"
	TagCount Field = "tag_count"
	Rating   Field = "rating"
)

// Fields lists the range fields in their fixed declaration order.
var Fields = []Field{Width, Height, Size, Time, TagCount, Rating}

// Ranges holds one bound per numeric field. Time is the upload time in unix seconds.
type Ranges struct {
	Width      Bound
	Height     Bound
	Size       Bound
	Time       Bound
	TagCount   Bound
	Rating     Bound
	RatingName string
}

// OpenRanges returns Ranges with every bound unbounded.
func OpenRanges() Ranges {
	return Ranges{
		Width: Open(), Height: Open(), Size: Open(),
		Time: Open(), TagCount: Open(), Rating: Open(),
	}
}

// Get returns the bound for a field.
func (r Ranges) Get(f Field) Bound {
	switch f {
	case Width:
		return r.Width
	case Height:
		return r.Height
	case Size:
		return r.Size
	case Time:
		return r.Time
	case TagCount:
		return r.TagCount
	case Rating:
		return r.Rating
	default:
		return Open()
	}
}

// IsOpen reports whether no field is restricted.
func (r Ranges) IsOpen() bool {
	for _, f := range Fields {
		if !r.Get(f).IsOpen() {
			return false
		}
	}
	return true
}

// Validate checks every bound; a rating bound needs a rating name.
func (r Ranges) Validate() error {
	for _, f := range Fields {
		if err := r.Get(f).Validate(); err != nil {
			return fmt.Errorf("%s: %w", f, err)
		}
	}
	if !r.Rating.IsOpen() && r.RatingName == "" {
		return fmt.Errorf("rating bound requires a rating name")
	}
	return nil
}
