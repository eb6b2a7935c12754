package sortkey

import (
	"cmp"
	"fmt"
	"math/rand"
	"slices"
	"strings"

	"github.com/kailas-cloud/imgdex/internal/domain/image"
)

// Kind is the closed set of orderings a generic query can request.
type Kind string

// Sort kinds.
const (
	ID       Kind = "id"
	Path     Kind = "path"
	Name     Kind = "name"
	Size     Kind = "size"
	Uploaded Kind = "uploaded"
	Created  Kind = "created"
	Modified Kind = "modified"
	Edited   Kind = "edited"
	Width    Kind = "width"
	Height   Kind = "height"
	Area     Kind = "area"
	TagCount Kind = "tag_count"
	Rating   Kind = "rating"
	Color    Kind = "color"
	Random   Kind = "random"
)

// Direction orders results ascending or descending.
type Direction string

// Sort directions.
const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

// ParseDirection defaults to Asc for anything but "desc".
func ParseDirection(s string) Direction {
	if strings.EqualFold(s, string(Desc)) {
		return Desc
	}
	return Asc
}

// Key is a sort kind plus the rating or colour channel name it needs.
type Key struct {
	Kind Kind
	Name string
}

// Default is the fallback ordering: identity hash ascending.
var Default = Key{Kind: ID}

// Parse reads "kind" or "kind:name" (rating:quality, color:red).
// Unknown keys return Default and false.
func Parse(s string) (Key, bool) {
	kind, name, _ := strings.Cut(strings.TrimSpace(s), ":")
	k := Key{Kind: Kind(strings.ToLower(kind)), Name: name}
	if !k.IsValid() {
		return Default, false
	}
	return k, true
}

// IsValid reports whether the key names a known ordering with its required name.
func (k Key) IsValid() bool {
	switch k.Kind {
	case Rating, Color:
		return k.Name != ""
	case Random:
		return true
	}
	_, ok := extractors[k.Kind]
	return ok
}

// String renders the key in Parse form.
func (k Key) String() string {
	if k.Name != "" {
		return string(k.Kind) + ":" + k.Name
	}
	return string(k.Kind)
}

// Field is the stored field name backends sort on.
func (k Key) Field() string {
	switch k.Kind {
	case Rating:
		return "rating_" + k.Name
	case Color:
		return "color_" + k.Name
	case Uploaded:
		return "uploaded_at"
	case Created:
		return "created_at"
	case Modified:
		return "modified_at"
	case Edited:
		return "edited_at"
	default:
		return string(k.Kind)
	}
}

// IsNumeric reports whether the key orders by a number rather than text.
func (k Key) IsNumeric() bool {
	switch k.Kind {
	case ID, Path, Name, Random:
		return false
	}
	return true
}

type value struct {
	text string
	num  float64
}

type extractor func(r *image.Record, name string) value

func text(s string) value { return value{text: s} }
func num(n float64) value { return value{num: n} }
func unix(n int64) value  { return value{num: float64(n)} }

// named reads a rating or colour score; records without it sort below every present value.
func named(m map[string]float64, name string) value {
	if v, ok := m[name]; ok {
		return num(v)
	}
	return num(-1)
}

var extractors = map[Kind]extractor{
	ID:       func(r *image.Record, _ string) value { return text(r.ID) },
	Path:     func(r *image.Record, _ string) value { return text(r.Path) },
	Name:     func(r *image.Record, _ string) value { return text(r.Name) },
	Size:     func(r *image.Record, _ string) value { return num(float64(r.Size)) },
	Uploaded: func(r *image.Record, _ string) value { return unix(r.UploadedAt.Unix()) },
	Created:  func(r *image.Record, _ string) value { return unix(r.CreatedAt.Unix()) },
	Modified: func(r *image.Record, _ string) value { return unix(r.ModifiedAt.Unix()) },
	Edited:   func(r *image.Record, _ string) value { return unix(r.EditedAt.Unix()) },
	Width:    func(r *image.Record, _ string) value { return num(float64(r.Width)) },
	Height:   func(r *image.Record, _ string) value { return num(float64(r.Height)) },
	Area:     func(r *image.Record, _ string) value { return num(float64(r.Area())) },
	TagCount: func(r *image.Record, _ string) value { return num(float64(r.TagCount())) },
	Rating:   func(r *image.Record, name string) value { return named(r.Ratings, name) },
	Color:    func(r *image.Record, name string) value { return named(r.Colors, name) },
}

// Compare returns a comparator for key and direction. Ties fall back to id ascending
// so the order is total. Random has no comparator and orders by id.
func Compare(k Key, dir Direction) func(a, b *image.Record) int {
	ex, ok := extractors[k.Kind]
	if !ok {
		ex, dir = extractors[ID], Asc
	}
	sign := 1
	if dir == Desc {
		sign = -1
	}
	return func(a, b *image.Record) int {
		va, vb := ex(a, k.Name), ex(b, k.Name)
		c := cmp.Compare(va.num, vb.num)
		if c == 0 {
			c = cmp.Compare(va.text, vb.text)
		}
		if c != 0 {
			return sign * c
		}
		return cmp.Compare(a.ID, b.ID)
	}
}

// Sort orders records in place. Random shuffles with rng.
func Sort(records []*image.Record, k Key, dir Direction, rng *rand.Rand) {
	if k.Kind == Random {
		Shuffle(records, rng)
		return
	}
	slices.SortStableFunc(records, Compare(k, dir))
}

// Shuffle permutes any slice with rng (or the global source when nil).
func Shuffle[T any](items []T, rng *rand.Rand) {
	swap := func(i, j int) { items[i], items[j] = items[j], items[i] }
	if rng == nil {
		rand.Shuffle(len(items), swap)
		return
	}
	rng.Shuffle(len(items), swap)
}

// MustParse is Parse that panics on unknown keys; for tests and constants.
func MustParse(s string) Key {
	k, ok := Parse(s)
	if !ok {
		panic(fmt.Sprintf("unknown sort key %q", s))
	}
	return k
}
