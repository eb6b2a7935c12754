package redis

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/kailas-cloud/imgdex/internal/domain/image"
	"github.com/kailas-cloud/imgdex/internal/domain/scope"
	"github.com/kailas-cloud/imgdex/internal/domain/search/filter"
	"github.com/kailas-cloud/imgdex/internal/domain/search/similarity"
)

// Key layout.
const (
	imagePrefix = "img:"
	scopePrefix = "scope:"
)

const listSeparator = ","

// Image hash fields.
const (
	fieldID         = "id"
	fieldPath       = "path"
	fieldName       = "name"
	fieldSize       = "size"
	fieldUploaded   = "uploaded_at"
	fieldCreated    = "created_at"
	fieldModified   = "modified_at"
	fieldEdited     = "edited_at"
	fieldWidth      = "width"
	fieldHeight     = "height"
	fieldArea       = "area"
	fieldTagCount   = "tag_count"
	fieldTags       = "tags"
	fieldScopes     = "scopes"
	fieldHasHashes  = "has_hashes"
	fieldAverage    = "h_average"
	fieldDifference = "h_difference"
	fieldWavelet    = "h_wavelet"
	fieldPerceptual = "h_perceptual"
	fieldColorHash  = "h_color"
	fieldBuckets    = "buckets"

	ratingPrefix = "rating_"
	colorPrefix  = "color_"
)

// Scope hash fields.
const (
	fieldKind    = "kind"
	fieldSuccess = "success_count"
)

var numericFields = []string{
	fieldSize, fieldUploaded, fieldCreated, fieldModified, fieldEdited,
	fieldWidth, fieldHeight, fieldArea, fieldTagCount,
}

var candidateFields = []string{
	fieldID, fieldHasHashes,
	fieldAverage, fieldDifference, fieldWavelet, fieldPerceptual, fieldColorHash,
	fieldBuckets,
}

func ratingField(name string) string { return ratingPrefix + name }

func colorField(name string) string { return colorPrefix + name }

// missingScore is written for declared rating/colour names a record lacks.
const missingScore = "-1"

func recordToHash(r *image.Record, ratings, colors []string) map[string]string {
	h := map[string]string{
		fieldID:        r.ID,
		fieldPath:      r.Path,
		fieldName:      r.Name,
		fieldSize:      strconv.FormatInt(r.Size, 10),
		fieldUploaded:  strconv.FormatInt(r.UploadedAt.Unix(), 10),
		fieldCreated:   strconv.FormatInt(r.CreatedAt.Unix(), 10),
		fieldModified:  strconv.FormatInt(r.ModifiedAt.Unix(), 10),
		fieldEdited:    strconv.FormatInt(r.EditedAt.Unix(), 10),
		fieldWidth:     strconv.Itoa(r.Width),
		fieldHeight:    strconv.Itoa(r.Height),
		fieldArea:      strconv.FormatInt(r.Area(), 10),
		fieldTagCount:  strconv.Itoa(r.TagCount()),
		fieldTags:      strings.Join(r.Tags, listSeparator),
		fieldScopes:    strings.Join(r.Scopes, listSeparator),
		fieldHasHashes: "0",
		fieldBuckets:   hex.EncodeToString(r.Buckets),
	}
	for _, n := range ratings {
		h[ratingField(n)] = missingScore
	}
	for _, n := range colors {
		h[colorField(n)] = missingScore
	}
	for n, v := range r.Ratings {
		h[ratingField(n)] = formatFloat(v)
	}
	for n, v := range r.Colors {
		h[colorField(n)] = formatFloat(v)
	}
	if r.Hashes != nil {
		h[fieldHasHashes] = "1"
		h[fieldAverage] = formatHash(r.Hashes.Average)
		h[fieldDifference] = formatHash(r.Hashes.Difference)
		h[fieldWavelet] = formatHash(r.Hashes.Wavelet)
		h[fieldPerceptual] = formatHash(r.Hashes.Perceptual)
		h[fieldColorHash] = formatHash(r.Hashes.Color)
	}
	return h
}

func recordFromHash(id string, h map[string]string) (*image.Record, error) {
	r := &image.Record{
		ID:   id,
		Path: h[fieldPath],
		Name: h[fieldName],
	}
	if v := h[fieldID]; v != "" {
		r.ID = v
	}

	var ints [7]int64
	for i, f := range []string{fieldSize, fieldUploaded, fieldCreated, fieldModified, fieldEdited, fieldWidth, fieldHeight} {
		n, err := parseInt(h, f)
		if err != nil {
			return nil, err
		}
		ints[i] = n
	}
	r.Size = ints[0]
	r.UploadedAt = time.Unix(ints[1], 0)
	r.CreatedAt = time.Unix(ints[2], 0)
	r.ModifiedAt = time.Unix(ints[3], 0)
	r.EditedAt = time.Unix(ints[4], 0)
	r.Width = int(ints[5])
	r.Height = int(ints[6])

	r.Tags = filter.NewTagSet(splitList(h[fieldTags])...)
	r.Scopes = splitList(h[fieldScopes])

	for k, v := range h {
		var target *map[string]float64
		var name string
		switch {
		case strings.HasPrefix(k, ratingPrefix):
			target, name = &r.Ratings, strings.TrimPrefix(k, ratingPrefix)
		case strings.HasPrefix(k, colorPrefix):
			target, name = &r.Colors, strings.TrimPrefix(k, colorPrefix)
		default:
			continue
		}
		if v == missingScore {
			continue
		}
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", k, err)
		}
		if *target == nil {
			*target = map[string]float64{}
		}
		(*target)[name] = f
	}

	cand, err := parseCandidate(r.ID, h)
	if err != nil {
		return nil, err
	}
	r.Hashes, r.Buckets = cand.Hashes, cand.Buckets
	return r, nil
}

// candidateFromHash reads the similarity fields; malformed values leave the candidate unhashed.
func candidateFromHash(h map[string]string) similarity.Candidate {
	cand, err := parseCandidate(h[fieldID], h)
	if err != nil {
		return similarity.Candidate{ID: h[fieldID]}
	}
	return cand
}

func parseCandidate(id string, h map[string]string) (similarity.Candidate, error) {
	cand := similarity.Candidate{ID: id}
	if b := h[fieldBuckets]; b != "" {
		buckets, err := hex.DecodeString(b)
		if err != nil {
			return cand, fmt.Errorf("field %s: %w", fieldBuckets, err)
		}
		cand.Buckets = buckets
	}
	if h[fieldHasHashes] != "1" {
		return cand, nil
	}

	var vals [5]uint64
	for i, f := range []string{fieldAverage, fieldDifference, fieldWavelet, fieldPerceptual, fieldColorHash} {
		v, err := strconv.ParseUint(h[f], 16, 64)
		if err != nil {
			return cand, fmt.Errorf("field %s: %w", f, err)
		}
		vals[i] = v
	}
	cand.Hashes = &similarity.Hashes{
		Average: vals[0], Difference: vals[1], Wavelet: vals[2], Perceptual: vals[3], Color: vals[4],
	}
	return cand, nil
}

func scopeToHash(sc scope.Scope) map[string]string {
	return map[string]string{
		fieldKind:    string(sc.Kind),
		fieldSuccess: strconv.Itoa(sc.SuccessCount),
	}
}

func scopeFromHash(id string, h map[string]string) scope.Scope {
	n, _ := strconv.Atoi(h[fieldSuccess])
	return scope.Scope{
		ID:           id,
		Kind:         scope.Kind(h[fieldKind]),
		SuccessCount: n,
		Known:        true,
	}
}

func parseInt(h map[string]string, field string) (int64, error) {
	v, ok := h[field]
	if !ok || v == "" {
		return 0, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("field %s: %w", field, err)
	}
	return n, nil
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, listSeparator)
}

func formatFloat(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }

// Hashes are stored as hex: FT NUMERIC is a double and would lose bits.
func formatHash(v uint64) string { return strconv.FormatUint(v, 16) }
