// Package fingerprint derives stable cache keys from query descriptions.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strconv"
	"strings"

	"github.com/kailas-cloud/imgdex/internal/domain/search/bounds"
	"github.com/kailas-cloud/imgdex/internal/domain/search/filter"
	"github.com/kailas-cloud/imgdex/internal/domain/search/request"
)

// Prefix marks query fingerprints apart from image and scope ids.
const Prefix = "q"

// Of returns the fingerprint of a description.
// Equal compiled filters with equal scalar fields always give the same value,
// whatever order the branches are held in.
func Of(d *request.Description) string {
	var b strings.Builder

	writeFilter(&b, d.Filter)

	field(&b, d.ImportID)
	field(&b, d.GroupID)
	field(&b, string(d.Type()))
	field(&b, d.Sort.String())
	field(&b, string(d.Direction))

	if t := d.Similarity; t != nil {
		field(&b, string(t.Mode))
		field(&b, strconv.FormatUint(t.Hashes.Average, 16))
		field(&b, strconv.FormatUint(t.Hashes.Difference, 16))
		field(&b, strconv.FormatUint(t.Hashes.Wavelet, 16))
		field(&b, strconv.FormatUint(t.Hashes.Perceptual, 16))
		field(&b, strconv.FormatUint(t.Hashes.Color, 16))
		field(&b, strconv.FormatFloat(t.MinSimilarity, 'g', -1, 64))
		field(&b, hex.EncodeToString(t.Buckets))
		field(&b, strconv.Itoa(t.BucketVariance))
	} else {
		for range 9 {
			field(&b, "")
		}
	}

	for _, f := range bounds.Fields {
		field(&b, d.Ranges.Get(f).String())
	}
	field(&b, d.Ranges.RatingName)

	sum := sha256.Sum256([]byte(b.String()))
	return Prefix + hex.EncodeToString(sum[:])
}

// Page builds the key of one page window of a query.
func Page(fp string, offset, limit int) string {
	return fp + ":" + strconv.Itoa(offset) + ":" + strconv.Itoa(limit)
}

func writeFilter(b *strings.Builder, c filter.Compiled) {
	field(b, c.GlobalAll.String())
	field(b, c.GlobalAny.String())
	field(b, c.GlobalNone.String())

	digests := make([]string, len(c.Branches))
	for i, br := range c.Branches {
		sum := sha256.Sum256([]byte(br.String()))
		digests[i] = hex.EncodeToString(sum[:])
	}
	sort.Strings(digests)
	field(b, strings.Join(digests, ""))
}

// field writes v length-prefixed, so ids and names holding any character
// cannot shift the boundary into the next field.
func field(b *strings.Builder, v string) {
	b.WriteString(strconv.Itoa(len(v)))
	b.WriteByte(':')
	b.WriteString(v)
}
