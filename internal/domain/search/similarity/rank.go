package similarity

import (
	"fmt"
	"sort"
)

// NoBucketVariance disables the colour-bucket prefilter.
const NoBucketVariance = -1

// Target is the anchor a similarity query ranks against.
type Target struct {
	Hashes         Hashes
	Buckets        []uint8
	BucketVariance int
	MinSimilarity  float64
	Mode           Mode
}

// Validate checks the mode and threshold.
func (t Target) Validate() error {
	if !t.Mode.IsValid() {
		return fmt.Errorf("invalid similarity mode: %q", t.Mode)
	}
	if t.MinSimilarity < 0 || t.MinSimilarity > 100 {
		return fmt.Errorf("min similarity must be between 0 and 100, got %g", t.MinSimilarity)
	}
	if t.BucketVariance < NoBucketVariance {
		return fmt.Errorf("bucket variance must be -1 or non-negative, got %d", t.BucketVariance)
	}
	return nil
}

// Candidate is a record considered for ranking. Hashes is nil when the record has none stored.
type Candidate struct {
	ID      string
	Hashes  *Hashes
	Buckets []uint8
}

// Scored is a candidate that passed the threshold.
type Scored struct {
	ID    string
	Score float64
}

// Score computes the similarity of one candidate to the target.
// Missing hashes score 0, as does a candidate outside the bucket variance.
func Score(t Target, c Candidate) float64 {
	if c.Hashes == nil {
		return 0
	}
	if !withinVariance(t, c.Buckets) {
		return 0
	}
	if t.Mode != All {
		return Hamming(t.Hashes.Get(t.Mode), c.Hashes.Get(t.Mode))
	}
	var sum float64
	for _, m := range SingleModes {
		sum += Hamming(t.Hashes.Get(m), c.Hashes.Get(m))
	}
	return sum / float64(len(SingleModes))
}

// Rank scores every candidate, drops those at or below the threshold, sorts the
// rest by descending score and applies offset/limit. Equal scores are ordered by id.
// limit <= 0 returns everything after offset.
func Rank(t Target, candidates []Candidate, offset, limit int) []Scored {
	scored := make([]Scored, 0, len(candidates))
	for _, c := range candidates {
		s := Score(t, c)
		if s <= t.MinSimilarity {
			continue
		}
		scored = append(scored, Scored{ID: c.ID, Score: s})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		return scored[i].ID < scored[j].ID
	})

	if offset < 0 {
		offset = 0
	}
	if offset >= len(scored) {
		return nil
	}
	scored = scored[offset:]
	if limit > 0 && len(scored) > limit {
		scored = scored[:limit]
	}
	return scored
}

// IDs extracts the ids of ranked results in order.
func IDs(scored []Scored) []string {
	ids := make([]string, len(scored))
	for i, s := range scored {
		ids[i] = s.ID
	}
	return ids
}

func withinVariance(t Target, buckets []uint8) bool {
	if t.BucketVariance < 0 || len(t.Buckets) == 0 {
		return true
	}
	if len(buckets) != len(t.Buckets) {
		return false
	}
	for i, b := range t.Buckets {
		d := int(b) - int(buckets[i])
		if d < 0 {
			d = -d
		}
		if d > t.BucketVariance {
			return false
		}
	}
	return true
}
