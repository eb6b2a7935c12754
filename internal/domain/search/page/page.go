// Package page computes overfetch windows and splits them into cacheable chunks.
package page

// Window is a contiguous slice of a result set.
type Window struct {
	Offset int
	Limit  int
}

// Overfetch widens a requested page to cover lookahead extra pages.
func Overfetch(offset, limit, lookahead int) Window {
	if lookahead < 0 {
		lookahead = 0
	}
	return Window{Offset: offset, Limit: limit * (1 + lookahead)}
}

// End returns the offset just past the window.
func (w Window) End() int { return w.Offset + w.Limit }

// Chunk is one page-sized piece of an overfetched window.
type Chunk struct {
	Offset int
	IDs    []string
}

// Split cuts ids fetched at baseOffset into limit-sized, offset-aligned chunks.
// The last chunk may be short. Chunks share no memory with ids.
func Split(baseOffset, limit int, ids []string) []Chunk {
	if limit <= 0 || len(ids) == 0 {
		return nil
	}
	chunks := make([]Chunk, 0, (len(ids)+limit-1)/limit)
	for start := 0; start < len(ids); start += limit {
		end := min(start+limit, len(ids))
		chunks = append(chunks, Chunk{
			Offset: baseOffset + start,
			IDs:    append([]string(nil), ids[start:end]...),
		})
	}
	return chunks
}

// Slice returns the [offset, offset+limit) window of ids, clamped to its bounds.
// limit <= 0 means everything from offset.
func Slice(ids []string, offset, limit int) []string {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(ids) {
		return []string{}
	}
	end := len(ids)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return append([]string(nil), ids[offset:end]...)
}
