package page

import (
	"fmt"
	"testing"
)

func ids(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("img-%03d", i)
	}
	return out
}

func TestOverfetch(t *testing.T) {
	w := Overfetch(100, 100, 3)
	if w.Offset != 100 || w.Limit != 400 || w.End() != 500 {
		t.Errorf("Overfetch = %+v", w)
	}
	if w := Overfetch(0, 10, -1); w.Limit != 10 {
		t.Errorf("negative lookahead: %+v", w)
	}
}

func TestSplit_250(t *testing.T) {
	all := ids(250)
	chunks := Split(0, 100, all)
	if len(chunks) != 3 {
		t.Fatalf("len = %d, want 3", len(chunks))
	}

	wantLens := []int{100, 100, 50}
	seen := make(map[string]bool, len(all))
	for i, c := range chunks {
		if c.Offset != i*100 {
			t.Errorf("chunk %d offset = %d", i, c.Offset)
		}
		if len(c.IDs) != wantLens[i] {
			t.Errorf("chunk %d len = %d, want %d", i, len(c.IDs), wantLens[i])
		}
		for _, id := range c.IDs {
			if seen[id] {
				t.Errorf("id %s appears twice", id)
			}
			seen[id] = true
		}
	}
	if len(seen) != len(all) {
		t.Errorf("covered %d ids, want %d", len(seen), len(all))
	}
}

func TestSplit_BaseOffset(t *testing.T) {
	chunks := Split(40, 20, ids(30))
	if len(chunks) != 2 || chunks[0].Offset != 40 || chunks[1].Offset != 60 {
		t.Errorf("Split = %+v", chunks)
	}
}

func TestSplit_NoAlias(t *testing.T) {
	src := ids(4)
	chunks := Split(0, 2, src)
	src[0] = "changed"
	if chunks[0].IDs[0] != "img-000" {
		t.Error("chunk aliases source slice")
	}
}

func TestSplit_Empty(t *testing.T) {
	if Split(0, 10, nil) != nil {
		t.Error("want nil for no ids")
	}
	if Split(0, 0, ids(3)) != nil {
		t.Error("want nil for zero limit")
	}
}

func TestSlice(t *testing.T) {
	all := ids(250)
	tests := []struct {
		offset, limit, want int
	}{
		{0, 100, 100},
		{100, 100, 100},
		{200, 100, 50},
		{300, 100, 0},
		{10, 0, 240},
	}
	for _, tt := range tests {
		if got := Slice(all, tt.offset, tt.limit); len(got) != tt.want {
			t.Errorf("Slice(%d,%d) len = %d, want %d", tt.offset, tt.limit, len(got), tt.want)
		}
	}
}
