package db

import (
	"testing"

	"github.com/kailas-cloud/imgdex/internal/domain/search/sortkey"
)

func TestImageQuery_Unpaged(t *testing.T) {
	q := &ImageQuery{Scopes: []string{"imp"}, Offset: 40, Limit: 20, Sort: sortkey.Key{Kind: sortkey.Size}}
	u := q.Unpaged()

	if u.Offset != 0 || u.Limit != 0 {
		t.Errorf("unpaged window = %d/%d, want 0/0", u.Offset, u.Limit)
	}
	if u.Sort != q.Sort || len(u.Scopes) != 1 {
		t.Error("unpaged copy must keep filters and order")
	}
	if q.Offset != 40 || q.Limit != 20 {
		t.Error("original query was modified")
	}
}

func TestImageQuery_SortOrStable(t *testing.T) {
	tests := []struct {
		name    string
		key     sortkey.Key
		dir     sortkey.Direction
		wantKey sortkey.Key
		wantDir sortkey.Direction
	}{
		{"explicit", sortkey.Key{Kind: sortkey.Width}, sortkey.Desc, sortkey.Key{Kind: sortkey.Width}, sortkey.Desc},
		{"rating", sortkey.Key{Kind: sortkey.Rating, Name: "q"}, sortkey.Asc, sortkey.Key{Kind: sortkey.Rating, Name: "q"}, sortkey.Asc},
		{"random lists by id", sortkey.Key{Kind: sortkey.Random}, sortkey.Desc, sortkey.Default, sortkey.Asc},
		{"zero value", sortkey.Key{}, "", sortkey.Default, sortkey.Asc},
		{"rating without name", sortkey.Key{Kind: sortkey.Rating}, sortkey.Desc, sortkey.Default, sortkey.Asc},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := &ImageQuery{Sort: tt.key, Direction: tt.dir}
			k, d := q.SortOrStable()
			if k != tt.wantKey || d != tt.wantDir {
				t.Errorf("SortOrStable() = %v %s, want %v %s", k, d, tt.wantKey, tt.wantDir)
			}
		})
	}
}
