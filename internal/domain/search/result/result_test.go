package result

import "testing"

func TestNew(t *testing.T) {
	ids := []string{"a", "b"}
	r := New("qabc", ids, 100, 2, 250, true)

	if r.Fingerprint() != "qabc" {
		t.Errorf("Fingerprint() = %q", r.Fingerprint())
	}
	if len(r.IDs()) != 2 || r.IDs()[0] != "a" {
		t.Errorf("IDs() = %v", r.IDs())
	}
	if r.Offset() != 100 || r.Limit() != 2 || r.Total() != 250 {
		t.Errorf("unexpected window %d/%d/%d", r.Offset(), r.Limit(), r.Total())
	}
	if !r.Cached() {
		t.Error("Cached() = false")
	}
	if !r.HasMore() {
		t.Error("HasMore() = false")
	}

	ids[0] = "z"
	if r.IDs()[0] != "a" {
		t.Error("result must not alias caller ids")
	}
}

func TestHasMore_LastPage(t *testing.T) {
	r := New("q", []string{"x"}, 249, 100, 250, false)
	if r.HasMore() {
		t.Error("HasMore() = true on last page")
	}
}

func TestNew_NilIDs(t *testing.T) {
	r := New("q", nil, 0, 10, 0, false)
	if len(r.IDs()) != 0 {
		t.Errorf("IDs() = %v", r.IDs())
	}
}
