package chi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"testing"

	chirouter "github.com/go-chi/chi/v5"

	"github.com/kailas-cloud/imgdex/internal/db/memory"
	imagerepo "github.com/kailas-cloud/imgdex/internal/repository/image"
	"github.com/kailas-cloud/imgdex/internal/repository/querycache"
	scoperepo "github.com/kailas-cloud/imgdex/internal/repository/scope"
	cataloguc "github.com/kailas-cloud/imgdex/internal/usecase/catalog"
	healthuc "github.com/kailas-cloud/imgdex/internal/usecase/health"
	queryuc "github.com/kailas-cloud/imgdex/internal/usecase/query"
)

func newTestServer(t *testing.T) http.Handler {
	t.Helper()
	store := memory.NewStore()
	images := imagerepo.New(store, "memory")
	scopes := scoperepo.New(store)
	results := querycache.NewResultCache(16, nil)
	pages := querycache.NewPageCache(64, nil)

	exec := queryuc.New(images, scopes, results, pages, queryuc.Config{}, nil)
	catalog := cataloguc.New(images, scopes, exec, nil)
	health := healthuc.New(store, map[string]healthuc.CacheSizer{"result": results, "page": pages})

	r := chirouter.NewRouter()
	NewServer(exec, catalog, health, nil).WithPagination(2, 50).Routes(r)
	return r
}

func do(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rr.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return v
}

func seed(t *testing.T, h http.Handler) {
	t.Helper()
	rr := do(t, h, http.MethodPut, "/v1/images", BatchUpsertRequest{Images: []ImageBody{
		{ID: "a", Width: 30, Tags: []string{"Cat", "outdoor"}, Scopes: []string{"imp"}},
		{ID: "b", Width: 10, Tags: []string{"cat"}, Scopes: []string{"imp"}},
		{ID: "c", Width: 20, Tags: []string{"dog"}, Scopes: []string{"imp"}},
		{ID: "d", Width: 40, Tags: []string{"cat"}, Scopes: []string{"other"}},
	}})
	if rr.Code != http.StatusOK {
		t.Fatalf("seed: status %d: %s", rr.Code, rr.Body)
	}
	if resp := decode[BatchResponse](t, rr); resp.Succeeded != 4 {
		t.Fatalf("seed: %+v", resp)
	}
}

func TestListImages_TagQuery(t *testing.T) {
	h := newTestServer(t)
	seed(t, h)

	rr := do(t, h, http.MethodGet, "/v1/images?import=imp&all=cat&sort=width&direction=desc&limit=10", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rr.Code, rr.Body)
	}
	resp := decode[QueryResponse](t, rr)
	if !slices.Equal(resp.IDs, []string{"a", "b"}) {
		t.Errorf("ids = %v, want [a b]", resp.IDs)
	}
	if resp.Total != 2 || resp.HasMore {
		t.Errorf("total = %d, has_more = %v", resp.Total, resp.HasMore)
	}
}

func TestListImages_DefaultPageSizeAndRanges(t *testing.T) {
	h := newTestServer(t)
	seed(t, h)

	rr := do(t, h, http.MethodGet, "/v1/images?width_min=15&sort=width", nil)
	resp := decode[QueryResponse](t, rr)
	if !slices.Equal(resp.IDs, []string{"c", "a"}) {
		t.Errorf("ids = %v, want [c a]", resp.IDs)
	}
	if resp.Limit != 2 || !resp.HasMore {
		t.Errorf("limit = %d, has_more = %v", resp.Limit, resp.HasMore)
	}
}

func TestListImages_BadParameter(t *testing.T) {
	h := newTestServer(t)
	rr := do(t, h, http.MethodGet, "/v1/images?limit=many", nil)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status %d", rr.Code)
	}
	if resp := decode[ErrorResponse](t, rr); resp.Code != CodeBadRequest {
		t.Errorf("code = %s", resp.Code)
	}
}

func TestRunQuery_ComplexAndCount(t *testing.T) {
	h := newTestServer(t)
	seed(t, h)

	rr := do(t, h, http.MethodPost, "/v1/queries", QueryRequest{
		ImportID: "imp",
		Tags:     TagConditions{Complex: []string{"cat%%outdoor", "dog%%"}},
		Sort:     "id",
		Limit:    10,
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rr.Code, rr.Body)
	}
	resp := decode[QueryResponse](t, rr)
	if !slices.Equal(resp.IDs, []string{"b", "c"}) {
		t.Errorf("ids = %v, want [b c]", resp.IDs)
	}

	rr = do(t, h, http.MethodGet, "/v1/queries/"+resp.Fingerprint+"/count", nil)
	if got := decode[CountResponse](t, rr); got.Count != 2 {
		t.Errorf("count = %d, want 2", got.Count)
	}
	rr = do(t, h, http.MethodGet, "/v1/queries/qunknown/count", nil)
	if got := decode[CountResponse](t, rr); got.Count != 0 {
		t.Errorf("unknown fingerprint count = %d", got.Count)
	}
}

func TestRunQuery_InvalidSimilarity(t *testing.T) {
	h := newTestServer(t)
	rr := do(t, h, http.MethodPost, "/v1/queries", QueryRequest{
		Similarity: &SimilarityRequest{Mode: "sharpness", MinSimilarity: 50},
	})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status %d", rr.Code)
	}
	if resp := decode[ErrorResponse](t, rr); resp.Code != CodeInvalidQuery {
		t.Errorf("code = %s", resp.Code)
	}
}

func TestRunQuery_Similarity(t *testing.T) {
	h := newTestServer(t)
	rr := do(t, h, http.MethodPut, "/v1/images", BatchUpsertRequest{Images: []ImageBody{
		{ID: "same", Hashes: &HashSet{Average: "ff"}},
		{ID: "far", Hashes: &HashSet{Average: "ffffffff00000000"}},
		{ID: "nohash"},
	}})
	if rr.Code != http.StatusOK {
		t.Fatalf("seed: %d", rr.Code)
	}

	rr = do(t, h, http.MethodPost, "/v1/queries", QueryRequest{
		Similarity: &SimilarityRequest{Hashes: HashSet{Average: "ff"}, Mode: "average", MinSimilarity: 90},
		Limit:      10,
	})
	resp := decode[QueryResponse](t, rr)
	if !slices.Equal(resp.IDs, []string{"same"}) {
		t.Errorf("ids = %v, want [same]", resp.IDs)
	}
}

func TestCompileQuery(t *testing.T) {
	h := newTestServer(t)
	rr := do(t, h, http.MethodPost, "/v1/queries/compile", QueryRequest{
		Tags: TagConditions{Complex: []string{"a,b%%", "a%%c", "broken"}},
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rr.Code, rr.Body)
	}
	resp := decode[CompileResponse](t, rr)
	if !slices.Equal(resp.Global.All, []string{"a"}) {
		t.Errorf("global all = %v, want [a]", resp.Global.All)
	}
	if len(resp.Branches) != 2 {
		t.Errorf("branches = %+v", resp.Branches)
	}
	if resp.Fingerprint == "" || resp.Type != "tags" {
		t.Errorf("fingerprint %q, type %q", resp.Fingerprint, resp.Type)
	}
}

func TestGetImage(t *testing.T) {
	h := newTestServer(t)
	seed(t, h)

	rr := do(t, h, http.MethodGet, "/v1/images/a", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status %d", rr.Code)
	}
	img := decode[ImageBody](t, rr)
	if !slices.Equal(img.Tags, []string{"cat", "outdoor"}) {
		t.Errorf("tags = %v", img.Tags)
	}

	rr = do(t, h, http.MethodGet, "/v1/images/missing", nil)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("missing: status %d", rr.Code)
	}
	if resp := decode[ErrorResponse](t, rr); resp.Code != CodeNotFound {
		t.Errorf("code = %s", resp.Code)
	}
}

func TestBatchUpsert_Validation(t *testing.T) {
	h := newTestServer(t)

	rr := do(t, h, http.MethodPut, "/v1/images", BatchUpsertRequest{})
	if rr.Code != http.StatusBadRequest {
		t.Errorf("empty batch: status %d", rr.Code)
	}

	rr = do(t, h, http.MethodPut, "/v1/images", BatchUpsertRequest{Images: []ImageBody{
		{ID: "ok"}, {ID: "neg", Width: -5},
	}})
	resp := decode[BatchResponse](t, rr)
	if resp.Succeeded != 1 || resp.Failed != 1 {
		t.Fatalf("got %+v", resp)
	}
	if e := resp.Items[1].Error; e == nil || e.Code != CodeValidationFailed {
		t.Errorf("item error = %+v", e)
	}
}

func TestBatchDelete_InvalidatesQueries(t *testing.T) {
	h := newTestServer(t)
	seed(t, h)

	first := decode[QueryResponse](t, do(t, h, http.MethodGet, "/v1/images?import=imp&sort=id&limit=10", nil))
	if len(first.IDs) != 3 {
		t.Fatalf("ids = %v", first.IDs)
	}

	rr := do(t, h, http.MethodDelete, "/v1/images", BatchDeleteRequest{IDs: []string{"a", "zzz"}})
	resp := decode[BatchResponse](t, rr)
	if resp.Succeeded != 1 || resp.Failed != 1 {
		t.Fatalf("got %+v", resp)
	}
	if e := resp.Items[1].Error; e == nil || e.Code != CodeNotFound {
		t.Errorf("unknown id error = %+v", e)
	}

	again := decode[QueryResponse](t, do(t, h, http.MethodGet, "/v1/images?import=imp&sort=id&limit=10", nil))
	if again.Cached || !slices.Equal(again.IDs, []string{"b", "c"}) {
		t.Errorf("after delete: cached=%v ids=%v", again.Cached, again.IDs)
	}
}

func TestScopes(t *testing.T) {
	h := newTestServer(t)
	seed(t, h)

	rr := do(t, h, http.MethodPut, "/v1/scopes/imp", ScopeRequest{Kind: "import", SuccessCount: 7})
	if rr.Code != http.StatusNoContent {
		t.Fatalf("put scope: status %d: %s", rr.Code, rr.Body)
	}
	resp := decode[QueryResponse](t, do(t, h, http.MethodGet, "/v1/images?import=imp", nil))
	if resp.Total != 7 {
		t.Errorf("unfiltered total = %d, want the scope's success count 7", resp.Total)
	}

	rr = do(t, h, http.MethodPost, "/v1/scopes/imp/invalidate", nil)
	if got := decode[InvalidateResponse](t, rr); got.Invalidated == 0 {
		t.Errorf("invalidated = %d", got.Invalidated)
	}

	rr = do(t, h, http.MethodPut, "/v1/scopes/imp", ScopeRequest{Kind: "album"})
	if rr.Code != http.StatusBadRequest {
		t.Errorf("bad kind: status %d", rr.Code)
	}
}

func TestHealthCheck(t *testing.T) {
	h := newTestServer(t)
	rr := do(t, h, http.MethodGet, "/health", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status %d", rr.Code)
	}
	resp := decode[HealthResponse](t, rr)
	if resp.Checks["database"] != "ok" {
		t.Errorf("checks = %v", resp.Checks)
	}
	if _, ok := resp.Caches["page"]; !ok {
		t.Errorf("caches = %v", resp.Caches)
	}
	if !strings.HasPrefix(resp.Build, "imgdex ") {
		t.Errorf("build = %q", resp.Build)
	}
}
