package nughttp

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/brendoncarroll/stdctx/logctx"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/nugrepo/nug"
)

func TestPublishAndGetContent(t *testing.T) {
	s := newTestServer(t, map[string]string{"alice": "secret"})
	data := mustNupkg(t, "My.Package", "01.02.03.00")

	res := do(t, s, http.MethodPut, "/package", data, "alice", "secret")
	require.Equal(t, http.StatusCreated, res.Code)

	// the index holds the normalized version
	res = do(t, s, http.MethodGet, "/content/my.package/index.json", nil, "alice", "secret")
	require.Equal(t, http.StatusOK, res.Code)
	var idx struct {
		Versions []string `json:"versions"`
	}
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &idx))
	require.Equal(t, []string{"1.2.3"}, idx.Versions)

	// any spelling of the version resolves to the same content
	for _, spelling := range []string{"1.2.3", "01.02.3.0", "1.2.3+build.5"} {
		res = do(t, s, http.MethodGet, "/content/my.package/"+spelling+"/my.package.1.2.3.nupkg", nil, "alice", "secret")
		require.Equal(t, http.StatusOK, res.Code, "version %q", spelling)
		require.Equal(t, data, res.Body.Bytes())
	}
}

func TestContentNotFound(t *testing.T) {
	s := newTestServer(t, nil)
	res := do(t, s, http.MethodGet, "/content/unknown/index.json", nil, "", "")
	require.Equal(t, http.StatusNotFound, res.Code)

	res = do(t, s, http.MethodGet, "/content/unknown/1.0.0/unknown.1.0.0.nupkg", nil, "", "")
	require.Equal(t, http.StatusNotFound, res.Code)

	// malformed versions are not found rather than server errors
	res = do(t, s, http.MethodGet, "/content/unknown/banana/unknown.banana.nupkg", nil, "", "")
	require.Equal(t, http.StatusNotFound, res.Code)
}

func TestPublishRequiresAuth(t *testing.T) {
	s := newTestServer(t, map[string]string{"alice": "secret"})
	data := mustNupkg(t, "pkg", "1.0.0")

	res := do(t, s, http.MethodPut, "/package", data, "", "")
	require.Equal(t, http.StatusUnauthorized, res.Code)
	require.Equal(t, "Basic", res.Header().Get("WWW-Authenticate"))

	res = do(t, s, http.MethodPut, "/package", data, "alice", "wrong")
	require.Equal(t, http.StatusUnauthorized, res.Code)
}

func TestPublishConflict(t *testing.T) {
	s := newTestServer(t, nil)
	res := do(t, s, http.MethodPut, "/package", mustNupkg(t, "pkg", "1.0.0"), "", "")
	require.Equal(t, http.StatusCreated, res.Code)

	// equivalent spelling of the same version conflicts
	res = do(t, s, http.MethodPut, "/package", mustNupkg(t, "PKG", "1.0.00.0"), "", "")
	require.Equal(t, http.StatusConflict, res.Code)
}

func TestPublishBadPayload(t *testing.T) {
	s := newTestServer(t, nil)
	res := do(t, s, http.MethodPut, "/package", []byte("not a zip"), "", "")
	require.Equal(t, http.StatusBadRequest, res.Code)

	res = do(t, s, http.MethodPut, "/package", mustNupkg(t, "pkg", "banana"), "", "")
	require.Equal(t, http.StatusBadRequest, res.Code)
}

func TestSearch(t *testing.T) {
	s := newTestServer(t, nil)
	res := do(t, s, http.MethodPut, "/package", mustNupkg(t, "aaa", "1.0.0"), "", "")
	require.Equal(t, http.StatusCreated, res.Code)
	res = do(t, s, http.MethodPut, "/package", mustNupkg(t, "bbb", "2.0.0"), "", "")
	require.Equal(t, http.StatusCreated, res.Code)

	res = do(t, s, http.MethodGet, "/search?key=id&gteq=bbb", nil, "", "")
	require.Equal(t, http.StatusOK, res.Code)
	var results []struct {
		Name string `json:"name"`
	}
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &results))
	require.Len(t, results, 1)
	require.Equal(t, "bbb", results[0].Name)
}

func TestSearchQuery(t *testing.T) {
	s := newTestServer(t, nil)
	for _, id := range []string{"ccc", "aaa", "bbb"} {
		res := do(t, s, http.MethodPut, "/package", mustNupkg(t, id, "1.0.0"), "", "")
		require.Equal(t, http.StatusCreated, res.Code)
	}

	body, err := json.Marshal(map[string]any{
		"order_by": []string{"id"},
		"limit":    2,
	})
	require.NoError(t, err)
	res := do(t, s, http.MethodPost, "/search", body, "", "")
	require.Equal(t, http.StatusOK, res.Code)
	var results []struct {
		Name string `json:"name"`
	}
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &results))
	require.Len(t, results, 2)
	require.Equal(t, "aaa", results[0].Name)
	require.Equal(t, "bbb", results[1].Name)

	res = do(t, s, http.MethodPost, "/search", []byte("{"), "", "")
	require.Equal(t, http.StatusBadRequest, res.Code)
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, map[string]string{"alice": "secret"})
	// health is not behind auth
	res := do(t, s, http.MethodGet, "/healthz", nil, "", "")
	require.Equal(t, http.StatusOK, res.Code)
}

func newTestServer(t testing.TB, users map[string]string) *Server {
	ctx := testContext(t)
	dir := t.TempDir()
	require.NoError(t, nug.Init(ctx, dir))
	r, err := nug.Open(dir)
	require.NoError(t, err)
	cfg := DefaultConfig()
	cfg.Users = users
	return NewServer(r, cfg)
}

func do(t testing.TB, s *Server, method, target string, body []byte, user, pass string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	req = req.WithContext(testContext(t))
	if user != "" {
		req.SetBasicAuth(user, pass)
	}
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec
}

func testContext(t testing.TB) context.Context {
	return logctx.NewContext(context.Background(), zap.NewNop())
}

func mustNupkg(t testing.TB, id, version string) []byte {
	manifest := fmt.Sprintf(`<?xml version="1.0"?>
<package>
  <metadata>
    <id>%s</id>
    <version>%s</version>
    <authors>test</authors>
  </metadata>
</package>`, id, version)
	buf := &bytes.Buffer{}
	zw := zip.NewWriter(buf)
	w, err := zw.Create(id + ".nuspec")
	require.NoError(t, err)
	_, err = w.Write([]byte(manifest))
	require.NoError(t, err)
	w, err = zw.Create("lib/net6.0/" + id + ".dll")
	require.NoError(t, err)
	_, err = w.Write([]byte("binary"))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}
