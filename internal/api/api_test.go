package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andresuchdata/bucketsync/internal/bucketsync"
	"github.com/andresuchdata/bucketsync/internal/service"
	"github.com/andresuchdata/bucketsync/internal/storage"
	"github.com/andresuchdata/bucketsync/internal/storage/storagetest"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fixture struct {
	gw     *storagetest.Gateway
	router *gin.Engine
	dir    string
}

func newFixture(t *testing.T, origins ...string) *fixture {
	t.Helper()

	gw := storagetest.New("inbox", "outbox")
	client := bucketsync.New(
		storage.Credentials{Endpoint: "http://localhost:9000", BucketName: "inbox"},
		bucketsync.WithLogger(zerolog.Nop()),
		bucketsync.WithConnector(func(storage.Credentials, storage.Profile) (storage.Gateway, error) {
			return gw, nil
		}),
	)
	dir := t.TempDir()
	svc := service.NewTransferService(client, dir, 1)

	return &fixture{
		gw:     gw,
		router: NewRouter(&Services{TransferService: svc}, origins),
		dir:    dir,
	}
}

func (f *fixture) do(method, path string, body *bytes.Buffer, contentType string) *httptest.ResponseRecorder {
	if body == nil {
		body = &bytes.Buffer{}
	}
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func (f *fixture) doJSON(method, path string, payload any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if payload != nil {
		if s, ok := payload.(string); ok {
			buf.WriteString(s)
		} else {
			_ = json.NewEncoder(&buf).Encode(payload)
		}
	}
	return f.do(method, path, &buf, "application/json")
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestHealth(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodGet, "/health", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decode(t, rec)["status"])
}

func TestCheckBuckets(t *testing.T) {
	f := newFixture(t)

	t.Run("configured bucket", func(t *testing.T) {
		rec := f.doJSON(http.MethodPost, "/api/v1/buckets/check", nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Equal(t, []any{"inbox"}, decode(t, rec)["buckets"])
	})

	t.Run("named buckets", func(t *testing.T) {
		rec := f.doJSON(http.MethodPost, "/api/v1/buckets/check", gin.H{"buckets": []string{"inbox", "outbox"}})
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("missing bucket", func(t *testing.T) {
		rec := f.doJSON(http.MethodPost, "/api/v1/buckets/check", gin.H{"buckets": []string{"archive"}})
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Contains(t, decode(t, rec)["detail"], "bucket not found")
	})

	t.Run("malformed body", func(t *testing.T) {
		rec := f.doJSON(http.MethodPost, "/api/v1/buckets/check", "{")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestListObjects(t *testing.T) {
	f := newFixture(t)
	f.gw.Seed("inbox", "a.xml", []byte("a"))
	f.gw.Seed("inbox", "b.txt", []byte("b"))

	rec := f.do(http.MethodGet, "/api/v1/objects?filter=.xml", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	out := decode(t, rec)
	assert.Equal(t, []any{"a.xml"}, out["keys"])
	assert.Equal(t, float64(1), out["count"])

	rec = f.do(http.MethodGet, "/api/v1/objects?filter=nothing", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []any{}, decode(t, rec)["keys"])
}

func TestDownload(t *testing.T) {
	t.Run("default directory", func(t *testing.T) {
		f := newFixture(t)
		f.gw.Seed("inbox", "a.xml", []byte("<a/>"))
		f.gw.Seed("inbox", "b.txt", []byte("b"))

		rec := f.doJSON(http.MethodPost, "/api/v1/download", gin.H{"filter": ".xml"})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		out := decode(t, rec)
		assert.Equal(t, float64(1), out["downloaded"])
		assert.Equal(t, float64(0), out["deleted"])
		assert.Equal(t, true, out["any"])
		assert.FileExists(t, filepath.Join(f.dir, "a.xml"))
	})

	t.Run("delete downloaded only", func(t *testing.T) {
		f := newFixture(t)
		f.gw.Seed("inbox", "a.xml", []byte("<a/>"))
		f.gw.Seed("inbox", "b.txt", []byte("b"))
		dir := t.TempDir()

		rec := f.doJSON(http.MethodPost, "/api/v1/download", gin.H{
			"local_dir":             dir,
			"filter":                ".xml",
			"delete_after_download": true,
			"delete_scope":          "downloaded",
		})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Equal(t, float64(1), decode(t, rec)["deleted"])
		assert.Equal(t, []string{"b.txt"}, f.gw.Keys("inbox"))
	})

	t.Run("empty bucket", func(t *testing.T) {
		f := newFixture(t)

		rec := f.doJSON(http.MethodPost, "/api/v1/download", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, false, decode(t, rec)["any"])
	})

	t.Run("bad delete scope", func(t *testing.T) {
		f := newFixture(t)

		rec := f.doJSON(http.MethodPost, "/api/v1/download", gin.H{"delete_scope": "some"})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("store failure", func(t *testing.T) {
		f := newFixture(t)
		f.gw.Seed("inbox", "a.xml", []byte("<a/>"))
		f.gw.GetObjectFunc = func(_ context.Context, bucket, key string) (io.ReadCloser, error) {
			return nil, &storage.Error{Op: "get-object", Bucket: bucket, Key: key, Err: assert.AnError}
		}

		rec := f.doJSON(http.MethodPost, "/api/v1/download", nil)
		assert.Equal(t, http.StatusBadGateway, rec.Code)
	})
}

func TestUploadFiles(t *testing.T) {
	f := newFixture(t)
	path := filepath.Join(t.TempDir(), "report.csv")
	require.NoError(t, os.WriteFile(path, []byte("a,b\n"), 0o644))

	rec := f.doJSON(http.MethodPost, "/api/v1/upload/files", gin.H{"paths": []string{path}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, float64(1), decode(t, rec)["uploaded"])
	assert.Equal(t, []string{"report.csv"}, f.gw.Keys("inbox"))

	rec = f.doJSON(http.MethodPost, "/api/v1/upload/files", gin.H{"paths": []string{path + ".missing"}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decode(t, rec)["detail"], "upload source not found")

	rec = f.doJSON(http.MethodPost, "/api/v1/upload/files", gin.H{"paths": []string{}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUploadObjects(t *testing.T) {
	f := newFixture(t)

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for name, body := range map[string]string{"one.txt": "1", "two.xml": "<two/>"} {
		part, err := w.CreateFormFile("files", name)
		require.NoError(t, err)
		_, err = part.Write([]byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	rec := f.do(http.MethodPost, "/api/v1/upload/objects", &buf, w.FormDataContentType())
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, float64(2), decode(t, rec)["uploaded"])
	assert.Equal(t, []string{"one.txt", "two.xml"}, f.gw.Keys("inbox"))

	body, ok := f.gw.Object("inbox", "two.xml")
	require.True(t, ok)
	assert.Equal(t, "<two/>", string(body))
}

func TestUploadObjects_NoFiles(t *testing.T) {
	f := newFixture(t)

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	require.NoError(t, w.WriteField("note", "empty"))
	require.NoError(t, w.Close())

	rec := f.do(http.MethodPost, "/api/v1/upload/objects", &buf, w.FormDataContentType())
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.doJSON(http.MethodPost, "/api/v1/upload/objects", gin.H{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCORS(t *testing.T) {
	t.Run("allow all", func(t *testing.T) {
		f := newFixture(t, "*")
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.Header.Set("Origin", "http://frontend.test")
		rec := httptest.NewRecorder()
		f.router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "http://frontend.test", rec.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("restricted", func(t *testing.T) {
		f := newFixture(t, "http://allowed.test, http://other.test")
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.Header.Set("Origin", "http://frontend.test")
		rec := httptest.NewRecorder()
		f.router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusForbidden, rec.Code)
	})
}

func TestNormalizeAllowedOrigins(t *testing.T) {
	origins, all := normalizeAllowedOrigins([]string{" http://a.test ,http://b.test", "", "*"})
	assert.True(t, all)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, origins)

	origins, all = normalizeAllowedOrigins([]string{"http://a.test"})
	assert.False(t, all)
	assert.Equal(t, []string{"http://a.test"}, origins)
}
