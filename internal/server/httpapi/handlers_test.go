package httpapi

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scs-backend/scs/internal/logging"
	"github.com/scs-backend/scs/internal/server/config"
	"github.com/scs-backend/scs/internal/server/users"
	"github.com/scs-backend/scs/internal/server/vault"
)

const (
	testEmail = "alice@example.com"
	testSalt  = "abababababababababababababababab"
)

func testHash(password string) string {
	sum := sha256.Sum256([]byte(password))
	return hex.EncodeToString(sum[:])
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	root := t.TempDir()
	logger := logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))

	store := users.NewStore(filepath.Join(root, "users.json"))
	us := users.NewService(store, root, logger)
	vs := vault.NewService(root, us, 50*1024*1024, logger)

	cfg := &config.Config{
		EndpointAddrHTTP: ":0",
		StorageDir:       root,
		MaxUploadBytes:   50 * 1024 * 1024,
		ShutdownTimeout:  time.Second,
	}

	srv := httptest.NewServer(NewServer(cfg, us, vs, logger).Routes())
	t.Cleanup(srv.Close)
	return srv
}

func postJSON(t *testing.T, srv *httptest.Server, path string, body any) (*http.Response, map[string]any) {
	t.Helper()
	return doJSON(t, srv, http.MethodPost, path, body)
}

func doJSON(t *testing.T, srv *httptest.Server, method, path string, body any) (*http.Response, map[string]any) {
	t.Helper()

	data, err := json.Marshal(body)
	require.NoError(t, err)

	req, err := http.NewRequest(method, srv.URL+path, bytes.NewReader(data))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var parsed map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&parsed))
	return resp, parsed
}

func register(t *testing.T, srv *httptest.Server) {
	t.Helper()
	resp, _ := postJSON(t, srv, "/api/register", map[string]string{
		"email":         testEmail,
		"password_hash": testHash("pw"),
		"salt":          testSalt,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func upload(t *testing.T, srv *httptest.Server, name string, blob []byte) (*http.Response, map[string]any) {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("email", testEmail))
	require.NoError(t, mw.WriteField("password_hash", testHash("pw")))
	meta := fmt.Sprintf(
		`{"original_name":%q,"original_size":%d,"iv":"00","salt":"00","file_hash":"00"}`,
		name, len(blob))
	require.NoError(t, mw.WriteField("metadata", meta))
	fw, err := mw.CreateFormFile("file", name)
	require.NoError(t, err)
	_, err = fw.Write(blob)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	resp, err := srv.Client().Post(srv.URL+"/api/upload", mw.FormDataContentType(), &buf)
	require.NoError(t, err)
	defer resp.Body.Close()

	var parsed map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&parsed))
	return resp, parsed
}

func TestRegisterLoginFlow(t *testing.T) {
	srv := newTestServer(t)

	resp, body := postJSON(t, srv, "/api/register", map[string]string{
		"email":         testEmail,
		"password_hash": testHash("pw"),
		"salt":          testSalt,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, testSalt, body["salt"])

	// duplicate registration conflicts, case-insensitively
	resp, body = postJSON(t, srv, "/api/register", map[string]string{
		"email":         strings.ToUpper(testEmail),
		"password_hash": testHash("other"),
		"salt":          testSalt,
	})
	require.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Contains(t, body["detail"], "already exists")

	// login returns the client salt
	resp, body = postJSON(t, srv, "/api/login", map[string]string{
		"email":         testEmail,
		"password_hash": testHash("pw"),
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, testSalt, body["salt"])
	assert.Equal(t, testEmail, body["email"])

	// wrong hash and unknown account produce the same response
	respWrong, bodyWrong := postJSON(t, srv, "/api/login", map[string]string{
		"email":         testEmail,
		"password_hash": testHash("nope"),
	})
	respUnknown, bodyUnknown := postJSON(t, srv, "/api/login", map[string]string{
		"email":         "ghost@example.com",
		"password_hash": testHash("pw"),
	})
	assert.Equal(t, http.StatusUnauthorized, respWrong.StatusCode)
	assert.Equal(t, http.StatusUnauthorized, respUnknown.StatusCode)
	assert.Equal(t, bodyWrong["detail"], bodyUnknown["detail"])
}

func TestRegister_InvalidInputs(t *testing.T) {
	srv := newTestServer(t)

	tests := []struct {
		name string
		req  map[string]string
	}{
		{"bad email", map[string]string{
			"email": "not-an-email", "password_hash": testHash("pw"), "salt": testSalt}},
		{"short hash", map[string]string{
			"email": testEmail, "password_hash": "abcd", "salt": testSalt}},
		{"short salt", map[string]string{
			"email": testEmail, "password_hash": testHash("pw"), "salt": "abcd"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, _ := postJSON(t, srv, "/api/register", tt.req)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		})
	}
}

func TestUploadDownloadDeleteFlow(t *testing.T) {
	srv := newTestServer(t)
	register(t, srv)

	// upload
	resp, body := upload(t, srv, "a.txt", []byte("0123456789"))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "a.txt", body["filename"])
	assert.Equal(t, float64(10), body["size"])

	// re-upload of the same display name is stored under a new name
	resp, body = upload(t, srv, "a.txt", []byte("xxxxxxxxxx"))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "a_1.txt", body["filename"])

	// list both
	resp, body = doJSON(t, srv, http.MethodGet, "/api/files?email="+testEmail, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	files := body["files"].([]any)
	require.Len(t, files, 2)

	// download metadata + blob
	resp, body = doJSON(t, srv, http.MethodGet, "/api/download?email="+testEmail+"&filename=a.txt", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	meta := body["metadata"].(map[string]any)
	assert.Equal(t, "a.txt", meta["stored_name"])
	assert.Equal(t, float64(10), meta["encrypted_size"])

	blobURL := body["download_url"].(string)
	blobResp, err := srv.Client().Get(srv.URL + blobURL)
	require.NoError(t, err)
	defer blobResp.Body.Close()
	require.Equal(t, http.StatusOK, blobResp.StatusCode)
	assert.Equal(t, "application/octet-stream", blobResp.Header.Get("Content-Type"))
	blob, err := io.ReadAll(blobResp.Body)
	require.NoError(t, err)
	assert.Equal(t, "0123456789", string(blob))

	// delete the first entry
	resp, _ = doJSON(t, srv, http.MethodDelete, "/api/delete", map[string]string{
		"email":         testEmail,
		"filename":      "a.txt",
		"password_hash": testHash("pw"),
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body = doJSON(t, srv, http.MethodGet, "/api/files?email="+testEmail, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	files = body["files"].([]any)
	require.Len(t, files, 1)

	// deleted file is gone
	resp, _ = doJSON(t, srv, http.MethodGet, "/api/download?email="+testEmail+"&filename=a.txt", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestUpload_RequiresValidCredentials(t *testing.T) {
	srv := newTestServer(t)
	register(t, srv)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("email", testEmail))
	require.NoError(t, mw.WriteField("password_hash", testHash("wrong")))
	require.NoError(t, mw.WriteField("metadata",
		`{"original_name":"a.txt","original_size":1,"iv":"00","salt":"00","file_hash":"00"}`))
	fw, err := mw.CreateFormFile("file", "a.txt")
	require.NoError(t, err)
	_, err = fw.Write([]byte("x"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	resp, err := srv.Client().Post(srv.URL+"/api/upload", mw.FormDataContentType(), &buf)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestUpload_MissingMetadataField(t *testing.T) {
	srv := newTestServer(t)
	register(t, srv)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("email", testEmail))
	require.NoError(t, mw.WriteField("password_hash", testHash("pw")))
	require.NoError(t, mw.WriteField("metadata",
		`{"original_name":"a.txt","original_size":1,"salt":"00","file_hash":"00"}`))
	fw, err := mw.CreateFormFile("file", "a.txt")
	require.NoError(t, err)
	_, err = fw.Write([]byte("x"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	resp, err := srv.Client().Post(srv.URL+"/api/upload", mw.FormDataContentType(), &buf)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Contains(t, body["detail"], "iv")
}

func TestSizeLimit_RejectsByContentLength(t *testing.T) {
	handler := SizeLimit(50*1024*1024)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("oversized request reached the handler")
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/upload", strings.NewReader(""))
	req.Header.Set("Content-Length", strconv.FormatInt(51*1024*1024, 10))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestListFiles_UnknownAccount(t *testing.T) {
	srv := newTestServer(t)

	resp, _ := doJSON(t, srv, http.MethodGet, "/api/files?email=ghost@example.com", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestDownload_TraversalPayloadRejectedOrNotFound(t *testing.T) {
	srv := newTestServer(t)
	register(t, srv)

	resp, err := srv.Client().Get(srv.URL + "/api/download?email=" + testEmail +
		"&filename=" + "..%2F..%2Fetc%2Fpasswd")
	require.NoError(t, err)
	defer resp.Body.Close()

	// the payload sanitizes to a plain name that does not exist
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
