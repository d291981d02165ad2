package documents

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"studydocs-backend/internal/shared/server/middleware"
)

type envelope struct {
	Success bool            `json:"success"`
	Error   string          `json:"error"`
	Message string          `json:"message"`
	Count   *int            `json:"count"`
	Data    json.RawMessage `json:"data"`
}

func newTestRouter(t *testing.T, f *serviceFixture) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(middleware.RequestID())
	RegisterFileRoutes(r, "/uploads/documents", f.store)

	api := r.Group("/api", middleware.Auth("dev"))
	NewHandler(f.svc, "/uploads/documents").RegisterRoutes(api)
	return r
}

type formFile struct {
	name        string
	contentType string
	body        []byte
}

func multipartBody(t *testing.T, title string, file *formFile) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	if title != "" {
		require.NoError(t, w.WriteField("title", title))
	}
	if file != nil {
		h := textproto.MIMEHeader{}
		h.Set("Content-Disposition", `form-data; name="file"; filename="`+file.name+`"`)
		h.Set("Content-Type", file.contentType)
		part, err := w.CreatePart(h)
		require.NoError(t, err)
		_, err = part.Write(file.body)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return body, w.FormDataContentType()
}

func doRequest(r http.Handler, method, target, userID string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if userID != "" {
		req.Header.Set("X-User-Id", userID)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env
}

func uploadViaHTTP(t *testing.T, r http.Handler, userID string) DocumentResponse {
	t.Helper()
	body, ct := multipartBody(t, "Cell Biology", &formFile{name: "cells.pdf", contentType: "application/pdf", body: samplePDF})
	rec := doRequest(r, http.MethodPost, "/api/documents/upload", userID, body, ct)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	env := decodeEnvelope(t, rec)
	var doc DocumentResponse
	require.NoError(t, json.Unmarshal(env.Data, &doc))
	return doc
}

func TestUploadEndpoint(t *testing.T) {
	f := newServiceFixture(t)
	r := newTestRouter(t, f)

	body, ct := multipartBody(t, "Cell Biology", &formFile{name: "cells.pdf", contentType: "application/pdf", body: samplePDF})
	rec := doRequest(r, http.MethodPost, "/api/documents/upload", "alice", body, ct)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	env := decodeEnvelope(t, rec)
	assert.True(t, env.Success)
	assert.Equal(t, MsgUploaded, env.Message)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(env.Data, &doc))
	assert.NotEmpty(t, doc["_id"])
	assert.Equal(t, "alice", doc["userId"])
	assert.Equal(t, "Cell Biology", doc["title"])
	assert.Equal(t, "cells.pdf", doc["fileName"])
	assert.Equal(t, "processing", doc["status"])
	assert.True(t, strings.HasPrefix(doc["filePath"].(string), "http://example.com/uploads/documents/"))
	assert.NotContains(t, doc, "flashcardCount")
	assert.Len(t, f.queue.sent(), 1)
}

func uploadWithForwardedHeaders(t *testing.T, trust bool, proto, host string) DocumentResponse {
	t.Helper()
	f := newServiceFixture(t)
	gin.SetMode(gin.TestMode)
	r := gin.New()
	h := NewHandler(f.svc, "/uploads/documents")
	h.TrustForwarded = trust
	h.RegisterRoutes(r.Group("/api", middleware.Auth("dev")))

	body, ct := multipartBody(t, "Notes", &formFile{name: "n.pdf", contentType: "application/pdf", body: samplePDF})
	req := httptest.NewRequest(http.MethodPost, "/api/documents/upload", body)
	req.Host = "internal:8080"
	req.Header.Set("Content-Type", ct)
	req.Header.Set("X-User-Id", "alice")
	req.Header.Set("X-Forwarded-Proto", proto)
	req.Header.Set("X-Forwarded-Host", host)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var doc DocumentResponse
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, rec).Data, &doc))
	return doc
}

func TestUploadEndpointHonoursTrustedForwardedHeaders(t *testing.T) {
	doc := uploadWithForwardedHeaders(t, true, "https", "api.studydocs.app")
	assert.True(t, strings.HasPrefix(doc.FilePath, "https://api.studydocs.app/uploads/documents/"), doc.FilePath)
}

func TestUploadEndpointIgnoresUntrustedForwardedHeaders(t *testing.T) {
	doc := uploadWithForwardedHeaders(t, false, "https", "evil.example")
	assert.True(t, strings.HasPrefix(doc.FilePath, "http://internal:8080/uploads/documents/"), doc.FilePath)
}

func TestUploadEndpointRejectsForwardedSchemeOutsideHTTP(t *testing.T) {
	doc := uploadWithForwardedHeaders(t, true, "javascript", "evil.example/x?")
	assert.True(t, strings.HasPrefix(doc.FilePath, "http://internal:8080/uploads/documents/"), doc.FilePath)
}

func TestUploadEndpointValidation(t *testing.T) {
	cases := []struct {
		name    string
		title   string
		file    *formFile
		message string
	}{
		{name: "no file", title: "Notes", message: MsgFileRequired},
		{name: "no title", file: &formFile{name: "a.pdf", contentType: "application/pdf", body: samplePDF}, message: MsgTitleRequired},
		{name: "wrong type", title: "Notes", file: &formFile{name: "a.txt", contentType: "text/plain", body: []byte("hi")}, message: MsgOnlyPDF},
		{name: "pdf name but text body", title: "Notes", file: &formFile{name: "a.pdf", contentType: "application/pdf", body: []byte("hi")}, message: MsgOnlyPDF},
		{name: "dot-dot name", title: "Notes", file: &formFile{name: "..", contentType: "application/pdf", body: samplePDF}, message: MsgBadFileName},
		{name: "dots only name", title: "Notes", file: &formFile{name: "...", contentType: "application/pdf", body: samplePDF}, message: MsgBadFileName},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newServiceFixture(t)
			r := newTestRouter(t, f)

			body, ct := multipartBody(t, tc.title, tc.file)
			rec := doRequest(r, http.MethodPost, "/api/documents/upload", "alice", body, ct)

			require.Equal(t, http.StatusBadRequest, rec.Code)
			env := decodeEnvelope(t, rec)
			assert.False(t, env.Success)
			assert.Equal(t, tc.message, env.Error)
			assert.Empty(t, f.storedFiles(t))
		})
	}
}

func TestUploadEndpointKeepsExtensionOfDotPrefixedName(t *testing.T) {
	f := newServiceFixture(t)
	r := newTestRouter(t, f)

	body, ct := multipartBody(t, "Notes", &formFile{name: "....pdf", contentType: "application/pdf", body: samplePDF})
	rec := doRequest(r, http.MethodPost, "/api/documents/upload", "alice", body, ct)
	require.Equal(t, http.StatusCreated, rec.Code)

	var doc DocumentResponse
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, rec).Data, &doc))
	assert.True(t, strings.HasSuffix(doc.FilePath, "-document.pdf"), doc.FilePath)
}

func TestUploadEndpointRejectsOversizedBody(t *testing.T) {
	f := newServiceFixture(t)
	f.svc.MaxUploadBytes = 1024
	r := newTestRouter(t, f)

	big := append(append([]byte{}, samplePDF...), bytes.Repeat([]byte("x"), 2<<20)...)
	body, ct := multipartBody(t, "Notes", &formFile{name: "big.pdf", contentType: "application/pdf", body: big})
	rec := doRequest(r, http.MethodPost, "/api/documents/upload", "alice", body, ct)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, MsgFileTooLarge, decodeEnvelope(t, rec).Error)
	assert.Empty(t, f.storedFiles(t))
}

func TestDocumentsRequireAuthentication(t *testing.T) {
	f := newServiceFixture(t)
	r := newTestRouter(t, f)

	rec := doRequest(r, http.MethodGet, "/api/documents", "", nil, "")
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Not authorized, no token", decodeEnvelope(t, rec).Error)
}

func TestListEndpointOmitsBodyAndIncludesCounts(t *testing.T) {
	f := newServiceFixture(t)
	r := newTestRouter(t, f)
	created := uploadViaHTTP(t, r, "alice")
	uploadViaHTTP(t, r, "bob")
	require.NoError(t, newProcessor(f, &fakeExtractor{text: "mitochondria"}).Process(t.Context(), created.ID, StoredFileName(Document{FilePath: created.FilePath})))
	f.repo.AddFlashcard(Flashcard{ID: "f1", UserID: "alice", DocumentID: created.ID})

	rec := doRequest(r, http.MethodGet, "/api/documents", "alice", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)

	env := decodeEnvelope(t, rec)
	assert.True(t, env.Success)
	require.NotNil(t, env.Count)
	assert.Equal(t, 1, *env.Count)

	var docs []map[string]any
	require.NoError(t, json.Unmarshal(env.Data, &docs))
	require.Len(t, docs, 1)
	assert.Equal(t, created.ID, docs[0]["_id"])
	assert.Equal(t, "ready", docs[0]["status"])
	assert.EqualValues(t, 1, docs[0]["flashcardCount"])
	assert.EqualValues(t, 0, docs[0]["quizCount"])
	assert.NotContains(t, docs[0], "extractedText")
	assert.NotContains(t, docs[0], "chunks")
}

func TestListEndpointEmpty(t *testing.T) {
	f := newServiceFixture(t)
	r := newTestRouter(t, f)

	rec := doRequest(r, http.MethodGet, "/api/documents", "alice", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	env := decodeEnvelope(t, rec)
	assert.Equal(t, 0, *env.Count)
	assert.JSONEq(t, `[]`, string(env.Data))
}

func TestGetEndpoint(t *testing.T) {
	f := newServiceFixture(t)
	r := newTestRouter(t, f)
	created := uploadViaHTTP(t, r, "alice")
	require.NoError(t, newProcessor(f, &fakeExtractor{text: "mitochondria"}).Process(t.Context(), created.ID, StoredFileName(Document{FilePath: created.FilePath})))

	rec := doRequest(r, http.MethodGet, "/api/documents/"+created.ID, "alice", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, rec).Data, &doc))
	assert.Equal(t, "mitochondria", doc["extractedText"])
	assert.Equal(t, []any{"mitochondria"}, doc["chunks"])
	assert.EqualValues(t, 0, doc["flashcardCount"])
	assert.EqualValues(t, 0, doc["quizCount"])

	rec = doRequest(r, http.MethodGet, "/api/documents/"+created.ID, "bob", nil, "")
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, MsgNotFound, decodeEnvelope(t, rec).Error)

	rec = doRequest(r, http.MethodGet, "/api/documents/does-not-exist", "alice", nil, "")
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDeleteEndpoint(t *testing.T) {
	f := newServiceFixture(t)
	r := newTestRouter(t, f)
	created := uploadViaHTTP(t, r, "alice")

	rec := doRequest(r, http.MethodDelete, "/api/documents/"+created.ID, "bob", nil, "")
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Len(t, f.storedFiles(t), 1)

	rec = doRequest(r, http.MethodDelete, "/api/documents/"+created.ID, "alice", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	env := decodeEnvelope(t, rec)
	assert.True(t, env.Success)
	assert.Equal(t, MsgDeleted, env.Message)
	assert.Empty(t, f.storedFiles(t))

	rec = doRequest(r, http.MethodGet, "/api/documents/"+created.ID, "alice", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPublicFileRoute(t *testing.T) {
	f := newServiceFixture(t)
	r := newTestRouter(t, f)
	created := uploadViaHTTP(t, r, "alice")

	path := strings.TrimPrefix(created.FilePath, "http://example.com")
	rec := doRequest(r, http.MethodGet, path, "", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, samplePDF, rec.Body.Bytes())
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))

	rec = doRequest(r, http.MethodGet, "/uploads/documents/missing.pdf", "", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestIsPDFUpload(t *testing.T) {
	assert.True(t, isPDFUpload("a.pdf", "application/pdf"))
	assert.True(t, isPDFUpload("a.PDF", "application/octet-stream"))
	assert.True(t, isPDFUpload("a.bin", "application/pdf; charset=binary"))
	assert.False(t, isPDFUpload("a.pdf", "image/png"))
	assert.False(t, isPDFUpload("a.docx", ""))
}
