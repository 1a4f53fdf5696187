package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/metcalfc/prr/internal/extract"
	"github.com/metcalfc/prr/internal/layout"
)

func newTestServer(ex extract.Extractor, max int64) *Server {
	return New(Config{
		Addr:           "127.0.0.1:0",
		MaxUploadBytes: max,
		Viewport:       layout.Viewport{Width: 40, Height: 30, LineHeight: 10},
	}, ex, layout.Monospace(1), nil)
}

func multipartBody(t *testing.T, field, name string, data []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile(field, name)
	require.NoError(t, err)
	_, err = fw.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func post(t *testing.T, s http.Handler, path, field, name string, data []byte) *httptest.ResponseRecorder {
	t.Helper()
	body, ct := multipartBody(t, field, name, data)
	req := httptest.NewRequest(http.MethodPost, path, body)
	req.Header.Set("Content-Type", ct)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec
}

func TestUploadReturnsNormalizedText(t *testing.T) {
	s := newTestServer(nil, 1<<20)
	rec := post(t, s, "/upload-pdf", "pdf", "notes.txt", []byte("Alpha beta.\n\nGamma delta epsilon."))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Alpha beta."+layout.PageBreak+"Gamma delta epsilon.", rec.Body.String())
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestUploadExtractionFailure(t *testing.T) {
	s := newTestServer(nil, 1<<20)
	rec := post(t, s, "/upload-pdf", "pdf", "broken.pdf", []byte("not really a pdf"))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Error processing PDF\n", rec.Body.String())
}

func TestUploadMissingField(t *testing.T) {
	s := newTestServer(nil, 1<<20)
	rec := post(t, s, "/upload-pdf", "file", "notes.txt", []byte("hi"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/upload-pdf", strings.NewReader("plain"))
	req.Header.Set("Content-Type", "text/plain")
	rec = httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUploadTooLarge(t *testing.T) {
	s := newTestServer(nil, 512)
	rec := post(t, s, "/upload-pdf", "pdf", "big.txt", bytes.Repeat([]byte("word "), 1000))
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestUploadWrongMethod(t *testing.T) {
	s := newTestServer(nil, 1<<20)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/upload-pdf", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestPreflight(t *testing.T) {
	s := newTestServer(nil, 1<<20)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/upload-pdf", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), "POST")
}

func TestLayout(t *testing.T) {
	s := newTestServer(nil, 1<<20)
	rec := post(t, s, "/layout", "pdf", "notes.txt", []byte("Alpha beta.\n\nGamma delta epsilon."))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var got struct {
		Words []string `json:"words"`
		Pages []struct {
			Number    int `json:"number"`
			WordCount int `json:"word_count"`
			Lines     []struct {
				Text string `json:"text"`
			} `json:"lines"`
		} `json:"pages"`
		WordIndex []int `json:"word_index"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, []string{"Alpha", "beta.", "Gamma", "delta", "epsilon."}, got.Words)
	assert.Equal(t, []int{0, 2}, got.WordIndex)
	require.Len(t, got.Pages, 1)
	assert.Equal(t, 5, got.Pages[0].WordCount)
	require.Len(t, got.Pages[0].Lines, 2)
	assert.Equal(t, "Gamma delta epsilon.", got.Pages[0].Lines[1].Text)
}

func TestLayoutEmptyDocument(t *testing.T) {
	s := newTestServer(nil, 1<<20)
	rec := post(t, s, "/layout", "pdf", "blank.txt", []byte("   "))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"words":[],"pages":[],"word_index":[]}`, rec.Body.String())
}

func TestHealthz(t *testing.T) {
	s := newTestServer(nil, 1<<20)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestUsesGivenExtractor(t *testing.T) {
	var gotName string
	ex := extract.ExtractorFunc(func(_ context.Context, name string, _ []byte) (string, error) {
		gotName = name
		return "", errors.New("nope")
	})
	rec := post(t, newTestServer(ex, 1<<20), "/upload-pdf", "pdf", "paper.pdf", []byte("%PDF-"))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "paper.pdf", gotName)
}

func TestServeShutsDownOnCancel(t *testing.T) {
	s := newTestServer(nil, 1<<20)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/healthz")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, "ok", string(body))

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
