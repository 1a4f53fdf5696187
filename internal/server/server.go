// Package server exposes extraction and layout over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/metcalfc/prr/internal/extract"
	"github.com/metcalfc/prr/internal/layout"
)

// uploadField is the multipart field carrying the document.
const uploadField = "pdf"

type Config struct {
	Addr           string
	MaxUploadBytes int64
	Viewport       layout.Viewport
}

// Server is an http.Handler. Uploads are held in memory only.
type Server struct {
	cfg       Config
	extractor extract.Extractor
	measurer  layout.Measurer
	log       *zap.Logger
	mux       *http.ServeMux
}

func New(cfg Config, ex extract.Extractor, m layout.Measurer, log *zap.Logger) *Server {
	if ex == nil {
		ex = extract.Default
	}
	if log == nil {
		log = zap.NewNop()
	}
	s := &Server{cfg: cfg, extractor: ex, measurer: m, log: log, mux: http.NewServeMux()}
	s.mux.HandleFunc("POST /upload-pdf", s.handleUpload)
	s.mux.HandleFunc("POST /layout", s.handleLayout)
	s.mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = io.WriteString(w, "ok")
	})
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
	rec.Header().Set("Access-Control-Allow-Origin", "*")
	if r.Method == http.MethodOptions {
		rec.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		rec.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		rec.WriteHeader(http.StatusNoContent)
	} else {
		s.mux.ServeHTTP(rec, r)
	}
	s.log.Info("request",
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.Int("status", rec.status),
		zap.Int("bytes", rec.bytes),
		zap.Duration("took", time.Since(start)))
}

// ListenAndServe serves on cfg.Addr until ctx is done, then shuts down.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.cfg.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is done.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s,
		ReadHeaderTimeout: 5 * time.Second,
	}
	errc := make(chan error, 1)
	go func() { errc <- srv.Serve(ln) }()
	s.log.Info("listening", zap.String("addr", ln.Addr().String()))

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	text, ok := s.extractUpload(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = io.WriteString(w, text)
}

type lineJSON struct {
	Paragraph int    `json:"paragraph"`
	FirstWord int    `json:"first_word"`
	Text      string `json:"text"`
	Fragment  bool   `json:"fragment,omitempty"`
}

type pageJSON struct {
	Number    int        `json:"number"`
	FirstWord int        `json:"first_word"`
	WordCount int        `json:"word_count"`
	Lines     []lineJSON `json:"lines"`
}

type layoutJSON struct {
	Words     []string   `json:"words"`
	Pages     []pageJSON `json:"pages"`
	WordIndex []int      `json:"word_index"`
}

// LayoutJSON converts l into its wire form.
func LayoutJSON(l *layout.Layout) any {
	out := layoutJSON{
		Words:     l.Words,
		Pages:     make([]pageJSON, 0, len(l.Pages)),
		WordIndex: l.Index.Offsets(),
	}
	if out.Words == nil {
		out.Words = []string{}
	}
	if out.WordIndex == nil {
		out.WordIndex = []int{}
	}
	for _, p := range l.Pages {
		pj := pageJSON{Number: p.Number, FirstWord: p.FirstWord, WordCount: p.WordCount}
		for _, ln := range p.Lines {
			pj.Lines = append(pj.Lines, lineJSON{
				Paragraph: ln.Paragraph,
				FirstWord: ln.FirstWord,
				Text:      ln.Text(),
				Fragment:  ln.Fragment,
			})
		}
		out.Pages = append(out.Pages, pj)
	}
	return out
}

func (s *Server) handleLayout(w http.ResponseWriter, r *http.Request) {
	text, ok := s.extractUpload(w, r)
	if !ok {
		return
	}
	l := layout.Build(text, s.cfg.Viewport, s.measurer)
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(LayoutJSON(l)); err != nil {
		s.log.Warn("encode layout", zap.Error(err))
	}
}

// extractUpload reads the uploaded file and extracts its text, writing an
// error response and returning false on failure.
func (s *Server) extractUpload(w http.ResponseWriter, r *http.Request) (string, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)
	if err := r.ParseMultipartForm(s.cfg.MaxUploadBytes); err != nil {
		if tooLarge(err) {
			http.Error(w, "File too large", http.StatusRequestEntityTooLarge)
			return "", false
		}
		http.Error(w, "Expected multipart form with field \""+uploadField+"\"", http.StatusBadRequest)
		return "", false
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	f, hdr, err := r.FormFile(uploadField)
	if err != nil {
		http.Error(w, "Missing \""+uploadField+"\" file", http.StatusBadRequest)
		return "", false
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		http.Error(w, "Error reading upload", http.StatusBadRequest)
		return "", false
	}

	text, err := s.extractor.Extract(r.Context(), hdr.Filename, data)
	if err != nil {
		s.log.Error("extraction failed", zap.String("name", hdr.Filename), zap.Error(err))
		http.Error(w, "Error processing PDF", http.StatusInternalServerError)
		return "", false
	}
	s.log.Debug("extracted", zap.String("name", hdr.Filename), zap.Int("bytes", len(data)))
	return text, true
}

func tooLarge(err error) bool {
	var mbe *http.MaxBytesError
	return errors.As(err, &mbe) || strings.Contains(err.Error(), "request body too large")
}

type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	n, err := r.ResponseWriter.Write(b)
	r.bytes += n
	return n, err
}
