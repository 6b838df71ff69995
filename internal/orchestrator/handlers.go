package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/local/pisoprint/internal/cache"
	"github.com/local/pisoprint/internal/estimator"
	"github.com/local/pisoprint/internal/filetype"
	"github.com/local/pisoprint/internal/imagerender"
	"github.com/local/pisoprint/internal/ledger"
	"github.com/local/pisoprint/internal/metrics"
	"github.com/local/pisoprint/internal/normalize"
	"github.com/local/pisoprint/internal/paper"
	"github.com/local/pisoprint/internal/selection"
	"github.com/local/pisoprint/internal/statuscheck"
	"github.com/local/pisoprint/internal/store"
)

const (
	msgSelectPDF = "Please select a PDF file before uploading."
	uploadField  = "pdfFile"
)

type Dependencies struct {
	Pipeline  *Pipeline
	Cache     *cache.Manager
	Estimator *estimator.Estimator
	Ledger    *ledger.Service
	Sessions  store.Sessions
	Status    *statuscheck.Checker
	// MaxUploadBytes caps the multipart body; zero means 50 MiB.
	MaxUploadBytes int64
}

type Server struct {
	deps     Dependencies
	detector *filetype.Detector
}

func New(deps Dependencies) *Server {
	if deps.MaxUploadBytes <= 0 {
		deps.MaxUploadBytes = 50 << 20
	}
	return &Server{deps: deps, detector: filetype.New()}
}

func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("GET /status", s.handleStatus)
	mux.Handle("GET /metrics", metrics.Handler())

	mux.HandleFunc("POST /upload", s.handleUpload)
	mux.HandleFunc("POST /cost", s.handleCost)
	mux.HandleFunc("POST /selection", s.handleSelection)
	mux.HandleFunc("DELETE /delete-last/{baseName}", s.handleDeleteLast)
	mux.HandleFunc("POST /transaction/create", s.handleCreateOrder)
	mux.HandleFunc("POST /transaction/update", s.handleUpdateOrder)
	mux.HandleFunc("GET /cache/{paper}/{name}", s.handleCacheFile)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type failure struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func fail(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, failure{Success: false, Message: msg})
}

type uploadResp struct {
	Success      bool                    `json:"success"`
	BaseName     string                  `json:"baseName"`
	TotalPages   int                     `json:"totalPages"`
	OriginalSize paper.Size              `json:"originalSize"`
	Images       map[paper.Size][]string `json:"images"`
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if r.ContentLength > s.deps.MaxUploadBytes {
		metrics.IncUpload("rejected")
		fail(w, http.StatusRequestEntityTooLarge, "File is too large")
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, s.deps.MaxUploadBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			metrics.IncUpload("rejected")
			fail(w, http.StatusRequestEntityTooLarge, "File is too large")
			return
		}
		fail(w, http.StatusBadRequest, msgSelectPDF)
		return
	}
	file, hdr, err := r.FormFile(uploadField)
	if err != nil {
		fail(w, http.StatusBadRequest, msgSelectPDF)
		return
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		fail(w, http.StatusBadRequest, "failed to read upload")
		return
	}
	if err := s.detector.RequirePDF(data, hdr.Filename); err != nil {
		metrics.IncUpload("rejected")
		fail(w, http.StatusUnsupportedMediaType, filetype.ErrNotPDF.Error())
		return
	}

	res, err := s.deps.Pipeline.Process(r.Context(), data, r.FormValue("previousBaseName"))
	switch {
	case errors.Is(err, normalize.ErrMalformedDocument):
		fail(w, http.StatusUnprocessableEntity, "The PDF could not be read")
		return
	case err != nil:
		fail(w, http.StatusInternalServerError, "Failed to process the PDF")
		return
	}

	images := make(map[paper.Size][]string, len(res.Pages))
	for size, pages := range res.Pages {
		images[size] = pageURLs(size, pages)
	}
	writeJSON(w, http.StatusOK, uploadResp{
		Success:      true,
		BaseName:     res.BaseName,
		TotalPages:   res.TotalPages,
		OriginalSize: res.OriginalSize,
		Images:       images,
	})
}

func pageURLs(size paper.Size, pages []imagerender.Page) []string {
	out := make([]string, len(pages))
	for i, p := range pages {
		out[i] = "/cache/" + size.String() + "/" + p.Name
	}
	return out
}

type costReq struct {
	PaperSize string `json:"paperSize"`
	BaseName  string `json:"baseName"`
	Color     string `json:"color"`
	Copies    int    `json:"copies"`
	// Pages is a comma-separated list such as "1,2,3". When it is absent,
	// Mode/Expr are resolved against the session's page count instead.
	Pages *string `json:"pages"`
	Mode  string  `json:"mode"`
	Expr  string  `json:"expr"`
}

type costResp struct {
	Success      bool   `json:"success"`
	TotalCost    int64  `json:"totalCost"`
	UsedSections int    `json:"usedSections"`
	TotalPages   int    `json:"totalPages"`
	BaseRate     int64  `json:"baseRate"`
	Copies       int    `json:"copies"`
	MissingPages []int  `json:"missingPages"`
	Corrected    string `json:"corrected,omitempty"`
}

func (s *Server) handleCost(w http.ResponseWriter, r *http.Request) {
	var req costReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		fail(w, http.StatusBadRequest, "invalid json")
		return
	}
	size, err := paper.Parse(req.PaperSize)
	if err != nil {
		fail(w, http.StatusBadRequest, err.Error())
		return
	}
	color, err := estimator.ParseColor(req.Color)
	if err != nil {
		fail(w, http.StatusBadRequest, err.Error())
		return
	}

	var (
		pages     selection.PageSet
		corrected string
	)
	if req.Pages != nil {
		pages = selection.ParseList(*req.Pages)
	} else {
		res, err := s.resolveForSession(r.Context(), req.BaseName, req.Mode, req.Expr)
		if err != nil {
			writeSelectionError(w, err)
			return
		}
		pages, corrected = res.Pages, res.Corrected
	}

	out, err := s.deps.Estimator.Estimate(r.Context(), estimator.Request{
		Paper:    size,
		BaseName: req.BaseName,
		Color:    color,
		Pages:    pages,
		Copies:   req.Copies,
	})
	switch {
	case errors.Is(err, estimator.ErrInvalidRequest):
		fail(w, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, estimator.ErrNoCachedImages):
		fail(w, http.StatusNotFound, "No cached images found for the selected pages")
		return
	case err != nil:
		log.Error().Err(err).Str("base_name", req.BaseName).Msg("estimate failed")
		fail(w, http.StatusInternalServerError, "Failed to compute cost")
		return
	}
	writeJSON(w, http.StatusOK, costResp{
		Success:      true,
		TotalCost:    out.TotalCost,
		UsedSections: out.UsedSections,
		TotalPages:   out.TotalPages,
		BaseRate:     out.BaseRate,
		Copies:       out.Copies,
		MissingPages: out.MissingPages,
		Corrected:    corrected,
	})
}

func (s *Server) resolveForSession(ctx context.Context, baseName, mode, expr string) (selection.Result, error) {
	sess, err := s.deps.Sessions.Get(ctx, baseName)
	if err != nil {
		return selection.Result{}, err
	}
	m, err := selection.ParseMode(mode)
	if err != nil {
		return selection.Result{}, err
	}
	return selection.Resolve(selection.Query{Mode: m, Expr: expr}, sess.TotalPages)
}

func writeSelectionError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrSessionNotFound):
		fail(w, http.StatusNotFound, "Upload a PDF first.")
	case errors.Is(err, selection.ErrInvalidSelection):
		fail(w, http.StatusBadRequest, err.Error())
	default:
		log.Error().Err(err).Msg("selection lookup failed")
		fail(w, http.StatusInternalServerError, "Failed to resolve selection")
	}
}

type selectionReq struct {
	Mode       string `json:"mode"`
	Expr       string `json:"expr"`
	TotalPages int    `json:"totalPages"`
	BaseName   string `json:"baseName"`
}

type selectionResp struct {
	Success   bool              `json:"success"`
	Pages     selection.PageSet `json:"pages"`
	Corrected string            `json:"corrected"`
}

func (s *Server) handleSelection(w http.ResponseWriter, r *http.Request) {
	var req selectionReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		fail(w, http.StatusBadRequest, "invalid json")
		return
	}
	var (
		res selection.Result
		err error
	)
	if req.TotalPages == 0 && req.BaseName != "" {
		res, err = s.resolveForSession(r.Context(), req.BaseName, req.Mode, req.Expr)
	} else {
		var m selection.Mode
		if m, err = selection.ParseMode(req.Mode); err == nil {
			res, err = selection.Resolve(selection.Query{Mode: m, Expr: req.Expr}, req.TotalPages)
		}
	}
	if err != nil {
		writeSelectionError(w, err)
		return
	}
	if res.Pages == nil {
		res.Pages = selection.PageSet{}
	}
	writeJSON(w, http.StatusOK, selectionResp{Success: true, Pages: res.Pages, Corrected: res.Corrected})
}

func (s *Server) handleDeleteLast(w http.ResponseWriter, r *http.Request) {
	base := r.PathValue("baseName")
	if base == "" || base != filepath.Base(base) {
		fail(w, http.StatusBadRequest, "invalid base name")
		return
	}
	go s.deps.Pipeline.Reset(base)
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	var raw ledger.RawOrder
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		fail(w, http.StatusBadRequest, "invalid json")
		return
	}
	id, err := s.deps.Ledger.Create(r.Context(), raw)
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "id": id})
}

func (s *Server) handleUpdateOrder(w http.ResponseWriter, r *http.Request) {
	var raw ledger.RawUpdate
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		fail(w, http.StatusBadRequest, "invalid json")
		return
	}
	o, err := s.deps.Ledger.Update(r.Context(), raw)
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "order": o})
}

func writeLedgerError(w http.ResponseWriter, err error) {
	var ve *ledger.ValidationError
	switch {
	case errors.As(err, &ve):
		fail(w, http.StatusBadRequest, ve.Error())
	case errors.Is(err, ledger.ErrNotFound):
		fail(w, http.StatusNotFound, "Order not found")
	case errors.Is(err, ledger.ErrInvalidTransition), errors.Is(err, ledger.ErrConflict):
		fail(w, http.StatusConflict, err.Error())
	default:
		log.Error().Err(err).Msg("ledger operation failed")
		fail(w, http.StatusInternalServerError, "Transaction failed")
	}
}

// handleCacheFile serves one cached raster read-only.
func (s *Server) handleCacheFile(w http.ResponseWriter, r *http.Request) {
	size, err := paper.Parse(r.PathValue("paper"))
	name := r.PathValue("name")
	if err != nil || name == "" || name != filepath.Base(name) || filepath.Ext(name) != ".png" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Cache-Control", "no-cache")
	http.ServeFile(w, r, filepath.Join(s.deps.Cache.RasterDir(size), name))
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()
	sum := s.deps.Status.Summary(ctx)
	code := http.StatusOK
	if !sum.Ready() {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, sum)
}
