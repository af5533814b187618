package question

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"mime"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"cbtimport/internal/app/apiresp"
	"cbtimport/internal/auth"
	"cbtimport/internal/cache"
	"cbtimport/internal/spreadsheet"
	"cbtimport/internal/wordimport"

	"github.com/go-chi/chi/v5"
)

const defaultMaxUploadBytes = 20 << 20

var (
	errUnsupportedFile = errors.New("unsupported file type, use .html, .htm or .xlsx")
	errMissingFile     = errors.New("file is required")
)

type questionService interface {
	ImportQuestions(ctx context.Context, in ImportInput) (*ImportReport, error)
	ListBatch(ctx context.Context, batchID string) ([]BatchQuestion, error)
}

// ExtractionObserver receives the diagnostics of every extraction run.
type ExtractionObserver interface {
	ObserveExtraction(stats wordimport.Stats)
}

type HandlerConfig struct {
	Engine         *wordimport.Engine
	Previews       cache.PreviewStore
	Observer       ExtractionObserver
	MaxUploadBytes int64
}

type Handler struct {
	svc       questionService
	engine    *wordimport.Engine
	previews  cache.PreviewStore
	observer  ExtractionObserver
	maxUpload int64
}

type apiResponse struct {
	OK    bool        `json:"ok"`
	Data  interface{} `json:"data,omitempty"`
	Error string      `json:"error,omitempty"`
}

type previewResponse struct {
	Stats     wordimport.Stats            `json:"stats"`
	Summary   wordimport.Summary          `json:"summary"`
	Questions []wordimport.QuestionRecord `json:"questions"`
	Sheet     *spreadsheet.Report         `json:"sheet,omitempty"`
}

type importResponse struct {
	Report *ImportReport       `json:"report"`
	Stats  wordimport.Stats    `json:"stats"`
	Sheet  *spreadsheet.Report `json:"sheet,omitempty"`
}

// document is an uploaded file reduced to the HTML the engine reads.
type document struct {
	kind   string
	name   string
	raw    []byte
	html   string
	report *spreadsheet.Report
}

type noopObserver struct{}

func (noopObserver) ObserveExtraction(wordimport.Stats) {}

func NewHandler(svc *Service, cfg HandlerConfig) *Handler {
	return newHandler(svc, cfg)
}

func newHandler(svc questionService, cfg HandlerConfig) *Handler {
	if cfg.Engine == nil {
		cfg.Engine = wordimport.NewEngine(wordimport.DefaultRules(), nil)
	}
	if cfg.Previews == nil {
		cfg.Previews = cache.NoopPreviewCache{}
	}
	if cfg.Observer == nil {
		cfg.Observer = noopObserver{}
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = defaultMaxUploadBytes
	}
	return &Handler{
		svc:       svc,
		engine:    cfg.Engine,
		previews:  cfg.Previews,
		observer:  cfg.Observer,
		maxUpload: cfg.MaxUploadBytes,
	}
}

func (h *Handler) Preview(w http.ResponseWriter, r *http.Request) {
	doc, err := h.readDocument(w, r, true)
	if err != nil {
		h.writeReadError(w, r, err)
		return
	}

	key := cache.PreviewKey(doc.kind, doc.raw)
	if cached, ok, err := h.previews.Get(r.Context(), key); err != nil {
		log.Printf("preview cache get: %v", err)
	} else if ok {
		var hit struct {
			Stats wordimport.Stats `json:"stats"`
		}
		if err := json.Unmarshal(cached, &hit); err == nil {
			h.observer.ObserveExtraction(hit.Stats)
		}
		w.Header().Set("X-Preview-Cache", "hit")
		writeJSON(w, r, http.StatusOK, apiResponse{OK: true, Data: json.RawMessage(cached)})
		return
	}

	res := h.extract(doc.html)
	payload := previewResponse{
		Stats:     res.Stats,
		Summary:   res.Summary(),
		Questions: res.Preview(h.engine.Rules().ImagePreviewLength).Questions,
		Sheet:     doc.report,
	}
	if raw, err := json.Marshal(payload); err == nil {
		if err := h.previews.Set(r.Context(), key, raw); err != nil {
			log.Printf("preview cache set: %v", err)
		}
	}

	w.Header().Set("X-Preview-Cache", "miss")
	writeJSON(w, r, http.StatusOK, apiResponse{OK: true, Data: payload})
}

func (h *Handler) Import(w http.ResponseWriter, r *http.Request) {
	doc, err := h.readDocument(w, r, false)
	if err != nil {
		h.writeReadError(w, r, err)
		return
	}

	subjectID, err := strconv.ParseInt(strings.TrimSpace(r.FormValue("subject_id")), 10, 64)
	if err != nil || subjectID <= 0 {
		writeJSON(w, r, http.StatusBadRequest, apiResponse{OK: false, Error: "subject_id is required"})
		return
	}

	res := h.extract(doc.html)
	if len(res.Questions) == 0 {
		writeJSON(w, r, http.StatusUnprocessableEntity, apiResponse{OK: false, Error: "no questions found in document"})
		return
	}

	source, actor := doc.name, ""
	if c, ok := auth.CurrentClient(r.Context()); ok && c.Name != "" {
		actor = c.Name
		source = fmt.Sprintf("%s (%s)", doc.name, c.Name)
	}
	report, err := h.svc.ImportQuestions(r.Context(), ImportInput{
		SubjectID: subjectID,
		Actor:     actor,
		Source:    source,
		Records:   res.Questions,
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidInput):
			writeJSON(w, r, http.StatusBadRequest, apiResponse{OK: false, Error: err.Error()})
		case errors.Is(err, ErrSubjectNotFound):
			writeJSON(w, r, http.StatusNotFound, apiResponse{OK: false, Error: err.Error()})
		default:
			log.Printf("import questions: %v", err)
			writeJSON(w, r, http.StatusInternalServerError, apiResponse{OK: false, Error: "internal error"})
		}
		return
	}

	writeJSON(w, r, http.StatusCreated, apiResponse{OK: true, Data: importResponse{Report: report, Stats: res.Stats, Sheet: doc.report}})
}

func (h *Handler) GetBatch(w http.ResponseWriter, r *http.Request) {
	items, err := h.svc.ListBatch(r.Context(), chi.URLParam(r, "batchID"))
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidInput):
			writeJSON(w, r, http.StatusBadRequest, apiResponse{OK: false, Error: err.Error()})
		case errors.Is(err, ErrBatchNotFound):
			writeJSON(w, r, http.StatusNotFound, apiResponse{OK: false, Error: err.Error()})
		default:
			writeJSON(w, r, http.StatusInternalServerError, apiResponse{OK: false, Error: "internal error"})
		}
		return
	}
	writeJSON(w, r, http.StatusOK, apiResponse{OK: true, Data: items})
}

// Template serves the spreadsheet layout accepted by Preview and Import.
func (h *Handler) Template(w http.ResponseWriter, r *http.Request) {
	raw, err := spreadsheet.Template()
	if err != nil {
		writeJSON(w, r, http.StatusInternalServerError, apiResponse{OK: false, Error: "internal error"})
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="template_soal.xlsx"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(raw)
}

func (h *Handler) extract(doc string) wordimport.Result {
	res := h.engine.Extract(doc)
	h.observer.ObserveExtraction(res.Stats)
	return res
}

// readDocument accepts a multipart "file" field, or for previews a raw HTML
// body.
func (h *Handler) readDocument(w http.ResponseWriter, r *http.Request, allowRawBody bool) (*document, error) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		if !allowRawBody {
			return nil, errMissingFile
		}
		raw, err := io.ReadAll(r.Body)
		if err != nil {
			return nil, err
		}
		if len(bytes.TrimSpace(raw)) == 0 {
			return nil, fmt.Errorf("%w: empty document", ErrInvalidInput)
		}
		return &document{kind: "html", name: "body.html", raw: raw, html: string(raw)}, nil
	}

	if err := r.ParseMultipartForm(h.maxUpload); err != nil {
		return nil, err
	}
	f, fh, err := r.FormFile("file")
	if err != nil {
		return nil, errMissingFile
	}
	defer f.Close()

	raw, err := io.ReadAll(f)
	if err != nil {
		return nil, err
	}
	doc := &document{name: filepath.Base(fh.Filename), raw: raw}
	switch strings.ToLower(filepath.Ext(fh.Filename)) {
	case ".html", ".htm":
		doc.kind = "html"
		doc.html = string(raw)
	case ".xlsx":
		doc.kind = "xlsx"
		html, report, err := spreadsheet.FromExcel(bytes.NewReader(raw))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		doc.html = html
		doc.report = report
	default:
		return nil, errUnsupportedFile
	}
	return doc, nil
}

func (h *Handler) writeReadError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case isTooLarge(err):
		writeJSON(w, r, http.StatusRequestEntityTooLarge, apiResponse{OK: false, Error: fmt.Sprintf("document exceeds %d bytes", h.maxUpload)})
	case errors.Is(err, errUnsupportedFile):
		writeJSON(w, r, http.StatusUnsupportedMediaType, apiResponse{OK: false, Error: err.Error()})
	case errors.Is(err, errMissingFile), errors.Is(err, ErrInvalidInput):
		writeJSON(w, r, http.StatusBadRequest, apiResponse{OK: false, Error: err.Error()})
	default:
		writeJSON(w, r, http.StatusBadRequest, apiResponse{OK: false, Error: "invalid request body"})
	}
}

func isTooLarge(err error) bool {
	var maxErr *http.MaxBytesError
	return errors.As(err, &maxErr)
}

func writeJSON(w http.ResponseWriter, r *http.Request, code int, payload apiResponse) {
	if payload.OK {
		apiresp.WriteOK(w, r, code, payload.Data)
		return
	}
	apiresp.WriteError(w, r, code, payload.Error)
}
