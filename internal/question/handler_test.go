package question

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"cbtimport/internal/auth"
	"cbtimport/internal/spreadsheet"
	"cbtimport/internal/wordimport"

	"github.com/go-chi/chi/v5"
)

const fallbackDocument = "1. Capital of France? A. Paris B. Lyon C. Nice D. Dijon Kunci Jawaban: A"

type mockImportService struct {
	importFn    func(ctx context.Context, in ImportInput) (*ImportReport, error)
	listBatchFn func(ctx context.Context, batchID string) ([]BatchQuestion, error)
}

func (m *mockImportService) ImportQuestions(ctx context.Context, in ImportInput) (*ImportReport, error) {
	if m.importFn == nil {
		return nil, errors.New("not implemented")
	}
	return m.importFn(ctx, in)
}

func (m *mockImportService) ListBatch(ctx context.Context, batchID string) ([]BatchQuestion, error) {
	if m.listBatchFn == nil {
		return nil, errors.New("not implemented")
	}
	return m.listBatchFn(ctx, batchID)
}

type memoryPreviews struct {
	items map[string][]byte
	sets  int
}

func (m *memoryPreviews) Get(_ context.Context, key string) ([]byte, bool, error) {
	v, ok := m.items[key]
	return v, ok, nil
}

func (m *memoryPreviews) Set(_ context.Context, key string, payload []byte) error {
	if m.items == nil {
		m.items = map[string][]byte{}
	}
	m.items[key] = payload
	m.sets++
	return nil
}

type countingObserver struct {
	runs  int
	stats []wordimport.Stats
}

func (c *countingObserver) ObserveExtraction(s wordimport.Stats) {
	c.runs++
	c.stats = append(c.stats, s)
}

func testHandler(svc questionService, cfg HandlerConfig) *Handler {
	if cfg.Engine == nil {
		cfg.Engine = wordimport.NewEngine(wordimport.DefaultRules(), log.New(io.Discard, "", 0))
	}
	return newHandler(svc, cfg)
}

func multipartRequest(t *testing.T, target, filename string, content []byte, fields map[string]string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatalf("write field: %v", err)
		}
	}
	if filename != "" {
		fw, err := mw.CreateFormFile("file", filename)
		if err != nil {
			t.Fatalf("create form file: %v", err)
		}
		if _, err := fw.Write(content); err != nil {
			t.Fatalf("write file: %v", err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, target, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func decodeMap(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return out
}

func errorMessage(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	body := decodeMap(t, w)
	e, _ := body["error"].(map[string]any)
	msg, _ := e["message"].(string)
	return msg
}

func TestPreviewRawBody(t *testing.T) {
	obs := &countingObserver{}
	previews := &memoryPreviews{}
	h := testHandler(&mockImportService{}, HandlerConfig{Observer: obs, Previews: previews})

	for i, want := range []string{"miss", "hit"} {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/imports/preview", strings.NewReader(fallbackDocument))
		req.Header.Set("Content-Type", "text/html")
		w := httptest.NewRecorder()

		h.Preview(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d: %s", i, w.Code, w.Body.String())
		}
		if got := w.Header().Get("X-Preview-Cache"); got != want {
			t.Fatalf("request %d: expected cache %s, got %s", i, want, got)
		}

		var resp struct {
			OK   bool `json:"ok"`
			Data struct {
				Stats     wordimport.Stats            `json:"stats"`
				Summary   wordimport.Summary          `json:"summary"`
				Questions []wordimport.QuestionRecord `json:"questions"`
			} `json:"data"`
		}
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if !resp.OK || resp.Data.Stats.Strategy != wordimport.StrategyFallback {
			t.Fatalf("unexpected response %+v", resp)
		}
		if len(resp.Data.Questions) != 1 || resp.Data.Summary.MultipleChoice != 1 {
			t.Fatalf("unexpected questions %+v", resp.Data)
		}
		if resp.Data.Questions[0].CorrectLetter() != "A" {
			t.Fatalf("expected key A, got %+v", resp.Data.Questions[0])
		}
	}

	// the second request is served from cache but still counted
	if obs.runs != 2 {
		t.Fatalf("expected both previews observed, got %d", obs.runs)
	}
	if obs.stats[1].Strategy != wordimport.StrategyFallback || obs.stats[1].Accepted != obs.stats[0].Accepted {
		t.Fatalf("cached stats differ: %+v vs %+v", obs.stats[1], obs.stats[0])
	}
	if previews.sets != 1 {
		t.Fatalf("expected one extraction and cache write, got %d", previews.sets)
	}
}

func TestPreviewSpreadsheetUpload(t *testing.T) {
	raw, err := spreadsheet.Template()
	if err != nil {
		t.Fatalf("Template: %v", err)
	}
	h := testHandler(&mockImportService{}, HandlerConfig{})
	req := multipartRequest(t, "/api/v1/imports/preview", "bank.xlsx", raw, nil)
	w := httptest.NewRecorder()

	h.Preview(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	body := decodeMap(t, w)
	data, _ := body["data"].(map[string]any)
	sheet, _ := data["sheet"].(map[string]any)
	if sheet["success_rows"] != float64(2) {
		t.Fatalf("expected spreadsheet report, got %v", data["sheet"])
	}
	questions, _ := data["questions"].([]any)
	if len(questions) != 2 {
		t.Fatalf("expected 2 questions, got %d", len(questions))
	}
}

func TestPreviewRejectsBadUploads(t *testing.T) {
	tests := []struct {
		name     string
		req      func(t *testing.T) *http.Request
		maxBytes int64
		wantCode int
	}{
		{
			name: "unsupported extension",
			req: func(t *testing.T) *http.Request {
				return multipartRequest(t, "/api/v1/imports/preview", "soal.docx", []byte("PK"), nil)
			},
			wantCode: http.StatusUnsupportedMediaType,
		},
		{
			name: "missing file field",
			req: func(t *testing.T) *http.Request {
				return multipartRequest(t, "/api/v1/imports/preview", "", nil, map[string]string{"note": "x"})
			},
			wantCode: http.StatusBadRequest,
		},
		{
			name: "empty body",
			req: func(t *testing.T) *http.Request {
				return httptest.NewRequest(http.MethodPost, "/api/v1/imports/preview", strings.NewReader("  "))
			},
			wantCode: http.StatusBadRequest,
		},
		{
			name: "broken workbook",
			req: func(t *testing.T) *http.Request {
				return multipartRequest(t, "/api/v1/imports/preview", "bank.xlsx", []byte("not a workbook"), nil)
			},
			wantCode: http.StatusBadRequest,
		},
		{
			name: "too large",
			req: func(t *testing.T) *http.Request {
				return httptest.NewRequest(http.MethodPost, "/api/v1/imports/preview", strings.NewReader(strings.Repeat("x", 64)))
			},
			maxBytes: 16,
			wantCode: http.StatusRequestEntityTooLarge,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			h := testHandler(&mockImportService{}, HandlerConfig{MaxUploadBytes: tc.maxBytes})
			w := httptest.NewRecorder()
			h.Preview(w, tc.req(t))
			if w.Code != tc.wantCode {
				t.Fatalf("expected %d, got %d: %s", tc.wantCode, w.Code, w.Body.String())
			}
		})
	}
}

func TestImportOK(t *testing.T) {
	h := testHandler(&mockImportService{
		importFn: func(ctx context.Context, in ImportInput) (*ImportReport, error) {
			if in.SubjectID != 7 || in.Actor != "tata usaha" {
				t.Fatalf("unexpected input: %+v", in)
			}
			if in.Source != "ujian.html (tata usaha)" {
				t.Fatalf("unexpected source %q", in.Source)
			}
			if len(in.Records) != 1 || in.Records[0].CorrectLetter() != "A" {
				t.Fatalf("unexpected records %+v", in.Records)
			}
			return &ImportReport{BatchID: "b1", SubjectID: in.SubjectID, Total: 1, Imported: 1}, nil
		},
	}, HandlerConfig{})

	req := multipartRequest(t, "/api/v1/imports", "ujian.html", []byte(fallbackDocument), map[string]string{
		"subject_id": "7",
		"created_by": "3",
	})
	req = req.WithContext(auth.ContextWithClient(req.Context(), &auth.Client{Name: "tata usaha"}))
	w := httptest.NewRecorder()

	h.Import(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	body := decodeMap(t, w)
	data, _ := body["data"].(map[string]any)
	report, _ := data["report"].(map[string]any)
	if report["batch_id"] != "b1" {
		t.Fatalf("unexpected report %v", data["report"])
	}
}

func TestImportErrors(t *testing.T) {
	tests := []struct {
		name     string
		doc      string
		fields   map[string]string
		svcErr   error
		wantCode int
		wantMsg  string
	}{
		{name: "missing subject", doc: fallbackDocument, wantCode: http.StatusBadRequest, wantMsg: "subject_id is required"},
		{name: "no questions", doc: "<p>Tidak ada soal di sini</p>", fields: map[string]string{"subject_id": "1"}, wantCode: http.StatusUnprocessableEntity},
		{name: "subject not found", doc: fallbackDocument, fields: map[string]string{"subject_id": "99"}, svcErr: ErrSubjectNotFound, wantCode: http.StatusNotFound},
		{name: "invalid record", doc: fallbackDocument, fields: map[string]string{"subject_id": "1"}, svcErr: ErrInvalidInput, wantCode: http.StatusBadRequest},
		{name: "store failure", doc: fallbackDocument, fields: map[string]string{"subject_id": "1"}, svcErr: errors.New("db down"), wantCode: http.StatusInternalServerError, wantMsg: "internal error"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			h := testHandler(&mockImportService{
				importFn: func(ctx context.Context, in ImportInput) (*ImportReport, error) {
					return nil, tc.svcErr
				},
			}, HandlerConfig{})
			req := multipartRequest(t, "/api/v1/imports", "ujian.html", []byte(tc.doc), tc.fields)
			w := httptest.NewRecorder()

			h.Import(w, req)

			if w.Code != tc.wantCode {
				t.Fatalf("expected %d, got %d: %s", tc.wantCode, w.Code, w.Body.String())
			}
			if tc.wantMsg != "" {
				if got := errorMessage(t, w); got != tc.wantMsg {
					t.Fatalf("expected message %q, got %q", tc.wantMsg, got)
				}
			}
		})
	}
}

func TestImportRequiresMultipart(t *testing.T) {
	h := testHandler(&mockImportService{}, HandlerConfig{})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/imports", strings.NewReader(fallbackDocument))
	req.Header.Set("Content-Type", "text/html")
	w := httptest.NewRecorder()

	h.Import(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func withBatchID(req *http.Request, id string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("batchID", id)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

func TestGetBatch(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
	}{
		{name: "ok", wantCode: http.StatusOK},
		{name: "not found", err: ErrBatchNotFound, wantCode: http.StatusNotFound},
		{name: "bad id", err: ErrInvalidInput, wantCode: http.StatusBadRequest},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			h := testHandler(&mockImportService{
				listBatchFn: func(ctx context.Context, batchID string) ([]BatchQuestion, error) {
					if batchID != "0190b8a4-1c2d-7e3f-8a9b-0c1d2e3f4a5b" {
						t.Fatalf("unexpected batch id %q", batchID)
					}
					if tc.err != nil {
						return nil, tc.err
					}
					return []BatchQuestion{{ID: 1, QuestionType: TypeMultipleChoice, Status: "draft"}}, nil
				},
			}, HandlerConfig{})
			req := httptest.NewRequest(http.MethodGet, "/api/v1/imports/0190b8a4-1c2d-7e3f-8a9b-0c1d2e3f4a5b", nil)
			req = withBatchID(req, "0190b8a4-1c2d-7e3f-8a9b-0c1d2e3f4a5b")
			w := httptest.NewRecorder()

			h.GetBatch(w, req)

			if w.Code != tc.wantCode {
				t.Fatalf("expected %d, got %d", tc.wantCode, w.Code)
			}
		})
	}
}

func TestTemplateDownload(t *testing.T) {
	h := testHandler(&mockImportService{}, HandlerConfig{})
	w := httptest.NewRecorder()

	h.Template(w, httptest.NewRequest(http.MethodGet, "/api/v1/imports/template", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Header().Get("Content-Disposition"), "template_soal.xlsx") {
		t.Fatalf("unexpected disposition %q", w.Header().Get("Content-Disposition"))
	}
	if _, report, err := spreadsheet.FromExcel(bytes.NewReader(w.Body.Bytes())); err != nil || report.SuccessRows != 2 {
		t.Fatalf("template not readable: report=%+v err=%v", report, err)
	}
}
