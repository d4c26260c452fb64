package handlers

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/PortNumber53/creator-ai/backend/internal/aigen"
)

// fakeCompleter records calls and returns a canned completion or error.
type fakeCompleter struct {
	calls    int
	lastSys  string
	lastUser string
	out      string
	err      error
}

func (f *fakeCompleter) Complete(ctx context.Context, model, systemPrompt, userPrompt string, temperature float64, maxTokens int) (string, error) {
	f.calls++
	f.lastSys = systemPrompt
	f.lastUser = userPrompt
	return f.out, f.err
}

// expectUsageGate sets up the reset probe and the ceiling check for a user
// already inside the current month.
func expectUsageGate(mock sqlmock.Sqlmock, plan string, current int) {
	mock.ExpectQuery(`SELECT last_reset_date FROM public\.users WHERE id = \$1`).
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows([]string{"last_reset_date"}).AddRow(time.Now().UTC()))
	mock.ExpectQuery(`SELECT plan, ai_calls_this_month FROM public\.users WHERE id = \$1`).
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows([]string{"plan", "ai_calls_this_month"}).AddRow(plan, current))
}

func expectBrandLoad(mock sqlmock.Sqlmock) {
	rows := sqlmock.NewRows(brandRowColumns)
	addBrandRow(rows, "b1", "u1", "Roastery", `{}`)
	mock.ExpectQuery(`SELECT .* FROM public\.brands WHERE id = \$1 AND user_id = \$2`).
		WithArgs("b1", "u1").
		WillReturnRows(rows)
}

func TestGenerateCaption_RequiresTopic(t *testing.T) {
	h := New(nil, nil)

	rr := httptest.NewRecorder()
	req := authedRequest(http.MethodPost, "/api/ai/generate-caption", "u1", bytes.NewBufferString(`{"brandId":"b1","platform":"instagram"}`))

	h.GenerateCaption(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rr.Code)
	}
}

func TestGenerateCaption_LimitExceededIs429(t *testing.T) {
	h, mock, done := newTestHandler(t)
	defer done()
	fake := &fakeCompleter{out: "never called"}
	h.ai = fake

	expectUsageGate(mock, "free", 50)

	body := `{"brandId":"b1","platform":"instagram","contentType":"post","topic":"espresso"}`
	rr := httptest.NewRecorder()
	req := authedRequest(http.MethodPost, "/api/ai/generate-caption", "u1", bytes.NewBufferString(body))

	h.GenerateCaption(rr, req)

	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 got %d body=%q", rr.Code, rr.Body.String())
	}
	var out map[string]any
	_ = json.Unmarshal(rr.Body.Bytes(), &out)
	if out["currentUsage"] != float64(50) || out["limit"] != float64(50) {
		t.Fatalf("unexpected 429 body: %q", rr.Body.String())
	}
	if fake.calls != 0 {
		t.Fatalf("provider called despite exceeded limit")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet sql expectations: %v", err)
	}
}

func TestGenerateCaption_UnknownBrandNeverCallsProvider(t *testing.T) {
	h, mock, done := newTestHandler(t)
	defer done()
	fake := &fakeCompleter{out: "never called"}
	h.ai = fake

	expectUsageGate(mock, "free", 3)
	mock.ExpectQuery(`SELECT .* FROM public\.brands WHERE id = \$1 AND user_id = \$2`).
		WithArgs("ghost", "u1").
		WillReturnError(sql.ErrNoRows)

	body := `{"brandId":"ghost","platform":"instagram","contentType":"post","topic":"espresso"}`
	rr := httptest.NewRecorder()
	req := authedRequest(http.MethodPost, "/api/ai/generate-caption", "u1", bytes.NewBufferString(body))

	h.GenerateCaption(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d body=%q", rr.Code, rr.Body.String())
	}
	if fake.calls != 0 {
		t.Fatalf("provider called for unknown brand")
	}
}

func TestGenerateCaption_Success(t *testing.T) {
	h, mock, done := newTestHandler(t)
	defer done()
	fake := &fakeCompleter{out: "Great espresso, great day.\n#coffee #espresso\nCTA: Order now"}
	h.ai = fake

	expectUsageGate(mock, "free", 3)
	expectBrandLoad(mock)
	mock.ExpectQuery(`UPDATE public\.users\s+SET ai_calls_this_month = ai_calls_this_month \+ 1,\s+content_generated = content_generated \+ 1`).
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows([]string{"plan", "ai_calls_this_month"}).AddRow("free", 4))

	body := `{"brandId":"b1","platform":"instagram","contentType":"post","topic":"espresso","tone":"warm"}`
	rr := httptest.NewRecorder()
	req := authedRequest(http.MethodPost, "/api/ai/generate-caption", "u1", bytes.NewBufferString(body))

	h.GenerateCaption(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d body=%q", rr.Code, rr.Body.String())
	}
	var out struct {
		Success bool                `json:"success"`
		Content aigen.ParsedCaption `json:"content"`
		Usage   map[string]int      `json:"usage"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode json: %v", err)
	}
	if !out.Success || out.Content.Caption != "Great espresso, great day." {
		t.Fatalf("unexpected content: %+v", out.Content)
	}
	if len(out.Content.Hashtags) != 2 || out.Content.CTA != "Order now" {
		t.Fatalf("parse lost fields: %+v", out.Content)
	}
	if out.Usage["current"] != 4 || out.Usage["limit"] != 50 {
		t.Fatalf("usage = %+v", out.Usage)
	}
	if fake.calls != 1 {
		t.Fatalf("provider calls = %d", fake.calls)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet sql expectations: %v", err)
	}
}

func TestGenerateCaption_ProviderFailureDoesNotConsume(t *testing.T) {
	h, mock, done := newTestHandler(t)
	defer done()
	fake := &fakeCompleter{err: &aigen.GenerationError{StatusCode: 502, Message: "bad gateway", Upstream: json.RawMessage(`{"error":"overloaded"}`)}}
	h.ai = fake

	expectUsageGate(mock, "pro", 10)
	expectBrandLoad(mock)
	// No UPDATE expectation: quota must not be burned on failure.

	body := `{"brandId":"b1","platform":"instagram","contentType":"post","topic":"espresso"}`
	rr := httptest.NewRecorder()
	req := authedRequest(http.MethodPost, "/api/ai/generate-caption", "u1", bytes.NewBufferString(body))

	h.GenerateCaption(rr, req)

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 got %d body=%q", rr.Code, rr.Body.String())
	}
	var out map[string]any
	_ = json.Unmarshal(rr.Body.Bytes(), &out)
	if out["message"] != "Error generating content" {
		t.Fatalf("unexpected body: %q", rr.Body.String())
	}
	if _, ok := out["error"].(map[string]any); !ok {
		t.Fatalf("upstream payload not surfaced: %q", rr.Body.String())
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet sql expectations: %v", err)
	}
}

func TestGenerateImageConcept_Success(t *testing.T) {
	h, mock, done := newTestHandler(t)
	defer done()
	fake := &fakeCompleter{out: "Warm morning light over a pour-over setup"}
	h.ai = fake

	expectUsageGate(mock, "enterprise", 1234)
	expectBrandLoad(mock)
	mock.ExpectQuery(`UPDATE public\.users\s+SET ai_calls_this_month = ai_calls_this_month \+ 1\s+WHERE`).
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows([]string{"plan", "ai_calls_this_month"}).AddRow("enterprise", 1235))

	body := `{"brandId":"b1","topic":"pour-over","style":"minimal","mood":"calm","platform":"instagram"}`
	rr := httptest.NewRecorder()
	req := authedRequest(http.MethodPost, "/api/ai/generate-image-concept", "u1", bytes.NewBufferString(body))

	h.GenerateImageConcept(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d body=%q", rr.Code, rr.Body.String())
	}
	var out map[string]any
	_ = json.Unmarshal(rr.Body.Bytes(), &out)
	if out["concept"] != fake.out {
		t.Fatalf("concept = %#v", out["concept"])
	}
}

func TestAnalyzePerformance_RequiresContentData(t *testing.T) {
	h := New(nil, nil)

	rr := httptest.NewRecorder()
	req := authedRequest(http.MethodPost, "/api/ai/analyze-performance", "u1", bytes.NewBufferString(`{"timeframe":"30d"}`))

	h.AnalyzePerformance(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rr.Code)
	}
}

func TestAnalyzePerformance_NoBrandLookup(t *testing.T) {
	h, mock, done := newTestHandler(t)
	defer done()
	fake := &fakeCompleter{out: "Post more reels."}
	h.ai = fake

	expectUsageGate(mock, "free", 0)
	mock.ExpectQuery(`UPDATE public\.users\s+SET ai_calls_this_month = ai_calls_this_month \+ 1\s+WHERE`).
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows([]string{"plan", "ai_calls_this_month"}).AddRow("free", 1))

	body := `{"contentData":{"posts":12},"timeframe":"30d"}`
	rr := httptest.NewRecorder()
	req := authedRequest(http.MethodPost, "/api/ai/analyze-performance", "u1", bytes.NewBufferString(body))

	h.AnalyzePerformance(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d body=%q", rr.Code, rr.Body.String())
	}
	if fake.lastUser != `Analyze this content performance data: {"posts":12}` {
		t.Fatalf("user prompt = %q", fake.lastUser)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet sql expectations: %v", err)
	}
}

func TestUsageStats_Payload(t *testing.T) {
	h, mock, done := newTestHandler(t)
	defer done()

	last := time.Date(2026, time.August, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`SELECT plan, ai_calls_this_month, last_reset_date FROM public\.users WHERE id = \$1`).
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows([]string{"plan", "ai_calls_this_month", "last_reset_date"}).AddRow("free", 25, last))

	rr := httptest.NewRecorder()
	req := authedRequest(http.MethodGet, "/api/ai/usage", "u1", nil)

	h.UsageStats(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d body=%q", rr.Code, rr.Body.String())
	}
	var out map[string]any
	_ = json.Unmarshal(rr.Body.Bytes(), &out)
	if out["current"] != float64(25) || out["limit"] != float64(50) || out["percentage"] != float64(50) {
		t.Fatalf("stats = %q", rr.Body.String())
	}
	if out["resetDate"] != "2026-09-01T00:00:00Z" {
		t.Fatalf("resetDate = %#v", out["resetDate"])
	}
}
