package handlers

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gorilla/mux"
)

func TestResolveTimeframe(t *testing.T) {
	cases := map[string]int{"7d": 7, "30d": 30, "90d": 90, "": 90, "1y": 90}
	for in, want := range cases {
		if got := resolveTimeframe(in); got != want {
			t.Errorf("resolveTimeframe(%q) = %d, want %d", in, got, want)
		}
	}
}

func TestDashboard_EmptyDatasetZeros(t *testing.T) {
	h, mock, done := newTestHandler(t)
	defer done()

	mock.ExpectQuery(`COALESCE\(SUM\(likes \+ comments \+ shares \+ saves\), 0\)`).
		WithArgs("u1", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"c", "i", "r", "e", "a"}).AddRow(0, 0, 0, 0, 0.0))
	mock.ExpectQuery(`GROUP BY platform\s+ORDER BY SUM\(impressions\) DESC`).
		WithArgs("u1", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"platform", "c", "i", "r", "e", "a"}))
	mock.ExpectQuery(`GROUP BY type`).
		WithArgs("u1", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"type", "c", "a", "i"}))
	mock.ExpectQuery(`ORDER BY c\.engagement_rate DESC\s+LIMIT 10`).
		WithArgs("u1", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id", "title", "platform", "type", "name", "i", "r", "l", "co", "sh", "sa", "cl", "er", "created_at"}))
	mock.ExpectQuery(`EXTRACT\(YEAR FROM created_at\)`).
		WithArgs("u1", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"y", "m", "d", "e", "i", "c"}))

	rr := httptest.NewRecorder()
	h.Dashboard(rr, authedRequest(http.MethodGet, "/api/analytics/dashboard", "u1", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d body=%q", rr.Code, rr.Body.String())
	}
	var out struct {
		Overview        dashboardOverview `json:"overview"`
		PlatformMetrics []platformMetric  `json:"platformMetrics"`
		TopContent      []topContentItem  `json:"topContent"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode json: %v", err)
	}
	if out.Overview.TotalContent != 0 || out.Overview.AvgEngagementRate != 0 {
		t.Fatalf("overview = %+v", out.Overview)
	}
	if out.PlatformMetrics == nil || out.TopContent == nil {
		t.Fatalf("empty sections must encode as [], body=%q", rr.Body.String())
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet sql expectations: %v", err)
	}
}

func TestDashboard_PlatformBreakdownOrderedByImpressions(t *testing.T) {
	h, mock, done := newTestHandler(t)
	defer done()

	mock.ExpectQuery(`COALESCE\(SUM\(likes \+ comments \+ shares \+ saves\), 0\)`).
		WithArgs("u1", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"c", "i", "r", "e", "a"}).AddRow(3, 800, 600, 60, 8.0))
	// The database sorts; the handler must hand the rows through untouched.
	mock.ExpectQuery(`GROUP BY platform\s+ORDER BY SUM\(impressions\) DESC`).
		WithArgs("u1", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"platform", "c", "i", "r", "e", "a"}).
			AddRow("tiktok", 1, 500, 400, 30, 9.0).
			AddRow("instagram", 1, 200, 150, 20, 8.0).
			AddRow("twitter", 1, 100, 50, 10, 7.0))
	mock.ExpectQuery(`GROUP BY type`).
		WithArgs("u1", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"type", "c", "a", "i"}))
	mock.ExpectQuery(`ORDER BY c\.engagement_rate DESC\s+LIMIT 10`).
		WithArgs("u1", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id", "title", "platform", "type", "name", "i", "r", "l", "co", "sh", "sa", "cl", "er", "created_at"}))
	mock.ExpectQuery(`EXTRACT\(YEAR FROM created_at\)`).
		WithArgs("u1", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"y", "m", "d", "e", "i", "c"}))

	rr := httptest.NewRecorder()
	h.Dashboard(rr, authedRequest(http.MethodGet, "/api/analytics/dashboard", "u1", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d body=%q", rr.Code, rr.Body.String())
	}
	var out struct {
		PlatformMetrics []platformMetric `json:"platformMetrics"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode json: %v", err)
	}
	wantImpressions := []int64{500, 200, 100}
	if len(out.PlatformMetrics) != 3 {
		t.Fatalf("platform metrics = %+v", out.PlatformMetrics)
	}
	for i, want := range wantImpressions {
		if out.PlatformMetrics[i].Impressions != want {
			t.Errorf("platformMetrics[%d].impressions = %d, want %d", i, out.PlatformMetrics[i].Impressions, want)
		}
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet sql expectations: %v", err)
	}
}

func TestPlatformAnalytics_ScopesToPlatform(t *testing.T) {
	h, mock, done := newTestHandler(t)
	defer done()

	mock.ExpectQuery(`COALESCE\(SUM\(saves\), 0\)`).
		WithArgs("u1", sqlmock.AnyArg(), "instagram").
		WillReturnRows(sqlmock.NewRows([]string{"c", "i", "r", "l", "co", "sh", "sa", "a"}).
			AddRow(3, 900, 700, 40, 12, 6, 4, 8.5))
	mock.ExpectQuery(`GROUP BY type`).
		WithArgs("u1", sqlmock.AnyArg(), "instagram").
		WillReturnRows(sqlmock.NewRows([]string{"type", "c", "a", "i"}).AddRow("reel", 2, 9.1, 600))
	mock.ExpectQuery(`ORDER BY c\.engagement_rate DESC\s+LIMIT 20`).
		WithArgs("u1", sqlmock.AnyArg(), "instagram").
		WillReturnRows(sqlmock.NewRows([]string{"id", "title", "platform", "type", "name", "i", "r", "l", "co", "sh", "sa", "cl", "er", "created_at"}))

	rr := httptest.NewRecorder()
	req := authedRequest(http.MethodGet, "/api/analytics/platforms/instagram", "u1", nil)
	req = mux.SetURLVars(req, map[string]string{"platform": "instagram"})
	h.PlatformAnalytics(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d body=%q", rr.Code, rr.Body.String())
	}
	var out struct {
		Platform  string         `json:"platform"`
		Analytics platformTotals `json:"analytics"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode json: %v", err)
	}
	if out.Platform != "instagram" || out.Analytics.TotalSaves != 4 {
		t.Fatalf("unexpected payload: %q", rr.Body.String())
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet sql expectations: %v", err)
	}
}

func TestAudienceInsights_KeepsNullPostingBucket(t *testing.T) {
	h, mock, done := newTestHandler(t)
	defer done()

	mock.ExpectQuery(`EXTRACT\(HOUR FROM published_at\)`).
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows([]string{"hour", "dow", "a", "c"}).
			AddRow(9, 0, 12.5, 5).
			AddRow(nil, nil, 0.0, 3))
	mock.ExpectQuery(`unnest\(hashtags\) AS t\(tag\)`).
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows([]string{"tag", "c", "a", "i"}).AddRow("#coffee", 4, 11.0, 800))
	// Bucket boundaries are inclusive-lower: a 50-char caption belongs to
	// '50', not '0'.
	mock.ExpectQuery(`WHEN char_length\(caption\) < 50 THEN '0'\s+WHEN char_length\(caption\) < 100 THEN '50'`).
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows([]string{"bucket", "c", "a"}).
			AddRow("0", 2, 9.5).
			AddRow("2000+", 1, 3.0))

	rr := httptest.NewRecorder()
	h.AudienceInsights(rr, authedRequest(http.MethodGet, "/api/analytics/audience", "u1", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d body=%q", rr.Code, rr.Body.String())
	}
	var out struct {
		PostingTimes []postingTimeSlot `json:"postingTimeAnalysis"`
		Hashtags     []hashtagMetric   `json:"hashtagPerformance"`
		Lengths      []lengthBucket    `json:"contentLengthAnalysis"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode json: %v", err)
	}
	if len(out.PostingTimes) != 2 {
		t.Fatalf("posting times = %+v", out.PostingTimes)
	}
	if out.PostingTimes[0].Hour == nil || *out.PostingTimes[0].Hour != 9 {
		t.Fatalf("first slot = %+v", out.PostingTimes[0])
	}
	// Postgres Sunday (DOW 0) is reported as day 1.
	if out.PostingTimes[0].DayOfWeek == nil || *out.PostingTimes[0].DayOfWeek != 1 {
		t.Fatalf("sunday slot = %+v", out.PostingTimes[0])
	}
	if out.PostingTimes[1].Hour != nil || out.PostingTimes[1].DayOfWeek != nil {
		t.Fatalf("unpublished bucket must keep null hour, got %+v", out.PostingTimes[1])
	}
	if len(out.Hashtags) != 1 || out.Hashtags[0].Hashtag != "#coffee" {
		t.Fatalf("hashtags = %+v", out.Hashtags)
	}
	if out.Lengths[0].Bucket != "0" || out.Lengths[1].Bucket != "2000+" {
		t.Fatalf("length buckets = %+v", out.Lengths)
	}
}

func TestCompetitorAnalysis_RequiresBrandID(t *testing.T) {
	h := New(nil, nil)

	rr := httptest.NewRecorder()
	h.CompetitorAnalysis(rr, authedRequest(http.MethodGet, "/api/analytics/competitors", "u1", nil))

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "Brand ID is required") {
		t.Fatalf("body = %q", rr.Body.String())
	}
}

func TestCompetitorAnalysis_NotOwnedIs404(t *testing.T) {
	h, mock, done := newTestHandler(t)
	defer done()

	mock.ExpectQuery(`SELECT .* FROM public\.brands WHERE id = \$1 AND user_id = \$2`).
		WithArgs("b1", "intruder").
		WillReturnRows(sqlmock.NewRows(brandRowColumns))

	rr := httptest.NewRecorder()
	h.CompetitorAnalysis(rr, authedRequest(http.MethodGet, "/api/analytics/competitors?brandId=b1", "intruder", nil))

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d body=%q", rr.Code, rr.Body.String())
	}
}

func TestCompetitorAnalysis_DeterministicEstimates(t *testing.T) {
	h, mock, done := newTestHandler(t)
	defer done()

	now := time.Now().UTC()
	competitors := `[{"name":"Acme Coffee","website":"https://acme.test","strengths":["video"],"weaknesses":["slow replies"]}]`
	rows := sqlmock.NewRows(brandRowColumns).
		AddRow("b1", "u1", "Roastery", "coffee", nil, nil,
			[]byte(`{}`), []byte(`{}`), []byte(`{}`),
			[]byte(`{}`), []byte(competitors), []byte(`{}`), true, now, now)
	mock.ExpectQuery(`SELECT .* FROM public\.brands WHERE id = \$1 AND user_id = \$2`).
		WithArgs("b1", "u1").
		WillReturnRows(rows)

	rr := httptest.NewRecorder()
	h.CompetitorAnalysis(rr, authedRequest(http.MethodGet, "/api/analytics/competitors?brandId=b1", "u1", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d body=%q", rr.Code, rr.Body.String())
	}
	var out struct {
		Competitors []competitorEstimate `json:"competitors"`
		Insights    []string             `json:"insights"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode json: %v", err)
	}
	if len(out.Competitors) != 1 {
		t.Fatalf("competitors = %+v", out.Competitors)
	}
	seed := nameSeed("Acme Coffee")
	got := out.Competitors[0]
	if got.EstimatedFollowers != 10000+int(seed%100000) {
		t.Errorf("followers = %d", got.EstimatedFollowers)
	}
	if want := fmt.Sprintf("%.2f", 1+float64(seed%500)/100); got.EstimatedEngagementRate != want {
		t.Errorf("rate = %q, want %q", got.EstimatedEngagementRate, want)
	}
	if got.ContentFrequency != 1+int(seed%10) {
		t.Errorf("frequency = %d", got.ContentFrequency)
	}
	if len(got.TopContentTypes) != 1+int(seed%3) {
		t.Errorf("topContentTypes = %v", got.TopContentTypes)
	}
	if len(out.Insights) != 4 {
		t.Errorf("insights = %v", out.Insights)
	}
}

func TestExportAnalytics_CSV(t *testing.T) {
	h, mock, done := newTestHandler(t)
	defer done()

	rows := sqlmock.NewRows(contentRowColumns)
	addContentRow(rows, "c1", "u1", "b1", "published")
	mock.ExpectQuery(`FROM public\.content c JOIN public\.brands b ON b\.id = c\.brand_id WHERE .* ORDER BY c\.created_at DESC`).
		WithArgs("u1", sqlmock.AnyArg()).
		WillReturnRows(rows)

	rr := httptest.NewRecorder()
	h.ExportAnalytics(rr, authedRequest(http.MethodGet, "/api/analytics/export?format=csv", "u1", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d body=%q", rr.Code, rr.Body.String())
	}
	if ct := rr.Header().Get("Content-Type"); ct != "text/csv" {
		t.Fatalf("content type = %q", ct)
	}
	if cd := rr.Header().Get("Content-Disposition"); !strings.Contains(cd, "analytics-export.csv") {
		t.Fatalf("disposition = %q", cd)
	}
	lines := strings.Split(strings.TrimSpace(rr.Body.String()), "\n")
	if lines[0] != "Title,Platform,Type,Caption,Impressions,Reach,Likes,Comments,Shares,Engagement Rate,Created At" {
		t.Fatalf("header = %q", lines[0])
	}
	if len(lines) != 2 || !strings.HasPrefix(lines[1], "Launch post,instagram,post,Fresh roast is here,200,150,10,5,3,10,") {
		t.Fatalf("data line = %q", lines[1])
	}
}

func TestExportAnalytics_CSVDoublesEmbeddedQuotes(t *testing.T) {
	h, mock, done := newTestHandler(t)
	defer done()

	now := time.Now().UTC()
	caption := `He said "hi"`
	rows := sqlmock.NewRows(contentRowColumns).
		AddRow("c1", "u1", "b1", "Quote post", "post", "instagram",
			caption, []byte(`{}`), []byte(`{}`), nil,
			[]byte(`{}`), "published", nil, nil, "UTC",
			200, 150, 10, 5, 3, 2, 7, 10.0, nil,
			[]byte(`{"isAiGenerated":false}`), []byte(`{}`), nil, false, now, now,
			"Roastery", "coffee")
	mock.ExpectQuery(`FROM public\.content c JOIN public\.brands b ON b\.id = c\.brand_id`).
		WithArgs("u1", sqlmock.AnyArg()).
		WillReturnRows(rows)

	rr := httptest.NewRecorder()
	h.ExportAnalytics(rr, authedRequest(http.MethodGet, "/api/analytics/export?format=csv", "u1", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d body=%q", rr.Code, rr.Body.String())
	}
	if !strings.Contains(rr.Body.String(), `"He said ""hi"""`) {
		t.Fatalf("embedded quotes not doubled: %q", rr.Body.String())
	}
	records, err := csv.NewReader(strings.NewReader(rr.Body.String())).ReadAll()
	if err != nil {
		t.Fatalf("export does not re-parse as CSV: %v", err)
	}
	if len(records) != 2 || records[1][3] != caption {
		t.Fatalf("caption did not round-trip: %q", records[1])
	}
}

func TestExportAnalytics_JSONEnvelope(t *testing.T) {
	h, mock, done := newTestHandler(t)
	defer done()

	rows := sqlmock.NewRows(contentRowColumns)
	addContentRow(rows, "c1", "u1", "b1", "published")
	mock.ExpectQuery(`FROM public\.content c JOIN public\.brands b ON b\.id = c\.brand_id WHERE .* ORDER BY c\.created_at DESC`).
		WithArgs("u1", sqlmock.AnyArg()).
		WillReturnRows(rows)

	rr := httptest.NewRecorder()
	h.ExportAnalytics(rr, authedRequest(http.MethodGet, "/api/analytics/export?timeframe=7d", "u1", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d body=%q", rr.Code, rr.Body.String())
	}
	var out struct {
		Timeframe    string            `json:"timeframe"`
		TotalRecords int               `json:"totalRecords"`
		Data         []json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode json: %v", err)
	}
	if out.Timeframe != "7d" || out.TotalRecords != 1 || len(out.Data) != 1 {
		t.Fatalf("envelope = %+v", out)
	}
}
