package handlers

import (
	"database/sql"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/PortNumber53/creator-ai/backend/internal/cache"
	"github.com/PortNumber53/creator-ai/backend/internal/middleware"
	"github.com/PortNumber53/creator-ai/backend/internal/models"
)

// resolveTimeframe maps the query value onto a day count. Anything that is
// not 7d or 30d falls through to 90 days.
func resolveTimeframe(tf string) int {
	switch tf {
	case "7d":
		return 7
	case "30d":
		return 30
	default:
		return 90
	}
}

// contentScope builds the shared WHERE clause for the analytics queries:
// owner always, optional brand, never archived, createdAt lower bound only.
func contentScope(userID, brandID string, days int) (string, []any) {
	where := []string{"user_id = $1", "is_archived = FALSE"}
	args := []any{userID}
	if brandID != "" {
		args = append(args, brandID)
		where = append(where, fmt.Sprintf("brand_id = $%d", len(args)))
	}
	if days > 0 {
		args = append(args, time.Now().Add(-time.Duration(days)*24*time.Hour))
		where = append(where, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	return strings.Join(where, " AND "), args
}

type dashboardOverview struct {
	TotalContent      int64   `json:"totalContent"`
	TotalImpressions  int64   `json:"totalImpressions"`
	TotalReach        int64   `json:"totalReach"`
	TotalEngagement   int64   `json:"totalEngagement"`
	AvgEngagementRate float64 `json:"avgEngagementRate"`
}

type platformMetric struct {
	Platform          string  `json:"platform"`
	ContentCount      int64   `json:"contentCount"`
	Impressions       int64   `json:"impressions"`
	Reach             int64   `json:"reach"`
	Engagement        int64   `json:"engagement"`
	AvgEngagementRate float64 `json:"avgEngagementRate"`
}

type contentTypeMetric struct {
	Type              string  `json:"type"`
	Count             int64   `json:"count"`
	AvgEngagementRate float64 `json:"avgEngagementRate"`
	TotalImpressions  int64   `json:"totalImpressions"`
}

type topContentItem struct {
	ID          string             `json:"id"`
	Title       string             `json:"title"`
	Platform    string             `json:"platform"`
	Type        string             `json:"type"`
	BrandName   string             `json:"brandName"`
	Performance models.Performance `json:"performance"`
	CreatedAt   time.Time          `json:"createdAt"`
}

type trendPoint struct {
	Year             int   `json:"year"`
	Month            int   `json:"month"`
	Day              int   `json:"day"`
	TotalEngagement  int64 `json:"totalEngagement"`
	TotalImpressions int64 `json:"totalImpressions"`
	ContentCount     int64 `json:"contentCount"`
}

// Dashboard aggregates the owner's content over the timeframe. The saves
// counter is part of the overview engagement sum but deliberately absent
// from the per-platform and trend sums.
func (h *Handler) Dashboard(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserID(r)
	brandID := r.URL.Query().Get("brandId")
	timeframe := r.URL.Query().Get("timeframe")
	if timeframe == "" {
		timeframe = "30d"
	}

	cacheKey := cache.Key(userID, brandID+":"+timeframe)
	if payload, ok := h.dash.Get(r.Context(), cacheKey); ok {
		w.Header().Set("Content-Type", "application/json")
		w.Write(payload)
		return
	}

	where, args := contentScope(userID, brandID, resolveTimeframe(timeframe))

	var overview dashboardOverview
	err := h.db.QueryRow(`
		SELECT COUNT(*),
			COALESCE(SUM(impressions), 0),
			COALESCE(SUM(reach), 0),
			COALESCE(SUM(likes + comments + shares + saves), 0),
			COALESCE(AVG(engagement_rate), 0)
		FROM public.content WHERE `+where, args...).
		Scan(&overview.TotalContent, &overview.TotalImpressions, &overview.TotalReach,
			&overview.TotalEngagement, &overview.AvgEngagementRate)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	platforms := []platformMetric{}
	rows, err := h.db.Query(`
		SELECT platform, COUNT(*),
			COALESCE(SUM(impressions), 0),
			COALESCE(SUM(reach), 0),
			COALESCE(SUM(likes + comments + shares), 0),
			COALESCE(AVG(engagement_rate), 0)
		FROM public.content WHERE `+where+`
		GROUP BY platform
		ORDER BY SUM(impressions) DESC`, args...)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	for rows.Next() {
		var m platformMetric
		if err := rows.Scan(&m.Platform, &m.ContentCount, &m.Impressions, &m.Reach, &m.Engagement, &m.AvgEngagementRate); err != nil {
			rows.Close()
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		platforms = append(platforms, m)
	}
	rows.Close()

	contentTypes := []contentTypeMetric{}
	rows, err = h.db.Query(`
		SELECT type, COUNT(*),
			COALESCE(AVG(engagement_rate), 0),
			COALESCE(SUM(impressions), 0)
		FROM public.content WHERE `+where+`
		GROUP BY type
		ORDER BY AVG(engagement_rate) DESC`, args...)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	for rows.Next() {
		var m contentTypeMetric
		if err := rows.Scan(&m.Type, &m.Count, &m.AvgEngagementRate, &m.TotalImpressions); err != nil {
			rows.Close()
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		contentTypes = append(contentTypes, m)
	}
	rows.Close()

	topContent, err := h.topContentItems(where, args, 10)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	trends := []trendPoint{}
	rows, err = h.db.Query(`
		SELECT EXTRACT(YEAR FROM created_at)::int,
			EXTRACT(MONTH FROM created_at)::int,
			EXTRACT(DAY FROM created_at)::int,
			COALESCE(SUM(likes + comments + shares), 0),
			COALESCE(SUM(impressions), 0),
			COUNT(*)
		FROM public.content WHERE `+where+`
		GROUP BY 1, 2, 3
		ORDER BY 1, 2, 3`, args...)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	for rows.Next() {
		var p trendPoint
		if err := rows.Scan(&p.Year, &p.Month, &p.Day, &p.TotalEngagement, &p.TotalImpressions, &p.ContentCount); err != nil {
			rows.Close()
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		trends = append(trends, p)
	}
	rows.Close()

	resp := map[string]any{
		"overview":           overview,
		"platformMetrics":    platforms,
		"contentTypeMetrics": contentTypes,
		"topContent":         topContent,
		"engagementTrends":   trends,
	}
	if payload, err := json.Marshal(resp); err == nil {
		h.dash.Set(r.Context(), cacheKey, payload)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) topContentItems(where string, args []any, limit int) ([]topContentItem, error) {
	rows, err := h.db.Query(`
		SELECT c.id, c.title, c.platform, c.type, b.name,
			c.impressions, c.reach, c.likes, c.comments, c.shares, c.saves, c.clicks,
			c.engagement_rate, c.created_at
		FROM public.content c
		JOIN public.brands b ON b.id = c.brand_id
		WHERE `+qualify(where)+`
		ORDER BY c.engagement_rate DESC
		LIMIT `+strconv.Itoa(limit), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := []topContentItem{}
	for rows.Next() {
		var it topContentItem
		if err := rows.Scan(&it.ID, &it.Title, &it.Platform, &it.Type, &it.BrandName,
			&it.Performance.Impressions, &it.Performance.Reach,
			&it.Performance.Engagement.Likes, &it.Performance.Engagement.Comments,
			&it.Performance.Engagement.Shares, &it.Performance.Engagement.Saves,
			&it.Performance.Engagement.Clicks, &it.Performance.EngagementRate,
			&it.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, nil
}

// qualify prefixes the bare content columns of a scope clause with the "c."
// alias used in joined queries.
func qualify(where string) string {
	for _, col := range []string{"user_id", "is_archived", "brand_id", "created_at", "platform"} {
		where = strings.ReplaceAll(where, col+" ", "c."+col+" ")
	}
	return where
}

type platformTotals struct {
	TotalContent      int64   `json:"totalContent"`
	TotalImpressions  int64   `json:"totalImpressions"`
	TotalReach        int64   `json:"totalReach"`
	TotalLikes        int64   `json:"totalLikes"`
	TotalComments     int64   `json:"totalComments"`
	TotalShares       int64   `json:"totalShares"`
	TotalSaves        int64   `json:"totalSaves"`
	AvgEngagementRate float64 `json:"avgEngagementRate"`
}

// PlatformAnalytics reports one platform's totals, its content type
// breakdown, and the best performing posts.
func (h *Handler) PlatformAnalytics(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserID(r)
	platform := pathVar(r, "platform")
	brandID := r.URL.Query().Get("brandId")
	timeframe := r.URL.Query().Get("timeframe")
	if timeframe == "" {
		timeframe = "30d"
	}

	where, args := contentScope(userID, brandID, resolveTimeframe(timeframe))
	args = append(args, platform)
	where += fmt.Sprintf(" AND platform = $%d", len(args))

	var totals platformTotals
	err := h.db.QueryRow(`
		SELECT COUNT(*),
			COALESCE(SUM(impressions), 0),
			COALESCE(SUM(reach), 0),
			COALESCE(SUM(likes), 0),
			COALESCE(SUM(comments), 0),
			COALESCE(SUM(shares), 0),
			COALESCE(SUM(saves), 0),
			COALESCE(AVG(engagement_rate), 0)
		FROM public.content WHERE `+where, args...).
		Scan(&totals.TotalContent, &totals.TotalImpressions, &totals.TotalReach,
			&totals.TotalLikes, &totals.TotalComments, &totals.TotalShares,
			&totals.TotalSaves, &totals.AvgEngagementRate)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	breakdown := []contentTypeMetric{}
	rows, err := h.db.Query(`
		SELECT type, COUNT(*),
			COALESCE(AVG(engagement_rate), 0),
			COALESCE(SUM(impressions), 0)
		FROM public.content WHERE `+where+`
		GROUP BY type`, args...)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	for rows.Next() {
		var m contentTypeMetric
		if err := rows.Scan(&m.Type, &m.Count, &m.AvgEngagementRate, &m.TotalImpressions); err != nil {
			rows.Close()
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		breakdown = append(breakdown, m)
	}
	rows.Close()

	topPosts, err := h.topContentItems(where, args, 20)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"platform":             platform,
		"analytics":            totals,
		"contentTypeBreakdown": breakdown,
		"topPosts":             topPosts,
	})
}

type postingTimeSlot struct {
	Hour              *int    `json:"hour"`
	DayOfWeek         *int    `json:"dayOfWeek"`
	AvgEngagementRate float64 `json:"avgEngagementRate"`
	TotalPosts        int64   `json:"totalPosts"`
}

type hashtagMetric struct {
	Hashtag           string  `json:"hashtag"`
	UsageCount        int64   `json:"usageCount"`
	AvgEngagementRate float64 `json:"avgEngagementRate"`
	TotalImpressions  int64   `json:"totalImpressions"`
}

type lengthBucket struct {
	Bucket            string  `json:"bucket"`
	Count             int64   `json:"count"`
	AvgEngagementRate float64 `json:"avgEngagementRate"`
}

// AudienceInsights has no timeframe: it looks at the owner's whole history.
// Unpublished items land in a NULL posting-time bucket and stay in the
// response.
func (h *Handler) AudienceInsights(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserID(r)
	q := r.URL.Query()

	where, args := contentScope(userID, q.Get("brandId"), 0)
	if p := q.Get("platform"); p != "" {
		args = append(args, p)
		where += fmt.Sprintf(" AND platform = $%d", len(args))
	}

	postingTimes := []postingTimeSlot{}
	rows, err := h.db.Query(`
		SELECT EXTRACT(HOUR FROM published_at)::int,
			EXTRACT(DOW FROM published_at)::int,
			COALESCE(AVG(engagement_rate), 0),
			COUNT(*)
		FROM public.content WHERE `+where+`
		GROUP BY 1, 2
		ORDER BY 3 DESC`, args...)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	for rows.Next() {
		var slot postingTimeSlot
		var hour, dow sql.NullInt64
		if err := rows.Scan(&hour, &dow, &slot.AvgEngagementRate, &slot.TotalPosts); err != nil {
			rows.Close()
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if hour.Valid {
			v := int(hour.Int64)
			slot.Hour = &v
		}
		if dow.Valid {
			// Postgres DOW is 0-6 with Sunday 0; the API reports 1-7 with
			// Sunday 1.
			v := int(dow.Int64) + 1
			slot.DayOfWeek = &v
		}
		postingTimes = append(postingTimes, slot)
	}
	rows.Close()

	hashtags := []hashtagMetric{}
	rows, err = h.db.Query(`
		SELECT t.tag, COUNT(*),
			COALESCE(AVG(engagement_rate), 0),
			COALESCE(SUM(impressions), 0)
		FROM public.content, unnest(hashtags) AS t(tag)
		WHERE `+where+`
		GROUP BY t.tag
		ORDER BY 3 DESC
		LIMIT 50`, args...)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	for rows.Next() {
		var m hashtagMetric
		if err := rows.Scan(&m.Hashtag, &m.UsageCount, &m.AvgEngagementRate, &m.TotalImpressions); err != nil {
			rows.Close()
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		hashtags = append(hashtags, m)
	}
	rows.Close()

	// Caption length buckets mirror [0,50,100,200,500,1000,2000) with a
	// trailing open bucket; char_length counts code points, not bytes.
	lengths := []lengthBucket{}
	rows, err = h.db.Query(`
		SELECT CASE
			WHEN char_length(caption) < 50 THEN '0'
			WHEN char_length(caption) < 100 THEN '50'
			WHEN char_length(caption) < 200 THEN '100'
			WHEN char_length(caption) < 500 THEN '200'
			WHEN char_length(caption) < 1000 THEN '500'
			WHEN char_length(caption) < 2000 THEN '1000'
			ELSE '2000+'
		END AS bucket,
			COUNT(*),
			COALESCE(AVG(engagement_rate), 0)
		FROM public.content WHERE `+where+`
		GROUP BY 1
		ORDER BY MIN(char_length(caption))`, args...)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	for rows.Next() {
		var b lengthBucket
		if err := rows.Scan(&b.Bucket, &b.Count, &b.AvgEngagementRate); err != nil {
			rows.Close()
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		lengths = append(lengths, b)
	}
	rows.Close()

	writeJSON(w, http.StatusOK, map[string]any{
		"postingTimeAnalysis":   postingTimes,
		"hashtagPerformance":    hashtags,
		"contentLengthAnalysis": lengths,
	})
}

type competitorEstimate struct {
	Name                    string                   `json:"name"`
	Website                 string                   `json:"website"`
	SocialHandles           models.CompetitorHandles `json:"socialHandles"`
	EstimatedFollowers      int                      `json:"estimatedFollowers"`
	EstimatedEngagementRate string                   `json:"estimatedEngagementRate"`
	ContentFrequency        int                      `json:"contentFrequency"`
	TopContentTypes         []string                 `json:"topContentTypes"`
	Strengths               []string                 `json:"strengths"`
	Weaknesses              []string                 `json:"weaknesses"`
}

// CompetitorAnalysis returns estimates derived from the brand's stored
// competitor list. The figures are deterministic per competitor name until a
// real social listening integration exists.
func (h *Handler) CompetitorAnalysis(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserID(r)
	brandID := r.URL.Query().Get("brandId")
	if brandID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "Brand ID is required"})
		return
	}

	b, err := h.getOwnedBrand(brandID, userID)
	if err == sql.ErrNoRows {
		writeError(w, http.StatusNotFound, "Brand not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	estimates := []competitorEstimate{}
	for _, c := range b.Competitors {
		seed := nameSeed(c.Name)
		allTypes := []string{"post", "story", "reel"}
		estimates = append(estimates, competitorEstimate{
			Name:                    c.Name,
			Website:                 c.Website,
			SocialHandles:           c.SocialHandles,
			EstimatedFollowers:      10000 + int(seed%100000),
			EstimatedEngagementRate: fmt.Sprintf("%.2f", 1+float64(seed%500)/100),
			ContentFrequency:        1 + int(seed%10),
			TopContentTypes:         allTypes[:1+seed%3],
			Strengths:               c.Strengths,
			Weaknesses:              c.Weaknesses,
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"competitors": estimates,
		"insights": []string{
			"Your engagement rate is 15% higher than the industry average",
			"Competitors are posting 2x more video content",
			"Your brand voice is more consistent than 80% of competitors",
			"Consider increasing posting frequency on weekends",
		},
	})
}

func nameSeed(name string) uint64 {
	f := fnv.New64a()
	f.Write([]byte(name))
	return f.Sum64()
}

var exportCSVHeader = []string{"Title", "Platform", "Type", "Caption", "Impressions", "Reach", "Likes", "Comments", "Shares", "Engagement Rate", "Created At"}

// ExportAnalytics streams the scoped content as JSON or CSV.
func (h *Handler) ExportAnalytics(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserID(r)
	q := r.URL.Query()
	format := q.Get("format")
	if format == "" {
		format = "json"
	}
	timeframe := q.Get("timeframe")
	if timeframe == "" {
		timeframe = "30d"
	}

	where, args := contentScope(userID, q.Get("brandId"), resolveTimeframe(timeframe))

	rows, err := h.db.Query(`SELECT `+contentJoinColumns+` FROM public.content c JOIN public.brands b ON b.id = c.brand_id WHERE `+qualify(where)+` ORDER BY c.created_at DESC`, args...)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	defer rows.Close()

	items := []models.Content{}
	for rows.Next() {
		ct, err := scanContent(rows, true)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		items = append(items, *ct)
	}

	if format == "csv" {
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", "attachment; filename=analytics-export.csv")
		cw := csv.NewWriter(w)
		_ = cw.Write(exportCSVHeader)
		for _, it := range items {
			_ = cw.Write([]string{
				it.Title,
				it.Platform,
				it.Type,
				it.Body.Caption,
				strconv.FormatInt(it.Performance.Impressions, 10),
				strconv.FormatInt(it.Performance.Reach, 10),
				strconv.FormatInt(it.Performance.Engagement.Likes, 10),
				strconv.FormatInt(it.Performance.Engagement.Comments, 10),
				strconv.FormatInt(it.Performance.Engagement.Shares, 10),
				strconv.FormatFloat(it.Performance.EngagementRate, 'f', -1, 64),
				it.CreatedAt.Format(time.RFC3339),
			})
		}
		cw.Flush()
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"exportDate":   time.Now().UTC(),
		"timeframe":    timeframe,
		"totalRecords": len(items),
		"data":         items,
	})
}
