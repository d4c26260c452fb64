package handlers

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/PortNumber53/creator-ai/backend/internal/middleware"
	"github.com/PortNumber53/creator-ai/backend/internal/models"
	"github.com/lib/pq"
)

const contentColumns = `c.id, c.user_id, c.brand_id, c.title, c.type, c.platform, c.caption, c.hashtags, c.mentions, c.cta, c.media, c.status, c.scheduled_for, c.published_at, c.timezone, c.impressions, c.reach, c.likes, c.comments, c.shares, c.saves, c.clicks, c.engagement_rate, c.perf_last_updated, c.ai_generated, c.tags, c.notes, c.is_archived, c.created_at, c.updated_at`

const contentJoinColumns = contentColumns + `, b.name, b.industry`

// scanContent reads one content row. withBrand expects the two joined brand
// display columns at the end.
func scanContent(row rowScanner, withBrand bool) (*models.Content, error) {
	var ct models.Content
	var cta, notes sql.NullString
	var scheduledFor, publishedAt, perfUpdated sql.NullTime
	var media, aiGenerated []byte
	var brandName, brandIndustry sql.NullString

	dest := []any{
		&ct.ID, &ct.UserID, &ct.BrandID, &ct.Title, &ct.Type, &ct.Platform,
		&ct.Body.Caption, pq.Array(&ct.Body.Hashtags), pq.Array(&ct.Body.Mentions), &cta,
		&media, &ct.Scheduling.Status, &scheduledFor, &publishedAt, &ct.Scheduling.Timezone,
		&ct.Performance.Impressions, &ct.Performance.Reach,
		&ct.Performance.Engagement.Likes, &ct.Performance.Engagement.Comments,
		&ct.Performance.Engagement.Shares, &ct.Performance.Engagement.Saves,
		&ct.Performance.Engagement.Clicks, &ct.Performance.EngagementRate, &perfUpdated,
		&aiGenerated, pq.Array(&ct.Tags), &notes, &ct.IsArchived, &ct.CreatedAt, &ct.UpdatedAt,
	}
	if withBrand {
		dest = append(dest, &brandName, &brandIndustry)
	}
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}

	ct.Body.CTA = cta.String
	ct.Media = json.RawMessage(media)
	if scheduledFor.Valid {
		t := scheduledFor.Time
		ct.Scheduling.ScheduledFor = &t
	}
	if publishedAt.Valid {
		t := publishedAt.Time
		ct.Scheduling.PublishedAt = &t
	}
	if perfUpdated.Valid {
		t := perfUpdated.Time
		ct.Performance.LastUpdated = &t
	}
	if len(aiGenerated) > 0 {
		if err := json.Unmarshal(aiGenerated, &ct.AIGenerated); err != nil {
			return nil, err
		}
	}
	if notes.Valid {
		s := notes.String
		ct.Notes = &s
	}
	if brandName.Valid {
		s := brandName.String
		ct.BrandName = &s
	}
	if brandIndustry.Valid {
		s := brandIndustry.String
		ct.BrandIndustry = &s
	}
	if ct.Body.Hashtags == nil {
		ct.Body.Hashtags = []string{}
	}
	return &ct, nil
}

// getOwnedContent loads one content item with the brand display columns.
func (h *Handler) getOwnedContent(id, userID string) (*models.Content, error) {
	row := h.db.QueryRow(`SELECT `+contentJoinColumns+` FROM public.content c JOIN public.brands b ON b.id = c.brand_id WHERE c.id = $1 AND c.user_id = $2`, id, userID)
	return scanContent(row, true)
}

func (h *Handler) ListContent(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserID(r)
	q := r.URL.Query()

	where := []string{"c.user_id = $1", "c.is_archived = FALSE"}
	args := []any{userID}
	if v := q.Get("brandId"); v != "" {
		args = append(args, v)
		where = append(where, fmt.Sprintf("c.brand_id = $%d", len(args)))
	}
	if v := q.Get("platform"); v != "" {
		args = append(args, v)
		where = append(where, fmt.Sprintf("c.platform = $%d", len(args)))
	}
	if v := q.Get("status"); v != "" {
		args = append(args, v)
		where = append(where, fmt.Sprintf("c.status = $%d", len(args)))
	}

	page := queryInt(r, "page", 1)
	limit := queryInt(r, "limit", 20)

	var total int
	countQuery := `SELECT COUNT(*) FROM public.content c WHERE ` + strings.Join(where, " AND ")
	if err := h.db.QueryRow(countQuery, args...).Scan(&total); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	listArgs := append(args, limit, (page-1)*limit)
	listQuery := `SELECT ` + contentJoinColumns + ` FROM public.content c JOIN public.brands b ON b.id = c.brand_id WHERE ` +
		strings.Join(where, " AND ") +
		fmt.Sprintf(` ORDER BY c.created_at DESC LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)

	rows, err := h.db.Query(listQuery, listArgs...)
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

	totalPages := 0
	if total > 0 {
		totalPages = (total + limit - 1) / limit
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"content":     items,
		"totalPages":  totalPages,
		"currentPage": page,
		"total":       total,
	})
}

func (h *Handler) GetContent(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserID(r)
	id := pathVar(r, "id")

	ct, err := h.getOwnedContent(id, userID)
	if err == sql.ErrNoRows {
		writeError(w, http.StatusNotFound, "Content not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, ct)
}

func (h *Handler) CreateContent(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserID(r)

	var ct models.Content
	if err := decodeJSON(r, &ct); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	// Brand ownership is checked before any validation of the payload.
	var brandID string
	err := h.db.QueryRow(`SELECT id FROM public.brands WHERE id = $1 AND user_id = $2`, ct.BrandID, userID).Scan(&brandID)
	if err == sql.ErrNoRows {
		writeError(w, http.StatusNotFound, "Brand not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if ct.Title == "" {
		writeError(w, http.StatusBadRequest, "Title is required")
		return
	}
	if !models.ValidContentType(ct.Type) {
		writeError(w, http.StatusBadRequest, "Invalid content type")
		return
	}
	if !models.ValidPlatform(ct.Platform) {
		writeError(w, http.StatusBadRequest, "Invalid platform")
		return
	}
	if ct.Scheduling.Status == "" {
		ct.Scheduling.Status = "draft"
	}
	if !models.ValidSchedulingStatus(ct.Scheduling.Status) {
		writeError(w, http.StatusBadRequest, "Invalid scheduling status")
		return
	}
	if ct.Scheduling.Timezone == "" {
		ct.Scheduling.Timezone = "UTC"
	}

	ct.ID = newID()
	ct.UserID = userID
	ct.Performance.Recompute()

	if err := h.insertContent(&ct); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	saved, err := h.getOwnedContent(ct.ID, userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.dash.InvalidateUser(r.Context(), userID)
	writeJSON(w, http.StatusCreated, saved)
}

func (h *Handler) insertContent(ct *models.Content) error {
	aiGenerated, err := json.Marshal(ct.AIGenerated)
	if err != nil {
		return err
	}
	media := []byte(ct.Media)
	if len(media) == 0 {
		media = []byte(`{}`)
	}

	query := `
		INSERT INTO public.content (id, user_id, brand_id, title, type, platform, caption, hashtags, mentions, cta, media, status, scheduled_for, published_at, timezone, impressions, reach, likes, comments, shares, saves, clicks, engagement_rate, perf_last_updated, ai_generated, tags, notes, is_archived, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23, $24, $25, $26, $27, FALSE, NOW(), NOW())
	`
	_, err = h.db.Exec(query,
		ct.ID, ct.UserID, ct.BrandID, ct.Title, ct.Type, ct.Platform,
		ct.Body.Caption, pq.Array(ct.Body.Hashtags), pq.Array(ct.Body.Mentions), nullString(ct.Body.CTA),
		media, ct.Scheduling.Status, ct.Scheduling.ScheduledFor, ct.Scheduling.PublishedAt, ct.Scheduling.Timezone,
		ct.Performance.Impressions, ct.Performance.Reach,
		ct.Performance.Engagement.Likes, ct.Performance.Engagement.Comments,
		ct.Performance.Engagement.Shares, ct.Performance.Engagement.Saves,
		ct.Performance.Engagement.Clicks, ct.Performance.EngagementRate, ct.Performance.LastUpdated,
		aiGenerated, pq.Array(ct.Tags), ct.Notes)
	return err
}

// UpdateContent merges the request body over the stored item, recomputes the
// engagement rate, and persists everything.
func (h *Handler) UpdateContent(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserID(r)
	id := pathVar(r, "id")

	ct, err := h.getOwnedContent(id, userID)
	if err == sql.ErrNoRows {
		writeError(w, http.StatusNotFound, "Content not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if err := decodeJSON(r, ct); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	ct.ID = id
	ct.UserID = userID
	if !models.ValidContentType(ct.Type) {
		writeError(w, http.StatusBadRequest, "Invalid content type")
		return
	}
	if !models.ValidPlatform(ct.Platform) {
		writeError(w, http.StatusBadRequest, "Invalid platform")
		return
	}
	if !models.ValidSchedulingStatus(ct.Scheduling.Status) {
		writeError(w, http.StatusBadRequest, "Invalid scheduling status")
		return
	}
	ct.Performance.Recompute()

	aiGenerated, err := json.Marshal(ct.AIGenerated)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	media := []byte(ct.Media)
	if len(media) == 0 {
		media = []byte(`{}`)
	}

	query := `
		UPDATE public.content
		SET brand_id = $3, title = $4, type = $5, platform = $6, caption = $7,
			hashtags = $8, mentions = $9, cta = $10, media = $11, status = $12,
			scheduled_for = $13, published_at = $14, timezone = $15,
			impressions = $16, reach = $17, likes = $18, comments = $19,
			shares = $20, saves = $21, clicks = $22, engagement_rate = $23,
			ai_generated = $24, tags = $25, notes = $26, updated_at = NOW()
		WHERE id = $1 AND user_id = $2
		RETURNING updated_at
	`
	err = h.db.QueryRow(query, id, userID,
		ct.BrandID, ct.Title, ct.Type, ct.Platform, ct.Body.Caption,
		pq.Array(ct.Body.Hashtags), pq.Array(ct.Body.Mentions), nullString(ct.Body.CTA),
		media, ct.Scheduling.Status, ct.Scheduling.ScheduledFor, ct.Scheduling.PublishedAt,
		ct.Scheduling.Timezone, ct.Performance.Impressions, ct.Performance.Reach,
		ct.Performance.Engagement.Likes, ct.Performance.Engagement.Comments,
		ct.Performance.Engagement.Shares, ct.Performance.Engagement.Saves,
		ct.Performance.Engagement.Clicks, ct.Performance.EngagementRate,
		aiGenerated, pq.Array(ct.Tags), ct.Notes).
		Scan(&ct.UpdatedAt)
	if err == sql.ErrNoRows {
		writeError(w, http.StatusNotFound, "Content not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.dash.InvalidateUser(r.Context(), userID)
	writeJSON(w, http.StatusOK, ct)
}

// ArchiveContent soft-deletes a content item.
func (h *Handler) ArchiveContent(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserID(r)
	id := pathVar(r, "id")

	var archived string
	err := h.db.QueryRow(`UPDATE public.content SET is_archived = TRUE, updated_at = NOW() WHERE id = $1 AND user_id = $2 RETURNING id`, id, userID).Scan(&archived)
	if err == sql.ErrNoRows {
		writeError(w, http.StatusNotFound, "Content not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.dash.InvalidateUser(r.Context(), userID)
	writeJSON(w, http.StatusOK, map[string]string{"message": "Content deleted successfully"})
}

type scheduleRequest struct {
	ScheduledFor *time.Time `json:"scheduledFor"`
	Timezone     string     `json:"timezone"`
}

func (h *Handler) ScheduleContent(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserID(r)
	id := pathVar(r, "id")

	var req scheduleRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.ScheduledFor == nil {
		writeError(w, http.StatusBadRequest, "scheduledFor is required")
		return
	}
	if req.Timezone == "" {
		req.Timezone = "UTC"
	}

	var updated string
	err := h.db.QueryRow(`UPDATE public.content SET status = 'scheduled', scheduled_for = $3, timezone = $4, updated_at = NOW() WHERE id = $1 AND user_id = $2 RETURNING id`,
		id, userID, req.ScheduledFor, req.Timezone).Scan(&updated)
	if err == sql.ErrNoRows {
		writeError(w, http.StatusNotFound, "Content not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	ct, err := h.getOwnedContent(id, userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.dash.InvalidateUser(r.Context(), userID)
	h.emitEvent(userID, realtimeEvent{Type: "content.scheduled", ContentID: ct.ID, BrandID: ct.BrandID, Status: ct.Scheduling.Status})
	writeJSON(w, http.StatusOK, ct)
}

// PublishContent flips the local lifecycle state only; no platform API is
// called here.
func (h *Handler) PublishContent(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserID(r)
	id := pathVar(r, "id")

	var updated string
	err := h.db.QueryRow(`UPDATE public.content SET status = 'published', published_at = NOW(), updated_at = NOW() WHERE id = $1 AND user_id = $2 RETURNING id`,
		id, userID).Scan(&updated)
	if err == sql.ErrNoRows {
		writeError(w, http.StatusNotFound, "Content not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	ct, err := h.getOwnedContent(id, userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.dash.InvalidateUser(r.Context(), userID)
	h.emitEvent(userID, realtimeEvent{Type: "content.published", ContentID: ct.ID, BrandID: ct.BrandID, Status: ct.Scheduling.Status})
	writeJSON(w, http.StatusOK, ct)
}

type performanceRequest struct {
	Impressions int64             `json:"impressions"`
	Reach       int64             `json:"reach"`
	Engagement  models.Engagement `json:"engagement"`
}

// UpdatePerformance persists new counters and recomputes the engagement rate
// from them before writing.
func (h *Handler) UpdatePerformance(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserID(r)
	id := pathVar(r, "id")

	var req performanceRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	perf := models.Performance{
		Impressions: req.Impressions,
		Reach:       req.Reach,
		Engagement:  req.Engagement,
	}
	perf.Recompute()

	query := `
		UPDATE public.content
		SET impressions = $3, reach = $4, likes = $5, comments = $6, shares = $7,
			saves = $8, clicks = $9, engagement_rate = $10, perf_last_updated = NOW(),
			updated_at = NOW()
		WHERE id = $1 AND user_id = $2
		RETURNING id
	`
	var updated string
	err := h.db.QueryRow(query, id, userID,
		perf.Impressions, perf.Reach,
		perf.Engagement.Likes, perf.Engagement.Comments, perf.Engagement.Shares,
		perf.Engagement.Saves, perf.Engagement.Clicks, perf.EngagementRate).Scan(&updated)
	if err == sql.ErrNoRows {
		writeError(w, http.StatusNotFound, "Content not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	ct, err := h.getOwnedContent(id, userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.dash.InvalidateUser(r.Context(), userID)
	writeJSON(w, http.StatusOK, ct)
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
