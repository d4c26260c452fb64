package handlers

import (
	"database/sql"
	"encoding/json"
	"net/http"

	"github.com/PortNumber53/creator-ai/backend/internal/middleware"
	"github.com/PortNumber53/creator-ai/backend/internal/models"
)

const brandColumns = `id, user_id, name, industry, description, website, target_audience, brand_voice, visual_identity, social_accounts, competitors, content_guidelines, is_active, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBrand(row rowScanner) (*models.Brand, error) {
	var b models.Brand
	var audience, voice, visual, accounts, competitors, guidelines []byte

	err := row.Scan(&b.ID, &b.UserID, &b.Name, &b.Industry, &b.Description, &b.Website,
		&audience, &voice, &visual, &accounts, &competitors, &guidelines,
		&b.IsActive, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return nil, err
	}

	for _, f := range []struct {
		raw []byte
		dst any
	}{
		{audience, &b.TargetAudience},
		{voice, &b.BrandVoice},
		{visual, &b.VisualIdentity},
		{accounts, &b.SocialAccounts},
		{competitors, &b.Competitors},
		{guidelines, &b.ContentGuidelines},
	} {
		if len(f.raw) == 0 {
			continue
		}
		if err := json.Unmarshal(f.raw, f.dst); err != nil {
			return nil, err
		}
	}
	if b.SocialAccounts == nil {
		b.SocialAccounts = map[string]models.SocialAccount{}
	}
	if b.Competitors == nil {
		b.Competitors = []models.Competitor{}
	}
	return &b, nil
}

// brandJSONB marshals the nested brand sub-records for the JSONB columns.
func brandJSONB(b *models.Brand) (audience, voice, visual, accounts, competitors, guidelines []byte, err error) {
	if audience, err = json.Marshal(b.TargetAudience); err != nil {
		return
	}
	if voice, err = json.Marshal(b.BrandVoice); err != nil {
		return
	}
	if visual, err = json.Marshal(b.VisualIdentity); err != nil {
		return
	}
	if b.SocialAccounts == nil {
		b.SocialAccounts = map[string]models.SocialAccount{}
	}
	if accounts, err = json.Marshal(b.SocialAccounts); err != nil {
		return
	}
	if b.Competitors == nil {
		b.Competitors = []models.Competitor{}
	}
	if competitors, err = json.Marshal(b.Competitors); err != nil {
		return
	}
	guidelines, err = json.Marshal(b.ContentGuidelines)
	return
}

// getOwnedBrand loads a brand scoped to its owner. Missing and not-owned are
// indistinguishable on purpose.
func (h *Handler) getOwnedBrand(id, userID string) (*models.Brand, error) {
	row := h.db.QueryRow(`SELECT `+brandColumns+` FROM public.brands WHERE id = $1 AND user_id = $2`, id, userID)
	return scanBrand(row)
}

func (h *Handler) ListBrands(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserID(r)

	rows, err := h.db.Query(`SELECT `+brandColumns+` FROM public.brands WHERE user_id = $1 AND is_active = TRUE ORDER BY created_at DESC`, userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	defer rows.Close()

	brands := []models.Brand{}
	for rows.Next() {
		b, err := scanBrand(rows)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		brands = append(brands, *b)
	}

	writeJSON(w, http.StatusOK, brands)
}

func (h *Handler) GetBrand(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserID(r)
	id := pathVar(r, "id")

	row := h.db.QueryRow(`SELECT `+brandColumns+` FROM public.brands WHERE id = $1 AND user_id = $2 AND is_active = TRUE`, id, userID)
	b, err := scanBrand(row)
	if err == sql.ErrNoRows {
		writeError(w, http.StatusNotFound, "Brand not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, b)
}

func (h *Handler) CreateBrand(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserID(r)

	var b models.Brand
	if err := decodeJSON(r, &b); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if b.Name == "" {
		writeError(w, http.StatusBadRequest, "Brand name is required")
		return
	}

	b.ID = newID()
	b.UserID = userID
	b.IsActive = true

	audience, voice, visual, accounts, competitors, guidelines, err := brandJSONB(&b)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	query := `
		INSERT INTO public.brands (id, user_id, name, industry, description, website, target_audience, brand_voice, visual_identity, social_accounts, competitors, content_guidelines, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, TRUE, NOW(), NOW())
		RETURNING created_at, updated_at
	`
	err = h.db.QueryRow(query, b.ID, b.UserID, b.Name, b.Industry, b.Description, b.Website,
		audience, voice, visual, accounts, competitors, guidelines).
		Scan(&b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, b)
}

// UpdateBrand merges the request body over the stored brand, so absent fields
// keep their current values.
func (h *Handler) UpdateBrand(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserID(r)
	id := pathVar(r, "id")

	b, err := h.getOwnedBrand(id, userID)
	if err == sql.ErrNoRows {
		writeError(w, http.StatusNotFound, "Brand not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if err := decodeJSON(r, b); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	b.ID = id
	b.UserID = userID

	audience, voice, visual, accounts, competitors, guidelines, err := brandJSONB(b)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	query := `
		UPDATE public.brands
		SET name = $3, industry = $4, description = $5, website = $6,
			target_audience = $7, brand_voice = $8, visual_identity = $9,
			social_accounts = $10, competitors = $11, content_guidelines = $12,
			is_active = $13, updated_at = NOW()
		WHERE id = $1 AND user_id = $2
		RETURNING updated_at
	`
	err = h.db.QueryRow(query, id, userID, b.Name, b.Industry, b.Description, b.Website,
		audience, voice, visual, accounts, competitors, guidelines, b.IsActive).
		Scan(&b.UpdatedAt)
	if err == sql.ErrNoRows {
		writeError(w, http.StatusNotFound, "Brand not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, b)
}

// DeleteBrand soft-deletes: the row stays for historical content joins.
func (h *Handler) DeleteBrand(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserID(r)
	id := pathVar(r, "id")

	var deleted string
	err := h.db.QueryRow(`UPDATE public.brands SET is_active = FALSE, updated_at = NOW() WHERE id = $1 AND user_id = $2 RETURNING id`, id, userID).Scan(&deleted)
	if err == sql.ErrNoRows {
		writeError(w, http.StatusNotFound, "Brand not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Brand deleted successfully"})
}

type connectAccountRequest struct {
	Username     string `json:"username"`
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	PageID       string `json:"pageId"`
	ChannelID    string `json:"channelId"`
}

// ConnectSocialAccount marks a platform connected on the brand, storing the
// opaque handle and tokens inside the socialAccounts record.
func (h *Handler) ConnectSocialAccount(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserID(r)
	id := pathVar(r, "id")
	platform := pathVar(r, "platform")

	var req connectAccountRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	b, err := h.getOwnedBrand(id, userID)
	if err == sql.ErrNoRows {
		writeError(w, http.StatusNotFound, "Brand not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	account := b.SocialAccounts[platform]
	account.Connected = true
	account.Username = req.Username
	account.AccessToken = req.AccessToken
	account.RefreshToken = req.RefreshToken
	if req.PageID != "" {
		account.PageID = req.PageID
	}
	if req.ChannelID != "" {
		account.ChannelID = req.ChannelID
	}
	b.SocialAccounts[platform] = account

	if err := h.saveSocialAccounts(b); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, b)
}

// DisconnectSocialAccount clears the platform connection and its tokens.
func (h *Handler) DisconnectSocialAccount(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserID(r)
	id := pathVar(r, "id")
	platform := pathVar(r, "platform")

	b, err := h.getOwnedBrand(id, userID)
	if err == sql.ErrNoRows {
		writeError(w, http.StatusNotFound, "Brand not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	b.SocialAccounts[platform] = models.SocialAccount{Connected: false}

	if err := h.saveSocialAccounts(b); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, b)
}

func (h *Handler) saveSocialAccounts(b *models.Brand) error {
	accounts, err := json.Marshal(b.SocialAccounts)
	if err != nil {
		return err
	}
	return h.db.QueryRow(`UPDATE public.brands SET social_accounts = $3, updated_at = NOW() WHERE id = $1 AND user_id = $2 RETURNING updated_at`,
		b.ID, b.UserID, accounts).Scan(&b.UpdatedAt)
}
