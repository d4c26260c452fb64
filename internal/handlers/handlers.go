package handlers

import (
	"context"
	"database/sql"
	"net/http"

	"github.com/PortNumber53/creator-ai/backend/internal/aigen"
	"github.com/PortNumber53/creator-ai/backend/internal/cache"
	"github.com/PortNumber53/creator-ai/backend/internal/models"
	"github.com/PortNumber53/creator-ai/backend/internal/usage"
	"github.com/google/uuid"
)

// completer is the slice of the generation client the handlers need.
type completer interface {
	Complete(ctx context.Context, model, systemPrompt, userPrompt string, temperature float64, maxTokens int) (string, error)
}

// dashboardCache is the slice of the cache layer the handlers touch.
type dashboardCache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, payload []byte)
	InvalidateUser(ctx context.Context, userID string)
}

type Handler struct {
	db     *sql.DB
	rt     *realtimeHub
	ledger *usage.Ledger
	ai     completer
	dash   dashboardCache
}

// New wires a handler set against the database. dash may be nil when the
// dashboard cache is disabled.
func New(db *sql.DB, dash *cache.Dashboard) *Handler {
	return &Handler{
		db:     db,
		rt:     newRealtimeHub(),
		ledger: usage.NewLedger(db, nil),
		ai:     aigen.NewClientFromEnv(),
		dash:   dash,
	}
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

const userColumns = `id, email, name, plan, content_generated, posts_scheduled, ai_calls_this_month, last_reset_date, created_at`

func scanUser(row *sql.Row) (*models.User, error) {
	var u models.User
	err := row.Scan(&u.ID, &u.Email, &u.Name, &u.Subscription.Plan,
		&u.Usage.ContentGenerated, &u.Usage.PostsScheduled, &u.Usage.AICallsThisMonth,
		&u.Usage.LastResetDate, &u.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// CreateUser upserts the identity record the gateway pushes after sign-in.
// Existing plan and usage counters are never clobbered by the upsert.
func (h *Handler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var user models.User
	if err := decodeJSON(r, &user); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if user.ID == "" {
		user.ID = newID()
	}

	query := `
		INSERT INTO public.users (id, email, name, created_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (id) DO UPDATE SET
			email = COALESCE(NULLIF(EXCLUDED.email, ''), public.users.email),
			name = COALESCE(NULLIF(EXCLUDED.name, ''), public.users.name)
		RETURNING ` + userColumns

	u, err := scanUser(h.db.QueryRow(query, user.ID, user.Email, user.Name))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, u)
}

func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	id := pathVar(r, "id")

	u, err := scanUser(h.db.QueryRow(`SELECT `+userColumns+` FROM public.users WHERE id = $1`, id))
	if err == sql.ErrNoRows {
		writeError(w, http.StatusNotFound, "User not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, u)
}

func newID() string {
	return uuid.NewString()
}
