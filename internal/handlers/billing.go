package handlers

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"

	"github.com/PortNumber53/creator-ai/backend/internal/middleware"
	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/webhook"
)

type billingPlan struct {
	ID            string  `json:"id"`
	Name          string  `json:"name"`
	Plan          string  `json:"plan"`
	StripePriceID *string `json:"stripePriceId,omitempty"`
	PriceCents    int     `json:"priceCents"`
	Currency      string  `json:"currency"`
	Interval      string  `json:"interval"`
	IsActive      bool    `json:"isActive"`
}

// GetBillingPlans lists the active plans the usage ledger gates on.
func (h *Handler) GetBillingPlans(w http.ResponseWriter, r *http.Request) {
	rows, err := h.db.Query(`
		SELECT id, name, plan, stripe_price_id, price_cents, currency, "interval", is_active
		FROM public.billing_plans
		WHERE is_active = TRUE
		ORDER BY price_cents ASC
	`)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	defer rows.Close()

	plans := []billingPlan{}
	for rows.Next() {
		var p billingPlan
		var priceID sql.NullString
		if err := rows.Scan(&p.ID, &p.Name, &p.Plan, &priceID, &p.PriceCents, &p.Currency, &p.Interval, &p.IsActive); err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if priceID.Valid {
			p.StripePriceID = &priceID.String
		}
		plans = append(plans, p)
	}

	writeJSON(w, http.StatusOK, plans)
}

// GetUserSubscription reports the caller's plan and Stripe linkage. A user
// may only read their own subscription.
func (h *Handler) GetUserSubscription(w http.ResponseWriter, r *http.Request) {
	userID := pathVar(r, "userId")
	if userID != middleware.UserID(r) {
		writeError(w, http.StatusNotFound, "User not found")
		return
	}

	var plan string
	var custID, subID sql.NullString
	err := h.db.QueryRow(`SELECT plan, stripe_customer_id, stripe_subscription_id FROM public.users WHERE id = $1`, userID).
		Scan(&plan, &custID, &subID)
	if err == sql.ErrNoRows {
		writeError(w, http.StatusNotFound, "User not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	resp := map[string]any{"userId": userID, "plan": plan}
	if custID.Valid {
		resp["stripeCustomerId"] = custID.String
	}
	if subID.Valid {
		resp["stripeSubscriptionId"] = subID.String
	}
	writeJSON(w, http.StatusOK, resp)
}

// StripeWebhook verifies and applies Stripe subscription events onto
// users.plan, the value the usage ledger reads.
func (h *Handler) StripeWebhook(w http.ResponseWriter, r *http.Request) {
	const MaxBodyBytes = int64(65536)
	r.Body = http.MaxBytesReader(w, r.Body, MaxBodyBytes)

	payload, err := io.ReadAll(r.Body)
	if err != nil {
		log.Printf("[Billing][Webhook] read error: %v", err)
		writeError(w, http.StatusBadRequest, "Failed to read request body")
		return
	}

	webhookSecret := os.Getenv("STRIPE_WEBHOOK_SECRET")
	var event stripe.Event
	if webhookSecret == "" {
		log.Printf("[Billing][Webhook] STRIPE_WEBHOOK_SECRET not set, skipping signature verification")
		if err := json.Unmarshal(payload, &event); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid JSON")
			return
		}
	} else {
		sig := r.Header.Get("Stripe-Signature")
		if sig == "" {
			writeError(w, http.StatusBadRequest, "Missing signature")
			return
		}
		event, err = webhook.ConstructEvent(payload, sig, webhookSecret)
		if err != nil {
			log.Printf("[Billing][Webhook] signature verification error: %v", err)
			writeError(w, http.StatusBadRequest, "Invalid signature")
			return
		}
	}

	h.processStripeEvent(event)
	writeJSON(w, http.StatusOK, map[string]string{"status": "success"})
}

func (h *Handler) processStripeEvent(event stripe.Event) {
	eventID := fmt.Sprintf("evt_%s", event.ID)
	_, err := h.db.Exec(`
		INSERT INTO public.billing_events (id, stripe_event_id, stripe_event_type, data, created_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (stripe_event_id) DO NOTHING
	`, eventID, event.ID, event.Type, event.Data.Raw)
	if err != nil {
		log.Printf("[Billing][Webhook] event save error: %v", err)
	}

	switch event.Type {
	case "customer.subscription.created", "customer.subscription.updated":
		h.handleSubscriptionChange(event)
	case "customer.subscription.deleted":
		h.handleSubscriptionDeletion(event)
	default:
		log.Printf("[Billing][Webhook] ignoring event type %s", event.Type)
	}
}

func (h *Handler) handleSubscriptionChange(event stripe.Event) {
	var sub stripe.Subscription
	if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
		log.Printf("[Billing][Webhook] subscription unmarshal error: %v", err)
		return
	}
	if sub.Customer == nil || len(sub.Items.Data) == 0 || sub.Items.Data[0].Price == nil {
		log.Printf("[Billing][Webhook] subscription %s missing customer or price", sub.ID)
		return
	}

	plan := h.planForPrice(sub.Items.Data[0].Price.ID)
	_, err := h.db.Exec(`
		UPDATE public.users
		SET plan = $2, stripe_subscription_id = $3
		WHERE stripe_customer_id = $1
	`, sub.Customer.ID, plan, sub.ID)
	if err != nil {
		log.Printf("[Billing][Webhook] plan update error: %v", err)
		return
	}
	log.Printf("[Billing][Webhook] customer=%s plan=%s sub=%s", sub.Customer.ID, plan, sub.ID)
}

func (h *Handler) handleSubscriptionDeletion(event stripe.Event) {
	var sub stripe.Subscription
	if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
		log.Printf("[Billing][Webhook] subscription unmarshal error: %v", err)
		return
	}
	if sub.Customer == nil {
		return
	}

	_, err := h.db.Exec(`
		UPDATE public.users
		SET plan = 'free', stripe_subscription_id = NULL
		WHERE stripe_customer_id = $1
	`, sub.Customer.ID)
	if err != nil {
		log.Printf("[Billing][Webhook] downgrade error: %v", err)
		return
	}
	log.Printf("[Billing][Webhook] customer=%s downgraded to free", sub.Customer.ID)
}

// planForPrice maps a Stripe price id onto a plan name, defaulting to free
// for prices this deployment does not sell.
func (h *Handler) planForPrice(priceID string) string {
	var plan string
	err := h.db.QueryRow(`SELECT plan FROM public.billing_plans WHERE stripe_price_id = $1 AND is_active = TRUE`, priceID).Scan(&plan)
	if err == sql.ErrNoRows {
		log.Printf("[Billing][Webhook] unknown price %s, defaulting to free", priceID)
		return "free"
	}
	if err != nil {
		log.Printf("[Billing][Webhook] price lookup error: %v", err)
		return "free"
	}
	return plan
}
