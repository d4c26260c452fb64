package handlers

import (
	"github.com/gorilla/mux"
)

// Register wires every API route onto the router.
func Register(h *Handler, r *mux.Router) {
	// Health check
	r.HandleFunc("/health", h.Health).Methods("GET")

	// User endpoints (gateway-driven identity upsert)
	r.HandleFunc("/api/users", h.CreateUser).Methods("POST")
	r.HandleFunc("/api/users/{id}", h.GetUser).Methods("GET")

	// Brand endpoints
	r.HandleFunc("/api/brands", h.ListBrands).Methods("GET")
	r.HandleFunc("/api/brands", h.CreateBrand).Methods("POST")
	r.HandleFunc("/api/brands/{id}", h.GetBrand).Methods("GET")
	r.HandleFunc("/api/brands/{id}", h.UpdateBrand).Methods("PUT")
	r.HandleFunc("/api/brands/{id}", h.DeleteBrand).Methods("DELETE")
	r.HandleFunc("/api/brands/{id}/connect/{platform}", h.ConnectSocialAccount).Methods("POST")
	r.HandleFunc("/api/brands/{id}/disconnect/{platform}", h.DisconnectSocialAccount).Methods("DELETE")

	// Content endpoints
	r.HandleFunc("/api/content", h.ListContent).Methods("GET")
	r.HandleFunc("/api/content", h.CreateContent).Methods("POST")
	r.HandleFunc("/api/content/{id}", h.GetContent).Methods("GET")
	r.HandleFunc("/api/content/{id}", h.UpdateContent).Methods("PUT")
	r.HandleFunc("/api/content/{id}", h.ArchiveContent).Methods("DELETE")
	r.HandleFunc("/api/content/{id}/schedule", h.ScheduleContent).Methods("POST")
	r.HandleFunc("/api/content/{id}/publish", h.PublishContent).Methods("POST")
	r.HandleFunc("/api/content/{id}/performance", h.UpdatePerformance).Methods("PUT")

	// Analytics endpoints
	r.HandleFunc("/api/analytics/dashboard", h.Dashboard).Methods("GET")
	r.HandleFunc("/api/analytics/platforms/{platform}", h.PlatformAnalytics).Methods("GET")
	r.HandleFunc("/api/analytics/audience", h.AudienceInsights).Methods("GET")
	r.HandleFunc("/api/analytics/competitors", h.CompetitorAnalysis).Methods("GET")
	r.HandleFunc("/api/analytics/export", h.ExportAnalytics).Methods("GET")

	// AI generation endpoints
	r.HandleFunc("/api/ai/generate-caption", h.GenerateCaption).Methods("POST")
	r.HandleFunc("/api/ai/generate-image-concept", h.GenerateImageConcept).Methods("POST")
	r.HandleFunc("/api/ai/generate-video-script", h.GenerateVideoScript).Methods("POST")
	r.HandleFunc("/api/ai/analyze-performance", h.AnalyzePerformance).Methods("POST")
	r.HandleFunc("/api/ai/usage", h.UsageStats).Methods("GET")

	// Billing endpoints
	r.HandleFunc("/api/billing/plans", h.GetBillingPlans).Methods("GET")
	r.HandleFunc("/api/billing/subscription/user/{userId}", h.GetUserSubscription).Methods("GET")
	r.HandleFunc("/webhook/stripe", h.StripeWebhook).Methods("POST")

	// Realtime events (internal, proxied by the gateway)
	r.HandleFunc("/api/events/ping", h.EventsPing).Methods("GET")
	r.HandleFunc("/api/events/ws", h.EventsWebSocket).Methods("GET")
}
