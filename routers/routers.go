package routers

import (
	"escrow-ledger/handlers"
	"escrow-ledger/metrics"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RegisterRoutes sets up all the HTTP routes for the escrow engine
func RegisterRoutes(r *mux.Router, h *handlers.Handler) {
	r.Use(metrics.Middleware)

	// Project lifecycle
	r.HandleFunc("/projects", h.CreateProject).Methods("POST")
	r.HandleFunc("/projects/{id}", h.GetProject).Methods("GET")
	r.HandleFunc("/projects/{id}/accept", h.AcceptProject).Methods("POST")
	r.HandleFunc("/projects/{id}/cancel", h.CancelProject).Methods("POST")

	// Milestones: submission, release and the permissionless auto-release
	r.HandleFunc("/projects/{id}/milestones", h.GetProjectMilestones).Methods("GET")
	r.HandleFunc("/projects/{id}/milestones/{mid}/submit", h.SubmitMilestone).Methods("POST")
	r.HandleFunc("/projects/{id}/milestones/{mid}/approve", h.ApproveMilestone).Methods("POST")
	r.HandleFunc("/projects/{id}/milestones/{mid}/auto-approve", h.AutoApproveMilestone).Methods("POST")
	r.HandleFunc("/projects/{id}/milestones/{mid}/can-auto-approve", h.CanAutoApprove).Methods("GET")

	// Disputes and quorum voting
	r.HandleFunc("/disputes", h.RaiseDispute).Methods("POST")
	r.HandleFunc("/disputes/{id}/votes", h.VoteOnDispute).Methods("POST")
	r.HandleFunc("/disputes/{id}/votes", h.GetDisputeVotes).Methods("GET")

	// Ratings and per-user indexes
	r.HandleFunc("/ratings", h.RateUser).Methods("POST")
	r.HandleFunc("/users/{address}/rating", h.GetUserRating).Methods("GET")
	r.HandleFunc("/users/{address}/projects", h.GetUserProjects).Methods("GET")

	// Owner governance: roster, circuit breaker, fee schedule
	r.HandleFunc("/admins", h.AddAdmin).Methods("POST")
	r.HandleFunc("/admins", h.GetAdminList).Methods("GET")
	r.HandleFunc("/admins/{address}", h.RemoveAdmin).Methods("DELETE")
	r.HandleFunc("/pause", h.Pause).Methods("POST")
	r.HandleFunc("/unpause", h.Unpause).Methods("POST")
	r.HandleFunc("/settings/fee", h.SetPlatformFee).Methods("PUT")

	// Observational endpoints
	r.HandleFunc("/balance", h.GetBalance).Methods("GET")
	r.HandleFunc("/events", h.GetEvents).Methods("GET")
	r.Handle("/metrics", promhttp.Handler()).Methods("GET")
}
