package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"sync"

	"escrow-ledger/engine"
	"escrow-ledger/events"
	"escrow-ledger/logger"
	"escrow-ledger/metrics"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// CallerHeader carries the caller address on every mutating request.
// The engine only distinguishes addresses; it does not verify identity.
const CallerHeader = "X-Caller-Address"

const eventTailSize = 100

// Handler contains the HTTP handlers for the escrow API endpoints
type Handler struct {
	Engine *engine.Engine

	mu   sync.Mutex
	tail []events.Event
}

// NewHandler creates a Handler and subscribes it to the notification
// bus so the last emitted events stay queryable.
func NewHandler(e *engine.Engine, bus *events.Bus) *Handler {
	h := &Handler{Engine: e}
	if bus != nil {
		bus.Subscribe(h.recordEvent)
	}
	return h
}

func (h *Handler) recordEvent(evt events.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.tail = append(h.tail, evt)
	if len(h.tail) > eventTailSize {
		h.tail = h.tail[len(h.tail)-eventTailSize:]
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func statusForKind(kind engine.ErrorKind) int {
	switch kind {
	case engine.KindValidation:
		return http.StatusBadRequest
	case engine.KindAuthorization:
		return http.StatusForbidden
	case engine.KindState, engine.KindTimeout:
		return http.StatusConflict
	case engine.KindUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, operation string, err error) {
	kind := engine.KindOf(err)
	logger.Logger.Error("Operation failed",
		zap.String("operation", operation),
		zap.String("kind", string(kind)),
		zap.Error(err))
	writeJSON(w, statusForKind(kind), map[string]string{
		"error": err.Error(),
		"kind":  string(kind),
	})
}

func writeBadPayload(w http.ResponseWriter, operation string, err error) {
	logger.Logger.Error("Failed to decode request",
		zap.String("operation", operation),
		zap.Error(err))
	writeJSON(w, http.StatusBadRequest, map[string]string{
		"error": "Invalid request payload",
		"kind":  string(engine.KindValidation),
	})
}

// caller extracts the caller address header; mutating endpoints reject
// requests without one.
func caller(w http.ResponseWriter, r *http.Request) (string, bool) {
	address := r.Header.Get(CallerHeader)
	if address == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "Missing " + CallerHeader + " header",
			"kind":  string(engine.KindValidation),
		})
		return "", false
	}
	return address, true
}

func pathUint(r *http.Request, name string) (uint64, error) {
	return strconv.ParseUint(mux.Vars(r)[name], 10, 64)
}

func pathInt(r *http.Request, name string) (int, error) {
	return strconv.Atoi(mux.Vars(r)[name])
}

// CreateProject handles POST requests to open a new escrowed project
func (h *Handler) CreateProject(w http.ResponseWriter, r *http.Request) {
	address, ok := caller(w, r)
	if !ok {
		return
	}
	var req struct {
		Title                 string   `json:"title"`
		DescriptionRef        string   `json:"description_ref"`
		MilestoneDescriptions []string `json:"milestone_descriptions"`
		MilestoneAmounts      []uint64 `json:"milestone_amounts"`
		MilestoneDeadlines    []int64  `json:"milestone_deadlines"`
		Deposit               uint64   `json:"deposit"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadPayload(w, "createProject", err)
		return
	}

	id, err := h.Engine.CreateProject(address, req.Title, req.DescriptionRef,
		req.MilestoneDescriptions, req.MilestoneAmounts, req.MilestoneDeadlines, req.Deposit)
	metrics.ObserveOperation("createProject", err)
	if err != nil {
		writeError(w, "createProject", err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"message":    "Project created successfully",
		"project_id": id,
	})
}

// AcceptProject binds the caller as payee of an open project
func (h *Handler) AcceptProject(w http.ResponseWriter, r *http.Request) {
	address, ok := caller(w, r)
	if !ok {
		return
	}
	id, err := pathUint(r, "id")
	if err != nil {
		writeBadPayload(w, "acceptProject", err)
		return
	}

	err = h.Engine.AcceptProject(address, id)
	metrics.ObserveOperation("acceptProject", err)
	if err != nil {
		writeError(w, "acceptProject", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message":    "Project accepted successfully",
		"project_id": id,
	})
}

// CancelProject refunds and closes an unaccepted project
func (h *Handler) CancelProject(w http.ResponseWriter, r *http.Request) {
	address, ok := caller(w, r)
	if !ok {
		return
	}
	id, err := pathUint(r, "id")
	if err != nil {
		writeBadPayload(w, "cancelProject", err)
		return
	}

	err = h.Engine.CancelProject(address, id)
	metrics.ObserveOperation("cancelProject", err)
	if err != nil {
		writeError(w, "cancelProject", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message":    "Project cancelled and refunded",
		"project_id": id,
	})
}

// SubmitMilestone records the payee's deliverable for a milestone
func (h *Handler) SubmitMilestone(w http.ResponseWriter, r *http.Request) {
	address, ok := caller(w, r)
	if !ok {
		return
	}
	id, err := pathUint(r, "id")
	if err != nil {
		writeBadPayload(w, "submitMilestone", err)
		return
	}
	mid, err := pathInt(r, "mid")
	if err != nil {
		writeBadPayload(w, "submitMilestone", err)
		return
	}
	var req struct {
		DeliverableRef string `json:"deliverable_ref"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadPayload(w, "submitMilestone", err)
		return
	}

	err = h.Engine.SubmitMilestone(address, id, mid, req.DeliverableRef)
	metrics.ObserveOperation("submitMilestone", err)
	if err != nil {
		writeError(w, "submitMilestone", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message":      "Milestone submitted successfully",
		"project_id":   id,
		"milestone_id": mid,
	})
}

// ApproveMilestone releases a submitted milestone's payment manually
func (h *Handler) ApproveMilestone(w http.ResponseWriter, r *http.Request) {
	address, ok := caller(w, r)
	if !ok {
		return
	}
	id, err := pathUint(r, "id")
	if err != nil {
		writeBadPayload(w, "approveMilestone", err)
		return
	}
	mid, err := pathInt(r, "mid")
	if err != nil {
		writeBadPayload(w, "approveMilestone", err)
		return
	}

	err = h.Engine.ApproveMilestone(address, id, mid)
	metrics.ObserveOperation("approveMilestone", err)
	if err != nil {
		writeError(w, "approveMilestone", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message":      "Milestone approved and payment released",
		"project_id":   id,
		"milestone_id": mid,
	})
}

// AutoApproveMilestone force-releases a milestone past the auto-approval window
func (h *Handler) AutoApproveMilestone(w http.ResponseWriter, r *http.Request) {
	address, ok := caller(w, r)
	if !ok {
		return
	}
	id, err := pathUint(r, "id")
	if err != nil {
		writeBadPayload(w, "autoApproveMilestone", err)
		return
	}
	mid, err := pathInt(r, "mid")
	if err != nil {
		writeBadPayload(w, "autoApproveMilestone", err)
		return
	}

	err = h.Engine.AutoApproveMilestone(address, id, mid)
	metrics.ObserveOperation("autoApproveMilestone", err)
	if err != nil {
		writeError(w, "autoApproveMilestone", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message":      "Milestone auto-approved and payment released",
		"project_id":   id,
		"milestone_id": mid,
	})
}

// GetProject returns the full project record
func (h *Handler) GetProject(w http.ResponseWriter, r *http.Request) {
	id, err := pathUint(r, "id")
	if err != nil {
		writeBadPayload(w, "getProject", err)
		return
	}
	p, err := h.Engine.GetProject(id)
	if err != nil {
		writeError(w, "getProject", err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// GetProjectMilestones returns the project's milestones in order
func (h *Handler) GetProjectMilestones(w http.ResponseWriter, r *http.Request) {
	id, err := pathUint(r, "id")
	if err != nil {
		writeBadPayload(w, "getProjectMilestones", err)
		return
	}
	milestones, err := h.Engine.GetProjectMilestones(id)
	if err != nil {
		writeError(w, "getProjectMilestones", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"project_id": id,
		"milestones": milestones,
	})
}

// CanAutoApprove reports auto-approval eligibility for a milestone
func (h *Handler) CanAutoApprove(w http.ResponseWriter, r *http.Request) {
	id, err := pathUint(r, "id")
	if err != nil {
		writeBadPayload(w, "canAutoApprove", err)
		return
	}
	mid, err := pathInt(r, "mid")
	if err != nil {
		writeBadPayload(w, "canAutoApprove", err)
		return
	}
	eligible, eligibleAt, err := h.Engine.CanAutoApprove(id, mid)
	if err != nil {
		writeError(w, "canAutoApprove", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"can_auto_approve": eligible,
		"eligible_at":      eligibleAt,
	})
}

// RaiseDispute contests a submitted milestone
func (h *Handler) RaiseDispute(w http.ResponseWriter, r *http.Request) {
	address, ok := caller(w, r)
	if !ok {
		return
	}
	var req struct {
		ProjectID   uint64 `json:"project_id"`
		MilestoneID int    `json:"milestone_id"`
		Reason      string `json:"reason"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadPayload(w, "raiseDispute", err)
		return
	}

	id, err := h.Engine.RaiseDispute(address, req.ProjectID, req.MilestoneID, req.Reason)
	metrics.ObserveOperation("raiseDispute", err)
	if err != nil {
		writeError(w, "raiseDispute", err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"message":    "Dispute raised successfully",
		"dispute_id": id,
	})
}

// VoteOnDispute records one admin's payout split vote
func (h *Handler) VoteOnDispute(w http.ResponseWriter, r *http.Request) {
	address, ok := caller(w, r)
	if !ok {
		return
	}
	id, err := pathUint(r, "id")
	if err != nil {
		writeBadPayload(w, "voteOnDispute", err)
		return
	}
	var req struct {
		Percentage uint64 `json:"percentage"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadPayload(w, "voteOnDispute", err)
		return
	}

	err = h.Engine.VoteOnDispute(address, id, req.Percentage)
	metrics.ObserveOperation("voteOnDispute", err)
	if err != nil {
		writeError(w, "voteOnDispute", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message":    "Vote recorded",
		"dispute_id": id,
	})
}

// GetDisputeVotes returns the current tally of a dispute
func (h *Handler) GetDisputeVotes(w http.ResponseWriter, r *http.Request) {
	id, err := pathUint(r, "id")
	if err != nil {
		writeBadPayload(w, "getDisputeVotes", err)
		return
	}
	count, resolved, voters, percentages, err := h.Engine.GetDisputeVotes(id)
	if err != nil {
		writeError(w, "getDisputeVotes", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"dispute_id":  id,
		"vote_count":  count,
		"resolved":    resolved,
		"voters":      voters,
		"percentages": percentages,
	})
}

// RateUser records a 1-5 rating for an address
func (h *Handler) RateUser(w http.ResponseWriter, r *http.Request) {
	address, ok := caller(w, r)
	if !ok {
		return
	}
	var req struct {
		Address string `json:"address"`
		Rating  uint64 `json:"rating"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadPayload(w, "rateUser", err)
		return
	}

	err := h.Engine.RateUser(address, req.Address, req.Rating)
	metrics.ObserveOperation("rateUser", err)
	if err != nil {
		writeError(w, "rateUser", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Rating recorded",
		"address": req.Address,
	})
}

// GetUserRating returns the accumulated rating of an address
func (h *Handler) GetUserRating(w http.ResponseWriter, r *http.Request) {
	address := mux.Vars(r)["address"]
	rating, err := h.Engine.GetUserRating(address)
	if err != nil {
		writeError(w, "getUserRating", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"address": address,
		"sum":     rating.Sum,
		"count":   rating.Count,
		"average": rating.Average(),
	})
}

// GetUserProjects returns the ids of projects created by an address
func (h *Handler) GetUserProjects(w http.ResponseWriter, r *http.Request) {
	address := mux.Vars(r)["address"]
	ids, err := h.Engine.GetUserProjects(address)
	if err != nil {
		writeError(w, "getUserProjects", err)
		return
	}
	if ids == nil {
		ids = []uint64{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"address":     address,
		"project_ids": ids,
	})
}

// AddAdmin appends an address to the dispute-voting roster
func (h *Handler) AddAdmin(w http.ResponseWriter, r *http.Request) {
	address, ok := caller(w, r)
	if !ok {
		return
	}
	var req struct {
		Address string `json:"address"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadPayload(w, "addAdmin", err)
		return
	}

	err := h.Engine.AddAdmin(address, req.Address)
	metrics.ObserveOperation("addAdmin", err)
	if err != nil {
		writeError(w, "addAdmin", err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"message": "Admin added",
		"address": req.Address,
	})
}

// RemoveAdmin drops an address from the roster
func (h *Handler) RemoveAdmin(w http.ResponseWriter, r *http.Request) {
	address, ok := caller(w, r)
	if !ok {
		return
	}
	target := mux.Vars(r)["address"]

	err := h.Engine.RemoveAdmin(address, target)
	metrics.ObserveOperation("removeAdmin", err)
	if err != nil {
		writeError(w, "removeAdmin", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Admin removed",
		"address": target,
	})
}

// GetAdminList returns the roster in enumeration order
func (h *Handler) GetAdminList(w http.ResponseWriter, r *http.Request) {
	admins, err := h.Engine.GetAdminList()
	if err != nil {
		writeError(w, "getAdminList", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"admins": admins,
	})
}

// Pause trips the engine circuit breaker
func (h *Handler) Pause(w http.ResponseWriter, r *http.Request) {
	address, ok := caller(w, r)
	if !ok {
		return
	}
	err := h.Engine.Pause(address)
	metrics.ObserveOperation("pause", err)
	if err != nil {
		writeError(w, "pause", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Engine paused"})
}

// Unpause reopens the engine for mutating operations
func (h *Handler) Unpause(w http.ResponseWriter, r *http.Request) {
	address, ok := caller(w, r)
	if !ok {
		return
	}
	err := h.Engine.Unpause(address)
	metrics.ObserveOperation("unpause", err)
	if err != nil {
		writeError(w, "unpause", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Engine unpaused"})
}

// SetPlatformFee updates the platform fee percentage
func (h *Handler) SetPlatformFee(w http.ResponseWriter, r *http.Request) {
	address, ok := caller(w, r)
	if !ok {
		return
	}
	var req struct {
		Percent uint64 `json:"percent"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadPayload(w, "setPlatformFee", err)
		return
	}

	err := h.Engine.SetPlatformFee(address, req.Percent)
	metrics.ObserveOperation("setPlatformFee", err)
	if err != nil {
		writeError(w, "setPlatformFee", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Platform fee updated",
		"percent": req.Percent,
	})
}

// GetBalance returns the total value currently held in escrow
func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	balance, err := h.Engine.GetContractBalance()
	if err != nil {
		writeError(w, "getContractBalance", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"balance": balance,
	})
}

// GetEvents returns the most recently emitted notifications
func (h *Handler) GetEvents(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	tail := make([]events.Event, len(h.tail))
	copy(tail, h.tail)
	h.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"events": tail,
	})
}
