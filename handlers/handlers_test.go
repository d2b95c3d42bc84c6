package handlers_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"escrow-ledger/engine"
	"escrow-ledger/events"
	"escrow-ledger/handlers"
	"escrow-ledger/logger"
	"escrow-ledger/repository"
	"escrow-ledger/routers"
	"escrow-ledger/treasury"
)

const (
	ownerAddr = "0xowner"
	payerAddr = "0xpayer"
	payeeAddr = "0xpayee"
)

func testServer(t *testing.T) (*mux.Router, *treasury.Recorder) {
	t.Helper()
	logger.Logger = zap.NewNop()

	repo := repository.NewMemoryRepository()
	recorder := treasury.NewRecorder()
	bus := events.NewBus()
	eng, err := engine.NewEngine(repo, recorder, bus, ownerAddr, 2)
	if err != nil {
		t.Fatalf("engine init failed: %v", err)
	}
	handler := handlers.NewHandler(eng, bus)
	router := mux.NewRouter()
	routers.RegisterRoutes(router, handler)
	return router, recorder
}

func doJSON(t *testing.T, router *mux.Router, method, path, callerAddr string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if callerAddr != "" {
		req.Header.Set(handlers.CallerHeader, callerAddr)
	}
	res := httptest.NewRecorder()
	router.ServeHTTP(res, req)
	return res
}

func createProject(t *testing.T, router *mux.Router) {
	t.Helper()
	deadline := time.Now().Add(30 * 24 * time.Hour).Unix()
	res := doJSON(t, router, http.MethodPost, "/projects", payerAddr, map[string]interface{}{
		"title":                  "site build",
		"description_ref":        "ref:site",
		"milestone_descriptions": []string{"design", "implementation"},
		"milestone_amounts":      []uint64{100, 200},
		"milestone_deadlines":    []int64{deadline, deadline},
		"deposit":                300,
	})
	if res.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d, body: %s", res.Code, res.Body.String())
	}
}

func TestCreateProject_Success(t *testing.T) {
	router, _ := testServer(t)
	createProject(t, router)

	res := doJSON(t, router, http.MethodGet, "/projects/0", "", nil)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d, body: %s", res.Code, res.Body.String())
	}
	var project map[string]interface{}
	if err := json.Unmarshal(res.Body.Bytes(), &project); err != nil {
		t.Fatalf("invalid JSON response: %v", err)
	}
	if project["status"] != "created" {
		t.Fatalf("expected status created, got %v", project["status"])
	}
	if project["total_amount"].(float64) != 300 {
		t.Fatalf("expected total 300, got %v", project["total_amount"])
	}
}

func TestCreateProject_MissingCallerHeader(t *testing.T) {
	router, _ := testServer(t)

	res := doJSON(t, router, http.MethodPost, "/projects", "", map[string]interface{}{
		"title": "no caller",
	})
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d, body: %s", res.Code, res.Body.String())
	}
}

func TestCreateProject_InvalidPayload(t *testing.T) {
	router, _ := testServer(t)

	req := httptest.NewRequest(http.MethodPost, "/projects", bytes.NewReader([]byte("{not json")))
	req.Header.Set(handlers.CallerHeader, payerAddr)
	res := httptest.NewRecorder()
	router.ServeHTTP(res, req)
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d, body: %s", res.Code, res.Body.String())
	}
}

func TestAcceptProject_OwnProjectForbidden(t *testing.T) {
	router, _ := testServer(t)
	createProject(t, router)

	res := doJSON(t, router, http.MethodPost, "/projects/0/accept", payerAddr, nil)
	if res.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d, body: %s", res.Code, res.Body.String())
	}

	var body map[string]string
	if err := json.Unmarshal(res.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON response: %v", err)
	}
	if body["kind"] != "AUTHORIZATION" {
		t.Fatalf("expected AUTHORIZATION kind, got %v", body["kind"])
	}
}

func TestMilestoneFlow_ApproveReleasesPayment(t *testing.T) {
	router, recorder := testServer(t)
	createProject(t, router)

	res := doJSON(t, router, http.MethodPost, "/projects/0/accept", payeeAddr, nil)
	if res.Code != http.StatusOK {
		t.Fatalf("accept failed: %d, body: %s", res.Code, res.Body.String())
	}

	res = doJSON(t, router, http.MethodPost, "/projects/0/milestones/0/submit", payeeAddr, map[string]string{
		"deliverable_ref": "ref:deliverable-0",
	})
	if res.Code != http.StatusOK {
		t.Fatalf("submit failed: %d, body: %s", res.Code, res.Body.String())
	}

	res = doJSON(t, router, http.MethodPost, "/projects/0/milestones/0/approve", payerAddr, nil)
	if res.Code != http.StatusOK {
		t.Fatalf("approve failed: %d, body: %s", res.Code, res.Body.String())
	}

	// 2% fee on 100: payee 98, owner 2
	if got := recorder.Total(payeeAddr); got != 98 {
		t.Fatalf("expected payee total 98, got %d", got)
	}
	if got := recorder.Total(ownerAddr); got != 2 {
		t.Fatalf("expected owner total 2, got %d", got)
	}

	// a second approve conflicts
	res = doJSON(t, router, http.MethodPost, "/projects/0/milestones/0/approve", payerAddr, nil)
	if res.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d, body: %s", res.Code, res.Body.String())
	}
}

func TestGetProjectMilestones(t *testing.T) {
	router, _ := testServer(t)
	createProject(t, router)

	res := doJSON(t, router, http.MethodGet, "/projects/0/milestones", "", nil)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d, body: %s", res.Code, res.Body.String())
	}
	var body struct {
		Milestones []map[string]interface{} `json:"milestones"`
	}
	if err := json.Unmarshal(res.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON response: %v", err)
	}
	if len(body.Milestones) != 2 {
		t.Fatalf("expected 2 milestones, got %d", len(body.Milestones))
	}
	if body.Milestones[0]["status"] != "pending" {
		t.Fatalf("expected pending milestone, got %v", body.Milestones[0]["status"])
	}
}

func TestBalanceEndpoint(t *testing.T) {
	router, _ := testServer(t)
	createProject(t, router)

	res := doJSON(t, router, http.MethodGet, "/balance", "", nil)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d, body: %s", res.Code, res.Body.String())
	}
	var body map[string]float64
	if err := json.Unmarshal(res.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON response: %v", err)
	}
	if body["balance"] != 300 {
		t.Fatalf("expected balance 300, got %v", body["balance"])
	}
}

func TestPauseEndpointGatesEngine(t *testing.T) {
	router, _ := testServer(t)

	res := doJSON(t, router, http.MethodPost, "/pause", ownerAddr, nil)
	if res.Code != http.StatusOK {
		t.Fatalf("pause failed: %d, body: %s", res.Code, res.Body.String())
	}

	deadline := time.Now().Add(time.Hour).Unix()
	res = doJSON(t, router, http.MethodPost, "/projects", payerAddr, map[string]interface{}{
		"title":                  "while paused",
		"description_ref":        "ref",
		"milestone_descriptions": []string{"a"},
		"milestone_amounts":      []uint64{1},
		"milestone_deadlines":    []int64{deadline},
		"deposit":                1,
	})
	if res.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d, body: %s", res.Code, res.Body.String())
	}

	res = doJSON(t, router, http.MethodPost, "/unpause", ownerAddr, nil)
	if res.Code != http.StatusOK {
		t.Fatalf("unpause failed: %d, body: %s", res.Code, res.Body.String())
	}
}

func TestAdminEndpoints(t *testing.T) {
	router, _ := testServer(t)

	res := doJSON(t, router, http.MethodPost, "/admins", ownerAddr, map[string]string{"address": "0xjudge"})
	if res.Code != http.StatusCreated {
		t.Fatalf("add admin failed: %d, body: %s", res.Code, res.Body.String())
	}

	res = doJSON(t, router, http.MethodGet, "/admins", "", nil)
	var body struct {
		Admins []string `json:"admins"`
	}
	if err := json.Unmarshal(res.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON response: %v", err)
	}
	if len(body.Admins) != 2 {
		t.Fatalf("expected 2 admins, got %v", body.Admins)
	}

	res = doJSON(t, router, http.MethodDelete, "/admins/0xjudge", ownerAddr, nil)
	if res.Code != http.StatusOK {
		t.Fatalf("remove admin failed: %d, body: %s", res.Code, res.Body.String())
	}

	// removing the sole remaining admin conflicts
	res = doJSON(t, router, http.MethodDelete, "/admins/"+ownerAddr, ownerAddr, nil)
	if res.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d, body: %s", res.Code, res.Body.String())
	}
}

func TestEventsEndpointRecordsNotifications(t *testing.T) {
	router, _ := testServer(t)
	createProject(t, router)

	res := doJSON(t, router, http.MethodGet, "/events", "", nil)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d, body: %s", res.Code, res.Body.String())
	}
	var body struct {
		Events []struct {
			Type string `json:"type"`
		} `json:"events"`
	}
	if err := json.Unmarshal(res.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON response: %v", err)
	}
	if len(body.Events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(body.Events))
	}
	if body.Events[0].Type != "ProjectCreated" || body.Events[1].Type != "FundsDeposited" {
		t.Fatalf("unexpected event order: %+v", body.Events)
	}
}
