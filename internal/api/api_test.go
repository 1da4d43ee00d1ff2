package api

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/erazemk/zavetisce/internal/db"
	"github.com/erazemk/zavetisce/internal/model"
	"github.com/erazemk/zavetisce/internal/store"
	"golang.org/x/crypto/bcrypt"
)

const testJWTSecret = "test-secret"

func setupTestServer(t *testing.T) (*httptest.Server, *sql.DB, string) {
	t.Helper()
	database := db.NewTestDB(t)
	router := NewRouter(database, testJWTSecret)
	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	token := loginAs(t, server, database, "admin", model.RoleAdmin)
	return server, database, token
}

// loginAs creates a user with the given role and returns a token for it.
func loginAs(t *testing.T, server *httptest.Server, database *sql.DB, username, role string) string {
	t.Helper()
	ctx := context.Background()
	hash, _ := bcrypt.GenerateFromPassword([]byte("password"), bcrypt.DefaultCost)
	if _, err := store.CreateUser(ctx, database, username, string(hash), role); err != nil {
		t.Fatalf("creating %s user: %v", role, err)
	}

	body, _ := json.Marshal(map[string]string{"username": username, "password": "password"})
	resp, err := http.Post(server.URL+"/api/auth/login", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("login request: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login failed: %d", resp.StatusCode)
	}

	var loginResp map[string]string
	json.NewDecoder(resp.Body).Decode(&loginResp)
	if loginResp["token"] == "" {
		t.Fatal("empty token from login")
	}
	return loginResp["token"]
}

func authRequest(method, url, token string, body any) (*http.Request, error) {
	var bodyReader *bytes.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		bodyReader = bytes.NewReader(data)
	} else {
		bodyReader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, url, bodyReader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

func doJSON(t *testing.T, req *http.Request, wantStatus int, target any) {
	t.Helper()
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != wantStatus {
		t.Fatalf("%s %s: expected %d, got %d", req.Method, req.URL.Path, wantStatus, resp.StatusCode)
	}
	if target != nil {
		if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
			t.Fatalf("decoding response: %v", err)
		}
	}
}

func TestLoginEndpoint(t *testing.T) {
	server, _, _ := setupTestServer(t)

	body, _ := json.Marshal(map[string]string{"username": "admin", "password": "wrong"})
	resp, _ := http.Post(server.URL+"/api/auth/login", "application/json", bytes.NewReader(body))
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected 401 for bad password, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestUnauthenticatedRequestsRejected(t *testing.T) {
	server, _, _ := setupTestServer(t)

	resp, _ := http.Get(server.URL + "/api/facilities")
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected 401 without token, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestFacilityOccupancyFlow(t *testing.T) {
	server, _, token := setupTestServer(t)

	// Create a shelter.
	var facility model.Facility
	req, _ := authRequest("POST", server.URL+"/api/facilities", token, map[string]any{
		"name":     "North Shelter",
		"type":     model.FacilityTypeShelter,
		"capacity": 100,
	})
	doJSON(t, req, http.StatusCreated, &facility)

	// Check in 90 people, then 15 more.
	base := fmt.Sprintf("%s/api/facilities/%d/occupancy", server.URL, facility.ID)
	req, _ = authRequest("POST", base, token, map[string]any{"direction": model.DirectionIn, "amount": 90})
	doJSON(t, req, http.StatusCreated, nil)
	req, _ = authRequest("POST", base, token, map[string]any{"direction": model.DirectionIn, "amount": 15})
	doJSON(t, req, http.StatusCreated, nil)

	var snapshot model.OccupancySnapshot
	req, _ = authRequest("GET", base, token, nil)
	doJSON(t, req, http.StatusOK, &snapshot)
	if snapshot.Current != 105 {
		t.Errorf("expected occupancy 105, got %d", snapshot.Current)
	}
	if snapshot.Status != model.CapacityOver {
		t.Errorf("expected over-capacity status, got %q", snapshot.Status)
	}

	// The facility list carries the derived state.
	var views []facilityView
	req, _ = authRequest("GET", server.URL+"/api/facilities", token, nil)
	doJSON(t, req, http.StatusOK, &views)
	if len(views) != 1 {
		t.Fatalf("expected 1 facility, got %d", len(views))
	}
	if views[0].Occupancy != 105 || views[0].CapacityStatus != model.CapacityOver {
		t.Errorf("unexpected facility view: %+v", views[0])
	}

	// A zero amount is rejected at the ledger.
	req, _ = authRequest("POST", base, token, map[string]any{"direction": model.DirectionIn, "amount": 0})
	doJSON(t, req, http.StatusBadRequest, nil)
}

func TestRequestLifecycleFlow(t *testing.T) {
	server, _, token := setupTestServer(t)

	var shelter, hub model.Facility
	req, _ := authRequest("POST", server.URL+"/api/facilities", token, map[string]any{
		"name": "North Shelter", "type": model.FacilityTypeShelter, "capacity": 100,
	})
	doJSON(t, req, http.StatusCreated, &shelter)
	req, _ = authRequest("POST", server.URL+"/api/facilities", token, map[string]any{
		"name": "Central Hub", "type": model.FacilityTypeHub,
	})
	doJSON(t, req, http.StatusCreated, &hub)

	// Stock the hub with 50 kg of rice.
	req, _ = authRequest("POST", server.URL+"/api/stock", token, map[string]any{
		"item_name": "Rice", "category": "food", "quantity": 50, "unit": "kg", "source_id": hub.ID,
	})
	doJSON(t, req, http.StatusCreated, nil)

	// The shelter requests all 50.
	var request model.ResourceRequest
	req, _ = authRequest("POST", server.URL+"/api/requests", token, map[string]any{
		"facility_id": shelter.ID, "item_name": "Rice", "category": "food",
		"amount": 50, "unit": "kg", "urgency": model.UrgencyHigh,
	})
	doJSON(t, req, http.StatusCreated, &request)
	if request.Status != model.RequestPending {
		t.Errorf("expected pending request, got %q", request.Status)
	}

	// Approval consumes the batch.
	var approval struct {
		Status          string                  `json:"status"`
		ConsumedBatches []model.BatchAllocation `json:"consumed_batches"`
	}
	req, _ = authRequest("POST", fmt.Sprintf("%s/api/requests/%d/approve", server.URL, request.ID), token, nil)
	doJSON(t, req, http.StatusOK, &approval)
	if approval.Status != model.RequestApproved {
		t.Errorf("expected approved status, got %q", approval.Status)
	}
	if len(approval.ConsumedBatches) != 1 || approval.ConsumedBatches[0].AmountTaken != 50 {
		t.Errorf("unexpected consumed batches: %+v", approval.ConsumedBatches)
	}

	// A follow-up request for one more kg hits a shortfall.
	var second model.ResourceRequest
	req, _ = authRequest("POST", server.URL+"/api/requests", token, map[string]any{
		"facility_id": shelter.ID, "item_name": "Rice", "category": "food", "amount": 1, "unit": "kg",
	})
	doJSON(t, req, http.StatusCreated, &second)

	var conflict struct {
		Error     string `json:"error"`
		Shortfall int    `json:"shortfall"`
	}
	req, _ = authRequest("POST", fmt.Sprintf("%s/api/requests/%d/approve", server.URL, second.ID), token, nil)
	doJSON(t, req, http.StatusConflict, &conflict)
	if conflict.Shortfall != 1 {
		t.Errorf("expected shortfall 1 in conflict payload, got %d", conflict.Shortfall)
	}

	// Receiving moves the goods onto the shelter's shelves.
	req, _ = authRequest("POST", fmt.Sprintf("%s/api/requests/%d/receive", server.URL, request.ID), token, nil)
	doJSON(t, req, http.StatusOK, nil)

	var shelterStock []model.StockBatch
	req, _ = authRequest("GET", fmt.Sprintf("%s/api/facilities/%d/stock", server.URL, shelter.ID), token, nil)
	doJSON(t, req, http.StatusOK, &shelterStock)
	if len(shelterStock) != 1 || shelterStock[0].Quantity != 50 {
		t.Errorf("unexpected shelter stock: %+v", shelterStock)
	}

	// Receiving twice is a state conflict.
	req, _ = authRequest("POST", fmt.Sprintf("%s/api/requests/%d/receive", server.URL, request.ID), token, nil)
	doJSON(t, req, http.StatusConflict, nil)
}

func TestApproveWithAmountOverride(t *testing.T) {
	server, _, token := setupTestServer(t)

	var shelter, hub model.Facility
	req, _ := authRequest("POST", server.URL+"/api/facilities", token, map[string]any{
		"name": "North Shelter", "type": model.FacilityTypeShelter, "capacity": 100,
	})
	doJSON(t, req, http.StatusCreated, &shelter)
	req, _ = authRequest("POST", server.URL+"/api/facilities", token, map[string]any{
		"name": "Central Hub", "type": model.FacilityTypeHub,
	})
	doJSON(t, req, http.StatusCreated, &hub)

	req, _ = authRequest("POST", server.URL+"/api/stock", token, map[string]any{
		"item_name": "Blankets", "category": "bedding", "quantity": 30, "unit": "pcs", "source_id": hub.ID,
	})
	doJSON(t, req, http.StatusCreated, nil)

	var request model.ResourceRequest
	req, _ = authRequest("POST", server.URL+"/api/requests", token, map[string]any{
		"facility_id": shelter.ID, "item_name": "Blankets", "category": "bedding", "amount": 30, "unit": "pcs",
	})
	doJSON(t, req, http.StatusCreated, &request)

	// Partially fulfill: 20 of the 30 asked for.
	req, _ = authRequest("POST", fmt.Sprintf("%s/api/requests/%d/approve", server.URL, request.ID), token, map[string]any{"amount": 20})
	doJSON(t, req, http.StatusOK, nil)

	var updated model.ResourceRequest
	req, _ = authRequest("GET", fmt.Sprintf("%s/api/requests/%d", server.URL, request.ID), token, nil)
	doJSON(t, req, http.StatusOK, &updated)
	if updated.ApprovedAmount == nil || *updated.ApprovedAmount != 20 {
		t.Errorf("expected approved amount 20, got %v", updated.ApprovedAmount)
	}
}

func TestRoleEnforcement(t *testing.T) {
	server, database, adminToken := setupTestServer(t)
	volunteerToken := loginAs(t, server, database, "vol", model.RoleVolunteer)

	// Volunteers can read facilities.
	req, _ := authRequest("GET", server.URL+"/api/facilities", volunteerToken, nil)
	doJSON(t, req, http.StatusOK, nil)

	// But cannot create them.
	req, _ = authRequest("POST", server.URL+"/api/facilities", volunteerToken, map[string]any{
		"name": "Rogue Shelter", "type": model.FacilityTypeShelter, "capacity": 10,
	})
	doJSON(t, req, http.StatusForbidden, nil)

	// Volunteers can file resource requests.
	var shelter model.Facility
	req, _ = authRequest("POST", server.URL+"/api/facilities", adminToken, map[string]any{
		"name": "North Shelter", "type": model.FacilityTypeShelter, "capacity": 100,
	})
	doJSON(t, req, http.StatusCreated, &shelter)

	var request model.ResourceRequest
	req, _ = authRequest("POST", server.URL+"/api/requests", volunteerToken, map[string]any{
		"facility_id": shelter.ID, "item_name": "Rice", "category": "food", "amount": 5, "unit": "kg",
	})
	doJSON(t, req, http.StatusCreated, &request)

	// But cannot decide them.
	req, _ = authRequest("POST", fmt.Sprintf("%s/api/requests/%d/reject", server.URL, request.ID), volunteerToken, nil)
	doJSON(t, req, http.StatusForbidden, nil)

	// User administration stays admin-only.
	req, _ = authRequest("GET", server.URL+"/api/users", volunteerToken, nil)
	doJSON(t, req, http.StatusForbidden, nil)
}

func TestLogoutRevokesToken(t *testing.T) {
	server, _, token := setupTestServer(t)

	req, _ := authRequest("POST", server.URL+"/api/auth/logout", token, nil)
	doJSON(t, req, http.StatusOK, nil)

	// The revoked token no longer opens anything.
	req, _ = authRequest("GET", server.URL+"/api/facilities", token, nil)
	doJSON(t, req, http.StatusUnauthorized, nil)
}
