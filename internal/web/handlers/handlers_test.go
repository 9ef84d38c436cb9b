package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/jredh-dev/surpluserve/internal/auth"
	"github.com/jredh-dev/surpluserve/internal/donation"
	"github.com/jredh-dev/surpluserve/internal/store"
	"github.com/jredh-dev/surpluserve/internal/token"
	"github.com/jredh-dev/surpluserve/pkg/models"
)

func setupTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	tmpFile, err := os.CreateTemp("", "handlers-test-*.db")
	if err != nil {
		t.Fatalf("create temp file: %v", err)
	}
	tmpFile.Close()
	t.Cleanup(func() { os.Remove(tmpFile.Name()) })

	st, err := store.OpenSQLite(tmpFile.Name())
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	tokens := token.New("test-signing-key", "surpluserve", nil)
	h := New(auth.New(st), donation.New(st, nil), tokens, time.Hour)

	r := chi.NewRouter()
	r.Post("/auth/register", h.Register)
	r.Post("/auth/login", h.Login)
	r.Group(func(r chi.Router) {
		r.Use(RequireAuth(tokens))
		r.Use(RequireRole(models.RoleDonor))
		r.Get("/donor/dashboard", h.DonorDashboard)
		r.Post("/donor/donations", h.CreateDonation)
	})
	r.Group(func(r chi.Router) {
		r.Use(RequireAuth(tokens))
		r.Use(RequireRole(models.RoleRecipient))
		r.Get("/recipient/dashboard", h.RecipientDashboard)
		r.Get("/recipient/dashboard/{id}", h.DonationByID)
		r.Post("/recipient/claim/{id}", h.Claim)
		r.Post("/recipient/search", h.Search)
	})

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

// doJSON issues a request with an optional bearer token and decodes the
// JSON response into out (which may be nil).
func doJSON(t *testing.T, srv *httptest.Server, method, path, bearer string, body interface{}, out interface{}) int {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode request body: %v", err)
		}
	}

	req, err := http.NewRequest(method, srv.URL+path, &buf)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode response from %s %s: %v", method, path, err)
		}
	}
	return resp.StatusCode
}

func registerAndToken(t *testing.T, srv *httptest.Server, role, name, org string) string {
	t.Helper()
	var resp struct {
		Token string `json:"token"`
	}
	status := doJSON(t, srv, http.MethodPost, "/auth/register", "", map[string]string{
		"email":        uuid.New().String() + "@example.com",
		"password":     "test-password",
		"name":         name,
		"role":         role,
		"organization": org,
	}, &resp)
	if status != http.StatusCreated {
		t.Fatalf("register %s: status = %d, want 201", role, status)
	}
	if resp.Token == "" {
		t.Fatal("register returned no token")
	}
	return resp.Token
}

func createDonationHTTP(t *testing.T, srv *httptest.Server, donorToken, foodType string, quantity int) models.Donation {
	t.Helper()
	var resp struct {
		Message  string          `json:"message"`
		Donation models.Donation `json:"donation"`
	}
	status := doJSON(t, srv, http.MethodPost, "/donor/donations", donorToken, map[string]interface{}{
		"foodType":       foodType,
		"quantity":       quantity,
		"expirationDate": time.Now().UTC().Add(48 * time.Hour).Format(time.RFC3339),
		"pickupLocation": "123 Main St",
	}, &resp)
	if status != http.StatusCreated {
		t.Fatalf("create donation: status = %d, want 201", status)
	}
	return resp.Donation
}

func TestRegisterAndLogin(t *testing.T) {
	srv := setupTestServer(t)

	email := uuid.New().String() + "@example.com"
	var reg struct {
		Token string `json:"token"`
	}
	status := doJSON(t, srv, http.MethodPost, "/auth/register", "", map[string]string{
		"email":    email,
		"password": "test-password",
		"name":     "Dana Donor",
		"role":     "donor",
	}, &reg)
	if status != http.StatusCreated || reg.Token == "" {
		t.Fatalf("register: status = %d, token = %q", status, reg.Token)
	}

	// Duplicate registration conflicts.
	status = doJSON(t, srv, http.MethodPost, "/auth/register", "", map[string]string{
		"email":    email,
		"password": "other-password",
		"name":     "Dana Again",
		"role":     "donor",
	}, nil)
	if status != http.StatusConflict {
		t.Errorf("duplicate register: status = %d, want 409", status)
	}

	// Missing fields are rejected.
	status = doJSON(t, srv, http.MethodPost, "/auth/register", "", map[string]string{
		"email": "incomplete@example.com",
	}, nil)
	if status != http.StatusBadRequest {
		t.Errorf("invalid register: status = %d, want 400", status)
	}

	var login struct {
		Token string `json:"token"`
	}
	status = doJSON(t, srv, http.MethodPost, "/auth/login", "", map[string]string{
		"email":    email,
		"password": "test-password",
	}, &login)
	if status != http.StatusOK || login.Token == "" {
		t.Errorf("login: status = %d, token = %q", status, login.Token)
	}

	status = doJSON(t, srv, http.MethodPost, "/auth/login", "", map[string]string{
		"email":    email,
		"password": "wrong-password",
	}, nil)
	if status != http.StatusUnauthorized {
		t.Errorf("bad login: status = %d, want 401", status)
	}
}

func TestAuthMiddleware(t *testing.T) {
	srv := setupTestServer(t)
	donorToken := registerAndToken(t, srv, "donor", "Dana Donor", "City Bakery")

	// No token.
	if status := doJSON(t, srv, http.MethodGet, "/recipient/dashboard", "", nil, nil); status != http.StatusUnauthorized {
		t.Errorf("no token: status = %d, want 401", status)
	}

	// Garbage token.
	if status := doJSON(t, srv, http.MethodGet, "/recipient/dashboard", "garbage", nil, nil); status != http.StatusUnauthorized {
		t.Errorf("garbage token: status = %d, want 401", status)
	}

	// Wrong role.
	if status := doJSON(t, srv, http.MethodGet, "/recipient/dashboard", donorToken, nil, nil); status != http.StatusForbidden {
		t.Errorf("donor on recipient route: status = %d, want 403", status)
	}
	recipientToken := registerAndToken(t, srv, "recipient", "Food Bank West", "")
	if status := doJSON(t, srv, http.MethodGet, "/donor/dashboard", recipientToken, nil, nil); status != http.StatusForbidden {
		t.Errorf("recipient on donor route: status = %d, want 403", status)
	}
}

func TestClaimFlow(t *testing.T) {
	srv := setupTestServer(t)
	donorToken := registerAndToken(t, srv, "donor", "Dana Donor", "City Bakery")
	recipientToken := registerAndToken(t, srv, "recipient", "Food Bank West", "")

	d := createDonationHTTP(t, srv, donorToken, "Bread", 10)

	// The listing shows up on the recipient dashboard with donor annotation.
	var dash struct {
		AvailableDonations []models.Donation `json:"availableDonations"`
	}
	if status := doJSON(t, srv, http.MethodGet, "/recipient/dashboard", recipientToken, nil, &dash); status != http.StatusOK {
		t.Fatalf("dashboard: status = %d, want 200", status)
	}
	if len(dash.AvailableDonations) != 1 {
		t.Fatalf("dashboard listings = %d, want 1", len(dash.AvailableDonations))
	}
	if dash.AvailableDonations[0].DonorOrg != "City Bakery" {
		t.Errorf("DonorOrg = %q, want City Bakery", dash.AvailableDonations[0].DonorOrg)
	}

	// Detail view.
	var detail models.Donation
	if status := doJSON(t, srv, http.MethodGet, "/recipient/dashboard/"+d.ID, recipientToken, nil, &detail); status != http.StatusOK {
		t.Fatalf("detail: status = %d, want 200", status)
	}
	if detail.FoodType != "Bread" {
		t.Errorf("detail FoodType = %q, want Bread", detail.FoodType)
	}

	// Claim.
	var claim struct {
		Message  string          `json:"message"`
		Donation models.Donation `json:"donation"`
		Receipt  models.Receipt  `json:"receipt"`
	}
	if status := doJSON(t, srv, http.MethodPost, "/recipient/claim/"+d.ID, recipientToken, nil, &claim); status != http.StatusOK {
		t.Fatalf("claim: status = %d, want 200", status)
	}
	if claim.Donation.Status != models.StatusClaimed {
		t.Errorf("claimed donation status = %q, want claimed", claim.Donation.Status)
	}
	if claim.Receipt.ItemName != "Bread" || claim.Receipt.Quantity != 10 {
		t.Errorf("receipt = %q/%d, want Bread/10", claim.Receipt.ItemName, claim.Receipt.Quantity)
	}
	if claim.Receipt.Recipient != "Food Bank West" {
		t.Errorf("receipt Recipient = %q, want Food Bank West", claim.Receipt.Recipient)
	}
	if claim.Receipt.Status != models.ReceiptStatus {
		t.Errorf("receipt Status = %q, want %q", claim.Receipt.Status, models.ReceiptStatus)
	}
	if !strings.HasPrefix(claim.Receipt.QRCode, "data:image/png;base64,") {
		t.Errorf("receipt QRCode is not a PNG data URL: %.40q", claim.Receipt.QRCode)
	}

	// A second claim reports the conflict with the current status.
	var conflict struct {
		Error         string `json:"error"`
		CurrentStatus string `json:"currentStatus"`
	}
	if status := doJSON(t, srv, http.MethodPost, "/recipient/claim/"+d.ID, recipientToken, nil, &conflict); status != http.StatusBadRequest {
		t.Fatalf("re-claim: status = %d, want 400", status)
	}
	if conflict.CurrentStatus != string(models.StatusClaimed) {
		t.Errorf("currentStatus = %q, want claimed", conflict.CurrentStatus)
	}

	// Claimed donations leave the dashboard.
	if status := doJSON(t, srv, http.MethodGet, "/recipient/dashboard", recipientToken, nil, &dash); status != http.StatusOK {
		t.Fatalf("dashboard after claim: status = %d, want 200", status)
	}
	if len(dash.AvailableDonations) != 0 {
		t.Errorf("dashboard listings after claim = %d, want 0", len(dash.AvailableDonations))
	}
}

func TestClaim_BadIDs(t *testing.T) {
	srv := setupTestServer(t)
	recipientToken := registerAndToken(t, srv, "recipient", "Food Bank West", "")

	if status := doJSON(t, srv, http.MethodPost, "/recipient/claim/not-a-uuid", recipientToken, nil, nil); status != http.StatusBadRequest {
		t.Errorf("malformed id: status = %d, want 400", status)
	}
	if status := doJSON(t, srv, http.MethodPost, "/recipient/claim/"+uuid.New().String(), recipientToken, nil, nil); status != http.StatusNotFound {
		t.Errorf("missing id: status = %d, want 404", status)
	}
}

func TestSearch(t *testing.T) {
	srv := setupTestServer(t)
	donorToken := registerAndToken(t, srv, "donor", "Dana Donor", "")
	recipientToken := registerAndToken(t, srv, "recipient", "Food Bank West", "")

	createDonationHTTP(t, srv, donorToken, "Sourdough Bread", 10)
	createDonationHTTP(t, srv, donorToken, "Rye Bread", 3)
	createDonationHTTP(t, srv, donorToken, "Rice", 20)

	var resp struct {
		MatchingDonations []models.Donation `json:"matchingDonations"`
	}
	status := doJSON(t, srv, http.MethodPost, "/recipient/search", recipientToken, map[string]interface{}{
		"foodType": "bread",
		"quantity": 5,
	}, &resp)
	if status != http.StatusOK {
		t.Fatalf("search: status = %d, want 200", status)
	}
	if len(resp.MatchingDonations) != 1 {
		t.Fatalf("matches = %d, want 1", len(resp.MatchingDonations))
	}
	if resp.MatchingDonations[0].FoodType != "Sourdough Bread" {
		t.Errorf("match = %q, want Sourdough Bread", resp.MatchingDonations[0].FoodType)
	}

	// Negative quantity is rejected.
	status = doJSON(t, srv, http.MethodPost, "/recipient/search", recipientToken, map[string]interface{}{
		"quantity": -1,
	}, nil)
	if status != http.StatusBadRequest {
		t.Errorf("negative quantity: status = %d, want 400", status)
	}

	// Empty filter matches everything available.
	status = doJSON(t, srv, http.MethodPost, "/recipient/search", recipientToken, map[string]interface{}{}, &resp)
	if status != http.StatusOK || len(resp.MatchingDonations) != 3 {
		t.Errorf("empty filter: status = %d, matches = %d, want 200/3", status, len(resp.MatchingDonations))
	}
}

func TestDonorDashboard(t *testing.T) {
	srv := setupTestServer(t)
	donorToken := registerAndToken(t, srv, "donor", "Dana Donor", "")

	createDonationHTTP(t, srv, donorToken, "Bread", 10)
	createDonationHTTP(t, srv, donorToken, "Rice", 5)

	var dash struct {
		TotalDonations  int `json:"totalDonations"`
		TotalQuantity   int `json:"totalQuantity"`
		RecentDonations []struct {
			Month    string `json:"month"`
			Quantity int    `json:"quantity"`
		} `json:"recentDonations"`
	}
	if status := doJSON(t, srv, http.MethodGet, "/donor/dashboard", donorToken, nil, &dash); status != http.StatusOK {
		t.Fatalf("dashboard: status = %d, want 200", status)
	}
	if dash.TotalDonations != 2 {
		t.Errorf("totalDonations = %d, want 2", dash.TotalDonations)
	}
	if dash.TotalQuantity != 15 {
		t.Errorf("totalQuantity = %d, want 15", dash.TotalQuantity)
	}
	if len(dash.RecentDonations) != 2 {
		t.Errorf("recentDonations = %d, want 2", len(dash.RecentDonations))
	}
}

func TestCreateDonation_Validation(t *testing.T) {
	srv := setupTestServer(t)
	donorToken := registerAndToken(t, srv, "donor", "Dana Donor", "")

	bad := []map[string]interface{}{
		{"quantity": 10, "expirationDate": "2026-09-01T00:00:00Z", "pickupLocation": "x"},
		{"foodType": "Bread", "quantity": 0, "expirationDate": "2026-09-01T00:00:00Z", "pickupLocation": "x"},
		{"foodType": "Bread", "quantity": 10, "expirationDate": "next tuesday", "pickupLocation": "x"},
		{"foodType": "Bread", "quantity": 10, "expirationDate": "2026-09-01T00:00:00Z"},
	}
	for i, body := range bad {
		if status := doJSON(t, srv, http.MethodPost, "/donor/donations", donorToken, body, nil); status != http.StatusBadRequest {
			t.Errorf("bad input %d: status = %d, want 400", i, status)
		}
	}
}
