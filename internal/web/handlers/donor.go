package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/jredh-dev/surpluserve/internal/donation"
)

// recentDonationCount caps the dashboard's recent-activity list.
const recentDonationCount = 5

// DonorDashboard summarizes the calling donor's listings.
// GET /donor/dashboard
func (h *Handler) DonorDashboard(w http.ResponseWriter, r *http.Request) {
	caller, _ := IdentityFromContext(r.Context())

	donations, err := h.donations.DonationsByDonor(r.Context(), caller.ID)
	if err != nil {
		log.Printf("error loading donor dashboard for %s: %v", caller.ID, err)
		jsonError(w, "server error", http.StatusInternalServerError)
		return
	}

	totalQuantity := 0
	for _, d := range donations {
		totalQuantity += d.Quantity
	}

	type recentEntry struct {
		Month    string `json:"month"`
		Quantity int    `json:"quantity"`
	}
	recent := []recentEntry{}
	for i, d := range donations {
		if i == recentDonationCount {
			break
		}
		recent = append(recent, recentEntry{
			Month:    d.CreatedAt.Format("Jan"),
			Quantity: d.Quantity,
		})
	}

	jsonOK(w, http.StatusOK, map[string]interface{}{
		"totalDonations":  len(donations),
		"totalQuantity":   totalQuantity,
		"recentDonations": recent,
	})
}

type createDonationReq struct {
	FoodType       string   `json:"foodType"`
	Quantity       int      `json:"quantity"`
	ExpirationDate string   `json:"expirationDate"` // RFC 3339
	PickupLocation string   `json:"pickupLocation"`
	Images         []string `json:"images"`
}

// CreateDonation lists a new donation for the calling donor.
// POST /donor/donations
func (h *Handler) CreateDonation(w http.ResponseWriter, r *http.Request) {
	caller, _ := IdentityFromContext(r.Context())

	var req createDonationReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.FoodType == "" || req.PickupLocation == "" || req.ExpirationDate == "" {
		jsonError(w, "foodType, quantity, expirationDate, and pickupLocation are required", http.StatusBadRequest)
		return
	}
	if req.Quantity <= 0 {
		jsonError(w, "quantity must be a positive integer", http.StatusBadRequest)
		return
	}

	expiration, err := time.Parse(time.RFC3339, req.ExpirationDate)
	if err != nil {
		jsonError(w, "expirationDate must be RFC 3339 format", http.StatusBadRequest)
		return
	}

	d, err := h.donations.Create(r.Context(), caller, donation.CreateInput{
		FoodType:       req.FoodType,
		Quantity:       req.Quantity,
		ExpirationDate: expiration,
		PickupLocation: req.PickupLocation,
		Images:         req.Images,
	})
	switch {
	case errors.Is(err, donation.ErrInvalidInput):
		jsonError(w, "missing or invalid donation fields", http.StatusBadRequest)
		return
	case errors.Is(err, donation.ErrUnauthenticated):
		jsonError(w, "user not authenticated", http.StatusUnauthorized)
		return
	case err != nil:
		log.Printf("error creating donation for %s: %v", caller.ID, err)
		jsonError(w, "server error", http.StatusInternalServerError)
		return
	}

	jsonOK(w, http.StatusCreated, map[string]interface{}{
		"message":  "Donation created successfully",
		"donation": d,
	})
}
