package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/jredh-dev/surpluserve/internal/donation"
	"github.com/jredh-dev/surpluserve/internal/store"
	"github.com/jredh-dev/surpluserve/pkg/models"
)

// RecipientDashboard lists all claimable donations.
// GET /recipient/dashboard
func (h *Handler) RecipientDashboard(w http.ResponseWriter, r *http.Request) {
	donations, err := h.donations.ListAvailable(r.Context())
	if err != nil {
		log.Printf("error listing available donations: %v", err)
		jsonError(w, "server error", http.StatusInternalServerError)
		return
	}
	if donations == nil {
		donations = []models.Donation{}
	}
	jsonOK(w, http.StatusOK, map[string]interface{}{"availableDonations": donations})
}

// DonationByID returns one donation with its donor organization.
// GET /recipient/dashboard/{id}
func (h *Handler) DonationByID(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	d, err := h.donations.Lookup(r.Context(), id)
	switch {
	case errors.Is(err, donation.ErrInvalidID):
		jsonError(w, "invalid donation id format", http.StatusBadRequest)
		return
	case errors.Is(err, donation.ErrNotFound):
		jsonError(w, "donation not found", http.StatusNotFound)
		return
	case err != nil:
		log.Printf("error fetching donation %s: %v", id, err)
		jsonError(w, "server error", http.StatusInternalServerError)
		return
	}
	jsonOK(w, http.StatusOK, d)
}

// Claim claims a donation for the calling recipient and returns the
// receipt.
// POST /recipient/claim/{id}
func (h *Handler) Claim(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	caller, _ := IdentityFromContext(r.Context())

	d, rcpt, err := h.donations.Claim(r.Context(), id, caller)

	var conflict *donation.AlreadyClaimedError
	switch {
	case errors.Is(err, donation.ErrInvalidID):
		jsonError(w, "invalid donation id format", http.StatusBadRequest)
		return
	case errors.Is(err, donation.ErrNotFound):
		jsonError(w, "donation not found", http.StatusNotFound)
		return
	case errors.Is(err, donation.ErrUnauthenticated):
		jsonError(w, "user not authenticated", http.StatusUnauthorized)
		return
	case errors.As(err, &conflict):
		jsonOK(w, http.StatusBadRequest, map[string]interface{}{
			"error":         "donation already claimed",
			"currentStatus": conflict.Status,
		})
		return
	case err != nil:
		log.Printf("error claiming donation %s: %v", id, err)
		jsonError(w, "server error", http.StatusInternalServerError)
		return
	}

	jsonOK(w, http.StatusOK, map[string]interface{}{
		"message":  "Donation claimed successfully",
		"donation": d,
		"receipt":  rcpt,
	})
}

type searchReq struct {
	FoodType string `json:"foodType"`
	Quantity int    `json:"quantity"`
}

// Search filters claimable donations by food type substring and minimum
// quantity.
// POST /recipient/search
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	var req searchReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Quantity < 0 {
		jsonError(w, "quantity must not be negative", http.StatusBadRequest)
		return
	}

	matches, err := h.donations.Search(r.Context(), store.Filter{
		FoodType:    req.FoodType,
		MinQuantity: req.Quantity,
	})
	if err != nil {
		log.Printf("error searching donations: %v", err)
		jsonError(w, "server error", http.StatusInternalServerError)
		return
	}
	if matches == nil {
		matches = []models.Donation{}
	}
	jsonOK(w, http.StatusOK, map[string]interface{}{"matchingDonations": matches})
}
