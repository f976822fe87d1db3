package api

import (
	"net/http"
	"strconv"
	"strings"

	"marketplace/internal/models"
	"marketplace/internal/service"
)

type createListingRequest struct {
	Title        string   `json:"title" validate:"required,max=200"`
	Description  string   `json:"description" validate:"max=5000"`
	Price        float64  `json:"price" validate:"required,gt=0"`
	City         string   `json:"city" validate:"required,max=100"`
	ServiceName  string   `json:"serviceName" validate:"required"`
	Availability []string `json:"availability" validate:"required"`
}

func (s *HTTPServer) handleCreateListing(w http.ResponseWriter, r *http.Request) {
	var req createListingRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	claims := claimsFrom(r.Context())
	listing, err := s.services.Listings.Create(r.Context(), claims.UserID, service.CreateListingInput{
		Title:        req.Title,
		Description:  req.Description,
		Price:        req.Price,
		City:         req.City,
		ServiceName:  req.ServiceName,
		Availability: req.Availability,
	})
	if err != nil {
		s.writeServiceError(w, r, err, "Listing")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"message":   "Listing created successfully",
		"listingId": listing.ID,
	})
}

func (s *HTTPServer) handleListListings(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := models.ListingFilter{
		City:     strings.TrimSpace(q.Get("city")),
		Category: strings.TrimSpace(q.Get("category")),
	}

	for _, p := range []struct {
		name string
		dst  **float64
	}{
		{"price_min", &filter.PriceMin},
		{"price_max", &filter.PriceMax},
	} {
		raw := strings.TrimSpace(q.Get(p.name))
		if raw == "" {
			continue
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, p.name+" must be a number")
			return
		}
		*p.dst = &v
	}

	listings, err := s.services.Listings.List(r.Context(), filter)
	if err != nil {
		s.writeServiceError(w, r, err, "Listing")
		return
	}
	if listings == nil {
		listings = []models.Listing{}
	}
	writeJSON(w, http.StatusOK, listings)
}

func (s *HTTPServer) handleGetListing(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid listing id")
		return
	}

	listing, err := s.services.Listings.Get(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, r, err, "Listing")
		return
	}
	writeJSON(w, http.StatusOK, listing)
}

func (s *HTTPServer) handleServices(w http.ResponseWriter, r *http.Request) {
	services, err := s.services.Listings.Services(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err, "Service")
		return
	}
	if services == nil {
		services = []models.Service{}
	}
	writeJSON(w, http.StatusOK, services)
}
