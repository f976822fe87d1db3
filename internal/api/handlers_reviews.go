package api

import (
	"net/http"

	"marketplace/internal/models"
	"marketplace/internal/service"
)

type reviewRequest struct {
	ListingID int64  `json:"listingId" validate:"required,gt=0"`
	Rating    int    `json:"rating" validate:"required"`
	Comment   string `json:"comment" validate:"max=2000"`
}

func (s *HTTPServer) handleAddReview(w http.ResponseWriter, r *http.Request) {
	var req reviewRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	claims := claimsFrom(r.Context())
	result, err := s.services.Reviews.AddOrUpdate(r.Context(), claims.UserID, service.ReviewInput{
		ListingID: req.ListingID,
		Rating:    req.Rating,
		Comment:   req.Comment,
	})
	if err != nil {
		s.writeServiceError(w, r, err, "Listing")
		return
	}

	status := http.StatusOK
	message := "Review updated successfully"
	if result.Created {
		status = http.StatusCreated
		message = "Review added successfully"
	}
	writeJSON(w, status, map[string]any{
		"message":        message,
		"review":         result.Review,
		"average_rating": result.AverageRating,
	})
}

func (s *HTTPServer) handleListingReviews(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "listingId")
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid listing id")
		return
	}

	reviews, err := s.services.Reviews.ListingReviews(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, r, err, "Listing")
		return
	}
	if reviews == nil {
		reviews = []models.Review{}
	}
	writeJSON(w, http.StatusOK, reviews)
}

func (s *HTTPServer) handleProviderReviewStats(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r.Context())
	stats, err := s.services.Reviews.ProviderStats(r.Context(), claims.UserID)
	if err != nil {
		s.writeServiceError(w, r, err, "Provider")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
