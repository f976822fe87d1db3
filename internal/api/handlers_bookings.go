package api

import (
	"bytes"
	"fmt"
	"net/http"
	"time"

	"marketplace/internal/export"
	"marketplace/internal/models"
)

type createBookingRequest struct {
	ListingID   int64  `json:"listingId" validate:"required,gt=0"`
	BookingDate string `json:"booking_date" validate:"required"`
}

type updateStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

func (s *HTTPServer) handleCreateBooking(w http.ResponseWriter, r *http.Request) {
	var req createBookingRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	claims := claimsFrom(r.Context())
	booking, err := s.services.Bookings.CreateBooking(r.Context(), claims.UserID, req.ListingID, req.BookingDate)
	if err != nil {
		s.writeServiceError(w, r, err, "Listing")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"message": "Booking created and pending approval",
		"booking": booking,
	})
}

func (s *HTTPServer) handleCustomerBookings(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r.Context())
	bookings, err := s.services.Bookings.CustomerBookings(r.Context(), claims.UserID)
	if err != nil {
		s.writeServiceError(w, r, err, "Booking")
		return
	}
	writeBookings(w, bookings)
}

func (s *HTTPServer) handleProviderBookings(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r.Context())
	bookings, err := s.services.Bookings.ProviderBookings(r.Context(), claims.UserID)
	if err != nil {
		s.writeServiceError(w, r, err, "Booking")
		return
	}
	writeBookings(w, bookings)
}

func writeBookings(w http.ResponseWriter, bookings []models.Booking) {
	if bookings == nil {
		bookings = []models.Booking{}
	}
	writeJSON(w, http.StatusOK, bookings)
}

func (s *HTTPServer) handleExportBookings(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r.Context())
	bookings, err := s.services.Bookings.ProviderBookings(r.Context(), claims.UserID)
	if err != nil {
		s.writeServiceError(w, r, err, "Booking")
		return
	}

	var buf bytes.Buffer
	if err := export.WriteProviderBookings(&buf, bookings); err != nil {
		s.writeServiceError(w, r, err, "Booking")
		return
	}

	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", export.FileName(claims.UserID, time.Now())))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func (s *HTTPServer) handleUpdateBookingStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid booking id")
		return
	}

	var req updateStatusRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	claims := claimsFrom(r.Context())
	booking, err := s.services.Bookings.UpdateStatus(r.Context(), claims.UserID, id, req.Status)
	if err != nil {
		s.writeServiceError(w, r, err, "Booking")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Booking status updated to " + booking.Status,
		"booking": booking,
	})
}
