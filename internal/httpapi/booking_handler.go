package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/julienschmidt/httprouter"

	"github.com/Leganyst/room-booking/internal/apperror"
	"github.com/Leganyst/room-booking/internal/calendar"
	"github.com/Leganyst/room-booking/internal/logger"
	"github.com/Leganyst/room-booking/internal/model"
	"github.com/Leganyst/room-booking/internal/service"
)

// BookingService — операции движка бронирования, нужные HTTP-слою.
type BookingService interface {
	ListRooms() []string
	Now() time.Time
	ActiveBookingsForUser(ctx context.Context, userID int64, now time.Time) ([]model.Booking, error)
	BookingsOnDate(ctx context.Context, date time.Time, loc *time.Location) ([]service.BookingWithOwner, error)
	ValidateAndCreate(ctx context.Context, userID int64, req service.NewBooking, now time.Time) (*model.Booking, error)
	Cancel(ctx context.Context, bookingID, userID int64) (*model.Booking, error)
}

type BookingHandler struct {
	service  BookingService
	validate *validator.Validate
	log      *logger.Logger
}

func NewBookingHandler(svc BookingService, log *logger.Logger) (*BookingHandler, error) {
	v, err := newValidator()
	if err != nil {
		return nil, err
	}
	return &BookingHandler{service: svc, validate: v, log: log}, nil
}

// ownerView — в дневном представлении владелец виден только по username.
type ownerView struct {
	Username string `json:"username"`
}

type publicBooking struct {
	ID            int64     `json:"id"`
	Room          string    `json:"room"`
	StartTime     time.Time `json:"start_time"`
	EndTime       time.Time `json:"end_time"`
	OccupantLabel string    `json:"occupant_label"`
	Reason        *string   `json:"reason,omitempty"`
	User          ownerView `json:"user"`

	// дублирует occupant_label для статического Mini App
	UserRoomNumber string `json:"user_room_number"`
}

func (h *BookingHandler) ListRooms(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	if err := writeJSON(w, http.StatusOK, h.service.ListRooms()); err != nil {
		h.log.Error("failed to write response", "handler", "ListRooms", "error", err)
	}
}

// BookingsOnDate — GET ?date=YYYY-MM-DD[&tz=Europe/Moscow].
func (h *BookingHandler) BookingsOnDate(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	query := r.URL.Query()

	date, err := calendar.ParseDate(query.Get("date"))
	if err != nil {
		writeError(w, r, h.log, "BookingsOnDate",
			apperror.InvalidInput(fmt.Sprintf("invalid date parameter %q, expected YYYY-MM-DD", query.Get("date"))))
		return
	}

	var loc *time.Location
	if tz := query.Get("tz"); tz != "" {
		loc, err = time.LoadLocation(tz)
		if err != nil {
			writeError(w, r, h.log, "BookingsOnDate",
				apperror.InvalidInput(fmt.Sprintf("unknown time zone %q", tz)))
			return
		}
	}

	bookings, err := h.service.BookingsOnDate(r.Context(), date, loc)
	if err != nil {
		writeError(w, r, h.log, "BookingsOnDate", err)
		return
	}

	out := make([]publicBooking, 0, len(bookings))
	for _, b := range bookings {
		out = append(out, publicBooking{
			ID:             b.ID,
			Room:           b.Room,
			StartTime:      b.StartTime,
			EndTime:        b.EndTime,
			OccupantLabel:  b.OccupantLabel,
			Reason:         b.Reason,
			User:           ownerView{Username: b.Username},
			UserRoomNumber: b.OccupantLabel,
		})
	}

	if err := writeJSON(w, http.StatusOK, out); err != nil {
		h.log.Error("failed to write response", "handler", "BookingsOnDate", "error", err)
	}
}

func (h *BookingHandler) MyBookings(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	user, _ := UserFromContext(r.Context())

	bookings, err := h.service.ActiveBookingsForUser(r.Context(), user.ID, h.service.Now())
	if err != nil {
		writeError(w, r, h.log, "MyBookings", err)
		return
	}
	if bookings == nil {
		bookings = []model.Booking{}
	}

	if err := writeJSON(w, http.StatusOK, bookings); err != nil {
		h.log.Error("failed to write response", "handler", "MyBookings", "error", err)
	}
}

func (h *BookingHandler) Create(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	user, _ := UserFromContext(r.Context())

	var req createBookingRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, h.log, "Create", err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, r, h.log, "Create", validationFailed(err))
		return
	}

	booking, err := h.service.ValidateAndCreate(r.Context(), user.ID, service.NewBooking{
		Room:          req.Room,
		Start:         req.StartTime,
		End:           req.EndTime,
		OccupantLabel: req.occupantLabel(),
		Reason:        req.Reason,
	}, h.service.Now())
	if err != nil {
		writeError(w, r, h.log, "Create", err)
		return
	}

	if err := writeJSON(w, http.StatusCreated, booking); err != nil {
		h.log.Error("failed to write response", "handler", "Create", "error", err)
	}
}

func (h *BookingHandler) Delete(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	user, _ := UserFromContext(r.Context())

	id, err := strconv.ParseInt(ps.ByName("id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, r, h.log, "Delete", apperror.InvalidInput("invalid booking id"))
		return
	}

	if _, err := h.service.Cancel(r.Context(), id, user.ID); err != nil {
		writeError(w, r, h.log, "Delete", err)
		return
	}

	if err := writeJSON(w, http.StatusOK, map[string]bool{"ok": true}); err != nil {
		h.log.Error("failed to write response", "handler", "Delete", "error", err)
	}
}

func (h *BookingHandler) RegisterRoutes(router *httprouter.Router, auth *Authenticator) {
	router.GET("/api/rooms", h.ListRooms)
	router.GET("/api/bookings", auth.Require(h.BookingsOnDate))
	router.GET("/api/bookings-by-date", auth.Require(h.BookingsOnDate))
	router.GET("/api/my-bookings", auth.Require(h.MyBookings))
	router.POST("/api/book", auth.Require(h.Create))
	router.DELETE("/api/booking/:id", auth.Require(h.Delete))
}
