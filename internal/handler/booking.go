package handler

import (
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/smart-parking/internal/dto"
	"github.com/iliyamo/smart-parking/internal/service"
)

// BookingHandler serves hourly bookings and subscription passes. Both
// charge and refund through the wallet ledger inside the service.
type BookingHandler struct {
	bookings *service.BookingService
}

func NewBookingHandler(bookings *service.BookingService) *BookingHandler {
	return &BookingHandler{bookings: bookings}
}

func (h *BookingHandler) Create(c echo.Context) error {
	uid, err := userID(c)
	if err != nil {
		return err
	}
	var req dto.BookingRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	b, err := h.bookings.CreateBooking(ctx, uid, req.Booking())
	if err != nil {
		return err
	}
	return created(c, dto.FromBooking(b), "Booking created successfully")
}

func (h *BookingHandler) Mine(c echo.Context) error {
	uid, err := userID(c)
	if err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	bs, err := h.bookings.MyBookings(ctx, uid)
	if err != nil {
		return err
	}
	return ok(c, dto.FromBookings(bs))
}

func (h *BookingHandler) Cancel(c echo.Context) error {
	uid, err := userID(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	b, res, err := h.bookings.CancelBooking(ctx, uid, id)
	if err != nil {
		return err
	}
	return done(c, dto.FromBookingCancel(b, res), "Booking cancelled successfully")
}

// Scan marks an upcoming booking as in use at the gate.
func (h *BookingHandler) Scan(c echo.Context) error {
	uid, err := userID(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	b, err := h.bookings.ScanBooking(ctx, uid, id)
	if err != nil {
		return err
	}
	return done(c, dto.FromBooking(b), "Booking scanned")
}

func (h *BookingHandler) Purchase(c echo.Context) error {
	uid, err := userID(c)
	if err != nil {
		return err
	}
	var req dto.PassRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	p, err := h.bookings.PurchasePass(ctx, uid, req.Pass())
	if err != nil {
		return err
	}
	return created(c, dto.FromPass(p), "Subscription purchased successfully")
}

func (h *BookingHandler) MyPasses(c echo.Context) error {
	uid, err := userID(c)
	if err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	ps, err := h.bookings.MyPasses(ctx, uid)
	if err != nil {
		return err
	}
	return ok(c, dto.FromPasses(ps))
}

func (h *BookingHandler) CancelPass(c echo.Context) error {
	uid, err := userID(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	p, res, err := h.bookings.CancelPass(ctx, uid, id)
	if err != nil {
		return err
	}
	return done(c, dto.FromPassCancel(p, res), "Subscription cancelled successfully")
}

func (h *BookingHandler) ScanPass(c echo.Context) error {
	uid, err := userID(c)
	if err != nil {
		return err
	}
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	p, err := h.bookings.ScanPass(ctx, uid, id)
	if err != nil {
		return err
	}
	return done(c, dto.FromPass(p), "Subscription scanned")
}

// Availability takes zone_id and an optional start/end window.
func (h *BookingHandler) Availability(c echo.Context) error {
	var (
		zoneID     uint64
		start, end time.Time
		err        error
	)
	if v := queryInt(c, "zone_id", 0); v > 0 {
		zoneID = uint64(v)
	} else if zoneID, err = pathID(c, "id"); err != nil {
		return err
	}
	if c.QueryParam("start") != "" {
		if start, err = queryTime(c, "start"); err != nil {
			return err
		}
	}
	if c.QueryParam("end") != "" {
		if end, err = queryTime(c, "end"); err != nil {
			return err
		}
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	a, err := h.bookings.Availability(ctx, zoneID, start, end)
	if err != nil {
		return err
	}
	return ok(c, dto.FromAvailability(a))
}
