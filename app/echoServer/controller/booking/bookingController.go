package booking

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/photsathonspd1-create/bann-mae-villa-sub000/app/echoServer/validation"
	"github.com/photsathonspd1-create/bann-mae-villa-sub000/model"
	notifyrepo "github.com/photsathonspd1-create/bann-mae-villa-sub000/repository/notify"
	bookingsvc "github.com/photsathonspd1-create/bann-mae-villa-sub000/service/booking"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

// Invalidator drops cached availability for a villa.
type Invalidator interface {
	Invalidate(ctx context.Context, resourceID string)
}

type Controller struct {
	Svc    bookingsvc.Service
	Avail  Invalidator
	Notify notifyrepo.Notifier
	V      *validator.Validate
	Log    *slog.Logger
}

// POST /v1/admin/bookings
func (h *Controller) Create(c echo.Context) error {
	return h.create(c, notifyrepo.EventCreated, h.Svc.Create)
}

// POST /v1/admin/bookings/holds
func (h *Controller) Hold(c echo.Context) error {
	return h.create(c, notifyrepo.EventHeld, h.Svc.Hold)
}

type createFn func(ctx context.Context, resourceID string, start, end time.Time, notes *string) (*model.Booking, error)

func (h *Controller) create(c echo.Context, event string, fn createFn) error {
	var req CreateBookingReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid json"})
	}
	if err := h.V.Struct(req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "validation error", "errors": validation.Fields(err)})
	}
	start, _ := model.ParseDate(req.StartDate)
	end, _ := model.ParseDate(req.EndDate)

	ctx := c.Request().Context()
	b, err := fn(ctx, req.VillaID, start, end, req.Notes)
	if err != nil {
		return h.fail(c, "booking "+event, err)
	}
	h.afterWrite(ctx, b, event)
	return c.JSON(http.StatusCreated, toResp(b))
}

// GET /v1/admin/bookings/:id
func (h *Controller) Detail(c echo.Context) error {
	b, err := h.Svc.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return h.fail(c, "booking detail", err)
	}
	return c.JSON(http.StatusOK, toResp(b))
}

// GET /v1/admin/villas/:villaId/bookings
func (h *Controller) ListByVilla(c echo.Context) error {
	rows, err := h.Svc.ListByResource(c.Request().Context(), c.Param("villaId"))
	if err != nil {
		return h.fail(c, "booking list", err)
	}
	return c.JSON(http.StatusOK, echo.Map{"data": toResps(rows)})
}

// PATCH /v1/admin/bookings/:id
func (h *Controller) Update(c echo.Context) error {
	id := c.Param("id")
	var req UpdateBookingReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid json"})
	}
	if err := h.V.Struct(req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "validation error", "errors": validation.Fields(err)})
	}
	if req.StartDate == nil && req.EndDate == nil && req.Notes == nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "nothing to update"})
	}
	start, err := parseOpt(req.StartDate)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid start_date"})
	}
	end, err := parseOpt(req.EndDate)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid end_date"})
	}

	ctx := c.Request().Context()
	var b *model.Booking
	if start != nil || end != nil {
		if b, err = h.Svc.Reschedule(ctx, id, start, end); err != nil {
			return h.fail(c, "booking reschedule", err)
		}
		h.afterWrite(ctx, b, "")
	}
	if req.Notes != nil {
		notes := req.Notes
		if *notes == "" {
			notes = nil
		}
		if b, err = h.Svc.EditNotes(ctx, id, notes); err != nil {
			return h.fail(c, "booking notes", err)
		}
	}
	return c.JSON(http.StatusOK, toResp(b))
}

// PATCH /v1/admin/bookings/:id/status
func (h *Controller) ChangeStatus(c echo.Context) error {
	var req ChangeStatusReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid json"})
	}
	if err := h.V.Struct(req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "validation error", "errors": validation.Fields(err)})
	}

	ctx := c.Request().Context()
	id := c.Param("id")
	b, changed, err := h.Svc.ChangeStatus(ctx, id, model.BookingStatus(req.Status))
	if err != nil {
		return h.fail(c, "booking status", err)
	}
	if !changed {
		return c.JSON(http.StatusOK, toResp(b))
	}
	event := ""
	if b.Status == model.BookingCancelled {
		event = notifyrepo.EventCancelled
	}
	h.afterWrite(ctx, b, event)
	return c.JSON(http.StatusOK, toResp(b))
}

// DELETE /v1/admin/bookings/:id
func (h *Controller) Remove(c echo.Context) error {
	ctx := c.Request().Context()
	id := c.Param("id")
	b, err := h.Svc.Get(ctx, id)
	if err != nil {
		return h.fail(c, "booking remove", err)
	}
	if err := h.Svc.Remove(ctx, id); err != nil {
		return h.fail(c, "booking remove", err)
	}
	h.afterWrite(ctx, b, "")
	return c.NoContent(http.StatusNoContent)
}

// afterWrite runs the side effects of a committed change. Neither can fail
// the request.
func (h *Controller) afterWrite(ctx context.Context, b *model.Booking, event string) {
	ctx = context.WithoutCancel(ctx)
	if h.Avail != nil {
		h.Avail.Invalidate(ctx, b.ResourceID)
	}
	if event == "" || h.Notify == nil {
		return
	}
	pctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := h.Notify.Publish(pctx, notifyrepo.NewEvent(event, b, time.Now().UTC())); err != nil {
		h.Log.Error("publish booking event", "event", event, "booking_id", b.ID, "err", err)
	}
}

func (h *Controller) fail(c echo.Context, op string, err error) error {
	switch bookingsvc.Code(err) {
	case bookingsvc.ErrBadInput:
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid input"})
	case bookingsvc.ErrInvalidRange:
		return c.JSON(http.StatusUnprocessableEntity, echo.Map{"message": "start_date must be before end_date"})
	case bookingsvc.ErrInvalidStatus:
		return c.JSON(http.StatusUnprocessableEntity, echo.Map{"message": "status must be BOOKED or CANCELLED"})
	case bookingsvc.ErrNotFound:
		return c.JSON(http.StatusNotFound, echo.Map{"message": "booking not found"})
	case bookingsvc.ErrConflict:
		body := echo.Map{"message": "dates already booked"}
		if ce, ok := bookingsvc.AsConflict(err); ok && ce.BookingID != "" {
			body["conflict"] = echo.Map{
				"booking_id": ce.BookingID,
				"start_date": model.FormatDate(ce.Range.Start),
				"end_date":   model.FormatDate(ce.Range.End),
			}
		}
		return c.JSON(http.StatusConflict, body)
	case bookingsvc.ErrTimeout:
		h.Log.Error(op, "err", err)
		return c.JSON(http.StatusGatewayTimeout, echo.Map{"message": "request timed out"})
	default:
		h.Log.Error(op, "err", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "internal error"})
	}
}
