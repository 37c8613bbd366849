package availability

import (
	"log/slog"
	"net/http"

	"github.com/photsathonspd1-create/bann-mae-villa-sub000/model"
	availabilitysvc "github.com/photsathonspd1-create/bann-mae-villa-sub000/service/availability"

	"github.com/labstack/echo/v4"
)

type Controller struct {
	Svc availabilitysvc.Service
	Log *slog.Logger
}

type BlockedDaysResp struct {
	VillaID     string   `json:"villa_id"`
	From        string   `json:"from"`
	To          string   `json:"to"`
	BlockedDays []string `json:"blocked_days"`
}

type DayResp struct {
	VillaID   string `json:"villa_id"`
	Date      string `json:"date"`
	Available bool   `json:"available"`
}

// GET /v1/villas/:villaId/availability?from=YYYY-MM-DD&to=YYYY-MM-DD
func (h *Controller) BlockedDays(c echo.Context) error {
	villa := c.Param("villaId")
	from, err := model.ParseDate(c.QueryParam("from"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "from must be YYYY-MM-DD"})
	}
	to, err := model.ParseDate(c.QueryParam("to"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "to must be YYYY-MM-DD"})
	}

	days, err := h.Svc.BlockedDays(c.Request().Context(), villa, from, to)
	if err != nil {
		return h.fail(c, "blocked days", err)
	}
	out := make([]string, 0, len(days))
	for _, d := range days {
		out = append(out, model.FormatDate(d))
	}
	return c.JSON(http.StatusOK, BlockedDaysResp{
		VillaID:     villa,
		From:        model.FormatDate(from),
		To:          model.FormatDate(to),
		BlockedDays: out,
	})
}

// GET /v1/villas/:villaId/availability/:date
func (h *Controller) Day(c echo.Context) error {
	villa := c.Param("villaId")
	date, err := model.ParseDate(c.Param("date"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "date must be YYYY-MM-DD"})
	}
	ok, err := h.Svc.IsAvailable(c.Request().Context(), villa, date)
	if err != nil {
		return h.fail(c, "day availability", err)
	}
	return c.JSON(http.StatusOK, DayResp{VillaID: villa, Date: model.FormatDate(date), Available: ok})
}

func (h *Controller) fail(c echo.Context, op string, err error) error {
	switch availabilitysvc.Code(err) {
	case availabilitysvc.ErrBadInput:
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid input"})
	case availabilitysvc.ErrInvalidRange:
		return c.JSON(http.StatusUnprocessableEntity, echo.Map{"message": "from must not be after to, and the window is limited in length"})
	case availabilitysvc.ErrTimeout:
		h.Log.Error(op, "err", err)
		return c.JSON(http.StatusGatewayTimeout, echo.Map{"message": "request timed out"})
	default:
		h.Log.Error(op, "err", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "internal error"})
	}
}
