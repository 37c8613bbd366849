package booking

import (
	"time"

	"github.com/photsathonspd1-create/bann-mae-villa-sub000/model"
)

type CreateBookingReq struct {
	VillaID   string  `json:"villa_id" validate:"required,max=64"`
	StartDate string  `json:"start_date" validate:"required,datetime=2006-01-02"`
	EndDate   string  `json:"end_date" validate:"required,datetime=2006-01-02"`
	Notes     *string `json:"notes" validate:"omitempty,max=2000"`
}

// UpdateBookingReq moves a booking and/or edits its notes. An empty
// notes string clears them.
type UpdateBookingReq struct {
	StartDate *string `json:"start_date" validate:"omitempty,datetime=2006-01-02"`
	EndDate   *string `json:"end_date" validate:"omitempty,datetime=2006-01-02"`
	Notes     *string `json:"notes" validate:"omitempty,max=2000"`
}

type ChangeStatusReq struct {
	Status string `json:"status" validate:"required"`
}

type BookingResp struct {
	ID        string     `json:"id"`
	VillaID   string     `json:"villa_id"`
	StartDate string     `json:"start_date"`
	EndDate   string     `json:"end_date"`
	Status    string     `json:"status"`
	HeldUntil *time.Time `json:"held_until,omitempty"`
	Notes     *string    `json:"notes,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

func toResp(b *model.Booking) BookingResp {
	return BookingResp{
		ID:        b.ID,
		VillaID:   b.ResourceID,
		StartDate: model.FormatDate(b.StartDate),
		EndDate:   model.FormatDate(b.EndDate),
		Status:    string(b.Status),
		HeldUntil: b.HeldUntil,
		Notes:     b.Notes,
		CreatedAt: b.CreatedAt,
		UpdatedAt: b.UpdatedAt,
	}
}

func toResps(bs []model.Booking) []BookingResp {
	out := make([]BookingResp, 0, len(bs))
	for i := range bs {
		out = append(out, toResp(&bs[i]))
	}
	return out
}

func parseOpt(s *string) (*time.Time, error) {
	if s == nil {
		return nil, nil
	}
	d, err := model.ParseDate(*s)
	if err != nil {
		return nil, err
	}
	return &d, nil
}
