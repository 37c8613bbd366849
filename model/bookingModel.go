// model/bookingModel.go
package model

import "time"

type BookingStatus string

const (
	BookingPending   BookingStatus = "PENDING"
	BookingBooked    BookingStatus = "BOOKED"
	BookingCancelled BookingStatus = "CANCELLED"
)

func (s BookingStatus) Valid() bool {
	switch s {
	case BookingPending, BookingBooked, BookingCancelled:
		return true
	}
	return false
}

type Booking struct {
	ID         string        `json:"id"`
	ResourceID string        `json:"villa_id"`
	StartDate  time.Time     `json:"start_date"`
	EndDate    time.Time     `json:"end_date"`
	Status     BookingStatus `json:"status"`
	HeldUntil  *time.Time    `json:"held_until,omitempty"`
	Notes      *string       `json:"notes,omitempty"`
	CreatedAt  time.Time     `json:"created_at"`
	UpdatedAt  time.Time     `json:"updated_at"`
}

func (b Booking) Interval() Interval {
	return Interval{Start: b.StartDate, End: b.EndDate}
}

// ActiveAt reports whether the booking counts for conflicts and availability.
// A hold stops counting once its deadline has passed.
func (b Booking) ActiveAt(now time.Time) bool {
	switch b.Status {
	case BookingBooked:
		return true
	case BookingPending:
		return b.HeldUntil != nil && now.Before(*b.HeldUntil)
	}
	return false
}

// BookingPatch carries the fields an update may touch. Nil means unchanged.
type BookingPatch struct {
	StartDate *time.Time
	EndDate   *time.Time
	Status    *BookingStatus
	HeldUntil **time.Time
	Notes     **string
}

func (p BookingPatch) Apply(b *Booking) {
	if p.StartDate != nil {
		b.StartDate = Day(*p.StartDate)
	}
	if p.EndDate != nil {
		b.EndDate = Day(*p.EndDate)
	}
	if p.Status != nil {
		b.Status = *p.Status
	}
	if p.HeldUntil != nil {
		b.HeldUntil = *p.HeldUntil
	}
	if p.Notes != nil {
		b.Notes = *p.Notes
	}
}
