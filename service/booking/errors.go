package bookingsvc

import (
	"errors"
	"fmt"

	"github.com/photsathonspd1-create/bann-mae-villa-sub000/model"
)

// errors used by controllers

type ErrCode string

const (
	ErrBadInput      ErrCode = "BAD_INPUT"
	ErrInvalidRange  ErrCode = "INVALID_RANGE"
	ErrConflict      ErrCode = "BOOKING_CONFLICT"
	ErrNotFound      ErrCode = "NOT_FOUND"
	ErrInvalidStatus ErrCode = "INVALID_STATUS"
	ErrStorage       ErrCode = "STORAGE_ERROR"
	ErrTimeout       ErrCode = "TIMEOUT"
)

type codedError struct {
	code ErrCode
	err  error
}

func (e codedError) Error() string {
	if e.err != nil {
		return string(e.code) + ": " + e.err.Error()
	}
	return string(e.code)
}
func (e codedError) Code() ErrCode { return e.code }
func (e codedError) Unwrap() error { return e.err }

func makeErr(c ErrCode) error            { return codedError{code: c} }
func wrapErr(c ErrCode, err error) error { return codedError{code: c, err: err} }

// ConflictError names the active booking a candidate range collides with.
// BookingID is empty when the overlap was rejected by the storage engine.
type ConflictError struct {
	BookingID string
	Range     model.Interval
}

func (e *ConflictError) Error() string {
	if e.BookingID == "" {
		return string(ErrConflict) + ": dates already booked"
	}
	return fmt.Sprintf("%s: overlaps booking %s (%s)", ErrConflict, e.BookingID, e.Range)
}

func (e *ConflictError) Code() ErrCode { return ErrConflict }

// Code extracts error code
func Code(err error) ErrCode {
	var ce interface{ Code() ErrCode }
	if errors.As(err, &ce) {
		return ce.Code()
	}
	return ""
}

// AsConflict returns the conflict details carried by err, if any.
func AsConflict(err error) (*ConflictError, bool) {
	var ce *ConflictError
	if errors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}
