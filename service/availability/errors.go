package availabilitysvc

import "errors"

type ErrCode string

const (
	ErrBadInput     ErrCode = "BAD_INPUT"
	ErrInvalidRange ErrCode = "INVALID_RANGE"
	ErrStorage      ErrCode = "STORAGE_ERROR"
	ErrTimeout      ErrCode = "TIMEOUT"
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

func Code(err error) ErrCode {
	var ce interface{ Code() ErrCode }
	if errors.As(err, &ce) {
		return ce.Code()
	}
	return ""
}
