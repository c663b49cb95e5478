package download

import (
	"errors"
	"fmt"
)

// ErrSizeMismatch is wrapped by TransferError when the stream ended short of, or
// past, the size the broker announced.
var ErrSizeMismatch = errors.New("size mismatch")

// TransferError reports a failed file stream. The partial file has already been
// removed when it is returned.
type TransferError struct {
	OrderID  string
	Path     string
	Status   int   // HTTP status of the download response, 0 if none arrived
	Written  int64 // bytes written before the failure
	Expected int64 // announced size, 0 if unknown
	Body     string
	Err      error
}

func (e *TransferError) Error() string {
	msg := fmt.Sprintf("download order %s", e.OrderID)
	if e.Path != "" {
		msg += " to " + e.Path
	}
	switch {
	case e.Status != 0 && e.Status != 200:
		msg += fmt.Sprintf(": HTTP %d", e.Status)
	case e.Expected > 0 && e.Written != e.Expected:
		msg += fmt.Sprintf(": wrote %d of %d bytes", e.Written, e.Expected)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	if e.Body != "" {
		msg += ": " + e.Body
	}
	return msg
}

func (e *TransferError) Unwrap() error { return e.Err }

// IsTransferError reports whether err is, or wraps, a TransferError.
func IsTransferError(err error) bool {
	var te *TransferError
	return errors.As(err, &te)
}
