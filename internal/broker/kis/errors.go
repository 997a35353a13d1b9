package kis

import (
	"errors"
	"fmt"
)

type ErrorKind int

const (
	KindAuthentication ErrorKind = iota + 1
	KindValidation
	KindRejection
	KindTransport
)

func (k ErrorKind) String() string {
	switch k {
	case KindAuthentication:
		return "authentication"
	case KindValidation:
		return "validation"
	case KindRejection:
		return "rejection"
	case KindTransport:
		return "transport"
	default:
		return "unknown"
	}
}

// Validation causes, wrapped inside a KindValidation *Error.
var (
	ErrInvalidStockCode  = errors.New("stock code must be exactly 6 characters")
	ErrPriceRequired     = errors.New("price is required unless the order is a market order")
	ErrInvalidQuantity   = errors.New("quantity must be positive")
	ErrInvalidDivision   = errors.New("unknown order division code")
	ErrLiveOnly          = errors.New("operation is only supported for live accounts")
	ErrUnknownInstrument = errors.New("stock code is not in the instrument master")
	ErrMissingOrderRef   = errors.New("org number and order number are required")
	ErrEmptyToken        = errors.New("no access token")
)

// Error is the single failure type returned by the gateway and authenticator.
type Error struct {
	Kind    ErrorKind
	Op      string
	MsgCode string // msg_cd on rejection
	Message string // msg1 on rejection
	Raw     string // raw response body when one was received
	Err     error
}

func (e *Error) Error() string {
	switch {
	case e.Kind == KindRejection:
		return fmt.Sprintf("kis %s: rejected [%s] %s", e.Op, e.MsgCode, e.Message)
	case e.Err != nil:
		return fmt.Sprintf("kis %s: %s failure: %v", e.Op, e.Kind, e.Err)
	default:
		return fmt.Sprintf("kis %s: %s failure", e.Op, e.Kind)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf reports the kind of the first *Error in err's chain, or 0.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

func IsRejection(err error) bool { return KindOf(err) == KindRejection }

func validationErr(op string, cause error) *Error {
	return &Error{Kind: KindValidation, Op: op, Err: cause}
}

func authErr(op string, raw string, cause error) *Error {
	return &Error{Kind: KindAuthentication, Op: op, Raw: raw, Err: cause}
}

func transportErr(op string, raw string, cause error) *Error {
	return &Error{Kind: KindTransport, Op: op, Raw: raw, Err: cause}
}
