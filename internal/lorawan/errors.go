package lorawan

import "errors"

var (
	ErrInvalidMajor    = errors.New("lorawan: major version must be 0")
	ErrInvalidMType    = errors.New("lorawan: unrecognized MType code")
	ErrFrameTooShort   = errors.New("lorawan: frame too short for its type")
	ErrBadJoinRequest  = errors.New("lorawan: join request must be exactly 23 bytes")
	ErrBadJoinAccept   = errors.New("lorawan: join accept must be 17 or 33 bytes")
	ErrFOptsWithFPort0 = errors.New("lorawan: FPort 0 may not carry FOpts")
)
