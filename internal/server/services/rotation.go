package services

// RejectReason identifies why a refresh attempt was refused. Each validation
// step of the exchange reports its own reason so callers and tests can
// assert on the exact cause instead of matching message strings.
type RejectReason int

const (
	// ReasonNotYetExpired: the presented access token is still live; an
	// exchange is only permitted once it has actually expired.
	ReasonNotYetExpired RejectReason = iota
	// ReasonNotFound: no stored refresh token holds the presented value.
	ReasonNotFound
	// ReasonExpired: the refresh token itself is past its expiry.
	ReasonExpired
	// ReasonInvalidated: the refresh token was revoked by logout or
	// logout-all.
	ReasonInvalidated
	// ReasonAlreadyUsed: the refresh token was already redeemed once
	// (replay detection).
	ReasonAlreadyUsed
	// ReasonPairingMismatch: the refresh token is paired with a different
	// access token than the one presented.
	ReasonPairingMismatch
)

func (r RejectReason) String() string {
	switch r {
	case ReasonNotYetExpired:
		return "access token has not expired"
	case ReasonNotFound:
		return "refresh token does not exist"
	case ReasonExpired:
		return "refresh token has expired"
	case ReasonInvalidated:
		return "refresh token is not valid"
	case ReasonAlreadyUsed:
		return "refresh token has been used"
	case ReasonPairingMismatch:
		return "refresh token does not match access token"
	default:
		return "unknown"
	}
}

// RotationError is the tagged rejection result of a refresh attempt.
type RotationError struct {
	Reason RejectReason
}

func (e *RotationError) Error() string {
	return "refresh rejected: " + e.Reason.String()
}

// rejected is shorthand for building a RotationError.
func rejected(reason RejectReason) error {
	return &RotationError{Reason: reason}
}
