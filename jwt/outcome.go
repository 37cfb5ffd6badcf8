package jwt

import "errors"

// Status classifies the result of verifying a token.
type Status uint8

const (
	// StatusValid is an authentic, unexpired token.
	StatusValid Status = iota
	// StatusExpired is an authentic token past its expiry.
	StatusExpired
	// StatusMalformed is a token that could not be decoded.
	StatusMalformed
	// StatusSignatureInvalid is a decodable token that failed signature or algorithm checks.
	StatusSignatureInvalid
)

func (s Status) String() string {
	switch s {
	case StatusValid:
		return "valid"
	case StatusExpired:
		return "expired"
	case StatusMalformed:
		return "malformed"
	case StatusSignatureInvalid:
		return "signature_invalid"
	default:
		return "unknown"
	}
}

// Outcome is the tagged result of [Codec.Classify]. Token is set for
// StatusValid and StatusExpired.
type Outcome struct {
	Status Status
	Token  *Verified
	Err    error
}

// Classify verifies encoded and folds the result into an Outcome.
func (c *Codec) Classify(encoded string) Outcome {
	verified, err := c.Verify(encoded)
	return Outcome{Status: StatusOf(err), Token: verified, Err: err}
}

// StatusOf maps a Verify error to its Status. Unknown errors are treated as malformed.
func StatusOf(err error) Status {
	switch {
	case err == nil:
		return StatusValid
	case errors.Is(err, ErrTokenExpired):
		return StatusExpired
	case errors.Is(err, ErrTokenSignatureInvalid):
		return StatusSignatureInvalid
	default:
		return StatusMalformed
	}
}
