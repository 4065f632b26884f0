package settlement

import (
	"errors"
	"fmt"
)

// ErrSettlementInFlight is returned when a settlement for the same level is
// already running.
var ErrSettlementInFlight = errors.New("settlement already in progress")

// ValidationError is a local rejection made before any network call.
type ValidationError struct {
	LevelID int
	Reason  string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("level %d: %s", e.LevelID, e.Reason)
}

// IsValidation reports whether err is a local validation failure.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}
