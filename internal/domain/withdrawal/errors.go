package withdrawal

import (
	"errors"

	"github.com/luckbet/luckbet-go/internal/api"
)

var ErrInvalidAmount = errors.New("withdrawal amount must be positive")

// AlreadyProcessed reports whether the server refused a decision
// because another approver got there first or the request expired.
func AlreadyProcessed(err error) bool {
	return api.HasCode(err, api.CodeAlreadyProcessed) || api.HasCode(err, api.CodeRequestExpired)
}
