package market

import (
	"errors"
	"fmt"
)

var (
	// ErrTradeNotFound is returned for an unknown trade id.
	ErrTradeNotFound = errors.New("market: trade not found")
	// ErrHouseholdNotFound is returned for an unknown household id.
	ErrHouseholdNotFound = errors.New("market: household not found")
	// ErrForbidden is returned when an actor may not act on a resource.
	ErrForbidden = errors.New("market: forbidden")
	// ErrInvalidTransition is returned on a backwards or terminal-leaving
	// trade status change.
	ErrInvalidTransition = errors.New("market: invalid status transition")
)

// ValidationError rejects a malformed trade request. It never implies any
// state mutation.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "market: invalid trade request: " + e.Reason
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// InsufficientEnergyError rejects a trade whose seller cannot cover the
// requested amount at submission time.
type InsufficientEnergyError struct {
	SellerID     string
	AvailableKWh float64
	RequestedKWh float64
}

func (e *InsufficientEnergyError) Error() string {
	return fmt.Sprintf("market: seller %s has %.3f kWh available, %.3f requested",
		e.SellerID, e.AvailableKWh, e.RequestedKWh)
}

// IsInsufficientEnergy reports whether err is an InsufficientEnergyError.
func IsInsufficientEnergy(err error) bool {
	var ie *InsufficientEnergyError
	return errors.As(err, &ie)
}

// ExecutionError records a mutation failure after a trade was accepted.
type ExecutionError struct {
	TradeID string
	Err     error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("market: trade %s execution failed: %v", e.TradeID, e.Err)
}

func (e *ExecutionError) Unwrap() error { return e.Err }
