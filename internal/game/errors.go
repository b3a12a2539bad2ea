package game

import (
	"errors"
	"fmt"
)

// RejectCode identifies why a command was rejected without mutating state
type RejectCode string

const (
	RejectRoomNotFound      RejectCode = "room_not_found"
	RejectRoomFull          RejectCode = "room_full"
	RejectSeatNotFound      RejectCode = "seat_not_found"
	RejectWrongPhase        RejectCode = "wrong_phase"
	RejectNotYourTurn       RejectCode = "not_your_turn"
	RejectInvalidWager      RejectCode = "invalid_wager"
	RejectInsufficientFunds RejectCode = "insufficient_funds"
	RejectInvalidState      RejectCode = "invalid_seat_state"
)

// RejectError is returned when a command's preconditions fail. The room is
// guaranteed unchanged and no broadcast is owed for it.
type RejectError struct {
	Code   RejectCode
	Reason string
}

func (e *RejectError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Reason)
}

func rejectf(code RejectCode, format string, args ...interface{}) *RejectError {
	return &RejectError{Code: code, Reason: fmt.Sprintf(format, args...)}
}

// AsReject unwraps a RejectError from err, if there is one
func AsReject(err error) (*RejectError, bool) {
	var re *RejectError
	if errors.As(err, &re) {
		return re, true
	}
	return nil, false
}
