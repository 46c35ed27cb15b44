package service

import (
	"errors"
	"fmt"
)

var (
	ErrNotAuthorized            = errors.New("not authorized")
	ErrRegistrationClosed       = errors.New("registration is closed")
	ErrAlreadyRegistered        = errors.New("already registered")
	ErrNicknameTaken            = errors.New("nickname is already taken")
	ErrCharacterTaken           = errors.New("character is already taken")
	ErrInvalidSelection         = errors.New("invalid selection")
	ErrInsufficientParticipants = errors.New("at least two participants are required")
	ErrTournamentAlreadyStarted = errors.New("tournament already started")
	ErrMatchNotFound            = errors.New("match not found")
	ErrAlreadyResolved          = errors.New("match already resolved")
	ErrInvalidWinner            = errors.New("player is not part of this match")
	ErrStorageUnavailable       = errors.New("storage unavailable")

	ErrNoRegistrationInProgress = errors.New("no registration in progress")
	ErrInvalidNickname          = errors.New("nickname must not be empty")
	ErrNoCharactersAvailable    = errors.New("no characters left to choose from")
	ErrInvalidMode              = errors.New("unknown registration mode")
	ErrNotRegistered            = errors.New("not registered")
	ErrEmptyMessage             = errors.New("message must not be empty")
	ErrEmptyPool                = errors.New("cannot generate a round without entrants")
)

// storageErr marks err as a storage failure while keeping the cause.
func storageErr(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrStorageUnavailable, err)
}
