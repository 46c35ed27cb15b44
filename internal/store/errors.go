package store

import (
	"errors"
	"strings"

	"github.com/mattn/go-sqlite3"
)

var (
	ErrNicknameConflict  = errors.New("nickname already registered")
	ErrCharacterConflict = errors.New("character already registered")
	ErrUserConflict      = errors.New("user already registered")
	ErrRoundExists       = errors.New("round already generated")
)

// constraintError maps sqlite uniqueness failures onto the store's conflict
// errors. Anything else is returned unchanged.
func constraintError(err error) error {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) || sqliteErr.Code != sqlite3.ErrConstraint {
		return err
	}
	if sqliteErr.ExtendedCode != sqlite3.ErrConstraintUnique && sqliteErr.ExtendedCode != sqlite3.ErrConstraintPrimaryKey {
		return err
	}

	msg := sqliteErr.Error()
	switch {
	case strings.Contains(msg, "participants.nickname"):
		return ErrNicknameConflict
	case strings.Contains(msg, "participants.character_name"):
		return ErrCharacterConflict
	case strings.Contains(msg, "participants.user_id"):
		return ErrUserConflict
	case strings.Contains(msg, "rounds.round_number"):
		return ErrRoundExists
	}
	return err
}
