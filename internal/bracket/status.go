package bracket

import "github.com/google/uuid"

type RegistrationMode string

const (
	ModeNicknameOnly         RegistrationMode = "nickname"
	ModeNicknameAndCharacter RegistrationMode = "nickname_character"
)

func (m RegistrationMode) Valid() bool {
	return m == ModeNicknameOnly || m == ModeNicknameAndCharacter
}

type FinishReason string

const (
	FinishNone                   FinishReason = ""
	FinishChampion               FinishReason = "champion"
	FinishNoEntrants             FinishReason = "no_entrants"
	FinishDoubleDisqualification FinishReason = "double_disqualification"
)

// TournamentStatus is the single process-wide tournament record.
type TournamentStatus struct {
	RegistrationOpen bool             `db:"registration_open" json:"registration_open"`
	Mode             RegistrationMode `db:"mode" json:"mode"`
	Finished         bool             `db:"finished" json:"finished"`
	ChampionID       *uuid.UUID       `db:"champion_id" json:"champion_id,omitempty"`
	FinishReason     FinishReason     `db:"finish_reason" json:"finish_reason,omitempty"`
}

type Phase string

const (
	PhaseIdle               Phase = "idle"
	PhaseRegistrationOpen   Phase = "registration_open"
	PhaseRegistrationClosed Phase = "registration_closed"
	PhaseInProgress         Phase = "in_progress"
	PhaseFinished           Phase = "finished"
)

// PhaseOf derives the tournament phase. currentRound is the highest generated
// round, zero when the tournament has not started.
func PhaseOf(status TournamentStatus, participantCount, currentRound int) Phase {
	switch {
	case status.Finished:
		return PhaseFinished
	case currentRound > 0:
		return PhaseInProgress
	case status.RegistrationOpen:
		return PhaseRegistrationOpen
	case participantCount > 0:
		return PhaseRegistrationClosed
	default:
		return PhaseIdle
	}
}
