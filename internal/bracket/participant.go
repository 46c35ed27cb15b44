package bracket

import (
	"time"

	"github.com/google/uuid"
)

type Participant struct {
	ID        uuid.UUID `db:"id" json:"id"`
	UserID    string    `db:"user_id" json:"user_id"`
	Nickname  string    `db:"nickname" json:"nickname"`
	Character *string   `db:"character_name" json:"character,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
