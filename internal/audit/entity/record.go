package entity

import "time"

// Record is one append-only entry in the action history.
type Record struct {
	ID        string    `db:"id" json:"id"`
	ActorID   string    `db:"actor_id" json:"actor_id"`
	ActorName string    `db:"actor_name" json:"actor_name"`
	Action    string    `db:"action" json:"action"`
	Outcome   string    `db:"outcome" json:"outcome"`
	Detail    string    `db:"detail" json:"detail,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
