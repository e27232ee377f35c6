// Package corpus owns the user-maintained list of question/answer records:
// its storage backends, import/export format, validation and the HTTP
// management endpoints.
package corpus

import "time"

// QARecord is one user-authored question paired with its answer text. The
// answer may hold several correct options, one per line.
type QARecord struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// Op names a corpus mutation.
type Op string

const (
	OpAppend  Op = "append"
	OpUpdate  Op = "update"
	OpDelete  Op = "delete"
	OpReplace Op = "replace"
	OpSeed    Op = "seed"
)

// ChangeEvent is published after every corpus mutation so caches and
// analytics can react.
type ChangeEvent struct {
	Op        Op        `json:"op"`
	Index     int       `json:"index"`
	Count     int       `json:"count"`
	ChangedAt time.Time `json:"changed_at"`
}
