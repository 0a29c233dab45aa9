package storage

import "errors"

var (
	// ErrDuplicateKey means a batch repeats a (player_id, date) key.
	ErrDuplicateKey = errors.New("duplicate observation: (player_id, date) must be unique")

	// ErrInvalidInput means a row lacks its player id or date.
	ErrInvalidInput = errors.New("invalid observation")
)
