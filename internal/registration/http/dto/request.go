// Package dto provides data transfer objects for HTTP request and response handling.
package dto

import (
	validation "github.com/jellydator/validation"
)

// StatusQuery contains the query parameters for the progress status endpoint.
// LastVersion lets a poller ask "anything newer than what I have?".
type StatusQuery struct {
	LastVersion int64 `form:"lastVersion"`
}

// Validate checks if the status query is valid.
func (q *StatusQuery) Validate() error {
	return validation.ValidateStruct(q,
		validation.Field(&q.LastVersion,
			validation.Min(int64(0)),
		),
	)
}
