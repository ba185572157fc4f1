// Package id allocates process-unique opaque identifiers.
package id

import "github.com/google/uuid"

func New() string {
	return uuid.NewString()
}
