package model

import (
	"time"

	"github.com/oklog/ulid/v2"
)

// NewRunID returns a ULID carrying the run's creation time, so run IDs sort
// in submission order.
func NewRunID(createdAt time.Time) string {
	return ulid.MustNew(ulid.Timestamp(createdAt), ulid.DefaultEntropy()).String()
}
