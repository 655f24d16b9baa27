package models

import (
	"time"

	"github.com/google/uuid"
)

// List payload fields (name, name_a, name_b) are opaque to the server:
// merge logic only ever compares the changed timestamp.
type List struct {
	UUID    uuid.UUID `json:"uuid"`
	Name    string    `json:"name"`
	NameA   string    `json:"name_a"`
	NameB   string    `json:"name_b"`
	Changed time.Time `json:"changed"`
	Created time.Time `json:"created"`
}

// ListTombstone is a permanent deletion marker. Once present, the
// identifier can never hold a live record again.
type ListTombstone struct {
	ListUUID  uuid.UUID `json:"list"`
	DeletedAt time.Time `json:"time"`
}
