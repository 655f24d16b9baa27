package models

import (
	"time"

	"github.com/google/uuid"
)

type Meaning struct {
	Value string `json:"value"`
	IsA   bool   `json:"is_a"`
}

// Entry belongs to a List by UUID. The owning list may itself be
// tombstoned; orphaned entries are tolerated on deletion.
type Entry struct {
	ListUUID uuid.UUID `json:"list"`
	UUID     uuid.UUID `json:"uuid"`
	Tip      string    `json:"tip"`
	Changed  time.Time `json:"changed"`
	Meanings []Meaning `json:"meanings"`
}

type EntryTombstone struct {
	ListUUID  uuid.UUID `json:"list"`
	EntryUUID uuid.UUID `json:"entry"`
	DeletedAt time.Time `json:"time"`
}
