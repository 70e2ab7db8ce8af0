package domain

// RoomID is a caller-chosen grouping key. A room has no stored state of its
// own; it exists only while at least one connection references it.
type RoomID string
