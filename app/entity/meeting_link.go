package entity

// MeetingLink is one entry of the small shared conferencing-link pool.
// Availability is a predicate over booking time windows, not a flag: a
// link is free for a window if no other booking holding it overlaps.
type MeetingLink struct {
	ID  uint64
	URL string
}
