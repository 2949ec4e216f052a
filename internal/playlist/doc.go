// Package playlist implements the playlist registry and its broadcast channels.
//
// Each playlist is a fixed-size ring with per-subscriber cursors: publishers never
// block, and a subscriber that falls more than the ring capacity behind observes a
// LagError and resumes from the oldest retained message.
// The Registry is a RWMutex-guarded map with check-again-under-write-lock creation.
package playlist
