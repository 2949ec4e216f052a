// Package app provides the application service layer.
//
// Service.Join subscribes a connection to a playlist and runs its relay pair:
// inbound (user -> playlist) and outbound (playlist -> user) goroutines coupled by
// a context whose cancel func only inbound holds. Service.Status answers the
// read-only user count query. Depends on domain interfaces and the playlist
// registry, not on any transport.
package app
