// Package metrics defines the Prometheus collectors for relays, playlists and HTTP traffic.
package metrics
