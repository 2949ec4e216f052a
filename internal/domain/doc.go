// Package domain defines the core domain types and interfaces.
//
// Messages, playlist status snapshots, the transport contract and sentinel errors.
// No implementation code - just contracts shared by playlist, app and adapters.
package domain
