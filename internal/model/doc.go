// Package model defines the domain types shared across the sync core:
// entity updates and snapshots flowing from the stream and poller, and
// the priority/channel enums used by the notification governor.
package model
