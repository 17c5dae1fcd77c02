package stream

import "time"

// heartbeatAction is the decision taken at one heartbeat check.
type heartbeatAction int

const (
	heartbeatOK    heartbeatAction = iota // inbound activity seen, nothing to do
	heartbeatProbe                        // quiet interval, send a probe
	heartbeatStale                        // second quiet interval, force reconnect
)

// heartbeatMonitor tracks inbound activity between fixed-interval
// checks. One quiet interval sends a probe; a second consecutive quiet
// interval declares the connection stale. This catches silently-dead
// connections (NAT timeouts) that otherwise stay "connected" forever.
type heartbeatMonitor struct {
	lastSeen time.Time
	probed   bool
}

// reset arms the monitor for a fresh connection.
func (h *heartbeatMonitor) reset(now time.Time) {
	h.lastSeen = now
	h.probed = false
}

// check decides the action for this interval given the connection's
// last observed inbound activity.
func (h *heartbeatMonitor) check(lastActivity time.Time) heartbeatAction {
	if lastActivity.After(h.lastSeen) {
		h.lastSeen = lastActivity
		h.probed = false
		return heartbeatOK
	}
	if !h.probed {
		h.probed = true
		return heartbeatProbe
	}
	return heartbeatStale
}
