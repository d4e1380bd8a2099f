// Package data provides the thread-safe upstream status container for
// the PBS authority API. It holds an atomic snapshot of the most recent
// catalog probe for the health endpoint. It is not a cache: lookup
// requests always re-resolve the catalog version and never read from
// this container.
package data

import (
	"sync/atomic"
	"time"

	"github.com/giygas/pbs-authority-api/interfaces"
	"github.com/giygas/pbs-authority-api/logging"
)

// Compile-time check to ensure StatusContainer implements StatusStore
var _ interfaces.StatusStore = (*StatusContainer)(nil)

// StatusContainer holds upstream probe state with atomic values for
// lock-free reads.
type StatusContainer struct {
	snapshot        atomic.Value // interfaces.ProbeSnapshot
	lastSuccess     atomic.Value // time.Time
	probing         atomic.Bool
	serverStartTime atomic.Value // time.Time
}

// NewStatusContainer creates a container with empty probe state.
func NewStatusContainer() *StatusContainer {
	sc := &StatusContainer{}
	sc.snapshot.Store(interfaces.ProbeSnapshot{})
	sc.lastSuccess.Store(time.Time{})
	sc.serverStartTime.Store(time.Now())
	return sc
}

// RecordProbe stores the result of one upstream probe.
func (sc *StatusContainer) RecordProbe(snapshot interfaces.ProbeSnapshot) {
	sc.snapshot.Store(snapshot)
	if snapshot.Error == "" {
		sc.lastSuccess.Store(snapshot.CheckedAt)
	}
}

// GetSnapshot returns the most recent probe result.
func (sc *StatusContainer) GetSnapshot() interfaces.ProbeSnapshot {
	if v := sc.snapshot.Load(); v != nil {
		if snapshot, ok := v.(interfaces.ProbeSnapshot); ok {
			return snapshot
		}
	}

	logging.Warn("Probe snapshot is empty or invalid")
	return interfaces.ProbeSnapshot{}
}

// GetLastSuccess returns the time of the last successful probe.
func (sc *StatusContainer) GetLastSuccess() time.Time {
	if v := sc.lastSuccess.Load(); v != nil {
		if t, ok := v.(time.Time); ok {
			return t
		}
	}

	logging.Warn("Could not get the last successful probe time")
	return time.Time{}
}

// GetServerStartTime returns when the server started.
func (sc *StatusContainer) GetServerStartTime() time.Time {
	if v := sc.serverStartTime.Load(); v != nil {
		if t, ok := v.(time.Time); ok {
			return t
		}
	}

	return time.Time{}
}

// BeginProbe acquires the probe slot; false means a probe is already
// running.
func (sc *StatusContainer) BeginProbe() bool {
	return sc.probing.CompareAndSwap(false, true)
}

// EndProbe releases the probe slot.
func (sc *StatusContainer) EndProbe() {
	sc.probing.Store(false)
}

// IsProbing reports whether a probe is currently running.
func (sc *StatusContainer) IsProbing() bool {
	return sc.probing.Load()
}
