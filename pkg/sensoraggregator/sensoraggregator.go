package sensoraggregator

// Accumulates the latest reading per device for the observation-only scan
// mode. Last value wins - no averaging, no timestamping.

import (
	"github.com/laphir/mitherm/pkg/mithermtypes"
	"sync"
)

type Snapshot struct {
	Temperature *float32
	Humidity    *float32
	Battery     *float32
}

type Aggregator struct {
	mu        sync.Mutex
	snapshots map[uint64]*Snapshot
}

func New() *Aggregator {
	return &Aggregator{
		snapshots: map[uint64]*Snapshot{},
	}
}

func (a *Aggregator) Observe(reading mithermtypes.Reading) {
	switch reading.Kind {
	case mithermtypes.ReadingTemperature, mithermtypes.ReadingHumidity, mithermtypes.ReadingBattery:
	default:
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	snapshot := a.snapshots[reading.Address]
	if snapshot == nil {
		snapshot = &Snapshot{}
		a.snapshots[reading.Address] = snapshot
	}

	value := reading.Value

	switch reading.Kind {
	case mithermtypes.ReadingTemperature:
		snapshot.Temperature = &value
	case mithermtypes.ReadingHumidity:
		snapshot.Humidity = &value
	case mithermtypes.ReadingBattery:
		snapshot.Battery = &value
	}
}

// copy of the accumulated state, for the session-end summary
func (a *Aggregator) Snapshots() map[uint64]Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()

	snapshots := map[uint64]Snapshot{}
	for address, snapshot := range a.snapshots {
		snapshots[address] = *snapshot
	}

	return snapshots
}
