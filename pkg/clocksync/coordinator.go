package clocksync

import (
	"github.com/laphir/mitherm/pkg/advertparser"
	"github.com/laphir/mitherm/pkg/blecentral"
	"github.com/laphir/mitherm/pkg/deviceregistry"
	"github.com/laphir/mitherm/pkg/mithermtypes"
	"sync"
)

// syncs one device's clock. implemented by Syncer; tests substitute fakes.
type DeviceSyncer interface {
	Sync(address uint64, timezoneHour *int, offsetSeconds *int) error
}

// Decides, per advertisement, whether to run the clock sync protocol. Each
// device is acted on at most once per session: a successful sync (or a
// configured omit) marks its address handled, a failed sync leaves it
// eligible for retry on its next advertisement.
type Coordinator struct {
	registry deviceregistry.Registry
	syncer   DeviceSyncer
	events   chan<- mithermtypes.SyncEvent

	// held for the whole decide-and-act sequence, so overlapping callbacks
	// for the same address cannot both observe "not yet handled" and both
	// start a protocol run
	mu      sync.Mutex
	handled map[uint64]struct{}
}

func NewCoordinator(
	registry deviceregistry.Registry,
	syncer DeviceSyncer,
	events chan<- mithermtypes.SyncEvent,
) *Coordinator {
	return &Coordinator{
		registry: registry,
		syncer:   syncer,
		events:   events,
		handled:  map[uint64]struct{}{},
	}
}

// invoked on the BLE stack's thread, once per received advertisement
func (c *Coordinator) OnAdvertisement(adv *blecentral.Advertisement) {
	reading := advertparser.Decode(adv)

	switch reading.Kind {
	case mithermtypes.ReadingTemperature, mithermtypes.ReadingHumidity:
		// a sensor we can act on
	default:
		// battery might be sent from other devices, so it doesn't qualify
		return
	}

	address := reading.Address

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, alreadyHandled := c.handled[address]; alreadyHandled {
		return
	}

	device := c.registry.Get(address)

	if device != nil && device.IsOmit() {
		c.handled[address] = struct{}{}
		c.events <- mithermtypes.SyncEvent{Kind: mithermtypes.SyncProgress, Address: address, Text: "Configured as Omit"}
		return
	}

	var timezoneHour *int
	var offsetSeconds *int
	if device != nil {
		timezoneHour = device.TimezoneDiffHour()
		offsetSeconds = device.OffsetSeconds
	}

	if err := c.syncer.Sync(address, timezoneHour, offsetSeconds); err != nil {
		// not marked handled - the device stays eligible for a retry
		c.events <- mithermtypes.SyncEvent{Kind: mithermtypes.SyncError, Address: address, Text: err.Error()}
		return
	}

	c.handled[address] = struct{}{}
}

// blocks until an in-flight advertisement callback (if any) has finished.
// used on session teardown, after unsubscribing, to guarantee nothing is
// still writing to the event queue.
func (c *Coordinator) WaitIdle() {
	c.mu.Lock()
	c.mu.Unlock()
}

func (c *Coordinator) IsHandled(address uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, handled := c.handled[address]
	return handled
}

func (c *Coordinator) HandledCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.handled)
}
