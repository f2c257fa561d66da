package clocksync

import (
	"errors"
	"github.com/function61/gokit/assert"
	"github.com/laphir/mitherm/pkg/blecentral"
	"github.com/laphir/mitherm/pkg/deviceregistry"
	"github.com/laphir/mitherm/pkg/mithermtypes"
	"sync"
	"testing"
	"time"
	"tinygo.org/x/bluetooth"
)

func temperatureAdvertisement(address uint64) *blecentral.Advertisement {
	// sub-type 4 (temperature) at offset 14, value 250 (25.0 degrees) at 17-18
	data := make([]byte, 19)
	data[14] = 4
	data[17] = 0xfa
	data[18] = 0x00

	return &blecentral.Advertisement{
		Address:  address,
		Services: []bluetooth.UUID{blecentral.EnvironmentalSensingServiceUUID},
		Sections: []blecentral.DataSection{
			{Type: blecentral.SectionTypeServiceData, Data: data},
		},
	}
}

func batteryAdvertisement(address uint64) *blecentral.Advertisement {
	data := make([]byte, 18)
	data[14] = 10
	data[17] = 80

	adv := temperatureAdvertisement(address)
	adv.Sections[0].Data = data
	return adv
}

func parseRegistry(t *testing.T, content string) deviceregistry.Registry {
	t.Helper()

	conf, err := deviceregistry.Parse([]byte(content))
	assert.True(t, err == nil)

	return conf.Registry()
}

func TestCoordinatorSyncsOnceOnSuccess(t *testing.T) {
	central := newFakeCentral()
	events := make(chan mithermtypes.SyncEvent, 32)

	syncer := NewSyncer(central, events)
	syncer.Now = func() uint64 { return 1000 }

	coordinator := NewCoordinator(deviceregistry.Registry{}, syncer, events)

	coordinator.OnAdvertisement(temperatureAdvertisement(0xaabbcc))
	coordinator.OnAdvertisement(temperatureAdvertisement(0xaabbcc))

	// second advertisement was an idempotent no-op
	assert.True(t, central.connects() == 1)
	assert.True(t, coordinator.IsHandled(0xaabbcc))
	assert.True(t, coordinator.HandledCount() == 1)
}

func TestCoordinatorRetriesAfterFailure(t *testing.T) {
	central := newFakeCentral()
	central.connectErr = errFakeTransport

	events := make(chan mithermtypes.SyncEvent, 32)
	syncer := NewSyncer(central, events)

	coordinator := NewCoordinator(deviceregistry.Registry{}, syncer, events)

	coordinator.OnAdvertisement(temperatureAdvertisement(0xaabbcc))

	// failed => stays eligible, and the failure was reported
	assert.True(t, !coordinator.IsHandled(0xaabbcc))

	errorEvent := <-events // Connecting...
	errorEvent = <-events
	assert.True(t, errorEvent.Kind == mithermtypes.SyncError)
	assert.EqualString(t, errorEvent.Text, "Failed to connect")

	// the radio recovers; the next advertisement retries and succeeds
	central.connectErr = nil
	coordinator.OnAdvertisement(temperatureAdvertisement(0xaabbcc))

	assert.True(t, central.connects() == 2)
	assert.True(t, coordinator.IsHandled(0xaabbcc))
}

func TestCoordinatorOmit(t *testing.T) {
	registry := parseRegistry(t, `
[[device]]
address = "00:00:00:aa:bb:cc"
name = "bedroom"
omit = true
`)

	central := newFakeCentral()
	events := make(chan mithermtypes.SyncEvent, 32)

	coordinator := NewCoordinator(registry, NewSyncer(central, events), events)

	coordinator.OnAdvertisement(temperatureAdvertisement(0xaabbcc))
	coordinator.OnAdvertisement(temperatureAdvertisement(0xaabbcc))

	// never reached the protocol, marked handled after exactly one event
	assert.True(t, central.connects() == 0)
	assert.True(t, coordinator.IsHandled(0xaabbcc))

	event := <-events
	assert.True(t, event.Kind == mithermtypes.SyncProgress)
	assert.EqualString(t, event.Text, "Configured as Omit")

	select {
	case <-events:
		t.Error("expected no further events")
	default:
	}
}

func TestCoordinatorIgnoresBatteryAndForeignTraffic(t *testing.T) {
	central := newFakeCentral()
	events := make(chan mithermtypes.SyncEvent, 32)

	coordinator := NewCoordinator(deviceregistry.Registry{}, NewSyncer(central, events), events)

	// battery may originate from unrelated devices
	coordinator.OnAdvertisement(batteryAdvertisement(0xaabbcc))
	// not this vendor's packet at all
	coordinator.OnAdvertisement(&blecentral.Advertisement{Address: 0xaabbcc})
	coordinator.OnAdvertisement(nil)

	assert.True(t, central.connects() == 0)
	assert.True(t, coordinator.HandledCount() == 0)
}

func TestCoordinatorPassesConfiguredTimezoneAndOffset(t *testing.T) {
	registry := parseRegistry(t, `
[[device]]
address = "00:00:00:aa:bb:cc"
timezone = "Asia/Seoul"
offset_seconds = 120
`)

	recorded := &recordingSyncer{}
	events := make(chan mithermtypes.SyncEvent, 32)

	coordinator := NewCoordinator(registry, recorded, events)
	coordinator.OnAdvertisement(temperatureAdvertisement(0xaabbcc))

	assert.True(t, recorded.calls == 1)
	assert.True(t, recorded.timezoneHour != nil && *recorded.timezoneHour == 9)
	assert.True(t, recorded.offsetSeconds != nil && *recorded.offsetSeconds == 120)

	// unconfigured device gets neither
	coordinator.OnAdvertisement(temperatureAdvertisement(0xddeeff))
	assert.True(t, recorded.timezoneHour == nil)
	assert.True(t, recorded.offsetSeconds == nil)
}

func TestCoordinatorOverlappingAdvertisements(t *testing.T) {
	central := newFakeCentral()
	central.connectDelay = 50 * time.Millisecond

	events := make(chan mithermtypes.SyncEvent, 64)
	syncer := NewSyncer(central, events)
	syncer.Now = func() uint64 { return 1000 }

	coordinator := NewCoordinator(deviceregistry.Registry{}, syncer, events)

	// two callbacks racing on the same address must produce one protocol run
	wg := sync.WaitGroup{}
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			coordinator.OnAdvertisement(temperatureAdvertisement(0xaabbcc))
		}()
	}
	wg.Wait()

	assert.True(t, central.connects() == 1)
	assert.True(t, coordinator.IsHandled(0xaabbcc))
	assert.True(t, coordinator.HandledCount() == 1)
}

type recordingSyncer struct {
	calls         int
	timezoneHour  *int
	offsetSeconds *int
}

func (s *recordingSyncer) Sync(address uint64, timezoneHour *int, offsetSeconds *int) error {
	s.calls++
	s.timezoneHour = timezoneHour
	s.offsetSeconds = offsetSeconds
	return errors.New("recorded only")
}
