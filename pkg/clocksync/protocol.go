package clocksync

// The clock sync protocol against one device, strictly sequential:
// connect -> service lookup -> characteristic lookup -> compute time ->
// write -> done. Each step emits a progress event before it is attempted;
// the first failing step aborts the whole run.

import (
	"encoding/binary"
	"errors"
	"fmt"
	"github.com/laphir/mitherm/pkg/blecentral"
	"github.com/laphir/mitherm/pkg/mithermtypes"
	"time"
)

const (
	// Korean standard time, written when no valid timezone is configured
	defaultTimezoneHour = 9

	minTimezoneHour = -24
	maxTimezoneHour = 24
)

type Syncer struct {
	central blecentral.Central
	events  chan<- mithermtypes.SyncEvent

	// current unix epoch second. swappable in tests.
	Now func() uint64
}

func NewSyncer(central blecentral.Central, events chan<- mithermtypes.SyncEvent) *Syncer {
	return &Syncer{
		central: central,
		events:  events,
		Now: func() uint64 {
			return uint64(time.Now().Unix())
		},
	}
}

func (s *Syncer) progress(address uint64, text string) {
	s.events <- mithermtypes.SyncEvent{Kind: mithermtypes.SyncProgress, Address: address, Text: text}
}

// writes current time + timezone to the device's clock characteristic.
// blocking; a run that has started always proceeds to a terminal result.
func (s *Syncer) Sync(address uint64, timezoneHour *int, offsetSeconds *int) error {
	s.progress(address, "Connecting...")

	device, err := s.central.Connect(address)
	if err != nil {
		return errors.New("Failed to connect")
	}
	defer device.Disconnect()

	s.progress(address, fmt.Sprintf("Querying service, UUID=%s", blecentral.ClockServiceUUID.String()))

	serviceQuery, err := device.QueryServices(blecentral.ClockServiceUUID)
	if err != nil {
		return errors.New("Failed to query service")
	}
	if serviceQuery.Status != blecentral.StatusSuccess {
		return errors.New("Communication error")
	}
	if len(serviceQuery.Services) == 0 {
		return errors.New("No services returned")
	}
	service := serviceQuery.Services[0]

	s.progress(address, fmt.Sprintf("Querying characteristic, UUID=%s", blecentral.ClockCharacteristicUUID.String()))

	characteristicQuery, err := service.QueryCharacteristics(blecentral.ClockCharacteristicUUID)
	if err != nil {
		return errors.New("Failed to query characteristic")
	}
	if characteristicQuery.Status != blecentral.StatusSuccess {
		return errors.New("Communication error")
	}
	if len(characteristicQuery.Characteristics) == 0 {
		return errors.New("No characteristic returned")
	}
	characteristic := characteristicQuery.Characteristics[0]

	epoch := s.Now()

	timezone := defaultTimezoneHour
	if timezoneHour != nil && *timezoneHour >= minTimezoneHour && *timezoneHour <= maxTimezoneHour {
		timezone = *timezoneHour
	}

	// the adjustment is only committed if the result stays positive; an
	// underflowing offset is silently ignored
	if offsetSeconds != nil {
		adjusted := int64(epoch) + int64(*offsetSeconds)
		if adjusted > 0 {
			epoch = uint64(adjusted)
			s.progress(address, fmt.Sprintf("Adjust clock %+d:%02d", *offsetSeconds/60, *offsetSeconds%60))
		}
	}

	// 4-byte little-endian epoch (low 32 bits) + 1 signed byte timezone hour
	buf := make([]byte, 5)
	binary.LittleEndian.PutUint32(buf, uint32(epoch))
	buf[4] = byte(int8(timezone))

	if err := characteristic.Write(buf); err != nil {
		return errors.New("Failed to sync time")
	}

	s.progress(address, fmt.Sprintf("Sync clock %d [timezone:%+d]", epoch, timezone))

	return nil
}
