package clocksync

// scripted Central for driving the protocol without a radio. each step's
// outcome is configurable so every failure layer is reachable from tests.

import (
	"errors"
	"github.com/laphir/mitherm/pkg/blecentral"
	"sync"
	"time"
	"tinygo.org/x/bluetooth"
)

type fakeCentral struct {
	mu       sync.Mutex
	received func(adv *blecentral.Advertisement)

	connectErr        error
	serviceQueryErr   error
	serviceStatus     blecentral.Status
	serviceMissing    bool
	characterQueryErr error
	characterStatus   blecentral.Status
	characterMissing  bool
	writeErr          error

	// artificial protocol-run duration, for overlap tests
	connectDelay time.Duration

	connectCount int
	written      [][]byte
}

func newFakeCentral() *fakeCentral {
	return &fakeCentral{}
}

func (c *fakeCentral) Subscribe(received func(adv *blecentral.Advertisement)) {
	c.received = received
}

func (c *fakeCentral) Unsubscribe() {
	c.received = nil
}

func (c *fakeCentral) StartScanning() error { return nil }
func (c *fakeCentral) StopScanning() error  { return nil }

func (c *fakeCentral) Connect(address uint64) (blecentral.Device, error) {
	if c.connectDelay > 0 {
		time.Sleep(c.connectDelay)
	}

	c.mu.Lock()
	c.connectCount++
	c.mu.Unlock()

	if c.connectErr != nil {
		return nil, c.connectErr
	}

	return &fakeDevice{central: c}, nil
}

func (c *fakeCentral) connects() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.connectCount
}

func (c *fakeCentral) lastWritten() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.written) == 0 {
		return nil
	}

	return c.written[len(c.written)-1]
}

type fakeDevice struct {
	central *fakeCentral
}

func (d *fakeDevice) QueryServices(id bluetooth.UUID) (*blecentral.ServiceQuery, error) {
	if d.central.serviceQueryErr != nil {
		return nil, d.central.serviceQueryErr
	}

	query := &blecentral.ServiceQuery{Status: d.central.serviceStatus}
	if !d.central.serviceMissing {
		query.Services = append(query.Services, &fakeService{central: d.central})
	}

	return query, nil
}

func (d *fakeDevice) Disconnect() error { return nil }

type fakeService struct {
	central *fakeCentral
}

func (s *fakeService) QueryCharacteristics(id bluetooth.UUID) (*blecentral.CharacteristicQuery, error) {
	if s.central.characterQueryErr != nil {
		return nil, s.central.characterQueryErr
	}

	query := &blecentral.CharacteristicQuery{Status: s.central.characterStatus}
	if !s.central.characterMissing {
		query.Characteristics = append(query.Characteristics, &fakeCharacteristic{central: s.central})
	}

	return query, nil
}

type fakeCharacteristic struct {
	central *fakeCentral
}

func (c *fakeCharacteristic) Write(buf []byte) error {
	if c.central.writeErr != nil {
		return c.central.writeErr
	}

	c.central.mu.Lock()
	defer c.central.mu.Unlock()

	c.central.written = append(c.central.written, append([]byte{}, buf...))
	return nil
}

var errFakeTransport = errors.New("radio unreachable")
