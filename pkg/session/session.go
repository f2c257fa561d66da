package session

// A session owns one observation window: it wires the BLE stack's callback
// to the mode-specific handler, drains the resulting event/reading queue on
// the calling goroutine, and tears down so that no callback is still writing
// to a queue after the session returns.
//
// Teardown order matters: unsubscribe first, then block once on the lock
// that every callback holds (waits out any in-flight callback), then do a
// final non-blocking sweep of the queue, then stop the scanner.

import (
	"context"
	"fmt"
	"github.com/function61/gokit/logger"
	"github.com/laphir/mitherm/pkg/advertparser"
	"github.com/laphir/mitherm/pkg/blecentral"
	"github.com/laphir/mitherm/pkg/clocksync"
	"github.com/laphir/mitherm/pkg/deviceregistry"
	"github.com/laphir/mitherm/pkg/mithermtypes"
	"github.com/laphir/mitherm/pkg/sensoraggregator"
	"github.com/laphir/mitherm/pkg/utils"
	"sync"
	"time"
)

const queueWait = 300 * time.Millisecond

// listens for advertisements for the given window and syncs the clock of
// every qualifying device at most once. blocking; returns after teardown.
func RunSync(
	ctx context.Context,
	central blecentral.Central,
	registry deviceregistry.Registry,
	window time.Duration,
) error {
	log := logger.New("sync")
	log.Info("starting")
	defer log.Info("stopped")

	events := make(chan mithermtypes.SyncEvent, 16)

	syncer := clocksync.NewSyncer(central, events)
	coordinator := clocksync.NewCoordinator(registry, syncer, events)

	central.Subscribe(func(adv *blecentral.Advertisement) {
		coordinator.OnAdvertisement(adv)
	})

	if err := central.StartScanning(); err != nil {
		central.Unsubscribe()
		return err
	}

	printEvent := func(event mithermtypes.SyncEvent) {
		line := fmt.Sprintf("%s: %s", registry.ResolveName(event.Address), event.Text)

		if event.Kind == mithermtypes.SyncError {
			log.Error(line)
		} else {
			log.Info(line)
		}
	}

	deadline := time.After(window)

	running := true
	for running {
		select {
		case <-ctx.Done():
			running = false
		case <-deadline:
			running = false
		case event := <-events:
			printEvent(event)
		case <-time.After(queueWait):
			// idle; check the window again
		}
	}

	central.Unsubscribe()

	// keep draining while waiting, so an in-flight callback can never be
	// stuck sending to a full queue that nobody reads anymore
	log.Info("waiting for in-flight work to complete")
	idle := make(chan struct{})
	go func() {
		coordinator.WaitIdle()
		close(idle)
	}()

	for waiting := true; waiting; {
		select {
		case <-idle:
			waiting = false
		case event := <-events:
			printEvent(event)
		}
	}

	drainRemaining(events, printEvent)

	return central.StopScanning()
}

// listens for advertisements for the given window, printing each decoded
// reading and forwarding it to readings (optional, may be nil). returns the
// accumulated last-value-wins snapshots per device.
func RunScan(
	ctx context.Context,
	central blecentral.Central,
	registry deviceregistry.Registry,
	window time.Duration,
	readings chan<- mithermtypes.ResolvedReading,
) (map[uint64]sensoraggregator.Snapshot, error) {
	log := logger.New("scan")
	log.Info("starting")
	defer log.Info("stopped")

	aggregator := sensoraggregator.New()
	decoded := make(chan mithermtypes.Reading, 16)

	// serializes callbacks so teardown can wait out an in-flight one
	lifetime := sync.Mutex{}

	central.Subscribe(func(adv *blecentral.Advertisement) {
		lifetime.Lock()
		defer lifetime.Unlock()

		reading := advertparser.Decode(adv)

		switch reading.Kind {
		case mithermtypes.ReadingTemperature, mithermtypes.ReadingHumidity, mithermtypes.ReadingBattery:
			decoded <- reading
		default:
			// there is a lot of non-sensor traffic over the air
		}
	})

	if err := central.StartScanning(); err != nil {
		central.Unsubscribe()
		return nil, err
	}

	processReading := func(reading mithermtypes.Reading) {
		aggregator.Observe(reading)

		name := registry.ResolveName(reading.Address)

		switch reading.Kind {
		case mithermtypes.ReadingTemperature:
			log.Info(fmt.Sprintf("%s - temperature %v 'C", name, reading.Value))
		case mithermtypes.ReadingHumidity:
			log.Info(fmt.Sprintf("%s - humidity %v %%", name, reading.Value))
		case mithermtypes.ReadingBattery:
			log.Info(fmt.Sprintf("%s - battery %v %%", name, reading.Value))
		}

		if readings != nil {
			readings <- mithermtypes.ResolvedReading{
				SensorAddr: utils.FormatBluetoothAddress(reading.Address),
				SensorName: name,
				Time:       time.Now(),
				Kind:       reading.Kind.String(),
				Value:      reading.Value,
			}
		}
	}

	deadline := time.After(window)

	running := true
	for running {
		select {
		case <-ctx.Done():
			running = false
		case <-deadline:
			running = false
		case reading := <-decoded:
			processReading(reading)
		case <-time.After(queueWait):
		}
	}

	central.Unsubscribe()

	idle := make(chan struct{})
	go func() {
		lifetime.Lock()
		lifetime.Unlock()
		close(idle)
	}()

	for waiting := true; waiting; {
		select {
		case <-idle:
			waiting = false
		case reading := <-decoded:
			processReading(reading)
		}
	}

	drainRemaining(decoded, processReading)

	if err := central.StopScanning(); err != nil {
		return nil, err
	}

	return aggregator.Snapshots(), nil
}

// non-blocking sweep of whatever the last callback managed to queue
func drainRemaining[T any](queue <-chan T, process func(T)) {
	for {
		select {
		case item := <-queue:
			process(item)
		default:
			return
		}
	}
}
