package sensoraggregator

import (
	"github.com/function61/gokit/assert"
	"github.com/laphir/mitherm/pkg/mithermtypes"
	"testing"
)

func reading(kind mithermtypes.ReadingKind, address uint64, value float32) mithermtypes.Reading {
	return mithermtypes.Reading{Kind: kind, Address: address, Value: value}
}

func TestLastValueWins(t *testing.T) {
	aggregator := New()

	aggregator.Observe(reading(mithermtypes.ReadingTemperature, 0xaabbcc, 25.0))
	aggregator.Observe(reading(mithermtypes.ReadingTemperature, 0xaabbcc, 26.0))
	aggregator.Observe(reading(mithermtypes.ReadingHumidity, 0xaabbcc, 40.0))

	snapshots := aggregator.Snapshots()
	assert.True(t, len(snapshots) == 1)

	snapshot := snapshots[0xaabbcc]
	assert.True(t, *snapshot.Temperature == 26.0)
	assert.True(t, *snapshot.Humidity == 40.0)
	assert.True(t, snapshot.Battery == nil)
}

func TestSeparateDevices(t *testing.T) {
	aggregator := New()

	aggregator.Observe(reading(mithermtypes.ReadingTemperature, 0xaabbcc, 25.0))
	aggregator.Observe(reading(mithermtypes.ReadingBattery, 0xddeeff, 80.0))

	// non-sensor readings are not aggregated
	aggregator.Observe(reading(mithermtypes.ReadingUnrecognized, 0x123456, 1.0))
	aggregator.Observe(reading(mithermtypes.ReadingNotDecodable, 0x123456, 1.0))

	snapshots := aggregator.Snapshots()
	assert.True(t, len(snapshots) == 2)
	assert.True(t, *snapshots[0xaabbcc].Temperature == 25.0)
	assert.True(t, *snapshots[0xddeeff].Battery == 80.0)
}
