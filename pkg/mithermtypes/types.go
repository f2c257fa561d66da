package mithermtypes

import (
	"time"
)

type ReadingKind int

const (
	// not this vendor's packet at all
	ReadingUnrecognized ReadingKind = iota
	// vendor service present but no parseable service data
	ReadingNotDecodable
	ReadingTemperature
	ReadingHumidity
	ReadingBattery
)

func (k ReadingKind) String() string {
	switch k {
	case ReadingTemperature:
		return "temperature"
	case ReadingHumidity:
		return "humidity"
	case ReadingBattery:
		return "battery"
	case ReadingNotDecodable:
		return "not_decodable"
	default:
		return "unrecognized"
	}
}

// one decoded advertisement. Address is the 48-bit Bluetooth address of the
// sensor (zero for unrecognized packets).
type Reading struct {
	Kind    ReadingKind
	Address uint64
	Value   float32
}

type SyncEventKind int

const (
	SyncProgress SyncEventKind = iota
	SyncError
)

// produced by the clock sync coordinator/protocol, drained by a single
// consumer for display
type SyncEvent struct {
	Kind    SyncEventKind
	Address uint64
	Text    string
}

// resolved reading means a reading whose sensor was looked up against the
// device registry and thus its friendly name is now also known
type ResolvedReading struct {
	SensorAddr string    `json:"sensor_addr"`
	SensorName string    `json:"sensor_name"`
	Time       time.Time `json:"time"`
	Kind       string    `json:"kind"`
	Value      float32   `json:"value"`
}

type Output interface {
	GetReadingsChan() chan<- ResolvedReading
}

type SqsOutputConfig struct {
	QueueUrl           string `toml:"queue_url" json:"queue_url"`
	AwsAccessKeyId     string `toml:"aws_access_key_id" json:"aws_access_key_id"`
	AwsAccessKeySecret string `toml:"aws_access_key_secret" json:"aws_access_key_secret"`
}
