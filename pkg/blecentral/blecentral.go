package blecentral

// Abstracts the Bluetooth LE stack: passive advertisement scanning plus the
// few GATT operations the clock sync protocol needs. The production
// implementation sits on top of tinygo.org/x/bluetooth (BlueZ on Linux);
// tests drive the same interfaces with scripted fakes.

import (
	"tinygo.org/x/bluetooth"
)

// the environmental sensing service is not vendor specific, but the LYWSD02
// advertises its readings under it
var (
	EnvironmentalSensingServiceUUID = bluetooth.New16BitUUID(0x181a)
	ClockServiceUUID                = mustUUID("ebe0ccb0-7a0a-4b0c-8a1a-6ff2997da3a6")
	ClockCharacteristicUUID         = mustUUID("ebe0ccb7-7a0a-4b0c-8a1a-6ff2997da3a6")
)

// advertisement data section type tag for service data
const SectionTypeServiceData = 0x16

// one typed data section of an advertisement: AD type tag + payload bytes.
// for service data sections the payload starts with the 16-bit service UUID
// in little-endian order, exactly as it appears on air.
type DataSection struct {
	Type byte
	Data []byte
}

// a received broadcast advertisement. transient: the stack owns it only for
// the duration of the callback.
type Advertisement struct {
	Address  uint64
	Services []bluetooth.UUID
	Sections []DataSection
}

func (a *Advertisement) HasService(id bluetooth.UUID) bool {
	for _, service := range a.Services {
		if service == id {
			return true
		}
	}

	return false
}

// transport-level status of a GATT query. a query can fail three independent
// ways: the call itself errors, the device answers with a non-success status,
// or the answer is simply empty.
type Status int

const (
	StatusSuccess Status = iota
	StatusUnreachable
	StatusProtocolError
	StatusAccessDenied
)

type ServiceQuery struct {
	Status   Status
	Services []Service
}

type CharacteristicQuery struct {
	Status          Status
	Characteristics []Characteristic
}

type Central interface {
	// received is invoked on the stack's own thread, once per advertisement
	Subscribe(received func(adv *Advertisement))
	Unsubscribe()
	StartScanning() error
	StopScanning() error
	// opens a device session by 48-bit address. blocking.
	Connect(address uint64) (Device, error)
}

type Device interface {
	QueryServices(id bluetooth.UUID) (*ServiceQuery, error)
	Disconnect() error
}

type Service interface {
	QueryCharacteristics(id bluetooth.UUID) (*CharacteristicQuery, error)
}

type Characteristic interface {
	Write(buf []byte) error
}

func mustUUID(serialized string) bluetooth.UUID {
	parsed, err := bluetooth.ParseUUID(serialized)
	if err != nil {
		panic(err)
	}

	return parsed
}
