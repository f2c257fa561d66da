package advertparser

// Decodes the LYWSD02's environmental-sensing service data. This is a fixed
// offset parse of an undocumented wire format: byte 14 of the service data
// section discriminates the payload, the value follows at offset 17.

import (
	"encoding/binary"
	"github.com/laphir/mitherm/pkg/blecentral"
	"github.com/laphir/mitherm/pkg/mithermtypes"
)

const (
	subTypeOffset = 14
	valueOffset   = 17

	subTypeTemperature = 4
	subTypeHumidity    = 6
	subTypeBattery     = 10
)

func Decode(adv *blecentral.Advertisement) mithermtypes.Reading {
	if adv == nil || !adv.HasService(blecentral.EnvironmentalSensingServiceUUID) {
		// advertisement from an unknown device
		return mithermtypes.Reading{Kind: mithermtypes.ReadingUnrecognized}
	}

	for _, section := range adv.Sections {
		if section.Type != blecentral.SectionTypeServiceData {
			continue
		}

		return decodeServiceData(adv.Address, section.Data)
	}

	// has the sensing service but no service data - we don't know the format
	return mithermtypes.Reading{Kind: mithermtypes.ReadingNotDecodable, Address: adv.Address}
}

func decodeServiceData(address uint64, data []byte) mithermtypes.Reading {
	notDecodable := mithermtypes.Reading{Kind: mithermtypes.ReadingNotDecodable, Address: address}

	// truncated payloads are a decode failure, never a panic
	if len(data) <= subTypeOffset {
		return notDecodable
	}

	switch data[subTypeOffset] {
	case subTypeTemperature:
		value, ok := decodeScaledValue(data)
		if !ok {
			return notDecodable
		}

		return mithermtypes.Reading{Kind: mithermtypes.ReadingTemperature, Address: address, Value: value}
	case subTypeHumidity:
		value, ok := decodeScaledValue(data)
		if !ok {
			return notDecodable
		}

		return mithermtypes.Reading{Kind: mithermtypes.ReadingHumidity, Address: address, Value: value}
	case subTypeBattery:
		// battery is a percentage, just a single byte
		if len(data) <= valueOffset {
			return notDecodable
		}

		return mithermtypes.Reading{Kind: mithermtypes.ReadingBattery, Address: address, Value: float32(data[valueOffset])}
	default:
		return notDecodable
	}
}

// temperature and humidity use the same encoding: signed 16-bit little endian
// in tenths of a unit
func decodeScaledValue(data []byte) (float32, bool) {
	if len(data) < valueOffset+2 {
		return 0, false
	}

	raw := int16(binary.LittleEndian.Uint16(data[valueOffset : valueOffset+2]))

	return float32(raw) / 10.0, true
}
