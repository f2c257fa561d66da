package deviceregistry

// Per-device configuration, loaded once from a TOML file before scanning
// begins and read-only for the rest of the session.

import (
	"github.com/laphir/mitherm/pkg/mithermtypes"
	"github.com/laphir/mitherm/pkg/utils"
	"github.com/pelletier/go-toml/v2"
	"os"
	"time"
)

// 48-bit Bluetooth address. In TOML it is written as a string, either
// "11:22:33:44:55:66" or plain hex "112233445566".
type BluetoothAddr uint64

func (a *BluetoothAddr) UnmarshalText(text []byte) error {
	parsed, err := utils.ParseBluetoothAddress(string(text))
	if err != nil {
		return err
	}

	*a = BluetoothAddr(parsed)
	return nil
}

type DeviceConfig struct {
	Address BluetoothAddr `toml:"address"`
	// friendly name for display
	Name *string `toml:"name"`
	// omit this device. we will not sync its clock.
	Omit *bool `toml:"omit"`
	// IANA timezone name, e.g. "Asia/Seoul"
	Timezone      *string `toml:"timezone"`
	OffsetSeconds *int    `toml:"offset_seconds"`
}

func (d *DeviceConfig) IsOmit() bool {
	return d.Omit != nil && *d.Omit
}

// current UTC offset of the configured timezone in whole hours, or nil when
// no timezone is configured (or its name is unknown to the tz database)
func (d *DeviceConfig) TimezoneDiffHour() *int {
	if d.Timezone == nil {
		return nil
	}

	location, err := time.LoadLocation(*d.Timezone)
	if err != nil {
		return nil
	}

	_, offsetSeconds := time.Now().In(location).Zone()
	diffHour := offsetSeconds / 3600

	return &diffHour
}

type Config struct {
	Output    string                       `toml:"output"`
	SqsOutput *mithermtypes.SqsOutputConfig `toml:"sqsoutput"`
	Devices   []*DeviceConfig              `toml:"device"`
}

// address => config
type Registry map[uint64]*DeviceConfig

func (r Registry) Get(address uint64) *DeviceConfig {
	return r[address]
}

// friendly name when configured, formatted address otherwise
func (r Registry) ResolveName(address uint64) string {
	if device := r[address]; device != nil && device.Name != nil {
		return *device.Name
	}

	return utils.FormatBluetoothAddress(address)
}

func (c *Config) Registry() Registry {
	registry := Registry{}
	for _, device := range c.Devices {
		registry[uint64(device.Address)] = device
	}

	return registry
}

func Parse(content []byte) (*Config, error) {
	conf := &Config{}
	if err := toml.Unmarshal(content, conf); err != nil {
		return nil, err
	}

	return conf, nil
}

// a missing config file is not an error - we just don't know any device by
// name and sync everything with defaults
func Load(path string) (*Config, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Config{}, nil
		}

		return nil, err
	}

	return Parse(content)
}
