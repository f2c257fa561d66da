package blecentral

import (
	"fmt"
	"github.com/function61/gokit/logger"
	"github.com/function61/gokit/stopper"
	"github.com/laphir/mitherm/pkg/utils"
	"sync"
	"tinygo.org/x/bluetooth"
)

// Central implementation on top of the host's BlueZ stack.
type BluezCentral struct {
	adapter *bluetooth.Adapter
	log     *logger.Logger
	workers *stopper.Manager

	mu       sync.Mutex
	received func(adv *Advertisement)
}

func NewBluezCentral() (*BluezCentral, error) {
	adapter := bluetooth.DefaultAdapter
	if err := adapter.Enable(); err != nil {
		return nil, fmt.Errorf("enabling Bluetooth adapter: %w", err)
	}

	return &BluezCentral{
		adapter: adapter,
		log:     logger.New("blecentral"),
		workers: stopper.NewManager(),
	}, nil
}

func (c *BluezCentral) Subscribe(received func(adv *Advertisement)) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.received = received
}

func (c *BluezCentral) Unsubscribe() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.received = nil
}

func (c *BluezCentral) StartScanning() error {
	go c.scanner(c.workers.Stopper())

	return nil
}

func (c *BluezCentral) StopScanning() error {
	err := c.adapter.StopScan()

	// Scan() returns once StopScan() is delivered
	c.workers.StopAllWorkersAndWait()

	return err
}

func (c *BluezCentral) Connect(address uint64) (Device, error) {
	mac, err := bluetooth.ParseMAC(utils.FormatBluetoothAddress(address))
	if err != nil {
		return nil, err
	}

	device, err := c.adapter.Connect(
		bluetooth.Address{MACAddress: bluetooth.MACAddress{MAC: mac}},
		bluetooth.ConnectionParams{})
	if err != nil {
		return nil, err
	}

	return &bluezDevice{device: device}, nil
}

func (c *BluezCentral) scanner(stop *stopper.Stopper) {
	defer stop.Done()

	c.log.Info("starting")
	defer c.log.Info("stopped")

	err := c.adapter.Scan(func(_ *bluetooth.Adapter, result bluetooth.ScanResult) {
		c.mu.Lock()
		received := c.received
		c.mu.Unlock()

		if received == nil {
			return
		}

		adv := advertisementFromScanResult(result)
		if adv == nil {
			return
		}

		received(adv)
	})
	if err != nil {
		c.log.Error(fmt.Sprintf("Scan(): %s", err.Error()))
	}
}

// BlueZ hands us pre-parsed advertisement fields, so the on-air service data
// section is reconstructed here: 16-bit service UUID (little endian) followed
// by the payload.
func advertisementFromScanResult(result bluetooth.ScanResult) *Advertisement {
	address, err := utils.ParseBluetoothAddress(result.Address.String())
	if err != nil {
		return nil
	}

	adv := &Advertisement{Address: address}

	if result.HasServiceUUID(EnvironmentalSensingServiceUUID) {
		adv.Services = append(adv.Services, EnvironmentalSensingServiceUUID)
	}

	for _, serviceData := range result.ServiceData() {
		raw := serviceData.UUID.Bytes() // little endian; 16-bit UUID lives at offsets 12-13

		section := make([]byte, 0, 2+len(serviceData.Data))
		section = append(section, raw[12], raw[13])
		section = append(section, serviceData.Data...)

		adv.Sections = append(adv.Sections, DataSection{
			Type: SectionTypeServiceData,
			Data: section,
		})
	}

	return adv
}

type bluezDevice struct {
	device bluetooth.Device
}

func (d *bluezDevice) QueryServices(id bluetooth.UUID) (*ServiceQuery, error) {
	services, err := d.device.DiscoverServices([]bluetooth.UUID{id})
	if err != nil {
		return nil, err
	}

	query := &ServiceQuery{Status: StatusSuccess}
	for _, service := range services {
		query.Services = append(query.Services, &bluezService{service: service})
	}

	return query, nil
}

func (d *bluezDevice) Disconnect() error {
	return d.device.Disconnect()
}

type bluezService struct {
	service bluetooth.DeviceService
}

func (s *bluezService) QueryCharacteristics(id bluetooth.UUID) (*CharacteristicQuery, error) {
	characteristics, err := s.service.DiscoverCharacteristics([]bluetooth.UUID{id})
	if err != nil {
		return nil, err
	}

	query := &CharacteristicQuery{Status: StatusSuccess}
	for _, characteristic := range characteristics {
		query.Characteristics = append(query.Characteristics, &bluezCharacteristic{characteristic: characteristic})
	}

	return query, nil
}

type bluezCharacteristic struct {
	characteristic bluetooth.DeviceCharacteristic
}

func (c *bluezCharacteristic) Write(buf []byte) error {
	_, err := c.characteristic.WriteWithoutResponse(buf)
	return err
}
