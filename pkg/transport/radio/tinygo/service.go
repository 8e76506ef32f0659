package tinygo

import (
	"fmt"

	"tinygo.org/x/bluetooth"

	"github.com/glovelink/glovelink/pkg/transport/radio"
)

type service struct {
	service bluetooth.DeviceService
}

func (s *service) Notify(uuid string, callback func(buf []byte)) error {
	characteristic, err := s.discover(uuid)
	if err != nil {
		return err
	}
	if err := characteristic.EnableNotifications(callback); err != nil {
		return fmt.Errorf("tinygo: failed to subscribe: %s", err)
	}
	return nil
}

func (s *service) Writer(uuid string) (radio.Writer, error) {
	characteristic, err := s.discover(uuid)
	if err != nil {
		return nil, err
	}
	return &writer{characteristic: characteristic}, nil
}

func (s *service) discover(uuid string) (bluetooth.DeviceCharacteristic, error) {
	target, err := bluetooth.ParseUUID(uuid)
	if err != nil {
		return bluetooth.DeviceCharacteristic{}, fmt.Errorf("tinygo: bad characteristic uuid %q: %s", uuid, err)
	}
	characteristics, err := s.service.DiscoverCharacteristics([]bluetooth.UUID{target})
	if err != nil {
		return bluetooth.DeviceCharacteristic{}, fmt.Errorf("tinygo: failed to discover characteristics: %s", err)
	}
	if len(characteristics) == 0 {
		return bluetooth.DeviceCharacteristic{}, fmt.Errorf("tinygo: service does not expose characteristic %s", uuid)
	}
	return characteristics[0], nil
}

type writer struct {
	characteristic bluetooth.DeviceCharacteristic
}

func (w *writer) Write(p []byte) (int, error) {
	return w.characteristic.WriteWithoutResponse(p)
}

func (w *writer) MTU(rxMTU int) (int, error) {
	mtu, err := w.characteristic.GetMTU()
	if err != nil {
		return 0, err
	}
	if int(mtu) > rxMTU {
		return rxMTU, nil
	}
	return int(mtu), nil
}
