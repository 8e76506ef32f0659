package tinygo

import (
	"context"
	"fmt"
	"sync"

	"tinygo.org/x/bluetooth"

	"github.com/glovelink/glovelink/pkg/transport/radio"
)

type device struct {
	client       bluetooth.Device
	disconnected chan struct{}
	closeOnce    sync.Once
	closeErr     error
}

func (d *device) Service(_ context.Context, uuid string) (radio.Service, error) {
	target, err := bluetooth.ParseUUID(uuid)
	if err != nil {
		return nil, fmt.Errorf("tinygo: bad service uuid %q: %s", uuid, err)
	}
	services, err := d.client.DiscoverServices([]bluetooth.UUID{target})
	if err != nil {
		return nil, fmt.Errorf("tinygo: failed to enumerate device services: %s", err)
	}
	if len(services) != 1 {
		return nil, fmt.Errorf("tinygo: device does not expose service %s", uuid)
	}
	return &service{service: services[0]}, nil
}

func (d *device) Disconnected() <-chan struct{} {
	return d.disconnected
}

func (d *device) Close() error {
	d.closeOnce.Do(func() {
		d.closeErr = d.client.Disconnect()
	})
	return d.closeErr
}
