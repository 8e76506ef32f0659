// Package goble adapts the github.com/go-ble/ble HCI stack to the radio
// transport's Adapter interface.
package goble

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/go-ble/ble"

	"github.com/glovelink/glovelink/internal/log"
	"github.com/glovelink/glovelink/pkg/transport/radio"
)

type adapter struct {
	device ble.Device
}

// NewAdapter initializes the platform BLE device.
func NewAdapter() (radio.Adapter, error) {
	device, err := newDevice()
	if err != nil {
		return nil, fmt.Errorf("goble: failed to initialize device: %w", err)
	}
	return &adapter{device: device}, nil
}

func (a *adapter) Scan(ctx context.Context, filter radio.Filter) (*radio.ScanResult, error) {
	services := make([]ble.UUID, 0, len(filter.Services))
	for _, s := range filter.Services {
		uuid, err := ble.Parse(s)
		if err != nil {
			return nil, fmt.Errorf("goble: bad service uuid %q: %s", s, err)
		}
		services = append(services, uuid)
	}

	scanCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	ch := make(chan ble.Advertisement, 1)
	handler := func(adv ble.Advertisement) {
		if !matches(adv, services, filter) {
			return
		}
		select {
		case ch <- adv:
			cancel() // Notify device.Scan that we found a match.
		case <-scanCtx.Done():
			// Another goroutine already reported a match.
		}
	}

	if err := a.device.Scan(scanCtx, false, handler); !errors.Is(err, context.Canceled) {
		// If ctx rather than scanCtx was cancelled, the select below picks
		// that up.
		return nil, err
	}

	select {
	case adv := <-ch:
		return &radio.ScanResult{
			Address:     adv.Addr().String(),
			LocalName:   adv.LocalName(),
			RSSI:        int16(adv.RSSI()),
			Connectable: adv.Connectable(),
		}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func matches(adv ble.Advertisement, services []ble.UUID, filter radio.Filter) bool {
	for _, advertised := range adv.Services() {
		for _, wanted := range services {
			if advertised.Equal(wanted) {
				return true
			}
		}
	}
	return filter.MatchName(adv.LocalName())
}

func (a *adapter) Connect(ctx context.Context, target *radio.ScanResult) (radio.Device, error) {
	log.Debug("goble: dialing %s (%s)", target.Address, target.LocalName)
	client, err := a.device.Dial(ctx, ble.NewAddr(target.Address))
	if err != nil {
		return nil, fmt.Errorf("goble: failed to dial %s: %s", target.Address, err)
	}
	return &device{client: client}, nil
}

func (a *adapter) Close() error {
	if a.device == nil {
		return nil
	}
	err := a.device.Stop()
	a.device = nil
	return err
}

type device struct {
	client    ble.Client
	closeOnce sync.Once
	closeErr  error
}

func (d *device) Service(_ context.Context, uuid string) (radio.Service, error) {
	target, err := ble.Parse(uuid)
	if err != nil {
		return nil, fmt.Errorf("goble: bad service uuid %q: %s", uuid, err)
	}
	services, err := d.client.DiscoverServices([]ble.UUID{target})
	if err != nil {
		return nil, fmt.Errorf("goble: failed to enumerate device services: %s", err)
	}
	if len(services) == 0 {
		return nil, fmt.Errorf("goble: device does not expose service %s", uuid)
	}
	return &service{client: d.client, service: services[0]}, nil
}

func (d *device) Disconnected() <-chan struct{} {
	return d.client.Disconnected()
}

func (d *device) Close() error {
	d.closeOnce.Do(func() {
		if err := d.client.ClearSubscriptions(); err != nil {
			log.Warning("goble: failed to clear subscriptions: %s", err)
		}
		d.closeErr = d.client.CancelConnection()
	})
	return d.closeErr
}

type service struct {
	client  ble.Client
	service *ble.Service
}

func (s *service) Notify(uuid string, callback func(buf []byte)) error {
	characteristic, err := s.discover(uuid)
	if err != nil {
		return err
	}
	if err := s.client.Subscribe(characteristic, false, callback); err != nil {
		return fmt.Errorf("goble: failed to subscribe: %s", err)
	}
	return nil
}

func (s *service) Writer(uuid string) (radio.Writer, error) {
	characteristic, err := s.discover(uuid)
	if err != nil {
		return nil, err
	}
	return &writer{client: s.client, characteristic: characteristic}, nil
}

func (s *service) discover(uuid string) (*ble.Characteristic, error) {
	target, err := ble.Parse(uuid)
	if err != nil {
		return nil, fmt.Errorf("goble: bad characteristic uuid %q: %s", uuid, err)
	}
	characteristics, err := s.client.DiscoverCharacteristics([]ble.UUID{target}, s.service)
	if err != nil {
		return nil, fmt.Errorf("goble: failed to discover characteristics: %s", err)
	}
	for _, c := range characteristics {
		if c.UUID.Equal(target) {
			return c, nil
		}
	}
	return nil, fmt.Errorf("goble: service does not expose characteristic %s", uuid)
}

type writer struct {
	client         ble.Client
	characteristic *ble.Characteristic
}

func (w *writer) Write(p []byte) (int, error) {
	if err := w.client.WriteCharacteristic(w.characteristic, p, false); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (w *writer) MTU(rxMTU int) (int, error) {
	return w.client.ExchangeMTU(rxMTU)
}
