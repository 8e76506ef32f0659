// Package tinygo adapts tinygo.org/x/bluetooth to the radio transport's
// Adapter interface. Unlike the HCI-based goble adapter, this stack works on
// Linux, macOS, and Windows.
package tinygo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"tinygo.org/x/bluetooth"

	"github.com/glovelink/glovelink/internal/log"
	"github.com/glovelink/glovelink/pkg/transport/radio"
)

type adapter struct {
	device *bluetooth.Adapter

	mu       sync.Mutex
	watchers map[string]chan struct{}
}

// NewAdapter enables the default platform adapter and registers the
// disconnect watcher used to detect remote link drops.
func NewAdapter() (radio.Adapter, error) {
	device := bluetooth.DefaultAdapter
	if err := device.Enable(); err != nil {
		return nil, fmt.Errorf("tinygo: failed to enable adapter: %s", err)
	}
	a := &adapter{
		device:   device,
		watchers: make(map[string]chan struct{}),
	}
	device.SetConnectHandler(func(dev bluetooth.Device, connected bool) {
		if connected {
			return
		}
		a.mu.Lock()
		defer a.mu.Unlock()
		addr := dev.Address.String()
		if ch, ok := a.watchers[addr]; ok {
			close(ch)
			delete(a.watchers, addr)
		}
	})
	return a, nil
}

func (a *adapter) Scan(ctx context.Context, filter radio.Filter) (*radio.ScanResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	services := make([]bluetooth.UUID, 0, len(filter.Services))
	for _, s := range filter.Services {
		uuid, err := bluetooth.ParseUUID(s)
		if err != nil {
			return nil, fmt.Errorf("tinygo: bad service uuid %q: %s", s, err)
		}
		services = append(services, uuid)
	}

	stopScan := func() {
		if err := a.device.StopScan(); err != nil {
			if strings.Contains(err.Error(), "no scan in progress") {
				return
			}
			log.Warning("tinygo: failed to stop scan: %s", err)
		}
	}

	scanCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		<-scanCtx.Done()
		stopScan()
	}()

	var result *radio.ScanResult
	err := a.device.Scan(func(_ *bluetooth.Adapter, r bluetooth.ScanResult) {
		if !matches(r, services, filter) {
			return
		}
		result = &radio.ScanResult{
			Address:     r.Address.String(),
			LocalName:   r.LocalName(),
			RSSI:        r.RSSI,
			Connectable: true,
		}
		stopScan()
	})
	if err != nil {
		return nil, err
	}
	if result == nil {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return nil, errors.New("tinygo: scan stopped without a match")
	}
	return result, nil
}

func matches(r bluetooth.ScanResult, services []bluetooth.UUID, filter radio.Filter) bool {
	for _, uuid := range services {
		if r.HasServiceUUID(uuid) {
			return true
		}
	}
	return filter.MatchName(r.LocalName())
}

func (a *adapter) Connect(ctx context.Context, target *radio.ScanResult) (radio.Device, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	params := bluetooth.ConnectionParams{}
	if deadline, ok := ctx.Deadline(); ok {
		params.ConnectionTimeout = bluetooth.NewDuration(time.Until(deadline))
	}

	addr, err := parseAddress(target.Address)
	if err != nil {
		return nil, err
	}

	client, err := a.device.Connect(addr, params)
	if err != nil {
		return nil, fmt.Errorf("tinygo: failed to connect to %s: %s", target.Address, err)
	}

	ch := make(chan struct{})
	a.mu.Lock()
	a.watchers[client.Address.String()] = ch
	a.mu.Unlock()

	return &device{client: client, disconnected: ch}, nil
}

func (a *adapter) Close() error {
	a.device = nil
	return nil
}

func parseAddress(address string) (bluetooth.Address, error) {
	mac, err := bluetooth.ParseMAC(address)
	if err != nil {
		return bluetooth.Address{}, fmt.Errorf("tinygo: failed to parse MAC address %q: %s", address, err)
	}
	return bluetooth.Address{MACAddress: bluetooth.MACAddress{MAC: mac}}, nil
}
