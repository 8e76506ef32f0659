//go:build !linux

package main

import (
	"github.com/glovelink/glovelink/internal/log"
	"github.com/glovelink/glovelink/pkg/transport/radio"
	"github.com/glovelink/glovelink/pkg/transport/radio/tinygo"
)

func newRadioAdapter(useHCI bool) (radio.Adapter, error) {
	if useHCI {
		log.Warning("the HCI stack is only available on Linux; using the platform stack")
	}
	return tinygo.NewAdapter()
}
