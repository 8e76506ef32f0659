//go:build linux

package main

import (
	"github.com/glovelink/glovelink/pkg/transport/radio"
	"github.com/glovelink/glovelink/pkg/transport/radio/goble"
	"github.com/glovelink/glovelink/pkg/transport/radio/tinygo"
)

func newRadioAdapter(useHCI bool) (radio.Adapter, error) {
	if useHCI {
		return goble.NewAdapter()
	}
	return tinygo.NewAdapter()
}
