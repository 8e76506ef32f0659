package glove

import "time"

// Direction distinguishes glove-to-host traffic from host-to-glove traffic in
// the session log.
type Direction int

const (
	// DirectionIn marks lines received from the glove, including diagnostic
	// lines the link produces about its own failures.
	DirectionIn Direction = iota
	// DirectionOut marks lines sent to the glove.
	DirectionOut
)

func (d Direction) String() string {
	if d == DirectionOut {
		return "out"
	}
	return "in"
}

// LogEntry records one complete line of glove traffic. The link produces one
// entry per inbound line and one per successful outbound send; ownership
// passes to the log sink on callback.
type LogEntry struct {
	Time      time.Time
	Text      string
	Direction Direction
}
