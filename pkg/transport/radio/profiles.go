package radio

// Profile maps a known UART-emulation GATT service to its characteristic
// pair. Some modules expose a single characteristic for both directions, in
// which case Notify and Write are the same UUID.
type Profile struct {
	Name    string
	Service string
	Notify  string
	Write   string
}

// Profiles is the fixed, ordered table of UART emulations the link
// understands. Candidates are tried in order after connecting; the first
// service exposing both characteristics wins.
var Profiles = []Profile{
	{
		Name:    "nordic-uart",
		Service: "6e400001-b5a3-f393-e0a9-e50e24dcca9e",
		Notify:  "6e400003-b5a3-f393-e0a9-e50e24dcca9e",
		Write:   "6e400002-b5a3-f393-e0a9-e50e24dcca9e",
	},
	{
		Name:    "hm10-uart",
		Service: "0000ffe0-0000-1000-8000-00805f9b34fb",
		Notify:  "0000ffe1-0000-1000-8000-00805f9b34fb",
		Write:   "0000ffe1-0000-1000-8000-00805f9b34fb",
	},
	{
		Name:    "microchip-transparent-uart",
		Service: "49535343-fe7d-4ae5-8fa9-9fafd205e455",
		Notify:  "49535343-1e4d-4bd9-ba61-23c647249616",
		Write:   "49535343-8841-43f4-a8d4-ecbe34729bb3",
	},
}

// AllowedNames is the fixed vendor allow-list used only for the discovery
// filter, never for protocol selection. Entries ending in '-' match as
// prefixes.
var AllowedNames = []string{
	"Glove-",
	"HC-",
	"BT05",
	"DSD TECH",
	"Adafruit Bluefruit LE",
}

// DefaultFilter builds the discovery filter from the profile table and name
// allow-list.
func DefaultFilter() Filter {
	f := Filter{Names: AllowedNames}
	for _, p := range Profiles {
		f.Services = append(f.Services, p.Service)
	}
	return f
}
