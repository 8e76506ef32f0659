package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/glovelink/glovelink/pkg/assist"
	"github.com/glovelink/glovelink/pkg/geo"
	"github.com/glovelink/glovelink/pkg/glove"
	"github.com/glovelink/glovelink/pkg/sessionlog"
	"github.com/glovelink/glovelink/pkg/transport"
	"github.com/glovelink/glovelink/pkg/transport/radio"
)

type environment struct {
	link           *glove.Link
	store          *sessionlog.Store
	assistClient   *assist.Client
	geoClient      *geo.Client
	useHCI         bool
	portName       string
	connectTimeout time.Duration
	commandTimeout time.Duration
}

type commandInfo struct {
	help    string
	handler func(ctx context.Context, env *environment, args []string) error
}

var commands = map[string]*commandInfo{
	"radio": {
		help: "Scan for a glove and connect over radio.",
		handler: func(ctx context.Context, env *environment, _ []string) error {
			adapter, err := newRadioAdapter(env.useHCI)
			if err != nil {
				return err
			}
			return env.link.ConnectRadio(ctx, radio.Options{Adapter: adapter})
		},
	},
	"serial": {
		help: "serial [PORT]  Connect over the named serial port (or the -port default).",
		handler: func(ctx context.Context, env *environment, args []string) error {
			port := env.portName
			if len(args) > 0 {
				port = args[0]
			}
			if port == "" {
				return errors.New("no serial port given; pass one or set -port")
			}
			return env.link.ConnectWired(ctx, port)
		},
	},
	"disconnect": {
		help: "Release the active connection.",
		handler: func(_ context.Context, env *environment, _ []string) error {
			env.link.Disconnect()
			return nil
		},
	},
	"send": {
		help: "send TEXT...  Send one line to the glove.",
		handler: func(ctx context.Context, env *environment, args []string) error {
			if len(args) == 0 {
				return errors.New("nothing to send")
			}
			env.link.SendMessage(ctx, strings.Join(args, " "))
			return nil
		},
	},
	"signal": {
		help: "Re-emit the radio signal estimate.",
		handler: func(_ context.Context, env *environment, _ []string) error {
			env.link.RefreshSignalEstimate()
			return nil
		},
	},
	"status": {
		help: "Show the current connection kind.",
		handler: func(_ context.Context, env *environment, _ []string) error {
			fmt.Println(env.link.Kind())
			return nil
		},
	},
	"log": {
		help: "log [DATE]  Print the session log for DATE (default today).",
		handler: func(_ context.Context, env *environment, args []string) error {
			entries := env.store.Read(argDate(args))
			if len(entries) == 0 {
				fmt.Println("no entries")
				return nil
			}
			for _, e := range entries {
				fmt.Printf("%s %3s %s\n", e.Time.Format(time.TimeOnly), e.Direction, e.Text)
			}
			return nil
		},
	},
	"summarize": {
		help: "summarize [DATE]  Summarize the session log for DATE (default today).",
		handler: func(ctx context.Context, env *environment, args []string) error {
			text, err := logText(env, argDate(args))
			if err != nil {
				return err
			}
			summary, err := env.assistClient.Summarize(ctx, text)
			if err != nil {
				return err
			}
			fmt.Println(summary)
			return nil
		},
	},
	"translate": {
		help: "translate LANG [DATE]  Translate the session log into LANG.",
		handler: func(ctx context.Context, env *environment, args []string) error {
			if len(args) == 0 {
				return errors.New("missing target language")
			}
			text, err := logText(env, argDate(args[1:]))
			if err != nil {
				return err
			}
			translated, err := env.assistClient.Translate(ctx, text, args[0])
			if err != nil {
				return err
			}
			fmt.Println(translated)
			return nil
		},
	},
	"where": {
		help: "where [QUERY]  Print current coordinates and a map URL.",
		handler: func(ctx context.Context, env *environment, args []string) error {
			if env.geoClient == nil {
				return errors.New("no geolocation service configured; set -geo-url")
			}
			coords, err := env.geoClient.Locate(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("%.6f, %.6f\n", coords.Latitude, coords.Longitude)
			fmt.Println(geo.MapURL(coords, strings.Join(args, " ")))
			return nil
		},
	},
}

func argDate(args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return time.Now().Format(sessionlog.DateFormat)
}

func logText(env *environment, date string) (string, error) {
	if env.assistClient == nil {
		return "", errors.New("no assist service configured; set -assist-url")
	}
	entries := env.store.Read(date)
	if len(entries) == 0 {
		return "", fmt.Errorf("no session log for %s", date)
	}
	var b strings.Builder
	for _, e := range entries {
		fmt.Fprintf(&b, "%s %s %s\n", e.Time.Format(time.TimeOnly), e.Direction, e.Text)
	}
	return b.String(), nil
}

func runCommand(env *environment, args []string) int {
	info, ok := commands[args[0]]
	if !ok {
		writeErr("Unrecognized command: %s", args[0])
		return 1
	}

	timeout := env.commandTimeout
	if args[0] == "radio" || args[0] == "serial" {
		timeout = env.connectTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := info.handler(ctx, env, args[1:]); err != nil {
		if transport.UserCancelled(err) {
			return 0
		}
		writeErr("Failed to execute command: %s", err)
		return 1
	}
	return 0
}
