// glove-term is an interactive terminal for a glove device. It connects over
// radio or a serial port, echoes glove traffic, and keeps a per-date session
// log that can be summarized or translated through the assist service.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/99designs/keyring"
	"github.com/google/shlex"
	"golang.org/x/term"

	"github.com/glovelink/glovelink/internal/log"
	"github.com/glovelink/glovelink/pkg/assist"
	"github.com/glovelink/glovelink/pkg/geo"
	"github.com/glovelink/glovelink/pkg/glove"
	"github.com/glovelink/glovelink/pkg/sessionlog"
	"github.com/glovelink/glovelink/pkg/transport"
)

const (
	keyringService = "glovelink"
	assistTokenKey = "assist-token"
	assistTokenEnv = "GLOVE_ASSIST_TOKEN"
)

func writeErr(format string, a ...interface{}) {
	fmt.Fprintf(os.Stderr, format+"\n", a...)
}

// loadAssistToken prefers the environment, then the system keyring. A missing
// token is not an error; the assist service may accept anonymous requests.
func loadAssistToken() string {
	if token := os.Getenv(assistTokenEnv); token != "" {
		return token
	}
	kr, err := keyring.Open(keyring.Config{ServiceName: keyringService})
	if err != nil {
		log.Debug("keyring unavailable: %s", err)
		return ""
	}
	item, err := kr.Get(assistTokenKey)
	if err != nil {
		log.Debug("no assist token in keyring: %s", err)
		return ""
	}
	return string(item.Data)
}

func Usage() {
	out := flag.CommandLine.Output()
	fmt.Fprintf(out, "Usage: %s [OPTION...] [COMMAND...]\n", os.Args[0])
	fmt.Fprintf(out, "\nRun COMMAND against a glove device, or start an interactive shell with no COMMAND.\n\n")
	fmt.Fprintf(out, "Available OPTIONs:\n")
	flag.PrintDefaults()
	fmt.Fprintf(out, "\nAvailable COMMANDs:\n")
	maxLength := 0
	var labels []string
	for command := range commands {
		labels = append(labels, command)
		if len(command) > maxLength {
			maxLength = len(command)
		}
	}
	sort.Strings(labels)
	for _, command := range labels {
		fmt.Fprintf(out, "  %s%s %s\n", command, strings.Repeat(" ", maxLength-len(command)), commands[command].help)
	}
}

func runInteractiveShell(env *environment) int {
	scanner := bufio.NewScanner(os.Stdin)
	interactive := term.IsTerminal(int(os.Stdin.Fd()))
	prompt := func() {
		if interactive {
			fmt.Printf("> ")
		}
	}
	for prompt(); scanner.Scan(); prompt() {
		args, err := shlex.Split(scanner.Text())
		if err != nil {
			writeErr("Invalid command: %s", err)
			continue
		}
		if len(args) == 0 {
			continue
		}
		if args[0] == "exit" || args[0] == "quit" {
			return 0
		}
		runCommand(env, args)
	}
	if err := scanner.Err(); err != nil {
		writeErr("Error reading command: %s", err)
		return 1
	}
	return 0
}

func main() {
	status := 1
	defer func() {
		os.Exit(status)
	}()

	var (
		debug          bool
		useHCI         bool
		portName       string
		assistURL      string
		geoURL         string
		logFile        string
		keepDays       int
		connectTimeout time.Duration
		commandTimeout time.Duration
	)
	flag.Usage = Usage
	flag.BoolVar(&debug, "debug", false, "Enable verbose debugging messages")
	flag.BoolVar(&useHCI, "hci", false, "Use the raw HCI radio stack instead of the platform stack (Linux only)")
	flag.StringVar(&portName, "port", "", "Default serial `port` for the serial command (e.g. /dev/ttyUSB0)")
	flag.StringVar(&assistURL, "assist-url", "", "Base `URL` of the assist (summarize/translate) service")
	flag.StringVar(&geoURL, "geo-url", "", "`URL` of the geolocation lookup service")
	flag.StringVar(&logFile, "log-file", "", "Session log `file` to load on start and save on exit")
	flag.IntVar(&keepDays, "keep-days", 30, "Number of calendar days of session logs to retain")
	flag.DurationVar(&connectTimeout, "connect-timeout", 20*time.Second, "Timeout for establishing a connection")
	flag.DurationVar(&commandTimeout, "command-timeout", 5*time.Second, "Timeout for commands sent to the glove")
	flag.Parse()

	if debug {
		log.SetLevel(log.LevelDebug)
	}

	store := sessionlog.New(keepDays)
	if logFile != "" {
		if loaded, err := sessionlog.ImportFromFile(logFile); err == nil {
			loaded.MaxDays = keepDays
			store = loaded
		} else if !os.IsNotExist(err) {
			writeErr("Failed to load session log: %s", err)
			return
		}
	}
	defer func() {
		if logFile == "" {
			return
		}
		if err := store.ExportToFile(logFile); err != nil {
			writeErr("Failed to save session log: %s", err)
		}
	}()

	link := glove.NewLink(glove.Config{
		OnLogLine: func(entry glove.LogEntry) {
			marker := "<"
			if entry.Direction == glove.DirectionOut {
				marker = ">"
			}
			fmt.Printf("%s %s\n", marker, entry.Text)
			store.Append(sessionlog.FromLogEntry(entry))
		},
		OnConnectionChange: func(kind transport.Kind, md transport.Metadata) {
			if kind == transport.KindNone {
				fmt.Println("[disconnected]")
				return
			}
			fmt.Printf("[connected: %s %v]\n", kind, md)
		},
	})
	defer link.Disconnect()

	env := &environment{
		link:           link,
		store:          store,
		geoClient:      nil,
		useHCI:         useHCI,
		portName:       portName,
		connectTimeout: connectTimeout,
		commandTimeout: commandTimeout,
	}

	if assistURL != "" {
		client, err := assist.NewClient(assistURL, loadAssistToken())
		if err != nil {
			writeErr("Failed to configure assist service: %s", err)
			return
		}
		env.assistClient = client
	}
	if geoURL != "" {
		env.geoClient = geo.NewClient(geoURL)
	}

	if flag.NArg() > 0 {
		status = runCommand(env, flag.Args())
		return
	}
	status = runInteractiveShell(env)
}
