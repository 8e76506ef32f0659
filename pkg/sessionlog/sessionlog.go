// Package sessionlog persists glove session logs keyed by calendar date. The
// device link core does not persist anything itself; applications append
// entries from their log-line callback and read them back by date.
package sessionlog

import (
	"encoding/json"
	"io"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/glovelink/glovelink/pkg/glove"
)

// DateFormat is the key layout for a calendar date.
const DateFormat = "2006-01-02"

// Entry is one persisted log line.
type Entry struct {
	Time      time.Time `json:"time"`
	Text      string    `json:"text"`
	Direction string    `json:"direction"`
}

// FromLogEntry converts a link log entry for persistence.
func FromLogEntry(e glove.LogEntry) Entry {
	return Entry{Time: e.Time, Text: e.Text, Direction: e.Direction.String()}
}

// Store holds session logs for up to MaxDays calendar dates, evicting the
// oldest date once the limit is exceeded. Set MaxDays to zero for an
// unbounded store.
type Store struct {
	MaxDays int
	Days    map[string][]Entry `json:"days"`
	lock    sync.Mutex
}

// New returns an empty Store limited to maxDays dates.
func New(maxDays int) *Store {
	return &Store{
		MaxDays: maxDays,
		Days:    make(map[string][]Entry),
	}
}

// Import reads a Store previously written with [Store.Export].
func Import(r io.Reader) (*Store, error) {
	var store Store
	if err := json.NewDecoder(r).Decode(&store); err != nil {
		return nil, err
	}
	if store.Days == nil {
		store.Days = make(map[string][]Entry)
	}
	return &store, nil
}

// ImportFromFile reads a Store from disk.
func ImportFromFile(filename string) (*Store, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return Import(file)
}

// Export writes the serialized Store to w.
func (s *Store) Export(w io.Writer) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	return json.NewEncoder(w).Encode(s)
}

// ExportToFile writes the Store to disk.
func (s *Store) ExportToFile(filename string) error {
	file, err := os.OpenFile(filename, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}
	defer file.Close()
	return s.Export(file)
}

// Append adds an entry under its own calendar date.
func (s *Store) Append(entry Entry) {
	s.lock.Lock()
	defer s.lock.Unlock()

	date := entry.Time.Format(DateFormat)
	s.Days[date] = append(s.Days[date], entry)

	if s.MaxDays <= 0 {
		return
	}
	for len(s.Days) > s.MaxDays {
		oldest := ""
		for d := range s.Days {
			if oldest == "" || d < oldest {
				oldest = d
			}
		}
		delete(s.Days, oldest)
	}
}

// Read returns the entries recorded under date (DateFormat layout), in
// append order. The returned slice is a copy.
func (s *Store) Read(date string) []Entry {
	s.lock.Lock()
	defer s.lock.Unlock()
	return append([]Entry{}, s.Days[date]...)
}

// Dates lists the dates with recorded entries, oldest first.
func (s *Store) Dates() []string {
	s.lock.Lock()
	defer s.lock.Unlock()
	dates := make([]string, 0, len(s.Days))
	for d := range s.Days {
		dates = append(dates, d)
	}
	sort.Strings(dates)
	return dates
}
