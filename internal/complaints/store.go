// Package complaints loads and serves the tabular citizen-complaints
// dataset consumed by the geo-analytics agent. The CSV file is read
// into memory and reloaded automatically when it changes on disk.
package complaints

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"

	"github.com/sibylhq/sibyl/internal/config"
)

// Record is one citizen complaint.
type Record struct {
	ID          string
	Ward        int
	Type        string
	Status      string
	Description string
	Date        time.Time
	Latitude    float64
	Longitude   float64
}

// Open reports whether the complaint is still unresolved.
func (r Record) Open() bool {
	return strings.EqualFold(r.Status, "open")
}

// Summary aggregates a filtered record set.
type Summary struct {
	Total    int
	Open     int
	Resolved int

	// ByType counts complaints per type, descending.
	ByType []TypeCount
}

// TypeCount is one complaint-type tally.
type TypeCount struct {
	Type  string
	Count int
}

// Store holds the in-memory complaints dataset.
type Store struct {
	path string

	mu      sync.RWMutex
	records []Record

	watcher *fsnotify.Watcher
	done    chan struct{}
}

var wardColumnRe = regexp.MustCompile(`(\d+)`)

// NewStore loads the dataset and, when watching is enabled, starts a
// background reloader keyed on filesystem change events. A missing file
// is not fatal: the store starts empty and picks the file up when it
// appears.
func NewStore(cfg config.ComplaintsConfig) (*Store, error) {
	s := &Store{path: cfg.Path, done: make(chan struct{})}

	if err := s.Reload(); err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("load complaints: %w", err)
		}
		log.Warn().Str("path", cfg.Path).Msg("Complaints dataset not found, starting empty")
	}

	if cfg.Watch {
		if err := s.watch(); err != nil {
			return nil, fmt.Errorf("watch complaints: %w", err)
		}
	}

	return s, nil
}

// Reload re-reads the CSV file and swaps the in-memory dataset.
func (s *Store) Reload() error {
	f, err := os.Open(s.path) // #nosec G304 -- operator-supplied data path
	if err != nil {
		return err
	}
	defer f.Close()

	records, err := parseCSV(f)
	if err != nil {
		return fmt.Errorf("parse %s: %w", s.path, err)
	}

	s.mu.Lock()
	s.records = records
	s.mu.Unlock()

	log.Info().Str("path", s.path).Int("records", len(records)).Msg("Loaded complaints dataset")
	return nil
}

// Loaded reports whether the store holds any records.
func (s *Store) Loaded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records) > 0
}

// Count returns the number of loaded records.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Filter returns records matching the ward (0 means any) recorded on or
// after since (zero time means any).
func (s *Store) Filter(ward int, since time.Time) []Record {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Record
	for _, rec := range s.records {
		if ward > 0 && rec.Ward != ward {
			continue
		}
		if !since.IsZero() && rec.Date.Before(since) {
			continue
		}
		out = append(out, rec)
	}
	return out
}

// Summarize aggregates a record set into totals, status counts and a
// per-type breakdown sorted by frequency.
func Summarize(records []Record) Summary {
	sum := Summary{Total: len(records)}
	counts := make(map[string]int)
	for _, rec := range records {
		counts[rec.Type]++
		if rec.Open() {
			sum.Open++
		} else {
			sum.Resolved++
		}
	}

	sum.ByType = make([]TypeCount, 0, len(counts))
	for typ, n := range counts {
		sum.ByType = append(sum.ByType, TypeCount{Type: typ, Count: n})
	}
	sort.Slice(sum.ByType, func(i, j int) bool {
		if sum.ByType[i].Count != sum.ByType[j].Count {
			return sum.ByType[i].Count > sum.ByType[j].Count
		}
		return sum.ByType[i].Type < sum.ByType[j].Type
	})
	return sum
}

// Close stops the background watcher.
func (s *Store) Close() error {
	close(s.done)
	if s.watcher != nil {
		return s.watcher.Close()
	}
	return nil
}

// watch reloads the dataset whenever its file is rewritten. The parent
// directory is watched, not the file, so editors that replace the file
// (write temp + rename) still trigger a reload.
func (s *Store) watch() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := watcher.Add(filepath.Dir(s.path)); err != nil {
		_ = watcher.Close()
		return err
	}
	s.watcher = watcher

	go func() {
		for {
			select {
			case <-s.done:
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != filepath.Clean(s.path) {
					continue
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
					continue
				}
				if err := s.Reload(); err != nil {
					log.Warn().Err(err).Str("path", s.path).Msg("Complaints reload failed")
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Warn().Err(err).Msg("Complaints watcher error")
			}
		}
	}()

	return nil
}

// parseCSV reads the complaints CSV. The header row maps columns by
// name, so column order is irrelevant; unparseable rows are skipped
// with a warning rather than failing the whole load.
func parseCSV(r io.Reader) ([]Record, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.ToLower(strings.TrimSpace(name))] = i
	}

	field := func(row []string, name string) string {
		idx, ok := cols[name]
		if !ok || idx >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[idx])
	}

	var records []Record
	line := 1
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			log.Warn().Err(err).Int("line", line).Msg("Skipping malformed complaints row")
			continue
		}

		rec := Record{
			ID:          field(row, "id"),
			Type:        field(row, "type"),
			Status:      field(row, "status"),
			Description: field(row, "description"),
		}

		if m := wardColumnRe.FindString(field(row, "ward")); m != "" {
			rec.Ward, _ = strconv.Atoi(m)
		}
		if raw := field(row, "date"); raw != "" {
			date, derr := parseDate(raw)
			if derr != nil {
				log.Warn().Str("date", raw).Int("line", line).Msg("Skipping row with bad date")
				continue
			}
			rec.Date = date
		}
		rec.Latitude, _ = strconv.ParseFloat(field(row, "latitude"), 64)
		rec.Longitude, _ = strconv.ParseFloat(field(row, "longitude"), 64)

		records = append(records, rec)
	}

	return records, nil
}

func parseDate(raw string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", raw)
}
