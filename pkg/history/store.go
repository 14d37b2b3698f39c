package history

import (
	"context"
	"encoding/json"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/go-go-golems/glazed/pkg/helpers/templating"
	"github.com/go-go-golems/parley/pkg/transcript"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// DefaultPathTemplate shards saved transcripts by creation date.
const DefaultPathTemplate = "{{.Year}}/{{.Month}}/{{.Day}}/{{.SessionID}}.json"

// Store persists serialized transcripts as JSON files under a base
// directory. File placement is controlled by a template rendered with the
// record's creation date and session identifier.
type Store struct {
	dir          string
	pathTemplate string
	now          func() time.Time
}

type StoreOption func(*Store)

// WithPathTemplate overrides the file placement template.
func WithPathTemplate(format string) StoreOption {
	return func(s *Store) {
		s.pathTemplate = format
	}
}

// WithClock overrides the fallback clock used when a session identifier
// does not parse as a timestamp.
func WithClock(now func() time.Time) StoreOption {
	return func(s *Store) {
		s.now = now
	}
}

func NewStore(dir string, options ...StoreOption) *Store {
	ret := &Store{
		dir:          dir,
		pathTemplate: DefaultPathTemplate,
		now:          time.Now,
	}
	for _, option := range options {
		option(ret)
	}
	return ret
}

// Save writes the record under the store directory and returns the full
// path of the written file.
func (s *Store) Save(record *transcript.Serialized) (string, error) {
	if record == nil {
		return "", errors.New("nil transcript record")
	}

	created := s.recordTime(record)
	data := map[string]interface{}{
		"Year":      created.Format("2006"),
		"Month":     created.Format("01"),
		"Day":       created.Format("02"),
		"Time":      created,
		"SessionID": sanitizeName(record.ID),
	}

	tmpl, err := templating.CreateTemplate("history-path").Parse(s.pathTemplate)
	if err != nil {
		return "", errors.Wrap(err, "invalid history path template")
	}
	var pathBuffer strings.Builder
	if err := tmpl.Execute(&pathBuffer, data); err != nil {
		return "", errors.Wrap(err, "could not render history path")
	}

	fullPath := filepath.Join(s.dir, pathBuffer.String())
	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return "", errors.Wrapf(err, "could not create history directory for %s", fullPath)
	}

	b, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return "", errors.Wrap(err, "could not marshal transcript record")
	}
	if err := os.WriteFile(fullPath, b, 0644); err != nil {
		return "", errors.Wrapf(err, "could not write transcript record to %s", fullPath)
	}

	log.Debug().
		Str("path", fullPath).
		Str("session_id", record.ID).
		Int("interactions", len(record.Interactions)).
		Msg("saved transcript")

	return fullPath, nil
}

// recordTime derives the record's creation time from its session
// identifier, which doubles as an RFC1123 timestamp. Identifiers that do
// not parse fall back to the store clock.
func (s *Store) recordTime(record *transcript.Serialized) time.Time {
	if t, err := time.Parse(time.RFC1123, record.ID); err == nil {
		return t
	}
	return s.now()
}

// LoadFile reads a single serialized transcript record.
func LoadFile(path string) (*transcript.Serialized, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "could not read transcript record %s", path)
	}
	var record transcript.Serialized
	if err := json.Unmarshal(b, &record); err != nil {
		return nil, errors.Wrapf(err, "could not parse transcript record %s", path)
	}
	return &record, nil
}

// Entry is a single row of the history listing.
type Entry struct {
	Path         string
	ID           string
	Title        string
	Interactions int
}

// List walks the store directory and loads every saved record concurrently.
// Entries come back sorted by session identifier (the creation timestamp).
func (s *Store) List(ctx context.Context) ([]Entry, error) {
	var paths []string
	err := filepath.WalkDir(s.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.HasSuffix(d.Name(), ".json") {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrapf(err, "could not walk history directory %s", s.dir)
	}

	entries := make([]Entry, len(paths))
	eg, _ := errgroup.WithContext(ctx)
	for i, path := range paths {
		i, path := i, path
		eg.Go(func() error {
			record, err := LoadFile(path)
			if err != nil {
				return err
			}
			entries[i] = Entry{
				Path:         path,
				ID:           record.ID,
				Title:        entryTitle(record),
				Interactions: len(record.Interactions),
			}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].ID < entries[j].ID
	})
	return entries, nil
}

// Delete removes a saved record. The path must live under the store
// directory.
func (s *Store) Delete(path string) error {
	rel, err := filepath.Rel(s.dir, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return errors.Errorf("path %s is outside the history directory", path)
	}
	if err := os.Remove(path); err != nil {
		return errors.Wrapf(err, "could not delete transcript record %s", path)
	}
	log.Debug().Str("path", path).Msg("deleted transcript")
	return nil
}

func entryTitle(record *transcript.Serialized) string {
	if record.ChatTitle != "" {
		return record.ChatTitle
	}
	if len(record.Interactions) > 0 {
		last := record.Interactions[len(record.Interactions)-1]
		if last.HumanMessage.DisplayText != "" {
			return last.HumanMessage.DisplayText
		}
	}
	return transcript.FallbackTitle
}

func sanitizeName(name string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '.' || r == '_' || r == '-':
			return r
		default:
			return '-'
		}
	}, name)
}
