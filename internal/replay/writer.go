package replay

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sync"
	"time"

	"github.com/golang/snappy"
	"github.com/google/uuid"
	"github.com/klauspost/compress/zstd"

	"autobattler/arbiter/internal/combat"
	"autobattler/arbiter/internal/input"
)

var writerMatchCleaner = regexp.MustCompile(`[^a-zA-Z0-9_-]+`)

const (
	manifestFile = "manifest.json"
	headerFile   = "header.json"
	inputFile    = "input.json.zst"
	eventsFile   = "events.jsonl.sz"
)

// Manifest describes the replay bundle layout so tooling can locate artefacts.
type Manifest struct {
	Version    int    `json:"version"`
	BundleID   string `json:"bundle_id"`
	CreatedAt  string `json:"created_at"`
	InputPath  string `json:"input_path"`
	EventsPath string `json:"events_path"`
	HeaderPath string `json:"header_path"`
}

// Writer streams one simulation's artefacts into a bundle directory.
type Writer struct {
	mu          sync.Mutex
	dir         string
	bundleID    string
	eventFile   *os.File
	eventStream *snappy.Writer
	events      int
	header      *Header
	closed      bool
}

// NewWriter prepares the bundle directory and opens the compressed event sink.
func NewWriter(root, matchID string, clock func() time.Time) (*Writer, Manifest, error) {
	if root == "" {
		return nil, Manifest{}, fmt.Errorf("replay root must be provided")
	}
	if clock == nil {
		clock = time.Now
	}

	cleaned := writerMatchCleaner.ReplaceAllString(matchID, "")
	if cleaned == "" {
		cleaned = "match"
	}
	bundleID := uuid.NewString()
	created := clock().UTC()
	//1.- The uuid suffix keeps concurrent bundles of one match apart.
	folder := fmt.Sprintf("%s-%s-%s", cleaned, created.Format("20060102T150405Z"), bundleID[:8])
	path := filepath.Join(root, folder)
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, Manifest{}, err
	}

	eventFile, err := os.Create(filepath.Join(path, eventsFile))
	if err != nil {
		return nil, Manifest{}, err
	}

	manifest := Manifest{
		Version:    1,
		BundleID:   bundleID,
		CreatedAt:  created.Format(time.RFC3339Nano),
		InputPath:  inputFile,
		EventsPath: eventsFile,
		HeaderPath: headerFile,
	}
	data, err := json.MarshalIndent(manifest, "", "  ")
	if err == nil {
		err = os.WriteFile(filepath.Join(path, manifestFile), append(data, '\n'), 0o644)
	}
	if err != nil {
		eventFile.Close()
		return nil, Manifest{}, err
	}

	return &Writer{
		dir:         path,
		bundleID:    bundleID,
		eventFile:   eventFile,
		eventStream: snappy.NewBufferedWriter(eventFile),
	}, manifest, nil
}

// Directory exposes the directory backing the replay bundle.
func (w *Writer) Directory() string {
	if w == nil {
		return ""
	}
	return w.dir
}

// BundleID returns the identifier recorded in the manifest.
func (w *Writer) BundleID() string {
	if w == nil {
		return ""
	}
	return w.bundleID
}

// WriteInput stores the exact combat input as zstd-compressed JSON.
func (w *Writer) WriteInput(in input.Combat) error {
	if w == nil {
		return fmt.Errorf("writer not initialised")
	}
	payload, err := json.Marshal(in)
	if err != nil {
		return err
	}
	encoder, err := zstd.NewWriter(nil)
	if err != nil {
		return err
	}
	defer encoder.Close()
	compressed := encoder.EncodeAll(payload, nil)
	return os.WriteFile(filepath.Join(w.dir, inputFile), compressed, 0o644)
}

// AppendEvent writes a single JSON event line to the compressed event log.
func (w *Writer) AppendEvent(event combat.Event) error {
	if w == nil {
		return fmt.Errorf("writer not initialised")
	}
	line, err := json.Marshal(event)
	if err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return fmt.Errorf("writer closed")
	}
	if _, err := w.eventStream.Write(append(line, '\n')); err != nil {
		return err
	}
	w.events++
	return nil
}

// Commit records the result whose header is written on Close.
func (w *Writer) Commit(result combat.Result) {
	if w == nil {
		return
	}
	header := HeaderFromResult(w.bundleID, result)
	w.mu.Lock()
	w.header = &header
	w.mu.Unlock()
}

// Close flushes the event stream, writes the header and releases file handles.
func (w *Writer) Close() error {
	if w == nil {
		return nil
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true

	//1.- Attempt every step and surface the first failure.
	var firstErr error
	if w.header != nil {
		if err := WriteHeader(filepath.Join(w.dir, headerFile), *w.header); err != nil {
			firstErr = err
		}
	} else {
		firstErr = fmt.Errorf("bundle %s closed without a committed result", w.bundleID)
	}
	if err := w.eventStream.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := w.eventFile.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

// WriteBundle persists a finished simulation in one call and returns the bundle directory.
func WriteBundle(root string, in input.Combat, result combat.Result, clock func() time.Time) (string, error) {
	writer, _, err := NewWriter(root, in.Meta.MatchID, clock)
	if err != nil {
		return "", err
	}
	if err := writer.WriteInput(in); err != nil {
		writer.Close()
		return "", err
	}
	for _, event := range result.Events {
		if err := writer.AppendEvent(event); err != nil {
			writer.Close()
			return "", err
		}
	}
	writer.Commit(result)
	if err := writer.Close(); err != nil {
		return "", err
	}
	return writer.Directory(), nil
}
