package replay

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"autobattler/arbiter/internal/logging"
)

// defaultIncompleteAfter is how long a bundle may stay without a header before
// it is treated as an abandoned write.
const defaultIncompleteAfter = 15 * time.Minute

// RetentionPolicy bounds the committed bundles kept on disk. Zero limits are disabled.
type RetentionPolicy struct {
	MaxBundles      int
	MaxAge          time.Duration
	IncompleteAfter time.Duration
}

// StorageStats summarises the disk footprint of persisted bundles.
type StorageStats struct {
	Bundles    int
	Incomplete int
	Bytes      int64
	Removed    int
	LastSweep  time.Time
}

// Cleaner prunes bundle directories under one replay root. Only directories
// holding a readable manifest are considered; anything else is left alone.
type Cleaner struct {
	mu     sync.RWMutex
	dir    string
	policy RetentionPolicy
	log    *logging.Logger
	now    func() time.Time
	stats  StorageStats
}

// NewCleaner constructs a cleaner for the provided replay directory.
func NewCleaner(dir string, policy RetentionPolicy, logger *logging.Logger) *Cleaner {
	if logger == nil {
		logger = logging.L()
	}
	if policy.IncompleteAfter <= 0 {
		policy.IncompleteAfter = defaultIncompleteAfter
	}
	return &Cleaner{dir: dir, policy: policy, log: logger, now: time.Now}
}

// Run sweeps immediately and then every interval until the context is cancelled.
func (c *Cleaner) Run(ctx context.Context, interval time.Duration) {
	if c == nil || ctx == nil {
		return
	}
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	c.sweep()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.sweep()
		}
	}
}

// RunOnce performs a single retention sweep.
func (c *Cleaner) RunOnce() {
	if c == nil {
		return
	}
	c.sweep()
}

// Stats returns the statistics of the last successful sweep.
func (c *Cleaner) Stats() StorageStats {
	if c == nil {
		return StorageStats{}
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.stats
}

type storedBundle struct {
	name      string
	path      string
	created   time.Time
	committed bool
	size      int64
}

func (c *Cleaner) sweep() {
	if c == nil || strings.TrimSpace(c.dir) == "" {
		return
	}
	bundles, err := c.scan()
	if err != nil {
		c.log.Warn("replay retention scan failed", logging.Error(err), logging.String("directory", c.dir))
		return
	}
	now := c.now()
	stats := StorageStats{LastSweep: now}
	for _, bundle := range bundles {
		if reason := c.removalReason(bundle, now, stats.Bundles); reason != "" {
			if err := os.RemoveAll(bundle.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
				c.log.Warn("replay retention removal failed", logging.Error(err), logging.String("bundle", bundle.name))
			} else {
				stats.Removed++
				c.log.Info("replay bundle pruned", logging.String("bundle", bundle.name), logging.String("reason", reason))
				continue
			}
		}
		//1.- Kept or unremovable bundles both still occupy disk.
		if bundle.committed {
			stats.Bundles++
		} else {
			stats.Incomplete++
		}
		stats.Bytes += bundle.size
	}
	c.mu.Lock()
	c.stats = stats
	c.mu.Unlock()
}

// scan lists bundle directories newest first by manifest creation time.
func (c *Cleaner) scan() ([]storedBundle, error) {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return nil, err
	}
	bundles := make([]storedBundle, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		path := filepath.Join(c.dir, entry.Name())
		bundle, ok := c.inspect(path)
		if !ok {
			continue
		}
		bundles = append(bundles, bundle)
	}
	sort.Slice(bundles, func(i, j int) bool {
		if bundles[i].created.Equal(bundles[j].created) {
			return bundles[i].name > bundles[j].name
		}
		return bundles[i].created.After(bundles[j].created)
	})
	return bundles, nil
}

func (c *Cleaner) inspect(path string) (storedBundle, bool) {
	data, err := os.ReadFile(filepath.Join(path, manifestFile))
	if err != nil {
		return storedBundle{}, false
	}
	var manifest Manifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		c.log.Warn("replay retention skipped unreadable manifest", logging.Error(err), logging.String("path", path))
		return storedBundle{}, false
	}
	size, newest, err := footprint(path)
	if err != nil {
		c.log.Warn("replay retention size failed", logging.Error(err), logging.String("path", path))
		return storedBundle{}, false
	}
	//1.- The manifest timestamp is authoritative; file times only cover manifests without one.
	created, err := time.Parse(time.RFC3339Nano, manifest.CreatedAt)
	if err != nil {
		created = newest
	}
	_, headerErr := os.Stat(filepath.Join(path, pathOr(manifest.HeaderPath, headerFile)))
	return storedBundle{
		name:      filepath.Base(path),
		path:      path,
		created:   created,
		committed: headerErr == nil,
		size:      size,
	}, true
}

// removalReason returns why a bundle should go, or "" to keep it. kept counts
// committed bundles already retained by this sweep.
func (c *Cleaner) removalReason(bundle storedBundle, now time.Time, kept int) string {
	age := now.Sub(bundle.created)
	switch {
	case !bundle.committed && age > c.policy.IncompleteAfter:
		return "incomplete"
	case !bundle.committed:
		return ""
	case c.policy.MaxAge > 0 && age > c.policy.MaxAge:
		return "expired"
	case c.policy.MaxBundles > 0 && kept >= c.policy.MaxBundles:
		return "over_limit"
	}
	return ""
}

func footprint(root string) (int64, time.Time, error) {
	var total int64
	var newest time.Time
	err := filepath.WalkDir(root, func(_ string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		total += info.Size()
		if info.ModTime().After(newest) {
			newest = info.ModTime()
		}
		return nil
	})
	return total, newest, err
}
