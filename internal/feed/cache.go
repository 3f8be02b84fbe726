package feed

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/netip"
	"os"
	"path/filepath"
	"time"
)

// ErrNoSnapshot indicates no cached snapshot exists for the family yet.
var ErrNoSnapshot = errors.New("no cached snapshot; run update first")

// Cache persists normalized snapshots on disk, one JSON file per family
// with a metadata sidecar carrying a checksum. Writes go through a temp
// file and rename so a crash never leaves a half-written snapshot behind.
type Cache struct {
	dir string
}

// NewCache creates a cache rooted at dir.
func NewCache(dir string) *Cache {
	return &Cache{dir: dir}
}

type snapshotFile struct {
	Family    Family                 `json:"family"`
	FetchedAt time.Time              `json:"fetched_at"`
	ASNs      map[string]snapshotASN `json:"asns"`
}

type snapshotASN struct {
	Name     string   `json:"name,omitempty"`
	Prefixes []string `json:"prefixes"`
}

type snapshotMeta struct {
	SavedAt  time.Time `json:"saved_at"`
	Size     int       `json:"size"`
	Checksum string    `json:"checksum"`
}

func (c *Cache) dataPath(family Family) string {
	return filepath.Join(c.dir, fmt.Sprintf("snapshot-%s.json", family))
}

func (c *Cache) metaPath(family Family) string {
	return filepath.Join(c.dir, fmt.Sprintf("snapshot-%s.meta", family))
}

// Save writes the snapshot, replacing any previous one for the family.
func (c *Cache) Save(s *Snapshot) error {
	if err := os.MkdirAll(c.dir, 0755); err != nil {
		return fmt.Errorf("failed to create cache dir: %w", err)
	}

	sf := snapshotFile{
		Family:    s.family,
		FetchedAt: s.fetchedAt,
		ASNs:      make(map[string]snapshotASN, len(s.prefixes)),
	}
	for asn, prefixes := range s.prefixes {
		entry := snapshotASN{
			Name:     s.names[asn],
			Prefixes: make([]string, len(prefixes)),
		}
		for i, p := range prefixes {
			entry.Prefixes[i] = p.String()
		}
		sf.ASNs[fmt.Sprintf("%d", asn)] = entry
	}

	data, err := json.Marshal(sf)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	if err := writeFileAtomic(c.dataPath(s.family), data); err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}

	meta := snapshotMeta{
		SavedAt:  time.Now(),
		Size:     len(data),
		Checksum: checksum(data),
	}
	metaData, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot metadata: %w", err)
	}
	if err := writeFileAtomic(c.metaPath(s.family), metaData); err != nil {
		return fmt.Errorf("failed to write snapshot metadata: %w", err)
	}
	return nil
}

// Load reads the cached snapshot for the family. Returns ErrNoSnapshot
// when none exists; a checksum mismatch is reported as corruption so the
// caller can decide to re-run update.
func (c *Cache) Load(family Family) (*Snapshot, error) {
	data, err := os.ReadFile(c.dataPath(family))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNoSnapshot
		}
		return nil, fmt.Errorf("failed to read snapshot: %w", err)
	}

	if metaData, err := os.ReadFile(c.metaPath(family)); err == nil {
		var meta snapshotMeta
		if err := json.Unmarshal(metaData, &meta); err == nil && meta.Checksum != "" {
			if checksum(data) != meta.Checksum {
				return nil, fmt.Errorf("cached snapshot for %s failed checksum verification", family)
			}
		}
	}

	var sf snapshotFile
	if err := json.Unmarshal(data, &sf); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	if sf.Family != family {
		return nil, fmt.Errorf("snapshot family mismatch: have %s, want %s", sf.Family, family)
	}

	snap := &Snapshot{
		family:    sf.Family,
		fetchedAt: sf.FetchedAt,
		prefixes:  make(map[uint32][]netip.Prefix, len(sf.ASNs)),
		names:     make(map[uint32]string),
	}
	for asnStr, entry := range sf.ASNs {
		var asn uint32
		if _, err := fmt.Sscanf(asnStr, "%d", &asn); err != nil {
			continue
		}
		prefixes := make([]netip.Prefix, 0, len(entry.Prefixes))
		for _, ps := range entry.Prefixes {
			p, err := netip.ParsePrefix(ps)
			if err != nil {
				continue
			}
			prefixes = append(prefixes, p)
		}
		snap.prefixes[asn] = prefixes
		if entry.Name != "" {
			snap.names[asn] = entry.Name
		}
	}
	return snap, nil
}

func writeFileAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func checksum(data []byte) string {
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:])
}
