package mount

import (
	"context"
	"fmt"
	"path"
	"time"

	"github.com/ipfs/go-datastore"
	leveldb "github.com/ipfs/go-ds-leveldb"

	"github.com/wildland-go/wildland/backend"
	"github.com/wildland-go/wildland/errcode"
	"github.com/wildland-go/wildland/internal/wlcontext"
)

// HashDb is the on-disk, per-path content-hash cache the sync daemon
// consults to tell "changed since last sync" from "conflicting change",
// keyed (container-uuid, backend-id, path) -> digest, per spec section 4.7
// and section 6's "Hash cache DB" on-disk state entry. Backed by
// github.com/ipfs/go-ds-leveldb the way registry/storage/driver/ipfs/
// driver.go keeps its own key-value metadata store next to blob storage.
type HashDb struct {
	store datastore.Datastore
}

// OpenHashDb opens (creating if absent) a leveldb-backed HashDb at path.
func OpenHashDb(path string) (*HashDb, error) {
	ds, err := leveldb.NewDatastore(path, nil)
	if err != nil {
		return nil, fmt.Errorf("mount: opening hash db at %s: %w", path, err)
	}
	return &HashDb{store: ds}, nil
}

func hashKey(containerUUID, backendID, path string) datastore.Key {
	return datastore.NewKey(fmt.Sprintf("/%s/%s%s", containerUUID, backendID, path))
}

// Get returns the last-recorded hash for path, or ok=false if never synced.
func (h *HashDb) Get(ctx context.Context, containerUUID, backendID, path string) (string, bool) {
	v, err := h.store.Get(ctx, hashKey(containerUUID, backendID, path))
	if err != nil {
		return "", false
	}
	return string(v), true
}

// Put records hash as the last-synced content hash for path.
func (h *HashDb) Put(ctx context.Context, containerUUID, backendID, path, hash string) error {
	return h.store.Put(ctx, hashKey(containerUUID, backendID, path), []byte(hash))
}

// Close releases the underlying leveldb handle.
func (h *HashDb) Close() error {
	if closer, ok := h.store.(interface{ Close() error }); ok {
		return closer.Close()
	}
	return nil
}

// Syncer keeps two storages byte-identical for one container, the worker
// spec section 4.7 describes using get_hash/get_file_token to detect
// changes and report conflicts via the hash cache.
type Syncer struct {
	ContainerUUID string
	SourceID      string
	DestID        string
	Source        backend.Backend
	Dest          backend.Backend
	HashDb        *HashDb
	Interval      time.Duration

	stopCh chan struct{}
}

// NewSyncer builds a syncer between two already-mounted backends of the
// same container.
func NewSyncer(containerUUID, sourceID, destID string, source, dest backend.Backend, db *HashDb) *Syncer {
	return &Syncer{
		ContainerUUID: containerUUID,
		SourceID:      sourceID,
		DestID:        destID,
		Source:        source,
		Dest:          dest,
		HashDb:        db,
		Interval:      3 * time.Second,
		stopCh:        make(chan struct{}),
	}
}

// Start runs the sync loop in a background goroutine until Stop is called.
func (s *Syncer) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(s.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-s.stopCh:
				return
			case <-ticker.C:
				s.syncOnce(ctx)
			}
		}
	}()
}

// Stop ends the sync loop; safe to call more than once.
func (s *Syncer) Stop() {
	select {
	case <-s.stopCh:
	default:
		close(s.stopCh)
	}
}

// syncOnce walks the source tree and, for every file whose content hash
// differs from the last-recorded one, copies source to dest — unless dest
// also changed since the last sync, which is reported as
// ConflictDuringSync rather than silently overwritten, per spec section 7.
func (s *Syncer) syncOnce(ctx context.Context) {
	logger := wlcontext.GetLogger(ctx)
	paths, err := s.listPaths()
	if err != nil {
		logger.Warnf("mount: sync listing %s: %v", s.ContainerUUID, err)
		return
	}

	for _, path := range paths {
		if err := s.syncPath(ctx, path); err != nil {
			logger.Warnf("mount: sync %s: %v", path, err)
		}
	}
}

func (s *Syncer) listPaths() ([]string, error) {
	return walkFiles(s.Source, "/")
}

// walkFiles recursively lists every plain file under root in b, the "every
// file in this storage" enumeration GetChildren deliberately doesn't
// provide (GetChildren is reserved for manifest-pattern subcontainer
// discovery, spec section 4.4). Built entirely from ReadDir/GetAttr, so it
// needs no change to the Backend interface.
func walkFiles(b backend.Backend, root string) ([]string, error) {
	names, err := b.ReadDir(root)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, name := range names {
		p := path.Join(root, name)
		attr, err := b.GetAttr(p)
		if err != nil {
			continue
		}
		if attr.IsDir {
			children, err := walkFiles(b, p)
			if err != nil {
				continue
			}
			out = append(out, children...)
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

func (s *Syncer) syncPath(ctx context.Context, path string) error {
	srcHash, err := s.Source.GetHash(path)
	if err != nil {
		return err
	}
	last, known := s.HashDb.Get(ctx, s.ContainerUUID, s.SourceID, path)
	if known && last == srcHash {
		return nil // source unchanged since last sync
	}

	destHash, err := s.Dest.GetHash(path)
	if err == nil {
		lastDest, knownDest := s.HashDb.Get(ctx, s.ContainerUUID, s.DestID, path)
		if knownDest && lastDest != destHash && known {
			return errcode.ErrorCodeConflictDuringSync.WithArgs(path)
		}
	}

	if err := copyFile(s.Source, s.Dest, path); err != nil {
		return err
	}
	if err := s.HashDb.Put(ctx, s.ContainerUUID, s.SourceID, path, srcHash); err != nil {
		return err
	}
	if newDestHash, err := s.Dest.GetHash(path); err == nil {
		_ = s.HashDb.Put(ctx, s.ContainerUUID, s.DestID, path, newDestHash)
	}
	return nil
}

func copyFile(src, dst backend.Backend, path string) error {
	in, err := src.Open(path, 0)
	if err != nil {
		return err
	}
	defer in.Release(0)
	attr, err := in.FGetAttr()
	if err != nil {
		return err
	}
	data, err := in.Read(int(attr.Size), 0)
	if err != nil {
		return err
	}

	out, err := dst.Create(path, 0, attr.Mode)
	if err != nil {
		return err
	}
	defer out.Release(0)
	if _, err := out.Write(data, 0); err != nil {
		return err
	}
	return out.Flush()
}
