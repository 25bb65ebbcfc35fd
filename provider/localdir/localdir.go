// Package localdir implements a persistent on-disk provider: one file per
// key under a base directory. It is the terminal's durable local storage:
// cached resource lists survive application restarts, so the first page of
// a fresh launch can render without a network round-trip.
//
// Concurrency model: a single application instance at a time owns the
// directory. Concurrent terminals pointed at the same directory race with
// last-write-wins semantics (writes are atomic via rename, so readers never
// observe a torn file).
package localdir

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// File layout: expiry unix-milli (u64 be; 0 = no expiry) followed by the
// raw value bytes.
const headerLen = 8

type Provider struct {
	dir string
	mu  sync.Mutex
}

type Config struct {
	// Dir is the base directory; created (0o700) if missing.
	Dir string
}

func New(cfg Config) (*Provider, error) {
	if cfg.Dir == "" {
		return nil, errors.New("localdir: dir is required")
	}
	if err := os.MkdirAll(cfg.Dir, 0o700); err != nil {
		return nil, fmt.Errorf("localdir: create dir: %w", err)
	}
	return &Provider{dir: cfg.Dir}, nil
}

func (p *Provider) path(key string) string {
	sum := sha256.Sum256([]byte(key))
	return filepath.Join(p.dir, hex.EncodeToString(sum[:16])+".cache")
}

func (p *Provider) Get(_ context.Context, key string) ([]byte, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	fp := p.path(key)
	b, err := os.ReadFile(fp)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	if len(b) < headerLen {
		// torn or foreign file; drop it
		_ = os.Remove(fp)
		return nil, false, nil
	}
	expMs := int64(binary.BigEndian.Uint64(b[:headerLen]))
	if expMs != 0 && time.Now().UnixMilli() > expMs {
		_ = os.Remove(fp)
		return nil, false, nil
	}
	return b[headerLen:], true, nil
}

func (p *Provider) Set(_ context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	var expMs int64
	if ttl > 0 {
		expMs = time.Now().Add(ttl).UnixMilli()
	}
	buf := make([]byte, headerLen+len(value))
	binary.BigEndian.PutUint64(buf[:headerLen], uint64(expMs))
	copy(buf[headerLen:], value)

	fp := p.path(key)
	tmp := fp + ".tmp"
	if err := os.WriteFile(tmp, buf, 0o600); err != nil {
		return false, err
	}
	if err := os.Rename(tmp, fp); err != nil {
		_ = os.Remove(tmp)
		return false, err
	}
	return true, nil
}

func (p *Provider) Del(_ context.Context, key string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	err := os.Remove(p.path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

func (p *Provider) Close(_ context.Context) error { return nil }
