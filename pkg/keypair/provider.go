package keypair

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Provider loads signing keys by reference.
type Provider interface {
	// Load returns ErrKeyNotFound when the reference does not resolve to
	// well formed key material.
	Load(ctx context.Context, ref string) (*Keypair, error)
}

type fileProvider struct {
	log *logrus.Entry
	dir string
}

// NewFileProvider resolves references as paths to Solana CLI keypair files.
// Relative paths are resolved against dir.
func NewFileProvider(dir string) Provider {
	return &fileProvider{
		log: logrus.StandardLogger().WithField("type", "keypair/file"),
		dir: dir,
	}
}

func (p *fileProvider) Load(ctx context.Context, ref string) (*Keypair, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	path := p.resolve(ref)
	log := p.log.WithField("path", path)

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		log.Debug("keypair file not found")
		return nil, errors.Wrapf(ErrKeyNotFound, "no keypair at %s", path)
	} else if err != nil {
		log.WithError(err).Warn("failure reading keypair file")
		return nil, errors.Wrapf(ErrKeyNotFound, "failed to read %s: %v", path, err)
	}

	var raw []int
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, errors.Wrapf(ErrKeyNotFound, "%s is not a JSON byte array", path)
	}

	b := make([]byte, len(raw))
	for i, v := range raw {
		if v < 0 || v > 255 {
			return nil, errors.Wrapf(ErrKeyNotFound, "%s contains out of range byte %d", path, v)
		}
		b[i] = byte(v)
	}

	kp, err := FromBytes(b)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid keypair in %s", path)
	}

	log.WithField("address", kp.Address()).Debug("loaded keypair")
	return kp, nil
}

func (p *fileProvider) resolve(ref string) string {
	if filepath.IsAbs(ref) || p.dir == "" {
		return ref
	}
	return filepath.Join(p.dir, ref)
}

// Save writes kp to path in the Solana CLI format, readable only by the owner.
// Existing files are never overwritten.
func Save(path string, kp *Keypair) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0600)
	if err != nil {
		return errors.Wrapf(err, "failed to create %s", path)
	}
	defer f.Close()

	if _, err := f.Write(kp.MarshalWallet()); err != nil {
		return errors.Wrapf(err, "failed to write %s", path)
	}
	return f.Sync()
}

// MemoryProvider is a Provider backed by a map, for tests.
type MemoryProvider struct {
	mu   sync.RWMutex
	keys map[string]*Keypair
}

// NewMemoryProvider returns an empty MemoryProvider.
func NewMemoryProvider() *MemoryProvider {
	return &MemoryProvider{
		keys: make(map[string]*Keypair),
	}
}

func (p *MemoryProvider) Put(ref string, kp *Keypair) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.keys[ref] = kp
}

func (p *MemoryProvider) Load(_ context.Context, ref string) (*Keypair, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	kp, ok := p.keys[ref]
	if !ok {
		return nil, errors.Wrapf(ErrKeyNotFound, "no keypair for %s", ref)
	}
	return kp, nil
}
