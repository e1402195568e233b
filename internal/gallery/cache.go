package gallery

import (
	"bytes"
	"crypto/sha256"
	"encoding/gob"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Cache artifact layout: a 5-byte header (magic + version) followed by a
// gob-encoded payload. The header lets version skew or corruption fail
// loudly instead of deserializing garbage.
var cacheMagic = []byte("FAGL")

const cacheVersion = 1

var (
	ErrNoCache      = errors.New("gallery cache not found")
	ErrCacheStale   = errors.New("gallery cache is stale relative to reference directory")
	ErrCacheCorrupt = errors.New("gallery cache is corrupt")
)

// cachePayload is the serialized form of a gallery.
type cachePayload struct {
	Dim        int
	Count      int
	DirHash    string // content hash of the reference directory at build time
	Embeddings [][]float32
	Names      []string
}

// DirHash computes a SHA-256 content hash over the reference images in dir
// (file names and contents, in enumeration order). It keys the cache so
// staleness is detected rather than assumed away.
func DirHash(dir string) (string, error) {
	files, err := ReferenceImages(dir)
	if err != nil {
		return "", err
	}

	h := sha256.New()
	for _, file := range files {
		io.WriteString(h, file)
		h.Write([]byte{0})
		data, err := os.ReadFile(filepath.Join(dir, file)) //nolint:gosec // file names come from ReadDir
		if err != nil {
			return "", fmt.Errorf("hashing reference image %s: %w", file, err)
		}
		h.Write(data)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Save serializes the gallery to path, keyed by dirHash.
// The write goes through a temp file and rename so a crash mid-write
// never leaves a truncated artifact behind.
func Save(path string, g *Gallery, dirHash string) error {
	payload := cachePayload{
		Dim:        g.Dim(),
		Count:      g.Len(),
		DirHash:    dirHash,
		Embeddings: g.Embeddings,
		Names:      g.Names,
	}

	var buf bytes.Buffer
	buf.Write(cacheMagic)
	buf.WriteByte(cacheVersion)
	if err := gob.NewEncoder(&buf).Encode(payload); err != nil {
		return fmt.Errorf("encoding gallery cache: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0o600); err != nil {
		return fmt.Errorf("writing gallery cache: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replacing gallery cache: %w", err)
	}
	return nil
}

// Load deserializes a previously cached gallery and the directory hash it
// was built from. Returns ErrNoCache if no artifact exists and
// ErrCacheCorrupt on a bad header, version skew, or inconsistent payload.
func Load(path string) (*Gallery, string, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path comes from configuration
	if err != nil {
		if os.IsNotExist(err) {
			return nil, "", ErrNoCache
		}
		return nil, "", fmt.Errorf("reading gallery cache: %w", err)
	}

	if len(data) < len(cacheMagic)+1 || !bytes.Equal(data[:len(cacheMagic)], cacheMagic) {
		return nil, "", fmt.Errorf("%w: bad header", ErrCacheCorrupt)
	}
	if v := data[len(cacheMagic)]; v != cacheVersion {
		return nil, "", fmt.Errorf("%w: unsupported version %d", ErrCacheCorrupt, v)
	}

	var payload cachePayload
	dec := gob.NewDecoder(bytes.NewReader(data[len(cacheMagic)+1:]))
	if err := dec.Decode(&payload); err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrCacheCorrupt, err)
	}

	if len(payload.Embeddings) != payload.Count || len(payload.Names) != payload.Count {
		return nil, "", fmt.Errorf("%w: count mismatch", ErrCacheCorrupt)
	}
	for i, emb := range payload.Embeddings {
		if len(emb) != payload.Dim {
			return nil, "", fmt.Errorf("%w: entry %d has dimension %d, header says %d",
				ErrCacheCorrupt, i, len(emb), payload.Dim)
		}
	}

	return &Gallery{Embeddings: payload.Embeddings, Names: payload.Names}, payload.DirHash, nil
}

// LoadValid loads the cache and verifies it against the current content of
// the reference directory. Returns ErrCacheStale when the directory changed
// since the cache was written.
func LoadValid(path, referenceDir string) (*Gallery, error) {
	g, cachedHash, err := Load(path)
	if err != nil {
		return nil, err
	}

	currentHash, err := DirHash(referenceDir)
	if err != nil {
		return nil, err
	}
	if cachedHash != currentHash {
		return nil, ErrCacheStale
	}
	return g, nil
}
