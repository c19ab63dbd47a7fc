// Package storage persists uploaded field-data files and reports their size
// and BLAKE2b-256 checksum.
package storage

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"io"
	"path"
	"strings"
	"time"

	"golang.org/x/crypto/blake2b"
)

var ErrNotFound = errors.New("blob not found")

// Object describes a stored blob.
type Object struct {
	Key      string `json:"key"`
	Location string `json:"location"`
	Size     int64  `json:"size"`
	Checksum string `json:"checksum"`
}

// BlobStore is the file persistence collaborator of the upload service.
type BlobStore interface {
	Put(ctx context.Context, key string, body io.Reader) (*Object, error)
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}

// Presigner is implemented by stores that can hand out direct download links.
type Presigner interface {
	GetPresignedURL(ctx context.Context, key string, expiration time.Duration) (string, error)
}

// checksumReader hashes and counts everything read through it.
type checksumReader struct {
	r    io.Reader
	h    hash.Hash
	size int64
}

func newChecksumReader(r io.Reader) *checksumReader {
	h, _ := blake2b.New256(nil)
	return &checksumReader{r: r, h: h}
}

func (c *checksumReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	if n > 0 {
		c.h.Write(p[:n])
		c.size += int64(n)
	}
	return n, err
}

func (c *checksumReader) Sum() string {
	return "blake2b-256:" + hex.EncodeToString(c.h.Sum(nil))
}

// Checksum hashes r the same way Put does.
func Checksum(r io.Reader) (string, error) {
	cr := newChecksumReader(r)
	if _, err := io.Copy(io.Discard, cr); err != nil {
		return "", err
	}
	return cr.Sum(), nil
}

// GenerateKey builds the object key for an uploaded file.
func GenerateKey(prefix, projectID, uploadID, fileName string) string {
	return path.Join(prefix, "projects", projectID, "uploads", uploadID, fileName)
}

// cleanKey rejects keys that would escape the store root.
func cleanKey(key string) (string, error) {
	cleaned := path.Clean("/" + key)[1:]
	if cleaned == "" || strings.HasPrefix(cleaned, "..") {
		return "", fmt.Errorf("invalid object key %q", key)
	}
	return cleaned, nil
}
