// Package cache keeps finished transcode outputs so an identical job can be
// answered with a copy. Entries are indexed in the repository and evicted
// least recently used first once the cache grows past its byte limit.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/sonroyaalmerol/opusify/internal/config"
	"github.com/sonroyaalmerol/opusify/internal/repository"
)

type FileCache struct {
	cfg  *config.Config
	repo *repository.Repo
	mu   sync.Mutex
}

func NewFileCache(cfg *config.Config, repo *repository.Repo) *FileCache {
	return &FileCache{cfg: cfg, repo: repo}
}

func (c *FileCache) HashKey(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// JobKey identifies a job by its input file and the encode target. An input
// that is rewritten in place gets a new key through its size and mtime.
func (c *FileCache) JobKey(inputPath, target string) (string, error) {
	abs, err := filepath.Abs(inputPath)
	if err != nil {
		return "", err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", err
	}
	return c.HashKey(fmt.Sprintf("%s|%d|%d|%s", abs, info.Size(), info.ModTime().UnixNano(), target)), nil
}

func (c *FileCache) PathFor(hash string) string {
	return filepath.Join(c.cfg.CacheDir, hash)
}

func (c *FileCache) Get(ctx context.Context, hash string) (string, bool) {
	p := c.PathFor(hash)
	if _, err := os.Stat(p); err == nil {
		_ = c.repo.CacheTouch(ctx, hash, 0, false)
		return p, true
	}
	_ = c.repo.CacheRemove(ctx, hash)
	return "", false
}

func (c *FileCache) CreateTemp(hash string) (*os.File, string, error) {
	tmp := filepath.Join(c.cfg.CacheDir, "tmp", hash)
	f, err := os.Create(tmp)
	return f, tmp, err
}

func (c *FileCache) Commit(ctx context.Context, tmp, finalPath, hash string) error {
	info, err := os.Stat(tmp)
	if err != nil {
		return err
	}
	if info.Size() == 0 {
		_ = os.Remove(tmp)
		return nil
	}
	if err := os.Rename(tmp, finalPath); err != nil {
		return err
	}
	_ = c.repo.CacheTouch(ctx, hash, info.Size(), true)
	return c.evictIfNeeded(ctx)
}

func (c *FileCache) evictIfNeeded(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	total, err := c.repo.CacheTotalBytes(ctx)
	if err != nil {
		return err
	}
	for total > c.cfg.CacheLimitBytes {
		oldest, err := c.repo.CacheOldest(ctx)
		if err != nil {
			return err
		}
		p := c.PathFor(oldest)
		_ = os.Remove(p)
		_ = c.repo.CacheRemove(ctx, oldest)
		total, err = c.repo.CacheTotalBytes(ctx)
		if err != nil {
			return err
		}
	}
	return nil
}

// Store copies a finished output into the cache under hash.
func (c *FileCache) Store(ctx context.Context, hash, srcPath string) error {
	src, err := os.Open(srcPath)
	if err != nil {
		return err
	}
	defer src.Close()

	f, tmp, err := c.CreateTemp(hash)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, src); err != nil {
		f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return c.Commit(ctx, tmp, c.PathFor(hash), hash)
}

// Restore copies the cached output for hash to dstPath. It reports false
// when nothing is cached.
func (c *FileCache) Restore(ctx context.Context, hash, dstPath string) (bool, error) {
	p, ok := c.Get(ctx, hash)
	if !ok {
		return false, nil
	}
	src, err := os.Open(p)
	if err != nil {
		return false, err
	}
	defer src.Close()

	dst, err := os.Create(dstPath)
	if err != nil {
		return false, err
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		_ = os.Remove(dstPath)
		return false, err
	}
	return true, dst.Close()
}
