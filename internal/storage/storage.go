// Package storage reports on and clears the local model cache.
package storage

import (
	"context"
	"errors"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/soyeahso/agentloop/internal/logging"
)

// CachedThreshold is the usage above which models are assumed to be cached.
const CachedThreshold int64 = 1_000_000_000

// Info describes the state of the model cache.
type Info struct {
	IsModelCached    bool     `json:"isModelCached"`
	TotalStorageUsed int64    `json:"totalStorageUsed"`
	ModelFiles       []string `json:"modelFiles"`
	StorageQuota     int64    `json:"storageQuota"`
	StorageUsage     int64    `json:"storageUsage"`
}

// Inspector examines a cache directory. Top-level entries whose names
// contain "mlc", "webllm" or "cache" are stores; top-level directories whose
// names contain "model", "mlc" or "webllm" are file caches whose contents
// are listed.
type Inspector struct {
	dir       string
	quota     int64
	threshold int64
	log       *logging.Logger
}

// NewInspector creates an inspector over dir. A quota of 0 means the free
// space of the underlying filesystem.
func NewInspector(dir string, quota int64, log *logging.Logger) *Inspector {
	return &Inspector{
		dir:       dir,
		quota:     quota,
		threshold: CachedThreshold,
		log:       log.Sub("storage"),
	}
}

// Dir returns the inspected directory.
func (in *Inspector) Dir() string { return in.dir }

// Inspect measures the cache. Any failure yields a zero Info.
func (in *Inspector) Inspect(ctx context.Context) Info {
	info, err := in.inspect(ctx)
	if err != nil {
		in.log.Warn().Err(err).Str("dir", in.dir).Msg("storage inspection failed")
		return Info{ModelFiles: []string{}}
	}
	return info
}

func (in *Inspector) inspect(ctx context.Context) (Info, error) {
	info := Info{ModelFiles: []string{}}

	entries, err := os.ReadDir(in.dir)
	if errors.Is(err, fs.ErrNotExist) {
		in.log.Debug().Str("dir", in.dir).Msg("cache directory does not exist")
		return info, nil
	}
	if err != nil {
		return Info{}, err
	}

	used, err := dirSize(ctx, in.dir)
	if err != nil {
		return Info{}, err
	}
	info.TotalStorageUsed = used
	info.StorageUsage = used
	info.IsModelCached = used > in.threshold

	quota := in.quota
	if quota == 0 {
		quota, err = freeSpace(in.dir)
		if err != nil {
			in.log.Debug().Err(err).Msg("could not read filesystem quota")
			quota = 0
		}
	}
	info.StorageQuota = quota

	for _, e := range entries {
		if !e.IsDir() || !isFileCache(e.Name()) {
			continue
		}
		root := filepath.Join(in.dir, e.Name())
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if err := ctx.Err(); err != nil {
				return err
			}
			if !d.IsDir() {
				rel, _ := filepath.Rel(in.dir, path)
				info.ModelFiles = append(info.ModelFiles, filepath.ToSlash(rel))
			}
			return nil
		})
		if err != nil {
			return Info{}, err
		}
	}
	sort.Strings(info.ModelFiles)

	in.log.Debug().
		Int64("used", used).
		Int64("quota", quota).
		Int("files", len(info.ModelFiles)).
		Msg("storage inspected")
	return info, nil
}

// Clear removes every store and file cache. It reports whether everything
// matching was removed.
func (in *Inspector) Clear(ctx context.Context) (bool, error) {
	entries, err := os.ReadDir(in.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return true, nil
	}
	if err != nil {
		in.log.Error().Err(err).Msg("clearing model cache failed")
		return false, err
	}

	removed := 0
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return false, err
		}
		name := e.Name()
		if !isStore(name) && !(e.IsDir() && isFileCache(name)) {
			continue
		}
		if err := os.RemoveAll(filepath.Join(in.dir, name)); err != nil {
			in.log.Error().Err(err).Str("entry", name).Msg("clearing model cache failed")
			return false, err
		}
		removed++
	}
	in.log.Info().Int("removed", removed).Str("dir", in.dir).Msg("model cache cleared")
	return true, nil
}

func isStore(name string) bool {
	return containsAny(name, "mlc", "webllm", "cache")
}

func isFileCache(name string) bool {
	return containsAny(name, "model", "mlc", "webllm")
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func dirSize(ctx context.Context, dir string) (int64, error) {
	var total int64
	err := filepath.WalkDir(dir, func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.Type().IsRegular() {
			fi, err := d.Info()
			if err != nil {
				return err
			}
			total += fi.Size()
		}
		return nil
	})
	return total, err
}

var units = []string{"Bytes", "KB", "MB", "GB", "TB"}

// FormatBytes renders n in base-1024 units with at most two decimals.
func FormatBytes(n int64) string {
	if n == 0 {
		return "0 Bytes"
	}
	sign := ""
	f := float64(n)
	if f < 0 {
		sign = "-"
		f = -f
	}
	i := 0
	for f >= 1024 && i < len(units)-1 {
		f /= 1024
		i++
	}
	v := math.Round(f*100) / 100
	return sign + strconv.FormatFloat(v, 'f', -1, 64) + " " + units[i]
}
