// Package cache owns every artifact derived from an uploaded document: the
// per-paper raster caches, the normalized PDFs and the transient source file.
package cache

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/local/pisoprint/internal/metrics"
	"github.com/local/pisoprint/internal/paper"
)

const (
	normalizedDir = "normalized"
	uploadsDir    = "uploads"
)

// Manager lays out the cache under a root directory:
//
//	{root}/letter/{base}-{n}.png
//	{root}/legal/{base}-{n}.png
//	{root}/normalized/{base}-{paper}.pdf
//	{root}/uploads/{base}.pdf
type Manager struct {
	root string
	mu   sync.RWMutex
}

// New creates the directory layout under root.
func New(root string) (*Manager, error) {
	dirs := []string{filepath.Join(root, normalizedDir), filepath.Join(root, uploadsDir)}
	for _, p := range paper.All() {
		dirs = append(dirs, filepath.Join(root, p.String()))
	}
	for _, d := range dirs {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return nil, fmt.Errorf("create cache dir: %w", err)
		}
	}
	return &Manager{root: root}, nil
}

func (m *Manager) Root() string { return m.root }

// RasterDir is the cache directory for one paper size.
func (m *Manager) RasterDir(p paper.Size) string { return filepath.Join(m.root, p.String()) }

// RasterName is the file name of a rendered page; page is 1-based.
func RasterName(baseName string, page int) string {
	return fmt.Sprintf("%s-%d.png", baseName, page)
}

func (m *Manager) RasterPath(p paper.Size, baseName string, page int) string {
	return filepath.Join(m.RasterDir(p), RasterName(baseName, page))
}

func (m *Manager) NormalizedPath(baseName string, p paper.Size) string {
	return filepath.Join(m.root, normalizedDir, fmt.Sprintf("%s-%s.pdf", baseName, p))
}

func (m *Manager) UploadPath(baseName string) string {
	return filepath.Join(m.root, uploadsDir, baseName+".pdf")
}

// Exclusive runs fn while no other cache mutation or lookup is in progress.
// Uploads and resets go through here.
func (m *Manager) Exclusive(fn func() error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return fn()
}

// Shared runs fn concurrently with other readers but never while an upload or
// reset holds the cache.
func (m *Manager) Shared(fn func() error) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return fn()
}

// Index lists the cached rasters of baseName for paper p, keyed by page.
// Only names of the exact form {base}-{n}.png are matched.
func (m *Manager) Index(p paper.Size, baseName string) (map[int]string, error) {
	entries, err := os.ReadDir(m.RasterDir(p))
	if err != nil {
		return nil, err
	}
	re := regexp.MustCompile("^" + regexp.QuoteMeta(baseName) + `-(\d+)\.png$`)
	out := make(map[int]string)
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		mt := re.FindStringSubmatch(e.Name())
		if mt == nil {
			continue
		}
		n, err := strconv.Atoi(mt[1])
		if err != nil {
			continue
		}
		out[n] = filepath.Join(m.RasterDir(p), e.Name())
	}
	return out, nil
}

// OnNewUpload empties both raster caches so nothing from a previous document
// is visible once the new one is rendered. Returns the number of removed files.
func (m *Manager) OnNewUpload() int {
	removed := 0
	for _, p := range paper.All() {
		removed += m.removeMatching(m.RasterDir(p), func(string) bool { return true })
	}
	log.Info().Int("removed", removed).Msg("raster caches cleared for new upload")
	return removed
}

// OnReplace removes the artifacts of the document being replaced.
func (m *Manager) OnReplace(previousBaseName string) int {
	return m.removeBase(previousBaseName, "replace")
}

// OnReset removes the artifacts of a document the user discarded.
func (m *Manager) OnReset(previousBaseName string) int {
	return m.removeBase(previousBaseName, "reset")
}

// OnRasterized drops the source upload once both canvases are rendered;
// only derived artifacts outlive the pipeline.
func (m *Manager) OnRasterized(baseName string) bool {
	if baseName == "" || strings.ContainsAny(baseName, `/\`) {
		return false
	}
	return m.remove(m.UploadPath(baseName))
}

// Writable checks every cache directory with a throwaway file.
func (m *Manager) Writable() error {
	dirs := []string{filepath.Join(m.root, normalizedDir), filepath.Join(m.root, uploadsDir)}
	for _, p := range paper.All() {
		dirs = append(dirs, m.RasterDir(p))
	}
	for _, d := range dirs {
		f, err := os.CreateTemp(d, ".writable-*")
		if err != nil {
			return fmt.Errorf("cache dir %s not writable: %w", d, err)
		}
		name := f.Name()
		f.Close()
		os.Remove(name)
	}
	return nil
}

// SweepTemps removes leftover hidden temp files (".render-*", ".norm-*")
// older than maxAge, as left behind by a crash mid-write.
func (m *Manager) SweepTemps(maxAge time.Duration) int {
	now := time.Now()
	removed := 0
	dirs := []string{filepath.Join(m.root, normalizedDir), filepath.Join(m.root, uploadsDir)}
	for _, p := range paper.All() {
		dirs = append(dirs, m.RasterDir(p))
	}
	for _, d := range dirs {
		removed += m.removeMatching(d, func(name string) bool {
			if !strings.HasPrefix(name, ".") {
				return false
			}
			info, err := os.Stat(filepath.Join(d, name))
			return err == nil && now.Sub(info.ModTime()) >= maxAge
		})
	}
	if removed > 0 {
		log.Info().Int("removed", removed).Msg("swept stale temp files")
	}
	return removed
}

// removeBase deletes every raster whose name starts with baseName plus the
// normalized PDFs and a leftover source upload. Missing files are fine.
func (m *Manager) removeBase(baseName, reason string) int {
	if baseName == "" || strings.ContainsAny(baseName, `/\`) {
		log.Warn().Str("base_name", baseName).Str("reason", reason).Msg("refusing to remove artifacts for invalid base name")
		return 0
	}
	removed := 0
	for _, p := range paper.All() {
		removed += m.removeMatching(m.RasterDir(p), func(name string) bool {
			return strings.HasPrefix(name, baseName)
		})
		if m.remove(m.NormalizedPath(baseName, p)) {
			removed++
		}
	}
	if m.remove(m.UploadPath(baseName)) {
		removed++
	}
	log.Info().Str("base_name", baseName).Str("reason", reason).Int("removed", removed).Msg("removed document artifacts")
	return removed
}

func (m *Manager) removeMatching(dir string, match func(name string) bool) int {
	entries, err := os.ReadDir(dir)
	if err != nil {
		log.Warn().Err(err).Str("dir", dir).Msg("cannot list cache dir")
		metrics.IncCacheDeletion("error")
		return 0
	}
	removed := 0
	for _, e := range entries {
		if e.IsDir() || !match(e.Name()) {
			continue
		}
		if m.remove(filepath.Join(dir, e.Name())) {
			removed++
		}
	}
	return removed
}

// remove deletes one file, logging failures instead of returning them.
func (m *Manager) remove(path string) bool {
	err := os.Remove(path)
	switch {
	case err == nil:
		metrics.IncCacheDeletion("removed")
		return true
	case os.IsNotExist(err):
		return false
	default:
		log.Warn().Err(err).Str("file", path).Msg("failed to delete cache file")
		metrics.IncCacheDeletion("error")
		return false
	}
}
