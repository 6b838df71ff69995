package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/local/pisoprint/internal/cache"
	"github.com/local/pisoprint/internal/imagerender"
	"github.com/local/pisoprint/internal/metrics"
	"github.com/local/pisoprint/internal/normalize"
	"github.com/local/pisoprint/internal/paper"
	"github.com/local/pisoprint/internal/store"
)

// Archiver keeps a copy of the source document before it is deleted locally.
type Archiver interface {
	Put(ctx context.Context, baseName string, body []byte, meta map[string]string) (string, error)
}

type Pipeline struct {
	cache      *cache.Manager
	normalizer *normalize.Normalizer
	raster     *imagerender.Rasterizer
	sessions   store.Sessions
	archive    Archiver
	timeout    time.Duration
	newID      func() string
}

type PipelineDeps struct {
	Cache    *cache.Manager
	Sessions store.Sessions
	// Archive is optional.
	Archive Archiver
	// Timeout is opt-in; zero lets rasterization run to completion.
	Timeout time.Duration
}

func NewPipeline(d PipelineDeps) *Pipeline {
	return &Pipeline{
		cache:      d.Cache,
		normalizer: normalize.New(),
		raster:     imagerender.New(d.Cache),
		sessions:   d.Sessions,
		archive:    d.Archive,
		timeout:    d.Timeout,
		newID:      uuid.NewString,
	}
}

type UploadResult struct {
	BaseName     string
	TotalPages   int
	OriginalSize paper.Size
	Pages        map[paper.Size][]imagerender.Page
	ArchiveKey   string
}

// Process runs one upload end to end: the previous document's artifacts are
// dropped, both caches are cleared, and the new document is normalized and
// rasterized onto every paper size concurrently. The cache stays locked for
// the whole run so no estimate sees a half-written cache. Once started, the
// run is detached from ctx cancellation; only the optional timeout stops it.
func (p *Pipeline) Process(ctx context.Context, src []byte, previousBaseName string) (UploadResult, error) {
	start := time.Now()
	ctx = context.WithoutCancel(ctx)
	info, err := p.normalizer.Inspect(src)
	if err != nil {
		metrics.IncUpload("malformed")
		return UploadResult{}, err
	}

	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	res := UploadResult{
		BaseName:     p.newID(),
		TotalPages:   info.PageCount,
		OriginalSize: info.NominalSize(),
		Pages:        make(map[paper.Size][]imagerender.Page, len(paper.All())),
	}
	lg := log.With().Str("base_name", res.BaseName).Logger()

	err = p.cache.Exclusive(func() error {
		if previousBaseName != "" {
			p.cache.OnReplace(previousBaseName)
			if err := p.sessions.Delete(ctx, previousBaseName); err != nil {
				lg.Warn().Err(err).Str("previous", previousBaseName).Msg("failed to drop previous session")
			}
		}
		p.cache.OnNewUpload()

		if err := os.WriteFile(p.cache.UploadPath(res.BaseName), src, 0o644); err != nil {
			return fmt.Errorf("save upload: %w", err)
		}

		var mu sync.Mutex
		g, gctx := errgroup.WithContext(ctx)
		for _, size := range paper.All() {
			g.Go(func() error {
				t0 := time.Now()
				normalized, err := p.normalizer.NormalizeFile(src, size, p.cache.NormalizedPath(res.BaseName, size))
				if err != nil {
					return fmt.Errorf("normalize %s: %w", size, err)
				}
				metrics.ObserveStage("normalize", size.String(), time.Since(t0))

				pages, err := p.raster.Rasterize(gctx, normalized, size, res.BaseName)
				if err != nil {
					return fmt.Errorf("rasterize %s: %w", size, err)
				}
				mu.Lock()
				res.Pages[size] = pages
				mu.Unlock()
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			p.cache.OnReset(res.BaseName)
			return err
		}
		p.cache.OnRasterized(res.BaseName)
		return nil
	})
	if err != nil {
		result := "error"
		if errors.Is(err, normalize.ErrMalformedDocument) {
			result = "malformed"
		}
		metrics.IncUpload(result)
		lg.Error().Err(err).Msg("upload pipeline failed")
		return UploadResult{}, err
	}

	if p.archive != nil {
		key, err := p.archive.Put(ctx, res.BaseName, src, map[string]string{
			"original-size": res.OriginalSize.String(),
			"total-pages":   fmt.Sprint(res.TotalPages),
		})
		if err != nil {
			lg.Warn().Err(err).Msg("source archive failed, continuing without it")
		} else {
			res.ArchiveKey = key
		}
	}

	if err := p.sessions.Save(ctx, store.Session{
		BaseName:     res.BaseName,
		TotalPages:   res.TotalPages,
		OriginalSize: res.OriginalSize,
		ArchiveKey:   res.ArchiveKey,
		CreatedAt:    time.Now().UTC(),
	}); err != nil {
		lg.Warn().Err(err).Msg("failed to save session")
	}

	metrics.IncUpload("ok")
	lg.Info().
		Int("total_pages", res.TotalPages).
		Str("original_size", res.OriginalSize.String()).
		Dur("duration", time.Since(start)).
		Msg("upload processed")
	return res, nil
}

// Reset drops a document the user discarded. It runs detached from the
// request; failures are only logged.
func (p *Pipeline) Reset(baseName string) {
	_ = p.cache.Exclusive(func() error {
		p.cache.OnReset(baseName)
		return nil
	})
	if err := p.sessions.Delete(context.Background(), baseName); err != nil {
		log.Warn().Err(err).Str("base_name", baseName).Msg("failed to drop session on reset")
	}
}
