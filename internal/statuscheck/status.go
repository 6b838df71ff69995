package statuscheck

import (
	"context"
	"errors"
	"time"

	"github.com/gen2brain/go-fitz"
)

// Pinger models the minimal capability a dependency check needs.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc adapts a function to Pinger.
type PingFunc func(ctx context.Context) error

func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

// Checker aggregates readiness checks for the service's dependencies.
// A nil dependency is reported as not configured.
type Checker struct {
	sessions Pinger
	database Pinger
	archive  Pinger
	cacheDir func() error
}

// Options configures the Checker.
type Options struct {
	Sessions Pinger
	Database Pinger
	Archive  Pinger
	// CacheDir checks that the cache directory is writable.
	CacheDir func() error
}

// Status represents the readiness of a subsystem.
type Status struct {
	OK      bool   `json:"ok"`
	Message string `json:"message"`
}

// Summary bundles all subsystem statuses.
type Summary struct {
	Sessions Status `json:"sessions"`
	Database Status `json:"database"`
	Archive  Status `json:"archive"`
	Cache    Status `json:"cache"`
	MuPDF    Status `json:"mupdf"`
}

// Ready reports whether everything required to serve uploads is up. The
// archive is optional.
func (s Summary) Ready() bool {
	return s.Sessions.OK && s.Database.OK && s.Cache.OK && s.MuPDF.OK
}

// New creates a new Checker with the provided options.
func New(opts Options) *Checker {
	return &Checker{
		sessions: opts.Sessions,
		database: opts.Database,
		archive:  opts.Archive,
		cacheDir: opts.CacheDir,
	}
}

// Summary returns the current status snapshot.
func (c *Checker) Summary(ctx context.Context) Summary {
	return Summary{
		Sessions: ping(ctx, c.sessions, 2*time.Second, "Connected"),
		Database: ping(ctx, c.database, 2*time.Second, "Connected"),
		Archive:  ping(ctx, c.archive, 5*time.Second, "Connected"),
		Cache:    c.checkCache(),
		MuPDF:    checkMuPDF(),
	}
}

func ping(ctx context.Context, p Pinger, timeout time.Duration, okMsg string) Status {
	if p == nil {
		return Status{OK: false, Message: "not configured"}
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := p.Ping(ctx); err != nil {
		return Status{OK: false, Message: trimError(err)}
	}
	return Status{OK: true, Message: okMsg}
}

func (c *Checker) checkCache() Status {
	if c.cacheDir == nil {
		return Status{OK: false, Message: "not configured"}
	}
	if err := c.cacheDir(); err != nil {
		return Status{OK: false, Message: trimError(err)}
	}
	return Status{OK: true, Message: "Writable"}
}

// minimalPDF is a one-page blank document used to prove the embedded MuPDF
// can open and render.
var minimalPDF = []byte("%PDF-1.4\n1 0 obj<</Type/Catalog/Pages 2 0 R>>endobj\n" +
	"2 0 obj<</Type/Pages/Kids[3 0 R]/Count 1>>endobj\n" +
	"3 0 obj<</Type/Page/Parent 2 0 R/MediaBox[0 0 72 72]>>endobj\n" +
	"trailer<</Root 1 0 R>>\n%%EOF\n")

func checkMuPDF() Status {
	doc, err := fitz.NewFromMemory(minimalPDF)
	if err != nil {
		return Status{OK: false, Message: trimError(err)}
	}
	defer doc.Close()
	if _, err := doc.ImageDPI(0, 10); err != nil {
		return Status{OK: false, Message: trimError(err)}
	}
	return Status{OK: true, Message: "Available"}
}

func trimError(err error) string {
	if err == nil {
		return ""
	}
	var netErr interface{ Timeout() bool }
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "timeout"
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}
	msg := err.Error()
	if len(msg) > 120 {
		return msg[:120]
	}
	return msg
}
