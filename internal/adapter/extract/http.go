package extract

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"runtime"

	"github.com/go-resty/resty/v2"
	"golang.org/x/sync/errgroup"

	"github.com/harmonize-tools/s4h-workbench/internal/adapter"
	"github.com/harmonize-tools/s4h-workbench/internal/adapter/httpclient"
	"github.com/harmonize-tools/s4h-workbench/pkg/core"
)

// HTTPExtractor downloads data files from URLs. An input URL whose path
// has a wanted extension is downloaded directly; any other URL is treated
// as a page to crawl for links.
type HTTPExtractor struct {
	logger *slog.Logger
	client *resty.Client
}

// NewHTTPExtractor creates an HTTP extractor. A nil logger discards output.
func NewHTTPExtractor(logger *slog.Logger) *HTTPExtractor {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &HTTPExtractor{logger: logger}
}

// WithClient overrides the HTTP client.
func (e *HTTPExtractor) WithClient(c *resty.Client) *HTTPExtractor {
	e.client = c
	return e
}

// Extract discovers, downloads and parses files.
func (e *HTTPExtractor) Extract(ctx context.Context, req adapter.ExtractRequest) ([]*core.Dataset, error) {
	client := e.client
	if client == nil {
		client = httpclient.New(e.logger, req.Timeout)
	}

	var targets []*url.URL
	for _, in := range req.Inputs {
		u, err := url.Parse(in)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
			return nil, fmt.Errorf("invalid URL %q", in)
		}
		if Wants(u.Path, req.Options) {
			targets = append(targets, u)
			continue
		}
		found, err := discover(ctx, client, u, req)
		if err != nil {
			return nil, err
		}
		e.logger.Debug("links discovered", slog.String("page", u.String()), slog.Int("files", len(found)))
		targets = append(targets, found...)
	}
	if len(targets) == 0 {
		return nil, core.ErrNothingExtracted
	}

	dir := req.OutputDir
	if dir == "" {
		tmp, err := os.MkdirTemp("", "s4h-download-*")
		if err != nil {
			return nil, err
		}
		defer func() { _ = os.RemoveAll(tmp) }()
		dir = tmp
	} else if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	files, err := e.download(ctx, client, targets, dir)
	if err != nil {
		return nil, err
	}
	out, err := ReadAll(ctx, files, req.Options)
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, core.ErrNothingExtracted
	}
	e.logger.Info("downloads extracted", slog.Int("files", len(files)), slog.Int("datasets", len(out)))
	return out, nil
}

func (e *HTTPExtractor) download(ctx context.Context, client *resty.Client, targets []*url.URL, dir string) ([]string, error) {
	files := make([]string, len(targets))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, u := range targets {
		// One directory per target so equal base names do not collide.
		dest := filepath.Join(dir, fmt.Sprintf("%03d", i+1), path.Base(u.Path))
		files[i] = dest
		g.Go(func() error {
			resp, err := client.R().SetContext(ctx).SetOutput(dest).Get(u.String())
			if err != nil {
				return fmt.Errorf("downloading %s: %w", u, err)
			}
			if err := httpclient.Check(resp); err != nil {
				return err
			}
			e.logger.Debug("downloaded", slog.String("url", u.String()), slog.String("file", dest))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return files, nil
}
