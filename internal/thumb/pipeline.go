// Package thumb acquires a usable thumbnail for almost any URL by
// degrading through independent strategies, and stores the result on disk.
package thumb

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/dlnorman/linkhoard/internal/config"
	"github.com/dlnorman/linkhoard/internal/enrich"
	"github.com/dlnorman/linkhoard/internal/fetch"
	"github.com/dlnorman/linkhoard/internal/image"
	"github.com/dlnorman/linkhoard/internal/metrics"
)

// Pipeline tries an ordered list of strategies and saves the first
// candidate that survives the validation gate. Barring filesystem failure
// it always produces something: the terminal placeholder strategy cannot
// miss.
type Pipeline struct {
	cfg        config.ThumbConfig
	strategies []Strategy
	saver      *Saver
	logger     *zap.Logger
}

// New builds the production pipeline. A nil renderer disables the local
// render strategy without reordering anything else.
func New(cfg config.Config, fetcher *fetch.Fetcher, renderer Renderer, saver *Saver, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	downloader := imageDownloader{fetcher: fetcher, maxBytes: cfg.Fetch.MaxImageBytes}
	strategies := []Strategy{
		typeIconStrategy{},
		renderStrategy{renderer: renderer, fetcher: fetcher},
		screenshotStrategy{cfg: cfg.Screenshot, fetcher: fetcher, maxBytes: cfg.Fetch.MaxImageBytes},
		ogImageStrategy{imageDownloader: downloader, cfg: cfg.Thumbs, maxHTMLBytes: cfg.Fetch.MaxHTMLBytes},
		contentImageStrategy{
			imageDownloader: downloader,
			cfg:             cfg.Thumbs,
			maxHTMLBytes:    cfg.Fetch.MaxHTMLBytes,
			maxDecodedBytes: cfg.Thumbs.MaxDecodedBytes,
		},
		faviconStrategy{imageDownloader: downloader, cfg: cfg.Favicon},
		placeholderStrategy{},
	}
	return &Pipeline{cfg: cfg.Thumbs, strategies: strategies, saver: saver, logger: logger}
}

// NewWithStrategies builds a pipeline over an explicit strategy list.
func NewWithStrategies(cfg config.ThumbConfig, saver *Saver, logger *zap.Logger, strategies ...Strategy) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{cfg: cfg, strategies: strategies, saver: saver, logger: logger}
}

// Acquire produces exactly one saved thumbnail for the subject URL.
func (p *Pipeline) Acquire(ctx context.Context, subjectURL string) (enrich.AcquiredImage, error) {
	for _, strategy := range p.strategies {
		data, err := strategy.Acquire(ctx, subjectURL)
		switch {
		case errors.Is(err, errNotApplicable):
			continue
		case err != nil:
			p.logger.Debug("thumbnail strategy failed",
				zap.String("strategy", strategy.Name()),
				zap.String("url", subjectURL),
				zap.Error(err),
			)
			continue
		case len(data) == 0:
			continue
		}

		minW, minH := strategy.MinSize()
		if err := validateCandidate(data, minW, minH, p.cfg.MaxDecodedBytes); err != nil {
			p.logger.Debug("thumbnail candidate rejected",
				zap.String("strategy", strategy.Name()),
				zap.String("url", subjectURL),
				zap.Error(err),
			)
			continue
		}
		metrics.RecordFetchBytes(len(data))

		resized := image.Resize(data, p.cfg.MaxWidth)
		relPath, err := p.saver.Save(subjectURL, resized)
		if err != nil {
			// Only the filesystem can fail the pipeline as a whole.
			return enrich.AcquiredImage{}, fmt.Errorf("save thumbnail: %w", err)
		}

		metrics.RecordAcquisition(strategy.Name())
		p.logger.Info("thumbnail acquired",
			zap.String("url", subjectURL),
			zap.String("method", strategy.Name()),
			zap.String("path", relPath),
		)
		return enrich.AcquiredImage{StoragePath: relPath, Method: strategy.Name()}, nil
	}
	return enrich.AcquiredImage{}, errors.New("all acquisition strategies failed")
}

// validateCandidate is the shared security gate for candidate images:
// decodable, large enough to not be a tracking pixel, and cheap enough to
// decode (decompression-bomb heuristic) before any resize is attempted.
func validateCandidate(data []byte, minWidth, minHeight int, maxDecodedBytes int64) error {
	info, err := image.Decode(data)
	if err != nil {
		return err
	}
	if (minWidth > 0 && info.Width < minWidth) || (minHeight > 0 && info.Height < minHeight) {
		return fmt.Errorf("image %dx%d below minimum %dx%d", info.Width, info.Height, minWidth, minHeight)
	}
	if maxDecodedBytes <= 0 {
		maxDecodedBytes = 50 << 20
	}
	if est := image.EstimateDecodedMemory(info.Width, info.Height); est > maxDecodedBytes {
		return fmt.Errorf("decoded size estimate %d exceeds %d byte ceiling", est, maxDecodedBytes)
	}
	return nil
}
