package extract

import (
	"context"
	"log/slog"

	"github.com/harmonize-tools/s4h-workbench/internal/adapter"
	"github.com/harmonize-tools/s4h-workbench/pkg/core"
)

// FileExtractor reads local files and directories.
type FileExtractor struct {
	logger *slog.Logger
}

// NewFileExtractor creates a file extractor. A nil logger discards output.
func NewFileExtractor(logger *slog.Logger) *FileExtractor {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &FileExtractor{logger: logger}
}

// Extract reads every wanted file under req.Inputs.
func (e *FileExtractor) Extract(ctx context.Context, req adapter.ExtractRequest) ([]*core.Dataset, error) {
	files, err := Collect(req.Inputs, req.Options)
	if err != nil {
		return nil, err
	}
	e.logger.Debug("reading files", slog.Int("files", len(files)))

	out, err := ReadAll(ctx, files, req.Options)
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, core.ErrNothingExtracted
	}
	e.logger.Info("files extracted", slog.Int("files", len(files)), slog.Int("datasets", len(out)))
	return out, nil
}
