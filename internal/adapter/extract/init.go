package extract

import (
	"log/slog"

	"github.com/harmonize-tools/s4h-workbench/internal/adapter"
)

func init() {
	adapter.Register(adapter.SourceFile, func(l *slog.Logger) adapter.Extractor { return NewFileExtractor(l) })
	adapter.Register(adapter.SourceHTTP, func(l *slog.Logger) adapter.Extractor { return NewHTTPExtractor(l) })
}
