package extract

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/harmonize-tools/s4h-workbench/pkg/core"
)

// ReadFixedWidth slices every non-blank line of r with layout.
func ReadFixedWidth(r io.Reader, name string, layout *core.Layout) (*core.Dataset, error) {
	if err := layout.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	raw := make([][]string, len(layout.Names))
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 16*1024*1024)
	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		for j, cell := range layout.Slice(line) {
			raw[j] = append(raw[j], cell)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return buildDataset(name, layout.Names, raw)
}

func trimCell(s string) string {
	return strings.TrimSpace(strings.TrimPrefix(s, "\ufeff"))
}
