package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// DirRasterizer treats a directory of page images as an already
// rasterized document. Pages are ordered by filename, so scans named
// page-01.png, page-02.png keep their order. PDF rendering itself is
// an external collaborator; its output lands in a directory like this.
type DirRasterizer struct{}

// Rasterize loads every .png/.jpg/.jpeg file under dir, in name order.
func (DirRasterizer) Rasterize(_ context.Context, dir string) ([]PageImage, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read page directory: %w", err)
	}

	var pages []PageImage
	for _, e := range entries {
		if e.IsDir() || !isPageImage(e.Name()) {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("read page %s: %w", e.Name(), err)
		}
		pages = append(pages, PageImage{Number: len(pages) + 1, PNG: data})
	}
	if len(pages) == 0 {
		return nil, fmt.Errorf("no page images in %s", dir)
	}
	return pages, nil
}

func isPageImage(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".png", ".jpg", ".jpeg":
		return true
	}
	return false
}
