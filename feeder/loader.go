// Package feeder is the caller side of the worker protocol: it loads image
// files and delivers them to a worker as start, chunk and process messages.
package feeder

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"golang.org/x/sync/errgroup"
)

const numWorkers = 10

// ImageLoader fetches the encoded bytes of an image.
type ImageLoader interface {
	LoadImage(name string) ([]byte, error)
}

// FileLoader loads images from the local filesystem.
type FileLoader struct{}

func (FileLoader) LoadImage(name string) ([]byte, error) {
	data, err := os.ReadFile(name)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%s: empty file", name)
	}
	return data, nil
}

// LoadImages loads names concurrently, keeping their order.
func LoadImages(ctx context.Context, loader ImageLoader, names []string) ([][]byte, error) {
	images := make([][]byte, len(names))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(numWorkers)
	for i, name := range names {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			data, err := loader.LoadImage(name)
			if err != nil {
				return fmt.Errorf("loading %s: %w", name, err)
			}
			images[i] = data
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return images, nil
}

var imageExtensions = []string{".bmp", ".gif", ".jpeg", ".jpg", ".png", ".qoi", ".tif", ".tiff", ".webp"}

// ExpandPool turns files and directories into a list of image files.
// Directory entries are taken in lexical order and filtered by extension;
// explicitly named files are kept regardless of extension.
func ExpandPool(paths []string) ([]string, error) {
	var files []string
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			files = append(files, p)
			continue
		}
		entries, err := os.ReadDir(p)
		if err != nil {
			return nil, err
		}
		for _, e := range entries {
			if e.IsDir() {
				continue
			}
			if slices.Contains(imageExtensions, strings.ToLower(filepath.Ext(e.Name()))) {
				files = append(files, filepath.Join(p, e.Name()))
			}
		}
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no pool images found in %s", strings.Join(paths, ", "))
	}
	return files, nil
}
