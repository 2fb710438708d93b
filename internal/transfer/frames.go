package transfer

import (
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
)

// FrameSource delivers captured images to the scanner. Next returns
// [ErrNoFrame] when nothing new is available and io.EOF when the source has
// ended. Close releases the capture device and is always called by the
// scanner once it stops reading.
type FrameSource interface {
	Next(ctx context.Context) (image.Image, error)
	Close() error
}

// SourceOpener acquires a frame source. The scanner owns the returned
// source until the scan ends.
type SourceOpener func(ctx context.Context) (FrameSource, error)

// DirectorySource reads PNG and JPEG frames that a capture tool drops into a
// directory. Each file is delivered once, in name order.
type DirectorySource struct {
	dir string

	mu     sync.Mutex
	seen   map[string]struct{}
	closed bool
	once   bool
}

// OpenDirectory returns a [SourceOpener] for dir. When once is set the source
// reports io.EOF after the files present at the first read are consumed;
// otherwise it keeps watching for new files.
func OpenDirectory(dir string, once bool) SourceOpener {
	return func(context.Context) (FrameSource, error) {
		info, err := os.Stat(dir)
		if err != nil {
			return nil, fmt.Errorf("open frame directory: %w", err)
		}
		if !info.IsDir() {
			return nil, fmt.Errorf("open frame directory: %s is not a directory", dir)
		}
		return &DirectorySource{dir: dir, seen: make(map[string]struct{}), once: once}, nil
	}
}

func (d *DirectorySource) Next(ctx context.Context) (image.Image, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil, io.EOF
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(d.dir)
	if err != nil {
		return nil, fmt.Errorf("read frame directory: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !isImage(e.Name()) {
			continue
		}
		if _, ok := d.seen[e.Name()]; ok {
			continue
		}
		names = append(names, e.Name())
	}
	slices.Sort(names)

	if len(names) == 0 {
		if d.once {
			return nil, io.EOF
		}
		return nil, ErrNoFrame
	}

	name := names[0]
	d.seen[name] = struct{}{}

	img, err := decodeImageFile(filepath.Join(d.dir, name))
	if err != nil {
		// unreadable or half-written frames are skipped like frames without a code
		return nil, ErrNoFrame
	}
	return img, nil
}

func (d *DirectorySource) Close() error {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()
	return nil
}

func isImage(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".png", ".jpg", ".jpeg":
		return true
	default:
		return false
	}
}

func decodeImageFile(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	return img, err
}
