// Package snapshot encodes rendered frames as PNG data URLs and saves them.
package snapshot

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strings"
)

const pngPrefix = "data:image/png;base64,"

// ErrNotDataURL is returned for strings that are not base64 PNG data URLs.
var ErrNotDataURL = errors.New("not a base64 PNG data URL")

// EncodeDataURL encodes img as a PNG data URL.
func EncodeDataURL(img image.Image) (string, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", fmt.Errorf("snapshot: encode png: %w", err)
	}
	return pngPrefix + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// DecodeDataURL returns the PNG bytes of a data URL.
func DecodeDataURL(dataURL string) ([]byte, error) {
	if !strings.HasPrefix(dataURL, pngPrefix) {
		return nil, ErrNotDataURL
	}
	b, err := base64.StdEncoding.DecodeString(dataURL[len(pngPrefix):])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotDataURL, err)
	}
	return b, nil
}

// DecodeImage decodes a PNG data URL into an image.
func DecodeImage(dataURL string) (image.Image, error) {
	b, err := DecodeDataURL(dataURL)
	if err != nil {
		return nil, err
	}
	img, err := png.Decode(bytes.NewReader(b))
	if err != nil {
		return nil, fmt.Errorf("snapshot: decode png: %w", err)
	}
	return img, nil
}

// WriteFile decodes dataURL and writes the PNG to path.
func WriteFile(path, dataURL string) error {
	b, err := DecodeDataURL(dataURL)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("snapshot: write %s: %w", path, err)
	}
	return nil
}

// DirDownloader saves downloads into a directory, like a browser's
// download folder.
type DirDownloader struct {
	Dir string
}

// Download writes dataURL to Dir/filename and returns the path.
func (d DirDownloader) Download(filename, dataURL string) (string, error) {
	dir := d.Dir
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("snapshot: create %s: %w", dir, err)
	}
	path := filepath.Join(dir, filepath.Base(filename))
	if err := WriteFile(path, dataURL); err != nil {
		return "", err
	}
	return path, nil
}
