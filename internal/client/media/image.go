// Package media shrinks image attachments before they are stored in a
// document.
package media

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"io"
	"strings"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"
)

const (
	DefaultMaxDimension     = 1200
	DefaultQuality          = 80
	ConstrainedMaxDimension = 800
	ConstrainedQuality      = 60

	// MaxInputBytes bounds what Encode will read.
	MaxInputBytes = 20 << 20

	dataURIPrefix = "data:image/jpeg;base64,"
)

var (
	ErrUnsupportedImage = errors.New("unsupported image format")
	ErrImageTooLarge    = errors.New("image file too large")
)

// Options control the re-encoding.
type Options struct {
	MaxDimension int
	Quality      int
}

// OptionsFor returns the options for a normal or constrained device.
func OptionsFor(constrained bool) Options {
	if constrained {
		return Options{MaxDimension: ConstrainedMaxDimension, Quality: ConstrainedQuality}
	}
	return Options{MaxDimension: DefaultMaxDimension, Quality: DefaultQuality}
}

// Result describes an encoded image.
type Result struct {
	DataURI        string
	Format         string
	Width, Height  int
	OriginalWidth  int
	OriginalHeight int
}

// Encode decodes a PNG, JPEG, GIF or WebP image from r, fits it within
// opts.MaxDimension on both sides keeping the aspect ratio, and returns it
// as a JPEG data URI.
func Encode(r io.Reader, opts Options) (*Result, error) {
	if opts.MaxDimension <= 0 {
		opts.MaxDimension = DefaultMaxDimension
	}
	if opts.Quality <= 0 || opts.Quality > 100 {
		opts.Quality = DefaultQuality
	}

	raw, err := io.ReadAll(io.LimitReader(r, MaxInputBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read image: %w", err)
	}
	if len(raw) > MaxInputBytes {
		return nil, ErrImageTooLarge
	}

	img, format, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedImage, err)
	}

	b := img.Bounds()
	res := &Result{Format: format, OriginalWidth: b.Dx(), OriginalHeight: b.Dy()}

	if b.Dx() > opts.MaxDimension || b.Dy() > opts.MaxDimension {
		img = imaging.Fit(img, opts.MaxDimension, opts.MaxDimension, imaging.Lanczos)
	}
	// JPEG has no alpha; flatten onto white so transparent areas do not
	// turn black.
	flat := imaging.New(img.Bounds().Dx(), img.Bounds().Dy(), image.White)
	flat = imaging.Overlay(flat, img, image.Pt(0, 0), 1.0)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, flat, &jpeg.Options{Quality: opts.Quality}); err != nil {
		return nil, fmt.Errorf("encode image: %w", err)
	}

	res.Width, res.Height = flat.Bounds().Dx(), flat.Bounds().Dy()
	res.DataURI = dataURIPrefix + base64.StdEncoding.EncodeToString(buf.Bytes())
	return res, nil
}

// IsDataURI reports whether s looks like an image data URI.
func IsDataURI(s string) bool {
	return strings.HasPrefix(s, "data:image/") && strings.Contains(s, ";base64,")
}

// Decode returns the bytes held by an image data URI.
func Decode(uri string) ([]byte, error) {
	if !IsDataURI(uri) {
		return nil, ErrUnsupportedImage
	}
	_, payload, _ := strings.Cut(uri, ";base64,")
	return base64.StdEncoding.DecodeString(payload)
}
