/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package imaging turns image files into self-contained data URIs and renders the small
// rasters the app needs: reader thumbnails and text placeholders for missing covers.
package imaging

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/color"
	stddraw "image/draw"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"io"
	"log/slog"
	"os"
	"strings"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	applog "draftbook/internal/log"
)

// MaxImageBytes bounds the size of a single image file accepted by Encode.
const MaxImageBytes = 32 << 20

// ErrNotDataURI is returned by DecodeDataURI for anything but a base64 data URI.
var ErrNotDataURI = errors.New("not a base64 data URI")

// ErrTooLarge is returned when an image exceeds MaxImageBytes.
var ErrTooLarge = errors.New("image too large")

var mimeByFormat = map[string]string{
	"png":  "image/png",
	"jpeg": "image/jpeg",
	"gif":  "image/gif",
	"bmp":  "image/bmp",
	"tiff": "image/tiff",
	"webp": "image/webp",
}

var extByMime = map[string]string{
	"image/png":  ".png",
	"image/jpeg": ".jpg",
	"image/gif":  ".gif",
	"image/bmp":  ".bmp",
	"image/tiff": ".tif",
	"image/webp": ".webp",
}

// Extension returns the file extension for an image MIME type, or ".bin".
func Extension(mime string) string {
	if ext, ok := extByMime[strings.ToLower(mime)]; ok {
		return ext
	}
	return ".bin"
}

// Encode reads an image, checks that it decodes and returns it as a data URI.
// The original bytes are embedded unchanged.
func Encode(r io.Reader) (string, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxImageBytes+1))
	if err != nil {
		return "", fmt.Errorf("read image: %w", err)
	}
	if len(data) > MaxImageBytes {
		return "", ErrTooLarge
	}
	_, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("decode image: %w", err)
	}
	mime, ok := mimeByFormat[format]
	if !ok {
		return "", fmt.Errorf("unsupported image format %q", format)
	}
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data), nil
}

// EncodeFile is Encode for a file path. It gives up early when ctx is already done.
func EncodeFile(ctx context.Context, path string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open image: %w", err)
	}
	defer f.Close()
	uri, err := Encode(f)
	if err != nil {
		applog.WithComponent("imaging").WarnContext(ctx, "image rejected", slog.String("path", path), slog.Any("err", err))
		return "", err
	}
	return uri, ctx.Err()
}

// Result is the outcome of an asynchronous encode.
type Result struct {
	URI string
	Err error
}

// EncodeAsync runs EncodeFile on its own goroutine. The channel receives exactly one
// Result and is then closed.
func EncodeAsync(ctx context.Context, path string) <-chan Result {
	ch := make(chan Result, 1)
	go func() {
		defer close(ch)
		uri, err := EncodeFile(ctx, path)
		ch <- Result{URI: uri, Err: err}
	}()
	return ch
}

// IsDataURI reports whether s is an inline data URI rather than a remote reference.
func IsDataURI(s string) bool { return strings.HasPrefix(s, "data:") }

// DecodeDataURI splits a base64 data URI into its MIME type and payload.
func DecodeDataURI(uri string) (mime string, data []byte, err error) {
	rest, ok := strings.CutPrefix(uri, "data:")
	if !ok {
		return "", nil, ErrNotDataURI
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok || !strings.HasSuffix(meta, ";base64") {
		return "", nil, ErrNotDataURI
	}
	mime = strings.TrimSuffix(meta, ";base64")
	data, err = base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrNotDataURI, err)
	}
	return mime, data, nil
}

// Thumbnail scales an encoded image to fit inside w x h, keeping its aspect ratio,
// and returns it as PNG.
func Thumbnail(data []byte, w, h int) ([]byte, error) {
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("invalid thumbnail size %dx%d", w, h)
	}
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	sb := src.Bounds()
	tw, th := fit(sb.Dx(), sb.Dy(), w, h)
	dst := image.NewRGBA(image.Rect(0, 0, tw, th))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, sb, draw.Over, nil)
	var buf bytes.Buffer
	if err := png.Encode(&buf, dst); err != nil {
		return nil, fmt.Errorf("encode thumbnail: %w", err)
	}
	return buf.Bytes(), nil
}

// fit returns the largest size with the aspect of sw x sh that fits in w x h.
func fit(sw, sh, w, h int) (int, int) {
	if sw <= 0 || sh <= 0 {
		return w, h
	}
	if sw*h > sh*w {
		th := sh * w / sw
		if th < 1 {
			th = 1
		}
		return w, th
	}
	tw := sw * h / sh
	if tw < 1 {
		tw = 1
	}
	return tw, h
}

// Placeholder renders a plain cover of w x h with title centered on it, as PNG.
// Glyphs missing from the built-in face are drawn as boxes.
func Placeholder(title string, w, h int) ([]byte, error) {
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("invalid placeholder size %dx%d", w, h)
	}
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	stddraw.Draw(img, img.Bounds(), &image.Uniform{C: color.Gray{Y: 0xE6}}, image.Point{}, stddraw.Src)

	face := basicfont.Face7x13
	d := &font.Drawer{Dst: img, Src: image.NewUniform(color.Gray{Y: 0x30}), Face: face}
	lines := wrap(d, strings.TrimSpace(title), w-16)
	lineH := face.Metrics().Height.Ceil()
	y := (h-lineH*len(lines))/2 + face.Metrics().Ascent.Ceil()
	for _, ln := range lines {
		x := (w - d.MeasureString(ln).Ceil()) / 2
		d.Dot = fixed.P(x, y)
		d.DrawString(ln)
		y += lineH
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode placeholder: %w", err)
	}
	return buf.Bytes(), nil
}

// wrap breaks s into lines no wider than maxW pixels, splitting on spaces where possible.
func wrap(d *font.Drawer, s string, maxW int) []string {
	if s == "" {
		return nil
	}
	var lines []string
	var cur []rune
	for _, r := range s {
		next := append(cur, r)
		if len(cur) > 0 && d.MeasureString(string(next)).Ceil() > maxW {
			if i := lastSpace(cur); i > 0 {
				lines = append(lines, string(cur[:i]))
				cur = append([]rune{}, cur[i+1:]...)
				cur = append(cur, r)
				continue
			}
			lines = append(lines, string(cur))
			cur = []rune{r}
			continue
		}
		cur = next
	}
	if len(cur) > 0 {
		lines = append(lines, string(cur))
	}
	return lines
}

func lastSpace(rs []rune) int {
	for i := len(rs) - 1; i >= 0; i-- {
		if rs[i] == ' ' {
			return i
		}
	}
	return -1
}
