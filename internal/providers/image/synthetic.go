package image

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"strconv"
	"time"

	"adgen/internal/domain"
)

// SyntheticGenerator renders deterministic placeholder PNGs. It keeps the
// whole pipeline runnable in local and CI environments without a provider
// account.
type SyntheticGenerator struct {
	Width  int
	Height int
	// Delay simulates provider latency.
	Delay time.Duration
}

func NewSyntheticGenerator() *SyntheticGenerator {
	return &SyntheticGenerator{Width: 1024, Height: 1024}
}

func (s *SyntheticGenerator) Generate(ctx context.Context, brief Brief) ([]byte, error) {
	if s.Delay > 0 {
		timer := time.NewTimer(s.Delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	seed := deterministicSeed(BuildPrompt(brief))
	data := renderSyntheticImage(s.Width, s.Height, seed)
	if data == nil {
		return nil, fmt.Errorf("%w: synthetic render failed", domain.ErrProviderFailure)
	}
	return data, nil
}

func renderSyntheticImage(width, height int, seed string) []byte {
	if width <= 0 {
		width = 1024
	}
	if height <= 0 {
		height = 1024
	}
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), &image.Uniform{colorFromSeed(seed, 0)}, image.Point{}, draw.Src)

	accent := colorFromSeed(seed, 1)
	band := max(32, height/12)
	for y := 0; y < height; y += band * 2 {
		stripe := image.Rect(0, y, width, min(height, y+band))
		draw.Draw(img, stripe, &image.Uniform{accent}, image.Point{}, draw.Over)
	}

	diagonal := colorFromSeed(seed, 2)
	for x := 0; x < max(width, height); x += max(16, width/32) {
		for y := 0; y < height && x+y < width; y++ {
			img.Set(x+y, y, diagonal)
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil
	}
	return buf.Bytes()
}

func colorFromSeed(seed string, shift int) color.RGBA {
	if len(seed) < 6 {
		seed = "000000"
	}
	doubled := seed + seed
	start := (shift * 6) % len(seed)
	segment := doubled[start : start+6]
	return color.RGBA{R: hexByte(segment[0:2]), G: hexByte(segment[2:4]), B: hexByte(segment[4:6]), A: 255}
}

func hexByte(s string) uint8 {
	v, err := strconv.ParseUint(s, 16, 8)
	if err != nil {
		return 0
	}
	return uint8(v)
}

func deterministicSeed(parts ...string) string {
	hasher := sha256.New()
	for _, part := range parts {
		hasher.Write([]byte(part))
		hasher.Write([]byte{'|'})
	}
	return hex.EncodeToString(hasher.Sum(nil))[:18]
}

var _ Generator = (*SyntheticGenerator)(nil)
