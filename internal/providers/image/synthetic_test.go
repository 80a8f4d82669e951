package image

import (
	"bytes"
	"context"
	"errors"
	"image/png"
	"testing"
	"time"
)

func TestSyntheticGeneratorProducesPNG(t *testing.T) {
	gen := &SyntheticGenerator{Width: 64, Height: 48}
	data, err := gen.Generate(context.Background(), Brief{Prompt: "X", TargetAudience: "Y", BrandInfo: "Z"})
	if err != nil {
		t.Fatalf("Generate error: %v", err)
	}
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("output is not a PNG: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 64 || b.Dy() != 48 {
		t.Fatalf("bounds = %v", b)
	}

	again, _ := gen.Generate(context.Background(), Brief{Prompt: "X", TargetAudience: "Y", BrandInfo: "Z"})
	if !bytes.Equal(data, again) {
		t.Fatal("same brief should render identical bytes")
	}
	other, _ := gen.Generate(context.Background(), Brief{Prompt: "other", TargetAudience: "Y", BrandInfo: "Z"})
	if bytes.Equal(data, other) {
		t.Fatal("different briefs should render different bytes")
	}
}

func TestSyntheticGeneratorHonorsContext(t *testing.T) {
	gen := &SyntheticGenerator{Width: 8, Height: 8, Delay: time.Minute}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, err := gen.Generate(ctx, Brief{Prompt: "X"}); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}
