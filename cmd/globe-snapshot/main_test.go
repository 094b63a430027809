package main

import (
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/signalsfoundry/latency-globe/internal/config"
)

func TestParseDrag(t *testing.T) {
	dx, dy, err := parseDrag("40, -12.5")
	if err != nil || dx != 40 || dy != -12.5 {
		t.Fatalf("parseDrag = %v, %v, %v", dx, dy, err)
	}
	for _, bad := range []string{"", "1", "a,b", "1,2,3"} {
		if _, _, err := parseDrag(bad); err == nil {
			t.Errorf("parseDrag(%q) succeeded", bad)
		}
	}
}

func TestRunWritesPNG(t *testing.T) {
	out := filepath.Join(t.TempDir(), "globe.png")
	cfg := config.Default()
	cfg.Logging.Level = "error"
	err := run(cfg, options{width: 160, height: 120, frames: 3, drag: "20,0", selectID: "Bitfinex", out: out})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	f, err := os.Open(out)
	if err != nil {
		t.Fatalf("open output: %v", err)
	}
	defer f.Close()
	img, err := png.Decode(f)
	if err != nil {
		t.Fatalf("decode output: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 160 || b.Dy() != 120 {
		t.Fatalf("bounds = %v", b)
	}
}
