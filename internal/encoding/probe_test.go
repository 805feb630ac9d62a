package encoding

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/autovant/RCA-Final-sub001/internal/config"
	"github.com/autovant/RCA-Final-sub001/internal/pkg/apperr"
)

func TestProbeEmptyInput(t *testing.T) {
	_, err := Probe(nil, config.DefaultProbeConfig())
	var probeErr *apperr.EncodingProbeError
	if !errors.As(err, &probeErr) {
		t.Fatalf("expected EncodingProbeError, got %v", err)
	}
	if probeErr.Reason != "empty" {
		t.Fatalf("reason=%q, want empty", probeErr.Reason)
	}
}

func TestProbeASCIIText(t *testing.T) {
	input := []byte("2024-01-15 10:32:01 INFO Process started\nWork Queue: Invoices\n")
	res, err := Probe(input, config.DefaultProbeConfig())
	if err != nil {
		t.Fatalf("Probe: %v", err)
	}
	if res.Text != string(input) {
		t.Fatalf("decoded text mismatch")
	}
	if res.PrintableRatio < 0.99 {
		t.Fatalf("printable ratio %.3f, want ~1", res.PrintableRatio)
	}
}

func TestProbeRejectsBinary(t *testing.T) {
	input := bytes.Repeat([]byte{0x00, 0x01, 0x02, 0xFF}, 256)
	_, err := Probe(input, config.DefaultProbeConfig())
	var probeErr *apperr.EncodingProbeError
	if !errors.As(err, &probeErr) {
		t.Fatalf("expected EncodingProbeError, got %v", err)
	}
	if probeErr.Reason != "low_printable" {
		t.Fatalf("reason=%q, want low_printable", probeErr.Reason)
	}
}

func TestProbeUTF8Multibyte(t *testing.T) {
	// Mostly printable ASCII with a few multibyte runes; stays above the
	// default 0.75 floor.
	input := []byte("Robot session terminee: file d'attente traitee sans erreur éè\n" +
		strings.Repeat("plain ascii log line with details\n", 10))
	res, err := Probe(input, config.DefaultProbeConfig())
	if err != nil {
		t.Fatalf("Probe: %v", err)
	}
	if !strings.Contains(res.Text, "éè") {
		t.Fatalf("multibyte runes lost in decode")
	}
}

func TestProbePrintableFloorConfigurable(t *testing.T) {
	// Half printable, half control characters.
	input := append([]byte(strings.Repeat("a", 100)), bytes.Repeat([]byte{0x01}, 100)...)
	cfg := config.ProbeConfig{MinPrintableRatio: 0.4, MinDetectionConfidence: 0.75}
	if _, err := Probe(input, cfg); err != nil {
		t.Fatalf("expected acceptance at lowered floor, got %v", err)
	}
	cfg.MinPrintableRatio = 0.75
	if _, err := Probe(input, cfg); err == nil {
		t.Fatal("expected rejection at default floor")
	}
}

func TestPrintableRatio(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want float64
	}{
		{name: "all_printable", in: "abc def\t\n", want: 1},
		{name: "empty", in: "", want: 0},
		{name: "half", in: "ab\x00\x01", want: 0.5},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := printableRatio(tc.in); got != tc.want {
				t.Fatalf("printableRatio(%q)=%v, want %v", tc.in, got, tc.want)
			}
		})
	}
}
