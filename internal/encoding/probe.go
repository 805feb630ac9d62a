package encoding

import (
	"strings"
	"unicode/utf8"

	"github.com/gogs/chardet"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/ianaindex"

	"github.com/autovant/RCA-Final-sub001/internal/config"
	"github.com/autovant/RCA-Final-sub001/internal/pkg/apperr"
)

// Charset detection runs on a bounded sample; decoding always covers the full
// buffer.
const detectionSampleBytes = 512 * 1024

const (
	WarnFallbackUTF8   = "charset_fallback_utf8"
	WarnFallbackLatin1 = "charset_fallback_latin1"
	WarnLowConfidence  = "low_detection_confidence"
)

// ProbeResult is the decoded view of one uploaded artifact.
type ProbeResult struct {
	Text           string   `json:"text"`
	Encoding       string   `json:"encoding"`
	Confidence     float64  `json:"confidence"`
	PrintableRatio float64  `json:"printable_ratio"`
	Warnings       []string `json:"warnings,omitempty"`
}

// Probe detects the charset of raw bytes, decodes them, and validates the
// printable ratio. It is a pure function over the input; the caller decides
// whether low-confidence warnings are fatal. Empty input and low printable
// ratio are hard rejections.
func Probe(data []byte, cfg config.ProbeConfig) (*ProbeResult, error) {
	if len(data) == 0 {
		return nil, &apperr.EncodingProbeError{Reason: "empty"}
	}

	sample := data
	if len(sample) > detectionSampleBytes {
		sample = sample[:detectionSampleBytes]
	}

	var warnings []string
	name, confidence := detectCharset(sample)
	if name != "" && confidence < cfg.MinDetectionConfidence {
		warnings = append(warnings, WarnLowConfidence)
	}

	text, encodingName, ok := decodeAs(data, name)
	if !ok {
		warnings = append(warnings, WarnFallbackUTF8)
		if utf8.Valid(data) {
			text, encodingName = string(data), "utf-8"
		} else {
			warnings = append(warnings, WarnFallbackLatin1)
			// ISO-8859-1 maps every byte, so this final step cannot fail.
			decoded, _ := charmap.ISO8859_1.NewDecoder().Bytes(data)
			text, encodingName = string(decoded), "iso-8859-1"
		}
	}

	ratio := printableRatio(text)
	if ratio < cfg.MinPrintableRatio {
		return nil, &apperr.EncodingProbeError{Reason: "low_printable", PrintableRatio: ratio}
	}

	return &ProbeResult{
		Text:           text,
		Encoding:       encodingName,
		Confidence:     confidence,
		PrintableRatio: ratio,
		Warnings:       warnings,
	}, nil
}

func detectCharset(sample []byte) (string, float64) {
	result, err := chardet.NewTextDetector().DetectBest(sample)
	if err != nil || result == nil {
		return "", 0
	}
	return result.Charset, float64(result.Confidence) / 100
}

func decodeAs(data []byte, charsetName string) (string, string, bool) {
	name := strings.TrimSpace(charsetName)
	if name == "" {
		return "", "", false
	}
	normalized := strings.ToLower(name)
	if normalized == "utf-8" || normalized == "ascii" || normalized == "us-ascii" {
		if !utf8.Valid(data) {
			return "", "", false
		}
		return string(data), normalized, true
	}
	enc, err := ianaindex.IANA.Encoding(name)
	if err != nil || enc == nil {
		return "", "", false
	}
	decoded, err := enc.NewDecoder().Bytes(data)
	if err != nil {
		return "", "", false
	}
	if !utf8.Valid(decoded) {
		return "", "", false
	}
	return string(decoded), normalized, true
}

func printableRatio(text string) float64 {
	if text == "" {
		return 0
	}
	total, printable := 0, 0
	for _, r := range text {
		total++
		if (r >= 32 && r <= 126) || r == '\t' || r == '\n' || r == '\r' {
			printable++
		}
	}
	return float64(printable) / float64(total)
}
