package services

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/autovant/RCA-Final-sub001/internal/config"
)

func testKey() []byte {
	key := make([]byte, 32)
	for i := range key {
		key[i] = byte(i)
	}
	return key
}

func TestPayloadBoxRoundTripEncrypted(t *testing.T) {
	box, err := NewPayloadBox(config.CacheConfig{EncryptionEnabled: true, EncryptionKey: testKey()})
	if err != nil {
		t.Fatalf("NewPayloadBox: %v", err)
	}

	embedding := []float64{0.25, -1.5, 3.0625}
	sealed, err := box.Seal(embedding)
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	if bytes.Contains(sealed, []byte("0.25")) {
		t.Fatal("sealed payload leaks plaintext")
	}

	opened, err := box.Open(sealed)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if len(opened) != len(embedding) {
		t.Fatalf("opened = %v", opened)
	}
	for i := range embedding {
		if opened[i] != embedding[i] {
			t.Fatalf("embedding[%d] = %v, want %v", i, opened[i], embedding[i])
		}
	}
}

func TestPayloadBoxDisabledIsPlainJSON(t *testing.T) {
	box, err := NewPayloadBox(config.CacheConfig{})
	if err != nil {
		t.Fatalf("NewPayloadBox: %v", err)
	}
	sealed, err := box.Seal([]float64{1, 2})
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	var decoded []float64
	if err := json.Unmarshal(sealed, &decoded); err != nil {
		t.Fatalf("disabled payload must be raw JSON: %v", err)
	}
	opened, err := box.Open(sealed)
	if err != nil || len(opened) != 2 {
		t.Fatalf("Open: %v %v", opened, err)
	}
}

func TestPayloadBoxRejectsBadKeyLength(t *testing.T) {
	_, err := NewPayloadBox(config.CacheConfig{EncryptionEnabled: true, EncryptionKey: []byte("short")})
	if err == nil {
		t.Fatal("16-byte-short key must fail construction")
	}
}

func TestPayloadBoxRejectsTamperedPayload(t *testing.T) {
	box, err := NewPayloadBox(config.CacheConfig{EncryptionEnabled: true, EncryptionKey: testKey()})
	if err != nil {
		t.Fatalf("NewPayloadBox: %v", err)
	}
	sealed, err := box.Seal([]float64{1})
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	sealed[len(sealed)-1] ^= 0xFF
	if _, err := box.Open(sealed); err == nil {
		t.Fatal("tampered ciphertext must fail authentication")
	}

	if _, err := box.Open([]byte{1, 2, 3}); err == nil {
		t.Fatal("payload shorter than nonce must be rejected")
	}
}
