package services

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/json"
	"fmt"

	"github.com/autovant/RCA-Final-sub001/internal/config"
)

// PayloadBox serializes embedding vectors to compact JSON and, when
// configured, wraps them in AES-256-GCM with a random 12-byte nonce prepended
// to the ciphertext. Misconfiguration fails construction, not individual
// writes.
type PayloadBox struct {
	aead cipher.AEAD
}

func NewPayloadBox(cfg config.CacheConfig) (*PayloadBox, error) {
	if !cfg.EncryptionEnabled {
		return &PayloadBox{}, nil
	}
	if len(cfg.EncryptionKey) != 32 {
		return nil, fmt.Errorf("cache encryption key must be 32 bytes, got %d", len(cfg.EncryptionKey))
	}
	block, err := aes.NewCipher(cfg.EncryptionKey)
	if err != nil {
		return nil, fmt.Errorf("cache encryption cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("cache encryption gcm: %w", err)
	}
	return &PayloadBox{aead: aead}, nil
}

// Seal serializes the embedding, encrypting when encryption is enabled.
func (b *PayloadBox) Seal(embedding []float64) ([]byte, error) {
	plaintext, err := json.Marshal(embedding)
	if err != nil {
		return nil, fmt.Errorf("serialize embedding: %w", err)
	}
	if b.aead == nil {
		return plaintext, nil
	}
	nonce := make([]byte, b.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("nonce: %w", err)
	}
	return b.aead.Seal(nonce, nonce, plaintext, nil), nil
}

// Open reverses Seal, splitting the first 12 bytes as the nonce when
// encryption is enabled.
func (b *PayloadBox) Open(payload []byte) ([]float64, error) {
	plaintext := payload
	if b.aead != nil {
		nonceSize := b.aead.NonceSize()
		if len(payload) < nonceSize {
			return nil, fmt.Errorf("payload shorter than nonce (%d bytes)", len(payload))
		}
		var err error
		plaintext, err = b.aead.Open(nil, payload[:nonceSize], payload[nonceSize:], nil)
		if err != nil {
			return nil, fmt.Errorf("decrypt payload: %w", err)
		}
	}
	var embedding []float64
	if err := json.Unmarshal(plaintext, &embedding); err != nil {
		return nil, fmt.Errorf("deserialize embedding: %w", err)
	}
	return embedding, nil
}
