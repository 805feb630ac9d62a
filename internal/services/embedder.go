package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/autovant/RCA-Final-sub001/internal/platform/envutil"
	"github.com/autovant/RCA-Final-sub001/internal/platform/logger"
)

// HTTPEmbedder calls an OpenAI-compatible embeddings endpoint.
type HTTPEmbedder struct {
	url   string
	key   string
	model string
	http  *http.Client
	log   *logger.Logger
}

func NewHTTPEmbedder(baseLog *logger.Logger) (*HTTPEmbedder, error) {
	url := strings.TrimSpace(envutil.String("EMBEDDINGS_API_URL", "https://api.openai.com/v1/embeddings"))
	key := strings.TrimSpace(envutil.String("EMBEDDINGS_API_KEY", ""))
	model := strings.TrimSpace(envutil.String("EMBEDDINGS_MODEL", "text-embedding-3-small"))
	if key == "" {
		return nil, fmt.Errorf("missing EMBEDDINGS_API_KEY")
	}
	return &HTTPEmbedder{
		url:   url,
		key:   key,
		model: model,
		http:  &http.Client{Timeout: 30 * time.Second},
		log:   baseLog.With("service", "HTTPEmbedder"),
	}, nil
}

func (e *HTTPEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	body, err := json.Marshal(map[string]any{
		"model": e.model,
		"input": text,
	})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+e.key)

	resp, err := e.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embeddings request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("embeddings response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("embeddings http status=%d", resp.StatusCode)
	}

	var parsed struct {
		Data []struct {
			Embedding []float32 `json:"embedding"`
		} `json:"data"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("decode embeddings response: %w", err)
	}
	if len(parsed.Data) == 0 || len(parsed.Data[0].Embedding) == 0 {
		return nil, fmt.Errorf("embeddings response carried no vector")
	}
	return parsed.Data[0].Embedding, nil
}
