package vectorstore

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/autovant/RCA-Final-sub001/internal/platform/envutil"
)

// Config selects and parameterizes the Qdrant backend. Leave URL empty to
// run on the in-memory store instead.
type Config struct {
	URL             string
	Collection      string
	NamespacePrefix string
	VectorDim       int
}

func ConfigFromEnv() Config {
	return Config{
		URL:             strings.TrimSpace(envutil.String("QDRANT_URL", "")),
		Collection:      strings.TrimSpace(envutil.String("QDRANT_COLLECTION", "incident_fingerprints")),
		NamespacePrefix: strings.TrimSpace(envutil.String("QDRANT_NAMESPACE_PREFIX", "rca")),
		VectorDim:       envutil.Int("QDRANT_VECTOR_DIM", 1536),
	}
}

func (c Config) Validate() error {
	if c.URL != "" {
		parsed, err := url.Parse(c.URL)
		if err != nil || parsed.Scheme == "" || parsed.Host == "" {
			return fmt.Errorf("invalid QDRANT_URL=%q; expected absolute URL like http://qdrant:6333", c.URL)
		}
	}
	if c.Collection == "" {
		return fmt.Errorf("QDRANT_COLLECTION is required")
	}
	if c.VectorDim <= 0 {
		return fmt.Errorf("QDRANT_VECTOR_DIM must be a positive integer, got %d", c.VectorDim)
	}
	return nil
}
