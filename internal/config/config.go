package config

import "time"

// ProbeConfig tunes the encoding probe.
type ProbeConfig struct {
	// MinPrintableRatio is the hard rejection floor for decoded text.
	MinPrintableRatio float64
	// MinDetectionConfidence marks charset guesses below it with a warning.
	MinDetectionConfidence float64
}

func DefaultProbeConfig() ProbeConfig {
	return ProbeConfig{
		MinPrintableRatio:      0.75,
		MinDetectionConfidence: 0.75,
	}
}

// DetectionConfig tunes the platform detection orchestrator. All fields are
// resolved once at construction; components never probe settings at runtime.
type DetectionConfig struct {
	Enabled bool
	// MinConfidence gates labeling: a winning score below it is reported as
	// platform "unknown" while the score itself is preserved.
	MinConfidence float64
	// RolloutConfidence gates parser execution, the expensive half of the
	// pipeline.
	RolloutConfidence float64
	ParserTimeout     time.Duration
	// CaptureFlagSnapshot controls the audit snapshot of feature flags,
	// independently of detection itself.
	CaptureFlagSnapshot bool
}

func DefaultDetectionConfig() DetectionConfig {
	return DetectionConfig{
		Enabled:             true,
		MinConfidence:       0.15,
		RolloutConfidence:   0.65,
		ParserTimeout:       30 * time.Second,
		CaptureFlagSnapshot: true,
	}
}

// CacheConfig tunes the embedding cache service.
type CacheConfig struct {
	EncryptionEnabled bool
	// EncryptionKey must be 32 bytes when encryption is enabled.
	EncryptionKey []byte
}

// EvictionConfig tunes the cache eviction runner and its coordinator.
type EvictionConfig struct {
	CutoffDays       int
	BatchLimit       int
	HitRateThreshold float64
	MinInterval      time.Duration
}

func DefaultEvictionConfig() EvictionConfig {
	return EvictionConfig{
		CutoffDays:       30,
		BatchLimit:       500,
		HitRateThreshold: 0.2,
		MinInterval:      15 * time.Minute,
	}
}

// SearchConfig tunes related-incident search.
type SearchConfig struct {
	DefaultMinRelevance float64
	DefaultLimit        int
	MaxLimit            int
}

func DefaultSearchConfig() SearchConfig {
	return SearchConfig{
		DefaultMinRelevance: 0.7,
		DefaultLimit:        10,
		MaxLimit:            50,
	}
}

// FeatureFlags is the process-wide read-only flag snapshot consulted per call.
type FeatureFlags struct {
	PlatformDetectionEnabled bool
	EmbeddingCacheEnabled    bool
	CacheEvictionEnabled     bool
}

// Enabled returns the names of all enabled flags, used for metric labels and
// detection audit snapshots.
func (f FeatureFlags) Enabled() []string {
	var out []string
	if f.PlatformDetectionEnabled {
		out = append(out, "platform_detection_enabled")
	}
	if f.EmbeddingCacheEnabled {
		out = append(out, "embedding_cache_enabled")
	}
	if f.CacheEvictionEnabled {
		out = append(out, "cache_eviction_enabled")
	}
	return out
}

// AsMap returns the flag set as a name to state map.
func (f FeatureFlags) AsMap() map[string]bool {
	return map[string]bool{
		"platform_detection_enabled": f.PlatformDetectionEnabled,
		"embedding_cache_enabled":    f.EmbeddingCacheEnabled,
		"cache_eviction_enabled":     f.CacheEvictionEnabled,
	}
}
