package app

import (
	"encoding/hex"
	"time"

	"github.com/autovant/RCA-Final-sub001/internal/config"
	"github.com/autovant/RCA-Final-sub001/internal/platform/envutil"
	"github.com/autovant/RCA-Final-sub001/internal/platform/logger"
	"github.com/autovant/RCA-Final-sub001/internal/platform/vectorstore"
)

// Config is the process-wide settings snapshot, resolved once at startup and
// passed read-only into every component.
type Config struct {
	Probe     config.ProbeConfig
	Detection config.DetectionConfig
	Cache     config.CacheConfig
	Eviction  config.EvictionConfig
	Search    config.SearchConfig
	Flags     config.FeatureFlags
	Vector    vectorstore.Config
	Port      string
	RedisAddr string
}

func LoadConfig(log *logger.Logger) Config {
	probe := config.DefaultProbeConfig()
	probe.MinPrintableRatio = envutil.Float("PROBE_MIN_PRINTABLE_RATIO", probe.MinPrintableRatio)
	probe.MinDetectionConfidence = envutil.Float("PROBE_MIN_DETECTION_CONFIDENCE", probe.MinDetectionConfidence)

	detect := config.DefaultDetectionConfig()
	detect.Enabled = envutil.Bool("DETECTION_ENABLED", detect.Enabled)
	detect.MinConfidence = envutil.Float("DETECTION_MIN_CONFIDENCE", detect.MinConfidence)
	detect.RolloutConfidence = envutil.Float("DETECTION_ROLLOUT_CONFIDENCE", detect.RolloutConfidence)
	detect.ParserTimeout = time.Duration(envutil.Int("DETECTION_PARSER_TIMEOUT_SECONDS", int(detect.ParserTimeout/time.Second))) * time.Second
	detect.CaptureFlagSnapshot = envutil.Bool("DETECTION_CAPTURE_FLAG_SNAPSHOT", detect.CaptureFlagSnapshot)

	cacheCfg := config.CacheConfig{
		EncryptionEnabled: envutil.Bool("CACHE_ENCRYPTION_ENABLED", false),
	}
	if rawKey := envutil.String("CACHE_ENCRYPTION_KEY", ""); rawKey != "" {
		key, err := hex.DecodeString(rawKey)
		if err != nil {
			log.Error("CACHE_ENCRYPTION_KEY is not valid hex; encryption disabled", "error", err)
			cacheCfg.EncryptionEnabled = false
		} else {
			cacheCfg.EncryptionKey = key
		}
	}

	evict := config.DefaultEvictionConfig()
	evict.CutoffDays = envutil.Int("EVICTION_CUTOFF_DAYS", evict.CutoffDays)
	evict.BatchLimit = envutil.Int("EVICTION_BATCH_LIMIT", evict.BatchLimit)
	evict.HitRateThreshold = envutil.Float("EVICTION_HIT_RATE_THRESHOLD", evict.HitRateThreshold)
	evict.MinInterval = time.Duration(envutil.Int("EVICTION_MIN_INTERVAL_SECONDS", int(evict.MinInterval/time.Second))) * time.Second

	search := config.DefaultSearchConfig()
	search.DefaultMinRelevance = envutil.Float("SEARCH_DEFAULT_MIN_RELEVANCE", search.DefaultMinRelevance)
	search.DefaultLimit = envutil.Int("SEARCH_DEFAULT_LIMIT", search.DefaultLimit)
	search.MaxLimit = envutil.Int("SEARCH_MAX_LIMIT", search.MaxLimit)

	flags := config.FeatureFlags{
		PlatformDetectionEnabled: envutil.Bool("FLAG_PLATFORM_DETECTION_ENABLED", true),
		EmbeddingCacheEnabled:    envutil.Bool("FLAG_EMBEDDING_CACHE_ENABLED", true),
		CacheEvictionEnabled:     envutil.Bool("FLAG_CACHE_EVICTION_ENABLED", true),
	}

	return Config{
		Probe:     probe,
		Detection: detect,
		Cache:     cacheCfg,
		Eviction:  evict,
		Search:    search,
		Flags:     flags,
		Vector:    vectorstore.ConfigFromEnv(),
		Port:      envutil.String("PORT", "8080"),
		RedisAddr: envutil.String("REDIS_ADDR", ""),
	}
}
