package detection

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/autovant/RCA-Final-sub001/internal/config"
	"github.com/autovant/RCA-Final-sub001/internal/domain"
	"github.com/autovant/RCA-Final-sub001/internal/observability"
	"github.com/autovant/RCA-Final-sub001/internal/parsers"
	"github.com/autovant/RCA-Final-sub001/internal/platform/logger"
)

const (
	methodHeuristic  = "heuristic"
	methodDisabled   = "disabled"
	methodEmptyInput = "empty_input"
)

// Outcome is the immutable result of one detection invocation.
type Outcome struct {
	JobID               uuid.UUID       `json:"job_id"`
	DetectedPlatform    domain.Platform `json:"detected_platform"`
	ConfidenceScore     float64         `json:"confidence_score"`
	DetectionMethod     string          `json:"detection_method"`
	ParserExecuted      bool            `json:"parser_executed"`
	ParserVersion       *string         `json:"parser_version,omitempty"`
	ExtractedEntities   []domain.Entity `json:"extracted_entities"`
	FeatureFlagSnapshot map[string]bool `json:"feature_flag_snapshot,omitempty"`
	DurationMS          int64           `json:"duration_ms"`
}

// Overrides carries per-call toggles layered over the static config.
type Overrides struct {
	Enabled *bool
}

// Orchestrator scores heuristic signals across uploaded artifacts, picks the
// best platform candidate, and decides whether to run the matched parser. It
// is pure with respect to shared state; config and flags are read-only
// snapshots.
type Orchestrator struct {
	cfg      config.DetectionConfig
	flags    config.FeatureFlags
	registry *parsers.Registry
	log      *logger.Logger
	metrics  *observability.Metrics
}

func NewOrchestrator(cfg config.DetectionConfig, flags config.FeatureFlags, registry *parsers.Registry, log *logger.Logger, metrics *observability.Metrics) *Orchestrator {
	return &Orchestrator{
		cfg:      cfg,
		flags:    flags,
		registry: registry,
		log:      log.With("service", "DetectionOrchestrator"),
		metrics:  metrics,
	}
}

// Detect never fails on malformed input: garbage yields a well-formed
// unknown/zero-confidence outcome.
func (o *Orchestrator) Detect(ctx context.Context, jobID uuid.UUID, inputs []domain.DetectionInput, ov *Overrides) *Outcome {
	start := time.Now()

	enabled := o.cfg.Enabled && o.flags.PlatformDetectionEnabled
	if ov != nil && ov.Enabled != nil {
		enabled = *ov.Enabled
	}

	outcome := &Outcome{
		JobID:             jobID,
		DetectedPlatform:  domain.PlatformUnknown,
		ConfidenceScore:   0,
		DetectionMethod:   methodHeuristic,
		ExtractedEntities: []domain.Entity{},
	}
	defer func() {
		outcome.DurationMS = elapsedMS(start)
		o.observe(outcome)
	}()

	if !enabled {
		outcome.DetectionMethod = methodDisabled
		return o.finish(outcome)
	}
	if len(inputs) == 0 {
		outcome.DetectionMethod = methodEmptyInput
		return o.finish(outcome)
	}

	agg := aggregateSignals(inputs)
	best, bestScore := domain.PlatformUnknown, 0.0
	for _, platform := range domain.SupportedPlatforms() {
		score := scorePlatform(platformSignals[platform], agg)
		// Strict greater-than keeps the lexicographically smallest name on
		// ties, since SupportedPlatforms is sorted.
		if score > bestScore {
			best, bestScore = platform, score
		}
	}

	outcome.ConfidenceScore = bestScore
	if bestScore == 0 || bestScore < o.cfg.MinConfidence {
		// The score survives; only the label is suppressed.
		return o.finish(outcome)
	}
	outcome.DetectedPlatform = best

	if bestScore < o.cfg.RolloutConfidence {
		return o.finish(outcome)
	}
	o.runParser(ctx, best, inputs, outcome)
	return o.finish(outcome)
}

// runParser enriches the outcome with extracted entities. Enrichment failure
// of any kind leaves the already-computed platform and confidence untouched.
func (o *Orchestrator) runParser(ctx context.Context, platform domain.Platform, inputs []domain.DetectionInput, outcome *Outcome) {
	result, err := o.invokeParser(ctx, platform, inputs)
	if err != nil {
		o.log.Warn("parser enrichment unavailable",
			"platform", string(platform), "job_id", outcome.JobID.String(), "error", err)
		return
	}
	outcome.ParserExecuted = true
	outcome.ParserVersion = &result.ParserVersion
	outcome.ExtractedEntities = result.ExtractedEntities
	for _, w := range result.Warnings {
		o.log.Debug("parser warning", "platform", string(platform), "warning", w)
	}
}

// invokeParser is the single swallow point for enrichment failures, kept as
// an explicit result/error pair so the failure path stays visible.
func (o *Orchestrator) invokeParser(ctx context.Context, platform domain.Platform, inputs []domain.DetectionInput) (*parsers.Result, error) {
	parser := o.registry.GetParserForPlatform(string(platform))
	if parser == nil {
		return nil, fmt.Errorf("no parser registered for platform %s", platform)
	}
	files := make([]parsers.File, 0, len(inputs))
	for _, in := range inputs {
		files = append(files, parsers.File{Name: in.Name, Content: in.Content, Metadata: in.Metadata})
	}
	parseCtx := ctx
	if o.cfg.ParserTimeout > 0 {
		var cancel context.CancelFunc
		parseCtx, cancel = context.WithTimeout(ctx, o.cfg.ParserTimeout)
		defer cancel()
	}
	result := parser.Parse(parseCtx, files)
	if !result.Success {
		return nil, fmt.Errorf("parser %s failed: %s", result.ParserVersion, result.Error)
	}
	return &result, nil
}

func (o *Orchestrator) finish(outcome *Outcome) *Outcome {
	if o.cfg.CaptureFlagSnapshot {
		snapshot := map[string]bool{}
		for _, name := range o.flags.Enabled() {
			snapshot[name] = true
		}
		snapshot["platform_detection_enabled"] = o.flags.PlatformDetectionEnabled
		outcome.FeatureFlagSnapshot = snapshot
	}
	return outcome
}

func (o *Orchestrator) observe(outcome *Outcome) {
	if o.metrics == nil {
		return
	}
	o.metrics.ObserveDetection(
		string(outcome.DetectedPlatform),
		outcome.DetectionMethod,
		outcome.ParserExecuted,
		observability.FlagSetLabel(o.flags.Enabled()),
		float64(outcome.DurationMS)/1000,
	)
}

type aggregated struct {
	corpus     string
	filenames  []string
	metadata   []string
	extensions map[string]struct{}
}

func aggregateSignals(inputs []domain.DetectionInput) aggregated {
	agg := aggregated{extensions: map[string]struct{}{}}
	contents := make([]string, 0, len(inputs))
	for _, in := range inputs {
		contents = append(contents, strings.ToLower(in.Content))
		agg.filenames = append(agg.filenames, in.LowerName())
		if ext := in.Extension(); ext != "" {
			agg.extensions[ext] = struct{}{}
		}
		for _, v := range in.Metadata {
			agg.metadata = append(agg.metadata, strings.ToLower(fmt.Sprint(v)))
		}
	}
	agg.corpus = strings.Join(contents, "\n")
	return agg
}

func scorePlatform(signals signalTable, agg aggregated) float64 {
	matched := 0
	for _, kw := range signals.keywords {
		if strings.Contains(agg.corpus, kw) {
			matched++
		}
	}
	score := math.Min(float64(matched)*keywordWeight, keywordCap)

	if anyContainsAny(agg.filenames, signals.keywords) {
		score += filenameWeight
	}
	if anyContainsAny(agg.metadata, signals.metadataHints) {
		score += metadataWeight
	}
	for _, hint := range signals.extensionHints {
		if _, ok := agg.extensions[hint]; ok {
			score += extensionWeight
			break
		}
	}
	return math.Min(score, scoreClamp)
}

func anyContainsAny(haystacks, needles []string) bool {
	for _, h := range haystacks {
		for _, n := range needles {
			if n != "" && strings.Contains(h, n) {
				return true
			}
		}
	}
	return false
}

func elapsedMS(start time.Time) int64 {
	ms := int64(math.Round(float64(time.Since(start)) / float64(time.Millisecond)))
	if ms < 1 {
		ms = 1
	}
	return ms
}
