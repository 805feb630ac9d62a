package parsers

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/autovant/RCA-Final-sub001/internal/domain"
)

// File is one artifact handed to a parser.
type File struct {
	Name     string
	Content  string
	Metadata map[string]any
}

// Result is the outcome of one parse call. Parsers never fail past this
// boundary: unexpected errors are folded into Success=false with Error set.
type Result struct {
	Success           bool            `json:"success"`
	ParserVersion     string          `json:"parser_version"`
	ExtractedEntities []domain.Entity `json:"extracted_entities"`
	DurationMS        int64           `json:"duration_ms"`
	Warnings          []string        `json:"warnings,omitempty"`
	Error             string          `json:"error,omitempty"`
}

// Parser extracts structured entities from platform log text.
type Parser interface {
	Platform() domain.Platform
	Version() string
	Parse(ctx context.Context, files []File) Result
}

// ExtractRule is one regex extractor in a platform's table. When the pattern
// has a capture group the first group is the entity value, otherwise the whole
// match is. SuppressedBy names an earlier rule whose matches at the same start
// offset veto this rule's matches.
type ExtractRule struct {
	EntityType   string
	Pattern      *regexp.Regexp
	SuppressedBy string
}

// RuleParser is the generic table-driven parser shared by all platforms.
type RuleParser struct {
	platform domain.Platform
	version  string
	rules    []ExtractRule
}

func NewRuleParser(platform domain.Platform, version string, rules []ExtractRule) *RuleParser {
	return &RuleParser{platform: platform, version: version, rules: rules}
}

func (p *RuleParser) Platform() domain.Platform { return p.platform }
func (p *RuleParser) Version() string           { return p.version }

func (p *RuleParser) Parse(ctx context.Context, files []File) (result Result) {
	start := time.Now()
	result = Result{Success: true, ParserVersion: p.version, ExtractedEntities: []domain.Entity{}}
	defer func() {
		result.DurationMS = time.Since(start).Milliseconds()
		if r := recover(); r != nil {
			result.Success = false
			result.ExtractedEntities = []domain.Entity{}
			result.Error = fmt.Sprintf("parser panic: %v", r)
		}
	}()

	seen := map[string]struct{}{}
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			result.Success = false
			result.Error = err.Error()
			return result
		}
		if !isTextContent(f.Content) {
			result.Warnings = append(result.Warnings, "Skipping non-text file: "+f.Name)
			continue
		}
		p.extractFile(ctx, f, seen, &result)
		if result.Error != "" {
			return result
		}
	}
	return result
}

func (p *RuleParser) extractFile(ctx context.Context, f File, seen map[string]struct{}, result *Result) {
	// Start offsets already claimed per rule type, consulted by SuppressedBy.
	claimed := map[string]map[int]struct{}{}
	for _, rule := range p.rules {
		if err := ctx.Err(); err != nil {
			result.Success = false
			result.Error = err.Error()
			return
		}
		matches := rule.Pattern.FindAllStringSubmatchIndex(f.Content, -1)
		if len(matches) == 0 {
			continue
		}
		if claimed[rule.EntityType] == nil {
			claimed[rule.EntityType] = map[int]struct{}{}
		}
		for _, m := range matches {
			startOffset := m[0]
			if rule.SuppressedBy != "" {
				if _, taken := claimed[rule.SuppressedBy][startOffset]; taken {
					continue
				}
			}
			value := matchValue(f.Content, m)
			if value == "" {
				continue
			}
			claimed[rule.EntityType][startOffset] = struct{}{}
			key := rule.EntityType + "\x00" + value + "\x00" + f.Name
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			result.ExtractedEntities = append(result.ExtractedEntities, domain.Entity{
				EntityType: rule.EntityType,
				Value:      value,
				SourceFile: f.Name,
			})
		}
	}
}

func matchValue(content string, m []int) string {
	// First capture group when present, whole match otherwise.
	if len(m) >= 4 && m[2] >= 0 {
		return strings.TrimSpace(content[m[2]:m[3]])
	}
	return strings.TrimSpace(content[m[0]:m[1]])
}

func isTextContent(content string) bool {
	if content == "" {
		return true
	}
	if strings.ContainsRune(content, '\x00') {
		return false
	}
	return utf8.ValidString(content)
}
