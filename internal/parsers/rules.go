package parsers

import (
	"regexp"

	"github.com/autovant/RCA-Final-sub001/internal/domain"
)

// One rule table per supported platform, ordered so that precedence rules
// (SuppressedBy) see their claiming rule first.

func NewBluePrismParser() *RuleParser {
	return NewRuleParser(domain.PlatformBluePrism, "blue_prism-parser/1.3", []ExtractRule{
		{EntityType: "process", Pattern: regexp.MustCompile(`(?i)Process(?:\s+Name)?\s*[:=]\s*"?([A-Za-z0-9 _.\-]+?)"?(?:\r?\n|,|$)`)},
		{EntityType: "work_queue", Pattern: regexp.MustCompile(`(?i)Work\s+Queue\s*[:=]\s*"?([A-Za-z0-9 _.\-]+?)"?(?:\r?\n|,|$)`)},
		{EntityType: "business_object", Pattern: regexp.MustCompile(`(?i)Business\s+Object\s*[:=]\s*"?([A-Za-z0-9 _.\-]+?)"?(?:\r?\n|,|$)`)},
		{EntityType: "session_id", Pattern: regexp.MustCompile(`(?i)Session(?:\s+ID)?\s*[:=]\s*([0-9a-fA-F-]{8,})`)},
		{EntityType: "resource", Pattern: regexp.MustCompile(`(?i)Resource\s*[:=]\s*"?([A-Za-z0-9_.\-]+)"?`)},
		{EntityType: "error_message", Pattern: regexp.MustCompile(`(?i)(?:ERROR|Exception)\s*[:\-]\s*(.{1,200}?)(?:\r?\n|$)`)},
	})
}

func NewUiPathParser() *RuleParser {
	return NewRuleParser(domain.PlatformUiPath, "uipath-parser/1.4", []ExtractRule{
		{EntityType: "workflow", Pattern: regexp.MustCompile(`(?i)Workflow\s*[:=]\s*"([^"\r\n]+)"`)},
		{EntityType: "workflow", Pattern: regexp.MustCompile(`(?i)\b([A-Za-z0-9_\-]+\.xaml)\b`)},
		{EntityType: "robot", Pattern: regexp.MustCompile(`(?i)Robot\s*(?:Name)?\s*[:=]\s*"?([A-Za-z0-9_.\-]+)"?`)},
		{EntityType: "execution_id", Pattern: regexp.MustCompile(`(?i)(?:Job|Execution)\s*ID\s*[:=]\s*([0-9a-fA-F-]{8,})`)},
		{EntityType: "queue", Pattern: regexp.MustCompile(`(?i)Queue(?:\s+Name)?\s*[:=]\s*"?([A-Za-z0-9 _.\-]+?)"?(?:\r?\n|,|$)`)},
		{EntityType: "error_message", Pattern: regexp.MustCompile(`(?i)(?:ERROR|Exception|Fault)\s*[:\-]\s*(.{1,200}?)(?:\r?\n|$)`)},
	})
}

func NewAppianParser() *RuleParser {
	return NewRuleParser(domain.PlatformAppian, "appian-parser/1.2", []ExtractRule{
		{EntityType: "process_model", Pattern: regexp.MustCompile(`(?i)Process\s+Model\s*[:=]\s*"?([A-Za-z0-9 _.\-]+?)"?(?:\r?\n|,|$)`)},
		{EntityType: "record_type", Pattern: regexp.MustCompile(`(?i)Record\s+Type\s*[:=]\s*"?([A-Za-z0-9 _.\-]+?)"?(?:\r?\n|,|$)`)},
		{EntityType: "task_id", Pattern: regexp.MustCompile(`(?i)Task\s*ID\s*[:=]\s*([A-Za-z0-9-]+)`)},
		{EntityType: "operator", Pattern: regexp.MustCompile(`(?i)(?:User|Initiator)\s*[:=]\s*"?([A-Za-z0-9_.@\-]+)"?`)},
		{EntityType: "error_message", Pattern: regexp.MustCompile(`(?i)(?:ERROR|Exception|APNX-\d+)\s*[:\-]\s*(.{1,200}?)(?:\r?\n|$)`)},
	})
}

func NewAutomationAnywhereParser() *RuleParser {
	return NewRuleParser(domain.PlatformAutomationAnywhere, "automation_anywhere-parser/1.5", []ExtractRule{
		// bot_runner must precede bot: a "Bot Runner: X" line also matches the
		// looser bot pattern at the same offset and is suppressed there.
		{EntityType: "bot_runner", Pattern: regexp.MustCompile(`(?i)Bot\s+Runner\s*[:=]\s*"?([A-Za-z0-9 _.\-]+?)"?(?:\r?\n|,|$)`)},
		{EntityType: "bot", Pattern: regexp.MustCompile(`(?i)\bBot\b[ \t]*(?:Name)?[ \t]*[:=]?[ \t]*"?([A-Za-z0-9 _.:\-]+?)"?(?:\r?\n|,|$)`), SuppressedBy: "bot_runner"},
		{EntityType: "task", Pattern: regexp.MustCompile(`(?i)Task(?:\s+Name)?\s*[:=]\s*"?([A-Za-z0-9 _.\-]+?)"?(?:\r?\n|,|$)`)},
		{EntityType: "control_room", Pattern: regexp.MustCompile(`(?i)Control\s+Room\s*[:=]\s*"?([A-Za-z0-9:/._\-]+)"?`)},
		{EntityType: "error_message", Pattern: regexp.MustCompile(`(?i)(?:ERROR|Exception)\s*[:\-]\s*(.{1,200}?)(?:\r?\n|$)`)},
	})
}

func NewPegaParser() *RuleParser {
	return NewRuleParser(domain.PlatformPega, "pega-parser/1.2", []ExtractRule{
		{EntityType: "case_id", Pattern: regexp.MustCompile(`(?i)Case\s*ID\s*[:=]\s*([A-Za-z0-9-]+)`)},
		{EntityType: "ruleset", Pattern: regexp.MustCompile(`(?i)Ruleset\s*[:=]\s*"?([A-Za-z0-9 _.\-:]+?)"?(?:\r?\n|,|$)`)},
		{EntityType: "activity", Pattern: regexp.MustCompile(`(?i)Activity\s*[:=]\s*"?([A-Za-z0-9_.\-]+)"?`)},
		{EntityType: "operator", Pattern: regexp.MustCompile(`(?i)Operator(?:\s+ID)?\s*[:=]\s*"?([A-Za-z0-9_.@\-]+)"?`)},
		{EntityType: "work_object", Pattern: regexp.MustCompile(`(?i)Work\s+Object\s*[:=]\s*([A-Za-z0-9-]+)`)},
		{EntityType: "error_message", Pattern: regexp.MustCompile(`(?i)(?:ERROR|Exception|PRRuntimeError)\s*[:\-]\s*(.{1,200}?)(?:\r?\n|$)`)},
	})
}
