package detection

import "github.com/autovant/RCA-Final-sub001/internal/domain"

// Scoring weights. The raw maximum is 1.05 before clamping; the headroom lets
// partial keyword evidence still clear the rollout threshold when backed by
// filename or metadata hints.
const (
	keywordWeight   = 0.3
	keywordCap      = 0.6
	filenameWeight  = 0.15
	metadataWeight  = 0.2
	extensionWeight = 0.1
	scoreClamp      = 1.0
)

type signalTable struct {
	keywords       []string
	metadataHints  []string
	extensionHints []string
}

// All signal substrings are lowercase; inputs are lowercased before matching.
var platformSignals = map[domain.Platform]signalTable{
	domain.PlatformBluePrism: {
		keywords:       []string{"blue prism", "blueprism", "work queue", "business object", "process studio", "resource pc"},
		metadataHints:  []string{"blue_prism", "blueprism", "bp_process"},
		extensionHints: []string{".bprelease", ".bpprocess"},
	},
	domain.PlatformUiPath: {
		keywords:       []string{"uipath", "orchestrator", "robot", ".xaml", "reframework", "queue item"},
		metadataHints:  []string{"uipath", "orchestrator"},
		extensionHints: []string{".xaml", ".nupkg"},
	},
	domain.PlatformAppian: {
		keywords:       []string{"appian", "process model", "record type", "tempo", "sail", "smart service"},
		metadataHints:  []string{"appian"},
		extensionHints: []string{".aplc"},
	},
	domain.PlatformAutomationAnywhere: {
		keywords:       []string{"automation anywhere", "bot runner", "control room", "taskbot", "metabot", "a360"},
		metadataHints:  []string{"automation_anywhere", "automationanywhere", "a2019"},
		extensionHints: []string{".atmx", ".mbot"},
	},
	domain.PlatformPega: {
		keywords:       []string{"pega", "pegarules", "prpc", "ruleset", "work object", "case lifecycle"},
		metadataHints:  []string{"pega", "prpc"},
		extensionHints: []string{".ruleset", ".pegarules"},
	},
}
