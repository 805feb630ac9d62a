package parsers

import "strings"

// Registry maps platform identifiers to parser instances. Unknown platforms
// resolve to nil: detection succeeded but no enrichment is available.
type Registry struct {
	parsers map[string]Parser
}

func NewRegistry() *Registry {
	r := &Registry{parsers: map[string]Parser{}}
	for _, p := range []Parser{
		NewBluePrismParser(),
		NewUiPathParser(),
		NewAppianParser(),
		NewAutomationAnywhereParser(),
		NewPegaParser(),
	} {
		r.parsers[strings.ToLower(string(p.Platform()))] = p
	}
	return r
}

func (r *Registry) GetParserForPlatform(name string) Parser {
	if r == nil {
		return nil
	}
	return r.parsers[strings.ToLower(strings.TrimSpace(name))]
}
