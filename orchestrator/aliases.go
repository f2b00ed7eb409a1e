package orchestrator

import "strings"

// Canonical agent names used by the default deployment. The alias table maps
// the looser channel/queue names seen on inbound intents and events onto
// these.
const (
	// AgentLeadGen handles lead generation requests.
	AgentLeadGen = "falcon"
	// AgentResearch handles research requests.
	AgentResearch = "sage"
	// AgentOutreach handles email / auto-reply requests.
	AgentOutreach = "echo"
)

// DefaultAliases returns the built-in queue/channel alias table.
func DefaultAliases() map[string]string {
	return map[string]string{
		"leadgen":         AgentLeadGen,
		"lead_generation": AgentLeadGen,
		"leads":           AgentLeadGen,
		"research":        AgentResearch,
		"web_research":    AgentResearch,
		"email":           AgentOutreach,
		"auto_reply":      AgentOutreach,
		"outreach":        AgentOutreach,
	}
}

// AliasTable normalizes agent/queue names to canonical identifiers. Unknown
// names degrade to a literal passthrough rather than erroring, so the
// pipeline never hard-fails on a naming mismatch.
type AliasTable struct {
	aliases map[string]string
}

// NewAliasTable builds a table from the given mapping (keys are matched
// case-insensitively).
func NewAliasTable(aliases map[string]string) *AliasTable {
	m := make(map[string]string, len(aliases))
	for k, v := range aliases {
		m[strings.ToLower(k)] = v
	}
	return &AliasTable{aliases: m}
}

// Canonical maps a name to its canonical agent identifier, or returns the
// name unchanged when no alias is known.
func (t *AliasTable) Canonical(name string) string {
	if canonical, ok := t.aliases[strings.ToLower(name)]; ok {
		return canonical
	}
	return name
}
