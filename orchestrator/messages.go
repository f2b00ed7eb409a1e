package orchestrator

import (
	"strings"

	"github.com/hupe1980/agentdispatch/core"
	"github.com/hupe1980/agentdispatch/internal/util"
)

// Fixed message templates. These are the guaranteed fallbacks behind every
// LLM generation path: rendering is local and cannot fail at runtime, so a
// user always receives a message even when generation does.
const (
	routingAckTemplate = "Let me get {{.agent | title}} on that. One moment."

	ackFallbackTemplate = "{{.agent | title}} is on it. I'll update you here as soon as there's a result."

	completionFallbackTemplate = "{{.agent | title}} finished your request.{{if .summary}} {{.summary}}{{end}}"

	errorFallbackTemplate = "Sorry, {{.agent | title}} ran into a problem{{if .error}}: {{.error}}{{end}}. You can try again or rephrase your request."

	directFallbackResponse = "I'm here and listening. What would you like me to do?"

	chatErrorTemplate = "Sorry, something went wrong while handling your message.{{if .error}} ({{.error}}){{end}}"
)

func render(tmpl string, state map[string]any) string {
	out, err := util.RenderTemplate(tmpl, state)
	if err != nil {
		// Templates are compile-time constants; a render failure means a
		// broken template, so degrade to the raw text.
		return tmpl
	}
	return strings.TrimSpace(out)
}

func routingAckMessage(agent string) string {
	return render(routingAckTemplate, map[string]any{"agent": agent})
}

func ackFallbackMessage(agent string) string {
	return render(ackFallbackTemplate, map[string]any{"agent": agent})
}

func completionFallbackMessage(agent string, result *core.Result) string {
	summary := ""
	if result != nil {
		summary = result.Summary
	}
	return render(completionFallbackTemplate, map[string]any{"agent": agent, "summary": summary})
}

func errorFallbackMessage(agent, errMsg string) string {
	return render(errorFallbackTemplate, map[string]any{"agent": agent, "error": errMsg})
}

func chatErrorMessage(errMsg string) string {
	return render(chatErrorTemplate, map[string]any{"error": errMsg})
}
