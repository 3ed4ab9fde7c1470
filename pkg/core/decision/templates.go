package decision

import "github.com/candorlabs/vox/pkg/core/guide"

// Generic probes used when the guide author did not configure a template
// for a trigger. Contradiction and high-value probes need the specifics
// of what was said, so their stock texts carry low confidence and the
// engine prefers to regenerate them.
const (
	templateConfidence = 0.5
	builtinConfidence  = 0.5
	weakConfidence     = 0.3
)

var builtinTemplates = map[guide.TriggerType]string{
	guide.TriggerVague:         "Could you walk me through a specific example of that?",
	guide.TriggerEmotional:     "It sounds like that really mattered to you. What made it feel that way?",
	guide.TriggerContradiction: "I want to make sure I understood. Could you say a bit more about how that fits with what you mentioned earlier?",
	guide.TriggerHighValue:     "That touches on something we care a lot about. Could you expand on it?",
}

// templateFor resolves the template text and its confidence for a
// trigger: the question's own configured trigger first, then the stock
// template.
func templateFor(tr guide.TriggerType, q guide.Question) (string, float64) {
	for _, t := range q.Triggers {
		if t.Type == tr && t.Template != "" {
			return t.Template, templateConfidence + 0.1
		}
	}
	text := builtinTemplates[tr]
	switch tr {
	case guide.TriggerContradiction, guide.TriggerHighValue:
		return text, weakConfidence
	default:
		return text, builtinConfidence
	}
}
