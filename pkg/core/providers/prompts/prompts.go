// Package prompts holds the prompt text and response parsing shared by
// the LLM providers. Providers differ only in transport; the instructions
// given to the model and the strict JSON contract are identical.
package prompts

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/candorlabs/vox/pkg/core/analysis"
)

// AnalysisSystem instructs the model to return the structured breakdown
// of one answer. The model must answer with a single JSON object and
// nothing else.
const AnalysisSystem = `You analyze a single answer given during a voice research interview.
Return ONLY a JSON object, no prose, with exactly these fields:
{
  "sentiment": <float -1..1>,
  "information_density": <float 0..1, how much concrete information the answer carries>,
  "signals": [<any of "vague","detailed","contradiction","emotional","enthusiasm","hesitation">],
  "entities": [<named things mentioned>],
  "themes": [<short theme labels>],
  "topic_relevance": <float 0..1, relevance to the research objective>,
  "emotion_score": <float 0..1, intensity of emotional content>,
  "confidence": <float 0..1, your confidence in this analysis>,
  "contradicts": <question id of a conflicting earlier answer, or "">
}`

// FollowUpSystem instructs the model to produce one follow-up question.
const FollowUpSystem = `You conduct voice research interviews. Produce ONE short, natural,
spoken-language follow-up question probing the respondent's last answer.
Return ONLY a JSON object: {"question": "<the question>", "confidence": <float 0..1>}.
The question must be answerable in speech, under 25 words, and must not
repeat a question already asked.`

const maxHistoryTurns = 6

// AnalysisUser renders the user prompt for an analysis call.
func AnalysisUser(text string, actx analysis.Context) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Research objective: %s\n", actx.ResearchObjective)
	fmt.Fprintf(&b, "Question asked (id %s): %s\n", actx.QuestionID, actx.Question)
	writeHistory(&b, actx.History)
	fmt.Fprintf(&b, "\nAnswer to analyze:\n%s\n", text)
	return b.String()
}

// FollowUpUser renders the user prompt for a generation call.
func FollowUpUser(actx analysis.Context) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Research objective: %s\n", actx.ResearchObjective)
	fmt.Fprintf(&b, "Original question: %s\n", actx.Question)
	fmt.Fprintf(&b, "Reason a follow-up is wanted: %s\n", actx.Trigger)
	if len(actx.PatternExamples) > 0 {
		b.WriteString("Follow-ups that worked well in similar situations:\n")
		for _, ex := range actx.PatternExamples {
			fmt.Fprintf(&b, "- %s\n", ex)
		}
	}
	if actx.TimeRemaining > 0 {
		fmt.Fprintf(&b, "Interview time remaining: %s\n", actx.TimeRemaining.Round(time.Second))
	}
	writeHistory(&b, actx.History)
	return b.String()
}

func writeHistory(b *strings.Builder, history []analysis.Response) {
	if len(history) == 0 {
		return
	}
	if len(history) > maxHistoryTurns {
		history = history[len(history)-maxHistoryTurns:]
	}
	b.WriteString("\nRecent exchange, oldest first:\n")
	for _, r := range history {
		fmt.Fprintf(b, "Q (%s): %s\nA: %s\n", r.QuestionID, r.Question, r.Text)
	}
}

type analysisDTO struct {
	Sentiment      float64  `json:"sentiment"`
	Density        float64  `json:"information_density"`
	Signals        []string `json:"signals"`
	Entities       []string `json:"entities"`
	Themes         []string `json:"themes"`
	TopicRelevance float64  `json:"topic_relevance"`
	EmotionScore   float64  `json:"emotion_score"`
	Confidence     float64  `json:"confidence"`
	Contradicts    string   `json:"contradicts"`
}

type followUpDTO struct {
	Question   string  `json:"question"`
	Confidence float64 `json:"confidence"`
}

// ParseAnalysis decodes the model's JSON reply into an Analysis,
// clamping every score to its documented range. It tolerates code fences
// and leading prose around the object.
func ParseAnalysis(raw string) (analysis.Analysis, error) {
	body, err := extractJSON(raw)
	if err != nil {
		return analysis.Analysis{}, err
	}
	var dto analysisDTO
	if err := json.Unmarshal([]byte(body), &dto); err != nil {
		return analysis.Analysis{}, fmt.Errorf("decode analysis: %w", err)
	}
	a := analysis.Analysis{
		Sentiment:      clamp(dto.Sentiment, -1, 1),
		Density:        clamp(dto.Density, 0, 1),
		Entities:       dto.Entities,
		Themes:         dto.Themes,
		TopicRelevance: clamp(dto.TopicRelevance, 0, 1),
		EmotionScore:   clamp(dto.EmotionScore, 0, 1),
		Confidence:     clamp(dto.Confidence, 0, 1),
		Contradicts:    dto.Contradicts,
	}
	for _, s := range dto.Signals {
		switch sig := analysis.Signal(strings.ToLower(strings.TrimSpace(s))); sig {
		case analysis.SignalVague, analysis.SignalDetailed, analysis.SignalContradiction,
			analysis.SignalEmotional, analysis.SignalEnthusiasm, analysis.SignalHesitation:
			a.Signals = append(a.Signals, sig)
		}
	}
	return a, nil
}

// ParseFollowUp decodes the model's JSON reply into a Generated.
func ParseFollowUp(raw string) (analysis.Generated, error) {
	body, err := extractJSON(raw)
	if err != nil {
		return analysis.Generated{}, err
	}
	var dto followUpDTO
	if err := json.Unmarshal([]byte(body), &dto); err != nil {
		return analysis.Generated{}, fmt.Errorf("decode follow-up: %w", err)
	}
	q := strings.TrimSpace(dto.Question)
	if q == "" {
		return analysis.Generated{}, fmt.Errorf("empty follow-up question")
	}
	return analysis.Generated{Text: q, Confidence: clamp(dto.Confidence, 0, 1)}, nil
}

// extractJSON returns the first top-level {...} object in the reply.
// Models occasionally wrap the object in markdown fences despite the
// instructions.
func extractJSON(raw string) (string, error) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return "", fmt.Errorf("no JSON object in model reply")
	}
	return raw[start : end+1], nil
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
