package interview

import "github.com/candorlabs/vox/pkg/core/analysis"

// acknowledgment picks a short verbal bridge spoken before the next
// question. Empty means go straight to the question; over-acknowledging
// sounds robotic, so only strong signals get one.
func acknowledgment(a analysis.Analysis) string {
	switch {
	case a.Has(analysis.SignalEnthusiasm):
		return "That's great to hear."
	case a.Has(analysis.SignalEmotional):
		return "Thank you for sharing that."
	case a.Has(analysis.SignalHesitation):
		return "I see, take your time."
	case a.Has(analysis.SignalDetailed):
		return "That's really helpful."
	default:
		return ""
	}
}
