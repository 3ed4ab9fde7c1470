package interview

import (
	"testing"

	"github.com/candorlabs/vox/pkg/core/analysis"
)

func TestEvaluateConsent(t *testing.T) {
	tests := []struct {
		reply string
		want  consentVerdict
	}{
		{"yes", consentGranted},
		{"Yeah, sounds good", consentGranted},
		{"sure, go ahead", consentGranted},
		{"okay", consentGranted},
		{"no", consentDeclined},
		{"nope, not today", consentDeclined},
		{"I'd rather not", consentDeclined},
		{"no, I don't agree", consentDeclined},
		{"please stop", consentDeclined},
		{"I'm not comfortable with recording", consentDeclined},
		{"", consentUnclear},
		{"what is this about", consentUnclear},
		// "know" must not match "no"; "notably" must not match "not".
		{"I know, that's notable", consentUnclear},
	}
	for _, tt := range tests {
		t.Run(tt.reply, func(t *testing.T) {
			if got := evaluateConsent(tt.reply); got != tt.want {
				t.Errorf("evaluateConsent(%q) = %v, want %v", tt.reply, got, tt.want)
			}
		})
	}
}

func TestAcknowledgment(t *testing.T) {
	tests := []struct {
		name    string
		signals []analysis.Signal
		want    bool
	}{
		{"enthusiasm", []analysis.Signal{analysis.SignalEnthusiasm}, true},
		{"emotional", []analysis.Signal{analysis.SignalEmotional}, true},
		{"hesitation", []analysis.Signal{analysis.SignalHesitation}, true},
		{"detailed", []analysis.Signal{analysis.SignalDetailed}, true},
		{"plain answer", nil, false},
		{"vague only", []analysis.Signal{analysis.SignalVague}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := acknowledgment(analysis.Analysis{Signals: tt.signals})
			if (got != "") != tt.want {
				t.Errorf("acknowledgment = %q, want ack=%v", got, tt.want)
			}
		})
	}
}
