package learning

import (
	"sync"
	"testing"
	"time"
)

func outcomes(sig Signature, n int, delta float64, at time.Time) []Outcome {
	out := make([]Outcome, n)
	for i := range out {
		out[i] = Outcome{Signature: sig, Question: "probe question", QualityDelta: delta, At: at}
	}
	return out
}

func TestStore_EligibilityThresholds(t *testing.T) {
	now := time.Now()
	sig := NewSignature("vague", "background")

	s := NewStore()
	// 4 samples, all successes: below the sample floor.
	s.RecordOutcomes(outcomes(sig, 4, 0.5, now))
	if _, ok := s.Eligible(sig); ok {
		t.Error("pattern with 4 samples must not be eligible")
	}

	// Fifth sample, still successful: 5 samples, rate 1.0 >= 0.6.
	s.RecordOutcome(Outcome{Signature: sig, QualityDelta: 0.5, At: now})
	p, ok := s.Eligible(sig)
	if !ok {
		t.Fatal("pattern with 5 samples and rate 1.0 must be eligible")
	}
	if p.Samples != 5 || p.Successes != 5 {
		t.Errorf("pattern = %d/%d, want 5/5", p.Successes, p.Samples)
	}
}

func TestStore_SuccessRateFloor(t *testing.T) {
	now := time.Now()
	sig := NewSignature("emotional", "")

	s := NewStore()
	// 3 successes + 2 failures: rate 0.6, exactly at the floor.
	s.RecordOutcomes(outcomes(sig, 3, 0.5, now))
	s.RecordOutcomes(outcomes(sig, 2, 0.0, now))
	if p, ok := s.Eligible(sig); !ok || p.SuccessRate() != 0.6 {
		t.Errorf("rate 0.6 at 5 samples should be eligible, got ok=%v rate=%v", ok, p.SuccessRate())
	}

	// One more failure drops the rate below 0.6.
	s.RecordOutcome(Outcome{Signature: sig, QualityDelta: -0.2, At: now})
	if _, ok := s.Eligible(sig); ok {
		t.Error("rate 0.5 must not be eligible")
	}
}

func TestStore_ImprovementThreshold(t *testing.T) {
	s := NewStore()
	sig := NewSignature("vague", "pricing")

	// Delta exactly at the threshold is not a success.
	s.RecordOutcome(Outcome{Signature: sig, QualityDelta: DefaultImprovementThreshold, At: time.Now()})
	p, _ := s.Pattern(sig)
	if p.Successes != 0 {
		t.Errorf("delta == threshold counted as success")
	}
	s.RecordOutcome(Outcome{Signature: sig, QualityDelta: DefaultImprovementThreshold + 0.01, At: time.Now()})
	p, _ = s.Pattern(sig)
	if p.Successes != 1 {
		t.Errorf("delta above threshold not counted, pattern %+v", p)
	}
}

func TestPattern_ConfidenceMonotonicAndBounded(t *testing.T) {
	now := time.Now()
	prev := 0.0
	for n := 1; n <= 40; n++ {
		p := Pattern{Samples: n, LastUpdated: now}
		c := p.Confidence(now)
		if c < prev {
			t.Fatalf("confidence decreased at n=%d: %v -> %v", n, prev, c)
		}
		if c < 0 || c > 1 {
			t.Fatalf("confidence out of bounds at n=%d: %v", n, c)
		}
		prev = c
	}

	// Recency discount: fresher evidence scores higher for equal samples.
	fresh := Pattern{Samples: 10, LastUpdated: now}
	stale := Pattern{Samples: 10, LastUpdated: now.Add(-90 * 24 * time.Hour)}
	if fresh.Confidence(now) <= stale.Confidence(now) {
		t.Error("stale pattern should score below fresh pattern")
	}
}

func TestStore_ExportImportRoundTrip(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Second)
	sig1 := NewSignature("vague", "background")
	sig2 := NewSignature("contradiction", "pricing")

	a := NewStore()
	a.RecordOutcomes(outcomes(sig1, 5, 0.5, now))
	a.RecordOutcomes(outcomes(sig2, 2, 0.3, now))

	data, err := a.Export()
	if err != nil {
		t.Fatal(err)
	}

	b := NewStore()
	if err := b.Import(data); err != nil {
		t.Fatal(err)
	}

	// Round-trip law: identical eligibility results.
	for _, sig := range []Signature{sig1, sig2} {
		pa, oka := a.Eligible(sig)
		pb, okb := b.Eligible(sig)
		if oka != okb {
			t.Errorf("%s: eligibility differs after round trip", sig)
		}
		if oka && (pa.Samples != pb.Samples || pa.Successes != pb.Successes) {
			t.Errorf("%s: counts differ: %v vs %v", sig, pa, pb)
		}
	}
}

func TestStore_ImportMergeIsCommutative(t *testing.T) {
	now := time.Now().UTC()
	sig := NewSignature("vague", "")

	a := NewStore()
	a.RecordOutcomes(outcomes(sig, 3, 0.5, now))
	b := NewStore()
	b.RecordOutcomes(outcomes(sig, 4, 0.0, now.Add(time.Hour)))

	snapA, _ := a.Export()
	snapB, _ := b.Export()

	ab := NewStore()
	_ = ab.Import(snapA)
	_ = ab.Import(snapB)

	ba := NewStore()
	_ = ba.Import(snapB)
	_ = ba.Import(snapA)

	pab, _ := ab.Pattern(sig)
	pba, _ := ba.Pattern(sig)
	if pab.Samples != pba.Samples || pab.Successes != pba.Successes {
		t.Errorf("merge order changed counts: %+v vs %+v", pab, pba)
	}
	if pab.Samples != 7 || pab.Successes != 3 {
		t.Errorf("merged counts = %d/%d, want 3/7", pab.Successes, pab.Samples)
	}
	if !pab.LastUpdated.Equal(pba.LastUpdated) {
		t.Error("merge order changed recency")
	}
}

func TestStore_ConcurrentRecording(t *testing.T) {
	s := NewStore()
	sig := NewSignature("vague", "load")

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				s.RecordOutcome(Outcome{Signature: sig, QualityDelta: 0.5, At: time.Now()})
				s.Eligible(sig)
			}
		}()
	}
	wg.Wait()

	p, _ := s.Pattern(sig)
	if p.Samples != 400 {
		t.Errorf("samples = %d, want 400", p.Samples)
	}
}
