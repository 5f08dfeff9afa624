package realtime

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestClosingDetectorMatchesConfiguredMessage(t *testing.T) {
	detector := NewClosingDetector("Bedankt voor dit gesprek, ik wens u een fijne dag.", 20*time.Millisecond)

	done := make(chan struct{}, 1)
	detector.OnDetected(func() {
		done <- struct{}{}
	})

	detector.Scan("Bedankt voor dit gesprek, tot de volgende keer.")

	select {
	case <-done:
	case <-time.After(500 * time.Millisecond):
		t.Fatal("expected closing callback to fire")
	}
}

func TestClosingDetectorMatchesKeywordWithoutConfiguredMessage(t *testing.T) {
	detector := NewClosingDetector("", 20*time.Millisecond)

	done := make(chan struct{}, 1)
	detector.OnDetected(func() {
		done <- struct{}{}
	})

	detector.Scan("Heel goed, veel succes met uw sollicitatie!")

	select {
	case <-done:
	case <-time.After(500 * time.Millisecond):
		t.Fatal("expected closing callback to fire")
	}
}

func TestClosingDetectorIgnoresOrdinaryTranscripts(t *testing.T) {
	detector := NewClosingDetector("Bedankt voor dit gesprek.", 20*time.Millisecond)

	var fired atomic.Int32
	detector.OnDetected(func() {
		fired.Add(1)
	})

	detector.Scan("Kunt u iets vertellen over uw vorige baan?")
	detector.Scan("Wat waren daar uw taken?")

	time.Sleep(80 * time.Millisecond)
	if fired.Load() != 0 {
		t.Fatalf("expected 0 callbacks, got %d", fired.Load())
	}
}

func TestClosingDetectorFiresOncePerWindow(t *testing.T) {
	detector := NewClosingDetector("", 50*time.Millisecond)

	var fired atomic.Int32
	detector.OnDetected(func() {
		fired.Add(1)
	})

	detector.Scan("Bedankt voor uw tijd vandaag.")
	detector.Scan("Nogmaals bedankt voor alles.")
	detector.Scan("Tot ziens!")

	time.Sleep(200 * time.Millisecond)
	if fired.Load() != 1 {
		t.Fatalf("expected exactly 1 callback, got %d", fired.Load())
	}
}

func TestClosingDetectorResetCancelsPendingDetection(t *testing.T) {
	detector := NewClosingDetector("", 50*time.Millisecond)

	var fired atomic.Int32
	detector.OnDetected(func() {
		fired.Add(1)
	})

	detector.Scan("Fijne dag nog!")
	detector.Reset()

	time.Sleep(120 * time.Millisecond)
	if fired.Load() != 0 {
		t.Fatalf("expected 0 callbacks after reset, got %d", fired.Load())
	}
}

func TestClosingDetectorMatchIsCaseInsensitive(t *testing.T) {
	detector := NewClosingDetector("BEDANKT VOOR DIT GESPREK", 10*time.Millisecond)

	done := make(chan struct{}, 1)
	detector.OnDetected(func() {
		done <- struct{}{}
	})

	detector.Scan("bedankt voor dit gesprek en tot snel")

	select {
	case <-done:
	case <-time.After(500 * time.Millisecond):
		t.Fatal("expected closing callback to fire")
	}
}
