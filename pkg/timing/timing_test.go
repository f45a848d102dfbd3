package timing

import (
	"testing"
	"time"
)

func TestTimerCapturesPhases(t *testing.T) {
	timer := NewTimer()

	timer.StartDNS()
	time.Sleep(2 * time.Millisecond)
	timer.EndDNS()

	timer.StartTCP()
	time.Sleep(2 * time.Millisecond)
	timer.EndTCP()

	timer.StartTTFB()
	time.Sleep(2 * time.Millisecond)
	timer.EndTTFB()

	m := timer.GetMetrics()

	if m.DNSLookup <= 0 {
		t.Errorf("expected positive DNSLookup, got %v", m.DNSLookup)
	}
	if m.TCPConnect <= 0 {
		t.Errorf("expected positive TCPConnect, got %v", m.TCPConnect)
	}
	if m.TTFB <= 0 {
		t.Errorf("expected positive TTFB, got %v", m.TTFB)
	}
	if m.TotalTime <= 0 {
		t.Errorf("expected positive TotalTime, got %v", m.TotalTime)
	}
	if got := m.GetConnectionTime(); got != m.DNSLookup+m.TCPConnect {
		t.Errorf("expected connection time to sum DNS+TCP, got %v", got)
	}
}

func TestTimerZeroPhasesOmitted(t *testing.T) {
	timer := NewTimer()
	m := timer.GetMetrics()

	if m.DNSLookup != 0 || m.TCPConnect != 0 || m.TTFB != 0 {
		t.Errorf("expected unset phases to remain zero, got %+v", m)
	}
	if m.String() == "" {
		t.Errorf("expected non-empty String()")
	}
}
