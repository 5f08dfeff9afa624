package realtime

import "testing"

func TestDisconnectAlwaysEmitsTerminalStatus(t *testing.T) {
	c := NewClient(ClientOptions{})

	var statuses []Status
	c.OnEvent(func(e Event) {
		if e.Type == EventStatus {
			statuses = append(statuses, e.Status)
		}
	})

	// Never connected: each call still reports the terminal state.
	c.Disconnect()
	c.Disconnect()

	if len(statuses) != 2 {
		t.Fatalf("expected 2 status events, got %d: %v", len(statuses), statuses)
	}
	for i, status := range statuses {
		if status != StatusDisconnected {
			t.Errorf("status %d: expected disconnected, got %s", i, status)
		}
	}
}

func TestSetSessionOptionsUpdatesClosingDetection(t *testing.T) {
	c := NewClient(ClientOptions{Session: SessionOptions{ClosingMessage: "Dit was alles voor vandaag"}})

	c.SetSessionOptions(SessionOptions{ClosingMessage: "Fijn dat u er was vandaag"})

	if !c.closer.matches("fijn dat u er was vandaag, we ronden af") {
		t.Error("expected the new closing message to match")
	}
	if c.closer.matches("dit was alles voor vandaag") {
		t.Error("expected the old closing message to stop matching")
	}
}
