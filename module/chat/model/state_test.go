package model

import (
	"encoding/json"
	"testing"
	"time"
)

func TestStateChangeJSON(t *testing.T) {
	b, err := json.Marshal(StateChange{Old: StateConnecting, New: StateError})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(b) != `{"old":"connecting","new":"error"}` {
		t.Fatalf("json = %s", b)
	}
	var back StateChange
	if err := json.Unmarshal(b, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if back.Old != StateConnecting || back.New != StateError {
		t.Fatalf("back = %+v", back)
	}
	if err := json.Unmarshal([]byte(`{"old":"sleeping"}`), &back); err == nil {
		t.Fatalf("unknown state accepted")
	}
}

func TestNewMessageKeepsTime(t *testing.T) {
	at := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	m := NewMessage(SenderAssistant, "hi", at)
	if m.Timestamp == nil || !m.Timestamp.Equal(at) {
		t.Fatalf("timestamp = %v", m.Timestamp)
	}
	b, _ := json.Marshal(Message{Sender: SenderUser, Content: "x"})
	if string(b) != `{"sender":"user","content":"x"}` {
		t.Fatalf("json = %s", b)
	}
}
