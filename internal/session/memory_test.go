package session

import (
	"sync"
	"testing"

	"github.com/taxpilot/taxpilot/internal/profile"
)

func TestMemory_ProfileRoundTrip(t *testing.T) {
	m := NewMemory()

	if _, ok, err := m.GetProfile("s1"); ok || err != nil {
		t.Fatalf("GetProfile on empty store: ok=%v err=%v", ok, err)
	}

	p := profile.Business{BusinessType: "LLC", ComplianceConcerns: []string{"late filing"}}
	if err := m.PutProfile("s1", p); err != nil {
		t.Fatalf("PutProfile: %v", err)
	}

	got, ok, err := m.GetProfile("s1")
	if err != nil || !ok {
		t.Fatalf("GetProfile: ok=%v err=%v", ok, err)
	}
	if got.BusinessType != "LLC" {
		t.Errorf("BusinessType = %q, want LLC", got.BusinessType)
	}

	// Mutating the returned copy must not affect the store.
	got.ComplianceConcerns[0] = "changed"
	again, _, _ := m.GetProfile("s1")
	if again.ComplianceConcerns[0] != "late filing" {
		t.Error("GetProfile returned shared slice storage")
	}
}

func TestMemory_DocumentRoundTrip(t *testing.T) {
	m := NewMemory()

	if _, ok, _ := m.GetDocument("s1"); ok {
		t.Fatal("GetDocument on empty store returned ok")
	}

	m.PutDocument("s1", "first version")
	m.PutDocument("s1", "second version")

	text, ok, err := m.GetDocument("s1")
	if err != nil || !ok {
		t.Fatalf("GetDocument: ok=%v err=%v", ok, err)
	}
	if text != "second version" {
		t.Errorf("text = %q, want second version (full replace)", text)
	}

	if err := m.DeleteDocument("s1"); err != nil {
		t.Fatalf("DeleteDocument: %v", err)
	}
	if _, ok, _ := m.GetDocument("s1"); ok {
		t.Error("document present after delete")
	}

	// Deleting a missing document is not an error.
	if err := m.DeleteDocument("nope"); err != nil {
		t.Errorf("DeleteDocument on missing session: %v", err)
	}
}

func TestMemory_ConversationRoundTrip(t *testing.T) {
	m := NewMemory()

	turns := []Turn{
		{Role: RoleSystem, Content: "directive"},
		{Role: RoleUser, Content: "hello"},
	}
	if err := m.PutConversation("s1", turns); err != nil {
		t.Fatalf("PutConversation: %v", err)
	}

	// Mutating the input slice after Put must not affect the store.
	turns[1].Content = "mutated"

	got, ok, err := m.GetConversation("s1")
	if err != nil || !ok {
		t.Fatalf("GetConversation: ok=%v err=%v", ok, err)
	}
	if got[1].Content != "hello" {
		t.Errorf("stored turn = %q, want hello", got[1].Content)
	}
}

func TestMemory_SessionsIndependent(t *testing.T) {
	m := NewMemory()

	m.PutProfile("a", profile.Business{Location: "Pune"})
	m.PutDocument("a", "doc for a")

	if _, ok, _ := m.GetProfile("b"); ok {
		t.Error("profile leaked across sessions")
	}
	if _, ok, _ := m.GetDocument("b"); ok {
		t.Error("document leaked across sessions")
	}
}

func TestLocker_SerializesPerSession(t *testing.T) {
	l := NewLocker()

	var counter int
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := l.Lock("same")
			defer unlock()
			counter++
		}()
	}
	wg.Wait()

	if counter != 50 {
		t.Errorf("counter = %d, want 50", counter)
	}
}

func TestLocker_DistinctSessionsDoNotBlock(t *testing.T) {
	l := NewLocker()

	unlockA := l.Lock("a")
	defer unlockA()

	done := make(chan struct{})
	go func() {
		unlockB := l.Lock("b")
		unlockB()
		close(done)
	}()

	<-done
}
