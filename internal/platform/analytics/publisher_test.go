package analytics

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type fakeJS struct {
	mu       sync.Mutex
	subjects []string
	payloads [][]byte
	err      error
}

func (f *fakeJS) PublishAsync(subj string, data []byte, _ ...nats.PubOpt) (nats.PubAckFuture, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subjects = append(f.subjects, subj)
	f.payloads = append(f.payloads, data)
	return nil, f.err
}

func TestPublish_Envelope(t *testing.T) {
	js := &fakeJS{}
	p := New(js, nil)

	p.Publish(SubjectSearchPerformed, "search_performed", "42", map[string]any{"query": "toy"})

	if len(js.subjects) != 1 || js.subjects[0] != SubjectSearchPerformed {
		t.Fatalf("unexpected subjects %v", js.subjects)
	}
	var ev Event
	if err := json.Unmarshal(js.payloads[0], &ev); err != nil {
		t.Fatal(err)
	}
	if ev.EventID == "" || ev.EventName != "search_performed" || ev.UserID != "42" || ev.Properties["query"] != "toy" {
		t.Fatalf("unexpected event %+v", ev)
	}
}

func TestPublish_NilIsNoop(t *testing.T) {
	var p *Publisher
	p.Publish(SubjectHomeViewed, "home_viewed", "", nil)
	New(nil, nil).Publish(SubjectHomeViewed, "home_viewed", "", nil)
}

func TestPublish_FailureIsLogged(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	p := New(&fakeJS{err: errors.New("no responders")}, zap.New(core))

	p.Publish(SubjectShelfServed, "shelf_served", "", nil)

	if logs.FilterMessage("analytics: publish failed").Len() != 1 {
		t.Fatalf("expected a warning, got %v", logs.All())
	}
}
