package storage

import (
	"os"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestCRUDEvents(t *testing.T) {
	path := tempFile()
	db, err := New(path, 200)
	if err != nil {
		t.Fatal(err)
	}
	defer os.Remove(path)

	event := Event{
		ID:      "018f4d4a-0000-7000-8000-000000000001",
		Kind:    "QUEUED_RUN",
		Details: "{\"namespace_id\":\"default\"}",
		Emitted: 0,
	}

	err = db.InsertEvent(db, &event)
	if err != nil {
		t.Fatal(err)
	}

	events, err := db.ListEvents(db, 0, 0, false)
	if err != nil {
		t.Fatal(err)
	}

	if len(events) != 1 {
		t.Fatalf("expected 1 element in list found %d", len(events))
	}

	if diff := cmp.Diff(event, events[0]); diff != "" {
		t.Errorf("unexpected map values (-want +got):\n%s", diff)
	}

	fetched, err := db.GetEvent(db, event.ID)
	if err != nil {
		t.Fatal(err)
	}

	if diff := cmp.Diff(event, fetched); diff != "" {
		t.Errorf("unexpected map values (-want +got):\n%s", diff)
	}
}

func TestListEventsSince(t *testing.T) {
	path := tempFile()
	db, err := New(path, 200)
	if err != nil {
		t.Fatal(err)
	}
	defer os.Remove(path)

	ids := []string{
		"018f4d4a-0000-7000-8000-000000000001",
		"018f4d4a-0000-7000-8000-000000000002",
		"018f4d4a-0000-7000-8000-000000000003",
	}

	for _, id := range ids {
		err = db.InsertEvent(db, &Event{ID: id, Kind: "QUEUED_RUN", Details: "{}"})
		if err != nil {
			t.Fatal(err)
		}
	}

	since, err := db.ListEventsSince(db, ids[0], 0)
	if err != nil {
		t.Fatal(err)
	}

	if len(since) != 2 {
		t.Fatalf("expected 2 elements after cursor found %d", len(since))
	}

	if since[0].ID != ids[1] || since[1].ID != ids[2] {
		t.Errorf("expected events in publish order after cursor, got %v", since)
	}
}
