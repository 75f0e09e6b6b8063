package eventbus

import (
	"os"
	"testing"
	"time"

	"github.com/clintjedwards/gofer-sub001/internal/models"
	"github.com/clintjedwards/gofer-sub001/internal/storage"
)

func mustOpenDB(t *testing.T) storage.DB {
	t.Helper()

	path := tempfile(t)

	db, err := storage.New(path, 200)
	if err != nil {
		t.Fatal(err)
	}

	return db
}

func tempfile(t *testing.T) string {
	t.Helper()

	f, err := os.CreateTemp("", "eventbus-")
	if err != nil {
		t.Fatal(err)
	}
	name := f.Name()
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}
	if err := os.Remove(name); err != nil {
		t.Fatal(err)
	}

	t.Cleanup(func() {
		os.Remove(name)
		os.Remove(name + "-wal")
		os.Remove(name + "-shm")
	})

	return name
}

func newStartedRunEvent() *models.EventStartedRun {
	return &models.EventStartedRun{
		NamespaceID: "default",
		PipelineID:  "test_pipeline",
		RunID:       1,
	}
}

func TestPublish(t *testing.T) {
	db := mustOpenDB(t)

	eb, err := New(db, time.Second*5, time.Minute*5)
	if err != nil {
		t.Fatal(err)
	}

	published := eb.Publish(newStartedRunEvent())

	storedEvent, err := eb.Get(published.ID)
	if err != nil {
		t.Fatal(err)
	}

	if storedEvent.ID != published.ID {
		t.Errorf("published event id and stored event id do not match; published %s; stored %s",
			published.ID, storedEvent.ID)
	}
}

func TestSubscribe(t *testing.T) {
	db := mustOpenDB(t)

	eb, err := New(db, time.Minute*5, time.Minute*5)
	if err != nil {
		t.Fatal(err)
	}

	sub, err := eb.Subscribe(models.EventKindStartedRun)
	if err != nil {
		t.Fatal(err)
	}

	eb.Publish(newStartedRunEvent())
	eb.Publish(newStartedRunEvent())
	thirdEvent := eb.Publish(newStartedRunEvent())

	<-sub.Events
	<-sub.Events
	three := <-sub.Events
	if three.ID != thirdEvent.ID {
		t.Errorf("published event id and received event id do not match; published %s; received %s",
			thirdEvent.ID, three.ID)
	}
}

func TestSubscribeAll(t *testing.T) {
	db := mustOpenDB(t)

	eb, err := New(db, time.Minute*5, time.Minute*5)
	if err != nil {
		t.Fatal(err)
	}

	sub := eb.SubscribeAll()

	published := eb.Publish(newStartedRunEvent())

	received := <-sub.Events
	if received.ID != published.ID {
		t.Errorf("published event id and received event id do not match; published %s; received %s",
			published.ID, received.ID)
	}
}

func TestGetAll(t *testing.T) {
	db := mustOpenDB(t)

	eb, err := New(db, time.Second*5, time.Minute*5)
	if err != nil {
		t.Fatal(err)
	}

	var published []models.Event
	for i := 0; i < 5; i++ {
		published = append(published, eb.Publish(newStartedRunEvent()))
	}

	events := eb.GetAll(false)
	for i := 0; i < 3; i++ {
		event := <-events
		if event.ID != published[i].ID {
			t.Errorf("published event id and stored event id do not match; published %s; stored %s",
				published[i].ID, event.ID)
		}
	}
}

func TestGetAllReverse(t *testing.T) {
	db := mustOpenDB(t)

	eb, err := New(db, time.Second*5, time.Minute*5)
	if err != nil {
		t.Fatal(err)
	}

	var published []models.Event
	for i := 0; i < 5; i++ {
		published = append(published, eb.Publish(newStartedRunEvent()))
	}

	events := eb.GetAll(true)
	for i := 4; i >= 2; i-- {
		event := <-events
		if event.ID != published[i].ID {
			t.Errorf("published event id and stored event id do not match; published %s; stored %s",
				published[i].ID, event.ID)
		}
	}
}

func TestSince(t *testing.T) {
	db := mustOpenDB(t)

	eb, err := New(db, time.Second*5, time.Minute*5)
	if err != nil {
		t.Fatal(err)
	}

	first := eb.Publish(newStartedRunEvent())
	second := eb.Publish(newStartedRunEvent())
	third := eb.Publish(newStartedRunEvent())

	replayed, err := eb.Since(first.ID, 0)
	if err != nil {
		t.Fatal(err)
	}

	if len(replayed) != 2 {
		t.Fatalf("expected 2 events after cursor, got %d", len(replayed))
	}

	if replayed[0].ID != second.ID || replayed[1].ID != third.ID {
		t.Errorf("events replayed out of order: got %s, %s", replayed[0].ID, replayed[1].ID)
	}
}

func TestPruneEvents(t *testing.T) {
	db := mustOpenDB(t)

	eb, err := New(db, time.Millisecond*1, time.Minute*5)
	if err != nil {
		t.Fatal(err)
	}

	firstEvent := eb.Publish(newStartedRunEvent())
	eb.Publish(newStartedRunEvent())
	eb.Publish(newStartedRunEvent())

	time.Sleep(time.Millisecond * 10)

	eb.pruneEvents()

	fourthEvent := eb.Publish(newStartedRunEvent())

	storedEvent, err := eb.Get(fourthEvent.ID)
	if err != nil {
		t.Fatal(err)
	}

	if storedEvent.ID != fourthEvent.ID {
		t.Errorf("published event id and stored event id do not match; published %s; stored %s",
			fourthEvent.ID, storedEvent.ID)
	}

	_, err = eb.Get(firstEvent.ID)
	if err != ErrEventNotFound {
		t.Errorf("expected first event to have been pruned; got err %v", err)
	}
}
