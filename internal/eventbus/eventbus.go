package eventbus

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/clintjedwards/gofer-sub001/internal/models"
	"github.com/clintjedwards/gofer-sub001/internal/storage"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Duplicate events are possible.

var (
	ErrEventKindNotFound = errors.New("eventbus: event kind does not exist")
	ErrEventNotFound     = errors.New("eventbus: event could not be found")
)

// Subscription is a representation of a new Subscription to a certain topic.
type Subscription struct {
	id     string
	kind   models.EventKind
	Events chan models.Event
}

func newSubscriber(kind models.EventKind, channel chan models.Event) Subscription {
	id, err := uuid.NewV7()
	if err != nil {
		log.Error().Err(err).Msg("could not generate subscription id")
	}

	return Subscription{
		id:     id.String(),
		kind:   kind,
		Events: channel,
	}
}

// EventBus is a central handler for all things related to events within the application. Run
// state transitions publish here so subscribers, such as the Run Shepherd driving a given run or
// recovery on restart, can react without polling storage.
type EventBus struct {
	mu sync.Mutex // lock for concurrency safety.

	storage     storage.DB
	retention   time.Duration
	subscribers map[models.EventKind][]Subscription // channel tracking per subscriber
}

// eventKindAny is a pseudo-kind every subscriber of "all events" listens on.
const eventKindAny models.EventKind = "ANY"

var allEventKinds = []models.EventKind{
	models.EventKindQueuedRun,
	models.EventKindStartedRun,
	models.EventKindCompletedRun,
	models.EventKindStartedRunCancellation,
	models.EventKindStartedTaskExecution,
	models.EventKindCompletedTaskExecution,
	models.EventKindStartedTaskExecutionCancellation,
}

// New creates a new instance of the eventbus and starts its background pruning loop.
func New(storage storage.DB, retention time.Duration, pruneInterval time.Duration) (*EventBus, error) {
	eb := &EventBus{
		storage:     storage,
		retention:   retention,
		subscribers: map[models.EventKind][]Subscription{},
	}

	for _, kind := range allEventKinds {
		eb.subscribers[kind] = []Subscription{}
	}
	eb.subscribers[eventKindAny] = []Subscription{}

	go func() {
		for {
			eb.pruneEvents()
			time.Sleep(pruneInterval)
		}
	}()

	return eb, nil
}

// Subscribe returns a channel in which the caller can listen for all events of a particular kind.
func (eb *EventBus) Subscribe(kind models.EventKind) (Subscription, error) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	listeners, exists := eb.subscribers[kind]
	if !exists {
		return Subscription{}, fmt.Errorf("event kind %q not found: %w", kind, ErrEventKindNotFound)
	}

	newSub := newSubscriber(kind, make(chan models.Event, 10))

	listeners = append(listeners, newSub)
	eb.subscribers[kind] = listeners

	return newSub, nil
}

// SubscribeAll returns a channel that receives every event published regardless of kind.
// Recovery uses this at startup to rebuild in-memory run and task execution state.
func (eb *EventBus) SubscribeAll() Subscription {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	newSub := newSubscriber(eventKindAny, make(chan models.Event, 10))
	eb.subscribers[eventKindAny] = append(eb.subscribers[eventKindAny], newSub)

	return newSub
}

func (eb *EventBus) Unsubscribe(sub Subscription) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	listeners, exists := eb.subscribers[sub.kind]
	if !exists {
		return
	}

	for index, listener := range listeners {
		if listener.id != sub.id {
			continue
		}

		listeners[index] = listeners[len(listeners)-1]
		listeners = listeners[:len(listeners)-1]
		break
	}

	eb.subscribers[sub.kind] = listeners
}

// Publish mints a UUIDv7 for the event, persists it, and delivers it to every matching
// subscriber. Might block until it can publish to all listeners.
func (eb *EventBus) Publish(details models.EventDetails) models.Event {
	id, err := uuid.NewV7()
	if err != nil {
		log.Error().Err(err).Msg("could not generate event id")
	}

	event := models.Event{
		ID:      id.String(),
		Kind:    details.Kind(),
		Details: details,
		Emitted: time.Now().UnixMilli(),
	}

	err = eb.storage.InsertEvent(eb.storage, event.ToStorage())
	if err != nil {
		log.Error().Err(err).Msg("could not add event to storage")
	}

	eb.mu.Lock()
	defer eb.mu.Unlock()

	listeners, exists := eb.subscribers[event.Kind]
	if !exists {
		log.Error().Err(ErrEventKindNotFound).Msgf("event kind %q not found; this usually means an event kind is missing from allEventKinds", event.Kind)
		return event
	}

	anyListeners := eb.subscribers[eventKindAny]

	// It is naive to think that we can use go-routines to avoid blocking here.
	// Doing so leads to races where an event published after might actually be published before
	// another, due to goroutine scheduling.
	for _, anyListener := range anyListeners {
		anyListener.Events <- event
	}

	for _, subscription := range listeners {
		subscription.Events <- event
	}

	log.Debug().Str("id", event.ID).Str("kind", string(event.Kind)).Msg("new event published")

	return event
}

// GetAll returns all events. Returns events from oldest to newest unless reverse is set.
func (eb *EventBus) GetAll(reverse bool) <-chan models.Event {
	out := make(chan models.Event, 10)

	go func() {
		offset := 0

		for {
			eventList, err := eb.storage.ListEvents(eb.storage, offset, 10, reverse)
			if err != nil {
				log.Error().Err(err).Msg("could not get events")
				close(out)
				return
			}

			if len(eventList) == 0 {
				close(out)
				return
			}

			for _, rawEvent := range eventList {
				out <- models.EventFromStorage(&rawEvent)
			}

			offset += 10
		}
	}()

	return out
}

// Since replays every event with an ID greater than after, in publish order. Recovery seeds
// after with the last run's EventID to rebuild in-memory run state on startup.
func (eb *EventBus) Since(after string, limit int) ([]models.Event, error) {
	rawEvents, err := eb.storage.ListEventsSince(eb.storage, after, limit)
	if err != nil {
		return nil, err
	}

	out := make([]models.Event, 0, len(rawEvents))
	for _, rawEvent := range rawEvents {
		out = append(out, models.EventFromStorage(&rawEvent))
	}

	return out, nil
}

// Get returns a single event by id. Returns eventbus.ErrEventNotFound if the event could not be located.
func (eb *EventBus) Get(id string) (models.Event, error) {
	rawEvent, err := eb.storage.GetEvent(eb.storage, id)
	if err != nil {
		if errors.Is(err, storage.ErrEntityNotFound) {
			return models.Event{}, ErrEventNotFound
		}
		return models.Event{}, err
	}

	return models.EventFromStorage(&rawEvent), nil
}

func (eb *EventBus) pruneEvents() {
	offset := 0
	totalPruned := 0

	for {
		eventList, err := eb.storage.ListEvents(eb.storage, offset, 50, false)
		if err != nil {
			log.Error().Err(err).Msg("could not get events from storage")
			return
		}

		for _, rawEvent := range eventList {
			event := models.EventFromStorage(&rawEvent)

			if isPastCutDate(event, eb.retention) {
				log.Debug().Str("event_id", event.ID).Dur("retention", eb.retention).
					Int64("emitted", event.Emitted).
					Int64("current_time", time.Now().UnixMilli()).Msg("removed event past retention")
				totalPruned++
				err := eb.storage.DeleteEvent(eb.storage, event.ID)
				if err != nil {
					log.Error().Err(err).Msg("could not delete event")
					return
				}
				continue
			}
		}

		if len(eventList) != 50 {
			if totalPruned > 0 {
				log.Info().Dur("retention", eb.retention).Int("total", totalPruned).Msg("pruned old events")
			}
			return
		}

		offset += len(eventList)
	}
}

func isPastCutDate(event models.Event, limit time.Duration) bool {
	cut := time.Now().Add(-limit) // Even though this function says add, we're actually subtracting time.
	return event.Emitted < cut.UnixMilli()
}
