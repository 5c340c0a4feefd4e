/*
Package events provides an in-memory event broker for swarmctl's
run/worker lifecycle notifications.

The broker decouples the coordinator, which knows when a run or worker
transitions, from anything that wants to observe those transitions
without polling the coordination store directly. Delivery is
asynchronous and non-blocking: a slow or absent subscriber never
delays Publish.

# Architecture

	┌──────────────────── EVENT SYSTEM ─────────────────────────┐
	│                                                            │
	│  ┌────────────────────────────────────────────┐          │
	│  │              Broker                          │          │
	│  │  - eventCh: buffered intake (100)           │          │
	│  │  - subscribers: map[Subscriber]bool         │          │
	│  │  - run(): single goroutine fan-out loop     │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │           Publish / Subscribe               │          │
	│  │  Publish(event) -> eventCh -> broadcast()   │          │
	│  │  Subscribe() -> buffered channel (50)       │          │
	│  │  broadcast drops to a full subscriber       │          │
	│  │  rather than blocking the fan-out loop      │          │
	│  └────────────────────────────────────────────┘           │
	└────────────────────────────────────────────────────────┘

# Event types

	run.started         a devplan run began, or a prior run resumed
	run.completed        the scheduler reached OutcomeDone and merge ran
	run.interrupted      the scheduler stopped without completing (timeout
	                     or zero alive workers)
	worker.registered    a worker process was spawned (or respawned on
	                     resume) and its worktree is ready

These four are the only transitions the coordinator publishes. Finer
per-task and per-lock events already have a durable row in the
coordination store and a counter in pkg/metrics; the broker exists for
process-lifetime notification, not as a second source of truth for
history a caller can already query.

# Usage

The coordinator owns the broker for the lifetime of one CLI invocation:

	b := events.NewBroker()
	b.Start()
	defer b.Stop()

	b.Publish(&events.Event{Type: events.EventRunStarted, Message: runID})

A caller that wants to observe transitions subscribes and drains the
channel until it's done, then unsubscribes to release the buffer:

	sub := b.Subscribe()
	defer b.Unsubscribe(sub)
	for event := range sub {
		fmt.Println(event.Type, event.Message)
	}

# Design notes

Subscriber is an unbuffered view over a buffered channel (50 events);
a subscriber that can't keep up silently misses events rather than
stalling the broker's single fan-out goroutine. That trade-off is
fine for an optional observer of lifecycle notifications: anything
safety-critical (task completion, lock state, run status) is read
back from the coordination store, not reconstructed from the event
stream.
*/
package events
