/*
Package weft is an event-driven orchestration engine. It consumes events
from a queue, matches them against declarative patterns, and advances
per-conversation state machines called threds, dispatching addressed
messages to participants along the way.

# Concept

A pattern is an ordered list of reactions, each guarded by a condition
over the inbound event and the values captured so far. When the current
reaction's condition matches, the thred commits a transition: it may
publish a transformed message to resolved recipients, move to another
reaction (or terminate), and optionally feed the next reaction an input
without waiting for a new event. Conditions compose with and/or;
partially satisfied and-conditions persist across events, so a reaction
can wait for several independent events in any order.

Events for one thred are strictly serialized; different threds proceed
in parallel. Reactions can carry an expiry, transitioning automatically
when no matching event arrives in time.

# Usage

	package main

	import (
		"context"
		"log"

		"github.com/weftworks/weft"
		"github.com/weftworks/weft/pkg/adapters/file"
	)

	func main() {
		ctx := context.Background()
		eng, err := weft.New(ctx,
			weft.WithPatternLoader(file.NewLoader("./patterns")),
		)
		if err != nil {
			log.Fatal(err)
		}
		if err := eng.Run(ctx); err != nil {
			log.Fatal(err)
		}
	}

The zero-configuration engine runs fully in process with an in-memory
queue and store. Production deployments swap in the redis adapters for
durable streams, persistence and cross-replica locking.
*/
package weft
