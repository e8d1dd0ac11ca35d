// Package ports defines the collaborator interfaces the weft core
// depends on: queue transport, durable storage, address resolution and
// expression evaluation. Adapters live under pkg/adapters; the engine
// itself never talks to a broker or a store directly.
package ports
