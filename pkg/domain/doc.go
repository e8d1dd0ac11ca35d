// Package domain contains the pure data model of the weft engine:
// patterns, reactions, conditions, transitions, events, messages and
// the per-conversation thred record. It has no dependencies on the
// runtime or on any adapter and is safe to embed in wire payloads.
package domain
