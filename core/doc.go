// Package core defines the domain contracts shared by every layer of
// agentdispatch: the Job record and its lifecycle states, the typed queue
// event stream, the collaborator interfaces (executor, transport bridge,
// durable store, intent classifier) and the error taxonomy.
//
// Keeping the contracts here and the implementations in their own packages
// (queue, orchestrator, store, transport, intent) prevents higher level
// packages from depending on concrete infrastructure; only the wiring layer
// decides which implementation to instantiate.
package core
