// Package ln implements a LocoNet bus driver.
//
// LocoNet is a half-duplex multi-drop serial bus without a central arbiter.
// Every member listens to its own transmission (self-echo) to detect
// collisions, and signals errors to all others by holding the line in a
// break condition.
//
// The driver is a single state machine fed with events through
// Driver.Handle. It owns five fixed-size queues:
//
//   rx accumulate -> rx delivered -> FrameHandler
//   Submit -> tx pending -> tx in-flight -> Port -> echo check
//
// Nothing blocks: each event either completes or arms the single shared
// timer and returns.
package ln
