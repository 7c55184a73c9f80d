// Package queue implements the per-destination execution queues used by the
// crawler scheduler.
//
// A Queue runs at most MaxConcurrency tasks at once. Tasks scheduled while the
// queue is full are held in FIFO order until a running task finishes; they are
// never rejected. Every task waits for a randomized startup delay, and
// optionally a token bucket, before it runs, and a task whose context is done
// by the time it is granted a slot is discarded without running.
//
// A Router maps hosts to queues through the ordered QueueTable from the config
// package. Hosts matching the same rule share the rule's queue; hosts matching
// no rule share a single unbounded queue.
package queue
