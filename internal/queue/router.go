package queue

import (
	"sync"

	"github.com/nao1215/actocrawler/config"
)

// DefaultKey identifies the shared unbounded queue.
const DefaultKey = ""

// Router resolves hosts to queues. Queues are created lazily on first use
// and live as long as the Router.
type Router struct {
	table    config.QueueTable
	fallback *Queue

	mu     sync.Mutex
	queues map[string]*Queue
}

// NewRouter creates a Router for table.
func NewRouter(table config.QueueTable) *Router {
	return &Router{
		table:    table,
		fallback: Unbounded(),
		queues:   make(map[string]*Queue),
	}
}

// Resolve returns the rule governing host. The boolean is false when the
// default rule applies, including for an empty host.
func (r *Router) Resolve(host string) (config.QueueRule, bool) {
	if host == "" {
		return config.QueueRule{}, false
	}
	return r.table.Lookup(host)
}

// QueueFor returns the queue for host, creating it if needed.
func (r *Router) QueueFor(host string) *Queue {
	rule, ok := r.Resolve(host)
	if !ok {
		return r.fallback
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	q, ok := r.queues[rule.Pattern]
	if !ok {
		q = New(rule.Pattern, rule)
		r.queues[rule.Pattern] = q
	}
	return q
}

// Len returns the number of rule queues created so far, excluding the default queue.
func (r *Router) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.queues)
}
