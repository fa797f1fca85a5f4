package eventhorizon

import "sync"

// Callback receives a subscription response.
type Callback func(Response)

// Responses fans subscription responses out to callbacks. Filtered views
// see the subset of responses matching their predicate and all of their
// ancestors'. Callbacks run synchronously in publish order.
type Responses struct {
	match func(Response) bool

	mu        sync.RWMutex
	succeeded []Callback
	failed    []Callback
	completed []Callback
	children  []*Responses
}

func NewResponses() *Responses { return &Responses{} }

// Filter returns a view of r that only sees responses matching pred.
func (r *Responses) Filter(pred func(Response) bool) *Responses {
	child := &Responses{match: pred}
	r.mu.Lock()
	r.children = append(r.children, child)
	r.mu.Unlock()
	return child
}

// OnSuccess registers fn for responses without a failure.
func (r *Responses) OnSuccess(fn Callback) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.succeeded = append(r.succeeded, fn)
}

// OnFailure registers fn for responses carrying a failure.
func (r *Responses) OnFailure(fn Callback) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failed = append(r.failed, fn)
}

// OnCompleted registers fn for every response.
func (r *Responses) OnCompleted(fn Callback) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.completed = append(r.completed, fn)
}

// Publish delivers res to r and its matching views.
func (r *Responses) Publish(res Response) {
	if r.match != nil && !r.match(res) {
		return
	}

	r.mu.RLock()
	var callbacks []Callback
	if res.Succeeded() {
		callbacks = append(callbacks, r.succeeded...)
	} else {
		callbacks = append(callbacks, r.failed...)
	}
	callbacks = append(callbacks, r.completed...)
	children := append([]*Responses(nil), r.children...)
	r.mu.RUnlock()

	for _, fn := range callbacks {
		fn(res)
	}
	for _, c := range children {
		c.Publish(res)
	}
}
