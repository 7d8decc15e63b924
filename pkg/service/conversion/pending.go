package conversion

import "context"

// Pending is the outcome of a rate load that may still be running.
type Pending struct {
	done chan struct{}
	view View
	err  error
}

func newPending() *Pending {
	return &Pending{done: make(chan struct{})}
}

func resolved(view View, err error) *Pending {
	p := newPending()
	p.resolve(view, err)
	return p
}

func (p *Pending) resolve(view View, err error) {
	p.view = view
	p.err = err
	close(p.done)
}

// Done is closed once the load has finished or was superseded.
func (p *Pending) Done() <-chan struct{} { return p.done }

// Wait blocks until the load finishes or ctx ends. The view reflects the
// session right after the load was applied.
func (p *Pending) Wait(ctx context.Context) (View, error) {
	select {
	case <-p.done:
		return p.view, p.err
	case <-ctx.Done():
		return View{}, ctx.Err()
	}
}
