package node_client

import "context"

// Delivery is the asynchronous outcome of submitting one measurement to the
// explorer. Callers that do not care about delivery may ignore it.
type Delivery struct {
	done chan struct{}
	err  error
}

func newDelivery() *Delivery {
	return &Delivery{done: make(chan struct{})}
}

// resolve must be called exactly once.
func (d *Delivery) resolve(err error) {
	d.err = err
	close(d.done)
}

// Done is closed once the delivery has succeeded or failed.
func (d *Delivery) Done() <-chan struct{} {
	return d.done
}

// Err returns the delivery error after Done is closed, nil before.
func (d *Delivery) Err() error {
	select {
	case <-d.done:
		return d.err
	default:
		return nil
	}
}

// Wait blocks until the delivery settles or ctx ends. A ctx error only means
// the caller stopped waiting; the delivery itself keeps going.
func (d *Delivery) Wait(ctx context.Context) error {
	select {
	case <-d.done:
		return d.err
	case <-ctx.Done():
		return ctx.Err()
	}
}
