package apmhttp

import (
	"net/http"
	"time"

	"github.com/gt-tallinn/node-client/domain"
)

// Transport is an http.RoundTripper that measures requests and records them.
type Transport struct {
	// Base is the underlying RoundTripper to execute the request.
	// If nil, http.DefaultTransport is used.
	Base http.RoundTripper

	store domain.StoreWriter
}

// RoundTrip executes a single HTTP transaction, returning a Response for the request `req`.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()

	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}

	resp, err := base.RoundTrip(req)
	duration := time.Since(start)

	if err != nil {
		t.store.AddTransportError(duration)
		return nil, err
	}

	t.store.AddDeliveryRequest(duration, resp.StatusCode)
	return resp, nil
}

// NewAPMTransport creates a new Transport with the given store.
func NewAPMTransport(base http.RoundTripper, store domain.StoreWriter) *Transport {
	return &Transport{
		Base:  base,
		store: store,
	}
}

// NewClient returns a copy of base whose transport records into store.
// The base client is not modified.
func NewClient(base *http.Client, store domain.StoreWriter) *http.Client {
	client := &http.Client{}
	if base != nil {
		*client = *base
	}

	baseTransport := client.Transport
	if baseTransport == nil {
		baseTransport = http.DefaultTransport
	}
	client.Transport = NewAPMTransport(baseTransport, store)
	return client
}
