// Package testutil provides configurable test fakes for brewmap interfaces.
package testutil

import (
	"context"
	"sync/atomic"

	brewmap "github.com/brewmap/brewmap/internal"
)

// FakeTransport is a configurable app.Transport for testing.
type FakeTransport struct {
	TransportName string
	QueryFn       func(ctx context.Context, b brewmap.Bounds) ([]brewmap.Element, error)

	calls atomic.Int64
}

// Name returns the configured mirror name.
func (f *FakeTransport) Name() string { return f.TransportName }

// Query delegates to QueryFn or returns an empty element list.
func (f *FakeTransport) Query(ctx context.Context, b brewmap.Bounds) ([]brewmap.Element, error) {
	f.calls.Add(1)
	if f.QueryFn != nil {
		return f.QueryFn(ctx, b)
	}
	return nil, nil
}

// Calls reports how many times Query was invoked.
func (f *FakeTransport) Calls() int { return int(f.calls.Load()) }

// BlockingTransport is a Transport whose Query blocks until released. It is
// used to hold a fetch in flight while a second query supersedes it.
type BlockingTransport struct {
	TransportName string
	Elements      []brewmap.Element
	IgnoreCancel  bool // when set, Query keeps waiting for Release after ctx is done

	Started chan struct{} // one send per Query call, once the call is entered
	Release chan struct{} // Query returns when this receives or closes
}

// NewBlockingTransport returns a BlockingTransport that will serve elements
// once released.
func NewBlockingTransport(name string, elements []brewmap.Element) *BlockingTransport {
	return &BlockingTransport{
		TransportName: name,
		Elements:      elements,
		Started:       make(chan struct{}, 4),
		Release:       make(chan struct{}),
	}
}

// Name returns the configured mirror name.
func (f *BlockingTransport) Name() string { return f.TransportName }

// Query signals Started, then blocks until Release fires or ctx is done.
func (f *BlockingTransport) Query(ctx context.Context, _ brewmap.Bounds) ([]brewmap.Element, error) {
	f.Started <- struct{}{}
	if f.IgnoreCancel {
		<-f.Release
		return f.Elements, nil
	}
	select {
	case <-f.Release:
		return f.Elements, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Node returns a node element with direct coordinates, for building fixtures.
func Node(id int64, lat, lon float64, tags map[string]string) brewmap.Element {
	return brewmap.Element{Kind: "node", ID: id, Lat: &lat, Lon: &lon, Tags: tags}
}

// Way returns a way element with a center coordinate, for building fixtures.
func Way(id int64, lat, lon float64, tags map[string]string) brewmap.Element {
	return brewmap.Element{Kind: "way", ID: id, Center: &brewmap.Center{Lat: lat, Lon: lon}, Tags: tags}
}
