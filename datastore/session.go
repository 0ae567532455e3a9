package datastore

import (
	"context"
	"sync/atomic"

	"github.com/arloliu/go-modbus/modbus"
	"github.com/arloliu/go-modbus/server"
)

// Session is the Service of one connection. It serves requests from the shared Store and
// counts them.
type Session struct {
	id       uint64
	store    *Store
	requests atomic.Uint64
}

var _ server.Service = (*Session)(nil)

// ID returns the identifier of the session, unique within its Factory.
func (s *Session) ID() uint64 {
	return s.id
}

// Requests returns the number of requests served by the session.
func (s *Session) Requests() uint64 {
	return s.requests.Load()
}

// Call implements server.Service.
func (s *Session) Call(ctx context.Context, req modbus.Request) (modbus.Response, error) {
	s.requests.Add(1)
	return s.store.Call(ctx, req)
}

// Factory creates a Session per connection over a shared Store.
type Factory struct {
	store  *Store
	nextID atomic.Uint64
}

var _ server.ServiceFactory = (*Factory)(nil)

// NewFactory returns a Factory serving store.
func NewFactory(store *Store) *Factory {
	return &Factory{store: store}
}

// NewService implements server.ServiceFactory.
func (f *Factory) NewService() (server.Service, error) {
	return &Session{id: f.nextID.Add(1), store: f.store}, nil
}

// Sessions returns the number of sessions created so far.
func (f *Factory) Sessions() uint64 {
	return f.nextID.Load()
}
