// Package datastore implements a Modbus register table served over Modbus/TCP.
//
// A Store holds the four tables of the Modbus data model: coils, discrete inputs, holding
// registers and input registers. Each table is split into fixed-size blocks guarded by
// their own lock, so requests on distinct address ranges proceed in parallel while a
// request touching several blocks sees and leaves them in a consistent state.
//
// Store implements server.Service. Clients may read every table and write coils and holding
// registers; application code updates discrete inputs and input registers through the
// setters:
//
//	store, _ := datastore.New(datastore.Config{InputRegisters: 16})
//	_ = store.SetInputRegisters(0, 0x33)
//
//	srv.Serve(ctx, datastore.NewFactory(store))
package datastore
