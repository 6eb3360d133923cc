// Package manager is the ownership authority of a running railcontrol core.
//
// It owns the layout, the routing coordinator and the loco table. Inbound
// feedback (hardware.FeedbackSink) is applied to the layout and delivered to
// every loco; each loco reacts only to its own triggers. Layout and loco
// changes are queued without blocking and fanned out to observers (API
// websocket hub, MQTT state publisher, InfluxDB recorder) on one goroutine.
//
// Persistence: Load hydrates layout and locos from a storage.Repository and
// releases reservations left over from the previous run; SaveAll writes them
// back. Import applies a YAML layout seed to an empty manager.
//
// Usage:
//
//	mgr := manager.New(l, handler, repo, manager.Options{TracksToReserve: 2})
//	mgr.SetLogger(log)
//	if err := mgr.Load(ctx); err != nil { ... }
//	mgr.AddObserver(hub)
//	mgr.Start()
//	defer mgr.Close(ctx)
package manager
