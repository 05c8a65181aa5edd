// Package monitor owns the two periodic tasks of a control panel session:
// the run status poller and the backend health monitor.
//
// Both are explicit lifecycle objects. Nothing polls until Start is called,
// and Stop/Close cancel the timer goroutine and wait for it to exit, so no
// request is issued after they return. The two schedules are independent and
// uncoordinated.
//
// StatusPoller has two states. Idle has no timer. Polling issues GET /status
// every interval and replaces the cached RunStatus wholesale. A not-found
// response means no run is active: the cache is cleared and the poller drops
// back to Idle without reporting an error. Any other failure is recorded as
// LastError and polling continues.
//
// HealthMonitor probes /health and / concurrently on start and every
// interval. It begins in checking and settles on healthy or unhealthy after
// the first probe, never returning to checking.
package monitor
