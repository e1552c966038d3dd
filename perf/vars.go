package perf

import (
	"expvar"
	"net/http"

	"github.com/encodeous/metric"
)

var (
	DispatchLatency   = metric.NewHistogram("1m1s")
	MemOverflows      = metric.NewCounter("10s1s")
	LocalRepairs      = metric.NewCounter("10s1s")
	GlobalRepairs     = metric.NewCounter("10s1s")
	ParentSwitches    = metric.NewCounter("10s1s")
	AdvertsSent       = metric.NewCounter("10s1s")
	AdvertsReceived   = metric.NewCounter("10s1s")
	AdvertsSuppressed = metric.NewCounter("10s1s")
	RegistrationsSent = metric.NewCounter("10s1s")
	FramesDropped     = metric.NewCounter("10s1s")
)

func init() {
	http.Handle("/debug/metrics", metric.Handler(metric.Exposed))
	expvar.Publish("dodag:DispatchLatency (µs)", DispatchLatency)
	expvar.Publish("dodag:MemOverflows/s", MemOverflows)
	expvar.Publish("dodag:LocalRepairs/s", LocalRepairs)
	expvar.Publish("dodag:GlobalRepairs/s", GlobalRepairs)
	expvar.Publish("dodag:ParentSwitches/s", ParentSwitches)
	expvar.Publish("dodag:AdvertsSent/s", AdvertsSent)
	expvar.Publish("dodag:AdvertsReceived/s", AdvertsReceived)
	expvar.Publish("dodag:AdvertsSuppressed/s", AdvertsSuppressed)
	expvar.Publish("dodag:RegistrationsSent/s", RegistrationsSent)
	expvar.Publish("dodag:FramesDropped/s", FramesDropped)
}
