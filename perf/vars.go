package perf

import (
	"expvar"
	"net/http"

	"github.com/encodeous/metric"
)

var (
	DispatchLatency     = metric.NewHistogram("1m1s")
	SentLinesPerSecond  = metric.NewCounter("10s1s")
	RecvLinesPerSecond  = metric.NewCounter("10s1s")
	SentBytesPerSecond  = metric.NewCounter("10s1s")
	RecvBytesPerSecond  = metric.NewCounter("10s1s")
	DroppedLines        = metric.NewCounter("1m1s")
	ForwardedPackets    = metric.NewCounter("10s1s")
	Retransmits         = metric.NewCounter("1m1s")
	ChecksumFailures    = metric.NewCounter("1m1s")
	ReliableSendLatency = metric.NewHistogram("1m1s")
	EchoRtt             = metric.NewHistogram("1m1s")
)

func init() {
	http.Handle("/debug/metrics", metric.Handler(metric.Exposed))
	expvar.Publish("wireline:SentLines/s", SentLinesPerSecond)
	expvar.Publish("wireline:RecvLines/s", RecvLinesPerSecond)
	expvar.Publish("wireline:SentBytes/s", SentBytesPerSecond)
	expvar.Publish("wireline:RecvBytes/s", RecvBytesPerSecond)
	expvar.Publish("wireline:DroppedLines", DroppedLines)
	expvar.Publish("wireline:Forwarded/s", ForwardedPackets)
	expvar.Publish("wireline:Retransmits", Retransmits)
	expvar.Publish("wireline:ChecksumFailures", ChecksumFailures)
	expvar.Publish("wireline:ReliableSendLatency (ms)", ReliableSendLatency)
	expvar.Publish("wireline:EchoRtt (ms)", EchoRtt)
	expvar.Publish("wireline:DispatchLatency (µs)", DispatchLatency)
}
