// Package metricsx provides the VictoriaMetrics-backed counters shared by
// pkg/ppspp/conn's Endpoint and Connector, plus the generic labeled-name
// helpers adapted from the teacher's pkg/metricsx (its geohash-specific
// counters have no equivalent in this domain and were not carried over).
package metricsx

import (
	"strings"

	"github.com/VictoriaMetrics/metrics"
)

// SplitName splits a VictoriaMetrics-style metric name into its base and
// label-set ("name", `label="value",...`), the way metrics.Set parses a
// registered name internally.
func SplitName(name string) (base, arg string) {
	if n := len(name); n != 0 {
		base = name
		for i, r := range base {
			if r == '{' {
				if j := len(base) - 1; j > i && base[j] == '}' {
					base, arg = base[:i], base[i+1:j]
					break
				}
			}
		}
	}
	return
}

// FormatName builds a VictoriaMetrics-style labeled metric name
// (`name{label="value",...}`) from a base name, an optional pre-formatted
// label fragment, and additional key/value pairs.
func FormatName(base, arg string, args ...string) string {
	var b strings.Builder
	b.WriteString(base)
	b.WriteByte('{')
	if arg != "" {
		b.WriteString(arg)
	}
	for i := 1; i < len(args); i += 2 {
		if arg != "" || i > 1 {
			b.WriteByte(',')
		}
		b.WriteString(args[i-1])
		b.WriteString("=\"")
		b.WriteString(args[i])
		b.WriteByte('"')
	}
	b.WriteByte('}')
	return b.String()
}

// Endpoint tracks per-endpoint traffic counters. Grounded on the
// apiMetrics struct in pkg/api/api0/metrics.go: a *metrics.Set owning a
// handful of named *metrics.Counter fields, registered once at
// construction rather than through the global default set.
type Endpoint struct {
	set *metrics.Set

	RxDatagrams *metrics.Counter
	RxBytes     *metrics.Counter
	TxDatagrams *metrics.Counter
	TxBytes     *metrics.Counter
	Dropped     *metrics.Counter // recv queue full (bounded endpoints only)
}

// NewEndpoint builds an Endpoint's counters. set may be nil, in which case
// an unregistered Set is created so the counters are always safe to use
// but invisible to WritePrometheus on the process's default registry.
func NewEndpoint(set *metrics.Set) *Endpoint {
	if set == nil {
		set = metrics.NewSet()
	}
	return &Endpoint{
		set:         set,
		RxDatagrams: set.NewCounter("ppspp_endpoint_rx_datagrams_total"),
		RxBytes:     set.NewCounter("ppspp_endpoint_rx_bytes_total"),
		TxDatagrams: set.NewCounter("ppspp_endpoint_tx_datagrams_total"),
		TxBytes:     set.NewCounter("ppspp_endpoint_tx_bytes_total"),
		Dropped:     set.NewCounter("ppspp_endpoint_rx_dropped_total"),
	}
}

// Connector tracks pool/acquisition activity across every Key a Connector
// has handled.
type Connector struct {
	set *metrics.Set

	PoolHits      *metrics.Counter // acquisition satisfied from the pool
	PoolMisses    *metrics.Counter // acquisition required create_endpoint
	ConnectTime   *metrics.Histogram
	Timeouts      *metrics.Counter
	TransportFail *metrics.Counter
	Leaks         *metrics.Counter // unclosed Connections caught by the finalizer
}

// NewConnector builds a Connector's counters. set may be nil; see
// NewEndpoint.
func NewConnector(set *metrics.Set) *Connector {
	if set == nil {
		set = metrics.NewSet()
	}
	return &Connector{
		set:           set,
		PoolHits:      set.NewCounter("ppspp_connector_pool_hits_total"),
		PoolMisses:    set.NewCounter("ppspp_connector_pool_misses_total"),
		ConnectTime:   set.NewHistogram("ppspp_connector_create_endpoint_seconds"),
		Timeouts:      set.NewCounter(FormatName("ppspp_connector_create_endpoint_errors_total", "", "kind", "timeout")),
		TransportFail: set.NewCounter(FormatName("ppspp_connector_create_endpoint_errors_total", "", "kind", "transport")),
		Leaks:         set.NewCounter("ppspp_connector_leaked_connections_total"),
	}
}
