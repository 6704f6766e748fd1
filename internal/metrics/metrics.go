package metrics

import (
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/kstaniek/go-sml-decoder/internal/logging"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Prometheus counters
var (
	TransportFramesDecoded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "transport_frames_decoded_total",
		Help: "Total transport frames successfully decoded from the byte stream.",
	})
	TransportBytesDiscarded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "transport_bytes_discarded_total",
		Help: "Total bytes discarded while resynchronizing on the start sequence.",
	})
	TransportCrcMismatches = promauto.NewCounter(prometheus.CounterOpts{
		Name: "transport_crc_mismatches_total",
		Help: "Total transport frames rejected for a CRC mismatch.",
	})
	MessagesDecoded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sml_messages_decoded_total",
		Help: "Total SML messages successfully decoded from a frame payload.",
	})
	MessageCrcMismatches = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sml_message_crc_mismatches_total",
		Help: "Total SML messages rejected for a message-level CRC mismatch.",
	})
	ParseErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sml_parse_errors_total",
		Help: "Parse errors by cause.",
	}, []string{"where"})
	BuildInfo = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "build_info",
		Help: "Build metadata (value is always 1).",
	}, []string{"version", "commit", "date"})

	readinessMu sync.RWMutex
	readinessFn func() bool
)

// Error label constants (stable label values to bound cardinality)
const (
	ErrTransportDecode = "transport_decode"
	ErrTransportCrc    = "transport_crc"
	ErrMessageDecode   = "message_decode"
	ErrMessageCrc      = "message_crc"
	ErrSourceRead      = "source_read"
)

// StartHTTP serves Prometheus metrics at /metrics and the readiness probe at
// /ready on a new mux, listening on addr from its own goroutine.
func StartHTTP(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		if IsReady() {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ready\n"))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("not ready\n"))
	})

	srv := &http.Server{
		Addr:    addr,
		Handler: mux,
	}
	go func() {
		logging.L().Info("metrics_listen", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.L().Error("metrics_http_error", "error", err)
		}
	}()
	return srv
}

// Local mirrored counters for easy logging (avoid Prometheus scraping in-process)
var (
	localFramesDecoded   uint64
	localBytesDiscarded  uint64
	localTransportCrcErr uint64
	localMessagesDecoded uint64
	localMessageCrcErr   uint64
	localParseErrors     uint64
)

// Snapshot is a cheap copy of local counters.
type Snapshot struct {
	FramesDecoded       uint64
	BytesDiscarded      uint64
	TransportCrcErrors  uint64
	MessagesDecoded     uint64
	MessageCrcErrors    uint64
	ParseErrors         uint64 // sum across error labels
}

func Snap() Snapshot {
	return Snapshot{
		FramesDecoded:      atomic.LoadUint64(&localFramesDecoded),
		BytesDiscarded:     atomic.LoadUint64(&localBytesDiscarded),
		TransportCrcErrors: atomic.LoadUint64(&localTransportCrcErr),
		MessagesDecoded:    atomic.LoadUint64(&localMessagesDecoded),
		MessageCrcErrors:   atomic.LoadUint64(&localMessageCrcErr),
		ParseErrors:        atomic.LoadUint64(&localParseErrors),
	}
}

// IncFrameDecoded records one successfully decoded transport frame.
func IncFrameDecoded() {
	TransportFramesDecoded.Inc()
	atomic.AddUint64(&localFramesDecoded, 1)
}

// AddBytesDiscarded records bytes skipped while resynchronizing.
func AddBytesDiscarded(n int) {
	TransportBytesDiscarded.Add(float64(n))
	atomic.AddUint64(&localBytesDiscarded, uint64(n))
}

// IncTransportCrcMismatch records a transport-level CRC failure.
func IncTransportCrcMismatch() {
	TransportCrcMismatches.Inc()
	atomic.AddUint64(&localTransportCrcErr, 1)
}

// IncMessageDecoded records one successfully decoded SML message.
func IncMessageDecoded() {
	MessagesDecoded.Inc()
	atomic.AddUint64(&localMessagesDecoded, 1)
}

// IncMessageCrcMismatch records a message-level CRC failure.
func IncMessageCrcMismatch() {
	MessageCrcMismatches.Inc()
	atomic.AddUint64(&localMessageCrcErr, 1)
}

// IncParseError records a parse failure under label.
func IncParseError(label string) {
	ParseErrors.WithLabelValues(label).Inc()
	atomic.AddUint64(&localParseErrors, 1)
}

// InitBuildInfo sets the build info gauge (should be called once at startup).
func InitBuildInfo(version, commit, date string) {
	BuildInfo.WithLabelValues(version, commit, date).Set(1)
	// Pre-register common error label series so first error does not log a registration latency.
	for _, lbl := range []string{
		ErrTransportDecode, ErrTransportCrc, ErrMessageDecode, ErrMessageCrc, ErrSourceRead,
	} {
		ParseErrors.WithLabelValues(lbl).Add(0)
	}
}

// SetReadinessFunc registers a function used by /ready and IsReady.
func SetReadinessFunc(fn func() bool) { readinessMu.Lock(); readinessFn = fn; readinessMu.Unlock() }

// IsReady invokes the registered readiness function if present.
func IsReady() bool {
	readinessMu.RLock()
	fn := readinessFn
	readinessMu.RUnlock()
	if fn == nil { // if not set yet, treat as ready so metrics endpoint doesn't flap
		return true
	}
	return fn()
}

// Ready is a concise alias used at call sites.
func Ready() bool { return IsReady() }
