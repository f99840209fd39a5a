package batch

import (
	"errors"

	"github.com/npillmayer/nametok"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus metrics of block decoding. A nil *Metrics
// records nothing.
type Metrics struct {
	Blocks     prometheus.Counter
	Names      prometheus.Counter
	InputBytes prometheus.Counter
	NameBytes  prometheus.Counter
	Columns    prometheus.Histogram
	Failures   *prometheus.CounterVec
}

// NewMetrics creates and registers all metrics with the provided registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	blocks := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "nametok_blocks_decoded_total",
		Help: "Total name blocks decoded",
	})

	names := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "nametok_names_decoded_total",
		Help: "Total read names decoded",
	})

	inputBytes := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "nametok_input_bytes_total",
		Help: "Total bytes of encoded name blocks read",
	})

	nameBytes := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "nametok_name_bytes_total",
		Help: "Total bytes of decoded names, NUL terminators included",
	})

	columns := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "nametok_block_columns",
		Help:    "Number of token columns per decoded block",
		Buckets: prometheus.ExponentialBuckets(1, 2, 9),
	})

	failures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "nametok_block_failures_total",
		Help: "Total name blocks which failed to decode, by reason",
	}, []string{"reason"})

	reg.MustRegister(blocks, names, inputBytes, nameBytes, columns, failures)

	return &Metrics{
		Blocks:     blocks,
		Names:      names,
		InputBytes: inputBytes,
		NameBytes:  nameBytes,
		Columns:    columns,
		Failures:   failures,
	}
}

func (m *Metrics) observe(inputSize int, b nametok.Block, err error) {
	if m == nil {
		return
	}
	m.InputBytes.Add(float64(inputSize))
	if err != nil {
		m.Failures.WithLabelValues(FailureReason(err)).Inc()
		return
	}
	m.Blocks.Inc()
	m.Names.Add(float64(b.Header.NameCount))
	m.NameBytes.Add(float64(len(b.Names)))
	m.Columns.Observe(float64(b.Columns))
}

var failureReasons = []struct {
	err    error
	reason string
}{
	{nametok.ErrBackEnd, "backend"},
	{nametok.ErrTruncatedInput, "truncated"},
	{nametok.ErrInvalidTokenKind, "token_kind"},
	{nametok.ErrInvalidReference, "reference"},
	{nametok.ErrEncoding, "encoding"},
	{nametok.ErrInvalidSize, "size"},
	{nametok.ErrUnterminated, "unterminated"},
}

// FailureReason classifies a block decoding error for metric labels.
func FailureReason(err error) string {
	for _, r := range failureReasons {
		if errors.Is(err, r.err) {
			return r.reason
		}
	}
	return "other"
}
