package telemetry

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds every Prometheus collector the core exports: a grouped
// struct of promauto-registered collectors built once and shared.
type Metrics struct {
	SlotsInUse       *prometheus.GaugeVec
	AllocFailures    *prometheus.CounterVec
	SegmentGrows     *prometheus.CounterVec
	SendsTotal       *prometheus.CounterVec
	Backpressured    *prometheus.CounterVec
	OverflowDrops    *prometheus.CounterVec
	DeadNodesReaped  prometheus.Counter
	WaitSetWakeups   *prometheus.CounterVec
	PortsActive      *prometheus.GaugeVec
}

var (
	metricsOnce sync.Once
	metrics     *Metrics
)

// M returns the process-wide Metrics, registering collectors on first
// call (initialise-once, matching Logger's contract).
func M() *Metrics {
	metricsOnce.Do(func() {
		metrics = &Metrics{
			SlotsInUse: promauto.NewGaugeVec(prometheus.GaugeOpts{
				Name: "iceoryx2_allocator_slots_in_use",
				Help: "Slots currently loaned from a data segment, by port id.",
			}, []string{"port_id"}),
			AllocFailures: promauto.NewCounterVec(prometheus.CounterOpts{
				Name: "iceoryx2_allocator_alloc_failures_total",
				Help: "Loan attempts that failed with OutOfMemory or ExceedsMaxSliceLen.",
			}, []string{"port_id", "reason"}),
			SegmentGrows: promauto.NewCounterVec(prometheus.CounterOpts{
				Name: "iceoryx2_allocator_segment_grows_total",
				Help: "Segment growth events under a PowerOfTwo/BestFit strategy.",
			}, []string{"port_id"}),
			SendsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
				Name: "iceoryx2_publisher_sends_total",
				Help: "Samples successfully sent by a publisher.",
			}, []string{"service_id"}),
			Backpressured: promauto.NewCounterVec(prometheus.CounterOpts{
				Name: "iceoryx2_publisher_backpressured_total",
				Help: "Sends rejected with Backpressured under overflow=false.",
			}, []string{"service_id"}),
			OverflowDrops: promauto.NewCounterVec(prometheus.CounterOpts{
				Name: "iceoryx2_publisher_overflow_drops_total",
				Help: "Oldest-descriptor drops under overflow=true.",
			}, []string{"service_id"}),
			DeadNodesReaped: promauto.NewCounter(prometheus.CounterOpts{
				Name: "iceoryx2_registry_dead_nodes_reaped_total",
				Help: "Nodes whose lock acquisition succeeded during a reaper pass.",
			}),
			WaitSetWakeups: promauto.NewCounterVec(prometheus.CounterOpts{
				Name: "iceoryx2_waitset_wakeups_total",
				Help: "WaitSet callback invocations, by attachment kind.",
			}, []string{"kind"}),
			PortsActive: promauto.NewGaugeVec(prometheus.GaugeOpts{
				Name: "iceoryx2_ports_active",
				Help: "Ports currently in the Active lifecycle state, by pattern kind.",
			}, []string{"kind"}),
		}
	})
	return metrics
}
