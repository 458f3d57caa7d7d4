package observability

import (
	"testing"
	"time"

	"github.com/timfallmk/disk-alert-daemon/internal/logging"
)

// Helper function to get the first metric from a map.
func getFirstMetric(metrics map[string]*Metric) *Metric {
	for _, m := range metrics {
		return m
	}

	return nil
}

func TestCopyLabels(t *testing.T) {
	tests := []struct {
		src  map[string]string
		want map[string]string
		name string
	}{
		{
			name: "nil map",
			src:  nil,
			want: nil,
		},
		{
			name: "empty map",
			src:  map[string]string{},
			want: nil,
		},
		{
			name: "single label",
			src:  map[string]string{"key1": "value1"},
			want: map[string]string{"key1": "value1"},
		},
		{
			name: "multiple labels",
			src:  map[string]string{"key1": "value1", "key2": "value2"},
			want: map[string]string{"key1": "value1", "key2": "value2"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := copyLabels(tt.src)

			if len(result) != len(tt.want) {
				t.Errorf("copyLabels() length = %d, want %d", len(result), len(tt.want))

				return
			}

			for k, v := range tt.want {
				if result[k] != v {
					t.Errorf("copyLabels()[%s] = %v, want %v", k, result[k], v)
				}
			}

			// Test that it's a copy, not the same map
			if len(tt.src) > 0 {
				// Modify original
				tt.src["new"] = "value"

				if result["new"] == "value" {
					t.Error("copyLabels() returned reference to original map, not a copy")
				}
			}
		})
	}
}

func TestMetric(t *testing.T) {
	timestamp := time.Now()
	labels := map[string]string{"component": "test"}

	metric := Metric{
		Name:      "test_metric",
		Type:      MetricTypeCounter,
		Value:     42.0,
		Unit:      "bytes",
		Labels:    labels,
		Timestamp: timestamp,
	}

	if metric.Name != "test_metric" {
		t.Errorf("Metric.Name = %v, want test_metric", metric.Name)
	}

	if metric.Type != MetricTypeCounter {
		t.Errorf("Metric.Type = %v, want %v", metric.Type, MetricTypeCounter)
	}

	if metric.Value != 42.0 {
		t.Errorf("Metric.Value = %v, want 42.0", metric.Value)
	}

	if metric.Unit != "bytes" {
		t.Errorf("Metric.Unit = %v, want bytes", metric.Unit)
	}

	if len(metric.Labels) != 1 || metric.Labels["component"] != "test" {
		t.Errorf("Metric.Labels = %v, want map[component:test]", metric.Labels)
	}

	if !metric.Timestamp.Equal(timestamp) {
		t.Errorf("Metric.Timestamp = %v, want %v", metric.Timestamp, timestamp)
	}
}

func TestMetricType(t *testing.T) {
	tests := []struct {
		name       string
		metricType MetricType
		want       string
	}{
		{"counter", MetricTypeCounter, "counter"},
		{"gauge", MetricTypeGauge, "gauge"},
		{"histogram", MetricTypeHistogram, "histogram"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if string(tt.metricType) != tt.want {
				t.Errorf("MetricType = %v, want %v", tt.metricType, tt.want)
			}
		})
	}
}

func TestNewMetricsCollector(t *testing.T) {
	logger, err := logging.NewLogger(logging.DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}

	collector := NewMetricsCollector(logger, time.Second)
	if collector == nil {
		t.Fatal("NewMetricsCollector() returned nil")
	}

	defer collector.Close()

	if collector.metrics == nil {
		t.Error("NewMetricsCollector() did not initialize metrics map")
	}

	if collector.ctx == nil {
		t.Error("NewMetricsCollector() did not initialize context")
	}
}

func TestMetricsCollector_IncCounter(t *testing.T) {
	logger, err := logging.NewLogger(logging.DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}

	collector := NewMetricsCollector(logger, time.Second)
	defer collector.Close()

	labels := map[string]string{"component": "test"}
	collector.IncCounter("test_counter", labels)

	metrics := collector.GetMetrics()
	if len(metrics) != 1 {
		t.Errorf("IncCounter() metrics count = %d, want 1", len(metrics))

		return
	}

	// Get the first (and only) metric from the map
	var metric *Metric
	for _, m := range metrics {
		metric = m

		break
	}

	if metric.Name != "test_counter" {
		t.Errorf("IncCounter() metric name = %v, want test_counter", metric.Name)
	}

	if metric.Type != MetricTypeCounter {
		t.Errorf("IncCounter() metric type = %v, want %v", metric.Type, MetricTypeCounter)
	}

	if metric.Value != 1.0 {
		t.Errorf("IncCounter() metric value = %v, want 1.0", metric.Value)
	}
}

func TestMetricsCollector_AddCounter(t *testing.T) {
	logger, err := logging.NewLogger(logging.DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}

	collector := NewMetricsCollector(logger, time.Second)
	defer collector.Close()

	labels := map[string]string{"component": "test"}
	collector.AddCounter("test_counter", 5.0, labels)

	metrics := collector.GetMetrics()
	if len(metrics) != 1 {
		t.Errorf("AddCounter() metrics count = %d, want 1", len(metrics))

		return
	}

	metric := getFirstMetric(metrics)
	if metric.Value != 5.0 {
		t.Errorf("AddCounter() metric value = %v, want 5.0", metric.Value)
	}

	// Add more to same counter
	collector.AddCounter("test_counter", 3.0, labels)

	metrics = collector.GetMetrics()
	if len(metrics) != 1 {
		t.Errorf("AddCounter() second call metrics count = %d, want 1", len(metrics))

		return
	}

	metric = getFirstMetric(metrics)
	if metric.Value != 8.0 {
		t.Errorf("AddCounter() cumulative value = %v, want 8.0", metric.Value)
	}
}

func TestMetricsCollector_SetGauge(t *testing.T) {
	logger, err := logging.NewLogger(logging.DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}

	collector := NewMetricsCollector(logger, time.Second)
	defer collector.Close()

	labels := map[string]string{"component": "test"}
	collector.SetGauge("test_gauge", 42.5, labels)

	metrics := collector.GetMetrics()
	if len(metrics) != 1 {
		t.Errorf("SetGauge() metrics count = %d, want 1", len(metrics))

		return
	}

	metric := getFirstMetric(metrics)
	if metric.Name != "test_gauge" {
		t.Errorf("SetGauge() metric name = %v, want test_gauge", metric.Name)
	}

	if metric.Type != MetricTypeGauge {
		t.Errorf("SetGauge() metric type = %v, want %v", metric.Type, MetricTypeGauge)
	}

	if metric.Value != 42.5 {
		t.Errorf("SetGauge() metric value = %v, want 42.5", metric.Value)
	}
}

func TestMetricsCollector_SetGaugeWithUnit(t *testing.T) {
	logger, err := logging.NewLogger(logging.DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}

	collector := NewMetricsCollector(logger, time.Second)
	defer collector.Close()

	labels := map[string]string{"component": "test"}
	collector.SetGaugeWithUnit("test_gauge", 1024.0, labels, "bytes")

	metrics := collector.GetMetrics()
	if len(metrics) != 1 {
		t.Errorf("SetGaugeWithUnit() metrics count = %d, want 1", len(metrics))

		return
	}

	metric := getFirstMetric(metrics)
	if metric.Unit != "bytes" {
		t.Errorf("SetGaugeWithUnit() metric unit = %v, want bytes", metric.Unit)
	}

	if metric.Value != 1024.0 {
		t.Errorf("SetGaugeWithUnit() metric value = %v, want 1024.0", metric.Value)
	}
}

func TestMetricsCollector_ObserveHistogram(t *testing.T) {
	logger, err := logging.NewLogger(logging.DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}

	collector := NewMetricsCollector(logger, time.Second)
	defer collector.Close()

	labels := map[string]string{"component": "test"}
	collector.ObserveHistogram("test_histogram", 0.5, labels)

	metrics := collector.GetMetrics()
	if len(metrics) != 1 {
		t.Errorf("ObserveHistogram() metrics count = %d, want 1", len(metrics))

		return
	}

	metric := getFirstMetric(metrics)
	if metric.Name != "test_histogram" {
		t.Errorf("ObserveHistogram() metric name = %v, want test_histogram", metric.Name)
	}

	if metric.Type != MetricTypeHistogram {
		t.Errorf("ObserveHistogram() metric type = %v, want %v", metric.Type, MetricTypeHistogram)
	}

	if metric.Value != 0.5 {
		t.Errorf("ObserveHistogram() metric value = %v, want 0.5", metric.Value)
	}
}

func TestMetricsCollector_RecordDuration(t *testing.T) {
	logger, err := logging.NewLogger(logging.DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}

	collector := NewMetricsCollector(logger, time.Second)
	defer collector.Close()

	duration := 250 * time.Millisecond
	labels := map[string]string{"component": "test"}
	collector.RecordDuration("test_duration", duration, labels)

	metrics := collector.GetMetrics()
	if len(metrics) != 1 {
		t.Errorf("RecordDuration() metrics count = %d, want 1", len(metrics))

		return
	}

	metric := getFirstMetric(metrics)
	if metric.Type != MetricTypeHistogram {
		t.Errorf("RecordDuration() metric type = %v, want %v", metric.Type, MetricTypeHistogram)
	}

	// Duration should be converted to seconds
	expected := duration.Seconds()
	if metric.Value != expected {
		t.Errorf("RecordDuration() metric value = %v, want %v", metric.Value, expected)
	}
}

func TestMetricsCollector_GetMetrics(t *testing.T) {
	logger, err := logging.NewLogger(logging.DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}

	collector := NewMetricsCollector(logger, time.Second)
	defer collector.Close()

	// Initially empty
	metrics := collector.GetMetrics()
	if len(metrics) != 0 {
		t.Errorf("GetMetrics() initial count = %d, want 0", len(metrics))
	}

	// Add some metrics
	labels := map[string]string{"component": "test"}
	collector.IncCounter("counter1", labels)
	collector.SetGauge("gauge1", 42.0, labels)
	collector.ObserveHistogram("histogram1", 0.5, labels)

	metrics = collector.GetMetrics()
	if len(metrics) != 3 {
		t.Errorf("GetMetrics() count after adding = %d, want 3", len(metrics))
	}
}

func TestMetricsCollector_GetMetricsByType(t *testing.T) {
	logger, err := logging.NewLogger(logging.DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}

	collector := NewMetricsCollector(logger, time.Second)
	defer collector.Close()

	labels := map[string]string{"component": "test"}
	collector.IncCounter("counter1", labels)
	collector.IncCounter("counter2", labels)
	collector.SetGauge("gauge1", 42.0, labels)
	collector.ObserveHistogram("histogram1", 0.5, labels)

	counters := collector.GetMetricsByType(MetricTypeCounter)
	if len(counters) != 2 {
		t.Errorf("GetMetricsByType(Counter) count = %d, want 2", len(counters))
	}

	gauges := collector.GetMetricsByType(MetricTypeGauge)
	if len(gauges) != 1 {
		t.Errorf("GetMetricsByType(Gauge) count = %d, want 1", len(gauges))
	}

	histograms := collector.GetMetricsByType(MetricTypeHistogram)
	if len(histograms) != 1 {
		t.Errorf("GetMetricsByType(Histogram) count = %d, want 1", len(histograms))
	}
}

func TestMetricsCollector_Reset(t *testing.T) {
	logger, err := logging.NewLogger(logging.DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}

	collector := NewMetricsCollector(logger, time.Second)
	defer collector.Close()

	labels := map[string]string{"component": "test"}
	collector.IncCounter("counter1", labels)
	collector.SetGauge("gauge1", 42.0, labels)

	metrics := collector.GetMetrics()
	if len(metrics) != 2 {
		t.Errorf("Metrics count before reset = %d, want 2", len(metrics))
	}

	collector.Reset()

	metrics = collector.GetMetrics()
	if len(metrics) != 0 {
		t.Errorf("Metrics count after reset = %d, want 0", len(metrics))
	}
}

func TestMetricsCollector_Close(t *testing.T) {
	logger, err := logging.NewLogger(logging.DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}

	collector := NewMetricsCollector(logger, time.Second)

	// Should not panic
	collector.Close()

	// Context should be cancelled
	select {
	case <-collector.ctx.Done():
		// Expected
	case <-time.After(time.Second):
		t.Error("Close() did not cancel context")
	}
}

func TestNewApplicationMetrics(t *testing.T) {
	logger, err := logging.NewLogger(logging.DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}

	collector := NewMetricsCollector(logger, time.Second)
	defer collector.Close()

	appMetrics := NewApplicationMetrics(collector)

	if appMetrics == nil {
		t.Fatal("NewApplicationMetrics() returned nil")
	}

	if appMetrics.collector != collector {
		t.Error("NewApplicationMetrics() did not set collector correctly")
	}
}

func TestApplicationMetrics_RecordScan(t *testing.T) {
	logger, err := logging.NewLogger(logging.DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}

	collector := NewMetricsCollector(logger, time.Second)
	defer collector.Close()

	appMetrics := NewApplicationMetrics(collector)

	appMetrics.RecordScan(4, 1, time.Millisecond*100, true)

	metrics := collector.GetMetrics()
	if len(metrics) < 3 {
		t.Errorf("RecordScan() metrics count = %d, want at least 3", len(metrics))
	}

	gauges := collector.GetMetricsByType(MetricTypeGauge)

	found := map[string]float64{}
	for _, g := range gauges {
		found[g.Name] = g.Value
	}

	if found["partitions_scanned"] != 4.0 {
		t.Errorf("partitions_scanned = %v, want 4.0", found["partitions_scanned"])
	}

	if found["partitions_below_threshold"] != 1.0 {
		t.Errorf("partitions_below_threshold = %v, want 1.0", found["partitions_below_threshold"])
	}
}

func TestApplicationMetrics_RecordPartitionSpace(t *testing.T) {
	logger, err := logging.NewLogger(logging.DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}

	collector := NewMetricsCollector(logger, time.Second)
	defer collector.Close()

	appMetrics := NewApplicationMetrics(collector)

	appMetrics.RecordPartitionSpace("/", 5_000_000_000, 20_000_000_000)

	gauges := collector.GetMetricsByType(MetricTypeGauge)
	if len(gauges) != 2 {
		t.Fatalf("RecordPartitionSpace() gauge count = %d, want 2", len(gauges))
	}

	for _, g := range gauges {
		if g.Labels["mountpoint"] != "/" {
			t.Errorf("gauge %s mountpoint label = %v, want /", g.Name, g.Labels["mountpoint"])
		}

		if g.Unit != "bytes" {
			t.Errorf("gauge %s unit = %v, want bytes", g.Name, g.Unit)
		}

		switch g.Name {
		case "partition_free_bytes":
			if g.Value != 5_000_000_000 {
				t.Errorf("partition_free_bytes = %v, want 5000000000", g.Value)
			}
		case "partition_total_bytes":
			if g.Value != 20_000_000_000 {
				t.Errorf("partition_total_bytes = %v, want 20000000000", g.Value)
			}
		default:
			t.Errorf("unexpected gauge %s", g.Name)
		}
	}
}

func TestApplicationMetrics_RecordDelivery(t *testing.T) {
	logger, err := logging.NewLogger(logging.DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}

	collector := NewMetricsCollector(logger, time.Second)
	defer collector.Close()

	appMetrics := NewApplicationMetrics(collector)

	appMetrics.RecordDelivery("#alerts", true, time.Millisecond*50)
	appMetrics.RecordDelivery("#alerts", false, time.Millisecond*75)

	counters := collector.GetMetricsByType(MetricTypeCounter)
	if len(counters) != 2 {
		t.Errorf("RecordDelivery() counter count = %d, want 2 (success and failure)", len(counters))
	}

	for _, c := range counters {
		if c.Name != "deliveries_total" {
			t.Errorf("unexpected counter %s", c.Name)
		}

		if c.Labels["channel"] != "#alerts" {
			t.Errorf("counter channel label = %v, want #alerts", c.Labels["channel"])
		}
	}
}

func TestApplicationMetrics_RecordAlert(t *testing.T) {
	logger, err := logging.NewLogger(logging.DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}

	collector := NewMetricsCollector(logger, time.Second)
	defer collector.Close()

	appMetrics := NewApplicationMetrics(collector)

	appMetrics.RecordAlert("/dev/sda1", "/")
	appMetrics.RecordAlert("/dev/sda1", "/")

	counters := collector.GetMetricsByType(MetricTypeCounter)
	if len(counters) != 1 {
		t.Fatalf("RecordAlert() counter count = %d, want 1", len(counters))
	}

	if counters[0].Value != 2.0 {
		t.Errorf("alerts_raised_total = %v, want 2.0", counters[0].Value)
	}

	if counters[0].Labels["device"] != "/dev/sda1" {
		t.Errorf("alert device label = %v, want /dev/sda1", counters[0].Labels["device"])
	}
}

func TestApplicationMetrics_RecordHealthCheck(t *testing.T) {
	logger, err := logging.NewLogger(logging.DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}

	collector := NewMetricsCollector(logger, time.Second)
	defer collector.Close()

	appMetrics := NewApplicationMetrics(collector)

	appMetrics.RecordHealthCheck("notifier", false, time.Millisecond*10)

	gauges := collector.GetMetricsByType(MetricTypeGauge)

	var health *Metric
	for _, g := range gauges {
		if g.Name == "component_health" {
			health = g
		}
	}

	if health == nil {
		t.Fatal("RecordHealthCheck() did not set component_health gauge")
	}

	if health.Value != 0.0 {
		t.Errorf("component_health = %v, want 0.0 for unhealthy", health.Value)
	}
}

func TestTimer_StopWithSuccess(t *testing.T) {
	logger, err := logging.NewLogger(logging.DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}

	collector := NewMetricsCollector(logger, time.Second)
	defer collector.Close()

	timer := collector.StartTimer("scan_duration_seconds", map[string]string{"mountpoint": "/"})
	time.Sleep(5 * time.Millisecond)

	duration := timer.StopWithSuccess(true)
	if duration < 5*time.Millisecond {
		t.Errorf("StopWithSuccess() duration = %v, want >= 5ms", duration)
	}

	histograms := collector.GetMetricsByType(MetricTypeHistogram)
	if len(histograms) != 1 {
		t.Fatalf("StopWithSuccess() histogram count = %d, want 1", len(histograms))
	}

	if histograms[0].Labels["success"] != "true" {
		t.Errorf("histogram success label = %v, want true", histograms[0].Labels["success"])
	}
}
