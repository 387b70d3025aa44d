package ddgorescue

import (
	"testing"
	"time"
)

func TestMetrics(t *testing.T) {
	m := NewMetrics()

	snap := m.Snapshot()
	if snap.ReadOps != 0 {
		t.Errorf("Expected 0 initial read ops, got %d", snap.ReadOps)
	}

	m.RecordRead(1024, 1000000, true) // 1KB read, 1ms latency, success
	m.RecordRead(512, 500000, false)  // 512B read, 0.5ms latency, error
	m.RecordRescuedWrite(1024)

	snap = m.Snapshot()

	if snap.ReadOps != 2 {
		t.Errorf("Expected 2 read ops, got %d", snap.ReadOps)
	}
	if snap.ReadBytes != 1024 {
		t.Errorf("Expected 1024 read bytes, got %d", snap.ReadBytes)
	}
	if snap.ReadErrors != 1 {
		t.Errorf("Expected 1 read error, got %d", snap.ReadErrors)
	}
	if snap.RescuedBytes != 1024 {
		t.Errorf("Expected 1024 rescued bytes, got %d", snap.RescuedBytes)
	}

	expectedErrorRate := float64(1) / float64(2) * 100.0
	if snap.ErrorRate < expectedErrorRate-0.1 || snap.ErrorRate > expectedErrorRate+0.1 {
		t.Errorf("Expected error rate ~%.1f%%, got %.1f%%", expectedErrorRate, snap.ErrorRate)
	}
}

func TestMetricsQueueDepth(t *testing.T) {
	m := NewMetrics()

	m.RecordQueueDepth(10)
	m.RecordQueueDepth(20)
	m.RecordQueueDepth(15)

	snap := m.Snapshot()

	if snap.MaxQueueDepth != 20 {
		t.Errorf("Expected max queue depth 20, got %d", snap.MaxQueueDepth)
	}

	expectedAvg := float64(10+20+15) / 3.0
	if snap.AvgQueueDepth < expectedAvg-0.1 || snap.AvgQueueDepth > expectedAvg+0.1 {
		t.Errorf("Expected avg queue depth %.1f, got %.1f", expectedAvg, snap.AvgQueueDepth)
	}
}

func TestMetricsLatency(t *testing.T) {
	m := NewMetrics()

	m.RecordRead(1024, 1000000, true) // 1ms
	m.RecordRead(1024, 2000000, true) // 2ms

	snap := m.Snapshot()

	expectedAvgNs := uint64(1500000)
	if snap.AvgLatencyNs != expectedAvgNs {
		t.Errorf("Expected avg latency %d ns, got %d ns", expectedAvgNs, snap.AvgLatencyNs)
	}
}

func TestMetricsUptime(t *testing.T) {
	m := NewMetrics()

	time.Sleep(10 * time.Millisecond)

	snap := m.Snapshot()
	if snap.UptimeNs < 10*1000000 {
		t.Errorf("Expected uptime >= 10ms, got %d ns", snap.UptimeNs)
	}

	m.Stop()
	time.Sleep(5 * time.Millisecond)

	snap2 := m.Snapshot()
	if snap2.UptimeNs > snap.UptimeNs+2*1000000 {
		t.Errorf("Uptime increased too much after stop: %d -> %d", snap.UptimeNs, snap2.UptimeNs)
	}
}

func TestMetricsReset(t *testing.T) {
	m := NewMetrics()

	m.RecordRead(1024, 1000000, true)
	m.RecordRescuedWrite(1024)
	m.RecordQueueDepth(10)

	snap := m.Snapshot()
	if snap.ReadOps == 0 {
		t.Error("Expected some operations before reset")
	}

	m.Reset()

	snap = m.Snapshot()
	if snap.ReadOps != 0 {
		t.Errorf("Expected 0 read ops after reset, got %d", snap.ReadOps)
	}
	if snap.RescuedBytes != 0 {
		t.Errorf("Expected 0 rescued bytes after reset, got %d", snap.RescuedBytes)
	}
	if snap.MaxQueueDepth != 0 {
		t.Errorf("Expected 0 max queue depth after reset, got %d", snap.MaxQueueDepth)
	}
}

func TestObserver(t *testing.T) {
	observer := &NoOpObserver{}
	observer.ObserveRead(1024, 1000000, true)
	observer.ObserveRescuedWrite(1024)
	observer.ObserveQueueDepth(10)

	m := NewMetrics()
	metricsObserver := NewMetricsObserver(m)

	metricsObserver.ObserveRead(1024, 1000000, true)
	metricsObserver.ObserveRescuedWrite(2048)

	snap := m.Snapshot()
	if snap.ReadOps != 1 {
		t.Errorf("Expected 1 read op from observer, got %d", snap.ReadOps)
	}
	if snap.ReadBytes != 1024 {
		t.Errorf("Expected 1024 read bytes from observer, got %d", snap.ReadBytes)
	}
	if snap.RescuedBytes != 2048 {
		t.Errorf("Expected 2048 rescued bytes from observer, got %d", snap.RescuedBytes)
	}
}

func TestMetricsRates(t *testing.T) {
	m := NewMetrics()

	startTime := time.Now()
	m.StartTime.Store(startTime.UnixNano())

	m.RecordRead(1024, 1000000, true)

	stopTime := startTime.Add(1 * time.Second)
	m.StopTime.Store(stopTime.UnixNano())

	snap := m.Snapshot()

	if snap.ReadIOPS < 0.9 || snap.ReadIOPS > 1.1 {
		t.Errorf("Expected ReadIOPS ~1.0, got %.2f", snap.ReadIOPS)
	}
	if snap.ReadBandwidth < 1000 || snap.ReadBandwidth > 1050 {
		t.Errorf("Expected ReadBandwidth ~1024, got %.2f", snap.ReadBandwidth)
	}
}

func TestMetricsHistogram(t *testing.T) {
	m := NewMetrics()

	for i := 0; i < 50; i++ {
		m.RecordRead(1024, 500_000, true) // 500us
	}
	for i := 0; i < 49; i++ {
		m.RecordRead(1024, 5_000_000, true) // 5ms
	}
	m.RecordRead(1024, 50_000_000, true) // 50ms, the slowest read

	snap := m.Snapshot()

	if snap.ReadOps != 100 {
		t.Errorf("Expected 100 total read ops, got %d", snap.ReadOps)
	}
	if snap.LatencyP50Ns < 100_000 || snap.LatencyP50Ns > 1_000_000 {
		t.Errorf("Expected P50 in 100us-1ms range, got %d ns", snap.LatencyP50Ns)
	}
	if snap.LatencyP99Ns < 5_000_000 || snap.LatencyP99Ns > 100_000_000 {
		t.Errorf("Expected P99 in 5ms-100ms range, got %d ns", snap.LatencyP99Ns)
	}

	totalInBuckets := uint64(0)
	for i := 0; i < len(snap.LatencyHistogram); i++ {
		totalInBuckets += snap.LatencyHistogram[i]
	}
	if totalInBuckets == 0 {
		t.Error("Expected histogram buckets to be populated")
	}
}
