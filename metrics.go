package main

import (
	"fmt"
	"time"
)

// g_metrics is nil unless -d stats enables collection.
var g_metrics *Metrics = nil

type Metric struct {
	name string
	/// Number of times we've hit the code path.
	count int
	/// Total time in microseconds spent on the code path.
	sum int64
}

type Metrics struct {
	metrics []*Metric
	byName  map[string]*Metric
}

func NewMetrics() *Metrics {
	return &Metrics{byName: map[string]*Metric{}}
}

func (m *Metrics) NewMetric(name string) *Metric {
	if metric, ok := m.byName[name]; ok {
		return metric
	}
	metric := &Metric{name: name}
	m.metrics = append(m.metrics, metric)
	m.byName[name] = metric
	return metric
}

// / Print a summary report to stdout.
func (m *Metrics) Report() {
	width := 0
	for _, metric := range m.metrics {
		if len(metric.name) > width {
			width = len(metric.name)
		}
	}
	fmt.Printf("%-*s\t%-6s\t%-9s\t%s\n", width, "metric", "count", "avg (us)", "total (ms)")
	for _, metric := range m.metrics {
		total := float64(metric.sum) / 1000.0
		avg := 0.0
		if metric.count > 0 {
			avg = float64(metric.sum) / float64(metric.count)
		}
		fmt.Printf("%-*s\t%-6d\t%-8.1f\t%.1f\n", width, metric.name, metric.count, avg, total)
	}
}

// MetricRecord times a code path when stats are enabled. Use as
// defer MetricRecord("parse")().
func MetricRecord(name string) func() {
	if g_metrics == nil {
		return func() {}
	}
	metric := g_metrics.NewMetric(name)
	start := HighResTimer()
	return func() {
		metric.count++
		metric.sum += TimerToMicrosInt64(HighResTimer() - start)
	}
}

// / Compute a platform-specific high-res timer value that fits into an int64.
func HighResTimer() int64 {
	return time.Now().UnixNano()
}

func TimerToMicrosInt64(dt int64) int64 {
	return time.Duration(dt).Microseconds()
}

func GetTimeMillis() int64 {
	return TimerToMicrosInt64(HighResTimer()) / 1000
}
