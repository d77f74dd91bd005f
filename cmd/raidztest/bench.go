package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/klauspost/cpuid/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/templexxx/raidz"
)

// benchMetrics exports a benchmark report.
type benchMetrics struct {
	Throughput *prometheus.GaugeVec
	Fastest    *prometheus.GaugeVec
}

func newBenchMetrics(namespace string) *benchMetrics {
	return &benchMetrics{
		Throughput: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "bench",
			Name:      "column_bytes_per_second",
			Help:      "Throughput of one raidz method per column.",
		}, []string{"impl", "method"}),
		Fastest: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "bench",
			Name:      "fastest",
			Help:      "1 for the implementation the fastest selection uses.",
		}, []string{"impl", "method"}),
	}
}

func (m *benchMetrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{m.Throughput, m.Fastest}
}

func (m *benchMetrics) observe(report *raidz.BenchReport) {
	for _, res := range report.Results {
		for op, speed := range res.Gen {
			m.Throughput.WithLabelValues(res.Impl, raidz.GenOp(op).String()).Set(float64(speed))
		}
		for op, speed := range res.Rec {
			m.Throughput.WithLabelValues(res.Impl, raidz.RecOp(op).String()).Set(float64(speed))
		}
	}
	for op, name := range report.FastestGen {
		m.Fastest.WithLabelValues(name, raidz.GenOp(op).String()).Set(1)
	}
	for op, name := range report.FastestRec {
		m.Fastest.WithLabelValues(name, raidz.RecOp(op).String()).Set(1)
	}
}

// runBenchmark times every implementation, prints the table and
// optionally writes it as a Prometheus textfile.
func runBenchmark(w io.Writer, log logrus.FieldLogger, d time.Duration, textfile string) error {
	r, err := raidz.NewRegistry(raidz.Options{
		Benchmark:     true,
		BenchDuration: d,
		Logger:        log,
	})
	if err != nil {
		return err
	}
	report := r.Report()
	printReport(w, report)

	if textfile == "" {
		return nil
	}
	reg := prometheus.NewRegistry()
	m := newBenchMetrics("raidz")
	reg.MustRegister(m.Collectors()...)
	m.observe(report)
	return prometheus.WriteToTextfile(textfile, reg)
}

func printReport(w io.Writer, report *raidz.BenchReport) {
	fmt.Fprintf(w, "cpu: %s, %d cores\n", cpuid.CPU.BrandName, cpuid.CPU.PhysicalCores)
	header := []string{"impl"}
	for op := raidz.GenOp(0); int(op) < len(report.FastestGen); op++ {
		header = append(header, op.String())
	}
	for op := raidz.RecOp(0); int(op) < len(report.FastestRec); op++ {
		header = append(header, op.String())
	}
	printRow(w, header)

	for _, res := range report.Results {
		row := []string{res.Impl}
		for _, speed := range res.Gen {
			row = append(row, humanize.IBytes(speed)+"/s")
		}
		for _, speed := range res.Rec {
			row = append(row, humanize.IBytes(speed)+"/s")
		}
		printRow(w, row)
	}

	row := []string{"fastest"}
	row = append(row, report.FastestGen[:]...)
	row = append(row, report.FastestRec[:]...)
	printRow(w, row)
}

func printRow(w io.Writer, cols []string) {
	var sb strings.Builder
	for j, c := range cols {
		if j == 0 {
			fmt.Fprintf(&sb, "%-10s", c)
			continue
		}
		fmt.Fprintf(&sb, "%12s", c)
	}
	fmt.Fprintln(w, sb.String())
}
