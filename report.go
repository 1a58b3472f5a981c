package main

import (
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"
	"golang.org/x/tools/benchmark/parse"
)

type measurement struct {
	Label       string
	Name        string
	TotalUs     int64
	PerCallUs   float64
	CallsPerSec int64
}

type report struct {
	Source       string
	Version      string
	Bound        int
	Measurements []measurement
}

func (r *report) record(res Result) {
	switch res.Step.kind {
	case stepVersion:
		r.Version = res.Groups[1]
	case stepBound:
		if n, err := parseBound(res.Step.Label, res.Groups[1]); err == nil {
			r.Bound = n
		}
	case stepBenchmark:
		m, err := newMeasurement(res)
		if err == nil {
			r.Measurements = append(r.Measurements, m)
		}
	}
}

func newMeasurement(res Result) (measurement, error) {
	if len(res.Groups) != 4 {
		return measurement{}, fmt.Errorf("expected 3 captured fields for %q, got %d", res.Step.Label, len(res.Groups)-1)
	}
	total, err := strconv.ParseInt(res.Groups[1], 10, 64)
	if err != nil {
		return measurement{}, err
	}
	perCall, err := strconv.ParseFloat(res.Groups[2], 64)
	if err != nil {
		return measurement{}, err
	}
	calls, err := strconv.ParseInt(res.Groups[3], 10, 64)
	if err != nil {
		return measurement{}, err
	}
	return measurement{
		Label:       res.Step.Label,
		Name:        res.Step.benchName,
		TotalUs:     total,
		PerCallUs:   perCall,
		CallsPerSec: calls,
	}, nil
}

// N is 1 when the device reports a per-call time of zero.
func (m measurement) benchmark() *parse.Benchmark {
	n := 1
	if m.PerCallUs > 0 {
		n = int(math.Round(float64(m.TotalUs) / m.PerCallUs))
		if n < 1 {
			n = 1
		}
	}
	return &parse.Benchmark{
		Name:     m.Name,
		N:        n,
		NsPerOp:  m.PerCallUs * 1000,
		Measured: parse.NsPerOp,
	}
}

func (r *report) writeBenchmarks(w io.Writer) error {
	for _, m := range r.Measurements {
		if _, err := fmt.Fprintln(w, m.benchmark().String()); err != nil {
			return err
		}
	}
	return nil
}

func (r *report) show(w io.Writer) {
	fmt.Fprintln(w, "\nResult")
	fmt.Fprintf(w, "%s\n\n", strings.Repeat("=", 6))
	if r.Source != "" {
		fmt.Fprintf(w, "Source: %s\n", r.Source)
	}
	if r.Version != "" {
		fmt.Fprintf(w, "RIOT version: %s\n", r.Version)
	}
	fmt.Fprintf(w, "Loop bound: %d\n\n", r.Bound)

	table := tablewriter.NewWriter(w)
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)
	table.SetAlignment(tablewriter.ALIGN_CENTER)
	table.SetHeader([]string{"Name", "Total", "PerCall", "CallsPerSec"})
	table.SetRowLine(true)
	for _, m := range r.Measurements {
		table.Append([]string{
			m.Label,
			fmt.Sprintf("%d us", m.TotalUs),
			fmt.Sprintf("%s us", strconv.FormatFloat(m.PerCallUs, 'f', -1, 64)),
			strconv.FormatInt(m.CallsPerSec, 10),
		})
	}
	table.Render()
	fmt.Fprintf(w, "\n%d benchmark lines verified\n", len(r.Measurements))
}
