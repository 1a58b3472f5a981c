package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/tools/benchmark/parse"
)

func TestNewMeasurement(t *testing.T) {
	e := benchmarkExpectation("msg_avail()", benchmarkName("msg_avail()"), 0)
	line := "msg_avail():   12us --- 1.5us per call --- 666666 calls per sec"
	m, err := newMeasurement(Result{Step: e, Groups: e.Pattern.FindStringSubmatch(line)})
	require.NoError(t, err)

	assert.Equal(t, measurement{
		Label:       "msg_avail()",
		Name:        "BenchmarkMsgAvail",
		TotalUs:     12,
		PerCallUs:   1.5,
		CallsPerSec: 666666,
	}, m)

	_, err = newMeasurement(Result{Step: e, Groups: []string{line}})
	assert.Error(t, err)
}

func TestMeasurementBenchmark(t *testing.T) {
	testCases := []struct {
		m        measurement
		expectN  int
		expectNs float64
	}{
		{
			m:        measurement{Name: "BenchmarkNopLoop", TotalUs: 12, PerCallUs: 1.5},
			expectN:  8,
			expectNs: 1500,
		},
		{
			m:        measurement{Name: "BenchmarkMutexInit", TotalUs: 3, PerCallUs: 0},
			expectN:  1,
			expectNs: 0,
		},
	}
	for _, tCase := range testCases {
		b := tCase.m.benchmark()
		assert.Equal(t, tCase.m.Name, b.Name)
		assert.Equal(t, tCase.expectN, b.N)
		assert.InDelta(t, tCase.expectNs, b.NsPerOp, 1e-9)
		assert.Equal(t, parse.NsPerOp, b.Measured)
	}
}

func TestReportWriteBenchmarks(t *testing.T) {
	_, r, err := runScenario(t, newDeviceOutput(4, 4).String(), nil)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, r.writeBenchmarks(&buf))

	set, err := parse.ParseSet(&buf)
	require.NoError(t, err)
	assert.Len(t, set, 14)
	require.Contains(t, set, "BenchmarkClistSort/nodes=4/alm.srt")
	assert.InDelta(t, 1500, set["BenchmarkNopLoop"][0].NsPerOp, 1e-9)
}

func TestReportShow(t *testing.T) {
	_, r, err := runScenario(t, newDeviceOutput(4, 4).String(), nil)
	require.NoError(t, err)
	r.Source = "0123abcd (master)"

	var buf bytes.Buffer
	r.show(&buf)
	out := buf.String()

	assert.Contains(t, out, "Source: 0123abcd (master)")
	assert.Contains(t, out, "Loop bound: 4")
	assert.Contains(t, out, "thread flags set/wait any")
	assert.Contains(t, out, "clist_sort, #4, alm.srt")
	assert.Contains(t, out, "1.5 us")
	assert.True(t, strings.HasSuffix(out, "14 benchmark lines verified\n"))
}
