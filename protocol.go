package main

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/blang/semver/v4"
)

const (
	defaultBanner        = "Runtime of Selected Core API functions"
	defaultSuccessMarker = "[SUCCESS]"
	defaultBoundKey      = "BENCH_CLIST_SORT_TEST_NODES"
	defaultLoopFloor     = 4
	defaultLoopLabel     = "clist_sort"

	defaultSessionTimeout  = 10 * time.Second
	defaultExtendedTimeout = 30 * time.Second
)

// "<label>: <total>us --- <per call>us per call --- <calls> calls per sec"
const benchmarkFormat = `(?m)(?:^|\s)%s:\s+(\d+)us\s+---\s+(\d*\.?\d+)us per call\s+---\s+(\d+) calls per sec`

var defaultOperations = []Operation{
	{Name: "nop loop"},
	{Name: "mutex_init()"},
	{Name: "mutex lock/unlock", Extended: true},
	{Name: "thread_flags_set()"},
	{Name: "thread_flags_clear()"},
	{Name: "thread flags set/wait any", Extended: true},
	{Name: "thread flags set/wait all", Extended: true},
	{Name: "thread flags set/wait one", Extended: true},
	{Name: "msg_try_receive()", Extended: true},
	{Name: "msg_avail()"},
}

var defaultLoopSuffixes = []string{"rev", "prng", "sort", "alm.srt"}

func defaultConfiguration() *ProtocolConfiguration {
	return &ProtocolConfiguration{
		TimeoutConfiguration: TimeoutConfiguration{
			DefaultTimeout:  defaultSessionTimeout.String(),
			ExtendedTimeout: defaultExtendedTimeout.String(),
		},
		Banner:        defaultBanner,
		Operations:    append([]Operation(nil), defaultOperations...),
		BoundKey:      defaultBoundKey,
		LoopFloor:     defaultLoopFloor,
		LoopLabel:     defaultLoopLabel,
		LoopSuffixes:  append([]string(nil), defaultLoopSuffixes...),
		SuccessMarker: defaultSuccessMarker,
	}
}

func (c *ProtocolConfiguration) applyDefaults(d *ProtocolConfiguration) *ProtocolConfiguration {
	if c.DefaultTimeout == "" {
		c.DefaultTimeout = d.DefaultTimeout
	}
	if c.ExtendedTimeout == "" {
		c.ExtendedTimeout = d.ExtendedTimeout
	}
	if c.RequireVersion == "" {
		c.RequireVersion = d.RequireVersion
	}
	if c.Banner == "" {
		c.Banner = d.Banner
	}
	if len(c.Operations) == 0 {
		c.Operations = d.Operations
	}
	if c.BoundKey == "" {
		c.BoundKey = d.BoundKey
	}
	if c.LoopFloor == 0 {
		c.LoopFloor = d.LoopFloor
	}
	if c.LoopLabel == "" {
		c.LoopLabel = d.LoopLabel
	}
	if len(c.LoopSuffixes) == 0 {
		c.LoopSuffixes = d.LoopSuffixes
	}
	if c.SuccessMarker == "" {
		c.SuccessMarker = d.SuccessMarker
	}
	return c
}

type stepKind int

const (
	stepLiteral stepKind = iota
	stepVersion
	stepBenchmark
	stepBound
)

// A zero Timeout selects the session default.
type Expectation struct {
	Label   string
	Literal string
	Pattern *regexp.Regexp
	Timeout time.Duration

	kind      stepKind
	benchName string
}

func (e Expectation) String() string {
	if e.Pattern == nil {
		return fmt.Sprintf("literal %q", e.Literal)
	}
	return fmt.Sprintf("%s (pattern %q)", e.Label, e.Pattern.String())
}

func literalExpectation(s string) Expectation {
	return Expectation{Label: s, Literal: s, kind: stepLiteral}
}

func benchmarkPattern(label string) *regexp.Regexp {
	return regexp.MustCompile(fmt.Sprintf(benchmarkFormat, regexp.QuoteMeta(label)))
}

func benchmarkExpectation(label, benchName string, timeout time.Duration) Expectation {
	return Expectation{
		Label:     label,
		Pattern:   benchmarkPattern(label),
		Timeout:   timeout,
		kind:      stepBenchmark,
		benchName: benchName,
	}
}

type Protocol struct {
	Version   *Expectation
	Banner    Expectation
	Prologue  []Expectation
	Bound     Expectation
	BoundKey  string
	LoopFloor int
	Success   Expectation

	requireVersion  string
	versionRange    semver.Range
	loopLabel       string
	loopSuffixes    []string
	extendedTimeout time.Duration
}

func newProtocol(c *ProtocolConfiguration) (*Protocol, error) {
	extended, err := time.ParseDuration(c.ExtendedTimeout)
	if err != nil {
		return nil, fmt.Errorf("invalid extended timeout %q: %w", c.ExtendedTimeout, err)
	}
	if extended <= 0 {
		return nil, fmt.Errorf("extended timeout must be positive, got %v", extended)
	}
	if c.LoopFloor <= 0 {
		return nil, fmt.Errorf("loop floor must be positive, got %d", c.LoopFloor)
	}

	p := &Protocol{
		Banner:          literalExpectation(c.Banner),
		BoundKey:        c.BoundKey,
		LoopFloor:       c.LoopFloor,
		Success:         literalExpectation(c.SuccessMarker),
		requireVersion:  c.RequireVersion,
		loopLabel:       c.LoopLabel,
		loopSuffixes:    c.LoopSuffixes,
		extendedTimeout: extended,
	}

	if c.RequireVersion != "" {
		p.versionRange, err = parseRequirement(c.RequireVersion)
		if err != nil {
			return nil, err
		}
		p.Version = &Expectation{
			Label:   "RIOT version",
			Pattern: versionPattern,
			kind:    stepVersion,
		}
	}

	for _, op := range c.Operations {
		var timeout time.Duration
		if op.Extended {
			timeout = extended
		}
		p.Prologue = append(p.Prologue, benchmarkExpectation(op.Name, benchmarkName(op.Name), timeout))
	}

	p.Bound = Expectation{
		Label:   c.BoundKey,
		Pattern: regexp.MustCompile(`\{'` + regexp.QuoteMeta(c.BoundKey) + `':\s*(-?\d+)\}`),
		kind:    stepBound,
	}
	return p, nil
}

func (p *Protocol) LoopSteps(cursor int) []Expectation {
	steps := make([]Expectation, 0, len(p.loopSuffixes))
	for _, suffix := range p.loopSuffixes {
		label := fmt.Sprintf("%s, #%d, %s", p.loopLabel, cursor, suffix)
		name := fmt.Sprintf("%s/nodes=%d/%s", benchmarkName(p.loopLabel), cursor, suffix)
		steps = append(steps, benchmarkExpectation(label, name, p.extendedTimeout))
	}
	return steps
}

func benchmarkName(label string) string {
	words := strings.FieldsFunc(label, func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9')
	})
	var b strings.Builder
	b.WriteString("Benchmark")
	for _, w := range words {
		b.WriteString(strings.ToUpper(w[:1]))
		b.WriteString(w[1:])
	}
	return b.String()
}
