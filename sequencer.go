package main

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	"k8s.io/klog/v2"
)

var ErrInvalidBound = errors.New("invalid loop bound")

type Result struct {
	Step   Expectation
	Groups []string
}

// verify returns session errors unmodified.
func verify(s Session, p *Protocol, record func(Result)) error {
	apply := func(e Expectation) ([]string, error) {
		klog.V(2).InfoS("Expecting", "step", e, "timeout", effectiveTimeout(s, e))
		var groups []string
		var err error
		if e.Pattern == nil {
			err = s.ExpectExact(e.Literal, e.Timeout)
		} else {
			groups, err = s.Expect(e.Pattern, e.Timeout)
		}
		if err != nil {
			return nil, err
		}
		if record != nil {
			record(Result{Step: e, Groups: groups})
		}
		return groups, nil
	}

	if p.Version != nil {
		groups, err := apply(*p.Version)
		if err != nil {
			return err
		}
		if err := checkVersion(p.versionRange, p.requireVersion, groups[1]); err != nil {
			return err
		}
	}

	if _, err := apply(p.Banner); err != nil {
		return err
	}
	for _, e := range p.Prologue {
		if _, err := apply(e); err != nil {
			return err
		}
	}

	groups, err := apply(p.Bound)
	if err != nil {
		return err
	}
	bound, err := parseBound(p.BoundKey, groups[1])
	if err != nil {
		return err
	}
	klog.InfoS("Device reported loop bound", "key", p.BoundKey, "bound", bound)

	for _, cursor := range loopCursors(p.LoopFloor, bound) {
		for _, e := range p.LoopSteps(cursor) {
			if _, err := apply(e); err != nil {
				return err
			}
		}
	}

	_, err = apply(p.Success)
	return err
}

func effectiveTimeout(s Session, e Expectation) time.Duration {
	if e.Timeout > 0 {
		return e.Timeout
	}
	return s.DefaultTimeout()
}

func parseBound(key, value string) (int, error) {
	n, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s=%q: %v", ErrInvalidBound, key, value, err)
	}
	if n < 0 || n > math.MaxInt32 {
		return 0, fmt.Errorf("%w: %s=%d out of range", ErrInvalidBound, key, n)
	}
	return int(n), nil
}

func loopCursors(floor, bound int) []int {
	var cursors []int
	for cursor := floor; cursor > 0 && cursor <= bound; cursor <<= 1 {
		cursors = append(cursors, cursor)
		if cursor > math.MaxInt/2 {
			break
		}
	}
	return cursors
}
