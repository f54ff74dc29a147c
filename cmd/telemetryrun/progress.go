package main

import (
	"fmt"
	"time"
)

// scanReport times a bounded discovery scan and prints a one-line summary
// when it completes. Discovery's window is fixed up front (spec.md §4.9),
// so there's no ETA to estimate and no spinner worth animating — just a
// start marker and a timed result.
type scanReport struct {
	label   string
	started time.Time
	enabled bool
}

func newScanReport(label string, enabled bool) *scanReport {
	if enabled {
		fmt.Printf("%s: scanning...\n", label)
	}
	return &scanReport{label: label, started: time.Now(), enabled: enabled}
}

func (r *scanReport) done(found int) {
	if !r.enabled {
		return
	}
	fmt.Printf("%s: %d device(s) found (%v)\n", r.label, found, time.Since(r.started).Round(time.Millisecond))
}

// replayPhases logs the replay command's decode and ingest phases as they
// start and finish, the way a bounded batch job reports progress without
// needing a spinner for work that's already streaming to stdout.
type replayPhases struct {
	name    string
	started time.Time
}

func (p *replayPhases) begin(name string) {
	p.name = name
	p.started = time.Now()
	fmt.Printf("replay: %s...\n", name)
}

func (p *replayPhases) end() {
	fmt.Printf("replay: %s done (%v)\n", p.name, time.Since(p.started).Round(time.Millisecond))
}

func (p *replayPhases) fail(reason string) {
	fmt.Printf("replay: %s failed: %s\n", p.name, reason)
}
