package main

import "testing"

func testStatusPrinter(finished, total int) *StatusPrinter {
	return &StatusPrinter{
		format:        defaultStatusFormat,
		total:         total,
		finished:      finished,
		startedMillis: 0,
		rate:          newSlidingRate(30),
	}
}

func TestFormatProgressStatusPlaceholders(t *testing.T) {
	t.Parallel()
	p := testStatusPrinter(1, 2)

	if got := p.FormatProgressStatus("[%f/%t] ", 0); got != "[1/2] " {
		t.Errorf("counts: got %q", got)
	}
	if got := p.FormatProgressStatus("%p", 0); got != " 50%" {
		t.Errorf("percentage: got %q", got)
	}
	if got := p.FormatProgressStatus("100%%done", 0); got != "100%done" {
		t.Errorf("literal percent: got %q", got)
	}
	if got := p.FormatProgressStatus("%e", 1500); got != "1.500" {
		t.Errorf("elapsed: got %q", got)
	}
}

func TestFormatProgressStatusZeroTotal(t *testing.T) {
	t.Parallel()
	p := testStatusPrinter(0, 0)
	if got := p.FormatProgressStatus("%p", 0); got != "  0%" {
		t.Errorf("empty run percentage: got %q", got)
	}
}

func TestFormatProgressStatusRate(t *testing.T) {
	t.Parallel()
	p := testStatusPrinter(0, 10)

	// A single sample cannot yield a rate yet.
	p.finished = 1
	if got := p.FormatProgressStatus("%o", 1000); got != "?" {
		t.Errorf("first sample: got %q", got)
	}
	// Two samples 500ms apart: 2 targets over 0.5s.
	p.finished = 2
	if got := p.FormatProgressStatus("%o", 1500); got != "4.0" {
		t.Errorf("second sample: got %q", got)
	}
}

func TestSlidingRateWindow(t *testing.T) {
	t.Parallel()
	r := newSlidingRate(2)
	if r.Rate() != -1 {
		t.Fatalf("initial rate = %v, want -1", r.Rate())
	}
	r.UpdateRate(1, 0)
	r.UpdateRate(2, 1000)
	r.UpdateRate(3, 2000)
	// Window holds the last two samples, 1000ms apart.
	if r.Rate() != 2.0 {
		t.Errorf("windowed rate = %v, want 2.0", r.Rate())
	}
	// A repeated hint must not advance the window.
	r.UpdateRate(3, 9000)
	if r.Rate() != 2.0 {
		t.Errorf("rate after duplicate hint = %v, want 2.0", r.Rate())
	}
}
