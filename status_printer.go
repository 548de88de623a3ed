package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/fatih/color"
)

// slidingRate tracks recent completion times to estimate targets per
// second over a sliding window.
type slidingRate struct {
	rate       float64
	n          int
	times      []float64
	lastUpdate int
}

func newSlidingRate(n int) *slidingRate {
	return &slidingRate{rate: -1, n: n, lastUpdate: -1}
}

func (s *slidingRate) Rate() float64 { return s.rate }

func (s *slidingRate) UpdateRate(updateHint int, timeMillis int64) {
	if updateHint == s.lastUpdate {
		return
	}
	s.lastUpdate = updateHint
	if len(s.times) == s.n {
		s.times = s.times[1:]
	}
	s.times = append(s.times, float64(timeMillis))
	back := s.times[len(s.times)-1]
	front := s.times[0]
	if back != front {
		s.rate = float64(len(s.times)) / ((back - front) / 1e3)
	}
}

// StatusPrinter renders pipeline progress as a single overwritten
// terminal line, formatted per AZADI_STATUS. Warnings and errors always
// land on their own lines.
type StatusPrinter struct {
	printer *LinePrinter
	format  string
	verbose bool
	quiet   bool

	total         int
	finished      int
	startedMillis int64
	rate          *slidingRate
}

// defaultStatusFormat is the progress prefix printed before each
// finished target.
const defaultStatusFormat = "[%f/%t] "

func NewStatusPrinter(verbose, quiet bool) *StatusPrinter {
	p := &StatusPrinter{
		printer: NewLinePrinter(),
		format:  defaultStatusFormat,
		verbose: verbose,
		quiet:   quiet,
		rate:    newSlidingRate(30),
	}
	if env := os.Getenv("AZADI_STATUS"); env != "" {
		p.format = env
	}
	return p
}

func (p *StatusPrinter) RunStarted(totalTargets int) {
	p.total = totalTargets
	p.finished = 0
	p.startedMillis = GetTimeMillis()
}

func (p *StatusPrinter) DocumentParsed(path string, defs, blocks int) {
	if p.verbose {
		p.printer.PrintOnNewLine(fmt.Sprintf("azadi: parsed %s: %d macros, %d chunk blocks\n", path, defs, blocks))
	}
}

func (p *StatusPrinter) TargetFinished(path string, outcome WriteOutcome) {
	p.finished++
	if p.quiet {
		return
	}
	line := p.FormatProgressStatus(p.format, GetTimeMillis()) + path
	if outcome == WroteUnchanged {
		line += " (unchanged)"
	}
	lt := Elide
	if p.verbose {
		lt = Full
	}
	p.printer.Print(line, lt)
}

func (p *StatusPrinter) RunFinished() {
	p.printer.PrintOnNewLine("")
	p.printer.SetConsoleLocked(false)
}

func (p *StatusPrinter) Info(msg string, args ...any) {
	p.printer.PrintOnNewLine(fmt.Sprintf("azadi: "+msg+"\n", args...))
}

func (p *StatusPrinter) Warning(msg string, args ...any) {
	p.printer.PrintOnNewLine(color.YellowString("azadi: warning: ") + fmt.Sprintf(msg+"\n", args...))
}

func (p *StatusPrinter) Error(msg string, args ...any) {
	p.printer.PrintOnNewLine(color.RedString("azadi: error: ") + fmt.Sprintf(msg+"\n", args...))
}

// FormatProgressStatus expands the AZADI_STATUS placeholders:
//
//	%f finished targets, %t total targets, %p percentage,
//	%o targets per second, %e elapsed seconds, %% a literal %.
func (p *StatusPrinter) FormatProgressStatus(format string, timeMillis int64) string {
	var out []byte
	for i := 0; i < len(format); i++ {
		c := format[i]
		if c != '%' {
			out = append(out, c)
			continue
		}
		i++
		if i == len(format) {
			Fatal("unterminated placeholder in AZADI_STATUS")
		}
		switch format[i] {
		case '%':
			out = append(out, '%')
		case 'f':
			out = strconv.AppendInt(out, int64(p.finished), 10)
		case 't':
			out = strconv.AppendInt(out, int64(p.total), 10)
		case 'p':
			percent := 0
			if p.total > 0 {
				percent = 100 * p.finished / p.total
			}
			out = append(out, fmt.Sprintf("%3d%%", percent)...)
		case 'o':
			p.rate.UpdateRate(p.finished, timeMillis)
			if r := p.rate.Rate(); r == -1 {
				out = append(out, '?')
			} else {
				out = append(out, fmt.Sprintf("%.1f", r)...)
			}
		case 'e':
			elapsed := float64(timeMillis-p.startedMillis) / 1e3
			out = append(out, fmt.Sprintf("%.3f", elapsed)...)
		default:
			Fatal("unknown placeholder '%%%c' in AZADI_STATUS", format[i])
		}
	}
	return string(out)
}
