package main

// Status receives pipeline progress events. The printer implementation
// renders them on a terminal; tests substitute a recording one.
type Status interface {
	// RunStarted announces how many file targets the run will emit.
	RunStarted(totalTargets int)
	DocumentParsed(path string, defs, blocks int)
	TargetFinished(path string, outcome WriteOutcome)
	RunFinished()

	Info(msg string, args ...any)
	Warning(msg string, args ...any)
	Error(msg string, args ...any)
}

func StatusFactory(config *Config) Status {
	return NewStatusPrinter(config.Verbose, config.Quiet)
}
