package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"
)

var (
	addr       = flag.String("addr", "localhost:8080", "TCP address to listen to")
	genDir     = flag.String("dir", "gen", "generated output tree to serve")
	genLogName = flag.String("genLog", ".azadi_gen.db", "generation log file name, relative to -dir")
	xrefLog    = flag.String("xrefLog", ".azadi_xref.db", "cross-reference log file name, relative to -dir")
	pruneEvery = flag.Duration("pruneEvery", 5*time.Minute, "how often to prune log rows whose artifacts vanished")
	retention  = flag.Duration("retention", 24*time.Hour, "how long pruned rows are kept before hard deletion")
	compress   = flag.Bool("compress", false, "Enables transparent response compression if set to true")
	byteRange  = flag.Bool("byteRange", false, "Enables byte range requests if set to true")
)

// azadi-serve publishes one azadi output tree over HTTP: the generated
// artifacts themselves, plus the target and cross-reference metadata the
// tangle recorded in its logs. It never writes artifacts; its only
// mutation is pruning log rows for files that no longer exist.
func main() {
	flag.Parse()

	if err := OpenGenDB(filepath.Join(*genDir, *genLogName)); err != nil {
		fmt.Fprintf(os.Stderr, "azadi-serve: opening generation log: %v\n", err)
		os.Exit(1)
	}
	if err := OpenXrefDB(filepath.Join(*genDir, *xrefLog)); err != nil {
		fmt.Fprintf(os.Stderr, "azadi-serve: opening cross-reference log: %v\n", err)
		os.Exit(1)
	}

	StartPruneSchedule(*pruneEvery, *retention)
	go ServeFiles(*addr, *genDir, *compress, *byteRange)

	// Make a signal channel. Register SIGINT and SIGTERM.
	sigch := make(chan os.Signal, 1)
	signal.Notify(sigch, syscall.SIGINT, syscall.SIGTERM)

	// Wait for the signal.
	<-sigch

	fmt.Println("Interrupted. Exiting.")
	StopPruneSchedule()
	CloseXrefDB()
	CloseGenDB()
}
