package main

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/segmentio/fasthash/fnv1a"
	"github.com/tevino/abool/v2"
)

// / Watch mode (-p SECS). The watcher runs the pipeline once, then polls
// / the documents and every file they included on a fixed interval and
// / retangles when any of them changes. Polling and retangling happen on
// / a scheduler job; a guard flag keeps a slow run from overlapping the
// / next tick.
type Watcher struct {
	command string
	options *Options
	config  *Config
	status  Status
	disk    DiskInterface

	docPaths []string
	watched  []string
	lastFP   uint64

	running *abool.AtomicBool
}

func NewWatcher(command string, options *Options, config *Config, status Status, docPaths []string) *Watcher {
	return &Watcher{
		command:  command,
		options:  options,
		config:   config,
		status:   status,
		disk:     RealDiskInterface{},
		docPaths: docPaths,
		running:  abool.NewBool(false),
	}
}

func (w *Watcher) Run() int {
	result, sources := w.runPipeline()
	if result != exitSuccess && len(sources) == 0 {
		// Nothing parsed, so there is nothing to watch for fixes either.
		return result
	}

	scheduler, err := gocron.NewScheduler()
	if err != nil {
		w.status.Error("starting watch scheduler: %s", err)
		return exitFailure
	}
	interval := time.Duration(w.config.WatchInterval * float64(time.Second))
	_, err = scheduler.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(w.poll),
	)
	if err != nil {
		w.status.Error("scheduling watch job: %s", err)
		return exitFailure
	}
	scheduler.Start()
	w.status.Info("watching %d files every %gs, interrupt to stop",
		len(w.watched), w.config.WatchInterval)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	_ = scheduler.Shutdown()
	w.status.Info("watch stopped")
	return exitSuccess
}

// / One scheduler tick: skip if a run is already in flight, otherwise
// / rehash the watch list and retangle on any change.
func (w *Watcher) poll() {
	if w.running.IsSet() {
		return
	}
	w.running.Set()
	defer w.running.UnSet()

	if w.fingerprint(w.currentSources()) == w.lastFP {
		return
	}
	w.status.Info("change detected, retangling")
	w.runPipeline()
}

func (w *Watcher) runPipeline() (int, []SourceInput) {
	result, sources := runOnce(w.command, w.options, w.config, w.status, w.docPaths, nil)
	w.adopt(sources)
	return result, sources
}

// / Adopt the file list of the last run as the new watch list. When the
// / run failed before parsing anything, fall back to the documents from
// / the command line so a fix still triggers a rerun.
func (w *Watcher) adopt(sources []SourceInput) {
	if len(sources) == 0 {
		w.watched = append([]string(nil), w.docPaths...)
		w.lastFP = w.fingerprint(w.currentSources())
		return
	}
	w.watched = w.watched[:0]
	for _, src := range sources {
		w.watched = append(w.watched, src.Path)
	}
	w.lastFP = w.fingerprint(sources)
}

// / Rehash every watched file as it is on disk right now. A file that
// / cannot be read hashes as absent, which still differs from any real
// / content hash.
func (w *Watcher) currentSources() []SourceInput {
	sources := make([]SourceInput, 0, len(w.watched))
	for _, path := range w.watched {
		hash, err := hashFile(w.disk, path)
		if err != nil {
			hash = "absent"
		}
		sources = append(sources, SourceInput{Path: path, Hash: hash})
	}
	return sources
}

func (w *Watcher) fingerprint(sources []SourceInput) uint64 {
	fp := fnv1a.Init64
	for _, src := range sources {
		fp = fnv1a.AddString64(fp, src.Path)
		fp = fnv1a.AddString64(fp, src.Hash)
	}
	return fp
}
