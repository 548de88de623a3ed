package main

import (
	"fmt"
	"os"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/tevino/abool/v2"
)

var (
	pruneScheduler gocron.Scheduler
	pruneRunning   = abool.NewBool(false)
	pruneRetention time.Duration
)

// pruneTask drops generation-log rows whose artifacts no longer exist
// (someone deleted them, or ran the clean tool with the log disabled),
// then hard-deletes rows that have been soft-deleted for longer than the
// retention window. Logged paths are relative to the directory the tangle
// ran in, so azadi-serve must run from the same place.
func pruneTask() {
	if pruneRunning.IsSet() {
		return
	}
	pruneRunning.Set()
	defer pruneRunning.UnSet()

	entries, err := LiveEntries()
	if err != nil {
		fmt.Println(err)
		return
	}
	var vanished []int64
	for _, entry := range entries {
		if _, err := os.Stat(entry.Path); os.IsNotExist(err) {
			vanished = append(vanished, entry.ID)
		}
	}
	if len(vanished) > 0 {
		if err := MarkVanished(vanished); err != nil {
			fmt.Println(err)
			return
		}
		prunedRows.Add(int64(len(vanished)))
	}

	cutoff := time.Now().Add(-pruneRetention).Unix()
	expired, err := FindExpiredWithLimit(cutoff, 2000)
	if err != nil {
		fmt.Println(err)
		return
	}
	if len(expired) == 0 {
		return
	}
	ids := make([]int64, len(expired))
	for i, entry := range expired {
		ids[i] = entry.ID
	}
	if err := PurgeExpired(ids); err != nil {
		fmt.Println(err)
	}
}

func StartPruneSchedule(every, retention time.Duration) {
	pruneRetention = retention
	var err error
	pruneScheduler, err = gocron.NewScheduler()
	if err != nil {
		panic(err)
	}
	_, err = pruneScheduler.NewJob(gocron.DurationJob(every), gocron.NewTask(pruneTask))
	if err != nil {
		panic(err)
	}
	pruneScheduler.Start()
}

func StopPruneSchedule() {
	if pruneScheduler == nil {
		return
	}
	if err := pruneScheduler.Shutdown(); err != nil {
		fmt.Println(err)
	}
}
