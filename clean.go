package main

import (
	"fmt"
	"slices"
)

// / Removes generated files recorded in the generation log and marks
// / their entries deleted so later runs treat the paths as never
// / written.
type Cleaner struct {
	disk   DiskInterface
	genLog *GenLog
	config *Config

	removed      map[string]bool
	cleanedCount int
	status       int
}

func NewCleaner(disk DiskInterface, genLog *GenLog, config *Config) *Cleaner {
	return &Cleaner{
		disk:    disk,
		genLog:  genLog,
		config:  config,
		removed: make(map[string]bool),
	}
}

func (c *Cleaner) IsVerbose() bool {
	return !c.config.Quiet && (c.config.Verbose || c.config.DryRun)
}

func (c *Cleaner) Report(path string) {
	c.cleanedCount++
	if c.IsVerbose() {
		fmt.Printf("Remove %s\n", path)
	}
}

func (c *Cleaner) fileExists(path string) bool {
	_, err := c.disk.StatFile(path)
	return err == nil
}

// / Remove the given path, at most once per run. In a dry run only
// / report what would go.
func (c *Cleaner) Remove(path string) {
	if c.removed[path] {
		return
	}
	c.removed[path] = true
	if !c.fileExists(path) {
		return
	}
	if c.config.DryRun {
		c.Report(path)
		return
	}
	if err := c.disk.Remove(path); err != nil {
		Error("remove %s: %s", path, err)
		c.status = 1
		return
	}
	c.Report(path)
}

func (c *Cleaner) PrintHeader() {
	if c.config.Quiet {
		return
	}
	fmt.Printf("Cleaning...")
	if c.IsVerbose() {
		fmt.Printf("\n")
	} else {
		fmt.Printf(" ")
	}
}

func (c *Cleaner) PrintFooter() {
	if c.config.Quiet {
		return
	}
	fmt.Printf("%d files.\n", c.cleanedCount)
}

// / Remove every live target in the generation log, or only the paths
// / given in args, together with any .bak copies. Returns 0 on success.
func (c *Cleaner) CleanAll(paths []string) int {
	c.PrintHeader()
	entries, err := c.genLog.All()
	if err != nil {
		Error("%s", err)
		return 1
	}
	for _, entry := range entries {
		if len(paths) > 0 && !slices.Contains(paths, entry.Path) {
			continue
		}
		c.Remove(entry.Path)
		c.Remove(entry.Path + backupSuffix)
		if !c.config.DryRun {
			if err := c.genLog.MarkDeleted(entry.Path); err != nil {
				Error("%s", err)
				c.status = 1
			}
		}
	}
	c.PrintFooter()
	return c.status
}

func (a *AzadiMain) ToolClean(options *Options, args []string) int {
	if a.GenLog == nil {
		a.Status.Error("generation log is disabled or missing; nothing to clean")
		return 1
	}
	cleaner := NewCleaner(a.DiskInterface, a.GenLog, a.Config)
	return cleaner.CleanAll(args)
}
