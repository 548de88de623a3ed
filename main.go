package main

import (
	"log"
	"os"
	"slices"
)

func real_main() int {
	config := NewConfig()
	options := &Options{}

	// setvbuf(stdout, NULL, _IOLBF, BUFSIZ)
	azadiCommand := os.Args[0]
	args := os.Args

	exitCode := ReadFlags(&args, options, config)
	if exitCode >= 0 {
		return exitCode
	}

	status := StatusFactory(config)

	if options.WorkingDir != "" {
		// The formatting of this string, complete with funny quotes, is
		// so Emacs can properly identify that the cwd has changed for
		// subsequent commands.
		// Don't print this if a tool is being used, so that tool output
		// can be piped into a file without this string showing up.
		if options.Tool == nil && !config.Quiet {
			status.Info("Entering directory `%s'", options.WorkingDir)
		}

		if err := os.Chdir(options.WorkingDir); err != nil {
			log.Fatalf("chdir to '%s' - %v", options.WorkingDir, err)
		}
	}

	// Everything on the command line before "--" names documents;
	// everything after it belongs to the tool. Tools that only read the
	// logs take no documents at all.
	docPaths := args
	var toolArgs []string
	if i := slices.Index(args, "--"); i >= 0 {
		docPaths, toolArgs = args[:i], args[i+1:]
	} else if options.Tool != nil && options.Tool.When == RunAfterLogs {
		docPaths, toolArgs = nil, args
	}

	if config.WatchInterval > 0 {
		if options.Tool != nil {
			Fatal("-p cannot be combined with -t")
		}
		if slices.Contains(docPaths, "-") {
			Fatal("-p cannot watch a document read from stdin")
		}
		return NewWatcher(azadiCommand, options, config, status, docPaths).Run()
	}

	result, _ := runOnce(azadiCommand, options, config, status, docPaths, toolArgs)
	return result
}

// / Run one full pass of the pipeline, or the requested tool, and report
// / which source files the run consumed so watch mode can track them.
func runOnce(azadiCommand string, options *Options, config *Config, status Status, docPaths, toolArgs []string) (int, []SourceInput) {
	azadi := NewAzadiMain(azadiCommand, config, status)
	defer azadi.Close()

	if options.Tool != nil && options.Tool.When == RunAfterFlags {
		return options.Tool.Func(azadi, options, toolArgs), nil
	}

	if !azadi.EnsureOutDirExists() {
		return exitFailure, nil
	}
	if !azadi.OpenLogs() {
		return exitFailure, nil
	}

	if options.Tool != nil && options.Tool.When == RunAfterLogs {
		return options.Tool.Func(azadi, options, toolArgs), nil
	}

	if len(docPaths) == 0 {
		status.Error("no input documents (try 'azadi -h')")
		return exitFailure, nil
	}
	if !azadi.LoadDocuments(docPaths, options.Invocations) {
		return exitFailure, azadi.Sources
	}

	if options.Tool != nil && options.Tool.When == RunAfterExpand {
		return options.Tool.Func(azadi, options, toolArgs), azadi.Sources
	}

	result := azadi.RunEmit()
	if g_metrics != nil {
		azadi.DumpMetrics()
	}
	return result, azadi.Sources
}

func main() {
	os.Exit(real_main())
}
