package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"git.sr.ht/~sircmpwn/getopt"
	"github.com/nickwells/location.mod/location"
)

// / Command-line options.
type Options struct {
	/// Directory to change into before running.
	WorkingDir string

	/// Tool to run rather than tangling.
	Tool *Tool

	/// Macro invocations requested with -r, run after every document has
	/// been expanded.
	Invocations []string
}

// / Run configuration set from flags; shared by every pipeline stage.
type Config struct {
	Markers     Markers
	OutDir      string
	IncludeDirs []string

	Parallelism    int
	MaxLoadAverage float64

	DryRun bool
	Force  bool
	Backup bool

	Verbose bool
	Quiet   bool

	WarnUnreferenced bool

	/// Log locations; empty means the default next to the output tree and
	/// "off" disables the log entirely.
	GenLogPath  string
	XrefLogPath string

	/// Watch poll interval in seconds; > 0 enables watch mode.
	WatchInterval float64
}

func NewConfig() *Config {
	return &Config{
		Markers:          DefaultMarkers(),
		OutDir:           "gen",
		Parallelism:      GetProcessorCount(),
		WarnUnreferenced: true,
	}
}

type When int8

const (
	/// Run after parsing the command-line flags and potentially changing
	/// the current working directory (as early as possible).
	RunAfterFlags When = 0

	/// Run after the generation and xref logs have been opened.
	RunAfterLogs When = 1

	/// Run after every document has been parsed and expanded.
	RunAfterExpand When = 2
)

// / The type of functions that are the entry points to tools (subcommands).
type ToolFunc func(*AzadiMain, *Options, []string) int

// / Subtools, accessible via "-t foo".
type Tool struct {
	/// Short name of the tool.
	Name string

	/// Description (shown in "-t list").
	Desc string

	/// When to run the tool.
	When When

	/// Implementation of the tool.
	Func ToolFunc
}

type AzadiMain struct {
	/// Command line used to run azadi.
	AzadiCommand string

	/// Run configuration set from flags (markers, parallelism, paths).
	Config *Config

	/// Functions for accessing the disk.
	DiskInterface DiskInterface

	/// Everything the documents defined, after expansion.
	Table   *MacroTable
	Store   *ChunkStore
	Docs    []*Document
	Sources []SourceInput

	GenLog  *GenLog
	XrefLog *XrefLog

	Status Status

	StartTimeMillis int64
}

func NewAzadiMain(azadiCommand string, config *Config, status Status) *AzadiMain {
	return &AzadiMain{
		AzadiCommand:    azadiCommand,
		Config:          config,
		DiskInterface:   RealDiskInterface{},
		Status:          status,
		StartTimeMillis: GetTimeMillis(),
	}
}

func (a *AzadiMain) outBase() string {
	if a.Config.OutDir != "" {
		return a.Config.OutDir
	}
	return "."
}

// / Create the output directory if needed, so the logs can live there.
func (a *AzadiMain) EnsureOutDirExists() bool {
	if a.Config.OutDir != "" && !a.Config.DryRun {
		if err := a.DiskInterface.MakeDirs(a.Config.OutDir); err != nil {
			a.Status.Error("creating output directory %s: %s", a.Config.OutDir, err)
			return false
		}
	}
	return true
}

// / Open the generation and cross-reference logs, printing an error on
// / failure. In a dry run a log that does not exist yet is left closed so
// / the run creates nothing.
func (a *AzadiMain) OpenLogs() bool {
	openable := func(path string) bool {
		if !a.Config.DryRun {
			return true
		}
		_, err := a.DiskInterface.StatFile(path)
		return err == nil
	}

	if a.Config.GenLogPath != "off" {
		path := a.Config.GenLogPath
		if path == "" {
			path = filepath.Join(a.outBase(), DefaultGenLogName)
		}
		if openable(path) {
			genLog, err := OpenGenLog(path)
			if err != nil {
				a.Status.Error("opening generation log: %s", err)
				return false
			}
			a.GenLog = genLog
		}
	}
	if a.Config.XrefLogPath != "off" {
		path := a.Config.XrefLogPath
		if path == "" {
			path = filepath.Join(a.outBase(), DefaultXrefLogName)
		}
		if openable(path) {
			xrefLog, err := OpenXrefLog(path)
			if err != nil {
				a.Status.Error("opening cross-reference log: %s", err)
				return false
			}
			a.XrefLog = xrefLog
		}
	}
	return true
}

func (a *AzadiMain) Close() {
	if a.GenLog != nil {
		a.GenLog.Close()
		a.GenLog = nil
	}
	if a.XrefLog != nil {
		a.XrefLog.Close()
		a.XrefLog = nil
	}
}

// / Parse and expand every document, then run the -r invocations as if
// / they were appended to the last document.
func (a *AzadiMain) LoadDocuments(paths []string, invocations []string) bool {
	guard := newLoadGuard(a.Config.MaxLoadAverage)
	docs, sources, err := ParseAll(paths, a.Config.Markers, a.DiskInterface,
		a.Config.IncludeDirs, a.Config.Parallelism, guard)
	if err != nil {
		a.Status.Error("%s", err)
		return false
	}
	a.Docs = docs
	a.Sources = sources
	for _, doc := range docs {
		a.Status.DocumentParsed(doc.Name, len(doc.Defs), countChunkBlocks(doc))
	}

	table, err := BuildTable(docs)
	if err != nil {
		a.Status.Error("%s", err)
		return false
	}
	a.Table = table

	store, err := ExpandAll(docs, table, a.Config.Parallelism, guard)
	if err != nil {
		a.Status.Error("%s", err)
		return false
	}
	a.Store = store

	if len(invocations) > 0 {
		ex := NewExpander(table, store)
		for _, spec := range invocations {
			name, args, err := parseInvocationSpec(spec)
			if err != nil {
				a.Status.Error("%s", err)
				return false
			}
			pos := location.New("command line")
			pos.Incr()
			if err := ex.Invoke(name, args, pos); err != nil {
				a.Status.Error("%s", err)
				return false
			}
		}
	}
	return true
}

// / Resolve every file target and write the output tree.
func (a *AzadiMain) RunEmit() int {
	writer := NewSafeWriter(a.DiskInterface, a.GenLog, a.Config.Force, a.Config.Backup)
	emitter := NewEmitter(a.Store, writer, a.Status)
	emitter.SetOutDir(a.Config.OutDir)
	emitter.SetDryRun(a.Config.DryRun)
	emitter.SetWarnUnreferenced(a.Config.WarnUnreferenced)
	emitter.SetGenLog(a.GenLog)
	emitter.SetXrefLog(a.XrefLog)
	emitter.SetSources(a.Sources)

	result, err := emitter.Emit()
	if err != nil {
		a.Status.Error("%s", err)
		return 1
	}
	if len(result.Targets) == 0 {
		a.Status.Warning("documents define no file targets; nothing to write")
	}
	if a.Config.Verbose || a.Config.DryRun {
		a.Status.Info("%d new, %d updated, %d unchanged", result.Written, result.Updated, result.Unchanged)
	}
	return 0
}

// / Dump the output requested by '-d stats'.
func (a *AzadiMain) DumpMetrics() {
	g_metrics.Report()
}

func countChunkBlocks(doc *Document) int {
	n := 0
	for _, el := range doc.Elements {
		if _, ok := el.(*ChunkBlockNode); ok {
			n++
		}
	}
	return n
}

// parseInvocationSpec splits "name(a, b)" into a macro name and literal
// argument values. A bare name is a zero-argument invocation. Argument
// values are taken verbatim; commas inside values are not supported here.
func parseInvocationSpec(spec string) (string, []string, error) {
	s := strings.TrimSpace(spec)
	open := strings.IndexByte(s, '(')
	if open < 0 {
		if !isIdentifier(s) {
			return "", nil, syntaxErrorf(nil, "bad invocation '%s': expected name(arg, ...)", spec)
		}
		return s, nil, nil
	}
	name := strings.TrimSpace(s[:open])
	if !isIdentifier(name) || !strings.HasSuffix(s, ")") {
		return "", nil, syntaxErrorf(nil, "bad invocation '%s': expected name(arg, ...)", spec)
	}
	inner := s[open+1 : len(s)-1]
	if strings.TrimSpace(inner) == "" {
		return name, nil, nil
	}
	parts := strings.Split(inner, ",")
	args := make([]string, len(parts))
	for i := range parts {
		args[i] = strings.TrimSpace(parts[i])
	}
	return name, args, nil
}

func splitCommaList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func ReadFlags(args *[]string, options *Options, config *Config) int {
	opts, optind, err := getopt.Getopts(*args, "s:b:e:u:m:C:o:I:j:l:nfkd:t:vqw:g:x:r:p:Vh")
	if err != nil {
		log.Fatalln(err)
	}
	*args = (*args)[optind:]
	for _, optV := range opts {
		opt := optV.Option
		optarg := optV.Value
		switch opt {
		case 's':
			if len(optarg) != 1 {
				log.Fatalln("-s takes a single marker character")
			}
			config.Markers.Special = optarg[0]
		case 'b':
			config.Markers.Open = optarg
		case 'e':
			config.Markers.Close = optarg
		case 'u':
			config.Markers.ChunkEnd = optarg
		case 'm':
			config.Markers.CommentMarkers = splitCommaList(optarg)
		case 'C':
			options.WorkingDir = optarg
		case 'o':
			config.OutDir = optarg
		case 'I':
			config.IncludeDirs = append(config.IncludeDirs, optarg)
		case 'j':
			value, err := strconv.Atoi(optarg)
			if err != nil || value < 0 {
				log.Fatalln("invalid -j parameter")
			}
			if value > 0 {
				config.Parallelism = value
			} else {
				config.Parallelism = GetProcessorCount()
			}
		case 'l':
			value, err := strconv.ParseFloat(optarg, 64)
			if err != nil {
				log.Fatalln("-l parameter not numeric: did you mean -l 0.0?")
			}
			config.MaxLoadAverage = value
		case 'n':
			config.DryRun = true
		case 'f':
			config.Force = true
		case 'k':
			config.Backup = true
		case 'd':
			if !DebugEnable(optarg) {
				return 1
			}
		case 't':
			options.Tool = ChooseTool(optarg)
			if options.Tool == nil {
				return 0
			}
		case 'v':
			config.Verbose = true
		case 'q':
			config.Quiet = true
		case 'w':
			if !WarningEnable(optarg, config) {
				return 1
			}
		case 'g':
			config.GenLogPath = optarg
		case 'x':
			config.XrefLogPath = optarg
		case 'r':
			options.Invocations = append(options.Invocations, optarg)
		case 'p':
			value, err := strconv.ParseFloat(optarg, 64)
			if err != nil || value <= 0 {
				log.Fatalln("-p parameter must be a positive number of seconds")
			}
			config.WatchInterval = value
		case 'V':
			fmt.Printf("%s\n", kAzadiVersion)
			return 0
		default: // case 'h':
			UsageMain(config)
			return 1
		}
	}
	if err := config.Markers.Validate(); err != nil {
		log.Fatalln(err)
	}
	return -1
}

// / Print usage information.
func UsageMain(config *Config) {
	fmt.Fprintf(os.Stderr,
		"usage: azadi [options] document... [-- tool args]\n"+
			"\n"+
			"tangles macro-generated chunks out of literate documents and writes\n"+
			"the file targets they define. \"-\" reads a document from stdin.\n"+
			"\n"+
			"options:\n"+
			"  -V       print azadi version (\"%s\")\n"+
			"  -v       verbose output\n"+
			"  -q       don't show progress status\n"+
			"\n"+
			"  -C DIR   change to DIR before doing anything else\n"+
			"  -o DIR   write file targets under DIR [default=gen]\n"+
			"  -I DIR   also search DIR for included documents (repeatable)\n"+
			"\n"+
			"  -s CHAR  macro marker character [default=%%]\n"+
			"  -b STR   chunk open delimiter [default=<[]\n"+
			"  -e STR   chunk close delimiter [default=]>]\n"+
			"  -u STR   chunk terminator line [default=$$]\n"+
			"  -m LIST  comment markers, comma separated [default=#,//]\n"+
			"\n"+
			"  -j N     parse and expand N documents in parallel (0 means one per CPU)\n"+
			"           [default=%d on this system]\n"+
			"  -l N     do not start new work if the load average is greater than N\n"+
			"  -n       dry run (resolve and check everything, write nothing)\n"+
			"  -f       overwrite targets that were modified since the last run\n"+
			"  -k       keep a .bak copy when -f overwrites a modified target\n"+
			"  -r SPEC  run macro invocation SPEC after the documents,\n"+
			"           e.g. -r 'pymodule(app, settings)' (repeatable)\n"+
			"  -p SECS  watch the documents and retangle when they change\n"+
			"\n"+
			"  -g FILE  generation log [default=OUT/%s], 'off' disables\n"+
			"  -x FILE  cross-reference log [default=OUT/%s], 'off' disables\n"+
			"\n"+
			"  -d MODE  enable debugging (use '-d list' to list modes)\n"+
			"  -t TOOL  run a subtool (use '-t list' to list subtools)\n"+
			"  -w FLAG  adjust warnings (use '-w list' to list warnings)\n",
		kAzadiVersion, config.Parallelism, DefaultGenLogName, DefaultXrefLogName)
}

func ChooseTool(toolName string) *Tool {
	kTools := []Tool{
		{"clean", "remove generated files recorded in the generation log",
			RunAfterLogs, (*AzadiMain).ToolClean},
		{"deps", "show which documents each generated file came from",
			RunAfterLogs, (*AzadiMain).ToolDeps},
		{"xref", "show the chunk references recorded for a run",
			RunAfterLogs, (*AzadiMain).ToolXref},
		{"macros", "list defined macros and their parameters",
			RunAfterExpand, (*AzadiMain).ToolMacros},
		{"chunks", "list chunks, or print the resolved text of the named ones",
			RunAfterExpand, (*AzadiMain).ToolChunks},
		{"targets", "list the file targets the documents define",
			RunAfterExpand, (*AzadiMain).ToolTargets},
		{"graph", "output graphviz dot file for the chunk reference graph",
			RunAfterExpand, (*AzadiMain).ToolGraph},
	}

	if toolName == "list" {
		fmt.Printf("azadi subtools:\n")
		for _, tool := range kTools {
			if tool.Desc != "" {
				fmt.Printf("%9s  %s\n", tool.Name, tool.Desc)
			}
		}
		return nil
	}

	for i := range kTools {
		if kTools[i].Name == toolName {
			return &kTools[i]
		}
	}

	words := make([]string, 0, len(kTools))
	for _, tool := range kTools {
		words = append(words, tool.Name)
	}
	if suggestion := spellcheckString(toolName, words); suggestion != "" {
		log.Fatalf("unknown tool '%s', did you mean '%s'?", toolName, suggestion)
	} else {
		log.Fatalf("unknown tool '%s'", toolName)
	}
	return nil // Not reached.
}

// / Enable a debugging mode. Returns false if azadi should exit instead
// / of continuing.
func DebugEnable(name string) bool {
	if name == "list" {
		fmt.Printf("debugging modes:\n" +
			"  stats    print operation counts/timing info\n" +
			"  explain  explain why each file target was or was not rewritten\n" +
			"multiple modes can be enabled via -d FOO -d BAR\n")
		return false
	} else if name == "stats" {
		g_metrics = NewMetrics()
		return true
	} else if name == "explain" {
		g_explanations = NewExplanations()
		return true
	} else {
		suggestion := spellcheckString(name, []string{"stats", "explain"})
		if suggestion != "" {
			Error("unknown debug setting '%s', did you mean '%s'?", name, suggestion)
		} else {
			Error("unknown debug setting '%s'", name)
		}
		return false
	}
}

// / Set a warning flag. Returns false if azadi should exit instead of
// / continuing.
func WarningEnable(name string, config *Config) bool {
	if name == "list" {
		fmt.Printf("warning flags:\n" +
			"  unused={warn,quiet}  chunk defined but never referenced\n")
		return false
	} else if name == "unused=warn" {
		config.WarnUnreferenced = true
		return true
	} else if name == "unused=quiet" {
		config.WarnUnreferenced = false
		return true
	} else {
		suggestion := spellcheckString(name, []string{"unused=warn", "unused=quiet"})
		if suggestion != "" {
			Error("unknown warning flag '%s', did you mean '%s'?", name, suggestion)
		} else {
			Error("unknown warning flag '%s'", name)
		}
		return false
	}
}

func (a *AzadiMain) ToolMacros(options *Options, args []string) int {
	for _, name := range a.Table.Names() {
		def, err := a.Table.Lookup(name, nil)
		if err != nil {
			continue
		}
		fmt.Printf("%s(%s)\n", name, strings.Join(def.Params, ", "))
	}
	return 0
}

func (a *AzadiMain) ToolChunks(options *Options, args []string) int {
	if len(args) == 0 {
		for _, name := range a.Store.Names() {
			c, err := a.Store.Get(name, nil)
			if err != nil {
				continue
			}
			target := ""
			if c.IsFileTarget {
				target = " -> " + c.FilePath
			}
			fmt.Printf("%s (%d fragments)%s\n", name, len(c.Fragments), target)
		}
		return 0
	}
	resolver := NewResolver(a.Store)
	for _, name := range args {
		text, err := resolver.Resolve(name, nil)
		if err != nil {
			a.Status.Error("%s", err)
			return 1
		}
		fmt.Print(text)
	}
	return 0
}

func (a *AzadiMain) ToolTargets(options *Options, args []string) int {
	for _, c := range a.Store.FileTargets() {
		fmt.Printf("%s: %s\n", targetOutputPath(a.Config.OutDir, c.FilePath), c.Name)
	}
	return 0
}

func (a *AzadiMain) ToolDeps(options *Options, args []string) int {
	if a.GenLog == nil {
		a.Status.Error("generation log is disabled")
		return 1
	}
	entries, err := a.GenLog.All()
	if err != nil {
		a.Status.Error("%s", err)
		return 1
	}
	for _, entry := range entries {
		if len(args) > 0 && !slices.Contains(args, entry.Path) {
			continue
		}
		fmt.Printf("%s: #sources %d, run %s, hash %.12s\n",
			entry.Path, len(entry.Sources), entry.RunID, entry.ContentHash)
		for _, src := range entry.Sources {
			fmt.Printf("    %s\n", src.FilePath)
		}
		fmt.Printf("\n")
	}
	return 0
}

func (a *AzadiMain) ToolXref(options *Options, args []string) int {
	if a.XrefLog == nil {
		a.Status.Error("cross-reference log is disabled")
		return 1
	}
	runID := ""
	if len(args) > 0 {
		runID = args[0]
	} else {
		latest, err := a.XrefLog.LatestRun()
		if err != nil {
			a.Status.Error("%s", err)
			return 1
		}
		runID = latest
	}
	if runID == "" {
		a.Status.Warning("cross-reference log is empty")
		return 0
	}
	edges, err := a.XrefLog.Edges(runID)
	if err != nil {
		a.Status.Error("%s", err)
		return 1
	}
	fmt.Printf("run %s:\n", runID)
	for _, edge := range edges {
		fmt.Printf("%s -> %s\n", edge.Parent, edge.Child)
	}
	return 0
}
