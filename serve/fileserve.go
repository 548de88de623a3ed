package main

import (
	"encoding/json"
	"expvar"
	"log"
	"net/http"
	"time"

	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/expvarhandler"
)

// Various counters - see https://pkg.go.dev/expvar for details.
var (
	// Counter for total number of artifact requests.
	fsCalls = expvar.NewInt("fsCalls")

	// Counters for various response status codes.
	fsOKResponses          = expvar.NewInt("fsOKResponses")
	fsNotModifiedResponses = expvar.NewInt("fsNotModifiedResponses")
	fsNotFoundResponses    = expvar.NewInt("fsNotFoundResponses")
	fsOtherResponses       = expvar.NewInt("fsOtherResponses")

	// Total size in bytes for OK response bodies served.
	fsResponseBodyBytes = expvar.NewInt("fsResponseBodyBytes")

	metadataCalls = expvar.NewInt("metadataCalls")
	prunedRows    = expvar.NewInt("prunedRows")
)

func updateFSCounters(ctx *fasthttp.RequestCtx) {
	fsCalls.Add(1)

	resp := &ctx.Response
	switch resp.StatusCode() {
	case fasthttp.StatusOK:
		fsOKResponses.Add(1)
		fsResponseBodyBytes.Add(int64(resp.Header.ContentLength()))
	case fasthttp.StatusNotModified:
		fsNotModifiedResponses.Add(1)
	case fasthttp.StatusNotFound:
		fsNotFoundResponses.Add(1)
	default:
		fsOtherResponses.Add(1)
	}
}

func writeJSON(ctx *fasthttp.RequestCtx, v any) {
	metadataCalls.Add(1)
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		ctx.Error(err.Error(), http.StatusInternalServerError)
		return
	}
	ctx.SetContentType("application/json; charset=utf-8")
	ctx.SetBody(data)
}

// HandleTargets lists every live generated file with its chunk, hash, and
// source documents.
func HandleTargets(ctx *fasthttp.RequestCtx) {
	entries, err := LiveEntries()
	if err != nil {
		ctx.Error(err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(ctx, entries)
}

// HandleChunks maps file-target chunk names to the paths they produced.
func HandleChunks(ctx *fasthttp.RequestCtx) {
	entries, err := LiveEntries()
	if err != nil {
		ctx.Error(err.Error(), http.StatusInternalServerError)
		return
	}
	chunks := make(map[string]string, len(entries))
	for _, entry := range entries {
		chunks[entry.ChunkName] = entry.Path
	}
	writeJSON(ctx, chunks)
}

// HandleXref returns the chunk-reference edges of one run; ?run= selects
// a run id, default is the latest recorded run.
func HandleXref(ctx *fasthttp.RequestCtx) {
	runID := string(ctx.QueryArgs().Peek("run"))
	if runID == "" {
		latest, err := LatestXrefRun()
		if err != nil {
			ctx.Error(err.Error(), http.StatusInternalServerError)
			return
		}
		runID = latest
	}
	edges, err := XrefEdges(runID)
	if err != nil {
		ctx.Error(err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(ctx, edges)
}

// HandleRuns lists recent tangle runs recorded in the xref log.
func HandleRuns(ctx *fasthttp.RequestCtx) {
	runs, err := XrefRuns(50)
	if err != nil {
		ctx.Error(err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(ctx, runs)
}

func ServeFiles(addr, rootDir string, compress, byteRange bool) {
	// Setup FS handler over the generated tree.
	fs := &fasthttp.FS{
		Root:               rootDir,
		IndexNames:         []string{"index.html"},
		GenerateIndexPages: true,
		Compress:           compress,
		AcceptByteRange:    byteRange,
	}
	fsHandler := fs.NewRequestHandler()
	// Create RequestHandler serving server stats on /stats, log metadata
	// on /targets, /chunks, /xref and /runs, and generated files on other
	// requested paths.
	// /stats output may be filtered using regexps. For example:
	//
	//   * /stats?r=fs will show only stats (expvars) containing 'fs'
	//     in their names.
	requestHandler := func(ctx *fasthttp.RequestCtx) {
		switch string(ctx.Path()) {
		case "/stats":
			expvarhandler.ExpvarHandler(ctx)
		case "/targets":
			HandleTargets(ctx)
		case "/chunks":
			HandleChunks(ctx)
		case "/xref":
			HandleXref(ctx)
		case "/runs":
			HandleRuns(ctx)
		default:
			fsHandler(ctx)
			updateFSCounters(ctx)
		}
	}
	// Start HTTP server.
	if len(addr) > 0 {
		log.Printf("Starting HTTP server on %q", addr)
		server := &fasthttp.Server{
			Handler:      requestHandler,
			ReadTimeout:  15 * time.Minute,
			WriteTimeout: 15 * time.Minute,
			Concurrency:  256 * 1024,
		}
		if err := server.ListenAndServe(addr); err != nil {
			log.Fatalf("error in ListenAndServe: %v", err)
		}
	}
}
