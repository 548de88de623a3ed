package main

import (
	"zombiezen.com/go/sqlite"

	"github.com/giannifer7/azadi/model"
)

var (
	xrefConn   *sqlite.Conn = nil
	stmtEdges  *sqlite.Stmt = nil
	stmtLatest *sqlite.Stmt = nil
	stmtRuns   *sqlite.Stmt = nil
)

func OpenXrefDB(dbPath string) (err error) {
	xrefConn, err = sqlite.OpenConn(dbPath, sqlite.OpenReadWrite)
	if err != nil {
		return err
	}
	stmtEdges, err = xrefConn.Prepare("SELECT `id`, `run_id`, `parent`, `child`, `ord` FROM xref_edge " +
		"WHERE `run_id` = $run_id ORDER BY `ord`;")
	if err != nil {
		return err
	}
	stmtLatest, err = xrefConn.Prepare("SELECT `run_id` FROM xref_edge ORDER BY `id` DESC LIMIT 1;")
	if err != nil {
		return err
	}
	stmtRuns, err = xrefConn.Prepare("SELECT `run_id`, max(`id`) as `m`, count(*) as `edges` FROM xref_edge " +
		"GROUP BY `run_id` ORDER BY `m` DESC LIMIT $limit;")
	return err
}

func CloseXrefDB() (err error) {
	if xrefConn == nil {
		return nil
	}
	err = xrefConn.Close()
	return
}

// XrefEdges returns the splices of one run in splice order.
func XrefEdges(runID string) ([]model.XrefEdge, error) {
	defer stmtEdges.Reset()
	stmtEdges.SetText("$run_id", runID)
	var edges []model.XrefEdge
	for {
		hasRow, err := stmtEdges.Step()
		if err != nil {
			return nil, err
		}
		if !hasRow {
			break
		}
		edges = append(edges, model.XrefEdge{
			ID:     stmtEdges.GetInt64("id"),
			RunID:  stmtEdges.GetText("run_id"),
			Parent: stmtEdges.GetText("parent"),
			Child:  stmtEdges.GetText("child"),
			Ord:    stmtEdges.GetInt64("ord"),
		})
	}
	return edges, nil
}

// LatestXrefRun returns the most recently recorded run id, or "" when the
// log is empty.
func LatestXrefRun() (string, error) {
	defer stmtLatest.Reset()
	hasRow, err := stmtLatest.Step()
	if err != nil {
		return "", err
	}
	if !hasRow {
		return "", nil
	}
	return stmtLatest.GetText("run_id"), nil
}

// XrefRuns returns up to limit recent runs, newest first.
func XrefRuns(limit int64) ([]model.XrefRun, error) {
	defer stmtRuns.Reset()
	stmtRuns.SetInt64("$limit", limit)
	var runs []model.XrefRun
	for {
		hasRow, err := stmtRuns.Step()
		if err != nil {
			return nil, err
		}
		if !hasRow {
			break
		}
		runs = append(runs, model.XrefRun{
			RunID: stmtRuns.GetText("run_id"),
			Edges: stmtRuns.GetInt64("edges"),
		})
	}
	return runs, nil
}
