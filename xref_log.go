package main

import (
	"errors"
	"os"
	"time"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/giannifer7/azadi/model"
)

// DefaultXrefLogName is the cross-reference log file created next to the
// output tree unless -x points elsewhere.
const DefaultXrefLogName = ".azadi_xref.db"

// XrefLog stores the chunk-reference edges observed while resolving file
// targets, one batch per run, so the xref tool and the serve daemon can
// answer which chunks feed which outputs without re-running the tangle.
type XrefLog struct {
	conn       *sqlite.Conn
	stmtInsert *sqlite.Stmt
	stmtEdges  *sqlite.Stmt
	stmtLatest *sqlite.Stmt
	stmtRuns   *sqlite.Stmt
	runID      string
	ord        int64
}

func OpenXrefLog(dbPath string) (*XrefLog, error) {
	needCreateTable := false
	if _, err1 := os.Stat(dbPath); errors.Is(err1, os.ErrNotExist) {
		needCreateTable = true
	} else if err1 != nil {
		return nil, err1
	}
	flag := sqlite.OpenReadWrite
	if needCreateTable {
		flag |= sqlite.OpenCreate
	}
	conn, err := sqlite.OpenConn(dbPath, flag)
	if err != nil {
		return nil, err
	}
	if needCreateTable {
		stmt, err := conn.Prepare("CREATE TABLE IF NOT EXISTS xref_edge (`id` INTEGER PRIMARY KEY, " +
			"`run_id` TEXT, `parent` TEXT, `child` TEXT, `ord` INTEGER, `created_at` INTEGER);")
		if err != nil {
			return nil, err
		}
		if _, err := stmt.Step(); err != nil {
			return nil, err
		}
		stmt, err = conn.Prepare("CREATE INDEX IF NOT EXISTS idx_xref_run ON xref_edge (`run_id`);")
		if err != nil {
			return nil, err
		}
		if _, err := stmt.Step(); err != nil {
			return nil, err
		}
	}
	x := &XrefLog{conn: conn}
	x.stmtInsert, err = conn.Prepare("INSERT INTO xref_edge (`run_id`, `parent`, `child`, `ord`, `created_at`) " +
		"VALUES ($run_id, $parent, $child, $ord, $created_at);")
	if err != nil {
		return nil, err
	}
	x.stmtEdges, err = conn.Prepare("SELECT `id`, `run_id`, `parent`, `child`, `ord` FROM xref_edge " +
		"WHERE `run_id` = $run_id ORDER BY `ord`;")
	if err != nil {
		return nil, err
	}
	x.stmtLatest, err = conn.Prepare("SELECT `run_id` FROM xref_edge ORDER BY `id` DESC LIMIT 1;")
	if err != nil {
		return nil, err
	}
	x.stmtRuns, err = conn.Prepare("SELECT `run_id`, max(`id`) as `m`, count(*) as `edges` FROM xref_edge " +
		"GROUP BY `run_id` ORDER BY `m` DESC LIMIT $limit;")
	if err != nil {
		return nil, err
	}
	return x, nil
}

func (x *XrefLog) Close() error {
	return x.conn.Close()
}

// BeginRun starts a new edge batch; Record attributes edges to it.
func (x *XrefLog) BeginRun(runID string) {
	x.runID = runID
	x.ord = 0
}

func (x *XrefLog) Record(parent, child string) error {
	defer x.stmtInsert.Reset()
	x.stmtInsert.SetText("$run_id", x.runID)
	x.stmtInsert.SetText("$parent", parent)
	x.stmtInsert.SetText("$child", child)
	x.stmtInsert.SetInt64("$ord", x.ord)
	x.stmtInsert.SetInt64("$created_at", time.Now().Unix())
	x.ord++
	_, err := x.stmtInsert.Step()
	return err
}

// Edges returns the splices of one run in splice order.
func (x *XrefLog) Edges(runID string) ([]model.XrefEdge, error) {
	defer x.stmtEdges.Reset()
	x.stmtEdges.SetText("$run_id", runID)
	var edges []model.XrefEdge
	for {
		hasRow, err := x.stmtEdges.Step()
		if err != nil {
			return nil, err
		}
		if !hasRow {
			break
		}
		edges = append(edges, model.XrefEdge{
			ID:     x.stmtEdges.GetInt64("id"),
			RunID:  x.stmtEdges.GetText("run_id"),
			Parent: x.stmtEdges.GetText("parent"),
			Child:  x.stmtEdges.GetText("child"),
			Ord:    x.stmtEdges.GetInt64("ord"),
		})
	}
	return edges, nil
}

// LatestRun returns the most recently recorded run id, or "" when the log
// is empty.
func (x *XrefLog) LatestRun() (string, error) {
	defer x.stmtLatest.Reset()
	hasRow, err := x.stmtLatest.Step()
	if err != nil {
		return "", err
	}
	if !hasRow {
		return "", nil
	}
	return x.stmtLatest.GetText("run_id"), nil
}

// Runs returns up to limit recent runs, newest first.
func (x *XrefLog) Runs(limit int64) ([]model.XrefRun, error) {
	defer x.stmtRuns.Reset()
	x.stmtRuns.SetInt64("$limit", limit)
	var runs []model.XrefRun
	for {
		hasRow, err := x.stmtRuns.Step()
		if err != nil {
			return nil, err
		}
		if !hasRow {
			break
		}
		runs = append(runs, model.XrefRun{
			RunID: x.stmtRuns.GetText("run_id"),
			Edges: x.stmtRuns.GetInt64("edges"),
		})
	}
	return runs, nil
}

// DeleteRun drops every edge of one run.
func (x *XrefLog) DeleteRun(runID string) error {
	return sqlitex.ExecuteTransient(x.conn, "DELETE FROM xref_edge WHERE `run_id` = $run_id;", &sqlitex.ExecOptions{
		Named: map[string]any{"$run_id": runID},
		ResultFunc: func(stmt *sqlite.Stmt) error {
			return nil
		},
	})
}
