package model

// XrefEdge is one recorded splice: during resolution of a run, parent
// pulled child in at position ord. Edges are written by the tangle and
// only ever read back, so unlike the generation entries they carry no
// soft-delete column; stale runs are dropped whole.
type XrefEdge struct {
	ID     int64  `json:"id"`
	RunID  string `json:"run_id"`
	Parent string `json:"parent"`
	Child  string `json:"child"`
	Ord    int64  `json:"ord"`
}

// XrefRun summarizes one recorded run.
type XrefRun struct {
	RunID string `json:"run_id"`
	Edges int64  `json:"edges"`
}
