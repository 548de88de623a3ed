package model

import "gorm.io/plugin/soft_delete"

// GenEntry records one generated file: the target path, the chunk that
// produced it, and the content hash used to detect manual edits before
// the next run overwrites it. One live row per path; rows for files
// removed by the clean tool are soft-deleted so history survives.
type GenEntry struct {
	ID          int64  `json:"id" gorm:"primarykey"`
	Path        string `json:"path" gorm:"index:idx_gen_path,unique"`
	ChunkName   string `json:"chunk_name"`
	ContentHash string `json:"content_hash" gorm:"index:idx_gen_hash"`
	Size        int64  `json:"size"`
	RunID       string `json:"run_id" gorm:"index:idx_gen_run"`
	// Source documents that contributed chunk content to this file.
	Sources   []*SourceEntry `json:"sources" gorm:"ForeignKey:GenID;AssociationForeignKey:ID"`
	CreatedAt int64          `json:"created_at"`
	UpdatedAt int64          `json:"updated_at"`
	/* 0 false 1 true */
	Deleted soft_delete.DeletedAt `gorm:"softDelete:flag;default:0"`
}

func (GenEntry) TableName() string {
	return "gen_entry"
}
