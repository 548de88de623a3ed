package model

import "gorm.io/plugin/soft_delete"

// SourceEntry is one input document that fed a generated file.
type SourceEntry struct {
	ID int64 `gorm:"primarykey"`
	// Document path as given on the command line.
	FilePath string
	// Content hash of the document at the time of the run.
	FileHash string
	// Generated file this document contributed to.
	GenID int64 `json:"gen_id" gorm:"index:idx_gen_id"`
	/* 0 false 1 true */
	Deleted soft_delete.DeletedAt `gorm:"softDelete:flag;default:0"`
}

func (SourceEntry) TableName() string {
	return "source_entry"
}
