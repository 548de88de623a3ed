package main

import (
	"errors"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"github.com/giannifer7/azadi/model"
)

// DefaultGenLogName is the generation log file created next to the output
// tree unless -g points elsewhere.
const DefaultGenLogName = ".azadi_gen.db"

// GenLog is the persistent record of what the tangler wrote where. The
// safe writer consults it before overwriting anything and the clean tool
// walks it to remove generated files.
type GenLog struct {
	db   *gorm.DB
	path string
}

func OpenGenLog(path string) (*GenLog, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		return nil, ioErrorf("open", path, err)
	}
	if err := db.AutoMigrate(&model.GenEntry{}, &model.SourceEntry{}); err != nil {
		return nil, ioErrorf("migrate", path, err)
	}
	return &GenLog{db: db, path: path}, nil
}

func (l *GenLog) Close() error {
	sqlDB, err := l.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Lookup returns the live entry for a generated path, or ok=false when
// the path was never recorded (or was cleaned).
func (l *GenLog) Lookup(path string) (*model.GenEntry, bool, error) {
	var entry model.GenEntry
	err := l.db.Model(&model.GenEntry{}).Where("`path`=?", path).First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return &entry, true, nil
}

// Record upserts the entry for entry.Path and replaces its source rows.
// A soft-deleted row for the same path is revived rather than duplicated.
func (l *GenLog) Record(entry *model.GenEntry) error {
	return l.db.Transaction(func(tx *gorm.DB) error {
		sources := entry.Sources
		entry.Sources = nil

		var old model.GenEntry
		err := tx.Unscoped().Where("`path`=?", entry.Path).First(&old).Error
		switch {
		case err == nil:
			entry.ID = old.ID
			if err := tx.Unscoped().Where("`gen_id`=?", old.ID).
				Delete(&model.SourceEntry{}).Error; err != nil {
				return err
			}
			if err := tx.Unscoped().Model(&model.GenEntry{}).Where("`id`=?", old.ID).
				Updates(map[string]any{
					"chunk_name":   entry.ChunkName,
					"content_hash": entry.ContentHash,
					"size":         entry.Size,
					"run_id":       entry.RunID,
					"deleted":      0,
				}).Error; err != nil {
				return err
			}
		case errors.Is(err, gorm.ErrRecordNotFound):
			if err := tx.Create(entry).Error; err != nil {
				return err
			}
		default:
			return err
		}

		for i := range sources {
			sources[i].GenID = entry.ID
		}
		if len(sources) > 0 {
			if err := tx.Create(&sources).Error; err != nil {
				return err
			}
		}
		entry.Sources = sources
		return nil
	})
}

// All returns the live entries in path order with their sources loaded.
func (l *GenLog) All() ([]*model.GenEntry, error) {
	var items []*model.GenEntry
	if err := l.db.Model(&model.GenEntry{}).Preload("Sources").
		Order("path").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// MarkDeleted soft-deletes the entry for a path the clean tool removed.
func (l *GenLog) MarkDeleted(path string) error {
	var entry model.GenEntry
	err := l.db.Where("`path`=?", path).First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	return l.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("`gen_id`=?", entry.ID).Delete(&model.SourceEntry{}).Error; err != nil {
			return err
		}
		return tx.Delete(&model.GenEntry{}, entry.ID).Error
	})
}
