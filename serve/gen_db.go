package main

import (
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"github.com/giannifer7/azadi/model"
)

var genDB *gorm.DB

func OpenGenDB(dbPath string) (err error) {
	genDB, err = gorm.Open(sqlite.Open(dbPath), &gorm.Config{})
	return
}

func CloseGenDB() {
	if genDB == nil {
		return
	}
	if sqlDB, err := genDB.DB(); err == nil {
		sqlDB.Close()
	}
}

// LiveEntries returns the generated files the tangle considers current,
// with their source documents, in path order.
func LiveEntries() ([]*model.GenEntry, error) {
	var items []*model.GenEntry
	if err := genDB.Model(&model.GenEntry{}).Preload("Sources").
		Order("path").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// MarkVanished soft-deletes the entries for artifacts that disappeared
// from the served tree.
func MarkVanished(ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	return genDB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("`gen_id` in ?", ids).
			Delete(&model.SourceEntry{}).Error; err != nil {
			return err
		}
		return tx.Delete(&model.GenEntry{}, ids).Error
	})
}

// FindExpiredWithLimit returns soft-deleted entries whose last update is
// older than cutoff, at most limit of them.
func FindExpiredWithLimit(cutoff int64, limit int) ([]*model.GenEntry, error) {
	var expired []*model.GenEntry
	if err := genDB.Unscoped().Model(&model.GenEntry{}).
		Where("`deleted`=1 and `updated_at` < ?", cutoff).
		Limit(limit).Find(&expired).Error; err != nil {
		return nil, err
	}
	return expired, nil
}

// PurgeExpired hard-deletes the given soft-deleted entries and their
// source rows.
func PurgeExpired(ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	return genDB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Unscoped().Where("`gen_id` in ?", ids).
			Delete(&model.SourceEntry{}).Error; err != nil {
			return err
		}
		return tx.Unscoped().Delete(&model.GenEntry{}, ids).Error
	})
}
