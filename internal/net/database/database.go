package database

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"tickle-go/internal/helper"
	"tickle-go/internal/models"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var ErrNotFound = errors.New("no history recorded")

type Database struct {
	DB    *gorm.DB
	mutex sync.RWMutex
}

func InitializeDatabase(path string) (*Database, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database connection: %w", err)
	}

	// A single writer keeps sqlite free of "database is locked" errors.
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetConnMaxIdleTime(30 * time.Minute)

	if err := db.AutoMigrate(&models.CheckRecord{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database schema: %w", err)
	}

	return &Database{DB: db}, nil
}

// InitializeTestDatabase opens a private in-memory database.
func InitializeTestDatabase() (*Database, error) {
	return InitializeDatabase(":memory:")
}

func (db *Database) Close() error {
	sqlDB, err := db.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// SaveResults stores one record per result, all sharing runID and at.
func (db *Database) SaveResults(runID string, at time.Time, results []models.Result) error {
	if len(results) == 0 {
		return nil
	}
	if runID == "" {
		runID = helper.GenerateRandomID()
	}

	records := make([]models.CheckRecord, 0, len(results))
	for _, r := range results {
		records = append(records, models.CheckRecord{
			RunID:      runID,
			Name:       r.Name,
			Status:     r.Status,
			Detail:     r.Detail,
			DurationMS: r.Duration.Milliseconds(),
			CheckedAt:  at.UTC(),
		})
	}

	db.mutex.Lock()
	defer db.mutex.Unlock()

	return db.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&records).Error; err != nil {
			return fmt.Errorf("failed to save results: %w", err)
		}
		return nil
	})
}

// LatestRecords returns the most recent record of every site, keyed by name.
func (db *Database) LatestRecords() (map[string]models.CheckRecord, error) {
	db.mutex.RLock()
	defer db.mutex.RUnlock()

	latest := db.DB.Model(&models.CheckRecord{}).
		Select("name, MAX(checked_at) AS checked_at").
		Group("name")

	var records []models.CheckRecord
	err := db.DB.
		Joins("JOIN (?) AS latest ON latest.name = check_records.name AND latest.checked_at = check_records.checked_at", latest).
		Order("check_records.name").
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query latest results: %w", err)
	}

	result := make(map[string]models.CheckRecord, len(records))
	for _, r := range records {
		if _, ok := result[r.Name]; !ok {
			result[r.Name] = r
		}
	}

	return result, nil
}

// Summaries returns the latest status and check counts of every site with
// history, ordered by name.
func (db *Database) Summaries() ([]models.SiteSummary, error) {
	latest, err := db.LatestRecords()
	if err != nil {
		return nil, err
	}

	var counts []struct {
		Name     string
		Checks   int64
		UpChecks int64
	}

	db.mutex.RLock()
	err = db.DB.Model(&models.CheckRecord{}).
		Select("name, COUNT(*) AS checks, SUM(CASE WHEN status = ? THEN 1 ELSE 0 END) AS up_checks", models.StatusUp).
		Group("name").
		Order("name").
		Scan(&counts).Error
	db.mutex.RUnlock()
	if err != nil {
		return nil, fmt.Errorf("failed to count results: %w", err)
	}

	summaries := make([]models.SiteSummary, 0, len(counts))
	for _, c := range counts {
		record := latest[c.Name]
		summaries = append(summaries, models.SiteSummary{
			Name:      c.Name,
			Status:    record.Status,
			Detail:    record.Detail,
			CheckedAt: record.CheckedAt,
			Checks:    c.Checks,
			UpChecks:  c.UpChecks,
		})
	}

	return summaries, nil
}

// History returns the newest records of one site, newest first. A limit of
// zero or less returns every record.
func (db *Database) History(name string, limit int) (*models.SiteHistory, error) {
	db.mutex.RLock()
	defer db.mutex.RUnlock()

	query := db.DB.Where("name = ?", name).Order("checked_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}

	var records []models.CheckRecord
	if err := query.Find(&records).Error; err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}

	if len(records) == 0 {
		return nil, fmt.Errorf("%s: %w", name, ErrNotFound)
	}

	return &models.SiteHistory{Name: name, Histories: records}, nil
}
