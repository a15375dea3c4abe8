package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/himanishpuri/PerfectPitch/internal/model"
	"github.com/himanishpuri/PerfectPitch/pkg/perfectpitch"
	"github.com/himanishpuri/PerfectPitch/pkg/utils"
	"github.com/vmihailenco/msgpack/v5"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const DefaultDBFile = "perfectpitch.sqlite3"
const errDBClientNil = "db client is nil"

// AttrSampleRate is the attribute holding the sample rate every stored
// waveform was resampled to.
const AttrSampleRate = "sample_rate"

type DBClient struct {
	DB *gorm.DB
	db *sql.DB
}

type Attribute struct {
	Name  string `gorm:"primaryKey;type:varchar(64)"`
	Value string
}

// Example is one stored training example. Array columns hold msgpack blobs.
type Example struct {
	ID          string `gorm:"primaryKey;type:varchar(36)"`
	Key         string `gorm:"uniqueIndex:idx_example_key" json:"key"`
	Audio       []byte `json:"-"`
	VelocityMin int    `json:"velocity_min"`
	VelocityMax int    `json:"velocity_max"`
	Pitches     []byte `json:"-"`
	Intervals   []byte `json:"-"`
	Velocities  []byte `json:"-"`
	NumSamples  int    `json:"num_samples"`
	NumNotes    int    `json:"num_notes"`
	CreatedAt   time.Time
}

func NewDBClient() (*DBClient, error) {
	dbPath := os.Getenv("PERFECTPITCH_DB_PATH")
	if dbPath == "" {
		dbPath = DefaultDBFile
	}
	return NewDBClientWithPath(dbPath)
}

// NewDBClientWithPath opens the store at dbPath, creating the file and its
// directory when missing.
func NewDBClientWithPath(dbPath string) (*DBClient, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil && !os.IsExist(err) {
		if filepath.Dir(dbPath) != "." {
			return nil, fmt.Errorf("creating db dir: %w", err)
		}
	}

	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	}

	db, err := gorm.Open(sqlite.Open(dbPath), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("getting sql.DB from gorm: %w", err)
	}

	sqlDB.SetMaxOpenConns(4)
	sqlDB.SetMaxIdleConns(2)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := db.AutoMigrate(&Attribute{}, &Example{}); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("auto migrate: %w", err)
	}

	return &DBClient{DB: db, db: sqlDB}, nil
}

// Open opens an existing store for reading. Each worker should hold its own
// client.
func Open(dbPath string) (*DBClient, error) {
	if _, err := os.Stat(dbPath); err != nil {
		return nil, fmt.Errorf("opening store %s: %w", dbPath, err)
	}
	return NewDBClientWithPath(dbPath)
}

func (c *DBClient) Close() error {
	if c == nil || c.db == nil {
		return nil
	}
	return c.db.Close()
}

func (c *DBClient) SetSampleRate(rate int) error {
	if c == nil || c.DB == nil {
		return errors.New(errDBClientNil)
	}
	attr := Attribute{Name: AttrSampleRate, Value: strconv.Itoa(rate)}
	if err := c.DB.Save(&attr).Error; err != nil {
		return fmt.Errorf("saving sample rate: %w", err)
	}
	return nil
}

// SampleRate returns the recorded sample rate. ok is false when the store
// has none.
func (c *DBClient) SampleRate() (rate int, ok bool, err error) {
	if c == nil || c.DB == nil {
		return 0, false, errors.New(errDBClientNil)
	}
	var attr Attribute
	err = c.DB.Where("name = ?", AttrSampleRate).First(&attr).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("querying sample rate: %w", err)
	}
	rate, err = strconv.Atoi(attr.Value)
	if err != nil {
		return 0, false, fmt.Errorf("%w: bad sample_rate attribute %q", perfectpitch.ErrConfigMismatch, attr.Value)
	}
	return rate, true, nil
}

func encodeExample(ex *model.RawExample) (*Example, error) {
	row := &Example{
		Key:         ex.Key,
		VelocityMin: ex.VelocityMin,
		VelocityMax: ex.VelocityMax,
		NumSamples:  len(ex.Audio),
		NumNotes:    len(ex.Notes.Pitches),
	}
	var err error
	if row.Audio, err = msgpack.Marshal([]float32(ex.Audio)); err != nil {
		return nil, fmt.Errorf("encoding audio: %w", err)
	}
	if row.Pitches, err = msgpack.Marshal(ex.Notes.Pitches); err != nil {
		return nil, fmt.Errorf("encoding pitches: %w", err)
	}
	if row.Intervals, err = msgpack.Marshal(ex.Notes.Intervals); err != nil {
		return nil, fmt.Errorf("encoding intervals: %w", err)
	}
	if row.Velocities, err = msgpack.Marshal(ex.Notes.Velocities); err != nil {
		return nil, fmt.Errorf("encoding velocities: %w", err)
	}
	return row, nil
}

func decodeExample(row *Example) (*model.RawExample, error) {
	ex := &model.RawExample{
		Key:         row.Key,
		VelocityMin: row.VelocityMin,
		VelocityMax: row.VelocityMax,
	}
	var audio []float32
	if err := msgpack.Unmarshal(row.Audio, &audio); err != nil {
		return nil, fmt.Errorf("decoding audio: %w", err)
	}
	ex.Audio = audio
	if err := msgpack.Unmarshal(row.Pitches, &ex.Notes.Pitches); err != nil {
		return nil, fmt.Errorf("decoding pitches: %w", err)
	}
	if err := msgpack.Unmarshal(row.Intervals, &ex.Notes.Intervals); err != nil {
		return nil, fmt.Errorf("decoding intervals: %w", err)
	}
	if err := msgpack.Unmarshal(row.Velocities, &ex.Notes.Velocities); err != nil {
		return nil, fmt.Errorf("decoding velocities: %w", err)
	}
	return ex, nil
}

// PutExample stores ex under ex.Key, replacing any previous example with
// that key.
func (c *DBClient) PutExample(ex *model.RawExample) error {
	if c == nil || c.DB == nil {
		return errors.New(errDBClientNil)
	}
	row, err := encodeExample(ex)
	if err != nil {
		return fmt.Errorf("%s: %w", ex.Key, err)
	}

	return c.DB.Transaction(func(tx *gorm.DB) error {
		var existing Example
		err := tx.Select("id").Where("`key` = ?", ex.Key).First(&existing).Error
		switch {
		case err == nil:
			row.ID = existing.ID
			if err := tx.Model(&Example{}).Where("id = ?", existing.ID).Updates(map[string]any{
				"audio":        row.Audio,
				"velocity_min": row.VelocityMin,
				"velocity_max": row.VelocityMax,
				"pitches":      row.Pitches,
				"intervals":    row.Intervals,
				"velocities":   row.Velocities,
				"num_samples":  row.NumSamples,
				"num_notes":    row.NumNotes,
			}).Error; err != nil {
				return fmt.Errorf("updating example %s: %w", ex.Key, err)
			}
			return nil
		case errors.Is(err, gorm.ErrRecordNotFound):
			row.ID = utils.GenerateUUID()
			if err := tx.Create(row).Error; err != nil {
				return fmt.Errorf("creating example %s: %w", ex.Key, err)
			}
			return nil
		default:
			return fmt.Errorf("querying example %s: %w", ex.Key, err)
		}
	})
}

// ListKeys returns every example key in lexicographic order.
func (c *DBClient) ListKeys() ([]string, error) {
	if c == nil || c.DB == nil {
		return nil, errors.New(errDBClientNil)
	}
	var keys []string
	if err := c.DB.Model(&Example{}).Order("`key` ASC").Pluck("key", &keys).Error; err != nil {
		return nil, fmt.Errorf("listing keys: %w", err)
	}
	return keys, nil
}

func (c *DBClient) ReadExample(key string) (*model.RawExample, error) {
	if c == nil || c.DB == nil {
		return nil, errors.New(errDBClientNil)
	}
	var row Example
	err := c.DB.Where("`key` = ?", key).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", perfectpitch.ErrExampleNotFound, key)
	}
	if err != nil {
		return nil, fmt.Errorf("reading example %s: %w", key, err)
	}
	ex, err := decodeExample(&row)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", key, err)
	}
	return ex, nil
}

// ExampleInfo returns the stored row without decoding its blobs.
func (c *DBClient) ExampleInfo(key string) (*Example, error) {
	if c == nil || c.DB == nil {
		return nil, errors.New(errDBClientNil)
	}
	var row Example
	err := c.DB.Omit("audio", "pitches", "intervals", "velocities").Where("`key` = ?", key).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", perfectpitch.ErrExampleNotFound, key)
	}
	if err != nil {
		return nil, fmt.Errorf("reading example %s: %w", key, err)
	}
	return &row, nil
}

func (c *DBClient) DeleteExample(key string) error {
	if c == nil || c.DB == nil {
		return errors.New(errDBClientNil)
	}
	res := c.DB.Where("`key` = ?", key).Delete(&Example{})
	if res.Error != nil {
		return fmt.Errorf("deleting example %s: %w", key, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", perfectpitch.ErrExampleNotFound, key)
	}
	return nil
}

func (c *DBClient) CountExamples() (int64, error) {
	if c == nil || c.DB == nil {
		return 0, errors.New(errDBClientNil)
	}
	var count int64
	if err := c.DB.Model(&Example{}).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("counting examples: %w", err)
	}
	return count, nil
}
