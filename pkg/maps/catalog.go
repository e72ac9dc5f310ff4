package maps

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/rs/zerolog/log"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var ErrNotFound = errors.New("map not found")

type Record struct {
	ID uint `gorm:"primaryKey"`

	Name string `gorm:"uniqueIndex;size:64;not null"`
	Path string `gorm:"not null"`
	// xxhash of the descriptor, so unchanged files are not parsed again
	Hash      string `gorm:"size:16;not null"`
	Segments  int
	Coins     int
	ItemBoxes int
	IndexedAt time.Time
}

// Catalog indexes the map descriptors found in a directory.
type Catalog struct {
	db *gorm.DB
}

func OpenCatalog(path string) (*Catalog, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}

	if err := db.AutoMigrate(&Record{}); err != nil {
		return nil, err
	}

	return &Catalog{db: db}, nil
}

func hashFile(data []byte) string {
	return strconv.FormatUint(xxhash.Sum64(data), 16)
}

// Index scans dir for descriptors (*.yaml, *.yml) and brings the catalog up
// to date. Files that fail to parse are logged and skipped.
func (c *Catalog) Index(dir string) (int, error) {
	var paths []string
	for _, pattern := range []string{"*.yaml", "*.yml"} {
		matches, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			return 0, err
		}
		paths = append(paths, matches...)
	}

	seen := make(map[string]struct{})
	for _, path := range paths {
		logger := log.With().Str("path", path).Logger()

		data, err := os.ReadFile(path)
		if err != nil {
			logger.Warn().Err(err).Msg("could not read map descriptor")
			continue
		}

		hash := hashFile(data)

		var existing Record
		err = c.db.Where("path = ?", path).First(&existing).Error
		if err == nil && existing.Hash == hash {
			seen[existing.Name] = struct{}{}
			continue
		}
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, err
		}

		m, err := Parse(data)
		if err != nil {
			logger.Warn().Err(err).Msg("skipping invalid map descriptor")
			continue
		}

		if _, duplicate := seen[m.Name]; duplicate {
			logger.Warn().Str("map", m.Name).Msg("duplicate map name, skipping")
			continue
		}

		record := Record{
			Name:      m.Name,
			Path:      path,
			Hash:      hash,
			Segments:  m.Segments,
			Coins:     m.Coins,
			ItemBoxes: m.ItemBoxes,
			IndexedAt: time.Now(),
		}

		err = c.db.Transaction(func(tx *gorm.DB) error {
			if err := tx.Where("name = ? OR path = ?", m.Name, path).Delete(&Record{}).Error; err != nil {
				return err
			}
			return tx.Create(&record).Error
		})
		if err != nil {
			return 0, err
		}

		logger.Debug().Str("map", m.Name).Str("hash", hash).Msg("indexed map")
		seen[m.Name] = struct{}{}
	}

	// Forget maps whose descriptors are gone
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	query := c.db.Session(&gorm.Session{AllowGlobalUpdate: true})
	if len(names) > 0 {
		query = query.Where("name NOT IN ?", names)
	}
	if err := query.Delete(&Record{}).Error; err != nil {
		return 0, err
	}

	return len(seen), nil
}

func (c *Catalog) Names() ([]string, error) {
	var names []string
	err := c.db.Model(&Record{}).Order("name").Pluck("name", &names).Error
	if err != nil {
		return nil, err
	}
	sort.Strings(names)
	return names, nil
}

func (c *Catalog) Find(name string) (*Record, error) {
	var record Record
	err := c.db.Where("name = ?", name).First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// Get loads the full descriptor for a map.
func (c *Catalog) Get(name string) (*Map, error) {
	record, err := c.Find(name)
	if err != nil {
		return nil, err
	}
	return Load(record.Path)
}

func (c *Catalog) Close() error {
	db, err := c.db.DB()
	if err != nil {
		return err
	}
	return db.Close()
}
