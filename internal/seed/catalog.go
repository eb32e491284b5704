package seed

import (
	"context"
	_ "embed"
	"fmt"

	"civicpulse/internal/models"

	"gopkg.in/yaml.v3"
	"gorm.io/gorm"
)

//go:embed catalog.yaml
var catalogYAML []byte

// CatalogTopic is a topic entry of the built-in catalog.
type CatalogTopic struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
}

// CatalogLocation is a location entry of the built-in catalog.
type CatalogLocation struct {
	Name        string              `yaml:"name"`
	Type        models.LocationType `yaml:"type"`
	Description string              `yaml:"description"`
	Latitude    *float64            `yaml:"latitude"`
	Longitude   *float64            `yaml:"longitude"`
}

// Catalog holds the topics and locations every installation starts with.
type Catalog struct {
	Topics    []CatalogTopic    `yaml:"topics"`
	Locations []CatalogLocation `yaml:"locations"`
}

// LoadCatalog parses the embedded catalog.
func LoadCatalog() (*Catalog, error) {
	return parseCatalog(catalogYAML)
}

func parseCatalog(raw []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(raw, &c); err != nil {
		return nil, fmt.Errorf("parse seed catalog: %w", err)
	}
	for _, l := range c.Locations {
		if !l.Type.Valid() {
			return nil, fmt.Errorf("seed catalog: location %q has unknown type %q", l.Name, l.Type)
		}
	}
	return &c, nil
}

// SeedCatalog inserts the catalog entries that do not exist yet, matched by
// name. It is safe to run on every boot.
func SeedCatalog(ctx context.Context, db *gorm.DB) (created int, err error) {
	c, err := LoadCatalog()
	if err != nil {
		return 0, err
	}

	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, t := range c.Topics {
			exists, err := nameTaken(tx, &models.Topic{}, t.Name)
			if err != nil {
				return err
			}
			if exists {
				continue
			}
			topic := models.Topic{Name: t.Name, Description: t.Description, IsActive: true}
			if err := tx.Create(&topic).Error; err != nil {
				return fmt.Errorf("seed topic %q: %w", t.Name, err)
			}
			created++
		}
		for _, l := range c.Locations {
			exists, err := nameTaken(tx, &models.Location{}, l.Name)
			if err != nil {
				return err
			}
			if exists {
				continue
			}
			loc := models.Location{
				Name:        l.Name,
				Type:        l.Type,
				Description: l.Description,
				Latitude:    l.Latitude,
				Longitude:   l.Longitude,
				IsActive:    true,
			}
			if err := tx.Create(&loc).Error; err != nil {
				return fmt.Errorf("seed location %q: %w", l.Name, err)
			}
			created++
		}
		return nil
	})
	return created, err
}

func nameTaken(tx *gorm.DB, model any, name string) (bool, error) {
	var n int64
	if err := tx.Model(model).Where("name = ?", name).Count(&n).Error; err != nil {
		return false, err
	}
	return n > 0, nil
}
