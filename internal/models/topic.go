package models

import (
	"regexp"
	"strings"
	"time"

	"gorm.io/gorm"
)

var (
	slugStrip = regexp.MustCompile(`[^\w\s]+`)
	slugSpace = regexp.MustCompile(`[\s_]+`)
)

// Slugify lowercases name, drops punctuation and joins words with hyphens.
func Slugify(name string) string {
	s := strings.ToLower(strings.TrimSpace(name))
	s = slugStrip.ReplaceAllString(s, "")
	s = slugSpace.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}

// Topic is a followable discussion subject.
type Topic struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	Name          string    `gorm:"size:100;uniqueIndex;not null" json:"name"`
	Slug          string    `gorm:"size:120;uniqueIndex;not null" json:"slug"`
	Description   string    `gorm:"size:500" json:"description"`
	PostCount     int       `gorm:"not null;default:0" json:"post_count"`
	IsActive      bool      `gorm:"not null;default:true" json:"is_active"`
	CreatedByID   *uint     `json:"created_by_id,omitempty"`
	Followers     []User    `gorm:"many2many:topic_followers" json:"-"`
	FollowerCount int       `gorm:"->;-:migration" json:"follower_count"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// BeforeSave keeps the slug in step with the name.
func (t *Topic) BeforeSave(*gorm.DB) error {
	t.Slug = Slugify(t.Name)
	return nil
}

// LocationType classifies a place.
type LocationType string

const (
	LocationPark         LocationType = "Park"
	LocationDistrict     LocationType = "District"
	LocationNeighborhood LocationType = "Neighborhood"
	LocationStreet       LocationType = "Street"
	LocationJunction     LocationType = "Junction"
	LocationArea         LocationType = "Area"
	LocationOther        LocationType = "Other"
)

// LocationTypes lists the concrete place types, in display order.
var LocationTypes = []LocationType{
	LocationPark, LocationDistrict, LocationNeighborhood, LocationStreet, LocationJunction, LocationArea,
}

// Valid reports whether t is a known location type.
func (t LocationType) Valid() bool {
	if t == LocationOther {
		return true
	}
	for _, known := range LocationTypes {
		if t == known {
			return true
		}
	}
	return false
}

// Location is a named place issues are reported against.
type Location struct {
	ID          uint         `gorm:"primaryKey" json:"id"`
	Name        string       `gorm:"size:100;uniqueIndex;not null" json:"name"`
	Slug        string       `gorm:"size:120;uniqueIndex;not null" json:"slug"`
	Description string       `gorm:"size:500" json:"description"`
	Type        LocationType `gorm:"size:20;not null;default:Other" json:"type"`
	Latitude    *float64     `json:"latitude,omitempty"`
	Longitude   *float64     `json:"longitude,omitempty"`
	PostCount   int          `gorm:"not null;default:0" json:"post_count"`
	IsActive    bool         `gorm:"not null;default:true" json:"is_active"`
	CreatedByID *uint        `json:"created_by_id,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

// BeforeSave keeps the slug in step with the name.
func (l *Location) BeforeSave(*gorm.DB) error {
	l.Slug = Slugify(l.Name)
	if l.Type == "" {
		l.Type = LocationOther
	}
	return nil
}
