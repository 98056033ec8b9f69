// Package model defines data structures used throughout the application.
package model

import (
	"errors"
	"strings"
	"time"
)

// Validation errors.
var (
	ErrEmptyName       = errors.New("name cannot be empty")
	ErrNameTooLong     = errors.New("name cannot exceed 255 characters")
	ErrInvalidColor    = errors.New("color must be one of the group palette")
	ErrInvalidIcon     = errors.New("icon must be one of the group icon set")
	ErrEmptyEmail      = errors.New("email cannot be empty")
	ErrInvalidEmail    = errors.New("email is not valid")
	ErrPasswordTooWeak = errors.New("password must have at least 6 characters")
	ErrEmptyUnit       = errors.New("unit cannot be empty")
)

// Validation constants.
const (
	MaxNameLength     = 255
	MinPasswordLength = 6
	MinQuantity       = 1
)

// GroupColors is the fixed color palette for groups.
var GroupColors = []string{
	"#8B5CF6", "#06B6D4", "#10B981", "#F59E0B",
	"#EF4444", "#EC4899", "#84CC16", "#6366F1",
}

// GroupIcons is the fixed glyph set for groups.
var GroupIcons = []string{
	"🛒", "🥕", "🍞", "🥛", "🧴", "🍎", "🧽", "📦", "🍖", "🐟",
	"🧀", "🥚", "🍕", "🍰", "☕", "🧊", "🍇", "🥬", "🌶️", "🧄",
}

// DefaultUnits is the built-in unit-of-measure set. Users may extend it with
// their own units, stored alongside the shopping data.
var DefaultUnits = []string{"un", "kg", "g", "l", "ml", "pct", "cx", "dz"}

// DefaultUnit is the unit assigned when an item is created without one.
const DefaultUnit = "un"

// DefaultListName is the name of the list created on a user's first use.
const DefaultListName = "My List"

// User is a registered account. The password hash never leaves the server.
type User struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// List is the top-level container owned by a user, holding groups.
type List struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	OwnerID   string    `json:"owner_id"`
	CreatedAt time.Time `json:"created_at"`
}

// Share grants another user full access to a list.
type Share struct {
	ID        string    `json:"id"`
	ListID    string    `json:"list_id"`
	UserID    string    `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}

// Group is a named, colored, iconed bucket of items within a list.
type Group struct {
	ID      string `json:"id"`
	ListID  string `json:"list_id"`
	Name    string `json:"name"`
	Color   string `json:"color"`
	Icon    string `json:"icon"`
	Version int64  `json:"version"`
	Items   []Item `json:"items"`
}

// Item is a purchasable line entry with quantity, unit, price, and purchased
// flag. Price is a unit price in minor units.
type Item struct {
	ID        string `json:"id"`
	GroupID   string `json:"group_id"`
	Name      string `json:"name"`
	Unit      string `json:"unit"`
	Quantity  int64  `json:"quantity"`
	Price     Cents  `json:"price_cents"`
	Purchased bool   `json:"purchased"`
	Version   int64  `json:"version"`
}

// GroupPatch is a partial update for a group. Nil fields are left unchanged.
// A zero Version skips the lost-update check (last write wins).
type GroupPatch struct {
	Name    *string `json:"name,omitempty"`
	Color   *string `json:"color,omitempty"`
	Icon    *string `json:"icon,omitempty"`
	Version int64   `json:"version,omitempty"`
}

// ItemPatch is a partial update for an item. Nil fields are left unchanged.
type ItemPatch struct {
	Name      *string `json:"name,omitempty"`
	Unit      *string `json:"unit,omitempty"`
	Quantity  *int64  `json:"quantity,omitempty"`
	Price     *Cents  `json:"price_cents,omitempty"`
	Purchased *bool   `json:"purchased,omitempty"`
	Version   int64   `json:"version,omitempty"`
}

// Normalize trims the group name.
func (g *Group) Normalize() {
	g.Name = strings.TrimSpace(g.Name)
}

// Validate checks the group fields after normalization.
func (g *Group) Validate() error {
	if g.Name == "" {
		return ErrEmptyName
	}
	if len(g.Name) > MaxNameLength {
		return ErrNameTooLong
	}
	if !ValidGroupColor(g.Color) {
		return ErrInvalidColor
	}
	if !ValidGroupIcon(g.Icon) {
		return ErrInvalidIcon
	}
	return nil
}

// ValidGroupColor reports whether the color belongs to the fixed palette.
func ValidGroupColor(color string) bool {
	return contains(GroupColors, color)
}

// ValidGroupIcon reports whether the icon belongs to the fixed glyph set.
func ValidGroupIcon(icon string) bool {
	return contains(GroupIcons, icon)
}

// Normalize trims the item name, applies the default unit, and clamps
// quantity and price. Out-of-range numbers are clamped, not rejected.
func (i *Item) Normalize() {
	i.Name = strings.TrimSpace(i.Name)
	i.Unit = strings.TrimSpace(i.Unit)
	if i.Unit == "" {
		i.Unit = DefaultUnit
	}
	if i.Quantity < MinQuantity {
		i.Quantity = MinQuantity
	}
	if i.Price < 0 {
		i.Price = 0
	}
}

// Validate checks the item fields after normalization.
func (i *Item) Validate() error {
	if i.Name == "" {
		return ErrEmptyName
	}
	if len(i.Name) > MaxNameLength {
		return ErrNameTooLong
	}
	return nil
}

// LineTotal returns quantity times unit price for the item.
func (i *Item) LineTotal() Cents {
	return i.Price.Mul(i.Quantity)
}

// Clamp applies the creation-time clamping rules to a patch so edits obey the
// same bounds as new items.
func (p *ItemPatch) Clamp() {
	if p.Quantity != nil && *p.Quantity < MinQuantity {
		q := int64(MinQuantity)
		p.Quantity = &q
	}
	if p.Price != nil && *p.Price < 0 {
		z := Cents(0)
		p.Price = &z
	}
}

// ValidateEmail performs the minimal shape check used at the auth boundary.
func ValidateEmail(email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return ErrEmptyEmail
	}
	at := strings.Index(email, "@")
	if at <= 0 || at == len(email)-1 {
		return ErrInvalidEmail
	}
	return nil
}

func contains(set []string, v string) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}
