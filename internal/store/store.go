// Package store provides data storage interfaces and implementations.
package store

import (
	"context"
	"errors"

	"github.com/robsonsouzans/listans/internal/model"
)

// Store errors.
var (
	ErrNotFound        = errors.New("record not found")
	ErrAlreadyExists   = errors.New("record already exists")
	ErrInvalidID       = errors.New("invalid record ID")
	ErrNilRecord       = errors.New("record cannot be nil")
	ErrDuplicateEmail  = errors.New("email already registered")
	ErrVersionConflict = errors.New("record was modified concurrently")
)

// Store is the persistence adapter behind the shopping data store. All
// backends implement the same contract: per-record create/update/delete keyed
// by opaque identifiers, with parent references enforced on create and group
// deletion cascading to items.
type Store interface {
	// CreateUser adds a new user. Returns ErrDuplicateEmail when the email
	// is already registered.
	CreateUser(ctx context.Context, user *model.User) (*model.User, error)

	// GetUser retrieves a user by ID.
	GetUser(ctx context.Context, id string) (*model.User, error)

	// GetUserByEmail retrieves a user by email.
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)

	// CreateList adds a new list owned by a user.
	CreateList(ctx context.Context, list *model.List) (*model.List, error)

	// GetList retrieves a list by ID.
	GetList(ctx context.Context, id string) (*model.List, error)

	// ListsForUser returns the lists a user owns plus the lists shared
	// with them.
	ListsForUser(ctx context.Context, userID string) ([]model.List, error)

	// CreateShare grants a user access to a list. Returns ErrAlreadyExists
	// when the share is already in place.
	CreateShare(ctx context.Context, share *model.Share) (*model.Share, error)

	// GroupsByList returns all groups of a list, each with its items.
	GroupsByList(ctx context.Context, listID string) ([]model.Group, error)

	// GetGroup retrieves a group by ID, with its items.
	GetGroup(ctx context.Context, id string) (*model.Group, error)

	// CreateGroup adds a new group to an existing list.
	CreateGroup(ctx context.Context, group *model.Group) (*model.Group, error)

	// UpdateGroup merges the non-nil patch fields into the group. A
	// non-zero patch version that does not match the stored version fails
	// with ErrVersionConflict.
	UpdateGroup(ctx context.Context, id string, patch model.GroupPatch) (*model.Group, error)

	// DeleteGroup removes a group and all of its items.
	DeleteGroup(ctx context.Context, id string) error

	// GetItem retrieves an item by ID.
	GetItem(ctx context.Context, id string) (*model.Item, error)

	// CreateItem adds a new item to an existing group.
	CreateItem(ctx context.Context, item *model.Item) (*model.Item, error)

	// UpdateItem merges the non-nil patch fields into the item. Lookup is
	// by item ID alone, not scoped to a group.
	UpdateItem(ctx context.Context, id string, patch model.ItemPatch) (*model.Item, error)

	// DeleteItem removes an item from its group.
	DeleteItem(ctx context.Context, id string) error

	// Units returns the user-defined units of a user.
	Units(ctx context.Context, userID string) ([]string, error)

	// AddUnit records a user-defined unit. Adding an existing unit is a
	// no-op.
	AddUnit(ctx context.Context, userID, unit string) error

	// Close releases the backend resources.
	Close() error
}
