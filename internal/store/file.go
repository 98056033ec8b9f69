package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/robsonsouzans/listans/internal/model"
)

// FileStore implements Store on top of a single JSON document rewritten in
// full on every mutation. The document holds the groups-with-items collection
// and the user-defined unit set under named slots, mirroring a client-side
// persistent store. Writes go to a temp file and are renamed into place.
type FileStore struct {
	mu   sync.Mutex
	mem  *MemoryStore
	path string
}

// fileUser carries the password hash that model.User deliberately excludes
// from its JSON form.
type fileUser struct {
	model.User
	PasswordHash string `json:"password_hash"`
}

// fileDocument is the serialized form of the whole store.
type fileDocument struct {
	Users    []fileUser               `json:"users"`
	Lists    []model.List             `json:"lists"`
	Shares   []model.Share            `json:"shares"`
	Shopping map[string][]model.Group `json:"shopping"` // list ID -> groups with items
	Units    map[string][]string      `json:"units"`    // user ID -> user-defined units
}

// NewFileStore opens or creates the JSON-backed store at path.
func NewFileStore(path string) (*FileStore, error) {
	s := &FileStore{
		mem:  NewMemoryStore(),
		path: path,
	}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return s, nil
	case err != nil:
		return nil, fmt.Errorf("reading data file: %w", err)
	}

	var doc fileDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing data file: %w", err)
	}
	s.load(doc)

	return s, nil
}

// load replaces the in-memory state with the document contents. The rebuilt
// maps are installed into the existing MemoryStore under its write lock, so
// readers never observe a torn swap when a failed save rolls back.
func (s *FileStore) load(doc fileDocument) {
	mem := NewMemoryStore()
	for _, u := range doc.Users {
		user := u.User
		user.PasswordHash = u.PasswordHash
		mem.users[user.ID] = user
		mem.emails[strings.ToLower(user.Email)] = user.ID
	}
	for _, l := range doc.Lists {
		mem.lists[l.ID] = l
	}
	for _, sh := range doc.Shares {
		mem.shares[sh.ID] = sh
	}
	for listID, groups := range doc.Shopping {
		for _, g := range groups {
			items := g.Items
			g.ListID = listID
			g.Items = nil
			mem.groups[g.ID] = g
			for _, item := range items {
				item.GroupID = g.ID
				mem.items[item.ID] = item
			}
		}
	}
	for userID, units := range doc.Units {
		mem.units[userID] = units
	}
	s.mem.replace(mem)
}

// document snapshots the in-memory state into its serialized form.
func (s *FileStore) document() fileDocument {
	s.mem.mu.RLock()
	defer s.mem.mu.RUnlock()

	doc := fileDocument{
		Users:    make([]fileUser, 0, len(s.mem.users)),
		Lists:    make([]model.List, 0, len(s.mem.lists)),
		Shares:   make([]model.Share, 0, len(s.mem.shares)),
		Shopping: make(map[string][]model.Group),
		Units:    make(map[string][]string),
	}
	for _, u := range s.mem.users {
		doc.Users = append(doc.Users, fileUser{User: u, PasswordHash: u.PasswordHash})
	}
	for _, l := range s.mem.lists {
		doc.Lists = append(doc.Lists, l)
	}
	for _, sh := range s.mem.shares {
		doc.Shares = append(doc.Shares, sh)
	}
	for _, g := range s.mem.groups {
		g.Items = s.mem.itemsOf(g.ID)
		doc.Shopping[g.ListID] = append(doc.Shopping[g.ListID], g)
	}
	for userID, units := range s.mem.units {
		doc.Units[userID] = units
	}

	return doc
}

// save serializes the current state and renames it into place.
func (s *FileStore) save() error {
	doc := s.document()

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding data file: %w", err)
	}

	tmp := s.path + ".tmp"
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating data directory: %w", err)
		}
	}
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("writing data file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replacing data file: %w", err)
	}

	return nil
}

// mutate runs op and persists the result. If persisting fails the previous
// state is restored so memory and disk never diverge.
func (s *FileStore) mutate(op func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	before := s.document()
	if err := op(); err != nil {
		return err
	}
	if err := s.save(); err != nil {
		s.load(before)
		return err
	}

	return nil
}

// CreateUser adds a new user and persists the collection.
func (s *FileStore) CreateUser(ctx context.Context, user *model.User) (*model.User, error) {
	var created *model.User
	err := s.mutate(func() (opErr error) {
		created, opErr = s.mem.CreateUser(ctx, user)
		return opErr
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// GetUser retrieves a user by ID.
func (s *FileStore) GetUser(ctx context.Context, id string) (*model.User, error) {
	return s.mem.GetUser(ctx, id)
}

// GetUserByEmail retrieves a user by email.
func (s *FileStore) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	return s.mem.GetUserByEmail(ctx, email)
}

// CreateList adds a new list and persists the collection.
func (s *FileStore) CreateList(ctx context.Context, list *model.List) (*model.List, error) {
	var created *model.List
	err := s.mutate(func() (opErr error) {
		created, opErr = s.mem.CreateList(ctx, list)
		return opErr
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// GetList retrieves a list by ID.
func (s *FileStore) GetList(ctx context.Context, id string) (*model.List, error) {
	return s.mem.GetList(ctx, id)
}

// ListsForUser returns owned and shared lists.
func (s *FileStore) ListsForUser(ctx context.Context, userID string) ([]model.List, error) {
	return s.mem.ListsForUser(ctx, userID)
}

// CreateShare grants access to a list and persists the collection.
func (s *FileStore) CreateShare(ctx context.Context, share *model.Share) (*model.Share, error) {
	var created *model.Share
	err := s.mutate(func() (opErr error) {
		created, opErr = s.mem.CreateShare(ctx, share)
		return opErr
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// GroupsByList returns all groups of a list with their items.
func (s *FileStore) GroupsByList(ctx context.Context, listID string) ([]model.Group, error) {
	return s.mem.GroupsByList(ctx, listID)
}

// GetGroup retrieves a group by ID with its items.
func (s *FileStore) GetGroup(ctx context.Context, id string) (*model.Group, error) {
	return s.mem.GetGroup(ctx, id)
}

// CreateGroup adds a new group and persists the collection.
func (s *FileStore) CreateGroup(ctx context.Context, group *model.Group) (*model.Group, error) {
	var created *model.Group
	err := s.mutate(func() (opErr error) {
		created, opErr = s.mem.CreateGroup(ctx, group)
		return opErr
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// UpdateGroup merges the patch and persists the collection.
func (s *FileStore) UpdateGroup(ctx context.Context, id string, patch model.GroupPatch) (*model.Group, error) {
	var updated *model.Group
	err := s.mutate(func() (opErr error) {
		updated, opErr = s.mem.UpdateGroup(ctx, id, patch)
		return opErr
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// DeleteGroup removes a group and its items and persists the collection.
func (s *FileStore) DeleteGroup(ctx context.Context, id string) error {
	return s.mutate(func() error {
		return s.mem.DeleteGroup(ctx, id)
	})
}

// GetItem retrieves an item by ID.
func (s *FileStore) GetItem(ctx context.Context, id string) (*model.Item, error) {
	return s.mem.GetItem(ctx, id)
}

// CreateItem adds a new item and persists the collection.
func (s *FileStore) CreateItem(ctx context.Context, item *model.Item) (*model.Item, error) {
	var created *model.Item
	err := s.mutate(func() (opErr error) {
		created, opErr = s.mem.CreateItem(ctx, item)
		return opErr
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// UpdateItem merges the patch and persists the collection.
func (s *FileStore) UpdateItem(ctx context.Context, id string, patch model.ItemPatch) (*model.Item, error) {
	var updated *model.Item
	err := s.mutate(func() (opErr error) {
		updated, opErr = s.mem.UpdateItem(ctx, id, patch)
		return opErr
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// DeleteItem removes an item and persists the collection.
func (s *FileStore) DeleteItem(ctx context.Context, id string) error {
	return s.mutate(func() error {
		return s.mem.DeleteItem(ctx, id)
	})
}

// Units returns the user-defined units of a user.
func (s *FileStore) Units(ctx context.Context, userID string) ([]string, error) {
	return s.mem.Units(ctx, userID)
}

// AddUnit records a user-defined unit and persists the unit slot.
func (s *FileStore) AddUnit(ctx context.Context, userID, unit string) error {
	return s.mutate(func() error {
		return s.mem.AddUnit(ctx, userID, unit)
	})
}

// Close is a no-op; every mutation is already flushed.
func (s *FileStore) Close() error {
	return nil
}
