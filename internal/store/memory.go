package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/robsonsouzans/listans/internal/model"
)

// MemoryStore implements Store with in-memory maps. It is the default
// backend for tests and the building block of the file-backed store.
type MemoryStore struct {
	mu     sync.RWMutex
	users  map[string]model.User
	emails map[string]string // lowercased email -> user ID
	lists  map[string]model.List
	shares map[string]model.Share
	groups map[string]model.Group // stored without items
	items  map[string]model.Item
	units  map[string][]string // user ID -> user-defined units
}

// NewMemoryStore creates a new MemoryStore instance.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:  make(map[string]model.User),
		emails: make(map[string]string),
		lists:  make(map[string]model.List),
		shares: make(map[string]model.Share),
		groups: make(map[string]model.Group),
		items:  make(map[string]model.Item),
		units:  make(map[string][]string),
	}
}

// replace swaps this store's contents for other's under the write lock,
// leaving the store pointer itself stable for concurrent readers.
func (s *MemoryStore) replace(other *MemoryStore) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.users = other.users
	s.emails = other.emails
	s.lists = other.lists
	s.shares = other.shares
	s.groups = other.groups
	s.items = other.items
	s.units = other.units
}

func ctxErr(ctx context.Context, op string) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
		return nil
	}
}

// CreateUser adds a new user with a generated ID.
func (s *MemoryStore) CreateUser(ctx context.Context, user *model.User) (*model.User, error) {
	if err := ctxErr(ctx, "create user"); err != nil {
		return nil, err
	}
	if user == nil {
		return nil, fmt.Errorf("create user: %w", ErrNilRecord)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := strings.ToLower(user.Email)
	if _, exists := s.emails[key]; exists {
		return nil, ErrDuplicateEmail
	}

	created := model.User{
		ID:           uuid.New().String(),
		Name:         user.Name,
		Email:        user.Email,
		PasswordHash: user.PasswordHash,
		CreatedAt:    time.Now().UTC(),
	}
	s.users[created.ID] = created
	s.emails[key] = created.ID

	return &created, nil
}

// GetUser retrieves a user by ID.
func (s *MemoryStore) GetUser(ctx context.Context, id string) (*model.User, error) {
	if err := ctxErr(ctx, "get user"); err != nil {
		return nil, err
	}
	if id == "" {
		return nil, ErrInvalidID
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	user, exists := s.users[id]
	if !exists {
		return nil, ErrNotFound
	}
	return &user, nil
}

// GetUserByEmail retrieves a user by email, case-insensitively.
func (s *MemoryStore) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	if err := ctxErr(ctx, "get user by email"); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	id, exists := s.emails[strings.ToLower(email)]
	if !exists {
		return nil, ErrNotFound
	}
	user := s.users[id]
	return &user, nil
}

// CreateList adds a new list with a generated ID.
func (s *MemoryStore) CreateList(ctx context.Context, list *model.List) (*model.List, error) {
	if err := ctxErr(ctx, "create list"); err != nil {
		return nil, err
	}
	if list == nil {
		return nil, fmt.Errorf("create list: %w", ErrNilRecord)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.users[list.OwnerID]; !exists {
		return nil, fmt.Errorf("create list: owner: %w", ErrNotFound)
	}

	created := model.List{
		ID:        uuid.New().String(),
		Name:      list.Name,
		OwnerID:   list.OwnerID,
		CreatedAt: time.Now().UTC(),
	}
	s.lists[created.ID] = created

	return &created, nil
}

// GetList retrieves a list by ID.
func (s *MemoryStore) GetList(ctx context.Context, id string) (*model.List, error) {
	if err := ctxErr(ctx, "get list"); err != nil {
		return nil, err
	}
	if id == "" {
		return nil, ErrInvalidID
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	list, exists := s.lists[id]
	if !exists {
		return nil, ErrNotFound
	}
	return &list, nil
}

// ListsForUser returns owned and shared lists, owned first.
func (s *MemoryStore) ListsForUser(ctx context.Context, userID string) ([]model.List, error) {
	if err := ctxErr(ctx, "lists for user"); err != nil {
		return nil, err
	}
	if userID == "" {
		return nil, ErrInvalidID
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	lists := make([]model.List, 0)
	for _, l := range s.lists {
		if l.OwnerID == userID {
			lists = append(lists, l)
		}
	}
	for _, sh := range s.shares {
		if sh.UserID != userID {
			continue
		}
		if l, exists := s.lists[sh.ListID]; exists {
			lists = append(lists, l)
		}
	}

	sort.Slice(lists, func(i, j int) bool {
		owned, otherOwned := lists[i].OwnerID == userID, lists[j].OwnerID == userID
		if owned != otherOwned {
			return owned
		}
		return lists[i].CreatedAt.Before(lists[j].CreatedAt)
	})

	return lists, nil
}

// CreateShare grants a user access to a list.
func (s *MemoryStore) CreateShare(ctx context.Context, share *model.Share) (*model.Share, error) {
	if err := ctxErr(ctx, "create share"); err != nil {
		return nil, err
	}
	if share == nil {
		return nil, fmt.Errorf("create share: %w", ErrNilRecord)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.lists[share.ListID]; !exists {
		return nil, fmt.Errorf("create share: list: %w", ErrNotFound)
	}
	if _, exists := s.users[share.UserID]; !exists {
		return nil, fmt.Errorf("create share: user: %w", ErrNotFound)
	}
	for _, existing := range s.shares {
		if existing.ListID == share.ListID && existing.UserID == share.UserID {
			return nil, ErrAlreadyExists
		}
	}

	created := model.Share{
		ID:        uuid.New().String(),
		ListID:    share.ListID,
		UserID:    share.UserID,
		CreatedAt: time.Now().UTC(),
	}
	s.shares[created.ID] = created

	return &created, nil
}

// GroupsByList returns all groups of a list with their items.
func (s *MemoryStore) GroupsByList(ctx context.Context, listID string) ([]model.Group, error) {
	if err := ctxErr(ctx, "groups by list"); err != nil {
		return nil, err
	}
	if listID == "" {
		return nil, ErrInvalidID
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, exists := s.lists[listID]; !exists {
		return nil, ErrNotFound
	}

	groups := make([]model.Group, 0)
	for _, g := range s.groups {
		if g.ListID == listID {
			g.Items = s.itemsOf(g.ID)
			groups = append(groups, g)
		}
	}
	sort.Slice(groups, func(i, j int) bool {
		return groups[i].Name < groups[j].Name
	})

	return groups, nil
}

// GetGroup retrieves a group by ID with its items.
func (s *MemoryStore) GetGroup(ctx context.Context, id string) (*model.Group, error) {
	if err := ctxErr(ctx, "get group"); err != nil {
		return nil, err
	}
	if id == "" {
		return nil, ErrInvalidID
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	group, exists := s.groups[id]
	if !exists {
		return nil, ErrNotFound
	}
	group.Items = s.itemsOf(id)
	return &group, nil
}

// CreateGroup adds a new group to an existing list.
func (s *MemoryStore) CreateGroup(ctx context.Context, group *model.Group) (*model.Group, error) {
	if err := ctxErr(ctx, "create group"); err != nil {
		return nil, err
	}
	if group == nil {
		return nil, fmt.Errorf("create group: %w", ErrNilRecord)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.lists[group.ListID]; !exists {
		return nil, fmt.Errorf("create group: list: %w", ErrNotFound)
	}

	created := model.Group{
		ID:      uuid.New().String(),
		ListID:  group.ListID,
		Name:    group.Name,
		Color:   group.Color,
		Icon:    group.Icon,
		Version: 1,
		Items:   []model.Item{},
	}
	stored := created
	stored.Items = nil
	s.groups[created.ID] = stored

	return &created, nil
}

// UpdateGroup merges the patch into the group.
func (s *MemoryStore) UpdateGroup(ctx context.Context, id string, patch model.GroupPatch) (*model.Group, error) {
	if err := ctxErr(ctx, "update group"); err != nil {
		return nil, err
	}
	if id == "" {
		return nil, ErrInvalidID
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, exists := s.groups[id]
	if !exists {
		return nil, ErrNotFound
	}
	if patch.Version != 0 && patch.Version != existing.Version {
		return nil, ErrVersionConflict
	}

	if patch.Name != nil {
		existing.Name = *patch.Name
	}
	if patch.Color != nil {
		existing.Color = *patch.Color
	}
	if patch.Icon != nil {
		existing.Icon = *patch.Icon
	}
	existing.Version++
	s.groups[id] = existing

	existing.Items = s.itemsOf(id)
	return &existing, nil
}

// DeleteGroup removes a group and all of its items.
func (s *MemoryStore) DeleteGroup(ctx context.Context, id string) error {
	if err := ctxErr(ctx, "delete group"); err != nil {
		return err
	}
	if id == "" {
		return ErrInvalidID
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.groups[id]; !exists {
		return ErrNotFound
	}
	delete(s.groups, id)
	for itemID, item := range s.items {
		if item.GroupID == id {
			delete(s.items, itemID)
		}
	}

	return nil
}

// GetItem retrieves an item by ID.
func (s *MemoryStore) GetItem(ctx context.Context, id string) (*model.Item, error) {
	if err := ctxErr(ctx, "get item"); err != nil {
		return nil, err
	}
	if id == "" {
		return nil, ErrInvalidID
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	item, exists := s.items[id]
	if !exists {
		return nil, ErrNotFound
	}
	return &item, nil
}

// CreateItem adds a new item to an existing group.
func (s *MemoryStore) CreateItem(ctx context.Context, item *model.Item) (*model.Item, error) {
	if err := ctxErr(ctx, "create item"); err != nil {
		return nil, err
	}
	if item == nil {
		return nil, fmt.Errorf("create item: %w", ErrNilRecord)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.groups[item.GroupID]; !exists {
		return nil, fmt.Errorf("create item: group: %w", ErrNotFound)
	}

	created := model.Item{
		ID:        uuid.New().String(),
		GroupID:   item.GroupID,
		Name:      item.Name,
		Unit:      item.Unit,
		Quantity:  item.Quantity,
		Price:     item.Price,
		Purchased: item.Purchased,
		Version:   1,
	}
	s.items[created.ID] = created

	return &created, nil
}

// UpdateItem merges the patch into the item.
func (s *MemoryStore) UpdateItem(ctx context.Context, id string, patch model.ItemPatch) (*model.Item, error) {
	if err := ctxErr(ctx, "update item"); err != nil {
		return nil, err
	}
	if id == "" {
		return nil, ErrInvalidID
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, exists := s.items[id]
	if !exists {
		return nil, ErrNotFound
	}
	if patch.Version != 0 && patch.Version != existing.Version {
		return nil, ErrVersionConflict
	}

	if patch.Name != nil {
		existing.Name = *patch.Name
	}
	if patch.Unit != nil {
		existing.Unit = *patch.Unit
	}
	if patch.Quantity != nil {
		existing.Quantity = *patch.Quantity
	}
	if patch.Price != nil {
		existing.Price = *patch.Price
	}
	if patch.Purchased != nil {
		existing.Purchased = *patch.Purchased
	}
	existing.Version++
	s.items[id] = existing

	return &existing, nil
}

// DeleteItem removes an item.
func (s *MemoryStore) DeleteItem(ctx context.Context, id string) error {
	if err := ctxErr(ctx, "delete item"); err != nil {
		return err
	}
	if id == "" {
		return ErrInvalidID
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.items[id]; !exists {
		return ErrNotFound
	}
	delete(s.items, id)

	return nil
}

// Units returns the user-defined units of a user.
func (s *MemoryStore) Units(ctx context.Context, userID string) ([]string, error) {
	if err := ctxErr(ctx, "units"); err != nil {
		return nil, err
	}
	if userID == "" {
		return nil, ErrInvalidID
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	units := make([]string, len(s.units[userID]))
	copy(units, s.units[userID])
	return units, nil
}

// AddUnit records a user-defined unit, ignoring duplicates.
func (s *MemoryStore) AddUnit(ctx context.Context, userID, unit string) error {
	if err := ctxErr(ctx, "add unit"); err != nil {
		return err
	}
	if userID == "" {
		return ErrInvalidID
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.units[userID] {
		if u == unit {
			return nil
		}
	}
	s.units[userID] = append(s.units[userID], unit)

	return nil
}

// Close is a no-op for the memory backend.
func (s *MemoryStore) Close() error {
	return nil
}

// itemsOf returns the items of a group sorted purchased-last then by name.
// Callers must hold at least a read lock.
func (s *MemoryStore) itemsOf(groupID string) []model.Item {
	items := make([]model.Item, 0)
	for _, item := range s.items {
		if item.GroupID == groupID {
			items = append(items, item)
		}
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].Purchased != items[j].Purchased {
			return !items[i].Purchased
		}
		return items[i].Name < items[j].Name
	})
	return items
}
