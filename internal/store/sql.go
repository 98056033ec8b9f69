package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // pure Go sqlite driver

	"github.com/robsonsouzans/listans/internal/model"
)

// schema creates the relational layout: three shopping record kinds (lists,
// groups, items) plus users, shares, and user-defined units, each referencing
// its parent by foreign key. Item deletion cascades from its group.
const schema = `
CREATE TABLE IF NOT EXISTS users (
	id            TEXT PRIMARY KEY,
	name          TEXT NOT NULL,
	email         TEXT NOT NULL UNIQUE COLLATE NOCASE,
	password_hash TEXT NOT NULL,
	created_at    TIMESTAMP NOT NULL
);
CREATE TABLE IF NOT EXISTS lists (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	owner_id   TEXT NOT NULL REFERENCES users(id),
	created_at TIMESTAMP NOT NULL
);
CREATE TABLE IF NOT EXISTS shares (
	id         TEXT PRIMARY KEY,
	list_id    TEXT NOT NULL REFERENCES lists(id),
	user_id    TEXT NOT NULL REFERENCES users(id),
	created_at TIMESTAMP NOT NULL,
	UNIQUE (list_id, user_id)
);
CREATE TABLE IF NOT EXISTS groups (
	id      TEXT PRIMARY KEY,
	list_id TEXT NOT NULL REFERENCES lists(id),
	name    TEXT NOT NULL,
	color   TEXT NOT NULL,
	icon    TEXT NOT NULL,
	version INTEGER NOT NULL DEFAULT 1
);
CREATE TABLE IF NOT EXISTS items (
	id          TEXT PRIMARY KEY,
	group_id    TEXT NOT NULL REFERENCES groups(id) ON DELETE CASCADE,
	name        TEXT NOT NULL,
	unit        TEXT NOT NULL,
	quantity    INTEGER NOT NULL,
	price_cents INTEGER NOT NULL,
	purchased   INTEGER NOT NULL DEFAULT 0,
	version     INTEGER NOT NULL DEFAULT 1
);
CREATE TABLE IF NOT EXISTS units (
	user_id TEXT NOT NULL REFERENCES users(id),
	unit    TEXT NOT NULL,
	PRIMARY KEY (user_id, unit)
);
`

// SQLStore implements Store on a SQLite database through database/sql.
type SQLStore struct {
	db *sql.DB
}

// NewSQLStore opens the database at dbPath, creating the schema if needed.
func NewSQLStore(dbPath string) (*SQLStore, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	// Foreign keys are per-connection in SQLite and off by default. The pragma
	// goes in the DSN so the driver enables it on every connection database/sql
	// opens, not just the one a plain Exec would run on.
	db, err := sql.Open("sqlite", dbPath+"?_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	return &SQLStore{db: db}, nil
}

// CreateUser adds a new user. The email uniqueness check runs inside the
// insert transaction so duplicates surface as ErrDuplicateEmail.
func (s *SQLStore) CreateUser(ctx context.Context, user *model.User) (*model.User, error) {
	if user == nil {
		return nil, fmt.Errorf("create user: %w", ErrNilRecord)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var existing string
	err = tx.QueryRowContext(ctx,
		"SELECT id FROM users WHERE email = ? COLLATE NOCASE", user.Email,
	).Scan(&existing)
	switch {
	case err == nil:
		return nil, ErrDuplicateEmail
	case !errors.Is(err, sql.ErrNoRows):
		return nil, fmt.Errorf("create user: %w", err)
	}

	created := model.User{
		ID:           uuid.New().String(),
		Name:         user.Name,
		Email:        user.Email,
		PasswordHash: user.PasswordHash,
		CreatedAt:    time.Now().UTC(),
	}
	_, err = tx.ExecContext(ctx,
		"INSERT INTO users (id, name, email, password_hash, created_at) VALUES (?, ?, ?, ?, ?)",
		created.ID, created.Name, created.Email, created.PasswordHash, created.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}

	return &created, nil
}

// GetUser retrieves a user by ID.
func (s *SQLStore) GetUser(ctx context.Context, id string) (*model.User, error) {
	if id == "" {
		return nil, ErrInvalidID
	}
	return s.scanUser(s.db.QueryRowContext(ctx,
		"SELECT id, name, email, password_hash, created_at FROM users WHERE id = ?", id))
}

// GetUserByEmail retrieves a user by email, case-insensitively.
func (s *SQLStore) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	return s.scanUser(s.db.QueryRowContext(ctx,
		"SELECT id, name, email, password_hash, created_at FROM users WHERE email = ? COLLATE NOCASE", email))
}

func (s *SQLStore) scanUser(row *sql.Row) (*model.User, error) {
	var user model.User
	err := row.Scan(&user.ID, &user.Name, &user.Email, &user.PasswordHash, &user.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning user: %w", err)
	}
	return &user, nil
}

// CreateList adds a new list.
func (s *SQLStore) CreateList(ctx context.Context, list *model.List) (*model.List, error) {
	if list == nil {
		return nil, fmt.Errorf("create list: %w", ErrNilRecord)
	}

	created := model.List{
		ID:        uuid.New().String(),
		Name:      list.Name,
		OwnerID:   list.OwnerID,
		CreatedAt: time.Now().UTC(),
	}
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO lists (id, name, owner_id, created_at) VALUES (?, ?, ?, ?)",
		created.ID, created.Name, created.OwnerID, created.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("create list: %w", err)
	}

	return &created, nil
}

// GetList retrieves a list by ID.
func (s *SQLStore) GetList(ctx context.Context, id string) (*model.List, error) {
	if id == "" {
		return nil, ErrInvalidID
	}

	var list model.List
	err := s.db.QueryRowContext(ctx,
		"SELECT id, name, owner_id, created_at FROM lists WHERE id = ?", id,
	).Scan(&list.ID, &list.Name, &list.OwnerID, &list.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get list: %w", err)
	}

	return &list, nil
}

// ListsForUser returns owned lists followed by shared lists.
func (s *SQLStore) ListsForUser(ctx context.Context, userID string) ([]model.List, error) {
	if userID == "" {
		return nil, ErrInvalidID
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT l.id, l.name, l.owner_id, l.created_at, (l.owner_id = ?) AS owned
		FROM lists l
		LEFT JOIN shares sh ON sh.list_id = l.id AND sh.user_id = ?
		WHERE l.owner_id = ? OR sh.user_id IS NOT NULL
		ORDER BY owned DESC, l.created_at`,
		userID, userID, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("lists for user: %w", err)
	}
	defer func() { _ = rows.Close() }()

	lists := make([]model.List, 0)
	for rows.Next() {
		var list model.List
		var owned bool
		if err := rows.Scan(&list.ID, &list.Name, &list.OwnerID, &list.CreatedAt, &owned); err != nil {
			return nil, fmt.Errorf("lists for user: %w", err)
		}
		lists = append(lists, list)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("lists for user: %w", err)
	}

	return lists, nil
}

// CreateShare grants a user access to a list.
func (s *SQLStore) CreateShare(ctx context.Context, share *model.Share) (*model.Share, error) {
	if share == nil {
		return nil, fmt.Errorf("create share: %w", ErrNilRecord)
	}

	var existing string
	err := s.db.QueryRowContext(ctx,
		"SELECT id FROM shares WHERE list_id = ? AND user_id = ?", share.ListID, share.UserID,
	).Scan(&existing)
	switch {
	case err == nil:
		return nil, ErrAlreadyExists
	case !errors.Is(err, sql.ErrNoRows):
		return nil, fmt.Errorf("create share: %w", err)
	}

	created := model.Share{
		ID:        uuid.New().String(),
		ListID:    share.ListID,
		UserID:    share.UserID,
		CreatedAt: time.Now().UTC(),
	}
	_, err = s.db.ExecContext(ctx,
		"INSERT INTO shares (id, list_id, user_id, created_at) VALUES (?, ?, ?, ?)",
		created.ID, created.ListID, created.UserID, created.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("create share: %w", err)
	}

	return &created, nil
}

// GroupsByList returns all groups of a list with their items, items sorted
// purchased-last then by name.
func (s *SQLStore) GroupsByList(ctx context.Context, listID string) ([]model.Group, error) {
	if listID == "" {
		return nil, ErrInvalidID
	}
	if _, err := s.GetList(ctx, listID); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, list_id, name, color, icon, version FROM groups WHERE list_id = ? ORDER BY name", listID)
	if err != nil {
		return nil, fmt.Errorf("groups by list: %w", err)
	}
	defer func() { _ = rows.Close() }()

	groups := make([]model.Group, 0)
	for rows.Next() {
		var g model.Group
		if err := rows.Scan(&g.ID, &g.ListID, &g.Name, &g.Color, &g.Icon, &g.Version); err != nil {
			return nil, fmt.Errorf("groups by list: %w", err)
		}
		groups = append(groups, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("groups by list: %w", err)
	}

	for i := range groups {
		items, err := s.itemsOf(ctx, groups[i].ID)
		if err != nil {
			return nil, err
		}
		groups[i].Items = items
	}

	return groups, nil
}

// GetGroup retrieves a group by ID with its items.
func (s *SQLStore) GetGroup(ctx context.Context, id string) (*model.Group, error) {
	if id == "" {
		return nil, ErrInvalidID
	}

	var g model.Group
	err := s.db.QueryRowContext(ctx,
		"SELECT id, list_id, name, color, icon, version FROM groups WHERE id = ?", id,
	).Scan(&g.ID, &g.ListID, &g.Name, &g.Color, &g.Icon, &g.Version)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get group: %w", err)
	}

	items, err := s.itemsOf(ctx, id)
	if err != nil {
		return nil, err
	}
	g.Items = items

	return &g, nil
}

// CreateGroup adds a new group to an existing list.
func (s *SQLStore) CreateGroup(ctx context.Context, group *model.Group) (*model.Group, error) {
	if group == nil {
		return nil, fmt.Errorf("create group: %w", ErrNilRecord)
	}
	if _, err := s.GetList(ctx, group.ListID); err != nil {
		return nil, fmt.Errorf("create group: list: %w", err)
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
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO groups (id, list_id, name, color, icon, version) VALUES (?, ?, ?, ?, ?, ?)",
		created.ID, created.ListID, created.Name, created.Color, created.Icon, created.Version,
	)
	if err != nil {
		return nil, fmt.Errorf("create group: %w", err)
	}

	return &created, nil
}

// UpdateGroup merges the patch into the group inside a transaction.
func (s *SQLStore) UpdateGroup(ctx context.Context, id string, patch model.GroupPatch) (*model.Group, error) {
	if id == "" {
		return nil, ErrInvalidID
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("update group: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var g model.Group
	err = tx.QueryRowContext(ctx,
		"SELECT id, list_id, name, color, icon, version FROM groups WHERE id = ?", id,
	).Scan(&g.ID, &g.ListID, &g.Name, &g.Color, &g.Icon, &g.Version)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("update group: %w", err)
	}
	if patch.Version != 0 && patch.Version != g.Version {
		return nil, ErrVersionConflict
	}

	if patch.Name != nil {
		g.Name = *patch.Name
	}
	if patch.Color != nil {
		g.Color = *patch.Color
	}
	if patch.Icon != nil {
		g.Icon = *patch.Icon
	}
	g.Version++

	_, err = tx.ExecContext(ctx,
		"UPDATE groups SET name = ?, color = ?, icon = ?, version = ? WHERE id = ?",
		g.Name, g.Color, g.Icon, g.Version, id,
	)
	if err != nil {
		return nil, fmt.Errorf("update group: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("update group: %w", err)
	}

	items, err := s.itemsOf(ctx, id)
	if err != nil {
		return nil, err
	}
	g.Items = items

	return &g, nil
}

// DeleteGroup removes a group; items cascade through the foreign key.
func (s *SQLStore) DeleteGroup(ctx context.Context, id string) error {
	if id == "" {
		return ErrInvalidID
	}

	res, err := s.db.ExecContext(ctx, "DELETE FROM groups WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete group: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete group: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}

	return nil
}

// GetItem retrieves an item by ID.
func (s *SQLStore) GetItem(ctx context.Context, id string) (*model.Item, error) {
	if id == "" {
		return nil, ErrInvalidID
	}

	var item model.Item
	err := s.db.QueryRowContext(ctx,
		"SELECT id, group_id, name, unit, quantity, price_cents, purchased, version FROM items WHERE id = ?", id,
	).Scan(&item.ID, &item.GroupID, &item.Name, &item.Unit, &item.Quantity, &item.Price, &item.Purchased, &item.Version)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}

	return &item, nil
}

// CreateItem adds a new item to an existing group.
func (s *SQLStore) CreateItem(ctx context.Context, item *model.Item) (*model.Item, error) {
	if item == nil {
		return nil, fmt.Errorf("create item: %w", ErrNilRecord)
	}
	if _, err := s.GetGroup(ctx, item.GroupID); err != nil {
		return nil, fmt.Errorf("create item: group: %w", err)
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
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO items (id, group_id, name, unit, quantity, price_cents, purchased, version) VALUES (?, ?, ?, ?, ?, ?, ?, ?)",
		created.ID, created.GroupID, created.Name, created.Unit, created.Quantity, int64(created.Price), created.Purchased, created.Version,
	)
	if err != nil {
		return nil, fmt.Errorf("create item: %w", err)
	}

	return &created, nil
}

// UpdateItem merges the patch into the item inside a transaction.
func (s *SQLStore) UpdateItem(ctx context.Context, id string, patch model.ItemPatch) (*model.Item, error) {
	if id == "" {
		return nil, ErrInvalidID
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("update item: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var item model.Item
	err = tx.QueryRowContext(ctx,
		"SELECT id, group_id, name, unit, quantity, price_cents, purchased, version FROM items WHERE id = ?", id,
	).Scan(&item.ID, &item.GroupID, &item.Name, &item.Unit, &item.Quantity, &item.Price, &item.Purchased, &item.Version)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("update item: %w", err)
	}
	if patch.Version != 0 && patch.Version != item.Version {
		return nil, ErrVersionConflict
	}

	if patch.Name != nil {
		item.Name = *patch.Name
	}
	if patch.Unit != nil {
		item.Unit = *patch.Unit
	}
	if patch.Quantity != nil {
		item.Quantity = *patch.Quantity
	}
	if patch.Price != nil {
		item.Price = *patch.Price
	}
	if patch.Purchased != nil {
		item.Purchased = *patch.Purchased
	}
	item.Version++

	_, err = tx.ExecContext(ctx,
		"UPDATE items SET name = ?, unit = ?, quantity = ?, price_cents = ?, purchased = ?, version = ? WHERE id = ?",
		item.Name, item.Unit, item.Quantity, int64(item.Price), item.Purchased, item.Version, id,
	)
	if err != nil {
		return nil, fmt.Errorf("update item: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("update item: %w", err)
	}

	return &item, nil
}

// DeleteItem removes an item.
func (s *SQLStore) DeleteItem(ctx context.Context, id string) error {
	if id == "" {
		return ErrInvalidID
	}

	res, err := s.db.ExecContext(ctx, "DELETE FROM items WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete item: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete item: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}

	return nil
}

// Units returns the user-defined units of a user.
func (s *SQLStore) Units(ctx context.Context, userID string) ([]string, error) {
	if userID == "" {
		return nil, ErrInvalidID
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT unit FROM units WHERE user_id = ? ORDER BY unit", userID)
	if err != nil {
		return nil, fmt.Errorf("units: %w", err)
	}
	defer func() { _ = rows.Close() }()

	units := make([]string, 0)
	for rows.Next() {
		var unit string
		if err := rows.Scan(&unit); err != nil {
			return nil, fmt.Errorf("units: %w", err)
		}
		units = append(units, unit)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("units: %w", err)
	}

	return units, nil
}

// AddUnit records a user-defined unit, ignoring duplicates.
func (s *SQLStore) AddUnit(ctx context.Context, userID, unit string) error {
	if userID == "" {
		return ErrInvalidID
	}

	_, err := s.db.ExecContext(ctx,
		"INSERT OR IGNORE INTO units (user_id, unit) VALUES (?, ?)", userID, unit)
	if err != nil {
		return fmt.Errorf("add unit: %w", err)
	}

	return nil
}

// Close closes the database connection.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

// itemsOf loads the items of a group sorted purchased-last then by name.
func (s *SQLStore) itemsOf(ctx context.Context, groupID string) ([]model.Item, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, group_id, name, unit, quantity, price_cents, purchased, version FROM items WHERE group_id = ? ORDER BY purchased, name",
		groupID,
	)
	if err != nil {
		return nil, fmt.Errorf("items of group: %w", err)
	}
	defer func() { _ = rows.Close() }()

	items := make([]model.Item, 0)
	for rows.Next() {
		var item model.Item
		if err := rows.Scan(&item.ID, &item.GroupID, &item.Name, &item.Unit, &item.Quantity, &item.Price, &item.Purchased, &item.Version); err != nil {
			return nil, fmt.Errorf("items of group: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("items of group: %w", err)
	}

	return items, nil
}
