package shopping

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/robsonsouzans/listans/internal/model"
	"github.com/robsonsouzans/listans/internal/store"
)

// Service is the shopping data store. It owns an in-memory snapshot of each
// list's groups, mirrors every mutation to the persistence adapter, and
// applies the in-memory change only after the durable write succeeds, so the
// snapshot never drifts ahead of the backing store. After each successful
// mutation it publishes the recomputed list summary to subscribers.
type Service struct {
	store   store.Store
	logger  *zap.Logger
	timeout time.Duration

	mu        sync.RWMutex
	snapshots map[string][]model.Group // list ID -> groups with items

	subMu       sync.Mutex
	subscribers map[string]map[chan model.ListSummary]struct{}
}

// NewService creates a shopping data store over the given persistence
// adapter. A positive timeout bounds every adapter call; expiry is treated as
// a normal persistence failure.
func NewService(st store.Store, logger *zap.Logger, timeout time.Duration) *Service {
	return &Service{
		store:       st,
		logger:      logger,
		timeout:     timeout,
		snapshots:   make(map[string][]model.Group),
		subscribers: make(map[string]map[chan model.ListSummary]struct{}),
	}
}

// opCtx bounds a persistence adapter call with the configured timeout.
func (s *Service) opCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.timeout)
}

// Groups loads the groups of a list from the persistence adapter, refreshes
// the in-memory snapshot, and returns a copy safe for the caller to hold.
func (s *Service) Groups(ctx context.Context, listID string) ([]model.Group, error) {
	opCtx, cancel := s.opCtx(ctx)
	defer cancel()

	groups, err := s.store.GroupsByList(opCtx, listID)
	if err != nil {
		return nil, fmt.Errorf("loading groups: %w", err)
	}

	s.mu.Lock()
	s.snapshots[listID] = groups
	s.mu.Unlock()

	return cloneGroups(groups), nil
}

// Search returns the list's groups filtered by a free-text query.
func (s *Service) Search(ctx context.Context, listID, query string) ([]model.Group, error) {
	groups, err := s.Groups(ctx, listID)
	if err != nil {
		return nil, err
	}
	return FilterGroups(groups, query), nil
}

// AddGroup creates a group in the list. The name must be non-empty after
// trimming; color and icon default to the first palette entries when empty.
// Nothing is persisted when validation fails.
func (s *Service) AddGroup(ctx context.Context, listID, name, color, icon string) (*model.Group, error) {
	group := model.Group{
		ListID: listID,
		Name:   name,
		Color:  color,
		Icon:   icon,
	}
	if group.Color == "" {
		group.Color = model.GroupColors[0]
	}
	if group.Icon == "" {
		group.Icon = model.GroupIcons[0]
	}
	group.Normalize()
	if err := group.Validate(); err != nil {
		return nil, err
	}

	opCtx, cancel := s.opCtx(ctx)
	defer cancel()

	created, err := s.store.CreateGroup(opCtx, &group)
	if err != nil {
		s.logger.Error("failed to persist group", zap.String("list_id", listID), zap.Error(err))
		return nil, fmt.Errorf("adding group: %w", err)
	}

	s.mu.Lock()
	if snapshot, ok := s.snapshots[listID]; ok {
		s.snapshots[listID] = append(snapshot, *created)
	}
	s.mu.Unlock()

	s.notify(listID)
	return created, nil
}

// UpdateGroup merges the patch into the group. The snapshot is only touched
// after the persistence write succeeds.
func (s *Service) UpdateGroup(ctx context.Context, groupID string, patch model.GroupPatch) (*model.Group, error) {
	if patch.Name != nil {
		trimmed := strings.TrimSpace(*patch.Name)
		if trimmed == "" {
			return nil, model.ErrEmptyName
		}
		patch.Name = &trimmed
	}
	if patch.Color != nil && !model.ValidGroupColor(*patch.Color) {
		return nil, model.ErrInvalidColor
	}
	if patch.Icon != nil && !model.ValidGroupIcon(*patch.Icon) {
		return nil, model.ErrInvalidIcon
	}

	opCtx, cancel := s.opCtx(ctx)
	defer cancel()

	updated, err := s.store.UpdateGroup(opCtx, groupID, patch)
	if err != nil {
		s.logger.Error("failed to persist group update", zap.String("group_id", groupID), zap.Error(err))
		return nil, fmt.Errorf("updating group: %w", err)
	}

	s.mu.Lock()
	if snapshot, ok := s.snapshots[updated.ListID]; ok {
		for i := range snapshot {
			if snapshot[i].ID == groupID {
				items := snapshot[i].Items
				snapshot[i] = *updated
				snapshot[i].Items = items
			}
		}
	}
	s.mu.Unlock()

	s.notify(updated.ListID)
	return updated, nil
}

// DeleteGroup removes the group and, with it, all of its items.
func (s *Service) DeleteGroup(ctx context.Context, groupID string) error {
	opCtx, cancel := s.opCtx(ctx)
	defer cancel()

	group, err := s.store.GetGroup(opCtx, groupID)
	if err != nil {
		return fmt.Errorf("deleting group: %w", err)
	}
	if err := s.store.DeleteGroup(opCtx, groupID); err != nil {
		s.logger.Error("failed to delete group", zap.String("group_id", groupID), zap.Error(err))
		return fmt.Errorf("deleting group: %w", err)
	}

	s.mu.Lock()
	if snapshot, ok := s.snapshots[group.ListID]; ok {
		kept := snapshot[:0]
		for _, g := range snapshot {
			if g.ID != groupID {
				kept = append(kept, g)
			}
		}
		s.snapshots[group.ListID] = kept
	}
	s.mu.Unlock()

	s.notify(group.ListID)
	return nil
}

// AddItem creates an item in the group with purchased defaulting to false.
// Quantity and price are clamped, not rejected; an empty trimmed name aborts
// before any persistence call.
func (s *Service) AddItem(ctx context.Context, groupID string, item model.Item) (*model.Item, error) {
	item.GroupID = groupID
	item.Purchased = false
	item.Normalize()
	if err := item.Validate(); err != nil {
		return nil, err
	}

	opCtx, cancel := s.opCtx(ctx)
	defer cancel()

	created, err := s.store.CreateItem(opCtx, &item)
	if err != nil {
		s.logger.Error("failed to persist item", zap.String("group_id", groupID), zap.Error(err))
		return nil, fmt.Errorf("adding item: %w", err)
	}

	listID := s.listOfGroup(opCtx, groupID)
	s.mu.Lock()
	if snapshot, ok := s.snapshots[listID]; ok {
		for i := range snapshot {
			if snapshot[i].ID == groupID {
				snapshot[i].Items = append(snapshot[i].Items, *created)
			}
		}
	}
	s.mu.Unlock()

	s.notify(listID)
	return created, nil
}

// UpdateItem merges the patch into the item. Lookup is by item ID across all
// groups. Clamping rules match item creation.
func (s *Service) UpdateItem(ctx context.Context, itemID string, patch model.ItemPatch) (*model.Item, error) {
	if patch.Name != nil {
		trimmed := strings.TrimSpace(*patch.Name)
		if trimmed == "" {
			return nil, model.ErrEmptyName
		}
		patch.Name = &trimmed
	}
	patch.Clamp()

	opCtx, cancel := s.opCtx(ctx)
	defer cancel()

	updated, err := s.store.UpdateItem(opCtx, itemID, patch)
	if err != nil {
		s.logger.Error("failed to persist item update", zap.String("item_id", itemID), zap.Error(err))
		return nil, fmt.Errorf("updating item: %w", err)
	}

	listID := s.listOfGroup(opCtx, updated.GroupID)
	s.mu.Lock()
	if snapshot, ok := s.snapshots[listID]; ok {
		for i := range snapshot {
			for j := range snapshot[i].Items {
				if snapshot[i].Items[j].ID == itemID {
					snapshot[i].Items[j] = *updated
				}
			}
		}
	}
	s.mu.Unlock()

	s.notify(listID)
	return updated, nil
}

// DeleteItem removes the item from its owning group.
func (s *Service) DeleteItem(ctx context.Context, itemID string) error {
	opCtx, cancel := s.opCtx(ctx)
	defer cancel()

	item, err := s.store.GetItem(opCtx, itemID)
	if err != nil {
		return fmt.Errorf("deleting item: %w", err)
	}
	if err := s.store.DeleteItem(opCtx, itemID); err != nil {
		s.logger.Error("failed to delete item", zap.String("item_id", itemID), zap.Error(err))
		return fmt.Errorf("deleting item: %w", err)
	}

	listID := s.listOfGroup(opCtx, item.GroupID)
	s.mu.Lock()
	if snapshot, ok := s.snapshots[listID]; ok {
		for i := range snapshot {
			if snapshot[i].ID != item.GroupID {
				continue
			}
			kept := snapshot[i].Items[:0]
			for _, it := range snapshot[i].Items {
				if it.ID != itemID {
					kept = append(kept, it)
				}
			}
			snapshot[i].Items = kept
		}
	}
	s.mu.Unlock()

	s.notify(listID)
	return nil
}

// TogglePurchased is a named convenience over UpdateItem restricted to the
// purchased flag. Toggling twice restores the item's original contribution.
func (s *Service) TogglePurchased(ctx context.Context, itemID string, purchased bool) (*model.Item, error) {
	return s.UpdateItem(ctx, itemID, model.ItemPatch{Purchased: &purchased})
}

// Summary recomputes the aggregation snapshot for the list.
func (s *Service) Summary(ctx context.Context, listID string) (model.ListSummary, error) {
	groups, err := s.Groups(ctx, listID)
	if err != nil {
		return model.ListSummary{}, err
	}
	return Summarize(listID, groups), nil
}

// Subscribe registers for summary updates of a list. The returned function
// removes the subscription and closes the channel.
func (s *Service) Subscribe(listID string) (<-chan model.ListSummary, func()) {
	ch := make(chan model.ListSummary, 8)

	s.subMu.Lock()
	if s.subscribers[listID] == nil {
		s.subscribers[listID] = make(map[chan model.ListSummary]struct{})
	}
	s.subscribers[listID][ch] = struct{}{}
	s.subMu.Unlock()

	return ch, func() {
		s.subMu.Lock()
		defer s.subMu.Unlock()
		if subs, ok := s.subscribers[listID]; ok {
			if _, ok := subs[ch]; ok {
				delete(subs, ch)
				close(ch)
			}
			if len(subs) == 0 {
				delete(s.subscribers, listID)
			}
		}
	}
}

// notify publishes the list's current summary to subscribers. Slow consumers
// miss intermediate updates instead of blocking mutations.
func (s *Service) notify(listID string) {
	if listID == "" {
		return
	}

	s.mu.RLock()
	snapshot, ok := s.snapshots[listID]
	var summary model.ListSummary
	if ok {
		summary = Summarize(listID, snapshot)
	}
	s.mu.RUnlock()
	if !ok {
		return
	}

	s.subMu.Lock()
	defer s.subMu.Unlock()
	for ch := range s.subscribers[listID] {
		select {
		case ch <- summary:
		default:
		}
	}
}

// listOfGroup resolves the owning list of a group, preferring the snapshot
// over an adapter round trip.
func (s *Service) listOfGroup(ctx context.Context, groupID string) string {
	s.mu.RLock()
	for listID, snapshot := range s.snapshots {
		for _, g := range snapshot {
			if g.ID == groupID {
				s.mu.RUnlock()
				return listID
			}
		}
	}
	s.mu.RUnlock()

	group, err := s.store.GetGroup(ctx, groupID)
	if err != nil {
		s.logger.Warn("failed to resolve group's list", zap.String("group_id", groupID), zap.Error(err))
		return ""
	}
	return group.ListID
}

func cloneGroups(groups []model.Group) []model.Group {
	cloned := make([]model.Group, len(groups))
	for i, g := range groups {
		cloned[i] = g
		cloned[i].Items = make([]model.Item, len(g.Items))
		copy(cloned[i].Items, g.Items)
	}
	return cloned
}
