package shopping

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/robsonsouzans/listans/internal/model"
	"github.com/robsonsouzans/listans/internal/store"
)

var errBackend = errors.New("backend unavailable")

// flakyStore wraps a MemoryStore and fails writes on demand, counting the
// write attempts that reach the backend.
type flakyStore struct {
	*store.MemoryStore
	failWrites bool
	writeCalls int
}

func newFlakyStore() *flakyStore {
	return &flakyStore{MemoryStore: store.NewMemoryStore()}
}

func (f *flakyStore) CreateGroup(ctx context.Context, group *model.Group) (*model.Group, error) {
	f.writeCalls++
	if f.failWrites {
		return nil, errBackend
	}
	return f.MemoryStore.CreateGroup(ctx, group)
}

func (f *flakyStore) CreateItem(ctx context.Context, item *model.Item) (*model.Item, error) {
	f.writeCalls++
	if f.failWrites {
		return nil, errBackend
	}
	return f.MemoryStore.CreateItem(ctx, item)
}

func (f *flakyStore) UpdateItem(ctx context.Context, id string, patch model.ItemPatch) (*model.Item, error) {
	f.writeCalls++
	if f.failWrites {
		return nil, errBackend
	}
	return f.MemoryStore.UpdateItem(ctx, id, patch)
}

func (f *flakyStore) DeleteItem(ctx context.Context, id string) error {
	f.writeCalls++
	if f.failWrites {
		return errBackend
	}
	return f.MemoryStore.DeleteItem(ctx, id)
}

// newTestService seeds a user, list, and group and returns the service with
// its backing store and the seeded IDs.
func newTestService(t *testing.T) (*Service, *flakyStore, string, string) {
	t.Helper()
	ctx := context.Background()
	fs := newFlakyStore()

	user, err := fs.CreateUser(ctx, &model.User{Name: "Ana", Email: "ana@example.com", PasswordHash: "x"})
	if err != nil {
		t.Fatalf("seeding user: %v", err)
	}
	list, err := fs.CreateList(ctx, &model.List{Name: model.DefaultListName, OwnerID: user.ID})
	if err != nil {
		t.Fatalf("seeding list: %v", err)
	}
	group, err := fs.CreateGroup(ctx, &model.Group{
		ListID: list.ID,
		Name:   "Groceries",
		Color:  model.GroupColors[0],
		Icon:   model.GroupIcons[0],
	})
	if err != nil {
		t.Fatalf("seeding group: %v", err)
	}
	fs.writeCalls = 0

	svc := NewService(fs, zap.NewNop(), time.Second)
	return svc, fs, list.ID, group.ID
}

func TestService_Groups_RefreshesSnapshot(t *testing.T) {
	svc, _, listID, groupID := newTestService(t)

	groups, err := svc.Groups(context.Background(), listID)
	if err != nil {
		t.Fatalf("Groups() error: %v", err)
	}
	if len(groups) != 1 || groups[0].ID != groupID {
		t.Fatalf("Groups() = %+v, want the seeded group", groups)
	}

	svc.mu.RLock()
	_, ok := svc.snapshots[listID]
	svc.mu.RUnlock()
	if !ok {
		t.Error("snapshot should be populated after Groups()")
	}
}

func TestService_AddGroup_Defaults(t *testing.T) {
	svc, _, listID, _ := newTestService(t)

	group, err := svc.AddGroup(context.Background(), listID, "Bakery", "", "")
	if err != nil {
		t.Fatalf("AddGroup() error: %v", err)
	}
	if group.Color != model.GroupColors[0] {
		t.Errorf("Color = %q, want palette default %q", group.Color, model.GroupColors[0])
	}
	if group.Icon != model.GroupIcons[0] {
		t.Errorf("Icon = %q, want glyph default %q", group.Icon, model.GroupIcons[0])
	}
}

func TestService_AddGroup_EmptyNameSkipsPersistence(t *testing.T) {
	svc, fs, listID, _ := newTestService(t)

	_, err := svc.AddGroup(context.Background(), listID, "   ", "", "")
	if !errors.Is(err, model.ErrEmptyName) {
		t.Fatalf("AddGroup() error = %v, want %v", err, model.ErrEmptyName)
	}
	if fs.writeCalls != 0 {
		t.Errorf("persistence was called %d times for invalid input, want 0", fs.writeCalls)
	}
}

func TestService_AddItem_EmptyNameSkipsPersistence(t *testing.T) {
	svc, fs, _, groupID := newTestService(t)

	_, err := svc.AddItem(context.Background(), groupID, model.Item{Name: "  "})
	if !errors.Is(err, model.ErrEmptyName) {
		t.Fatalf("AddItem() error = %v, want %v", err, model.ErrEmptyName)
	}
	if fs.writeCalls != 0 {
		t.Errorf("persistence was called %d times for invalid input, want 0", fs.writeCalls)
	}
}

func TestService_AddItem_ClampsAndDefaults(t *testing.T) {
	svc, _, _, groupID := newTestService(t)

	item, err := svc.AddItem(context.Background(), groupID, model.Item{
		Name:     "  Banana  ",
		Quantity: 0,
		Price:    -50,
	})
	if err != nil {
		t.Fatalf("AddItem() error: %v", err)
	}
	if item.Name != "Banana" {
		t.Errorf("Name = %q, want Banana", item.Name)
	}
	if item.Unit != model.DefaultUnit {
		t.Errorf("Unit = %q, want %q", item.Unit, model.DefaultUnit)
	}
	if item.Quantity != model.MinQuantity {
		t.Errorf("Quantity = %d, want %d", item.Quantity, model.MinQuantity)
	}
	if item.Price != 0 {
		t.Errorf("Price = %d, want 0", item.Price)
	}
	if item.Purchased {
		t.Error("new items must start unpurchased")
	}
}

func TestService_FailedWriteLeavesSnapshotIntact(t *testing.T) {
	svc, fs, listID, groupID := newTestService(t)
	ctx := context.Background()

	if _, err := svc.AddItem(ctx, groupID, model.Item{Name: "Banana", Quantity: 2, Price: 599}); err != nil {
		t.Fatalf("AddItem() error: %v", err)
	}
	if _, err := svc.Groups(ctx, listID); err != nil {
		t.Fatalf("Groups() error: %v", err)
	}

	before := Summarize(listID, snapshotOf(svc, listID))

	fs.failWrites = true
	if _, err := svc.AddItem(ctx, groupID, model.Item{Name: "Tomato", Quantity: 1, Price: 850}); !errors.Is(err, errBackend) {
		t.Fatalf("AddItem() error = %v, want backend failure", err)
	}

	after := Summarize(listID, snapshotOf(svc, listID))
	if after.GrandTotal != before.GrandTotal || after.TotalItems != before.TotalItems {
		t.Errorf("snapshot changed after failed write: before %+v, after %+v", before, after)
	}
}

func TestService_TogglePurchased_Idempotent(t *testing.T) {
	svc, _, listID, groupID := newTestService(t)
	ctx := context.Background()

	item, err := svc.AddItem(ctx, groupID, model.Item{Name: "Tomato", Quantity: 1, Price: 850})
	if err != nil {
		t.Fatalf("AddItem() error: %v", err)
	}

	if _, err := svc.TogglePurchased(ctx, item.ID, true); err != nil {
		t.Fatalf("TogglePurchased() error: %v", err)
	}
	first, err := svc.Summary(ctx, listID)
	if err != nil {
		t.Fatalf("Summary() error: %v", err)
	}

	if _, err := svc.TogglePurchased(ctx, item.ID, true); err != nil {
		t.Fatalf("TogglePurchased() error: %v", err)
	}
	second, err := svc.Summary(ctx, listID)
	if err != nil {
		t.Fatalf("Summary() error: %v", err)
	}

	if first.PurchasedTotal != second.PurchasedTotal || first.TotalPurchased != second.TotalPurchased {
		t.Errorf("repeated toggle changed totals: %+v vs %+v", first, second)
	}
	if second.PurchasedTotal != 850 {
		t.Errorf("PurchasedTotal = %d, want 850", second.PurchasedTotal)
	}
}

func TestService_TogglePurchased_RoundTripRestoresTotals(t *testing.T) {
	svc, _, listID, groupID := newTestService(t)
	ctx := context.Background()

	item, err := svc.AddItem(ctx, groupID, model.Item{Name: "Tomato", Quantity: 1, Price: 850})
	if err != nil {
		t.Fatalf("AddItem() error: %v", err)
	}

	base, err := svc.Summary(ctx, listID)
	if err != nil {
		t.Fatalf("Summary() error: %v", err)
	}

	if _, err := svc.TogglePurchased(ctx, item.ID, true); err != nil {
		t.Fatalf("TogglePurchased() error: %v", err)
	}
	if _, err := svc.TogglePurchased(ctx, item.ID, false); err != nil {
		t.Fatalf("TogglePurchased() error: %v", err)
	}

	restored, err := svc.Summary(ctx, listID)
	if err != nil {
		t.Fatalf("Summary() error: %v", err)
	}
	if restored.PurchasedTotal != base.PurchasedTotal || restored.TotalPurchased != base.TotalPurchased {
		t.Errorf("toggle round trip changed totals: %+v vs %+v", base, restored)
	}
}

func TestService_Search(t *testing.T) {
	svc, _, listID, groupID := newTestService(t)
	ctx := context.Background()

	if _, err := svc.AddItem(ctx, groupID, model.Item{Name: "Banana"}); err != nil {
		t.Fatalf("AddItem() error: %v", err)
	}
	if _, err := svc.AddItem(ctx, groupID, model.Item{Name: "Tomato"}); err != nil {
		t.Fatalf("AddItem() error: %v", err)
	}

	groups, err := svc.Search(ctx, listID, "ban")
	if err != nil {
		t.Fatalf("Search() error: %v", err)
	}
	if len(groups) != 1 {
		t.Fatalf("expected 1 group, got %d", len(groups))
	}
	if len(groups[0].Items) != 1 || groups[0].Items[0].Name != "Banana" {
		t.Errorf("items = %+v, want only Banana", groups[0].Items)
	}
}

func TestService_Subscribe_ReceivesSummaryAfterMutation(t *testing.T) {
	svc, _, listID, groupID := newTestService(t)
	ctx := context.Background()

	if _, err := svc.Groups(ctx, listID); err != nil {
		t.Fatalf("Groups() error: %v", err)
	}

	updates, unsubscribe := svc.Subscribe(listID)
	defer unsubscribe()

	if _, err := svc.AddItem(ctx, groupID, model.Item{Name: "Banana", Quantity: 2, Price: 599}); err != nil {
		t.Fatalf("AddItem() error: %v", err)
	}

	select {
	case summary := <-updates:
		if summary.GrandTotal != 1198 {
			t.Errorf("GrandTotal = %d, want 1198", summary.GrandTotal)
		}
	case <-time.After(time.Second):
		t.Fatal("no summary received after mutation")
	}
}

func TestService_Unsubscribe_ClosesChannel(t *testing.T) {
	svc, _, listID, _ := newTestService(t)

	updates, unsubscribe := svc.Subscribe(listID)
	unsubscribe()

	select {
	case _, ok := <-updates:
		if ok {
			t.Error("channel should be closed after unsubscribe")
		}
	case <-time.After(time.Second):
		t.Fatal("channel not closed after unsubscribe")
	}
}

func TestService_DeleteGroup_RemovesItems(t *testing.T) {
	svc, fs, listID, groupID := newTestService(t)
	ctx := context.Background()

	item, err := svc.AddItem(ctx, groupID, model.Item{Name: "Banana"})
	if err != nil {
		t.Fatalf("AddItem() error: %v", err)
	}

	if err := svc.DeleteGroup(ctx, groupID); err != nil {
		t.Fatalf("DeleteGroup() error: %v", err)
	}

	if _, err := fs.GetItem(ctx, item.ID); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("GetItem() after group delete = %v, want %v", err, store.ErrNotFound)
	}

	groups, err := svc.Groups(ctx, listID)
	if err != nil {
		t.Fatalf("Groups() error: %v", err)
	}
	if len(groups) != 0 {
		t.Errorf("expected no groups, got %d", len(groups))
	}
}

func snapshotOf(svc *Service, listID string) []model.Group {
	svc.mu.RLock()
	defer svc.mu.RUnlock()
	return cloneGroups(svc.snapshots[listID])
}
