package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/robsonsouzans/listans/internal/auth"
	"github.com/robsonsouzans/listans/internal/model"
	"github.com/robsonsouzans/listans/internal/shopping"
	"github.com/robsonsouzans/listans/internal/store"
)

// ShoppingHandler handles list, group, item, summary, and unit requests.
// Group and item mutations flow through the shopping service; list, share,
// and unit operations talk to the persistence adapter directly.
type ShoppingHandler struct {
	service *shopping.Service
	store   store.Store
	logger  *zap.Logger
}

// NewShoppingHandler creates a new ShoppingHandler instance.
func NewShoppingHandler(service *shopping.Service, st store.Store, logger *zap.Logger) *ShoppingHandler {
	return &ShoppingHandler{
		service: service,
		store:   st,
		logger:  logger,
	}
}

// RegisterRoutes registers the shopping routes with the router.
func (h *ShoppingHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/api/v1/lists", h.Lists).Methods(http.MethodGet)
	router.HandleFunc("/api/v1/lists/{listID}/shares", h.CreateShare).Methods(http.MethodPost)
	router.HandleFunc("/api/v1/lists/{listID}/groups", h.Groups).Methods(http.MethodGet)
	router.HandleFunc("/api/v1/lists/{listID}/groups", h.CreateGroup).Methods(http.MethodPost)
	router.HandleFunc("/api/v1/lists/{listID}/summary", h.Summary).Methods(http.MethodGet)
	router.HandleFunc("/api/v1/groups/{groupID}", h.UpdateGroup).Methods(http.MethodPatch)
	router.HandleFunc("/api/v1/groups/{groupID}", h.DeleteGroup).Methods(http.MethodDelete)
	router.HandleFunc("/api/v1/groups/{groupID}/items", h.CreateItem).Methods(http.MethodPost)
	router.HandleFunc("/api/v1/items/{itemID}", h.UpdateItem).Methods(http.MethodPatch)
	router.HandleFunc("/api/v1/items/{itemID}", h.DeleteItem).Methods(http.MethodDelete)
	router.HandleFunc("/api/v1/items/{itemID}/purchased", h.TogglePurchased).Methods(http.MethodPost)
	router.HandleFunc("/api/v1/units", h.Units).Methods(http.MethodGet)
	router.HandleFunc("/api/v1/units", h.AddUnit).Methods(http.MethodPost)
}

// Lists handles GET /api/v1/lists requests. A user's first read creates
// their default list.
func (h *ShoppingHandler) Lists(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user, ok := auth.FromContext(ctx)
	if !ok {
		writeError(w, h.logger, http.StatusUnauthorized, "authentication required")
		return
	}

	lists, err := h.store.ListsForUser(ctx, user.ID)
	if err != nil {
		h.handleStoreError(w, err, "list lists")
		return
	}

	if len(lists) == 0 {
		created, err := h.store.CreateList(ctx, &model.List{
			Name:    model.DefaultListName,
			OwnerID: user.ID,
		})
		if err != nil {
			h.handleStoreError(w, err, "create default list")
			return
		}
		h.logger.Info("default list created",
			zap.String("user_id", user.ID),
			zap.String("list_id", created.ID),
		)
		lists = []model.List{*created}
	}

	writeJSON(w, h.logger, http.StatusOK, model.NewSuccessResponse(lists))
}

// shareRequest is the body of a share request.
type shareRequest struct {
	Email string `json:"email"`
}

// CreateShare handles POST /api/v1/lists/{listID}/shares requests. Only the
// list owner can share it.
func (h *ShoppingHandler) CreateShare(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user, ok := auth.FromContext(ctx)
	if !ok {
		writeError(w, h.logger, http.StatusUnauthorized, "authentication required")
		return
	}
	listID := mux.Vars(r)["listID"]

	list, err := h.store.GetList(ctx, listID)
	if err != nil {
		h.handleStoreError(w, err, "get list")
		return
	}
	if list.OwnerID != user.ID {
		writeError(w, h.logger, http.StatusForbidden, "only the list owner can share it")
		return
	}

	var input shareRequest
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		h.logger.Warn("invalid request body", zap.Error(err))
		writeError(w, h.logger, http.StatusBadRequest, "invalid request body")
		return
	}

	target, err := h.store.GetUserByEmail(ctx, strings.TrimSpace(input.Email))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, h.logger, http.StatusNotFound, "no account with this email")
			return
		}
		h.handleStoreError(w, err, "look up share target")
		return
	}
	if target.ID == user.ID {
		writeError(w, h.logger, http.StatusBadRequest, "cannot share a list with yourself")
		return
	}

	share, err := h.store.CreateShare(ctx, &model.Share{
		ListID: listID,
		UserID: target.ID,
	})
	if err != nil {
		h.handleStoreError(w, err, "create share")
		return
	}

	writeJSON(w, h.logger, http.StatusCreated, model.NewSuccessResponse(share))
}

// Groups handles GET /api/v1/lists/{listID}/groups requests. An optional ?q=
// parameter filters groups and items by name.
func (h *ShoppingHandler) Groups(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	listID := mux.Vars(r)["listID"]
	if !h.authorizeList(w, r, listID) {
		return
	}

	query := r.URL.Query().Get("q")
	groups, err := h.service.Search(ctx, listID, query)
	if err != nil {
		h.handleStoreError(w, err, "list groups")
		return
	}

	writeJSON(w, h.logger, http.StatusOK, model.NewSuccessResponse(groups))
}

// createGroupRequest is the body of a group creation request.
type createGroupRequest struct {
	Name  string `json:"name"`
	Color string `json:"color"`
	Icon  string `json:"icon"`
}

// CreateGroup handles POST /api/v1/lists/{listID}/groups requests.
func (h *ShoppingHandler) CreateGroup(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	listID := mux.Vars(r)["listID"]
	if !h.authorizeList(w, r, listID) {
		return
	}

	var input createGroupRequest
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		h.logger.Warn("invalid request body", zap.Error(err))
		writeError(w, h.logger, http.StatusBadRequest, "invalid request body")
		return
	}

	group, err := h.service.AddGroup(ctx, listID, input.Name, input.Color, input.Icon)
	if err != nil {
		h.handleStoreError(w, err, "create group")
		return
	}

	writeJSON(w, h.logger, http.StatusCreated, model.NewSuccessResponse(group))
}

// UpdateGroup handles PATCH /api/v1/groups/{groupID} requests.
func (h *ShoppingHandler) UpdateGroup(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	groupID := mux.Vars(r)["groupID"]
	if _, ok := h.authorizeGroup(w, r, groupID); !ok {
		return
	}

	var patch model.GroupPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		h.logger.Warn("invalid request body", zap.Error(err))
		writeError(w, h.logger, http.StatusBadRequest, "invalid request body")
		return
	}

	group, err := h.service.UpdateGroup(ctx, groupID, patch)
	if err != nil {
		h.handleStoreError(w, err, "update group")
		return
	}

	writeJSON(w, h.logger, http.StatusOK, model.NewSuccessResponse(group))
}

// DeleteGroup handles DELETE /api/v1/groups/{groupID} requests. The group's
// items go with it.
func (h *ShoppingHandler) DeleteGroup(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	groupID := mux.Vars(r)["groupID"]
	if _, ok := h.authorizeGroup(w, r, groupID); !ok {
		return
	}

	if err := h.service.DeleteGroup(ctx, groupID); err != nil {
		h.handleStoreError(w, err, "delete group")
		return
	}

	writeJSON(w, h.logger, http.StatusNoContent, nil)
}

// createItemRequest is the body of an item creation request.
type createItemRequest struct {
	Name     string      `json:"name"`
	Unit     string      `json:"unit"`
	Quantity int64       `json:"quantity"`
	Price    model.Cents `json:"price_cents"`
}

// CreateItem handles POST /api/v1/groups/{groupID}/items requests.
func (h *ShoppingHandler) CreateItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	groupID := mux.Vars(r)["groupID"]
	if _, ok := h.authorizeGroup(w, r, groupID); !ok {
		return
	}

	var input createItemRequest
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		h.logger.Warn("invalid request body", zap.Error(err))
		writeError(w, h.logger, http.StatusBadRequest, "invalid request body")
		return
	}

	item, err := h.service.AddItem(ctx, groupID, model.Item{
		Name:     input.Name,
		Unit:     input.Unit,
		Quantity: input.Quantity,
		Price:    input.Price,
	})
	if err != nil {
		h.handleStoreError(w, err, "create item")
		return
	}

	writeJSON(w, h.logger, http.StatusCreated, model.NewSuccessResponse(item))
}

// UpdateItem handles PATCH /api/v1/items/{itemID} requests.
func (h *ShoppingHandler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	itemID := mux.Vars(r)["itemID"]
	if _, ok := h.authorizeItem(w, r, itemID); !ok {
		return
	}

	var patch model.ItemPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		h.logger.Warn("invalid request body", zap.Error(err))
		writeError(w, h.logger, http.StatusBadRequest, "invalid request body")
		return
	}

	item, err := h.service.UpdateItem(ctx, itemID, patch)
	if err != nil {
		h.handleStoreError(w, err, "update item")
		return
	}

	writeJSON(w, h.logger, http.StatusOK, model.NewSuccessResponse(item))
}

// togglePurchasedRequest is the body of a purchased toggle request.
type togglePurchasedRequest struct {
	Purchased bool `json:"purchased"`
}

// TogglePurchased handles POST /api/v1/items/{itemID}/purchased requests.
// Setting the flag to its current value is a no-op on the totals.
func (h *ShoppingHandler) TogglePurchased(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	itemID := mux.Vars(r)["itemID"]
	if _, ok := h.authorizeItem(w, r, itemID); !ok {
		return
	}

	var input togglePurchasedRequest
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		h.logger.Warn("invalid request body", zap.Error(err))
		writeError(w, h.logger, http.StatusBadRequest, "invalid request body")
		return
	}

	item, err := h.service.TogglePurchased(ctx, itemID, input.Purchased)
	if err != nil {
		h.handleStoreError(w, err, "toggle purchased")
		return
	}

	writeJSON(w, h.logger, http.StatusOK, model.NewSuccessResponse(item))
}

// DeleteItem handles DELETE /api/v1/items/{itemID} requests.
func (h *ShoppingHandler) DeleteItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	itemID := mux.Vars(r)["itemID"]
	if _, ok := h.authorizeItem(w, r, itemID); !ok {
		return
	}

	if err := h.service.DeleteItem(ctx, itemID); err != nil {
		h.handleStoreError(w, err, "delete item")
		return
	}

	writeJSON(w, h.logger, http.StatusNoContent, nil)
}

// Summary handles GET /api/v1/lists/{listID}/summary requests.
func (h *ShoppingHandler) Summary(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	listID := mux.Vars(r)["listID"]
	if !h.authorizeList(w, r, listID) {
		return
	}

	summary, err := h.service.Summary(ctx, listID)
	if err != nil {
		h.handleStoreError(w, err, "summarize list")
		return
	}

	writeJSON(w, h.logger, http.StatusOK, model.NewSuccessResponse(summary))
}

// Units handles GET /api/v1/units requests: the built-in unit set merged
// with the user's own units.
func (h *ShoppingHandler) Units(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user, ok := auth.FromContext(ctx)
	if !ok {
		writeError(w, h.logger, http.StatusUnauthorized, "authentication required")
		return
	}

	custom, err := h.store.Units(ctx, user.ID)
	if err != nil {
		h.handleStoreError(w, err, "list units")
		return
	}

	seen := make(map[string]bool, len(model.DefaultUnits)+len(custom))
	units := make([]string, 0, len(model.DefaultUnits)+len(custom))
	for _, u := range model.DefaultUnits {
		seen[u] = true
		units = append(units, u)
	}
	for _, u := range custom {
		if !seen[u] {
			seen[u] = true
			units = append(units, u)
		}
	}

	writeJSON(w, h.logger, http.StatusOK, model.NewSuccessResponse(units))
}

// addUnitRequest is the body of a unit creation request.
type addUnitRequest struct {
	Unit string `json:"unit"`
}

// AddUnit handles POST /api/v1/units requests. Re-adding a known unit is a
// no-op.
func (h *ShoppingHandler) AddUnit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user, ok := auth.FromContext(ctx)
	if !ok {
		writeError(w, h.logger, http.StatusUnauthorized, "authentication required")
		return
	}

	var input addUnitRequest
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		h.logger.Warn("invalid request body", zap.Error(err))
		writeError(w, h.logger, http.StatusBadRequest, "invalid request body")
		return
	}

	unit := strings.TrimSpace(input.Unit)
	if unit == "" {
		writeError(w, h.logger, http.StatusBadRequest, model.ErrEmptyUnit.Error())
		return
	}

	if err := h.store.AddUnit(ctx, user.ID, unit); err != nil {
		h.handleStoreError(w, err, "add unit")
		return
	}

	writeJSON(w, h.logger, http.StatusCreated, model.NewSuccessResponse(unit))
}

// authorizeList checks that the requesting user owns or has been granted the
// list, writing the error response itself when they do not.
func (h *ShoppingHandler) authorizeList(w http.ResponseWriter, r *http.Request, listID string) bool {
	ctx := r.Context()
	user, ok := auth.FromContext(ctx)
	if !ok {
		writeError(w, h.logger, http.StatusUnauthorized, "authentication required")
		return false
	}

	if _, err := h.store.GetList(ctx, listID); err != nil {
		h.handleStoreError(w, err, "get list")
		return false
	}

	lists, err := h.store.ListsForUser(ctx, user.ID)
	if err != nil {
		h.handleStoreError(w, err, "authorize list")
		return false
	}
	for _, l := range lists {
		if l.ID == listID {
			return true
		}
	}

	writeError(w, h.logger, http.StatusForbidden, "no access to this list")
	return false
}

// authorizeGroup resolves the group and checks list access through it.
func (h *ShoppingHandler) authorizeGroup(w http.ResponseWriter, r *http.Request, groupID string) (*model.Group, bool) {
	group, err := h.store.GetGroup(r.Context(), groupID)
	if err != nil {
		h.handleStoreError(w, err, "get group")
		return nil, false
	}
	if !h.authorizeList(w, r, group.ListID) {
		return nil, false
	}
	return group, true
}

// authorizeItem resolves the item and checks list access through its group.
func (h *ShoppingHandler) authorizeItem(w http.ResponseWriter, r *http.Request, itemID string) (*model.Item, bool) {
	item, err := h.store.GetItem(r.Context(), itemID)
	if err != nil {
		h.handleStoreError(w, err, "get item")
		return nil, false
	}
	if _, ok := h.authorizeGroup(w, r, item.GroupID); !ok {
		return nil, false
	}
	return item, true
}

// handleStoreError maps store and validation errors to HTTP responses.
func (h *ShoppingHandler) handleStoreError(w http.ResponseWriter, err error, operation string) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, h.logger, http.StatusNotFound, "record not found")
	case errors.Is(err, store.ErrInvalidID):
		writeError(w, h.logger, http.StatusBadRequest, "invalid record ID")
	case errors.Is(err, store.ErrVersionConflict):
		writeError(w, h.logger, http.StatusConflict, "record was modified concurrently")
	case errors.Is(err, store.ErrAlreadyExists):
		writeError(w, h.logger, http.StatusConflict, "record already exists")
	case errors.Is(err, model.ErrEmptyName),
		errors.Is(err, model.ErrNameTooLong),
		errors.Is(err, model.ErrInvalidColor),
		errors.Is(err, model.ErrInvalidIcon),
		errors.Is(err, model.ErrEmptyUnit):
		writeError(w, h.logger, http.StatusBadRequest, err.Error())
	default:
		h.logger.Error("store operation failed", zap.String("operation", operation), zap.Error(err))
		writeError(w, h.logger, http.StatusInternalServerError, "internal server error")
	}
}
