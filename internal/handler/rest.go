package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/vyrodovalexey/inventory-store/internal/metrics"
	"github.com/vyrodovalexey/inventory-store/internal/model"
	"github.com/vyrodovalexey/inventory-store/internal/store"
)

// maxJournalRecords bounds the journal kept in memory by the service.
const maxJournalRecords = 1000

// Options configures a RESTHandler.
type Options struct {
	// Path is the inventory file used by save, load and autosave.
	Path string
	// LowStockThreshold is used when a low-stock request has no threshold.
	LowStockThreshold int
	// AutoSave saves the inventory after every successful mutation.
	AutoSave bool
	// Recorder receives inventory metrics; nil disables them.
	Recorder *metrics.Recorder
	// Publisher receives stock events; nil discards them.
	Publisher Publisher
}

// RESTHandler handles REST API requests for the inventory.
type RESTHandler struct {
	store     Inventory
	logger    *zap.Logger
	path      string
	threshold int
	autoSave  bool
	recorder  *metrics.Recorder
	publisher Publisher
	ready     atomic.Bool

	journalMu sync.Mutex
	journal   []string
}

// NewRESTHandler creates a new RESTHandler instance.
func NewRESTHandler(s Inventory, logger *zap.Logger, opts Options) *RESTHandler {
	h := &RESTHandler{
		store:     s,
		logger:    logger,
		path:      opts.Path,
		threshold: opts.LowStockThreshold,
		autoSave:  opts.AutoSave,
		recorder:  opts.Recorder,
		publisher: opts.Publisher,
	}
	if h.path == "" {
		h.path = store.DefaultPath
	}
	if h.publisher == nil {
		h.publisher = nopPublisher{}
	}
	return h
}

// RegisterRoutes registers the REST API routes with the router.
func (h *RESTHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/health", h.HealthCheck).Methods(http.MethodGet)
	router.HandleFunc("/ready", h.ReadyCheck).Methods(http.MethodGet)

	api := router.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/items", h.ListItems).Methods(http.MethodGet)
	api.HandleFunc("/items/low", h.LowStock).Methods(http.MethodGet)
	api.HandleFunc("/items/{item}", h.GetItem).Methods(http.MethodGet)
	api.HandleFunc("/items/{item}/add", h.AddStock).Methods(http.MethodPost)
	api.HandleFunc("/items/{item}/remove", h.RemoveStock).Methods(http.MethodPost)
	api.HandleFunc("/inventory/save", h.SaveInventory).Methods(http.MethodPost)
	api.HandleFunc("/inventory/load", h.LoadInventory).Methods(http.MethodPost)
	api.HandleFunc("/report", h.Report).Methods(http.MethodGet)
	api.HandleFunc("/journal", h.Journal).Methods(http.MethodGet)
}

// SetReady marks the handler ready to serve traffic.
func (h *RESTHandler) SetReady(ready bool) {
	h.ready.Store(ready)
}

// HealthCheck handles GET /health requests.
func (h *RESTHandler) HealthCheck(w http.ResponseWriter, _ *http.Request) {
	response := HealthResponse{
		Status:  "healthy",
		Version: Version,
	}
	h.writeJSON(w, http.StatusOK, model.NewSuccessResponse(response))
}

// ReadyCheck handles GET /ready requests.
func (h *RESTHandler) ReadyCheck(w http.ResponseWriter, _ *http.Request) {
	if !h.ready.Load() {
		h.writeJSON(w, http.StatusServiceUnavailable, model.NewSuccessResponse(ReadyResponse{Status: "not ready"}))
		return
	}
	h.writeJSON(w, http.StatusOK, model.NewSuccessResponse(ReadyResponse{Status: "ready"}))
}

// ListItems handles GET /api/v1/items requests.
func (h *RESTHandler) ListItems(w http.ResponseWriter, _ *http.Request) {
	entries := h.store.Items()

	items := make([]model.ItemQuantity, 0, len(entries))
	for _, e := range entries {
		items = append(items, model.ItemQuantity{Item: e.Item, Quantity: e.Quantity})
	}

	h.writeJSON(w, http.StatusOK, model.NewSuccessResponse(items))
}

// GetItem handles GET /api/v1/items/{item} requests.
func (h *RESTHandler) GetItem(w http.ResponseWriter, r *http.Request) {
	item, ok := h.itemFromPath(w, r)
	if !ok {
		return
	}

	h.writeJSON(w, http.StatusOK, model.NewSuccessResponse(model.ItemQuantity{
		Item:     item,
		Quantity: h.store.Qty(item),
	}))
}

// LowStock handles GET /api/v1/items/low requests.
func (h *RESTHandler) LowStock(w http.ResponseWriter, r *http.Request) {
	threshold := h.threshold
	if val := r.URL.Query().Get("threshold"); val != "" {
		parsed, err := strconv.Atoi(val)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, "threshold must be an integer")
			return
		}
		threshold = parsed
	}

	h.writeJSON(w, http.StatusOK, model.NewSuccessResponse(model.LowStockResponse{
		Threshold: threshold,
		Items:     h.store.LowItems(threshold),
	}))
}

// AddStock handles POST /api/v1/items/{item}/add requests.
func (h *RESTHandler) AddStock(w http.ResponseWriter, r *http.Request) {
	item, ok := h.itemFromPath(w, r)
	if !ok {
		return
	}
	qty, ok := h.decodeQuantity(w, r)
	if !ok {
		return
	}

	var (
		journal  store.Journal
		quantity int
	)
	// Events are published in the order changes are applied.
	err := h.store.Update(func(inv *store.Inventory) error {
		if err := inv.Add(item, qty, &journal); err != nil {
			return err
		}
		quantity = inv.Qty(item)
		h.appendJournal(journal.Last())
		h.publisher.Publish(model.NewStockEvent(model.StockEventAdded, item, qty, quantity))
		return nil
	})
	if err != nil {
		h.recorder.Mutation("add", "error")
		h.handleStoreError(w, err, "add")
		return
	}
	record := journal.Last()
	h.recorder.Mutation("add", "ok")
	if !h.afterMutation(w) {
		return
	}

	h.writeJSON(w, http.StatusOK, model.NewSuccessResponse(model.AddResult{
		Item:     item,
		Added:    qty,
		Quantity: quantity,
		Record:   record,
	}))
}

// RemoveStock handles POST /api/v1/items/{item}/remove requests.
func (h *RESTHandler) RemoveStock(w http.ResponseWriter, r *http.Request) {
	item, ok := h.itemFromPath(w, r)
	if !ok {
		return
	}
	qty, ok := h.decodeQuantity(w, r)
	if !ok {
		return
	}

	var (
		outcome  store.RemoveOutcome
		quantity int
	)
	err := h.store.Update(func(inv *store.Inventory) error {
		var err error
		outcome, err = inv.Remove(item, qty)
		if err != nil {
			return err
		}
		quantity = inv.Qty(item)

		switch outcome {
		case store.OutcomeDecremented:
			h.publisher.Publish(model.NewStockEvent(model.StockEventRemoved, item, -qty, quantity))
		case store.OutcomeDeleted:
			h.publisher.Publish(model.NewStockEvent(model.StockEventDeleted, item, -qty, quantity))
		}
		return nil
	})
	if err != nil {
		h.recorder.Mutation("remove", "error")
		h.handleStoreError(w, err, "remove")
		return
	}
	h.recorder.Mutation("remove", outcome.String())

	result := model.RemoveResult{
		Item:     item,
		Removed:  qty,
		Quantity: quantity,
		Outcome:  outcome.String(),
	}

	if outcome == store.OutcomeAbsent {
		h.writeJSON(w, http.StatusOK, model.NewSuccessResponse(result))
		return
	}
	if !h.afterMutation(w) {
		return
	}

	h.writeJSON(w, http.StatusOK, model.NewSuccessResponse(result))
}

// SaveInventory handles POST /api/v1/inventory/save requests.
func (h *RESTHandler) SaveInventory(w http.ResponseWriter, _ *http.Request) {
	if err := h.save(); err != nil {
		h.writeError(w, http.StatusInternalServerError, "failed to save inventory")
		return
	}

	items := h.store.Len()
	h.publisher.Publish(model.NewStockEvent(model.StockEventSaved, "", 0, items))
	h.writeJSON(w, http.StatusOK, model.NewSuccessResponse(model.PersistResponse{Path: h.path, Items: items}))
}

// LoadInventory handles POST /api/v1/inventory/load requests.
func (h *RESTHandler) LoadInventory(w http.ResponseWriter, _ *http.Request) {
	err := h.store.Load(h.path)
	h.recorder.FileOperation("load", err)
	if err != nil {
		h.logger.Error("failed to load inventory", zap.String("path", h.path), zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "failed to load inventory")
		return
	}

	items := h.store.Len()
	h.snapshot()
	h.publisher.Publish(model.NewStockEvent(model.StockEventLoaded, "", 0, items))
	h.writeJSON(w, http.StatusOK, model.NewSuccessResponse(model.PersistResponse{Path: h.path, Items: items}))
}

// Report handles GET /api/v1/report requests with the plain-text report.
func (h *RESTHandler) Report(w http.ResponseWriter, _ *http.Request) {
	var buf bytes.Buffer
	if err := h.store.Report(&buf); err != nil {
		h.logger.Error("failed to render report", zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "failed to render report")
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(buf.Bytes()); err != nil {
		h.logger.Error("failed to write report", zap.Error(err))
	}
}

// Journal handles GET /api/v1/journal requests.
func (h *RESTHandler) Journal(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, http.StatusOK, model.NewSuccessResponse(h.journalRecords()))
}

// save writes the inventory file and records the result.
func (h *RESTHandler) save() error {
	err := h.store.Save(h.path)
	h.recorder.FileOperation("save", err)
	if err != nil {
		h.logger.Error("failed to save inventory", zap.String("path", h.path), zap.Error(err))
	}
	return err
}

// afterMutation refreshes gauges and autosaves. It reports false after
// writing an error response.
func (h *RESTHandler) afterMutation(w http.ResponseWriter) bool {
	h.snapshot()

	if !h.autoSave {
		return true
	}
	if err := h.save(); err != nil {
		h.writeError(w, http.StatusInternalServerError, "inventory updated but autosave failed")
		return false
	}
	return true
}

func (h *RESTHandler) snapshot() {
	if h.recorder == nil {
		return
	}
	h.recorder.Snapshot(h.store.Len(), len(h.store.LowItems(h.threshold)))
}

func (h *RESTHandler) appendJournal(record string) {
	h.journalMu.Lock()
	defer h.journalMu.Unlock()

	h.journal = append(h.journal, record)
	if over := len(h.journal) - maxJournalRecords; over > 0 {
		h.journal = append(h.journal[:0:0], h.journal[over:]...)
	}
}

func (h *RESTHandler) journalRecords() []string {
	h.journalMu.Lock()
	defer h.journalMu.Unlock()

	out := make([]string, len(h.journal))
	copy(out, h.journal)
	return out
}

// itemFromPath extracts and validates the {item} route variable.
func (h *RESTHandler) itemFromPath(w http.ResponseWriter, r *http.Request) (string, bool) {
	item := mux.Vars(r)["item"]
	if err := model.ValidateItem(item); err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return "", false
	}
	return item, true
}

// decodeQuantity reads a QuantityRequest body.
func (h *RESTHandler) decodeQuantity(w http.ResponseWriter, r *http.Request) (int, bool) {
	var input model.QuantityRequest
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		h.logger.Warn("invalid request body", zap.Error(err))
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return 0, false
	}

	if err := input.Validate(); err != nil {
		h.logger.Warn("validation failed", zap.Error(err))
		h.writeError(w, http.StatusBadRequest, err.Error())
		return 0, false
	}

	return *input.Quantity, true
}

// handleStoreError handles store errors and writes appropriate HTTP responses.
func (h *RESTHandler) handleStoreError(w http.ResponseWriter, err error, operation string) {
	switch {
	case errors.Is(err, store.ErrQuantityOverflow):
		h.writeError(w, http.StatusUnprocessableEntity, "quantity overflow")
	default:
		h.logger.Error("store operation failed", zap.String("operation", operation), zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

// writeJSON writes a JSON response with the given status code.
func (h *RESTHandler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if data == nil {
		return
	}

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", zap.Error(err))
	}
}

// writeError writes an error response with the given status code and message.
func (h *RESTHandler) writeError(w http.ResponseWriter, status int, message string) {
	response := model.ErrorResponse{
		Code:    status,
		Message: message,
	}
	h.writeJSON(w, status, response)
}
