// internal/api/handler/api/bias.go
package api

import (
	"fmt"
	"net/http"

	"github.com/newthinker/marketbias/internal/api/response"
	"github.com/newthinker/marketbias/internal/core"
	"github.com/newthinker/marketbias/internal/store"
)

// BiasStore is the read side of store.Store.
type BiasStore interface {
	Snapshots() []store.Snapshot
	Get(index core.Index) (store.Snapshot, bool)
}

// BiasHandler serves bias and level snapshots.
type BiasHandler struct {
	store BiasStore
}

// NewBiasHandler creates a new bias handler.
func NewBiasHandler(s BiasStore) *BiasHandler {
	return &BiasHandler{store: s}
}

// List returns the latest snapshot of every index.
func (h *BiasHandler) List(w http.ResponseWriter, r *http.Request) {
	snaps := h.store.Snapshots()
	response.JSON(w, http.StatusOK, map[string]any{
		"biases": snaps,
		"count":  len(snaps),
	})
}

// Get returns the latest snapshot of one index.
func (h *BiasHandler) Get(w http.ResponseWriter, r *http.Request) {
	snap, err := h.lookup(r)
	if err != nil {
		response.Fail(w, err)
		return
	}
	response.JSON(w, http.StatusOK, snap)
}

// Levels returns key levels and the opening range of one index.
func (h *BiasHandler) Levels(w http.ResponseWriter, r *http.Request) {
	snap, err := h.lookup(r)
	if err != nil {
		response.Fail(w, err)
		return
	}
	if snap.Levels == nil {
		response.Fail(w, core.WrapError(core.ErrNoData,
			fmt.Errorf("no levels for %s", snap.Bias.Index)))
		return
	}

	response.JSON(w, http.StatusOK, map[string]any{
		"index":         snap.Bias.Index,
		"levels":        snap.Levels,
		"opening_range": snap.OpeningRange,
		"stale":         snap.Stale,
	})
}

func (h *BiasHandler) lookup(r *http.Request) (store.Snapshot, error) {
	index, err := core.ParseIndex(r.PathValue("index"))
	if err != nil {
		return store.Snapshot{}, err
	}
	snap, ok := h.store.Get(index)
	if !ok {
		return store.Snapshot{}, core.WrapError(core.ErrNoData,
			fmt.Errorf("%s not scored yet", index))
	}
	return snap, nil
}
