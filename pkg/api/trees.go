package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	lterrors "github.com/Combine-Capital/lovetree/pkg/errors"
	"github.com/Combine-Capital/lovetree/pkg/store"
)

// visibleTree loads a tree, hiding private trees from everyone but their owner.
func (h *Handler) visibleTree(r *http.Request, id string) (store.LoveTree, error) {
	t, err := h.store.GetLoveTree(r.Context(), id)
	if err != nil {
		return store.LoveTree{}, err
	}
	if actor, _ := Actor(r.Context()); !t.IsPublic && actor != t.UserID {
		return store.LoveTree{}, lterrors.NewNotFound("love tree", id)
	}
	return t, nil
}

// ownedTree loads a tree the acting user owns.
func (h *Handler) ownedTree(r *http.Request, id string) (store.LoveTree, error) {
	actor, err := Actor(r.Context())
	if err != nil {
		return store.LoveTree{}, err
	}
	t, err := h.store.GetLoveTree(r.Context(), id)
	if err != nil {
		return store.LoveTree{}, err
	}
	if err := requireOwner(actor, t.UserID, "love tree"); err != nil {
		return store.LoveTree{}, err
	}
	return t, nil
}

func (h *Handler) createTree(w http.ResponseWriter, r *http.Request) {
	actor, err := Actor(r.Context())
	if err != nil {
		fail(w, r, err)
		return
	}
	var in store.NewLoveTree
	if err := decode(r, &in); err != nil {
		fail(w, r, err)
		return
	}
	in.UserID = actor
	t, err := h.store.CreateLoveTree(r.Context(), in)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

func (h *Handler) getTree(w http.ResponseWriter, r *http.Request) {
	t, err := h.visibleTree(r, chi.URLParam(r, "treeID"))
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (h *Handler) updateTree(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "treeID")
	if _, err := h.ownedTree(r, id); err != nil {
		fail(w, r, err)
		return
	}
	var patch store.LoveTreePatch
	if err := decode(r, &patch); err != nil {
		fail(w, r, err)
		return
	}
	t, err := h.store.UpdateLoveTree(r.Context(), id, patch)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (h *Handler) deleteTree(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "treeID")
	if _, err := h.ownedTree(r, id); err != nil {
		fail(w, r, err)
		return
	}
	t, err := h.store.DeleteLoveTree(r.Context(), id)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (h *Handler) getPopularTrees(w http.ResponseWriter, r *http.Request) {
	limit, err := intQuery(r, "limit")
	if err != nil {
		fail(w, r, err)
		return
	}
	trees, err := h.store.GetPopularLoveTrees(r.Context(), limit)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, trees)
}

func (h *Handler) searchTrees(w http.ResponseWriter, r *http.Request) {
	limit, err := intQuery(r, "limit")
	if err != nil {
		fail(w, r, err)
		return
	}
	trees, err := h.store.SearchLoveTrees(r.Context(), r.URL.Query().Get("q"), limit)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, trees)
}

func (h *Handler) getItems(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "treeID")
	if _, err := h.visibleTree(r, id); err != nil {
		fail(w, r, err)
		return
	}
	items, err := h.store.GetLoveTreeItems(r.Context(), id)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *Handler) createItem(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "treeID")
	if _, err := h.ownedTree(r, id); err != nil {
		fail(w, r, err)
		return
	}
	var in store.NewLoveTreeItem
	if err := decode(r, &in); err != nil {
		fail(w, r, err)
		return
	}
	in.TreeID = id
	item, err := h.store.CreateLoveTreeItem(r.Context(), in)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, item)
}

func (h *Handler) getItem(w http.ResponseWriter, r *http.Request) {
	item, err := h.store.GetLoveTreeItem(r.Context(), chi.URLParam(r, "itemID"))
	if err == nil {
		_, err = h.visibleTree(r, item.TreeID)
	}
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

// ownedItem loads an item whose tree the acting user owns.
func (h *Handler) ownedItem(r *http.Request, id string) (store.LoveTreeItem, error) {
	if _, err := Actor(r.Context()); err != nil {
		return store.LoveTreeItem{}, err
	}
	item, err := h.store.GetLoveTreeItem(r.Context(), id)
	if err != nil {
		return store.LoveTreeItem{}, err
	}
	if _, err := h.ownedTree(r, item.TreeID); err != nil {
		return store.LoveTreeItem{}, err
	}
	return item, nil
}

func (h *Handler) updateItem(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "itemID")
	if _, err := h.ownedItem(r, id); err != nil {
		fail(w, r, err)
		return
	}
	var patch store.LoveTreeItemPatch
	if err := decode(r, &patch); err != nil {
		fail(w, r, err)
		return
	}
	item, err := h.store.UpdateLoveTreeItem(r.Context(), id, patch)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (h *Handler) deleteItem(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "itemID")
	if _, err := h.ownedItem(r, id); err != nil {
		fail(w, r, err)
		return
	}
	item, err := h.store.DeleteLoveTreeItem(r.Context(), id)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}
