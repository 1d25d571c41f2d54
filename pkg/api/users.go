package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Combine-Capital/lovetree/pkg/store"
)

func (h *Handler) getStages(w http.ResponseWriter, r *http.Request) {
	stages, err := h.store.GetStages(r.Context())
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stages)
}

func (h *Handler) createUser(w http.ResponseWriter, r *http.Request) {
	var in store.NewUser
	if err := decode(r, &in); err != nil {
		fail(w, r, err)
		return
	}
	u, err := h.store.CreateUser(r.Context(), in)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, u)
}

func (h *Handler) getUser(w http.ResponseWriter, r *http.Request) {
	u, err := h.store.GetUser(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (h *Handler) getUserByUsername(w http.ResponseWriter, r *http.Request) {
	u, err := h.store.GetUserByUsername(r.Context(), chi.URLParam(r, "username"))
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

// updateUser patches the caller's own profile.
func (h *Handler) updateUser(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "userID")
	actor, err := Actor(r.Context())
	if err == nil {
		err = requireOwner(actor, id, "profile")
	}
	if err != nil {
		fail(w, r, err)
		return
	}

	var patch store.UserPatch
	if err := decode(r, &patch); err != nil {
		fail(w, r, err)
		return
	}
	u, err := h.store.UpdateUser(r.Context(), id, patch)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

// upsertUser is the sign-in sync endpoint of the identity provider.
func (h *Handler) upsertUser(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "userID")
	actor, err := Actor(r.Context())
	if err == nil {
		err = requireOwner(actor, id, "profile")
	}
	if err != nil {
		fail(w, r, err)
		return
	}

	var in store.UserUpsert
	if err := decode(r, &in); err != nil {
		fail(w, r, err)
		return
	}
	in.ID = id
	u, err := h.store.UpsertUser(r.Context(), in)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (h *Handler) getUserTrees(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	trees, err := h.store.GetUserLoveTrees(r.Context(), userID)
	if err != nil {
		fail(w, r, err)
		return
	}

	// Private trees are visible to their owner only.
	if actor, _ := Actor(r.Context()); actor != userID {
		public := make([]store.LoveTree, 0, len(trees))
		for _, t := range trees {
			if t.IsPublic {
				public = append(public, t)
			}
		}
		trees = public
	}
	writeJSON(w, http.StatusOK, trees)
}

func (h *Handler) getFollowers(w http.ResponseWriter, r *http.Request) {
	users, err := h.store.GetFollowers(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

func (h *Handler) getFollowing(w http.ResponseWriter, r *http.Request) {
	users, err := h.store.GetFollowing(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

func (h *Handler) isFollowing(w http.ResponseWriter, r *http.Request) {
	actor, err := Actor(r.Context())
	if err != nil {
		fail(w, r, err)
		return
	}
	following, err := h.store.IsFollowing(r.Context(), actor, chi.URLParam(r, "userID"))
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toggleResponse{Active: following})
}

func (h *Handler) toggleFollow(w http.ResponseWriter, r *http.Request) {
	actor, err := Actor(r.Context())
	if err != nil {
		fail(w, r, err)
		return
	}
	target := chi.URLParam(r, "userID")
	following, err := h.store.ToggleFollow(r.Context(), actor, target)
	if err != nil {
		fail(w, r, err)
		return
	}
	if following {
		h.notify(r, store.NewNotification{
			UserID:  target,
			Kind:    store.NotificationFollow,
			ActorID: actor,
			Message: "started following you",
		})
	}
	writeJSON(w, http.StatusOK, toggleResponse{Active: following})
}
