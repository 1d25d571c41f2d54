package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	lterrors "github.com/Combine-Capital/lovetree/pkg/errors"
	"github.com/Combine-Capital/lovetree/pkg/logging"
	"github.com/Combine-Capital/lovetree/pkg/store"
)

// notify records a notification for a social action. Self-notifications are skipped and
// a failure only logs: the action itself already succeeded.
func (h *Handler) notify(r *http.Request, in store.NewNotification) {
	if in.UserID == "" || in.UserID == in.ActorID {
		return
	}
	if _, err := h.store.CreateNotification(r.Context(), in); err != nil {
		logging.FromContext(r.Context()).Warn().
			Err(err).
			Str("kind", in.Kind).
			Str("user_id", in.UserID).
			Msg("failed to create notification")
	}
}

func (h *Handler) getComments(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "treeID")
	if _, err := h.visibleTree(r, id); err != nil {
		fail(w, r, err)
		return
	}
	comments, err := h.store.GetComments(r.Context(), id)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, comments)
}

type commentRequest struct {
	Body string `json:"body"`
}

func (h *Handler) createComment(w http.ResponseWriter, r *http.Request) {
	actor, err := Actor(r.Context())
	if err != nil {
		fail(w, r, err)
		return
	}
	tree, err := h.visibleTree(r, chi.URLParam(r, "treeID"))
	if err != nil {
		fail(w, r, err)
		return
	}
	var req commentRequest
	if err := decode(r, &req); err != nil {
		fail(w, r, err)
		return
	}
	c, err := h.store.CreateComment(r.Context(), store.NewComment{TreeID: tree.ID, UserID: actor, Body: req.Body})
	if err != nil {
		fail(w, r, err)
		return
	}
	h.notify(r, store.NewNotification{
		UserID:  tree.UserID,
		Kind:    store.NotificationComment,
		ActorID: actor,
		TreeID:  tree.ID,
		Message: "commented on " + tree.Title,
	})
	writeJSON(w, http.StatusCreated, c)
}

// deleteComment removes a comment. Its author and the tree owner may delete it.
func (h *Handler) deleteComment(w http.ResponseWriter, r *http.Request) {
	actor, err := Actor(r.Context())
	if err != nil {
		fail(w, r, err)
		return
	}
	treeID, commentID := chi.URLParam(r, "treeID"), chi.URLParam(r, "commentID")
	tree, err := h.store.GetLoveTree(r.Context(), treeID)
	if err != nil {
		fail(w, r, err)
		return
	}
	comments, err := h.store.GetComments(r.Context(), treeID)
	if err != nil {
		fail(w, r, err)
		return
	}

	var found *store.Comment
	for i := range comments {
		if comments[i].ID == commentID {
			found = &comments[i]
			break
		}
	}
	if found == nil {
		fail(w, r, lterrors.NewNotFound("comment", commentID))
		return
	}
	if actor != found.UserID && actor != tree.UserID {
		fail(w, r, lterrors.NewUnauthorized("only the author or the tree owner may delete this comment"))
		return
	}

	c, err := h.store.DeleteComment(r.Context(), commentID)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *Handler) hasLiked(w http.ResponseWriter, r *http.Request) {
	actor, err := Actor(r.Context())
	if err != nil {
		fail(w, r, err)
		return
	}
	liked, err := h.store.HasLiked(r.Context(), actor, chi.URLParam(r, "treeID"))
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toggleResponse{Active: liked})
}

func (h *Handler) toggleLike(w http.ResponseWriter, r *http.Request) {
	actor, err := Actor(r.Context())
	if err != nil {
		fail(w, r, err)
		return
	}
	tree, err := h.visibleTree(r, chi.URLParam(r, "treeID"))
	if err != nil {
		fail(w, r, err)
		return
	}
	liked, err := h.store.ToggleLike(r.Context(), actor, tree.ID)
	if err != nil {
		fail(w, r, err)
		return
	}
	if liked {
		h.notify(r, store.NewNotification{
			UserID:  tree.UserID,
			Kind:    store.NotificationLike,
			ActorID: actor,
			TreeID:  tree.ID,
			Message: "liked " + tree.Title,
		})
	}
	writeJSON(w, http.StatusOK, toggleResponse{Active: liked})
}

func (h *Handler) getRecommendations(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "treeID")
	if _, err := h.visibleTree(r, id); err != nil {
		fail(w, r, err)
		return
	}
	recs, err := h.store.GetRecommendations(r.Context(), id)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, recs)
}

type recommendationRequest struct {
	Title      string `json:"title"`
	ContentURL string `json:"contentUrl"`
	Note       string `json:"note"`
}

func (h *Handler) createRecommendation(w http.ResponseWriter, r *http.Request) {
	actor, err := Actor(r.Context())
	if err != nil {
		fail(w, r, err)
		return
	}
	tree, err := h.visibleTree(r, chi.URLParam(r, "treeID"))
	if err != nil {
		fail(w, r, err)
		return
	}
	var req recommendationRequest
	if err := decode(r, &req); err != nil {
		fail(w, r, err)
		return
	}
	rec, err := h.store.CreateRecommendation(r.Context(), store.NewRecommendation{
		TreeID:     tree.ID,
		FromUserID: actor,
		Title:      req.Title,
		ContentURL: req.ContentURL,
		Note:       req.Note,
	})
	if err != nil {
		fail(w, r, err)
		return
	}
	h.notify(r, store.NewNotification{
		UserID:  tree.UserID,
		Kind:    store.NotificationRecommendation,
		ActorID: actor,
		TreeID:  tree.ID,
		Message: "recommended " + req.Title + " for " + tree.Title,
	})
	writeJSON(w, http.StatusCreated, rec)
}

func (h *Handler) getNotifications(w http.ResponseWriter, r *http.Request) {
	actor, err := Actor(r.Context())
	if err != nil {
		fail(w, r, err)
		return
	}
	page, err := pageQuery(r)
	if err != nil {
		fail(w, r, err)
		return
	}
	ns, err := h.store.GetNotifications(r.Context(), actor, page)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ns)
}

func (h *Handler) getUnreadCount(w http.ResponseWriter, r *http.Request) {
	actor, err := Actor(r.Context())
	if err != nil {
		fail(w, r, err)
		return
	}
	n, err := h.store.GetUnreadNotificationCount(r.Context(), actor)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, countResponse{Count: n})
}

func (h *Handler) markNotificationRead(w http.ResponseWriter, r *http.Request) {
	actor, err := Actor(r.Context())
	if err != nil {
		fail(w, r, err)
		return
	}
	n, err := h.store.MarkNotificationRead(r.Context(), actor, chi.URLParam(r, "notificationID"))
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, n)
}
