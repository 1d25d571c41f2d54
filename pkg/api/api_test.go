package api

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/Combine-Capital/lovetree/pkg/cache"
	"github.com/Combine-Capital/lovetree/pkg/config"
	"github.com/Combine-Capital/lovetree/pkg/health"
	"github.com/Combine-Capital/lovetree/pkg/repository"
	"github.com/Combine-Capital/lovetree/pkg/store"
)

// backends runs every test against the raw store and the cache-aside repository. The
// responses must be identical.
var backends = []struct {
	name string
	new  func(t *testing.T) store.Store
}{
	{
		name: "memory",
		new:  func(t *testing.T) store.Store { return store.NewMemory() },
	},
	{
		name: "cached",
		new: func(t *testing.T) store.Store {
			c, err := cache.NewMemory(config.CacheConfig{KeyPrefix: "api", DefaultTTL: 30 * time.Minute, MemoryMaxEntries: 1000}, nil)
			if err != nil {
				t.Fatalf("cache.NewMemory() error = %v", err)
			}
			t.Cleanup(func() { _ = c.Close() })
			return repository.NewCached(store.NewMemory(), c)
		},
	},
}

type client struct {
	t       *testing.T
	handler http.Handler
}

func (c client) do(method, path, actor string, body any) *httptest.ResponseRecorder {
	c.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else if err := json.NewEncoder(&buf).Encode(body); err != nil {
			c.t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if actor != "" {
		req.Header.Set(ActorHeader, actor)
	}
	rec := httptest.NewRecorder()
	c.handler.ServeHTTP(rec, req)
	return rec
}

// must performs a request, fails unless it answers want and decodes the body into out.
func (c client) must(want int, method, path, actor string, body, out any) {
	c.t.Helper()
	rec := c.do(method, path, actor, body)
	if rec.Code != want {
		c.t.Fatalf("%s %s = %d, want %d (body %s)", method, path, rec.Code, want, rec.Body.String())
	}
	if out != nil {
		if err := json.Unmarshal(rec.Body.Bytes(), out); err != nil {
			c.t.Fatalf("%s %s: decode %q: %v", method, path, rec.Body.String(), err)
		}
	}
}

func (c client) createUser(username string) store.User {
	c.t.Helper()
	var u store.User
	c.must(http.StatusCreated, http.MethodPost, "/users", "", store.NewUser{Username: username, DisplayName: username}, &u)
	return u
}

func (c client) createTree(owner, title string, public bool) store.LoveTree {
	c.t.Helper()
	var tree store.LoveTree
	c.must(http.StatusCreated, http.MethodPost, "/trees", owner,
		map[string]any{"title": title, "idolName": "Hanni", "isPublic": public}, &tree)
	return tree
}

func forEachBackend(t *testing.T, fn func(t *testing.T, c client)) {
	for _, b := range backends {
		t.Run(b.name, func(t *testing.T) {
			fn(t, client{t: t, handler: NewRouter(b.new(t))})
		})
	}
}

func TestUsers(t *testing.T) {
	forEachBackend(t, func(t *testing.T, c client) {
		u := c.createUser("minji")

		var got store.User
		c.must(http.StatusOK, http.MethodGet, "/users/"+u.ID, "", nil, &got)
		if got.Username != "minji" {
			t.Errorf("GET user username = %q", got.Username)
		}
		c.must(http.StatusOK, http.MethodGet, "/users/by-username/MINJI", "", nil, &got)
		if got.ID != u.ID {
			t.Errorf("by-username id = %q, want %q", got.ID, u.ID)
		}

		c.must(http.StatusConflict, http.MethodPost, "/users", "", store.NewUser{Username: "minji", DisplayName: "again"}, nil)

		c.must(http.StatusOK, http.MethodPatch, "/users/"+u.ID, u.ID, map[string]string{"displayName": "Minji Kim"}, &got)
		c.must(http.StatusOK, http.MethodGet, "/users/"+u.ID, "", nil, &got)
		if got.DisplayName != "Minji Kim" {
			t.Errorf("display name after patch = %q", got.DisplayName)
		}

		c.must(http.StatusUnauthorized, http.MethodPatch, "/users/"+u.ID, "someone-else", map[string]string{"displayName": "x"}, nil)
		c.must(http.StatusNotFound, http.MethodGet, "/users/missing", "", nil, nil)
	})
}

func TestUpsertUserRename(t *testing.T) {
	forEachBackend(t, func(t *testing.T, c client) {
		id := "idp-123"
		c.must(http.StatusOK, http.MethodPut, "/users/"+id, id, map[string]string{"username": "hyein", "displayName": "Hyein"}, nil)
		c.must(http.StatusOK, http.MethodGet, "/users/by-username/hyein", "", nil, nil)

		c.must(http.StatusOK, http.MethodPut, "/users/"+id, id, map[string]string{"username": "hyeinlee", "displayName": "Hyein"}, nil)
		c.must(http.StatusNotFound, http.MethodGet, "/users/by-username/hyein", "", nil, nil)

		var got store.User
		c.must(http.StatusOK, http.MethodGet, "/users/by-username/hyeinlee", "", nil, &got)
		if got.ID != id {
			t.Errorf("renamed user id = %q, want %q", got.ID, id)
		}
	})
}

func TestValidationErrors(t *testing.T) {
	forEachBackend(t, func(t *testing.T, c client) {
		u := c.createUser("danielle")

		tests := []struct {
			name      string
			method    string
			path      string
			actor     string
			body      any
			wantCode  int
			wantField string
		}{
			{"short username", http.MethodPost, "/users", "", store.NewUser{Username: "ab", DisplayName: "x"}, http.StatusBadRequest, "username"},
			{"malformed json", http.MethodPost, "/users", "", `{"username":`, http.StatusBadRequest, "body"},
			{"unknown field", http.MethodPost, "/trees", u.ID, `{"title":"t","idolName":"i","color":"red"}`, http.StatusBadRequest, "body"},
			{"missing title", http.MethodPost, "/trees", u.ID, map[string]string{"idolName": "Hanni"}, http.StatusBadRequest, "title"},
			{"bad limit", http.MethodGet, "/trees/popular?limit=many", "", nil, http.StatusBadRequest, "limit"},
			{"no actor", http.MethodPost, "/trees", "", map[string]string{"title": "t", "idolName": "i"}, http.StatusUnauthorized, ""},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				rec := c.do(tt.method, tt.path, tt.actor, tt.body)
				if rec.Code != tt.wantCode {
					t.Fatalf("code = %d, want %d (%s)", rec.Code, tt.wantCode, rec.Body.String())
				}
				var body struct {
					Error string `json:"error"`
					Field string `json:"field"`
				}
				if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
					t.Fatalf("decode error body: %v", err)
				}
				if body.Error == "" {
					t.Error("error message is empty")
				}
				if body.Field != tt.wantField {
					t.Errorf("field = %q, want %q", body.Field, tt.wantField)
				}
			})
		}
	})
}

func TestTreeLifecycle(t *testing.T) {
	forEachBackend(t, func(t *testing.T, c client) {
		owner := c.createUser("minji")
		fan := c.createUser("haerin")
		tree := c.createTree(owner.ID, "My bias", true)

		// Warm the user-trees list so the writes below have something to invalidate.
		var trees []store.LoveTree
		c.must(http.StatusOK, http.MethodGet, "/users/"+owner.ID+"/trees", "", nil, &trees)
		if len(trees) != 1 {
			t.Fatalf("user trees = %d, want 1", len(trees))
		}

		var item store.LoveTreeItem
		c.must(http.StatusCreated, http.MethodPost, "/trees/"+tree.ID+"/items", owner.ID, map[string]any{
			"stageId": 1, "title": "Debut stage", "contentUrl": "https://example.com/debut",
		}, &item)
		if item.TreeID != tree.ID {
			t.Errorf("item tree = %q, want %q", item.TreeID, tree.ID)
		}
		c.must(http.StatusUnauthorized, http.MethodPost, "/trees/"+tree.ID+"/items", fan.ID, map[string]any{
			"stageId": 1, "title": "Not mine", "contentUrl": "https://example.com/x",
		}, nil)
		c.must(http.StatusBadRequest, http.MethodPost, "/trees/"+tree.ID+"/items", owner.ID, map[string]any{
			"stageId": 9, "title": "Bad stage", "contentUrl": "https://example.com/x",
		}, nil)

		var got store.LoveTree
		c.must(http.StatusOK, http.MethodGet, "/trees/"+tree.ID, "", nil, &got)
		if got.ItemCount != 1 {
			t.Errorf("item count = %d, want 1", got.ItemCount)
		}

		c.must(http.StatusOK, http.MethodPatch, "/items/"+item.ID, owner.ID, map[string]any{"stageId": 3}, nil)
		var items []store.LoveTreeItem
		c.must(http.StatusOK, http.MethodGet, "/trees/"+tree.ID+"/items", "", nil, &items)
		if len(items) != 1 || items[0].StageID != 3 {
			t.Errorf("items after patch = %+v", items)
		}

		c.must(http.StatusOK, http.MethodPatch, "/trees/"+tree.ID, owner.ID, map[string]string{"title": "Forever Hanni"}, nil)
		c.must(http.StatusOK, http.MethodGet, "/trees/"+tree.ID, "", nil, &got)
		if got.Title != "Forever Hanni" {
			t.Errorf("title after patch = %q", got.Title)
		}
		c.must(http.StatusUnauthorized, http.MethodPatch, "/trees/"+tree.ID, fan.ID, map[string]string{"title": "mine now"}, nil)

		c.must(http.StatusOK, http.MethodDelete, "/items/"+item.ID, owner.ID, nil, nil)
		c.must(http.StatusNotFound, http.MethodGet, "/items/"+item.ID, "", nil, nil)

		c.must(http.StatusOK, http.MethodDelete, "/trees/"+tree.ID, owner.ID, nil, nil)
		c.must(http.StatusNotFound, http.MethodGet, "/trees/"+tree.ID, "", nil, nil)
		c.must(http.StatusOK, http.MethodGet, "/users/"+owner.ID+"/trees", "", nil, &trees)
		if len(trees) != 0 {
			t.Errorf("user trees after delete = %d, want 0", len(trees))
		}
	})
}

func TestPrivateTrees(t *testing.T) {
	forEachBackend(t, func(t *testing.T, c client) {
		owner := c.createUser("minji")
		other := c.createUser("hanni")
		private := c.createTree(owner.ID, "Secret", false)
		c.createTree(owner.ID, "Public", true)

		c.must(http.StatusOK, http.MethodGet, "/trees/"+private.ID, owner.ID, nil, nil)
		c.must(http.StatusNotFound, http.MethodGet, "/trees/"+private.ID, other.ID, nil, nil)
		c.must(http.StatusNotFound, http.MethodPost, "/trees/"+private.ID+"/like", other.ID, nil, nil)

		var trees []store.LoveTree
		c.must(http.StatusOK, http.MethodGet, "/users/"+owner.ID+"/trees", owner.ID, nil, &trees)
		if len(trees) != 2 {
			t.Errorf("owner sees %d trees, want 2", len(trees))
		}
		c.must(http.StatusOK, http.MethodGet, "/users/"+owner.ID+"/trees", other.ID, nil, &trees)
		if len(trees) != 1 || trees[0].Title != "Public" {
			t.Errorf("visitor sees %+v, want only the public tree", trees)
		}
	})
}

func TestSocialActionsNotify(t *testing.T) {
	forEachBackend(t, func(t *testing.T, c client) {
		owner := c.createUser("minji")
		fan := c.createUser("haerin")
		tree := c.createTree(owner.ID, "My bias", true)

		var count countResponse
		c.must(http.StatusOK, http.MethodGet, "/notifications/unread-count", owner.ID, nil, &count)
		if count.Count != 0 {
			t.Fatalf("initial unread = %d", count.Count)
		}

		var toggled toggleResponse
		c.must(http.StatusOK, http.MethodPost, "/trees/"+tree.ID+"/like", fan.ID, nil, &toggled)
		if !toggled.Active {
			t.Error("first like toggle should like")
		}
		c.must(http.StatusOK, http.MethodGet, "/trees/"+tree.ID+"/like", fan.ID, nil, &toggled)
		if !toggled.Active {
			t.Error("HasLiked = false after like")
		}

		var comment store.Comment
		c.must(http.StatusCreated, http.MethodPost, "/trees/"+tree.ID+"/comments", fan.ID, commentRequest{Body: "so cute"}, &comment)
		c.must(http.StatusCreated, http.MethodPost, "/trees/"+tree.ID+"/recommendations", fan.ID, recommendationRequest{
			Title: "Ditto MV", ContentURL: "https://example.com/ditto",
		}, nil)
		c.must(http.StatusOK, http.MethodPost, "/users/"+owner.ID+"/follow", fan.ID, nil, &toggled)
		if !toggled.Active {
			t.Error("first follow toggle should follow")
		}

		// Self actions never notify.
		c.must(http.StatusOK, http.MethodPost, "/trees/"+tree.ID+"/like", owner.ID, nil, nil)
		c.must(http.StatusCreated, http.MethodPost, "/trees/"+tree.ID+"/comments", owner.ID, commentRequest{Body: "thanks"}, nil)

		// Unliking does not notify either.
		c.must(http.StatusOK, http.MethodPost, "/trees/"+tree.ID+"/like", fan.ID, nil, &toggled)
		if toggled.Active {
			t.Error("second like toggle should unlike")
		}

		c.must(http.StatusOK, http.MethodGet, "/notifications/unread-count", owner.ID, nil, &count)
		if count.Count != 4 {
			t.Errorf("unread = %d, want 4", count.Count)
		}

		var ns []store.Notification
		c.must(http.StatusOK, http.MethodGet, "/notifications?limit=10", owner.ID, nil, &ns)
		kinds := map[string]int{}
		for _, n := range ns {
			kinds[n.Kind]++
			if n.ActorID != fan.ID {
				t.Errorf("notification actor = %q, want %q", n.ActorID, fan.ID)
			}
		}
		for _, k := range []string{store.NotificationLike, store.NotificationComment, store.NotificationRecommendation, store.NotificationFollow} {
			if kinds[k] != 1 {
				t.Errorf("%s notifications = %d, want 1", k, kinds[k])
			}
		}

		var page []store.Notification
		c.must(http.StatusOK, http.MethodGet, "/notifications?limit=2&offset=2", owner.ID, nil, &page)
		if len(page) != 2 || page[0].ID != ns[2].ID {
			t.Errorf("second page = %+v, want notifications 3 and 4", page)
		}

		c.must(http.StatusOK, http.MethodPost, "/notifications/"+ns[0].ID+"/read", owner.ID, nil, nil)
		c.must(http.StatusNotFound, http.MethodPost, "/notifications/"+ns[1].ID+"/read", fan.ID, nil, nil)
		c.must(http.StatusOK, http.MethodGet, "/notifications/unread-count", owner.ID, nil, &count)
		if count.Count != 3 {
			t.Errorf("unread after mark read = %d, want 3", count.Count)
		}

		var followers []store.User
		c.must(http.StatusOK, http.MethodGet, "/users/"+owner.ID+"/followers", "", nil, &followers)
		if len(followers) != 1 || followers[0].ID != fan.ID {
			t.Errorf("followers = %+v", followers)
		}
		c.must(http.StatusBadRequest, http.MethodPost, "/users/"+fan.ID+"/follow", fan.ID, nil, nil)

		var got store.LoveTree
		c.must(http.StatusOK, http.MethodGet, "/trees/"+tree.ID, "", nil, &got)
		if got.LikeCount != 1 || got.CommentCount != 2 {
			t.Errorf("tree counts likes=%d comments=%d, want 1 and 2", got.LikeCount, got.CommentCount)
		}
	})
}

func TestDeleteComment(t *testing.T) {
	forEachBackend(t, func(t *testing.T, c client) {
		owner := c.createUser("minji")
		fan := c.createUser("haerin")
		stranger := c.createUser("danielle")
		tree := c.createTree(owner.ID, "My bias", true)

		var first, second store.Comment
		c.must(http.StatusCreated, http.MethodPost, "/trees/"+tree.ID+"/comments", fan.ID, commentRequest{Body: "one"}, &first)
		c.must(http.StatusCreated, http.MethodPost, "/trees/"+tree.ID+"/comments", fan.ID, commentRequest{Body: "two"}, &second)

		base := "/trees/" + tree.ID + "/comments/"
		c.must(http.StatusUnauthorized, http.MethodDelete, base+first.ID, stranger.ID, nil, nil)
		c.must(http.StatusOK, http.MethodDelete, base+first.ID, fan.ID, nil, nil)
		c.must(http.StatusOK, http.MethodDelete, base+second.ID, owner.ID, nil, nil)
		c.must(http.StatusNotFound, http.MethodDelete, base+second.ID, owner.ID, nil, nil)

		var comments []store.Comment
		c.must(http.StatusOK, http.MethodGet, "/trees/"+tree.ID+"/comments", "", nil, &comments)
		if len(comments) != 0 {
			t.Errorf("comments after delete = %d, want 0", len(comments))
		}
	})
}

func TestDiscovery(t *testing.T) {
	forEachBackend(t, func(t *testing.T, c client) {
		owner := c.createUser("minji")
		fan := c.createUser("haerin")
		liked := c.createTree(owner.ID, "Hanni forever", true)
		c.createTree(owner.ID, "Minji moments", true)

		var stages []store.Stage
		c.must(http.StatusOK, http.MethodGet, "/stages", "", nil, &stages)
		if len(stages) != len(store.DefaultStages) {
			t.Errorf("stages = %d, want %d", len(stages), len(store.DefaultStages))
		}

		var found []store.LoveTree
		c.must(http.StatusOK, http.MethodGet, "/trees/search?q=moments", "", nil, &found)
		if len(found) != 1 {
			t.Errorf("search results = %d, want 1", len(found))
		}

		var popular []store.LoveTree
		c.must(http.StatusOK, http.MethodGet, "/trees/popular?limit=5", "", nil, &popular)
		if len(popular) != 2 || popular[0].ID == liked.ID {
			t.Fatalf("popular before likes = %+v, want newest first", popular)
		}
		c.must(http.StatusOK, http.MethodPost, "/trees/"+liked.ID+"/like", fan.ID, nil, nil)
		c.must(http.StatusOK, http.MethodGet, "/trees/popular?limit=5", "", nil, &popular)
		if len(popular) != 2 || popular[0].ID != liked.ID {
			t.Errorf("popular[0] = %+v, want the liked tree first", popular)
		}
	})
}

func TestRouterExtras(t *testing.T) {
	hc := health.New()
	c := client{t: t, handler: NewRouter(store.NewMemory(), WithHealth(hc))}

	rec := c.do(http.MethodGet, "/health/ready", "", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("ready = %d, want 200", rec.Code)
	}

	rec = c.do(http.MethodGet, "/nowhere", "", nil)
	if rec.Code != http.StatusNotFound || !strings.Contains(rec.Body.String(), "route") {
		t.Errorf("unknown route = %d %s", rec.Code, rec.Body.String())
	}

	rec = c.do(http.MethodGet, "/stages", "", nil)
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("response has no X-Request-ID")
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}
}
