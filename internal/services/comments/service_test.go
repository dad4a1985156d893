package comments

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tenant-console/internal/api"
	"tenant-console/internal/querycache"
)

func newTestService(t *testing.T, handler http.HandlerFunc) (*Service, *querycache.Cache) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	cache := querycache.New(16)
	return NewService(api.NewClient(server.URL, "tok"), cache), cache
}

func cachedList(t *testing.T, cache *querycache.Cache, taskID string) []Comment {
	t.Helper()
	v, ok := cache.Get(ListKey(taskID))
	require.True(t, ok, "comment list should be cached")
	return v.([]Comment)
}

func TestList(t *testing.T) {
	t.Run("Should fetch once and then serve from cache", func(t *testing.T) {
		var hits int32
		svc, _ := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&hits, 1)
			assert.Equal(t, "/api/tasks/task-1/comments", r.URL.Path)
			_, _ = w.Write([]byte(`[{"id":"c1","taskId":"task-1","content":"hello"}]`))
		})

		first, err := svc.List(context.Background(), "task-1")
		require.NoError(t, err)
		second, err := svc.List(context.Background(), "task-1")
		require.NoError(t, err)

		assert.Equal(t, first, second)
		assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
	})
}

func TestOptimisticMutations(t *testing.T) {
	ctx := context.Background()
	seed := []Comment{{ID: "c1", TaskID: "task-1", Content: "first"}}

	t.Run("Should replace the placeholder with the server comment", func(t *testing.T) {
		svc, cache := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			var body map[string]string
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "second", body["content"])
			_, _ = w.Write([]byte(`{"id":"c2","taskId":"task-1","content":"second"}`))
		})
		cache.Set(ListKey("task-1"), seed)
		cache.Set(TaskKey("task-1"), "detail")

		created, err := svc.Add(ctx, "task-1", "  second ", Author{ID: "u1", Name: "Ada"})

		require.NoError(t, err)
		assert.Equal(t, "c2", created.ID)
		list := cachedList(t, cache, "task-1")
		require.Len(t, list, 2)
		assert.Equal(t, "c2", list[1].ID)
		assert.False(t, list[1].Pending())
		_, detailCached := cache.Get(TaskKey("task-1"))
		assert.False(t, detailCached, "task detail should be invalidated")
	})

	t.Run("Should show the placeholder while the request is in flight", func(t *testing.T) {
		var cache *querycache.Cache
		var sawPending bool
		svc, c := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
			v, _ := cache.Get(ListKey("task-1"))
			list := v.([]Comment)
			sawPending = len(list) == 2 && list[1].Pending() && list[1].AuthorName == "Ada"
			_, _ = w.Write([]byte(`{"id":"c2","content":"second"}`))
		})
		cache = c
		cache.Set(ListKey("task-1"), seed)

		_, err := svc.Add(ctx, "task-1", "second", Author{Name: "Ada"})

		require.NoError(t, err)
		assert.True(t, sawPending)
	})

	t.Run("Should restore the list when the server rejects a comment", func(t *testing.T) {
		svc, cache := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusForbidden)
			_, _ = w.Write([]byte(`{"error":"not a member"}`))
		})
		cache.Set(ListKey("task-1"), seed)

		_, err := svc.Add(ctx, "task-1", "second", Author{})

		assert.True(t, api.IsStatus(err, http.StatusForbidden))
		assert.Equal(t, seed, cachedList(t, cache, "task-1"))
	})

	t.Run("Should drop the key when nothing was cached before a failed add", func(t *testing.T) {
		svc, cache := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		})

		_, err := svc.Add(ctx, "task-9", "hi", Author{})

		assert.Error(t, err)
		_, ok := cache.Get(ListKey("task-9"))
		assert.False(t, ok)
	})

	t.Run("Should update and delete in place", func(t *testing.T) {
		svc, cache := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/api/tasks/task-1/comments/c1", r.URL.Path)
			switch r.Method {
			case http.MethodPut:
				_, _ = w.Write([]byte(`{"id":"c1","taskId":"task-1","content":"edited"}`))
			case http.MethodDelete:
				w.WriteHeader(http.StatusNoContent)
			}
		})
		cache.Set(ListKey("task-1"), seed)

		updated, err := svc.Update(ctx, "task-1", "c1", "edited")
		require.NoError(t, err)
		assert.Equal(t, "edited", updated.Content)
		assert.Equal(t, "edited", cachedList(t, cache, "task-1")[0].Content)

		require.NoError(t, svc.Delete(ctx, "task-1", "c1"))
		assert.Empty(t, cachedList(t, cache, "task-1"))
	})

	t.Run("Should not mutate the caller's seed slice", func(t *testing.T) {
		svc, cache := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		})
		original := []Comment{{ID: "c1", Content: "keep"}}
		cache.Set(ListKey("task-1"), original)

		_, err := svc.Update(ctx, "task-1", "c1", "changed")

		assert.Error(t, err)
		assert.Equal(t, "keep", original[0].Content)
	})

	t.Run("Should keep both comments when two adds overlap", func(t *testing.T) {
		arrived := make(chan struct{})
		release := make(chan struct{})
		svc, cache := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
			var body map[string]string
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			if body["content"] == "one" {
				close(arrived)
				<-release
			}
			_, _ = w.Write([]byte(`{"id":"srv-` + body["content"] + `","taskId":"task-1","content":"` + body["content"] + `"}`))
		})
		cache.Set(ListKey("task-1"), []Comment{})

		done := make(chan error, 1)
		go func() {
			_, err := svc.Add(ctx, "task-1", "one", Author{})
			done <- err
		}()
		<-arrived

		_, err := svc.Add(ctx, "task-1", "two", Author{})
		require.NoError(t, err)
		close(release)
		require.NoError(t, <-done)

		list := cachedList(t, cache, "task-1")
		require.Len(t, list, 2)
		assert.Equal(t, "srv-one", list[0].ID)
		assert.Equal(t, "srv-two", list[1].ID)
		for _, c := range list {
			assert.False(t, c.Pending())
		}
	})

	t.Run("Should drop the cached list when a failed add overlapped another write", func(t *testing.T) {
		arrived := make(chan struct{})
		release := make(chan struct{})
		svc, cache := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
			var body map[string]string
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			if body["content"] == "one" {
				close(arrived)
				<-release
				w.WriteHeader(http.StatusConflict)
				return
			}
			_, _ = w.Write([]byte(`{"id":"srv-two","taskId":"task-1","content":"two"}`))
		})
		cache.Set(ListKey("task-1"), []Comment{})

		done := make(chan error, 1)
		go func() {
			_, err := svc.Add(ctx, "task-1", "one", Author{})
			done <- err
		}()
		<-arrived

		_, err := svc.Add(ctx, "task-1", "two", Author{})
		require.NoError(t, err)
		close(release)
		assert.Error(t, <-done)

		_, ok := cache.Get(ListKey("task-1"))
		assert.False(t, ok, "a stale snapshot must not be restored over srv-two")
	})

	t.Run("Should reject blank content without a request", func(t *testing.T) {
		svc, _ := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
			t.Error("no request expected")
		})

		_, err := svc.Add(ctx, "task-1", "   ", Author{})
		assert.ErrorIs(t, err, ErrEmptyComment)
	})
}
