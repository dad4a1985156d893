package querycache

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCache(t *testing.T) {
	t.Run("Should evict least recently used entry", func(t *testing.T) {
		c := New(2)
		c.Set("a", 1)
		c.Set("b", 2)
		_, _ = c.Get("a")
		c.Set("c", 3)

		_, ok := c.Get("b")
		assert.False(t, ok, "b was least recently used")
		v, ok := c.Get("a")
		assert.True(t, ok)
		assert.Equal(t, 1, v)
		assert.Equal(t, 2, c.Len())
	})

	t.Run("Should invalidate by prefix", func(t *testing.T) {
		c := New(10)
		c.Set("tasks/t1/comments", 1)
		c.Set("tasks/t1/subtasks", 2)
		c.Set("tasks/t2/comments", 3)

		removed := c.InvalidatePrefix("tasks/t1/")

		assert.Equal(t, 2, removed)
		assert.Equal(t, 1, c.Len())
		_, ok := c.Get("tasks/t2/comments")
		assert.True(t, ok)
	})

	t.Run("Should clear everything", func(t *testing.T) {
		c := New(10)
		c.Set("a", 1)
		c.Clear()
		assert.Equal(t, 0, c.Len())
	})
}

func TestOptimistic(t *testing.T) {
	failing := func() (func(interface{}) interface{}, error) { return nil, errors.New("boom") }

	t.Run("Should expose speculative value during commit and keep server truth", func(t *testing.T) {
		c := New(10)
		c.Set("k", []string{"one"})

		result, err := c.Optimistic("k",
			func(current interface{}) interface{} {
				return append(append([]string{}, current.([]string)...), "temp")
			},
			func() (func(interface{}) interface{}, error) {
				during, _ := c.Get("k")
				assert.Equal(t, []string{"one", "temp"}, during)
				return func(interface{}) interface{} { return []string{"one", "two"} }, nil
			})

		require.NoError(t, err)
		assert.Equal(t, []string{"one", "two"}, result)
		v, _ := c.Get("k")
		assert.Equal(t, []string{"one", "two"}, v)
	})

	t.Run("Should restore snapshot on failure", func(t *testing.T) {
		c := New(10)
		c.Set("k", "before")

		_, err := c.Optimistic("k",
			func(interface{}) interface{} { return "speculative" },
			failing)

		require.Error(t, err)
		v, _ := c.Get("k")
		assert.Equal(t, "before", v)
	})

	t.Run("Should remove key on failure when it did not exist", func(t *testing.T) {
		c := New(10)

		_, err := c.Optimistic("new",
			func(current interface{}) interface{} {
				assert.Nil(t, current)
				return "speculative"
			},
			failing)

		require.Error(t, err)
		_, ok := c.Get("new")
		assert.False(t, ok)
	})

	t.Run("Should settle against writes that landed during commit", func(t *testing.T) {
		c := New(10)
		c.Set("k", []string{})

		_, err := c.Optimistic("k",
			func(current interface{}) interface{} {
				return append(append([]string{}, current.([]string)...), "temp-a")
			},
			func() (func(interface{}) interface{}, error) {
				c.Set("k", []string{"temp-a", "b"})
				return func(current interface{}) interface{} {
					list := append([]string{}, current.([]string)...)
					for i := range list {
						if list[i] == "temp-a" {
							list[i] = "a"
						}
					}
					return list
				}, nil
			})

		require.NoError(t, err)
		v, _ := c.Get("k")
		assert.Equal(t, []string{"a", "b"}, v)
	})

	t.Run("Should drop the key on failure when another write landed", func(t *testing.T) {
		c := New(10)
		c.Set("k", "before")

		_, err := c.Optimistic("k",
			func(interface{}) interface{} { return "speculative" },
			func() (func(interface{}) interface{}, error) {
				c.Set("k", "other")
				return nil, errors.New("boom")
			})

		require.Error(t, err)
		_, ok := c.Get("k")
		assert.False(t, ok)
	})

	t.Run("Should not resurrect a key invalidated during commit", func(t *testing.T) {
		c := New(10)
		c.Set("k", "before")

		result, err := c.Optimistic("k",
			func(interface{}) interface{} { return "speculative" },
			func() (func(interface{}) interface{}, error) {
				c.Invalidate("k")
				return func(interface{}) interface{} { return "settled" }, nil
			})

		require.NoError(t, err)
		assert.Nil(t, result)
		_, ok := c.Get("k")
		assert.False(t, ok)
	})
}
