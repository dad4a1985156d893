package panels

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestManager(t *testing.T) {
	t.Run("Should stay locked until the last panel closes", func(t *testing.T) {
		m := NewManager()

		closeTask := m.Open("task-drawer")
		closeSubtask := m.Open("subtask-drawer")
		assert.True(t, m.Locked())
		assert.Equal(t, 2, m.Depth())

		closeTask()
		assert.True(t, m.Locked())
		assert.Equal(t, []string{"subtask-drawer"}, m.Names())

		closeSubtask()
		assert.False(t, m.Locked())
	})

	t.Run("Should ignore repeated releases", func(t *testing.T) {
		m := NewManager()
		closeA := m.Open("a")
		m.Open("b")

		closeA()
		closeA()

		assert.Equal(t, 1, m.Depth())
		assert.True(t, m.Locked())
	})

	t.Run("Should notify only on lock edges", func(t *testing.T) {
		m := NewManager()
		var events []bool
		m.OnChange(func(locked bool) { events = append(events, locked) })

		closeA := m.Open("a")
		closeB := m.Open("b")
		closeA()
		closeB()
		m.Open("c")()

		assert.Equal(t, []bool{true, false, true, false}, events)
	})

	t.Run("Should stop notifying after unsubscribe", func(t *testing.T) {
		m := NewManager()
		calls := 0
		unsubscribe := m.OnChange(func(bool) { calls++ })

		m.Open("a")()
		unsubscribe()
		m.Open("b")()

		assert.Equal(t, 2, calls)
	})

	t.Run("Should balance under concurrent use", func(t *testing.T) {
		m := NewManager()
		var wg sync.WaitGroup
		for i := 0; i < 50; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				release := m.Open("modal")
				release()
				release()
			}()
		}
		wg.Wait()

		assert.Equal(t, 0, m.Depth())
		assert.False(t, m.Locked())
	})
}
