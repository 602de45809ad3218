package convo

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_AppendAndMessages(t *testing.T) {
	s := NewStore("prompt", 40)
	s.AppendUser("hello")
	s.AppendAssistant("hi there")

	msgs := s.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, Message{Role: RoleUser, Content: "hello"}, msgs[0])
	assert.Equal(t, Message{Role: RoleAssistant, Content: "hi there"}, msgs[1])
	assert.Equal(t, 2, s.Len())

	// Returned slice is a copy.
	msgs[0].Content = "mutated"
	assert.Equal(t, "hello", s.Messages()[0].Content)
}

func TestStore_TrimsOldestFirst(t *testing.T) {
	s := NewStore("prompt", 4)
	for i := 0; i < 6; i++ {
		s.AppendUser(fmt.Sprintf("m%d", i))
	}
	msgs := s.Messages()
	require.Len(t, msgs, 4)
	assert.Equal(t, "m2", msgs[0].Content)
	assert.Equal(t, "m5", msgs[3].Content)
}

func TestStore_Thinking(t *testing.T) {
	s := NewStore("prompt", 40)
	assert.Equal(t, "", s.Thinking())
	s.SetThinking("current state")
	assert.Equal(t, "current state", s.Thinking())
}

func TestStore_SnapshotComposition(t *testing.T) {
	s := NewStore("the prompt", 40)

	// Without thinking: prompt only.
	snap := s.Snapshot()
	require.Len(t, snap, 1)
	assert.Equal(t, Message{Role: RoleSystem, Content: "the prompt"}, snap[0])

	s.SetThinking("assistant state")
	s.AppendUser("q")
	s.AppendAssistant("a")

	snap = s.Snapshot()
	require.Len(t, snap, 4)
	assert.Equal(t, RoleSystem, snap[0].Role)
	assert.Equal(t, "the prompt", snap[0].Content)
	assert.Equal(t, RoleSystem, snap[1].Role)
	assert.Equal(t, "assistant state", snap[1].Content)
	assert.Equal(t, Message{Role: RoleUser, Content: "q"}, snap[2])
	assert.Equal(t, Message{Role: RoleAssistant, Content: "a"}, snap[3])

	// Later mutation does not leak into the snapshot.
	s.AppendUser("later")
	assert.Len(t, snap, 4)
}

func TestStore_SnapshotWithoutSystemPrompt(t *testing.T) {
	s := NewStore("", 40)
	s.AppendUser("q")
	snap := s.Snapshot()
	require.Len(t, snap, 1)
	assert.Equal(t, RoleUser, snap[0].Role)
}

func TestStore_ConcurrentReadersAndWriters(t *testing.T) {
	s := NewStore("prompt", 20)

	var wg sync.WaitGroup
	for g := 0; g < 4; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				s.AppendUser(fmt.Sprintf("g%d-%d", g, i))
				s.SetThinking(fmt.Sprintf("state %d", i))
				_ = s.Snapshot()
				_ = s.Thinking()
			}
		}(g)
	}
	wg.Wait()

	assert.Equal(t, 20, s.Len(), "history stays trimmed under concurrency")
}
