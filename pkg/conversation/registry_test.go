package conversation

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-go-golems/kbchat/pkg/events"
)

func TestQueryingEmptyRegistryBootstrapsOneSession(t *testing.T) {
	r := NewRegistry()
	require.True(t, r.PeekActiveID().IsNil())

	sessions := r.Sessions()
	require.Len(t, sessions, 1)

	s := sessions[0]
	assert.Equal(t, s.ID, r.ActiveID())
	assert.Empty(t, s.Messages)
	assert.Equal(t, UntitledTitle, s.Title)
	assert.False(t, s.TitleAssigned)

	// a second query must not create another session
	require.Len(t, r.Sessions(), 1)
}

func TestPeekActiveIDDoesNotBootstrap(t *testing.T) {
	r := NewRegistry()
	assert.True(t, r.PeekActiveID().IsNil())
	assert.Equal(t, int64(0), r.Version())
}

func TestCreateSessionPrependsAndActivates(t *testing.T) {
	r := NewRegistry()
	first := r.ActiveID()
	r.AppendMessages(first, NewUserMessage("hello"))

	second := r.CreateSession()
	assert.Equal(t, second, r.ActiveID())

	sessions := r.Sessions()
	require.Len(t, sessions, 2)
	assert.Equal(t, second, sessions[0].ID)
	assert.Equal(t, first, sessions[1].ID)

	// the previous transcript is kept
	require.Len(t, sessions[1].Messages, 1)
	assert.Equal(t, "hello", sessions[1].Messages[0].Content)
}

func TestCreatedAtComesFromClock(t *testing.T) {
	fixed := time.Date(2024, 3, 1, 15, 4, 0, 0, time.UTC)
	r := NewRegistry(WithClock(func() time.Time { return fixed }))

	s, ok := r.Session(r.CreateSession())
	require.True(t, ok)
	assert.Equal(t, fixed, s.CreatedAt)
}

func TestSwitchActiveIgnoresUnknownID(t *testing.T) {
	r := NewRegistry()
	a := r.ActiveID()
	version := r.Version()

	assert.False(t, r.SwitchActive(NewSessionID()))
	assert.Equal(t, a, r.ActiveID())
	assert.Equal(t, version, r.Version())
}

func TestSwitchActiveDoesNotTouchTranscripts(t *testing.T) {
	r := NewRegistry()
	a := r.ActiveID()
	r.AppendMessages(a, NewUserMessage("in a"))
	b := r.CreateSession()

	require.True(t, r.SwitchActive(a))
	assert.Equal(t, a, r.ActiveID())

	sa, _ := r.Session(a)
	sb, _ := r.Session(b)
	assert.Len(t, sa.Messages, 1)
	assert.Empty(t, sb.Messages)
}

func TestDeleteActiveSessionRetargetsToFirstRemaining(t *testing.T) {
	r := NewRegistry()
	c := r.ActiveID()
	b := r.CreateSession()
	a := r.CreateSession()

	// display order is [a, b, c] with a active
	sessions := r.Sessions()
	require.Equal(t, []SessionID{a, b, c}, []SessionID{sessions[0].ID, sessions[1].ID, sessions[2].ID})
	require.Equal(t, a, r.ActiveID())

	require.True(t, r.DeleteSession(a))
	assert.Equal(t, b, r.ActiveID())
	assert.Len(t, r.Sessions(), 2)
}

func TestDeleteInactiveSessionKeepsActive(t *testing.T) {
	r := NewRegistry()
	b := r.ActiveID()
	a := r.CreateSession()

	require.True(t, r.DeleteSession(b))
	assert.Equal(t, a, r.ActiveID())
	assert.Len(t, r.Sessions(), 1)
}

func TestDeleteLastSessionCreatesFreshOne(t *testing.T) {
	r := NewRegistry()
	a := r.ActiveID()
	r.AppendMessages(a, NewUserMessage("bye"))

	require.True(t, r.DeleteSession(a))

	sessions := r.Sessions()
	require.Len(t, sessions, 1)
	assert.NotEqual(t, a, sessions[0].ID)
	assert.Equal(t, sessions[0].ID, r.ActiveID())
	assert.Empty(t, sessions[0].Messages)
	assert.Equal(t, UntitledTitle, sessions[0].Title)
}

func TestDeleteUnknownSessionIsNoop(t *testing.T) {
	r := NewRegistry()
	r.Bootstrap()
	version := r.Version()

	assert.False(t, r.DeleteSession(NewSessionID()))
	assert.Equal(t, version, r.Version())
	assert.Len(t, r.Sessions(), 1)
}

func TestUpdateTranscriptReplacesMessages(t *testing.T) {
	r := NewRegistry()
	a := r.ActiveID()
	msgs := []Message{NewUserMessage("one"), NewAssistantMessage("two", nil)}

	require.True(t, r.UpdateTranscript(a, msgs))
	s, _ := r.Session(a)
	require.Len(t, s.Messages, 2)
	assert.Equal(t, msgs[0].ID, s.Messages[0].ID)
	assert.Equal(t, msgs[1].ID, s.Messages[1].ID)

	// the registry keeps its own copy
	msgs[0].Content = "changed"
	s, _ = r.Session(a)
	assert.Equal(t, "one", s.Messages[0].Content)

	assert.False(t, r.UpdateTranscript(NewSessionID(), msgs))
}

func TestAppendMessagesReturnsPriorTranscript(t *testing.T) {
	r := NewRegistry()
	a := r.ActiveID()

	prior, ok := r.AppendMessages(a, NewUserMessage("q1"))
	require.True(t, ok)
	assert.Empty(t, prior)

	prior, ok = r.AppendMessages(a, NewAssistantMessage("a1", []string{"doc.pdf"}))
	require.True(t, ok)
	require.Len(t, prior, 1)
	assert.Equal(t, "q1", prior[0].Content)

	_, ok = r.AppendMessages(NewSessionID(), NewUserMessage("lost"))
	assert.False(t, ok)
}

func TestAppendingToOneSessionLeavesOthersAlone(t *testing.T) {
	r := NewRegistry()
	b := r.ActiveID()
	r.AppendMessages(b, NewUserMessage("b1"))
	before, _ := r.Session(b)

	a := r.CreateSession()
	r.AppendMessages(a, NewUserMessage("a1"), NewAssistantMessage("a2", nil))

	after, _ := r.Session(b)
	assert.Equal(t, before.Messages, after.Messages)
}

func TestSessionCopiesAreDetached(t *testing.T) {
	r := NewRegistry()
	a := r.ActiveID()
	r.AppendMessages(a, NewAssistantMessage("answer", []string{"one.pdf"}))

	s, _ := r.Session(a)
	s.Messages[0].Sources[0] = "tampered"
	s.Title = "tampered"

	fresh, _ := r.Session(a)
	assert.Equal(t, "one.pdf", fresh.Messages[0].Sources[0])
	assert.Equal(t, UntitledTitle, fresh.Title)
}

func TestAssignTitleOnlyOnce(t *testing.T) {
	r := NewRegistry()
	a := r.ActiveID()

	require.True(t, r.AssignTitle(a, "first"))
	assert.False(t, r.AssignTitle(a, "second"))

	s, _ := r.Session(a)
	assert.Equal(t, "first", s.Title)
	assert.True(t, s.TitleAssigned)

	// SetTitle always replaces
	require.True(t, r.SetTitle(a, "renamed"))
	s, _ = r.Session(a)
	assert.Equal(t, "renamed", s.Title)

	assert.False(t, r.SetTitle(NewSessionID(), "nope"))
}

func TestAssignTitleIsExactlyOnceUnderContention(t *testing.T) {
	r := NewRegistry()
	a := r.ActiveID()

	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if r.AssignTitle(a, "title") {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, wins)
}

func TestConcurrentAppendsAreNotLost(t *testing.T) {
	r := NewRegistry()
	a := r.ActiveID()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.AppendMessages(a, NewUserMessage("x"))
		}()
	}
	wg.Wait()

	s, _ := r.Session(a)
	assert.Len(t, s.Messages, 50)
}

func TestMessageIDsSortByCreationOrder(t *testing.T) {
	var ids []MessageID
	for i := 0; i < 100; i++ {
		ids = append(ids, NewUserMessage("m").ID)
	}
	for i := 1; i < len(ids); i++ {
		assert.Less(t, ids[i-1].String(), ids[i].String())
	}
}

func TestRegistryPublishesChangeEvents(t *testing.T) {
	sink := events.NewMemorySink()
	r := NewRegistry(WithEventSink(sink))

	a := r.ActiveID()
	b := r.CreateSession()
	r.SwitchActive(a)
	r.AppendMessages(a, NewUserMessage("q"))
	r.AssignTitle(a, "q")
	r.DeleteSession(b)

	assert.Equal(t, []events.EventType{
		events.EventTypeSessionCreated,
		events.EventTypeSessionCreated,
		events.EventTypeSessionSwitched,
		events.EventTypeTranscriptUpdated,
		events.EventTypeTitleAssigned,
		events.EventTypeSessionDeleted,
	}, sink.Types())

	deleted, ok := sink.Events()[5].(*events.EventSessionDeleted)
	require.True(t, ok)
	assert.Equal(t, b.String(), deleted.Metadata().SessionID)
	assert.Equal(t, a.String(), deleted.ActiveID)
}

func TestDeletingLastSessionPublishesDeleteThenCreate(t *testing.T) {
	sink := events.NewMemorySink()
	r := NewRegistry(WithEventSink(sink))
	a := r.ActiveID()

	r.DeleteSession(a)

	types := sink.Types()
	require.Len(t, types, 3)
	assert.Equal(t, events.EventTypeSessionDeleted, types[1])
	assert.Equal(t, events.EventTypeSessionCreated, types[2])

	deleted := sink.Events()[1].(*events.EventSessionDeleted)
	assert.Equal(t, r.ActiveID().String(), deleted.ActiveID)
}
