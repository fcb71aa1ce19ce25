package app

import (
	"sync"
	"testing"
	"time"

	"github.com/dkeye/callstate/internal/domain"
	"github.com/stretchr/testify/require"
)

func newTestStore() *Store {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	return NewStore(domain.CommunicationUser("me"), domain.DefaultCapacities(), WithClock(func() time.Time { return now }))
}

func TestApplyPublishesNewRoot(t *testing.T) {
	s := newTestStore()
	before := s.Current()

	after := s.Apply(func(d *Draft) {
		d.PutCall(domain.NewCall("c1", 10))
	})

	require.Equal(t, before.Version+1, after.Version)
	require.Same(t, after, s.Current())
	require.Empty(t, before.Calls)
	require.Contains(t, after.Calls, "c1")
}

func TestApplyLeavesPreviousSnapshotUntouched(t *testing.T) {
	s := newTestStore()
	s.Apply(func(d *Draft) {
		c := domain.NewCall("c1", 10)
		c.RemoteParticipants["p"] = &domain.RemoteParticipant{
			Identifier:   domain.CommunicationUser("p"),
			VideoStreams: map[int]*domain.RemoteVideoStream{1: {ID: 1}},
		}
		d.PutCall(c)
	})
	old := s.Current()

	s.Apply(func(d *Draft) {
		d.Call("c1").IsMuted = true
		d.Participant("c1", "p").IsSpeaking = true
		d.RemoteStream("c1", "p", 1).IsAvailable = true
	})

	require.False(t, old.Calls["c1"].IsMuted)
	require.False(t, old.Calls["c1"].RemoteParticipants["p"].IsSpeaking)
	require.False(t, old.Calls["c1"].RemoteParticipants["p"].VideoStreams[1].IsAvailable)

	cur := s.Current()
	require.True(t, cur.Calls["c1"].IsMuted)
	require.True(t, cur.Calls["c1"].RemoteParticipants["p"].VideoStreams[1].IsAvailable)
}

func TestObserversRunInRegistrationOrder(t *testing.T) {
	s := newTestStore()
	var order []int
	for i := range 3 {
		s.Subscribe(func(*domain.State) { order = append(order, i) })
	}

	s.Apply(func(*Draft) {})
	require.Equal(t, []int{0, 1, 2}, order)
}

func TestEveryApplyNotifiesOnce(t *testing.T) {
	s := newTestStore()
	var versions []uint64
	s.Subscribe(func(st *domain.State) { versions = append(versions, st.Version) })

	s.Apply(func(*Draft) {})
	s.Apply(func(d *Draft) { d.SetAgent(&domain.Agent{DisplayName: "x"}) })

	require.Equal(t, []uint64{1, 2}, versions)
}

func TestUnsubscribeIsIdempotent(t *testing.T) {
	s := newTestStore()
	calls := 0
	sub := s.Subscribe(func(*domain.State) { calls++ })
	other := s.Subscribe(func(*domain.State) {})

	sub.Unsubscribe()
	sub.Unsubscribe()
	Subscription{}.Unsubscribe()

	s.Apply(func(*Draft) {})
	require.Zero(t, calls)
	require.Equal(t, 1, s.ObserverCount())
	other.Unsubscribe()
	require.Zero(t, s.ObserverCount())
}

func TestNestedApplyIsDeliveredAfterCurrentNotification(t *testing.T) {
	s := newTestStore()
	var seen []uint64
	s.Subscribe(func(st *domain.State) {
		seen = append(seen, st.Version)
		if st.Version == 1 {
			s.Apply(func(*Draft) {})
			// the nested commit is queued behind this notification
			require.Equal(t, uint64(2), s.Current().Version)
			require.Equal(t, []uint64{1}, seen)
		}
	})

	s.Apply(func(*Draft) {})
	require.Equal(t, []uint64{1, 2}, seen)
}

func TestPanickingObserverDoesNotStopOthers(t *testing.T) {
	s := newTestStore()
	s.Subscribe(func(*domain.State) { panic("boom") })
	got := 0
	s.Subscribe(func(*domain.State) { got++ })

	require.NotPanics(t, func() { s.Apply(func(*Draft) {}) })
	require.Equal(t, 1, got)
}

func TestConcurrentApplyDeliversEveryVersionInOrder(t *testing.T) {
	s := newTestStore()
	var (
		mu   sync.Mutex
		seen []uint64
	)
	s.Subscribe(func(st *domain.State) {
		mu.Lock()
		seen = append(seen, st.Version)
		mu.Unlock()
	})

	var wg sync.WaitGroup
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Apply(func(*Draft) {})
		}()
	}
	wg.Wait()

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(seen) == 20
	}, time.Second, 5*time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	for i, v := range seen {
		require.Equal(t, uint64(i+1), v)
	}
}

func TestEndCallMovesIntoHistory(t *testing.T) {
	s := newTestStore()
	s.Apply(func(d *Draft) { d.PutCall(domain.NewCall("c1", 10)) })
	st := s.Apply(func(d *Draft) {
		require.True(t, d.EndCall("c1", &domain.EndReason{Code: 487}))
		require.False(t, d.EndCall("c1", nil))
	})

	require.NotContains(t, st.Calls, "c1")
	ended, ok := st.CallsEnded.Get("c1")
	require.True(t, ok)
	require.NotNil(t, ended.EndTime)
	require.Equal(t, 487, ended.EndReason.Code)
}

func TestRenameCallRekeys(t *testing.T) {
	s := newTestStore()
	s.Apply(func(d *Draft) { d.PutCall(domain.NewCall("old", 10)) })
	st := s.Apply(func(d *Draft) { require.True(t, d.RenameCall("old", "new")) })

	require.NotContains(t, st.Calls, "old")
	require.Equal(t, "new", st.Calls["new"].ID)
}

func TestEndParticipantClearsScreenSharer(t *testing.T) {
	s := newTestStore()
	s.Apply(func(d *Draft) {
		c := domain.NewCall("c1", 10)
		c.ScreenShareRemoteParticipant = "p"
		d.PutCall(c)
		d.PutParticipant("c1", &domain.RemoteParticipant{Identifier: domain.CommunicationUser("p")})
	})
	st := s.Apply(func(d *Draft) { d.EndParticipant("c1", "p", &domain.EndReason{Code: 0}) })

	c := st.Calls["c1"]
	require.Empty(t, c.RemoteParticipants)
	require.True(t, c.RemoteParticipantsEnded.Has("p"))
	require.Empty(t, c.ScreenShareRemoteParticipant)
}

func TestPutLeavesEndedHistory(t *testing.T) {
	s := newTestStore()
	s.Apply(func(d *Draft) {
		d.PutCall(domain.NewCall("c1", 10))
		d.PutParticipant("c1", &domain.RemoteParticipant{Identifier: domain.CommunicationUser("p")})
		d.PutIncomingCall(&domain.IncomingCall{ID: "in1"})
	})
	s.Apply(func(d *Draft) {
		d.EndParticipant("c1", "p", nil)
		d.EndIncomingCall("in1", nil)
	})

	st := s.Apply(func(d *Draft) {
		d.PutParticipant("c1", &domain.RemoteParticipant{Identifier: domain.CommunicationUser("p")})
		d.PutIncomingCall(&domain.IncomingCall{ID: "in1"})
	})
	require.Contains(t, st.Calls["c1"].RemoteParticipants, "p")
	require.False(t, st.Calls["c1"].RemoteParticipantsEnded.Has("p"))
	require.Contains(t, st.IncomingCalls, "in1")
	require.False(t, st.IncomingCallsEnded.Has("in1"))

	s.Apply(func(d *Draft) { d.EndCall("c1", nil) })
	st = s.Apply(func(d *Draft) { d.PutCall(domain.NewCall("c1", 10)) })
	require.Contains(t, st.Calls, "c1")
	require.False(t, st.CallsEnded.Has("c1"))
}

func TestRenameOntoEndedIDLeavesHistory(t *testing.T) {
	s := newTestStore()
	s.Apply(func(d *Draft) {
		d.PutCall(domain.NewCall("a", 10))
		d.PutCall(domain.NewCall("b", 10))
	})
	s.Apply(func(d *Draft) { d.EndCall("b", nil) })
	st := s.Apply(func(d *Draft) { d.RenameCall("a", "b") })

	require.Contains(t, st.Calls, "b")
	require.False(t, st.CallsEnded.Has("b"))
}
