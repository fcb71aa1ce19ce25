package http

import (
	"encoding/json"
	"testing"

	"github.com/dkeye/callstate/internal/app"
	"github.com/dkeye/callstate/internal/domain"
	"github.com/stretchr/testify/require"
)

func queuedVersions(t *testing.T, c *stateConn) []uint64 {
	t.Helper()
	var out []uint64
	for {
		select {
		case b := <-c.send:
			var body struct {
				Version uint64 `json:"version"`
			}
			require.NoError(t, json.Unmarshal(b, &body))
			out = append(out, body.Version)
		default:
			return out
		}
	}
}

func TestPusherSendsOnlyNewerSnapshots(t *testing.T) {
	conn := &stateConn{send: make(chan []byte, 8)}
	p := &snapshotPusher{conn: conn, drop: func() {}}

	p.push(&domain.State{Version: 2})
	p.push(&domain.State{Version: 1})
	p.push(&domain.State{Version: 2})
	p.push(&domain.State{Version: 3})

	require.Equal(t, []uint64{2, 3}, queuedVersions(t, conn))
}

func TestPusherDropsSlowViewer(t *testing.T) {
	conn := &stateConn{send: make(chan []byte, 1)}
	dropped := false
	p := &snapshotPusher{conn: conn, drop: func() { dropped = true }}

	p.push(&domain.State{Version: 1})
	require.False(t, dropped)
	p.push(&domain.State{Version: 2})
	require.True(t, dropped)
}

// racingSource commits a change right after every read of the current
// snapshot.
type racingSource struct{ *app.Store }

func (s racingSource) State() *domain.State {
	st := s.Current()
	addCamera(s.Store, "late")
	return st
}

func TestFollowKeepsCommitAfterInitialRead(t *testing.T) {
	store := app.NewStore(domain.CommunicationUser("me"), domain.DefaultCapacities())
	conn := &stateConn{send: make(chan []byte, 8)}
	p := &snapshotPusher{conn: conn, drop: func() {}}

	sub := follow(racingSource{store}, p.push)
	defer sub.Unsubscribe()

	versions := queuedVersions(t, conn)
	require.NotEmpty(t, versions)
	require.Equal(t, store.Current().Version, versions[len(versions)-1])
}
