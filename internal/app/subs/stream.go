package subs

import (
	"github.com/dkeye/callstate/internal/app"
	"github.com/dkeye/callstate/internal/core"
	"github.com/dkeye/callstate/internal/domain"
)

// RemoteStreamSubscriber tracks availability of one participant stream
// and the call's screen sharer.
type RemoteStreamSubscriber struct {
	lis listeners
}

func NewRemoteStreamSubscriber(deps *Deps, ref *CallIDRef, participant string, rs core.RemoteVideoStream) *RemoteStreamSubscriber {
	s := &RemoteStreamSubscriber{}
	id := rs.ID()
	screen := rs.MediaStreamType() == domain.MediaScreenSharing

	s.lis.add(rs.OnIsAvailableChanged(func() {
		available := rs.IsAvailable()
		callID := ref.ID()
		deps.Store.Apply(func(d *app.Draft) {
			st := d.RemoteStream(callID, participant, id)
			if st == nil {
				return
			}
			st.IsAvailable = available
			if !screen {
				return
			}
			c := d.Call(callID)
			if available {
				c.ScreenShareRemoteParticipant = participant
				return
			}
			releaseScreenShare(c, d.Participant(callID, participant), id)
		})
	}))
	return s
}

func (s *RemoteStreamSubscriber) Unsubscribe() { s.lis.close() }
