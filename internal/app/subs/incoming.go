package subs

import (
	"github.com/dkeye/callstate/internal/app"
	"github.com/dkeye/callstate/internal/core"
	"github.com/dkeye/callstate/internal/domain"
)

type IncomingCallSubscriber struct {
	lis listeners
}

// NewIncomingCallSubscriber records ic as pending. When the SDK reports
// the call ended it moves to the ended history and onEnded runs.
func NewIncomingCallSubscriber(deps *Deps, ic core.IncomingCall, onEnded func()) *IncomingCallSubscriber {
	s := &IncomingCallSubscriber{}
	id, caller := ic.ID(), ic.CallerInfo()
	log := logger("subs.incoming")

	deps.Store.Apply(func(d *app.Draft) {
		d.PutIncomingCall(&domain.IncomingCall{ID: id, CallerInfo: caller, StartTime: d.Now()})
	})
	log.Info().Str("call_id", id).Str("participant", caller.Identifier.Key()).Msg("incoming call")

	s.lis.add(ic.OnCallEnded(func(ev core.IncomingCallEnded) {
		reason := ev.EndReason
		deps.Store.Apply(func(d *app.Draft) {
			d.EndIncomingCall(id, &reason)
		})
		log.Info().Str("call_id", id).Int("code", reason.Code).Msg("incoming call ended")
		if onEnded != nil {
			onEnded()
		}
	}))
	return s
}

func (s *IncomingCallSubscriber) Unsubscribe() { s.lis.close() }
