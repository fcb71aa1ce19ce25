package app

import "github.com/dkeye/callstate/internal/domain"

// Recorder receives engine measurements. internal/metrics implements it.
type Recorder interface {
	StateCommitted(st *domain.State)
	RenderTransition(to domain.RenderStatus)
	RenderFailed()
	OperationFailed(target domain.ErrorTarget)
	CallRenamed()
	IDReused()
}

type Nop struct{}

func (Nop) StateCommitted(*domain.State)         {}
func (Nop) RenderTransition(domain.RenderStatus) {}
func (Nop) RenderFailed()                        {}
func (Nop) OperationFailed(domain.ErrorTarget)   {}
func (Nop) CallRenamed()                         {}
func (Nop) IDReused()                            {}
