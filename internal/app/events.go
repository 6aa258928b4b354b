package app

// SessionEventEmitter is notified of protocol events as sessions process
// them. Implementations must be safe for concurrent use; every session
// calls it from its own goroutine.
type SessionEventEmitter interface {
	OnSessionOpened()
	OnSessionClosed(err error)
	OnBatch(bets int, err error)
	OnAgencyFinished(agency int)
	OnWinnersServed(agency int, winners int)
}

type noopEmitter struct{}

func (noopEmitter) OnSessionOpened()                        {}
func (noopEmitter) OnSessionClosed(err error)               {}
func (noopEmitter) OnBatch(bets int, err error)             {}
func (noopEmitter) OnAgencyFinished(agency int)             {}
func (noopEmitter) OnWinnersServed(agency int, winners int) {}
