package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/bft-labs/lottery/internal/codec"
	"github.com/bft-labs/lottery/internal/domain"
	"github.com/bft-labs/lottery/internal/frame"
	"github.com/bft-labs/lottery/internal/ports"
)

// Session drives the protocol for one agency connection.
//
// The loop receives a frame, decodes it and dispatches on the message type:
// BATCH is stored and answered, FIN is recorded on the barrier, GANADORES
// waits for the barrier, answers and ends the session.
type Session struct {
	id      string
	remote  string
	channel *frame.Channel
	store   *LockedStore
	barrier *Barrier
	logger  ports.Logger
	emitter SessionEventEmitter
}

// NewSession creates a session over an established channel. Sessions of
// one server share store and barrier.
func NewSession(
	id, remote string,
	channel *frame.Channel,
	store *LockedStore,
	barrier *Barrier,
	logger ports.Logger,
	emitter SessionEventEmitter,
) *Session {
	if emitter == nil {
		emitter = noopEmitter{}
	}
	return &Session{
		id:      id,
		remote:  remote,
		channel: channel,
		store:   store,
		barrier: barrier,
		logger:  logger,
		emitter: emitter,
	}
}

// Run processes messages until the winners reply has been sent or an
// error ends the session. It returns nil only after a successful winners
// reply.
func (s *Session) Run(ctx context.Context) error {
	for {
		payload, err := s.channel.Receive()
		if err != nil {
			if errors.Is(err, frame.ErrMalformedFrame) {
				// The stream cannot be resynchronized after a bad length field.
				_ = s.channel.Send([]byte(codec.ReplyError))
			}
			return err
		}

		msg, err := codec.Decode(payload)
		if err != nil {
			s.logger.Warn("closing session on unrecognized message", s.fields(ports.Err(err))...)
			return err
		}

		switch msg.Type {
		case codec.TypeBatch:
			if err := s.handleBatch(ctx, msg.Body); err != nil {
				return err
			}
		case codec.TypeFin:
			s.handleFin(msg.Body)
		case codec.TypeWinners:
			done, err := s.handleWinners(ctx, msg.Body)
			if err != nil || done {
				return err
			}
		}
	}
}

// handleBatch stores a batch and replies. Only reply I/O errors are returned.
func (s *Session) handleBatch(ctx context.Context, body string) error {
	batch, err := codec.ParseBatchMessage(body)
	if err == nil {
		err = s.store.AppendIf(ctx, batch.Bets, func() error {
			return s.checkAgencies(batch)
		})
	}
	s.emitter.OnBatch(batch.Size(), err)

	if err != nil {
		s.logger.Error("batch rejected",
			s.fields(
				ports.String("action", "apuesta_recibida"),
				ports.Int("declared", batch.Declared),
				ports.Err(err),
			)...,
		)
		return s.channel.Send([]byte(codec.ReplyError))
	}

	s.logger.Info("batch stored",
		s.fields(
			ports.String("action", "apuesta_recibida"),
			ports.Int("bets", batch.Size()),
		)...,
	)
	return s.channel.Send([]byte(codec.ReplySuccess))
}

// checkAgencies rejects bets from agencies that are unknown or already
// sent FIN. It runs under the store lock, as does recording a FIN, so once
// every agency finished the store no longer changes.
func (s *Session) checkAgencies(batch domain.Batch) error {
	for _, agency := range batch.Agencies() {
		if agency < 1 || agency > s.barrier.Total() {
			return fmt.Errorf("%w: %d", domain.ErrUnknownAgency, agency)
		}
		if s.barrier.Finished(agency) {
			return fmt.Errorf("%w: %d", domain.ErrAgencyFinished, agency)
		}
	}
	return nil
}

func (s *Session) handleFin(body string) {
	agency, err := codec.ParseAgency(body)
	if err != nil {
		s.logger.Warn("ignoring malformed FIN", s.fields(ports.Err(err))...)
		return
	}

	var first bool
	s.store.Exclusive(func() {
		first, err = s.barrier.SignalFinished(agency)
	})
	if err != nil {
		s.logger.Warn("ignoring FIN", s.fields(ports.Int("agency", agency), ports.Err(err))...)
		return
	}
	if !first {
		s.logger.Debug("duplicate FIN", s.fields(ports.Int("agency", agency))...)
		return
	}

	s.emitter.OnAgencyFinished(agency)
	s.logger.Info("agency finished",
		s.fields(
			ports.Int("agency", agency),
			ports.Int("finished", s.barrier.Count()),
			ports.Int("total", s.barrier.Total()),
		)...,
	)
	if s.barrier.AllFinished() {
		s.logger.Info("all agencies finished", ports.String("action", "sorteo"))
	}
}

// handleWinners waits for the barrier and sends the winners of the
// requesting agency. done reports whether the session should end.
func (s *Session) handleWinners(ctx context.Context, body string) (done bool, err error) {
	agency, err := codec.ParseAgency(body)
	if err == nil && (agency < 1 || agency > s.barrier.Total()) {
		err = fmt.Errorf("%w: %d", domain.ErrUnknownAgency, agency)
	}
	if err != nil {
		s.logger.Warn("winners query rejected", s.fields(ports.Err(err))...)
		return false, s.channel.Send([]byte(codec.ReplyError))
	}

	s.logger.Debug("waiting for all agencies", s.fields(ports.Int("agency", agency))...)
	if err := s.barrier.AwaitAll(ctx); err != nil {
		return true, err
	}

	winners, err := s.store.WinnersForAgency(ctx, agency)
	if err != nil {
		s.logger.Error("winners lookup failed", s.fields(ports.Int("agency", agency), ports.Err(err))...)
		return false, s.channel.Send([]byte(codec.ReplyError))
	}

	if err := s.channel.Send(codec.FormatWinners(winners)); err != nil {
		return true, err
	}
	s.emitter.OnWinnersServed(agency, len(winners))
	s.logger.Info("winners sent",
		s.fields(
			ports.String("action", "consulta_ganadores"),
			ports.Int("agency", agency),
			ports.Int("winners", len(winners)),
		)...,
	)
	return true, nil
}

func (s *Session) fields(extra ...ports.Field) []ports.Field {
	out := make([]ports.Field, 0, len(extra)+2)
	out = append(out, ports.String("session", s.id), ports.String("remote", s.remote))
	return append(out, extra...)
}
