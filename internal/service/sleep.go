// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/godbus/dbus/v5"

	"github.com/wneessen/taxiwidget/internal/logger"
)

const (
	login1Manager   = "org.freedesktop.login1.Manager"
	prepareForSleep = "PrepareForSleep"

	resumeDebounce  = 2 * time.Second
	busSignalBuffer = 8
	busRetryDelay   = 5 * time.Second
)

var errBusClosed = errors.New("system bus connection closed")

// systemBus is the subset of a dbus connection used to watch for resume events.
type systemBus interface {
	AddMatchSignal(options ...dbus.MatchOption) error
	Signal(ch chan<- *dbus.Signal)
	RemoveSignal(ch chan<- *dbus.Signal)
	Close() error
}

func dialSystemBus() (systemBus, error) {
	return dbus.ConnectSystemBus()
}

// monitorSleepResume keeps a resume watcher running until ctx is cancelled. A failed or
// dropped bus connection is retried after busRetryDelay.
func (s *Service) monitorSleepResume(ctx context.Context) {
	for {
		err := s.watchSleepSignals(ctx)
		if ctx.Err() != nil {
			return
		}
		s.logger.Warn("resume watcher stopped, retrying", logger.Err(err),
			slog.Duration("retry_in", busRetryDelay))

		select {
		case <-ctx.Done():
			return
		case <-time.After(busRetryDelay):
		}
	}
}

// watchSleepSignals owns one bus connection for its whole lifetime and closes it on return.
// It returns nil once ctx is done.
func (s *Service) watchSleepSignals(ctx context.Context) error {
	bus, err := s.dialBus()
	if err != nil {
		return fmt.Errorf("failed to connect to system bus: %w", err)
	}
	defer func() {
		if err := bus.Close(); err != nil {
			s.logger.Error("failed to close system bus connection", logger.Err(err))
		}
	}()

	if err = bus.AddMatchSignal(dbus.WithMatchInterface(login1Manager),
		dbus.WithMatchMember(prepareForSleep)); err != nil {
		return fmt.Errorf("failed to subscribe to %s.%s: %w", login1Manager, prepareForSleep, err)
	}
	signals := make(chan *dbus.Signal, busSignalBuffer)
	bus.Signal(signals)
	defer bus.RemoveSignal(signals)
	s.logger.Debug("watching for resume from sleep", slog.String("signal", login1Manager+"."+prepareForSleep))

	for {
		select {
		case <-ctx.Done():
			return nil
		case sgn, ok := <-signals:
			if !ok {
				return errBusClosed
			}
			s.processSleepSignal(ctx, sgn)
		}
	}
}

// processSleepSignal acts on PrepareForSleep(false), which logind sends after resume.
// Other signals on the connection are ignored.
func (s *Service) processSleepSignal(ctx context.Context, sgn *dbus.Signal) {
	if sgn == nil || sgn.Name != login1Manager+"."+prepareForSleep || len(sgn.Body) != 1 {
		return
	}
	if sleeping, ok := sgn.Body[0].(bool); ok && !sleeping {
		s.handleResumeEvent(ctx)
	}
}

// handleResumeEvent refreshes the position once the wake delay has passed. Resume events
// that follow each other within resumeDebounce are dropped.
func (s *Service) handleResumeEvent(ctx context.Context) {
	now := s.now().UnixNano()
	last := s.lastResume.Load()
	if now-last < int64(resumeDebounce) || !s.lastResume.CompareAndSwap(last, now) {
		return
	}

	select {
	case <-ctx.Done():
		return
	case <-time.After(s.config.Intervals.WakeDelay):
	}

	s.logger.Debug("resumed from sleep, detecting current position")
	s.refresh(ctx)
}
