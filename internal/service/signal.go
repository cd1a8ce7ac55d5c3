// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package service

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
)

// refreshSignals make the daemon detect and print its position right away.
var refreshSignals = []os.Signal{syscall.SIGUSR1}

// notifier relays OS signals to a channel.
type notifier interface {
	Notify(c chan<- os.Signal, sig ...os.Signal)
	Stop(c chan<- os.Signal)
}

type osNotifier struct{}

func (osNotifier) Notify(c chan<- os.Signal, sig ...os.Signal) { signal.Notify(c, sig...) }

func (osNotifier) Stop(c chan<- os.Signal) { signal.Stop(c) }

// watchRefreshSignals refreshes the position for every refresh signal until ctx is done.
func (s *Service) watchRefreshSignals(ctx context.Context) {
	received := make(chan os.Signal, 1)
	s.signals.Notify(received, refreshSignals...)
	defer s.signals.Stop(received)

	for {
		select {
		case <-ctx.Done():
			return
		case sig := <-received:
			s.logger.Info("refresh requested", slog.String("signal", sig.String()))
			s.refresh(ctx)
		}
	}
}

// refresh runs a detection cycle and prints the outcome without waiting for the next job.
func (s *Service) refresh(ctx context.Context) {
	s.detect(ctx)
	s.printPosition(ctx)
}
