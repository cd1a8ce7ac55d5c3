// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/paulmach/orb"

	"github.com/wneessen/taxiwidget/internal/config"
	"github.com/wneessen/taxiwidget/internal/geobus"
	"github.com/wneessen/taxiwidget/internal/geocode"
	"github.com/wneessen/taxiwidget/internal/location"
	"github.com/wneessen/taxiwidget/internal/logger"
	"github.com/wneessen/taxiwidget/internal/presenter"
)

const subscriberBufferSize = 8

// Service is the taxiwidget daemon. It polls the position sources on a schedule, feeds the
// samples through the location filter and prints the best-known position for the bar.
type Service struct {
	config       *config.Config
	logger       *logger.Logger
	filter       *location.Filter
	geobus       *geobus.GeoBus
	orchestrator *geobus.Orchestrator
	geocoder     geocode.Geocoder
	presenter    *presenter.Presenter
	scheduler    gocron.Scheduler
	now          func() time.Time

	signals    notifier
	dialBus    func() (systemBus, error)
	lastResume atomic.Int64

	outputLock sync.Mutex
	output     io.Writer

	addressLock sync.RWMutex
	address     geocode.Address
	addressFor  orb.Point
}

// New wires the filter, the position sources and the output of the daemon. Nothing runs
// until Run is called, the scheduler included.
func New(conf *config.Config, log *logger.Logger) (*Service, error) {
	if log == nil {
		return nil, fmt.Errorf("logger is required")
	}
	pres, err := presenter.New(conf)
	if err != nil {
		return nil, fmt.Errorf("failed to create presenter: %w", err)
	}

	filter := location.NewFilter(log)
	service := &Service{
		config:    conf,
		logger:    log,
		filter:    filter,
		geobus:    geobus.New(log, filter),
		presenter: pres,
		now:       time.Now,
		signals:   osNotifier{},
		dialBus:   dialSystemBus,
		output:    os.Stdout,
	}

	providers, err := service.selectGeobusProviders()
	if err != nil {
		return nil, fmt.Errorf("failed to create geobus orchestrator: %w", err)
	}
	service.orchestrator = service.geobus.NewOrchestrator(providers)

	if !conf.GeoCoder.Disable {
		service.geocoder, err = service.selectGeocodeProvider()
		if err != nil {
			return nil, fmt.Errorf("failed to create geocode provider: %w", err)
		}
	}

	return service, nil
}

// Run starts the detect and refresh jobs and blocks until ctx is cancelled. On return the
// filter is stopped; its best-known position stays readable.
func (s *Service) Run(ctx context.Context) error {
	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return fmt.Errorf("failed to create scheduler: %w", err)
	}
	s.scheduler = scheduler
	s.filter.Start()

	sub, unsub := s.geobus.Subscribe(subscriberBufferSize)
	go s.processLocationUpdates(ctx, sub)

	if err = s.createScheduledJob(ctx, s.config.Intervals.Detect, s.detect, "detect_job"); err != nil {
		unsub()
		return errors.Join(err, s.scheduler.Shutdown())
	}
	if err = s.createScheduledJob(ctx, s.config.Intervals.Refresh, s.printPosition, "refresh_job"); err != nil {
		unsub()
		return errors.Join(err, s.scheduler.Shutdown())
	}
	s.scheduler.Start()

	go s.watchRefreshSignals(ctx)
	if !s.config.DisableSleepMonitor {
		go s.monitorSleepResume(ctx)
	}

	<-ctx.Done()
	unsub()
	s.filter.Stop()
	return s.scheduler.Shutdown()
}

func (s *Service) createScheduledJob(ctx context.Context, interval time.Duration, task func(context.Context),
	jobName string,
) error {
	_, err := s.scheduler.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(task),
		gocron.WithContext(ctx),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithStartAt(gocron.WithStartImmediately()),
		gocron.WithName(jobName),
	)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", jobName, err)
	}
	return nil
}

// detect runs one detection cycle over all position sources.
func (s *Service) detect(ctx context.Context) {
	s.orchestrator.Poll(ctx)
}

// printPosition renders the best-known position and writes it as one JSON line.
func (s *Service) printPosition(context.Context) {
	sample, ok := s.geobus.Best()

	var addr geocode.Address
	if ok {
		s.addressLock.RLock()
		if s.addressFor == sample.Point() {
			addr = s.address
		}
		s.addressLock.RUnlock()
	}

	output, err := s.presenter.Render(s.presenter.BuildContext(sample, ok, addr, s.now()))
	if err != nil {
		s.logger.Error("failed to render position output", logger.Err(err))
		return
	}

	s.outputLock.Lock()
	defer s.outputLock.Unlock()
	if err = json.NewEncoder(s.output).Encode(output); err != nil {
		s.logger.Error("failed to encode position output", logger.Err(err))
	}
}

// updateAddress resolves the pickup address of an accepted sample. Lookup failures only
// cost the address; the position itself is still shown.
func (s *Service) updateAddress(ctx context.Context, sample location.Sample) {
	if s.geocoder == nil {
		return
	}

	addr, err := s.geocoder.Reverse(ctx, sample.Lat, sample.Lon)
	if err != nil {
		s.logger.Error("failed to resolve pickup address", logger.Err(err), slog.String("geocoder", s.geocoder.Name()))
		addr = geocode.Address{}
	}

	s.addressLock.Lock()
	s.address = addr
	s.addressFor = sample.Point()
	s.addressLock.Unlock()
	s.logger.Debug("pickup address resolved", slog.String("address", addr.DisplayName),
		slog.Bool("cache_hit", addr.CacheHit), slog.Any("sample", sample))
}

// processLocationUpdates refreshes the address and the output for every accepted sample.
func (s *Service) processLocationUpdates(ctx context.Context, sub <-chan location.Sample) {
	for {
		select {
		case <-ctx.Done():
			return
		case sample, ok := <-sub:
			if !ok {
				return
			}
			s.updateAddress(ctx, sample)
			s.printPosition(ctx)
		}
	}
}
