// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package location

import (
	"bytes"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/wneessen/taxiwidget/internal/logger"
	"github.com/wneessen/taxiwidget/internal/testhelper"
	"github.com/wneessen/taxiwidget/internal/vartype"
)

var sampleCmp = cmp.AllowUnexported(Sample{}, vartype.VarFloat64{}, vartype.VarString{})

// sample builds a sample at latitude 0, where 0.001 degrees of longitude are ~111m.
func sample(lon float64, millis int64, acc float64, provider string) Sample {
	return NewSample(0, lon, time.UnixMilli(millis)).WithAccuracy(acc).WithProvider(provider)
}

func testFilter() *Filter {
	return NewFilter(logger.NewLogger(slog.LevelDebug, io.Discard))
}

func TestEvaluate(t *testing.T) {
	best := sample(0, 0, 20, ProviderNetwork)
	tests := []struct {
		name   string
		sample Sample
		want   Verdict
	}{
		{"moved and newer with equal accuracy", sample(0.001, 500, 20, ProviderNetwork), VerdictNewer},
		{"within noise radius", sample(0.0001, 500, 20, ProviderNetwork), VerdictNoise},
		{"noise beats recency and accuracy", sample(0.0001, 600000, 1, ProviderGPS), VerdictNoise},
		{"significantly newer and far less accurate", sample(0.0018, 70000, 5000, ProviderGPS), VerdictSignificantlyNewer},
		{"significantly older and more accurate", sample(0.0018, -70000, 1, ProviderNetwork), VerdictSignificantlyOlder},
		{"exactly one minute newer is not significant", sample(0.0018, 60000, 20, ProviderNetwork), VerdictNewer},
		{"exactly one minute older is not significant", sample(0.0018, -60000, 20, ProviderNetwork), VerdictWorse},
		{"older but more accurate from other provider", sample(0.0018, -30000, 5, ProviderGPS), VerdictMoreAccurate},
		{"newer and more accurate", sample(0.0018, 30000, 5, ProviderGPS), VerdictMoreAccurate},
		{"same provider within drift", sample(0.0018, 30000, 220, ProviderNetwork), VerdictSameProviderDrift},
		{"same provider beyond drift", sample(0.0018, 30000, 221, ProviderNetwork), VerdictWorse},
		{"other provider slightly less accurate", sample(0.0018, 30000, 100, ProviderGPS), VerdictWorse},
		{"other provider significantly less accurate", sample(0.0018, 30000, 300, ProviderGPS), VerdictWorse},
		{"same timestamp and accuracy", sample(0.0018, 0, 20, ProviderNetwork), VerdictWorse},
		{"older and less accurate same provider", sample(0.0018, -1000, 30, ProviderNetwork), VerdictWorse},
		{"fractional degradation truncates to equal", sample(0.0018, 1000, 20.9, ProviderGPS), VerdictNewer},
		{"fractional improvement truncates to equal", sample(0.0018, -1000, 19.5, ProviderGPS), VerdictWorse},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := Evaluate(tc.sample, best, true)
			if got != tc.want {
				t.Errorf("expected verdict %s, got %s", tc.want, got)
			}
		})
	}

	t.Run("first sample is always accepted", func(t *testing.T) {
		if got := Evaluate(sample(0, 0, 1e6, ""), Sample{}, false); got != VerdictFirst {
			t.Errorf("expected verdict %s, got %s", VerdictFirst, got)
		}
	})
}

func TestEvaluate_UnknownValues(t *testing.T) {
	at := func(lon float64, millis int64) Sample { return NewSample(0, lon, time.UnixMilli(millis)) }
	tests := []struct {
		name    string
		sample  Sample
		current Sample
		want    Verdict
	}{
		{
			"unknown accuracy against known is significantly worse",
			at(0.0018, 1000).WithProvider(ProviderNetwork),
			at(0, 0).WithAccuracy(20).WithProvider(ProviderNetwork),
			VerdictWorse,
		},
		{
			"known accuracy against unknown is more accurate",
			at(0.0018, -1000).WithAccuracy(5000),
			at(0, 0),
			VerdictMoreAccurate,
		},
		{
			"two unknown accuracies are equal",
			at(0.0018, 1000),
			at(0, 0),
			VerdictNewer,
		},
		{
			"two unknown providers are the same provider",
			at(0.0018, 1000).WithAccuracy(100),
			at(0, 0).WithAccuracy(20),
			VerdictSameProviderDrift,
		},
		{
			"unknown provider never matches a known one",
			at(0.0018, 1000).WithAccuracy(100),
			at(0, 0).WithAccuracy(20).WithProvider(ProviderNetwork),
			VerdictWorse,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := Evaluate(tc.sample, tc.current, true); got != tc.want {
				t.Errorf("expected verdict %s, got %s", tc.want, got)
			}
		})
	}
}

func TestVerdict(t *testing.T) {
	accepted := map[Verdict]bool{
		VerdictFirst:              true,
		VerdictNoise:              false,
		VerdictSignificantlyNewer: true,
		VerdictSignificantlyOlder: false,
		VerdictMoreAccurate:       true,
		VerdictNewer:              true,
		VerdictSameProviderDrift:  true,
		VerdictWorse:              false,
	}
	for verdict, want := range accepted {
		t.Run(verdict.String(), func(t *testing.T) {
			if verdict.Accepted() != want {
				t.Errorf("expected accepted to be %t", want)
			}
		})
	}
	if Verdict(99).String() != "unknown" {
		t.Errorf("expected unknown verdict name, got %s", Verdict(99))
	}
}

func TestFilter_Submit(t *testing.T) {
	t.Run("fresh filter accepts the first sample", func(t *testing.T) {
		f := testFilter()
		if _, ok := f.Current(); ok {
			t.Fatal("expected no best-known sample")
		}
		first := sample(0, 0, 20, ProviderNetwork)
		if !f.Submit(first) {
			t.Fatal("expected first sample to be accepted")
		}
		got, ok := f.Current()
		if !ok {
			t.Fatal("expected best-known sample")
		}
		if diff := cmp.Diff(first, got, sampleCmp); diff != "" {
			t.Errorf("unexpected best-known sample (-want +got):\n%s", diff)
		}
	})
	t.Run("rejected samples leave the best-known sample unchanged", func(t *testing.T) {
		f := testFilter()
		first := sample(0, 0, 20, ProviderNetwork)
		f.Submit(first)
		rejects := []Sample{
			sample(0.0001, 500, 20, ProviderNetwork),
			sample(0.0018, -70000, 1, ProviderNetwork),
			sample(0.0018, 30000, 300, ProviderGPS),
		}
		for _, s := range rejects {
			if f.Submit(s) {
				t.Errorf("expected sample %v to be rejected", s.LogValue())
			}
		}
		got, _ := f.Current()
		if diff := cmp.Diff(first, got, sampleCmp); diff != "" {
			t.Errorf("unexpected best-known sample (-want +got):\n%s", diff)
		}
	})
	t.Run("accepted samples replace the best-known sample", func(t *testing.T) {
		f := testFilter()
		f.Submit(sample(0, 0, 20, ProviderNetwork))
		next := sample(0.001, 500, 20, ProviderNetwork)
		if !f.Submit(next) {
			t.Fatal("expected moved sample to be accepted")
		}
		later := sample(0.003, 70500, 800, ProviderGPS)
		if !f.Submit(later) {
			t.Fatal("expected significantly newer sample to be accepted")
		}
		got, _ := f.Current()
		if diff := cmp.Diff(later, got, sampleCmp); diff != "" {
			t.Errorf("unexpected best-known sample (-want +got):\n%s", diff)
		}
	})
	t.Run("verdict is logged at debug level", func(t *testing.T) {
		log, buf := testhelper.BufferLogger()
		f := NewFilter(log)
		f.Submit(sample(0, 0, 20, ProviderNetwork))
		if !bytes.Contains(buf.Bytes(), []byte("verdict=first")) {
			t.Errorf("expected verdict to be logged, got %q", buf.String())
		}
	})
	t.Run("submit to a stopped filter is logged as warning", func(t *testing.T) {
		log, buf := testhelper.BufferLogger()
		f := NewFilter(log)
		f.Stop()
		f.Submit(sample(0, 0, 20, ProviderNetwork))
		if !bytes.Contains(buf.Bytes(), []byte("level=WARN")) {
			t.Errorf("expected warning to be logged, got %q", buf.String())
		}
	})
}

func TestFilter_Lifecycle(t *testing.T) {
	t.Run("stopped filter keeps best-known and ignores samples", func(t *testing.T) {
		f := testFilter()
		first := sample(0, 0, 20, ProviderNetwork)
		f.Submit(first)
		f.Stop()
		if f.Running() {
			t.Fatal("expected filter to be stopped")
		}
		if f.Submit(sample(0.01, 120000, 5, ProviderNetwork)) {
			t.Error("expected stopped filter to ignore samples")
		}
		got, ok := f.Current()
		if !ok {
			t.Fatal("expected best-known sample to be retained")
		}
		if diff := cmp.Diff(first, got, sampleCmp); diff != "" {
			t.Errorf("unexpected best-known sample (-want +got):\n%s", diff)
		}

		f.Start()
		if !f.Running() {
			t.Fatal("expected filter to be running")
		}
		if !f.Submit(sample(0.01, 120000, 5, ProviderNetwork)) {
			t.Error("expected restarted filter to accept samples")
		}
	})
}

func TestFilter_Concurrency(t *testing.T) {
	f := testFilter()
	var wg sync.WaitGroup
	for i := range 4 {
		wg.Add(1)
		go func(offset int) {
			defer wg.Done()
			for n := range 200 {
				step := float64(offset*1000+n) * 0.001
				f.Submit(NewSample(step, step, time.UnixMilli(int64(n)*120000)).WithAccuracy(10))
			}
		}(i)
	}
	for range 2 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 400 {
				if s, ok := f.Current(); ok && s.Lat != s.Lon {
					t.Errorf("observed torn sample: lat=%f lon=%f", s.Lat, s.Lon)
					return
				}
			}
		}()
	}
	wg.Wait()
}
