// Pinteya E-commerce - Enterprise Admin Security Pipeline
// Copyright 2026 The Pinteya E-commerce Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/SantiagoXOR/pinteya-ecommerce-sub017

package middleware

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

func TestPerformanceMonitor_Stats(t *testing.T) {
	pm := NewPerformanceMonitor(100, time.Second)
	for i := int64(1); i <= 10; i++ {
		pm.Record(&RequestSample{Route: "/products", Method: http.MethodGet, DurationMS: i, StatusCode: http.StatusOK})
	}
	pm.Record(&RequestSample{Route: "/products", Method: http.MethodPost, DurationMS: 7, StatusCode: http.StatusForbidden})

	stats := pm.Stats()
	if len(stats) != 2 {
		t.Fatalf("endpoints = %d, want 2", len(stats))
	}
	get := stats[0]
	if get.Endpoint != "GET /products" || get.RequestCount != 10 {
		t.Fatalf("unexpected first endpoint %+v", get)
	}
	if get.MinDuration != 1 || get.MaxDuration != 10 || get.AvgDuration != 5.5 {
		t.Errorf("min/max/avg = %d/%d/%v", get.MinDuration, get.MaxDuration, get.AvgDuration)
	}
	if get.P50Duration != 5 || get.P99Duration != 9 {
		t.Errorf("p50/p99 = %d/%d", get.P50Duration, get.P99Duration)
	}
	if stats[1].Rejections != 1 {
		t.Errorf("rejections = %d, want 1", stats[1].Rejections)
	}
}

func TestPerformanceMonitor_Bounded(t *testing.T) {
	pm := NewPerformanceMonitor(5, 0)
	for i := int64(0); i < 20; i++ {
		pm.Record(&RequestSample{Route: "/x", Method: http.MethodGet, DurationMS: i})
	}
	recent := pm.Recent(100)
	if len(recent) != 5 {
		t.Fatalf("retained = %d, want 5", len(recent))
	}
	if recent[0].DurationMS != 15 || recent[4].DurationMS != 19 {
		t.Errorf("retained window = %d..%d, want 15..19", recent[0].DurationMS, recent[4].DurationMS)
	}
}

func TestPerformanceMonitor_Middleware(t *testing.T) {
	pm := NewPerformanceMonitor(10, time.Millisecond)
	h := pm.Middleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(2 * time.Millisecond)
		w.WriteHeader(http.StatusTooManyRequests)
	}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/limited", nil))

	recent := pm.Recent(1)
	if len(recent) != 1 {
		t.Fatal("expected one sample")
	}
	if recent[0].StatusCode != http.StatusTooManyRequests || recent[0].Route != unmatchedRoute {
		t.Errorf("unexpected sample %+v", recent[0])
	}
}

func TestPerformanceMonitor_Concurrent(t *testing.T) {
	pm := NewPerformanceMonitor(50, time.Second)
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			pm.Record(&RequestSample{Route: "/c", Method: http.MethodGet, DurationMS: int64(i)})
			_ = pm.Stats()
		}(i)
	}
	wg.Wait()
	if n := len(pm.Recent(1000)); n != 50 {
		t.Errorf("retained = %d, want 50", n)
	}
}

func TestPercentile_Empty(t *testing.T) {
	if percentile(nil, 0.5) != 0 {
		t.Error("empty percentile should be 0")
	}
}
