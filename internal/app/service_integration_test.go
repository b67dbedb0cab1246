package service_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/betslip/internal/adapters/http/api"
	"github.com/okian/betslip/internal/adapters/marketcache"
	"github.com/okian/betslip/internal/adapters/provider"
	service "github.com/okian/betslip/internal/app"
	"github.com/okian/betslip/internal/testprovider"
	"github.com/okian/betslip/pkg/logger"
)

type memMirror struct {
	mu      sync.Mutex
	entries map[marketcache.Key]marketcache.Entry
}

func newMemMirror() *memMirror {
	return &memMirror{entries: make(map[marketcache.Key]marketcache.Entry)}
}

func (m *memMirror) Save(_ context.Context, key marketcache.Key, e marketcache.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = e
	return nil
}

func (m *memMirror) Load(_ context.Context, key marketcache.Key) (marketcache.Entry, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[key]
	return e, ok, nil
}

func (m *memMirror) len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

func TestServiceIntegration(t *testing.T) {
	Convey("Given a service backed by the mock provider over HTTP", t, func() {
		ctx := context.Background()
		cfg := &testprovider.Config{Seed: 11, Recommendations: 6, Parlays: 2, APIKey: "k"}
		mock := testprovider.NewServer(cfg)
		ts := httptest.NewServer(mock.Handler())
		defer ts.Close()

		mirror := newMemMirror()
		svc := service.New(
			service.WithProvider(ts.URL, "k"),
			service.WithDateBucket(testDate),
			service.WithSports("nba"),
			service.WithMirror(mirror),
			service.WithLogger(logger.Nop()),
		)
		So(svc.Start(ctx), ShouldBeNil)
		defer svc.Stop()
		key := svc.Key("nba", false)

		Convey("When many readers ask for the board at once", func() {
			const readers = 10
			views := make([]service.BoardView, readers)
			var wg sync.WaitGroup
			for i := range readers {
				wg.Add(1)
				go func() {
					defer wg.Done()
					views[i] = svc.Board(ctx, key, service.Query{})
				}()
			}
			wg.Wait()

			Convey("Then the warm-up fetch serves all of them", func() {
				So(mock.Requests(), ShouldEqual, int64(1))
				for _, v := range views {
					So(v.Err, ShouldBeNil)
					So(len(v.Recommendations), ShouldEqual, 6)
					So(len(v.Parlays), ShouldEqual, 2)
				}
				So(mirror.len(), ShouldEqual, 1)
			})
		})

		Convey("When a parlay goes on the slip", func() {
			view := svc.Board(ctx, key, service.Query{})
			added, err := svc.AddToSlip(ctx, key, view.Parlays[0].ID)

			Convey("Then it can be sized like a single pick", func() {
				So(err, ShouldBeNil)
				So(added, ShouldBeTrue)
				So(svc.AutoSize(ctx), ShouldBeNil)
				So(svc.GetStats().Slip.Selections, ShouldEqual, 1)
			})
		})

		Convey("When the ops API is mounted on the service", func() {
			h := api.NewServer(svc, api.WithLogger(logger.Nop())).Handler()

			stats := httptest.NewRecorder()
			h.ServeHTTP(stats, httptest.NewRequest(http.MethodGet, "/stats", nil))

			refresh := httptest.NewRecorder()
			h.ServeHTTP(refresh, httptest.NewRequest(http.MethodPost, "/refresh/nba?date="+testDate, nil))

			Convey("Then stats list the key and refresh hits the provider", func() {
				So(stats.Code, ShouldEqual, http.StatusOK)
				body, _ := io.ReadAll(stats.Body)
				So(string(body), ShouldContainSubstring, `"nba/`+testDate+`"`)

				So(refresh.Code, ShouldEqual, http.StatusOK)
				So(mock.Requests(), ShouldEqual, int64(2))
			})

			Convey("Then a refresh without a date targets the pinned date bucket", func() {
				undated := httptest.NewRecorder()
				h.ServeHTTP(undated, httptest.NewRequest(http.MethodPost, "/refresh/nba", nil))
				So(undated.Code, ShouldEqual, http.StatusOK)

				var body map[string]any
				So(json.Unmarshal(undated.Body.Bytes(), &body), ShouldBeNil)
				So(body["key"], ShouldEqual, "nba/"+testDate)
			})
		})

		Convey("When a restarted engine cannot reach the provider", func() {
			down := testprovider.NewServer(&testprovider.Config{Seed: 11, Recommendations: 6, Parlays: 2, FailEvery: 1})
			downTS := httptest.NewServer(down.Handler())
			defer downTS.Close()

			restarted := service.New(
				service.WithProvider(downTS.URL, ""),
				service.WithDateBucket(testDate),
				service.WithSports("nba"),
				service.WithMirror(mirror),
				service.WithLogger(logger.Nop()),
			)
			So(restarted.Start(ctx), ShouldBeNil)
			defer restarted.Stop()

			Convey("Then the mirrored board is served", func() {
				view := restarted.Board(ctx, key, service.Query{})
				So(view.Err, ShouldBeNil)
				So(len(view.Recommendations), ShouldEqual, 6)
				So(down.Requests(), ShouldEqual, int64(1))
			})

			Convey("Then a manual refresh reports the outage with stale data", func() {
				res := restarted.Refresh(ctx, key)
				So(res.Stale, ShouldBeTrue)
				So(res.Data.Len(), ShouldEqual, 8)

				var httpErr *provider.HTTPError
				So(errors.As(res.Err, &httpErr), ShouldBeTrue)
				So(httpErr.Status, ShouldEqual, http.StatusServiceUnavailable)
				So(provider.IsRetryable(res.Err), ShouldBeTrue)
			})
		})
	})
}
