package service_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/betslip/internal/adapters/http/api"
	"github.com/okian/betslip/internal/adapters/marketcache"
	service "github.com/okian/betslip/internal/app"
	"github.com/okian/betslip/internal/domain/ledger"
	"github.com/okian/betslip/internal/domain/model"
	"github.com/okian/betslip/internal/domain/pipeline"
	"github.com/okian/betslip/pkg/logger"
)

const testDate = "2026-10-15"

var errProviderDown = errors.New("provider down")

// fixture serves a fixed board per sport and fails for sports listed in down.
type fixture struct {
	calls atomic.Int32
	mu    sync.Mutex
	down  map[string]bool
}

func (f *fixture) fetch(_ context.Context, key marketcache.Key) (model.Board, error) {
	f.calls.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.down[key.Sport] {
		return model.Board{}, errProviderDown
	}
	return model.Board{
		Recommendations: []model.MarketQuote{
			{ID: key.Sport + "-a", Sport: key.Sport, Odds: 100, Confidence: 90, ExpectedValue: 10, KellyPct: 20, Risk: model.RiskLow},
			{ID: key.Sport + "-b", Sport: key.Sport, Odds: -150, Confidence: 70, ExpectedValue: 5, KellyPct: 8, Risk: model.RiskMedium},
			{ID: key.Sport + "-c", Sport: key.Sport, Odds: 120, Confidence: 85, ExpectedValue: 12, KellyPct: 15, Risk: model.RiskLow},
		},
	}, nil
}

func (f *fixture) setDown(sport string, down bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.down[sport] = down
}

func newFixture() *fixture {
	return &fixture{down: make(map[string]bool)}
}

func newService(f *fixture, opts ...service.Option) *service.Service {
	base := []service.Option{
		service.WithFetchFunc(f.fetch),
		service.WithDateBucket(testDate),
		service.WithLogger(logger.Nop()),
	}
	return service.New(append(base, opts...)...)
}

func ids(quotes []model.MarketQuote) []string {
	out := make([]string, len(quotes))
	for i, q := range quotes {
		out[i] = q.ID
	}
	return out
}

func TestService_New(t *testing.T) {
	Convey("Given a new service with default options", t, func() {
		svc := service.New(service.WithLogger(logger.Nop()))

		Convey("Then it should not serve before Start", func() {
			So(svc, ShouldNotBeNil)
			So(svc.Slip(), ShouldBeNil)

			view := svc.Board(context.Background(), svc.Key("nba", false), service.Query{})
			So(errors.Is(view.Err, service.ErrNotStarted), ShouldBeTrue)

			So(errors.Is(svc.Watch(svc.Key("nba", false)), service.ErrNotStarted), ShouldBeTrue)
			So(svc.GetStats().Keys, ShouldBeEmpty)
		})

		Convey("Then keys use today's date in UTC", func() {
			now := time.Date(2026, 10, 15, 22, 0, 0, 0, time.FixedZone("X", -4*60*60))
			svc := service.New(service.WithClock(func() time.Time { return now }))
			So(svc.Key(" NBA ", true), ShouldResemble, marketcache.Key{Sport: "nba", DateBucket: "2026-10-16", Live: true})
		})
	})
}

func TestService_Start(t *testing.T) {
	Convey("Given a service configured for two sports", t, func() {
		f := newFixture()
		svc := newService(f, service.WithSports("nba", "nfl"))
		defer svc.Stop()

		Convey("When starting the service", func() {
			err := svc.Start(context.Background())

			Convey("Then both sports are warmed with one fetch each", func() {
				So(err, ShouldBeNil)
				So(f.calls.Load(), ShouldEqual, int32(2))

				stats := svc.GetStats()
				So(len(stats.Keys), ShouldEqual, 2)
				So(stats.Keys[0].Key, ShouldEqual, "nba/"+testDate)
				So(stats.Keys[0].Status, ShouldEqual, marketcache.StatusReady)
				So(stats.Keys[1].Key, ShouldEqual, "nfl/"+testDate)
			})

			Convey("Then the first sport is auto-refreshed", func() {
				So(svc.GetStats().Watching, ShouldEqual, "nba/"+testDate)
			})

			Convey("Then starting again is a no-op", func() {
				So(svc.Start(context.Background()), ShouldBeNil)
				So(f.calls.Load(), ShouldEqual, int32(2))
			})
		})

		Convey("When the provider is down for one sport", func() {
			f.setDown("nfl", true)
			err := svc.Start(context.Background())

			Convey("Then Start still succeeds and the key reports the error", func() {
				So(err, ShouldBeNil)
				stats := svc.GetStats()
				So(stats.Keys[1].Status, ShouldEqual, marketcache.StatusError)
				So(stats.Keys[1].LastError, ShouldContainSubstring, "provider down")
			})
		})

		Convey("When the start context is already cancelled", func() {
			ctx, cancel := context.WithCancel(context.Background())
			cancel()
			err := svc.Start(ctx)

			Convey("Then warm-up fails with the cancellation", func() {
				So(errors.Is(err, service.ErrWarmUp), ShouldBeTrue)
				So(errors.Is(err, context.Canceled), ShouldBeTrue)
			})
		})
	})
}

func TestService_Board(t *testing.T) {
	Convey("Given a started service", t, func() {
		f := newFixture()
		svc := newService(f)
		So(svc.Start(context.Background()), ShouldBeNil)
		defer svc.Stop()
		key := svc.Key("nba", false)

		Convey("When reading the board with filters", func() {
			minConf := 80.0
			view := svc.Board(context.Background(), key, service.Query{
				Filters: pipeline.Filters{MinConfidence: &minConf},
				Sort:    pipeline.SortConfidence,
			})

			Convey("Then it is served from cache and filtered", func() {
				So(view.Err, ShouldBeNil)
				So(view.FromCache, ShouldBeTrue)
				So(view.Generation, ShouldEqual, uint64(1))
				So(ids(view.Recommendations), ShouldResemble, []string{"nba-a", "nba-c"})
				So(f.calls.Load(), ShouldEqual, int32(1))
			})
		})

		Convey("When refreshing manually", func() {
			view := svc.RefreshBoard(context.Background(), key, service.Query{Sort: pipeline.SortExpectedValue})

			Convey("Then a new generation is fetched", func() {
				So(view.Err, ShouldBeNil)
				So(view.FromCache, ShouldBeFalse)
				So(view.Generation, ShouldEqual, uint64(2))
				So(ids(view.Recommendations), ShouldResemble, []string{"nba-c", "nba-a", "nba-b"})
				So(f.calls.Load(), ShouldEqual, int32(2))
			})
		})

		Convey("When a refresh fails", func() {
			f.setDown("nba", true)
			res := svc.Refresh(context.Background(), key)

			Convey("Then the previous board comes back as stale", func() {
				So(errors.Is(res.Err, errProviderDown), ShouldBeTrue)
				So(res.Stale, ShouldBeTrue)
				So(res.Data.Len(), ShouldEqual, 3)
				So(res.Generation, ShouldEqual, uint64(1))
			})
		})

		Convey("When a key is invalidated", func() {
			svc.Invalidate(key)
			view := svc.Board(context.Background(), key, service.Query{})

			Convey("Then the next read fetches again", func() {
				So(view.Err, ShouldBeNil)
				So(view.FromCache, ShouldBeFalse)
				So(f.calls.Load(), ShouldEqual, int32(2))
			})
		})

		Convey("When the service is stopped", func() {
			svc.Stop()
			view := svc.Board(context.Background(), key, service.Query{})

			Convey("Then reads fail as closed", func() {
				So(errors.Is(view.Err, marketcache.ErrClosed), ShouldBeTrue)
			})
		})
	})
}

func TestService_Slip(t *testing.T) {
	Convey("Given a started service with a 1000 bankroll", t, func() {
		f := newFixture()
		svc := newService(f, service.WithBankroll(1000), service.WithStakeSizing(0.25, 10, 0.05))
		So(svc.Start(context.Background()), ShouldBeNil)
		defer svc.Stop()
		ctx := context.Background()
		key := svc.Key("nba", false)

		Convey("When adding a pick from the board", func() {
			added, err := svc.AddToSlip(ctx, key, "nba-a")

			Convey("Then it is on the slip once", func() {
				So(err, ShouldBeNil)
				So(added, ShouldBeTrue)

				again, err := svc.AddToSlip(ctx, key, "nba-a")
				So(err, ShouldBeNil)
				So(again, ShouldBeFalse)
				So(svc.Slip().Len(), ShouldEqual, 1)
			})

			Convey("Then auto sizing caps the stake at 5% of bankroll", func() {
				So(svc.AutoSize(ctx), ShouldBeNil)

				totals, err := svc.SlipTotals()
				So(err, ShouldBeNil)
				So(totals.TotalRisk.String(), ShouldEqual, "50")
				So(totals.TotalPotentialPayout.String(), ShouldEqual, "100")
				So(totals.BankrollUtilization, ShouldEqual, 0.05)
				So(totals.OverExposed, ShouldBeFalse)

				stats := svc.GetStats()
				So(stats.Selections, ShouldResemble, []api.SelectionView{{ID: "nba-a", Stake: 50}})
			})

			Convey("Then a large manual stake marks the slip over-exposed", func() {
				So(svc.SetStake(ctx, "nba-a", 250), ShouldBeNil)
				totals, _ := svc.SlipTotals()
				So(totals.OverExposed, ShouldBeTrue)
			})

			Convey("Then removing and clearing empty the slip", func() {
				removed, err := svc.RemoveFromSlip(ctx, "nba-a")
				So(err, ShouldBeNil)
				So(removed, ShouldBeTrue)

				_, _ = svc.AddToSlip(ctx, key, "nba-b")
				So(svc.ClearSlip(ctx), ShouldBeNil)
				So(svc.Slip().Len(), ShouldEqual, 0)
				So(svc.Slip().Bankroll(), ShouldEqual, 1000.0)
			})
		})

		Convey("When adding an id the board does not carry", func() {
			_, err := svc.AddToSlip(ctx, key, "missing")

			Convey("Then it reports not found", func() {
				So(errors.Is(err, ledger.ErrNotFound), ShouldBeTrue)
			})
		})

		Convey("When setting a stake on an unknown id", func() {
			err := svc.SetStake(ctx, "missing", 10)
			So(errors.Is(err, ledger.ErrNotFound), ShouldBeTrue)
		})

		Convey("When changing the bankroll", func() {
			So(svc.SetBankroll(ctx, 2000), ShouldBeNil)
			So(svc.GetStats().Bankroll, ShouldEqual, 2000.0)
			So(svc.SetBankroll(ctx, -1), ShouldNotBeNil)
		})

		Convey("When the service restarts", func() {
			_, _ = svc.AddToSlip(ctx, key, "nba-a")
			id := svc.Slip().ID()
			svc.Stop()
			So(svc.Start(ctx), ShouldBeNil)

			Convey("Then the slip survives", func() {
				So(svc.Slip().ID(), ShouldEqual, id)
				So(svc.Slip().Len(), ShouldEqual, 1)
			})
		})
	})
}
