package pipeline_test

import (
	"errors"
	"testing"
	"time"

	"github.com/okian/betslip/internal/domain/model"
	"github.com/okian/betslip/internal/domain/odds"
	"github.com/okian/betslip/internal/domain/pipeline"
	. "github.com/smartystreets/goconvey/convey"
)

func quote(id string, conf float64, price odds.American) model.MarketQuote {
	return model.MarketQuote{ID: id, Confidence: conf, Odds: price, Risk: model.RiskMedium}
}

func ids(items []model.MarketQuote) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.ID
	}
	return out
}

func ptr(v float64) *float64 { return &v }

func TestQuotes_Filters(t *testing.T) {
	Convey("Given quotes with confidences 70, 80 and 95", t, func() {
		items := []model.MarketQuote{
			quote("a", 70, -110),
			quote("b", 80, 120),
			quote("c", 95, -150),
		}

		Convey("When filtering with minConfidence 80 and no sort", func() {
			out := pipeline.Quotes(items, pipeline.Filters{MinConfidence: ptr(80)}, pipeline.SortNone)

			Convey("Then 80 and 95 remain in original order", func() {
				So(ids(out), ShouldResemble, []string{"b", "c"})
			})
		})

		Convey("When filtering with minConfidence 80 sorted by confidence", func() {
			out := pipeline.Quotes(items, pipeline.Filters{MinConfidence: ptr(80)}, pipeline.SortConfidence)

			Convey("Then the order is 95 then 80", func() {
				So(ids(out), ShouldResemble, []string{"c", "b"})
			})
		})

		Convey("When applying the pipeline", func() {
			before := append([]model.MarketQuote(nil), items...)
			_ = pipeline.Quotes(items, pipeline.Filters{}, pipeline.SortConfidence)

			Convey("Then the input is not mutated", func() {
				So(items, ShouldResemble, before)
			})
		})

		Convey("When no filters are set", func() {
			out := pipeline.Quotes(items, pipeline.Filters{}, pipeline.SortNone)
			So(ids(out), ShouldResemble, []string{"a", "b", "c"})
		})
	})

	Convey("Given quotes with expected values", t, func() {
		items := []model.MarketQuote{
			{ID: "neg", ExpectedValue: -2, Odds: 100, Risk: model.RiskLow},
			{ID: "zero", ExpectedValue: 0, Odds: 100, Risk: model.RiskLow},
			{ID: "pos", ExpectedValue: 3, Odds: 100, Risk: model.RiskHigh},
		}

		Convey("When no EV minimum is set negatives pass", func() {
			So(len(pipeline.Quotes(items, pipeline.Filters{}, pipeline.SortNone)), ShouldEqual, 3)
		})

		Convey("When minExpectedValue is 0", func() {
			out := pipeline.Quotes(items, pipeline.Filters{MinExpectedValue: ptr(0)}, pipeline.SortNone)
			So(ids(out), ShouldResemble, []string{"zero", "pos"})
		})

		Convey("When filtering by risk", func() {
			out := pipeline.Quotes(items, pipeline.Filters{RiskIn: []model.Risk{model.RiskHigh}}, pipeline.SortNone)
			So(ids(out), ShouldResemble, []string{"pos"})
		})

		Convey("When combining filters", func() {
			out := pipeline.Quotes(items, pipeline.Filters{
				MinExpectedValue: ptr(-5),
				RiskIn:           []model.Risk{model.RiskLow},
			}, pipeline.SortExpectedValue)
			So(ids(out), ShouldResemble, []string{"zero", "neg"})
		})
	})
}

func TestBuckets(t *testing.T) {
	Convey("Given the odds buckets", t, func() {
		Convey("Then favorites is (-200, -100]", func() {
			So(pipeline.BucketFavorites.Contains(-200), ShouldBeFalse)
			So(pipeline.BucketFavorites.Contains(-199), ShouldBeTrue)
			So(pipeline.BucketFavorites.Contains(-100), ShouldBeTrue)
			So(pipeline.BucketFavorites.Contains(100), ShouldBeFalse)
		})

		Convey("Then underdogs is [+150, inf)", func() {
			So(pipeline.BucketUnderdogs.Contains(149), ShouldBeFalse)
			So(pipeline.BucketUnderdogs.Contains(150), ShouldBeTrue)
			So(pipeline.BucketUnderdogs.Contains(900), ShouldBeTrue)
		})

		Convey("Then pickems is [-150, +150]", func() {
			So(pipeline.BucketPickems.Contains(-151), ShouldBeFalse)
			So(pipeline.BucketPickems.Contains(-150), ShouldBeTrue)
			So(pipeline.BucketPickems.Contains(150), ShouldBeTrue)
			So(pipeline.BucketPickems.Contains(151), ShouldBeFalse)
		})

		Convey("Then all accepts anything", func() {
			So(pipeline.BucketAll.Contains(-5000), ShouldBeTrue)
		})

		Convey("When filtering quotes by bucket", func() {
			items := []model.MarketQuote{
				quote("fav", 50, -180),
				quote("dog", 50, 200),
				quote("even", 50, 110),
			}
			out := pipeline.Quotes(items, pipeline.Filters{OddsBucket: pipeline.BucketUnderdogs}, pipeline.SortNone)
			So(ids(out), ShouldResemble, []string{"dog"})

			out = pipeline.Quotes(items, pipeline.Filters{OddsBucket: pipeline.BucketPickems}, pipeline.SortNone)
			So(ids(out), ShouldResemble, []string{"even"})
		})
	})
}

func TestSorting(t *testing.T) {
	Convey("Given quotes with ties", t, func() {
		items := []model.MarketQuote{
			{ID: "a", Confidence: 80, KellyPct: 1, Odds: 100, Risk: model.RiskLow},
			{ID: "b", Confidence: 90, KellyPct: 3, Odds: 100, Risk: model.RiskLow},
			{ID: "c", Confidence: 80, KellyPct: 3, Odds: 100, Risk: model.RiskLow},
			{ID: "d", Confidence: 90, KellyPct: 2, Odds: 100, Risk: model.RiskLow},
		}

		Convey("When sorting by confidence", func() {
			out := pipeline.Quotes(items, pipeline.Filters{}, pipeline.SortConfidence)

			Convey("Then ties keep their original relative order", func() {
				So(ids(out), ShouldResemble, []string{"b", "d", "a", "c"})
			})
		})

		Convey("When sorting by kelly pct", func() {
			out := pipeline.Quotes(items, pipeline.Filters{}, pipeline.SortKellyPct)
			So(ids(out), ShouldResemble, []string{"b", "c", "d", "a"})
		})
	})

	Convey("Given quotes with start times", t, func() {
		base := time.Date(2026, 10, 15, 18, 0, 0, 0, time.UTC)
		items := []model.MarketQuote{
			{ID: "late", StartTime: base.Add(2 * time.Hour)},
			{ID: "unknown"},
			{ID: "early", StartTime: base},
		}

		Convey("When sorting by start time", func() {
			out := pipeline.Quotes(items, pipeline.Filters{}, pipeline.SortStartTime)

			Convey("Then it is ascending with unknown times last", func() {
				So(ids(out), ShouldResemble, []string{"early", "late", "unknown"})
			})
		})
	})
}

func TestParlays(t *testing.T) {
	Convey("Given parlays", t, func() {
		mk := func(id string, conf float64, a, b odds.American) model.Parlay {
			p, err := model.NewParlay(model.Parlay{
				ID: id,
				Legs: []model.ParlayLeg{
					{Odds: a, Confidence: 70},
					{Odds: b, Confidence: 70},
				},
				TotalConfidence: conf,
				RiskLevel:       model.RiskMedium,
			})
			So(err, ShouldBeNil)
			return p
		}
		items := []model.Parlay{
			mk("low", 20, 100, 100),
			mk("high", 40, 100, 100),
		}

		Convey("When sorting by confidence", func() {
			out := pipeline.Parlays(items, pipeline.Filters{}, pipeline.SortConfidence)
			So(out[0].ID, ShouldEqual, "high")
		})

		Convey("When reading derived facts", func() {
			fx := pipeline.ParlayFacts(items[1])
			So(fx.Odds, ShouldEqual, odds.American(300))
			// 0.4 * 4.0 - 1 = 0.6
			So(fx.ExpectedValue, ShouldAlmostEqual, 60, 1e-9)
			// (0.4*3 - 0.6) / 3 = 0.2
			So(fx.KellyPct, ShouldAlmostEqual, 20, 1e-9)
		})

		Convey("When filtering by underdogs", func() {
			out := pipeline.Parlays(items, pipeline.Filters{OddsBucket: pipeline.BucketUnderdogs}, pipeline.SortNone)
			So(len(out), ShouldEqual, 2)
		})

		Convey("When filtering by minimum EV", func() {
			out := pipeline.Parlays(items, pipeline.Filters{MinExpectedValue: ptr(0)}, pipeline.SortNone)
			So(len(out), ShouldEqual, 1)
			So(out[0].ID, ShouldEqual, "high")
		})

		Convey("When a parlay has a leg that no longer prices", func() {
			broken := model.Parlay{
				ID:              "broken",
				Legs:            []model.ParlayLeg{{Odds: 0}, {Odds: 120}},
				TotalConfidence: 30,
				RiskLevel:       model.RiskMedium,
			}
			withBroken := append([]model.Parlay{broken}, items...)

			So(pipeline.ParlayFacts(broken).Odds, ShouldEqual, odds.American(0))
			for _, b := range []pipeline.Bucket{pipeline.BucketPickems, pipeline.BucketFavorites, pipeline.BucketUnderdogs} {
				out := pipeline.Parlays(withBroken, pipeline.Filters{OddsBucket: b}, pipeline.SortNone)
				for _, p := range out {
					So(p.ID, ShouldNotEqual, "broken")
				}
			}
			all := pipeline.Parlays(withBroken, pipeline.Filters{OddsBucket: pipeline.BucketAll}, pipeline.SortNone)
			So(len(all), ShouldEqual, 3)
		})
	})
}

func TestParse(t *testing.T) {
	Convey("Given sort key strings", t, func() {
		k, err := pipeline.ParseSortKey("Confidence")
		So(err, ShouldBeNil)
		So(k, ShouldEqual, pipeline.SortConfidence)

		k, err = pipeline.ParseSortKey("none")
		So(err, ShouldBeNil)
		So(k, ShouldEqual, pipeline.SortNone)

		_, err = pipeline.ParseSortKey("alphabetical")
		So(errors.Is(err, pipeline.ErrUnknownSortKey), ShouldBeTrue)
	})

	Convey("Given bucket strings", t, func() {
		b, err := pipeline.ParseBucket("")
		So(err, ShouldBeNil)
		So(b, ShouldEqual, pipeline.BucketAll)

		b, err = pipeline.ParseBucket("UNDERDOGS")
		So(err, ShouldBeNil)
		So(b, ShouldEqual, pipeline.BucketUnderdogs)

		_, err = pipeline.ParseBucket("longshots")
		So(errors.Is(err, pipeline.ErrUnknownBucket), ShouldBeTrue)
	})
}
