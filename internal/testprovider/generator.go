package testprovider

import (
	"fmt"
	"hash/fnv"
	"math"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
	"github.com/okian/betslip/internal/domain/odds"
)

var idNamespace = uuid.MustParse("6f1c2d0e-3b7a-4c55-9e1f-2a8d4b6c0e91")

// Generate builds the board for one (sport, date, live) request. Output is a
// pure function of the arguments, so two calls with the same inputs match.
func Generate(cfg *Config, sport, date string, live bool) Payload {
	rng := rand.New(rand.NewPCG(cfg.Seed, boardSeed(sport, date, live)))
	names := teams[sport]
	if len(names) == 0 {
		names = defaultTeams
	}
	day, err := time.Parse(time.DateOnly, date)
	if err != nil {
		day = time.Now().UTC().Truncate(24 * time.Hour)
	}

	p := Payload{
		Recommendations: make([]Recommendation, 0, cfg.Recommendations),
		Parlays:         make([]Parlay, 0, cfg.Parlays),
	}
	for i := 0; i < cfg.Recommendations; i++ {
		p.Recommendations = append(p.Recommendations, recommendation(rng, cfg, sport, date, live, names, day, i))
	}
	for i := 0; i < cfg.Parlays; i++ {
		p.Parlays = append(p.Parlays, parlay(rng, cfg, sport, date, live, names, i))
	}
	return p
}

func boardSeed(sport, date string, live bool) uint64 {
	h := fnv.New64a()
	fmt.Fprintf(h, "%s|%s|%t", sport, date, live)
	return h.Sum64()
}

func stableID(cfg *Config, parts ...any) string {
	return uuid.NewSHA1(idNamespace, []byte(fmt.Sprint(append([]any{cfg.Seed}, parts...)...))).String()
}

func matchup(rng *rand.Rand, names []string) (string, string) {
	home := rng.IntN(len(names))
	away := (home + 1 + rng.IntN(len(names)-1)) % len(names)
	return names[away] + " @ " + names[home], names[home]
}

// price turns a true probability into a vigged American quote.
func price(rng *rand.Rand, prob float64) int {
	implied := math.Min(prob*(1+rng.Float64()*maxVig), 0.95)
	a, err := odds.ProbabilityToAmerican(implied)
	if err != nil {
		return 100
	}
	return int(a)
}

func riskFor(confidence float64) string {
	switch {
	case confidence >= 75:
		return "Low"
	case confidence >= 60:
		return "Medium"
	default:
		return "High"
	}
}

func recommendation(rng *rand.Rand, cfg *Config, sport, date string, live bool, names []string, day time.Time, i int) Recommendation {
	game, pick := matchup(rng, names)
	conf := round1(minConfidence + rng.Float64()*confidenceRange)
	american := price(rng, conf/percentScale)
	dec, _ := odds.AmericanToDecimal(odds.American(american))
	p := conf / percentScale

	r := Recommendation{
		ID:            stableID(cfg, sport, date, live, "rec", i),
		Sport:         sport,
		Matchup:       game,
		Bet:           pick + " ML",
		Odds:          Odds{American: american},
		Confidence:    conf,
		ExpectedValue: round1((p*dec - 1) * percentScale),
		KellyPct:      round1(math.Max(0, (p*(dec-1)-(1-p))/(dec-1)) * percentScale),
		Risk:          riskFor(conf),
		Reasoning:     reasons[rng.IntN(len(reasons))],
	}
	// Every fifth pick has no kickoff time, like the real feed.
	if i%5 != 4 {
		offset := time.Duration(rng.IntN(kickoffSpreadMin)) * time.Minute
		if live {
			offset = -time.Duration(rng.IntN(liveWindowMin)) * time.Minute
		}
		r.StartTime = day.Add(12 * time.Hour).Add(offset).Format(time.RFC3339)
	}
	return r
}

func parlay(rng *rand.Rand, cfg *Config, sport, date string, live bool, names []string, i int) Parlay {
	n := minLegs + rng.IntN(extraLegs+1)
	legs := make([]Leg, n)
	prices := make([]odds.American, n)
	blended := 1.0
	for j := range legs {
		game, pick := matchup(rng, names)
		conf := round1(minConfidence + rng.Float64()*confidenceRange)
		legs[j] = Leg{Matchup: game, Bet: pick + " ML", Odds: price(rng, conf/percentScale), Confidence: conf}
		prices[j] = odds.American(legs[j].Odds)
		blended *= conf / percentScale
	}
	combo, _ := odds.CombineParlay(prices)
	corr := round2(rng.Float64() * maxCorrelation)
	total := round1(blended * (1 - corr/2) * percentScale)

	return Parlay{
		ID:              stableID(cfg, sport, date, live, "parlay", i),
		Legs:            legs,
		CombinedOdds:    round2(combo.Decimal),
		TotalConfidence: total,
		CorrelationRisk: corr,
		RiskLevel:       riskFor(total + 30),
		Reasoning:       reasons[rng.IntN(len(reasons))],
	}
}

func round1(v float64) float64 { return math.Round(v*10) / 10 }
func round2(v float64) float64 { return math.Round(v*100) / 100 }
