package testprovider

// Generation ranges.
const (
	minConfidence    = 45.0
	confidenceRange  = 45.0
	maxVig           = 0.06
	minLegs          = 2
	extraLegs        = 2
	maxCorrelation   = 0.4
	percentScale     = 100
	kickoffSpreadMin = 12 * 60
	liveWindowMin    = 90
)

var teams = map[string][]string{
	"nba": {"Lakers", "Celtics", "Warriors", "Bucks", "Nuggets", "Heat", "Suns", "Knicks"},
	"nfl": {"Chiefs", "Eagles", "49ers", "Bills", "Cowboys", "Ravens", "Lions", "Packers"},
	"mlb": {"Dodgers", "Yankees", "Braves", "Astros", "Mets", "Padres", "Cubs", "Phillies"},
	"nhl": {"Bruins", "Oilers", "Rangers", "Avalanche", "Stars", "Panthers", "Jets", "Kings"},
}

var defaultTeams = []string{"Home", "Away", "North", "South", "East", "West", "Central", "Coast"}

var reasons = []string{
	"model edge over closing line",
	"rest advantage",
	"injury news not priced in",
	"strong recent form",
	"public money on the other side",
}
