// Command check performs integrity checks across a directory of cached
// CSV exports before they are backfilled: file coverage per zone, weather
// bounds, market bounds after the price/generation join, and consistency
// of the cross-border flow tables. With -predictions it also checks the
// serving artifact written by the inference binary.
//
// Usage:
//
//	go run ./cmd/check -data-dir data/cache [-predictions data/predictions.csv]
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"time"

	"github.com/couchcryptid/crossflow/internal/adapter/csvcache"
	"github.com/couchcryptid/crossflow/internal/artifact"
	"github.com/couchcryptid/crossflow/internal/config"
	"github.com/couchcryptid/crossflow/internal/domain"
	"github.com/couchcryptid/crossflow/internal/validation"
)

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	dataDir := flag.String("data-dir", "", "directory containing the cached CSV exports")
	predictions := flag.String("predictions", "", "optional predictions artifact to check")
	flag.Parse()

	if *dataDir == "" {
		flag.Usage()
		os.Exit(1)
	}

	if code := run(*dataDir, *predictions); code != 0 {
		os.Exit(code)
	}
}

// cache groups everything read from the export directory.
type cache struct {
	weather map[string][]domain.WeatherRecord
	gen     map[string]domain.GenerationTable
	prices  map[string]domain.PriceTable
	exports domain.FlowTable
	imports domain.FlowTable
}

func run(dataDir, predictionsPath string) int {
	zones, err := config.LoadZones()
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load zones: %v\n", err)
		return 1
	}

	fmt.Println("=== Cached Export Integrity Validation ===")
	fmt.Println()

	reader := csvcache.NewReader(dataDir, slog.Default())
	coverage, data := loadCache(reader, zones)

	weather, market, flows := assemble(data, zones)

	phases := []*phase{
		coverage,
		validateWeather(weather, zones),
		validateMarket(market, zones),
		validateFlows(flows, data, zones),
	}
	if predictionsPath != "" {
		phases = append(phases, validatePredictions(predictionsPath, zones))
	}

	fmt.Println()
	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Printf("  %-42s %s\n", p.name, status)
	}

	fmt.Println()
	fmt.Printf("Records: %d weather, %d market, %d flow\n", len(weather), len(market), len(flows))

	// Print detailed errors.
	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Printf("  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Println("\nAll validations passed.")
		return 0
	}
	fmt.Println("\nValidation FAILED.")
	return 1
}

// ── Phase 1: Cache Coverage ──
// Every zone must have parseable weather, price, and generation exports;
// the home zone must have both flow tables.

func loadCache(reader *csvcache.Reader, zones *config.ZoneSet) (*phase, *cache) {
	p := &phase{name: "Phase 1: Cache Coverage (CSV files)"}
	data := &cache{
		weather: make(map[string][]domain.WeatherRecord),
		gen:     make(map[string]domain.GenerationTable),
		prices:  make(map[string]domain.PriceTable),
	}

	for _, code := range zones.Codes() {
		recs, err := reader.Weather(code)
		if err != nil {
			p.errorf("%s weather: %v", code, err)
		} else {
			data.weather[code] = recs
		}

		gen, schema, err := reader.Generation(code)
		if err != nil {
			p.errorf("%s generation: %v", code, err)
		} else {
			fmt.Printf("  %s generation export uses the %s layout\n", code, schema)
			data.gen[code] = gen
		}

		prices, err := reader.DayAheadPrices(code)
		if err != nil {
			p.errorf("%s prices: %v", code, err)
		} else {
			data.prices[code] = prices
		}
	}

	exports, err := reader.ExportFlows(zones.Home)
	if err != nil {
		p.errorf("%s export flows: %v", zones.Home, err)
	} else {
		data.exports = exports
	}
	imports, err := reader.ImportFlows(zones.Home)
	if err != nil {
		p.errorf("%s import flows: %v", zones.Home, err)
	} else {
		data.imports = imports
	}

	return p, data
}

// assemble runs the same reshaping the backfill path runs, so the checks
// see the rows that would actually be loaded.
func assemble(data *cache, zones *config.ZoneSet) ([]domain.WeatherRecord, []domain.PriceGenerationRecord, []domain.FlowRecord) {
	var weather []domain.WeatherRecord
	var market []domain.PriceGenerationRecord
	for _, code := range zones.Codes() {
		weather = append(weather, data.weather[code]...)

		gen, haveGen := data.gen[code]
		prices, havePrices := data.prices[code]
		if !haveGen || !havePrices {
			continue
		}
		records, unmapped := domain.JoinPricesGeneration(domain.NormalizeGeneration(gen), prices, code)
		if len(unmapped) > 0 {
			fmt.Printf("  Note: %s: unmapped technologies dropped: %v\n", code, unmapped)
		}
		market = append(market, records...)
	}

	flows := domain.MergeFlows(
		domain.MeltFlows(data.exports, zones.Home, true),
		domain.MeltFlows(data.imports, zones.Home, false),
	)
	return weather, market, flows
}

// ── Phase 2: Weather Bounds ──

func validateWeather(records []domain.WeatherRecord, zones *config.ZoneSet) *phase {
	p := &phase{name: "Phase 2: Weather Bounds"}
	suite := validation.NewWeatherSuite(zones.Codes())
	for _, v := range suite.Validate(records).Violations {
		p.errorf("%s", v.Error())
	}
	return p
}

// ── Phase 3: Market Bounds ──

func validateMarket(records []domain.PriceGenerationRecord, zones *config.ZoneSet) *phase {
	p := &phase{name: "Phase 3: Market Bounds (prices + generation)"}
	suite := validation.NewPricesGenerationSuite(zones.Codes())
	for _, v := range suite.Validate(records).Violations {
		p.errorf("%s", v.Error())
	}
	return p
}

// ── Phase 4: Flow Consistency ──
// The melted rows must satisfy the flow suite, and the import and export
// tables must describe the same hours and the same neighbour set.

func validateFlows(flows []domain.FlowRecord, data *cache, zones *config.ZoneSet) *phase {
	p := &phase{name: "Phase 4: Flow Consistency"}

	suite := validation.NewPhysicalFlowSuite(zones.Codes())
	for _, v := range suite.Validate(flows).Violations {
		p.errorf("%s", v.Error())
	}

	checkHourParity(p, data.exports.Times, data.imports.Times)
	checkZoneParity(p, data.exports.Zones, data.imports.Zones)
	return p
}

func checkHourParity(p *phase, exportTimes, importTimes []time.Time) {
	exportHours := hourSet(exportTimes)
	importHours := hourSet(importTimes)
	for _, h := range sortedHours(exportHours) {
		if !importHours[h] {
			p.errorf("hour %s present in exports but not imports", time.Unix(h, 0).UTC().Format(time.RFC3339))
		}
	}
	for _, h := range sortedHours(importHours) {
		if !exportHours[h] {
			p.errorf("hour %s present in imports but not exports", time.Unix(h, 0).UTC().Format(time.RFC3339))
		}
	}
}

func checkZoneParity(p *phase, exportZones, importZones []string) {
	exp := make(map[string]bool, len(exportZones))
	for _, z := range exportZones {
		exp[z] = true
	}
	imp := make(map[string]bool, len(importZones))
	for _, z := range importZones {
		imp[z] = true
	}
	for _, z := range exportZones {
		if !imp[z] {
			p.errorf("zone %s present in exports but not imports", z)
		}
	}
	for _, z := range importZones {
		if !exp[z] {
			p.errorf("zone %s present in imports but not exports", z)
		}
	}
}

// ── Phase 5: Predictions Artifact ──
// The serving artifact must parse, every row must name a known directed
// pair touching the home zone, and each predicted hour must carry both
// directions of every neighbour pair.

func validatePredictions(path string, zones *config.ZoneSet) *phase {
	p := &phase{name: "Phase 5: Predictions Artifact"}

	records, err := artifact.NewPredictionsFile(path, zones.Home).ReadPredictions()
	if err != nil {
		p.errorf("read %s: %v", path, err)
		return p
	}
	if len(records) == 0 {
		p.errorf("%s holds no prediction rows", path)
		return p
	}

	known := make(map[string]bool, len(zones.Codes()))
	for _, z := range zones.Codes() {
		known[z] = true
	}
	hours := make(map[time.Time]int)
	for i, rec := range records {
		if !known[rec.CountryFrom] || !known[rec.CountryTo] {
			p.errorf("row %d names unknown pair %s->%s", i, rec.CountryFrom, rec.CountryTo)
			continue
		}
		if rec.CountryFrom != zones.Home && rec.CountryTo != zones.Home {
			p.errorf("row %d pair %s->%s does not touch %s", i, rec.CountryFrom, rec.CountryTo, zones.Home)
		}
		if rec.EnergySent < 0 {
			p.errorf("row %d has negative energy_sent %.2f", i, rec.EnergySent)
		}
		hours[rec.Datetime]++
	}

	want := 2 * len(zones.Neighbours)
	for hour, n := range hours {
		if n != want {
			p.errorf("hour %s has %d directed rows, want %d", hour.Format(time.RFC3339), n, want)
		}
	}
	return p
}

// ── Helpers ──

func hourSet(times []time.Time) map[int64]bool {
	set := make(map[int64]bool, len(times))
	for _, t := range times {
		set[t.Truncate(time.Hour).Unix()] = true
	}
	return set
}

func sortedHours(set map[int64]bool) []int64 {
	hours := make([]int64, 0, len(set))
	for h := range set {
		hours = append(hours, h)
	}
	sort.Slice(hours, func(i, j int) bool { return hours[i] < hours[j] })
	return hours
}
