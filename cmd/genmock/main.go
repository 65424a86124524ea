// Command genmock writes a deterministic set of cached CSV exports for
// every monitored zone: weather, day-ahead prices, generation, and the
// home zone's import/export flow tables. The files carry the header
// shapes seen across real exports (two-level and flat generation headers,
// price files with and without a row index, a flow "sum" column) so the
// readers are exercised end to end. After writing, the files are read
// back through the cache reader and checked against the validation
// suites.
//
// Usage:
//
//	go run ./cmd/genmock -data-dir data/cache -date 2024-04-26
package main

import (
	"bytes"
	"encoding/csv"
	"errors"
	"flag"
	"fmt"
	"hash/fnv"
	"log"
	"log/slog"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/couchcryptid/crossflow/internal/adapter/csvcache"
	"github.com/couchcryptid/crossflow/internal/config"
	"github.com/couchcryptid/crossflow/internal/domain"
	"github.com/couchcryptid/crossflow/internal/validation"
)

// Timestamp layouts per file kind, matching what the upstream exports use.
const (
	weatherStamp    = "2006-01-02T15:04"
	priceStamp      = "2006-01-02 15:04:05-07:00"
	generationStamp = "2006-01-02 15:04:05"
)

// techColumn is one generation column as the upstream export labels it.
type techColumn struct {
	label string
	kind  string
	base  float64 // MW around which the series moves
}

// profile drives per-zone generation: which technologies a zone runs, how
// its generation header is laid out, and its price level.
type profile struct {
	techs       []techColumn
	flatHeader  bool // "Tech, Kind" tuples in a single header row
	indexedRows bool // third header row naming the index
	halfHourly  bool // 30-minute resolution instead of hourly
	priceIndex  bool // leading row-index column in the price file
	priceBase   float64
}

var profiles = map[string]profile{
	"NL": {
		techs: []techColumn{
			{"Fossil Gas", "Actual Aggregated", 5200},
			{"Fossil Hard coal", "Actual Aggregated", 1400},
			{"Wind Offshore", "Actual Aggregated", 2100},
			{"Wind Onshore", "Actual Aggregated", 1700},
			{"Solar", "Actual Aggregated", 1800},
			{"Biomass", "Actual Aggregated", 400},
			{"Nuclear", "Actual Aggregated", 480},
			{"Other", "Actual Aggregated", 300},
		},
		priceIndex: true,
		priceBase:  52,
	},
	"BE": {
		techs: []techColumn{
			{"Nuclear", "Actual Aggregated", 3900},
			{"Fossil Gas", "Actual Aggregated", 2300},
			{"Wind Offshore", "Actual Aggregated", 900},
			{"Wind Onshore", "Actual Aggregated", 800},
			{"Solar", "Actual Aggregated", 1100},
			{"Hydro Pumped Storage", "Actual Aggregated", 250},
			{"Other", "Actual Aggregated", 200},
		},
		priceIndex: true,
		priceBase:  49,
	},
	"DE_LU": {
		techs: []techColumn{
			{"Fossil Brown coal/Lignite", "Actual Aggregated", 9000},
			{"Fossil Gas", "Actual Aggregated", 4500},
			{"Fossil Hard coal", "Actual Aggregated", 3200},
			{"Wind Offshore", "Actual Aggregated", 4800},
			{"Wind Onshore", "Actual Aggregated", 11000},
			{"Solar", "Actual Aggregated", 9500},
			{"Biomass", "Actual Aggregated", 4200},
			{"Hydro Run-of-river and poundage", "Actual Aggregated", 1500},
			{"Other renewable", "Actual Aggregated", 150},
		},
		indexedRows: true,
		halfHourly:  true,
		priceIndex:  true,
		priceBase:   47,
	},
	"GB": {
		techs: []techColumn{
			{"Fossil Gas", "Actual Aggregated", 9800},
			{"Nuclear", "Actual Aggregated", 4600},
			{"Wind Offshore", "Actual Aggregated", 5200},
			{"Wind Onshore", "Actual Aggregated", 3100},
			{"Solar", "Actual Aggregated", 2400},
			{"Biomass", "Actual Aggregated", 2000},
			{"Hydro Pumped Storage", "Actual Aggregated", 400},
		},
		priceBase: 68,
	},
	"NO_2": {
		techs: []techColumn{
			{"Hydro Water Reservoir", "Actual Aggregated", 4800},
			{"Hydro Run-of-river and poundage", "Actual Aggregated", 900},
			{"Wind Onshore", "Actual Aggregated", 350},
			// Pumping draw; the normalizer drops consumption columns.
			{"Hydro Pumped Storage", "Actual Consumption", 120},
		},
		priceBase: 31,
	},
	"DK_1": {
		techs: []techColumn{
			{"Wind Onshore", "Actual Aggregated", 2600},
			{"Wind Offshore", "Actual Aggregated", 1500},
			{"Solar", "Actual Aggregated", 700},
			{"Biomass", "Actual Aggregated", 600},
			{"Fossil Gas", "Actual Aggregated", 350},
			// No canonical column; the join reports it and drops it.
			{"Energy storage", "Actual Aggregated", 40},
		},
		flatHeader: true,
		priceBase:  44,
	},
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	dataDir := flag.String("data-dir", "", "output directory for the cached exports")
	dateStr := flag.String("date", "2024-04-26", "first UTC day the exports cover (YYYY-MM-DD)")
	days := flag.Int("days", 1, "number of consecutive days to generate")
	flag.Parse()

	if *dataDir == "" {
		flag.Usage()
		return errors.New("missing required flag: -data-dir")
	}
	day, err := time.Parse("2006-01-02", *dateStr)
	if err != nil {
		return fmt.Errorf("parse -date: %w", err)
	}
	if *days < 1 {
		return errors.New("-days must be at least 1")
	}

	zones, err := config.LoadZones()
	if err != nil {
		return fmt.Errorf("load zones: %w", err)
	}

	hours := make([]time.Time, 0, *days*24)
	for h := 0; h < *days*24; h++ {
		hours = append(hours, day.Add(time.Duration(h)*time.Hour))
	}

	for _, z := range zones.Zones {
		prof, ok := profiles[z.Code]
		if !ok {
			return fmt.Errorf("no generation profile for zone %s", z.Code)
		}
		if err := writeWeather(*dataDir, z, hours); err != nil {
			return fmt.Errorf("writing %s weather: %w", z.Code, err)
		}
		if err := writePrices(*dataDir, z.Code, prof, hours); err != nil {
			return fmt.Errorf("writing %s prices: %w", z.Code, err)
		}
		rows, err := writeGeneration(*dataDir, z.Code, prof, hours)
		if err != nil {
			return fmt.Errorf("writing %s generation: %w", z.Code, err)
		}
		log.Printf("%s: %d weather, %d price, %d generation rows", z.Code, len(hours), len(hours), rows)
	}

	if err := writeFlows(*dataDir, zones, hours); err != nil {
		return fmt.Errorf("writing %s flows: %w", zones.Home, err)
	}
	log.Printf("%s: 2 flow tables, %d rows each", zones.Home, len(hours))

	if err := verify(*dataDir, zones); err != nil {
		return fmt.Errorf("round-trip verification: %w", err)
	}
	log.Printf("wrote cached exports: %s", *dataDir)
	return nil
}

// rng returns a generator seeded from the zone and file kind, so reruns
// produce identical files.
func rng(zone, kind string) *rand.Rand {
	h := fnv.New64a()
	h.Write([]byte(zone + ":" + kind)) //nolint:errcheck // hash writes cannot fail
	return rand.New(rand.NewSource(int64(h.Sum64())))
}

// diurnal peaks mid-afternoon and bottoms out at night, scaled to [0, 1].
func diurnal(t time.Time) float64 {
	frac := float64(t.Hour())/24 + float64(t.Minute())/1440
	return (1 + math.Sin(2*math.Pi*(frac-0.333))) / 2
}

// daylight is a clear-sky radiation bell over 06:00..20:00.
func daylight(t time.Time) float64 {
	h := float64(t.Hour()) + float64(t.Minute())/60
	if h < 6 || h > 20 {
		return 0
	}
	return math.Sin(math.Pi * (h - 6) / 14)
}

func cell(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

func writeWeather(dir string, z config.Zone, hours []time.Time) error {
	r := rng(z.Code, "weather")
	header := append([]string{"time"}, domain.WeatherColumns...)
	rows := [][]string{header}

	// Cooler with latitude; the diurnal swing rides on top.
	baseTemp := 16 - (z.Lat-50)*0.7
	for _, t := range hours {
		cloud := 20 + 60*r.Float64()
		wind10 := 2.5 + 5*diurnal(t) + 2*r.Float64()
		dir10 := math.Mod(190+50*math.Sin(float64(t.Hour())/4)+20*r.Float64(), 360)
		precip := 0.0
		if r.Float64() < 0.12 {
			precip = 0.2 + 1.8*r.Float64()
		}
		rec := domain.WeatherRecord{
			Temperature2M:     baseTemp + 5.5*diurnal(t) + r.Float64() - 0.5,
			CloudCover:        cloud,
			DirectRadiation:   640 * daylight(t) * (1 - cloud/130),
			DiffuseRadiation:  210 * daylight(t),
			SurfacePressure:   1008 + 8*math.Sin(float64(t.YearDay())) + 2*r.Float64(),
			WindSpeed10M:      wind10,
			WindDirection10M:  dir10,
			WindSpeed100M:     wind10 * 1.45,
			WindDirection100M: math.Mod(dir10+12, 360),
			Precipitation:     precip,
			SnowDepth:         0,
		}
		row := []string{t.Format(weatherStamp)}
		for _, col := range domain.WeatherColumns {
			v, _ := rec.Value(col)
			row = append(row, cell(v))
		}
		rows = append(rows, row)
	}
	return writeCSV(filepath.Join(dir, z.Code+"_weather.csv"), rows)
}

func writePrices(dir, zone string, prof profile, hours []time.Time) error {
	r := rng(zone, "prices")
	var rows [][]string
	if prof.priceIndex {
		rows = append(rows, []string{"", "datetime", "price"})
	} else {
		rows = append(rows, []string{"datetime", "price"})
	}

	for i, t := range hours {
		price := prof.priceBase + 28*diurnal(t) + 6*r.Float64() - 3
		// Midday wind surplus pushes the Danish day-ahead price negative.
		if zone == "DK_1" && t.Hour() == 13 {
			price = -5.2
		}
		row := []string{t.Format(priceStamp), cell(price)}
		if prof.priceIndex {
			row = append([]string{strconv.Itoa(i)}, row...)
		}
		rows = append(rows, row)
	}
	return writeCSV(filepath.Join(dir, zone+"_day_ahead_prices.csv"), rows)
}

// writeGeneration renders the zone's generation series in its profile's
// header layout and returns the number of data rows written.
func writeGeneration(dir, zone string, prof profile, hours []time.Time) (int, error) {
	r := rng(zone, "generation")

	var rows [][]string
	switch {
	case prof.flatHeader:
		header := []string{""}
		for _, tc := range prof.techs {
			header = append(header, tc.label+", "+tc.kind)
		}
		rows = append(rows, header)
	default:
		techRow, kindRow := []string{""}, []string{""}
		for _, tc := range prof.techs {
			techRow = append(techRow, tc.label)
			kindRow = append(kindRow, tc.kind)
		}
		rows = append(rows, techRow, kindRow)
		if prof.indexedRows {
			indexRow := make([]string, len(techRow))
			indexRow[0] = "datetime"
			rows = append(rows, indexRow)
		}
	}

	step := time.Hour
	if prof.halfHourly {
		step = 30 * time.Minute
	}
	dataRows := 0
	for _, hour := range hours {
		for t := hour; t.Before(hour.Add(time.Hour)); t = t.Add(step) {
			row := []string{t.Format(generationStamp)}
			for _, tc := range prof.techs {
				v := tc.base * output(tc.label, t, r)
				if prof.halfHourly {
					v /= 2 // per-interval energy; the hour sums back to base scale
				}
				row = append(row, cell(v))
			}
			rows = append(rows, row)
			dataRows++
		}
	}
	return dataRows, writeCSV(filepath.Join(dir, zone+"_energy_generation.csv"), rows)
}

// output shapes a technology's hourly level as a fraction of its base.
func output(label string, t time.Time, r *rand.Rand) float64 {
	switch label {
	case "Solar":
		return daylight(t) * (0.8 + 0.2*r.Float64())
	case "Wind Onshore", "Wind Offshore":
		return 0.35 + 0.5*r.Float64()
	case "Nuclear":
		return 0.92 + 0.05*r.Float64()
	default:
		return 0.55 + 0.35*diurnal(t) + 0.1*r.Float64()
	}
}

// writeFlows renders the home zone's export and import tables, one column
// per neighbour plus the upstream convenience "sum" column. A couple of
// cells carry the artifacts real exports have: an empty reading and a
// negative net-flow correction, both of which melt to zero.
func writeFlows(dir string, zones *config.ZoneSet, hours []time.Time) error {
	header := append([]string{""}, zones.Neighbours...)
	header = append(header, "sum")

	write := func(kind, name string, base map[string]float64) error {
		r := rng(zones.Home, kind)
		rows := [][]string{header}
		for i, t := range hours {
			row := []string{t.Format(time.RFC3339)}
			sum := 0.0
			for _, n := range zones.Neighbours {
				v := base[n] * (0.4 + 0.6*diurnal(t)) * (0.85 + 0.3*r.Float64())
				switch {
				case kind == "export_flow" && n == "GB" && i == 3:
					row = append(row, "")
					continue
				case kind == "export_flow" && n == "DK_1" && i == 5:
					v = -12.5
				}
				row = append(row, cell(v))
				sum += v
			}
			row = append(row, cell(sum))
			rows = append(rows, row)
		}
		return writeCSV(filepath.Join(dir, name), rows)
	}

	exportBase := map[string]float64{"BE": 950, "DE_LU": 1400, "GB": 800, "NO_2": 500, "DK_1": 420}
	importBase := map[string]float64{"BE": 700, "DE_LU": 1900, "GB": 650, "NO_2": 680, "DK_1": 390}
	if err := write("export_flow", zones.Home+"_export_flow.csv", exportBase); err != nil {
		return err
	}
	return write("import_flow", zones.Home+"_import_flow.csv", importBase)
}

func writeCSV(path string, rows [][]string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.WriteAll(rows); err != nil {
		return err
	}
	return os.WriteFile(path, buf.Bytes(), 0o600)
}

// verify reads the exports back through the cache reader, reruns the joins
// the backfill runs, and rejects the output if any validation suite does.
func verify(dir string, zones *config.ZoneSet) error {
	reader := csvcache.NewReader(dir, slog.Default())
	codes := zones.Codes()

	var weather []domain.WeatherRecord
	var market []domain.PriceGenerationRecord
	for _, code := range codes {
		recs, err := reader.Weather(code)
		if err != nil {
			return err
		}
		weather = append(weather, recs...)

		gen, schema, err := reader.Generation(code)
		if err != nil {
			return err
		}
		prices, err := reader.DayAheadPrices(code)
		if err != nil {
			return err
		}
		records, unmapped := domain.JoinPricesGeneration(domain.NormalizeGeneration(gen), prices, code)
		if len(unmapped) > 0 {
			log.Printf("%s: unmapped technologies dropped: %v (%s layout)", code, unmapped, schema)
		}
		market = append(market, records...)
	}

	exports, err := reader.ExportFlows(zones.Home)
	if err != nil {
		return err
	}
	imports, err := reader.ImportFlows(zones.Home)
	if err != nil {
		return err
	}
	flows := domain.MergeFlows(
		domain.MeltFlows(exports, zones.Home, true),
		domain.MeltFlows(imports, zones.Home, false),
	)

	if err := validation.NewWeatherSuite(codes).Validate(weather).Err(); err != nil {
		return err
	}
	if err := validation.NewPricesGenerationSuite(codes).Validate(market).Err(); err != nil {
		return err
	}
	if err := validation.NewPhysicalFlowSuite(codes).Validate(flows).Err(); err != nil {
		return err
	}

	printStats(weather, market, flows, zones)
	return nil
}

// printStats reports the joined shapes, for pinning test assertions.
func printStats(weather []domain.WeatherRecord, market []domain.PriceGenerationRecord, flows []domain.FlowRecord, zones *config.ZoneSet) {
	fmt.Println("\n=== Stats for updating test assertions ===")
	fmt.Printf("Total: %d weather, %d market, %d flow rows\n", len(weather), len(market), len(flows))

	var exported, imported float64
	var exportRows, importRows int
	for _, f := range flows {
		if f.CountryFrom == zones.Home {
			exported += f.EnergySent
			exportRows++
		} else {
			imported += f.EnergySent
			importRows++
		}
	}
	fmt.Printf("Flows: %d export rows (%.1f MWh), %d import rows (%.1f MWh)\n",
		exportRows, exported, importRows, imported)

	minPrice, maxPrice := math.Inf(1), math.Inf(-1)
	var minZone, maxZone string
	for _, m := range market {
		if m.EnergyPrice < minPrice {
			minPrice, minZone = m.EnergyPrice, m.CountryCode
		}
		if m.EnergyPrice > maxPrice {
			maxPrice, maxZone = m.EnergyPrice, m.CountryCode
		}
	}
	fmt.Printf("Price range: %.2f (%s) .. %.2f (%s)\n", minPrice, minZone, maxPrice, maxZone)

	features := domain.JoinFeatures(
		domain.PivotWeather(weather, zones.Codes()),
		domain.PivotPricesGeneration(market, zones.Codes()),
	)
	rows := domain.BuildModelRows(features, flows)
	rows = domain.AddCountryPairs(rows, zones.Home, zones.Neighbours)
	cols := 0
	if len(rows) > 0 {
		cols = len(rows[0].Features)
	}
	fmt.Printf("Model rows: %d labelled, %d feature columns\n", len(rows), cols)
}
