package store

import (
	"fmt"
	"strings"

	"github.com/couchcryptid/crossflow/internal/domain"
)

// groupSpec binds a feature group to its table definition and the
// description recorded in feature_descriptions.
type groupSpec struct {
	description string
	ddl         func(table string) string
}

var groupSpecs = map[string]groupSpec{
	domain.GroupWeather: {
		description: "Hourly weather per bidding zone from Open-Meteo",
		ddl:         weatherDDL,
	},
	domain.GroupPricesGeneration: {
		description: "Hourly day-ahead prices and generation mix per bidding zone",
		ddl:         pricesGenerationDDL,
	},
	domain.GroupPhysicalFlow: {
		description: "Hourly realized cross-border flows for home-adjacent pairs",
		ddl:         physicalFlowDDL,
	},
	domain.GroupModelData: {
		description: "Assembled model feature rows; energy_sent is null on forecast rows",
		ddl:         modelDataDDL,
	},
	domain.GroupPredictions: {
		description: "Predicted hourly flows with home-zone context columns",
		ddl:         predictionsDDL,
	},
}

// tableName builds the versioned physical table name for a feature group.
func tableName(group string, version int) string {
	return fmt.Sprintf("%s_v%d", group, version)
}

func weatherDDL(table string) string {
	cols := make([]string, 0, len(domain.WeatherColumns))
	for _, c := range domain.WeatherColumns {
		cols = append(cols, fmt.Sprintf("\t%s DOUBLE PRECISION NOT NULL", c))
	}
	return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	datetime TIMESTAMPTZ NOT NULL,
	country_code TEXT NOT NULL,
%s,
	PRIMARY KEY (datetime, country_code)
)`, table, strings.Join(cols, ",\n"))
}

func pricesGenerationDDL(table string) string {
	cols := make([]string, 0, len(domain.GenerationTechs)+2)
	cols = append(cols, "\tenergy_price DOUBLE PRECISION NOT NULL")
	for _, tech := range domain.GenerationTechs {
		cols = append(cols, fmt.Sprintf("\t%s DOUBLE PRECISION NOT NULL", tech))
	}
	cols = append(cols, "\ttotal_generation DOUBLE PRECISION NOT NULL")
	return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	datetime TIMESTAMPTZ NOT NULL,
	country_code TEXT NOT NULL,
%s,
	PRIMARY KEY (datetime, country_code)
)`, table, strings.Join(cols, ",\n"))
}

func physicalFlowDDL(table string) string {
	return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	datetime TIMESTAMPTZ NOT NULL,
	country_from TEXT NOT NULL,
	country_to TEXT NOT NULL,
	energy_sent DOUBLE PRECISION NOT NULL,
	PRIMARY KEY (datetime, country_from, country_to)
)`, table)
}

func modelDataDDL(table string) string {
	return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	datetime TIMESTAMPTZ NOT NULL,
	country_from TEXT NOT NULL,
	country_to TEXT NOT NULL,
	energy_sent DOUBLE PRECISION,
	features JSONB NOT NULL,
	PRIMARY KEY (datetime, country_from, country_to)
)`, table)
}

func predictionsDDL(table string) string {
	return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	datetime TIMESTAMPTZ NOT NULL,
	country_from TEXT NOT NULL,
	country_to TEXT NOT NULL,
	energy_sent DOUBLE PRECISION NOT NULL,
	home_energy_price DOUBLE PRECISION NOT NULL,
	home_total_generation DOUBLE PRECISION NOT NULL,
	PRIMARY KEY (datetime, country_from, country_to)
)`, table)
}

// upsertSQL builds an INSERT ... ON CONFLICT DO UPDATE statement keyed by
// keyCols.
func upsertSQL(table string, keyCols, valueCols []string) string {
	all := make([]string, 0, len(keyCols)+len(valueCols))
	all = append(all, keyCols...)
	all = append(all, valueCols...)

	placeholders := make([]string, len(all))
	for i := range all {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}
	sets := make([]string, len(valueCols))
	for i, c := range valueCols {
		sets[i] = fmt.Sprintf("%s = EXCLUDED.%s", c, c)
	}
	return fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s) ON CONFLICT (%s) DO UPDATE SET %s",
		table,
		strings.Join(all, ", "),
		strings.Join(placeholders, ", "),
		strings.Join(keyCols, ", "),
		strings.Join(sets, ", "),
	)
}

// pricesGenerationColumns lists the value columns of the prices_generation
// group in table order.
func pricesGenerationColumns() []string {
	cols := make([]string, 0, len(domain.GenerationTechs)+2)
	cols = append(cols, "energy_price")
	cols = append(cols, domain.GenerationTechs...)
	cols = append(cols, "total_generation")
	return cols
}
