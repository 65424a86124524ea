package config

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"
)

//go:embed zones.yaml
var zonesYAML []byte

// Zone describes one monitored bidding zone.
type Zone struct {
	Code string  `yaml:"code"`
	Name string  `yaml:"name"`
	EIC  string  `yaml:"eic"`
	Lat  float64 `yaml:"lat"`
	Lon  float64 `yaml:"lon"`
}

// ZoneSet is the static zone topology: the home zone, its interconnected
// neighbours, and per-zone metadata (ENTSO-E EIC codes, centroid
// coordinates for weather pulls).
type ZoneSet struct {
	Home       string   `yaml:"home"`
	Neighbours []string `yaml:"neighbours"`
	Zones      []Zone   `yaml:"zones"`

	byCode map[string]Zone
}

// LoadZones parses the embedded zone topology.
func LoadZones() (*ZoneSet, error) {
	var zs ZoneSet
	if err := yaml.Unmarshal(zonesYAML, &zs); err != nil {
		return nil, fmt.Errorf("parse zones: %w", err)
	}
	if err := zs.index(); err != nil {
		return nil, err
	}
	return &zs, nil
}

// NewZoneSet builds a validated zone set from explicit topology, for
// callers that do not want the embedded one.
func NewZoneSet(home string, neighbours []string, zones []Zone) (*ZoneSet, error) {
	zs := &ZoneSet{Home: home, Neighbours: neighbours, Zones: zones}
	if err := zs.index(); err != nil {
		return nil, err
	}
	return zs, nil
}

func (zs *ZoneSet) index() error {
	zs.byCode = make(map[string]Zone, len(zs.Zones))
	for _, z := range zs.Zones {
		if z.Code == "" || z.EIC == "" {
			return fmt.Errorf("zone %q: missing code or eic", z.Code)
		}
		if _, dup := zs.byCode[z.Code]; dup {
			return fmt.Errorf("zone %q: duplicate code", z.Code)
		}
		zs.byCode[z.Code] = z
	}

	if _, ok := zs.byCode[zs.Home]; !ok {
		return fmt.Errorf("home zone %q not in zone list", zs.Home)
	}
	for _, n := range zs.Neighbours {
		if _, ok := zs.byCode[n]; !ok {
			return fmt.Errorf("neighbour %q not in zone list", n)
		}
		if n == zs.Home {
			return fmt.Errorf("home zone %q listed as its own neighbour", n)
		}
	}
	return nil
}

// Zone returns the metadata for a zone code.
func (zs *ZoneSet) Zone(code string) (Zone, bool) {
	z, ok := zs.byCode[code]
	return z, ok
}

// Codes returns every monitored zone code in declaration order.
func (zs *ZoneSet) Codes() []string {
	codes := make([]string, 0, len(zs.Zones))
	for _, z := range zs.Zones {
		codes = append(codes, z.Code)
	}
	return codes
}

// NeighbourZones returns the metadata for each neighbour in declaration order.
func (zs *ZoneSet) NeighbourZones() []Zone {
	out := make([]Zone, 0, len(zs.Neighbours))
	for _, n := range zs.Neighbours {
		out = append(out, zs.byCode[n])
	}
	return out
}
