package entsoe

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"sort"
	"time"

	"github.com/couchcryptid/crossflow/internal/domain"
)

// DefaultBaseURL is the production Transparency Platform endpoint.
const DefaultBaseURL = "https://web-api.tp.entsoe.eu/api"

// ErrNoData marks a request the platform acknowledged with "no matching
// data found": the interval is valid but nothing has been published for it
// yet.
var ErrNoData = errors.New("no matching data")

const (
	// requestTimeFormat is the periodStart/periodEnd layout, always UTC.
	requestTimeFormat = "200601021504"
	// intervalTimeFormat is the layout of period boundaries in responses.
	intervalTimeFormat = "2006-01-02T15:04Z07:00"
)

const (
	docPhysicalFlows      = "A11"
	docDayAheadPrices     = "A44"
	docGenerationForecast = "A71"
	docActualGeneration   = "A75"

	processDayAhead = "A01"
	processRealised = "A16"
)

const (
	kindAggregated  = "Actual Aggregated"
	kindConsumption = "Actual Consumption"
)

// curveForwardFill is the "variable sized block" curve type: positions with
// a value equal to the previous position are omitted and must be filled
// forward. Day-ahead price documents use it.
const curveForwardFill = "A03"

// psrNames maps production source registry codes to the display names the
// platform uses in its own exports.
var psrNames = map[string]string{
	"B01": "Biomass",
	"B02": "Fossil Brown coal/Lignite",
	"B03": "Fossil Coal-derived gas",
	"B04": "Fossil Gas",
	"B05": "Fossil Hard coal",
	"B06": "Fossil Oil",
	"B07": "Fossil Oil shale",
	"B08": "Fossil Peat",
	"B09": "Geothermal",
	"B10": "Hydro Pumped Storage",
	"B11": "Hydro Run-of-river and poundage",
	"B12": "Hydro Water Reservoir",
	"B13": "Marine",
	"B14": "Nuclear",
	"B15": "Other renewable",
	"B16": "Solar",
	"B17": "Waste",
	"B18": "Wind Offshore",
	"B19": "Wind Onshore",
	"B20": "Other",
}

// Zone names a bidding zone for requests: the short code used in our
// tables and the EIC area code the API expects.
type Zone struct {
	Code string
	EIC  string
}

// Client pulls market documents from the ENTSO-E Transparency Platform
// RESTful API.
type Client struct {
	token      string
	httpClient *http.Client
	baseURL    string
	logger     *slog.Logger
}

// NewClient creates a Transparency Platform client. An empty baseURL
// selects the production endpoint.
func NewClient(token, baseURL string, timeout time.Duration, logger *slog.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		token: token,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL: baseURL,
		logger:  logger,
	}
}

// PhysicalFlows returns the realized cross-border flow from zone out to
// zone in, resampled to hourly means where the border publishes sub-hourly
// points.
func (c *Client) PhysicalFlows(ctx context.Context, out, in Zone, start, end time.Time) (domain.Series, error) {
	params := url.Values{
		"documentType": {docPhysicalFlows},
		"out_Domain":   {out.EIC},
		"in_Domain":    {in.EIC},
	}

	body, err := c.doRequest(ctx, params, start, end, "physical flows")
	if err != nil {
		return domain.Series{}, err
	}

	var doc publicationDocument
	if err := decodeDocument(body, &doc); err != nil {
		return domain.Series{}, err
	}

	var times []time.Time
	var values []float64
	for _, ts := range doc.TimeSeries {
		t, v, err := flattenPeriods(ts.Periods, ts.CurveType, func(pt seriesPoint) float64 { return pt.Quantity })
		if err != nil {
			return domain.Series{}, err
		}
		times = append(times, t...)
		values = append(values, v...)
	}

	c.logger.Debug("fetched physical flows", "out", out.Code, "in", in.Code, "points", len(times))
	return hourlyMean(times, values), nil
}

// DayAheadPrices returns the day-ahead auction price series for a zone.
// Price documents are addressed with the same EIC on both sides.
func (c *Client) DayAheadPrices(ctx context.Context, zone Zone, start, end time.Time) (domain.PriceTable, error) {
	params := url.Values{
		"documentType": {docDayAheadPrices},
		"in_Domain":    {zone.EIC},
		"out_Domain":   {zone.EIC},
	}

	body, err := c.doRequest(ctx, params, start, end, "day-ahead prices")
	if err != nil {
		return domain.PriceTable{}, err
	}

	var doc publicationDocument
	if err := decodeDocument(body, &doc); err != nil {
		return domain.PriceTable{}, err
	}

	var times []time.Time
	var values []float64
	for _, ts := range doc.TimeSeries {
		t, v, err := flattenPeriods(ts.Periods, ts.CurveType, func(pt seriesPoint) float64 { return pt.Price })
		if err != nil {
			return domain.PriceTable{}, err
		}
		times = append(times, t...)
		values = append(values, v...)
	}

	c.logger.Debug("fetched day-ahead prices", "zone", zone.Code, "points", len(times))
	s := hourlyMean(times, values)
	return domain.PriceTable{Times: s.Times, Prices: s.Values}, nil
}

// ActualGeneration returns the realized per-technology generation mix for a
// zone at the platform's native resolution. Columns carry the technology
// display name and the aggregation kind; consumption columns are kept here
// so the normalizer drops them in one place.
func (c *Client) ActualGeneration(ctx context.Context, zone Zone, start, end time.Time) (domain.GenerationTable, error) {
	params := url.Values{
		"documentType": {docActualGeneration},
		"processType":  {processRealised},
		"in_Domain":    {zone.EIC},
	}

	body, err := c.doRequest(ctx, params, start, end, "actual generation")
	if err != nil {
		return domain.GenerationTable{}, err
	}

	var doc glDocument
	if err := decodeDocument(body, &doc); err != nil {
		return domain.GenerationTable{}, err
	}

	type columnKey struct {
		tech string
		kind string
	}
	cells := make(map[columnKey]map[time.Time]float64)
	stampSet := make(map[time.Time]bool)

	for _, ts := range doc.TimeSeries {
		kind := kindAggregated
		if ts.OutBiddingZone != "" {
			kind = kindConsumption
		}
		key := columnKey{tech: psrName(ts.PSRType.Code), kind: kind}
		if cells[key] == nil {
			cells[key] = make(map[time.Time]float64)
		}
		t, v, err := flattenPeriods(ts.Periods, ts.CurveType, func(pt seriesPoint) float64 { return pt.Quantity })
		if err != nil {
			return domain.GenerationTable{}, err
		}
		for i, stamp := range t {
			cells[key][stamp] = v[i]
			stampSet[stamp] = true
		}
	}

	stamps := make([]time.Time, 0, len(stampSet))
	for ts := range stampSet {
		stamps = append(stamps, ts)
	}
	sort.Slice(stamps, func(i, j int) bool { return stamps[i].Before(stamps[j]) })

	keys := make([]columnKey, 0, len(cells))
	for k := range cells {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].tech != keys[j].tech {
			return keys[i].tech < keys[j].tech
		}
		return keys[i].kind < keys[j].kind
	})

	table := domain.GenerationTable{Times: stamps}
	for _, k := range keys {
		col := domain.GenerationColumn{Tech: k.tech, Kind: k.kind, Values: make([]float64, len(stamps))}
		for i, ts := range stamps {
			v, ok := cells[k][ts]
			if !ok {
				v = math.NaN()
			}
			col.Values[i] = v
		}
		table.Columns = append(table.Columns, col)
	}

	c.logger.Debug("fetched actual generation", "zone", zone.Code, "columns", len(table.Columns), "rows", len(stamps))
	return table, nil
}

// GenerationForecast returns the day-ahead total scheduled generation for a
// zone, resampled to hourly sums so forecast totals stay on the scale of
// normalized actuals.
func (c *Client) GenerationForecast(ctx context.Context, zone Zone, start, end time.Time) (domain.Series, error) {
	params := url.Values{
		"documentType": {docGenerationForecast},
		"processType":  {processDayAhead},
		"in_Domain":    {zone.EIC},
	}

	body, err := c.doRequest(ctx, params, start, end, "generation forecast")
	if err != nil {
		return domain.Series{}, err
	}

	var doc glDocument
	if err := decodeDocument(body, &doc); err != nil {
		return domain.Series{}, err
	}

	var times []time.Time
	var values []float64
	for _, ts := range doc.TimeSeries {
		t, v, err := flattenPeriods(ts.Periods, ts.CurveType, func(pt seriesPoint) float64 { return pt.Quantity })
		if err != nil {
			return domain.Series{}, err
		}
		times = append(times, t...)
		values = append(values, v...)
	}

	c.logger.Debug("fetched generation forecast", "zone", zone.Code, "points", len(times))
	return hourlySum(times, values), nil
}

func (c *Client) doRequest(ctx context.Context, params url.Values, start, end time.Time, source string) ([]byte, error) {
	params.Set("securityToken", c.token)
	params.Set("periodStart", start.UTC().Format(requestTimeFormat))
	params.Set("periodEnd", end.UTC().Format(requestTimeFormat))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s request: %w", source, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s response: %w", source, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("entsoe API error: status %d: %s", resp.StatusCode, body)
	}
	return body, nil
}

// decodeDocument unmarshals an API payload into target. A payload whose
// root is an acknowledgement signals an empty result set and maps to
// ErrNoData.
func decodeDocument(body []byte, target any) error {
	err := xml.Unmarshal(body, target)
	if err == nil {
		return nil
	}
	var ack acknowledgementDocument
	if ackErr := xml.Unmarshal(body, &ack); ackErr == nil {
		return fmt.Errorf("%w: %s", ErrNoData, ack.Reason.Text)
	}
	return fmt.Errorf("decode response: %w", err)
}

// flattenPeriods expands every period into parallel time/value slices,
// drawing point values with pick.
func flattenPeriods(periods []seriesPeriod, curveType string, pick func(seriesPoint) float64) ([]time.Time, []float64, error) {
	var times []time.Time
	var values []float64
	for _, p := range periods {
		t, v, err := expandPeriod(p, curveType, pick)
		if err != nil {
			return nil, nil, err
		}
		times = append(times, t...)
		values = append(values, v...)
	}
	return times, values, nil
}

// expandPeriod resolves a period's points to absolute UTC timestamps. A
// point's time is the interval start plus (position-1) resolution steps.
// Variable-sized-block periods omit positions whose value repeats the
// previous one; those are reconstructed across the full interval.
func expandPeriod(p seriesPeriod, curveType string, pick func(seriesPoint) float64) ([]time.Time, []float64, error) {
	start, err := time.Parse(intervalTimeFormat, p.TimeInterval.Start)
	if err != nil {
		return nil, nil, fmt.Errorf("parse interval start %q: %w", p.TimeInterval.Start, err)
	}
	start = start.UTC()
	step, err := resolutionStep(p.Resolution)
	if err != nil {
		return nil, nil, err
	}

	if curveType != curveForwardFill {
		times := make([]time.Time, len(p.Points))
		values := make([]float64, len(p.Points))
		for i, pt := range p.Points {
			times[i] = start.Add(time.Duration(pt.Position-1) * step)
			values[i] = pick(pt)
		}
		return times, values, nil
	}

	end, err := time.Parse(intervalTimeFormat, p.TimeInterval.End)
	if err != nil {
		return nil, nil, fmt.Errorf("parse interval end %q: %w", p.TimeInterval.End, err)
	}
	n := int(end.UTC().Sub(start) / step)
	if n <= 0 || len(p.Points) == 0 {
		return nil, nil, nil
	}

	byPosition := make(map[int]float64, len(p.Points))
	for _, pt := range p.Points {
		byPosition[pt.Position] = pick(pt)
	}

	var times []time.Time
	var values []float64
	var last float64
	seen := false
	for pos := 1; pos <= n; pos++ {
		if v, ok := byPosition[pos]; ok {
			last = v
			seen = true
		}
		if !seen {
			continue
		}
		times = append(times, start.Add(time.Duration(pos-1)*step))
		values = append(values, last)
	}
	return times, values, nil
}

// psrName resolves a production source registry code to its display name.
// Unknown codes pass through unchanged so new technologies surface in the
// output instead of vanishing.
func psrName(code string) string {
	if name, ok := psrNames[code]; ok {
		return name
	}
	return code
}

// resolutionStep maps an ISO-8601 period resolution to the step between
// consecutive point positions.
func resolutionStep(resolution string) (time.Duration, error) {
	switch resolution {
	case "PT60M":
		return time.Hour, nil
	case "PT30M":
		return 30 * time.Minute, nil
	case "PT15M":
		return 15 * time.Minute, nil
	}
	return 0, fmt.Errorf("unsupported resolution %q", resolution)
}

func bucketByHour(times []time.Time, values []float64) ([]time.Time, map[time.Time]float64, map[time.Time]int) {
	sums := make(map[time.Time]float64, len(times))
	counts := make(map[time.Time]int, len(times))
	for i, ts := range times {
		h := ts.Truncate(time.Hour)
		sums[h] += values[i]
		counts[h]++
	}
	hours := make([]time.Time, 0, len(sums))
	for h := range sums {
		hours = append(hours, h)
	}
	sort.Slice(hours, func(i, j int) bool { return hours[i].Before(hours[j]) })
	return hours, sums, counts
}

// hourlyMean resamples points onto hour boundaries, averaging sub-hourly
// readings. Hourly input passes through unchanged.
func hourlyMean(times []time.Time, values []float64) domain.Series {
	hours, sums, counts := bucketByHour(times, values)
	s := domain.Series{Times: hours, Values: make([]float64, len(hours))}
	for i, h := range hours {
		s.Values[i] = sums[h] / float64(counts[h])
	}
	return s
}

// hourlySum resamples points onto hour boundaries, summing sub-hourly
// readings the same way per-technology actuals are normalized.
func hourlySum(times []time.Time, values []float64) domain.Series {
	hours, sums, _ := bucketByHour(times, values)
	s := domain.Series{Times: hours, Values: make([]float64, len(hours))}
	for i, h := range hours {
		s.Values[i] = sums[h]
	}
	return s
}

// Transparency Platform document types.

type publicationDocument struct {
	XMLName    xml.Name            `xml:"Publication_MarketDocument"`
	TimeSeries []publicationSeries `xml:"TimeSeries"`
}

type publicationSeries struct {
	InDomain  string         `xml:"in_Domain.mRID"`
	OutDomain string         `xml:"out_Domain.mRID"`
	CurveType string         `xml:"curveType"`
	Periods   []seriesPeriod `xml:"Period"`
}

type glDocument struct {
	XMLName    xml.Name   `xml:"GL_MarketDocument"`
	TimeSeries []glSeries `xml:"TimeSeries"`
}

type glSeries struct {
	PSRType        marketPSRType  `xml:"MktPSRType"`
	InBiddingZone  string         `xml:"inBiddingZone_Domain.mRID"`
	OutBiddingZone string         `xml:"outBiddingZone_Domain.mRID"`
	CurveType      string         `xml:"curveType"`
	Periods        []seriesPeriod `xml:"Period"`
}

type marketPSRType struct {
	Code string `xml:"psrType"`
}

type seriesPeriod struct {
	TimeInterval periodInterval `xml:"timeInterval"`
	Resolution   string         `xml:"resolution"`
	Points       []seriesPoint  `xml:"Point"`
}

type periodInterval struct {
	Start string `xml:"start"`
	End   string `xml:"end"`
}

type seriesPoint struct {
	Position int     `xml:"position"`
	Quantity float64 `xml:"quantity"`
	Price    float64 `xml:"price.amount"`
}

type acknowledgementDocument struct {
	XMLName xml.Name       `xml:"Acknowledgement_MarketDocument"`
	Reason  documentReason `xml:"Reason"`
}

type documentReason struct {
	Code string `xml:"code"`
	Text string `xml:"text"`
}
