// Package domain models hourly cross-border electricity data for the
// Netherlands bidding zone and its interconnected neighbours.
//
// # Data Sources
//
// Market data comes from the ENTSO-E Transparency Platform REST API:
// physical cross-border flows (document A11), actual generation per
// production type (A75), day-ahead prices (A44), and the day-ahead total
// generation forecast (A71). Weather comes from Open-Meteo, hourly values
// at each zone's centroid, with the archive endpoint serving history and
// the forecast endpoint serving the day ahead. Backfills read cached CSV
// exports of the same pulls instead of the live APIs.
//
// # Zones
//
// Bidding zones are identified by short codes (NL, BE, DE_LU, DK_1, GB,
// NO_2); the ENTSO-E EIC code and centroid coordinates for each live in the
// embedded zone topology in the config package. NL is the home zone; every
// flow record pairs it with one neighbour.
//
// # Time Conventions
//
// Everything is hourly and UTC. Timestamps parsed from upstream exports
// are converted on ingest; naive stamps are taken as UTC. Windows are
// half-open, and sub-hourly generation readings are summed into their hour.
//
// # Wide and Long Layouts
//
// Upstream tables arrive wide (one column per zone or technology) and are
// melted to long records keyed by datetime plus zone or directed pair.
// Model features go the other way: long records pivot into one column per
// variable+zone pair, named by [FeatureColumn] (temperature_2m_nl,
// energy_price_de_lu). The model table joins the pivots on the hour and
// attaches flow labels; forecast hours carry a nil label until the realized
// flow lands.
//
// # Value Conventions
//
// Flow gaps melt to zero: an absent border reading means no scheduled
// exchange. Negative raw flow readings clamp to zero in the melt, so every
// FlowRecord satisfies energy_sent >= 0; predicted flows are clamped
// separately, when the predictions artifact is read back for serving.
// Day-ahead prices are legitimately negative and never clamped. Generation
// technology labels are canonicalized to snake_case ([CanonicalTech]),
// duplicates summed, and total_generation always equals the row sum of the
// stored technology columns.
package domain
