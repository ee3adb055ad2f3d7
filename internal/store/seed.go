package store

import "context"

// usAirportSeed is the default US airport set for region classification,
// loaded only when the us_airport_codes table is empty. Operators can extend
// the table directly; the sync engine re-reads it every run.
var usAirportSeed = []string{
	"ATL", "AUS", "BDL", "BNA", "BOS", "BUF", "BWI", "CLE", "CLT", "CMH",
	"CVG", "DAL", "DCA", "DEN", "DFW", "DTW", "EWR", "FLL", "HNL", "HOU",
	"IAD", "IAH", "IND", "JAX", "JFK", "LAS", "LAX", "LGA", "MCI", "MCO",
	"MDW", "MEM", "MIA", "MKE", "MSP", "MSY", "OAK", "OGG", "OMA", "ONT",
	"ORD", "PBI", "PDX", "PHL", "PHX", "PIT", "RDU", "RSW", "SAN", "SAT",
	"SEA", "SFO", "SJC", "SLC", "SMF", "SNA", "STL", "TPA",
}

// SeedReferenceData loads the embedded US airport set on first run.
func SeedReferenceData(ctx context.Context, s Store) error {
	existing, err := s.USAirports(ctx)
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		return nil
	}
	return s.AddUSAirports(ctx, usAirportSeed)
}
