// Package fids retrieves the airport's flight board from the AeroDataBox
// API. The provider caps each request at a 12-hour window, so a full ops
// window is fetched as back-to-back segments, each paged and filtered down
// to the watched-airlines set before reshaping.
package fids

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// ErrProvider marks transport-level failures from the provider. A sync run
// aborts on it; the next cron tick reconciles.
var ErrProvider = errors.New("fids provider error")

// AirportIATA is the hub airport this service watches.
const AirportIATA = "YYZ"

const (
	defaultHost  = "https://aerodatabox.p.rapidapi.com"
	pageLimit    = 300
	maxPages     = 4
	maxKept      = 500
	segmentHours = 12
)

// watchedAirlines holds the two-letter carrier prefixes this service tracks;
// every other flight is dropped at ingestion.
var watchedAirlines = map[string]bool{
	"AF": true, "BG": true, "2T": true, "BW": true, "CA": true, "MU": true,
	"HU": true, "AU": true, "DL": true, "LH": true, "EY": true, "BR": true,
	"F8": true, "AZ": true, "KL": true, "PR": true, "PD": true, "S4": true,
	"SV": true, "LX": true, "TK": true, "TS": true, "VS": true, "WS": true,
}

// Watched reports whether a raw flight number belongs to a watched airline.
func Watched(number string) bool {
	n := normalizeNumber(number)
	if len(n) < 2 {
		return false
	}
	return watchedAirlines[n[:2]]
}

// Record is one reshaped provider flight.
type Record struct {
	Flight     string // formatted with a space, e.g. "WS 816"
	OriginDest string // IATA of the other end
	Sched      string // provider timestamp, local preferred
	Est        string // revised time, falling back to scheduled
	Terminal   string
	Gate       string
}

// Result carries one window's worth of reshaped flights.
type Result struct {
	Arrivals   []Record
	Departures []Record
}

// Config for the provider client.
type Config struct {
	APIKey   string
	Host     string         // defaults to the AeroDataBox host
	Timeout  time.Duration  // defaults to 15s; spec range 5–30s
	Location *time.Location // airport timezone for window formatting
}

// Client fetches and reshapes provider data.
type Client struct {
	apiKey string
	host   string
	loc    *time.Location
	http   *http.Client
}

// NewClient builds a provider client.
func NewClient(cfg Config) *Client {
	host := cfg.Host
	if host == "" {
		host = defaultHost
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	loc := cfg.Location
	if loc == nil {
		loc = time.UTC
	}
	return &Client{
		apiKey: cfg.APIKey,
		host:   host,
		loc:    loc,
		http:   &http.Client{Timeout: timeout},
	}
}

// Provider JSON shapes; only the fields we read.

type apiResponse struct {
	Arrivals   []apiFlight `json:"arrivals"`
	Departures []apiFlight `json:"departures"`
}

type apiFlight struct {
	Number          string      `json:"number"`
	CodeshareStatus string      `json:"codeshareStatus"`
	Movement        apiMovement `json:"movement"`
}

type apiMovement struct {
	Airport struct {
		IATA string `json:"iata"`
	} `json:"airport"`
	ScheduledTime apiTime `json:"scheduledTime"`
	RevisedTime   apiTime `json:"revisedTime"`
	Terminal      string  `json:"terminal"`
	Gate          string  `json:"gate"`
}

type apiTime struct {
	UTC   string `json:"utc"`
	Local string `json:"local"`
}

// FetchWindow retrieves all watched flights in [from, to], deduplicated per
// direction by (flight, scheduled time).
func (c *Client) FetchWindow(ctx context.Context, from, to time.Time) (*Result, error) {
	res := &Result{}
	seenArr := make(map[string]bool)
	seenDep := make(map[string]bool)

	for segStart := from; segStart.Before(to); segStart = segStart.Add(segmentHours * time.Hour) {
		segEnd := segStart.Add(segmentHours * time.Hour)
		if segEnd.After(to) {
			segEnd = to
		}
		if err := c.fetchSegment(ctx, segStart, segEnd, res, seenArr, seenDep); err != nil {
			return nil, err
		}
	}
	return res, nil
}

// fetchSegment pages through one <=12h window, stopping early on a short
// page or once enough watched flights have accumulated.
func (c *Client) fetchSegment(ctx context.Context, from, to time.Time, res *Result, seenArr, seenDep map[string]bool) error {
	for page := 0; page < maxPages; page++ {
		resp, err := c.fetchPage(ctx, from, to, page*pageLimit)
		if err != nil {
			return err
		}

		for _, f := range resp.Arrivals {
			if rec, ok := reshape(f, seenArr); ok {
				res.Arrivals = append(res.Arrivals, rec)
			}
		}
		for _, f := range resp.Departures {
			if rec, ok := reshape(f, seenDep); ok {
				res.Departures = append(res.Departures, rec)
			}
		}

		if len(resp.Arrivals)+len(resp.Departures) < pageLimit {
			break
		}
		if len(res.Arrivals)+len(res.Departures) >= maxKept {
			break
		}
	}
	return nil
}

func (c *Client) fetchPage(ctx context.Context, from, to time.Time, offset int) (*apiResponse, error) {
	url := fmt.Sprintf(
		"%s/flights/airports/iata/%s/%s/%s?direction=Both&withCancelled=true&withCodeshared=true&withLeg=false&limit=%d&offset=%d",
		c.host, AirportIATA,
		from.In(c.loc).Format("2006-01-02T15:04"),
		to.In(c.loc).Format("2006-01-02T15:04"),
		pageLimit, offset,
	)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("X-RapidAPI-Key", c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProvider, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("%w: status %d", ErrProvider, resp.StatusCode)
	}

	var out apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: decode: %v", ErrProvider, err)
	}
	return &out, nil
}

// reshape filters one provider flight and converts it to a Record. seen is
// the per-direction dedupe set keyed by (normalized number, sched).
func reshape(f apiFlight, seen map[string]bool) (Record, bool) {
	if strings.Contains(strings.ToLower(f.CodeshareStatus), "codeshared") {
		return Record{}, false
	}
	if !Watched(f.Number) {
		return Record{}, false
	}

	sched := f.Movement.ScheduledTime.Local
	if sched == "" {
		sched = f.Movement.ScheduledTime.UTC
	}

	dedupeKey := normalizeNumber(f.Number) + "|" + sched
	if seen[dedupeKey] {
		return Record{}, false
	}
	seen[dedupeKey] = true

	est := f.Movement.RevisedTime.Local
	if est == "" {
		est = f.Movement.RevisedTime.UTC
	}
	if est == "" {
		est = sched
	}

	return Record{
		Flight:     FormatNumber(f.Number),
		OriginDest: strings.ToUpper(f.Movement.Airport.IATA),
		Sched:      sched,
		Est:        est,
		Terminal:   f.Movement.Terminal,
		Gate:       f.Movement.Gate,
	}, true
}

// FormatNumber renders a flight number with a single space after the
// two-character carrier code: "WS816" and "ws 816" both become "WS 816".
func FormatNumber(number string) string {
	n := normalizeNumber(number)
	if len(n) <= 2 {
		return n
	}
	return n[:2] + " " + n[2:]
}

func normalizeNumber(number string) string {
	return strings.ToUpper(strings.Join(strings.Fields(number), ""))
}

// stampLayouts covers the provider's timestamp renderings: local with
// offset, UTC with suffix, with and without seconds or the T separator.
var stampLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02T15:04Z07:00",
	"2006-01-02 15:04Z07:00",
	"2006-01-02 15:04Z",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
}

// ParseStamp parses a provider timestamp. Stamps without an offset are read
// as UTC.
func ParseStamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}
	for _, layout := range stampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable timestamp %q", s)
}
