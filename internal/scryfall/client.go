// Package scryfall is a small client for the Scryfall card API. It covers the
// two lookups the converter needs: by CardMarket product id, and a set plus
// name search.
package scryfall

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/JonMunkholm/cardconv/internal/core"
)

// DefaultBaseURL is the public API endpoint.
const DefaultBaseURL = "https://api.scryfall.com"

// maxErrorBody caps how much of an error response is read for details.
const maxErrorBody = 64 << 10

// ErrNotFound is returned (wrapped) for 404 responses. It matches
// core.ErrNotFound.
var ErrNotFound = core.ErrNotFound

// StatusError reports a non-2xx response other than 404.
type StatusError struct {
	URL        string
	StatusCode int
	Code       string // API error code, e.g. "rate_limited"
	Details    string
}

func (e *StatusError) Error() string {
	if e.Details == "" {
		return fmt.Sprintf("scryfall: HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("scryfall: HTTP %d: %s", e.StatusCode, e.Details)
}

// HTTPStatus returns the response status code.
func (e *StatusError) HTTPStatus() int { return e.StatusCode }

// Options configures a Client. Zero values pick defaults.
type Options struct {
	BaseURL   string
	UserAgent string
	// Timeout bounds each request. Zero means no client-side timeout.
	Timeout time.Duration
	// RequestsPerSecond caps the request rate when positive.
	RequestsPerSecond float64
	HTTPClient        *http.Client
}

// Client implements core.CardSource against the Scryfall API.
type Client struct {
	baseURL   string
	userAgent string
	http      *http.Client
	limiter   *rate.Limiter
}

var _ core.CardSource = (*Client)(nil)

// New creates a Client.
func New(opts Options) *Client {
	base := strings.TrimRight(opts.BaseURL, "/")
	if base == "" {
		base = DefaultBaseURL
	}
	ua := opts.UserAgent
	if ua == "" {
		ua = "cardconv/1.0"
	}
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: opts.Timeout}
	}

	c := &Client{baseURL: base, userAgent: ua, http: hc}
	if opts.RequestsPerSecond > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1)
	}
	return c
}

// card is the subset of the card object the converter reads.
type card struct {
	Name            string   `json:"name"`
	Set             string   `json:"set"`
	CollectorNumber string   `json:"collector_number"`
	Finishes        []string `json:"finishes"`
	ScryfallURI     string   `json:"scryfall_uri"`
}

func (c card) canonical() core.CanonicalCard {
	return core.CanonicalCard{
		Name:              c.Name,
		SetCode:           c.Set,
		CollectorNumber:   c.CollectorNumber,
		AvailableFinishes: c.Finishes,
		ScryfallURI:       c.ScryfallURI,
	}
}

type cardList struct {
	Data []card `json:"data"`
}

type apiError struct {
	Code    string `json:"code"`
	Details string `json:"details"`
}

// LookupByMarketplaceID fetches the card for a CardMarket product id.
func (c *Client) LookupByMarketplaceID(ctx context.Context, id string) (core.CanonicalCard, error) {
	var out card
	u := c.baseURL + "/cards/cardmarket/" + url.PathEscape(id)
	if err := c.getJSON(ctx, u, &out); err != nil {
		return core.CanonicalCard{}, err
	}
	return out.canonical(), nil
}

// Search runs a structured set and name search. No results is ErrNotFound.
func (c *Client) Search(ctx context.Context, q core.SearchQuery) ([]core.CanonicalCard, error) {
	var out cardList
	u := c.baseURL + "/cards/search?" + url.Values{"q": {Expression(q)}}.Encode()
	if err := c.getJSON(ctx, u, &out); err != nil {
		return nil, err
	}
	if len(out.Data) == 0 {
		return nil, fmt.Errorf("search %q: %w", Expression(q), ErrNotFound)
	}
	cards := make([]core.CanonicalCard, len(out.Data))
	for i, d := range out.Data {
		cards[i] = d.canonical()
	}
	return cards, nil
}

// Expression renders a search query in Scryfall syntax:
// e:"<set>" <text>, plus t:token for token searches.
func Expression(q core.SearchQuery) string {
	expr := fmt.Sprintf("e:%q %s", q.SetCode, strings.TrimSpace(q.Text))
	if q.Token {
		expr += " t:token"
	}
	return expr
}

func (c *Client) getJSON(ctx context.Context, u string, dst any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBody))
		return fmt.Errorf("GET %s: %w", u, ErrNotFound)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		se := &StatusError{URL: u, StatusCode: resp.StatusCode}
		var ae apiError
		if body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody)); json.Unmarshal(body, &ae) == nil {
			se.Code, se.Details = ae.Code, ae.Details
		}
		return se
	}

	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("decode response from %s: %w", u, err)
	}
	return nil
}
