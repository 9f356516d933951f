package product

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"time"

	"github.com/37-Inc/goose.gifts-sub000/internal/model"
	"github.com/37-Inc/goose.gifts-sub000/internal/retry"
	"github.com/37-Inc/goose.gifts-sub000/pkg/logger"
	"github.com/37-Inc/goose.gifts-sub000/pkg/metrics"
)

const (
	serpBaseURL     = "https://serpapi.com/search.json"
	serpHTTPTimeout = 15 * time.Second
)

// priceRe recovers a dollar amount from a result snippet when structured
// price metadata is absent.
var priceRe = regexp.MustCompile(`\$\s?(\d+(?:,\d{3})*(?:\.\d{1,2})?)`)

// listingIDRe extracts the marketplace listing id from a result URL, e.g.
// etsy.com/listing/123456789/funny-mug.
var listingIDRe = regexp.MustCompile(`/listing/(\d+)`)

// WebSearchSource finds marketplace products through a general web search
// scoped to one marketplace domain. It carries no meaningful rate limit, so
// the coordinator fans queries out in parallel when this source is active.
//
// When the API key is empty, Search returns (nil, nil) so generation degrades
// gracefully.
type WebSearchSource struct {
	apiKey string
	domain string
	client *http.Client
	logger *logger.Logger
}

// NewWebSearchSource constructs a WebSearchSource scoped to one marketplace
// domain (e.g. "etsy.com").
func NewWebSearchSource(apiKey, domain string, log *logger.Logger) *WebSearchSource {
	return &WebSearchSource{
		apiKey: apiKey,
		domain: domain,
		client: &http.Client{Timeout: serpHTTPTimeout},
		logger: log,
	}
}

// Name returns the provider tag.
func (s *WebSearchSource) Name() string { return "etsy" }

// Configured reports whether the search API key is present.
func (s *WebSearchSource) Configured() bool { return s.apiKey != "" }

// Search issues one web-search query scoped to the marketplace domain and
// parses product data out of the result metadata. Results without a
// resolvable image are discarded, since downstream display requires one.
func (s *WebSearchSource) Search(ctx context.Context, keywords string, minPrice, maxPrice float64) ([]model.Product, error) {
	if !s.Configured() {
		s.logger.Debug("web search API key not set, skipping search")
		return nil, nil
	}

	start := time.Now()

	params := url.Values{}
	params.Set("engine", "google")
	params.Set("q", fmt.Sprintf("%s site:%s", keywords, s.domain))
	params.Set("num", "20")
	params.Set("api_key", s.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, serpBaseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := s.client.Do(req)
	if err != nil {
		metrics.RecordProviderSearch(s.Name(), "error", time.Since(start).Seconds())
		return nil, fmt.Errorf("web search: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("web search: read body: %w", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		metrics.RecordProviderSearch(s.Name(), "throttled", time.Since(start).Seconds())
		return nil, fmt.Errorf("web search: %w", retry.ErrRateLimited)
	}
	if resp.StatusCode != http.StatusOK {
		metrics.RecordProviderSearch(s.Name(), "error", time.Since(start).Seconds())
		return nil, fmt.Errorf("web search: status %d", resp.StatusCode)
	}

	products, err := parseWebSearchResults(raw, s.Name(), minPrice, maxPrice)
	if err != nil {
		return nil, err
	}

	metrics.RecordProviderSearch(s.Name(), "ok", time.Since(start).Seconds())
	return rankByRelevance(Deduplicate(products)), nil
}

// webSearchResponse mirrors the search API result sections we read.
type webSearchResponse struct {
	ShoppingResults []webShoppingResult `json:"shopping_results"`
	OrganicResults  []webOrganicResult  `json:"organic_results"`
}

type webShoppingResult struct {
	Title          string  `json:"title"`
	Link           string  `json:"link"`
	Price          string  `json:"price"`
	ExtractedPrice float64 `json:"extracted_price"`
	Thumbnail      string  `json:"thumbnail"`
	Rating         float64 `json:"rating"`
	Reviews        int     `json:"reviews"`
}

type webOrganicResult struct {
	Title     string `json:"title"`
	Link      string `json:"link"`
	Snippet   string `json:"snippet"`
	Thumbnail string `json:"thumbnail"`
	RichSnippet struct {
		Top struct {
			DetectedExtensions struct {
				Price  float64 `json:"price"`
				Rating float64 `json:"rating"`
				Reviews int    `json:"reviews"`
			} `json:"detected_extensions"`
		} `json:"top"`
	} `json:"rich_snippet"`
}

// parseWebSearchResults recovers products from a raw search response.
// Shopping results carry structured metadata; organic results fall back to
// regex price extraction from the snippet.
func parseWebSearchResults(raw []byte, source string, minPrice, maxPrice float64) ([]model.Product, error) {
	var parsed webSearchResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("web search: decode: %w", err)
	}

	var out []model.Product

	for _, r := range parsed.ShoppingResults {
		price := r.ExtractedPrice
		if price == 0 {
			price = parsePrice(r.Price)
		}
		p := model.Product{
			ID:           listingIdentity(r.Link),
			Title:        r.Title,
			Price:        price,
			Currency:     "USD",
			ImageURL:     r.Thumbnail,
			AffiliateURL: r.Link,
			Source:       source,
		}
		if r.Rating > 0 {
			rating := r.Rating
			p.Rating = &rating
		}
		if r.Reviews > 0 {
			reviews := r.Reviews
			p.ReviewCount = &reviews
		}
		if keepProduct(p, minPrice, maxPrice) {
			out = append(out, p)
		}
	}

	for _, r := range parsed.OrganicResults {
		price := r.RichSnippet.Top.DetectedExtensions.Price
		if price == 0 {
			price = parsePrice(r.Snippet)
		}
		p := model.Product{
			ID:           listingIdentity(r.Link),
			Title:        r.Title,
			Price:        price,
			Currency:     "USD",
			ImageURL:     r.Thumbnail,
			AffiliateURL: r.Link,
			Source:       source,
		}
		if v := r.RichSnippet.Top.DetectedExtensions.Rating; v > 0 {
			p.Rating = &v
		}
		if n := r.RichSnippet.Top.DetectedExtensions.Reviews; n > 0 {
			p.ReviewCount = &n
		}
		if keepProduct(p, minPrice, maxPrice) {
			out = append(out, p)
		}
	}

	return out, nil
}

// keepProduct filters results lacking an identity or image and enforces the
// price band. A zero price means the price could not be recovered; those are
// kept, since the selection step can still judge them by title.
func keepProduct(p model.Product, minPrice, maxPrice float64) bool {
	if p.ID == "" || p.ImageURL == "" {
		return false
	}
	if p.Price > 0 {
		if minPrice > 0 && p.Price < minPrice {
			return false
		}
		if maxPrice > 0 && p.Price > maxPrice {
			return false
		}
	}
	return true
}

// listingIdentity derives the provider-scoped identity from a result URL:
// the numeric listing id when present, otherwise the URL stripped of query
// noise.
func listingIdentity(link string) string {
	if m := listingIDRe.FindStringSubmatch(link); m != nil {
		return m[1]
	}
	u, err := url.Parse(link)
	if err != nil || u.Host == "" {
		return ""
	}
	return u.Host + u.Path
}

// parsePrice extracts the first dollar amount from free text.
func parsePrice(text string) float64 {
	m := priceRe.FindStringSubmatch(text)
	if m == nil {
		return 0
	}
	cleaned := ""
	for _, ch := range m[1] {
		if ch != ',' {
			cleaned += string(ch)
		}
	}
	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0
	}
	return v
}
