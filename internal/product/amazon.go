package product

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/37-Inc/goose.gifts-sub000/internal/model"
	"github.com/37-Inc/goose.gifts-sub000/internal/retry"
	"github.com/37-Inc/goose.gifts-sub000/pkg/logger"
	"github.com/37-Inc/goose.gifts-sub000/pkg/metrics"
)

const (
	amazonService    = "ProductAdvertisingAPI"
	amazonSearchPath = "/paapi5/searchitems"
	amazonItemsPath  = "/paapi5/getitems"
	amazonTargetBase = "com.amazon.paapi5.v1.ProductAdvertisingAPIv1."

	amazonHTTPTimeout = 15 * time.Second
	amazonPageSize    = 10
)

// amazonCategories are the fixed search indices used by the multi-category
// fan-out. "All" is always the first, so single-category mode searches it
// alone.
var amazonCategories = []string{"All", "ToysAndGames", "HomeAndKitchen", "OfficeProducts"}

var amazonSearchResources = []string{
	"ItemInfo.Title",
	"Images.Primary.Large",
	"Offers.Listings.Price",
	"CustomerReviews.StarRating",
	"CustomerReviews.Count",
}

// AmazonSource searches the Amazon Product Advertising API with signed
// requests. The API enforces a strict requests-per-second ceiling: every call
// goes through a retrying caller, and the coordinator runs searches
// sequentially when this source is active.
//
// When AccessKey, SecretKey or PartnerTag is empty, Search returns (nil, nil)
// so generation degrades gracefully.
type AmazonSource struct {
	accessKey     string
	secretKey     string
	partnerTag    string
	host          string
	region        string
	multiCategory bool
	caller        retry.Caller
	client        *http.Client
	logger        *logger.Logger
}

// AmazonConfig holds the credentials and behavior flags for AmazonSource.
type AmazonConfig struct {
	AccessKey     string
	SecretKey     string
	PartnerTag    string
	Host          string
	Region        string
	MultiCategory bool
	MaxAttempts   int
}

// NewAmazonSource constructs an AmazonSource with a shared HTTP client.
func NewAmazonSource(cfg AmazonConfig, log *logger.Logger) *AmazonSource {
	return &AmazonSource{
		accessKey:     cfg.AccessKey,
		secretKey:     cfg.SecretKey,
		partnerTag:    cfg.PartnerTag,
		host:          cfg.Host,
		region:        cfg.Region,
		multiCategory: cfg.MultiCategory,
		caller:        retry.New(retry.WithMaxAttempts(cfg.MaxAttempts)),
		client:        &http.Client{Timeout: amazonHTTPTimeout},
		logger:        log,
	}
}

// Name returns the provider tag.
func (s *AmazonSource) Name() string { return "amazon" }

// Configured reports whether credentials are present.
func (s *AmazonSource) Configured() bool {
	return s.accessKey != "" && s.secretKey != "" && s.partnerTag != ""
}

// Search queries the API for one keyword phrase. With the multi-category flag
// on, the same keywords are searched across each fixed category and the
// results merged before scoring.
func (s *AmazonSource) Search(ctx context.Context, keywords string, minPrice, maxPrice float64) ([]model.Product, error) {
	if !s.Configured() {
		s.logger.Debug("amazon credentials not set, skipping search")
		return nil, nil
	}

	categories := amazonCategories[:1]
	if s.multiCategory {
		categories = amazonCategories
	}

	var merged []model.Product
	for _, category := range categories {
		items, err := retry.Do(ctx, s.caller, func(ctx context.Context) ([]amazonItem, error) {
			return s.searchItems(ctx, keywords, category, minPrice, maxPrice)
		})
		if err != nil {
			// Exhausted retries count as an empty contribution, not a
			// failure: the other categories may still produce results.
			s.logger.Warn("amazon search failed",
				zap.String("keywords", keywords),
				zap.String("category", category),
				zap.Error(err),
			)
			continue
		}
		for _, item := range items {
			if p, ok := item.toProduct(); ok {
				merged = append(merged, p)
			}
		}
	}

	return rankByRelevance(Deduplicate(merged)), nil
}

// Lookup fetches authoritative data for up to ten item IDs. Used by the
// enrichment pass.
func (s *AmazonSource) Lookup(ctx context.Context, ids []string) ([]model.Product, error) {
	if !s.Configured() || len(ids) == 0 {
		return nil, nil
	}
	if len(ids) > amazonPageSize {
		ids = ids[:amazonPageSize]
	}

	payload := map[string]any{
		"ItemIds":     ids,
		"PartnerTag":  s.partnerTag,
		"PartnerType": "Associates",
		"Resources":   amazonSearchResources,
	}

	items, err := retry.Do(ctx, s.caller, func(ctx context.Context) ([]amazonItem, error) {
		return s.call(ctx, amazonItemsPath, "GetItems", payload)
	})
	if err != nil {
		return nil, err
	}

	out := make([]model.Product, 0, len(items))
	for _, item := range items {
		if p, ok := item.toProduct(); ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *AmazonSource) searchItems(ctx context.Context, keywords, category string, minPrice, maxPrice float64) ([]amazonItem, error) {
	payload := map[string]any{
		"Keywords":    keywords,
		"SearchIndex": category,
		"ItemCount":   amazonPageSize,
		"PartnerTag":  s.partnerTag,
		"PartnerType": "Associates",
		"Resources":   amazonSearchResources,
	}
	// The API takes the price band in cents.
	if minPrice > 0 {
		payload["MinPrice"] = int(minPrice * 100)
	}
	if maxPrice > 0 {
		payload["MaxPrice"] = int(maxPrice * 100)
	}

	return s.call(ctx, amazonSearchPath, "SearchItems", payload)
}

func (s *AmazonSource) call(ctx context.Context, path, operation string, payload map[string]any) ([]amazonItem, error) {
	start := time.Now()

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", operation, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, "https://"+s.host+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	req.Header.Set("X-Amz-Target", amazonTargetBase+operation)
	req.Header.Set("X-Amz-Date", now.Format("20060102T150405Z"))
	req.Header.Set("Authorization", s.sign(req.Method, path, req.Header, body, now))

	resp, err := s.client.Do(req)
	if err != nil {
		metrics.RecordProviderSearch(s.Name(), "error", time.Since(start).Seconds())
		return nil, fmt.Errorf("amazon %s: %w", operation, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("amazon %s: read body: %w", operation, err)
	}

	if resp.StatusCode == http.StatusTooManyRequests || bytes.Contains(raw, []byte("TooManyRequests")) {
		metrics.ProviderRetriesTotal.WithLabelValues(s.Name()).Inc()
		metrics.RecordProviderSearch(s.Name(), "throttled", time.Since(start).Seconds())
		return nil, fmt.Errorf("amazon %s: %w", operation, retry.ErrRateLimited)
	}
	if resp.StatusCode != http.StatusOK {
		metrics.RecordProviderSearch(s.Name(), "error", time.Since(start).Seconds())
		return nil, fmt.Errorf("amazon %s: status %d: %s", operation, resp.StatusCode, truncate(string(raw), 200))
	}

	var parsed amazonResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("amazon %s: decode: %w", operation, err)
	}

	metrics.RecordProviderSearch(s.Name(), "ok", time.Since(start).Seconds())

	if len(parsed.SearchResult.Items) > 0 {
		return parsed.SearchResult.Items, nil
	}
	return parsed.ItemsResult.Items, nil
}

// sign computes the AWS-v4 style keyed-hash signature over the canonical
// request string and returns the Authorization header value.
func (s *AmazonSource) sign(method, path string, headers http.Header, body []byte, now time.Time) string {
	amzDate := now.Format("20060102T150405Z")
	dateStamp := now.Format("20060102")

	canonicalHeaders := "content-type:" + headers.Get("Content-Type") + "\n" +
		"host:" + s.host + "\n" +
		"x-amz-date:" + amzDate + "\n" +
		"x-amz-target:" + headers.Get("X-Amz-Target") + "\n"
	signedHeaders := "content-type;host;x-amz-date;x-amz-target"

	payloadHash := sha256.Sum256(body)
	canonicalRequest := strings.Join([]string{
		method,
		path,
		"", // no query string
		canonicalHeaders,
		signedHeaders,
		hex.EncodeToString(payloadHash[:]),
	}, "\n")

	scope := strings.Join([]string{dateStamp, s.region, amazonService, "aws4_request"}, "/")
	requestHash := sha256.Sum256([]byte(canonicalRequest))
	stringToSign := strings.Join([]string{
		"AWS4-HMAC-SHA256",
		amzDate,
		scope,
		hex.EncodeToString(requestHash[:]),
	}, "\n")

	key := hmacSHA256([]byte("AWS4"+s.secretKey), dateStamp)
	key = hmacSHA256(key, s.region)
	key = hmacSHA256(key, amazonService)
	key = hmacSHA256(key, "aws4_request")
	signature := hex.EncodeToString(hmacSHA256(key, stringToSign))

	return fmt.Sprintf("AWS4-HMAC-SHA256 Credential=%s/%s, SignedHeaders=%s, Signature=%s",
		s.accessKey, scope, signedHeaders, signature)
}

func hmacSHA256(key []byte, data string) []byte {
	h := hmac.New(sha256.New, key)
	h.Write([]byte(data))
	return h.Sum(nil)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// amazonResponse mirrors the top-level PA-API JSON response for both
// SearchItems and GetItems.
type amazonResponse struct {
	SearchResult struct {
		Items []amazonItem `json:"Items"`
	} `json:"SearchResult"`
	ItemsResult struct {
		Items []amazonItem `json:"Items"`
	} `json:"ItemsResult"`
}

// amazonItem mirrors a single PA-API item.
type amazonItem struct {
	ASIN          string `json:"ASIN"`
	DetailPageURL string `json:"DetailPageURL"`
	ItemInfo      struct {
		Title struct {
			DisplayValue string `json:"DisplayValue"`
		} `json:"Title"`
	} `json:"ItemInfo"`
	Images struct {
		Primary struct {
			Large struct {
				URL string `json:"URL"`
			} `json:"Large"`
		} `json:"Primary"`
	} `json:"Images"`
	Offers struct {
		Listings []struct {
			Price struct {
				Amount   float64 `json:"Amount"`
				Currency string  `json:"Currency"`
			} `json:"Price"`
		} `json:"Listings"`
	} `json:"Offers"`
	CustomerReviews struct {
		StarRating struct {
			Value float64 `json:"Value"`
		} `json:"StarRating"`
		Count int `json:"Count"`
	} `json:"CustomerReviews"`
}

// toProduct converts an item, rejecting anything without an identity or a
// displayable image.
func (item amazonItem) toProduct() (model.Product, bool) {
	if item.ASIN == "" || item.Images.Primary.Large.URL == "" {
		return model.Product{}, false
	}

	p := model.Product{
		ID:           item.ASIN,
		Title:        item.ItemInfo.Title.DisplayValue,
		ImageURL:     item.Images.Primary.Large.URL,
		AffiliateURL: item.DetailPageURL,
		Source:       "amazon",
		Currency:     "USD",
	}
	if len(item.Offers.Listings) > 0 {
		p.Price = item.Offers.Listings[0].Price.Amount
		if c := item.Offers.Listings[0].Price.Currency; c != "" {
			p.Currency = c
		}
	}
	if v := item.CustomerReviews.StarRating.Value; v > 0 {
		p.Rating = &v
	}
	if n := item.CustomerReviews.Count; n > 0 {
		p.ReviewCount = &n
	}
	return p, true
}
