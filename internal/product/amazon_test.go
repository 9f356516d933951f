package product

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/37-Inc/goose.gifts-sub000/pkg/logger"
)

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("error")
	if err != nil {
		t.Fatalf("failed to create logger: %v", err)
	}
	return log
}

func TestAmazonSource_UnconfiguredReturnsEmpty(t *testing.T) {
	src := NewAmazonSource(AmazonConfig{}, testLogger(t))

	products, err := src.Search(context.Background(), "funny mug", 10, 50)
	if err != nil {
		t.Fatalf("unconfigured search returned error: %v", err)
	}
	if len(products) != 0 {
		t.Errorf("unconfigured search returned %d products, want 0", len(products))
	}
}

func TestAmazonItem_ToProduct(t *testing.T) {
	raw := `{
		"ASIN": "B0TESTASIN",
		"DetailPageURL": "https://www.amazon.com/dp/B0TESTASIN?tag=partner-20",
		"ItemInfo": {"Title": {"DisplayValue": "Funny Gag Trophy"}},
		"Images": {"Primary": {"Large": {"URL": "https://m.media-amazon.com/x.jpg"}}},
		"Offers": {"Listings": [{"Price": {"Amount": 21.95, "Currency": "USD"}}]},
		"CustomerReviews": {"StarRating": {"Value": 4.6}, "Count": 188}
	}`
	var item amazonItem
	if err := json.Unmarshal([]byte(raw), &item); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	p, ok := item.toProduct()
	if !ok {
		t.Fatal("toProduct rejected a complete item")
	}
	if p.ID != "B0TESTASIN" {
		t.Errorf("ID = %q, want ASIN", p.ID)
	}
	if p.Price != 21.95 || p.Currency != "USD" {
		t.Errorf("price = %v %s, want 21.95 USD", p.Price, p.Currency)
	}
	if p.Rating == nil || *p.Rating != 4.6 {
		t.Errorf("rating = %v, want 4.6", p.Rating)
	}
	if p.ReviewCount == nil || *p.ReviewCount != 188 {
		t.Errorf("review count = %v, want 188", p.ReviewCount)
	}
}

func TestAmazonItem_ToProduct_RejectsImageless(t *testing.T) {
	item := amazonItem{ASIN: "B0NOIMG"}
	if _, ok := item.toProduct(); ok {
		t.Error("toProduct accepted an item without an image")
	}

	var noASIN amazonItem
	noASIN.Images.Primary.Large.URL = "https://m.media-amazon.com/x.jpg"
	if _, ok := noASIN.toProduct(); ok {
		t.Error("toProduct accepted an item without an identity")
	}
}

func TestAmazonSign_Deterministic(t *testing.T) {
	src := NewAmazonSource(AmazonConfig{
		AccessKey:  "AKID",
		SecretKey:  "secret",
		PartnerTag: "tag-20",
		Host:       "webservices.amazon.com",
		Region:     "us-east-1",
	}, testLogger(t))

	headers := http.Header{}
	headers.Set("Content-Type", "application/json; charset=utf-8")
	headers.Set("X-Amz-Target", amazonTargetBase+"SearchItems")

	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	body := []byte(`{"Keywords":"funny mug"}`)

	sig1 := src.sign(http.MethodPost, amazonSearchPath, headers, body, now)
	sig2 := src.sign(http.MethodPost, amazonSearchPath, headers, body, now)
	if sig1 != sig2 {
		t.Error("signature not deterministic for identical inputs")
	}

	if !strings.HasPrefix(sig1, "AWS4-HMAC-SHA256 Credential=AKID/20240501/us-east-1/ProductAdvertisingAPI/aws4_request") {
		t.Errorf("unexpected credential scope: %s", sig1)
	}
	if !strings.Contains(sig1, "SignedHeaders=content-type;host;x-amz-date;x-amz-target") {
		t.Errorf("unexpected signed headers: %s", sig1)
	}

	sig3 := src.sign(http.MethodPost, amazonSearchPath, headers, []byte(`{"Keywords":"other"}`), now)
	if sig1 == sig3 {
		t.Error("signature did not change with payload")
	}
}
