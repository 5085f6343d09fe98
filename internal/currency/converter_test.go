package currency

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"fintrack/internal/cache"
	"fintrack/internal/core"

	"github.com/shopspring/decimal"
)

func rateServer(t *testing.T, hits *atomic.Int32, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(status)
		fmt.Fprint(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestConvert_IdentityMakesNoCall(t *testing.T) {
	var hits atomic.Int32
	srv := rateServer(t, &hits, http.StatusOK, `{"rates":{"EUR":0.5}}`)
	conv := NewHTTPConverter(srv.URL+"/", time.Second)

	for _, pair := range [][2]string{{"USD", "USD"}, {"usd", "USD"}, {"", "EUR"}} {
		got, err := conv.Convert(context.Background(), decimal.NewFromInt(42), pair[0], pair[1])
		if err != nil || !got.Equal(decimal.NewFromInt(42)) {
			t.Errorf("Convert(%s->%s) = %s, %v", pair[0], pair[1], got, err)
		}
	}
	if hits.Load() != 0 {
		t.Errorf("identity conversion made %d calls", hits.Load())
	}
}

func TestConvert_Errors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		want    decimal.Decimal
		wantErr error
	}{
		{"converts", http.StatusOK, `{"rates":{"EUR":0.92,"GBP":0.8}}`, decimal.RequireFromString("92"), nil},
		{"missing target", http.StatusOK, `{"rates":{"GBP":0.8}}`, decimal.Zero, core.ErrRateUnavailable},
		{"bad status", http.StatusBadGateway, `oops`, decimal.Zero, core.ErrConversionService},
		{"bad json", http.StatusOK, `{"rates":`, decimal.Zero, core.ErrConversionService},
		{"no table", http.StatusOK, `{}`, decimal.Zero, core.ErrConversionService},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var hits atomic.Int32
			srv := rateServer(t, &hits, tt.status, tt.body)
			conv := NewHTTPConverter(srv.URL+"/", time.Second)

			got, err := conv.Convert(context.Background(), decimal.NewFromInt(100), "USD", "EUR")
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil || !got.Equal(tt.want) {
				t.Errorf("Convert = %s, %v; want %s", got, err, tt.want)
			}
		})
	}
}

func TestConvert_TransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	conv := NewHTTPConverter(url+"/", time.Second)
	if _, err := conv.Convert(context.Background(), decimal.NewFromInt(1), "USD", "EUR"); !errors.Is(err, core.ErrConversionService) {
		t.Fatalf("error = %v, want ErrConversionService", err)
	}
}

func TestConvert_RequestsBaseCurrencyPath(t *testing.T) {
	var path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		fmt.Fprint(w, `{"rates":{"USD":1.1}}`)
	}))
	defer srv.Close()

	conv := NewHTTPConverter(srv.URL+"/latest/", time.Second)
	if _, err := conv.Convert(context.Background(), decimal.NewFromInt(1), "eur", "usd"); err != nil {
		t.Fatalf("Convert: %v", err)
	}
	if path != "/latest/EUR" {
		t.Errorf("path = %q, want /latest/EUR", path)
	}
}

func TestConvert_CachesTablesPerBase(t *testing.T) {
	var hits atomic.Int32
	srv := rateServer(t, &hits, http.StatusOK, `{"rates":{"EUR":2}}`)
	conv := NewHTTPConverter(srv.URL+"/", time.Second, WithCache(cache.NewLRUCache[RateTable](8, time.Hour)))

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := conv.Convert(context.Background(), decimal.NewFromInt(1), "USD", "EUR"); err != nil {
				t.Errorf("Convert: %v", err)
			}
		}()
	}
	wg.Wait()

	if _, err := conv.Convert(context.Background(), decimal.NewFromInt(1), "USD", "EUR"); err != nil {
		t.Fatalf("Convert: %v", err)
	}
	// concurrent callers may each miss before the first fill lands, but
	// singleflight collapses them into far fewer fetches than callers
	if n := hits.Load(); n < 1 || n > 10 {
		t.Errorf("fetches = %d", n)
	}
	before := hits.Load()
	_, _ = conv.Convert(context.Background(), decimal.NewFromInt(1), "USD", "EUR")
	if hits.Load() != before {
		t.Errorf("cached table refetched")
	}
}
