package pbscatalog

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/giygas/pbs-authority-api/pbscatalog/entities"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)
	return NewClient(ts.URL, "test-key", 5*time.Second)
}

func TestDecodeDataEnvelope(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		wantRows int
		wantErr  bool
	}{
		{
			name:     "data envelope",
			body:     `{"data": [{"a": 1}, {"a": 2}]}`,
			wantRows: 2,
		},
		{
			name:     "bare array",
			body:     `[{"a": 1}]`,
			wantRows: 1,
		},
		{
			name:     "empty data array",
			body:     `{"data": []}`,
			wantRows: 0,
		},
		{
			name:    "object without data",
			body:    `{"items": []}`,
			wantErr: true,
		},
		{
			name:    "not json",
			body:    `<html>gateway error</html>`,
			wantErr: true,
		},
		{
			name:    "scalar",
			body:    `42`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rows, err := decodeDataEnvelope([]byte(tt.body))
			if tt.wantErr {
				if err == nil {
					t.Fatal("Expected an error, got none")
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if len(rows) != tt.wantRows {
				t.Errorf("Expected %d rows, got %d", tt.wantRows, len(rows))
			}
		})
	}
}

func TestResolveLatestSchedule(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		wantCode int
		wantDate string
		wantErr  error
	}{
		{
			name:     "picks highest code regardless of order",
			body:     `{"data": [{"schedule_code": 3510, "effective_date": "2026-07-01"}, {"schedule_code": 3530, "effective_date": "2026-09-01"}, {"schedule_code": 3520, "effective_date": "2026-08-01"}]}`,
			wantCode: 3530,
			wantDate: "2026-09-01",
		},
		{
			name:     "tie broken by latest effective date",
			body:     `{"data": [{"schedule_code": 3530, "effective_date": "2026-08-01"}, {"schedule_code": 3530, "effective_date": "2026-09-01"}]}`,
			wantCode: 3530,
			wantDate: "2026-09-01",
		},
		{
			name:     "full tie keeps first seen",
			body:     `{"data": [{"schedule_code": 3530, "effective_date": "2026-09-01"}, {"schedule_code": 3530, "effective_date": "2026-09-01"}]}`,
			wantCode: 3530,
			wantDate: "2026-09-01",
		},
		{
			name:    "empty list is a protocol error",
			body:    `{"data": []}`,
			wantErr: ErrUpstreamProtocol,
		},
		{
			name:    "unusable entries are a protocol error",
			body:    `{"data": [{"effective_date": "2026-09-01"}]}`,
			wantErr: ErrUpstreamProtocol,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/schedules" {
					t.Errorf("Expected path /schedules, got %s", r.URL.Path)
				}
				w.Write([]byte(tt.body))
			})

			schedule, err := client.ResolveLatestSchedule(context.Background())
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Expected error %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if schedule.Code != tt.wantCode {
				t.Errorf("Expected schedule code %d, got %d", tt.wantCode, schedule.Code)
			}
			if schedule.EffectiveDate != tt.wantDate {
				t.Errorf("Expected effective date %s, got %s", tt.wantDate, schedule.EffectiveDate)
			}
		})
	}
}

func TestClientErrorClassification(t *testing.T) {
	t.Run("non-200 status maps to unavailable with body", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusForbidden)
			w.Write([]byte("subscription key rejected"))
		})

		_, err := client.ResolveLatestSchedule(context.Background())
		if !errors.Is(err, ErrUpstreamUnavailable) {
			t.Fatalf("Expected ErrUpstreamUnavailable, got %v", err)
		}

		var upstreamErr *UpstreamError
		if !errors.As(err, &upstreamErr) {
			t.Fatal("Expected an *UpstreamError")
		}
		if upstreamErr.Status != http.StatusForbidden {
			t.Errorf("Expected status 403, got %d", upstreamErr.Status)
		}
		if upstreamErr.Body != "subscription key rejected" {
			t.Errorf("Expected response body to be surfaced, got %q", upstreamErr.Body)
		}
	})

	t.Run("malformed payload maps to protocol error", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"data": "not an array"`))
		})

		_, err := client.ResolveLatestSchedule(context.Background())
		if !errors.Is(err, ErrUpstreamProtocol) {
			t.Fatalf("Expected ErrUpstreamProtocol, got %v", err)
		}
	})

	t.Run("slow upstream maps to timeout", func(t *testing.T) {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			time.Sleep(300 * time.Millisecond)
			w.Write([]byte(`{"data": []}`))
		}))
		defer ts.Close()

		client := NewClient(ts.URL, "", 50*time.Millisecond)
		_, err := client.ResolveLatestSchedule(context.Background())
		if !errors.Is(err, ErrUpstreamTimeout) {
			t.Fatalf("Expected ErrUpstreamTimeout, got %v", err)
		}
	})
}

func TestSubscriptionKeyHeader(t *testing.T) {
	tests := []struct {
		name       string
		key        string
		wantHeader string
	}{
		{name: "key set", key: "abc123", wantHeader: "abc123"},
		{name: "public tier", key: "", wantHeader: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotHeader string
			ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotHeader = r.Header.Get("Subscription-Key")
				w.Write([]byte(`{"data": [{"schedule_code": 1, "effective_date": "2026-01-01"}]}`))
			}))
			defer ts.Close()

			client := NewClient(ts.URL, tt.key, time.Second)
			if _, err := client.ResolveLatestSchedule(context.Background()); err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if gotHeader != tt.wantHeader {
				t.Errorf("Expected Subscription-Key %q, got %q", tt.wantHeader, gotHeader)
			}
		})
	}
}

func TestFindItemByCode(t *testing.T) {
	schedule := entities.Schedule{Code: 3530, EffectiveDate: "2026-09-01"}

	tests := []struct {
		name            string
		code            string
		body            string
		wantCode        string
		wantApproximate bool
		wantErr         error
	}{
		{
			name:     "exact match beats order",
			code:     "12119w",
			body:     `{"data": [{"pbs_code": "11198E", "li_drug_name": "Pembrolizumab", "benefit_type_code": "A"}, {"pbs_code": "12119W", "li_drug_name": "Pembrolizumab", "benefit_type_code": "A"}]}`,
			wantCode: "12119W",
		},
		{
			name:            "no exact match falls back to first candidate flagged approximate",
			code:            "99999X",
			body:            `{"data": [{"pbs_code": "11198E", "li_drug_name": "Pembrolizumab", "benefit_type_code": "A"}]}`,
			wantCode:        "11198E",
			wantApproximate: true,
		},
		{
			name:    "zero rows is not found",
			code:    "99999X",
			body:    `{"data": []}`,
			wantErr: ErrNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/items" {
					t.Errorf("Expected path /items, got %s", r.URL.Path)
				}
				if got := r.URL.Query().Get("schedule_code"); got != "3530" {
					t.Errorf("Expected schedule_code 3530, got %s", got)
				}
				w.Write([]byte(tt.body))
			})

			lookup, err := client.FindItemByCode(context.Background(), tt.code, schedule)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Expected error %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if lookup.Item.Code != tt.wantCode {
				t.Errorf("Expected code %s, got %s", tt.wantCode, lookup.Item.Code)
			}
			if lookup.Approximate != tt.wantApproximate {
				t.Errorf("Expected approximate=%v, got %v", tt.wantApproximate, lookup.Approximate)
			}
		})
	}
}

func TestSearchItemsByName(t *testing.T) {
	schedule := entities.Schedule{Code: 3530}
	body := `{"data": [
		{"pbs_code": "12119W", "li_drug_name": "Pembrolizumab", "benefit_type_code": "A"},
		{"pbs_code": "10763L", "li_drug_name": "Bendamustine", "benefit_type_code": "S"},
		{"pbs_code": "11072K", "drug_name": "Nivolumab", "benefit_type_code": "A"}
	]}`

	tests := []struct {
		name      string
		query     string
		wantCodes []string
	}{
		{name: "lowercase fragment", query: "pembro", wantCodes: []string{"12119W"}},
		{name: "uppercase fragment", query: "PEMBRO", wantCodes: []string{"12119W"}},
		{name: "mid-word fragment", query: "embroliz", wantCodes: []string{"12119W"}},
		{name: "alternate drug name field", query: "nivo", wantCodes: []string{"11072K"}},
		{name: "no match is empty not error", query: "rituximab", wantCodes: []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(body))
			})

			items, err := client.SearchItemsByName(context.Background(), tt.query, schedule)
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if len(items) != len(tt.wantCodes) {
				t.Fatalf("Expected %d items, got %d", len(tt.wantCodes), len(items))
			}
			for i, want := range tt.wantCodes {
				if items[i].Code != want {
					t.Errorf("Expected item %d to be %s, got %s", i, want, items[i].Code)
				}
			}
		})
	}
}

func TestMapItemBenefitTypes(t *testing.T) {
	tests := []struct {
		code string
		want entities.BenefitType
	}{
		{"U", entities.BenefitUnrestricted},
		{"S", entities.BenefitStreamlined},
		{"A", entities.BenefitPhoneAuthority},
		{"Z", entities.BenefitUnknown},
		{"", entities.BenefitUnknown},
	}

	for _, tt := range tests {
		got := entities.BenefitTypeFromCode(tt.code)
		if got != tt.want {
			t.Errorf("BenefitTypeFromCode(%q) = %v, want %v", tt.code, got, tt.want)
		}
	}

	if entities.BenefitUnrestricted.RequiresAuthority() {
		t.Error("Unrestricted items must never require an authority application")
	}
	if !entities.BenefitStreamlined.RequiresAuthority() {
		t.Error("Streamlined items require an authority application")
	}
}
