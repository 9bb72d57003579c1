package ingest

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHTTPSource_Fetch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"rows": [
				{"ts": "2024-03-01T10:00:00Z", "nci": 101, "gnb": 1, "value": 12.5},
				{"ts": "2024-03-01T10:15:00Z", "nci": 101, "gnb": 1, "value": 13.0},
				{"ts": "garbage", "nci": 101, "gnb": 1, "value": 14.0}
			]
		}`))
	}))
	defer server.Close()

	src := &HTTPSource{
		URL:           server.URL,
		TimestampPath: "rows.#.ts",
		CellPath:      "rows.#.nci",
		GNBPath:       "rows.#.gnb",
		ValuePath:     "rows.#.value",
		ValueColumn:   ColPRBUtil,
	}

	df, report, err := src.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch() error: %v", err)
	}

	if df.Nrow() != 2 {
		t.Errorf("expected 2 rows, got %d", df.Nrow())
	}
	if report.BadTimestamps != 1 {
		t.Errorf("expected 1 bad timestamp, got %d", report.BadTimestamps)
	}

	names := df.Names()
	want := []string{ColTimestamp, ColCell, ColGNB, ColPRBUtil}
	if len(names) != len(want) {
		t.Fatalf("expected columns %v, got %v", want, names)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("column %d: expected %q, got %q", i, want[i], names[i])
		}
	}
}

func TestHTTPSource_Fetch_UnixTimestamps(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"rows": [{"ts": 1709287200, "nci": 7, "gnb": 2, "value": 0.5}]}`))
	}))
	defer server.Close()

	src := &HTTPSource{
		URL:             server.URL,
		TimestampPath:   "rows.#.ts",
		CellPath:        "rows.#.nci",
		GNBPath:         "rows.#.gnb",
		ValuePath:       "rows.#.value",
		ValueColumn:     ColAvgUE,
		TimestampFormat: "unix",
	}

	df, _, err := src.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch() error: %v", err)
	}
	if df.Nrow() != 1 {
		t.Fatalf("expected 1 row, got %d", df.Nrow())
	}
	if got := df.Records()[1][0]; got != "2024-03-01T10:00:00Z" {
		t.Errorf("expected converted unix timestamp, got %q", got)
	}
}

func TestHTTPSource_Fetch_Errors(t *testing.T) {
	okHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"rows": []}`))
	})

	tests := []struct {
		name    string
		handler http.Handler
		mutate  func(*HTTPSource)
	}{
		{
			name:    "missing URL",
			handler: okHandler,
			mutate:  func(s *HTTPSource) { s.URL = "" },
		},
		{
			name:    "missing paths",
			handler: okHandler,
			mutate:  func(s *HTTPSource) { s.ValuePath = "" },
		},
		{
			name:    "bad timestamp format",
			handler: okHandler,
			mutate:  func(s *HTTPSource) { s.TimestampFormat = "stardate" },
		},
		{
			name: "non-200 status",
			handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "boom", http.StatusInternalServerError)
			}),
			mutate: func(s *HTTPSource) {},
		},
		{
			name: "mismatched column lengths",
			handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`{"ts": ["2024-03-01T10:00:00Z"], "nci": [1, 2], "gnb": [1], "value": [0.5]}`))
			}),
			mutate: func(s *HTTPSource) {
				s.TimestampPath = "ts"
				s.CellPath = "nci"
				s.GNBPath = "gnb"
				s.ValuePath = "value"
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(tt.handler)
			defer server.Close()

			src := &HTTPSource{
				URL:           server.URL,
				TimestampPath: "rows.#.ts",
				CellPath:      "rows.#.nci",
				GNBPath:       "rows.#.gnb",
				ValuePath:     "rows.#.value",
				ValueColumn:   ColAvgUE,
			}
			tt.mutate(src)

			if _, _, err := src.Fetch(context.Background()); err == nil {
				t.Fatal("expected error, got nil")
			}
		})
	}
}
