package storage

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/skalibog/mprofile/internal/config"
	"github.com/skalibog/mprofile/pkg/models"
)

// fakeInflux отвечает на /health, /api/v2/query и /api/v2/write
type fakeInflux struct {
	mu      sync.Mutex
	csv     string
	queries []string
	writes  []string
}

func (f *fakeInflux) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		io.WriteString(w, `{"name":"influxdb","message":"ready for queries and writes","status":"pass","checks":[],"version":"v2.7.0","commit":"test"}`)
	})
	mux.HandleFunc("/api/v2/query", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Query string `json:"query"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)

		f.mu.Lock()
		f.queries = append(f.queries, body.Query)
		csv := f.csv
		f.mu.Unlock()

		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		io.WriteString(w, csv)
	})
	mux.HandleFunc("/api/v2/write", func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		f.mu.Lock()
		f.writes = append(f.writes, string(data))
		f.mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	})
	return mux
}

func (f *fakeInflux) recorded() ([]string, []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.queries...), append([]string(nil), f.writes...)
}

func openTestInflux(t *testing.T, csv string) (*InfluxDBStorage, *fakeInflux) {
	t.Helper()
	f := &fakeInflux{csv: csv}
	srv := httptest.NewServer(f.handler())
	t.Cleanup(srv.Close)

	s, err := NewInfluxDBStorage(config.StorageConfig{
		URL:          srv.URL,
		Token:        "token",
		Organization: "org",
		Bucket:       "tpo",
	})
	if err != nil {
		t.Fatalf("NewInfluxDBStorage: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s, f
}

const candlesCSV = "#datatype,string,long,dateTime:RFC3339,string,string,double,double,double,double,double,long\n" +
	"#group,false,false,false,true,true,false,false,false,false,false,false\n" +
	"#default,_result,,,,,,,,,,\n" +
	",result,table,_time,symbol,interval,open,high,low,close,volume,close_time\n" +
	",,0,2024-03-01T00:00:00Z,BTCUSDT,30m,100,101,99,100.5,10,1709252999999\n" +
	"\n" +
	"#datatype,string,long,dateTime:RFC3339,string,string,double,double,double,double,double\n" +
	"#group,false,false,false,true,true,false,false,false,false,false\n" +
	"#default,_result,,,,,,,,,\n" +
	",result,table,_time,symbol,interval,open,high,low,close,volume\n" +
	",,1,2024-03-01T00:30:00Z,BTCUSDT,30m,101,102,100,101.5,12\n"

func TestInfluxGetCandles(t *testing.T) {
	s, f := openTestInflux(t, candlesCSV)

	candles, err := s.GetCandles(context.Background(), "BTCUSDT", "30m", day, day.Add(time.Hour))
	if err != nil {
		t.Fatalf("GetCandles: %v", err)
	}
	if len(candles) != 2 {
		t.Fatalf("got %d candles, want 2", len(candles))
	}

	first := candles[0]
	if !first.OpenTime.Equal(day) || first.Low != 99 || first.Close != 100.5 || first.Volume != 10 {
		t.Errorf("first candle = %+v", first)
	}
	if want := time.UnixMilli(1709252999999).UTC(); !first.CloseTime.Equal(want) {
		t.Errorf("close time from field = %v, want %v", first.CloseTime, want)
	}

	second := candles[1]
	if want := day.Add(time.Hour - time.Millisecond); !second.CloseTime.Equal(want) {
		t.Errorf("close time without field = %v, want %v", second.CloseTime, want)
	}
	if second.Symbol != "BTCUSDT" || second.Interval != "30m" {
		t.Errorf("second candle = %+v", second)
	}

	queries, _ := f.recorded()
	if len(queries) != 1 {
		t.Fatalf("queries = %d, want 1", len(queries))
	}
	for _, want := range []string{`from(bucket: "tpo")`, `r.symbol == "BTCUSDT"`, `r.interval == "30m"`, `r._measurement == "candles"`} {
		if !strings.Contains(queries[0], want) {
			t.Errorf("query does not contain %s:\n%s", want, queries[0])
		}
	}
}

const historyCSV = "#datatype,string,long,dateTime:RFC3339,string,string,string,string,string,long,long,string,string,long,string,long,string\n" +
	"#group,false,false,false,false,false,false,false,false,false,false,false,false,false,false,false,false\n" +
	"#default,_result,,,,,,,,,,,,,,,\n" +
	",result,table,_time,symbol,coin,interval,bracket,id,days_analyzed,rotation_score,control,strength,poc_score,poc_bias,created_at,payload\n" +
	",,0,2024-03-01T00:00:00Z,ETHUSDT,ETH,1h,60,abc-1,7,-9,SELLER,Strong,-2,BEARISH,1709290800000,\"{\"\"symbol\"\":\"\"ETHUSDT\"\"}\"\n"

func TestInfluxGetAnalysisHistory(t *testing.T) {
	s, f := openTestInflux(t, historyCSV)

	records, err := s.GetAnalysisHistory(context.Background(), HistoryFilter{Symbol: "ETHUSDT", Limit: 5})
	if err != nil {
		t.Fatalf("GetAnalysisHistory: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("got %d records, want 1", len(records))
	}

	rec := records[0]
	tests := []struct {
		name string
		got  interface{}
		want interface{}
	}{
		{"id", rec.ID, "abc-1"},
		{"symbol", rec.Symbol, "ETHUSDT"},
		{"coin", rec.Coin, "ETH"},
		{"interval", rec.Interval, "1h"},
		{"bracket", rec.BracketMinutes, 60},
		{"days", rec.DaysAnalyzed, 7},
		{"rotation", rec.RotationScore, -9},
		{"control", rec.Control, models.ControlSeller},
		{"strength", rec.Strength, models.StrengthStrong},
		{"poc score", rec.POCScore, -2},
		{"poc bias", rec.POCBias, models.BiasBearish},
		{"payload", string(rec.Payload), `{"symbol":"ETHUSDT"}`},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s = %v, want %v", tt.name, tt.got, tt.want)
		}
	}
	if !rec.AnalysisDate.Equal(day) {
		t.Errorf("AnalysisDate = %v", rec.AnalysisDate)
	}
	if want := time.UnixMilli(1709290800000).UTC(); !rec.CreatedAt.Equal(want) {
		t.Errorf("CreatedAt = %v, want %v", rec.CreatedAt, want)
	}

	queries, _ := f.recorded()
	if len(queries) != 1 {
		t.Fatalf("queries = %d, want 1", len(queries))
	}
	for _, want := range []string{`r.symbol == "ETHUSDT"`, `limit(n: 5)`, `r._measurement == "tpo_analysis"`} {
		if !strings.Contains(queries[0], want) {
			t.Errorf("query does not contain %s:\n%s", want, queries[0])
		}
	}
}

func TestInfluxSaveCandles(t *testing.T) {
	s, f := openTestInflux(t, "")

	if err := s.SaveCandles(context.Background(), testCandles(2)); err != nil {
		t.Fatalf("SaveCandles: %v", err)
	}
	if err := s.SaveCandles(context.Background(), nil); err != nil {
		t.Fatalf("SaveCandles(nil): %v", err)
	}

	_, writes := f.recorded()
	if len(writes) != 1 {
		t.Fatalf("writes = %d, want 1", len(writes))
	}
	body := writes[0]
	if n := strings.Count(body, "candles,interval=30m,symbol=BTCUSDT "); n != 2 {
		t.Errorf("got %d candle lines:\n%s", n, body)
	}
	if !strings.Contains(body, "close_time=1709252999999i") {
		t.Errorf("close_time field missing:\n%s", body)
	}
}
