package ingest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"text/template"
	"time"

	"github.com/go-gota/gota/dataframe"
	"github.com/tidwall/gjson"

	rancasttls "github.com/rancastproj/rancast/pkg/tls"
)

// HTTPSource pulls one telemetry feed from a REST API and extracts the
// per-cell rows using JSON path expressions.
//
// It supports:
//   - Configurable HTTP method (GET, POST, etc.)
//   - Template-based request body and headers with variables:
//     {{.Start}}, {{.End}}, {{.StartRFC3339}}, {{.EndRFC3339}}, {{.WindowSeconds}}
//   - gjson path extraction for the timestamp, NCI, gNB and value columns
//   - Flexible timestamp parsing (RFC3339, Unix seconds, Unix milliseconds)
//   - Optional mutual TLS toward the management-plane API
//
// Example configuration for a counter API:
//
//	source := &ingest.HTTPSource{
//	    URL:           "https://nms.example.com/counters",
//	    Method:        "POST",
//	    Body:          `{"counter": "Avg_UE_Number", "from": {{.Start}}, "to": {{.End}}}`,
//	    TimestampPath: "rows.#.ts",
//	    CellPath:      "rows.#.nci",
//	    GNBPath:       "rows.#.gnb",
//	    ValuePath:     "rows.#.value",
//	    ValueColumn:   ingest.ColAvgUE,
//	}
type HTTPSource struct {
	// URL is the endpoint to call (required).
	URL string

	// Method is the HTTP method. Defaults to GET if empty.
	Method string

	// Headers are custom HTTP headers. Values can use template variables.
	Headers map[string]string

	// Body is the request body template (for POST/PUT).
	Body string

	// TimestampPath, CellPath, GNBPath and ValuePath are gjson paths selecting
	// the respective column from the response. Use "#" for arrays, e.g.
	// "rows.#.ts". All four must yield the same number of elements.
	TimestampPath string
	CellPath      string
	GNBPath       string
	ValuePath     string

	// ValueColumn names the measurement column in the produced DataFrame
	// (required), e.g. Avg_UE_Number or DL_Prb_Utilization.
	ValueColumn string

	// TimestampFormat specifies how to parse extracted timestamps:
	//   "rfc3339"    - RFC3339 strings (default)
	//   "unix"       - Unix seconds
	//   "unix_milli" - Unix milliseconds
	TimestampFormat string

	// Window is how far back the request reaches. Defaults to 24h.
	Window time.Duration

	// TLS optionally enables mutual TLS toward the API.
	TLS rancasttls.Config

	// HTTPClient is optional; if nil a client is built from TLS and a default
	// timeout.
	HTTPClient *http.Client

	// TemplateVars are custom variables available in Body and Headers
	// templates. Use this to pass tokens, API keys, etc.
	TemplateVars map[string]string
}

func (s *HTTPSource) Name() string { return "http" }

// Fetch implements Source. It calls the configured endpoint and shapes the
// extracted rows into the same DataFrame layout the CSV source produces, so
// downstream merging does not care where a feed came from.
func (s *HTTPSource) Fetch(ctx context.Context) (dataframe.DataFrame, DropReport, error) {
	var report DropReport

	if s.URL == "" {
		return dataframe.DataFrame{}, report, errors.New("http source: URL is required")
	}
	if s.TimestampPath == "" || s.CellPath == "" || s.GNBPath == "" || s.ValuePath == "" {
		return dataframe.DataFrame{}, report, errors.New("http source: timestamp, cell, gnb and value paths are required")
	}
	if s.ValueColumn == "" {
		return dataframe.DataFrame{}, report, errors.New("http source: value column is required")
	}
	switch s.TimestampFormat {
	case "", "rfc3339", "unix", "unix_milli":
	default:
		return dataframe.DataFrame{}, report, fmt.Errorf("http source: unsupported timestamp format %q", s.TimestampFormat)
	}

	window := s.Window
	if window <= 0 {
		window = 24 * time.Hour
	}

	now := time.Now().UTC().Truncate(time.Second)
	start := now.Add(-window)

	templateData := map[string]any{
		"WindowSeconds": int(window.Seconds()),
		"Start":         start.Unix(),
		"End":           now.Unix(),
		"StartRFC3339":  start.Format(time.RFC3339),
		"EndRFC3339":    now.Format(time.RFC3339),
	}
	for k, v := range s.TemplateVars {
		templateData[k] = v
	}

	method := s.Method
	if method == "" {
		method = http.MethodGet
	}

	var bodyReader io.Reader
	if s.Body != "" {
		rendered, err := renderTemplate(s.Body, templateData)
		if err != nil {
			return dataframe.DataFrame{}, report, fmt.Errorf("http source: render body template: %w", err)
		}
		bodyReader = bytes.NewBufferString(rendered)
	}

	cli, err := s.client()
	if err != nil {
		return dataframe.DataFrame{}, report, err
	}

	req, err := http.NewRequestWithContext(ctx, method, s.URL, bodyReader)
	if err != nil {
		return dataframe.DataFrame{}, report, fmt.Errorf("http source: create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	for key, value := range s.Headers {
		rendered, err := renderTemplate(value, templateData)
		if err != nil {
			return dataframe.DataFrame{}, report, fmt.Errorf("http source: render header %s: %w", key, err)
		}
		req.Header.Set(key, rendered)
	}

	resp, err := cli.Do(req)
	if err != nil {
		return dataframe.DataFrame{}, report, fmt.Errorf("http source: request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return dataframe.DataFrame{}, report, fmt.Errorf("http source: status %d: %s", resp.StatusCode, string(body))
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return dataframe.DataFrame{}, report, fmt.Errorf("http source: read response: %w", err)
	}

	timestamps := gjson.GetBytes(respBody, s.TimestampPath)
	cells := gjson.GetBytes(respBody, s.CellPath)
	gnbs := gjson.GetBytes(respBody, s.GNBPath)
	values := gjson.GetBytes(respBody, s.ValuePath)

	for path, result := range map[string]gjson.Result{
		s.TimestampPath: timestamps,
		s.CellPath:      cells,
		s.GNBPath:       gnbs,
		s.ValuePath:     values,
	} {
		if !result.Exists() {
			return dataframe.DataFrame{}, report, fmt.Errorf("http source: path %q not found in response", path)
		}
	}

	tsArray := timestamps.Array()
	cellArray := cells.Array()
	gnbArray := gnbs.Array()
	valArray := values.Array()

	if len(tsArray) != len(valArray) || len(cellArray) != len(valArray) || len(gnbArray) != len(valArray) {
		return dataframe.DataFrame{}, report, fmt.Errorf(
			"http source: column lengths differ (ts=%d cell=%d gnb=%d value=%d)",
			len(tsArray), len(cellArray), len(gnbArray), len(valArray))
	}

	records := [][]string{{ColTimestamp, ColCell, ColGNB, s.ValueColumn}}
	for i := range valArray {
		ts, err := s.parseTimestamp(tsArray[i])
		if err != nil {
			report.BadTimestamps++
			continue
		}

		records = append(records, []string{
			ts.Format(CanonicalTimeLayout),
			cellArray[i].String(),
			gnbArray[i].String(),
			strconv.FormatFloat(valArray[i].Float(), 'g', -1, 64),
		})
	}

	if len(records) == 1 {
		return dataframe.DataFrame{}, report, fmt.Errorf("http source %s: no rows survived parsing", s.URL)
	}

	df := dataframe.LoadRecords(records,
		dataframe.HasHeader(true),
		dataframe.DetectTypes(true),
	)
	if df.Err != nil {
		return dataframe.DataFrame{}, report, fmt.Errorf("http source: load records: %w", df.Err)
	}

	return df, report, nil
}

// client builds the HTTP client, wiring mutual TLS when enabled.
func (s *HTTPSource) client() (*http.Client, error) {
	if s.HTTPClient != nil {
		return s.HTTPClient, nil
	}

	transport := &http.Transport{
		MaxIdleConns:        10,
		IdleConnTimeout:     30 * time.Second,
		TLSHandshakeTimeout: 5 * time.Second,
	}

	if s.TLS.Enabled {
		tlsConfig, err := rancasttls.NewClientTLSConfig(s.TLS.CertFile, s.TLS.KeyFile, s.TLS.CAFile)
		if err != nil {
			return nil, fmt.Errorf("http source: TLS config: %w", err)
		}
		transport.TLSClientConfig = tlsConfig
	}

	return &http.Client{Timeout: 30 * time.Second, Transport: transport}, nil
}

// parseTimestamp parses an extracted timestamp according to the configured format.
func (s *HTTPSource) parseTimestamp(value gjson.Result) (time.Time, error) {
	format := s.TimestampFormat
	if format == "" {
		format = "rfc3339"
	}

	switch format {
	case "rfc3339":
		return parseTime(value.String())

	case "unix":
		return time.Unix(int64(value.Float()), 0).UTC(), nil

	case "unix_milli":
		return time.UnixMilli(int64(value.Float())).UTC(), nil

	default:
		return time.Time{}, fmt.Errorf("unsupported timestamp format: %s", format)
	}
}

// renderTemplate renders a text template with the given data.
func renderTemplate(tmplStr string, data map[string]any) (string, error) {
	if !strings.Contains(tmplStr, "{{") {
		return tmplStr, nil
	}

	tmpl, err := template.New("").Parse(tmplStr)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}

	return buf.String(), nil
}
