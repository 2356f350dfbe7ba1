// src/services/ocr_client.go
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/username/folioimport/src/logger"
	"github.com/username/folioimport/src/models"
)

// ocrClient talks to the external screenshot-to-table service. The service
// owns all OCR concerns; this client only posts the image bytes and decodes
// the RawTable-shaped response.
type ocrClient struct {
	baseURL    string
	httpClient http.Client
}

// NewOCRClient returns a TableExtractor backed by the configured OCR service,
// or nil when no URL is configured (screenshot imports are then rejected).
func NewOCRClient(baseURL string, timeout time.Duration) TableExtractor {
	if baseURL == "" {
		return nil
	}
	return &ocrClient{
		baseURL:    baseURL,
		httpClient: http.Client{Timeout: timeout},
	}
}

type ocrResponse struct {
	Headers []string            `json:"headers"`
	Rows    []map[string]string `json:"rows"`
}

func (c *ocrClient) ExtractTable(ctx context.Context, image io.Reader, contentType string) (*models.RawTable, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/extract-table", image)
	if err != nil {
		return nil, fmt.Errorf("failed to build OCR request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("OCR request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("OCR service returned status %d: %s", resp.StatusCode, string(body))
	}

	var decoded ocrResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("failed to decode OCR response: %w", err)
	}
	if len(decoded.Headers) == 0 {
		return nil, fmt.Errorf("OCR service returned no table headers")
	}

	// OCR output often carries stray whitespace; apply the same header hygiene
	// as the CSV reader so detection and mapping see identical keys.
	headers := make([]string, 0, len(decoded.Headers))
	for _, h := range decoded.Headers {
		headers = append(headers, strings.TrimSpace(h))
	}
	rows := make([]map[string]string, 0, len(decoded.Rows))
	for _, rec := range decoded.Rows {
		row := make(map[string]string, len(headers))
		for i, h := range headers {
			row[h] = rec[decoded.Headers[i]]
		}
		rows = append(rows, row)
	}

	logger.L.Info("OCR extraction complete", "headers", len(headers), "rows", len(rows), "duration", time.Since(start))
	return &models.RawTable{
		Headers: headers,
		Rows:    rows,
		Source:  models.SourceOCR,
	}, nil
}
