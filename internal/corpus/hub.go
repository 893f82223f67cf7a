package corpus

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/hyperjump/faqrag/internal/config"
	"github.com/hyperjump/faqrag/internal/models"
)

// maxHubRows bounds a single load so a misconfigured dataset cannot pull an unbounded corpus.
const maxHubRows = 50000

// HubSource reads a dataset split page by page from a Hugging Face datasets-server.
type HubSource struct {
	baseURL  string
	dataset  string
	subset   string
	split    string
	token    string
	pageSize int
	client   *http.Client
}

// NewHubSource creates a hub source from cfg. The bearer token, if any, is read from cfg.TokenEnv.
func NewHubSource(cfg config.CorpusConfig, client *http.Client) *HubSource {
	if client == nil {
		timeout := time.Duration(cfg.TimeoutSecs) * time.Second
		if timeout <= 0 {
			timeout = 15 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	pageSize := cfg.PageSize
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 100
	}
	var token string
	if cfg.TokenEnv != "" {
		token = os.Getenv(cfg.TokenEnv)
	}
	return &HubSource{
		baseURL:  strings.TrimRight(cfg.HubURL, "/"),
		dataset:  cfg.Dataset,
		subset:   cfg.Subset,
		split:    cfg.Split,
		token:    token,
		pageSize: pageSize,
		client:   client,
	}
}

// Name returns the dataset identifier.
func (h *HubSource) Name() string {
	return h.dataset
}

type rowsResponse struct {
	Rows []struct {
		RowIdx int            `json:"row_idx"`
		Row    map[string]any `json:"row"`
	} `json:"rows"`
	NumRowsTotal int `json:"num_rows_total"`
}

// Load fetches every row of the split. Rows keep the dataset order.
func (h *HubSource) Load(ctx context.Context) ([]models.FAQRecord, error) {
	var records []models.FAQRecord
	for offset := 0; offset < maxHubRows; {
		page, err := h.fetchPage(ctx, offset)
		if err != nil {
			return nil, &SourceError{Source: h.dataset, Err: err}
		}
		for _, r := range page.Rows {
			records = append(records, models.FAQRecord{
				Question: stringField(r.Row, "question", "soru"),
				Answer:   stringField(r.Row, "answer", "cevap"),
			})
		}
		offset += len(page.Rows)
		if len(page.Rows) == 0 || offset >= page.NumRowsTotal {
			break
		}
	}
	return records, nil
}

func (h *HubSource) fetchPage(ctx context.Context, offset int) (*rowsResponse, error) {
	q := url.Values{}
	q.Set("dataset", h.dataset)
	q.Set("config", h.subset)
	q.Set("split", h.split)
	q.Set("offset", strconv.Itoa(offset))
	q.Set("length", strconv.Itoa(h.pageSize))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.baseURL+"/rows?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if h.token != "" {
		req.Header.Set("Authorization", "Bearer "+h.token)
	}
	resp, err := h.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("rows request failed: %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}
	var out rowsResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode rows: %w", err)
	}
	return &out, nil
}

// stringField returns the first string column matching one of keys, ignoring case.
func stringField(row map[string]any, keys ...string) string {
	for _, key := range keys {
		if v, ok := row[key].(string); ok {
			return v
		}
	}
	for col, val := range row {
		for _, key := range keys {
			if strings.EqualFold(col, key) {
				if v, ok := val.(string); ok {
					return v
				}
			}
		}
	}
	return ""
}
