package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/scimuse/scimuse/internal/core/domain"
)

// Client indexes chunk vectors in a Qdrant collection and serves the
// similarity searches behind the content store. The collection layout is
// owned here; the core never sees it.
type Client struct {
	baseURL    string
	collection string
	httpClient *http.Client

	ensureMu          sync.Mutex
	ensuredCollection bool
	ensuredVectorSize int
}

func New(baseURL, collection string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		collection: collection,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

func (c *Client) Upsert(ctx context.Context, chunk domain.Chunk, vector []float32) error {
	if len(vector) == 0 {
		return fmt.Errorf("empty vector for chunk %s", chunk.ID)
	}
	if err := c.ensureCollection(ctx, len(vector)); err != nil {
		return err
	}

	body, err := json.Marshal(map[string]any{
		"points": []map[string]any{
			{
				"id":     chunk.ID,
				"vector": vector,
				"payload": map[string]any{
					"document_id": chunk.DocumentID,
					"modality":    string(chunk.Modality),
					"content":     chunk.Content,
					"raw_ref":     chunk.RawRef,
					"page":        chunk.Page,
					"region":      chunk.Region,
					"seq":         chunk.Seq,
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("marshal upsert body: %w", err)
	}

	url := fmt.Sprintf("%s/collections/%s/points?wait=true", c.baseURL, c.collection)
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create upsert request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("qdrant upsert request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return statusError("upsert", resp)
	}
	return nil
}

func (c *Client) Search(
	ctx context.Context,
	vector []float32,
	filter domain.SearchFilter,
	topK int,
) ([]domain.ScoredChunk, error) {
	if topK <= 0 {
		topK = 5
	}

	reqBody := map[string]any{
		"vector":       vector,
		"limit":        topK,
		"with_payload": true,
	}
	if conditions := buildFilter(filter); len(conditions) > 0 {
		reqBody["filter"] = map[string]any{"must": conditions}
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal search body: %w", err)
	}

	url := fmt.Sprintf("%s/collections/%s/points/search", c.baseURL, c.collection)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create search request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("qdrant search request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return nil, statusError("search", resp)
	}

	var parsed struct {
		Result []struct {
			ID      string         `json:"id"`
			Score   float64        `json:"score"`
			Payload map[string]any `json:"payload"`
		} `json:"result"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	out := make([]domain.ScoredChunk, 0, len(parsed.Result))
	for _, hit := range parsed.Result {
		out = append(out, domain.ScoredChunk{
			Chunk: chunkFromPayload(hit.ID, hit.Payload),
			Score: hit.Score,
		})
	}
	return out, nil
}

func buildFilter(filter domain.SearchFilter) []map[string]any {
	var conditions []map[string]any
	if filter.Modality != "" {
		conditions = append(conditions, map[string]any{
			"key":   "modality",
			"match": map[string]any{"value": string(filter.Modality)},
		})
	}
	if len(filter.DocumentIDs) > 0 {
		conditions = append(conditions, map[string]any{
			"key":   "document_id",
			"match": map[string]any{"any": filter.DocumentIDs},
		})
	}
	return conditions
}

func chunkFromPayload(id string, payload map[string]any) domain.Chunk {
	return domain.Chunk{
		ID:         id,
		DocumentID: payloadString(payload, "document_id"),
		Modality:   domain.Modality(payloadString(payload, "modality")),
		Content:    payloadString(payload, "content"),
		RawRef:     payloadString(payload, "raw_ref"),
		Page:       payloadInt(payload, "page"),
		Region:     payloadString(payload, "region"),
		Seq:        payloadInt(payload, "seq"),
	}
}

func payloadString(payload map[string]any, key string) string {
	if v, ok := payload[key].(string); ok {
		return v
	}
	return ""
}

func payloadInt(payload map[string]any, key string) int {
	if v, ok := payload[key].(float64); ok {
		return int(v)
	}
	return 0
}

func (c *Client) ensureCollection(ctx context.Context, vectorSize int) error {
	c.ensureMu.Lock()
	defer c.ensureMu.Unlock()

	if c.ensuredCollection && c.ensuredVectorSize == vectorSize {
		return nil
	}

	body, err := json.Marshal(map[string]any{
		"vectors": map[string]any{
			"size":     vectorSize,
			"distance": "Cosine",
		},
	})
	if err != nil {
		return fmt.Errorf("marshal ensure collection body: %w", err)
	}

	url := fmt.Sprintf("%s/collections/%s", c.baseURL, c.collection)
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create ensure collection request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("qdrant ensure collection request: %w", err)
	}
	defer resp.Body.Close()

	// Conflict means the collection already exists, which is fine.
	if resp.StatusCode >= 300 && resp.StatusCode != http.StatusConflict {
		return statusError("ensure collection", resp)
	}

	c.ensuredCollection = true
	c.ensuredVectorSize = vectorSize
	return nil
}

func statusError(operation string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
	msg := strings.TrimSpace(string(body))
	if msg == "" {
		return fmt.Errorf("qdrant %s status: %s", operation, resp.Status)
	}
	return fmt.Errorf("qdrant %s status: %s: %s", operation, resp.Status, msg)
}
