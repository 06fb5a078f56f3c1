// Client for the camera-feed object detection sidecar
package vision

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Detection is one detected object in a frame. BBox is [x1, y1, x2, y2] in
// frame pixels.
type Detection struct {
	Class      string     `json:"class"`
	Confidence float64    `json:"confidence"`
	BBox       [4]float64 `json:"bbox"`
}

// Client talks to the inference sidecar over HTTP. A nil Client is valid and
// reports no detections, so callers can leave vision unconfigured.
type Client struct {
	baseURL string
	http    *http.Client
}

// New creates a Client for the sidecar at baseURL, or nil when baseURL is
// empty.
func New(baseURL string) *Client {
	if baseURL == "" {
		return nil
	}
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 5 * time.Second},
	}
}

type detectRequest struct {
	Image string `json:"image"`
}

type detectResponse struct {
	Success    bool        `json:"success"`
	Detections []Detection `json:"detections"`
	Count      int         `json:"count"`
	Error      string      `json:"error,omitempty"`
}

// Detect sends a frame for object detection and returns the detections.
func (c *Client) Detect(ctx context.Context, frame []byte) ([]Detection, error) {
	if c == nil {
		return nil, nil
	}
	body, err := json.Marshal(detectRequest{Image: base64.StdEncoding.EncodeToString(frame)})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/detect", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("vision: detect returned %s", resp.Status)
	}
	var out detectResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	if !out.Success {
		return nil, fmt.Errorf("vision: detect failed: %s", out.Error)
	}
	return out.Detections, nil
}

type healthResponse struct {
	Status      string `json:"status"`
	ModelLoaded bool   `json:"model_loaded"`
}

// Healthy checks the sidecar health endpoint and whether its model is loaded.
func (c *Client) Healthy(ctx context.Context) (bool, error) {
	if c == nil {
		return false, nil
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return false, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("vision: health returned %s", resp.Status)
	}
	var out healthResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return false, err
	}
	return out.Status == "healthy" && out.ModelLoaded, nil
}
