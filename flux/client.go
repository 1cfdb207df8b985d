// Package flux talks to the Black Forest Labs image API: submit a prompt,
// poll for the result, download the sample.
package flux

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"
)

const (
	DefaultBaseURL      = "https://api.bfl.ml"
	DefaultModel        = "flux-pro-1.1"
	DefaultSize         = 1024
	DefaultPollInterval = 500 * time.Millisecond
)

const (
	statusReady            = "Ready"
	statusContentModerated = "Content Moderated"
	statusRequestModerated = "Request Moderated"
	statusError            = "Error"
	statusTaskNotFound     = "Task not found"
	maxImageBytes          = 32 << 20
	defaultHTTPTimeout     = 60 * time.Second
)

var (
	ErrMissingAPIKey = errors.New("image api key missing; provide image.api_key or IMAGE_API_KEY")
	ErrModerated     = errors.New("image generation moderated")
	ErrNoSample      = errors.New("image result has no sample")
	ErrPollTimeout   = errors.New("image generation did not finish in time")
)

// Settings configures a Client. Zero values fall back to the defaults above.
type Settings struct {
	APIKey       string
	BaseURL      string
	Model        string
	Width        int
	Height       int
	PollInterval time.Duration
	// MaxWait bounds the polling loop. Zero leaves only the caller's context as the bound.
	MaxWait time.Duration
}

// Image is a downloaded illustration.
type Image struct {
	Data        []byte
	ContentType string
}

// Client generates images one prompt at a time.
type Client struct {
	cfg     Settings
	client  *http.Client
	verbose bool
	logger  *log.Logger
}

type submitPayload struct {
	Prompt            string  `json:"prompt"`
	Width             int     `json:"width"`
	Height            int     `json:"height"`
	GuidanceScale     float64 `json:"guidance_scale"`
	InferenceSteps    int     `json:"num_inference_steps"`
	MaxSequenceLength int     `json:"max_sequence_length"`
	SafetyTolerance   int     `json:"safety_tolerance"`
}

type submitResp struct {
	ID     string `json:"id"`
	Detail any    `json:"detail,omitempty"`
}

type resultResp struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Result *struct {
		Sample string `json:"sample"`
	} `json:"result"`
}

func New(cfg Settings, client *http.Client, verbose bool, logger *log.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, ErrMissingAPIKey
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Width <= 0 {
		cfg.Width = DefaultSize
	}
	if cfg.Height <= 0 {
		cfg.Height = DefaultSize
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if client == nil {
		client = &http.Client{Timeout: defaultHTTPTimeout}
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Client{cfg: cfg, client: client, verbose: verbose, logger: logger}, nil
}

func (c *Client) infof(format string, args ...interface{}) {
	if !c.verbose {
		return
	}
	c.logger.Printf("[INFO] [flux] "+format, args...)
}

// Generate submits prompt and blocks until the image is ready, rejected, or
// the poll budget runs out.
func (c *Client) Generate(ctx context.Context, prompt string) (*Image, error) {
	id, err := c.submit(ctx, prompt)
	if err != nil {
		return nil, err
	}
	c.infof("submitted request id=%s", id)

	if c.cfg.MaxWait > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.MaxWait)
		defer cancel()
	}

	sample, err := c.poll(ctx, id)
	if err != nil {
		return nil, err
	}
	return c.download(ctx, sample)
}

func (c *Client) submit(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(submitPayload{
		Prompt:            prompt,
		Width:             c.cfg.Width,
		Height:            c.cfg.Height,
		GuidanceScale:     1,
		InferenceSteps:    50,
		MaxSequenceLength: 512,
		SafetyTolerance:   3,
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/v1/"+c.cfg.Model, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	c.setHeaders(req)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", errors.Wrap(err, "submit image request")
	}
	defer resp.Body.Close()

	var data submitResp
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return "", errors.Wrapf(err, "decode submit response (status %d)", resp.StatusCode)
	}
	if data.ID == "" {
		return "", fmt.Errorf("image request rejected: status %d %v", resp.StatusCode, data.Detail)
	}
	return data.ID, nil
}

func (c *Client) poll(ctx context.Context, id string) (string, error) {
	ticker := time.NewTicker(c.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return "", errors.Wrapf(ErrPollTimeout, "request %s", id)
			}
			return "", ctx.Err()
		case <-ticker.C:
		}

		res, err := c.result(ctx, id)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			return "", err
		}

		switch res.Status {
		case statusReady:
			if res.Result == nil || res.Result.Sample == "" {
				return "", errors.Wrapf(ErrNoSample, "request %s", id)
			}
			return res.Result.Sample, nil
		case statusContentModerated, statusRequestModerated:
			return "", errors.Wrapf(ErrModerated, "request %s: %s", id, res.Status)
		case statusError, statusTaskNotFound:
			return "", fmt.Errorf("image request %s failed: %s", id, res.Status)
		default:
			c.infof("request %s status: %s", id, res.Status)
		}
	}
}

func (c *Client) result(ctx context.Context, id string) (resultResp, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+"/v1/get_result", nil)
	if err != nil {
		return resultResp{}, err
	}
	c.setHeaders(req)
	q := url.Values{}
	q.Set("id", id)
	req.URL.RawQuery = q.Encode()

	resp, err := c.client.Do(req)
	if err != nil {
		return resultResp{}, errors.Wrap(err, "poll image result")
	}
	defer resp.Body.Close()

	var data resultResp
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return resultResp{}, errors.Wrapf(err, "decode result (status %d)", resp.StatusCode)
	}
	return data, nil
}

func (c *Client) download(ctx context.Context, sample string) (*Image, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sample, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "download image")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download image: status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes))
	if err != nil {
		return nil, errors.Wrap(err, "read image")
	}
	if len(data) == 0 {
		return nil, errors.Wrap(ErrNoSample, "empty image body")
	}
	ct := resp.Header.Get("Content-Type")
	if ct == "" {
		ct = http.DetectContentType(data)
	}
	return &Image{Data: data, ContentType: ct}, nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("accept", "application/json")
	req.Header.Set("x-key", c.cfg.APIKey)
}
