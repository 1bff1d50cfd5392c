// Package elite2 is the HTTP client for the prison system of record. It
// issues deletion requests for a due-for-deletion window and exposes the
// system's read API for offender numbers and offender images.
package elite2

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"mercator-hq/erasure/pkg/telemetry/tracing"
)

const (
	offenderIDsPath      = "/api/offenders/ids"
	imageMetadataPath    = "/api/images/offenders/%s"
	imageDataPath        = "/api/images/%d/data"
	pendingDeletionsPath = "/api/data-compliance/offenders/pending-deletions"

	// LocalDateTimeLayout is the wire format for window bounds: ISO-8601
	// without an offset, interpreted as UTC.
	LocalDateTimeLayout = "2006-01-02T15:04:05"

	// FaceImageView marks an offender's face image.
	FaceImageView = "FACE"

	maxErrorBody = 512
)

// TokenSource returns the bearer token for the next request.
type TokenSource func(ctx context.Context) (string, error)

// Config configures a Client.
type Config struct {
	// BaseURL is the system of record's root URL.
	BaseURL string

	// Timeout bounds each request.
	// Default: 30 seconds
	Timeout time.Duration

	MaxIdleConns        int
	MaxIdleConnsPerHost int
	IdleConnTimeout     time.Duration
}

// Client calls the system of record.
type Client struct {
	baseURL string
	http    *http.Client
	token   TokenSource
	logger  *slog.Logger
}

// NewClient creates a Client with a pooled transport. A nil token source
// sends requests without an Authorization header.
func NewClient(config Config, token TokenSource) (*Client, error) {
	base, err := url.Parse(config.BaseURL)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid elite2 base URL %q", config.BaseURL)
	}
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}

	transport := &http.Transport{
		MaxIdleConns:        config.MaxIdleConns,
		MaxIdleConnsPerHost: config.MaxIdleConnsPerHost,
		IdleConnTimeout:     config.IdleConnTimeout,
		ForceAttemptHTTP2:   true,
	}

	return &Client{
		baseURL: strings.TrimRight(config.BaseURL, "/"),
		http:    &http.Client{Transport: transport, Timeout: config.Timeout},
		token:   token,
		logger:  slog.Default().With("component", "elite2.client"),
	}, nil
}

type pendingDeletionsRequest struct {
	DueForDeletionWindowStart string `json:"dueForDeletionWindowStart"`
	DueForDeletionWindowEnd   string `json:"dueForDeletionWindowEnd"`
	BatchID                   int64  `json:"batchId"`
}

// Request asks the system of record to process offenders due for deletion
// in [windowStart, windowEnd) under batchID. It makes a single attempt.
func (c *Client) Request(ctx context.Context, windowStart, windowEnd time.Time, batchID int64) error {
	body, err := json.Marshal(pendingDeletionsRequest{
		DueForDeletionWindowStart: windowStart.UTC().Format(LocalDateTimeLayout),
		DueForDeletionWindowEnd:   windowEnd.UTC().Format(LocalDateTimeLayout),
		BatchID:                   batchID,
	})
	if err != nil {
		return fmt.Errorf("failed to encode pending deletions request: %w", err)
	}

	resp, err := c.do(ctx, http.MethodPost, pendingDeletionsPath, body, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	c.logger.Debug("pending deletions requested", "batch_id", batchID)
	return nil
}

// OffenderNumbers is one page of offender numbers.
type OffenderNumbers struct {
	TotalCount      int64
	OffenderNumbers []string
}

// OffenderNumbers returns one page of offender numbers.
func (c *Client) OffenderNumbers(ctx context.Context, offset, limit int64) (*OffenderNumbers, error) {
	headers := map[string]string{
		"Page-Offset": strconv.FormatInt(offset, 10),
		"Page-Limit":  strconv.FormatInt(limit, 10),
	}
	resp, err := c.do(ctx, http.MethodGet, offenderIDsPath, nil, headers)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	total := resp.Header.Get("Total-Records")
	if total == "" {
		return nil, &RequestError{Method: http.MethodGet, Path: offenderIDsPath, Cause: ErrMissingTotalRecords}
	}
	count, err := strconv.ParseInt(total, 10, 64)
	if err != nil {
		return nil, &RequestError{Method: http.MethodGet, Path: offenderIDsPath,
			Cause: fmt.Errorf("invalid Total-Records header %q: %w", total, err)}
	}

	var items []struct {
		OffenderNumber string `json:"offenderNumber"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&items); err != nil {
		return nil, &RequestError{Method: http.MethodGet, Path: offenderIDsPath,
			Cause: fmt.Errorf("failed to decode response: %w", err)}
	}

	// The system of record may repeat numbers across a page.
	seen := make(map[string]bool, len(items))
	page := &OffenderNumbers{TotalCount: count, OffenderNumbers: make([]string, 0, len(items))}
	for _, item := range items {
		if seen[item.OffenderNumber] {
			continue
		}
		seen[item.OffenderNumber] = true
		page.OffenderNumbers = append(page.OffenderNumbers, item.OffenderNumber)
	}
	return page, nil
}

// ImageMetadata describes one stored offender image.
type ImageMetadata struct {
	ImageID   int64  `json:"imageId"`
	ImageView string `json:"imageView"`
}

// OffenderFaceImages returns the face images held for an offender.
func (c *Client) OffenderFaceImages(ctx context.Context, offenderNo string) ([]ImageMetadata, error) {
	path := fmt.Sprintf(imageMetadataPath, url.PathEscape(offenderNo))
	resp, err := c.do(ctx, http.MethodGet, path, nil, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var all []ImageMetadata
	if err := json.NewDecoder(resp.Body).Decode(&all); err != nil {
		return nil, &RequestError{Method: http.MethodGet, Path: path,
			Cause: fmt.Errorf("failed to decode response: %w", err)}
	}

	faces := make([]ImageMetadata, 0, len(all))
	for _, m := range all {
		if m.ImageView == FaceImageView {
			faces = append(faces, m)
		}
	}
	return faces, nil
}

// ImageData returns the JPEG bytes of an image. A 404 means the image has
// no data and is reported as found == false without an error.
func (c *Client) ImageData(ctx context.Context, imageID int64) ([]byte, bool, error) {
	path := fmt.Sprintf(imageDataPath, imageID)
	resp, err := c.do(ctx, http.MethodGet, path, nil, map[string]string{"Accept": "image/jpeg"})
	if err != nil {
		var reqErr *RequestError
		if errors.As(err, &reqErr) && reqErr.StatusCode == http.StatusNotFound {
			return nil, false, nil
		}
		return nil, false, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, false, &RequestError{Method: http.MethodGet, Path: path, Cause: err}
	}
	return data, true, nil
}

// do sends one request. Any non-2xx response is returned as *RequestError
// with the body already consumed.
func (c *Client) do(ctx context.Context, method, path string, body []byte, headers map[string]string) (resp *http.Response, err error) {
	ctx, span := tracing.Start(ctx, "elite2.request",
		attribute.String("http.request.method", method),
		attribute.String("url.path", path),
	)
	defer func() {
		var reqErr *RequestError
		switch {
		case resp != nil:
			span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))
		case errors.As(err, &reqErr) && reqErr.StatusCode != 0:
			span.SetAttributes(attribute.Int("http.response.status_code", reqErr.StatusCode))
		}
		tracing.End(span, err)
	}()

	var bodyReader io.Reader
	if body != nil {
		bodyReader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, &RequestError{Method: method, Path: path, Cause: err}
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	tracing.Inject(ctx, req.Header)
	if c.token != nil {
		token, err := c.token(ctx)
		if err != nil {
			return nil, &RequestError{Method: method, Path: path, Cause: fmt.Errorf("resolve token: %w", err)}
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	c.logger.Debug("sending request to elite2", "method", method, "path", path)

	resp, err = c.http.Do(req)
	if err != nil {
		return nil, &RequestError{Method: method, Path: path, Cause: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &RequestError{
			Method:     method,
			Path:       path,
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(snippet)),
		}
	}
	return resp, nil
}
