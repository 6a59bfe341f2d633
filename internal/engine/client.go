package engine

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"bindery/internal/logging"
)

// Doer abstracts http.Client.Do for testing.
type Doer interface {
	Do(*http.Request) (*http.Response, error)
}

// Client talks to the conversion engine webservice. All responses flow
// through the codec in this package; transport and HTTP-level failures are
// returned as wrapped errors, engine-level rejections as JobRequestError.
type Client struct {
	baseURL string
	client  Doer
	logger  *slog.Logger
}

// NewClient constructs an engine client for the given base URL. A nil doer
// falls back to a default http.Client with the given timeout.
func NewClient(baseURL string, doer Doer, timeout time.Duration, logger *slog.Logger) *Client {
	if doer == nil {
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		doer = &http.Client{Timeout: timeout}
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  doer,
		logger:  logging.WithComponent(logger, "engine"),
	}
}

// BaseURL returns the configured engine base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Alive probes engine liveness. Transport failures are reported as an offline
// engine, not as errors, because an unreachable engine and an absent <alive>
// document mean the same thing to callers.
func (c *Client) Alive(ctx context.Context) (Alive, error) {
	data, err := c.get(ctx, c.endpoint("/alive"))
	if err != nil {
		c.logger.Debug("alive probe failed", logging.Error(err))
		return Alive{}, nil
	}
	return DecodeAlive(data)
}

// Scripts fetches the script listing.
func (c *Client) Scripts(ctx context.Context) ([]Script, error) {
	data, err := c.get(ctx, c.endpoint("/scripts"))
	if err != nil {
		return nil, err
	}
	return DecodeScripts(data)
}

// Script fetches one script definition by href.
func (c *Client) Script(ctx context.Context, href string) (Script, error) {
	data, err := c.get(ctx, c.resolve(href))
	if err != nil {
		return Script{}, err
	}
	return DecodeScript(data)
}

// Jobs fetches the engine's job listing.
func (c *Client) Jobs(ctx context.Context) ([]JobData, error) {
	data, err := c.get(ctx, c.endpoint("/jobs"))
	if err != nil {
		return nil, err
	}
	return DecodeJobs(data)
}

// Job fetches one job record by href.
func (c *Client) Job(ctx context.Context, href string) (JobData, error) {
	data, err := c.get(ctx, c.resolve(href))
	if err != nil {
		return JobData{}, err
	}
	return DecodeJob(data)
}

// JobLog fetches the plain-text execution log of a job.
func (c *Client) JobLog(ctx context.Context, href string) (string, error) {
	data, err := c.get(ctx, c.resolve(href))
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// CreateJob submits a job request. The engine answers with either a job
// record or a structured rejection; both are regular return values.
func (c *Client) CreateJob(ctx context.Context, req JobRequest) (*JobData, *JobRequestError, error) {
	body, err := EncodeJobRequest(req)
	if err != nil {
		return nil, nil, err
	}
	data, status, err := c.send(ctx, http.MethodPost, c.endpoint("/jobs"), body)
	if err != nil {
		return nil, nil, err
	}
	job, reqErr, err := DecodeJobCreation(data)
	if err != nil {
		if status >= http.StatusBadRequest {
			return nil, nil, fmt.Errorf("engine rejected job submission with status %d", status)
		}
		return nil, nil, err
	}
	return job, reqErr, nil
}

// DeleteJob removes a job from the engine.
func (c *Client) DeleteJob(ctx context.Context, href string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.resolve(href), nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("engine request failed: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("engine DELETE %s returned %d", href, resp.StatusCode)
	}
	return nil
}

// Voices refreshes the voice list with the supplied TTS configuration.
func (c *Client) Voices(ctx context.Context, cfg TTSConfig) ([]Voice, error) {
	body, err := EncodeTTSConfig(cfg)
	if err != nil {
		return nil, err
	}
	data, status, err := c.send(ctx, http.MethodPost, c.endpoint("/voices"), body)
	if err != nil {
		return nil, err
	}
	if status >= http.StatusBadRequest {
		return nil, fmt.Errorf("engine voices refresh returned %d", status)
	}
	return DecodeVoices(data)
}

// Properties fetches the engine's property map.
func (c *Client) Properties(ctx context.Context) ([]Property, error) {
	data, err := c.get(ctx, c.endpoint("/admin/properties"))
	if err != nil {
		return nil, err
	}
	return DecodeProperties(data)
}

// SetProperty pushes one property to the engine. An empty value clears it.
func (c *Client) SetProperty(ctx context.Context, p Property) error {
	body, err := EncodeProperty(p)
	if err != nil {
		return err
	}
	target := c.endpoint("/admin/properties/" + url.PathEscape(p.Name))
	_, status, err := c.send(ctx, http.MethodPut, target, body)
	if err != nil {
		return err
	}
	if status >= http.StatusBadRequest {
		return fmt.Errorf("engine property update returned %d", status)
	}
	return nil
}

// TTSEngines fetches the engine's authoritative per-provider TTS state.
func (c *Client) TTSEngines(ctx context.Context) ([]TTSEngineInfo, error) {
	data, err := c.get(ctx, c.endpoint("/tts-engines"))
	if err != nil {
		return nil, err
	}
	return DecodeTTSEngines(data)
}

// StylesheetParameters asks the engine which extra parameters the given user
// stylesheets accept. The result feeds the second round of option collection
// before a job is submitted.
func (c *Client) StylesheetParameters(ctx context.Context, stylesheetHrefs []string, sourceHref string) ([]ScriptOption, error) {
	body, err := EncodeStylesheetParametersRequest(stylesheetHrefs, sourceHref)
	if err != nil {
		return nil, err
	}
	data, status, err := c.send(ctx, http.MethodPost, c.endpoint("/stylesheet-parameters"), body)
	if err != nil {
		return nil, err
	}
	if status >= http.StatusBadRequest {
		return nil, fmt.Errorf("engine stylesheet-parameters returned %d", status)
	}
	return DecodeStylesheetParameters(data)
}

// Datatypes fetches the datatype listing.
func (c *Client) Datatypes(ctx context.Context) ([]Datatype, error) {
	data, err := c.get(ctx, c.endpoint("/datatypes"))
	if err != nil {
		return nil, err
	}
	return DecodeDatatypes(data)
}

// Datatype fetches one datatype choice definition by href.
func (c *Client) Datatype(ctx context.Context, href string) (Datatype, error) {
	data, err := c.get(ctx, c.resolve(href))
	if err != nil {
		return Datatype{}, err
	}
	return DecodeDatatype(data)
}

// Download streams a result file href into destPath, creating parent
// directories as needed.
func (c *Client) Download(ctx context.Context, href, destPath string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.resolve(href), nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("engine request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("engine GET %s returned %d", href, resp.StatusCode)
	}

	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return fmt.Errorf("create download directory: %w", err)
	}
	dest, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("create download file: %w", err)
	}
	if _, err := io.Copy(dest, resp.Body); err != nil {
		dest.Close()
		return fmt.Errorf("write download: %w", err)
	}
	if err := dest.Close(); err != nil {
		return fmt.Errorf("close download: %w", err)
	}
	return nil
}

func (c *Client) get(ctx context.Context, target string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/xml")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("engine request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, fmt.Errorf("engine GET %s returned %d: %s", target, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	return data, nil
}

// send performs a request with an XML body and returns the body and status
// without treating 4xx as a transport failure; submission responses carry
// engine-level errors in the document itself.
func (c *Client) send(ctx context.Context, method, target string, body []byte) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, method, target, bytes.NewReader(body))
	if err != nil {
		return nil, 0, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/xml")
	req.Header.Set("Content-Type", "application/xml")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("engine request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("read response: %w", err)
	}
	return data, resp.StatusCode, nil
}

func (c *Client) endpoint(path string) string {
	return c.baseURL + path
}

// resolve accepts either an absolute href returned by the engine or a path
// relative to the base URL.
func (c *Client) resolve(href string) string {
	if strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
		return href
	}
	if !strings.HasPrefix(href, "/") {
		href = "/" + href
	}
	return c.baseURL + href
}
