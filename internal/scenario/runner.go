package scenario

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

// StepResult records the outcome of a single step.
type StepResult struct {
	Name     string
	Passed   bool
	Duration time.Duration
	Error    string // empty when passed
}

// Result records the outcome of an entire scenario.
type Result struct {
	ScenarioName string
	Passed       bool
	Steps        []StepResult
	Duration     time.Duration
}

// Runner executes scenarios against one storefront.
type Runner struct {
	baseURL string
	token   string
	http    *http.Client
}

// NewRunner creates a Runner for baseURL. token authenticates admin steps.
func NewRunner(baseURL, token string) *Runner {
	return &Runner{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

// Run executes a scenario. Steps after a failure still run, with whatever
// variables were captured so far.
func (r *Runner) Run(ctx context.Context, s *Scenario) (*Result, error) {
	start := time.Now()
	result := &Result{ScenarioName: s.Name, Passed: true}

	if err := r.runSetup(ctx, &s.Setup); err != nil {
		return nil, fmt.Errorf("setup failed: %w", err)
	}

	vars := map[string]string{"base_url": r.baseURL}
	for i := range s.Steps {
		sr := r.runStep(ctx, &s.Steps[i], vars)
		result.Steps = append(result.Steps, sr)
		if !sr.Passed {
			result.Passed = false
		}
	}

	result.Duration = time.Since(start)
	return result, nil
}

func (r *Runner) runSetup(ctx context.Context, setup *Setup) error {
	if setup.Reset {
		if err := r.admin(ctx, "/admin/reset", nil); err != nil {
			return fmt.Errorf("reset: %w", err)
		}
	}
	if setup.State != "" {
		data, err := os.ReadFile(setup.State)
		if err != nil {
			return fmt.Errorf("state: reading %s: %w", setup.State, err)
		}
		if err := r.admin(ctx, "/admin/state", data); err != nil {
			return fmt.Errorf("state: %w", err)
		}
	}
	return nil
}

// admin POSTs payload to an admin endpoint and requires a 2xx response.
func (r *Runner) admin(ctx context.Context, path string, payload []byte) error {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	status, respBody, err := r.send(ctx, http.MethodPost, path, body, true, nil)
	if err != nil {
		return err
	}
	if status < 200 || status > 299 {
		return fmt.Errorf("status %d: %s", status, strings.TrimSpace(string(respBody)))
	}
	return nil
}

func (r *Runner) send(ctx context.Context, method, path string, body io.Reader, admin bool, headers map[string]string) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, r.baseURL+path, body)
	if err != nil {
		return 0, nil, fmt.Errorf("building request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if admin && r.token != "" {
		req.Header.Set("Authorization", "Bearer "+r.token)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := r.http.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("reading response body: %w", err)
	}
	return resp.StatusCode, respBody, nil
}

func (r *Runner) runStep(ctx context.Context, step *Step, vars map[string]string) StepResult {
	start := time.Now()
	sr := StepResult{Name: step.Name}
	fail := func(format string, args ...any) StepResult {
		sr.Error = fmt.Sprintf(format, args...)
		sr.Duration = time.Since(start)
		return sr
	}

	path, err := Expand(step.Request.Path, vars)
	if err != nil {
		return fail("template expansion: %v", err)
	}
	var body io.Reader
	if step.Request.Body != "" {
		expanded, err := Expand(step.Request.Body, vars)
		if err != nil {
			return fail("template expansion in body: %v", err)
		}
		body = strings.NewReader(expanded)
	}
	method := strings.ToUpper(step.Request.Method)
	if method == "" {
		method = http.MethodGet
	}

	status, respBody, err := r.send(ctx, method, path, body, step.Request.Admin, step.Request.Headers)
	if err != nil {
		return fail("%v", err)
	}

	if step.Assert.Status != 0 && status != step.Assert.Status {
		return fail("expected status %d, got %d: %s", step.Assert.Status, status, strings.TrimSpace(string(respBody)))
	}
	if step.Assert.BodyContains != "" && !strings.Contains(string(respBody), step.Assert.BodyContains) {
		return fail("body does not contain %q", step.Assert.BodyContains)
	}

	if len(step.Assert.JSON) > 0 || len(step.Capture) > 0 {
		var doc any
		if err := json.Unmarshal(respBody, &doc); err != nil {
			return fail("body is not valid JSON: %v", err)
		}
		for path, expected := range step.Assert.JSON {
			actual, ok, err := lookup(doc, path)
			if err != nil {
				return fail("json: %v", err)
			}
			if !ok {
				return fail("json: %s not found in response", path)
			}
			if got := stringify(actual); got != expected {
				return fail("json: %s expected %q, got %q", path, expected, got)
			}
		}
		for name, path := range step.Capture {
			value, ok, err := lookup(doc, path)
			if err != nil {
				return fail("capture %s: %v", name, err)
			}
			if !ok {
				return fail("capture %s: %s not found in response", name, path)
			}
			vars[name] = stringify(value)
		}
	}

	sr.Passed = true
	sr.Duration = time.Since(start)
	return sr
}
