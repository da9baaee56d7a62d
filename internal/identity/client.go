// Package identity is a pass-through boundary to the hosted identity
// verification vendor. It builds hosted-flow links and normalizes inquiry
// payloads; no verification logic lives on this side.
package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

const defaultBaseURL = "https://withpersona.com/api/v1"

var (
	ErrNotConfigured   = errors.New("identity verification not configured")
	ErrInquiryNotFound = errors.New("inquiry not found")
)

// Client talks to the identity vendor's REST API.
type Client struct {
	baseURL    string
	apiKey     string
	templateID string
	env        string
	apiVersion string
	client     *http.Client
}

type Option func(*Client)

func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = u }
}

func NewClient(apiKey, templateID, env string, opts ...Option) *Client {
	c := &Client{
		baseURL:    defaultBaseURL,
		apiKey:     apiKey,
		templateID: templateID,
		env:        env,
		apiVersion: "2023-01-05",
		client:     &http.Client{Timeout: 15 * time.Second},
	}
	if c.env == "" {
		c.env = "sandbox"
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Configured reports whether the client can reach the vendor API.
func (c *Client) Configured() bool {
	return c.apiKey != "" && c.templateID != ""
}

// HostedLink is a ready-to-open hosted verification flow URL.
type HostedLink struct {
	URL         string `json:"url"`
	ReferenceID string `json:"reference_id"`
	Environment string `json:"environment"`
	TemplateID  string `json:"template_id"`
}

// NewHostedLink builds the hosted-flow URL for a reference. An empty
// reference gets a generated one. No network call is involved.
func (c *Client) NewHostedLink(referenceID, redirectURI, state string) (HostedLink, error) {
	if c.templateID == "" {
		return HostedLink{}, ErrNotConfigured
	}
	if referenceID == "" {
		referenceID = uuid.NewString()
	}

	params := url.Values{}
	params.Set("inquiry-template-id", c.templateID)
	params.Set("reference-id", referenceID)
	env := strings.ToLower(c.env)
	if env != "prod" && env != "production" {
		params.Set("environment", env)
	}
	if redirectURI != "" {
		params.Set("redirect-uri", redirectURI)
	}
	if state != "" {
		params.Set("state", state)
	}

	return HostedLink{
		URL:         "https://withpersona.com/verify?" + params.Encode(),
		ReferenceID: referenceID,
		Environment: env,
		TemplateID:  c.templateID,
	}, nil
}

// Summary is the normalized view of one inquiry.
type Summary struct {
	InquiryID      string         `json:"inquiry_id"`
	Status         string         `json:"status,omitempty"`
	ReferenceID    string         `json:"reference_id,omitempty"`
	FirstName      string         `json:"first_name,omitempty"`
	LastName       string         `json:"last_name,omitempty"`
	DateOfBirth    string         `json:"date_of_birth,omitempty"`
	IDNumber       string         `json:"id_number,omitempty"`
	Address        string         `json:"address,omitempty"`
	DocumentType   string         `json:"document_type,omitempty"`
	Confidence     *float64       `json:"confidence,omitempty"`
	ExpirationDate string         `json:"expiration_date,omitempty"`
	Decision       string         `json:"decision,omitempty"`
	RiskScore      *float64       `json:"risk_score,omitempty"`
	Fields         map[string]any `json:"fields"`
	Environment    string         `json:"environment"`
}

// FetchInquiry fetches and normalizes an inquiry by its vendor id.
func (c *Client) FetchInquiry(ctx context.Context, inquiryID string) (*Summary, error) {
	if inquiryID == "" {
		return nil, fmt.Errorf("missing inquiry id")
	}
	payload, err := c.get(ctx, "/inquiries/"+url.PathEscape(inquiryID), nil)
	if err != nil {
		return nil, err
	}
	data, _ := payload["data"].(map[string]any)
	if len(data) == 0 {
		return nil, ErrInquiryNotFound
	}
	return c.summarize(data), nil
}

// FetchLatestByReference fetches the most recent inquiry created under a
// reference id.
func (c *Client) FetchLatestByReference(ctx context.Context, referenceID string) (*Summary, error) {
	if referenceID == "" {
		return nil, fmt.Errorf("missing reference id")
	}
	params := url.Values{}
	params.Set("reference-id", referenceID)
	params.Set("page[size]", "1")
	params.Set("page[number]", "1")

	payload, err := c.get(ctx, "/inquiries", params)
	if err != nil {
		return nil, err
	}
	switch data := payload["data"].(type) {
	case []any:
		if len(data) == 0 {
			return nil, ErrInquiryNotFound
		}
		if first, ok := data[0].(map[string]any); ok {
			return c.summarize(first), nil
		}
	case map[string]any:
		if len(data) > 0 {
			return c.summarize(data), nil
		}
	}
	return nil, ErrInquiryNotFound
}

func (c *Client) get(ctx context.Context, path string, params url.Values) (map[string]any, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}
	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("build inquiry request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Persona-Version", c.apiVersion)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("identity API request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read identity API response: %w", err)
	}
	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrInquiryNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("identity API error (%d): %s", resp.StatusCode, body)
	}

	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("decode identity API response: %w", err)
	}
	return payload, nil
}

func (c *Client) summarize(inquiry map[string]any) *Summary {
	attributes, _ := inquiry["attributes"].(map[string]any)
	fields, _ := attributes["fields"].(map[string]any)

	first := func(keys ...string) string {
		for _, k := range keys {
			if v := asString(fields[k]); v != "" {
				return v
			}
		}
		return ""
	}

	addressParts := []string{
		first("address-full", "address", "address-street-1", "address-line-1"),
		first("address-street-2", "address-line-2"),
		first("address-city", "city"),
		first("address-subdivision", "address-state", "state"),
		first("address-postal-code", "address-zip", "postal_code", "zip"),
		first("address-country-code", "address-country", "country"),
	}
	var nonEmpty []string
	for _, p := range addressParts {
		if p != "" {
			nonEmpty = append(nonEmpty, p)
		}
	}

	// Confidence is the highest of the vendor's document and selfie scores.
	var scores []float64
	for _, k := range []string{
		"document-authenticity-score",
		"document-confidence-score",
		"document-quality-score",
		"selfie-similarity-score",
		"selfie-liveness-score",
	} {
		if v, ok := asFloat(fields[k]); ok {
			scores = append(scores, v)
		}
	}
	var riskScore *float64
	if v, ok := asFloat(attributes["risk-score"]); ok {
		riskScore = &v
		scores = append(scores, v)
	}
	var confidence *float64
	for _, s := range scores {
		if confidence == nil || s > *confidence {
			v := s
			confidence = &v
		}
	}

	return &Summary{
		InquiryID:      asString(inquiry["id"]),
		Status:         asString(attributes["status"]),
		ReferenceID:    asString(attributes["reference-id"]),
		FirstName:      first("name-first", "first_name", "firstName"),
		LastName:       first("name-last", "last_name", "lastName"),
		DateOfBirth:    first("birthdate", "date-of-birth", "dob"),
		IDNumber:       first("government-id-number", "document-number", "id-number", "idNumber"),
		Address:        strings.Join(nonEmpty, ", "),
		DocumentType:   first("document-type", "documentType"),
		Confidence:     confidence,
		ExpirationDate: first("document-expiration-date", "document-expiry-date", "expiration-date", "expirationDate"),
		Decision:       asString(attributes["decision"]),
		RiskScore:      riskScore,
		Fields:         fields,
		Environment:    c.env,
	}
}

// unwrap reduces the vendor's nested field payloads to a primitive value.
// Fields arrive as {"type": ..., "value": ...} wrappers, sometimes nested.
func unwrap(value any) any {
	switch v := value.(type) {
	case map[string]any:
		for _, key := range []string{"value", "data", "raw", "display"} {
			if inner, ok := v[key]; ok && inner != nil {
				return unwrap(inner)
			}
		}
		for _, inner := range v {
			if resolved := unwrap(inner); resolved != nil && resolved != "" {
				return resolved
			}
		}
		return nil
	case []any:
		for _, item := range v {
			if resolved := unwrap(item); resolved != nil && resolved != "" {
				return resolved
			}
		}
		return nil
	default:
		return v
	}
}

func asString(value any) string {
	v := unwrap(value)
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(s)
	default:
		return fmt.Sprintf("%v", s)
	}
}

func asFloat(value any) (float64, bool) {
	switch v := unwrap(value).(type) {
	case float64:
		return v, true
	case string:
		f, err := strconv.ParseFloat(v, 64)
		return f, err == nil
	default:
		return 0, false
	}
}
