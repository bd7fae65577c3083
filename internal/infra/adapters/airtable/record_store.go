// File: internal/infra/adapters/airtable/record_store.go
package airtable

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"chatbot-checkout/internal/config"
	"chatbot-checkout/internal/domain"
	"chatbot-checkout/internal/domain/model"
	"chatbot-checkout/internal/domain/ports/adapter"
)

var _ adapter.RecordStore = (*RecordStore)(nil)

// Column names in the leads table.
const (
	fieldEmail         = "Email"
	fieldPaymentStatus = "Payment Status"
	fieldPaymentID     = "Payment ID"
	fieldPaymentDate   = "Payment Date"
	fieldStatus        = "Status"
	fieldSessionID     = "Session ID"
	fieldSavings       = "Savings Amount"
)

// RecordStore reads and patches customer rows through the Airtable REST API.
type RecordStore struct {
	apiKey  string
	baseURL string // <base_url>/<base_id>/<table>
	client  *http.Client
}

func NewRecordStore(cfg config.AirtableConfig) (*RecordStore, error) {
	if cfg.APIKey == "" || cfg.BaseID == "" {
		return nil, errors.New("airtable api key and base id are required")
	}
	base := strings.TrimRight(cfg.BaseURL, "/")
	if _, err := url.Parse(base); err != nil {
		return nil, fmt.Errorf("invalid airtable base url: %w", err)
	}
	return &RecordStore{
		apiKey:  cfg.APIKey,
		baseURL: base + "/" + url.PathEscape(cfg.BaseID) + "/" + url.PathEscape(cfg.TableName),
		client:  &http.Client{Timeout: cfg.Timeout},
	}, nil
}

// emailFormula builds {Email}='x' with the value's quotes escaped.
func emailFormula(email string) string {
	escaped := strings.NewReplacer(`\`, `\\`, `'`, `\'`).Replace(email)
	return fmt.Sprintf("{%s}='%s'", fieldEmail, escaped)
}

type listResponse struct {
	Records []struct {
		ID     string         `json:"id"`
		Fields map[string]any `json:"fields"`
	} `json:"records"`
}

func (s *RecordStore) FindByEmail(ctx context.Context, email string) (*model.CustomerRecord, error) {
	q := url.Values{}
	q.Set("filterByFormula", emailFormula(email))
	q.Set("maxRecords", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: airtable search: %v", domain.ErrUpstream, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, upstreamError("search", resp)
	}

	var out listResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: airtable search decode: %v", domain.ErrUpstream, err)
	}
	if len(out.Records) == 0 {
		return nil, domain.ErrNotFound
	}
	r := out.Records[0]
	return &model.CustomerRecord{ID: r.ID, Email: email, Fields: r.Fields}, nil
}

func (s *RecordStore) Patch(ctx context.Context, recordID string, p model.RecordPatch) error {
	fields := map[string]any{
		fieldPaymentStatus: string(p.PaymentStatus),
		fieldStatus:        p.Lifecycle,
	}
	if p.PaymentID != "" {
		fields[fieldPaymentID] = p.PaymentID
	}
	if !p.PaymentDate.IsZero() {
		fields[fieldPaymentDate] = p.PaymentDate.UTC().Format(time.RFC3339)
	}
	if p.SessionID != "" {
		fields[fieldSessionID] = p.SessionID
	}
	if p.Savings > 0 {
		fields[fieldSavings] = model.MajorUnits(p.Savings)
	}
	body, err := json.Marshal(map[string]any{"fields": fields})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, s.baseURL+"/"+url.PathEscape(recordID), bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: airtable patch: %v", domain.ErrUpstream, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return upstreamError("patch", resp)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

func upstreamError(op string, resp *http.Response) error {
	var e struct {
		Error struct {
			Type    string `json:"type"`
			Message string `json:"message"`
		} `json:"error"`
	}
	_ = json.NewDecoder(io.LimitReader(resp.Body, 4096)).Decode(&e)
	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%w: airtable %s: %s", domain.ErrNotFound, op, e.Error.Type)
	}
	return fmt.Errorf("%w: airtable %s: status %d %s %s", domain.ErrUpstream, op, resp.StatusCode, e.Error.Type, e.Error.Message)
}
