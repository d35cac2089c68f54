package syncclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"creditflow/application"
	"creditflow/status"
)

// APIClient implements Remote against the REST API.
type APIClient struct {
	base   string
	token  string
	client *http.Client
}

func NewAPIClient(base, token string) *APIClient {
	return &APIClient{
		base:   base,
		token:  token,
		client: &http.Client{Timeout: 15 * time.Second},
	}
}

// wireRecord mirrors the API's record payload.
type wireRecord struct {
	ID         string  `json:"id"`
	ClientName string  `json:"client_name"`
	Amount     float64 `json:"amount"`

	Status        string `json:"status"`
	AdvisorStatus string `json:"advisor_status"`
	CompanyStatus string `json:"company_status"`
	GlobalStatus  string `json:"global_status"`

	ApprovedByAdvisor   bool       `json:"approved_by_advisor"`
	ApprovedByCompany   bool       `json:"approved_by_company"`
	ApprovalDateAdvisor *time.Time `json:"approval_date_advisor"`
	ApprovalDateCompany *time.Time `json:"approval_date_company"`

	RejectedByAdvisor bool `json:"rejected_by_advisor"`
	RejectedByCompany bool `json:"rejected_by_company"`

	DispersalDate *time.Time `json:"dispersal_date"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

func (w wireRecord) toRecord() application.StatusRecord {
	return application.StatusRecord{
		ID:                  w.ID,
		ClientName:          w.ClientName,
		Amount:              w.Amount,
		Status:              status.Status(w.Status),
		AdvisorStatus:       status.Status(w.AdvisorStatus),
		CompanyStatus:       status.Status(w.CompanyStatus),
		GlobalStatus:        status.Status(w.GlobalStatus),
		ApprovedByAdvisor:   w.ApprovedByAdvisor,
		ApprovedByCompany:   w.ApprovedByCompany,
		ApprovalDateAdvisor: w.ApprovalDateAdvisor,
		ApprovalDateCompany: w.ApprovalDateCompany,
		RejectedByAdvisor:   w.RejectedByAdvisor,
		RejectedByCompany:   w.RejectedByCompany,
		DispersalDate:       w.DispersalDate,
		CreatedAt:           w.CreatedAt,
		UpdatedAt:           w.UpdatedAt,
	}
}

func (a *APIClient) do(ctx context.Context, method, path string, body any) ([]byte, int, error) {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return nil, 0, fmt.Errorf("syncclient: encode request: %w", err)
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, a.base+path, &buf)
	if err != nil {
		return nil, 0, fmt.Errorf("syncclient: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+a.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("syncclient: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("syncclient: read response: %w", err)
	}
	return data, resp.StatusCode, nil
}

func apiError(data []byte, code int) error {
	var out struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(data, &out); err == nil && out.Error != "" {
		return fmt.Errorf("%s", out.Error)
	}
	return fmt.Errorf("syncclient: unexpected status %d", code)
}

func (a *APIClient) Fetch(ctx context.Context, id string) (application.StatusRecord, error) {
	data, code, err := a.do(ctx, http.MethodGet, "/api/applications/"+id, nil)
	if err != nil {
		return application.StatusRecord{}, err
	}
	if code == http.StatusNotFound {
		return application.StatusRecord{}, application.ErrNotFound
	}
	if code != http.StatusOK {
		return application.StatusRecord{}, apiError(data, code)
	}

	var rec wireRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return application.StatusRecord{}, fmt.Errorf("syncclient: decode record: %w", err)
	}
	return rec.toRecord(), nil
}

func (a *APIClient) FetchAll(ctx context.Context) ([]application.StatusRecord, error) {
	data, code, err := a.do(ctx, http.MethodGet, "/api/applications", nil)
	if err != nil {
		return nil, err
	}
	if code != http.StatusOK {
		return nil, apiError(data, code)
	}

	var out struct {
		Records []wireRecord `json:"records"`
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("syncclient: decode records: %w", err)
	}
	records := make([]application.StatusRecord, 0, len(out.Records))
	for _, rec := range out.Records {
		records = append(records, rec.toRecord())
	}
	return records, nil
}

func (a *APIClient) Move(ctx context.Context, id string, target status.Status, comment string) (application.StatusRecord, error) {
	data, code, err := a.do(ctx, http.MethodPut, "/api/applications/"+id+"/status", map[string]string{
		"status":  string(target),
		"comment": comment,
	})
	if err != nil {
		return application.StatusRecord{}, err
	}
	if code == http.StatusNotFound {
		return application.StatusRecord{}, application.ErrNotFound
	}
	if code != http.StatusOK {
		return application.StatusRecord{}, apiError(data, code)
	}

	// A same-column drop comes back wrapped with the unchanged record.
	var wrapped struct {
		NoOp   bool        `json:"no_op"`
		Record *wireRecord `json:"record"`
	}
	if err := json.Unmarshal(data, &wrapped); err == nil && wrapped.NoOp && wrapped.Record != nil {
		return wrapped.Record.toRecord(), nil
	}

	var rec wireRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return application.StatusRecord{}, fmt.Errorf("syncclient: decode record: %w", err)
	}
	return rec.toRecord(), nil
}
