package api

import (
	"context"
	"encoding/json"
	"fmt"
	nethttp "net/http"
	"net/url"

	"github.com/eodata/hdaget/internal/models"
)

// GetToken exchanges a base64 api key for a bearer token.
func (c *Client) GetToken(ctx context.Context, apiKey string) (string, error) {
	resp, err := c.doRequest(ctx, "get_token", nethttp.MethodGet, "/gettoken", "Basic "+apiKey, nil)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != nethttp.StatusOK {
		return "", &AuthError{Op: "get token", Status: resp.StatusCode, Body: readErrorBody(resp)}
	}

	var tok models.TokenResponse
	if err := decodeJSON(resp, "token", &tok); err != nil {
		return "", err
	}
	if tok.AccessToken == "" {
		return "", &AuthError{Op: "get token", Status: resp.StatusCode, Body: "response has no access_token"}
	}
	return tok.AccessToken, nil
}

// TermsAccepted reports whether the account has accepted termsID.
func (c *Client) TermsAccepted(ctx context.Context, termsID string) (bool, error) {
	auth, err := c.bearer()
	if err != nil {
		return false, err
	}
	resp, err := c.doRequest(ctx, "terms_read", nethttp.MethodGet, "/termsaccepted/"+url.PathEscape(termsID), auth, nil)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != nethttp.StatusOK {
		return false, &AuthError{Op: "read terms", Status: resp.StatusCode, Body: readErrorBody(resp)}
	}

	var terms models.TermsResponse
	if err := decodeJSON(resp, "terms", &terms); err != nil {
		return false, err
	}
	return terms.Accepted, nil
}

// AcceptTerms records acceptance of termsID.
func (c *Client) AcceptTerms(ctx context.Context, termsID string) error {
	auth, err := c.bearer()
	if err != nil {
		return err
	}
	resp, err := c.doRequest(ctx, "terms_accept", nethttp.MethodPut, "/termsaccepted/"+url.PathEscape(termsID), auth, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if !isSuccess(resp.StatusCode) {
		return &AuthError{Op: "accept terms", Status: resp.StatusCode, Body: readErrorBody(resp)}
	}
	return nil
}

// QueryMetadata returns the raw query-parameter description of a dataset.
func (c *Client) QueryMetadata(ctx context.Context, datasetID string) (json.RawMessage, error) {
	auth, err := c.bearer()
	if err != nil {
		return nil, err
	}
	resp, err := c.doRequest(ctx, "query_metadata", nethttp.MethodGet, "/querymetadata/"+url.PathEscape(datasetID), auth, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != nethttp.StatusOK {
		return nil, &APIError{Op: "query metadata", Status: resp.StatusCode, Body: readErrorBody(resp)}
	}

	var raw json.RawMessage
	if err := decodeJSON(resp, "metadata", &raw); err != nil {
		return nil, err
	}
	return raw, nil
}

// SubmitJob posts a query document and returns the created job.
func (c *Client) SubmitJob(ctx context.Context, query json.RawMessage) (*models.JobResponse, error) {
	auth, err := c.bearer()
	if err != nil {
		return nil, err
	}
	resp, err := c.doRequest(ctx, "job_submit", nethttp.MethodPost, "/datarequest", auth, query)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if !isSuccess(resp.StatusCode) {
		return nil, &SubmissionError{Op: "submit job", Index: -1, Status: resp.StatusCode, Body: readErrorBody(resp)}
	}

	var job models.JobResponse
	if err := decodeJSON(resp, "job", &job); err != nil {
		return nil, &SubmissionError{Op: "submit job", Index: -1, Status: resp.StatusCode, Err: err}
	}
	if job.JobID == "" {
		return nil, &SubmissionError{Op: "submit job", Index: -1, Status: resp.StatusCode, Body: "response has no jobId"}
	}
	return &job, nil
}

// GetJobStatus returns the current status of a job.
func (c *Client) GetJobStatus(ctx context.Context, jobID string) (*models.StatusResponse, error) {
	if jobID == "" {
		return nil, ErrNoJob
	}
	return c.getStatus(ctx, "job_status", "/datarequest/status/"+url.PathEscape(jobID))
}

// GetOrderStatus returns the current status of an order.
func (c *Client) GetOrderStatus(ctx context.Context, orderID string) (*models.StatusResponse, error) {
	if orderID == "" {
		return nil, fmt.Errorf("order status: empty order id")
	}
	return c.getStatus(ctx, "order_status", "/dataorder/status/"+url.PathEscape(orderID))
}

func (c *Client) getStatus(ctx context.Context, op, path string) (*models.StatusResponse, error) {
	auth, err := c.bearer()
	if err != nil {
		return nil, err
	}
	resp, err := c.doRequest(ctx, op, nethttp.MethodGet, path, auth, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != nethttp.StatusOK {
		return nil, &APIError{Op: op, Status: resp.StatusCode, Body: readErrorBody(resp)}
	}

	var st models.StatusResponse
	if err := decodeJSON(resp, op, &st); err != nil {
		return nil, err
	}
	return &st, nil
}

// ListResults fetches one page of result descriptors for a completed job.
// Pages are zero-based.
func (c *Client) ListResults(ctx context.Context, jobID string, page, size int) (*models.ResultPage, error) {
	if jobID == "" {
		return nil, ErrNoJob
	}
	auth, err := c.bearer()
	if err != nil {
		return nil, err
	}

	q := url.Values{}
	q.Set("page", fmt.Sprint(page))
	q.Set("size", fmt.Sprint(size))
	path := "/datarequest/jobs/" + url.PathEscape(jobID) + "/result?" + q.Encode()

	resp, err := c.doRequest(ctx, "list_results", nethttp.MethodGet, path, auth, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != nethttp.StatusOK {
		return nil, &APIError{Op: "list results", Status: resp.StatusCode, Body: readErrorBody(resp)}
	}

	var rp models.ResultPage
	if err := decodeJSON(resp, "results", &rp); err != nil {
		return nil, err
	}
	rp.Page = page
	return &rp, nil
}

// CreateOrder requests a download authorization for one result. index is the
// result's position and is carried into any SubmissionError.
func (c *Client) CreateOrder(ctx context.Context, index int, jobID, uri string) (*models.OrderResponse, error) {
	if jobID == "" {
		return nil, ErrNoJob
	}
	auth, err := c.bearer()
	if err != nil {
		return nil, err
	}

	body := models.OrderRequest{JobID: jobID, URI: uri}
	resp, err := c.doRequest(ctx, "order_submit", nethttp.MethodPost, "/dataorder", auth, body)
	if err != nil {
		return nil, &SubmissionError{Op: "create order", Index: index, Err: err}
	}
	defer resp.Body.Close()

	if !isSuccess(resp.StatusCode) {
		return nil, &SubmissionError{Op: "create order", Index: index, Status: resp.StatusCode, Body: readErrorBody(resp)}
	}

	var order models.OrderResponse
	if err := decodeJSON(resp, "order", &order); err != nil {
		return nil, &SubmissionError{Op: "create order", Index: index, Status: resp.StatusCode, Err: err}
	}
	if order.OrderID == "" {
		return nil, &SubmissionError{Op: "create order", Index: index, Status: resp.StatusCode, Body: "response has no orderId"}
	}
	return &order, nil
}

// DownloadURL returns the streaming endpoint for an order.
func (c *Client) DownloadURL(orderID string) string {
	return c.baseURL + "/dataorder/download/" + url.PathEscape(orderID)
}

// OpenDownload starts streaming an order's file. The response is returned
// whatever its status; the caller owns the body.
func (c *Client) OpenDownload(ctx context.Context, orderID string) (*nethttp.Response, error) {
	auth, err := c.bearer()
	if err != nil {
		return nil, err
	}
	return c.do(ctx, c.downloadClient, "download", nethttp.MethodGet, "/dataorder/download/"+url.PathEscape(orderID), auth, nil)
}
