package models

// JobResponse is returned by POST datarequest.
type JobResponse struct {
	JobID   string `json:"jobId"`
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// StatusResponse is returned by the job and order status endpoints.
type StatusResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// TokenResponse is returned by gettoken.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in,omitempty"`
}

// TermsResponse is returned by GET termsaccepted.
type TermsResponse struct {
	Accepted bool `json:"accepted"`
}
