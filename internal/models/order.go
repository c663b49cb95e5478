package models

// OrderRequest is the body of POST dataorder.
type OrderRequest struct {
	JobID string `json:"jobId"`
	URI   string `json:"uri"`
}

// OrderResponse is returned by POST dataorder.
type OrderResponse struct {
	OrderID string `json:"orderId"`
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}
