package models

import "time"

// ProductInfo describes the product behind a result.
type ProductInfo struct {
	DatasetID        string `json:"datasetId"`
	Product          string `json:"product"`
	ProductStartDate string `json:"productStartDate"`
	ProductEndDate   string `json:"productEndDate"`
}

// Start parses ProductStartDate. A zero time means the broker sent nothing parseable.
func (p ProductInfo) Start() time.Time { return parseBrokerTime(p.ProductStartDate) }

// End parses ProductEndDate.
func (p ProductInfo) End() time.Time { return parseBrokerTime(p.ProductEndDate) }

func parseBrokerTime(s string) time.Time {
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

// Result is one product descriptor from a completed job.
type Result struct {
	Filename    string      `json:"filename"`
	Size        int64       `json:"size"`
	URL         string      `json:"url"`
	ProductInfo ProductInfo `json:"productInfo"`
}

// ResultPage is one page of GET datarequest/jobs/{jobId}/result.
type ResultPage struct {
	Content  []Result `json:"content"`
	TotItems int      `json:"totItems"`
	NextPage *string  `json:"nextPage"`
	Page     int      `json:"page,omitempty"`
}

// HasNext reports whether the broker advertised another page.
func (p *ResultPage) HasNext() bool {
	return p.NextPage != nil && *p.NextPage != ""
}
