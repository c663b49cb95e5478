package core

import (
	"github.com/eodata/hdaget/internal/config"
	"github.com/eodata/hdaget/internal/models"
)

// Session is the state of one run. The caller owns it and passes it to every
// step; steps fill it in as the run proceeds. It is never persisted.
type Session struct {
	BrokerURL   string
	DatasetID   string
	APIKey      string // base64 "username:password"
	DownloadDir string

	Token         string
	TermsAccepted bool
	JobID         string
	Results       []models.Result
	Orders        []OrderOutcome
}

// NewSession starts a session from resolved configuration.
func NewSession(cfg *config.Config) *Session {
	return &Session{
		BrokerURL:   cfg.BaseURL(),
		DatasetID:   cfg.DatasetID,
		APIKey:      cfg.APIKey,
		DownloadDir: cfg.DownloadDir,
	}
}

// OrderOutcome is the result of ordering one product. Index and Result always
// refer to the descriptor the order was derived from.
type OrderOutcome struct {
	Index   int
	Result  models.Result
	OrderID string
	Size    int64
	Status  models.Status
	Err     error
}

// OK reports whether the order completed and can be downloaded.
func (o OrderOutcome) OK() bool {
	return o.Err == nil && o.Status == models.StatusCompleted
}

// CompletedOrders returns the orders that can be downloaded, in result order.
func (s *Session) CompletedOrders() []OrderOutcome {
	var ok []OrderOutcome
	for _, o := range s.Orders {
		if o.OK() {
			ok = append(ok, o)
		}
	}
	return ok
}

// resetJob clears everything derived from a previous job.
func (s *Session) resetJob() {
	s.JobID = ""
	s.Results = nil
	s.Orders = nil
}
