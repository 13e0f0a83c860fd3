package dto

// StartRunRequest starts an ingestion run. An empty supplier id runs every
// enabled supplier.
type StartRunRequest struct {
	SupplierID string `json:"supplier_id" binding:"omitempty,max=64"`
}

// StartRunResponse is returned with 202 Accepted
type StartRunResponse struct {
	RunID     string `json:"run_id"`
	StatusURL string `json:"status_url"`
}

// ScrapeJobRequest invokes the storefront scrape job. Credentials are
// optional; the configured ones are used when both are empty.
type ScrapeJobRequest struct {
	Username string `json:"username" binding:"required_with=Password,max=255"`
	Password string `json:"password" binding:"required_with=Username,max=255"`
	TestMode bool   `json:"test_mode"`
}

// ListRunsRequest pages through recent run reports
type ListRunsRequest struct {
	Limit int `form:"limit" binding:"omitempty,min=1,max=50"`
}
