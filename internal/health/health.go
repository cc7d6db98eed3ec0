package health

// Status represents the health status of a component or the service.
type Status string

const (
	StatusHealthy  Status = "healthy"
	StatusDegraded Status = "degraded"
	StatusCritical Status = "critical"
)

// Report is the aggregate health of the service.
type Report struct {
	Status      Status            `json:"status"`
	Components  map[string]Status `json:"components"`
	QueueDepth  int64             `json:"queue_depth"`
	FailedCount int               `json:"failed_orders"`
}
