package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault cola de las tareas de stock.
	QueueDefault = "default"
	// TaskStockRefresh recalcula y publica el snapshot de una organización (o de todas).
	TaskStockRefresh = "stock:refresh"
)

// RefreshPayload alcance del refresco; OrganizationID vacío = todas.
type RefreshPayload struct {
	OrganizationID string `json:"organization_id"`
}

// NewRefreshTask construye la tarea stock:refresh.
func NewRefreshTask(organizationID string, timeout time.Duration) (*asynq.Task, error) {
	body, err := json.Marshal(RefreshPayload{OrganizationID: organizationID})
	if err != nil {
		return nil, err
	}
	opts := []asynq.Option{asynq.Queue(QueueDefault), asynq.MaxRetry(3)}
	if timeout > 0 {
		opts = append(opts, asynq.Timeout(timeout))
	}
	return asynq.NewTask(TaskStockRefresh, body, opts...), nil
}
