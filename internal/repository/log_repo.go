package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/wenwu/saas-platform/panel-fulfillment-service/internal/models"
)

type LogRepository struct {
	pool *pgxpool.Pool
}

func NewLogRepository(pool *pgxpool.Pool) *LogRepository {
	return &LogRepository{pool: pool}
}

// Create creates a new fulfillment log entry
func (r *LogRepository) Create(ctx context.Context, logEntry *models.FulfillmentLog) error {
	if logEntry.ID == "" {
		logEntry.ID = uuid.New().String()
	}

	query := `
		INSERT INTO fulfillment_logs (id, order_id, action, status, message, metadata)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := r.pool.Exec(ctx, query,
		logEntry.ID, logEntry.OrderID, logEntry.Action, logEntry.Status, logEntry.Message, logEntry.Metadata,
	)
	if err != nil {
		return fmt.Errorf("insert fulfillment log: %w", err)
	}

	return nil
}

// GetByOrderID retrieves logs for an order, newest first
func (r *LogRepository) GetByOrderID(ctx context.Context, orderID int64, limit int) ([]*models.FulfillmentLog, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT id, order_id, action, status, message, metadata, created_at
		FROM fulfillment_logs
		WHERE order_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`

	rows, err := r.pool.Query(ctx, query, orderID, limit)
	if err != nil {
		return nil, fmt.Errorf("query fulfillment logs: %w", err)
	}
	defer rows.Close()

	var logEntries []*models.FulfillmentLog
	for rows.Next() {
		logEntry := &models.FulfillmentLog{}
		err := rows.Scan(
			&logEntry.ID, &logEntry.OrderID, &logEntry.Action, &logEntry.Status,
			&logEntry.Message, &logEntry.Metadata, &logEntry.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan fulfillment log: %w", err)
		}
		logEntries = append(logEntries, logEntry)
	}

	return logEntries, rows.Err()
}

// LogAction is a helper to log an action
func (r *LogRepository) LogAction(ctx context.Context, orderID int64, action, status, message string) error {
	return r.LogActionWithMetadata(ctx, orderID, action, status, message, nil)
}

// LogActionWithMetadata is a helper to log an action with metadata
func (r *LogRepository) LogActionWithMetadata(ctx context.Context, orderID int64, action, status, message string, metadata map[string]interface{}) error {
	logEntry := &models.FulfillmentLog{
		OrderID:  orderID,
		Action:   action,
		Status:   status,
		Message:  message,
		Metadata: metadata,
	}
	return r.Create(ctx, logEntry)
}
