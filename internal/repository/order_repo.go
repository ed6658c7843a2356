package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/wenwu/saas-platform/panel-fulfillment-service/internal/models"
)

type OrderRepository struct {
	pool *pgxpool.Pool
}

func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// GetWithProduct loads an order joined with its product and, when linked, the
// product's panel config.
func (r *OrderRepository) GetWithProduct(ctx context.Context, id int64) (*models.OrderDetail, error) {
	query := `
		SELECT o.id, o.user_id, o.product_id, COALESCE(o.contact_email, ''), COALESCE(o.username, ''), o.status,
			   COALESCE(o.payment_method, ''), o.payment_proof, o.pterodactyl_server_id, o.created_at, o.updated_at,
			   p.id, p.name, p.category, p.pterodactyl_config_id,
			   c.id, c.memory, c.cpu, c.disk, c.swap, c.io, c.location_id, c.egg_id, c.nest_id,
			   c.databases, c.allocations, c.backups, c.startup, c.docker_image, c.environment
		FROM orders o
		JOIN products p ON p.id = o.product_id
		LEFT JOIN pterodactyl_configs c ON c.id = p.pterodactyl_config_id
		WHERE o.id = $1
	`
	return scanOrderDetail(r.pool.QueryRow(ctx, query, id))
}

// MarkProvisioned sets the order to done and links the panel server. The write
// only applies while no server is linked yet; a concurrent winner makes it
// return ErrAlreadyProvisioned.
func (r *OrderRepository) MarkProvisioned(ctx context.Context, id int64, serverID string) error {
	query := `
		UPDATE orders SET
			status = $1,
			pterodactyl_server_id = $2,
			updated_at = NOW()
		WHERE id = $3 AND pterodactyl_server_id IS NULL
	`
	tag, err := r.pool.Exec(ctx, query, string(models.OrderStatusDone), serverID, id)
	if err != nil {
		return fmt.Errorf("update order: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAlreadyProvisioned
	}
	return nil
}

func scanOrderDetail(row pgx.Row) (*models.OrderDetail, error) {
	d := &models.OrderDetail{}
	o := &d.Order
	p := &d.Product

	var (
		status                          string
		cfgID                           *int64
		memory, cpu, disk, swap, io     *int
		locationID, eggID, nestID       *int
		databases, allocations, backups *int
		startup, dockerImage            *string
		environment                     []byte
	)

	err := row.Scan(
		&o.ID, &o.UserID, &o.ProductID, &o.ContactEmail, &o.Username, &status,
		&o.PaymentMethod, &o.PaymentProof, &o.PterodactylServerID, &o.CreatedAt, &o.UpdatedAt,
		&p.ID, &p.Name, &p.Category, &p.PterodactylConfigID,
		&cfgID, &memory, &cpu, &disk, &swap, &io, &locationID, &eggID, &nestID,
		&databases, &allocations, &backups, &startup, &dockerImage, &environment,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan order: %w", err)
	}
	o.Status = models.OrderStatus(status)

	if cfgID == nil {
		return d, nil
	}

	cfg := &models.PanelConfig{
		ID:          *cfgID,
		Memory:      deref(memory),
		CPU:         deref(cpu),
		Disk:        deref(disk),
		Swap:        deref(swap),
		IO:          deref(io),
		LocationID:  deref(locationID),
		EggID:       deref(eggID),
		NestID:      deref(nestID),
		Databases:   databases,
		Allocations: allocations,
		Backups:     backups,
		Startup:     startup,
		DockerImage: dockerImage,
	}
	if len(environment) > 0 {
		if err := json.Unmarshal(environment, &cfg.Environment); err != nil {
			return nil, fmt.Errorf("decode config environment: %w", err)
		}
	}
	d.Config = cfg

	return d, nil
}

func deref(v *int) int {
	if v == nil {
		return 0
	}
	return *v
}
