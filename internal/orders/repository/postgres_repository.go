package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/hana270/PFE-PROJET/internal/domain"
	_ "github.com/lib/pq"
)

type Repository struct {
	db *sql.DB
}

func NewRepository(cred *Credentials) (*Repository, error) {
	psqlconn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		cred.Host,
		cred.Port,
		cred.User,
		cred.Password,
		cred.DBName)

	db, err := sql.Open("postgres", psqlconn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if e2 := db.Ping(); e2 != nil {
		return nil, fmt.Errorf("failed to ping database: %w", e2)
	}

	db.SetMaxOpenConns(100)
	db.SetMaxIdleConns(10)
	return &Repository{db: db}, nil
}

func (r *Repository) RunMigrations(cred *Credentials) error {
	driver, err := postgres.WithInstance(r.db, &postgres.Config{
		MigrationsTable: "orders_schema_migrations",
	})
	if err != nil {
		return fmt.Errorf("could not create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(
		fmt.Sprintf("file://%s", cred.MigrationsDirPath),
		"postgres",
		driver,
	)
	if err != nil {
		return fmt.Errorf("could not create migrate instance: %w", err)
	}

	if e2 := m.Up(); e2 != nil && !errors.Is(e2, migrate.ErrNoChange) {
		return fmt.Errorf("could not run migrations: %w", e2)
	}

	return nil
}

func (r *Repository) CreateOrder(ctx context.Context, order *domain.Order) error {
	linesJSON, err := json.Marshal(order.Lines)
	if err != nil {
		return fmt.Errorf("failed to marshal order lines: %w", err)
	}
	deliveryJSON, err := json.Marshal(order.Delivery)
	if err != nil {
		return fmt.Errorf("failed to marshal delivery info: %w", err)
	}

	query := `INSERT INTO orders (id, reference, account_id, email, status, lines, subtotal, tax_amount, shipping_fee, grand_total, delivery, created_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NOW())`

	_, insertErr := r.db.ExecContext(ctx, query,
		order.ID,
		order.Reference,
		order.AccountID,
		order.Email,
		order.Status,
		linesJSON,
		order.Subtotal,
		order.TaxAmount,
		order.ShippingFee,
		order.GrandTotal,
		deliveryJSON)

	if insertErr != nil {
		return fmt.Errorf("insert order: %w", insertErr)
	}
	return nil
}

const orderColumns = `id, reference, account_id, email, status, lines, subtotal, tax_amount, shipping_fee, grand_total, delivery, created_at, paid_at`

func scanOrder(row interface{ Scan(...interface{}) error }) (*domain.Order, error) {
	var order domain.Order
	var linesJSON, deliveryJSON []byte
	err := row.Scan(
		&order.ID,
		&order.Reference,
		&order.AccountID,
		&order.Email,
		&order.Status,
		&linesJSON,
		&order.Subtotal,
		&order.TaxAmount,
		&order.ShippingFee,
		&order.GrandTotal,
		&deliveryJSON,
		&order.CreatedAt,
		&order.PaidAt,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(linesJSON, &order.Lines); err != nil {
		return nil, fmt.Errorf("unmarshal order lines: %w", err)
	}
	if err := json.Unmarshal(deliveryJSON, &order.Delivery); err != nil {
		return nil, fmt.Errorf("unmarshal delivery info: %w", err)
	}
	return &order, nil
}

func (r *Repository) GetOrderByReference(ctx context.Context, reference string) (*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE reference = $1`

	order, err := scanOrder(r.db.QueryRowContext(ctx, query, reference))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query order by reference: %w", err)
	}
	return order, nil
}

func (r *Repository) ListOrdersByAccount(ctx context.Context, accountID string) ([]*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE account_id = $1 ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, accountID)
	if err != nil {
		return nil, fmt.Errorf("query orders by account: %w", err)
	}
	defer rows.Close()

	var orders []*domain.Order
	for rows.Next() {
		order, errScan := scanOrder(rows)
		if errScan != nil {
			return nil, fmt.Errorf("scan order row: %w", errScan)
		}
		orders = append(orders, order)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return orders, nil
}

func (r *Repository) UpdateOrderStatus(ctx context.Context, reference string, status domain.OrderStatus, paidAt *time.Time) error {
	query := `UPDATE orders SET status = $2, paid_at = $3 WHERE reference = $1`

	res, err := r.db.ExecContext(ctx, query, reference, status, paidAt)
	if err != nil {
		return fmt.Errorf("update order status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update order status: %w", err)
	}
	if affected == 0 {
		return domain.ErrOrderNotFound
	}
	return nil
}

func (r *Repository) SaveVerification(ctx context.Context, v *domain.PaymentVerification) error {
	query := `INSERT INTO payment_verifications
	          (transaction_id, status, code, expires_at, verified, verified_at, attempts, resend_count, email, card_masked, cardholder_name, amount, settlement_ref, pending, created_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, NOW())`

	_, err := r.db.ExecContext(ctx, query,
		v.TransactionID,
		v.Status,
		v.Code,
		v.ExpiresAt,
		v.Verified,
		v.VerifiedAt,
		v.Attempts,
		v.ResendCount,
		v.Email,
		v.CardMasked,
		v.CardholderName,
		v.Amount,
		v.SettlementRef,
		[]byte(v.Pending))
	if err != nil {
		return fmt.Errorf("insert payment verification: %w", err)
	}
	return nil
}

func (r *Repository) GetVerification(ctx context.Context, transactionID string) (*domain.PaymentVerification, error) {
	query := `SELECT transaction_id, status, code, expires_at, verified, verified_at, attempts, resend_count, email, card_masked, cardholder_name, amount, settlement_ref, pending, created_at
	          FROM payment_verifications WHERE transaction_id = $1`

	var v domain.PaymentVerification
	var pending []byte
	err := r.db.QueryRowContext(ctx, query, transactionID).Scan(
		&v.TransactionID,
		&v.Status,
		&v.Code,
		&v.ExpiresAt,
		&v.Verified,
		&v.VerifiedAt,
		&v.Attempts,
		&v.ResendCount,
		&v.Email,
		&v.CardMasked,
		&v.CardholderName,
		&v.Amount,
		&v.SettlementRef,
		&pending,
		&v.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrTransactionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query payment verification: %w", err)
	}
	v.Pending = pending
	return &v, nil
}

func (r *Repository) UpdateVerification(ctx context.Context, v *domain.PaymentVerification) error {
	query := `UPDATE payment_verifications
	          SET status = $2, code = $3, expires_at = $4, verified = $5, verified_at = $6,
	              attempts = $7, resend_count = $8, settlement_ref = $9
	          WHERE transaction_id = $1`

	res, err := r.db.ExecContext(ctx, query,
		v.TransactionID,
		v.Status,
		v.Code,
		v.ExpiresAt,
		v.Verified,
		v.VerifiedAt,
		v.Attempts,
		v.ResendCount,
		v.SettlementRef)
	if err != nil {
		return fmt.Errorf("update payment verification: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update payment verification: %w", err)
	}
	if affected == 0 {
		return domain.ErrTransactionNotFound
	}
	return nil
}

func (r *Repository) Close() error {
	return r.db.Close()
}
