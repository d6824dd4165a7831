package repository

import (
	"context"
	"time"

	"github.com/hana270/PFE-PROJET/internal/domain"
)

type Credentials struct {
	Host              string
	Port              int
	User              string
	Password          string
	DBName            string
	MigrationsDirPath string
}

type OrderRepository interface {
	CreateOrder(ctx context.Context, order *domain.Order) error
	GetOrderByReference(ctx context.Context, reference string) (*domain.Order, error)
	ListOrdersByAccount(ctx context.Context, accountID string) ([]*domain.Order, error)
	UpdateOrderStatus(ctx context.Context, reference string, status domain.OrderStatus, paidAt *time.Time) error
	SaveVerification(ctx context.Context, v *domain.PaymentVerification) error
	GetVerification(ctx context.Context, transactionID string) (*domain.PaymentVerification, error)
	UpdateVerification(ctx context.Context, v *domain.PaymentVerification) error
	RunMigrations(*Credentials) error
	Close() error
}
