package service

import (
	"context"
	"crypto/rand"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/hana270/PFE-PROJET/internal/domain"
	"github.com/hana270/PFE-PROJET/internal/orders/repository"
)

const (
	taxRate     = 0.19
	shippingFee = 20.0
)

// Decrementer reserves stock with the catalog after an order lands.
type Decrementer interface {
	DecrementStock(ctx context.Context, productID string, quantity int) error
}

// CartClearer empties the cart the order was built from.
type CartClearer interface {
	ClearCart(ctx context.Context, accountID, sessionID string) error
}

// Notifier publishes order lifecycle events.
type Notifier interface {
	OrderCreated(ctx context.Context, order *domain.Order) error
}

type OrderService struct {
	repo    repository.OrderRepository
	catalog Decrementer
	carts   CartClearer
	notify  Notifier
}

func NewOrderService(repo repository.OrderRepository, catalog Decrementer, carts CartClearer, notify Notifier) *OrderService {
	return &OrderService{repo: repo, catalog: catalog, carts: carts, notify: notify}
}

// Assemble turns a verified pending checkout into a persisted order.
// Unit prices come from the cart snapshot taken at initiate time, never
// from the live catalog. Stock decrement and cart clearing are best
// effort: a failure there is logged, not returned, because the payment
// already went through.
func (s *OrderService) Assemble(ctx context.Context, pending *domain.PendingCheckout) (*domain.Order, error) {
	if len(pending.Items) == 0 {
		return nil, domain.Validationf("cannot assemble an order from an empty cart")
	}

	lines := make([]domain.OrderLine, 0, len(pending.Items))
	var subtotal float64
	for _, item := range pending.Items {
		unit := item.EffectivePrice()
		line := domain.OrderLine{
			ID:          uuid.NewString(),
			ProductID:   item.ProductID,
			ProductType: domain.ProductTypeCatalog,
			ProductName: item.ProductName,
			ImageURL:    item.ImageURL,
			Quantity:    item.Quantity,
			UnitPrice:   unit,
			LineTotal:   unit * float64(item.Quantity),
			Custom:      item.Custom,
		}
		if item.Customized {
			line.ProductType = domain.ProductTypeCustom
		}
		subtotal += line.LineTotal
		lines = append(lines, line)
	}

	reference := pending.OrderReference
	if reference == "" {
		reference = NewOrderReference(time.Now())
	}

	tax := subtotal * taxRate
	order := &domain.Order{
		ID:          uuid.NewString(),
		Reference:   reference,
		AccountID:   pending.AccountID,
		Email:       pending.Email,
		Status:      domain.OrderStatusPending,
		Lines:       lines,
		Subtotal:    subtotal,
		TaxAmount:   tax,
		ShippingFee: shippingFee,
		GrandTotal:  subtotal + tax + shippingFee,
		Delivery:    pending.Delivery,
		CreatedAt:   time.Now(),
	}

	if err := s.repo.CreateOrder(ctx, order); err != nil {
		return nil, err
	}

	s.decrementStock(ctx, order)

	// Without an account or session identity there is no source cart to
	// clear, and resolving one would create it.
	if s.carts != nil && (pending.AccountID != "" || pending.SessionID != "") {
		if err := s.carts.ClearCart(ctx, pending.AccountID, pending.SessionID); err != nil {
			log.Printf("order %s: failed to clear source cart: %v", order.Reference, err)
		}
	}

	if s.notify != nil {
		if err := s.notify.OrderCreated(ctx, order); err != nil {
			log.Printf("order %s: failed to publish created event: %v", order.Reference, err)
		}
	}

	return order, nil
}

// Validate moves a pending order to VALIDATED and stamps the paid time.
func (s *OrderService) Validate(ctx context.Context, reference string) (*domain.Order, error) {
	order, err := s.repo.GetOrderByReference(ctx, reference)
	if err != nil {
		return nil, err
	}
	if order.Status == domain.OrderStatusValidated {
		return order, nil
	}

	now := time.Now()
	if err := s.repo.UpdateOrderStatus(ctx, reference, domain.OrderStatusValidated, &now); err != nil {
		return nil, err
	}
	order.Status = domain.OrderStatusValidated
	order.PaidAt = &now
	return order, nil
}

func (s *OrderService) GetByReference(ctx context.Context, reference string) (*domain.Order, error) {
	return s.repo.GetOrderByReference(ctx, reference)
}

func (s *OrderService) ListByAccount(ctx context.Context, accountID string) ([]*domain.Order, error) {
	return s.repo.ListOrdersByAccount(ctx, accountID)
}

// decrementStock reserves stock line by line, skipping customized lines
// the catalog has never heard of.
func (s *OrderService) decrementStock(ctx context.Context, order *domain.Order) {
	if s.catalog == nil {
		return
	}
	for _, line := range order.Lines {
		if line.ProductType == domain.ProductTypeCustom || line.ProductID == "" {
			continue
		}
		if err := s.catalog.DecrementStock(ctx, line.ProductID, line.Quantity); err != nil {
			log.Printf("order %s: failed to decrement stock for product %s: %v", order.Reference, line.ProductID, err)
		}
	}
}

const referenceAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// NewOrderReference builds a reference like CMD-20250901-K3N7Q.
func NewOrderReference(now time.Time) string {
	suffix := make([]byte, 5)
	if _, err := rand.Read(suffix); err != nil {
		// crypto/rand failing means the process is in deep trouble anyway
		panic(fmt.Sprintf("rand.Read: %v", err))
	}
	for i, b := range suffix {
		suffix[i] = referenceAlphabet[int(b)%len(referenceAlphabet)]
	}
	return fmt.Sprintf("CMD-%s-%s", now.Format("20060102"), suffix)
}
