package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/hana270/PFE-PROJET/internal/domain"
)

// ItemRequest carries everything a caller may say about a line being
// added. Catalog items are priced from the live quote; customized items
// carry their own pricing because the catalog has never heard of them.
type ItemRequest struct {
	ProductID     string                `json:"product_id"`
	Quantity      int                   `json:"quantity"`
	Customized    bool                  `json:"customized"`
	OriginalPrice float64               `json:"original_price,omitempty"`
	CustomPrice   *float64              `json:"custom_price,omitempty"`
	PromotionName string                `json:"promotion_name,omitempty"`
	DiscountRate  *float64              `json:"discount_rate,omitempty"`
	Custom        *domain.Customization `json:"customization,omitempty"`
}

func (r ItemRequest) validate() error {
	if r.Quantity <= 0 {
		return domain.Validationf("quantity must be positive")
	}
	if r.Customized {
		if r.Custom == nil {
			return domain.Validationf("customization details are required for customized items")
		}
		if r.Custom.Material == "" {
			return domain.Validationf("material is required for customized items")
		}
		if r.Custom.Dimension == "" {
			return domain.Validationf("dimension is required for customized items")
		}
		if r.Custom.Color == "" {
			return domain.Validationf("color is required for customized items")
		}
		return nil
	}
	if r.ProductID == "" {
		return domain.Validationf("product id is required")
	}
	return nil
}

// AddItem validates the request, checks stock for catalog items and
// either merges into an existing non-customized line for the same
// product or appends a new line. The unit price is snapshotted here and
// never silently refreshed afterwards.
func (s *CartService) AddItem(ctx context.Context, id Identity, req ItemRequest) (*domain.CartItem, *domain.Cart, error) {
	if err := req.validate(); err != nil {
		return nil, nil, err
	}

	cart, _, err := s.Resolve(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	item, err := s.addToCart(ctx, cart, req)
	if err != nil {
		return nil, nil, err
	}

	s.recomputeTotals(cart)
	if errUp := s.repo.Upsert(ctx, cart); errUp != nil {
		return nil, nil, errUp
	}

	s.invalidate(id)
	return item, cart, nil
}

// AddItems adds a batch in one pass. Lines that fail stock or catalog
// checks are skipped, the rest land, and the caller gets a
// PartialMergeError describing how many were left behind.
func (s *CartService) AddItems(ctx context.Context, id Identity, reqs []ItemRequest) ([]domain.CartItem, *domain.Cart, error) {
	if len(reqs) == 0 {
		return nil, nil, domain.Validationf("at least one item is required")
	}
	for _, r := range reqs {
		if err := r.validate(); err != nil {
			return nil, nil, err
		}
	}

	cart, _, err := s.Resolve(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	var addedIDs []string
	var skipped []domain.CartItem
	for _, req := range reqs {
		item, errAdd := s.addToCart(ctx, cart, req)
		if errAdd != nil {
			skipped = append(skipped, domain.CartItem{ProductID: req.ProductID, Quantity: req.Quantity})
			continue
		}
		addedIDs = append(addedIDs, item.ID)
	}

	s.recomputeTotals(cart)

	// Copy the lines only after totals ran, so the response carries the
	// recomputed subtotals.
	var added []domain.CartItem
	for _, itemID := range addedIDs {
		if item := cart.FindItem(itemID); item != nil {
			added = append(added, *item)
		}
	}
	if errUp := s.repo.Upsert(ctx, cart); errUp != nil {
		return nil, nil, errUp
	}
	s.invalidate(id)

	if len(skipped) > 0 {
		return added, cart, &domain.PartialMergeError{FirstItem: &skipped[0], AffectedItems: len(skipped)}
	}
	return added, cart, nil
}

// addToCart mutates the cart in memory only; the caller persists.
func (s *CartService) addToCart(ctx context.Context, cart *domain.Cart, req ItemRequest) (*domain.CartItem, error) {
	if req.Customized {
		item := s.newCustomLine(req)
		cart.Items = append(cart.Items, item)
		return &cart.Items[len(cart.Items)-1], nil
	}

	quote, err := s.catalog.Product(ctx, req.ProductID)
	if err != nil {
		return nil, err
	}
	if req.Quantity > quote.Available {
		return nil, &domain.InsufficientStockError{Available: quote.Available}
	}

	if match := cart.FindCatalogLine(req.ProductID); match != nil {
		combined := match.Quantity + req.Quantity
		if combined > quote.Available {
			return nil, &domain.InsufficientStockError{Available: quote.Available}
		}
		match.Quantity = combined
		applyPromotion(match, req, quote)
		return match, nil
	}

	item := domain.CartItem{
		ID:            uuid.NewString(),
		ProductID:     req.ProductID,
		ProductName:   quote.Name,
		ImageURL:      quote.ImageURL,
		Quantity:      req.Quantity,
		OriginalPrice: quote.Price,
		AddedAt:       time.Now(),
	}
	applyPromotion(&item, req, quote)
	cart.Items = append(cart.Items, item)
	return &cart.Items[len(cart.Items)-1], nil
}

func (s *CartService) newCustomLine(req ItemRequest) domain.CartItem {
	name := "Custom pool"
	if req.Custom != nil && req.Custom.Material != "" {
		name = "Custom pool (" + req.Custom.Material + ")"
	}
	return domain.CartItem{
		ID:            uuid.NewString(),
		ProductID:     req.ProductID,
		ProductName:   name,
		Quantity:      req.Quantity,
		Customized:    true,
		OriginalPrice: req.OriginalPrice,
		CustomPrice:   req.CustomPrice,
		Custom:        req.Custom,
		AddedAt:       time.Now(),
	}
}

// applyPromotion snapshots the promotion onto the line. An explicit
// promotion in the request wins, then a bare discount rate, then the
// product's own active promotion.
func applyPromotion(item *domain.CartItem, req ItemRequest, quote *domain.StockQuote) {
	switch {
	case req.PromotionName != "" && req.DiscountRate != nil:
		promo := item.OriginalPrice * (1 - *req.DiscountRate/100)
		item.PromoPrice = &promo
		item.PromotionActive = true
		item.PromotionName = req.PromotionName
		item.DiscountRate = *req.DiscountRate
	case req.DiscountRate != nil:
		promo := item.OriginalPrice * (1 - *req.DiscountRate/100)
		item.PromoPrice = &promo
		item.PromotionActive = true
		item.PromotionName = ""
		item.DiscountRate = *req.DiscountRate
	case quote != nil && quote.Promotion != nil && quote.Promotion.Active:
		p := quote.Promotion
		promo := p.DiscountedPrice(item.OriginalPrice)
		item.PromoPrice = &promo
		item.PromotionActive = true
		item.PromotionName = p.Name
		item.DiscountRate = p.DiscountRate
	default:
		item.PromoPrice = nil
		item.PromotionActive = false
		item.PromotionName = ""
		item.DiscountRate = 0
	}
}

// UpdateQuantity sets (not adds) the quantity of one line, re-checking
// stock for catalog lines.
func (s *CartService) UpdateQuantity(ctx context.Context, id Identity, itemID string, quantity int) (*domain.CartItem, *domain.Cart, error) {
	if quantity <= 0 {
		return nil, nil, domain.Validationf("quantity must be positive")
	}

	cart, _, err := s.Resolve(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	item := cart.FindItem(itemID)
	if item == nil {
		return nil, nil, domain.ErrItemNotFound
	}

	if !item.Customized && item.ProductID != "" {
		quote, errQ := s.catalog.Product(ctx, item.ProductID)
		if errQ != nil {
			return nil, nil, errQ
		}
		if quantity > quote.Available {
			return nil, nil, &domain.InsufficientStockError{Available: quote.Available}
		}
	}

	item.Quantity = quantity
	s.recomputeTotals(cart)
	if errUp := s.repo.Upsert(ctx, cart); errUp != nil {
		return nil, nil, errUp
	}

	s.invalidate(id)
	return item, cart, nil
}

// RemoveItem deletes one line by its id.
func (s *CartService) RemoveItem(ctx context.Context, id Identity, itemID string) (*domain.Cart, error) {
	cart, _, err := s.Resolve(ctx, id)
	if err != nil {
		return nil, err
	}

	idx := -1
	for i := range cart.Items {
		if cart.Items[i].ID == itemID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, domain.ErrItemNotFound
	}

	cart.Items = append(cart.Items[:idx], cart.Items[idx+1:]...)
	s.recomputeTotals(cart)
	if errUp := s.repo.Upsert(ctx, cart); errUp != nil {
		return nil, errUp
	}

	s.invalidate(id)
	return cart, nil
}
