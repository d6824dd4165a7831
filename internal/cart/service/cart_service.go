package service

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/hana270/PFE-PROJET/internal/cart/cache"
	"github.com/hana270/PFE-PROJET/internal/cart/repository"
	"github.com/hana270/PFE-PROJET/internal/domain"
	"golang.org/x/sync/singleflight"
)

// DefaultSessionTTL is how long a session cart may sit idle before it is
// discarded on next access (or by the sweeper).
const DefaultSessionTTL = 48 * time.Hour

// Catalog is the slice of the catalog collaborator this service needs.
type Catalog interface {
	Product(ctx context.Context, productID string) (*domain.StockQuote, error)
}

// Identity names the owner of a cart: an authenticated account or an
// anonymous session, the account winning when both are present.
type Identity struct {
	AccountID string
	SessionID string
}

// Key is the cache key for this identity.
func (id Identity) Key() string {
	if id.AccountID != "" {
		return "acct:" + id.AccountID
	}
	return "sess:" + id.SessionID
}

type CartService struct {
	repo       repository.CartRepository
	cache      cache.CartCache
	catalog    Catalog
	sfg        singleflight.Group // Prevents cache stampede
	sessionTTL time.Duration
}

func NewCartService(repo repository.CartRepository, cache cache.CartCache, catalog Catalog, sessionTTL time.Duration) *CartService {
	if sessionTTL <= 0 {
		sessionTTL = DefaultSessionTTL
	}
	return &CartService{
		repo:       repo,
		cache:      cache,
		catalog:    catalog,
		sessionTTL: sessionTTL,
	}
}

// GetCart is the read path: cache first, with singleflight so concurrent
// misses for the same identity hit the repository once.
func (s *CartService) GetCart(ctx context.Context, id Identity) (*domain.Cart, string, error) {
	// A fresh anonymous caller or a login carrying a session cart both
	// mutate state in Resolve; neither is cacheable.
	if id.AccountID == "" && id.SessionID == "" {
		return s.Resolve(ctx, id)
	}
	if id.AccountID != "" && id.SessionID != "" {
		return s.Resolve(ctx, id)
	}

	key := id.Key()
	v, err, _ := s.sfg.Do(key, func() (interface{}, error) {
		cart, err := s.cache.Get(ctx, key)
		if err == nil {
			return cart, nil
		}
		if !errors.Is(err, cache.ErrCacheMiss) {
			log.Printf("cache get error: %v", err) // log cache error but continue
		}

		cart, _, errResolve := s.Resolve(ctx, id)
		if errResolve != nil {
			return nil, errResolve
		}

		go func() {
			if errSet := s.cache.Set(context.Background(), key, cart); errSet != nil {
				log.Printf("cache set error: %v", errSet)
			}
		}()

		return cart, nil
	})
	if err != nil {
		return nil, "", err
	}
	return v.(*domain.Cart), id.SessionID, nil
}

// Resolve returns the cart for the identity, creating one if absent.
// For anonymous callers the second return value is the effective session
// token; when the caller supplied none, a fresh token is generated and
// must travel back out-of-band (X-Session-ID).
func (s *CartService) Resolve(ctx context.Context, id Identity) (*domain.Cart, string, error) {
	if id.AccountID != "" {
		cart, err := s.resolveAccount(ctx, id.AccountID)
		if err != nil {
			return nil, "", err
		}

		// A session token alongside an account means the shopper just
		// logged in: fold the anonymous cart in transparently.
		if id.SessionID != "" {
			sess, errSess := s.repo.FindBySession(ctx, id.SessionID)
			if errSess == nil && sess.ID != cart.ID {
				merged, errMerge := s.Merge(ctx, cart, sess)
				var pm *domain.PartialMergeError
				switch {
				case errMerge == nil:
					cart = merged
				case errors.As(errMerge, &pm):
					log.Printf("partial merge on login for account %s: %d items affected", id.AccountID, pm.AffectedItems)
					cart = merged
				default:
					return nil, "", errMerge
				}
			} else if errSess != nil && !errors.Is(errSess, domain.ErrCartNotFound) {
				return nil, "", errSess
			}
		}
		return cart, "", nil
	}

	token := id.SessionID
	if token == "" {
		token = uuid.NewString()
	}

	cart, err := s.repo.FindBySession(ctx, token)
	if errors.Is(err, domain.ErrCartNotFound) {
		cart = s.newSessionCart(token)
		if errUp := s.repo.Upsert(ctx, cart); errUp != nil {
			return nil, "", errUp
		}
		return cart, token, nil
	}
	if err != nil {
		return nil, "", err
	}

	if cart.IsStale(s.sessionTTL, time.Now()) {
		log.Printf("discarding stale session cart %s", cart.ID)
		if errDel := s.repo.Delete(ctx, cart.ID); errDel != nil && !errors.Is(errDel, domain.ErrCartNotFound) {
			return nil, "", errDel
		}
		s.invalidate(Identity{SessionID: token})
		cart = s.newSessionCart(token)
		if errUp := s.repo.Upsert(ctx, cart); errUp != nil {
			return nil, "", errUp
		}
	}
	return cart, token, nil
}

// resolveAccount returns the single cart for an account, creating one if
// absent. Duplicate carts (a data anomaly) are reconciled into the
// oldest one right here, at the only point where the anomaly is visible.
func (s *CartService) resolveAccount(ctx context.Context, accountID string) (*domain.Cart, error) {
	carts, err := s.repo.FindByAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}

	if len(carts) == 0 {
		cart := &domain.Cart{
			ID:        uuid.NewString(),
			AccountID: accountID,
			Items:     []domain.CartItem{},
			UpdatedAt: time.Now(),
		}
		if errUp := s.repo.Upsert(ctx, cart); errUp != nil {
			return nil, errUp
		}
		return cart, nil
	}

	main := carts[0] // oldest
	if len(carts) > 1 {
		log.Printf("found %d carts for account %s, reconciling", len(carts), accountID)
		for _, extra := range carts[1:] {
			main.Items = append(main.Items, extra.Items...)
			if errDel := s.repo.Delete(ctx, extra.ID); errDel != nil && !errors.Is(errDel, domain.ErrCartNotFound) {
				log.Printf("failed to delete duplicate cart %s: %v", extra.ID, errDel)
			}
		}
		s.recomputeTotals(main)
		if errUp := s.repo.Upsert(ctx, main); errUp != nil {
			return nil, errUp
		}
		s.invalidate(Identity{AccountID: accountID})
	}
	return main, nil
}

// Clear removes every item and resets the total. Item records are gone,
// not archived.
func (s *CartService) Clear(ctx context.Context, id Identity) (*domain.Cart, error) {
	cart, _, err := s.Resolve(ctx, id)
	if err != nil {
		return nil, err
	}

	cart.Items = []domain.CartItem{}
	cart.TotalPrice = 0
	cart.UpdatedAt = time.Now()
	if errUp := s.repo.Upsert(ctx, cart); errUp != nil {
		return nil, errUp
	}

	s.invalidate(id)
	return cart, nil
}

// ClearCart is the collaborator-facing form of Clear, used after an
// order is assembled from this cart.
func (s *CartService) ClearCart(ctx context.Context, accountID, sessionID string) error {
	_, err := s.Clear(ctx, Identity{AccountID: accountID, SessionID: sessionID})
	return err
}

// SetNotificationEmail stores the address verbatim; format validation is
// the notification collaborator's concern.
func (s *CartService) SetNotificationEmail(ctx context.Context, id Identity, email string) (*domain.Cart, error) {
	if email == "" {
		return nil, domain.Validationf("email is required")
	}

	cart, _, err := s.Resolve(ctx, id)
	if err != nil {
		return nil, err
	}

	cart.Email = email
	cart.UpdatedAt = time.Now()
	if errUp := s.repo.Upsert(ctx, cart); errUp != nil {
		return nil, errUp
	}

	s.invalidate(id)
	return cart, nil
}

// CheckSessionCart probes for a session cart without creating one.
func (s *CartService) CheckSessionCart(ctx context.Context, sessionID string) (*domain.Cart, error) {
	if sessionID == "" {
		return nil, domain.ErrCartNotFound
	}
	return s.repo.FindBySession(ctx, sessionID)
}

// recomputeTotals re-derives every line subtotal and the cart total.
// Invariant: total == sum of line subtotals after every mutation.
func (s *CartService) recomputeTotals(cart *domain.Cart) {
	var total float64
	for i := range cart.Items {
		item := &cart.Items[i]
		item.Subtotal = item.EffectivePrice() * float64(item.Quantity)
		total += item.Subtotal
	}
	cart.TotalPrice = total
	cart.UpdatedAt = time.Now()
}

func (s *CartService) newSessionCart(token string) *domain.Cart {
	return &domain.Cart{
		ID:        uuid.NewString(),
		SessionID: token,
		Items:     []domain.CartItem{},
		UpdatedAt: time.Now(),
	}
}

func (s *CartService) invalidate(id Identity) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.cache.Delete(ctx, id.Key()); err != nil {
		log.Printf("cache invalidate error: %v", err)
	}
}
