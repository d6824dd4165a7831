package service

import (
	"context"
	"errors"
	"log"

	"github.com/google/uuid"
	"github.com/hana270/PFE-PROJET/internal/domain"
)

// Merge folds every line of secondary into primary, then deletes the
// secondary cart unconditionally. Lines whose stock check fails are
// isolated: the rest of the merge proceeds and the caller gets a
// PartialMergeError alongside the merged cart.
//
// When both carts hold a non-customized line for the same product, the
// quantities combine, clamped to min(combined, available stock); a
// clamped line counts as problematic.
func (s *CartService) Merge(ctx context.Context, primary, secondary *domain.Cart) (*domain.Cart, error) {
	if secondary == nil || len(secondary.Items) == 0 {
		return primary, nil
	}

	var problematic []domain.CartItem
	for _, line := range secondary.Items {
		if !line.Customized && line.ProductID != "" {
			if match := primary.FindCatalogLine(line.ProductID); match != nil {
				combined := match.Quantity + line.Quantity
				quote, err := s.catalog.Product(ctx, line.ProductID)
				if err != nil {
					log.Printf("merge: stock check failed for product %s: %v", line.ProductID, err)
					problematic = append(problematic, line)
					continue
				}
				if combined > quote.Available {
					match.Quantity = quote.Available
					problematic = append(problematic, line)
				} else {
					match.Quantity = combined
				}
				continue
			}
		}

		copied := line
		copied.ID = uuid.NewString()
		primary.Items = append(primary.Items, copied)
	}

	s.recomputeTotals(primary)
	if err := s.repo.Upsert(ctx, primary); err != nil {
		return nil, err
	}

	// The session cart is gone no matter how the merge went; leaving it
	// around would double items on the next login.
	if err := s.repo.Delete(ctx, secondary.ID); err != nil && !errors.Is(err, domain.ErrCartNotFound) {
		log.Printf("merge: failed to delete cart %s: %v", secondary.ID, err)
	}

	s.invalidate(Identity{AccountID: primary.AccountID})
	if secondary.SessionID != "" {
		s.invalidate(Identity{SessionID: secondary.SessionID})
	}

	if len(problematic) > 0 {
		return primary, &domain.PartialMergeError{FirstItem: &problematic[0], AffectedItems: len(problematic)}
	}
	return primary, nil
}

// Migrate moves a session cart into an account cart at login. The
// session cart must exist; the account cart is created if absent.
func (s *CartService) Migrate(ctx context.Context, accountID, sessionID string) (*domain.Cart, error) {
	if accountID == "" {
		return nil, domain.Validationf("account id is required")
	}
	if sessionID == "" {
		return nil, domain.Validationf("session id is required")
	}

	sess, err := s.repo.FindBySession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	account, err := s.resolveAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if sess.ID == account.ID {
		return account, nil
	}

	if len(sess.Items) == 0 {
		if errDel := s.repo.Delete(ctx, sess.ID); errDel != nil && !errors.Is(errDel, domain.ErrCartNotFound) {
			log.Printf("migrate: failed to delete empty session cart %s: %v", sess.ID, errDel)
		}
		s.invalidate(Identity{SessionID: sessionID})
		return account, nil
	}

	return s.Merge(ctx, account, sess)
}
