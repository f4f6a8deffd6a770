package pipeline

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// References is the outcome of an ownership check on a transaction's catalog references.
type References struct {
	CategoryValid      bool
	PaymentSourceValid bool
}

// Missing lists the JSON names of the references that did not resolve.
func (r References) Missing() []string {
	var out []string
	if !r.CategoryValid {
		out = append(out, "category")
	}
	if !r.PaymentSourceValid {
		out = append(out, "payment_source")
	}
	return out
}

// OK reports whether both references resolved.
func (r References) OK() bool {
	return r.CategoryValid && r.PaymentSourceValid
}

// IntegrityChecker confirms that a category and payment source exist and
// belong to the requesting user. UUID syntax says nothing about either.
type IntegrityChecker struct {
	store ReferenceStore
}

// NewIntegrityChecker creates a checker backed by store.
func NewIntegrityChecker(store ReferenceStore) *IntegrityChecker {
	return &IntegrityChecker{store: store}
}

// Verify runs both lookups concurrently. An error means a lookup could not
// be answered, not that a reference is missing.
func (c *IntegrityChecker) Verify(ctx context.Context, userID, categoryID, paymentSourceID string) (References, error) {
	var refs References

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		ok, err := c.store.CategoryExists(gctx, userID, categoryID)
		refs.CategoryValid = ok
		return err
	})
	g.Go(func() error {
		ok, err := c.store.PaymentSourceExists(gctx, userID, paymentSourceID)
		refs.PaymentSourceValid = ok
		return err
	})

	if err := g.Wait(); err != nil {
		return References{}, err
	}
	return refs, nil
}
