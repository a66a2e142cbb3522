// Package mutate performs create/update/delete operations against the
// remote gateway and keeps the query cache coherent: every successful
// mutation invalidates all cached entries of the mutated kind, forcing
// dependent views to refetch. No optimistic cache patching is attempted;
// correctness is favored over latency.
package mutate

import (
	"context"
	"errors"

	"github.com/go-playground/validator/v10"

	"propdesk/internal/gateway"
	"propdesk/internal/model"
	"propdesk/internal/obs"
	"propdesk/internal/querycache"
)

// Result is the outcome of one mutation. Callers branch on Err (using
// errors.As against the taxonomy in this package) instead of passing
// success/failure closures.
type Result struct {
	Entity any
	Err    error
}

// Ok reports whether the mutation succeeded.
func (r Result) Ok() bool { return r.Err == nil }

// Executor runs mutations through the gateway and invalidates the cache.
type Executor struct {
	gw       *gateway.Client
	cache    *querycache.Cache
	validate *validator.Validate
}

// New constructs an Executor.
func New(gw *gateway.Client, cache *querycache.Cache) *Executor {
	return &Executor{gw: gw, cache: cache, validate: validator.New()}
}

// validateProperty runs struct-tag validation plus the house/shop location
// exclusivity rule the tags cannot express.
func (e *Executor) validateProperty(p model.Property) error {
	if err := e.validate.Struct(p); err != nil {
		return &ValidationError{Fields: fieldNames(err), Err: err}
	}
	switch p.PropertyType {
	case model.PropertyShop:
		if p.HouseNo != "" {
			return &ValidationError{Fields: []string{"HouseNo"}}
		}
	case model.PropertyHouse:
		if p.ShopNo != "" || p.ShopSize != "" {
			return &ValidationError{Fields: []string{"ShopNo"}}
		}
	}
	return nil
}

func fieldNames(err error) []string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil
	}
	names := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		names = append(names, fe.Field())
	}
	return names
}

// CreateProperty validates and posts a new listing.
func (e *Executor) CreateProperty(ctx context.Context, p model.Property) Result {
	if err := e.validateProperty(p); err != nil {
		return Result{Err: err}
	}
	created, err := e.gw.CreateProperty(ctx, p)
	if err != nil {
		return Result{Err: classify(err, "")}
	}
	e.invalidate(model.KindProperties, "create", created.ID)
	return Result{Entity: created}
}

// UpdateProperty validates and replaces a listing. Concurrent updates to
// the same id are last-write-wins; the API carries no version or etag.
func (e *Executor) UpdateProperty(ctx context.Context, id string, p model.Property) Result {
	if err := e.validateProperty(p); err != nil {
		return Result{Err: err}
	}
	updated, err := e.gw.UpdateProperty(ctx, id, p)
	if err != nil {
		return Result{Err: classify(err, id)}
	}
	e.invalidate(model.KindProperties, "update", id)
	return Result{Entity: updated}
}

// DeleteProperty removes a listing. Deletion is permanent: every cached
// view containing the id refetches immediately.
func (e *Executor) DeleteProperty(ctx context.Context, id string) Result {
	if id == "" {
		return Result{Err: &ValidationError{Fields: []string{"ID"}}}
	}
	if err := e.gw.DeleteProperty(ctx, id); err != nil {
		return Result{Err: classify(err, id)}
	}
	e.cache.DropRecord(model.KindProperties, id)
	e.invalidate(model.KindProperties, "delete", id)
	return Result{}
}

// CreateClient validates and posts a new roster entry.
func (e *Executor) CreateClient(ctx context.Context, cl model.Client) Result {
	if err := e.validate.Struct(cl); err != nil {
		return Result{Err: &ValidationError{Fields: fieldNames(err), Err: err}}
	}
	created, err := e.gw.CreateClient(ctx, cl)
	if err != nil {
		return Result{Err: classify(err, "")}
	}
	e.invalidate(model.KindClients, "create", created.ID)
	return Result{Entity: created}
}

// UpdateClient validates and replaces a roster entry.
func (e *Executor) UpdateClient(ctx context.Context, id string, cl model.Client) Result {
	if err := e.validate.Struct(cl); err != nil {
		return Result{Err: &ValidationError{Fields: fieldNames(err), Err: err}}
	}
	updated, err := e.gw.UpdateClient(ctx, id, cl)
	if err != nil {
		return Result{Err: classify(err, id)}
	}
	e.invalidate(model.KindClients, "update", id)
	return Result{Entity: updated}
}

// DeleteClient removes a roster entry.
func (e *Executor) DeleteClient(ctx context.Context, id string) Result {
	if id == "" {
		return Result{Err: &ValidationError{Fields: []string{"ID"}}}
	}
	if err := e.gw.DeleteClient(ctx, id); err != nil {
		return Result{Err: classify(err, id)}
	}
	e.cache.DropRecord(model.KindClients, id)
	e.invalidate(model.KindClients, "delete", id)
	return Result{}
}

func (e *Executor) invalidate(kind model.Kind, op, id string) {
	e.cache.Invalidate(kind)
	obs.Logger.Info("mutation_applied", "kind", string(kind), "op", op, "id", id)
}
