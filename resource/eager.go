package resource

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/goliatone/go-remote-resource/condition"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

type includePlan struct {
	assoc  Association
	target *Class
}

// planIncludes resolves include names against class before any I/O.
func (c *Client) planIncludes(class *Class, names []string) ([]includePlan, error) {
	if len(names) == 0 {
		return nil, nil
	}
	plans := make([]includePlan, 0, len(names))
	for _, name := range names {
		assoc, target, err := c.schema.Target(class, name)
		if err != nil {
			return nil, err
		}
		plans = append(plans, includePlan{assoc: assoc, target: target})
	}
	return plans, nil
}

func (c *Client) eagerLoad(ctx context.Context, class *Class, records []*Record, names []string, ttl time.Duration) error {
	plans, err := c.planIncludes(class, names)
	if err != nil {
		return err
	}
	return c.eagerLoadChain(ctx, records, plans, ttl, []string{class.Name()})
}

// eagerLoadPlans fetches every include in id batches and distributes the
// results to records. Nothing is attached unless every batch succeeded.
func (c *Client) eagerLoadPlans(ctx context.Context, records []*Record, plans []includePlan, ttl time.Duration) error {
	if len(records) == 0 {
		return nil
	}
	return c.eagerLoadChain(ctx, records, plans, ttl, []string{records[0].class.Name()})
}

// eagerLoadChain is eagerLoadPlans for records reached through the classes
// in chain. Children are loaded with their class default includes, which
// are applied in turn unless the class is already on the chain. Children
// are seeded under the signature of the condition they were loaded with.
func (c *Client) eagerLoadChain(ctx context.Context, records []*Record, plans []includePlan, ttl time.Duration, chain []string) error {
	if len(records) == 0 || len(plans) == 0 {
		return nil
	}

	fetched := make([]map[string]*Record, len(plans))
	conds := make([]condition.Condition, len(plans))
	for i, plan := range plans {
		var ids []any
		for _, rec := range records {
			keys, _ := rec.foreignKeys(plan.assoc)
			ids = append(ids, keys...)
		}
		ids = dedupeIDs(ids)

		cond := condition.New(plan.target.Name(), nil)
		nested := plan.target.DefaultCondition().Includes()
		if slices.Contains(chain, plan.target.Name()) {
			nested = nil
		}
		if len(nested) > 0 {
			cond = cond.WithIncludes(nested...)
		}
		conds[i] = cond

		children, err := c.fetchByIDs(ctx, plan.target, cond, ids, ttl)
		if err != nil {
			return err
		}
		if len(nested) > 0 {
			nestedPlans, err := c.planIncludes(plan.target, nested)
			if err != nil {
				return err
			}
			if err := c.eagerLoadChain(ctx, children, nestedPlans, ttl, append(slices.Clip(chain), plan.target.Name())); err != nil {
				return err
			}
		}
		fetched[i] = indexByID(plan.target, children)
	}

	for i, plan := range plans {
		for _, rec := range records {
			keys, ok := rec.foreignKeys(plan.assoc)
			if !ok {
				continue
			}
			children := make([]*Record, 0, len(keys))
			for _, key := range keys {
				if child, found := fetched[i][idKey(key)]; found {
					children = append(children, child)
					if !plan.assoc.Many() {
						break
					}
				}
			}
			if err := rec.seed(plan.assoc.Name, conds[i], children); err != nil {
				return err
			}
		}
	}
	return nil
}

// fetchByIDs loads target records whose primary key is in ids, one store
// fetch per batch of at most BatchSize ids. The first failing batch aborts
// the whole load.
func (c *Client) fetchByIDs(ctx context.Context, target *Class, base condition.Condition, ids []any, ttl time.Duration) ([]*Record, error) {
	if len(ids) == 0 {
		return []*Record{}, nil
	}

	batches := chunk(ids, c.cfg.BatchSize)
	results := make([][]*Record, len(batches))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.cfg.BatchConcurrency)
	for i, batch := range batches {
		g.Go(func() error {
			records, err := c.fetchBatch(gctx, target, base, batch, i, len(batches), ttl)
			if err != nil {
				return err
			}
			results[i] = records
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]*Record, 0, len(ids))
	for _, records := range results {
		out = append(out, records...)
	}
	return out, nil
}

func (c *Client) fetchBatch(ctx context.Context, target *Class, base condition.Condition, batch []any, index, total int, ttl time.Duration) ([]*Record, error) {
	ctx, span := c.tracer.Start(ctx, "resource.eagerLoad.batch",
		trace.WithAttributes(
			attribute.String("resource.class", target.Name()),
			attribute.Int("resource.batch.index", index),
			attribute.Int("resource.batch.total", total),
			attribute.Int("resource.batch.size", len(batch)),
		),
	)
	defer span.End()

	cond := base.Where(map[string]any{target.PrimaryKey(): batch})
	c.logger.DebugContext(ctx, "batch fetch",
		"class", target.Name(),
		"batch", index+1,
		"batches", total,
		"ids", len(batch),
	)

	resp, err := c.get(ctx, fetchRequest{
		class: target,
		kind:  KindCollection,
		path:  target.Path(),
		query: cond.ToQueryParams(),
		ttl:   ttl,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	records, err := c.decode(target, resp.Body, "")
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("batch %d/%d of %s: %w", index+1, total, target.Name(), err)
	}
	return records, nil
}
