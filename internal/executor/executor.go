package executor

import (
	"context"
	"fmt"
	"maps"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/hanpama/graphpager/internal/compiler"
	"github.com/hanpama/graphpager/internal/compose"
	"github.com/hanpama/graphpager/internal/deserialize"
	"github.com/hanpama/graphpager/internal/eventbus"
	"github.com/hanpama/graphpager/internal/events"
	"github.com/hanpama/graphpager/internal/expr"
	"github.com/hanpama/graphpager/internal/jsontree"
	"github.com/hanpama/graphpager/internal/language"
	"github.com/hanpama/graphpager/internal/reqid"
	"github.com/hanpama/graphpager/internal/result"
	"github.com/hanpama/graphpager/internal/schema"
)

type Executor struct {
	transport Transport
	opt       Options
}

func NewExecutor(transport Transport, opts ...Option) *Executor {
	o := defaultOptions()
	for _, f := range opts {
		f(&o)
	}
	if o.Concurrency < 1 {
		o.Concurrency = 1
	}
	return &Executor{transport: transport, opt: o}
}

// Execute compiles the composition tree ending at n and runs it.
func (e *Executor) Execute(ctx context.Context, n *compose.Node, variables map[string]any) (any, error) {
	q, err := compiler.Compile(n)
	if err != nil {
		return nil, err
	}
	return e.Run(ctx, q, variables)
}

// Run executes q and returns the value of the composition tree's terminal
// node: a *result.Record, *result.Connection, []any, scalar or nil. A
// *PartialPaginationError is returned together with the value when some
// connections could not be walked to completion.
func (e *Executor) Run(ctx context.Context, q *compiler.CompiledQuery, variables map[string]any) (any, error) {
	root, err := e.RunRecord(ctx, q, variables)
	if root == nil {
		return nil, err
	}
	v, _ := result.Lookup(root, q.Terminal...)
	return v, err
}

// RunRecord executes q and returns the root record.
func (e *Executor) RunRecord(ctx context.Context, q *compiler.CompiledQuery, variables map[string]any) (*result.Record, error) {
	ctx, _ = reqid.Ensure(ctx)
	start := time.Now()
	eventbus.Publish(ctx, events.QueryStart{Document: q.Document, Variables: variables})

	r := &run{
		transport: e.transport,
		opt:       e.opt,
		q:         q,
		sem:       semaphore.NewWeighted(int64(e.opt.Concurrency)),
	}
	root, err := r.execute(ctx, variables)
	eventbus.Publish(ctx, events.QueryFinish{
		Document: q.Document,
		Pages:    int(r.pages.Load()),
		Err:      err,
		Duration: time.Since(start),
	})
	return root, err
}

// run is the mutable state of one execution.
type run struct {
	transport Transport
	opt       Options
	q         *compiler.CompiledQuery
	vars      map[string]any
	sem       *semaphore.Weighted
	group     errgroup.Group
	pages     atomic.Int64

	mu       sync.Mutex
	failures []*PageError
}

// page is one merged page of a connection.
type page struct {
	resp *jsontree.Node
	dec  *deserialize.Decoder
	conn *result.Connection
	info schema.PageInfo
}

func (r *run) execute(ctx context.Context, input map[string]any) (*result.Record, error) {
	q := r.q
	vars, err := coerceVariableValues(q.Variables, input)
	if err != nil {
		return nil, err
	}
	r.vars = vars

	reserved := map[string]any{}
	var after *string
	if q.Primary != nil {
		if after, err = startCursor(q.Primary.After, input); err != nil {
			return nil, err
		}
		reserved[compiler.VarAfter] = cursorValue(after)
	}

	fctx, _ := reqid.WithFetch(ctx)
	start := time.Now()
	eventbus.Publish(fctx, events.PageFetchStart{After: after})
	var (
		root *result.Record
		dec  *deserialize.Decoder
	)
	resp, err := r.fetch(fctx, q.Document, r.bind(q.Variables, reserved))
	if err == nil {
		dec = deserialize.NewDecoder()
		var v any
		if v, err = dec.Decode(q.Shape, resp); err == nil {
			root, _ = v.(*result.Record)
		}
	}
	fin := events.PageFetchFinish{After: after, Err: err, Duration: time.Since(start)}
	if conn := r.primaryConnection(root); conn != nil {
		fin.HasNextPage = conn.PageInfo().HasNextPage
		fin.Items = conn.Len()
	}
	eventbus.Publish(fctx, fin)
	if err != nil {
		return nil, err
	}

	r.spawn(ctx, q.Subqueries, resp, dec)
	if conn := r.primaryConnection(root); conn != nil {
		r.primary(ctx, conn, resp)
	}
	_ = r.group.Wait()
	return root, r.err()
}

func (r *run) primaryConnection(root *result.Record) *result.Connection {
	if r.q.Primary == nil || root == nil {
		return nil
	}
	v, _ := result.Lookup(root, r.q.Terminal...)
	conn, _ := v.(*result.Connection)
	return conn
}

// primary pages the root document's terminal connection, merging every page
// directly into the result graph.
func (r *run) primary(ctx context.Context, conn *result.Connection, resp *jsontree.Node) {
	p := r.q.Primary
	info := p.PageInfo.One(resp)
	for pages := 1; info.HasNextPage; pages++ {
		if r.capped(pages) {
			conn.Finish(result.Partial, nil)
			return
		}
		if info.EndCursor == nil {
			r.fail([]*result.Connection{conn}, &PageError{Subquery: p.Path, Err: ErrMissingCursor})
			return
		}
		cursor := *info.EndCursor
		vars := r.bind(r.q.Variables, map[string]any{compiler.VarAfter: cursor})
		pg, err := r.connectionPage(ctx, p.Path, "", cursor, r.q.Document, vars, p.Connection, p.PageInfo)
		if err != nil {
			r.fail([]*result.Connection{conn}, &PageError{Subquery: p.Path, Cursor: cursor, Err: err})
			return
		}
		conn.Append(pg.conn.Items(), pg.info)
		r.spawn(ctx, r.q.Subqueries, pg.resp, pg.dec)
		info = pg.info
	}
}

// spawn enumerates subqueries against a merged response and starts a runner
// for every entity whose connection has more pages.
func (r *run) spawn(ctx context.Context, sqs []*compiler.Subquery, resp *jsontree.Node, dec *deserialize.Decoder) {
	for _, sq := range sqs {
		ids := sq.ParentIDs.Eval(resp)
		infos := sq.ParentPageInfo.Eval(resp)
		started := map[string]bool{}
		for i, id := range ids {
			if i >= len(infos) || !infos[i].HasNextPage || started[id] {
				continue
			}
			started[id] = true
			info := infos[i]
			targets := dec.Sinks(sq.Field, id)
			fail := func(err error) {
				r.fail(targets, &PageError{Subquery: sq.Path, ID: id, Cursor: info.Cursor(), Err: err})
			}
			switch {
			case id == "" || len(targets) == 0:
				fail(ErrUnknownParent)
				continue
			case info.EndCursor == nil:
				fail(ErrMissingCursor)
				continue
			case ctx.Err() != nil:
				fail(ctx.Err())
				continue
			case r.capped(1):
				for _, t := range targets {
					t.Finish(result.Partial, nil)
				}
				continue
			}
			cursor := *info.EndCursor
			sq, id := sq, id
			r.group.Go(func() error {
				r.subquery(ctx, sq, id, cursor, targets)
				return nil
			})
		}
	}
}

// subquery walks one entity's connection from cursor to its last page,
// then splices the pages into targets and runs nested subqueries.
func (r *run) subquery(ctx context.Context, sq *compiler.Subquery, id, cursor string, targets []*result.Connection) {
	var pages []*page
	state := result.Complete
	for merged := 1; ; merged++ {
		if r.capped(merged) {
			state = result.Partial
			break
		}
		vars := r.bind(sq.Variables, map[string]any{compiler.VarID: id, compiler.VarAfter: cursor})
		pg, err := r.connectionPage(ctx, sq.Path, id, cursor, sq.Document, vars, sq.Connection, sq.PageInfo)
		if err != nil {
			r.fail(targets, &PageError{Subquery: sq.Path, ID: id, Cursor: cursor, Err: err})
			return
		}
		pages = append(pages, pg)
		if !pg.info.HasNextPage {
			break
		}
		if pg.info.EndCursor == nil {
			r.fail(targets, &PageError{Subquery: sq.Path, ID: id, Cursor: cursor, Err: ErrMissingCursor})
			return
		}
		cursor = *pg.info.EndCursor
	}

	for _, t := range targets {
		for _, pg := range pages {
			t.Append(pg.conn.Items(), pg.info)
		}
		if state == result.Partial {
			t.Finish(result.Partial, nil)
		}
	}
	for _, pg := range pages {
		r.spawn(ctx, sq.Subqueries, pg.resp, pg.dec)
	}
}

// connectionPage fetches and deserializes one continuation page.
func (r *run) connectionPage(ctx context.Context, path, id, cursor, document string, vars map[string]any, sel *expr.Path, infos *expr.PageInfos) (*page, error) {
	ctx, _ = reqid.WithFetch(ctx)
	after := &cursor
	start := time.Now()
	eventbus.Publish(ctx, events.PageFetchStart{Subquery: path, ID: id, After: after})

	pg, err := r.decodePage(ctx, document, vars, sel, infos)
	fin := events.PageFetchFinish{Subquery: path, ID: id, After: after, Err: err, Duration: time.Since(start)}
	if pg != nil {
		fin.HasNextPage = pg.info.HasNextPage
		fin.Items = pg.conn.Len()
	}
	eventbus.Publish(ctx, fin)
	return pg, err
}

func (r *run) decodePage(ctx context.Context, document string, vars map[string]any, sel *expr.Path, infos *expr.PageInfos) (*page, error) {
	resp, err := r.fetch(ctx, document, vars)
	if err != nil {
		return nil, err
	}
	dec := deserialize.NewDecoder()
	v, err := dec.Decode(sel.Target(), sel.One(resp))
	if err != nil {
		return nil, err
	}
	conn, ok := v.(*result.Connection)
	if !ok {
		return nil, &deserialize.MissingFieldError{Path: sel.Target().Path}
	}
	return &page{resp: resp, dec: dec, conn: conn, info: infos.One(resp)}, nil
}

// fetch is the only blocking step of a runner.
func (r *run) fetch(ctx context.Context, document string, vars map[string]any) (*jsontree.Node, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := r.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer r.sem.Release(1)
	r.pages.Add(1)
	resp, err := r.transport.Execute(ctx, document, vars)
	if err != nil {
		return nil, &TransportError{Document: document, Variables: vars, Err: err}
	}
	return resp, nil
}

// bind selects the caller variables a document declares and adds the
// reserved cursoring variables.
func (r *run) bind(defs language.VariableDefinitionList, reserved map[string]any) map[string]any {
	out := make(map[string]any, len(defs)+len(reserved))
	for _, d := range defs {
		if v, ok := r.vars[d.Variable]; ok {
			out[d.Variable] = v
		}
	}
	maps.Copy(out, reserved)
	return out
}

func (r *run) capped(pages int) bool {
	return r.opt.MaxPages > 0 && pages >= r.opt.MaxPages
}

func (r *run) fail(targets []*result.Connection, err *PageError) {
	for _, t := range targets {
		t.Finish(result.Failed, err)
	}
	r.mu.Lock()
	r.failures = append(r.failures, err)
	r.mu.Unlock()
}

func (r *run) err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.failures) == 0 {
		return nil
	}
	out := append([]*PageError(nil), r.failures...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Subquery != out[j].Subquery {
			return out[i].Subquery < out[j].Subquery
		}
		return out[i].ID < out[j].ID
	})
	return &PartialPaginationError{Failures: out}
}

// startCursor resolves the caller's own after argument of the primary
// connection.
func startCursor(after any, input map[string]any) (*string, error) {
	switch v := after.(type) {
	case nil:
		return nil, nil
	case string:
		return &v, nil
	case *compose.VarRef:
		val, ok := input[v.Name]
		if !ok && v.HasDefault {
			val = v.DefaultVal
		}
		if val == nil {
			return nil, nil
		}
		s, ok := val.(string)
		if !ok {
			return nil, fmt.Errorf("%w: $%s must be a cursor string, got %T", ErrVariableType, v.Name, val)
		}
		return &s, nil
	}
	return nil, fmt.Errorf("%w: after argument must be a cursor string, got %T", ErrVariableType, after)
}

func cursorValue(c *string) any {
	if c == nil {
		return nil
	}
	return *c
}
