package executor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/hanpama/graphpager/internal/compose"
	"github.com/hanpama/graphpager/internal/deserialize"
	"github.com/hanpama/graphpager/internal/eventbus"
	"github.com/hanpama/graphpager/internal/events"
	"github.com/hanpama/graphpager/internal/jsontree"
	"github.com/hanpama/graphpager/internal/result"
	"github.com/hanpama/graphpager/internal/schema"
)

var (
	issuesResult   = schema.ConnectionOf(schema.Entity("Issue"))
	commentsResult = schema.ConnectionOf(schema.Entity("IssueComment"))
	reactorsResult = schema.ConnectionOf(schema.Entity("User"))
	str            = schema.Scalar(schema.String)
)

type transportFunc func(ctx context.Context, document string, variables map[string]any) (*jsontree.Node, error)

func (f transportFunc) Execute(ctx context.Context, document string, variables map[string]any) (*jsontree.Node, error) {
	return f(ctx, document, variables)
}

func search() *compose.Node {
	return compose.NewRoot("Query").Call("search", issuesResult, compose.A("first", 2)).Select(func(i *compose.Node) []*compose.Node {
		return []*compose.Node{i.Field("title", str)}
	})
}

func searchPage(hasNext bool, end string, ids ...string) *jsontree.Node {
	edges := make([]string, len(ids))
	for i, id := range ids {
		edges[i] = fmt.Sprintf(`{"node":{"id":%q,"title":"title %s"}}`, id, id)
	}
	return jsontree.MustParse(fmt.Sprintf(`{"search":{"pageInfo":{"hasNextPage":%t,"endCursor":%q},"edges":[%s]}}`,
		hasNext, end, strings.Join(edges, ",")))
}

func titles(c *result.Connection) []string {
	var out []string
	for _, r := range c.Records() {
		out = append(out, r.String("title"))
	}
	return out
}

func afters(calls []CallRecord) []any {
	out := make([]any, len(calls))
	for i, c := range calls {
		out[i] = c.Variables["__after"]
	}
	return out
}

func TestRunPrimaryConnection(t *testing.T) {
	mock := NewMockTransport(
		searchPage(true, "c2", "i1", "i2"),
		searchPage(true, "c4", "i3", "i4"),
		searchPage(false, "c5", "i5"),
	)
	v, err := NewExecutor(mock).Execute(context.Background(), search(), nil)
	require.NoError(t, err)

	conn := v.(*result.Connection)
	want := []string{"title i1", "title i2", "title i3", "title i4", "title i5"}
	if diff := cmp.Diff(want, titles(conn)); diff != "" {
		t.Fatalf("titles mismatch (-want +got):\n%s", diff)
	}
	require.Equal(t, result.Complete, conn.State())
	require.Equal(t, 3, conn.Pages())
	require.False(t, conn.PageInfo().HasNextPage)

	calls := mock.Calls()
	require.Equal(t, []any{nil, "c2", "c4"}, afters(calls))
	for _, c := range calls {
		require.Equal(t, calls[0].Document, c.Document)
	}
}

func TestRunSinglePage(t *testing.T) {
	mock := NewMockTransport(searchPage(false, "c1", "i1"))
	v, err := NewExecutor(mock).Execute(context.Background(), search(), nil)
	require.NoError(t, err)
	require.Equal(t, []string{"title i1"}, titles(v.(*result.Connection)))
	require.Len(t, mock.Calls(), 1)
}

func TestRunWithoutConnections(t *testing.T) {
	n := compose.NewRoot("Query").Call("repository", schema.Entity("Repository").Null(),
		compose.A("owner", compose.Var("owner", "String!")),
	).Field("name", str)
	mock := NewMockTransport(jsontree.MustParse(`{"repository":{"id":"r1","name":"graphpager"}}`))

	v, err := NewExecutor(mock).Execute(context.Background(), n, map[string]any{"owner": "hanpama"})
	require.NoError(t, err)
	require.Equal(t, "graphpager", v)

	calls := mock.Calls()
	require.Len(t, calls, 1)
	require.Equal(t, map[string]any{"owner": "hanpama"}, calls[0].Variables)
}

func TestRunNullTerminal(t *testing.T) {
	n := compose.NewRoot("Query").Call("repository", schema.Entity("Repository").Null(), compose.A("name", "missing")).Field("name", str)
	mock := NewMockTransport(jsontree.MustParse(`{"repository":null}`))
	v, err := NewExecutor(mock).Execute(context.Background(), n, nil)
	require.NoError(t, err)
	require.Nil(t, v)
}

// repository selects issues with their comments; both connections are
// nested, so each is walked by its own subquery.
func repository() *compose.Node {
	return compose.NewRoot("Query").Call("repository", schema.Entity("Repository").Null(),
		compose.A("owner", compose.Var("owner", "String!")),
	).Select(func(r *compose.Node) []*compose.Node {
		return []*compose.Node{
			r.Call("issues", issuesResult, compose.A("first", 2)).Select(func(i *compose.Node) []*compose.Node {
				return []*compose.Node{
					i.Field("title", str),
					i.Call("comments", commentsResult, compose.A("first", 2)).Select(func(c *compose.Node) []*compose.Node {
						return []*compose.Node{c.Field("body", str)}
					}),
				}
			}),
		}
	})
}

var repositoryPages = map[string]string{
	"": `{"repository":{"id":"r1","issues":{
		"pageInfo":{"hasNextPage":true,"endCursor":"c2"},
		"edges":[
			{"node":{"id":"i1","title":"one","comments":{
				"pageInfo":{"hasNextPage":true,"endCursor":"k2"},
				"edges":[{"node":{"id":"k1","body":"a"}},{"node":{"id":"k2","body":"b"}}]}}},
			{"node":{"id":"i2","title":"two","comments":{
				"pageInfo":{"hasNextPage":false,"endCursor":null},
				"edges":[]}}}
		]}}}`,
	"r1/c2": `{"node":{"__typename":"Repository","issues":{
		"pageInfo":{"hasNextPage":false,"endCursor":"c3"},
		"edges":[
			{"node":{"id":"i3","title":"three","comments":{
				"pageInfo":{"hasNextPage":true,"endCursor":"k5"},
				"edges":[{"node":{"id":"k5","body":"e"}}]}}}
		]}}}`,
	"i1/k2": `{"node":{"__typename":"Issue","comments":{
		"pageInfo":{"hasNextPage":true,"endCursor":"k3"},
		"edges":[{"node":{"id":"k3","body":"c"}}]}}}`,
	"i1/k3": `{"node":{"__typename":"Issue","comments":{
		"pageInfo":{"hasNextPage":false,"endCursor":"k4"},
		"edges":[{"node":{"id":"k4","body":"d"}}]}}}`,
	"i3/k5": `{"node":{"__typename":"Issue","comments":{
		"pageInfo":{"hasNextPage":false,"endCursor":"k6"},
		"edges":[{"node":{"id":"k6","body":"f"}}]}}}`,
}

func pageKey(variables map[string]any) string {
	id, _ := variables["__id"].(string)
	if id == "" {
		return ""
	}
	after, _ := variables["__after"].(string)
	return id + "/" + after
}

func routePages(pages map[string]string) func(string, map[string]any) (*jsontree.Node, error) {
	return func(_ string, variables map[string]any) (*jsontree.Node, error) {
		body, ok := pages[pageKey(variables)]
		if !ok {
			return nil, fmt.Errorf("unexpected page %q", pageKey(variables))
		}
		return jsontree.Parse([]byte(body))
	}
}

type issueView struct {
	Title    string
	Comments []string
	State    result.State
}

func issueViews(t *testing.T, v any) ([]issueView, *result.Connection) {
	t.Helper()
	repo, ok := v.(*result.Record)
	require.True(t, ok, "want record, got %T", v)
	issues := repo.Connection("issues")
	require.NotNil(t, issues)
	var out []issueView
	for _, rec := range issues.Records() {
		comments := rec.Connection("comments")
		view := issueView{Title: rec.String("title"), State: comments.State()}
		for _, c := range comments.Records() {
			view.Comments = append(view.Comments, c.String("body"))
		}
		out = append(out, view)
	}
	return out, issues
}

func TestRunNestedSubqueries(t *testing.T) {
	mock := NewMockTransportFunc(routePages(repositoryPages))
	v, err := NewExecutor(mock).Execute(context.Background(), repository(), map[string]any{"owner": "hanpama"})
	require.NoError(t, err)

	got, issues := issueViews(t, v)
	want := []issueView{
		{Title: "one", Comments: []string{"a", "b", "c", "d"}, State: result.Complete},
		{Title: "two", State: result.Complete},
		{Title: "three", Comments: []string{"e", "f"}, State: result.Complete},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("issues mismatch (-want +got):\n%s", diff)
	}
	require.Equal(t, result.Complete, issues.State())
	require.Equal(t, 2, issues.Pages())

	var keys []string
	for _, c := range mock.Calls() {
		keys = append(keys, pageKey(c.Variables))
		if c.Variables["__id"] != nil {
			require.NotContains(t, c.Variables, "owner")
		}
	}
	require.ElementsMatch(t, []string{"", "r1/c2", "i1/k2", "i1/k3", "i3/k5"}, keys)
}

func TestRunSiblingsPageIndependently(t *testing.T) {
	pages := map[string]string{
		"": `{"repository":{"id":"r1","issues":{
			"pageInfo":{"hasNextPage":false,"endCursor":"c2"},
			"edges":[
				{"node":{"id":"i1","title":"one","comments":{
					"pageInfo":{"hasNextPage":true,"endCursor":"k1"},
					"edges":[{"node":{"id":"k1","body":"a"}}]}}},
				{"node":{"id":"i2","title":"two","comments":{
					"pageInfo":{"hasNextPage":true,"endCursor":"p1"},
					"edges":[{"node":{"id":"p1","body":"p"}}]}}}
			]}}}`,
		"i1/k1": `{"node":{"__typename":"Issue","comments":{
			"pageInfo":{"hasNextPage":true,"endCursor":"k2"},
			"edges":[{"node":{"id":"k2","body":"b"}}]}}}`,
		"i1/k2": `{"node":{"__typename":"Issue","comments":{
			"pageInfo":{"hasNextPage":false,"endCursor":"k3"},
			"edges":[{"node":{"id":"k3","body":"c"}}]}}}`,
		"i2/p1": `{"node":{"__typename":"Issue","comments":{
			"pageInfo":{"hasNextPage":false,"endCursor":"p2"},
			"edges":[{"node":{"id":"p2","body":"q"}}]}}}`,
	}
	route := routePages(pages)
	// The second issue's page is held until the first issue is exhausted.
	oneDone := make(chan struct{})
	tp := transportFunc(func(ctx context.Context, document string, variables map[string]any) (*jsontree.Node, error) {
		switch pageKey(variables) {
		case "i2/p1":
			select {
			case <-oneDone:
			case <-time.After(5 * time.Second):
				return nil, errors.New("issue two waited on issue one")
			}
		case "i1/k2":
			defer close(oneDone)
		}
		return route(document, variables)
	})

	v, err := NewExecutor(tp, WithConcurrency(2)).Execute(context.Background(), repository(), map[string]any{"owner": "hanpama"})
	require.NoError(t, err)
	got, _ := issueViews(t, v)
	want := []issueView{
		{Title: "one", Comments: []string{"a", "b", "c"}, State: result.Complete},
		{Title: "two", Comments: []string{"p", "q"}, State: result.Complete},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("issues mismatch (-want +got):\n%s", diff)
	}
}

func TestRunBoundsConcurrency(t *testing.T) {
	edges := make([]string, 6)
	pages := map[string]string{}
	for i := range edges {
		id := fmt.Sprintf("i%d", i)
		edges[i] = fmt.Sprintf(`{"node":{"id":%q,"title":%q,"comments":{
			"pageInfo":{"hasNextPage":true,"endCursor":"k0"},
			"edges":[{"node":{"id":"%s-k0","body":"first"}}]}}}`, id, id, id)
		pages[id+"/k0"] = fmt.Sprintf(`{"node":{"__typename":"Issue","comments":{
			"pageInfo":{"hasNextPage":false,"endCursor":"k1"},
			"edges":[{"node":{"id":"%s-k1","body":"second"}}]}}}`, id)
	}
	pages[""] = fmt.Sprintf(`{"repository":{"id":"r1","issues":{
		"pageInfo":{"hasNextPage":false,"endCursor":"c1"},
		"edges":[%s]}}}`, strings.Join(edges, ","))

	route := routePages(pages)
	var inFlight, peak atomic.Int32
	tp := transportFunc(func(ctx context.Context, document string, variables map[string]any) (*jsontree.Node, error) {
		n := inFlight.Add(1)
		defer inFlight.Add(-1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		return route(document, variables)
	})

	v, err := NewExecutor(tp, WithConcurrency(2)).Execute(context.Background(), repository(), map[string]any{"owner": "hanpama"})
	require.NoError(t, err)
	require.LessOrEqual(t, peak.Load(), int32(2))

	got, _ := issueViews(t, v)
	require.Len(t, got, 6)
	for _, is := range got {
		require.Equal(t, []string{"first", "second"}, is.Comments, is.Title)
		require.Equal(t, result.Complete, is.State)
	}
}

func TestRunThreeLevelChain(t *testing.T) {
	n := compose.NewRoot("Query").Call("repository", schema.Entity("Repository").Null(),
		compose.A("owner", compose.Var("owner", "String!")),
	).Select(func(r *compose.Node) []*compose.Node {
		return []*compose.Node{
			r.Call("issues", issuesResult, compose.A("first", 1)).Select(func(i *compose.Node) []*compose.Node {
				return []*compose.Node{
					i.Field("title", str),
					i.Call("comments", commentsResult, compose.A("first", 1)).Select(func(c *compose.Node) []*compose.Node {
						return []*compose.Node{
							c.Field("body", str),
							c.Call("reactors", reactorsResult, compose.A("first", 1)).Select(func(u *compose.Node) []*compose.Node {
								return []*compose.Node{u.Field("login", str)}
							}),
						}
					}),
				}
			}),
		}
	})
	pages := map[string]string{
		"": `{"repository":{"id":"r1","issues":{
			"pageInfo":{"hasNextPage":true,"endCursor":"c1"},
			"edges":[{"node":{"id":"i1","title":"one","comments":{
				"pageInfo":{"hasNextPage":false,"endCursor":"k1"},
				"edges":[{"node":{"id":"k1","body":"a","reactors":{
					"pageInfo":{"hasNextPage":false,"endCursor":null},"edges":[]}}}]}}}]}}}`,
		"r1/c1": `{"node":{"__typename":"Repository","issues":{
			"pageInfo":{"hasNextPage":false,"endCursor":"c2"},
			"edges":[{"node":{"id":"i2","title":"two","comments":{
				"pageInfo":{"hasNextPage":true,"endCursor":"k2"},
				"edges":[{"node":{"id":"k2","body":"b","reactors":{
					"pageInfo":{"hasNextPage":false,"endCursor":null},"edges":[]}}}]}}}]}}}`,
		"i2/k2": `{"node":{"__typename":"Issue","comments":{
			"pageInfo":{"hasNextPage":false,"endCursor":"k3"},
			"edges":[{"node":{"id":"k3","body":"c","reactors":{
				"pageInfo":{"hasNextPage":true,"endCursor":"u1"},
				"edges":[{"node":{"id":"u1","login":"x"}}]}}}]}}}`,
		"k3/u1": `{"node":{"__typename":"IssueComment","reactors":{
			"pageInfo":{"hasNextPage":false,"endCursor":"u2"},
			"edges":[{"node":{"id":"u2","login":"y"}}]}}}`,
	}
	mock := NewMockTransportFunc(routePages(pages))
	v, err := NewExecutor(mock).Execute(context.Background(), n, map[string]any{"owner": "hanpama"})
	require.NoError(t, err)

	issues := v.(*result.Record).Connection("issues")
	require.Equal(t, result.Complete, issues.State())
	require.Equal(t, 2, issues.Len())
	comments := issues.Records()[1].Connection("comments")
	require.Equal(t, result.Complete, comments.State())
	require.Equal(t, 2, comments.Len())
	reactors := comments.Records()[1].Connection("reactors")
	require.Equal(t, result.Complete, reactors.State())
	var logins []string
	for _, u := range reactors.Records() {
		logins = append(logins, u.String("login"))
	}
	require.Equal(t, []string{"x", "y"}, logins)

	var keys []string
	for _, c := range mock.Calls() {
		keys = append(keys, pageKey(c.Variables))
	}
	require.Equal(t, []string{"", "r1/c1", "i2/k2", "k3/u1"}, keys)
}

func TestRunIsIdempotent(t *testing.T) {
	exec := NewExecutor(NewMockTransportFunc(routePages(repositoryPages)), WithConcurrency(1))
	vars := map[string]any{"owner": "hanpama"}

	first, err := exec.Execute(context.Background(), repository(), vars)
	require.NoError(t, err)
	second, err := exec.Execute(context.Background(), repository(), vars)
	require.NoError(t, err)

	a, _ := issueViews(t, first)
	b, _ := issueViews(t, second)
	if diff := cmp.Diff(a, b); diff != "" {
		t.Fatalf("runs differ (-first +second):\n%s", diff)
	}
}

func TestRunIsolatesFailures(t *testing.T) {
	pages := map[string]string{}
	for k, v := range repositoryPages {
		pages[k] = v
	}
	pages["i1/k3"] = `{"node":{"__typename":"Issue","comments":{
		"pageInfo":{"hasNextPage":false,"endCursor":"k4"},
		"edges":[{"node":{"id":"k4"}}]}}}`

	v, err := NewExecutor(NewMockTransportFunc(routePages(pages))).Execute(context.Background(), repository(), map[string]any{"owner": "hanpama"})
	require.Error(t, err)
	require.True(t, errors.Is(err, deserialize.ErrMissingRequiredField), err.Error())

	var perr *PartialPaginationError
	require.ErrorAs(t, err, &perr)
	require.Len(t, perr.Failures, 1)
	f := perr.Failures[0]
	require.Equal(t, "repository.issues.comments", f.Subquery)
	require.Equal(t, "i1", f.ID)
	require.Equal(t, "k3", f.Cursor)

	got, issues := issueViews(t, v)
	want := []issueView{
		{Title: "one", Comments: []string{"a", "b"}, State: result.Failed},
		{Title: "two", State: result.Complete},
		{Title: "three", Comments: []string{"e", "f"}, State: result.Complete},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("issues mismatch (-want +got):\n%s", diff)
	}
	require.Equal(t, result.Complete, issues.State())
	require.ErrorIs(t, issues.Records()[0].Connection("comments").Err(), deserialize.ErrMissingRequiredField)
}

func TestRunTransportErrorOnFirstPage(t *testing.T) {
	boom := errors.New("boom")
	mock := NewMockTransportWithErrors(nil, []error{boom})
	v, err := NewExecutor(mock).Execute(context.Background(), search(), nil)
	require.Nil(t, v)
	require.ErrorIs(t, err, boom)
	var terr *TransportError
	require.ErrorAs(t, err, &terr)
	require.Contains(t, terr.Document, "search")
}

func TestRunCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var calls atomic.Int32
	tp := transportFunc(func(ctx context.Context, _ string, _ map[string]any) (*jsontree.Node, error) {
		if calls.Add(1) == 1 {
			return searchPage(true, "c2", "i1", "i2"), nil
		}
		cancel()
		return nil, ctx.Err()
	})

	v, err := NewExecutor(tp).Execute(ctx, search(), nil)
	require.ErrorIs(t, err, context.Canceled)
	conn := v.(*result.Connection)
	require.Equal(t, result.Failed, conn.State())
	require.Equal(t, []string{"title i1", "title i2"}, titles(conn))
	require.Equal(t, int32(2), calls.Load())
}

func TestRunUnknownParent(t *testing.T) {
	pages := map[string]string{
		"": `{"repository":{"id":"r1","issues":{
			"pageInfo":{"hasNextPage":false,"endCursor":"c1"},
			"edges":[
				{"node":{"id":7,"title":"numeric","comments":{
					"pageInfo":{"hasNextPage":true,"endCursor":"k1"},
					"edges":[{"node":{"id":"k1","body":"a"}}]}}}
			]}}}`,
	}
	v, err := NewExecutor(NewMockTransportFunc(routePages(pages))).Execute(context.Background(), repository(), map[string]any{"owner": "hanpama"})
	require.ErrorIs(t, err, ErrUnknownParent)

	got, _ := issueViews(t, v)
	want := []issueView{{Title: "numeric", Comments: []string{"a"}, State: result.Failed}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("issues mismatch (-want +got):\n%s", diff)
	}
}

func TestRunMissingCursor(t *testing.T) {
	mock := NewMockTransport(jsontree.MustParse(`{"search":{"pageInfo":{"hasNextPage":true,"endCursor":null},"edges":[]}}`))
	v, err := NewExecutor(mock).Execute(context.Background(), search(), nil)
	require.ErrorIs(t, err, ErrMissingCursor)
	require.Equal(t, result.Failed, v.(*result.Connection).State())
	require.Len(t, mock.Calls(), 1)
}

func TestRunMaxPages(t *testing.T) {
	mock := NewMockTransport(
		searchPage(true, "c2", "i1", "i2"),
		searchPage(true, "c4", "i3", "i4"),
		searchPage(false, "c5", "i5"),
	)
	v, err := NewExecutor(mock, WithMaxPages(2)).Execute(context.Background(), search(), nil)
	require.NoError(t, err)
	conn := v.(*result.Connection)
	require.Equal(t, result.Partial, conn.State())
	require.Equal(t, 4, conn.Len())
	require.Len(t, mock.Calls(), 2)
}

func TestRunMaxPagesNested(t *testing.T) {
	v, err := NewExecutor(NewMockTransportFunc(routePages(repositoryPages)), WithMaxPages(1)).
		Execute(context.Background(), repository(), map[string]any{"owner": "hanpama"})
	require.NoError(t, err)
	got, issues := issueViews(t, v)
	want := []issueView{
		{Title: "one", Comments: []string{"a", "b"}, State: result.Partial},
		{Title: "two", State: result.Complete},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("issues mismatch (-want +got):\n%s", diff)
	}
	require.Equal(t, result.Partial, issues.State())
}

func TestRunFirstPageOnly(t *testing.T) {
	n := compose.NewRoot("Query").Call("search", issuesResult, compose.A("first", 2)).FirstPageOnly().Select(func(i *compose.Node) []*compose.Node {
		return []*compose.Node{i.Field("title", str)}
	})
	mock := NewMockTransport(searchPage(true, "c2", "i1", "i2"))
	v, err := NewExecutor(mock).Execute(context.Background(), n, nil)
	require.NoError(t, err)
	conn := v.(*result.Connection)
	require.Equal(t, result.Partial, conn.State())
	require.Equal(t, 2, conn.Len())
	require.Len(t, mock.Calls(), 1)
	require.NotContains(t, mock.Calls()[0].Document, "__after")
}

func TestRunPrimaryStartCursor(t *testing.T) {
	n := compose.NewRoot("Query").Call("search", issuesResult,
		compose.A("first", 2),
		compose.A("after", compose.Var("start", "String")),
	).Select(func(i *compose.Node) []*compose.Node {
		return []*compose.Node{i.Field("title", str)}
	})
	mock := NewMockTransport(searchPage(false, "c9", "i9"))
	_, err := NewExecutor(mock).Execute(context.Background(), n, map[string]any{"start": "c8"})
	require.NoError(t, err)
	require.Equal(t, []any{"c8"}, afters(mock.Calls()))

	_, err = NewExecutor(NewMockTransport()).Execute(context.Background(), n, map[string]any{"start": 8})
	require.ErrorIs(t, err, ErrVariableType)
}

func TestRunVariableErrors(t *testing.T) {
	n := compose.NewRoot("Query").Call("repository", schema.Entity("Repository").Null(),
		compose.A("owner", compose.Var("owner", "String!")),
	).Field("name", str)

	tests := []struct {
		name string
		vars map[string]any
		want error
	}{
		{name: "missing", vars: nil, want: ErrMissingVariable},
		{name: "null", vars: map[string]any{"owner": nil}, want: ErrVariableType},
		{name: "wrong type", vars: map[string]any{"owner": true}, want: ErrVariableType},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := NewMockTransport()
			_, err := NewExecutor(mock).Execute(context.Background(), n, tt.vars)
			require.ErrorIs(t, err, tt.want)
			require.Empty(t, mock.Calls())
		})
	}
}

func TestRunSplicesDuplicateEntities(t *testing.T) {
	n := compose.NewRoot("Query").Call("viewer", schema.Entity("User")).Select(func(u *compose.Node) []*compose.Node {
		return []*compose.Node{
			u.Call("pinned", issuesResult, compose.A("first", 1)).Select(func(i *compose.Node) []*compose.Node {
				return []*compose.Node{
					i.Field("title", str),
					i.Call("comments", commentsResult, compose.A("first", 1)).Select(func(c *compose.Node) []*compose.Node {
						return []*compose.Node{c.Field("body", str)}
					}),
				}
			}).FirstPageOnly(),
		}
	})
	pages := map[string]string{
		"": `{"viewer":{"id":"u1","pinned":{
			"pageInfo":{"hasNextPage":false,"endCursor":"p2"},
			"edges":[
				{"node":{"id":"i1","title":"one","comments":{"pageInfo":{"hasNextPage":true,"endCursor":"k1"},"edges":[{"node":{"id":"k1","body":"a"}}]}}},
				{"node":{"id":"i1","title":"one","comments":{"pageInfo":{"hasNextPage":true,"endCursor":"k1"},"edges":[{"node":{"id":"k1","body":"a"}}]}}}
			]}}}`,
		"i1/k1": `{"node":{"__typename":"Issue","comments":{"pageInfo":{"hasNextPage":false,"endCursor":"k2"},"edges":[{"node":{"id":"k2","body":"b"}}]}}}`,
	}
	mock := NewMockTransportFunc(routePages(pages))
	v, err := NewExecutor(mock).Execute(context.Background(), n, nil)
	require.NoError(t, err)

	recs := v.(*result.Record).Connection("pinned").Records()
	require.Len(t, recs, 2)
	for _, rec := range recs {
		comments := rec.Connection("comments")
		require.Equal(t, result.Complete, comments.State())
		require.Equal(t, 2, comments.Len())
	}
	require.Len(t, mock.Calls(), 2)
}

func TestRunPublishesEvents(t *testing.T) {
	bus := eventbus.New()
	eventbus.Use(bus)
	defer eventbus.Use(eventbus.New())

	var starts, finishes atomic.Int32
	var query events.QueryFinish
	eventbus.Subscribe(func(_ context.Context, e events.PageFetchStart) { starts.Add(1) })
	eventbus.Subscribe(func(_ context.Context, e events.PageFetchFinish) { finishes.Add(1) })
	eventbus.Subscribe(func(_ context.Context, e events.QueryFinish) { query = e })

	mock := NewMockTransport(
		searchPage(true, "c2", "i1", "i2"),
		searchPage(false, "c3", "i3"),
	)
	_, err := NewExecutor(mock).Execute(context.Background(), search(), nil)
	require.NoError(t, err)
	require.Equal(t, int32(2), starts.Load())
	require.Equal(t, int32(2), finishes.Load())
	require.Equal(t, 2, query.Pages)
	require.NoError(t, query.Err)
}
