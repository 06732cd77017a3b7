package compiler

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/hanpama/graphpager/internal/compose"
	"github.com/hanpama/graphpager/internal/language"
	"github.com/hanpama/graphpager/internal/schema"
)

var (
	repositoryResult = schema.Entity("Repository").Null()
	issuesResult     = schema.ConnectionOf(schema.Entity("Issue"))
	commentsResult   = schema.ConnectionOf(schema.Entity("IssueComment"))
	str              = schema.Scalar(schema.String)
)

func repository() *compose.Node {
	return compose.NewRoot("Query").Call("repository", repositoryResult,
		compose.A("owner", compose.Var("owner", "String!")),
		compose.A("name", "graphpager"),
	)
}

func requireDocument(t *testing.T, want, got string) {
	t.Helper()
	w, err := language.Normalize(want)
	require.NoError(t, err)
	g, err := language.Normalize(got)
	require.NoError(t, err)
	if diff := cmp.Diff(w, g); diff != "" {
		t.Fatalf("document mismatch (-want +got):\n%s", diff)
	}
}

func TestCompileWithoutConnections(t *testing.T) {
	n := repository().Select(func(r *compose.Node) []*compose.Node {
		return []*compose.Node{
			r.Field("name", str),
			r.Field("stargazerCount", schema.Scalar(schema.Int)),
			r.Field("owner", schema.Interface("RepositoryOwner", true)).Field("login", str),
		}
	})
	q, err := Compile(n)
	require.NoError(t, err)

	requireDocument(t, `query ($owner: String!) {
		repository(owner: $owner, name: "graphpager") {
			id
			name
			stargazerCount
			owner { __typename id login }
		}
	}`, q.Document)
	require.Nil(t, q.Primary)
	require.Empty(t, q.Subqueries)
	require.Equal(t, []string{"repository"}, q.Terminal)
	require.Len(t, q.Variables, 1)
	require.Equal(t, "owner", q.Variables[0].Variable)
	require.Equal(t, "String!", q.Variables[0].Type.String())

	repo := q.Shape.Field("repository")
	require.NotNil(t, repo)
	require.True(t, repo.Field("id").Hidden)
	require.False(t, repo.Field("name").Hidden)
	require.True(t, repo.Field("owner").Field("__typename").Hidden)
}

func TestCompilePrimaryConnectionWithNestedSubquery(t *testing.T) {
	n := repository().Call("issues", issuesResult, compose.A("first", 2)).Select(func(i *compose.Node) []*compose.Node {
		return []*compose.Node{
			i.Field("title", str),
			i.Field("comments", commentsResult).Select(func(c *compose.Node) []*compose.Node {
				return []*compose.Node{c.Field("body", str)}
			}),
		}
	})
	q, err := Compile(n)
	require.NoError(t, err)

	requireDocument(t, `query ($__after: String, $owner: String!) {
		repository(owner: $owner, name: "graphpager") {
			id
			issues(first: 2, after: $__after) {
				pageInfo { hasNextPage endCursor }
				edges { node {
					id
					title
					comments(first: 100) {
						pageInfo { hasNextPage endCursor }
						edges { node { id body } }
					}
				} }
			}
		}
	}`, q.Document)

	require.NotNil(t, q.Primary)
	require.Equal(t, "repository.issues", q.Primary.Path)
	require.Same(t, q.Shape.Field("repository").Field("issues"), q.Primary.Connection.Target())
	require.False(t, q.Primary.Connection.Target().Paged)

	require.Len(t, q.Subqueries, 1)
	sq := q.Subqueries[0]
	require.Equal(t, "repository.issues.comments", sq.Path)
	require.Equal(t, "Issue", sq.OwnerType)
	require.Equal(t, "repository.issues.edges[].node.id", sq.ParentIDs.String())
	require.Equal(t, "repository.issues.edges[].node.comments.pageInfo", sq.ParentPageInfo.String())
	require.Equal(t, "node.comments.pageInfo", sq.PageInfo.String())
	require.Equal(t, "node.comments", sq.Connection.String())
	require.True(t, sq.Field.Paged)
	require.Empty(t, sq.Subqueries)
	require.Empty(t, sq.Variables)

	requireDocument(t, `query ($__id: ID!, $__after: String) {
		node(id: $__id) {
			__typename
			... on Issue {
				comments(first: 100, after: $__after) {
					pageInfo { hasNextPage endCursor }
					edges { node { id body } }
				}
			}
		}
	}`, sq.Document)
}

func TestCompileNestedSubqueriesOwnSubqueries(t *testing.T) {
	n := repository().Select(func(r *compose.Node) []*compose.Node {
		return []*compose.Node{
			r.Call("issues", issuesResult, compose.A("states", []compose.EnumValue{"OPEN"})).Select(func(i *compose.Node) []*compose.Node {
				return []*compose.Node{
					i.Field("title", str),
					i.Call("comments", commentsResult, compose.A("first", compose.Var("pageSize", "Int").Default(50))).Select(func(c *compose.Node) []*compose.Node {
						return []*compose.Node{c.Field("body", str)}
					}),
				}
			}),
		}
	})
	q, err := Compile(n)
	require.NoError(t, err)
	require.Nil(t, q.Primary)

	var paths []string
	q.Walk(func(sq *Subquery) { paths = append(paths, sq.Path) })
	want := []string{
		"repository.issues",
		"repository.issues.comments",
		"repository.issues.comments",
	}
	if diff := cmp.Diff(want, paths); diff != "" {
		t.Fatalf("subquery paths mismatch (-want +got):\n%s", diff)
	}

	issues := q.Subqueries[0]
	require.Equal(t, "Repository", issues.OwnerType)
	require.Equal(t, "repository.id", issues.ParentIDs.String())
	require.Len(t, issues.Subqueries, 1)
	require.Equal(t, "node.issues.edges[].node.id", issues.Subqueries[0].ParentIDs.String())
	require.Len(t, issues.Variables, 1)
	require.Equal(t, "pageSize", issues.Variables[0].Variable)

	requireDocument(t, `query ($__id: ID!, $__after: String, $pageSize: Int = 50) {
		node(id: $__id) {
			__typename
			... on Repository {
				issues(states: [OPEN], first: 100, after: $__after) {
					pageInfo { hasNextPage endCursor }
					edges { node {
						id
						title
						comments(first: $pageSize) {
							pageInfo { hasNextPage endCursor }
							edges { node { id body } }
						}
					} }
				}
			}
		}
	}`, issues.Document)

	comments := q.Subqueries[1]
	require.Equal(t, "repository.issues.edges[].node.id", comments.ParentIDs.String())
	requireDocument(t, `query ($__id: ID!, $__after: String, $pageSize: Int = 50) {
		node(id: $__id) {
			__typename
			... on Issue {
				comments(first: $pageSize, after: $__after) {
					pageInfo { hasNextPage endCursor }
					edges { node { id body } }
				}
			}
		}
	}`, comments.Document)
}

func TestCompileMergesAndAliases(t *testing.T) {
	n := repository().Select(func(r *compose.Node) []*compose.Node {
		return []*compose.Node{
			r.Field("owner", schema.Object("User")).Field("login", str),
			r.Field("owner", schema.Object("User")).Field("name", str),
			r.Call("issues", issuesResult, compose.A("states", compose.EnumValue("OPEN"))).As("open").FirstPageOnly().Select(func(i *compose.Node) []*compose.Node {
				return []*compose.Node{i.Field("title", str)}
			}),
			r.Call("issues", issuesResult, compose.A("states", compose.EnumValue("CLOSED"))).As("closed").FirstPageOnly().Select(func(i *compose.Node) []*compose.Node {
				return []*compose.Node{i.Field("title", str)}
			}),
		}
	})
	q, err := Compile(n)
	require.NoError(t, err)
	require.Empty(t, q.Subqueries)
	requireDocument(t, `query ($owner: String!) {
		repository(owner: $owner, name: "graphpager") {
			id
			owner { login name }
			open: issues(states: OPEN, first: 100) {
				pageInfo { hasNextPage endCursor }
				edges { node { id title } }
			}
			closed: issues(states: CLOSED, first: 100) {
				pageInfo { hasNextPage endCursor }
				edges { node { id title } }
			}
		}
	}`, q.Document)
}

func TestCompilePrimaryAfterArgument(t *testing.T) {
	n := compose.NewRoot("Query").Call("search", issuesResult,
		compose.A("query", "is:open"),
		compose.A("after", compose.Var("start", "String")),
	).Select(func(i *compose.Node) []*compose.Node {
		return []*compose.Node{i.Field("title", str)}
	})
	q, err := Compile(n)
	require.NoError(t, err)
	require.NotNil(t, q.Primary)
	require.Equal(t, compose.Var("start", "String"), q.Primary.After)
	require.Empty(t, q.Variables)
	requireDocument(t, `query ($__after: String) {
		search(query: "is:open", first: 100, after: $__after) {
			pageInfo { hasNextPage endCursor }
			edges { node { id title } }
		}
	}`, q.Document)
}

func TestCompileKeepsSelectionsAlongTheChain(t *testing.T) {
	n := repository().Select(func(r *compose.Node) []*compose.Node {
		return []*compose.Node{
			r.Field("name", str),
			r.Field("owner", schema.Object("User")).Select(func(o *compose.Node) []*compose.Node {
				return []*compose.Node{o.Field("login", str)}
			}).Field("name", str),
		}
	}).Field("description", str)
	q, err := Compile(n)
	require.NoError(t, err)
	require.Equal(t, []string{"repository", "description"}, q.Terminal)
	requireDocument(t, `query ($owner: String!) {
		repository(owner: $owner, name: "graphpager") {
			id
			name
			owner { login name }
			description
		}
	}`, q.Document)
}

func TestCompileBackwardConnectionIsNotWalked(t *testing.T) {
	n := compose.NewRoot("Query").Call("search", issuesResult, compose.A("last", 5)).Select(func(i *compose.Node) []*compose.Node {
		return []*compose.Node{i.Field("title", str)}
	})
	q, err := Compile(n)
	require.NoError(t, err)
	require.Nil(t, q.Primary)
	requireDocument(t, `{
		search(last: 5) {
			pageInfo { hasNextPage endCursor }
			edges { node { id title } }
		}
	}`, q.Document)
}

func TestCompileErrors(t *testing.T) {
	tests := []struct {
		name string
		node *compose.Node
		want error
	}{
		{
			name: "reserved variable",
			node: compose.NewRoot("Query").Call("node", schema.Interface("Node", true), compose.A("id", compose.Var("__id", "ID!"))),
			want: ErrReservedVariable,
		},
		{
			name: "invalid variable type",
			node: compose.NewRoot("Query").Call("node", schema.Interface("Node", true), compose.A("id", compose.Var("id", "ID!!"))),
			want: ErrInvalidVariableType,
		},
		{
			name: "conflicting variable",
			node: repository().Select(func(r *compose.Node) []*compose.Node {
				return []*compose.Node{
					r.Call("label", schema.Object("Label"), compose.A("name", compose.Var("owner", "String"))).Field("color", str),
				}
			}),
			want: ErrConflictingVariable,
		},
		{
			name: "conflicting selection",
			node: repository().Select(func(r *compose.Node) []*compose.Node {
				return []*compose.Node{
					r.Call("label", schema.Object("Label"), compose.A("name", "bug")).Field("color", str),
					r.Call("label", schema.Object("Label"), compose.A("name", "feature")).Field("color", str),
				}
			}),
			want: ErrConflictingSelection,
		},
		{
			name: "unpageable connection",
			node: repository().Select(func(r *compose.Node) []*compose.Node {
				return []*compose.Node{
					r.Field("defaultBranchRef", schema.Object("Ref")).Select(func(ref *compose.Node) []*compose.Node {
						return []*compose.Node{ref.Field("commits", issuesResult)}
					}),
				}
			}),
			want: ErrUnpageableConnection,
		},
		{
			name: "scalar with fields",
			node: repository().Select(func(r *compose.Node) []*compose.Node {
				return []*compose.Node{r.Field("name", str).Field("length", str)}
			}),
			want: ErrInvalidSelection,
		},
		{
			name: "unsupported argument",
			node: compose.NewRoot("Query").Call("node", schema.Interface("Node", true), compose.A("id", struct{}{})),
			want: ErrInvalidArgument,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Compile(tt.node)
			require.Error(t, err)
			require.True(t, errors.Is(err, tt.want), err.Error())
			var ce *CompilationError
			require.ErrorAs(t, err, &ce)
		})
	}
}

func TestCompileFirstPageOnlyOwnerNeedsNoID(t *testing.T) {
	n := repository().Select(func(r *compose.Node) []*compose.Node {
		return []*compose.Node{
			r.Field("defaultBranchRef", schema.Object("Ref")).Select(func(ref *compose.Node) []*compose.Node {
				return []*compose.Node{ref.Field("commits", issuesResult).FirstPageOnly()}
			}),
		}
	})
	q, err := Compile(n)
	require.NoError(t, err)
	require.Empty(t, q.Subqueries)
}
