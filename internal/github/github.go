// Package github declares schema-bound proxies for a subset of the GitHub
// GraphQL schema. Each proxy wraps a composition node; its methods append
// fields with their declared results so the compiler knows which values are
// connections, entities or scalars.
//
// Arguments accept a literal value or a *compose.VarRef.
package github

import (
	"time"

	"github.com/hanpama/graphpager/internal/compose"
	"github.com/hanpama/graphpager/internal/schema"
)

var (
	str      = schema.Scalar(schema.String)
	id       = schema.Scalar(schema.ID)
	integer  = schema.Scalar(schema.Int)
	dateTime = schema.Scalar(schema.DateTime)
	uri      = schema.Scalar(schema.URI)

	repositoryResult   = schema.Entity("Repository")
	issueResult        = schema.Entity("Issue")
	issueCommentResult = schema.Entity("IssueComment")
	userResult         = schema.Entity("User")
	actorResult        = schema.Interface("Actor", true)
)

// Query is the root operation type.
type Query struct{ n *compose.Node }

func NewQuery() Query { return Query{compose.NewRoot("Query")} }

func (q Query) Node() *compose.Node { return q.n }

// Viewer is the authenticated user.
func (q Query) Viewer() compose.Object[User] {
	return compose.NewObject(q.n.Field("viewer", userResult), wrapUser)
}

// Repository looks up a repository by owner login and name.
func (q Query) Repository(owner, name any) compose.Object[Repository] {
	return compose.NewObject(q.n.Call("repository", repositoryResult.Null(),
		compose.A("owner", owner), compose.A("name", name)), wrapRepository)
}

// User looks up a user by login.
func (q Query) User(login any) compose.Object[User] {
	return compose.NewObject(q.n.Call("user", userResult.Null(), compose.A("login", login)), wrapUser)
}

type Repository struct{ n *compose.Node }

func wrapRepository(n *compose.Node) Repository { return Repository{n} }

func (r Repository) Node() *compose.Node { return r.n }

func (r Repository) ID() compose.Field[string]   { return compose.NewField[string](r.n.Field("id", id)) }
func (r Repository) Name() compose.Field[string] { return compose.NewField[string](r.n.Field("name", str)) }
func (r Repository) URL() compose.Field[string]  { return compose.NewField[string](r.n.Field("url", uri)) }

func (r Repository) StargazerCount() compose.Field[int64] {
	return compose.NewField[int64](r.n.Field("stargazerCount", integer))
}

func (r Repository) Description() compose.Field[string] {
	return compose.NewField[string](r.n.Field("description", str.Null()))
}

// Topics is a plain list of topic names.
func (r Repository) Topics() compose.Field[[]string] {
	return compose.NewField[[]string](r.n.Field("topics", schema.ListOf(str)))
}

func (r Repository) Owner() compose.Object[Actor] {
	return compose.NewObject(r.n.Field("owner", actorResult), wrapActor)
}

// Issues takes first, last, states or orderBy among its arguments.
func (r Repository) Issues(args ...compose.Arg) compose.Connection[Issue] {
	return compose.NewConnection(r.n.Call("issues", schema.ConnectionOf(issueResult), args...), wrapIssue)
}

type Issue struct{ n *compose.Node }

func wrapIssue(n *compose.Node) Issue { return Issue{n} }

func (i Issue) Node() *compose.Node { return i.n }

func (i Issue) ID() compose.Field[string]     { return compose.NewField[string](i.n.Field("id", id)) }
func (i Issue) Number() compose.Field[int64]  { return compose.NewField[int64](i.n.Field("number", integer)) }
func (i Issue) Title() compose.Field[string]  { return compose.NewField[string](i.n.Field("title", str)) }
func (i Issue) Body() compose.Field[string]   { return compose.NewField[string](i.n.Field("body", str)) }
func (i Issue) State() compose.Field[string]  { return compose.NewField[string](i.n.Field("state", schema.Enum("IssueState"))) }
func (i Issue) CreatedAt() compose.Field[time.Time] {
	return compose.NewField[time.Time](i.n.Field("createdAt", dateTime))
}

// Author is null for deleted accounts.
func (i Issue) Author() compose.Object[Actor] {
	return compose.NewObject(i.n.Field("author", actorResult.Null()), wrapActor)
}

func (i Issue) Comments(args ...compose.Arg) compose.Connection[IssueComment] {
	return compose.NewConnection(i.n.Call("comments", schema.ConnectionOf(issueCommentResult), args...), wrapIssueComment)
}

type IssueComment struct{ n *compose.Node }

func wrapIssueComment(n *compose.Node) IssueComment { return IssueComment{n} }

func (c IssueComment) Node() *compose.Node { return c.n }

func (c IssueComment) ID() compose.Field[string]   { return compose.NewField[string](c.n.Field("id", id)) }
func (c IssueComment) Body() compose.Field[string] { return compose.NewField[string](c.n.Field("body", str)) }
func (c IssueComment) CreatedAt() compose.Field[time.Time] {
	return compose.NewField[time.Time](c.n.Field("createdAt", dateTime))
}

func (c IssueComment) Author() compose.Object[Actor] {
	return compose.NewObject(c.n.Field("author", actorResult.Null()), wrapActor)
}

type User struct{ n *compose.Node }

func wrapUser(n *compose.Node) User { return User{n} }

func (u User) Node() *compose.Node { return u.n }

func (u User) ID() compose.Field[string]    { return compose.NewField[string](u.n.Field("id", id)) }
func (u User) Login() compose.Field[string] { return compose.NewField[string](u.n.Field("login", str)) }
func (u User) Name() compose.Field[string]  { return compose.NewField[string](u.n.Field("name", str.Null())) }

func (u User) Repositories(args ...compose.Arg) compose.Connection[Repository] {
	return compose.NewConnection(u.n.Call("repositories", schema.ConnectionOf(repositoryResult), args...), wrapRepository)
}

// Actor is implemented by User, Bot and Organization.
type Actor struct{ n *compose.Node }

func wrapActor(n *compose.Node) Actor { return Actor{n} }

func (a Actor) Node() *compose.Node { return a.n }

func (a Actor) Login() compose.Field[string] { return compose.NewField[string](a.n.Field("login", str)) }

// IssuesWithComments selects every issue of a repository with every
// comment, requesting pageSize items per page. The repository is the
// terminal value; both connections are walked to the end.
func IssuesWithComments(owner, name any, pageSize int) *compose.Node {
	return NewQuery().Repository(owner, name).Select(func(r Repository) []compose.Selectable {
		return []compose.Selectable{
			r.Name(),
			r.Issues(compose.A("first", pageSize)).Select(func(i Issue) []compose.Selectable {
				return []compose.Selectable{
					i.Number(),
					i.Title(),
					i.State(),
					i.Author().Select(func(a Actor) []compose.Selectable { return []compose.Selectable{a.Login()} }),
					i.Comments(compose.A("first", pageSize)).Select(func(c IssueComment) []compose.Selectable {
						return []compose.Selectable{
							c.Body(),
							c.Author().Select(func(a Actor) []compose.Selectable { return []compose.Selectable{a.Login()} }),
						}
					}),
				}
			}),
		}
	})
}
