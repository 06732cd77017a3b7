// Package executor runs compiled queries and walks every paginated
// connection to completion.
//
// # Overview
//
// A compiled query is executed by a tree of runners. The root runner fetches
// the root document once, deserializes it into the result graph and then
// enumerates the query's subqueries against that response. For every entity
// whose connection reports hasNextPage, a subquery runner is spawned. When
// the composition tree ends at a connection, the root runner additionally
// refetches the root document with $__after set to the previous end cursor
// and appends each page to that connection.
//
// # Runner states
//
// Every runner moves through Start, FetchPage, Merge and then Continue or
// Done:
//
//	Start      variables are bound. A subquery runner starts with $__id set to
//	           the owning entity and $__after set to the end cursor of the
//	           page its parent already merged.
//	FetchPage  the document and variables are sent to the Transport.
//	Merge      the page is deserialized. Continuation pages are appended after
//	           every earlier page of the same connection.
//	Continue   hasNextPage is true: $__after becomes the page's end cursor.
//	Done       the accumulated items are spliced into every connection the
//	           owning entity has in the parent response, looked up by id. The
//	           runner then enumerates its own nested subqueries against the
//	           pages it fetched.
//
// # Concurrency
//
// Runners of sibling entities and of independent connections run on their
// own goroutines. Only transport calls are bounded, by a weighted semaphore
// sized with WithConcurrency; tree walking and merging never block. Pages of
// one connection are fetched strictly in cursor order.
//
// # Failures
//
// A failing runner does not cancel its siblings. Its connections keep the
// items merged so far and report result.Failed, and the failure is returned
// as a *PageError inside a *PartialPaginationError naming the connection
// path, owning entity and cursor. Cancelling the context stops further
// fetches the same way: unfinished connections never report
// result.Complete. Failures of the root document's first page are returned
// directly.
package executor
