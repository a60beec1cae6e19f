// Package eventapi is a client for the convention's paginated JSON event API.
//
// The API serves pages of events as
//
//	GET {base}?page=N&per_page=M  ->  {"events": [...], "next": N+1 | null}
//
// and the client either reads one page ([Client.FetchPage]) or walks every
// page in order ([Client.FetchAll]).
package eventapi
