// Package crawl builds the crawl pipeline as a tree of tasks.
//
// The tree, with the checkpoints each level writes:
//
//	crawl                       summaries/<session id>
//	├── events                  events/all
//	└── crawl-vendors
//	    ├── vendors             vendors/all
//	    └── vendor:<id>         (bounded pool, one per vendor)
//	        ├── timeline:<handle>  timelines/<handle>
//	        └── classify:<url>     (spawned, one per image)
//
// Collaborators are not captured by the task bodies; they are read from the
// session's ambient context as a [Deps] value, so the same tree can be run
// against fakes in tests.
package crawl
