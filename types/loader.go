package types

import "context"

/*
LoadFunc is how a caller fetches a value from the origin (database, API)
when the cache does not have it.

 1. Cache checks memory → key not found
 2. Cache calls the LoadFunc
 3. The LoadFunc fetches from the origin
 4. Cache stores the result (unless a ShouldCache guard vetoes it)
 5. Cache returns the value

The fetch runs outside the cache lock, so it may block on I/O.
*/
type LoadFunc func(ctx context.Context) (any, error)
