package repository

import "context"

/*
This file defines what a "write policy" is.

Different systems have different needs:
- Some want strong consistency (write-through)
- Some want fast writes (write-back)

Instead of hard-coding one behavior, the Table takes a WritePolicy.
*/

/*
WritePolicy is the contract that all write policies must follow.
The Table does not care which policy is used. It simply calls these methods.
*/
type WritePolicy interface {

	/*
		Submit hands w to the origin. applied runs exactly once, after the
		origin has accepted the write, with the id of the affected record;
		it never runs for a failed write.

		The returned id is the record id as far as it is known when Submit
		returns.
	*/
	Submit(ctx context.Context, w Write, applied func(id string)) (string, error)

	/*
		Close is called when the repository is shutting down.
	*/
	Close()
}
