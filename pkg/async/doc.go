// Package async provides a small, generic Future helper for running a
// computation in its own goroutine and waiting on it with a deadline.
//
// Async starts the supplied function and immediately returns a *Future.
// The caller can block with Await, bound the wait with AwaitWithTimeout, or
// poll with IsComplete. AwaitWithTimeout is how the job worker abandons an
// execution that exceeded its timeout: the wait returns ErrTimeout while
// the task goroutine keeps running until it observes context cancellation,
// and whatever it eventually produces is discarded.
//
// # Usage
//
//	future := async.Async(ctx, args, func(ctx context.Context, a Arguments) (string, error) {
//	    return render(ctx, a)
//	})
//	res, err := future.AwaitWithTimeout(5 * time.Minute)
//	if errors.Is(err, async.ErrTimeout) {
//	    // execution abandoned; task keeps running until it checks ctx
//	}
package async
