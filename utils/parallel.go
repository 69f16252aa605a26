package utils

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"go.uber.org/multierr"
	"go.viam.com/utils"
	"golang.org/x/sync/errgroup"
)

// ParallelFactor controls the max level of parallelization. This might be useful
// to set in tests where too much parallelism actually slows tests down in
// aggregate.
var ParallelFactor = runtime.GOMAXPROCS(0)

func init() {
	if ParallelFactor <= 0 {
		ParallelFactor = 1
	}
}

type (
	// MemberWorkFunc runs for each work item (member) of a group.
	MemberWorkFunc func(memberNum, workNum int)
	// GroupWorkDoneFunc runs when a single group's work is done; helpful for merge stages.
	GroupWorkDoneFunc func()
	// GroupWorkFunc runs to determine what work members should do, if any.
	GroupWorkFunc func(groupNum, groupSize, from, to int) (MemberWorkFunc, GroupWorkDoneFunc)
)

// GroupWorkParallel splits totalSize work items into at most workers contiguous groups
// and runs each group on its own goroutine. A non-positive workers uses ParallelFactor.
// Members check ctx between items; a panic in any group is returned as an error.
func GroupWorkParallel(ctx context.Context, totalSize, workers int, groupWork GroupWorkFunc) error {
	if totalSize <= 0 {
		return nil
	}
	if workers <= 0 {
		workers = ParallelFactor
	}
	numGroups := min(workers, totalSize)
	groupSize := totalSize / numGroups
	extra := totalSize % numGroups

	var (
		wait     sync.WaitGroup
		errMu    sync.Mutex
		groupErr error
	)
	storeError := func(err error) {
		errMu.Lock()
		defer errMu.Unlock()
		groupErr = multierr.Combine(groupErr, err)
	}

	wait.Add(numGroups)
	for groupNum := 0; groupNum < numGroups; groupNum++ {
		from := groupSize * groupNum
		to := from + groupSize
		if groupNum == numGroups-1 {
			to += extra
		}
		thisGroup := groupNum
		utils.PanicCapturingGo(func() {
			defer wait.Done()
			defer func() {
				if thePanic := recover(); thePanic != nil {
					storeError(fmt.Errorf("got panic running group %d in parallel: %v", thisGroup, thePanic))
				}
			}()
			memberWork, groupWorkDone := groupWork(thisGroup, to-from, from, to)
			if memberWork != nil {
				memberNum := 0
				for workNum := from; workNum < to; workNum++ {
					if ctx.Err() != nil {
						return
					}
					memberWork(memberNum, workNum)
					memberNum++
				}
			}
			if groupWorkDone != nil {
				groupWorkDone()
			}
		})
	}
	wait.Wait()
	if groupErr != nil {
		return groupErr
	}
	return ctx.Err()
}

// SimpleFunc is for RunInParallel.
type SimpleFunc func(ctx context.Context) error

// RunInParallel runs fs concurrently and returns how long they took along with the first
// error. The context handed to fs is cancelled once any of them fails or panics.
func RunInParallel(ctx context.Context, fs []SimpleFunc) (time.Duration, error) {
	start := time.Now()
	g, gctx := errgroup.WithContext(ctx)
	for _, f := range fs {
		g.Go(func() (err error) {
			defer func() {
				if thePanic := recover(); thePanic != nil {
					err = fmt.Errorf("got panic running something in parallel: %v", thePanic)
				}
			}()
			return f(gctx)
		})
	}
	err := g.Wait()
	return time.Since(start), err
}
