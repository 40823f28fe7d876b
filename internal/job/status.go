package job

// Transition derives a job's status from its rows' statuses. It is the one
// place completion is decided: the tick processor calls it both after row
// outcomes settle and during the no-pending-rows sweep, so both paths agree.
//
// unfinished counts rows still pending or claimed; failed counts settled
// failures. Returns the derived status and whether it differs from current
// (callers skip the write when it does not).
func Transition(current Status, unfinished, failed int64) (Status, bool) {
	if unfinished > 0 {
		return current, false
	}
	next := JobCompleted
	if failed > 0 {
		next = JobPartial
	}
	return next, next != current
}
