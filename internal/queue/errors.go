package queue

import "comicdl/internal/services"

// FailureStatus maps a stage error to the status the item should be left in.
// Cancelled work goes back to pending so the next daemon start resumes it;
// everything else is failed and waits for `comicdl queue retry`.
func FailureStatus(err error) Status {
	if services.Cancelled(err) {
		return StatusPending
	}
	return StatusFailed
}
