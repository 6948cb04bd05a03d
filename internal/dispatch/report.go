package dispatch

import (
	"github.com/samber/lo"

	"github.com/danghamo/rescueme/internal/domain/location"
	"github.com/danghamo/rescueme/internal/domain/shared"
)

// Status summarizes a dispatch call
type Status string

const (
	StatusSent             Status = "sent"
	StatusPermissionDenied Status = "permission_denied"
	StatusNoRecipients     Status = "no_recipients"
	StatusNoLocation       Status = "no_location"
)

// Result is the outcome for one recipient
type Result struct {
	ContactID string `json:"contact_id"`
	Name      string `json:"name"`
	Phone     string `json:"phone"`
	Parts     int    `json:"parts"`
	Delivered bool   `json:"delivered"`
	Error     string `json:"error,omitempty"`
}

// Report is returned by every dispatch. Delivered means the sender accepted
// the message, not that the handset received it.
type Report struct {
	Status    Status          `json:"status"`
	Location  *location.Point `json:"location,omitempty"`
	Attempted int             `json:"attempted"`
	Delivered int             `json:"delivered"`
	Failed    int             `json:"failed"`
	Results   []Result        `json:"results"`
	At        shared.Millis   `json:"at"`
}

// NoLocationReport is used when there is nothing to send yet
func NoLocationReport() Report {
	return Report{Status: StatusNoLocation, Results: []Result{}, At: shared.NowMillis()}
}

func newReport(status Status, loc location.Point, results []Result) Report {
	if results == nil {
		results = []Result{}
	}
	delivered := lo.CountBy(results, func(r Result) bool { return r.Delivered })
	return Report{
		Status:    status,
		Location:  &loc,
		Attempted: len(results),
		Delivered: delivered,
		Failed:    len(results) - delivered,
		Results:   results,
		At:        shared.NowMillis(),
	}
}
