package enums

// ReleaseStatus tracks entries in the stock release backlog.
type ReleaseStatus string

const (
	ReleaseStatusPending ReleaseStatus = "pending"
	ReleaseStatusDone    ReleaseStatus = "done"
)

// String implements fmt.Stringer.
func (r ReleaseStatus) String() string {
	return string(r)
}
