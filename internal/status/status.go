package status

type Status = int32

const (
	Pending Status = iota
	Downloading
	Uploading
	Completed
	Failed
	Cancelled
)

// Text returns a human-readable name for a status.
func Text(s Status) string {
	switch s {
	case Pending:
		return "pending"
	case Downloading:
		return "downloading"
	case Uploading:
		return "uploading"
	case Completed:
		return "completed"
	case Failed:
		return "failed"
	case Cancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}
