package settings

import "context"

// Plugin is the component name the approval settings are stored under.
const Plugin = "tool_courseautoapprove"

const (
	DefaultMaxCourses = 1
	DefaultReject     = true
)

// ApprovalConfig is the configuration of a single approval run. It is loaded
// once per run and never mutated by the job.
type ApprovalConfig struct {
	RequestsEnabled bool // global platform flag, not owned by this service
	MaxCourses      int  // 0 disables automatic approval
	Reject          bool // reject denied requests instead of leaving them pending
}

// Default returns the configuration used when nothing has been stored yet.
func Default() ApprovalConfig {
	return ApprovalConfig{
		MaxCourses: DefaultMaxCourses,
		Reject:     DefaultReject,
	}
}

// Repository defines the operations for reading and editing approval settings.
type Repository interface {
	LoadApprovalConfig(ctx context.Context) (ApprovalConfig, error)
	SaveMaxCourses(ctx context.Context, maxCourses int) error
	SaveReject(ctx context.Context, reject bool) error
}
