package approval

// Policy controls when an operation needs explicit approval before it is
// executed.
type Policy string

const (
	// PolicyAutoApproveRead requests approval only when the operation is
	// expected to modify resources or when that is unknown.
	PolicyAutoApproveRead Policy = "auto-approve-read"

	// PolicyParanoid always asks for approval, regardless of whether the
	// operation is read-only.
	PolicyParanoid Policy = "paranoid"

	// PolicyYolo disables approval checks entirely.
	PolicyYolo Policy = "yolo"
)

// IsValid reports whether the policy is one of the supported values.
func (p Policy) IsValid() bool {
	switch p {
	case PolicyAutoApproveRead, PolicyParanoid, PolicyYolo:
		return true
	default:
		return false
	}
}
