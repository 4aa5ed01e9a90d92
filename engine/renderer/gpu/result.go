package gpu

// Result is the outcome of a queue, fence or swapchain call.
type Result int

const (
	Success Result = iota
	Suboptimal
	OutOfDate
	Timeout
	NotReady
	ErrorDeviceLost
	ErrorOutOfHostMemory
	ErrorOutOfDeviceMemory
	ErrorSurfaceLost
	ErrorUnknown
)

func (r Result) String() string {
	switch r {
	case Success:
		return "success"
	case Suboptimal:
		return "suboptimal"
	case OutOfDate:
		return "out-of-date"
	case Timeout:
		return "timeout"
	case NotReady:
		return "not-ready"
	case ErrorDeviceLost:
		return "device-lost"
	case ErrorOutOfHostMemory:
		return "out-of-host-memory"
	case ErrorOutOfDeviceMemory:
		return "out-of-device-memory"
	case ErrorSurfaceLost:
		return "surface-lost"
	default:
		return "unknown-error"
	}
}

// Error lets a Result travel as an error value.
func (r Result) Error() string {
	return "gpu: " + r.String()
}

// IsSurfaceInvalid reports results that are recovered by recreating the
// render targets.
func (r Result) IsSurfaceInvalid() bool {
	return r == OutOfDate || r == Suboptimal
}
