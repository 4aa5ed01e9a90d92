package vulkan

import "sync"

type LockGroup string

const (
	// the command pool is externally synchronized
	CommandPoolManagement LockGroup = "command_pool_management"
	// graphics and present queues, shared by frame submission and uploads
	QueueManagement LockGroup = "queue_management"
	// descriptor pools and descriptor set updates
	DescriptorManagement LockGroup = "descriptor_management"
)

// VulkanLockPool hands out one mutex per LockGroup.
type VulkanLockPool struct {
	locks map[LockGroup]*sync.Mutex
	mu    sync.Mutex // Protects access to the locks map
}

func NewVulkanLockPool() *VulkanLockPool {
	return &VulkanLockPool{
		locks: make(map[LockGroup]*sync.Mutex),
	}
}

// Get or create the mutex for a specific group
func (vs *VulkanLockPool) lock(group LockGroup) *sync.Mutex {
	vs.mu.Lock()
	l, exists := vs.locks[group]
	if !exists {
		l = &sync.Mutex{}
		vs.locks[group] = l
	}
	vs.mu.Unlock()
	return l
}

// SafeCall runs fn while holding the group's mutex.
func (vs *VulkanLockPool) SafeCall(group LockGroup, fn func() error) error {
	l := vs.lock(group)
	l.Lock()
	defer l.Unlock()

	return fn()
}
