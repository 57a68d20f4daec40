package bridge

import "sync"

// MountPoint is a slot holding at most one LiveInstance.
type MountPoint struct {
	inst *LiveInstance
	name string
	gen  uint64
	mu   sync.Mutex
}

// NewMountPoint creates an empty mount point.
func NewMountPoint(name string) *MountPoint {
	return &MountPoint{name: name}
}

// Name returns the mount point name.
func (p *MountPoint) Name() string {
	return p.name
}

// Instance returns the mounted instance, or nil.
func (p *MountPoint) Instance() *LiveInstance {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.inst
}

// Generation returns the current load generation.
func (p *MountPoint) Generation() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.gen
}

// advance invalidates every load started before the call.
func (p *MountPoint) advance() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.gen++
	return p.gen
}

func (p *MountPoint) take() *LiveInstance {
	p.mu.Lock()
	defer p.mu.Unlock()
	inst := p.inst
	p.inst = nil
	return inst
}

func (p *MountPoint) put(inst *LiveInstance) {
	p.mu.Lock()
	p.inst = inst
	p.mu.Unlock()
}

// vacate clears the slot if it still holds inst.
func (p *MountPoint) vacate(inst *LiveInstance) {
	p.mu.Lock()
	if p.inst == inst {
		p.inst = nil
	}
	p.mu.Unlock()
}

// Release destroys the mounted instance, if any.
func (p *MountPoint) Release() {
	if inst := p.take(); inst != nil {
		inst.Destroy()
	}
}
