package state

import "sync"

// FaultPolicy holds the armed fault injections for outgoing reliable segments.
// Each armed event is consumed exactly once.
type FaultPolicy struct {
	mu      sync.Mutex
	corrupt int
	loss    bool
}

// ArmCorruption makes the next n segments carry a bad checksum.
func (f *FaultPolicy) ArmCorruption(n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.corrupt = max(n, 0)
}

func (f *FaultPolicy) DisarmCorruption() {
	f.ArmCorruption(0)
}

// ArmLoss makes the next segment vanish instead of being written.
func (f *FaultPolicy) ArmLoss() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loss = true
}

func (f *FaultPolicy) DisarmLoss() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loss = false
}

func (f *FaultPolicy) TakeCorruption() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.corrupt == 0 {
		return false
	}
	f.corrupt--
	return true
}

func (f *FaultPolicy) TakeLoss() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	armed := f.loss
	f.loss = false
	return armed
}

// Armed reports the remaining corruption shots and whether loss is armed.
func (f *FaultPolicy) Armed() (int, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.corrupt, f.loss
}
