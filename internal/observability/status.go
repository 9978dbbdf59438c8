package observability

import (
	"sync"
	"time"
)

// Role is what the process is doing right now.
type Role string

const (
	RoleIdle       Role = "IDLE"
	RoleCollecting Role = "COLLECTING"
	RoleThinking   Role = "THINKING"
)

// Status is a snapshot of the process state shown on the live status line.
type Status struct {
	Role          Role
	Session       string
	Step          int
	Total         int
	Task          string
	Commands      int
	LastHeartbeat time.Time
}

var (
	statusMu     sync.RWMutex
	globalStatus = Status{Role: RoleIdle, LastHeartbeat: time.Now()}
)

// SetStatus records the current role and the step it applies to.
func SetStatus(role Role, session string, step int, task string) {
	statusMu.Lock()
	defer statusMu.Unlock()
	globalStatus.Role = role
	globalStatus.Session = session
	globalStatus.Step = step
	globalStatus.Task = task
}

// SetPlanSize records the number of steps of the active plan.
func SetPlanSize(total int) {
	statusMu.Lock()
	defer statusMu.Unlock()
	globalStatus.Total = total
}

// Idle resets the role once a command has been answered.
func Idle() {
	statusMu.Lock()
	defer statusMu.Unlock()
	globalStatus.Role = RoleIdle
	globalStatus.Task = ""
	globalStatus.Commands++
}

// GetStatus retrieves a copy of the global status.
func GetStatus() Status {
	statusMu.RLock()
	defer statusMu.RUnlock()
	return globalStatus
}

// Heartbeat updates the last heartbeat time.
func Heartbeat() {
	statusMu.Lock()
	defer statusMu.Unlock()
	globalStatus.LastHeartbeat = time.Now()
}
