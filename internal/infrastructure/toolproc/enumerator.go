package toolproc

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/shirou/gopsutil/v4/process"
)

// FamilyProcess is one member of this application's process family as seen by
// an Enumerator.
type FamilyProcess struct {
	PID       int32
	Name      string
	StartedAt time.Time
}

// Enumerator abstracts OS process-family discovery and termination so the
// reaper's sweep logic stays platform-independent and testable with a fake.
type Enumerator interface {
	// Family lists processes belonging to this application's family,
	// excluding the application's own process.
	Family(ctx context.Context) ([]FamilyProcess, error)
	// Kill terminates the given family member.
	Kill(pid int32) error
}

// psEnumerator discovers the family by parent pid via gopsutil.
type psEnumerator struct {
	self int32
}

// NewPSEnumerator returns the production Enumerator: children of the current
// process per the OS process table.
func NewPSEnumerator() Enumerator {
	return &psEnumerator{self: int32(os.Getpid())}
}

func (e *psEnumerator) Family(ctx context.Context) ([]FamilyProcess, error) {
	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("process table scan: %w", err)
	}

	var out []FamilyProcess
	for _, p := range procs {
		if p.Pid == e.self {
			continue
		}
		ppid, err := p.PpidWithContext(ctx)
		if err != nil || ppid != e.self {
			continue // raced exit or unrelated process
		}

		created, err := p.CreateTimeWithContext(ctx) // epoch millis
		if err != nil {
			continue
		}
		name, _ := p.NameWithContext(ctx)

		out = append(out, FamilyProcess{
			PID:       p.Pid,
			Name:      name,
			StartedAt: time.UnixMilli(created),
		})
	}
	return out, nil
}

func (e *psEnumerator) Kill(pid int32) error {
	p, err := process.NewProcess(pid)
	if err != nil {
		return fmt.Errorf("lookup pid %d: %w", pid, err)
	}
	if err := p.Kill(); err != nil {
		return fmt.Errorf("kill pid %d: %w", pid, err)
	}
	return nil
}
