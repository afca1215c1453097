package status

import "time"

// SavePhase represents the outcome of the most recent save pass
type SavePhase string

const (
	// SavePhaseSaving means a save pass is currently in progress
	SavePhaseSaving SavePhase = "Saving"

	// SavePhaseComplete means the last save pass succeeded
	SavePhaseComplete SavePhase = "Complete"

	// SavePhaseFailed means the last save pass failed and may be retried by a later request
	SavePhaseFailed SavePhase = "Failed"

	// SavePhaseAborted means the persisted component was unloaded and the save loop stopped
	SavePhaseAborted SavePhase = "Aborted"
)

// SaveStatus represents the current state of background saving for one instance
type SaveStatus struct {
	// Phase represents the outcome of the latest pass
	Phase SavePhase `json:"phase,omitempty"`

	// Message provides additional information about the save status
	Message string `json:"message,omitempty"`

	// LastPassID identifies the latest pass in logs and traces
	LastPassID string `json:"lastPassId,omitempty"`

	// LastAttempt is the start time of the latest pass
	LastAttempt *time.Time `json:"lastAttempt,omitempty"`

	// LastSaveTime is the completion time of the latest successful pass
	LastSaveTime *time.Time `json:"lastSaveTime,omitempty"`

	// PassCount is the total number of passes run
	PassCount int `json:"passCount,omitempty"`

	// FailureCount is the number of consecutive failed passes since the last success
	FailureCount int `json:"failureCount,omitempty"`

	// CoalescedCount is the number of save requests folded into an already running save
	CoalescedCount int `json:"coalescedCount,omitempty"`

	// Privileged reports whether the latest pass ran under a privilege grant
	Privileged bool `json:"privileged,omitempty"`

	// WriterVersion is the daemon version that last wrote the status file
	WriterVersion string `json:"writerVersion,omitempty"`
}

// Clone returns a deep copy of the status
func (s *SaveStatus) Clone() *SaveStatus {
	if s == nil {
		return nil
	}

	c := *s
	if s.LastAttempt != nil {
		t := *s.LastAttempt
		c.LastAttempt = &t
	}
	if s.LastSaveTime != nil {
		t := *s.LastSaveTime
		c.LastSaveTime = &t
	}

	return &c
}
