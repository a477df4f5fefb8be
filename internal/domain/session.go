package domain

import (
	"strconv"
	"time"
)

// SessionStatus represents the overall status of a reconcile run
type SessionStatus string

const (
	SessionStatusRunning   SessionStatus = "running"
	SessionStatusCompleted SessionStatus = "completed"
	SessionStatusFailed    SessionStatus = "failed"
	SessionStatusCancelled SessionStatus = "cancelled"
)

// StepStatus represents the status of an individual scripted step
type StepStatus string

const (
	StepStatusRunning   StepStatus = "running"
	StepStatusCompleted StepStatus = "completed"
	StepStatusFailed    StepStatus = "failed"
	StepStatusDryRun    StepStatus = "dry_run"
)

// ActionType is the closed vocabulary scenario scripts are built from
type ActionType string

const (
	ActionDeleteLocalTag  ActionType = "delete_local_tag"
	ActionDeleteRemoteTag ActionType = "delete_remote_tag"
	ActionDeleteRelease   ActionType = "delete_release"
	ActionPushCommits     ActionType = "push_commits"
	ActionCreateTag       ActionType = "create_tag"
	ActionPushTag         ActionType = "push_tag"
	ActionCreateRelease   ActionType = "create_release"
	ActionPublishRelease  ActionType = "publish_release"
	ActionTriggerPublish  ActionType = "trigger_publish"
	ActionWriteChangelog  ActionType = "write_changelog"
	ActionCommitRelease   ActionType = "commit_release"
	ActionBumpVersion     ActionType = "bump_version"
	ActionRevertManifest  ActionType = "revert_manifest"
)

// Session is the journal of one reconcile run
type Session struct {
	SessionID string        `json:"session_id"`
	StartedAt time.Time     `json:"started_at"`
	UpdatedAt time.Time     `json:"updated_at"`
	Passes    []PassRecord  `json:"passes"`
	Steps     []StepRecord  `json:"steps"`
	Stashes   []StashRecord `json:"stashes,omitempty"`
	Status    SessionStatus `json:"status"`
	Error     string        `json:"error,omitempty"`
}

// PassRecord is one probe-classify-dispatch cycle
type PassRecord struct {
	Number      int          `json:"number"`
	Scenario    ScenarioKind `json:"scenario"`
	Fingerprint string       `json:"fingerprint"`
	Choice      string       `json:"choice,omitempty"`
	At          time.Time    `json:"at"`
}

// StepRecord represents a single mutation in the run
type StepRecord struct {
	ID          string     `json:"id"`
	Action      ActionType `json:"action"`
	Target      string     `json:"target"`
	Status      StepStatus `json:"status"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Error       string     `json:"error,omitempty"`
}

// StashRecord is a guard stash that was not restored
type StashRecord struct {
	Ref         string    `json:"ref"`
	Message     string    `json:"message"`
	Description string    `json:"description"`
	Reason      string    `json:"reason"`
	RecordedAt  time.Time `json:"recorded_at"`
}

// NewSession creates a new journal session
func NewSession(sessionID string) *Session {
	now := time.Now()
	return &Session{
		SessionID: sessionID,
		StartedAt: now,
		UpdatedAt: now,
		Passes:    []PassRecord{},
		Steps:     []StepRecord{},
		Status:    SessionStatusRunning,
	}
}

// AddPass records a classification
func (s *Session) AddPass(scenario ScenarioKind, fingerprint string) *PassRecord {
	s.Passes = append(s.Passes, PassRecord{
		Number:      len(s.Passes) + 1,
		Scenario:    scenario,
		Fingerprint: fingerprint,
		At:          time.Now(),
	})
	s.UpdatedAt = time.Now()
	return &s.Passes[len(s.Passes)-1]
}

// StartStep appends a running step and returns its index
func (s *Session) StartStep(action ActionType, target string) int {
	s.Steps = append(s.Steps, StepRecord{
		ID:        generateStepID(action, len(s.Steps)),
		Action:    action,
		Target:    target,
		Status:    StepStatusRunning,
		StartedAt: time.Now(),
	})
	s.UpdatedAt = time.Now()
	return len(s.Steps) - 1
}

// FinishStep marks a step completed (or dry-run) and records the identifier it touched
func (s *Session) FinishStep(index int, status StepStatus, target string) {
	if index < 0 || index >= len(s.Steps) {
		return
	}
	now := time.Now()
	s.Steps[index].Status = status
	s.Steps[index].CompletedAt = &now
	if target != "" {
		s.Steps[index].Target = target
	}
	s.UpdatedAt = now
}

// FailStep marks a step failed
func (s *Session) FailStep(index int, err error) {
	if index < 0 || index >= len(s.Steps) {
		return
	}
	now := time.Now()
	s.Steps[index].Status = StepStatusFailed
	s.Steps[index].CompletedAt = &now
	s.Steps[index].Error = err.Error()
	s.UpdatedAt = now
}

// CompletedSteps returns steps that actually mutated something, in order
func (s *Session) CompletedSteps() []StepRecord {
	var completed []StepRecord
	for _, step := range s.Steps {
		if step.Status == StepStatusCompleted {
			completed = append(completed, step)
		}
	}
	return completed
}

// RecordStash remembers a stash the guard left behind
func (s *Session) RecordStash(ref, message, description, reason string) {
	s.Stashes = append(s.Stashes, StashRecord{
		Ref:         ref,
		Message:     message,
		Description: description,
		Reason:      reason,
		RecordedAt:  time.Now(),
	})
	s.UpdatedAt = time.Now()
}

// Finish sets the terminal status
func (s *Session) Finish(status SessionStatus, err error) {
	s.Status = status
	if err != nil {
		s.Error = err.Error()
	}
	s.UpdatedAt = time.Now()
}

// generateStepID creates a unique ID for a step
func generateStepID(action ActionType, seq int) string {
	return string(action) + "_" + time.Now().Format("20060102150405") + "_" + strconv.Itoa(seq)
}

