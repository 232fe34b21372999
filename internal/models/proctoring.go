package models

// ProctoringEventType names the suspicious-activity events clients report.
// The engine stores whatever it receives; these constants exist so that the
// review tooling and the clients agree on spelling.
type ProctoringEventType string

const (
	EventTabSwitch      ProctoringEventType = "tab_switch"
	EventWindowBlur     ProctoringEventType = "window_blur"
	EventFullscreenExit ProctoringEventType = "fullscreen_exit"
	EventRightClick     ProctoringEventType = "right_click"
	EventCopyPaste      ProctoringEventType = "copy_paste"
	EventScreenshot     ProctoringEventType = "screenshot"
)

// SuspiciousEvent is the per-record shape inside Attempt.SuspiciousActivity.
// Fields beyond these are preserved as-is in the stored JSON.
type SuspiciousEvent struct {
	Type       ProctoringEventType `json:"type"`
	TimeOffset int                 `json:"time_offset"` // seconds from attempt start
	Detail     string              `json:"detail,omitempty"`
}
