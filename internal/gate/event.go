package gate

// EventType classifies what triggered an evaluation.
type EventType string

const (
	// EventPush is a push to a branch of the gated repository.
	EventPush EventType = "push"
	// EventProposedChange is an open or update of a pending proposed change.
	EventProposedChange EventType = "pull_request"
)

// Event is one triggering occurrence delivered by the hosting platform.
// All evaluation state is derived from the event and the gate config;
// nothing carries over between events.
type Event struct {
	ID         string    `json:"id"`
	Type       EventType `json:"type"`
	Branch     string    `json:"branch"`      // push: pushed branch; proposed change: head branch
	BaseBranch string    `json:"base_branch"` // proposed change only
	Number     int       `json:"number"`      // proposed change number, 0 for pushes
	Actor      string    `json:"actor"`       // authorship identity of the event
}

// Key identifies the stream of events an evaluation belongs to. A newer
// event with the same key supersedes the older one's evaluation.
func (e Event) Key() string {
	return string(e.Type) + ":" + e.Branch
}
