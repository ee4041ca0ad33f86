package ir

// NOTE: These are store-layer records, not part of the namespace spec.

// TransitionRecord is a fired transition as written to the log.
type TransitionRecord struct {
	Seq           int64  `json:"seq"` // logical clock
	EventID       string `json:"event_id"`
	Namespace     string `json:"namespace"`
	NamespaceHash string `json:"namespace_hash"`
	InstanceID    string `json:"instance_id"`
	Machine       string `json:"machine"`
	From          string `json:"from"`
	To            string `json:"to"`
	Action        string `json:"action,omitempty"`
}

// InstanceRecord is the latest snapshot of an FSM instance.
type InstanceRecord struct {
	ID        string `json:"id"`
	Namespace string `json:"namespace"`
	Machine   string `json:"machine"`
	State     string `json:"state"`
	Vars      Object `json:"vars"`
	Seq       int64  `json:"seq"` // seq of the last change
}
