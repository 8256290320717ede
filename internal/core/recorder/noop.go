package recorder

// NoopRecorder is used when SQLite is not configured.
type NoopRecorder struct{}

func NewNoopRecorder() *NoopRecorder { return &NoopRecorder{} }

func (n *NoopRecorder) RecordAlert(_ *AlertEvent) error                   { return nil }
func (n *NoopRecorder) RecordEmergencyDecision(_ *EmergencyDecision) error { return nil }
func (n *NoopRecorder) RecordFundMovement(_ *FundMovement) error           { return nil }
func (n *NoopRecorder) Close() error                                       { return nil }
