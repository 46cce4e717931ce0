package bridgy

// Status is Bridgy's view of a browser source
type Status struct {
	Status      string `json:"status"`
	PollSeconds int    `json:"poll-seconds,omitempty"`
}

// Enabled reports whether Bridgy will accept polls for the source
func (s *Status) Enabled() bool {
	return s != nil && s.Status == "enabled"
}
