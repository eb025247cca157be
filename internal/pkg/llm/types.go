package llm

// ModerationResult is the outcome of one text classification call.
type ModerationResult struct {
	Flagged    bool
	Categories []string
	Model      string
}
