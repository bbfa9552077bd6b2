package chat

// Observer receives conversation change notifications. The contract mirrors a
// flat list model: exactly one RowInserted per appended message, one
// RowRemoved per deleted message, ModelReset on bulk clear/truncate, and
// RowChanged per relay flush or edit.
//
// Callbacks run on the session loop goroutine. They may read the session
// (Messages, MessageAt, StateSnapshot) but must not block.
type Observer interface {
	RowInserted(index int)
	RowRemoved(index int)
	ModelReset()
	RowChanged(index int, field string)

	// CopyRequested delivers the /copy export text to the host.
	CopyRequested(text string)
	// ScrollToEnd asks the host view to follow the newest message.
	ScrollToEnd()
}

func (s *Session) rowInserted(index int) {
	if s.obs != nil {
		s.obs.RowInserted(index)
	}
}

func (s *Session) rowRemoved(index int) {
	if s.obs != nil {
		s.obs.RowRemoved(index)
	}
}

func (s *Session) modelReset() {
	if s.obs != nil {
		s.obs.ModelReset()
	}
}

func (s *Session) rowChanged(index int, field string) {
	if s.obs != nil {
		s.obs.RowChanged(index, field)
	}
}

func (s *Session) copyRequested(text string) {
	if s.obs != nil {
		s.obs.CopyRequested(text)
	}
}

func (s *Session) scrollToEnd() {
	if s.obs != nil {
		s.obs.ScrollToEnd()
	}
}
