package telegram

import "errors"

type ValidationIssue struct{ Field, Reason string }

type ValidationError struct{ Issues []ValidationIssue }

var ErrInvalidContract = errors.New("invalid contract")

func (e *ValidationError) Error() string { return ErrInvalidContract.Error() }
func (e *ValidationError) add(f, r string) {
	e.Issues = append(e.Issues, ValidationIssue{Field: f, Reason: r})
}
func (e *ValidationError) Is(target error) bool { return target == ErrInvalidContract }

func (m *MessageV1) Validate() error {
	ve := &ValidationError{}

	if m.Service == "" {
		ve.add("service", "required")
	}
	if m.Event != EventType {
		ve.add("event", "must be "+EventType)
	}
	if m.HasMedia != (m.Media != nil) {
		ve.add("media", "must be present iff has_media")
	}
	if m.Media != nil && m.Media.Type == "" {
		ve.add("media.type", "required")
	}
	if m.ReplyTo != nil && !m.IsReply {
		ve.add("reply_to", "omit when is_reply is false")
	}
	if m.SenderID == nil && m.IsBot {
		ve.add("is_bot", "must be false without sender")
	}
	if m.Date != nil {
		if _, off := m.Date.Zone(); off != 0 {
			ve.add("date", "must be UTC")
		}
	}

	if len(ve.Issues) > 0 {
		return ve
	}
	return nil
}
