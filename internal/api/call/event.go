package call

import (
	"fmt"
	"strings"
)

const (
	DirectionIncoming = "incoming"
	DirectionOutgoing = "outgoing"
)

// Event is the closed set of provider notifications the dispatcher acts on.
type Event interface {
	CallID() string
	isEvent()
}

type base struct {
	ID string
}

func (b base) CallID() string { return b.ID }
func (base) isEvent()         {}

type CallInitiated struct {
	base
	Direction string
	From      string
	To        string
}

type CallAnswered struct {
	base
}

type PlaybackStarted struct {
	base
	MediaURL string
}

type PlaybackEnded struct {
	base
	MediaURL string
	Speak    bool
	Status   string
}

type DTMFReceived struct {
	base
	Digit string
}

type RecordingSaved struct {
	base
	RecordingURL string
}

type CallHangup struct {
	base
	Cause string
}

// Ignored is a known provider event with no effect on the conversation.
type Ignored struct {
	base
	Type string
}

func NewCallInitiated(id, direction, from, to string) CallInitiated {
	return CallInitiated{base: base{id}, Direction: direction, From: from, To: to}
}

func NewCallAnswered(id string) CallAnswered {
	return CallAnswered{base: base{id}}
}

func NewPlaybackStarted(id, mediaURL string) PlaybackStarted {
	return PlaybackStarted{base: base{id}, MediaURL: mediaURL}
}

func NewPlaybackEnded(id, mediaURL string, speak bool) PlaybackEnded {
	return PlaybackEnded{base: base{id}, MediaURL: mediaURL, Speak: speak}
}

func NewDTMFReceived(id, digit string) DTMFReceived {
	return DTMFReceived{base: base{id}, Digit: digit}
}

func NewRecordingSaved(id, url string) RecordingSaved {
	return RecordingSaved{base: base{id}, RecordingURL: url}
}

func NewCallHangup(id, cause string) CallHangup {
	return CallHangup{base: base{id}, Cause: cause}
}

var ignoredEventTypes = map[string]struct{}{
	"call.transcription":           {},
	"call.recording.error":         {},
	"call.machine.detection.ended": {},
	"call.bridged":                 {},
	"call.gather.ended":            {},
}

func ParseEvent(env WebhookEnvelope) (Event, error) {
	p := env.Data.Payload
	id := p.CallControlID
	eventType := env.Data.EventType

	if eventType == "" || id == "" {
		return nil, ErrInvalidEvent
	}

	switch eventType {
	case "call.initiated":
		return CallInitiated{base: base{id}, Direction: p.Direction, From: p.From, To: p.To}, nil
	case "call.answered":
		return CallAnswered{base: base{id}}, nil
	case "call.playback.started", "call.speak.started":
		return PlaybackStarted{base: base{id}, MediaURL: p.MediaURL}, nil
	case "call.playback.ended", "call.speak.ended":
		return PlaybackEnded{
			base:     base{id},
			MediaURL: p.MediaURL,
			Speak:    eventType == "call.speak.ended",
			Status:   p.Status,
		}, nil
	case "call.dtmf.received":
		return DTMFReceived{base: base{id}, Digit: strings.TrimSpace(p.Digit)}, nil
	case "call.recording.saved":
		url := p.RecordingURLs.MP3
		if url == "" {
			url = p.RecordingURLs.WAV
		}
		if url == "" {
			return nil, fmt.Errorf("%w: recording without url", ErrInvalidEvent)
		}
		return RecordingSaved{base: base{id}, RecordingURL: url}, nil
	case "call.hangup":
		return CallHangup{base: base{id}, Cause: p.HangupCause}, nil
	}

	if _, ok := ignoredEventTypes[eventType]; ok {
		return Ignored{base: base{id}, Type: eventType}, nil
	}

	return nil, fmt.Errorf("%w: %s", ErrUnsupportedEvent, eventType)
}
