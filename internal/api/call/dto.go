package call

// WebhookEnvelope is the Telnyx Call Control notification body.
type WebhookEnvelope struct {
	Data struct {
		ID         string         `json:"id"`
		EventType  string         `json:"event_type"`
		OccurredAt string         `json:"occurred_at"`
		Payload    WebhookPayload `json:"payload"`
	} `json:"data"`
}

type WebhookPayload struct {
	CallControlID string        `json:"call_control_id"`
	CallLegID     string        `json:"call_leg_id"`
	Direction     string        `json:"direction"`
	From          string        `json:"from"`
	To            string        `json:"to"`
	Digit         string        `json:"digit"`
	MediaURL      string        `json:"media_url"`
	Status        string        `json:"status"`
	HangupCause   string        `json:"hangup_cause"`
	RecordingURLs RecordingURLs `json:"recording_urls"`
}

type RecordingURLs struct {
	MP3 string `json:"mp3"`
	WAV string `json:"wav"`
}

type OutboundCallRequest struct {
	Task string `json:"task" validate:"required,min=1,max=2000"`
	To   string `json:"to" validate:"required,min=3,max=32"`
}

type OutboundCallResponse struct {
	CallID      string `json:"call_id"`
	OpeningLine string `json:"opening_line"`
}

type RecordingOptions struct {
	Format             string
	SilenceTimeoutSecs int
	MaxLengthSecs      int
}

type DialRequest struct {
	To          string
	From        string
	CallbackURL string
	LineID      string
}
