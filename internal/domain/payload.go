package domain

import (
	"encoding/json"
	"net/url"
	"time"
)

// FileRef is a materialized file and its externally reachable URL.
type FileRef struct {
	Path string  `json:"path"`
	URL  *string `json:"url"`
}

// ItemFiles lists the files of one item that exist on disk after a run.
type ItemFiles struct {
	ID       string    `json:"id"`
	Type     ItemType  `json:"type"`
	Complete bool      `json:"complete"`
	Files    []FileRef `json:"files"`
}

// Payload is the data part of a successful download response.
type Payload struct {
	ResolvedURL string      `json:"resolved_url"`
	Mount       string      `json:"mount,omitempty"`
	Root        string      `json:"root,omitempty"`
	Items       []ItemFiles `json:"items"`
	// Earliest and Latest are the publish-time bounds applied to account listings.
	Earliest string `json:"earliest,omitempty"`
	Latest   string `json:"latest,omitempty"`
}

// EmptyPayload is returned alongside parameter errors.
func EmptyPayload() *Payload {
	return &Payload{Items: []ItemFiles{}}
}

// LiveRoom describes a live stream; streams are not downloaded.
type LiveRoom struct {
	RoomID   string            `json:"room_id"`
	Title    string            `json:"title"`
	Nickname string            `json:"nickname"`
	Status   int               `json:"status"`
	FlvURLs  map[string]string `json:"flv_pull_url,omitempty"`
	HlsURLs  map[string]string `json:"hls_pull_url_map,omitempty"`
}

// Reason classifies a failed request.
type Reason string

const (
	ReasonParameter  Reason = "parameter_error"
	ReasonResolution Reason = "resolution_error"
	ReasonNoData     Reason = "no_data"
	ReasonFetch      Reason = "fetch_error"
	ReasonUpstream   Reason = "upstream_error"
	ReasonInternal   Reason = "internal_error"
)

// Outcome is what an orchestrator entry point returns: success with data, or a failure reason.
type Outcome struct {
	OK      bool
	Reason  Reason
	Message string
	Data    any
	Params  map[string]any
}

func Success(message string, data any, params map[string]any) Outcome {
	return Outcome{OK: true, Message: message, Data: data, Params: params}
}

func Failure(reason Reason, message string, data any, params map[string]any) Outcome {
	return Outcome{Reason: reason, Message: message, Data: data, Params: params}
}

// Envelope is the uniform response body.
type Envelope struct {
	Message string         `json:"message"`
	Data    any            `json:"data"`
	Params  map[string]any `json:"params"`
}

func (o Outcome) Envelope() Envelope {
	return Envelope{Message: o.Message, Data: o.Data, Params: o.Params}
}

// NotificationEvent is posted to webhook endpoints after a completed download.
type NotificationEvent struct {
	Event       string         `json:"event"`
	Platform    Platform       `json:"platform"`
	Source      string         `json:"source"`
	ResolvedURL string         `json:"resolved_url"`
	Mount       string         `json:"mount"`
	Root        string         `json:"root"`
	Items       []ItemFiles    `json:"items"`
	Params      map[string]any `json:"params"`
	Earliest    string         `json:"earliest,omitempty"`
	Latest      string         `json:"latest,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
}

const EventDownloadCompleted = "download.completed"

var secretParams = []string{"cookie", "cookie_tiktok", "headers", "authorization", "token"}

// SanitizeParams converts a request into a generic map without credential fields.
func SanitizeParams(req any) map[string]any {
	out := map[string]any{}
	if req == nil {
		return out
	}
	data, err := json.Marshal(req)
	if err != nil {
		return out
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return map[string]any{}
	}
	for _, k := range secretParams {
		delete(out, k)
	}
	if proxy, ok := out["proxy"].(string); ok && proxy != "" {
		out["proxy"] = stripUserinfo(proxy)
	}
	return out
}

// stripUserinfo drops credentials from a proxy URL. Unparseable values are dropped whole.
func stripUserinfo(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	u.User = nil
	return u.String()
}
