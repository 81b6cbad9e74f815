package inbound

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/TUK-curriculum/frontend-tuk-navi/module/chat/model"
	"github.com/TUK-curriculum/frontend-tuk-navi/tools/decode"
	"go.uber.org/zap"
)

const (
	TypeSession = "session"

	// RecommendationPrefix heads the transcript line built from a
	// recommendedLectures payload.
	RecommendationPrefix = "추천 강의: "
	recommendationSep    = ", "
)

// Record is the inbound wire schema. Every field is optional.
type Record struct {
	Type                string   `json:"type"`
	SessionID           *int64   `json:"sessionId"`
	Message             *string  `json:"message"`
	RecommendedLectures []string `json:"recommendedLectures"`
	// older peers send snake_case
	RecommendedLecturesLegacy []string `json:"recommended_lectures"`
}

func (r *Record) lectures() []string {
	if len(r.RecommendedLectures) > 0 {
		return r.RecommendedLectures
	}
	return r.RecommendedLecturesLegacy
}

type Kind int

const (
	KindContent Kind = iota
	KindSession
)

func (k Kind) String() string {
	if k == KindSession {
		return "session"
	}
	return "content"
}

// Event is the classification of exactly one frame.
type Event struct {
	Kind      Kind
	SessionID int64        // KindSession only
	Sender    model.Sender // KindContent only
	Content   string       // KindContent only
}

// Decoder turns raw frames into events. It never fails: the worst case is
// the frame shown verbatim.
type Decoder struct {
	log *zap.Logger
}

func NewDecoder(log *zap.Logger) *Decoder {
	if log == nil {
		log = zap.NewNop()
	}
	return &Decoder{log: log}
}

func (d *Decoder) Decode(frame []byte) Event {
	raw := string(frame)

	obj, ok := parseObject(raw)
	fallback := raw
	if !ok && (hasEscape(raw) || isQuoted(raw)) {
		// second pass: the whole frame is one encoded string
		if s, decoded := unquote(raw); decoded {
			fallback = s
			obj, ok = parseObject(s)
			d.log.Debug("frame needed string literal decode", zap.Bool("object", ok))
		}
	}
	if !ok {
		d.log.Debug("frame is not a record, showing as text", zap.Int("len", len(frame)))
		return content(fallback)
	}

	rec, err := decode.DecodeMap[Record](obj)
	if err != nil {
		d.log.Warn("record fields have unexpected types", zap.Error(err))
		return content(stringify(obj, raw))
	}
	if rec.Message != nil && hasEscape(*rec.Message) {
		if s, decoded := unquote(*rec.Message); decoded {
			rec.Message = &s
		}
	}
	return d.classify(rec, obj, raw)
}

func (d *Decoder) classify(rec *Record, obj map[string]any, raw string) Event {
	switch {
	case rec.Type == TypeSession && rec.SessionID != nil && *rec.SessionID != 0:
		return Event{Kind: KindSession, SessionID: *rec.SessionID}
	case rec.Message != nil && *rec.Message != "":
		return content(*rec.Message)
	case len(rec.lectures()) > 0:
		return content(RecommendationPrefix + strings.Join(rec.lectures(), recommendationSep))
	default:
		d.log.Debug("unknown record, showing it verbatim")
		return content(stringify(obj, raw))
	}
}

func content(text string) Event {
	return Event{Kind: KindContent, Sender: model.SenderAssistant, Content: text}
}

// parseObject accepts only a JSON object; arrays, scalars and null fail.
func parseObject(s string) (map[string]any, bool) {
	var m map[string]any
	if err := json.Unmarshal([]byte(s), &m); err != nil || m == nil {
		return nil, false
	}
	return m, true
}

func stringify(obj map[string]any, raw string) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(obj); err != nil {
		return raw
	}
	return strings.TrimRight(buf.String(), "\n")
}
