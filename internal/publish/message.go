// internal/publish/message.go
package publish

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/tamzrod/ecomanager-rx/internal/frame"
	"github.com/tamzrod/ecomanager-rx/internal/report"
)

// Encoding selects the payload format.
type Encoding string

const (
	EncodingJSON    Encoding = "json"
	EncodingMsgpack Encoding = "msgpack"
)

// Message is the published form of a report.Event.
type Message struct {
	Session  string            `json:"session" msgpack:"session"`
	Type     string            `json:"type" msgpack:"type"`
	Kind     string            `json:"kind,omitempty" msgpack:"kind,omitempty"`
	ID       uint32            `json:"id,omitempty" msgpack:"id,omitempty"`
	Timecode uint32            `json:"t" msgpack:"t"`
	At       int64             `json:"at_ms" msgpack:"at_ms"`
	Sensors  map[string]uint16 `json:"sensors,omitempty" msgpack:"sensors,omitempty"`
	State    *int              `json:"state,omitempty" msgpack:"state,omitempty"`
	Misses   uint8             `json:"misses,omitempty" msgpack:"misses,omitempty"`
	Active   *bool             `json:"active,omitempty" msgpack:"active,omitempty"`
	Error    string            `json:"error,omitempty" msgpack:"error,omitempty"`
}

// NewMessage converts e. Readings carry their present channels, misses
// carry the reachability state.
func NewMessage(session string, e report.Event) Message {
	m := Message{
		Session:  session,
		Type:     string(e.Type),
		Timecode: uint32(e.Timecode),
		At:       e.At.UnixMilli(),
		Error:    e.Err,
	}
	if e.Type != report.TypeBroken {
		m.Kind = e.Kind.String()
		m.ID = e.ID
	}

	switch e.Type {
	case report.TypeReading, report.TypeUnknown:
		m.Sensors = make(map[string]uint16, frame.NumChannels)
		for c, w := range e.Watts {
			if w != frame.Invalid {
				m.Sensors[strconv.Itoa(c+1)] = w
			}
		}
		if e.HasState {
			s := 0
			if e.State {
				s = 1
			}
			m.State = &s
		}
	case report.TypeMiss:
		active := e.Active
		m.Misses = e.Misses
		m.Active = &active
	}

	return m
}

// Encode marshals m with enc.
func Encode(enc Encoding, m Message) ([]byte, error) {
	switch enc {
	case EncodingJSON, "":
		return json.Marshal(m)
	case EncodingMsgpack:
		return msgpack.Marshal(&m)
	}
	return nil, fmt.Errorf("publish: unknown encoding %q", enc)
}

// Decode is the inverse of Encode.
func Decode(enc Encoding, b []byte) (Message, error) {
	var m Message
	var err error
	switch enc {
	case EncodingJSON, "":
		err = json.Unmarshal(b, &m)
	case EncodingMsgpack:
		err = msgpack.Unmarshal(b, &m)
	default:
		err = fmt.Errorf("publish: unknown encoding %q", enc)
	}
	return m, err
}

// Topic builds the topic for e:
//
//	<prefix>/<kind>/<id>/<type>   sensor events
//	<prefix>/broken               broken frames
func Topic(prefix string, e report.Event) string {
	if e.Type == report.TypeBroken {
		return prefix + "/broken"
	}
	return fmt.Sprintf("%s/%s/%d/%s", prefix, e.Kind, e.ID, e.Type)
}
