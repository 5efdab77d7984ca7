package worker

// Actions carried by control messages.
const (
	ActionStart   = "start"
	ActionClear   = "clear"
	ActionProcess = "process"
)

// Message is one caller → worker message. It is either a control message
// (Action set) or a chunk (Chunk set).
type Message struct {
	Action string `json:"action,omitempty"`

	// start
	TileSize        int      `json:"tileSize,omitempty"`
	ColorAdjustment *float64 `json:"colorAdjustment,omitempty"`

	// chunk
	Chunk       []byte `json:"chunk,omitempty"`
	Start       int    `json:"start,omitempty"`
	End         int    `json:"end,omitempty"`
	Total       int    `json:"total,omitempty"`
	Compression string `json:"compression,omitempty"`
	Digest      []byte `json:"digest,omitempty"`
}

func (m Message) isChunk() bool {
	return m.Chunk != nil || m.Total != 0
}

// Reply is one worker → caller message: progress, the final image, or an
// error.
type Reply struct {
	Progress    string `json:"progress,omitempty"`
	Percentage  *int   `json:"percentage,omitempty"`
	MosaicImage string `json:"mosaicImage,omitempty"`
	Error       string `json:"error,omitempty"`
	ErrorKind   string `json:"errorKind,omitempty"`

	// Rejected marks the error reply to a message that arrived while a job
	// was running. That job is unaffected and still sends its own
	// terminal reply.
	Rejected bool `json:"rejected,omitempty"`
}

// Terminal reports whether r ends a job. A rejection does not.
func (r Reply) Terminal() bool {
	if r.Rejected {
		return false
	}
	return r.MosaicImage != "" || r.Error != ""
}

// StartMessage builds a start message.
func StartMessage(tileSize int, colorBlend float64) Message {
	return Message{Action: ActionStart, TileSize: tileSize, ColorAdjustment: &colorBlend}
}
