package bitget

const (
	// DefaultWSURL is the Bitget v2 public stream.
	DefaultWSURL = "wss://ws.bitget.com/v2/ws/public"
	sourceName   = "bitget_spot"
)

// subscribeRequest Structure
type subscribeRequest struct {
	Op   string         `json:"op"`
	Args []subscribeArg `json:"args"`
}

type subscribeArg struct {
	InstType string `json:"instType"`
	Channel  string `json:"channel"`
	InstId   string `json:"instId"`
}

// tickerResponse Structure
type tickerResponse struct {
	Action string       `json:"action"`
	Arg    subscribeArg `json:"arg"`
	Data   []tickerData `json:"data"`
	Ts     int64        `json:"ts"`
}

type tickerData struct {
	InstId     string `json:"instId"`
	LastPr     string `json:"lastPr"`
	BaseVolume string `json:"baseVolume"`
	Ts         string `json:"ts"`
}
