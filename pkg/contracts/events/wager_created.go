package events

type WagerCreated struct {
	WagerID  int64 `json:"wager_id"`
	Stake    int64 `json:"stake"`
	TsUnixMs int64 `json:"ts_unix_ms"`
}
