package dto

type UserResponse struct {
	ID          int64  `json:"id"`
	ExternalID  string `json:"externalId"`
	DisplayName string `json:"displayName"`
	Bucks       int64  `json:"bucks"`
}

type WagerResponse struct {
	ID     int64 `json:"id"`
	Stake  int64 `json:"stake"`
	Closed bool  `json:"closed"`
}

type CloseWagerResponse struct {
	Winners []UserResponse `json:"winners"`
	Losers  []UserResponse `json:"losers"`
	Wager   WagerResponse  `json:"wager"`
	Payout  int64          `json:"payout"`
}
