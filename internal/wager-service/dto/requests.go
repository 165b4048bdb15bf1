package dto

type CreateUserRequest struct {
	ExternalID  string `json:"externalId"`
	DisplayName string `json:"displayName"`
}

type CreateWagerRequest struct {
	Stake int64 `json:"stake"`
}

type JoinWagerRequest struct {
	ExternalID  string `json:"externalId"`
	DisplayName string `json:"displayName"`
	WagerID     int64  `json:"wagerId"`
}

type LeaveWagerRequest struct {
	ExternalID string `json:"externalId"`
	WagerID    int64  `json:"wagerId"`
}

type CloseWagerRequest struct {
	WagerID    int64    `json:"wagerId"`
	WinningIDs []string `json:"winningExternalIds"`
	LosingIDs  []string `json:"losingExternalIds"`
}
