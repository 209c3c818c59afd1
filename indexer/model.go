package indexer

// sqlite models

type Height struct {
	Id     uint64 `gorm:"primary_key" json:"id"`
	Height uint64 `json:"height"`
}

type Proposal struct {
	Id            uint64 `gorm:"primary_key" json:"id"`
	Proposer      uint64 `gorm:"index" json:"proposer"`
	Title         string `json:"title"`
	PayloadType   uint32 `json:"payload_type"`
	VotingPeriod  uint64 `json:"voting_period"`
	Quorum        string `json:"quorum"`
	Status        uint8  `gorm:"index" json:"status"`
	StatusName    string `json:"status_name"`
	FailureReason string `json:"failure_reason"`
	CreateHeight  uint64 `json:"create_height"`
	CloseHeight   uint64 `json:"close_height"`
	// Closer is the account that cancelled or vetoed the proposal.
	Closer uint64 `json:"closer"`
}

type ProposalVote struct {
	Id       uint64 `gorm:"primary_key" json:"id"`
	Proposal uint64 `gorm:"index" json:"proposal"`
	Voter    uint64 `gorm:"index" json:"voter"`
	Kind     uint8  `json:"kind"`
	KindName string `json:"kind_name"`
	Height   uint64 `json:"height"`
}

type Tally struct {
	Id          uint64 `gorm:"primary_key" json:"id"`
	Approvals   uint64 `json:"approvals"`
	Rejections  uint64 `json:"rejections"`
	Abstentions uint64 `json:"abstentions"`
	Status      uint8  `json:"status"`
	FinalizedAt uint64 `json:"finalized_at"`
}
