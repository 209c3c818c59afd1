// Package indexer mirrors governance events into sqlite for the HTTP service.
package indexer

import (
	"context"
	"errors"
	"time"

	abci "github.com/cometbft/cometbft/abci/types"
	cmtlog "github.com/cometbft/cometbft/libs/log"
	comethttp "github.com/cometbft/cometbft/rpc/client/http"
	coretypes "github.com/cometbft/cometbft/rpc/core/types"
	"github.com/jinzhu/gorm"
	_ "github.com/jinzhu/gorm/dialects/sqlite"
	"github.com/mnaamani/joystream/types"
)

// ChainClient is the part of the cometbft RPC client the indexer polls.
type ChainClient interface {
	Status(ctx context.Context) (*coretypes.ResultStatus, error)
	BlockResults(ctx context.Context, height *int64) (*coretypes.ResultBlockResults, error)
}

type ChainIndexer struct {
	logger        cmtlog.Logger
	Url           string
	Height        int64
	db            *gorm.DB
	cli           ChainClient
	eventHandlers map[string]eventHandler
	interval      time.Duration
}

func NewChainIndexer(logger cmtlog.Logger, dbPath string, chainUrl string) (*ChainIndexer, error) {
	logger.Info("NewChainIndexer", "dbPath", dbPath, "url", chainUrl)
	cli, err := comethttp.New(chainUrl, "/websocket")
	if err != nil {
		return nil, err
	}
	db, err := gorm.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}
	c, err := newChainIndexer(logger, db, cli)
	if err != nil {
		db.Close()
		return nil, err
	}
	c.Url = chainUrl
	return c, nil
}

func newChainIndexer(logger cmtlog.Logger, db *gorm.DB, cli ChainClient) (*ChainIndexer, error) {
	if err := db.AutoMigrate(&Proposal{}, &Height{}, &ProposalVote{}, &Tally{}).Error; err != nil {
		return nil, err
	}
	h := Height{Id: 1}
	if err := db.First(&h).Error; err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	c := &ChainIndexer{
		logger:   logger.With("module", "indexer"),
		Height:   int64(h.Height + 1),
		db:       db,
		cli:      cli,
		interval: time.Second,
	}
	c.eventHandlers = map[string]eventHandler{
		types.EventProposalCreatedType:   c.handleEventProposalCreated,
		types.EventProposalVotedType:     c.handleEventProposalVoted,
		types.EventProposalCancelledType: c.handleEventProposalClosed,
		types.EventProposalVetoedType:    c.handleEventProposalClosed,
		types.EventProposalFinalizedType: c.handleEventProposalFinalized,
		types.EventProposalExecutedType:  c.handleEventProposalExecuted,
	}
	return c, nil
}

func (c *ChainIndexer) Close() error {
	return c.db.Close()
}

type eventHandler func(tx *gorm.DB, event abci.Event, height int64) error

// handleBlock stores the events of one block in a single sqlite
// transaction, together with the new indexed height.
func (c *ChainIndexer) handleBlock(res *coretypes.ResultBlockResults) error {
	tx := c.db.Begin()
	if tx.Error != nil {
		return tx.Error
	}
	apply := func() error {
		for _, r := range res.TxsResults {
			if r.Code != 0 {
				continue
			}
			for _, event := range r.Events {
				if err := c.handleEvent(tx, event, res.Height); err != nil {
					return err
				}
			}
		}
		for _, event := range res.FinalizeBlockEvents {
			if err := c.handleEvent(tx, event, res.Height); err != nil {
				return err
			}
		}
		return tx.Save(&Height{Id: 1, Height: uint64(res.Height)}).Error
	}
	if err := apply(); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit().Error
}

func (c *ChainIndexer) handleEvent(tx *gorm.DB, event abci.Event, height int64) error {
	if h, ok := c.eventHandlers[event.Type]; ok {
		return h(tx, event, height)
	}
	return nil
}

var errDecodeEvent = errors.New("decode event fail")

func (c *ChainIndexer) handleEventProposalCreated(tx *gorm.DB, event abci.Event, height int64) error {
	ev := types.DecodeEventProposalCreated(event)
	if ev == nil {
		return errDecodeEvent
	}
	proposal := Proposal{
		Id:           ev.Proposal,
		Proposer:     ev.Proposer,
		Title:        ev.Title,
		PayloadType:  ev.PayloadType,
		VotingPeriod: ev.VotingPeriod,
		Quorum:       ev.Quorum,
		Status:       uint8(types.ProposalStatusActive),
		StatusName:   types.ProposalStatusActive.String(),
		CreateHeight: uint64(height),
	}
	return tx.Save(&proposal).Error
}

func (c *ChainIndexer) handleEventProposalVoted(tx *gorm.DB, event abci.Event, height int64) error {
	ev := types.DecodeEventProposalVoted(event)
	if ev == nil {
		return errDecodeEvent
	}
	vote := ProposalVote{
		Proposal: ev.Proposal,
		Voter:    ev.Voter,
		Kind:     uint8(ev.Kind),
		KindName: ev.Kind.String(),
		Height:   uint64(height),
	}
	return tx.Create(&vote).Error
}

func (c *ChainIndexer) handleEventProposalClosed(tx *gorm.DB, event abci.Event, height int64) error {
	ev := types.DecodeEventProposalClosed(event)
	if ev == nil {
		return errDecodeEvent
	}
	status := types.ProposalStatusCancelled
	if event.Type == types.EventProposalVetoedType {
		status = types.ProposalStatusVetoed
	}
	return tx.Model(&Proposal{Id: ev.Proposal}).Updates(map[string]any{
		"status":       uint8(status),
		"status_name":  status.String(),
		"close_height": uint64(height),
		"closer":       ev.Caller,
	}).Error
}

func (c *ChainIndexer) handleEventProposalFinalized(tx *gorm.DB, event abci.Event, height int64) error {
	ev := types.DecodeEventProposalFinalized(event)
	if ev == nil {
		return errDecodeEvent
	}
	tally := Tally{
		Id:          ev.ProposalID,
		Approvals:   ev.Approvals,
		Rejections:  ev.Rejections,
		Abstentions: ev.Abstentions,
		Status:      uint8(ev.Status),
		FinalizedAt: ev.FinalizedAt,
	}
	if err := tx.Save(&tally).Error; err != nil {
		return err
	}
	return tx.Model(&Proposal{Id: ev.ProposalID}).Updates(map[string]any{
		"status":       uint8(ev.Status),
		"status_name":  ev.Status.String(),
		"close_height": uint64(height),
	}).Error
}

func (c *ChainIndexer) handleEventProposalExecuted(tx *gorm.DB, event abci.Event, height int64) error {
	ev := types.DecodeEventProposalExecuted(event)
	if ev == nil {
		return errDecodeEvent
	}
	return tx.Model(&Proposal{Id: ev.Proposal}).Updates(map[string]any{
		"status":         uint8(ev.Status),
		"status_name":    ev.Status.String(),
		"failure_reason": ev.Reason,
	}).Error
}

// Sync indexes every block up to the latest height reported by the node.
func (c *ChainIndexer) Sync(ctx context.Context) error {
	st, err := c.cli.Status(ctx)
	if err != nil {
		return err
	}
	for st.SyncInfo.LatestBlockHeight >= c.Height {
		if err = ctx.Err(); err != nil {
			return err
		}
		height := c.Height
		res, err := c.cli.BlockResults(ctx, &height)
		if err != nil {
			return err
		}
		if err = c.handleBlock(res); err != nil {
			c.logger.Error("index block fail", "height", height, "err", err)
			return err
		}
		c.Height++
	}
	return nil
}

func (c *ChainIndexer) Start(ctx context.Context) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.Sync(ctx); err != nil && !errors.Is(err, context.Canceled) {
				c.logger.Error("indexer sync fail", "height", c.Height, "err", err)
			}
		}
	}
}

func (c *ChainIndexer) getProposals(filter ProposalFilter, page int, pageSize int) ([]Proposal, uint64, error) {
	q := c.db.Model(&Proposal{})
	if filter.Proposer != 0 {
		q = q.Where("proposer = ?", filter.Proposer)
	}
	if filter.Status != 0 {
		q = q.Where("status = ?", filter.Status)
	}
	var total uint64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var proposals []Proposal
	err := q.Order("id desc").Offset(page * pageSize).Limit(pageSize).Find(&proposals).Error
	if err != nil {
		return nil, 0, err
	}
	return proposals, total, nil
}

func (c *ChainIndexer) getProposalById(proposalId uint64) (Proposal, error) {
	var proposal Proposal
	err := c.db.Where("id = ?", proposalId).First(&proposal).Error
	if err != nil {
		return Proposal{}, err
	}
	return proposal, nil
}

func (c *ChainIndexer) getTally(proposalId uint64) (*Tally, error) {
	var tally Tally
	err := c.db.Where("id = ?", proposalId).First(&tally).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &tally, nil
}

func (c *ChainIndexer) getVotes(filter VoteFilter, page int, pageSize int) ([]ProposalVote, uint64, error) {
	q := c.db.Model(&ProposalVote{})
	if filter.Proposal != 0 {
		q = q.Where("proposal = ?", filter.Proposal)
	}
	if filter.Voter != 0 {
		q = q.Where("voter = ?", filter.Voter)
	}
	var total uint64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var votes []ProposalVote
	err := q.Order("id asc").Offset(page * pageSize).Limit(pageSize).Find(&votes).Error
	if err != nil {
		return nil, 0, err
	}
	return votes, total, nil
}

type ProposalFilter struct {
	Proposer uint64
	Status   uint8
}

type VoteFilter struct {
	Proposal uint64
	Voter    uint64
}
