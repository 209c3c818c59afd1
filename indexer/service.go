package indexer

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/jinzhu/gorm"
)

const maxPageSize = 100

type Service struct {
	engine     *gin.Engine
	indexer    *ChainIndexer
	listenAddr string
}

func NewService(listenAddr string, indexer *ChainIndexer) *Service {
	r := gin.New()
	r.Use(gin.Recovery())
	s := &Service{
		engine:     r,
		indexer:    indexer,
		listenAddr: listenAddr,
	}
	s.engine.POST("/getProposals", s.handleGetProposals)
	s.engine.POST("/getVotes", s.handleGetVotes)
	s.engine.GET("/proposals/:id", s.handleGetProposal)
	return s
}

func (s *Service) Handler() http.Handler {
	return s.engine
}

func (s *Service) Start() error {
	return s.engine.Run(s.listenAddr)
}

type ProposalInfo struct {
	Proposal Proposal       `json:"proposal"`
	Tally    *Tally         `json:"tally,omitempty"`
	Votes    []ProposalVote `json:"votes"`
}

type GetProposalsReq struct {
	Proposer uint64 `json:"proposer"`
	Status   uint8  `json:"status"`
	Page     int    `json:"page"`
	PageSize int    `json:"pageSize"`
}

type GetProposalsResponse struct {
	Proposals []Proposal `json:"proposals"`
	Total     uint64     `json:"total"`
}

type GetVotesReq struct {
	Proposal uint64 `json:"proposal"`
	Voter    uint64 `json:"voter"`
	Page     int    `json:"page"`
	PageSize int    `json:"pageSize"`
}

type GetVotesResponse struct {
	Votes []ProposalVote `json:"votes"`
	Total uint64         `json:"total"`
}

func pageBounds(page, pageSize int) (int, int) {
	if page < 0 {
		page = 0
	}
	if pageSize <= 0 || pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return page, pageSize
}

func (s *Service) handleGetProposals(c *gin.Context) {
	var req GetProposalsReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	page, pageSize := pageBounds(req.Page, req.PageSize)
	proposals, total, err := s.indexer.getProposals(ProposalFilter{Proposer: req.Proposer, Status: req.Status}, page, pageSize)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if proposals == nil {
		proposals = []Proposal{}
	}
	c.JSON(http.StatusOK, GetProposalsResponse{Proposals: proposals, Total: total})
}

func (s *Service) handleGetVotes(c *gin.Context) {
	var req GetVotesReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	page, pageSize := pageBounds(req.Page, req.PageSize)
	votes, total, err := s.indexer.getVotes(VoteFilter{Proposal: req.Proposal, Voter: req.Voter}, page, pageSize)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if votes == nil {
		votes = []ProposalVote{}
	}
	c.JSON(http.StatusOK, GetVotesResponse{Votes: votes, Total: total})
}

func (s *Service) handleGetProposal(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	proposal, err := s.indexer.getProposalById(id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "proposal not found"})
		return
	} else if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	info := ProposalInfo{Proposal: proposal}
	if info.Tally, err = s.indexer.getTally(id); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	votes, _, err := s.indexer.getVotes(VoteFilter{Proposal: id}, 0, 1000)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if votes == nil {
		votes = []ProposalVote{}
	}
	info.Votes = votes
	c.JSON(http.StatusOK, info)
}
