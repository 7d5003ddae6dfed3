package server

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/agora-portal/backend/internal/voting"
)

type votePayload struct {
	ID           uint                `json:"id"`
	SubItemID    uint                `json:"sub_item_id"`
	Title        string              `json:"title"`
	Status       string              `json:"status"`
	Choices      int                 `json:"choices"`
	PresentUsers int                 `json:"present_users"`
	Position     int                 `json:"position"`
	Options      []voteOptionPayload `json:"options"`
}

type voteOptionPayload struct {
	ID    uint   `json:"id"`
	Title string `json:"title"`
	Count int    `json:"count"`
}

type ballotPayload struct {
	VoteID    uint   `json:"vote_id"`
	Selected  int    `json:"selected"`
	OptionIDs []uint `json:"option_ids"`
}

type auditPayload struct {
	ID         string `json:"id"`
	Action     string `json:"action"`
	Changes    string `json:"changes"`
	UpdaterID  *uint  `json:"updater_id"`
	RecordedAt int64  `json:"recorded_at_s"`
}

func renderVote(vote *voting.Vote) votePayload {
	options := make([]voteOptionPayload, 0, len(vote.Options))
	for _, option := range vote.Options {
		options = append(options, voteOptionPayload{ID: option.ID, Title: option.Title, Count: option.Count})
	}
	return votePayload{
		ID:           vote.ID,
		SubItemID:    vote.SubItemID,
		Title:        vote.Title,
		Status:       string(vote.Status),
		Choices:      vote.Choices,
		PresentUsers: vote.PresentUsers,
		Position:     vote.Position,
		Options:      options,
	}
}

func parseIDParam(c *gin.Context) (uint, bool) {
	raw := c.Param("id")
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_id"})
		return 0, false
	}
	return uint(id), true
}

func (h *httpHandler) handleCurrentVote(c *gin.Context) {
	vote, err := h.voting.CurrentOpen(c.Request.Context())
	if err != nil {
		h.respondServiceError(c, err)
		return
	}
	if vote == nil {
		c.JSON(http.StatusOK, gin.H{"vote": nil})
		return
	}
	c.JSON(http.StatusOK, gin.H{"vote": renderVote(vote)})
}

func (h *httpHandler) handleListVotes(c *gin.Context) {
	subItemID, ok := parseIDParam(c)
	if !ok {
		return
	}
	votes, err := h.voting.ListBySubItem(c.Request.Context(), subItemID)
	if err != nil {
		h.respondServiceError(c, err)
		return
	}
	payload := make([]votePayload, 0, len(votes))
	for i := range votes {
		payload = append(payload, renderVote(&votes[i]))
	}
	c.JSON(http.StatusOK, gin.H{"votes": payload})
}

type castRequestPayload struct {
	OptionIDs []uint `json:"option_ids"`
}

func (h *httpHandler) handleCast(c *gin.Context) {
	userID, ok := h.currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	voteID, ok := parseIDParam(c)
	if !ok {
		return
	}

	var request castRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	post, err := h.voting.Cast(c.Request.Context(), userID, voteID, request.OptionIDs)
	if err != nil {
		h.respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, ballotPayload{VoteID: post.VoteID, Selected: post.Selected, OptionIDs: request.OptionIDs})
}

func (h *httpHandler) handleBallot(c *gin.Context) {
	userID, ok := h.currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	voteID, ok := parseIDParam(c)
	if !ok {
		return
	}

	post, optionIDs, err := h.voting.Ballot(c.Request.Context(), userID, voteID)
	if err != nil {
		h.respondServiceError(c, err)
		return
	}
	if post == nil {
		c.JSON(http.StatusOK, gin.H{"ballot": nil})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ballot": ballotPayload{VoteID: post.VoteID, Selected: post.Selected, OptionIDs: optionIDs}})
}

func (h *httpHandler) handleAttend(c *gin.Context) {
	userID, ok := h.currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	if err := h.voting.Attend(c.Request.Context(), userID); err != nil {
		h.respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"presence": true})
}

func (h *httpHandler) handleUnattend(c *gin.Context) {
	userID, ok := h.currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	if err := h.voting.Unattend(c.Request.Context(), userID); err != nil {
		h.respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"presence": false})
}

func (h *httpHandler) handleUnattendAll(c *gin.Context) {
	if err := h.voting.UnattendAll(c.Request.Context()); err != nil {
		h.respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"presence_reset": true})
}

func (h *httpHandler) handleRegenerateVotecode(c *gin.Context) {
	userID, ok := h.currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	user, err := h.users.RegenerateVotecode(c.Request.Context(), userID)
	if err != nil {
		h.respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"votecode": user.Votecode})
}

type createVoteRequestPayload struct {
	SubItemID uint     `json:"sub_item_id"`
	Title     string   `json:"title"`
	Choices   int      `json:"choices"`
	Options   []string `json:"options"`
}

func (h *httpHandler) handleCreateVote(c *gin.Context) {
	actorID, ok := h.currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var request createVoteRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	vote, err := h.voting.Create(c.Request.Context(), &actorID, voting.VoteDraft{
		SubItemID: request.SubItemID,
		Title:     request.Title,
		Choices:   request.Choices,
		Options:   request.Options,
	})
	if err != nil {
		h.respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"vote": renderVote(vote)})
}

type updateVoteRequestPayload struct {
	Title   *string `json:"title"`
	Choices *int    `json:"choices"`
	Reset   bool    `json:"reset"`
}

func (h *httpHandler) handleUpdateVote(c *gin.Context) {
	actorID, ok := h.currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	voteID, ok := parseIDParam(c)
	if !ok {
		return
	}

	var request updateVoteRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	vote, err := h.voting.Update(c.Request.Context(), &actorID, voteID, voting.VoteChanges{
		Title:   request.Title,
		Choices: request.Choices,
		Reset:   request.Reset,
	})
	if err != nil {
		h.respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"vote": renderVote(vote)})
}

func (h *httpHandler) handleDestroyVote(c *gin.Context) {
	actorID, ok := h.currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	voteID, ok := parseIDParam(c)
	if !ok {
		return
	}
	if err := h.voting.Destroy(c.Request.Context(), &actorID, voteID); err != nil {
		h.respondServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *httpHandler) handleOpenVote(c *gin.Context) {
	actorID, ok := h.currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	voteID, ok := parseIDParam(c)
	if !ok {
		return
	}
	vote, err := h.voting.Open(c.Request.Context(), &actorID, voteID)
	if err != nil {
		h.respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"vote": renderVote(vote)})
}

func (h *httpHandler) handleCloseVote(c *gin.Context) {
	actorID, ok := h.currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	voteID, ok := parseIDParam(c)
	if !ok {
		return
	}
	vote, err := h.voting.Close(c.Request.Context(), &actorID, voteID)
	if err != nil {
		h.respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"vote": renderVote(vote)})
}

type reorderRequestPayload struct {
	Position int `json:"position"`
}

func (h *httpHandler) handleReorderVote(c *gin.Context) {
	actorID, ok := h.currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	voteID, ok := parseIDParam(c)
	if !ok {
		return
	}

	var request reorderRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	vote, err := h.voting.Reorder(c.Request.Context(), &actorID, voteID, request.Position)
	if err != nil {
		h.respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"vote": renderVote(vote)})
}

func (h *httpHandler) handleVoteAudits(c *gin.Context) {
	voteID, ok := parseIDParam(c)
	if !ok {
		return
	}
	records, err := h.voting.Audit().Trail(c.Request.Context(), voteID)
	if err != nil {
		h.respondServiceError(c, err)
		return
	}
	payload := make([]auditPayload, 0, len(records))
	for _, record := range records {
		payload = append(payload, auditPayload{
			ID:         record.ID,
			Action:     string(record.Action),
			Changes:    record.ChangesJSON,
			UpdaterID:  record.UpdaterID,
			RecordedAt: record.RecordedAtSeconds,
		})
	}
	c.JSON(http.StatusOK, gin.H{"audits": payload})
}

func (h *httpHandler) handleSetSubItemCurrent(c *gin.Context) {
	subItemID, ok := parseIDParam(c)
	if !ok {
		return
	}
	subItem, err := h.meetings.SetCurrent(c.Request.Context(), subItemID)
	if err != nil {
		h.respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sub_item": gin.H{"id": subItem.ID, "status": subItem.Status}})
}

func (h *httpHandler) handleSetSubItemClosed(c *gin.Context) {
	subItemID, ok := parseIDParam(c)
	if !ok {
		return
	}
	subItem, err := h.meetings.SetClosed(c.Request.Context(), subItemID)
	if err != nil {
		h.respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sub_item": gin.H{"id": subItem.ID, "status": subItem.Status}})
}
