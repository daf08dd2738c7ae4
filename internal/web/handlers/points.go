package handlers

import (
	"net/http"

	"github.com/jredh-dev/waypost/pkg/models"
)

type pointsResponse struct {
	Points  int               `json:"points"`
	Tier    models.PointsTier `json:"tier"`
	Rewards []models.Reward   `json:"rewards"`
}

// Points returns the caller's balance and progress toward the next reward.
// GET /api/points
func (h *Handler) Points(w http.ResponseWriter, r *http.Request) {
	sess := mustSession(r)
	token, err := sess.BearerToken()
	if err != nil {
		h.writeError(w, r, err, "")
		return
	}
	p, err := h.backend.GetPoints(r.Context(), token, sess.UID)
	if err != nil {
		h.writeError(w, r, err, "Could not load points.")
		return
	}
	jsonOK(w, http.StatusOK, pointsResponse{
		Points:  p.Points,
		Tier:    models.TierFor(p.Points),
		Rewards: models.Rewards,
	})
}

type redeemReq struct {
	RewardID string `json:"reward_id"`
}

// RedeemReward spends points on a reward from the catalog.
// POST /api/points/redeem
func (h *Handler) RedeemReward(w http.ResponseWriter, r *http.Request) {
	var req redeemReq
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	reward, ok := models.FindReward(req.RewardID)
	if !ok {
		jsonError(w, "unknown reward", http.StatusBadRequest)
		return
	}

	sess := mustSession(r)
	token, err := sess.BearerToken()
	if err != nil {
		h.writeError(w, r, err, "")
		return
	}
	res, err := h.backend.RedeemReward(r.Context(), token, sess.UID, reward.ID)
	if err != nil {
		h.writeError(w, r, err, "Could not redeem reward.")
		return
	}
	h.logger.Info("reward redeemed", "uid", sess.UID, "reward", reward.ID)
	jsonOK(w, http.StatusOK, res)
}

// Rewards returns the redemption catalog.
// GET /api/rewards
func (h *Handler) Rewards(w http.ResponseWriter, r *http.Request) {
	jsonOK(w, http.StatusOK, models.Rewards)
}
