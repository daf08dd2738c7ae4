package models

// PointsGoal is the balance needed to reach the next reward tier.
const PointsGoal = 500

// Points is a user's balance.
type Points struct {
	UID    string `json:"uid,omitempty"`
	Points int    `json:"points"`
}

// Redemption is the backend response to a reward redemption.
type Redemption struct {
	Message string `json:"message,omitempty"`
	Points  int    `json:"points"`
}

// PointsTier summarizes progress toward PointsGoal.
type PointsTier struct {
	Balance   int `json:"balance"`
	Goal      int `json:"goal"`
	Remaining int `json:"remaining"`
	Percent   int `json:"percent"`
}

// TierFor computes progress toward PointsGoal. Percent is capped at 100.
func TierFor(balance int) PointsTier {
	if balance < 0 {
		balance = 0
	}
	remaining := PointsGoal - balance
	if remaining < 0 {
		remaining = 0
	}
	pct := balance * 100 / PointsGoal
	if pct > 100 {
		pct = 100
	}
	return PointsTier{Balance: balance, Goal: PointsGoal, Remaining: remaining, Percent: pct}
}

// Reward is a redeemable experience.
type Reward struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Cost int    `json:"cost"`
}

// Rewards is the redemption catalog, cheapest first.
var Rewards = []Reward{
	{ID: "national-park-entry", Name: "National Park Entry", Cost: 500},
	{ID: "tree-planting-event", Name: "Tree Planting Event", Cost: 800},
	{ID: "local-eco-tour", Name: "Local Eco Tour", Cost: 1500},
	{ID: "wildlife-sanctuary-visit", Name: "Wildlife Sanctuary Visit", Cost: 2000},
}

// FindReward looks up a reward by id.
func FindReward(id string) (Reward, bool) {
	for _, r := range Rewards {
		if r.ID == id {
			return r, true
		}
	}
	return Reward{}, false
}
