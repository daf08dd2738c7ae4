package actions

import (
	"strings"

	"github.com/jredh-dev/waypost/pkg/models"
)

// ActionType categorizes what an action does when executed.
type ActionType string

const (
	TypeNavigation ActionType = "navigation"
	TypeFunction   ActionType = "function"
)

// Visibility controls when an action appears based on sign-in state and role.
type Visibility int

const (
	VisibleAlways    Visibility = iota // Everyone sees it
	VisibleLoggedOut                   // Only when signed out
	VisibleLoggedIn                    // Any signed-in role
	VisibleTourist                     // Signed-in tourists
	VisibleBusiness                    // Signed-in businesses
	VisibleRetailer                    // Signed-in retailers
)

// Action is a single entry in the navigation search.
type Action struct {
	ID          string     `json:"id"`
	Type        ActionType `json:"type"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	// For navigation actions: the route to open.
	// For function actions: a client-side function identifier.
	Target     string     `json:"target"`
	Keywords   []string   `json:"keywords"`
	Visibility Visibility `json:"-"` // server-side filtering only
}

// SearchContext provides sign-in state for filtering actions.
type SearchContext struct {
	LoggedIn bool
	Role     models.Role
}

// Registry holds all available actions and supports filtered search.
type Registry struct {
	actions []Action
}

// New creates a Registry pre-populated with the Waypost actions.
func New() *Registry {
	return &Registry{
		actions: defaultActions(),
	}
}

// Search returns actions matching the query that are visible given the context.
// An empty query returns all visible actions. Matching is case-insensitive substring.
func (r *Registry) Search(query string, ctx SearchContext) []Action {
	q := strings.ToLower(strings.TrimSpace(query))
	var results []Action

	for _, a := range r.actions {
		if !isVisible(a, ctx) {
			continue
		}
		if q == "" || matchesQuery(a, q) {
			results = append(results, a)
		}
	}
	return results
}

func isVisible(a Action, ctx SearchContext) bool {
	switch a.Visibility {
	case VisibleAlways:
		return true
	case VisibleLoggedOut:
		return !ctx.LoggedIn
	case VisibleLoggedIn:
		return ctx.LoggedIn
	case VisibleTourist:
		return ctx.LoggedIn && ctx.Role == models.RoleTourist
	case VisibleBusiness:
		return ctx.LoggedIn && ctx.Role == models.RoleBusiness
	case VisibleRetailer:
		return ctx.LoggedIn && ctx.Role == models.RoleRetailer
	default:
		return true
	}
}

func matchesQuery(a Action, q string) bool {
	if strings.Contains(strings.ToLower(a.Title), q) {
		return true
	}
	if strings.Contains(strings.ToLower(a.Description), q) {
		return true
	}
	for _, kw := range a.Keywords {
		if strings.Contains(strings.ToLower(kw), q) {
			return true
		}
	}
	return false
}

// defaultActions returns the built-in set of Waypost actions.
func defaultActions() []Action {
	return []Action{
		// Public navigation
		{
			ID:          "nav-map",
			Type:        TypeNavigation,
			Title:       "Map",
			Description: "Browse items available near you",
			Target:      "/",
			Keywords:    []string{"map", "home", "nearby", "items", "listings", "browse"},
			Visibility:  VisibleAlways,
		},

		// Sign-in pages
		{
			ID:          "nav-login",
			Type:        TypeNavigation,
			Title:       "Login",
			Description: "Sign in to your account",
			Target:      "/login",
			Keywords:    []string{"login", "sign in", "signin", "account", "auth"},
			Visibility:  VisibleLoggedOut,
		},
		{
			ID:          "nav-signup",
			Type:        TypeNavigation,
			Title:       "Sign Up",
			Description: "Create a tourist or retailer account",
			Target:      "/signup",
			Keywords:    []string{"signup", "sign up", "register", "create account", "tourist", "retailer"},
			Visibility:  VisibleLoggedOut,
		},

		// Signed-in navigation
		{
			ID:          "nav-dashboard",
			Type:        TypeNavigation,
			Title:       "Dashboard",
			Description: "View your account dashboard",
			Target:      "/dashboard",
			Keywords:    []string{"dashboard", "account", "profile"},
			Visibility:  VisibleLoggedIn,
		},
		{
			ID:          "nav-donate",
			Type:        TypeNavigation,
			Title:       "Donate an Item",
			Description: "Scan an item's QR code and drop it off at a nearby business",
			Target:      "/donate",
			Keywords:    []string{"donate", "donation", "scan", "qr", "drop off", "dropoff", "give"},
			Visibility:  VisibleLoggedIn,
		},
		{
			ID:          "nav-points",
			Type:        TypeNavigation,
			Title:       "Points & Rewards",
			Description: "Check your points balance and redeem rewards",
			Target:      "/points",
			Keywords:    []string{"points", "rewards", "redeem", "balance", "tier"},
			Visibility:  VisibleTourist,
		},

		// Business navigation
		{
			ID:          "nav-business-dashboard",
			Type:        TypeNavigation,
			Title:       "Business Dashboard",
			Description: "Confirm scheduled pickups and drop-offs",
			Target:      "/business-dashboard",
			Keywords:    []string{"business", "confirm", "pickup", "dropoff", "drop off", "transactions", "schedule"},
			Visibility:  VisibleBusiness,
		},

		// Retailer navigation
		{
			ID:          "nav-retail-dashboard",
			Type:        TypeNavigation,
			Title:       "Retail Dashboard",
			Description: "Manage your store and its QR-tagged items",
			Target:      "/retail-dashboard",
			Keywords:    []string{"retail", "store", "shop", "items", "qr"},
			Visibility:  VisibleRetailer,
		},

		// Function actions
		{
			ID:          "fn-logout",
			Type:        TypeFunction,
			Title:       "Logout",
			Description: "Sign out of your account",
			Target:      "logout",
			Keywords:    []string{"logout", "log out", "sign out", "signout", "exit"},
			Visibility:  VisibleLoggedIn,
		},
	}
}
