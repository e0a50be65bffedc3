package authz

import "strings"

// View is a navigable screen of the client.
type View struct {
	Name     string
	Path     string
	Requires Requirement
}

var (
	LoginView  = View{Name: "login", Path: "/login", Requires: Public}
	OrdersView = View{Name: "orders", Path: "/", Requires: Authenticated}
	UsersView  = View{Name: "users", Path: "/users", Requires: Admin}
)

// HomeView is where RedirectHome lands and where a fresh login goes.
var HomeView = OrdersView

var views = []View{LoginView, OrdersView, UsersView}

// Views returns every registered view.
func Views() []View {
	out := make([]View, len(views))
	copy(out, views)
	return out
}

// Lookup finds the view for path. Trailing slashes are ignored and unknown
// paths resolve to the home view, like the catch-all route of the browser
// client.
func Lookup(path string) (View, bool) {
	p := "/" + strings.Trim(strings.TrimSpace(path), "/")
	for _, v := range views {
		if v.Path == p || v.Name == strings.Trim(p, "/") {
			return v, true
		}
	}
	return HomeView, false
}
