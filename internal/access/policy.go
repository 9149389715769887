package access

import (
	"path"
	"strings"

	"github.com/geocoder89/taskhub/internal/apperr"
)

const (
	LoginPage          = "/login"
	AccessDeniedPage   = "/access-denied"
	UserDashboard      = "/dashboard"
	AdminDashboard     = "/admin/dashboard"
	apiPrefix          = "/api"
	ownershipForbidden = "you may only act on your own resources"
)

// Outcome is the terminal state of a route gate decision.
type Outcome int

const (
	Authorized Outcome = iota
	Unauthenticated
	Denied
)

func (o Outcome) String() string {
	switch o {
	case Authorized:
		return "authorized"
	case Unauthenticated:
		return "unauthenticated"
	case Denied:
		return "denied"
	default:
		return "unknown"
	}
}

type requirementKind int

const (
	public requirementKind = iota
	authenticated
	anyRole
)

// Requirement is what a rule demands of the principal.
type Requirement struct {
	kind  requirementKind
	roles RoleSet
}

func Public() Requirement        { return Requirement{kind: public} }
func Authenticated() Requirement { return Requirement{kind: authenticated} }

func AnyRole(roles ...Role) Requirement {
	return Requirement{kind: anyRole, roles: NewRoleSet(roles...)}
}

// Rule binds a path pattern to a requirement. A pattern ending in "/*"
// matches the prefix itself and everything below it; any other pattern is
// an exact match.
type Rule struct {
	Pattern string
	Require Requirement
}

func (r Rule) matches(p string) bool {
	if prefix, ok := strings.CutSuffix(r.Pattern, "/*"); ok {
		return p == prefix || strings.HasPrefix(p, prefix+"/")
	}
	return p == r.Pattern
}

// Decision is the result of gating one request. Destination is empty when
// the request is authorized.
type Decision struct {
	Outcome     Outcome
	Destination string
	Pattern     string
}

// Policy is an ordered, first-match rule table.
type Policy struct {
	rules    []Rule
	fallback Requirement
}

func NewPolicy(rules []Rule, fallback Requirement) *Policy {
	cp := make([]Rule, len(rules))
	copy(cp, rules)
	return &Policy{rules: cp, fallback: fallback}
}

// DefaultPolicy is the route table of the application. The admin API rule
// must stay ahead of the general API rule.
func DefaultPolicy() *Policy {
	return NewPolicy([]Rule{
		{Pattern: "/", Require: Public()},
		{Pattern: LoginPage, Require: Public()},
		{Pattern: "/logout", Require: Public()},
		{Pattern: "/register", Require: Public()},
		{Pattern: AccessDeniedPage, Require: Public()},
		{Pattern: "/static/*", Require: Public()},
		{Pattern: "/healthz", Require: Public()},
		{Pattern: "/readyz", Require: Public()},
		{Pattern: "/metrics", Require: Public()},
		{Pattern: "/api/register", Require: Public()},
		{Pattern: "/api/auth/*", Require: Public()},

		{Pattern: UserDashboard, Require: Authenticated()},
		{Pattern: "/task/*", Require: Authenticated()},
		{Pattern: "/user/*", Require: Authenticated()},

		{Pattern: "/admin/*", Require: AnyRole(RoleAdmin)},
		{Pattern: "/api/admin/*", Require: AnyRole(RoleAdmin)},
		{Pattern: "/api/*", Require: AnyRole(RoleUser, RoleAdmin)},
	}, Authenticated())
}

// Decide gates a request path. A nil or disabled principal is treated as
// unauthenticated. Decide never fails: every outcome has a destination.
func (p *Policy) Decide(principal *Principal, requestPath string) Decision {
	clean := cleanPath(requestPath)

	req, pattern := p.fallback, ""
	for _, r := range p.rules {
		if r.matches(clean) {
			req, pattern = r.Require, r.Pattern
			break
		}
	}

	if req.kind == public {
		return Decision{Outcome: Authorized, Pattern: pattern}
	}

	if principal == nil || !principal.Enabled {
		return Decision{Outcome: Unauthenticated, Destination: LoginPage, Pattern: pattern}
	}

	if req.kind == anyRole && !principal.Roles.HasAny(req.roles) {
		return Decision{Outcome: Denied, Destination: AccessDeniedPage, Pattern: pattern}
	}

	return Decision{Outcome: Authorized, Pattern: pattern}
}

// IsAPI reports whether a path belongs to the JSON API surface.
func IsAPI(requestPath string) bool {
	clean := cleanPath(requestPath)
	return clean == apiPrefix || strings.HasPrefix(clean, apiPrefix+"/")
}

func cleanPath(p string) string {
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return path.Clean(p)
}

// LandingPage is where a principal is sent right after login. ADMIN wins.
func LandingPage(roles RoleSet) string {
	if roles.Has(RoleAdmin) {
		return AdminDashboard
	}
	return UserDashboard
}

var ErrNotOwner = apperr.New(apperr.ErrForbidden, ownershipForbidden)

// CanActOnTask enforces task ownership: admins act on any task, everyone else
// only on tasks they own.
func CanActOnTask(p Principal, ownerID string) error {
	return canActOn(p, ownerID)
}

// CanActOnUser applies the same rule to user accounts: self or admin.
func CanActOnUser(p Principal, targetID string) error {
	return canActOn(p, targetID)
}

func canActOn(p Principal, ownerID string) error {
	if p.IsAdmin() {
		return nil
	}
	if p.UserID == "" || p.UserID != ownerID {
		return ErrNotOwner
	}
	return nil
}

var ErrAdminOnly = apperr.New(apperr.ErrForbidden, "administrator role required")

func RequireAdmin(p Principal) error {
	if !p.IsAdmin() {
		return ErrAdminOnly
	}
	return nil
}
