/*
rolegate.go - Role gate middleware

PURPOSE:
  The identity collaborator (the hosted auth provider) resolves the
  session and stamps the caller's role on each request. This middleware
  only accepts or rejects commands against a minimum role; there is no
  role logic anywhere deeper in the core.

ROLES:
  agent < admin < superadmin

  Reads are open to any recognized role. Commits require admin; mapping
  invalidation and seeding require superadmin.
*/
package api

import "net/http"

// RoleHeader carries the caller's role, stamped upstream by the auth
// provider's gateway.
const RoleHeader = "X-User-Role"

// Role is the caller's resolved role.
type Role string

const (
	RoleAgent      Role = "agent"
	RoleAdmin      Role = "admin"
	RoleSuperadmin Role = "superadmin"
)

var roleRank = map[Role]int{
	RoleAgent:      1,
	RoleAdmin:      2,
	RoleSuperadmin: 3,
}

// RequireRole rejects requests whose role ranks below min. An absent or
// unrecognized role is 401; a recognized but insufficient one is 403.
func RequireRole(min Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rank, ok := roleRank[Role(r.Header.Get(RoleHeader))]
			if !ok {
				writeError(w, http.StatusUnauthorized, "Unrecognized role", nil)
				return
			}
			if rank < roleRank[min] {
				writeError(w, http.StatusForbidden, "Role not permitted for this command", nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
