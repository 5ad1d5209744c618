package auth

import (
	"github.com/gin-gonic/gin"

	"github.com/Zenkai92/Modelify/internal/users"
)

const ctxPrincipal = "auth_principal"

// Principal is the resolved caller: identity from the token, role from the
// profile store (possibly the cached last-confirmed one, see Resolver).
type Principal struct {
	UID   string
	Email string
	Role  users.Role
}

func (p Principal) Admin() bool { return p.Role.Admin() }

// CurrentPrincipal returns the principal set by WithPrincipal, or false when
// the request never went through it.
func CurrentPrincipal(c *gin.Context) (Principal, bool) {
	v, ok := c.Get(ctxPrincipal)
	if !ok {
		return Principal{}, false
	}
	p, ok := v.(Principal)
	return p, ok
}

func setPrincipal(c *gin.Context, p Principal) {
	c.Set(ctxPrincipal, p)
}
