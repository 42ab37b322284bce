package identity

import (
	"context"
	"fmt"
	"strings"

	"github.com/irsalhamdi/edtech-platform/core/profile"
	"github.com/irsalhamdi/edtech-platform/gateway"
)

// User is a principal enriched with its profile and role rows.
type User struct {
	Principal
	Name   string
	Avatar *string
	Role   profile.Role
}

// Resolve loads the display data for a principal. Right after signup
// the profile and role rows may not exist yet; the fallbacks cover
// that window: the name defaults to the email's local part and the
// role to student.
func Resolve(ctx context.Context, gw gateway.Gateway, p Principal) (User, error) {
	u := User{
		Principal: p,
		Name:      localPart(p.Email),
		Role:      profile.RoleStudent,
	}

	profs, err := gw.Select(ctx, "profiles", gateway.Eq("id", p.ID))
	if err != nil {
		return User{}, fmt.Errorf("fetching profile[%s]: %w", p.ID, err)
	}
	if len(profs) > 0 {
		if name, ok := profs[0]["name"].(string); ok && name != "" {
			u.Name = name
		}
		if avatar, ok := profs[0]["avatar"].(string); ok && avatar != "" {
			u.Avatar = &avatar
		}
	}

	roles, err := gw.Select(ctx, "user_roles", gateway.Eq("user_id", p.ID))
	if err != nil {
		return User{}, fmt.Errorf("fetching role[%s]: %w", p.ID, err)
	}
	if len(roles) > 0 {
		if role, ok := roles[0]["role"].(string); ok && role != "" {
			u.Role = profile.Role(role)
		}
	}

	return u, nil
}

func localPart(email string) string {
	if at := strings.Index(email, "@"); at > 0 {
		return email[:at]
	}
	return email
}
