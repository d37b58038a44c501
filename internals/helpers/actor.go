package helper

import (
	"strings"

	"github.com/gofiber/fiber/v2"
)

const (
	FallbackActorName = "Admin"
	SystemActorName   = "System"
)

// Actor identifies who performed a change. It feeds published_by,
// deleted_by and the activity log.
type Actor struct {
	ID        *uint
	Name      string
	IP        string
	UserAgent string
}

// DisplayName never returns an empty string.
func (a Actor) DisplayName() string {
	if n := strings.TrimSpace(a.Name); n != "" {
		return n
	}
	return FallbackActorName
}

func SystemActor() Actor { return Actor{Name: SystemActorName} }

// ActorFromCtx reads the identity stored by the auth middleware, falling back
// to "Admin" when the request carries none.
func ActorFromCtx(c *fiber.Ctx) Actor {
	a := Actor{
		Name:      FallbackActorName,
		IP:        c.IP(),
		UserAgent: c.Get(fiber.HeaderUserAgent),
	}
	if id, ok := c.Locals("user_id").(uint); ok && id != 0 {
		a.ID = &id
	}
	if name, ok := c.Locals("user_name").(string); ok && strings.TrimSpace(name) != "" {
		a.Name = name
	}
	return a
}
