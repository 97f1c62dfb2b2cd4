package middleware

import (
	"errors"
	"fmt"
	"strings"

	"sacco-console/internal/adapters/http/visitor"
	"sacco-console/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	fibersession "github.com/gofiber/fiber/v2/middleware/session"
)

// Visitor identifies the browser by its session cookie and attaches its
// state to the request. Navigations queued on the visitor, by a handler or
// by the API client reacting to an expired session, are answered with a 303.
func Visitor(store *fibersession.Store, registry *visitor.Registry) fiber.Handler {
	return func(c *fiber.Ctx) error {
		sess, err := store.Get(c)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "session unavailable")
		}
		// Save releases sess, so the id is read first
		id := sess.ID()
		if err := sess.Save(); err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "session unavailable")
		}

		v := registry.Open(id)
		visitor.Attach(c, v)
		c.Locals(rotatorKey, rotator{store: store, registry: registry})

		// A navigation queued in the background (e.g. by the poller) is
		// delivered on the next request
		if target := v.State.TakeNavigation(); target != "" && pathOf(target) != c.Path() {
			return response.SeeOther(c, target)
		}

		err = c.Next()
		// the handler may have rotated the visitor
		if target := visitor.From(c).State.TakeNavigation(); target != "" {
			return response.SeeOther(c, target)
		}
		return err
	}
}

const rotatorKey = "visitorRotator"

type rotator struct {
	store    *fibersession.Store
	registry *visitor.Registry
}

// RotateVisitor issues the browser a fresh session id and moves its visitor,
// session and pending login over to it. Called whenever the visitor gains
// or drops privileges.
func RotateVisitor(c *fiber.Ctx) (*visitor.Visitor, error) {
	rot, ok := c.Locals(rotatorKey).(rotator)
	if !ok {
		return nil, errors.New("visitor middleware not installed")
	}
	sess, err := rot.store.Get(c)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	from := sess.ID()
	if err := sess.Regenerate(); err != nil {
		return nil, fmt.Errorf("regenerate session: %w", err)
	}
	to := sess.ID()
	if err := sess.Save(); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}

	v, err := rot.registry.Rotate(from, to)
	if err != nil {
		return nil, err
	}
	visitor.Attach(c, v)
	return v, nil
}

func pathOf(target string) string {
	if i := strings.IndexAny(target, "?#"); i >= 0 {
		return target[:i]
	}
	return target
}
