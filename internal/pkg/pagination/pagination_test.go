package pagination

import (
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"
)

func TestGetParams(t *testing.T) {
	app := fiber.New()
	var got *Params
	app.Get("/", func(c *fiber.Ctx) error {
		got = GetParams(c)
		return nil
	})

	_, err := app.Test(httptest.NewRequest("GET", "/?page=0&limit=500&search=+wanjiru+&order=DESC", nil))
	require.NoError(t, err)
	require.Equal(t, &Params{Page: 1, Limit: MaxLimit, Search: "wanjiru", Order: "desc"}, got)
	require.Equal(t, "limit=100&order=desc&page=1&search=wanjiru", got.Values().Encode())

	_, err = app.Test(httptest.NewRequest("GET", "/?order=sideways", nil))
	require.NoError(t, err)
	require.Equal(t, &Params{Page: 1, Limit: DefaultLimit}, got)
}
