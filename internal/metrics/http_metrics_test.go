package metrics

import (
	"errors"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMiddlewareCountsByRoute(t *testing.T) {
	m := NewHTTPMetrics("lighthouse", prometheus.NewRegistry())
	app := fiber.New()
	app.Use(m.Middleware())
	app.Get("/api/apps/:id", func(c *fiber.Ctx) error { return c.SendString(c.Params("id")) })
	app.Get("/fail", func(c *fiber.Ctx) error { return errors.New("boom") })

	for _, id := range []string{"a", "b"} {
		_, err := app.Test(httptest.NewRequest("GET", "/api/apps/"+id, nil))
		require.NoError(t, err)
	}
	_, err := app.Test(httptest.NewRequest("GET", "/fail", nil))
	require.NoError(t, err)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.RequestCounter.WithLabelValues("lighthouse", "GET", "/api/apps/:id", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.StatusCategoryCounter.WithLabelValues("lighthouse", "5xx", "GET", "/fail")))
}

func TestInstallFinished(t *testing.T) {
	m := NewHTTPMetrics("lighthouse", nil)
	m.InstallFinished("success", 3*time.Second)
	m.InstallFinished("error", time.Second)
	m.InstallFinished("success", 2*time.Second)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.InstallCounter.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.InstallCounter.WithLabelValues("error")))

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()
	resp, err := srv.Client().Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(body), "lighthouse_app_install_duration_seconds_count 3")
}
