package http

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"

	"github.com/melih/lighthouse-panel/internal/core/domain"
)

// AppResolver finds the running instance bound to a subdomain.
type AppResolver interface {
	Resolve(ctx context.Context, subdomain string) (*domain.Instance, *domain.ContainerInfo, error)
}

// ProxyHandler manages reverse proxying for subdomains.
type ProxyHandler struct {
	resolver   AppResolver
	baseDomain string
}

// NewProxyHandler creates a proxy for <subdomain>.<baseDomain> hosts.
func NewProxyHandler(resolver AppResolver, baseDomain string) *ProxyHandler {
	return &ProxyHandler{resolver: resolver, baseDomain: strings.ToLower(baseDomain)}
}

// subdomain returns the first label of host when host is a direct child of
// the base domain.
func (h *ProxyHandler) subdomain(host string) string {
	host = strings.ToLower(host)
	if name, _, err := net.SplitHostPort(host); err == nil {
		host = name
	}
	suffix := "." + h.baseDomain
	if !strings.HasSuffix(host, suffix) {
		return ""
	}
	label := strings.TrimSuffix(host, suffix)
	if label == "" || label == "www" || strings.Contains(label, ".") {
		return ""
	}
	return label
}

// targetPort is the container port the proxy forwards to: the first tcp
// binding, or 80.
func targetPort(inst *domain.Instance) int {
	for _, p := range inst.Ports {
		if p.Proto() == "tcp" && p.Container > 0 {
			return p.Container
		}
	}
	return 80
}

// ProxyRequest intercepts requests to subdomains (e.g., app-name.localhost)
// and routes them to the corresponding container's internal IP.
func (h *ProxyHandler) ProxyRequest(c *fiber.Ctx) error {
	sub := h.subdomain(c.Hostname())
	if sub == "" {
		return c.Next()
	}

	inst, info, err := h.resolver.Resolve(c.UserContext(), sub)
	if domain.IsNotFound(err) {
		return c.Status(fiber.StatusNotFound).SendString(fmt.Sprintf("App '%s' not found or not running", sub))
	}
	if err != nil {
		return err
	}
	if info.IPAddress == "" {
		return c.Status(fiber.StatusBadGateway).SendString(fmt.Sprintf("App '%s' has no network address", sub))
	}

	remote := &url.URL{
		Scheme: "http",
		Host:   net.JoinHostPort(info.IPAddress, strconv.Itoa(targetPort(inst))),
	}
	proxy := httputil.NewSingleHostReverseProxy(remote)

	// The app inside the container sees its own address as Host.
	originalDirector := proxy.Director
	proxy.Director = func(req *http.Request) {
		originalDirector(req)
		req.Header.Set("X-Forwarded-Host", req.Host)
		req.Host = remote.Host
	}
	proxy.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(fmt.Sprintf("Proxy Info: target=%s error=%v", remote.Host, err)))
	}

	return adaptor.HTTPHandler(proxy)(c)
}
