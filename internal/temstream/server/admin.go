package server

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/temdog007/temstream-go/internal/temstream/wire"
)

// AdminServer exposes operational visibility over a Core: /healthz and a
// JSON snapshot of ServerInformation. This is ambient observability, not a
// protocol-visible feature — no client ever reaches it over FramedSocket.
type AdminServer struct {
	core *Core
	echo *echo.Echo
}

// NewAdminServer builds (but does not start) an admin HTTP surface for
// core.
func NewAdminServer(core *Core) *AdminServer {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	a := &AdminServer{core: core, echo: e}

	e.GET("/healthz", a.healthz)
	e.GET("/serverinfo", a.serverInfo)
	return a
}

// Start blocks serving on addr until the process exits or ListenAndServe
// fails.
func (a *AdminServer) Start(addr string) error {
	return a.echo.Start(addr)
}

// Shutdown closes the admin surface immediately (echo's Close); in-flight
// requests are not drained.
func (a *AdminServer) Shutdown() error {
	return a.echo.Close()
}

func (a *AdminServer) healthz(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{"status": "ok"})
}

func (a *AdminServer) serverInfo(c echo.Context) error {
	info := wire.ServerInformation{
		Peers:   a.core.PeerInformationSnapshot(),
		BanList: a.core.Access().Members(),
	}
	return c.JSON(http.StatusOK, info)
}
