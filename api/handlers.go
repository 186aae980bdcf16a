package api

import (
	"encoding/json"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/gommon/log"
	"syncstream.pro/pkg/errs"
	"syncstream.pro/pkg/utils"
)

type (
	healthResponse struct {
		Status      string  `json:"status"`
		Uptime      float64 `json:"uptime"`
		Rooms       int     `json:"rooms"`
		Connections int64   `json:"connections"`
	}

	networkAddress struct {
		Interface string `json:"interface"`
		Address   string `json:"address"`
		URL       string `json:"url"`
	}

	networkInfoResponse struct {
		Port      int              `json:"port"`
		Addresses []networkAddress `json:"addresses"`
	}
)

// Redirects a shared join link to the UI
func (api *API) join(c echo.Context) error {
	roomID := strings.ToUpper(c.Param("roomID"))
	if !utils.IsRoomIDValid(roomID) {
		return errs.ErrInvalidRoomID
	}
	return c.Redirect(http.StatusFound, "/?join="+url.QueryEscape(roomID))
}

// Returns the public projection of a room
func (api *API) roomInfo(c echo.Context) error {
	roomID := strings.ToUpper(c.Param("roomID"))
	if !utils.IsRoomIDValid(roomID) {
		return errs.ErrRoomNotFound
	}
	info, err := api.rooms.PublicInfo(c.Request().Context(), roomID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, info)
}

func (api *API) health(c echo.Context) error {
	return c.JSON(http.StatusOK, &healthResponse{
		Status:      "ok",
		Uptime:      time.Since(api.startedAt).Seconds(),
		Rooms:       api.rooms.Count(),
		Connections: api.connections.Load(),
	})
}

// Lists LAN addresses viewers on the same network can join through
func (api *API) networkInfo(c echo.Context) error {
	ifaces, err := net.Interfaces()
	if err != nil {
		return err
	}

	res := &networkInfoResponse{Port: api.config.HttpPort, Addresses: []networkAddress{}}
	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		addrs, err := iface.Addrs()
		if err != nil {
			log.Warnf("addresses of %s: %v", iface.Name, err)
			continue
		}
		for _, addr := range addrs {
			ipNet, ok := addr.(*net.IPNet)
			if !ok || ipNet.IP.To4() == nil {
				continue
			}
			ip := ipNet.IP.String()
			res.Addresses = append(res.Addresses, networkAddress{
				Interface: iface.Name,
				Address:   ip,
				URL:       "http://" + net.JoinHostPort(ip, strconv.Itoa(api.config.HttpPort)),
			})
		}
	}
	return c.JSON(http.StatusOK, res)
}

// Asks an external service for the host's public address
func (api *API) publicIP(c echo.Context) error {
	req, err := http.NewRequestWithContext(c.Request().Context(), http.MethodGet, api.config.PublicIPURL, nil)
	if err != nil {
		return err
	}
	resp, err := api.httpClient.Do(req)
	if err != nil {
		log.Warnf("public ip lookup: %v", err)
		return echo.NewHTTPError(http.StatusBadGateway, "Public IP lookup failed")
	}
	defer resp.Body.Close()

	var body struct {
		IP string `json:"ip"`
	}
	if resp.StatusCode != http.StatusOK {
		log.Warnf("public ip lookup: status %d", resp.StatusCode)
		return echo.NewHTTPError(http.StatusBadGateway, "Public IP lookup failed")
	}
	if err = json.NewDecoder(resp.Body).Decode(&body); err != nil || net.ParseIP(body.IP) == nil {
		log.Warnf("public ip lookup: unexpected body: %v", err)
		return echo.NewHTTPError(http.StatusBadGateway, "Public IP lookup failed")
	}
	return c.JSON(http.StatusOK, map[string]string{"ip": body.IP})
}

// Adaptive streaming is an extension point only
func (api *API) notImplemented(c echo.Context) error {
	return echo.NewHTTPError(http.StatusNotImplemented, "Adaptive streaming is not implemented")
}
