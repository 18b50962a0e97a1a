package main

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"
)

var hueHTTP = &http.Client{
	Timeout: 10 * time.Second,
	Transport: &http.Transport{
		TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
	},
}

// ErrLinkButtonNotPressed is returned by Pair when the user has not yet
// pressed the link button on the Hue bridge.
var ErrLinkButtonNotPressed = errors.New("link button not pressed")

// ErrUnauthorized is returned when the bridge rejects the API credentials.
var ErrUnauthorized = errors.New("unauthorized")

// HueClient talks to the CLIP API of one Hue bridge.
type HueClient struct {
	IP       net.IP
	Username string
	http     *http.Client

	// base replaces the https://<ip> prefix; tests point it at httptest.
	base string
}

// NewHueClient returns a client for the bridge at ip. username may be empty
// until the bridge has been paired.
func NewHueClient(ip net.IP, username string) *HueClient {
	return &HueClient{IP: ip, Username: username, http: hueHTTP}
}

// Pair registers backdrop with the bridge and returns the application key
// and the entertainment client key. The link button must be pressed first.
func (c *HueClient) Pair(ctx context.Context) (username, clientkey string, err error) {
	body := strings.NewReader(`{"devicetype":"backdrop#terminal","generateclientkey":true}`)
	resp, err := c.do(ctx, http.MethodPost, "/api", body)
	if err != nil {
		return "", "", fmt.Errorf("pairing request: %w", err)
	}
	defer resp.Body.Close()

	var result []pairResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", "", fmt.Errorf("decoding pair response: %w", err)
	}
	if len(result) == 0 {
		return "", "", fmt.Errorf("empty pair response")
	}

	r := result[0]
	switch {
	case r.Error != nil && r.Error.Type == 101:
		return "", "", ErrLinkButtonNotPressed
	case r.Error != nil:
		return "", "", fmt.Errorf("bridge error %d: %s", r.Error.Type, r.Error.Description)
	case r.Success == nil:
		return "", "", fmt.Errorf("unexpected pair response: no success or error")
	}
	c.Username = r.Success.Username
	return r.Success.Username, r.Success.Clientkey, nil
}

// EntertainmentArea represents a Hue entertainment configuration.
type EntertainmentArea struct {
	ID         string
	Name       string
	Status     string
	ChannelIDs []uint8
	Lights     int
}

func (a EntertainmentArea) String() string {
	return fmt.Sprintf("%s (%d channels, %d lights)", a.Name, len(a.ChannelIDs), a.Lights)
}

// EntertainmentAreas lists the entertainment configurations of the bridge.
func (c *HueClient) EntertainmentAreas(ctx context.Context) ([]EntertainmentArea, error) {
	resp, err := c.do(ctx, http.MethodGet, entertainmentPath(""), nil)
	if err != nil {
		return nil, fmt.Errorf("fetching entertainment areas: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusForbidden {
		return nil, ErrUnauthorized
	}

	var result entertainmentResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decoding entertainment response: %w", err)
	}
	return result.areas(), nil
}

// SetStreaming starts or stops entertainment mode for the area.
func (c *HueClient) SetStreaming(ctx context.Context, areaID string, on bool) error {
	action := "stop"
	if on {
		action = "start"
	}
	body := strings.NewReader(`{"action":"` + action + `"}`)

	resp, err := c.do(ctx, http.MethodPut, entertainmentPath(areaID), body)
	if err != nil {
		return fmt.Errorf("%s streaming: %w", action, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusForbidden:
		return ErrUnauthorized
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return fmt.Errorf("%s streaming: HTTP %d", action, resp.StatusCode)
	}
	return nil
}

func (c *HueClient) do(ctx context.Context, method, path string, body io.Reader) (*http.Response, error) {
	base := c.base
	if base == "" {
		base = bridgeURL(c.IP, "")
	}
	req, err := http.NewRequestWithContext(ctx, method, base+path, body)
	if err != nil {
		return nil, err
	}
	if c.Username != "" {
		req.Header.Set("hue-application-key", c.Username)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.http.Do(req)
}

func entertainmentPath(areaID string) string {
	p := "/clip/v2/resource/entertainment_configuration"
	if areaID != "" {
		p += "/" + areaID
	}
	return p
}

func bridgeURL(ip net.IP, path string) string {
	host := ip.String()
	if ip.To4() == nil {
		host = "[" + host + "]"
	}
	return "https://" + host + path
}

// JSON mapping structs

type pairResponse struct {
	Success *struct {
		Username  string `json:"username"`
		Clientkey string `json:"clientkey"`
	} `json:"success"`
	Error *struct {
		Type        int    `json:"type"`
		Description string `json:"description"`
	} `json:"error"`
}

type entertainmentResponse struct {
	Data []struct {
		ID       string `json:"id"`
		Metadata struct {
			Name string `json:"name"`
		} `json:"metadata"`
		Status   string `json:"status"`
		Channels []struct {
			ChannelID uint8 `json:"channel_id"`
		} `json:"channels"`
		LightServices []json.RawMessage `json:"light_services"`
	} `json:"data"`
}

func (r entertainmentResponse) areas() []EntertainmentArea {
	areas := make([]EntertainmentArea, len(r.Data))
	for i, d := range r.Data {
		ids := make([]uint8, len(d.Channels))
		for j, ch := range d.Channels {
			ids[j] = ch.ChannelID
		}
		areas[i] = EntertainmentArea{
			ID:         d.ID,
			Name:       d.Metadata.Name,
			Status:     d.Status,
			ChannelIDs: ids,
			Lights:     len(d.LightServices),
		}
	}
	return areas
}
