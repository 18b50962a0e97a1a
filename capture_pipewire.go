package main

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/godbus/dbus/v5"
)

const (
	portalDest      = "org.freedesktop.portal.Desktop"
	portalPath      = "/org/freedesktop/portal/desktop"
	screenCastIface = "org.freedesktop.portal.ScreenCast"
	requestIface    = "org.freedesktop.portal.Request"

	portalTimeout = 120 * time.Second // user may need time to pick a screen
)

// newPipeWireGrabber asks the desktop portal for a monitor stream and feeds
// it through GStreamer. The portal may prompt the user to pick a screen.
func newPipeWireGrabber() (FrameGrabber, string, error) {
	if !hasExecutable("gst-launch-1.0") {
		return nil, "", fmt.Errorf("gst-launch-1.0 not found")
	}

	w, h, err := screenSize()
	if err != nil {
		w, h = 0, 0
	}
	fw, fh := frameSize(w, h)

	dbConn, nodeID, pwFile, err := acquirePipeWireNode()
	if err != nil {
		return nil, "", fmt.Errorf("pipewire portal: %w", err)
	}
	// The session lives as long as the bus connection.
	release := func() {
		pwFile.Close()
		dbConn.Close()
	}

	g, err := startProcGrabber("gstreamer", fw, fh, release, func(ctx context.Context) *exec.Cmd {
		cmd := exec.CommandContext(ctx, "gst-launch-1.0", "-q",
			"pipewiresrc", fmt.Sprintf("path=%d", nodeID), "fd=3",
			"!", "videorate",
			"!", "video/x-raw,framerate=5/1",
			"!", "videoconvert",
			"!", "videoscale",
			"!", fmt.Sprintf("video/x-raw,format=RGB,width=%d,height=%d", fw, fh),
			"!", "fdsink", "fd=1",
		)
		// ExtraFiles[0] is fd 3 in the child.
		cmd.ExtraFiles = []*os.File{pwFile}
		return cmd
	})
	if err != nil {
		return nil, "", err
	}
	return g, "PipeWire", nil
}

// portalSession is one negotiated ScreenCast session on the session bus.
type portalSession struct {
	conn   *dbus.Conn
	portal dbus.BusObject
	sender string
}

// request calls a portal method that answers through a Request object and
// waits for its Response signal. The handle token is added to opts.
func (p *portalSession) request(method, token string, opts map[string]dbus.Variant, args ...interface{}) (map[string]dbus.Variant, error) {
	reqPath := dbus.ObjectPath(fmt.Sprintf("/org/freedesktop/portal/desktop/request/%s/%s", p.sender, token))
	sigCh := subscribeSignal(p.conn, reqPath)
	defer p.conn.RemoveSignal(sigCh)

	opts["handle_token"] = dbus.MakeVariant(token)
	args = append(args, opts)
	if call := p.portal.Call(screenCastIface+"."+method, 0, args...); call.Err != nil {
		return nil, fmt.Errorf("%s: %w", method, call.Err)
	}

	resp, err := waitForResponse(sigCh, portalTimeout)
	if err != nil {
		return nil, fmt.Errorf("%s response: %w", method, err)
	}
	return resp, nil
}

// acquirePipeWireNode negotiates a ScreenCast session via the XDG Desktop Portal
// and returns the D-Bus connection (must stay open), the PipeWire node ID,
// and a PipeWire remote file descriptor for GStreamer.
func acquirePipeWireNode() (conn *dbus.Conn, nodeID uint32, pwFile *os.File, err error) {
	conn, err = dbus.ConnectSessionBus()
	if err != nil {
		return nil, 0, nil, fmt.Errorf("connecting to session bus: %w", err)
	}
	defer func() {
		if err != nil {
			conn.Close()
		}
	}()
	if !conn.SupportsUnixFDs() {
		return nil, 0, nil, fmt.Errorf("D-Bus connection does not support Unix FD passing")
	}

	p := &portalSession{
		conn:   conn,
		portal: conn.Object(portalDest, dbus.ObjectPath(portalPath)),
		sender: senderToToken(conn.Names()[0]),
	}

	resp, err := p.request("CreateSession", "backdrop_req_create", map[string]dbus.Variant{
		"session_handle_token": dbus.MakeVariant("backdrop_session"),
	})
	if err != nil {
		return nil, 0, nil, err
	}
	sessionHandle, ok := resp["session_handle"]
	if !ok {
		return nil, 0, nil, fmt.Errorf("CreateSession: no session_handle in response")
	}
	sessionPath := dbus.ObjectPath(sessionHandle.Value().(string))

	_, err = p.request("SelectSources", "backdrop_req_select", map[string]dbus.Variant{
		"types":    dbus.MakeVariant(uint32(1)), // 1 = monitor
		"multiple": dbus.MakeVariant(false),
	}, sessionPath)
	if err != nil {
		return nil, 0, nil, err
	}

	startResp, err := p.request("Start", "backdrop_req_start", map[string]dbus.Variant{}, sessionPath, "")
	if err != nil {
		return nil, 0, nil, err
	}
	nodeID, err = extractNodeID(startResp)
	if err != nil {
		return nil, 0, nil, err
	}

	// OpenPipeWireRemote hands back a Unix fd that grants pipewiresrc
	// access to the portal's stream.
	var pwFd dbus.UnixFD
	err = p.portal.Call(screenCastIface+".OpenPipeWireRemote", 0, sessionPath, map[string]dbus.Variant{}).Store(&pwFd)
	if err != nil {
		return nil, 0, nil, fmt.Errorf("OpenPipeWireRemote: %w", err)
	}

	pwFile = os.NewFile(uintptr(pwFd), "pipewire-remote")
	if pwFile == nil {
		return nil, 0, nil, fmt.Errorf("invalid PipeWire fd")
	}
	return conn, nodeID, pwFile, nil
}

// subscribeSignal registers a D-Bus signal match for the portal Response signal
// at the given path and returns a channel that receives matching signals.
func subscribeSignal(conn *dbus.Conn, path dbus.ObjectPath) chan *dbus.Signal {
	ch := make(chan *dbus.Signal, 1)
	conn.Signal(ch)
	conn.BusObject().Call("org.freedesktop.DBus.AddMatch", 0,
		fmt.Sprintf("type='signal',interface='%s',member='Response',path='%s'", requestIface, path))
	return ch
}

// waitForResponse waits for a portal Response signal and returns the results map.
// A non-zero response code indicates the user denied or the request failed.
func waitForResponse(ch chan *dbus.Signal, timeout time.Duration) (map[string]dbus.Variant, error) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	for {
		select {
		case sig := <-ch:
			if sig == nil {
				return nil, fmt.Errorf("signal channel closed")
			}
			if len(sig.Body) < 2 {
				continue
			}
			code, ok := sig.Body[0].(uint32)
			if !ok {
				continue
			}
			if code != 0 {
				return nil, fmt.Errorf("portal request denied (code %d)", code)
			}
			results, ok := sig.Body[1].(map[string]dbus.Variant)
			if !ok {
				return nil, fmt.Errorf("unexpected response type")
			}
			return results, nil
		case <-ctx.Done():
			return nil, fmt.Errorf("timed out waiting for portal response")
		}
	}
}

// senderToToken converts a D-Bus sender name like ":1.42" to "1_42" for use
// in request object paths.
func senderToToken(sender string) string {
	s := strings.TrimPrefix(sender, ":")
	return strings.ReplaceAll(s, ".", "_")
}

// extractNodeID pulls the PipeWire node ID from the Start response. The
// streams field is a(ua{sv}); depending on how godbus decodes it, each entry
// arrives as []interface{} inside either [][]interface{} or []interface{}.
func extractNodeID(resp map[string]dbus.Variant) (uint32, error) {
	v, ok := resp["streams"]
	if !ok {
		return 0, fmt.Errorf("no streams in Start response")
	}

	var entry []interface{}
	switch streams := v.Value().(type) {
	case [][]interface{}:
		if len(streams) == 0 {
			return 0, fmt.Errorf("no streams returned")
		}
		entry = streams[0]
	case []interface{}:
		if len(streams) == 0 {
			return 0, fmt.Errorf("no streams returned")
		}
		inner, ok := streams[0].([]interface{})
		if !ok {
			return 0, fmt.Errorf("unexpected stream entry type: %T", streams[0])
		}
		entry = inner
	default:
		return 0, fmt.Errorf("unexpected streams type: %T", v.Value())
	}

	if len(entry) == 0 {
		return 0, fmt.Errorf("empty stream entry")
	}
	nodeID, ok := entry[0].(uint32)
	if !ok {
		return 0, fmt.Errorf("unexpected node ID type: %T", entry[0])
	}
	return nodeID, nil
}
