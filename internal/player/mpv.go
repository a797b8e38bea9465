package player

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"
)

const (
	ipcMaxRetries  = 3
	ipcRetryDelay  = 100 * time.Millisecond
	ipcReadTimeout = 1 * time.Second
	spawnTimeout   = 5 * time.Second
)

// ipcRequest is the JSON frame mpv's IPC server expects, newline-delimited.
type ipcRequest struct {
	Command []any `json:"command"`
}

type ipcResponse struct {
	Data  any    `json:"data"`
	Error string `json:"error"`
}

// MPV runs an mpv process with --input-ipc-server and talks to it over the
// socket, one short-lived connection per command. Implements Adapter.
type MPV struct {
	mu         sync.Mutex
	cmd        *exec.Cmd
	socketPath string
}

// NewMPV prepares an adapter with a fresh socket path. Call Start to spawn
// the process.
func NewMPV() *MPV {
	suffix := make([]byte, 8)
	for i := range suffix {
		suffix[i] = byte('a' + rand.Intn(26))
	}
	return &MPV{
		socketPath: filepath.Join(os.TempDir(), fmt.Sprintf("watchparty-mpv-%s.sock", suffix)),
	}
}

// Start spawns mpv idling on the given file and waits for the IPC socket to
// accept connections.
func (m *MPV) Start(ctx context.Context, filePath string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.cmd != nil {
		return fmt.Errorf("mpv: already started")
	}

	cmd := exec.Command("mpv",
		filePath,
		"--force-window=yes",
		"--input-ipc-server="+m.socketPath,
		"--idle=yes",
	)
	cmd.Stdout = nil
	cmd.Stderr = nil
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("mpv: spawn: %w", err)
	}
	m.cmd = cmd

	// The socket appears shortly after mpv boots; poll until it answers.
	deadline := time.Now().Add(spawnTimeout)
	for time.Now().Before(deadline) {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		conn, err := net.Dial("unix", m.socketPath)
		if err == nil {
			_ = conn.Close()
			return nil
		}
		time.Sleep(100 * time.Millisecond)
	}
	return fmt.Errorf("mpv: ipc socket %s did not come up", m.socketPath)
}

// Stop terminates the mpv process. Safe to call when never started.
func (m *MPV) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cmd != nil && m.cmd.Process != nil {
		_ = m.cmd.Process.Kill()
		_, _ = m.cmd.Process.Wait()
	}
	m.cmd = nil
	_ = os.Remove(m.socketPath)
}

func (m *MPV) Position(ctx context.Context) (float64, bool) {
	return m.getDouble(ctx, "time-pos")
}

func (m *MPV) Duration(ctx context.Context) (float64, bool) {
	return m.getDouble(ctx, "duration")
}

func (m *MPV) Paused(ctx context.Context) (bool, bool) {
	data, err := m.command(ctx, []any{"get_property", "pause"})
	if err != nil {
		return false, false
	}
	paused, ok := data.(bool)
	return paused, ok
}

func (m *MPV) SetPaused(ctx context.Context, paused bool) error {
	return m.setProperty(ctx, "pause", paused)
}

func (m *MPV) SeekAbsolute(ctx context.Context, seconds float64) error {
	return m.setProperty(ctx, "time-pos", seconds)
}

func (m *MPV) SetSpeed(ctx context.Context, speed float64) error {
	return m.setProperty(ctx, "speed", speed)
}

func (m *MPV) SetVolume(ctx context.Context, percent int) error {
	return m.setProperty(ctx, "volume", percent)
}

func (m *MPV) Load(ctx context.Context, path string) error {
	_, err := m.command(ctx, []any{"loadfile", path, "replace"})
	return err
}

func (m *MPV) getDouble(ctx context.Context, prop string) (float64, bool) {
	data, err := m.command(ctx, []any{"get_property", prop})
	if err != nil {
		return 0, false
	}
	v, ok := data.(float64)
	return v, ok
}

func (m *MPV) setProperty(ctx context.Context, prop string, value any) error {
	_, err := m.command(ctx, []any{"set_property", prop, value})
	return err
}

// command sends one IPC command, retrying transient connection errors.
func (m *MPV) command(ctx context.Context, cmd []any) (any, error) {
	var lastErr error
	for attempt := 0; attempt < ipcMaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(ipcRetryDelay):
			}
		}
		data, err := sendCommand(m.socketPath, cmd)
		if err == nil {
			return data, nil
		}
		lastErr = err
	}
	return nil, fmt.Errorf("mpv: ipc command failed after %d attempts: %w", ipcMaxRetries, lastErr)
}

func sendCommand(socketPath string, cmd []any) (any, error) {
	conn, err := net.Dial("unix", socketPath)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	defer conn.Close()

	payload, err := json.Marshal(ipcRequest{Command: cmd})
	if err != nil {
		return nil, fmt.Errorf("marshal: %w", err)
	}
	if _, err := conn.Write(append(payload, '\n')); err != nil {
		return nil, fmt.Errorf("write: %w", err)
	}

	if err := conn.SetReadDeadline(time.Now().Add(ipcReadTimeout)); err != nil {
		return nil, fmt.Errorf("set deadline: %w", err)
	}

	// mpv interleaves events on the same socket; skip any line that is not
	// a command reply (replies carry an "error" field).
	r := bufio.NewReader(conn)
	for {
		line, err := r.ReadBytes('\n')
		if err != nil {
			return nil, fmt.Errorf("read: %w", err)
		}
		var resp ipcResponse
		if err := json.Unmarshal(line, &resp); err != nil {
			continue
		}
		if resp.Error == "" {
			continue // event, not a reply
		}
		if resp.Error != "success" {
			return nil, fmt.Errorf("mpv error: %s", resp.Error)
		}
		return resp.Data, nil
	}
}
