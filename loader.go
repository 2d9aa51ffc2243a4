// loader.go: Code unit loading via subprocess launch and capability handshake
//
// Plugins are distributed as self-contained directories carrying their entry
// executable and its whole dependency closure. The loader launches the entry
// with the plugin's own directory as working directory, so two plugins can
// ship conflicting versions of a shared library without collision; nothing is
// ever resolved against the host's installation.
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package pluginhost

import (
	"bufio"
	"context"
	"io"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/agilira/go-timecache"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// CodeLoader loads a plugin's code unit and locates the required capability.
//
// Implementations return an opaque CapabilityHandle on success. The manager
// and discoverer depend only on this interface so tests can substitute a stub
// loader; SubprocessLoader is the production implementation.
type CodeLoader interface {
	Load(ctx context.Context, meta *PluginMetadata, capability string) (*CapabilityHandle, error)
}

// CapabilityHandle is the opaque handle to a loaded code unit.
//
// Callers query it by capability tag rather than by concrete type. Closing
// the handle stops the plugin process and releases the probe connection; a
// handle is safe to close more than once.
type CapabilityHandle struct {
	UnitName      string
	UnitVersion   string
	Capabilities  []string
	ServerAddress string
	LoadedAt      time.Time

	cmd       *exec.Cmd
	conn      *grpc.ClientConn
	closeOnce sync.Once
	closeErr  error
}

// HasCapability reports whether the loaded unit satisfies the given tag.
func (h *CapabilityHandle) HasCapability(tag string) bool {
	for _, c := range h.Capabilities {
		if c == tag {
			return true
		}
	}
	return false
}

// Close stops the plugin process and closes the probe connection.
func (h *CapabilityHandle) Close() error {
	h.closeOnce.Do(func() {
		if h.conn != nil {
			h.closeErr = h.conn.Close()
		}
		if h.cmd != nil && h.cmd.Process != nil {
			_ = h.cmd.Process.Kill()
			_ = h.cmd.Wait() // Reap; "signal: killed" is the expected outcome
		}
	})
	return h.closeErr
}

// SubprocessLoader loads code units by launching their entry executable.
type SubprocessLoader struct {
	handshake        HandshakeConfig
	handshakeTimeout time.Duration
	probeTimeout     time.Duration
	logger           Logger
}

// NewSubprocessLoader creates a loader using the given handshake configuration.
func NewSubprocessLoader(handshake HandshakeConfig, logger Logger) (*SubprocessLoader, error) {
	if err := handshake.Validate(); err != nil {
		return nil, err
	}

	return &SubprocessLoader{
		handshake:        handshake,
		handshakeTimeout: 10 * time.Second,
		probeTimeout:     5 * time.Second,
		logger:           ensureLogger(logger),
	}, nil
}

// Load implements CodeLoader.
//
// The sequence: start the entry executable in its own directory, read one
// handshake line from its stdout, verify the unit reported a logical name and
// the required capability tag, then probe the reported service endpoint (if
// any) for liveness. Any failure stops the process before returning.
func (l *SubprocessLoader) Load(ctx context.Context, meta *PluginMetadata, capability string) (*CapabilityHandle, error) {
	if !entryFileExists(meta.ExecuteFilePath) {
		return nil, NewMissingEntryFileError(meta.PluginID, meta.ExecuteFilePath)
	}

	cmd, stdout, err := l.startEntry(meta, capability)
	if err != nil {
		return nil, err
	}

	info, err := l.readHandshake(ctx, stdout)
	if err != nil {
		stopProcess(cmd)
		return nil, err
	}

	if info.UnitName == "" {
		stopProcess(cmd)
		return nil, NewUnitNameMissingError(meta.ExecuteFilePath)
	}

	if capability != "" && !info.HasCapability(capability) {
		stopProcess(cmd)
		return nil, NewCapabilityNotFoundError(info.UnitName, capability)
	}

	var conn *grpc.ClientConn
	if info.ServerAddress != "" {
		conn, err = l.probeEndpoint(ctx, info.ServerAddress)
		if err != nil {
			stopProcess(cmd)
			return nil, err
		}
	}

	// Keep draining stdout so the plugin never blocks on a full pipe.
	go func() { _, _ = io.Copy(io.Discard, stdout) }()

	l.logger.Debug("Code unit loaded",
		"unit_name", info.UnitName,
		"unit_version", info.UnitVersion,
		"capabilities", info.Capabilities,
		"server_address", info.ServerAddress)

	return &CapabilityHandle{
		UnitName:      info.UnitName,
		UnitVersion:   info.UnitVersion,
		Capabilities:  info.Capabilities,
		ServerAddress: info.ServerAddress,
		LoadedAt:      timecache.CachedTime(),
		cmd:           cmd,
		conn:          conn,
	}, nil
}

// startEntry launches the plugin's entry executable with the handshake
// environment in place.
func (l *SubprocessLoader) startEntry(meta *PluginMetadata, capability string) (*exec.Cmd, io.ReadCloser, error) {
	cmd := exec.Command(meta.ExecuteFilePath) // #nosec G204 - path validated against the parsed descriptor
	cmd.Dir = meta.PluginDirectory
	cmd.Env = append(os.Environ(),
		l.handshake.MagicCookieKey+"="+l.handshake.MagicCookieValue,
		CapabilityEnvKey+"="+capability,
	)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, nil, NewEntryStartFailedError(meta.ExecuteFilePath, err)
	}

	if err := cmd.Start(); err != nil {
		return nil, nil, NewEntryStartFailedError(meta.ExecuteFilePath, err)
	}

	return cmd, stdout, nil
}

// readHandshake reads and validates the single handshake line, bounded by the
// loader's handshake timeout and the caller's context.
func (l *SubprocessLoader) readHandshake(ctx context.Context, stdout io.Reader) (*HandshakeInfo, error) {
	type lineResult struct {
		line []byte
		err  error
	}

	lineCh := make(chan lineResult, 1)
	go func() {
		scanner := bufio.NewScanner(stdout)
		scanner.Buffer(make([]byte, 0, 64*1024), 256*1024)
		if scanner.Scan() {
			line := make([]byte, len(scanner.Bytes()))
			copy(line, scanner.Bytes())
			lineCh <- lineResult{line: line}
			return
		}
		lineCh <- lineResult{err: scanner.Err()}
	}()

	timer := time.NewTimer(l.handshakeTimeout)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return nil, NewHandshakeFailedError("handshake canceled", ctx.Err())
	case <-timer.C:
		return nil, NewHandshakeFailedError("handshake timeout", nil)
	case result := <-lineCh:
		if result.err != nil {
			return nil, NewHandshakeFailedError("reading handshake line", result.err)
		}
		if len(result.line) == 0 {
			return nil, NewHandshakeFailedError("plugin exited without a handshake line", nil)
		}
		return ParseHandshakeLine(result.line, l.handshake)
	}
}

// probeEndpoint dials the unit's reported gRPC endpoint and requires a
// serving health status before the load is accepted.
func (l *SubprocessLoader) probeEndpoint(ctx context.Context, address string) (*grpc.ClientConn, error) {
	conn, err := grpc.NewClient(address,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		return nil, NewEndpointUnhealthyError(address, err)
	}

	probeCtx, cancel := context.WithTimeout(ctx, l.probeTimeout)
	defer cancel()

	resp, err := healthpb.NewHealthClient(conn).Check(probeCtx, &healthpb.HealthCheckRequest{})
	if err != nil {
		_ = conn.Close()
		return nil, NewEndpointUnhealthyError(address, err)
	}
	if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		_ = conn.Close()
		return nil, NewEndpointUnhealthyError(address, nil).
			WithContext("reported_status", resp.GetStatus().String())
	}

	return conn, nil
}

// stopProcess terminates a partially-loaded plugin process and reaps it.
func stopProcess(cmd *exec.Cmd) {
	if cmd == nil || cmd.Process == nil {
		return
	}
	_ = cmd.Process.Kill()
	_ = cmd.Wait()
}
