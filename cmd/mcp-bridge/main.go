// mcp-bridge exposes the stdio gateway over TCP for clients that cannot
// spawn a subprocess. Each connection gets its own gateway process, so
// sessions never share JSON-RPC streams.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net"
	"os"
	"os/exec"
	"os/signal"
	"sync"
	"syscall"

	"github.com/google/uuid"
)

// Bridge accepts TCP connections and pairs each with a gateway process
type Bridge struct {
	port        int
	host        string
	gatewayPath string
	listener    net.Listener
	sessions    map[string]*Session
	mu          sync.RWMutex
}

// Session is one client connection wired to one gateway process
type Session struct {
	id      string
	conn    net.Conn
	process *exec.Cmd
	stdin   io.WriteCloser
	stdout  io.ReadCloser
	stderr  io.ReadCloser
	done    chan struct{}
	mu      sync.Mutex
}

func main() {
	var (
		port        = flag.Int("port", 8080, "TCP server port")
		host        = flag.String("host", "localhost", "TCP server host")
		gatewayPath = flag.String("gateway", "./bin/mcp-server", "Path to gateway binary")
	)
	flag.Parse()

	bridge := &Bridge{
		port:        *port,
		host:        *host,
		gatewayPath: *gatewayPath,
		sessions:    make(map[string]*Session),
	}

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Set up signal handling
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// Start the bridge server
	go func() {
		if err := bridge.Start(ctx); err != nil {
			log.Printf("Bridge server error: %v", err)
			cancel()
		}
	}()

	// Wait for shutdown signal
	select {
	case <-sigChan:
		log.Println("Received shutdown signal, gracefully shutting down...")
	case <-ctx.Done():
		log.Println("Context cancelled, shutting down...")
	}

	// Graceful shutdown
	if err := bridge.Shutdown(); err != nil {
		log.Printf("Shutdown error: %v", err)
	}
}

func (b *Bridge) Start(ctx context.Context) error {
	var err error
	b.listener, err = net.Listen("tcp", fmt.Sprintf("%s:%d", b.host, b.port))
	if err != nil {
		return fmt.Errorf("failed to start listener: %v", err)
	}

	log.Printf("MCP bridge listening on %s:%d", b.host, b.port)
	log.Printf("Using gateway binary: %s", b.gatewayPath)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
			conn, err := b.listener.Accept()
			if err != nil {
				select {
				case <-ctx.Done():
					return ctx.Err()
				default:
					log.Printf("Accept error: %v", err)
					continue
				}
			}

			// Handle each connection in a separate goroutine
			go b.handleConnection(conn)
		}
	}
}

func (b *Bridge) Shutdown() error {
	if b.listener != nil {
		b.listener.Close()
	}

	// Close all sessions
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, session := range b.sessions {
		session.Close()
	}

	log.Println("MCP bridge shutdown completed")
	return nil
}

func (b *Bridge) handleConnection(conn net.Conn) {
	sessionID := uuid.NewString()
	log.Printf("New connection from %s (session: %s)", conn.RemoteAddr(), sessionID)

	session, err := b.createSession(sessionID, conn)
	if err != nil {
		log.Printf("Failed to create session %s: %v", sessionID, err)
		conn.Close()
		return
	}

	b.mu.Lock()
	b.sessions[sessionID] = session
	b.mu.Unlock()

	session.Handle()

	b.mu.Lock()
	delete(b.sessions, sessionID)
	b.mu.Unlock()

	log.Printf("Session %s ended", sessionID)
}

func (b *Bridge) createSession(id string, conn net.Conn) (*Session, error) {
	// The gateway inherits the bridge's environment, so X402_* variables
	// set on the bridge apply to every session
	cmd := exec.Command(b.gatewayPath)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create stdin pipe: %v", err)
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		stdin.Close()
		return nil, fmt.Errorf("failed to create stdout pipe: %v", err)
	}

	stderr, err := cmd.StderrPipe()
	if err != nil {
		stdin.Close()
		stdout.Close()
		return nil, fmt.Errorf("failed to create stderr pipe: %v", err)
	}

	if err := cmd.Start(); err != nil {
		stdin.Close()
		stdout.Close()
		stderr.Close()
		return nil, fmt.Errorf("failed to start gateway: %v", err)
	}

	return &Session{
		id:      id,
		conn:    conn,
		process: cmd,
		stdin:   stdin,
		stdout:  stdout,
		stderr:  stderr,
		done:    make(chan struct{}),
	}, nil
}

func (s *Session) Handle() {
	defer s.Close()

	var wg sync.WaitGroup

	// Client -> gateway
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.forwardClientToGateway()
	}()

	// Gateway -> client
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.forwardGatewayToClient()
	}()

	// Relay gateway stderr into the bridge log
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.relayGatewayErrors()
	}()

	wg.Wait()
}

func (s *Session) forwardClientToGateway() {
	scanner := bufio.NewScanner(s.conn)
	encoder := json.NewEncoder(s.stdin)

	for scanner.Scan() {
		line := scanner.Text()

		// Only well-formed JSON crosses into the gateway's stdin
		var message json.RawMessage
		if err := json.Unmarshal([]byte(line), &message); err != nil {
			log.Printf("Session %s: Invalid JSON from client: %v", s.id, err)
			continue
		}

		if err := encoder.Encode(message); err != nil {
			log.Printf("Session %s: Error forwarding to gateway: %v", s.id, err)
			return
		}
	}

	if err := scanner.Err(); err != nil {
		log.Printf("Session %s: Client read error: %v", s.id, err)
	}
}

func (s *Session) forwardGatewayToClient() {
	scanner := bufio.NewScanner(s.stdout)

	for scanner.Scan() {
		if _, err := fmt.Fprintf(s.conn, "%s\n", scanner.Text()); err != nil {
			log.Printf("Session %s: Error forwarding to client: %v", s.id, err)
			return
		}
	}

	if err := scanner.Err(); err != nil {
		log.Printf("Session %s: Gateway read error: %v", s.id, err)
	}
}

func (s *Session) relayGatewayErrors() {
	scanner := bufio.NewScanner(s.stderr)

	for scanner.Scan() {
		log.Printf("Session %s: gateway: %s", s.id, scanner.Text())
	}
}

func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	select {
	case <-s.done:
		return // Already closed
	default:
		close(s.done)
	}

	if s.conn != nil {
		s.conn.Close()
	}

	if s.stdin != nil {
		s.stdin.Close()
	}
	if s.stdout != nil {
		s.stdout.Close()
	}
	if s.stderr != nil {
		s.stderr.Close()
	}

	if s.process != nil {
		if err := s.process.Process.Kill(); err != nil {
			log.Printf("Session %s: Error killing gateway process: %v", s.id, err)
		}
		s.process.Wait() // Clean up zombie process
	}
}
