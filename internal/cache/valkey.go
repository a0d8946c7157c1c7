package cache

import (
	"bufio"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"time"
)

// ValkeyConfig holds connection parameters for a Valkey/Redis-compatible
// server used to cache team context and analysis snapshots.
type ValkeyConfig struct {
	Addr         string
	Username     string
	Password     string
	DB           int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	MaxRetries   int
	TLS          bool
}

// ValkeyProvider implements Provider over a plain RESP connection per call.
// The engine's cache traffic is low-rate (one context lookup per analysis
// pass), so connection pooling is not worth its complexity here.
type ValkeyProvider struct {
	cfg ValkeyConfig
}

// NewValkeyProvider validates connectivity with a ping and returns the
// provider, failing fast on bad credentials or an unreachable address.
func NewValkeyProvider(cfg ValkeyConfig) (*ValkeyProvider, error) {
	if cfg.Addr == "" {
		return nil, errors.New("valkey addr is required")
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 2 * time.Second
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = 500 * time.Millisecond
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 500 * time.Millisecond
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 1
	}

	p := &ValkeyProvider{cfg: cfg}
	ctx, cancel := context.WithTimeout(context.Background(), cfg.DialTimeout)
	defer cancel()
	if err := p.ping(ctx); err != nil {
		return nil, err
	}
	return p, nil
}

// Get fetches bytes by key, returning ErrCacheMiss when absent.
func (p *ValkeyProvider) Get(ctx context.Context, key string) ([]byte, error) {
	var payload []byte
	err := p.withConn(ctx, func(c *respConn) error {
		if err := c.write("GET", []byte(key)); err != nil {
			return err
		}
		reply, err := c.read()
		if err != nil {
			return err
		}
		if reply.isNil {
			return ErrCacheMiss
		}
		payload = reply.data
		return nil
	})
	return payload, err
}

// Set stores bytes under key with an optional TTL.
func (p *ValkeyProvider) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return p.withConn(ctx, func(c *respConn) error {
		args := [][]byte{[]byte(key), value}
		if ttl > 0 {
			args = append(args, []byte("PX"), []byte(strconv.FormatInt(ttl.Milliseconds(), 10)))
		}
		if err := c.write("SET", args...); err != nil {
			return err
		}
		reply, err := c.read()
		if err != nil {
			return err
		}
		if string(reply.data) != "OK" {
			return fmt.Errorf("unexpected SET reply: %s", reply.data)
		}
		return nil
	})
}

// SetNX stores the value only when the key is absent.
func (p *ValkeyProvider) SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	var stored bool
	err := p.withConn(ctx, func(c *respConn) error {
		args := [][]byte{[]byte(key), value}
		if ttl > 0 {
			args = append(args, []byte("PX"), []byte(strconv.FormatInt(ttl.Milliseconds(), 10)))
		}
		args = append(args, []byte("NX"))
		if err := c.write("SET", args...); err != nil {
			return err
		}
		reply, err := c.read()
		if err != nil {
			return err
		}
		stored = !reply.isNil
		return nil
	})
	return stored, err
}

// Del removes a key.
func (p *ValkeyProvider) Del(ctx context.Context, key string) error {
	return p.withConn(ctx, func(c *respConn) error {
		if err := c.write("DEL", []byte(key)); err != nil {
			return err
		}
		_, err := c.read()
		return err
	})
}

// Close is a no-op; connections are per-call.
func (p *ValkeyProvider) Close() error { return nil }

func (p *ValkeyProvider) ping(ctx context.Context) error {
	return p.withConn(ctx, func(c *respConn) error {
		if err := c.write("PING"); err != nil {
			return err
		}
		reply, err := c.read()
		if err != nil {
			return err
		}
		if string(reply.data) != "PONG" {
			return fmt.Errorf("unexpected PING reply: %s", reply.data)
		}
		return nil
	})
}

func (p *ValkeyProvider) withConn(ctx context.Context, fn func(*respConn) error) error {
	var lastErr error
	for attempt := 0; attempt < p.cfg.MaxRetries; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		conn, err := p.dial(ctx)
		if err == nil {
			err = p.handshake(conn)
			if err == nil {
				err = fn(conn)
			}
			conn.close()
			if err == nil {
				return nil
			}
		}
		lastErr = err
		if !retryable(err) || attempt == p.cfg.MaxRetries-1 {
			return err
		}
		time.Sleep(time.Duration(1<<attempt) * 25 * time.Millisecond)
	}
	return lastErr
}

func (p *ValkeyProvider) dial(ctx context.Context) (*respConn, error) {
	dialer := net.Dialer{Timeout: p.cfg.DialTimeout}
	var (
		conn net.Conn
		err  error
	)
	if p.cfg.TLS {
		host, _, splitErr := net.SplitHostPort(p.cfg.Addr)
		if splitErr != nil {
			host = p.cfg.Addr
		}
		conn, err = tls.DialWithDialer(&dialer, "tcp", p.cfg.Addr, &tls.Config{
			MinVersion: tls.VersionTLS12,
			ServerName: host,
		})
	} else {
		conn, err = dialer.DialContext(ctx, "tcp", p.cfg.Addr)
	}
	if err != nil {
		return nil, err
	}
	return &respConn{
		conn:         conn,
		reader:       bufio.NewReader(conn),
		writer:       bufio.NewWriter(conn),
		readTimeout:  p.cfg.ReadTimeout,
		writeTimeout: p.cfg.WriteTimeout,
	}, nil
}

func (p *ValkeyProvider) handshake(c *respConn) error {
	if p.cfg.Password != "" {
		args := [][]byte{}
		if p.cfg.Username != "" {
			args = append(args, []byte(p.cfg.Username))
		}
		args = append(args, []byte(p.cfg.Password))
		if err := c.write("AUTH", args...); err != nil {
			return err
		}
		reply, err := c.read()
		if err != nil {
			return err
		}
		if !strings.EqualFold(string(reply.data), "OK") {
			return fmt.Errorf("auth failed: %s", reply.data)
		}
	}
	if p.cfg.DB > 0 {
		if err := c.write("SELECT", []byte(strconv.Itoa(p.cfg.DB))); err != nil {
			return err
		}
		reply, err := c.read()
		if err != nil {
			return err
		}
		if !strings.EqualFold(string(reply.data), "OK") {
			return fmt.Errorf("select failed: %s", reply.data)
		}
	}
	return nil
}

type respReply struct {
	data []byte
	isNil bool
}

type respConn struct {
	conn         net.Conn
	reader       *bufio.Reader
	writer       *bufio.Writer
	readTimeout  time.Duration
	writeTimeout time.Duration
}

func (c *respConn) close() {
	_ = c.conn.Close()
}

func (c *respConn) write(command string, args ...[]byte) error {
	if err := c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
		return err
	}
	parts := append([][]byte{[]byte(command)}, args...)
	if _, err := fmt.Fprintf(c.writer, "*%d\r\n", len(parts)); err != nil {
		return err
	}
	for _, part := range parts {
		if _, err := fmt.Fprintf(c.writer, "$%d\r\n", len(part)); err != nil {
			return err
		}
		if _, err := c.writer.Write(part); err != nil {
			return err
		}
		if _, err := c.writer.WriteString("\r\n"); err != nil {
			return err
		}
	}
	return c.writer.Flush()
}

func (c *respConn) read() (respReply, error) {
	if err := c.conn.SetReadDeadline(time.Now().Add(c.readTimeout)); err != nil {
		return respReply{}, err
	}
	prefix, err := c.reader.ReadByte()
	if err != nil {
		return respReply{}, err
	}
	switch prefix {
	case '+', ':':
		line, err := c.readLine()
		return respReply{data: line}, err
	case '-':
		line, err := c.readLine()
		if err != nil {
			return respReply{}, err
		}
		return respReply{}, errors.New(string(line))
	case '$':
		line, err := c.readLine()
		if err != nil {
			return respReply{}, err
		}
		size, err := strconv.Atoi(string(line))
		if err != nil {
			return respReply{}, err
		}
		if size < 0 {
			return respReply{isNil: true}, nil
		}
		buf := make([]byte, size+2)
		if _, err := io.ReadFull(c.reader, buf); err != nil {
			return respReply{}, err
		}
		if buf[size] != '\r' || buf[size+1] != '\n' {
			return respReply{}, errors.New("malformed bulk string terminator")
		}
		return respReply{data: buf[:size]}, nil
	default:
		return respReply{}, fmt.Errorf("unexpected RESP prefix %q", prefix)
	}
}

func (c *respConn) readLine() ([]byte, error) {
	line, err := c.reader.ReadString('\n')
	if err != nil {
		return nil, err
	}
	return []byte(strings.TrimRight(line, "\r\n")), nil
}

func retryable(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
