// Package datagram receives meter payloads over UDP and feeds them to the
// shared ingest pipeline.
package datagram

import (
	"context"
	"errors"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/smallbiznis/wisunmeter/internal/config"
	obscontext "github.com/smallbiznis/wisunmeter/internal/observability/context"
	obsmetrics "github.com/smallbiznis/wisunmeter/internal/observability/metrics"
	"github.com/smallbiznis/wisunmeter/internal/telemetry/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// MaxDatagramSize is the largest payload read from the socket.
const MaxDatagramSize = 64 * 1024

const (
	minReadBackoff = 5 * time.Millisecond
	maxReadBackoff = time.Second
)

type Params struct {
	fx.In

	Config    config.Config
	Log       *zap.Logger
	Telemetry domain.Service

	Metrics *obsmetrics.DatagramMetrics `optional:"true"`
}

type Server struct {
	addr      string
	log       *zap.Logger
	telemetry domain.Service
	metrics   *obsmetrics.DatagramMetrics
	reporter  domain.Reporter

	mu     sync.Mutex
	conn   net.PacketConn
	closed bool
	wg     sync.WaitGroup
}

func NewServer(p Params) *Server {
	log := p.Log.Named("datagram.server")
	return &Server{
		addr:      net.JoinHostPort(p.Config.UDPHost, strconv.Itoa(p.Config.UDPPort)),
		log:       log,
		telemetry: p.Telemetry,
		metrics:   p.Metrics,
		reporter:  NewLogReporter(log),
	}
}

// Listen binds the socket. The bound address is returned so callers using
// port 0 can find it.
func (s *Server) Listen() (net.Addr, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn != nil {
		return s.conn.LocalAddr(), nil
	}
	s.closed = false
	conn, err := net.ListenPacket("udp", s.addr)
	if err != nil {
		return nil, err
	}
	s.conn = conn
	s.log.Info("udp listener started", zap.String("addr", conn.LocalAddr().String()))
	return conn.LocalAddr(), nil
}

// Serve reads datagrams until the socket is closed. Each datagram is handled
// on its own goroutine.
func (s *Server) Serve(ctx context.Context) error {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn == nil {
		return errors.New("datagram server is not listening")
	}

	buf := make([]byte, MaxDatagramSize)
	backoff := time.Duration(0)
	for {
		n, peer, err := conn.ReadFrom(buf)
		if err != nil {
			if errors.Is(err, net.ErrClosed) || ctx.Err() != nil {
				return nil
			}
			backoff = nextBackoff(backoff)
			s.log.Warn("udp read failed", zap.Error(err), zap.Duration("backoff", backoff))
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(backoff):
			}
			continue
		}
		backoff = 0
		s.metrics.Received(n)

		data := make([]byte, n)
		copy(data, buf[:n])

		if !s.track() {
			return nil
		}
		go func(peer net.Addr) {
			defer s.wg.Done()
			s.HandleDatagram(ctx, data, peer)
		}(peer)
	}
}

// HandleDatagram runs one payload through the pipeline. Failures are logged
// and dropped; nothing is written back to the peer.
func (s *Server) HandleDatagram(ctx context.Context, data []byte, peer net.Addr) {
	ctx = obscontext.WithCorrelationID(ctx, ulid.Make().String())
	if peer != nil {
		ctx = withPeer(ctx, peer.String())
	}
	if len(data) == 0 {
		s.metrics.Dropped("empty")
		s.log.Debug("empty datagram dropped", peerField(ctx))
		return
	}
	s.telemetry.Handle(ctx, data, domain.SourceUDP, s.reporterFor())
}

// track registers one in-flight datagram unless Close has begun.
func (s *Server) track() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.wg.Add(1)
	return true
}

func nextBackoff(prev time.Duration) time.Duration {
	if prev < minReadBackoff {
		return minReadBackoff
	}
	next := prev * 2
	if next > maxReadBackoff {
		return maxReadBackoff
	}
	return next
}

func (s *Server) reporterFor() domain.Reporter {
	if s.metrics == nil {
		return s.reporter
	}
	return &countingReporter{Reporter: s.reporter, metrics: s.metrics}
}

// Close stops the read loop and waits for in-flight datagrams.
func (s *Server) Close() error {
	s.mu.Lock()
	conn := s.conn
	s.conn = nil
	s.closed = true
	s.mu.Unlock()

	var err error
	if conn != nil {
		err = conn.Close()
	}
	s.wg.Wait()
	return err
}
