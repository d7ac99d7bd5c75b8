package flowdecode

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/flowbridge/flowdecode/decode"
	"github.com/flowbridge/flowdecode/format"
	_ "github.com/flowbridge/flowdecode/format/json"
	"github.com/flowbridge/flowdecode/metrics"
	"github.com/flowbridge/flowdecode/producer"
	"github.com/flowbridge/flowdecode/state"
	"github.com/flowbridge/flowdecode/transport"
	_ "github.com/flowbridge/flowdecode/transport/file"
)

// Collector owns the UDP listener, the decode dispatcher, the template
// registry decorator chain, and the output pipeline, and runs them until
// Stop is called. The dispatcher sees the decorator chain (base -> TTL ->
// metrics); the /templates endpoint and the flush loop read the base
// registry directly, since Put through any decorator in the chain
// mutates the same underlying template maps.
type Collector struct {
	cfg Config
	log *slog.Logger

	conn       *net.UDPConn
	dispatcher *decode.Dispatcher

	base      *state.Registry
	expiring  *state.ExpiringRegistry
	persisted *state.PersistentRegistry

	formatter *format.Format
	sink      *transport.Transport

	httpServer *http.Server

	flushStop chan struct{}

	wg sync.WaitGroup
}

// New builds a Collector from cfg without starting it.
func New(cfg Config, log *slog.Logger) (*Collector, error) {
	base := state.NewRegistry()

	var persisted *state.PersistentRegistry
	if cfg.SnapshotPath != "" {
		persisted = state.NewPersistentRegistry(base, state.NewAtomicFileWriter(cfg.SnapshotPath))
		if err := persisted.Load(); err != nil {
			return nil, fmt.Errorf("load template snapshot: %w", err)
		}
	}

	expiring := state.NewExpiringRegistry(base, cfg.TemplateTTL)
	top := metrics.NewPromRegistry(expiring)

	dispatcher := decode.NewDispatcher(top, cfg.DeferredMax, cfg.DeferredAge)

	fmtDriver, err := format.FindFormat("json")
	if err != nil {
		return nil, fmt.Errorf("find json format: %w", err)
	}

	sink, err := transport.FindTransport("file")
	if err != nil {
		return nil, fmt.Errorf("find file transport: %w", err)
	}

	return &Collector{
		cfg:        cfg,
		log:        log,
		dispatcher: dispatcher,
		base:       base,
		expiring:   expiring,
		persisted:  persisted,
		formatter:  fmtDriver,
		sink:       sink,
		flushStop:  make(chan struct{}),
	}, nil
}

// Start binds the UDP socket, launches the receive loop, the template
// sweeper, the snapshot flusher, and the metrics/templates HTTP server.
// It returns once the socket is bound; background work continues until
// Stop is called.
func (c *Collector) Start(ctx context.Context) error {
	addr, err := net.ResolveUDPAddr("udp", c.cfg.Listen)
	if err != nil {
		return fmt.Errorf("resolve listen address %s: %w", c.cfg.Listen, err)
	}
	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", c.cfg.Listen, err)
	}
	c.conn = conn

	c.expiring.StartSweeper(c.cfg.SweepEvery)

	c.wg.Add(1)
	go c.receiveLoop()

	if c.persisted != nil && c.cfg.FlushEvery > 0 {
		c.wg.Add(1)
		go c.flushLoop()
	}

	if c.cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		mux.HandleFunc("/templates", c.handleTemplates)
		c.httpServer = &http.Server{Addr: c.cfg.MetricsAddr, Handler: mux}
		c.wg.Add(1)
		go func() {
			defer c.wg.Done()
			if err := c.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				c.log.Error("metrics server stopped", "error", err)
			}
		}()
	}

	c.log.Info("collector started", "listen", c.cfg.Listen, "metrics_addr", c.cfg.MetricsAddr)
	return nil
}

// Stop closes the listener and background loops and waits for them to
// exit, flushing a final template snapshot if persistence is enabled.
func (c *Collector) Stop(ctx context.Context) error {
	if c.conn != nil {
		c.conn.Close()
	}
	c.expiring.Close()
	close(c.flushStop)

	if c.httpServer != nil {
		_ = c.httpServer.Shutdown(ctx)
	}

	c.wg.Wait()

	if c.persisted != nil {
		if err := c.persisted.Save(); err != nil {
			return fmt.Errorf("final template snapshot flush: %w", err)
		}
	}
	return nil
}

func (c *Collector) receiveLoop() {
	defer c.wg.Done()
	buf := make([]byte, 65535)
	for {
		n, raddr, err := c.conn.ReadFromUDP(buf)
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			c.log.Debug("udp read error", "error", err)
			continue
		}
		data := append([]byte(nil), buf[:n]...)
		c.handleDatagram(data, raddr.String())
	}
}

func (c *Collector) handleDatagram(data []byte, addr string) {
	receiptTime := time.Now()
	pkt, err := c.dispatcher.Decode(data, addr, receiptTime)
	if err != nil {
		c.log.Debug("decode failed", "exporter", addr, "error", err)
		return
	}
	if pkt == nil {
		return // deferred pending a template
	}
	c.emit(pkt, addr)

	if pkt.Version == 9 || pkt.Version == 10 {
		for _, resolved := range c.dispatcher.DrainResolved(addr, pkt.Exporter.DomainID) {
			c.emit(resolved.Packet, addr)
		}
	}
}

func (c *Collector) emit(pkt *decode.ExportPacket, addr string) {
	rec, err := producer.FromPacket(pkt, addr)
	if err != nil {
		c.log.Debug("produce failed", "exporter", addr, "error", err)
		return
	}
	key, payload, err := c.formatter.Format(rec)
	if err != nil {
		c.log.Debug("format failed", "exporter", addr, "error", err)
		return
	}
	if err := c.sink.Send(key, payload); err != nil {
		c.log.Warn("transport send failed", "exporter", addr, "error", err)
	}
}

func (c *Collector) flushLoop() {
	defer c.wg.Done()
	ticker := time.NewTicker(c.cfg.FlushEvery)
	defer ticker.Stop()
	for {
		select {
		case <-c.flushStop:
			return
		case <-ticker.C:
			if err := c.persisted.Save(); err != nil {
				c.log.Warn("template snapshot flush failed", "error", err)
			}
			metrics.ExporterNamespaces.Set(float64(len(c.base.Keys())))
		}
	}
}

// templateListEntry is the /templates endpoint's JSON shape for one
// exporter's installed templates.
type templateListEntry struct {
	Exporter  string   `json:"exporter"`
	Templates []uint16 `json:"template_ids"`
}

func (c *Collector) handleTemplates(w http.ResponseWriter, r *http.Request) {
	snapshot := c.base.Snapshot()
	out := make([]templateListEntry, 0, len(snapshot))
	for key, templates := range snapshot {
		ids := make([]uint16, 0, len(templates))
		for id := range templates {
			ids = append(ids, id)
		}
		out = append(out, templateListEntry{Exporter: key.String(), Templates: ids})
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(out)
}
