// Package audit is an async, buffered writer for the tenant audit trail
// (SPEC_FULL.md Supplemented Features: manual alert actions record actor +
// detail). Entries are queued on a channel and flushed in batches so a
// mutation handler never blocks on the audit write.
package audit

import (
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"net/netip"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/frostguard/core/internal/authctx"
	"github.com/frostguard/core/internal/db"
)

// Entry is a single audit log entry to be written.
type Entry struct {
	TenantID   uuid.UUID
	UserID     *uuid.UUID
	Action     string
	Resource   string
	ResourceID uuid.UUID
	Detail     json.RawMessage
	IPAddress  *string
	UserAgent  *string
}

const (
	bufferSize    = 256
	flushInterval = 2 * time.Second
	flushBatch    = 32
)

// Writer batches entries and flushes them to Postgres on a timer, tolerant
// of a full buffer (entries are dropped with a warning rather than blocking
// the HTTP handler that produced them).
type Writer struct {
	pool    *pgxpool.Pool
	logger  *slog.Logger
	entries chan Entry
	wg      sync.WaitGroup
}

func NewWriter(pool *pgxpool.Pool, logger *slog.Logger) *Writer {
	return &Writer{pool: pool, logger: logger, entries: make(chan Entry, bufferSize)}
}

// Start launches the background flush loop and returns immediately. The
// loop drains any buffered entries and exits once ctx is cancelled.
func (w *Writer) Start(ctx context.Context) {
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.run(ctx)
	}()
}

// Close waits for the background loop to drain and exit.
func (w *Writer) Close() {
	close(w.entries)
	w.wg.Wait()
}

// Log enqueues an entry without blocking the caller.
func (w *Writer) Log(entry Entry) {
	select {
	case w.entries <- entry:
	default:
		w.logger.Warn("audit log buffer full, dropping entry", "action", entry.Action, "resource", entry.Resource)
	}
}

// LogFromRequest pulls tenant and identity off the request context and
// enqueues the entry — the convenience path HTTP handlers use after a
// mutation succeeds.
func (w *Writer) LogFromRequest(r *http.Request, tenantID uuid.UUID, action, resource string, resourceID uuid.UUID, detail json.RawMessage) {
	entry := Entry{TenantID: tenantID, Action: action, Resource: resource, ResourceID: resourceID, Detail: detail}

	if identity := authctx.FromContext(r.Context()); identity != nil && identity.UserID != uuid.Nil {
		id := identity.UserID
		entry.UserID = &id
	}

	if ip := clientIP(r); ip.IsValid() {
		s := ip.String()
		entry.IPAddress = &s
	}
	if ua := r.Header.Get("User-Agent"); ua != "" {
		entry.UserAgent = &ua
	}

	w.Log(entry)
}

func (w *Writer) run(ctx context.Context) {
	ticker := time.NewTicker(flushInterval)
	defer ticker.Stop()

	batch := make([]Entry, 0, flushBatch)
	flush := func() {
		if len(batch) == 0 {
			return
		}
		w.flush(batch)
		batch = batch[:0]
	}

	for {
		select {
		case entry, ok := <-w.entries:
			if !ok {
				flush()
				return
			}
			batch = append(batch, entry)
			if len(batch) >= flushBatch {
				flush()
			}
		case <-ticker.C:
			flush()
		case <-ctx.Done():
			for {
				select {
				case entry, ok := <-w.entries:
					if !ok {
						flush()
						return
					}
					batch = append(batch, entry)
				default:
					flush()
					return
				}
			}
		}
	}
}

func (w *Writer) flush(entries []Entry) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	q := db.New(w.pool)
	for _, e := range entries {
		if err := q.CreateAuditLogEntry(ctx, db.CreateAuditLogEntryParams{
			TenantID:   e.TenantID,
			UserID:     e.UserID,
			Action:     e.Action,
			Resource:   e.Resource,
			ResourceID: e.ResourceID,
			Detail:     e.Detail,
			IPAddress:  e.IPAddress,
			UserAgent:  e.UserAgent,
		}); err != nil {
			w.logger.Error("writing audit log entry", "error", err, "action", e.Action, "resource", e.Resource)
		}
	}
}

// clientIP prefers X-Forwarded-For / X-Real-IP over RemoteAddr.
func clientIP(r *http.Request) netip.Addr {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		parts := strings.SplitN(xff, ",", 2)
		if addr, err := netip.ParseAddr(strings.TrimSpace(parts[0])); err == nil {
			return addr
		}
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		if addr, err := netip.ParseAddr(strings.TrimSpace(xri)); err == nil {
			return addr
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	addr, _ := netip.ParseAddr(host)
	return addr
}
