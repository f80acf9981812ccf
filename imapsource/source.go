// Package imapsource is the live-mailbox collaborator of the set engine.
//
// It owns everything the engine deliberately does not: resolving the
// full-mailbox sentinel against the server, executing batched UID commands
// (move, copy, flag changes) chunk by chunk, aggregating per-chunk results,
// and adapting the chunk size to observed command latency. The engine's
// sets stay pure values; all network state lives here.
package imapsource

import (
	"context"
	"crypto/tls"
	"fmt"
	"math"
	"time"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
	"github.com/emersion/go-sasl"

	"github.com/migadu/msgset/config"
	"github.com/migadu/msgset/consts"
	"github.com/migadu/msgset/logger"
	"github.com/migadu/msgset/msgset"
	"github.com/migadu/msgset/pkg/metrics"
	"github.com/migadu/msgset/pkg/retry"
)

// Source is an authenticated IMAP connection consuming and producing
// msgset values. It is not safe for concurrent use; IMAP sessions are
// single-threaded by nature.
type Source struct {
	client   *imapclient.Client
	cfg      config.IMAPConfig
	timeout  time.Duration
	backoff  retry.BackoffConfig
	selected string
}

// Dial connects and authenticates using SASL PLAIN.
func Dial(cfg config.IMAPConfig) (*Source, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("imap address is required")
	}

	var client *imapclient.Client
	var err error
	if cfg.TLS {
		opts := &imapclient.Options{}
		if cfg.InsecureSkipVerify {
			opts.TLSConfig = &tls.Config{InsecureSkipVerify: true}
		}
		client, err = imapclient.DialTLS(cfg.Addr, opts)
	} else {
		client, err = imapclient.DialInsecure(cfg.Addr, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", cfg.Addr, err)
	}

	if err := client.Authenticate(sasl.NewPlainClient("", cfg.Username, cfg.Password)); err != nil {
		client.Close()
		return nil, fmt.Errorf("authentication failed for %s: %w", cfg.Username, err)
	}

	timeout, err := cfg.GetCommandTimeout()
	if err != nil {
		client.Close()
		return nil, err
	}

	logger.Info("connected to IMAP source", "addr", cfg.Addr, "username", cfg.Username)
	return &Source{
		client:  client,
		cfg:     cfg,
		timeout: timeout,
		backoff: retry.DefaultBackoffConfig(),
	}, nil
}

// Close logs out and drops the connection.
func (s *Source) Close() error {
	if s.client == nil {
		return nil
	}
	if err := s.client.Logout().Wait(); err != nil {
		return s.client.Close()
	}
	return nil
}

func (s *Source) ensureSelected(mailbox string) error {
	if mailbox == "" {
		return consts.ErrMailboxNotSelected
	}
	if s.selected == mailbox {
		return nil
	}
	start := time.Now()
	_, err := s.client.Select(mailbox, nil).Wait()
	observeCommand("select", start, err)
	if err != nil {
		return fmt.Errorf("failed to select %q: %w", mailbox, err)
	}
	s.selected = mailbox
	return nil
}

// SearchUIDs runs a UID SEARCH in mailbox and returns the matching UIDs as
// a set. A nil criteria searches for all messages.
func (s *Source) SearchUIDs(ctx context.Context, mailbox string, criteria *imap.SearchCriteria) (*msgset.Set, error) {
	if err := s.ensureSelected(mailbox); err != nil {
		return nil, err
	}
	if criteria == nil {
		criteria = &imap.SearchCriteria{}
	}

	start := time.Now()
	data, err := s.client.UIDSearch(criteria, nil).Wait()
	observeCommand("uid_search", start, err)
	if err != nil {
		return nil, fmt.Errorf("UID SEARCH failed in %q: %w", mailbox, err)
	}

	uids := data.AllUIDs()
	ids := make([]uint64, 0, len(uids))
	for _, uid := range uids {
		ids = append(ids, uint64(uid))
	}
	logger.DebugContext(ctx, "search complete", "mailbox", mailbox, "matches", len(ids))
	return msgset.New(mailbox, msgset.ModeUID, ids)
}

// ResolveAll expands the full-mailbox sentinel into a concrete set using
// the live mailbox. Concrete sets are returned unchanged. This is the only
// point where the sentinel meets the network.
func (s *Source) ResolveAll(ctx context.Context, set *msgset.Set) (*msgset.Set, error) {
	if !set.IsAll() {
		return set, nil
	}
	if err := s.ensureSelected(set.Scope()); err != nil {
		return nil, err
	}

	start := time.Now()
	if set.Mode() == msgset.ModeUID {
		data, err := s.client.UIDSearch(&imap.SearchCriteria{}, nil).Wait()
		observeCommand("uid_search", start, err)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve full mailbox %q: %w", set.Scope(), err)
		}
		uids := data.AllUIDs()
		ids := make([]uint64, 0, len(uids))
		for _, uid := range uids {
			ids = append(ids, uint64(uid))
		}
		return msgset.New(set.Scope(), msgset.ModeUID, ids)
	}

	data, err := s.client.Search(&imap.SearchCriteria{}, nil).Wait()
	observeCommand("search", start, err)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve full mailbox %q: %w", set.Scope(), err)
	}
	nums := data.AllSeqNums()
	ids := make([]uint64, 0, len(nums))
	for _, n := range nums {
		ids = append(ids, uint64(n))
	}
	return msgset.New(set.Scope(), msgset.ModeSeq, ids)
}

// MoveSet moves every message in set to dest, chunk by chunk. The sentinel
// is resolved first. Chunk failures do not abort the run; the report
// carries the per-chunk outcomes for the caller to aggregate.
func (s *Source) MoveSet(ctx context.Context, set *msgset.Set, dest string) (*BatchReport, error) {
	return s.runBatched(ctx, set, "move", dest, func(ctx context.Context, numSet imap.NumSet) error {
		_, err := s.client.Move(numSet, dest).Wait()
		return err
	})
}

// CopySet copies every message in set to dest, chunk by chunk.
func (s *Source) CopySet(ctx context.Context, set *msgset.Set, dest string) (*BatchReport, error) {
	return s.runBatched(ctx, set, "copy", dest, func(ctx context.Context, numSet imap.NumSet) error {
		_, err := s.client.Copy(numSet, dest).Wait()
		return err
	})
}

// AddFlags adds flags to every message in set, chunk by chunk.
func (s *Source) AddFlags(ctx context.Context, set *msgset.Set, flags []imap.Flag) (*BatchReport, error) {
	store := &imap.StoreFlags{Op: imap.StoreFlagsAdd, Silent: true, Flags: flags}
	return s.runBatched(ctx, set, "store", "", func(ctx context.Context, numSet imap.NumSet) error {
		return s.client.Store(numSet, store, nil).Close()
	})
}

// runBatched drives a UID command over batcher chunks with adaptive
// sizing: slow chunks halve the next chunk, fast ones double it.
func (s *Source) runBatched(ctx context.Context, set *msgset.Set, command, dest string,
	fn func(ctx context.Context, numSet imap.NumSet) error) (*BatchReport, error) {

	resolved, err := s.ResolveAll(ctx, set)
	if err != nil {
		return nil, err
	}
	if err := s.ensureSelected(resolved.Scope()); err != nil {
		return nil, err
	}

	sizer := newAdaptiveSizer(s.cfg.BatchSize)
	batcher, err := msgset.NewBatcher(resolved, sizer.size)
	if err != nil {
		return nil, err
	}

	report := &BatchReport{Command: command, Scope: resolved.Scope(), Destination: dest}
	for {
		if err := ctx.Err(); err != nil {
			// Stopping early is always safe; completed chunks stand.
			return report, err
		}

		chunk, ok := batcher.Next()
		if !ok {
			break
		}
		n, _ := chunk.Count()
		metrics.BatchChunksTotal.Inc()
		metrics.BatchChunkSize.Observe(float64(n))

		numSet, err := toNumSet(chunk)
		if err != nil {
			report.add(chunk, 0, err)
			continue
		}

		start := time.Now()
		err = retry.WithRetry(ctx, func() error {
			cmdCtx, cancel := context.WithTimeout(ctx, s.timeout)
			defer cancel()
			return fn(cmdCtx, numSet)
		}, s.backoff)
		elapsed := time.Since(start)
		observeCommand(command, start, err)
		report.add(chunk, elapsed, err)

		if err != nil {
			logger.WarnContext(ctx, "batched command chunk failed",
				"command", command, "scope", resolved.Scope(),
				"chunk", chunk.CompactString(), "error", err)
		}

		if next := sizer.adjust(elapsed); next != batcher.Size() {
			if err := batcher.SetSize(next); err == nil {
				logger.DebugContext(ctx, "adjusted batch size",
					"command", command, "size", next, "last_chunk_duration", elapsed)
			}
		}
	}
	return report, nil
}

// toNumSet converts a chunk into the go-imap number set matching its mode.
// Identifiers above the uint32 range cannot appear on the wire.
func toNumSet(set *msgset.Set) (imap.NumSet, error) {
	members := set.Members()
	if set.Mode() == msgset.ModeUID {
		var uids imap.UIDSet
		for _, r := range runs(members) {
			if r[1] > math.MaxUint32 {
				return nil, fmt.Errorf("identifier %d exceeds the UID range", r[1])
			}
			uids.AddRange(imap.UID(r[0]), imap.UID(r[1]))
		}
		return uids, nil
	}

	var seqs imap.SeqSet
	for _, r := range runs(members) {
		if r[1] > math.MaxUint32 {
			return nil, fmt.Errorf("identifier %d exceeds the sequence number range", r[1])
		}
		seqs.AddRange(uint32(r[0]), uint32(r[1]))
	}
	return seqs, nil
}

// runs splits an ascending member list into maximal consecutive [lo, hi]
// pairs, mirroring the compact string encoding.
func runs(members []uint64) [][2]uint64 {
	var out [][2]uint64
	for i := 0; i < len(members); {
		j := i
		for j+1 < len(members) && members[j+1] == members[j]+1 {
			j++
		}
		out = append(out, [2]uint64{members[i], members[j]})
		i = j + 1
	}
	return out
}

func observeCommand(command string, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.IMAPCommandsTotal.WithLabelValues(command, status).Inc()
	metrics.IMAPCommandDuration.WithLabelValues(command).Observe(time.Since(start).Seconds())
}
