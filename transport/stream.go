// Copyright 2026 The Spatialtrace Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/spatialtrace/spatialtrace/lib/compress"
	"github.com/spatialtrace/spatialtrace/lib/digest"
	"github.com/spatialtrace/spatialtrace/lib/schema/xr"
	"github.com/spatialtrace/spatialtrace/lib/sealed"
	"github.com/spatialtrace/spatialtrace/lib/version"
)

// defaultPutTimeout bounds one put round trip when the caller's
// context has no deadline.
const defaultPutTimeout = 30 * time.Second

// StreamOpener opens websocket senders to a managed data stream.
type StreamOpener struct {
	// Endpoint is the ws:// or wss:// URL of the stream gateway.
	Endpoint string

	// Keyring opens the sealed key fields of the grant. Nil accepts
	// only unsealed grants.
	Keyring *sealed.Keyring

	Compression compress.Algorithm

	// Dialer defaults to websocket.DefaultDialer.
	Dialer *websocket.Dialer

	Logger *slog.Logger
}

// Open opens the grant's credentials and connects to the stream.
func (o *StreamOpener) Open(ctx context.Context, grant xr.StreamGrant) (Sender, error) {
	opened, err := o.Keyring.OpenGrant(grant)
	if err != nil {
		return nil, fmt.Errorf("opening stream credentials: %w", err)
	}
	logger := o.Logger
	if logger == nil {
		logger = slog.Default()
	}
	sender := &streamSender{
		opener:     o,
		grant:      opened,
		signingKey: digest.SigningKey(opened.SecretKey),
		logger:     logger.With("component", "stream", "session_id", grant.SessionID, "stream", grant.DataStream),
	}
	if err := sender.connect(ctx); err != nil {
		return nil, err
	}
	return sender, nil
}

type streamSender struct {
	opener     *StreamOpener
	grant      xr.StreamGrant
	signingKey [32]byte
	logger     *slog.Logger

	mu       sync.Mutex
	conn     *websocket.Conn
	sequence uint64
	closed   bool
}

// connect dials the gateway. Must be called with mu held or before the
// sender is shared.
func (s *streamSender) connect(ctx context.Context) error {
	dialer := s.opener.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	header := http.Header{}
	header.Set(HeaderStreamName, s.grant.DataStream)
	header.Set(HeaderRegion, s.grant.InstanceRegion)
	header.Set(HeaderAccessKeyID, s.grant.AccessKeyID)
	header.Set("User-Agent", version.UserAgent())

	conn, response, err := dialer.DialContext(ctx, s.opener.Endpoint, header)
	if err != nil {
		if response != nil && (response.StatusCode == http.StatusUnauthorized || response.StatusCode == http.StatusForbidden) {
			return rejected(fmt.Sprintf("stream handshake: HTTP %d", response.StatusCode))
		}
		return fmt.Errorf("connecting to stream %s: %w", s.grant.DataStream, err)
	}
	s.conn = conn
	s.sequence = 0
	return nil
}

func (s *streamSender) Send(ctx context.Context, records []xr.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if s.conn == nil {
		s.logger.Info("reconnecting to stream")
		if err := s.connect(ctx); err != nil {
			return err
		}
	}

	payload, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("encoding records: %w", err)
	}
	encoded, applied, err := compress.Encode(payload, s.opener.Compression)
	if err != nil {
		return err
	}
	s.sequence++
	frame := PutFrame{
		Sequence:     s.sequence,
		StreamName:   s.grant.DataStream,
		PartitionKey: s.grant.SessionID,
		Encoding:     applied,
		Data:         encoded,
		Digest:       digest.Batch(payload).String(),
		Signature:    digest.Sign(s.signingKey, s.grant.DataStream, s.grant.SessionID, encoded).String(),
	}

	ack, err := s.roundTrip(ctx, frame)
	if err != nil {
		s.dropConn()
		return fmt.Errorf("putting record on %s: %w", s.grant.DataStream, err)
	}
	if ack.ErrorCode != "" {
		if authRejection(ack.ErrorCode) {
			return rejected(ack.ErrorMessage)
		}
		return fmt.Errorf("stream rejected put: %s: %s", ack.ErrorCode, ack.ErrorMessage)
	}
	s.logger.Debug("record put", "records", len(records), "bytes", len(encoded), "encoding", applied, "sequence_number", ack.SequenceNumber)
	return nil
}

// roundTrip writes frame and waits for its ack. Cancelling ctx
// unblocks both directions.
func (s *streamSender) roundTrip(ctx context.Context, frame PutFrame) (AckFrame, error) {
	var ack AckFrame
	conn := s.conn
	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(defaultPutTimeout)
	}
	stop := context.AfterFunc(ctx, func() {
		conn.SetReadDeadline(time.Unix(1, 0))
		conn.SetWriteDeadline(time.Unix(1, 0))
	})
	defer stop()

	conn.SetWriteDeadline(deadline)
	if err := conn.WriteJSON(frame); err != nil {
		return ack, err
	}
	conn.SetReadDeadline(deadline)
	if err := conn.ReadJSON(&ack); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ack, ctxErr
		}
		return ack, err
	}
	if ack.Sequence != frame.Sequence {
		return ack, fmt.Errorf("ack for sequence %d, expected %d", ack.Sequence, frame.Sequence)
	}
	return ack, nil
}

// dropConn discards a connection in an unknown state; the next Send
// redials.
func (s *streamSender) dropConn() {
	if s.conn != nil {
		s.conn.Close()
		s.conn = nil
	}
}

func (s *streamSender) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if s.conn == nil {
		return nil
	}
	deadline := time.Now().Add(time.Second)
	message := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session ended")
	s.conn.WriteControl(websocket.CloseMessage, message, deadline)
	err := s.conn.Close()
	s.conn = nil
	return err
}
