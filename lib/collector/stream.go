// Copyright 2026 The Spatialtrace Authors
// SPDX-License-Identifier: Apache-2.0

package collector

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/spatialtrace/spatialtrace/lib/compress"
	"github.com/spatialtrace/spatialtrace/lib/digest"
	"github.com/spatialtrace/spatialtrace/lib/netutil"
	"github.com/spatialtrace/spatialtrace/lib/schema/xr"
	"github.com/spatialtrace/spatialtrace/transport"
)

func (c *Collector) handleStream(w http.ResponseWriter, r *http.Request) {
	accessKeyID := r.Header.Get(transport.HeaderAccessKeyID)
	c.mu.Lock()
	s, ok := c.accessKeys[accessKeyID]
	c.mu.Unlock()
	if !ok {
		netutil.WriteError(w, http.StatusUnauthorized, transport.InvalidTokenMessage)
		return
	}
	streamName := r.Header.Get(transport.HeaderStreamName)
	if streamName != c.options.StreamName {
		netutil.WriteError(w, http.StatusNotFound, "stream "+streamName+" not found")
		return
	}

	conn, err := c.upgrader.Upgrade(w, r, nil)
	if err != nil {
		c.logger.Warn("stream upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	for {
		var frame transport.PutFrame
		if err := conn.ReadJSON(&frame); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.logger.Debug("stream closed", "error", err)
			}
			return
		}
		ack := c.put(s, frame)
		if err := conn.WriteJSON(ack); err != nil {
			c.logger.Debug("writing ack failed", "error", err)
			return
		}
	}
}

// put validates and stores one stream put.
func (c *Collector) put(s *session, frame transport.PutFrame) transport.AckFrame {
	ack := transport.AckFrame{Sequence: frame.Sequence}
	fail := func(code, message string) transport.AckFrame {
		ack.ErrorCode = code
		ack.ErrorMessage = message
		return ack
	}

	c.mu.Lock()
	reject := c.rejectTokens
	c.mu.Unlock()
	if reject {
		return fail(transport.ErrorCodeUnrecognizedClient, transport.InvalidTokenMessage)
	}
	signature, err := digest.Parse(frame.Signature)
	if err != nil || !digest.Verify(s.signingKey, frame.StreamName, frame.PartitionKey, frame.Data, signature) {
		return fail(transport.ErrorCodeInvalidSignature, "signature does not match")
	}
	payload, err := compress.Decode(frame.Data, frame.Encoding, netutil.MaxRequestSize)
	if err != nil {
		return fail("SerializationException", err.Error())
	}
	if digest.Batch(payload).String() != frame.Digest {
		return fail("SerializationException", "digest mismatch")
	}
	var records []xr.Record
	if err := json.Unmarshal(payload, &records); err != nil {
		return fail("SerializationException", err.Error())
	}
	if status, message := c.checkBatch(s.appKey, xr.APIVersion, records); status != 0 {
		return fail("ValidationException", message)
	}
	for _, record := range records {
		if record.SessionID != frame.PartitionKey {
			return fail("ValidationException", "record session does not match partition key")
		}
	}

	c.record(Delivery{Via: "stream", AppKey: s.appKey, SessionID: frame.PartitionKey, Records: records, Digest: frame.Digest})
	c.mu.Lock()
	c.putSequence++
	ack.SequenceNumber = fmt.Sprintf("%020d", c.putSequence)
	c.mu.Unlock()
	ack.ShardID = "shardId-000000000000"
	return ack
}
