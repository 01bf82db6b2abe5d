// Copyright 2026 The Spatialtrace Authors
// SPDX-License-Identifier: Apache-2.0

package collector

import (
	"encoding/json"
	"net/http"

	"github.com/spatialtrace/spatialtrace/lib/compress"
	"github.com/spatialtrace/spatialtrace/lib/digest"
	"github.com/spatialtrace/spatialtrace/lib/netutil"
	"github.com/spatialtrace/spatialtrace/lib/schema/xr"
	"github.com/spatialtrace/spatialtrace/lib/xrapi"
	"github.com/spatialtrace/spatialtrace/transport"
)

func (c *Collector) handleGrant(w http.ResponseWriter, r *http.Request) {
	body, err := netutil.ReadRequest(r)
	if err != nil {
		netutil.WriteError(w, http.StatusRequestEntityTooLarge, err.Error())
		return
	}
	var request struct {
		AppKey    string `json:"appkey"`
		SessionID string `json:"sessionId"`
	}
	if err := json.Unmarshal(body, &request); err != nil || request.AppKey == "" {
		netutil.WriteError(w, http.StatusBadRequest, "appkey is required")
		return
	}
	grant, err := c.seal(c.issue(request.AppKey))
	if err != nil {
		netutil.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	c.logger.Info("session granted", "app_key", request.AppKey, "session_id", grant.SessionID, "prior_session_id", request.SessionID)
	netutil.WriteJSON(w, http.StatusOK, grant)
}

func (c *Collector) handleIngest(w http.ResponseWriter, r *http.Request) {
	c.mu.Lock()
	reject, failStatus := c.rejectTokens, c.failStatus
	c.mu.Unlock()
	if reject {
		netutil.WriteError(w, http.StatusUnauthorized, transport.InvalidTokenMessage)
		return
	}
	if failStatus != 0 {
		netutil.WriteError(w, failStatus, "ingest unavailable")
		return
	}

	body, err := netutil.ReadRequest(r)
	if err != nil {
		netutil.WriteError(w, http.StatusRequestEntityTooLarge, err.Error())
		return
	}
	algorithm, err := compress.Parse(r.Header.Get("Content-Encoding"))
	if err != nil {
		netutil.WriteError(w, http.StatusUnsupportedMediaType, err.Error())
		return
	}
	payload, err := compress.Decode(body, algorithm, netutil.MaxRequestSize)
	if err != nil {
		netutil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	sum := digest.Batch(payload).String()
	if claimed := r.Header.Get(xrapi.HeaderBatchDigest); claimed != "" && claimed != sum {
		netutil.WriteError(w, http.StatusBadRequest, "batch digest mismatch")
		return
	}

	var batch xr.Batch
	if err := json.Unmarshal(payload, &batch); err != nil {
		netutil.WriteError(w, http.StatusBadRequest, "malformed batch: "+err.Error())
		return
	}
	if status, message := c.checkBatch(batch.AppKey, batch.APIVersion, batch.Items); status != 0 {
		netutil.WriteError(w, status, message)
		return
	}
	c.record(Delivery{Via: "http", AppKey: batch.AppKey, SessionID: batch.Items[0].SessionID, Records: batch.Items, Digest: sum})
	netutil.WriteJSON(w, http.StatusOK, map[string]int{"accepted": len(batch.Items)})
}

// checkBatch validates a batch's records against the sessions issued
// for appKey. It returns a zero status when the batch is acceptable.
func (c *Collector) checkBatch(appKey, apiVersion string, items []xr.Record) (int, string) {
	if apiVersion != xr.APIVersion {
		return http.StatusBadRequest, "unsupported apiver " + apiVersion
	}
	if len(items) == 0 || len(items) > xr.MaxBatchRecords {
		return http.StatusBadRequest, "a batch holds 1 to 20 records"
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, record := range items {
		if err := record.Validate(); err != nil {
			return http.StatusBadRequest, err.Error()
		}
		s, ok := c.sessions[record.SessionID]
		if !ok {
			return http.StatusBadRequest, "unknown session " + record.SessionID
		}
		if appKey != "" && s.appKey != appKey {
			return http.StatusForbidden, "session belongs to another app"
		}
	}
	return 0, ""
}

func (c *Collector) handleSurvey(w http.ResponseWriter, r *http.Request) {
	body, err := netutil.ReadRequest(r)
	if err != nil {
		netutil.WriteError(w, http.StatusRequestEntityTooLarge, err.Error())
		return
	}
	var rating xr.SurveyRating
	if err := json.Unmarshal(body, &rating); err != nil {
		netutil.WriteError(w, http.StatusBadRequest, "malformed rating")
		return
	}
	if rating.Rating < 1 || rating.Rating > 5 || rating.AppKey == "" {
		netutil.WriteError(w, http.StatusBadRequest, "rating must be 1 to 5 with an appkey")
		return
	}
	c.mu.Lock()
	c.surveys = append(c.surveys, rating)
	c.mu.Unlock()
	netutil.WriteJSON(w, http.StatusCreated, rating)
}
