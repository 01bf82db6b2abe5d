// Copyright 2026 The Spatialtrace Authors
// SPDX-License-Identifier: Apache-2.0

package xrapi_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/spatialtrace/spatialtrace/lib/collector"
	"github.com/spatialtrace/spatialtrace/lib/compress"
	"github.com/spatialtrace/spatialtrace/lib/schema/xr"
	"github.com/spatialtrace/spatialtrace/lib/xrapi"
)

func newClient(t *testing.T) (*xrapi.Client, *collector.Collector) {
	t.Helper()
	backend := collector.New(collector.Options{})
	server := httptest.NewServer(backend.Handler())
	t.Cleanup(server.Close)
	return xrapi.New(server.URL+"/", server.Client(), nil), backend
}

func TestRequestStreamAndSendBatch(t *testing.T) {
	client, backend := newClient(t)
	ctx := context.Background()

	grant, err := client.RequestStream(ctx, "app-key", "")
	if err != nil {
		t.Fatalf("RequestStream: %v", err)
	}
	if grant.SessionID == "" || grant.DataStream != "xr-analytics" {
		t.Fatalf("grant = %+v", grant)
	}

	records := make([]xr.Record, 12)
	for i := range records {
		records[i] = xr.Record{
			APIVersion: xr.APIVersion,
			SessionID:  grant.SessionID,
			Timestamp:  int64(1000 + i),
			EventType:  xr.EventUserPosition,
			Data:       xr.Pose{Position: xr.Vector3{X: float64(i)}}.Fields(),
		}
	}
	batch := xr.Batch{AppKey: "app-key", APIVersion: xr.APIVersion, Items: records}
	if err := client.SendBatch(ctx, batch, compress.Zstd); err != nil {
		t.Fatalf("SendBatch: %v", err)
	}
	got := backend.Records()
	if len(got) != 12 {
		t.Fatalf("collector holds %d records, want 12", len(got))
	}
	if got[11].Timestamp != 1011 {
		t.Errorf("last record timestamp = %d", got[11].Timestamp)
	}
}

func TestStatusError(t *testing.T) {
	client, backend := newClient(t)
	ctx := context.Background()
	grant, err := client.RequestStream(ctx, "app-key", "")
	if err != nil {
		t.Fatalf("RequestStream: %v", err)
	}
	backend.RejectTokens(true)

	batch := xr.Batch{AppKey: "app-key", APIVersion: xr.APIVersion, Items: []xr.Record{{
		APIVersion: xr.APIVersion, SessionID: grant.SessionID, EventType: xr.EventUserPosition, Data: map[string]any{},
	}}}
	err = client.SendBatch(ctx, batch, compress.None)
	var status *xrapi.StatusError
	if !errors.As(err, &status) {
		t.Fatalf("SendBatch error = %v, want StatusError", err)
	}
	if !status.Unauthorized() || status.Status != http.StatusUnauthorized {
		t.Errorf("status = %+v", status)
	}
	if status.Message != "The security token included in the request is invalid." {
		t.Errorf("message = %q", status.Message)
	}
}

func TestSubmitSurvey(t *testing.T) {
	client, backend := newClient(t)
	rating := xr.SurveyRating{SessionID: "s-1", AppKey: "app-key", Rating: 5}
	if err := client.SubmitSurvey(context.Background(), rating); err != nil {
		t.Fatalf("SubmitSurvey: %v", err)
	}
	if got := backend.Surveys(); len(got) != 1 || got[0] != rating {
		t.Errorf("Surveys() = %+v", got)
	}
}
