package webhook_test

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fluxgraph/fluxgraph/engine/core"
	"github.com/fluxgraph/fluxgraph/engine/webhook"
)

func sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func newTestOrchestrator(t *testing.T) (*webhook.Orchestrator, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return webhook.NewOrchestrator(rdb), rdb
}

func TestOrchestrator_ForwardsValidDelivery(t *testing.T) {
	o, rdb := newTestOrchestrator(t)
	wfID := core.MustNewID()
	o.Register(webhook.RegistryEntry{WorkflowID: wfID, Config: webhook.Config{Slug: "orders"}})

	forwarded, err := o.Process(context.Background(), "orders", "", []byte(`{"id":1}`))
	require.NoError(t, err)
	assert.True(t, forwarded)

	n, err := rdb.XLen(context.Background(), webhook.DefaultStreamName).Result()
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestOrchestrator_RejectsBadSignature(t *testing.T) {
	o, _ := newTestOrchestrator(t)
	wfID := core.MustNewID()
	o.Register(webhook.RegistryEntry{
		WorkflowID: wfID,
		Config: webhook.Config{
			Slug:   "secure",
			Verify: &webhook.VerifySpec{Header: "X-Signature", Secret: "topsecret"},
		},
	})

	_, err := o.Process(context.Background(), "secure", "deadbeef", []byte(`{}`))
	assert.ErrorIs(t, err, webhook.ErrSignatureInvalid)
}

func TestOrchestrator_AcceptsValidSignature(t *testing.T) {
	o, _ := newTestOrchestrator(t)
	wfID := core.MustNewID()
	secret := "topsecret"
	o.Register(webhook.RegistryEntry{
		WorkflowID: wfID,
		Config: webhook.Config{
			Slug:   "secure",
			Verify: &webhook.VerifySpec{Header: "X-Signature", Secret: secret},
		},
	})
	body := []byte(`{"ok":true}`)

	forwarded, err := o.Process(context.Background(), "secure", sign(secret, body), body)
	require.NoError(t, err)
	assert.True(t, forwarded)
}

func TestOrchestrator_DropsDuplicateDelivery(t *testing.T) {
	o, _ := newTestOrchestrator(t)
	wfID := core.MustNewID()
	o.Register(webhook.RegistryEntry{
		WorkflowID: wfID,
		Config: webhook.Config{
			Slug:   "orders",
			Dedupe: &webhook.DedupeSpec{KeyPath: "id", TTL: time.Minute},
		},
	})
	body := []byte(`{"id":"abc"}`)

	first, err := o.Process(context.Background(), "orders", "", body)
	require.NoError(t, err)
	assert.True(t, first)

	second, err := o.Process(context.Background(), "orders", "", body)
	require.NoError(t, err)
	assert.False(t, second)
}

func TestOrchestrator_EventFilterDropsNonMatching(t *testing.T) {
	o, _ := newTestOrchestrator(t)
	wfID := core.MustNewID()
	o.Register(webhook.RegistryEntry{
		WorkflowID: wfID,
		Config: webhook.Config{
			Slug:   "orders",
			Events: &webhook.EventConfig{Filter: `event.status == "paid"`},
		},
	})

	forwarded, err := o.Process(context.Background(), "orders", "", []byte(`{"status":"pending"}`))
	require.NoError(t, err)
	assert.False(t, forwarded)

	forwarded, err = o.Process(context.Background(), "orders", "", []byte(`{"status":"paid"}`))
	require.NoError(t, err)
	assert.True(t, forwarded)
}

func TestOrchestrator_StaticContextMergedUnderBody(t *testing.T) {
	o, rdb := newTestOrchestrator(t)
	wfID := core.MustNewID()
	o.Register(webhook.RegistryEntry{
		WorkflowID: wfID,
		Config: webhook.Config{
			Slug:          "orders",
			StaticContext: map[string]any{"source": "shopify", "id": "default"},
		},
	})

	forwarded, err := o.Process(context.Background(), "orders", "", []byte(`{"id":"abc"}`))
	require.NoError(t, err)
	assert.True(t, forwarded)

	msgs, err := rdb.XRange(context.Background(), webhook.DefaultStreamName, "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	ctxJSON := msgs[0].Values["context"].(string)
	assert.Contains(t, ctxJSON, `"source":"shopify"`)
	assert.Contains(t, ctxJSON, `"id":"abc"`) // body overrides the static default
}

func TestOrchestrator_UnknownSlug(t *testing.T) {
	o, _ := newTestOrchestrator(t)
	_, err := o.Process(context.Background(), "missing", "", []byte(`{}`))
	assert.ErrorIs(t, err, webhook.ErrUnknownSlug)
}
