package triggerhandlers

import (
	"context"
	"fmt"

	"github.com/fluxgraph/fluxgraph/engine/core"
	"github.com/fluxgraph/fluxgraph/engine/workflow"
	"github.com/fluxgraph/fluxgraph/pkg/logger"
	"github.com/go-resty/resty/v2"
)

// CredentialDecryptor unwraps an opaque, vault-stored bot token from a
// node's custom_config. The vault's cryptography itself is out of scope
// here; this is the narrow seam the executor's "services" bag exposes to
// trigger handlers that need a decrypted secret.
type CredentialDecryptor interface {
	Decrypt(ctx context.Context, encrypted string) (string, error)
}

// WebhookBotHandler installs and tears down a remote bot platform's
// webhook subscription so that inbound updates land on our HTTP surface
// ("e.g. webhook-bot" example), mirroring the original Telegram
// trigger handler's setWebhook/deleteWebhook calls.
type WebhookBotHandler struct {
	HTTPClient *resty.Client
	Decryptor CredentialDecryptor
	PublicBaseURL string // e.g. https://fluxgraph.example.com
}

// NewWebhookBotHandler returns a Handler that talks to a Telegram-shaped
// bot API (setWebhook/deleteWebhook), the shape every major chat-bot
// webhook API shares.
func NewWebhookBotHandler(client *resty.Client, decryptor CredentialDecryptor, publicBaseURL string) *WebhookBotHandler {
	return &WebhookBotHandler{HTTPClient: client, Decryptor: decryptor, PublicBaseURL: publicBaseURL}
}

func (h *WebhookBotHandler) webhookURL(workflowID core.ID, nodeID core.ID) string {
	return fmt.Sprintf("%s/webhooks/bot/%s/%s", h.PublicBaseURL, workflowID, nodeID)
}

func (h *WebhookBotHandler) botToken(ctx context.Context, node workflow.TriggerNodeSnapshot) (string, error) {
	encrypted, _ := node.CustomConfig["bot_token"].(string)
	if encrypted == "" {
		return "", fmt.Errorf("webhook-bot node %s has no bot_token", node.NodeID)
	}
	return h.Decryptor.Decrypt(ctx, encrypted)
}

// Handle installs the remote webhook subscription, idempotent since
// calling setWebhook again with the same URL is a no-op on the remote side.
func (h *WebhookBotHandler) Handle(ctx context.Context, node workflow.TriggerNodeSnapshot, workflowID core.ID) error {
	log := logger.FromContext(ctx)
	token, err := h.botToken(ctx, node)
	if err != nil {
		return err
	}
	apiBase, _ := node.CustomConfig["api_base_url"].(string)
	if apiBase == "" {
		apiBase = "https://api.telegram.org"
	}
	resp, err := h.HTTPClient.R().
		SetContext(ctx).
		SetFormData(map[string]string{"url": h.webhookURL(workflowID, node.NodeID)}).
		Post(fmt.Sprintf("%s/bot%s/setWebhook", apiBase, token))
	if err != nil {
		return fmt.Errorf("failed to install webhook: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("remote setWebhook failed: status %d", resp.StatusCode)
	}
	log.Info("installed webhook-bot subscription", "workflow_id", workflowID.String(), "node_id", node.NodeID.String())
	return nil
}

// Cleanup removes the remote webhook subscription.
func (h *WebhookBotHandler) Cleanup(ctx context.Context, node workflow.TriggerNodeSnapshot, workflowID core.ID) error {
	token, err := h.botToken(ctx, node)
	if err != nil {
		return err
	}
	apiBase, _ := node.CustomConfig["api_base_url"].(string)
	if apiBase == "" {
		apiBase = "https://api.telegram.org"
	}
	resp, err := h.HTTPClient.R().
		SetContext(ctx).
		Post(fmt.Sprintf("%s/bot%s/deleteWebhook", apiBase, token))
	if err != nil {
		return fmt.Errorf("failed to remove webhook: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("remote deleteWebhook failed: status %d", resp.StatusCode)
	}
	logger.FromContext(ctx).Info(
		"removed webhook-bot subscription", "workflow_id", workflowID.String(), "node_id", node.NodeID.String(),
	)
	return nil
}
