package publish

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/signalpress/signalpress/pkg/models"
)

// FixtureBackend is an in-memory ChannelBackend stand-in for a real CRM
// / Platform / Twitter / LinkedIn / Facebook API client. It lets tests
// and local runs drive the full Publisher/ResilientPublisher/
// Orchestrator stack without a network dependency, and lets tests
// script specific failure sequences (spec.md scenarios S2/S3).
type FixtureBackend struct {
	channel   string
	calls     atomic.Int64
	responses []fixtureResponse
	idx       atomic.Int64
}

type fixtureResponse struct {
	status     models.ChannelStatus
	err        string
	statusCode int
}

func NewFixtureBackend(channel string) *FixtureBackend {
	return &FixtureBackend{channel: channel}
}

// ScriptFailures queues n consecutive 5xx failures before falling back
// to success, used to drive the circuit-breaker scenarios.
func (b *FixtureBackend) ScriptFailures(n int) {
	for i := 0; i < n; i++ {
		b.responses = append(b.responses, fixtureResponse{status: models.ChannelFailed, err: "backend_5xx", statusCode: 500})
	}
}

func (b *FixtureBackend) Calls() int64 { return b.calls.Load() }

func (b *FixtureBackend) Send(_ context.Context, artifact models.ContentArtifact) (models.ChannelResult, error) {
	b.calls.Add(1)

	i := b.idx.Load()
	if int(i) < len(b.responses) {
		b.idx.Add(1)
		resp := b.responses[i]
		return models.ChannelResult{
			Channel: b.channel,
			Status:  resp.status,
			Error:   resp.err,
		}, fmt.Errorf("%s", resp.err)
	}

	result := models.ChannelResult{
		Channel:   b.channel,
		Status:    models.ChannelSuccess,
		ContentID: artifact.ItemID,
		Timestamp: time.Now().UTC(),
	}
	switch b.channel {
	case ChannelEmail:
		result.Sent = len(artifact.Recipients)
		if result.Sent == 0 {
			result.Sent = 1
		}
	case ChannelWeb:
		result.URL = "/updates/" + artifact.ItemID
	}
	return result, nil
}
