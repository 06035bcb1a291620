package line

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tbourn/go-coach-bot/internal/domain"
)

func TestSignature_RoundTrip(t *testing.T) {
	body := []byte(`{"events":[]}`)
	sig := Sign("secret", body)

	assert.True(t, ValidateSignature("secret", body, sig))
	assert.False(t, ValidateSignature("other", body, sig))
	assert.False(t, ValidateSignature("secret", []byte(`{"events":[{}]}`), sig))
	assert.False(t, ValidateSignature("secret", body, ""))
	assert.False(t, ValidateSignature("secret", body, "%%%not-base64"))
}

const samplePayload = `{
  "destination": "Ubot",
  "events": [
    {"type":"message","webhookEventId":"e1","replyToken":"r1","timestamp":1700000000000,
     "deliveryContext":{"isRedelivery":false},
     "source":{"type":"user","userId":"U1"},
     "message":{"id":"m1","type":"text","text":"123456789"}},
    {"type":"message","webhookEventId":"e2","replyToken":"r2",
     "deliveryContext":{"isRedelivery":true},
     "source":{"type":"user","userId":"U2"},
     "message":{"id":"m2","type":"image"}},
    {"type":"message","webhookEventId":"e3","replyToken":"r3",
     "source":{"type":"user","userId":"U3"},
     "message":{"id":"m3","type":"sticker"}},
    {"type":"follow","webhookEventId":"e4","replyToken":"r4","source":{"type":"user","userId":"U4"}}
  ]
}`

func TestParsePayload_MessageEvents(t *testing.T) {
	p, err := ParsePayload([]byte(samplePayload))
	require.NoError(t, err)
	assert.Equal(t, "Ubot", p.Destination)
	require.Len(t, p.Events, 4)

	evs := p.MessageEvents()
	require.Len(t, evs, 3)

	assert.Equal(t, domain.InboundEvent{
		EventID: "e1", Principal: "U1", ReplyToken: "r1", Kind: domain.KindText,
		Text: "123456789", MessageID: "m1", Timestamp: time.UnixMilli(1700000000000),
	}, evs[0])
	assert.Equal(t, domain.KindImage, evs[1].Kind)
	assert.Equal(t, "m2", evs[1].MessageID)
	assert.True(t, evs[1].Redelivery)
	assert.True(t, evs[1].Timestamp.IsZero())
	assert.Equal(t, domain.KindOther, evs[2].Kind)
}

func TestParsePayload_Malformed(t *testing.T) {
	_, err := ParsePayload([]byte(`{"events":`))
	assert.Error(t, err)
}
