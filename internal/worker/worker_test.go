package worker

import (
	"context"
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"go.uber.org/goleak"
	"go.uber.org/zap"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeAcknowledger struct {
	acked    bool
	nacked   bool
	requeued bool
	multiple bool
	rejected bool
}

func (f *fakeAcknowledger) Ack(tag uint64, multiple bool) error {
	f.acked = true
	f.multiple = multiple
	return nil
}

func (f *fakeAcknowledger) Nack(tag uint64, multiple bool, requeue bool) error {
	f.nacked = true
	f.multiple = multiple
	f.requeued = requeue
	return nil
}

func (f *fakeAcknowledger) Reject(tag uint64, requeue bool) error {
	f.rejected = true
	return nil
}

func TestMessagePersistWorkerRejectsBadPayload(t *testing.T) {
	w := NewMessagePersistWorker(nil, nil, "q", zap.NewNop())
	ack := &fakeAcknowledger{}

	w.handleDelivery(amqp.Delivery{Acknowledger: ack, Body: []byte("{not json")})

	assert.True(t, ack.nacked)
	assert.False(t, ack.requeued, "a poison message must not requeue forever")
	assert.False(t, ack.acked)
}

func TestIngestWorkerRejectsBadPayload(t *testing.T) {
	w := NewIngestWorker(nil, nil, nil, "q", 3, zap.NewNop())
	ack := &fakeAcknowledger{}

	w.handleDelivery(context.Background(), amqp.Delivery{Acknowledger: ack, Body: []byte("not json at all")})

	assert.True(t, ack.nacked)
	assert.False(t, ack.requeued)
	assert.False(t, ack.acked)
}

func TestIngestWorkerDefaultsFileWorkers(t *testing.T) {
	w := NewIngestWorker(nil, nil, nil, "q", 0, zap.NewNop())
	assert.Equal(t, 3, w.fileWorkers)
}
