package subscriber

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/abgdnv/gocommerce/option_service/internal/platform/messaging/events"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

// fakeMsg records how a message was settled. Unused jetstream.Msg methods panic.
type fakeMsg struct {
	jetstream.Msg
	data    []byte
	settled string
	delay   time.Duration
}

func (m *fakeMsg) Data() []byte    { return m.data }
func (m *fakeMsg) Subject() string { return "items.deleted" }
func (m *fakeMsg) Ack() error      { m.settled = "ack"; return nil }
func (m *fakeMsg) Term() error     { m.settled = "term"; return nil }
func (m *fakeMsg) NakWithDelay(d time.Duration) error {
	m.settled = "nak"
	m.delay = d
	return nil
}

type mockDeleter struct {
	mock.Mock
}

func (m *mockDeleter) DeleteOptionsByParent(ctx context.Context, itemID uuid.UUID) (int64, error) {
	args := m.Called(ctx, itemID)
	return args.Get(0).(int64), args.Error(1)
}

func TestHandleMessage(t *testing.T) {
	itemID := uuid.New()
	valid, _ := events.ItemDeletedEvent{ItemID: itemID, DeletedAt: time.Now()}.Payload()

	tests := []struct {
		name      string
		data      []byte
		deleteErr error
		expectDel bool
		settled   string
	}{
		{name: "deleted and acked", data: valid, expectDel: true, settled: "ack"},
		{name: "deletion failure is redelivered", data: valid, deleteErr: errors.New("db down"), expectDel: true, settled: "nak"},
		{name: "malformed json is terminated", data: []byte("{"), settled: "term"},
		{name: "missing item id is terminated", data: []byte(`{"deleted_at":"2024-01-01T00:00:00Z"}`), settled: "term"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// given
			deleter := &mockDeleter{}
			if tt.expectDel {
				deleter.On("DeleteOptionsByParent", mock.Anything, itemID).Return(int64(2), tt.deleteErr)
			}
			msg := &fakeMsg{data: tt.data}

			// when
			handleMessage(context.Background(), msg, deleter, time.Second, slog.New(slog.NewTextHandler(io.Discard, nil)))

			// then
			assert.Equal(t, tt.settled, msg.settled)
			if tt.settled == "nak" {
				assert.Equal(t, time.Second, msg.delay)
			}
			deleter.AssertExpectations(t)
		})
	}
}
