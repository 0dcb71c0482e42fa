package queue

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/iliyamo/smart-parking/internal/model"
)

type mockSink struct{ mock.Mock }

func (m *mockSink) Insert(ctx context.Context, a *model.AuditLog) error {
	return m.Called(ctx, a).Error(0)
}

type recordingPublisher struct{ events []Event }

func (r *recordingPublisher) Publish(_ context.Context, ev Event) error {
	r.events = append(r.events, ev)
	return nil
}

func TestConsumerHandle(t *testing.T) {
	uid := uint64(9)
	ev, err := NewEvent(ViolationOpened, "violation", 3, &uid, ViolationData{ZoneID: 1, ExcessVehicles: 15})
	require.NoError(t, err)
	body, err := json.Marshal(ev)
	require.NoError(t, err)

	sink := new(mockSink)
	sink.On("Insert", mock.Anything, mock.MatchedBy(func(a *model.AuditLog) bool {
		return a.EventID == ev.ID && a.EventType == ViolationOpened && a.EntityID == 3 && *a.UserID == 9
	})).Return(nil)

	c := &Consumer{Sink: sink, Log: zap.NewNop()}
	require.NoError(t, c.Handle(context.Background(), body))
	sink.AssertExpectations(t)
}

func TestConsumerHandleRejectsGarbage(t *testing.T) {
	c := &Consumer{Sink: new(mockSink), Log: zap.NewNop()}
	assert.Error(t, c.Handle(context.Background(), []byte("{")))
	assert.Error(t, c.Handle(context.Background(), []byte(`{"type":"x"}`)))
}

func TestEmit(t *testing.T) {
	pub := &recordingPublisher{}
	Emit(pub, zap.NewNop(), BookingCreated, "booking", 12, nil, MoneyData{AmountCents: 600})
	require.Len(t, pub.events, 1)
	assert.Equal(t, BookingCreated, pub.events[0].Type)
	assert.JSONEq(t, `{"amount_cents":600}`, string(pub.events[0].Data))

	Emit(nil, zap.NewNop(), BookingCreated, "booking", 12, nil, nil)
}
