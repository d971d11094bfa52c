package ws

import (
	"context"
	"testing"

	"go.mongodb.org/mongo-driver/bson"
)

func marshalEnvelope(t *testing.T, id int32, data interface{}) []byte {
	t.Helper()
	raw, err := bson.Marshal(bson.D{{Key: "id", Value: id}, {Key: "data", Value: data}})
	if err != nil {
		t.Fatalf("marshal envelope: %v", err)
	}
	return raw
}

func TestDispatchBasicCommand(t *testing.T) {
	d := NewDispatcher()

	var got BasicCommand
	calls := 0
	d.Register(CommandBasic, func(_ context.Context, data bson.Raw) error {
		calls++
		return bson.Unmarshal(data, &got)
	})

	payload := marshalEnvelope(t, 0, bson.D{
		{Key: "timestamp", Value: int32(500)},
		{Key: "target", Value: int32(3)},
		{Key: "command", Value: int32(7)},
	})
	if err := d.Dispatch(context.Background(), payload); err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}
	if calls != 1 {
		t.Fatalf("handler called %d times, want 1", calls)
	}
	want := BasicCommand{Timestamp: 500, Target: 3, Command: 7}
	if got != want {
		t.Errorf("decoded %+v, want %+v", got, want)
	}
}

func TestDispatchMalformedEnvelopes(t *testing.T) {
	d := NewDispatcher()
	d.RegisterBasicHandler()

	cases := map[string][]byte{
		"not bson":     []byte("definitely not bson"),
		"empty":        nil,
		"missing id":   mustMarshal(t, bson.D{{Key: "data", Value: bson.D{}}}),
		"id not int32": mustMarshal(t, bson.D{{Key: "id", Value: "zero"}, {Key: "data", Value: bson.D{}}}),
		"missing data": mustMarshal(t, bson.D{{Key: "id", Value: int32(0)}}),
		"data scalar":  mustMarshal(t, bson.D{{Key: "id", Value: int32(0)}, {Key: "data", Value: int32(1)}}),
	}
	for name, payload := range cases {
		if err := d.Dispatch(context.Background(), payload); err == nil {
			t.Errorf("%s: expected error, got nil", name)
		}
	}
}

func TestDispatchUnknownCommandID(t *testing.T) {
	d := NewDispatcher()
	d.RegisterBasicHandler()

	payload := marshalEnvelope(t, 42, bson.D{})
	if err := d.Dispatch(context.Background(), payload); err == nil {
		t.Error("expected error for unknown command id")
	}
}

func TestRegisterBasicHandlerDecodes(t *testing.T) {
	d := NewDispatcher()
	d.RegisterBasicHandler()

	payload := marshalEnvelope(t, 0, bson.D{
		{Key: "timestamp", Value: int32(1)},
		{Key: "target", Value: int32(2)},
		{Key: "command", Value: int32(3)},
	})
	if err := d.Dispatch(context.Background(), payload); err != nil {
		t.Errorf("Dispatch failed: %v", err)
	}
}

func mustMarshal(t *testing.T, doc bson.D) []byte {
	t.Helper()
	raw, err := bson.Marshal(doc)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return raw
}
